package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasktrack/domain"
	"tasktrack/storage"
)

// taskBodyMaxSize caps request bodies; a reorder batch for even a huge
// list stays well below this.
const taskBodyMaxSize = 1 << 20

type statusResponse struct {
	Message string `json:"message"`
}

// Register wires up all task routes on the provided Echo instance.
func Register(e *echo.Echo, repo storage.Repository, auth Authenticator, logger *log.Logger) {
	e.GET("/tasks", listTasks(repo, auth, logger))
	e.POST("/tasks", createTask(repo, auth))
	e.POST("/tasks/reorder", reorderTasks(repo, auth), GzipRequest())
	e.GET("/tasks/:id", getTask(repo, auth))
	e.PUT("/tasks/:id", updateTask(repo, auth))
	e.DELETE("/tasks/:id", deleteTask(repo, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(repo storage.Repository, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newListRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		owner, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		tasks, fetchErr := repo.ListTasks(ctx, owner)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		err = c.JSON(http.StatusOK, tasks)
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createTask(repo storage.Repository, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var fields domain.Fields
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, taskBodyMaxSize))
		if err := dec.Decode(&fields); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if !fields.Normalize() {
			return c.String(http.StatusBadRequest, "invalid category or priority")
		}

		task, err := repo.InsertTask(c.Request().Context(), owner, fields)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func getTask(repo storage.Repository, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		task, err := repo.GetTask(c.Request().Context(), owner, c.Param("id"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.JSON(http.StatusNotFound, statusResponse{Message: "task not found"})
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, task)
	}
}

func updateTask(repo storage.Repository, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		// Patch cannot represent id, owner or order, so a body trying
		// to change them is silently stripped down to the editable
		// fields.
		var patch domain.Patch
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, taskBodyMaxSize))
		if err := dec.Decode(&patch); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		task, err := repo.UpdateTask(c.Request().Context(), owner, c.Param("id"), patch)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.JSON(http.StatusNotFound, statusResponse{Message: "task not found"})
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(repo storage.Repository, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		if err := repo.DeleteTask(c.Request().Context(), owner, c.Param("id")); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.JSON(http.StatusNotFound, statusResponse{Message: "task not found"})
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, statusResponse{Message: "task deleted"})
	}
}

type reorderRequest struct {
	Tasks sonic.NoCopyRawMessage `json:"tasks"`
}

func reorderTasks(repo storage.Repository, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req reorderRequest
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, taskBodyMaxSize))
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		// The batch must be a JSON array; anything else (absent, null,
		// object) is rejected before any write happens.
		raw := bytes.TrimSpace(req.Tasks)
		if len(raw) == 0 || raw[0] != '[' {
			return c.JSON(http.StatusBadRequest, statusResponse{Message: "tasks must be an array"})
		}
		var entries []domain.OrderEntry
		if err := sonic.Unmarshal(raw, &entries); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		if err := repo.ApplyOrder(c.Request().Context(), owner, entries); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, statusResponse{Message: "tasks reordered"})
	}
}
