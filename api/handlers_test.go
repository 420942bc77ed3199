package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasktrack/domain"
	"tasktrack/storage"
)

type mockAuth struct {
	id  string
	err error
}

func (m mockAuth) UserIDFromAuthHeader(string) (string, error) { return m.id, m.err }

func newTestServer(t *testing.T, repo storage.Repository, auth Authenticator) *echo.Echo {
	t.Helper()
	e := echo.New()
	logger := log.New()
	logger.SetOutput(io.Discard)
	Register(e, repo, auth, logger)
	return e
}

func doJSON(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func insertTasks(t *testing.T, repo storage.Repository, owner string, titles ...string) []domain.Task {
	t.Helper()
	out := make([]domain.Task, 0, len(titles))
	for _, title := range titles {
		task, err := repo.InsertTask(context.Background(), owner, domain.Fields{
			Title:    title,
			Category: domain.CategoryWork,
			Priority: domain.PriorityMedium,
			DueDate:  time.Now().Add(24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("insert %q: %v", title, err)
		}
		out = append(out, task)
	}
	return out
}

func TestListTasksUnauthorized(t *testing.T) {
	e := newTestServer(t, storage.NewMemory(), mockAuth{err: errors.New("bad token")})

	rec := doJSON(e, http.MethodGet, "/tasks", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListTasksSortedByOrder(t *testing.T) {
	repo := storage.NewMemory()
	tasks := insertTasks(t, repo, "u1", "a", "b", "c")
	if err := repo.ApplyOrder(context.Background(), "u1", []domain.OrderEntry{
		{ID: tasks[2].ID}, {ID: tasks[0].ID}, {ID: tasks[1].ID},
	}); err != nil {
		t.Fatalf("apply order: %v", err)
	}
	e := newTestServer(t, repo, mockAuth{id: "u1"})

	rec := doJSON(e, http.MethodGet, "/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var listed []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []string{"c", "a", "b"}
	if len(listed) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(listed))
	}
	for i, task := range listed {
		if task.Title != want[i] || task.Order != i {
			t.Fatalf("position %d: got title=%q order=%d", i, task.Title, task.Order)
		}
	}
}

func TestCreateTaskAssignsNextOrder(t *testing.T) {
	repo := storage.NewMemory()
	insertTasks(t, repo, "u1", "a", "b", "c")
	e := newTestServer(t, repo, mockAuth{id: "u1"})

	rec := doJSON(e, http.MethodPost, "/tasks", `{"title":"d","category":"Urgent","priority":"High","dueDate":"2026-09-03T12:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var created domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Order != 3 {
		t.Fatalf("expected server-assigned order 3, got %d", created.Order)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("expected server-assigned id and createdAt: %+v", created)
	}
	if created.Owner != "u1" {
		t.Fatalf("expected owner from credential, got %q", created.Owner)
	}
}

func TestCreateTaskRejectsUnknownCategory(t *testing.T) {
	repo := storage.NewMemory()
	e := newTestServer(t, repo, mockAuth{id: "u1"})

	rec := doJSON(e, http.MethodPost, "/tasks", `{"title":"d","category":"Chores"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	tasks, _ := repo.ListTasks(context.Background(), "u1")
	if len(tasks) != 0 {
		t.Fatalf("expected no task stored, got %d", len(tasks))
	}
}

func TestUpdateTaskIgnoresOwnerField(t *testing.T) {
	repo := storage.NewMemory()
	task := insertTasks(t, repo, "u1", "a")[0]
	e := newTestServer(t, repo, mockAuth{id: "u1"})

	rec := doJSON(e, http.MethodPut, "/tasks/"+task.ID, `{"title":"renamed","userId":"intruder","id":"other","order":42}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	updated, err := repo.GetTask(context.Background(), "u1", task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Title != "renamed" {
		t.Fatalf("expected title update, got %q", updated.Title)
	}
	if updated.Owner != "u1" || updated.ID != task.ID || updated.Order != task.Order {
		t.Fatalf("immutable fields changed: %+v", updated)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	e := newTestServer(t, storage.NewMemory(), mockAuth{id: "u1"})

	rec := doJSON(e, http.MethodPut, "/tasks/missing", `{"title":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	repo := storage.NewMemory()
	task := insertTasks(t, repo, "u1", "a")[0]
	e := newTestServer(t, repo, mockAuth{id: "u1"})

	rec := doJSON(e, http.MethodDelete, "/tasks/"+task.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doJSON(e, http.MethodDelete, "/tasks/"+task.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestReorderRejectsNonArrayPayload(t *testing.T) {
	repo := storage.NewMemory()
	tasks := insertTasks(t, repo, "u1", "a", "b")
	e := newTestServer(t, repo, mockAuth{id: "u1"})

	for _, body := range []string{
		`{"tasks":"nope"}`,
		`{"tasks":null}`,
		`{"tasks":{"id":"x"}}`,
		`{}`,
	} {
		rec := doJSON(e, http.MethodPost, "/tasks/reorder", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}

	// No entry may have been applied.
	listed, _ := repo.ListTasks(context.Background(), "u1")
	for i, task := range listed {
		if task.ID != tasks[i].ID || task.Order != i {
			t.Fatalf("order changed by rejected payload: %+v", listed)
		}
	}
}

func TestReorderAppliesBatchPositions(t *testing.T) {
	repo := storage.NewMemory()
	mine := insertTasks(t, repo, "u1", "a", "b", "c")
	theirs := insertTasks(t, repo, "u2", "z")[0]
	e := newTestServer(t, repo, mockAuth{id: "u1"})

	// The entry's order field is ignored; the batch position wins.
	// The foreign id and the already-deleted id are skipped.
	body := `{"tasks":[` +
		`{"id":"` + mine[2].ID + `","order":9},` +
		`{"id":"` + theirs.ID + `","order":0},` +
		`{"id":"ghost","order":1},` +
		`{"id":"` + mine[0].ID + `","order":7}]}`
	rec := doJSON(e, http.MethodPost, "/tasks/reorder", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	ctx := context.Background()
	moved, _ := repo.GetTask(ctx, "u1", mine[2].ID)
	if moved.Order != 0 {
		t.Fatalf("expected batch position to win, got order %d", moved.Order)
	}
	last, _ := repo.GetTask(ctx, "u1", mine[0].ID)
	if last.Order != 3 {
		t.Fatalf("expected remaining entries to apply, got order %d", last.Order)
	}
	foreign, _ := repo.GetTask(ctx, "u2", theirs.ID)
	if foreign.Order != 0 {
		t.Fatalf("foreign task order changed to %d", foreign.Order)
	}
}
