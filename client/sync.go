package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"tasktrack/domain"
)

// ErrorKind classifies a failed remote call so callers can decide
// between surfacing a warning and giving up.
type ErrorKind int

const (
	// KindTransport covers network errors and 5xx responses; the
	// caller keeps its optimistic state and retries never.
	KindTransport ErrorKind = iota + 1
	// KindUnauthorized covers missing or rejected credentials.
	KindUnauthorized
	// KindNotFound covers 404s: the record is gone or owned by
	// someone else.
	KindNotFound
	// KindValidation covers payloads the server rejects outright.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

// SyncError is the normalized failure of one remote call.
type SyncError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// CredentialFunc supplies the current bearer token. It is called per
// request so a refreshed session token is picked up automatically.
type CredentialFunc func() (string, error)

// SyncClient translates store intents into calls against the task
// server. It holds no state beyond the base URL and the credential
// reference.
type SyncClient struct {
	baseURL string
	creds   CredentialFunc
	httpc   *http.Client
}

// NewSyncClient creates a client for the server at baseURL. A nil
// httpc falls back to a default client with the transport's own
// timeouts.
func NewSyncClient(baseURL string, creds CredentialFunc, httpc *http.Client) *SyncClient {
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &SyncClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		httpc:   httpc,
	}
}

// FetchAll retrieves the owner's full task list.
func (s *SyncClient) FetchAll(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := s.do(ctx, "fetch tasks", http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Create stores a new task and returns the server-assigned record.
func (s *SyncClient) Create(ctx context.Context, fields domain.Fields) (domain.Task, error) {
	var created domain.Task
	if err := s.do(ctx, "create task", http.MethodPost, "/tasks", fields, &created); err != nil {
		return domain.Task{}, err
	}
	return created, nil
}

// Update applies a partial update and returns the updated record.
func (s *SyncClient) Update(ctx context.Context, id string, patch domain.Patch) (domain.Task, error) {
	var updated domain.Task
	if err := s.do(ctx, "update task", http.MethodPut, "/tasks/"+id, patch, &updated); err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

// Delete removes a task.
func (s *SyncClient) Delete(ctx context.Context, id string) error {
	return s.do(ctx, "delete task", http.MethodDelete, "/tasks/"+id, nil, nil)
}

type reorderPayload struct {
	Tasks []domain.OrderEntry `json:"tasks"`
}

// Reorder submits the full (id, order) set for the owner. The server
// applies it best-effort.
func (s *SyncClient) Reorder(ctx context.Context, entries []domain.OrderEntry) error {
	if entries == nil {
		entries = []domain.OrderEntry{}
	}
	return s.do(ctx, "reorder tasks", http.MethodPost, "/tasks/reorder", reorderPayload{Tasks: entries}, nil)
}

func (s *SyncClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return &SyncError{Kind: KindValidation, Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return &SyncError{Kind: KindTransport, Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := s.creds()
	if err != nil {
		return &SyncError{Kind: KindUnauthorized, Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return &SyncError{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SyncError{
			Kind: kindForStatus(resp.StatusCode),
			Op:   op,
			Err:  fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		}
	}

	if out != nil {
		if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); err != nil {
			return &SyncError{Kind: KindTransport, Op: op, Err: err}
		}
	}
	return nil
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusNotFound:
		return KindNotFound
	case code >= 400 && code < 500:
		return KindValidation
	default:
		return KindTransport
	}
}
