package storage

import (
	"context"
	"errors"

	"tasktrack/domain"
)

// ErrNotFound is returned when a task does not exist or belongs to a
// different owner. Handlers translate it to a 404.
var ErrNotFound = errors.New("task not found")

// Repository is the durable task store. Every call is scoped to one
// owner; a task of another owner is indistinguishable from a missing
// one.
type Repository interface {
	// ListTasks returns all of the owner's tasks sorted by order
	// ascending.
	ListTasks(ctx context.Context, owner string) ([]domain.Task, error)
	// GetTask returns a single task or ErrNotFound.
	GetTask(ctx context.Context, owner, id string) (domain.Task, error)
	// InsertTask stores a new task, assigning id, creation time and
	// the next order index (max+1, or 0 for the first task).
	InsertTask(ctx context.Context, owner string, fields domain.Fields) (domain.Task, error)
	// UpdateTask applies a partial update and returns the result, or
	// ErrNotFound.
	UpdateTask(ctx context.Context, owner, id string, patch domain.Patch) (domain.Task, error)
	// DeleteTask removes a task or returns ErrNotFound.
	DeleteTask(ctx context.Context, owner, id string) error
	// ApplyOrder writes new order indices as independent per-task
	// updates. The position of an entry in the batch wins over its
	// Order field. Entries for missing or foreign tasks are skipped;
	// the batch never fails part-way.
	ApplyOrder(ctx context.Context, owner string, entries []domain.OrderEntry) error
}
