package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tasktrack/domain"
)

// Memory is an in-process Repository used in dev mode and in tests. It
// mirrors the table store's semantics, including best-effort reorder
// batches.
type Memory struct {
	mu      sync.RWMutex
	byOwner map[string]map[string]domain.Task
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{byOwner: map[string]map[string]domain.Task{}}
}

func (m *Memory) ListTasks(_ context.Context, owner string) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]domain.Task, 0, len(m.byOwner[owner]))
	for _, t := range m.byOwner[owner] {
		tasks = append(tasks, t)
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks, nil
}

func (m *Memory) GetTask(_ context.Context, owner, id string) (domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byOwner[owner][id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) InsertTask(_ context.Context, owner string, fields domain.Fields) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := 0
	for _, t := range m.byOwner[owner] {
		if t.Order >= next {
			next = t.Order + 1
		}
	}
	task := domain.Task{
		ID:          uuid.NewString(),
		Owner:       owner,
		Title:       fields.Title,
		Description: fields.Description,
		Category:    fields.Category,
		Priority:    fields.Priority,
		Completed:   fields.Completed,
		DueDate:     fields.DueDate,
		CreatedAt:   time.Now().UTC(),
		Order:       next,
	}
	if m.byOwner[owner] == nil {
		m.byOwner[owner] = map[string]domain.Task{}
	}
	m.byOwner[owner][task.ID] = task
	return task, nil
}

func (m *Memory) UpdateTask(_ context.Context, owner, id string, patch domain.Patch) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byOwner[owner][id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	patch.Apply(&t)
	m.byOwner[owner][id] = t
	return t, nil
}

func (m *Memory) DeleteTask(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOwner[owner][id]; !ok {
		return ErrNotFound
	}
	delete(m.byOwner[owner], id)
	return nil
}

func (m *Memory) ApplyOrder(_ context.Context, owner string, entries []domain.OrderEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, entry := range entries {
		t, ok := m.byOwner[owner][entry.ID]
		if !ok {
			continue
		}
		t.Order = i
		m.byOwner[owner][entry.ID] = t
	}
	return nil
}
