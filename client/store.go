package client

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tasktrack/domain"
)

// Syncer is the remote half of the store. *SyncClient implements it.
type Syncer interface {
	FetchAll(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, fields domain.Fields) (domain.Task, error)
	Update(ctx context.Context, id string, patch domain.Patch) (domain.Task, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, entries []domain.OrderEntry) error
}

// Snapshotter is the durable local fallback. *SnapshotStore
// implements it.
type Snapshotter interface {
	Load(owner string) ([]domain.Task, bool)
	Save(owner string, tasks []domain.Task) error
}

// Outcome reports how a mutation settled. Applied means the in-memory
// list changed; Confirmed means the server accepted it too. Applied
// without Confirmed carries a Warning (a *SyncError) the caller can
// render as a notice — the optimistic state is never rolled back.
type Outcome struct {
	Applied   bool
	Confirmed bool
	Warning   error
}

var errInvalidFields = errors.New("invalid category or priority")

func confirmed() Outcome { return Outcome{Applied: true, Confirmed: true} }

func unconfirmed(err error) Outcome { return Outcome{Applied: true, Warning: err} }

// Stats summarizes the current list.
type Stats struct {
	Total     int
	Completed int
	Pending   int
	Overdue   int
}

// Store holds one user's ordered task list in memory and keeps it the
// single source of truth for the session: every mutation applies
// locally first, then syncs, and a sync failure only costs the server
// confirmation. Orders stay dense (0..n-1) after every mutation.
//
// A Store belongs to one authenticated session and is driven from a
// single goroutine; it is created on login and discarded on logout.
type Store struct {
	remote Syncer
	snaps  Snapshotter
	owner  string
	logger *log.Logger
	tasks  []domain.Task
}

// NewStore creates a store for the given owner.
func NewStore(remote Syncer, snaps Snapshotter, owner string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{remote: remote, snaps: snaps, owner: owner, logger: logger}
}

// Load replaces the in-memory list with the server's, sorted by order.
// When the fetch fails it falls back to the local snapshot (kept in
// its stored order), or to a small starter set for a first-time
// offline user.
func (s *Store) Load(ctx context.Context) Outcome {
	fetched, err := s.remote.FetchAll(ctx)
	if err == nil {
		sort.SliceStable(fetched, func(i, j int) bool { return fetched[i].Order < fetched[j].Order })
		s.tasks = fetched
		s.mirror()
		return confirmed()
	}
	s.warn("load", err)

	if cached, ok := s.snaps.Load(s.owner); ok {
		s.tasks = cached
		return unconfirmed(err)
	}

	s.tasks = starterTasks(s.owner)
	s.mirror()
	return unconfirmed(err)
}

// Add appends a new task with the next dense order index, then asks
// the server to create it. On success the optimistic id, creation time
// and order are replaced with the server-assigned values.
func (s *Store) Add(ctx context.Context, fields domain.Fields) (domain.Task, Outcome) {
	if !fields.Normalize() {
		return domain.Task{}, Outcome{Warning: &SyncError{
			Kind: KindValidation,
			Op:   "add task",
			Err:  errInvalidFields,
		}}
	}

	task := domain.Task{
		ID:          uuid.NewString(),
		Owner:       s.owner,
		Title:       fields.Title,
		Description: fields.Description,
		Category:    fields.Category,
		Priority:    fields.Priority,
		Completed:   fields.Completed,
		DueDate:     fields.DueDate,
		CreatedAt:   time.Now().UTC(),
		Order:       len(s.tasks),
	}
	s.tasks = append(s.tasks, task)

	created, err := s.remote.Create(ctx, fields)
	if err != nil {
		s.warn("add", err)
		s.mirror()
		return task, unconfirmed(err)
	}

	s.tasks[len(s.tasks)-1] = created
	s.mirror()
	return created, confirmed()
}

// Update applies a partial update in place and syncs it. An unknown id
// is a no-op.
func (s *Store) Update(ctx context.Context, id string, patch domain.Patch) Outcome {
	i := s.index(id)
	if i < 0 {
		return Outcome{}
	}
	patch.Apply(&s.tasks[i])

	if _, err := s.remote.Update(ctx, id, patch); err != nil {
		s.warn("update", err)
		s.mirror()
		return unconfirmed(err)
	}
	s.mirror()
	return confirmed()
}

// Remove deletes the task locally, renumbers the remainder to close
// the gap, and syncs the deletion. The removal sticks even when the
// server call fails.
func (s *Store) Remove(ctx context.Context, id string) Outcome {
	i := s.index(id)
	if i < 0 {
		return Outcome{}
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.resequence()

	if err := s.remote.Delete(ctx, id); err != nil {
		s.warn("remove", err)
		s.mirror()
		return unconfirmed(err)
	}
	s.mirror()
	return confirmed()
}

// ToggleCompletion flips the completed flag. An unknown id is a no-op.
func (s *Store) ToggleCompletion(ctx context.Context, id string) Outcome {
	i := s.index(id)
	if i < 0 {
		return Outcome{}
	}
	completed := !s.tasks[i].Completed
	return s.Update(ctx, id, domain.Patch{Completed: &completed})
}

// Move takes the task at fromIndex and reinserts it at toIndex (both
// clamped to the list bounds), then renumbers every task to its new
// index and submits the full order set. Moving a task onto itself is a
// no-op.
func (s *Store) Move(ctx context.Context, fromIndex, toIndex int) Outcome {
	n := len(s.tasks)
	if n == 0 {
		return Outcome{}
	}
	fromIndex = clamp(fromIndex, 0, n-1)
	toIndex = clamp(toIndex, 0, n-1)
	if fromIndex == toIndex {
		return Outcome{}
	}

	moved := s.tasks[fromIndex]
	s.tasks = append(s.tasks[:fromIndex], s.tasks[fromIndex+1:]...)
	s.tasks = append(s.tasks[:toIndex], append([]domain.Task{moved}, s.tasks[toIndex:]...)...)
	s.resequence()

	entries := make([]domain.OrderEntry, len(s.tasks))
	for i, t := range s.tasks {
		entries[i] = domain.OrderEntry{ID: t.ID, Order: t.Order}
	}
	if err := s.remote.Reorder(ctx, entries); err != nil {
		s.warn("move", err)
		s.mirror()
		return unconfirmed(err)
	}
	s.mirror()
	return confirmed()
}

// Reorder repositions a single task to newOrder. An unknown id is a
// no-op.
func (s *Store) Reorder(ctx context.Context, id string, newOrder int) Outcome {
	i := s.index(id)
	if i < 0 {
		return Outcome{}
	}
	return s.Move(ctx, i, newOrder)
}

// Filtered returns the tasks matching the optional category and
// priority (zero value means any), hiding completed tasks unless
// includeCompleted is set. The result is sorted by order and detached
// from the store.
func (s *Store) Filtered(category domain.Category, priority domain.Priority, includeCompleted bool) []domain.Task {
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if category != "" && t.Category != category {
			continue
		}
		if priority != "" && t.Priority != priority {
			continue
		}
		if !includeCompleted && t.Completed {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Stats summarizes the list; a task is overdue when it is not
// completed and its due date has passed.
func (s *Store) Stats() Stats {
	now := time.Now()
	stats := Stats{Total: len(s.tasks)}
	for _, t := range s.tasks {
		if t.Completed {
			stats.Completed++
			continue
		}
		if t.DueDate.Before(now) {
			stats.Overdue++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	return stats
}

// Tasks returns a copy of the current list in memory order.
func (s *Store) Tasks() []domain.Task {
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Store) index(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// resequence restores the dense order invariant: every task's order
// becomes its list index.
func (s *Store) resequence() {
	for i := range s.tasks {
		s.tasks[i].Order = i
	}
}

func (s *Store) mirror() {
	if err := s.snaps.Save(s.owner, s.tasks); err != nil {
		s.logger.WithError(err).WithField("owner", s.owner).Warn("snapshot mirror failed")
	}
}

func (s *Store) warn(op string, err error) {
	s.logger.WithError(err).WithFields(log.Fields{
		"op":    op,
		"owner": s.owner,
	}).Warn("sync failed; keeping local state")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// starterTasks seeds a first-time offline session so the list is not
// empty before the server is ever reachable.
func starterTasks(owner string) []domain.Task {
	now := time.Now().UTC()
	day := 24 * time.Hour
	return []domain.Task{
		{
			ID:          uuid.NewString(),
			Owner:       owner,
			Title:       "Complete project proposal",
			Description: "Finish the proposal document for the client meeting",
			Category:    domain.CategoryWork,
			Priority:    domain.PriorityHigh,
			DueDate:     now.Add(2 * day),
			CreatedAt:   now,
			Order:       0,
		},
		{
			ID:          uuid.NewString(),
			Owner:       owner,
			Title:       "Grocery shopping",
			Description: "Buy milk, eggs, bread, and vegetables",
			Category:    domain.CategoryPersonal,
			Priority:    domain.PriorityMedium,
			DueDate:     now.Add(day),
			CreatedAt:   now,
			Order:       1,
		},
		{
			ID:          uuid.NewString(),
			Owner:       owner,
			Title:       "Pay utility bills",
			Description: "Pay electricity and water bills",
			Category:    domain.CategoryUrgent,
			Priority:    domain.PriorityHigh,
			DueDate:     now,
			CreatedAt:   now,
			Order:       2,
		},
	}
}
