package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"tasktrack/domain"
)

// Storage is the table-backed Repository. Tasks live in a single table
// keyed PartitionKey=owner, RowKey=task id, so every lookup and
// mutation is owner-scoped by construction.
type Storage struct {
	tasks *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{tasks: svc.NewClient(tasksTable)}, nil
}

type taskEntity struct {
	aztables.Entity
	Title       string               `json:"Title"`
	Description string               `json:"Description"`
	Category    string               `json:"Category"`
	Priority    string               `json:"Priority"`
	Completed   bool                 `json:"Completed"`
	DueDate     aztables.EDMDateTime `json:"DueDate"`
	CreatedAt   aztables.EDMDateTime `json:"CreatedAt"`
	Order       int                  `json:"Order"`
}

func (e taskEntity) toTask() domain.Task {
	return domain.Task{
		ID:          e.RowKey,
		Owner:       e.PartitionKey,
		Title:       e.Title,
		Description: e.Description,
		Category:    domain.Category(e.Category),
		Priority:    domain.Priority(e.Priority),
		Completed:   e.Completed,
		DueDate:     time.Time(e.DueDate),
		CreatedAt:   time.Time(e.CreatedAt),
		Order:       e.Order,
	}
}

func entityFromTask(t domain.Task) taskEntity {
	return taskEntity{
		Entity:      aztables.Entity{PartitionKey: t.Owner, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		Category:    string(t.Category),
		Priority:    string(t.Priority),
		Completed:   t.Completed,
		DueDate:     aztables.EDMDateTime(t.DueDate),
		CreatedAt:   aztables.EDMDateTime(t.CreatedAt),
		Order:       t.Order,
	}
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// ListTasks retrieves all tasks for the provided owner sorted by order.
func (s *Storage) ListTasks(ctx context.Context, owner string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + owner + "'"
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, ent.toTask())
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks, nil
}

func (s *Storage) GetTask(ctx context.Context, owner, id string) (domain.Task, error) {
	resp, err := s.tasks.GetEntity(ctx, owner, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, ErrNotFound
		}
		return domain.Task{}, err
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Task{}, err
	}
	return ent.toTask(), nil
}

func (s *Storage) InsertTask(ctx context.Context, owner string, fields domain.Fields) (domain.Task, error) {
	existing, err := s.ListTasks(ctx, owner)
	if err != nil {
		return domain.Task{}, err
	}
	next := 0
	for _, t := range existing {
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
	data, err := json.Marshal(entityFromTask(task))
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.tasks.AddEntity(ctx, data, nil); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (s *Storage) UpdateTask(ctx context.Context, owner, id string, patch domain.Patch) (domain.Task, error) {
	task, err := s.GetTask(ctx, owner, id)
	if err != nil {
		return domain.Task{}, err
	}
	patch.Apply(&task)

	data, err := json.Marshal(entityFromTask(task))
	if err != nil {
		return domain.Task{}, err
	}
	_, err = s.tasks.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, ErrNotFound
		}
		return domain.Task{}, err
	}
	return task, nil
}

func (s *Storage) DeleteTask(ctx context.Context, owner, id string) error {
	if _, err := s.tasks.DeleteEntity(ctx, owner, id, nil); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// ApplyOrder merges a new order index into each referenced task. Each
// entry is its own table operation; a missing row is skipped and the
// remaining entries still apply.
func (s *Storage) ApplyOrder(ctx context.Context, owner string, entries []domain.OrderEntry) error {
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		ent := struct {
			aztables.Entity
			Order int `json:"Order"`
		}{
			Entity: aztables.Entity{PartitionKey: owner, RowKey: entry.ID},
			Order:  i,
		}
		data, err := json.Marshal(ent)
		if err != nil {
			return err
		}
		// Merge fails with 404 for deleted or foreign ids; that is
		// fine, the batch is best-effort.
		_, _ = s.tasks.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge})
	}
	return nil
}
