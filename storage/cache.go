package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"tasktrack/domain"
)

// Cache wraps a Repository with Redis-backed caching of the per-owner
// task list. Every mutation evicts the owner's entry, so a stale list
// is only ever served within the TTL between a mutation on another
// instance and the eviction landing there.
type Cache struct {
	base  Repository
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Repository wrapper using the provided
// Redis client and TTL.
func NewCache(base Repository, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, owner string) ([]domain.Task, error) {
	if tasks, ok := c.loadList(ctx, owner); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasks(ctx, owner)
	if err != nil {
		return nil, err
	}

	c.storeList(ctx, owner, tasks)
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, owner, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, owner, id)
}

func (c *Cache) InsertTask(ctx context.Context, owner string, fields domain.Fields) (domain.Task, error) {
	task, err := c.base.InsertTask(ctx, owner, fields)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, owner)
	return task, nil
}

func (c *Cache) UpdateTask(ctx context.Context, owner, id string, patch domain.Patch) (domain.Task, error) {
	task, err := c.base.UpdateTask(ctx, owner, id, patch)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, owner)
	return task, nil
}

func (c *Cache) DeleteTask(ctx context.Context, owner, id string) error {
	if err := c.base.DeleteTask(ctx, owner, id); err != nil {
		return err
	}
	c.evict(ctx, owner)
	return nil
}

func (c *Cache) ApplyOrder(ctx context.Context, owner string, entries []domain.OrderEntry) error {
	if err := c.base.ApplyOrder(ctx, owner, entries); err != nil {
		return err
	}
	c.evict(ctx, owner)
	return nil
}

func (c *Cache) loadList(ctx context.Context, owner string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, listKey(owner)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing repository
			// without failing; drop the key so the next read refills.
			_ = c.redis.Del(ctx, listKey(owner)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, listKey(owner)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeList(ctx context.Context, owner string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, listKey(owner), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, owner string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, listKey(owner)).Result()
}

func listKey(owner string) string {
	return "tasks:" + owner
}
