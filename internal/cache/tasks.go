package cache

import (
	"context"
	"encoding/json"
	"time"

	"taskhub/internal/models"
	"taskhub/pkg/logger"
)

const taskListPrefix = "tasks:"

// TaskListKey is the cache key holding userID's task list.
func TaskListKey(userID string) string {
	return taskListPrefix + userID
}

// Store is the byte-level cache the task lists are kept in.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string) error
}

// TaskLists caches serialized per-user task lists.
type TaskLists struct {
	store Store
	ttl   time.Duration
}

func NewTaskLists(store Store, ttl time.Duration) *TaskLists {
	return &TaskLists{store: store, ttl: ttl}
}

// Get returns the cached list for userID. A corrupt entry counts as a miss.
func (c *TaskLists) Get(ctx context.Context, userID string) ([]models.Task, bool) {
	b, ok := c.store.Get(ctx, TaskListKey(userID))
	if !ok {
		return nil, false
	}
	var tasks []models.Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		logger.Warn(ctx, "Cached task list is unreadable", "user_id", userID, "error", err)
		return nil, false
	}
	return tasks, true
}

// Set caches tasks for userID with the configured TTL.
func (c *TaskLists) Set(ctx context.Context, userID string, tasks []models.Task) {
	b, err := json.Marshal(tasks)
	if err != nil {
		logger.Warn(ctx, "Marshal task list for cache failed", "user_id", userID, "error", err)
		return
	}
	c.store.Set(ctx, TaskListKey(userID), b, c.ttl)
}

// Invalidate drops userID's cached list.
func (c *TaskLists) Invalidate(ctx context.Context, userID string) error {
	return c.store.Delete(ctx, TaskListKey(userID))
}
