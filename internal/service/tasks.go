package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"taskhub/internal/apperr"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/pkg/logger"
)

// Messages returned to clients.
const (
	MsgTaskNotFound  = "Task Not Found"
	MsgTaskNameTaken = "this task name already existed!"
)

const defaultHookTimeout = 2 * time.Second

// TaskStore is the persistence port of TaskService. Every lookup and write
// is scoped by owner.
type TaskStore interface {
	ListByOwner(ctx context.Context, owner string) ([]models.Task, error)
	GetOwned(ctx context.Context, id, owner string) (models.Task, error)
	NameTaken(ctx context.Context, owner, name, excludeID string) (bool, error)
	Insert(ctx context.Context, t *models.Task) error
	UpdateOwned(ctx context.Context, t *models.Task) error
	DeleteOwned(ctx context.Context, id, owner string) error
}

// ListCache holds per-user task list snapshots.
type ListCache interface {
	Get(ctx context.Context, userID string) ([]models.Task, bool)
	Set(ctx context.Context, userID string, tasks []models.Task)
	Invalidate(ctx context.Context, userID string) error
}

// Emitter pushes an event to a user's room.
type Emitter interface {
	Emit(ctx context.Context, userID, eventType string, payload any) error
}

// TaskService runs owner-scoped task operations and keeps the list cache
// and the user's other sessions in step with every committed write.
type TaskService struct {
	store       TaskStore
	cache       ListCache
	emitter     Emitter
	hookTimeout time.Duration
	lists       singleflight.Group
	// generations counts invalidations per user so a List that read the
	// store before a write cannot cache its snapshot after it.
	generations sync.Map
}

func NewTaskService(store TaskStore, cache ListCache, emitter Emitter, hookTimeout time.Duration) *TaskService {
	if hookTimeout <= 0 {
		hookTimeout = defaultHookTimeout
	}
	return &TaskService{store: store, cache: cache, emitter: emitter, hookTimeout: hookTimeout}
}

// List returns all of userID's tasks, from the cache when a snapshot exists.
// The snapshot may lag the store by up to the cache TTL when an invalidation
// was lost.
func (s *TaskService) List(ctx context.Context, userID string) ([]models.Task, error) {
	if tasks, ok := s.cache.Get(ctx, userID); ok {
		return tasks, nil
	}
	// Shared by every waiter, so one caller's cancellation must not fail the rest.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.lists.Do(userID, func() (any, error) {
		gen := s.generation(userID)
		start := gen.Load()
		tasks, err := s.store.ListByOwner(loadCtx, userID)
		if err != nil {
			return nil, err
		}
		if gen.Load() != start {
			return tasks, nil
		}
		s.cache.Set(loadCtx, userID, tasks)
		if gen.Load() != start {
			// A write invalidated between the check and the Set.
			_ = s.cache.Invalidate(loadCtx, userID)
		}
		return tasks, nil
	})
	if err != nil {
		return nil, apperr.Internal("failed to list tasks", err)
	}
	return v.([]models.Task), nil
}

func (s *TaskService) Get(ctx context.Context, userID, taskID string) (models.Task, error) {
	t, err := s.store.GetOwned(ctx, taskID, userID)
	if err != nil {
		return models.Task{}, storeError(err, "failed to load task")
	}
	return t, nil
}

func (s *TaskService) Create(ctx context.Context, userID string, in models.NewTask) (models.Task, error) {
	if err := in.Validate(); err != nil {
		return models.Task{}, apperr.Validation(err.Error(), err)
	}
	taken, err := s.store.NameTaken(ctx, userID, in.Name, "")
	if err != nil {
		return models.Task{}, apperr.Internal("failed to create task", err)
	}
	if taken {
		return models.Task{}, apperr.Conflict(MsgTaskNameTaken)
	}

	t := in.Build(userID)
	if err := s.store.Insert(ctx, &t); err != nil {
		return models.Task{}, storeError(err, "failed to create task")
	}

	s.afterCommit(ctx, userID, models.EventTaskAdded, t)
	return t, nil
}

func (s *TaskService) Edit(ctx context.Context, userID, taskID string, patch models.TaskPatch) (models.Task, error) {
	if err := patch.Validate(); err != nil {
		return models.Task{}, apperr.Validation(err.Error(), err)
	}
	t, err := s.store.GetOwned(ctx, taskID, userID)
	if err != nil {
		return models.Task{}, storeError(err, "failed to update task")
	}

	oldName := t.Name
	patch.Apply(&t)
	if t.Name != oldName {
		taken, err := s.store.NameTaken(ctx, userID, t.Name, t.ID)
		if err != nil {
			return models.Task{}, apperr.Internal("failed to update task", err)
		}
		if taken {
			return models.Task{}, apperr.Conflict(MsgTaskNameTaken)
		}
	}

	if err := s.store.UpdateOwned(ctx, &t); err != nil {
		return models.Task{}, storeError(err, "failed to update task")
	}

	s.afterCommit(ctx, userID, models.EventTaskUpdated, t)
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	if _, err := s.store.GetOwned(ctx, taskID, userID); err != nil {
		return storeError(err, "failed to delete task")
	}
	if err := s.store.DeleteOwned(ctx, taskID, userID); err != nil {
		return storeError(err, "failed to delete task")
	}

	s.afterCommit(ctx, userID, models.EventTaskDeleted, models.DeletedTask{ID: taskID})
	return nil
}

func (s *TaskService) generation(userID string) *atomic.Uint64 {
	v, _ := s.generations.LoadOrStore(userID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// hook is a side effect run after a store write commits.
type hook struct {
	name string
	run  func(ctx context.Context) error
}

func (s *TaskService) afterCommit(ctx context.Context, userID, eventType string, payload any) {
	s.runHooks(ctx,
		hook{name: "invalidate-cache", run: func(ctx context.Context) error {
			s.generation(userID).Add(1)
			s.lists.Forget(userID)
			return s.cache.Invalidate(ctx, userID)
		}},
		hook{name: "emit-" + eventType, run: func(ctx context.Context) error {
			return s.emitter.Emit(ctx, userID, eventType, payload)
		}},
	)
}

// runHooks runs hooks concurrently on a context detached from the request
// and waits for them. Failures and panics are logged and never reach the
// caller or the other hooks.
func (s *TaskService) runHooks(ctx context.Context, hooks ...hook) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.hookTimeout)
	defer cancel()

	var g errgroup.Group
	for _, h := range hooks {
		h := h
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				if err != nil {
					logger.Error(hctx, "Post-commit hook failed", "hook", h.name, "error", err)
				}
			}()
			return h.run(hctx)
		})
	}
	_ = g.Wait()
}

func storeError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(MsgTaskNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict(MsgTaskNameTaken)
	default:
		return apperr.Internal(msg, err)
	}
}
