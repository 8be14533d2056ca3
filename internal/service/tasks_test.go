package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/internal/apperr"
	"taskhub/internal/models"
)

func newTaskService() (*TaskService, *memTasks, *memCache, *recEmitter) {
	store := newMemTasks()
	cache := newMemCache()
	em := &recEmitter{}
	return NewTaskService(store, cache, em, 0), store, cache, em
}

func ptr[T any](v T) *T { return &v }

func mustCreate(t *testing.T, svc *TaskService, owner, name string) models.Task {
	t.Helper()
	task, err := svc.Create(context.Background(), owner, models.NewTask{Name: name})
	require.NoError(t, err)
	return task
}

func TestCreateForcesOwnerAndDefaults(t *testing.T) {
	svc, _, _, em := newTaskService()

	task, err := svc.Create(context.Background(), "alice", models.NewTask{Name: "  T1 ", Description: "d"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "alice", task.UserID)
	assert.Equal(t, "T1", task.Name)
	assert.Equal(t, models.PriorityLow, task.Priority)
	assert.False(t, task.Completed)

	events := em.all()
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].UserID)
	assert.Equal(t, models.EventTaskAdded, events[0].Type)
}

func TestCreateValidation(t *testing.T) {
	svc, store, _, _ := newTaskService()

	_, err := svc.Create(context.Background(), "alice", models.NewTask{Name: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "name is required", err.(*apperr.Error).Message)

	_, err = svc.Create(context.Background(), "alice", models.NewTask{Name: "x", Priority: "Urgent"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, store.Calls())
}

func TestTaskNamesAreUniquePerOwner(t *testing.T) {
	svc, _, _, _ := newTaskService()
	mustCreate(t, svc, "alice", "T1")

	_, err := svc.Create(context.Background(), "alice", models.NewTask{Name: "T1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, MsgTaskNameTaken, err.(*apperr.Error).Message)

	_, err = svc.Create(context.Background(), "bob", models.NewTask{Name: "T1"})
	assert.NoError(t, err)
}

func TestListServesCacheThenStore(t *testing.T) {
	svc, store, cache, _ := newTaskService()
	mustCreate(t, svc, "alice", "T1")
	mustCreate(t, svc, "bob", "B1")

	first, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, cache.cached("alice"))

	calls := store.Calls()
	second, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, store.Calls(), "second List should not hit the store")
}

func TestListWithoutCacheMatchesStore(t *testing.T) {
	svc, _, cache, _ := newTaskService()
	cache.disabled = true
	mustCreate(t, svc, "alice", "T1")

	a, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	b, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	empty, err := svc.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMutationsInvalidateCache(t *testing.T) {
	svc, _, cache, _ := newTaskService()
	ctx := context.Background()

	task := mustCreate(t, svc, "alice", "T1")
	_, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.True(t, cache.cached("alice"))

	_, err = svc.Edit(ctx, "alice", task.ID, models.TaskPatch{Completed: ptr(true)})
	require.NoError(t, err)
	assert.False(t, cache.cached("alice"))

	_, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "alice", task.ID))
	assert.False(t, cache.cached("alice"))

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, []string{"alice", "alice", "alice"}, cache.invalidated)
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	svc, _, cache, em := newTaskService()
	ctx := context.Background()
	task := mustCreate(t, svc, "alice", "T1")
	before := len(em.all())
	invalidations := len(cache.invalidated)

	_, err := svc.Get(ctx, "bob", task.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, MsgTaskNotFound, err.(*apperr.Error).Message)

	_, err = svc.Edit(ctx, "bob", task.ID, models.TaskPatch{Name: ptr("stolen")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = svc.Delete(ctx, "bob", task.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := svc.Get(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "T1", got.Name)
	assert.Len(t, em.all(), before)
	assert.Len(t, cache.invalidated, invalidations)
}

func TestEditAppliesPatch(t *testing.T) {
	svc, _, _, em := newTaskService()
	ctx := context.Background()
	task := mustCreate(t, svc, "alice", "T1")

	updated, err := svc.Edit(ctx, "alice", task.ID, models.TaskPatch{
		Completed: ptr(true),
		Priority:  ptr(models.PriorityHigh),
	})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
	assert.Equal(t, "T1", updated.Name)
	assert.Equal(t, "alice", updated.UserID)

	events := em.all()
	last := events[len(events)-1]
	assert.Equal(t, models.EventTaskUpdated, last.Type)
	assert.Equal(t, updated, last.Payload)
}

func TestEditValidationAndRenameConflict(t *testing.T) {
	svc, _, _, _ := newTaskService()
	ctx := context.Background()
	t1 := mustCreate(t, svc, "alice", "T1")
	mustCreate(t, svc, "alice", "T2")

	_, err := svc.Edit(ctx, "alice", t1.ID, models.TaskPatch{Name: ptr("  ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Edit(ctx, "alice", t1.ID, models.TaskPatch{Priority: ptr(models.Priority("Soon"))})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Edit(ctx, "alice", t1.ID, models.TaskPatch{Name: ptr("T2")})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	same, err := svc.Edit(ctx, "alice", t1.ID, models.TaskPatch{Name: ptr("T1")})
	require.NoError(t, err)
	assert.Equal(t, "T1", same.Name)

	_, err = svc.Edit(ctx, "alice", t1.ID, models.TaskPatch{})
	assert.NoError(t, err)
}

func TestDeleteEmitsID(t *testing.T) {
	svc, _, _, em := newTaskService()
	task := mustCreate(t, svc, "alice", "T1")

	require.NoError(t, svc.Delete(context.Background(), "alice", task.ID))
	events := em.all()
	last := events[len(events)-1]
	assert.Equal(t, models.EventTaskDeleted, last.Type)
	assert.Equal(t, models.DeletedTask{ID: task.ID}, last.Payload)

	err := svc.Delete(context.Background(), "alice", task.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHookFailuresDoNotFailWrites(t *testing.T) {
	svc, _, cache, em := newTaskService()
	cache.failInvalid = true
	em.err = errors.New("broker down")

	task, err := svc.Create(context.Background(), "alice", models.NewTask{Name: "T1"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Len(t, cache.invalidated, 1)
	assert.Len(t, em.all(), 1)
}

func TestHookPanicIsContained(t *testing.T) {
	svc, _, cache, em := newTaskService()
	em.panic = true

	_, err := svc.Create(context.Background(), "alice", models.NewTask{Name: "T1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, cache.invalidated)
}

func TestHooksSurviveCanceledRequest(t *testing.T) {
	svc, _, cache, _ := newTaskService()
	ctx, cancel := context.WithCancel(context.Background())
	task := mustCreate(t, svc, "alice", "T1")
	_, err := svc.List(ctx, "alice")
	require.NoError(t, err)

	cancel()
	_, err = svc.Edit(ctx, "alice", task.ID, models.TaskPatch{Completed: ptr(true)})
	require.NoError(t, err)
	assert.False(t, cache.cached("alice"))
}

// T1 scenario: A creates T1, lists it, completes it, and the next list and
// A's room both observe the change.
func TestCompleteTaskScenario(t *testing.T) {
	svc, _, _, em := newTaskService()
	ctx := context.Background()

	task := mustCreate(t, svc, "A", "T1")
	list, err := svc.List(ctx, "A")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Completed)

	_, err = svc.Edit(ctx, "A", task.ID, models.TaskPatch{Completed: ptr(true)})
	require.NoError(t, err)

	list, err = svc.List(ctx, "A")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Completed)

	var sawUpdate bool
	for _, ev := range em.all() {
		if ev.Type == models.EventTaskUpdated && ev.UserID == "A" {
			sawUpdate = ev.Payload.(models.Task).Completed
		}
	}
	assert.True(t, sawUpdate)
}

// gatedTasks pauses the first ListByOwner after it has read the store.
type gatedTasks struct {
	*memTasks
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (g *gatedTasks) ListByOwner(ctx context.Context, owner string) ([]models.Task, error) {
	tasks, err := g.memTasks.ListByOwner(ctx, owner)
	g.once.Do(func() {
		close(g.read)
		<-g.release
	})
	return tasks, err
}

func TestListDoesNotCacheSnapshotOlderThanWrite(t *testing.T) {
	store := &gatedTasks{memTasks: newMemTasks(), read: make(chan struct{}), release: make(chan struct{})}
	cache := newMemCache()
	svc := NewTaskService(store, cache, &recEmitter{}, time.Second)
	ctx := context.Background()

	done := make(chan []models.Task)
	go func() {
		tasks, err := svc.List(ctx, "alice")
		assert.NoError(t, err)
		done <- tasks
	}()
	<-store.read

	mustCreate(t, svc, "alice", "T1")
	close(store.release)
	assert.Empty(t, <-done)
	assert.False(t, cache.cached("alice"))

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "T1", list[0].Name)
}
