package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskhub/internal/models"
	"taskhub/internal/repository"
)

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]models.Task
	calls int
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: make(map[string]models.Task)}
}

func (m *memTasks) touch() {
	m.calls++
}

func (m *memTasks) ListByOwner(_ context.Context, owner string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()
	out := []models.Task{}
	for _, t := range m.tasks {
		if t.UserID == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) GetOwned(_ context.Context, id, owner string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()
	t, ok := m.tasks[id]
	if !ok || t.UserID != owner {
		return models.Task{}, repository.ErrNotFound
	}
	return t, nil
}

func (m *memTasks) NameTaken(_ context.Context, owner, name, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()
	for _, t := range m.tasks {
		if t.UserID == owner && t.Name == name && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTasks) Insert(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = *t
	return nil
}

func (m *memTasks) UpdateOwned(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()
	cur, ok := m.tasks[t.ID]
	if !ok || cur.UserID != t.UserID {
		return repository.ErrNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	m.tasks[t.ID] = *t
	return nil
}

func (m *memTasks) DeleteOwned(_ context.Context, id, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()
	cur, ok := m.tasks[id]
	if !ok || cur.UserID != owner {
		return repository.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type memCache struct {
	mu          sync.Mutex
	lists       map[string][]models.Task
	invalidated []string
	failInvalid bool
	disabled    bool
}

func newMemCache() *memCache {
	return &memCache{lists: make(map[string][]models.Task)}
}

func (c *memCache) Get(_ context.Context, userID string) ([]models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return nil, false
	}
	tasks, ok := c.lists[userID]
	return tasks, ok
}

func (c *memCache) Set(_ context.Context, userID string, tasks []models.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	c.lists[userID] = tasks
}

func (c *memCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, userID)
	if c.failInvalid {
		return errors.New("cache unavailable")
	}
	delete(c.lists, userID)
	return nil
}

func (c *memCache) cached(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lists[userID]
	return ok
}

type emitted struct {
	UserID  string
	Type    string
	Payload any
}

type recEmitter struct {
	mu     sync.Mutex
	events []emitted
	err    error
	panic  bool
}

func (e *recEmitter) Emit(_ context.Context, userID, eventType string, payload any) error {
	if e.panic {
		panic("emitter exploded")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{UserID: userID, Type: eventType, Payload: payload})
	return e.err
}

func (e *recEmitter) all() []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]emitted(nil), e.events...)
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
	// raceDuplicate makes Insert report a unique violation after Exists passed.
	raceDuplicate bool
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]models.User)}
}

func (m *memUsers) FindByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (m *memUsers) Exists(_ context.Context, email, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) Insert(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceDuplicate {
		return repository.ErrDuplicate
	}
	u.ID = uuid.NewString()
	m.users[u.ID] = *u
	return nil
}
