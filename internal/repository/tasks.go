package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskhub/internal/models"
	"taskhub/pkg/logger"
)

const taskColumns = `id, name, description, completed, priority, user_id, created_at, updated_at`

// Tasks is the Postgres task store. Every query is scoped by owner.
type Tasks struct {
	db  *sql.DB
	now func() time.Time
}

func NewTasks(db *sql.DB) *Tasks {
	return &Tasks{db: db, now: time.Now}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (models.Task, error) {
	var t models.Task
	err := s.Scan(&t.ID, &t.Name, &t.Description, &t.Completed, &t.Priority, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// ListByOwner returns all tasks of owner, oldest first.
func (r *Tasks) ListByOwner(ctx context.Context, owner string) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, owner)
	if err != nil {
		logger.Error(ctx, "Repository ListByOwner failed", "error", err)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Error(ctx, "Repository scan task failed", "error", err)
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetOwned returns the task with id if owner owns it.
func (r *Tasks) GetOwned(ctx context.Context, id, owner string) (models.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, owner)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// NameTaken reports whether owner has a task called name other than excludeID.
func (r *Tasks) NameTaken(ctx context.Context, owner, name, excludeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE user_id = $1 AND name = $2 AND id <> $3)`,
		owner, name, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check task name: %w", err)
	}
	return exists, nil
}

// Insert assigns id and timestamps and stores the task.
func (r *Tasks) Insert(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := r.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.Description, t.Completed, t.Priority, t.UserID, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		logger.Error(ctx, "Repository Insert failed", "error", err)
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateOwned writes the mutable fields of t, scoped by id and owner.
func (r *Tasks) UpdateOwned(ctx context.Context, t *models.Task) error {
	t.UpdatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET name = $1, description = $2, completed = $3, priority = $4, updated_at = $5
		 WHERE id = $6 AND user_id = $7`,
		t.Name, t.Description, t.Completed, t.Priority, t.UpdatedAt, t.ID, t.UserID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		logger.Error(ctx, "Repository Update failed", "error", err, "id", t.ID)
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res)
}

// DeleteOwned removes the task with id if owner owns it.
func (r *Tasks) DeleteOwned(ctx context.Context, id, owner string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		logger.Error(ctx, "Repository Delete failed", "error", err, "id", id)
		return fmt.Errorf("delete task: %w", err)
	}
	return requireRow(res)
}

// Ping checks the database is reachable.
func (r *Tasks) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
