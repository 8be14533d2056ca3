// Package gormrepo implements the task and user stores on GORM, for the
// sqlite (local development, tests) and postgres dialects.
package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/internal/repository"
)

// Open connects with the given driver and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		if dsn == "" {
			dsn = "file:taskhub.db?_foreign_keys=on"
		}
		dialector = sqlite.Open(dsn)
	case config.DriverGormPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("gormrepo: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Task{}); err != nil {
		return nil, fmt.Errorf("gorm migrate: %w", err)
	}
	return db, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repository.ErrDuplicate
	default:
		return err
	}
}

// Tasks is the GORM task store.
type Tasks struct {
	db *gorm.DB
}

func NewTasks(db *gorm.DB) *Tasks {
	return &Tasks{db: db}
}

func (r *Tasks) ListByOwner(ctx context.Context, owner string) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", owner).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *Tasks) GetOwned(ctx context.Context, id, owner string) (models.Task, error) {
	var t models.Task
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).First(&t).Error
	return t, translate(err)
}

func (r *Tasks) NameTaken(ctx context.Context, owner, name, excludeID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("user_id = ? AND name = ? AND id <> ?", owner, name, excludeID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check task name: %w", err)
	}
	return n > 0, nil
}

func (r *Tasks) Insert(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *Tasks) UpdateOwned(ctx context.Context, t *models.Task) error {
	t.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND user_id = ?", t.ID, t.UserID).
		Updates(map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"completed":   t.Completed,
			"priority":    t.Priority,
			"updated_at":  t.UpdatedAt,
		})
	if err := translate(res.Error); err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Tasks) DeleteOwned(ctx context.Context, id, owner string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).Delete(&models.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Tasks) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Users is the GORM user store.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (r *Users) FindByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	return u, translate(err)
}

func (r *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	return u, translate(err)
}

func (r *Users) Exists(ctx context.Context, email, username string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return n > 0, nil
}

func (r *Users) Insert(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return translate(r.db.WithContext(ctx).Create(u).Error)
}
