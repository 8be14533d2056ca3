// Package store opens the task and user stores for the configured driver.
package store

import (
	"context"
	"fmt"

	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/repository/gormrepo"
)

// Tasks is the owner-scoped task store.
type Tasks interface {
	ListByOwner(ctx context.Context, owner string) ([]models.Task, error)
	GetOwned(ctx context.Context, id, owner string) (models.Task, error)
	NameTaken(ctx context.Context, owner, name, excludeID string) (bool, error)
	Insert(ctx context.Context, t *models.Task) error
	UpdateOwned(ctx context.Context, t *models.Task) error
	DeleteOwned(ctx context.Context, id, owner string) error
	Ping(ctx context.Context) error
}

// Users is the account store.
type Users interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Exists(ctx context.Context, email, username string) (bool, error)
	Insert(ctx context.Context, u *models.User) error
}

// Stores bundles both stores over one connection pool.
type Stores struct {
	Tasks Tasks
	Users Users
	close func() error
}

func (s *Stores) Close() error {
	return s.close()
}

// Open connects with cfg.StoreDriver and ensures the schema exists.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.Open(ctx, cfg.DatabaseURL, cfg.DBPoolSize)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateOrCreateSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("schema migration: %w", err)
		}
		return &Stores{Tasks: repository.NewTasks(db), Users: repository.NewUsers(db), close: db.Close}, nil
	case config.DriverGormPostgres, config.DriverSQLite:
		db, err := gormrepo.Open(cfg.StoreDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("gorm pool: %w", err)
		}
		if cfg.DBPoolSize > 0 {
			sqlDB.SetMaxOpenConns(cfg.DBPoolSize)
		}
		return &Stores{Tasks: gormrepo.NewTasks(db), Users: gormrepo.NewUsers(db), close: sqlDB.Close}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
