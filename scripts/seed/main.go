// Seed creates a demo user with a batch of tasks in the configured store.
// Run from project root: go run ./scripts/seed -tasks 1000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/identity"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/store"
)

var priorities = []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}

func main() {
	total := flag.Int("tasks", 1000, "number of tasks to create")
	email := flag.String("email", "seed@example.com", "seed user email")
	password := flag.String("password", "seed-password", "seed user password")
	flag.Parse()

	if err := run(context.Background(), *total, *email, *password); err != nil {
		fmt.Fprintln(os.Stderr, "\nSeed failed:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, total int, email, password string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("DATABASE_URL not set or DB connection failed: %w", err)
	}
	defer st.Close()

	user, err := seedUser(ctx, st, cfg, email, password)
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	start := time.Now()
	for i := 1; i <= total; i++ {
		task := models.NewTask{
			Name:        fmt.Sprintf("Task %d", i),
			Description: fmt.Sprintf("Description for task %d", i),
			Priority:    priorities[i%len(priorities)],
		}.Build(user.ID)
		err := st.Tasks.Insert(ctx, &task)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return fmt.Errorf("insert task %d: %w", i, err)
		}
		if i%100 == 0 {
			fmt.Printf("\rInserted %d / %d", i, total)
		}
	}
	fmt.Printf("\nDone: %d tasks for %s in %v\n", total, user.Email, time.Since(start))
	return nil
}

func seedUser(ctx context.Context, st *store.Stores, cfg *config.Config, email, password string) (models.User, error) {
	u, err := st.Users.FindByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.User{}, fmt.Errorf("find seed user: %w", err)
	}
	hash, err := identity.NewPasswords(cfg.BcryptCost).Hash(password)
	if err != nil {
		return models.User{}, err
	}
	u = models.User{Username: "seed-" + time.Now().Format("150405"), Email: email, PasswordHash: hash}
	if err := st.Users.Insert(ctx, &u); err != nil {
		return models.User{}, fmt.Errorf("insert seed user: %w", err)
	}
	return u, nil
}
