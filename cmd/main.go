package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"taskhub/internal/cache"
	"taskhub/internal/config"
	"taskhub/internal/identity"
	"taskhub/internal/notify"
	"taskhub/internal/routes"
	"taskhub/internal/service"
	"taskhub/internal/store"
	"taskhub/internal/worker"
	"taskhub/pkg/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))
	if cfg.JWTSecret == "" {
		logger.Warn(ctx, "JWT_SECRET is not set; registration and authenticated routes will fail")
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "Database not available; exiting", "error", err)
		os.Exit(1)
	}

	// Notification layer; its Redis connection doubles as the cache fallback
	hub := notify.NewHub()
	backend, fallback, err := newBackend(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "Broadcast backend setup failed", "error", err)
		os.Exit(1)
	}
	notifier := notify.NewNotifier(hub, backend)
	notifier.Start(ctx)

	// Cache connects in the background; requests never wait for it
	cacheManager := cache.New(cache.Options{
		URL:      cfg.RedisURL,
		PoolSize: cfg.RedisPoolSize,
		Attempts: cfg.CacheConnectAttempts,
		Delay:    cfg.CacheConnectDelay,
		Fallback: fallback,
	})
	cacheManager.Start(ctx)

	tokens := identity.NewTokens(cfg.JWTSecret, cfg.JWTExpiresIn)
	authSvc := service.NewAuthService(st.Users, tokens, identity.NewPasswords(cfg.BcryptCost))
	taskSvc := service.NewTaskService(st.Tasks, cache.NewTaskLists(cacheManager, cfg.CacheTTL), notifier, cfg.HookTimeout)

	server := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: routes.Router(routes.Deps{
			Auth:          authSvc,
			Authenticator: authSvc,
			Tasks:         taskSvc,
			Hub:           hub,
			Tokens:        tokens,
			Store:         st.Tasks,
			Cache:         cacheManager,
			Production:    cfg.IsProduction(),
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort, "store", cfg.StoreDriver, "broadcast", cfg.BroadcastBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"taskhub": func(ctx context.Context) error {
			logger.Info(ctx, "Shutting down server")
			return errors.Join(
				server.Shutdown(ctx),
				notifier.Close(),
				cacheManager.Close(),
				st.Close(),
			)
		},
	})
	code := <-wait
	logger.Info(ctx, "Server stopped", "exit_code", code)
	os.Exit(code)
}

// newBackend builds the configured broadcast backend. The Redis backend is
// also returned as the cache's connection fallback.
func newBackend(ctx context.Context, cfg *config.Config) (notify.Backend, cache.SharedClient, error) {
	switch cfg.BroadcastBackend {
	case config.BackendRedis:
		b, err := notify.NewRedisBackend(cfg.RedisURL, cfg.RedisPoolSize)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case config.BackendKafka:
		b, err := worker.NewKafkaBackend(ctx, worker.Options{
			Brokers:    cfg.KafkaBrokers,
			Topic:      cfg.KafkaTopic,
			Partitions: cfg.KafkaPartitions,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	default:
		return notify.NewLocalBackend(), nil, nil
	}
}
