package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres     = "postgres"
	DriverGormPostgres = "gorm-postgres"
	DriverSQLite       = "sqlite"
)

// Broadcast backends.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
	BackendKafka = "kafka"
)

// Config holds application configuration from environment.
type Config struct {
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	HTTPPort  string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBPoolSize  int    `env:"DB_POOL_SIZE" envDefault:"20"`

	RedisURL             string        `env:"REDIS_URL"`
	RedisPoolSize        int           `env:"REDIS_POOL_SIZE" envDefault:"50"`
	CacheTTL             time.Duration `env:"CACHE_TTL" envDefault:"60s"`
	CacheConnectAttempts int           `env:"CACHE_CONNECT_ATTEMPTS" envDefault:"8"`
	CacheConnectDelay    time.Duration `env:"CACHE_CONNECT_DELAY" envDefault:"2s"`

	BroadcastBackend string   `env:"BROADCAST_BACKEND"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic       string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"task-events"`
	KafkaPartitions  int      `env:"KAFKA_PARTITIONS" envDefault:"4"`

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"168h"`
	BcryptCost   int           `env:"BCRYPT_COST" envDefault:"10"`

	HookTimeout     time.Duration `env:"HOOK_TIMEOUT" envDefault:"2s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Load reads .env (if present, without overriding real env vars) and parses
// the environment into a Config.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.BroadcastBackend == "" {
		cfg.BroadcastBackend = BackendLocal
		if cfg.RedisURL != "" {
			cfg.BroadcastBackend = BackendRedis
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the process cannot run with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverGormPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.BroadcastBackend {
	case BackendLocal, BackendKafka:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("BROADCAST_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown BROADCAST_BACKEND %q", c.BroadcastBackend)
	}
	if c.BroadcastBackend == BackendKafka && len(c.KafkaBrokers) == 0 {
		return errors.New("BROADCAST_BACKEND=kafka requires KAFKA_BROKERS")
	}
	if c.CacheConnectAttempts < 1 {
		return errors.New("CACHE_CONNECT_ATTEMPTS must be at least 1")
	}
	return nil
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
