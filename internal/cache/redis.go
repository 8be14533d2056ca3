package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"taskhub/pkg/logger"
)

const pingTimeout = 2 * time.Second

// SharedClient is implemented by components that own a Redis connection the
// cache may borrow when its own connection cannot be established.
type SharedClient interface {
	// SharedRedis returns the component's client and whether it is open.
	SharedRedis() (*redis.Client, bool)
}

// Options configures a Manager.
type Options struct {
	URL         string
	PoolSize    int
	Attempts    int
	Delay       time.Duration
	Fallback    SharedClient
	PingTimeout time.Duration
}

// Manager owns the process-wide cache connection. Until a connection is
// established every operation is a no-op that reports a miss.
type Manager struct {
	opts   Options
	client atomic.Pointer[redis.Client]
	owned  atomic.Bool
	stats  Stats

	startOnce sync.Once
	ready     chan struct{}
	cancel    context.CancelFunc
}

// Stats counts cache operations.
type Stats struct {
	Hits    atomic.Uint64
	Misses  atomic.Uint64
	Sets    atomic.Uint64
	Deletes atomic.Uint64
	Errors  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Connected bool   `json:"connected"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Sets      uint64 `json:"sets"`
	Deletes   uint64 `json:"deletes"`
	Errors    uint64 `json:"errors"`
}

func New(opts Options) *Manager {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = pingTimeout
	}
	return &Manager{opts: opts, ready: make(chan struct{})}
}

// Start begins connecting in the background and returns immediately. It is
// safe to call more than once.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		if m.opts.URL == "" {
			logger.Info(ctx, "Cache disabled (REDIS_URL not set)")
			close(m.ready)
			return
		}
		ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.cancel = cancel
		go func() {
			defer close(m.ready)
			m.connect(ctx)
		}()
	})
}

// Ready is closed once the connection loop has finished, successfully or not.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

func (m *Manager) connect(ctx context.Context) {
	opts, err := redis.ParseURL(m.opts.URL)
	if err != nil {
		logger.Error(ctx, "Invalid REDIS_URL", "error", err)
		m.useFallback(ctx)
		return
	}
	if m.opts.PoolSize > 0 {
		opts.PoolSize = m.opts.PoolSize
	}
	client := redis.NewClient(opts)

	for i := 1; i <= m.opts.Attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, m.opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			m.client.Store(client)
			m.owned.Store(true)
			logger.Info(ctx, "Connected to Redis", "attempt", i)
			return
		}
		logger.Warn(ctx, "Redis connect attempt failed", "attempt", i, "error", err)
		if i == m.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return
		case <-time.After(m.opts.Delay):
		}
	}

	logger.Error(ctx, "Could not connect to Redis after retries", "attempts", m.opts.Attempts)
	_ = client.Close()
	m.useFallback(ctx)
}

func (m *Manager) useFallback(ctx context.Context) {
	if m.opts.Fallback == nil {
		return
	}
	shared, open := m.opts.Fallback.SharedRedis()
	switch {
	case shared != nil && open:
		m.client.Store(shared)
		logger.Info(ctx, "Reusing broadcast Redis client for caching")
	case shared != nil:
		logger.Warn(ctx, "Broadcast Redis client exists but is not open")
	}
}

// Connected reports whether cache operations reach Redis.
func (m *Manager) Connected() bool {
	return m.client.Load() != nil
}

// Get returns the value at key. Misses, disconnection and errors all report
// ok=false.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	c := m.client.Load()
	if c == nil {
		return nil, false
	}
	b, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		m.stats.Misses.Add(1)
		return nil, false
	}
	if err != nil {
		m.stats.Errors.Add(1)
		logger.Warn(ctx, "Redis get failed", "key", key, "error", err)
		return nil, false
	}
	m.stats.Hits.Add(1)
	return b, true
}

// Set stores value at key for ttl. Failures are logged, never returned.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c := m.client.Load()
	if c == nil {
		return
	}
	if err := c.Set(ctx, key, value, ttl).Err(); err != nil {
		m.stats.Errors.Add(1)
		logger.Warn(ctx, "Redis set failed", "key", key, "error", err)
		return
	}
	m.stats.Sets.Add(1)
}

// Delete removes key. It is a no-op while disconnected.
func (m *Manager) Delete(ctx context.Context, key string) error {
	c := m.client.Load()
	if c == nil {
		return nil
	}
	if err := c.Del(ctx, key).Err(); err != nil {
		m.stats.Errors.Add(1)
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	m.stats.Deletes.Add(1)
	return nil
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() StatsSnapshot {
	return StatsSnapshot{
		Connected: m.Connected(),
		Hits:      m.stats.Hits.Load(),
		Misses:    m.stats.Misses.Load(),
		Sets:      m.stats.Sets.Load(),
		Deletes:   m.stats.Deletes.Load(),
		Errors:    m.stats.Errors.Load(),
	}
}

// Close stops a pending connection loop and closes the client if this
// Manager created it. A borrowed client is left to its owner.
func (m *Manager) Close() error {
	if m.cancel != nil {
		m.cancel()
		<-m.ready
	}
	c := m.client.Swap(nil)
	if c != nil && m.owned.Load() {
		return c.Close()
	}
	return nil
}
