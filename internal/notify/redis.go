package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"taskhub/internal/models"
	"taskhub/pkg/logger"
)

// EventsChannel is the pub/sub channel every instance subscribes to.
const EventsChannel = "taskhub:events"

// ErrNotConnected is returned by Publish before the backend is connected.
var ErrNotConnected = errors.New("broadcast backend not connected")

// RedisBackend fans events out to all instances over Redis pub/sub.
type RedisBackend struct {
	client *redis.Client
	open   atomic.Bool

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisBackend(url string, poolSize int) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	return &RedisBackend{client: redis.NewClient(opts), done: make(chan struct{})}, nil
}

// Start connects and subscribes in the background.
func (b *RedisBackend) Start(ctx context.Context, deliver func(models.TaskEvent)) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	go func() {
		defer close(b.done)
		if err := b.client.Ping(ctx).Err(); err != nil {
			logger.Error(ctx, "Failed to connect Redis for broadcast", "error", err)
			return
		}

		ps := b.client.Subscribe(ctx, EventsChannel)
		if _, err := ps.Receive(ctx); err != nil {
			logger.Error(ctx, "Redis subscribe failed", "channel", EventsChannel, "error", err)
			_ = ps.Close()
			return
		}
		b.mu.Lock()
		b.pubsub = ps
		b.mu.Unlock()
		b.open.Store(true)
		logger.Info(ctx, "Redis broadcast backend connected", "channel", EventsChannel)

		for msg := range ps.Channel() {
			var ev models.TaskEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn(ctx, "Dropping malformed broadcast event", "error", err)
				continue
			}
			deliver(ev)
		}
		b.open.Store(false)
	}()
}

func (b *RedisBackend) Publish(ctx context.Context, ev models.TaskEvent) error {
	if !b.open.Load() {
		return ErrNotConnected
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Publish(ctx, EventsChannel, data).Err()
}

// SharedRedis exposes the publishing client so the cache can reuse it.
func (b *RedisBackend) SharedRedis() (*redis.Client, bool) {
	return b.client, b.open.Load()
}

func (b *RedisBackend) Close() error {
	b.mu.Lock()
	cancel, ps := b.cancel, b.pubsub
	b.mu.Unlock()

	b.open.Store(false)
	if ps != nil {
		_ = ps.Close()
	}
	if cancel != nil {
		cancel()
		<-b.done
	}
	return b.client.Close()
}
