package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"taskhub/internal/models"
	"taskhub/internal/queue"
	"taskhub/pkg/logger"
)

const fetchRetryDelay = time.Second

// Options configures a KafkaBackend.
type Options struct {
	Brokers    []string
	Topic      string
	Partitions int
}

// KafkaBackend relays task events between instances through a Kafka topic.
// Every instance consumes with its own group so each sees every event, and
// starts at the log end so no history is replayed.
type KafkaBackend struct {
	opts       Options
	producer   *queue.Producer
	groupID    string
	retryDelay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	relayed atomic.Int64
}

func NewKafkaBackend(ctx context.Context, opts Options) (*KafkaBackend, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("kafka backend requires at least one broker")
	}
	queue.EnsureTopic(ctx, opts.Brokers, opts.Topic, opts.Partitions)
	return &KafkaBackend{
		opts:       opts,
		producer:   queue.NewProducer(ctx, opts.Brokers, opts.Topic),
		groupID:    "taskhub-relay-" + uuid.NewString(),
		retryDelay: fetchRetryDelay,
		done:       make(chan struct{}),
	}, nil
}

func (b *KafkaBackend) Publish(ctx context.Context, ev models.TaskEvent) error {
	return b.producer.Publish(ctx, ev)
}

// Start runs the relay consumer in the background.
func (b *KafkaBackend) Start(ctx context.Context, deliver func(models.TaskEvent)) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.opts.Brokers,
		Topic:       b.opts.Topic,
		GroupID:     b.groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	go func() {
		defer close(b.done)
		defer reader.Close()
		b.run(ctx, reader, deliver)
	}()
}

type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func (b *KafkaBackend) run(ctx context.Context, r fetcher, deliver func(models.TaskEvent)) {
	logger.Info(ctx, "Kafka relay consumer started", "topic", b.opts.Topic, "group", b.groupID)
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "Relay fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.retryDelay):
			}
			continue
		}
		if ev, err := queue.DecodeEvent(msg); err != nil {
			logger.Error(ctx, "Relay decode failed", "error", err, "payload", string(msg.Value))
		} else {
			deliver(ev)
			b.relayed.Add(1)
		}
		// Commit malformed messages too so a poison pill cannot block the partition.
		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "Relay commit failed", "error", err)
		}
	}
}

// Relayed returns how many events this instance has delivered.
func (b *KafkaBackend) Relayed() int64 {
	return b.relayed.Load()
}

func (b *KafkaBackend) Close() error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
		<-b.done
	}
	return b.producer.Close()
}
