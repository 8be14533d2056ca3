package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/internal/models"
	"taskhub/internal/queue"
)

type scriptedReader struct {
	msgs      []kafka.Message
	failures  int
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.failures > 0 {
		r.failures--
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func TestRelayDeliversAndCommits(t *testing.T) {
	good, err := queue.EventMessage(models.TaskEvent{Room: "user:u1", Type: models.EventTaskUpdated, Payload: []byte(`{}`)})
	require.NoError(t, err)
	bad := kafka.Message{Value: []byte("garbage")}

	ctx, cancel := context.WithCancel(context.Background())
	r := &scriptedReader{msgs: []kafka.Message{bad, good}, failures: 1, cancel: cancel}
	b := &KafkaBackend{opts: Options{Topic: "task-events"}, groupID: "g"}

	var delivered []models.TaskEvent
	b.run(ctx, r, func(ev models.TaskEvent) { delivered = append(delivered, ev) })

	require.Len(t, delivered, 1)
	assert.Equal(t, "user:u1", delivered[0].Room)
	assert.Equal(t, models.EventTaskUpdated, delivered[0].Type)
	assert.Len(t, r.committed, 2)
	assert.EqualValues(t, 1, b.Relayed())
}

func TestNewKafkaBackendRequiresBrokers(t *testing.T) {
	_, err := NewKafkaBackend(context.Background(), Options{Topic: "task-events"})
	assert.Error(t, err)
}

func TestRelayPausesAfterFetchFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &scriptedReader{failures: 3, cancel: cancel}
	b := &KafkaBackend{opts: Options{Topic: "task-events"}, groupID: "g", retryDelay: 30 * time.Millisecond}

	start := time.Now()
	b.run(ctx, r, func(models.TaskEvent) {})
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Empty(t, r.committed)
}

func TestRelayStopsWhileWaitingToRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &scriptedReader{failures: 1, cancel: cancel}
	b := &KafkaBackend{opts: Options{Topic: "task-events"}, groupID: "g", retryDelay: time.Hour}

	time.AfterFunc(20*time.Millisecond, cancel)
	finished := make(chan struct{})
	go func() {
		b.run(ctx, r, func(models.TaskEvent) {})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop on cancel")
	}
}
