package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"taskhub/internal/models"
	"taskhub/pkg/logger"
)

// EnsureTopic creates the task events topic with the given partitions (idempotent).
// Call at startup; if it fails (e.g. no broker or topic exists), app still runs.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int) {
	if len(brokers) == 0 {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", topic, "partitions", partitions)
}

// Producer writes task events to Kafka.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(ctx context.Context, brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 0,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Error(context.Background(), "Kafka event write failed", "error", err, "count", len(msgs))
			}
		},
	}
	logger.Info(ctx, "Kafka producer initialized", "topic", topic, "brokers", brokers)
	return &Producer{writer: w, topic: topic}
}

// Publish writes ev keyed by its room so one user's events stay ordered
// within a partition. Non-blocking since the writer is async.
func (p *Producer) Publish(ctx context.Context, ev models.TaskEvent) error {
	msg, err := EventMessage(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Topic returns the task events topic name.
func (p *Producer) Topic() string {
	return p.topic
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// EventMessage encodes ev as a Kafka message.
func EventMessage(ev models.TaskEvent) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{Key: []byte(ev.Room), Value: payload}, nil
}

// DecodeEvent parses a message written by EventMessage.
func DecodeEvent(msg kafka.Message) (models.TaskEvent, error) {
	var ev models.TaskEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return models.TaskEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Room == "" || ev.Type == "" {
		return models.TaskEvent{}, fmt.Errorf("decode event: missing room or type")
	}
	return ev, nil
}
