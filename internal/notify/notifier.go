package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"taskhub/internal/models"
)

// Backend carries task events between instances. Publish sends one event to
// every instance; Start begins delivering received events to deliver.
type Backend interface {
	Publish(ctx context.Context, ev models.TaskEvent) error
	Start(ctx context.Context, deliver func(models.TaskEvent))
	Close() error
}

// Notifier emits task events to a user's room through a Backend.
type Notifier struct {
	hub     *Hub
	backend Backend
}

func NewNotifier(hub *Hub, backend Backend) *Notifier {
	return &Notifier{hub: hub, backend: backend}
}

// Start wires the backend's incoming events to the local hub.
func (n *Notifier) Start(ctx context.Context) {
	n.backend.Start(ctx, n.hub.Deliver)
}

// Emit sends eventType with payload to userID's room.
func (n *Notifier) Emit(ctx context.Context, userID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	ev := models.TaskEvent{Room: models.RoomFor(userID), Type: eventType, Payload: data}
	if err := n.backend.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// Close stops the backend and disconnects local clients.
func (n *Notifier) Close() error {
	err := n.backend.Close()
	n.hub.CloseAll()
	return err
}

// LocalBackend delivers straight to the in-process hub. It suits a single
// instance deployment.
type LocalBackend struct {
	deliver func(models.TaskEvent)
}

func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

func (b *LocalBackend) Start(_ context.Context, deliver func(models.TaskEvent)) {
	b.deliver = deliver
}

func (b *LocalBackend) Publish(_ context.Context, ev models.TaskEvent) error {
	if b.deliver == nil {
		return fmt.Errorf("local backend not started")
	}
	b.deliver(ev)
	return nil
}

func (b *LocalBackend) Close() error { return nil }
