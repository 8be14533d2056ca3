package models

import "encoding/json"

// Event types pushed to a user's notification room.
const (
	EventTaskAdded   = "task:added"
	EventTaskUpdated = "task:updated"
	EventTaskDeleted = "task:deleted"
)

// TaskEvent is the envelope carried by the broadcast backends.
type TaskEvent struct {
	Room    string          `json:"room"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DeletedTask is the payload of a task:deleted event.
type DeletedTask struct {
	ID string `json:"id"`
}

// RoomFor names the notification room of a user.
func RoomFor(userID string) string {
	return "user:" + userID
}
