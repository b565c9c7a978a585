package websocket

import "github.com/isdelr/task-manager-be/internal/models"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewTaskMessage wraps a task change for the wire.
func NewTaskMessage(event models.TaskEvent) Message {
	return Message{Action: event.Action, Payload: event.Task}
}
