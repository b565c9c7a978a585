package models

import "time"

// Task is a single to-do item. Owner is set at creation and never changes.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskEvent is pushed to the owner's live feed after a task changes.
type TaskEvent struct {
	Action string `json:"action"` // e.g., "task.created", "task.updated", "task.deleted"
	Task   Task   `json:"payload"`
}

const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskDeleted = "task.deleted"
)
