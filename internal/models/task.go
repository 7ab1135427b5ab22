package models

import (
	"time"

	"github.com/google/uuid"
)

// Task represents a to-do item
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	Completed bool       `json:"completed"`
	Deleted   bool       `json:"deleted"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewTask creates a new Task with a generated ID
func NewTask(title string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns the sync projection of the task
func (t *Task) Snapshot() RecordSnapshot {
	return RecordSnapshot{
		Type:    RecordTypeTask,
		ID:      t.ID,
		Title:   t.Title,
		Content: t.Notes,
	}
}
