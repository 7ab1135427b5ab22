package models

import (
	"time"

	"github.com/google/uuid"
)

// Note represents a knowledge-base note
type Note struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CategoryID *string   `json:"categoryId,omitempty"`
	TagIDs     []string  `json:"tagIds,omitempty"`
	Pinned     bool      `json:"pinned"`
	Deleted    bool      `json:"deleted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewNote creates a new Note with a generated ID
func NewNote(title, content string) *Note {
	now := time.Now().UTC()
	return &Note{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns the sync projection of the note
func (n *Note) Snapshot() RecordSnapshot {
	return RecordSnapshot{
		Type:    RecordTypeNote,
		ID:      n.ID,
		Title:   n.Title,
		Content: n.Content,
	}
}
