package models

import "time"

// CreateNoteRequest is the request to create a note
type CreateNoteRequest struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	CategoryID *string  `json:"categoryId,omitempty"`
	TagIDs     []string `json:"tagIds,omitempty"`
	Pinned     bool     `json:"pinned"`
}

// UpdateNoteRequest is the request to update a note. Nil fields are unchanged.
type UpdateNoteRequest struct {
	Title      *string  `json:"title,omitempty"`
	Content    *string  `json:"content,omitempty"`
	CategoryID *string  `json:"categoryId,omitempty"`
	TagIDs     []string `json:"tagIds,omitempty"`
	Pinned     *bool    `json:"pinned,omitempty"`
}

// CreateTaskRequest is the request to create a task
type CreateTaskRequest struct {
	Title   string     `json:"title"`
	Notes   string     `json:"notes"`
	DueDate *time.Time `json:"dueDate,omitempty"`
}

// UpdateTaskRequest is the request to update a task. Nil fields are unchanged.
type UpdateTaskRequest struct {
	Title     *string    `json:"title,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
}

// CreateJournalEntryRequest is the request to create a journal entry
type CreateJournalEntryRequest struct {
	EntryDate string `json:"entryDate"` // YYYY-MM-DD
	Content   string `json:"content"`
	Mood      string `json:"mood,omitempty"`
}

// UpdateJournalEntryRequest is the request to update a journal entry.
// Nil fields are unchanged.
type UpdateJournalEntryRequest struct {
	Content *string `json:"content,omitempty"`
	Mood    *string `json:"mood,omitempty"`
}
