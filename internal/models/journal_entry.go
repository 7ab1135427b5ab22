package models

import (
	"time"

	"github.com/google/uuid"
)

// JournalEntry represents a dated journal entry
type JournalEntry struct {
	ID        string    `json:"id"`
	EntryDate string    `json:"entryDate"` // YYYY-MM-DD
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewJournalEntry creates a new JournalEntry for the given date
func NewJournalEntry(entryDate, content string) *JournalEntry {
	now := time.Now().UTC()
	return &JournalEntry{
		ID:        uuid.New().String(),
		EntryDate: entryDate,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns the sync projection of the entry. The date heading stands
// in for a title since entries have none of their own.
func (e *JournalEntry) Snapshot() RecordSnapshot {
	return RecordSnapshot{
		Type:    RecordTypeJournal,
		ID:      e.ID,
		Title:   e.EntryDate,
		Content: e.Content,
	}
}
