package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/notesync/engine/internal/models"
)

// Records gives the sync engine a uniform view over the three synced
// collections. Lookups and edits are routed to the typed repository for the
// record type in question.
type Records struct {
	notes   *NoteRepository
	tasks   *TaskRepository
	journal *JournalRepository
}

// NewRecords creates a Records facade over the typed repositories
func NewRecords(notes *NoteRepository, tasks *TaskRepository, journal *JournalRepository) *Records {
	return &Records{notes: notes, tasks: tasks, journal: journal}
}

// GetSnapshot returns the sync projection of a record, or nil if the record
// does not exist locally. Soft-deleted records report deleted=true.
func (r *Records) GetSnapshot(ctx context.Context, recordType models.RecordType, id string) (snap *models.RecordSnapshot, deleted bool, err error) {
	switch recordType {
	case models.RecordTypeNote:
		note, err := r.notes.GetByID(ctx, id)
		if err != nil || note == nil {
			return nil, false, err
		}
		s := note.Snapshot()
		return &s, note.Deleted, nil
	case models.RecordTypeTask:
		task, err := r.tasks.GetByID(ctx, id)
		if err != nil || task == nil {
			return nil, false, err
		}
		s := task.Snapshot()
		return &s, task.Deleted, nil
	case models.RecordTypeJournal:
		entry, err := r.journal.GetByID(ctx, id)
		if err != nil || entry == nil {
			return nil, false, err
		}
		s := entry.Snapshot()
		return &s, entry.Deleted, nil
	}
	return nil, false, fmt.Errorf("unknown record type %q", recordType)
}

// ApplyDelta upserts the full server-side record carried by a pull delta.
// When the delta has no data payload the projection fields are used instead.
func (r *Records) ApplyDelta(ctx context.Context, delta *models.RecordDelta) error {
	switch delta.Type {
	case models.RecordTypeNote:
		note := &models.Note{}
		if len(delta.Data) > 0 {
			if err := json.Unmarshal(delta.Data, note); err != nil {
				return fmt.Errorf("decode note delta %s: %w", delta.ID, err)
			}
		} else {
			note.Title = delta.Title
			note.Content = delta.Content
			note.CreatedAt = delta.UpdatedAt
		}
		note.ID = delta.ID
		note.Deleted = delta.Deleted
		note.UpdatedAt = delta.UpdatedAt
		if note.CreatedAt.IsZero() {
			note.CreatedAt = delta.UpdatedAt
		}
		return r.notes.Upsert(ctx, note)
	case models.RecordTypeTask:
		task := &models.Task{}
		if len(delta.Data) > 0 {
			if err := json.Unmarshal(delta.Data, task); err != nil {
				return fmt.Errorf("decode task delta %s: %w", delta.ID, err)
			}
		} else {
			task.Title = delta.Title
			task.Notes = delta.Content
			task.CreatedAt = delta.UpdatedAt
		}
		task.ID = delta.ID
		task.Deleted = delta.Deleted
		task.UpdatedAt = delta.UpdatedAt
		if task.CreatedAt.IsZero() {
			task.CreatedAt = delta.UpdatedAt
		}
		return r.tasks.Upsert(ctx, task)
	case models.RecordTypeJournal:
		entry := &models.JournalEntry{}
		if len(delta.Data) > 0 {
			if err := json.Unmarshal(delta.Data, entry); err != nil {
				return fmt.Errorf("decode journal delta %s: %w", delta.ID, err)
			}
		} else {
			entry.EntryDate = delta.Title
			entry.Content = delta.Content
			entry.CreatedAt = delta.UpdatedAt
		}
		entry.ID = delta.ID
		entry.Deleted = delta.Deleted
		entry.UpdatedAt = delta.UpdatedAt
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = delta.UpdatedAt
		}
		return r.journal.Upsert(ctx, entry)
	}
	return fmt.Errorf("unknown record type %q", delta.Type)
}

// ApplySnapshot overwrites a record's editable fields from a projection
func (r *Records) ApplySnapshot(ctx context.Context, snap models.RecordSnapshot) error {
	switch snap.Type {
	case models.RecordTypeNote:
		return r.notes.SetEditable(ctx, snap.ID, snap.Title, snap.Content)
	case models.RecordTypeTask:
		return r.tasks.SetEditable(ctx, snap.ID, snap.Title, snap.Content)
	case models.RecordTypeJournal:
		return r.journal.SetEditable(ctx, snap.ID, snap.Content)
	}
	return fmt.Errorf("unknown record type %q", snap.Type)
}

// MarshalRecord loads the full typed record and returns its JSON encoding,
// suitable for use as a remote mutation payload. Returns nil when the record
// does not exist locally.
func (r *Records) MarshalRecord(ctx context.Context, recordType models.RecordType, id string) (json.RawMessage, error) {
	var record interface{}
	switch recordType {
	case models.RecordTypeNote:
		note, err := r.notes.GetByID(ctx, id)
		if err != nil || note == nil {
			return nil, err
		}
		record = note
	case models.RecordTypeTask:
		task, err := r.tasks.GetByID(ctx, id)
		if err != nil || task == nil {
			return nil, err
		}
		record = task
	case models.RecordTypeJournal:
		entry, err := r.journal.GetByID(ctx, id)
		if err != nil || entry == nil {
			return nil, err
		}
		record = entry
	default:
		return nil, fmt.Errorf("unknown record type %q", recordType)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", recordType, id, err)
	}
	return data, nil
}

// SoftDelete marks a record deleted
func (r *Records) SoftDelete(ctx context.Context, recordType models.RecordType, id string) error {
	switch recordType {
	case models.RecordTypeNote:
		return r.notes.SoftDelete(ctx, id)
	case models.RecordTypeTask:
		return r.tasks.SoftDelete(ctx, id)
	case models.RecordTypeJournal:
		return r.journal.SoftDelete(ctx, id)
	}
	return fmt.Errorf("unknown record type %q", recordType)
}
