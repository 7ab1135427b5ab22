package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/notesync/engine/internal/models"
)

// JournalRepository handles journal entry persistence
type JournalRepository struct {
	db DB
}

// NewJournalRepository creates a new JournalRepository
func NewJournalRepository(db DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// GetByID retrieves a journal entry by its ID, including soft-deleted ones
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*models.JournalEntry, error) {
	query := `SELECT id, entry_date, content, mood, deleted, created_at, updated_at
		FROM journal_entries WHERE id = ?`

	entry, err := scanJournalRow(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// GetAll retrieves journal entries, newest date first
func (r *JournalRepository) GetAll(ctx context.Context, includeDeleted bool, skip, take int) ([]*models.JournalEntry, error) {
	query := `SELECT id, entry_date, content, mood, deleted, created_at, updated_at
		FROM journal_entries`
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY entry_date DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.JournalEntry
	for rows.Next() {
		entry, err := scanJournalRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Upsert inserts or fully replaces a journal entry
func (r *JournalRepository) Upsert(ctx context.Context, entry *models.JournalEntry) error {
	query := `INSERT INTO journal_entries (id, entry_date, content, mood, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			entry_date = excluded.entry_date,
			content = excluded.content,
			mood = excluded.mood,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.EntryDate,
		entry.Content,
		entry.Mood,
		entry.Deleted,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	return err
}

// SetEditable overwrites the entry's content only; the date heading stays
func (r *JournalRepository) SetEditable(ctx context.Context, id, content string) error {
	query := `UPDATE journal_entries SET content = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, content, time.Now().UTC(), id)
	return err
}

// SoftDelete marks an entry deleted without removing the row
func (r *JournalRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE journal_entries SET deleted = 1, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

func scanJournalRow(row rowScanner) (*models.JournalEntry, error) {
	entry := &models.JournalEntry{}
	err := row.Scan(
		&entry.ID,
		&entry.EntryDate,
		&entry.Content,
		&entry.Mood,
		&entry.Deleted,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}
