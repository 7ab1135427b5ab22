package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/notesync/engine/internal/models"
)

// NoteRepository handles note persistence
type NoteRepository struct {
	db DB
}

// NewNoteRepository creates a new NoteRepository
func NewNoteRepository(db DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// GetByID retrieves a note by its ID, including soft-deleted ones
func (r *NoteRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	query := `SELECT id, title, content, category_id, tag_ids, pinned, deleted, created_at, updated_at
		FROM notes WHERE id = ?`
	return scanNote(r.db.QueryRowContext(ctx, query, id))
}

// GetAll retrieves notes, newest-updated first
func (r *NoteRepository) GetAll(ctx context.Context, includeDeleted bool, skip, take int) ([]*models.Note, error) {
	query := `SELECT id, title, content, category_id, tag_ids, pinned, deleted, created_at, updated_at
		FROM notes`
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note, err := scanNoteRow(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// Upsert inserts or fully replaces a note
func (r *NoteRepository) Upsert(ctx context.Context, note *models.Note) error {
	tagIDs, err := json.Marshal(note.TagIDs)
	if err != nil {
		return err
	}

	query := `INSERT INTO notes (id, title, content, category_id, tag_ids, pinned, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			category_id = excluded.category_id,
			tag_ids = excluded.tag_ids,
			pinned = excluded.pinned,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		note.ID,
		note.Title,
		note.Content,
		note.CategoryID,
		string(tagIDs),
		note.Pinned,
		note.Deleted,
		note.CreatedAt,
		note.UpdatedAt,
	)
	return err
}

// SetEditable overwrites the note's editable fields only
func (r *NoteRepository) SetEditable(ctx context.Context, id, title, content string) error {
	query := `UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, title, content, time.Now().UTC(), id)
	return err
}

// SoftDelete marks a note deleted without removing the row
func (r *NoteRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE notes SET deleted = 1, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

// Count returns the number of non-deleted notes
func (r *NoteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE deleted = 0`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row *sql.Row) (*models.Note, error) {
	note, err := scanNoteRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return note, err
}

func scanNoteRow(row rowScanner) (*models.Note, error) {
	note := &models.Note{}
	var categoryID sql.NullString
	var tagIDs string

	err := row.Scan(
		&note.ID,
		&note.Title,
		&note.Content,
		&categoryID,
		&tagIDs,
		&note.Pinned,
		&note.Deleted,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		note.CategoryID = &categoryID.String
	}
	if err := json.Unmarshal([]byte(tagIDs), &note.TagIDs); err != nil {
		return nil, err
	}
	return note, nil
}
