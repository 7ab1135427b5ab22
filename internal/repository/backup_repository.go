package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/notesync/engine/internal/models"
)

// BackupRepository assembles export payloads and applies imports. An import
// runs inside a single transaction so validation failures and write errors
// never leave the store partially mutated.
type BackupRepository struct {
	db DB
}

// NewBackupRepository creates a new BackupRepository
func NewBackupRepository(db DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// ExportData reads every collection for an export document
func (r *BackupRepository) ExportData(ctx context.Context) (*models.BackupData, error) {
	data := &models.BackupData{
		Items:           []*models.Note{},
		Tasks:           []*models.Task{},
		JournalEntries:  []*models.JournalEntry{},
		Tags:            []*models.Tag{},
		Categories:      []*models.Category{},
		Attachments:     []*models.Attachment{},
		ReviewSchedules: []*models.ReviewSchedule{},
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, content, category_id, tag_ids, pinned, deleted, created_at, updated_at FROM notes ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		note, err := scanNoteRow(rows)
		if err != nil {
			return nil, err
		}
		data.Items = append(data.Items, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	taskRows, err := r.db.QueryContext(ctx,
		`SELECT id, title, notes, due_date, completed, deleted, created_at, updated_at FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer taskRows.Close()
	for taskRows.Next() {
		task, err := scanTaskRow(taskRows)
		if err != nil {
			return nil, err
		}
		data.Tasks = append(data.Tasks, task)
	}
	if err := taskRows.Err(); err != nil {
		return nil, err
	}

	journalRows, err := r.db.QueryContext(ctx,
		`SELECT id, entry_date, content, mood, deleted, created_at, updated_at FROM journal_entries ORDER BY entry_date`)
	if err != nil {
		return nil, err
	}
	defer journalRows.Close()
	for journalRows.Next() {
		entry, err := scanJournalRow(journalRows)
		if err != nil {
			return nil, err
		}
		data.JournalEntries = append(data.JournalEntries, entry)
	}
	if err := journalRows.Err(); err != nil {
		return nil, err
	}

	tagRows, err := r.db.QueryContext(ctx, `SELECT id, name, color FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		tag := &models.Tag{}
		if err := tagRows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, err
		}
		data.Tags = append(data.Tags, tag)
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	catRows, err := r.db.QueryContext(ctx, `SELECT id, name, icon FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer catRows.Close()
	for catRows.Next() {
		cat := &models.Category{}
		if err := catRows.Scan(&cat.ID, &cat.Name, &cat.Icon); err != nil {
			return nil, err
		}
		data.Categories = append(data.Categories, cat)
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	attRows, err := r.db.QueryContext(ctx,
		`SELECT id, note_id, filename, mime_type, file_size, created_at FROM attachments ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer attRows.Close()
	for attRows.Next() {
		att := &models.Attachment{}
		if err := attRows.Scan(&att.ID, &att.NoteID, &att.Filename, &att.MimeType, &att.FileSize, &att.CreatedAt); err != nil {
			return nil, err
		}
		data.Attachments = append(data.Attachments, att)
	}
	if err := attRows.Err(); err != nil {
		return nil, err
	}

	revRows, err := r.db.QueryContext(ctx,
		`SELECT id, note_id, interval_days, next_review_at FROM review_schedules ORDER BY next_review_at`)
	if err != nil {
		return nil, err
	}
	defer revRows.Close()
	for revRows.Next() {
		rev := &models.ReviewSchedule{}
		if err := revRows.Scan(&rev.ID, &rev.NoteID, &rev.IntervalDays, &rev.NextReviewAt); err != nil {
			return nil, err
		}
		data.ReviewSchedules = append(data.ReviewSchedules, rev)
	}
	if err := revRows.Err(); err != nil {
		return nil, err
	}

	return data, nil
}

// Import applies a validated backup under the chosen strategy, atomically.
// Replace substitutes every collection wholesale; Merge upserts by id, so an
// incoming record wins over an existing one at whole-record granularity and
// records present on only one side are kept.
func (r *BackupRepository) Import(ctx context.Context, strategy models.ImportStrategy, backup *models.Backup) (*models.ImportSummary, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if strategy == models.ImportStrategyReplace {
		for _, table := range []string{
			"notes", "tasks", "journal_entries", "tags",
			"categories", "attachments", "review_schedules",
		} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return nil, fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	if err := importNotes(ctx, tx, backup.Data.Items); err != nil {
		return nil, err
	}
	if err := importTasks(ctx, tx, backup.Data.Tasks); err != nil {
		return nil, err
	}
	if err := importJournal(ctx, tx, backup.Data.JournalEntries); err != nil {
		return nil, err
	}
	if err := importTags(ctx, tx, backup.Data.Tags); err != nil {
		return nil, err
	}
	if err := importCategories(ctx, tx, backup.Data.Categories); err != nil {
		return nil, err
	}
	if err := importAttachments(ctx, tx, backup.Data.Attachments); err != nil {
		return nil, err
	}
	if err := importReviewSchedules(ctx, tx, backup.Data.ReviewSchedules); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.ImportSummary{
		Items:   len(backup.Data.Items),
		Tasks:   len(backup.Data.Tasks),
		Entries: len(backup.Data.JournalEntries),
	}, nil
}

func importNotes(ctx context.Context, tx *sql.Tx, notes []*models.Note) error {
	query := `INSERT INTO notes (id, title, content, category_id, tag_ids, pinned, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			category_id = excluded.category_id,
			tag_ids = excluded.tag_ids,
			pinned = excluded.pinned,
			deleted = excluded.deleted,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`
	for _, note := range notes {
		tagIDs, err := json.Marshal(note.TagIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query,
			note.ID, note.Title, note.Content, note.CategoryID, string(tagIDs),
			note.Pinned, note.Deleted, note.CreatedAt, note.UpdatedAt,
		); err != nil {
			return fmt.Errorf("import note %s: %w", note.ID, err)
		}
	}
	return nil
}

func importTasks(ctx context.Context, tx *sql.Tx, tasks []*models.Task) error {
	query := `INSERT INTO tasks (id, title, notes, due_date, completed, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			notes = excluded.notes,
			due_date = excluded.due_date,
			completed = excluded.completed,
			deleted = excluded.deleted,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`
	for _, task := range tasks {
		if _, err := tx.ExecContext(ctx, query,
			task.ID, task.Title, task.Notes, task.DueDate,
			task.Completed, task.Deleted, task.CreatedAt, task.UpdatedAt,
		); err != nil {
			return fmt.Errorf("import task %s: %w", task.ID, err)
		}
	}
	return nil
}

func importJournal(ctx context.Context, tx *sql.Tx, entries []*models.JournalEntry) error {
	query := `INSERT INTO journal_entries (id, entry_date, content, mood, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			entry_date = excluded.entry_date,
			content = excluded.content,
			mood = excluded.mood,
			deleted = excluded.deleted,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query,
			entry.ID, entry.EntryDate, entry.Content, entry.Mood,
			entry.Deleted, entry.CreatedAt, entry.UpdatedAt,
		); err != nil {
			return fmt.Errorf("import journal entry %s: %w", entry.ID, err)
		}
	}
	return nil
}

func importTags(ctx context.Context, tx *sql.Tx, tags []*models.Tag) error {
	query := `INSERT INTO tags (id, name, color) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, color = excluded.color`
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx, query, tag.ID, tag.Name, tag.Color); err != nil {
			return fmt.Errorf("import tag %s: %w", tag.ID, err)
		}
	}
	return nil
}

func importCategories(ctx context.Context, tx *sql.Tx, categories []*models.Category) error {
	query := `INSERT INTO categories (id, name, icon) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, icon = excluded.icon`
	for _, cat := range categories {
		if _, err := tx.ExecContext(ctx, query, cat.ID, cat.Name, cat.Icon); err != nil {
			return fmt.Errorf("import category %s: %w", cat.ID, err)
		}
	}
	return nil
}

func importAttachments(ctx context.Context, tx *sql.Tx, attachments []*models.Attachment) error {
	query := `INSERT INTO attachments (id, note_id, filename, mime_type, file_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			note_id = excluded.note_id,
			filename = excluded.filename,
			mime_type = excluded.mime_type,
			file_size = excluded.file_size,
			created_at = excluded.created_at`
	for _, att := range attachments {
		if _, err := tx.ExecContext(ctx, query,
			att.ID, att.NoteID, att.Filename, att.MimeType, att.FileSize, att.CreatedAt,
		); err != nil {
			return fmt.Errorf("import attachment %s: %w", att.ID, err)
		}
	}
	return nil
}

func importReviewSchedules(ctx context.Context, tx *sql.Tx, schedules []*models.ReviewSchedule) error {
	query := `INSERT INTO review_schedules (id, note_id, interval_days, next_review_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			note_id = excluded.note_id,
			interval_days = excluded.interval_days,
			next_review_at = excluded.next_review_at`
	for _, rev := range schedules {
		if _, err := tx.ExecContext(ctx, query,
			rev.ID, rev.NoteID, rev.IntervalDays, rev.NextReviewAt,
		); err != nil {
			return fmt.Errorf("import review schedule %s: %w", rev.ID, err)
		}
	}
	return nil
}
