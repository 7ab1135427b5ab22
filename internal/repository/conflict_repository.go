package repository

import (
	"context"
	"database/sql"

	"github.com/notesync/engine/internal/models"
)

// DefaultMaxConflicts bounds the stored conflict list; oldest entries are
// evicted beyond the cap.
const DefaultMaxConflicts = 100

// ConflictRepository persists unresolved conflicts for user review
type ConflictRepository struct {
	db  DB
	cap int
}

// NewConflictRepository creates a new ConflictRepository. A maxConflicts of
// zero or less falls back to DefaultMaxConflicts.
func NewConflictRepository(db DB, maxConflicts int) *ConflictRepository {
	if maxConflicts <= 0 {
		maxConflicts = DefaultMaxConflicts
	}
	return &ConflictRepository{db: db, cap: maxConflicts}
}

// Upsert stores a conflict. An existing unresolved conflict for the same item
// is superseded, never stacked. Oldest conflicts are evicted beyond the cap.
func (r *ConflictRepository) Upsert(ctx context.Context, conflict *models.Conflict) error {
	query := `INSERT INTO conflicts (id, item_type, item_id, item_title, local_title, local_content, server_title, server_content, server_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_type, item_id) DO UPDATE SET
			id = excluded.id,
			item_title = excluded.item_title,
			local_title = excluded.local_title,
			local_content = excluded.local_content,
			server_title = excluded.server_title,
			server_content = excluded.server_content,
			server_deleted = excluded.server_deleted,
			created_at = excluded.created_at`

	_, err := r.db.ExecContext(ctx, query,
		conflict.ID,
		conflict.ItemType,
		conflict.ItemID,
		conflict.ItemTitle,
		conflict.LocalTitle,
		conflict.LocalContent,
		conflict.ServerTitle,
		conflict.ServerContent,
		conflict.ServerDeleted,
		conflict.CreatedAt,
	)
	if err != nil {
		return err
	}

	evict := `DELETE FROM conflicts WHERE id NOT IN (
		SELECT id FROM conflicts ORDER BY created_at DESC, id LIMIT ?)`
	_, err = r.db.ExecContext(ctx, evict, r.cap)
	return err
}

// GetByID retrieves a conflict by its ID
func (r *ConflictRepository) GetByID(ctx context.Context, id string) (*models.Conflict, error) {
	query := `SELECT id, item_type, item_id, item_title, local_title, local_content, server_title, server_content, server_deleted, created_at
		FROM conflicts WHERE id = ?`

	conflict, err := scanConflictRow(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return conflict, err
}

// GetByItem retrieves the unresolved conflict for an item, if any
func (r *ConflictRepository) GetByItem(ctx context.Context, itemType models.RecordType, itemID string) (*models.Conflict, error) {
	query := `SELECT id, item_type, item_id, item_title, local_title, local_content, server_title, server_content, server_deleted, created_at
		FROM conflicts WHERE item_type = ? AND item_id = ?`

	conflict, err := scanConflictRow(r.db.QueryRowContext(ctx, query, itemType, itemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return conflict, err
}

// GetAll returns unresolved conflicts, newest first
func (r *ConflictRepository) GetAll(ctx context.Context) ([]*models.Conflict, error) {
	query := `SELECT id, item_type, item_id, item_title, local_title, local_content, server_title, server_content, server_deleted, created_at
		FROM conflicts ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []*models.Conflict
	for rows.Next() {
		conflict, err := scanConflictRow(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts, rows.Err()
}

// Delete removes a conflict once resolved or superseded
func (r *ConflictRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conflicts WHERE id = ?`, id)
	return err
}

// Count returns the number of unresolved conflicts
func (r *ConflictRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conflicts`).Scan(&count)
	return count, err
}

func scanConflictRow(row rowScanner) (*models.Conflict, error) {
	conflict := &models.Conflict{}
	err := row.Scan(
		&conflict.ID,
		&conflict.ItemType,
		&conflict.ItemID,
		&conflict.ItemTitle,
		&conflict.LocalTitle,
		&conflict.LocalContent,
		&conflict.ServerTitle,
		&conflict.ServerContent,
		&conflict.ServerDeleted,
		&conflict.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return conflict, nil
}
