package repository

import (
	"context"
	"database/sql"

	"github.com/notesync/engine/internal/models"
)

// DefaultMaxVersionsPerItem bounds version history per item; the oldest
// snapshots are pruned beyond the cap.
const DefaultMaxVersionsPerItem = 50

// VersionRepository persists append-only record snapshots
type VersionRepository struct {
	db         DB
	capPerItem int
}

// NewVersionRepository creates a new VersionRepository. A maxPerItem of zero
// or less falls back to DefaultMaxVersionsPerItem.
func NewVersionRepository(db DB, maxPerItem int) *VersionRepository {
	if maxPerItem <= 0 {
		maxPerItem = DefaultMaxVersionsPerItem
	}
	return &VersionRepository{db: db, capPerItem: maxPerItem}
}

// Add appends a version snapshot and prunes the item's history to the cap
func (r *VersionRepository) Add(ctx context.Context, version *models.ItemVersion) error {
	query := `INSERT INTO item_versions (id, item_type, item_id, title, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		version.ID,
		version.ItemType,
		version.ItemID,
		version.Title,
		version.Content,
		version.CreatedAt,
	)
	if err != nil {
		return err
	}

	prune := `DELETE FROM item_versions WHERE item_type = ? AND item_id = ? AND id NOT IN (
		SELECT id FROM item_versions WHERE item_type = ? AND item_id = ?
		ORDER BY created_at DESC, id LIMIT ?)`
	_, err = r.db.ExecContext(ctx, prune,
		version.ItemType, version.ItemID,
		version.ItemType, version.ItemID,
		r.capPerItem,
	)
	return err
}

// GetByID retrieves a version by its ID
func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.ItemVersion, error) {
	query := `SELECT id, item_type, item_id, title, content, created_at
		FROM item_versions WHERE id = ?`

	version, err := scanVersionRow(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return version, err
}

// List returns an item's versions, newest first. A limit of zero or less
// returns up to the per-item cap.
func (r *VersionRepository) List(ctx context.Context, itemType models.RecordType, itemID string, limit int) ([]*models.ItemVersion, error) {
	if limit <= 0 || limit > r.capPerItem {
		limit = r.capPerItem
	}
	query := `SELECT id, item_type, item_id, title, content, created_at
		FROM item_versions WHERE item_type = ? AND item_id = ?
		ORDER BY created_at DESC, id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, itemType, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*models.ItemVersion
	for rows.Next() {
		version, err := scanVersionRow(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// CountForItem returns the number of stored versions for an item
func (r *VersionRepository) CountForItem(ctx context.Context, itemType models.RecordType, itemID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_versions WHERE item_type = ? AND item_id = ?`,
		itemType, itemID,
	).Scan(&count)
	return count, err
}

func scanVersionRow(row rowScanner) (*models.ItemVersion, error) {
	version := &models.ItemVersion{}
	err := row.Scan(
		&version.ID,
		&version.ItemType,
		&version.ItemID,
		&version.Title,
		&version.Content,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return version, nil
}
