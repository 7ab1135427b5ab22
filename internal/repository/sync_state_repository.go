package repository

import (
	"context"
	"database/sql"

	"github.com/notesync/engine/internal/models"
)

const watermarkKey = "last_sync_timestamp"

// SyncStateRepository persists the pull watermark and the per-record content
// hashes recorded at last successful sync.
type SyncStateRepository struct {
	db DB
}

// NewSyncStateRepository creates a new SyncStateRepository
func NewSyncStateRepository(db DB) *SyncStateRepository {
	return &SyncStateRepository{db: db}
}

// GetWatermark returns the last fully-applied server timestamp, zero if unset
func (r *SyncStateRepository) GetWatermark(ctx context.Context) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`, watermarkKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return value, err
}

// AdvanceWatermark moves the watermark forward. Monotonicity is enforced
// here: a timestamp at or below the stored value is a no-op.
func (r *SyncStateRepository) AdvanceWatermark(ctx context.Context, timestamp int64) error {
	query := `INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
		WHERE excluded.value > sync_state.value`
	_, err := r.db.ExecContext(ctx, query, watermarkKey, timestamp)
	return err
}

// GetBaseHash returns a record's content hash as of its last successful sync.
// An empty string means the record has never been synced.
func (r *SyncStateRepository) GetBaseHash(ctx context.Context, itemType models.RecordType, itemID string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT content_hash FROM base_hashes WHERE item_type = ? AND item_id = ?`,
		itemType, itemID,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetBaseHash records a record's content hash after a confirmed sync
func (r *SyncStateRepository) SetBaseHash(ctx context.Context, itemType models.RecordType, itemID, hash string) error {
	query := `INSERT INTO base_hashes (item_type, item_id, content_hash) VALUES (?, ?, ?)
		ON CONFLICT (item_type, item_id) DO UPDATE SET content_hash = excluded.content_hash`
	_, err := r.db.ExecContext(ctx, query, itemType, itemID, hash)
	return err
}

// DeleteBaseHash forgets a record's sync baseline, e.g. after a confirmed
// server-side deletion.
func (r *SyncStateRepository) DeleteBaseHash(ctx context.Context, itemType models.RecordType, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM base_hashes WHERE item_type = ? AND item_id = ?`,
		itemType, itemID,
	)
	return err
}
