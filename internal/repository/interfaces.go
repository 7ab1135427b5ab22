package repository

import (
	"context"
	"encoding/json"

	"github.com/notesync/engine/internal/models"
)

// MutationQueueRepo defines the interface for the durable mutation queue
type MutationQueueRepo interface {
	Enqueue(ctx context.Context, m *models.QueuedMutation) error
	PeekBatch(ctx context.Context, max int) ([]*models.QueuedMutation, error)
	MarkSucceeded(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	Drop(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*models.QueuedMutation, error)
	Count(ctx context.Context) (int, error)
}

// ConflictRepo defines the interface for conflict persistence
type ConflictRepo interface {
	Upsert(ctx context.Context, conflict *models.Conflict) error
	GetByID(ctx context.Context, id string) (*models.Conflict, error)
	GetByItem(ctx context.Context, itemType models.RecordType, itemID string) (*models.Conflict, error)
	GetAll(ctx context.Context) ([]*models.Conflict, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// VersionRepo defines the interface for version history persistence
type VersionRepo interface {
	Add(ctx context.Context, version *models.ItemVersion) error
	GetByID(ctx context.Context, id string) (*models.ItemVersion, error)
	List(ctx context.Context, itemType models.RecordType, itemID string, limit int) ([]*models.ItemVersion, error)
	CountForItem(ctx context.Context, itemType models.RecordType, itemID string) (int, error)
}

// SyncStateRepo defines the interface for watermark and baseline persistence
type SyncStateRepo interface {
	GetWatermark(ctx context.Context) (int64, error)
	AdvanceWatermark(ctx context.Context, timestamp int64) error
	GetBaseHash(ctx context.Context, itemType models.RecordType, itemID string) (string, error)
	SetBaseHash(ctx context.Context, itemType models.RecordType, itemID, hash string) error
	DeleteBaseHash(ctx context.Context, itemType models.RecordType, itemID string) error
}

// RecordStore defines the uniform record access the sync engine needs
type RecordStore interface {
	GetSnapshot(ctx context.Context, recordType models.RecordType, id string) (snap *models.RecordSnapshot, deleted bool, err error)
	ApplyDelta(ctx context.Context, delta *models.RecordDelta) error
	ApplySnapshot(ctx context.Context, snap models.RecordSnapshot) error
	SoftDelete(ctx context.Context, recordType models.RecordType, id string) error
	MarshalRecord(ctx context.Context, recordType models.RecordType, id string) (json.RawMessage, error)
}

// BackupRepo defines the interface for import/export persistence
type BackupRepo interface {
	ExportData(ctx context.Context) (*models.BackupData, error)
	Import(ctx context.Context, strategy models.ImportStrategy, backup *models.Backup) (*models.ImportSummary, error)
}
