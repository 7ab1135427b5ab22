package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/observability"
	"github.com/notesync/engine/internal/repository"
)

// ErrVersionNotFound is returned when a version snapshot does not exist
var ErrVersionNotFound = errors.New("version not found")

// ErrRecordNotFound is returned when an operation targets a record that does
// not exist locally or has been deleted
var ErrRecordNotFound = errors.New("record not found")

// VersionService maintains the append-only history of record snapshots.
// A snapshot is captured immediately before any confirmed overwrite so the
// pre-overwrite content can always be recovered.
type VersionService struct {
	versions  repository.VersionRepo
	records   repository.RecordStore
	mutations *MutationService
}

// NewVersionService creates a new VersionService
func NewVersionService(versions repository.VersionRepo, records repository.RecordStore, mutations *MutationService) *VersionService {
	return &VersionService{
		versions:  versions,
		records:   records,
		mutations: mutations,
	}
}

// CaptureSnapshot appends a version holding the given record content
func (s *VersionService) CaptureSnapshot(ctx context.Context, snap models.RecordSnapshot) error {
	if err := s.versions.Add(ctx, models.NewItemVersion(snap)); err != nil {
		return fmt.Errorf("capture version for %s %s: %w", snap.Type, snap.ID, err)
	}
	return nil
}

// List returns the stored versions for an item, newest first
func (s *VersionService) List(ctx context.Context, itemType models.RecordType, itemID string, limit int) ([]*models.ItemVersion, error) {
	if !itemType.IsValid() {
		return nil, fmt.Errorf("unknown record type %q", itemType)
	}
	return s.versions.List(ctx, itemType, itemID, limit)
}

// Restore overwrites the item's current content with a stored version.
// The pre-restore content is snapshotted first, then the restored content is
// pushed to the server like any other edit.
func (s *VersionService) Restore(ctx context.Context, versionID string) (*models.RestoreResponse, error) {
	ctx, span := observability.StartServiceSpan(ctx, "version", "restore")
	defer span.End()

	v, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if v == nil {
		return nil, ErrVersionNotFound
	}

	current, deleted, err := s.records.GetSnapshot(ctx, v.ItemType, v.ItemID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if current == nil || deleted {
		return nil, ErrRecordNotFound
	}

	if err := s.CaptureSnapshot(ctx, *current); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if err := s.records.ApplySnapshot(ctx, v.Snapshot()); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("restore %s %s: %w", v.ItemType, v.ItemID, err)
	}

	payload, err := s.records.MarshalRecord(ctx, v.ItemType, v.ItemID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	outcome, err := s.mutations.RunOrQueue(ctx, models.UpdateOpFor(v.ItemType), v.ItemType, v.ItemID, payload)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"version_id": versionID,
		"item_id":    v.ItemID,
	}).Infof("restored %s %s from version", v.ItemType, v.ItemID)

	observability.SetSuccess(span)
	return &models.RestoreResponse{
		ItemID:  v.ItemID,
		Outcome: outcome,
	}, nil
}
