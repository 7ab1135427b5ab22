package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/observability"
	"github.com/notesync/engine/internal/repository"
)

// BackupService handles whole-dataset export and import
type BackupService struct {
	backups repository.BackupRepo
}

// NewBackupService creates a new BackupService
func NewBackupService(backups repository.BackupRepo) *BackupService {
	return &BackupService{backups: backups}
}

// Export builds a complete backup of the local dataset
func (s *BackupService) Export(ctx context.Context) (*models.Backup, error) {
	ctx, span := observability.StartServiceSpan(ctx, "backup", "export")
	defer span.End()

	data, err := s.backups.ExportData(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.SetSuccess(span)
	return &models.Backup{
		Metadata: models.BackupMetadata{
			Version:    models.BackupFormatVersion,
			ExportDate: time.Now().UTC(),
		},
		Data: *data,
	}, nil
}

// Import validates the raw backup document in full, then applies it in a
// single transaction. A malformed document leaves the dataset untouched.
func (s *BackupService) Import(ctx context.Context, strategy models.ImportStrategy, raw json.RawMessage) (*models.ImportSummary, error) {
	ctx, span := observability.StartServiceSpan(ctx, "backup", "import")
	defer span.End()

	if !strategy.IsValid() {
		err := fmt.Errorf("%w: unknown import strategy %q", ErrInvalidInput, strategy)
		observability.RecordError(span, err)
		return nil, err
	}

	backup, err := models.ParseBackup(raw)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	summary, err := s.backups.Import(ctx, strategy, backup)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.WithContext(ctx).Infof("import (%s) applied: %d items, %d tasks, %d entries",
		strategy, summary.Items, summary.Tasks, summary.Entries)

	observability.SetSuccess(span)
	return summary, nil
}
