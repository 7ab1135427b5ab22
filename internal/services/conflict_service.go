package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/observability"
	"github.com/notesync/engine/internal/repository"
)

// ErrConflictNotFound is returned when a conflict does not exist
var ErrConflictNotFound = errors.New("conflict not found")

// ErrUnknownResolution is returned for an unrecognized resolution choice
var ErrUnknownResolution = errors.New("unknown resolution choice")

// Decision is the outcome of comparing local, server and baseline content
// for one record during pull.
type Decision int

const (
	// DecisionApplyServer means the server copy wins without a conflict
	DecisionApplyServer Decision = iota
	// DecisionKeepLocal means the local copy is newer and the server delta
	// is ignored until the pending local edit is pushed
	DecisionKeepLocal
	// DecisionConflict means both sides changed since the last sync
	DecisionConflict
)

// ConflictService detects divergence between local and server copies and
// manages the resolution of recorded conflicts.
type ConflictService struct {
	conflicts repository.ConflictRepo
	records   repository.RecordStore
	state     repository.SyncStateRepo
	versions  *VersionService
	mutations *MutationService
	hash      *HashService
	hub       *WebSocketHub
	metrics   *observability.SyncMetrics
}

// NewConflictService creates a new ConflictService. hub and metrics may be nil.
func NewConflictService(conflicts repository.ConflictRepo, records repository.RecordStore, state repository.SyncStateRepo, versions *VersionService, mutations *MutationService, hash *HashService, hub *WebSocketHub, metrics *observability.SyncMetrics) *ConflictService {
	return &ConflictService{
		conflicts: conflicts,
		records:   records,
		state:     state,
		versions:  versions,
		mutations: mutations,
		hash:      hash,
		hub:       hub,
		metrics:   metrics,
	}
}

// Decide compares the content hashes of the local copy, the incoming server
// copy and the baseline recorded at the last sync. An unchanged local copy
// accepts the server's version; an unchanged server copy defers to the
// pending local edit; anything else is a conflict.
func (s *ConflictService) Decide(localHash, serverHash, baseHash string) Decision {
	switch {
	case localHash == serverHash:
		return DecisionApplyServer
	case localHash == baseHash:
		return DecisionApplyServer
	case serverHash == baseHash:
		return DecisionKeepLocal
	default:
		return DecisionConflict
	}
}

// Record stores a conflict for the given divergent copies. A prior
// unresolved conflict for the same item is superseded.
func (s *ConflictService) Record(ctx context.Context, local, server models.RecordSnapshot) (*models.Conflict, error) {
	return s.store(ctx, models.NewConflict(local, server))
}

// RecordDeletion stores a conflict for a server-side deletion that collided
// with local edits
func (s *ConflictService) RecordDeletion(ctx context.Context, local models.RecordSnapshot) (*models.Conflict, error) {
	return s.store(ctx, models.NewDeletionConflict(local))
}

func (s *ConflictService) store(ctx context.Context, c *models.Conflict) (*models.Conflict, error) {
	if err := s.conflicts.Upsert(ctx, c); err != nil {
		return nil, fmt.Errorf("record conflict for %s %s: %w", c.ItemType, c.ItemID, err)
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"conflict_id": c.ID,
		"item_id":     c.ItemID,
	}).Warnf("conflict detected on %s %q", c.ItemType, c.ItemTitle)

	if s.metrics != nil {
		s.metrics.RecordConflict(ctx, string(c.ItemType))
	}
	if s.hub != nil {
		s.hub.BroadcastToTopic(TopicConflicts, WSMessage{
			Type: WSTypeConflictFound,
			Payload: ConflictEventPayload{
				ConflictID: c.ID,
				ItemType:   string(c.ItemType),
				ItemID:     c.ItemID,
				ItemTitle:  c.ItemTitle,
			},
		})
	}
	return c, nil
}

// List returns all open conflicts, newest first
func (s *ConflictService) List(ctx context.Context) ([]*models.Conflict, error) {
	return s.conflicts.GetAll(ctx)
}

// Get returns a conflict by ID, or nil if it does not exist
func (s *ConflictService) Get(ctx context.Context, id string) (*models.Conflict, error) {
	return s.conflicts.GetByID(ctx, id)
}

// Count returns the number of open conflicts
func (s *ConflictService) Count(ctx context.Context) (int, error) {
	return s.conflicts.Count(ctx)
}

// Resolve applies the chosen resolution and removes the conflict. Content
// that a resolution overwrites is snapshotted into version history first.
// Resolutions that change local content push the result to the server
// through the run-or-queue path.
func (s *ConflictService) Resolve(ctx context.Context, id string, req models.ResolveConflictRequest) (models.MutationOutcome, error) {
	ctx, span := observability.StartServiceSpan(ctx, "conflict", "resolve")
	defer span.End()

	c, err := s.conflicts.GetByID(ctx, id)
	if err != nil {
		observability.RecordError(span, err)
		return models.MutationOutcome{}, err
	}
	if c == nil {
		return models.MutationOutcome{}, ErrConflictNotFound
	}

	var outcome models.MutationOutcome
	switch req.Choice {
	case models.ResolutionKeepServer:
		outcome, err = s.resolveKeepServer(ctx, c)
	case models.ResolutionKeepLocal:
		outcome, err = s.resolveKeepLocal(ctx, c)
	case models.ResolutionManual:
		outcome, err = s.resolveManual(ctx, c, req)
	default:
		return models.MutationOutcome{}, fmt.Errorf("%w: %q", ErrUnknownResolution, req.Choice)
	}
	if err != nil {
		observability.RecordError(span, err)
		return models.MutationOutcome{}, err
	}

	if err := s.conflicts.Delete(ctx, id); err != nil {
		observability.RecordError(span, err)
		return models.MutationOutcome{}, err
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"conflict_id": id,
		"item_id":     c.ItemID,
	}).Infof("conflict resolved with %s", req.Choice)

	if s.metrics != nil {
		s.metrics.RecordResolution(ctx, req.Choice)
	}
	if s.hub != nil {
		s.hub.BroadcastToTopic(TopicConflicts, WSMessage{
			Type: WSTypeConflictResolved,
			Payload: ConflictEventPayload{
				ConflictID: c.ID,
				ItemType:   string(c.ItemType),
				ItemID:     c.ItemID,
				Choice:     req.Choice,
			},
		})
	}

	observability.SetSuccess(span)
	return outcome, nil
}

// resolveKeepServer discards the local copy in favor of the server's. The
// local content is versioned before being overwritten; nothing is pushed.
func (s *ConflictService) resolveKeepServer(ctx context.Context, c *models.Conflict) (models.MutationOutcome, error) {
	current, deleted, err := s.records.GetSnapshot(ctx, c.ItemType, c.ItemID)
	if err != nil {
		return models.MutationOutcome{}, err
	}
	if current != nil && !deleted {
		if err := s.versions.CaptureSnapshot(ctx, *current); err != nil {
			return models.MutationOutcome{}, err
		}
	}

	if c.ServerDeleted {
		// The server's side of the conflict is a deletion, so keeping it
		// means deleting the local record rather than applying an empty
		// snapshot.
		if err := s.records.SoftDelete(ctx, c.ItemType, c.ItemID); err != nil {
			return models.MutationOutcome{}, err
		}
		if err := s.state.DeleteBaseHash(ctx, c.ItemType, c.ItemID); err != nil {
			return models.MutationOutcome{}, err
		}
		return models.MutationOutcome{}, nil
	}

	serverSnap := models.RecordSnapshot{
		Type:    c.ItemType,
		ID:      c.ItemID,
		Title:   c.ServerTitle,
		Content: c.ServerContent,
	}
	if err := s.records.ApplySnapshot(ctx, serverSnap); err != nil {
		return models.MutationOutcome{}, err
	}
	if err := s.state.SetBaseHash(ctx, c.ItemType, c.ItemID, s.hash.SnapshotHash(serverSnap)); err != nil {
		return models.MutationOutcome{}, err
	}
	return models.MutationOutcome{}, nil
}

// resolveKeepLocal keeps the local copy and pushes it so the server catches up
func (s *ConflictService) resolveKeepLocal(ctx context.Context, c *models.Conflict) (models.MutationOutcome, error) {
	payload, err := s.records.MarshalRecord(ctx, c.ItemType, c.ItemID)
	if err != nil {
		return models.MutationOutcome{}, err
	}
	if payload == nil {
		// Record was deleted locally since the conflict was recorded;
		// nothing left to push.
		return models.MutationOutcome{}, nil
	}
	return s.mutations.RunOrQueue(ctx, models.UpdateOpFor(c.ItemType), c.ItemType, c.ItemID, payload)
}

// resolveManual overwrites the local copy with user-merged content and
// pushes the merge to the server
func (s *ConflictService) resolveManual(ctx context.Context, c *models.Conflict, req models.ResolveConflictRequest) (models.MutationOutcome, error) {
	current, deleted, err := s.records.GetSnapshot(ctx, c.ItemType, c.ItemID)
	if err != nil {
		return models.MutationOutcome{}, err
	}
	if current == nil || deleted {
		return models.MutationOutcome{}, ErrRecordNotFound
	}
	if err := s.versions.CaptureSnapshot(ctx, *current); err != nil {
		return models.MutationOutcome{}, err
	}

	merged := models.RecordSnapshot{
		Type:    c.ItemType,
		ID:      c.ItemID,
		Title:   req.MergedTitle,
		Content: req.MergedContent,
	}
	if merged.Title == "" {
		merged.Title = current.Title
	}
	if err := s.records.ApplySnapshot(ctx, merged); err != nil {
		return models.MutationOutcome{}, err
	}

	payload, err := s.records.MarshalRecord(ctx, c.ItemType, c.ItemID)
	if err != nil {
		return models.MutationOutcome{}, err
	}
	return s.mutations.RunOrQueue(ctx, models.UpdateOpFor(c.ItemType), c.ItemType, c.ItemID, payload)
}
