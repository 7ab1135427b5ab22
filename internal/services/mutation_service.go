package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/observability"
	"github.com/notesync/engine/internal/remote"
	"github.com/notesync/engine/internal/repository"
)

// ErrMutationNotFound is returned when a queue entry does not exist
var ErrMutationNotFound = errors.New("mutation not found")

// MutationService routes every remote write through a single run-or-queue
// path. A write that cannot reach the server is deferred into the durable
// queue instead of being lost; a write the server rejects outright is
// surfaced to the caller.
type MutationService struct {
	queue   repository.MutationQueueRepo
	state   repository.SyncStateRepo
	client  remote.Invoker
	hash    *HashService
	hub     *WebSocketHub
	metrics *observability.SyncMetrics
}

// NewMutationService creates a new MutationService. hub and metrics may be nil.
func NewMutationService(queue repository.MutationQueueRepo, state repository.SyncStateRepo, client remote.Invoker, hash *HashService, hub *WebSocketHub, metrics *observability.SyncMetrics) *MutationService {
	return &MutationService{
		queue:   queue,
		state:   state,
		client:  client,
		hash:    hash,
		hub:     hub,
		metrics: metrics,
	}
}

// RunOrQueue attempts the remote operation immediately. On success the server
// response is returned and the sync baseline for the record is refreshed. On a
// transient failure the mutation is enqueued and a queued receipt is returned.
// A permanent rejection is returned as an error without enqueueing.
func (s *MutationService) RunOrQueue(ctx context.Context, operationName string, recordType models.RecordType, recordID string, payload json.RawMessage) (models.MutationOutcome, error) {
	ctx, span := observability.StartServiceSpan(ctx, "mutation", operationName)
	defer span.End()

	resp, err := s.client.Invoke(ctx, operationName, payload)
	if err == nil {
		s.recordBaseline(ctx, operationName, recordType, recordID, payload)
		observability.SetSuccess(span)
		return models.AppliedOutcome(resp), nil
	}

	if !remote.IsTransient(err) {
		observability.RecordError(span, err)
		return models.MutationOutcome{}, fmt.Errorf("%s rejected: %w", operationName, err)
	}

	m := models.NewQueuedMutation(operationName, payload, recordType, recordID)
	if enqueueErr := s.queue.Enqueue(ctx, m); enqueueErr != nil {
		observability.RecordError(span, enqueueErr)
		return models.MutationOutcome{}, enqueueErr
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"mutation_id": m.ID,
		"operation":   operationName,
	}).Infof("server unreachable, queued %s for %s %s", operationName, recordType, recordID)

	if s.metrics != nil {
		s.metrics.RecordQueued(ctx, operationName)
	}
	s.notifyQueueChanged(ctx, operationName)

	observability.SetSuccess(span)
	return models.QueuedOutcome(m), nil
}

// ListQueue returns pending mutations in push order. A positive limit caps
// the page to the oldest entries; zero or less returns the whole queue.
func (s *MutationService) ListQueue(ctx context.Context, limit int) ([]*models.QueuedMutation, error) {
	if limit > 0 {
		return s.queue.PeekBatch(ctx, limit)
	}
	return s.queue.ListAll(ctx)
}

// QueueDepth returns the number of pending mutations
func (s *MutationService) QueueDepth(ctx context.Context) (int, error) {
	return s.queue.Count(ctx)
}

// DropMutation removes a pending mutation without pushing it
func (s *MutationService) DropMutation(ctx context.Context, id string) error {
	entries, err := s.queue.ListAll(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, m := range entries {
		if m.ID == id {
			found = true
			break
		}
	}
	if !found {
		return ErrMutationNotFound
	}
	if err := s.queue.Drop(ctx, id); err != nil {
		return err
	}
	s.notifyQueueChanged(ctx, "")
	return nil
}

// recordBaseline refreshes the stored base hash after a confirmed remote
// write so the next pull recognizes the server's copy as our own.
func (s *MutationService) recordBaseline(ctx context.Context, operationName string, recordType models.RecordType, recordID string, payload json.RawMessage) {
	if models.IsDeleteOp(operationName) {
		if err := s.state.DeleteBaseHash(ctx, recordType, recordID); err != nil {
			observability.WithContext(ctx).Warnf("failed to clear base hash for %s %s: %v", recordType, recordID, err)
		}
		return
	}

	snap, ok := snapshotFromPayload(recordType, recordID, payload)
	if !ok {
		return
	}
	if err := s.state.SetBaseHash(ctx, recordType, recordID, s.hash.SnapshotHash(snap)); err != nil {
		observability.WithContext(ctx).Warnf("failed to record base hash for %s %s: %v", recordType, recordID, err)
	}
}

func (s *MutationService) notifyQueueChanged(ctx context.Context, operationName string) {
	if s.hub == nil {
		return
	}
	pending, err := s.queue.Count(ctx)
	if err != nil {
		return
	}
	s.hub.BroadcastToTopic(TopicQueue, WSMessage{
		Type: WSTypeQueueChanged,
		Payload: QueueEventPayload{
			Pending:   pending,
			Operation: operationName,
		},
	})
}

// snapshotFromPayload extracts the sync projection from a mutation payload.
// Payloads for create and update operations carry the full record.
func snapshotFromPayload(recordType models.RecordType, recordID string, payload json.RawMessage) (models.RecordSnapshot, bool) {
	switch recordType {
	case models.RecordTypeNote:
		var note models.Note
		if err := json.Unmarshal(payload, &note); err != nil {
			return models.RecordSnapshot{}, false
		}
		note.ID = recordID
		return note.Snapshot(), true
	case models.RecordTypeTask:
		var task models.Task
		if err := json.Unmarshal(payload, &task); err != nil {
			return models.RecordSnapshot{}, false
		}
		task.ID = recordID
		return task.Snapshot(), true
	case models.RecordTypeJournal:
		var entry models.JournalEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return models.RecordSnapshot{}, false
		}
		entry.ID = recordID
		return entry.Snapshot(), true
	}
	return models.RecordSnapshot{}, false
}
