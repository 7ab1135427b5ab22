package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/observability"
	"github.com/notesync/engine/internal/remote"
	"github.com/notesync/engine/internal/repository"
)

// ErrSyncInProgress is returned when a full sync is requested while another
// run is still active
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncEngine orchestrates a full sync: pending mutations are pushed first,
// then server changes are pulled and routed through conflict detection, and
// only after the whole pull batch lands is the watermark advanced. At most
// one run is active at a time.
type SyncEngine struct {
	queue     repository.MutationQueueRepo
	records   repository.RecordStore
	state     repository.SyncStateRepo
	conflicts *ConflictService
	versions  *VersionService
	client    remote.Invoker
	hash      *HashService
	hub       *WebSocketHub
	metrics   *observability.SyncMetrics

	mu         sync.Mutex
	syncing    bool
	lastResult *models.SyncResult
}

// NewSyncEngine creates a new SyncEngine. hub and metrics may be nil.
func NewSyncEngine(queue repository.MutationQueueRepo, records repository.RecordStore, state repository.SyncStateRepo, conflicts *ConflictService, versions *VersionService, client remote.Invoker, hash *HashService, hub *WebSocketHub, metrics *observability.SyncMetrics) *SyncEngine {
	return &SyncEngine{
		queue:     queue,
		records:   records,
		state:     state,
		conflicts: conflicts,
		versions:  versions,
		client:    client,
		hash:      hash,
		hub:       hub,
		metrics:   metrics,
	}
}

// FullSync runs one complete push-then-pull cycle. A call made while a run
// is active returns ErrSyncInProgress without starting a second run.
func (e *SyncEngine) FullSync(ctx context.Context) (*models.SyncResult, error) {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	ctx, span := observability.StartServiceSpan(ctx, "sync", "full_sync")
	defer span.End()

	start := time.Now()
	result := &models.SyncResult{StartedAt: start.UTC()}

	if e.hub != nil {
		e.hub.BroadcastToTopic(TopicSync, WSMessage{Type: WSTypeSyncStarted, Payload: SyncEventPayload{}})
	}

	if err := e.push(ctx, result); err != nil {
		observability.RecordError(span, err)
		e.finish(ctx, result, start, err)
		return result, err
	}

	if err := e.pull(ctx, result); err != nil {
		observability.RecordError(span, err)
		e.finish(ctx, result, start, err)
		return result, err
	}

	observability.SetSuccess(span)
	e.finish(ctx, result, start, nil)
	return result, nil
}

// Status reports the engine's current state for diagnostics
func (e *SyncEngine) Status(ctx context.Context) (*models.SyncStatusResponse, error) {
	watermark, err := e.state.GetWatermark(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := e.queue.Count(ctx)
	if err != nil {
		return nil, err
	}
	open, err := e.conflicts.Count(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	syncing := e.syncing
	last := e.lastResult
	e.mu.Unlock()

	return &models.SyncStatusResponse{
		LastSyncTimestamp: watermark,
		PendingMutations:  pending,
		OpenConflicts:     open,
		Syncing:           syncing,
		LastResult:        last,
	}, nil
}

// push drains the queue oldest-first. A transient failure leaves the entry
// queued and blocks every later mutation for the same record so per-record
// order is preserved. A permanent rejection drops the entry instead.
func (e *SyncEngine) push(ctx context.Context, result *models.SyncResult) error {
	entries, err := e.queue.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list queue: %w", err)
	}

	blocked := make(map[string]bool)
	log := observability.WithContext(ctx)

	for _, m := range entries {
		key := m.RecordKey()
		if blocked[key] {
			continue
		}

		_, invokeErr := e.client.Invoke(ctx, m.OperationName, m.Payload)
		if invokeErr == nil {
			if err := e.queue.MarkSucceeded(ctx, m.ID); err != nil {
				return fmt.Errorf("mark mutation %s succeeded: %w", m.ID, err)
			}
			e.refreshBaseline(ctx, m)
			result.Up.Synced++
			if e.metrics != nil {
				e.metrics.RecordPush(ctx, m.OperationName, "synced")
			}
			continue
		}

		if remote.IsTransient(invokeErr) {
			if err := e.queue.MarkFailed(ctx, m.ID, invokeErr.Error()); err != nil {
				return fmt.Errorf("mark mutation %s failed: %w", m.ID, err)
			}
			blocked[key] = true
			log.WithField("mutation_id", m.ID).Debugf("push deferred for %s: %v", m.OperationName, invokeErr)
			continue
		}

		// The server rejected the mutation outright. Retrying would never
		// succeed, so the entry is dropped and counted as failed.
		if err := e.queue.Drop(ctx, m.ID); err != nil {
			return fmt.Errorf("drop mutation %s: %w", m.ID, err)
		}
		result.Up.Failed++
		if e.metrics != nil {
			e.metrics.RecordPush(ctx, m.OperationName, "dropped")
		}
		log.WithField("mutation_id", m.ID).Warnf("dropped %s after permanent rejection: %v", m.OperationName, invokeErr)
	}

	return nil
}

// pull fetches server changes since the watermark and applies them through
// conflict detection. The watermark only advances after every delta in the
// batch has been applied or recorded as a conflict, so an interrupted pull
// is re-fetched in full on the next run.
func (e *SyncEngine) pull(ctx context.Context, result *models.SyncResult) error {
	since, err := e.state.GetWatermark(ctx)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}

	resp, err := e.client.Pull(ctx, since)
	if err != nil {
		if remote.IsTransient(err) {
			// Offline or flaky network. The push phase's counts still
			// stand; the pull just happens on a later run.
			observability.WithContext(ctx).Debugf("pull skipped: %v", err)
			result.Down.ServerTimestamp = since
			return nil
		}
		return fmt.Errorf("pull changes: %w", err)
	}

	for i := range resp.Records {
		if err := e.applyDelta(ctx, &resp.Records[i], result); err != nil {
			return fmt.Errorf("apply delta %s %s: %w", resp.Records[i].Type, resp.Records[i].ID, err)
		}
	}

	if err := e.state.AdvanceWatermark(ctx, resp.ServerTimestamp); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}

	watermark, err := e.state.GetWatermark(ctx)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	result.Down.ServerTimestamp = watermark

	if e.metrics != nil && result.Down.Applied > 0 {
		e.metrics.RecordApplied(ctx, result.Down.Applied)
	}
	return nil
}

// applyDelta routes one server change through the three-way comparison of
// local content, server content and the baseline from the last sync.
func (e *SyncEngine) applyDelta(ctx context.Context, delta *models.RecordDelta, result *models.SyncResult) error {
	local, localDeleted, err := e.records.GetSnapshot(ctx, delta.Type, delta.ID)
	if err != nil {
		return err
	}

	baseHash, err := e.state.GetBaseHash(ctx, delta.Type, delta.ID)
	if err != nil {
		return err
	}

	serverSnap := delta.Snapshot()
	serverHash := e.hash.SnapshotHash(serverSnap)

	// Record unknown locally: a deletion is a no-op, anything else is a
	// plain insert.
	if local == nil {
		if delta.Deleted {
			return e.state.DeleteBaseHash(ctx, delta.Type, delta.ID)
		}
		if err := e.records.ApplyDelta(ctx, delta); err != nil {
			return err
		}
		if err := e.state.SetBaseHash(ctx, delta.Type, delta.ID, serverHash); err != nil {
			return err
		}
		result.Down.Applied++
		return nil
	}

	if delta.Deleted {
		return e.applyServerDeletion(ctx, delta, local, localDeleted, baseHash, result)
	}

	localHash := e.hash.SnapshotHash(*local)

	// Both sides hold identical content, typically the echo of our own
	// pushed edit. Refresh the baseline and move on; snapshotting a version
	// here would just duplicate the current content.
	if localHash == serverHash && !localDeleted {
		return e.state.SetBaseHash(ctx, delta.Type, delta.ID, serverHash)
	}

	// A locally deleted record that the server still updates counts as a
	// local change, so it falls through the same three-way decision with a
	// hash that cannot match the server's.
	if localDeleted {
		localHash = ""
	}

	switch e.conflicts.Decide(localHash, serverHash, baseHash) {
	case DecisionApplyServer:
		if err := e.versions.CaptureSnapshot(ctx, *local); err != nil {
			return err
		}
		if err := e.records.ApplyDelta(ctx, delta); err != nil {
			return err
		}
		if err := e.state.SetBaseHash(ctx, delta.Type, delta.ID, serverHash); err != nil {
			return err
		}
		result.Down.Applied++

	case DecisionKeepLocal:
		// The pending local edit wins for now; the next push will carry it
		// to the server.

	case DecisionConflict:
		localSide := *local
		if localDeleted {
			localSide.Title = ""
			localSide.Content = ""
		}
		if _, err := e.conflicts.Record(ctx, localSide, serverSnap); err != nil {
			return err
		}
		result.Down.Conflicts++
	}

	return nil
}

// applyServerDeletion handles a delta that deletes the record. The deletion
// only lands if the local copy is unchanged since the last sync; a locally
// edited record survives and the divergence is recorded as a conflict.
func (e *SyncEngine) applyServerDeletion(ctx context.Context, delta *models.RecordDelta, local *models.RecordSnapshot, localDeleted bool, baseHash string, result *models.SyncResult) error {
	if localDeleted {
		// Both sides deleted. Clear the baseline; nothing to apply.
		return e.state.DeleteBaseHash(ctx, delta.Type, delta.ID)
	}

	localHash := e.hash.SnapshotHash(*local)
	if baseHash == "" || localHash == baseHash {
		if err := e.versions.CaptureSnapshot(ctx, *local); err != nil {
			return err
		}
		if err := e.records.SoftDelete(ctx, delta.Type, delta.ID); err != nil {
			return err
		}
		if err := e.state.DeleteBaseHash(ctx, delta.Type, delta.ID); err != nil {
			return err
		}
		result.Down.Applied++
		return nil
	}

	// Local edits exist on a record the server deleted. Keep the local copy
	// and surface the divergence for the user to settle.
	if _, err := e.conflicts.RecordDeletion(ctx, *local); err != nil {
		return err
	}
	result.Down.Conflicts++
	return nil
}

// refreshBaseline updates the base hash after a queued mutation is confirmed
func (e *SyncEngine) refreshBaseline(ctx context.Context, m *models.QueuedMutation) {
	log := observability.WithContext(ctx)
	if models.IsDeleteOp(m.OperationName) {
		if err := e.state.DeleteBaseHash(ctx, m.RecordType, m.RecordID); err != nil {
			log.Warnf("failed to clear base hash for %s %s: %v", m.RecordType, m.RecordID, err)
		}
		return
	}
	snap, ok := snapshotFromPayload(m.RecordType, m.RecordID, m.Payload)
	if !ok {
		return
	}
	if err := e.state.SetBaseHash(ctx, m.RecordType, m.RecordID, e.hash.SnapshotHash(snap)); err != nil {
		log.Warnf("failed to record base hash for %s %s: %v", m.RecordType, m.RecordID, err)
	}
}

func (e *SyncEngine) finish(ctx context.Context, result *models.SyncResult, start time.Time, runErr error) {
	duration := time.Since(start)
	result.Duration = duration.Round(time.Millisecond).String()

	e.mu.Lock()
	e.lastResult = result
	e.mu.Unlock()

	log := observability.WithContext(ctx)
	if runErr != nil {
		log.Errorf("sync failed after %s: %v", result.Duration, runErr)
	} else {
		log.Infof("sync finished in %s: pushed=%d dropped=%d applied=%d conflicts=%d",
			result.Duration, result.Up.Synced, result.Up.Failed, result.Down.Applied, result.Down.Conflicts)
	}

	if e.metrics != nil {
		e.metrics.RecordSyncRun(ctx, runErr == nil, duration)
	}
	if e.hub != nil {
		payload := SyncEventPayload{
			Synced:    result.Up.Synced,
			Failed:    result.Up.Failed,
			Applied:   result.Down.Applied,
			Conflicts: result.Down.Conflicts,
			Duration:  result.Duration,
		}
		msgType := WSTypeSyncCompleted
		if runErr != nil {
			msgType = WSTypeSyncFailed
			payload.Error = runErr.Error()
		}
		e.hub.BroadcastToTopic(TopicSync, WSMessage{Type: msgType, Payload: payload})
	}
}
