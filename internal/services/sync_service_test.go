package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/remote"
	"github.com/notesync/engine/internal/repository"
)

// fakeInvoker is an in-memory stand-in for the remote sync server
type fakeInvoker struct {
	mu        sync.Mutex
	calls     []string
	invokeErr error
	invokeFn  func(operationName string, payload json.RawMessage) (json.RawMessage, error)
	pullResp  *models.PullResponse
	pullErr   error
}

func (f *fakeInvoker) Invoke(ctx context.Context, operationName string, payload json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, operationName)
	if f.invokeFn != nil {
		return f.invokeFn(operationName, payload)
	}
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (f *fakeInvoker) Pull(ctx context.Context, since int64) (*models.PullResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.pullResp != nil {
		return f.pullResp, nil
	}
	return &models.PullResponse{ServerTimestamp: since}, nil
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func transientErr() error {
	return &remote.Error{Op: "invoke", Message: "connection refused", Transient: true}
}

func permanentErr() error {
	return &remote.Error{Op: "invoke", StatusCode: 400, Message: "validation failed", Transient: false}
}

// testEnv wires real SQLite-backed repositories to a fake remote server
type testEnv struct {
	db        *sql.DB
	server    *fakeInvoker
	notes     *repository.NoteRepository
	tasks     *repository.TaskRepository
	journal   *repository.JournalRepository
	records   *repository.Records
	queue     *repository.MutationQueueRepository
	state     *repository.SyncStateRepository
	hash      *HashService
	mutations *MutationService
	versions  *VersionService
	conflicts *ConflictService
	engine    *SyncEngine
	dbPath    string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "notesync-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	dbPath := filepath.Join(tempDir, "engine.db")
	db, err := repository.NewSQLiteDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	server := &fakeInvoker{}

	notes := repository.NewNoteRepository(db)
	tasks := repository.NewTaskRepository(db)
	journal := repository.NewJournalRepository(db)
	records := repository.NewRecords(notes, tasks, journal)
	queue := repository.NewMutationQueueRepository(db)
	conflictRepo := repository.NewConflictRepository(db, repository.DefaultMaxConflicts)
	versionRepo := repository.NewVersionRepository(db, repository.DefaultMaxVersionsPerItem)
	state := repository.NewSyncStateRepository(db)

	hash := NewHashService()
	mutations := NewMutationService(queue, state, server, hash, nil, nil)
	versions := NewVersionService(versionRepo, records, mutations)
	conflicts := NewConflictService(conflictRepo, records, state, versions, mutations, hash, nil, nil)
	engine := NewSyncEngine(queue, records, state, conflicts, versions, server, hash, nil, nil)

	return &testEnv{
		db:        db,
		server:    server,
		notes:     notes,
		tasks:     tasks,
		journal:   journal,
		records:   records,
		queue:     queue,
		state:     state,
		hash:      hash,
		mutations: mutations,
		versions:  versions,
		conflicts: conflicts,
		engine:    engine,
		dbPath:    dbPath,
	}
}

func (e *testEnv) mustEnqueueNote(t *testing.T, op string, note *models.Note) *models.QueuedMutation {
	t.Helper()
	payload, err := json.Marshal(note)
	require.NoError(t, err)
	m := models.NewQueuedMutation(op, payload, models.RecordTypeNote, note.ID)
	require.NoError(t, e.queue.Enqueue(context.Background(), m))
	return m
}

func TestSyncEngine_Push(t *testing.T) {
	ctx := context.Background()

	t.Run("drains queue oldest first", func(t *testing.T) {
		env := setupTestEnv(t)

		n1 := models.NewNote("first", "a")
		n2 := models.NewNote("second", "b")
		env.mustEnqueueNote(t, models.OpNoteCreate, n1)
		env.mustEnqueueNote(t, models.OpNoteCreate, n2)

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Up.Synced)
		assert.Equal(t, 0, result.Up.Failed)

		remaining, err := env.queue.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
	})

	t.Run("transient failure keeps mutation queued and blocks same record", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("draft", "v1")
		env.mustEnqueueNote(t, models.OpNoteCreate, note)
		updated := *note
		updated.Content = "v2"
		env.mustEnqueueNote(t, models.OpNoteUpdate, &updated)

		env.server.invokeErr = transientErr()

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, result.Up.Synced)
		assert.Equal(t, 0, result.Up.Failed)

		// The create fails transiently; the update for the same record must
		// not be attempted ahead of it.
		assert.Equal(t, 1, env.server.callCount())

		remaining, err := env.queue.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, remaining, 2)
		assert.Equal(t, models.OpNoteCreate, remaining[0].OperationName)
		assert.Equal(t, 1, remaining[0].AttemptCount)
		assert.NotEmpty(t, remaining[0].LastError)
	})

	t.Run("transient failure does not block other records", func(t *testing.T) {
		env := setupTestEnv(t)

		blockedNote := models.NewNote("blocked", "x")
		otherNote := models.NewNote("other", "y")
		env.mustEnqueueNote(t, models.OpNoteCreate, blockedNote)
		env.mustEnqueueNote(t, models.OpNoteCreate, otherNote)

		env.server.invokeFn = func(op string, payload json.RawMessage) (json.RawMessage, error) {
			var n models.Note
			require.NoError(t, json.Unmarshal(payload, &n))
			if n.ID == blockedNote.ID {
				return nil, transientErr()
			}
			return json.RawMessage(`{}`), nil
		}

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Up.Synced)

		remaining, err := env.queue.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, blockedNote.ID, remaining[0].RecordID)
	})

	t.Run("permanent rejection drops mutation and counts it failed", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("bad", "rejected")
		env.mustEnqueueNote(t, models.OpNoteCreate, note)
		env.server.invokeErr = permanentErr()

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, result.Up.Synced)
		assert.Equal(t, 1, result.Up.Failed)

		remaining, err := env.queue.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
	})

	t.Run("successful push refreshes the record baseline", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("synced", "content")
		require.NoError(t, env.notes.Upsert(ctx, note))
		env.mustEnqueueNote(t, models.OpNoteUpdate, note)

		_, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		baseHash, err := env.state.GetBaseHash(ctx, models.RecordTypeNote, note.ID)
		require.NoError(t, err)
		assert.Equal(t, env.hash.SnapshotHash(note.Snapshot()), baseHash)
	})
}

func TestSyncEngine_Pull(t *testing.T) {
	ctx := context.Background()

	noteDelta := func(id, title, content string) models.RecordDelta {
		return models.RecordDelta{
			Type:    models.RecordTypeNote,
			ID:      id,
			Title:   title,
			Content: content,
		}
	}

	t.Run("applies new record and records baseline", func(t *testing.T) {
		env := setupTestEnv(t)

		env.server.pullResp = &models.PullResponse{
			Records:         []models.RecordDelta{noteDelta("n1", "server note", "from server")},
			ServerTimestamp: 100,
		}

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Down.Applied)
		assert.Equal(t, 0, result.Down.Conflicts)
		assert.Equal(t, int64(100), result.Down.ServerTimestamp)

		note, err := env.notes.GetByID(ctx, "n1")
		require.NoError(t, err)
		require.NotNil(t, note)
		assert.Equal(t, "server note", note.Title)

		hash, err := env.state.GetBaseHash(ctx, models.RecordTypeNote, "n1")
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
	})

	t.Run("unchanged local copy accepts server edit and versions prior content", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("original", "old content")
		require.NoError(t, env.notes.Upsert(ctx, note))
		require.NoError(t, env.state.SetBaseHash(ctx, models.RecordTypeNote, note.ID,
			env.hash.SnapshotHash(note.Snapshot())))

		env.server.pullResp = &models.PullResponse{
			Records:         []models.RecordDelta{noteDelta(note.ID, "original", "new content")},
			ServerTimestamp: 50,
		}

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Down.Applied)

		updated, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "new content", updated.Content)

		versions, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, "old content", versions[0].Content)
	})

	t.Run("pending local edit wins over stale server copy", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("title", "local edit")
		require.NoError(t, env.notes.Upsert(ctx, note))
		// Baseline matches the server's (older) content, so only the local
		// side has changed.
		staleSnap := models.RecordSnapshot{Type: models.RecordTypeNote, ID: note.ID, Title: "title", Content: "stale"}
		require.NoError(t, env.state.SetBaseHash(ctx, models.RecordTypeNote, note.ID,
			env.hash.SnapshotHash(staleSnap)))

		env.server.pullResp = &models.PullResponse{
			Records:         []models.RecordDelta{noteDelta(note.ID, "title", "stale")},
			ServerTimestamp: 60,
		}

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, result.Down.Applied)
		assert.Equal(t, 0, result.Down.Conflicts)

		kept, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "local edit", kept.Content)
	})

	t.Run("divergent copies record a conflict and leave local intact", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("title", "local change")
		require.NoError(t, env.notes.Upsert(ctx, note))
		baseSnap := models.RecordSnapshot{Type: models.RecordTypeNote, ID: note.ID, Title: "title", Content: "base"}
		require.NoError(t, env.state.SetBaseHash(ctx, models.RecordTypeNote, note.ID,
			env.hash.SnapshotHash(baseSnap)))

		env.server.pullResp = &models.PullResponse{
			Records:         []models.RecordDelta{noteDelta(note.ID, "title", "server change")},
			ServerTimestamp: 70,
		}

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, result.Down.Applied)
		assert.Equal(t, 1, result.Down.Conflicts)

		kept, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "local change", kept.Content)

		conflicts, err := env.conflicts.List(ctx)
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, "local change", conflicts[0].LocalContent)
		assert.Equal(t, "server change", conflicts[0].ServerContent)
	})

	t.Run("identical content on both sides refreshes baseline without versioning", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("same", "same content")
		require.NoError(t, env.notes.Upsert(ctx, note))

		env.server.pullResp = &models.PullResponse{
			Records:         []models.RecordDelta{noteDelta(note.ID, "same", "same content")},
			ServerTimestamp: 80,
		}

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, result.Down.Applied)
		assert.Equal(t, 0, result.Down.Conflicts)

		versions, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, versions)

		baseHash, err := env.state.GetBaseHash(ctx, models.RecordTypeNote, note.ID)
		require.NoError(t, err)
		assert.Equal(t, env.hash.SnapshotHash(note.Snapshot()), baseHash)
	})

	t.Run("server deletion applies only when local copy is unchanged", func(t *testing.T) {
		env := setupTestEnv(t)

		unchanged := models.NewNote("clean", "untouched")
		edited := models.NewNote("dirty", "locally edited")
		require.NoError(t, env.notes.Upsert(ctx, unchanged))
		require.NoError(t, env.notes.Upsert(ctx, edited))
		require.NoError(t, env.state.SetBaseHash(ctx, models.RecordTypeNote, unchanged.ID,
			env.hash.SnapshotHash(unchanged.Snapshot())))
		baseSnap := models.RecordSnapshot{Type: models.RecordTypeNote, ID: edited.ID, Title: "dirty", Content: "base"}
		require.NoError(t, env.state.SetBaseHash(ctx, models.RecordTypeNote, edited.ID,
			env.hash.SnapshotHash(baseSnap)))

		env.server.pullResp = &models.PullResponse{
			Records: []models.RecordDelta{
				{Type: models.RecordTypeNote, ID: unchanged.ID, Deleted: true},
				{Type: models.RecordTypeNote, ID: edited.ID, Deleted: true},
			},
			ServerTimestamp: 90,
		}

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Down.Applied)
		assert.Equal(t, 1, result.Down.Conflicts)

		gone, err := env.notes.GetByID(ctx, unchanged.ID)
		require.NoError(t, err)
		assert.True(t, gone.Deleted)

		kept, err := env.notes.GetByID(ctx, edited.ID)
		require.NoError(t, err)
		assert.False(t, kept.Deleted)

		// The surviving record carries a deletion conflict, not a content one
		open, err := env.conflicts.List(ctx)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, edited.ID, open[0].ItemID)
		assert.True(t, open[0].ServerDeleted)
	})

	t.Run("deletion of unknown record is a no-op", func(t *testing.T) {
		env := setupTestEnv(t)

		env.server.pullResp = &models.PullResponse{
			Records:         []models.RecordDelta{{Type: models.RecordTypeNote, ID: "ghost", Deleted: true}},
			ServerTimestamp: 95,
		}

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Down.Applied)
		assert.Equal(t, 0, result.Down.Conflicts)
	})

	t.Run("transient pull failure leaves watermark untouched", func(t *testing.T) {
		env := setupTestEnv(t)

		require.NoError(t, env.state.AdvanceWatermark(ctx, 42))
		env.server.pullErr = &remote.Error{Op: "pull", Message: "timeout", Transient: true}

		result, err := env.engine.FullSync(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(42), result.Down.ServerTimestamp)

		watermark, err := env.state.GetWatermark(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(42), watermark)
	})

	t.Run("watermark never moves backwards", func(t *testing.T) {
		env := setupTestEnv(t)

		require.NoError(t, env.state.AdvanceWatermark(ctx, 200))
		env.server.pullResp = &models.PullResponse{ServerTimestamp: 150}

		_, err := env.engine.FullSync(ctx)
		require.NoError(t, err)

		watermark, err := env.state.GetWatermark(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(200), watermark)
	})
}

func TestSyncEngine_Status(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	note := models.NewNote("pending", "x")
	env.mustEnqueueNote(t, models.OpNoteCreate, note)
	env.server.invokeErr = transientErr()

	result, err := env.engine.FullSync(ctx)
	require.NoError(t, err)

	status, err := env.engine.Status(ctx)
	require.NoError(t, err)

	assert.False(t, status.Syncing)
	assert.Equal(t, 1, status.PendingMutations)
	assert.Equal(t, 0, status.OpenConflicts)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, result.StartedAt, status.LastResult.StartedAt)
}

func TestSyncEngine_QueueSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	note := models.NewNote("durable", "content")
	env.mustEnqueueNote(t, models.OpNoteCreate, note)

	// Simulate a process restart by reopening the database file
	require.NoError(t, env.db.Close())

	db, err := repository.NewSQLiteDB(env.dbPath)
	require.NoError(t, err)
	defer db.Close()

	queue := repository.NewMutationQueueRepository(db)
	entries, err := queue.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OpNoteCreate, entries[0].OperationName)
	assert.Equal(t, note.ID, entries[0].RecordID)
}
