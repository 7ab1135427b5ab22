package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/engine/internal/models"
)

func TestDecide(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name       string
		localHash  string
		serverHash string
		baseHash   string
		expected   Decision
	}{
		{"identical copies", "h1", "h1", "h0", DecisionApplyServer},
		{"local unchanged since last sync", "h0", "h2", "h0", DecisionApplyServer},
		{"server unchanged since last sync", "h2", "h0", "h0", DecisionKeepLocal},
		{"both sides diverged", "h1", "h2", "h0", DecisionConflict},
		{"never synced and both differ", "h1", "h2", "", DecisionConflict},
		{"never synced local empty accepts server", "", "h2", "", DecisionApplyServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, env.conflicts.Decide(tt.localHash, tt.serverHash, tt.baseHash))
		})
	}
}

func TestConflictRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("stores divergent copies", func(t *testing.T) {
		env := setupTestEnv(t)

		local := models.RecordSnapshot{Type: models.RecordTypeNote, ID: "n1", Title: "title", Content: "local"}
		server := models.RecordSnapshot{Type: models.RecordTypeNote, ID: "n1", Title: "title", Content: "server"}

		c, err := env.conflicts.Record(ctx, local, server)
		require.NoError(t, err)

		stored, err := env.conflicts.Get(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "local", stored.LocalContent)
		assert.Equal(t, "server", stored.ServerContent)
	})

	t.Run("second conflict for same item supersedes the first", func(t *testing.T) {
		env := setupTestEnv(t)

		local := models.RecordSnapshot{Type: models.RecordTypeNote, ID: "n1", Title: "t", Content: "local v1"}
		server := models.RecordSnapshot{Type: models.RecordTypeNote, ID: "n1", Title: "t", Content: "server v1"}
		_, err := env.conflicts.Record(ctx, local, server)
		require.NoError(t, err)

		local.Content = "local v2"
		server.Content = "server v2"
		_, err = env.conflicts.Record(ctx, local, server)
		require.NoError(t, err)

		open, err := env.conflicts.List(ctx)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "local v2", open[0].LocalContent)
		assert.Equal(t, "server v2", open[0].ServerContent)
	})
}

func TestConflictResolve(t *testing.T) {
	ctx := context.Background()

	// seedConflict stores a locally edited note plus a recorded conflict
	// against a divergent server copy
	seedConflict := func(t *testing.T, env *testEnv) (*models.Note, *models.Conflict) {
		t.Helper()
		note := models.NewNote("title", "local content")
		require.NoError(t, env.notes.Upsert(ctx, note))

		local := note.Snapshot()
		server := models.RecordSnapshot{Type: models.RecordTypeNote, ID: note.ID, Title: "title", Content: "server content"}
		c, err := env.conflicts.Record(ctx, local, server)
		require.NoError(t, err)
		return note, c
	}

	t.Run("keep_server overwrites local copy and versions it", func(t *testing.T) {
		env := setupTestEnv(t)
		note, c := seedConflict(t, env)

		outcome, err := env.conflicts.Resolve(ctx, c.ID, models.ResolveConflictRequest{Choice: models.ResolutionKeepServer})
		require.NoError(t, err)
		assert.False(t, outcome.IsQueued())

		updated, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "server content", updated.Content)

		versions, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, "local content", versions[0].Content)

		// Nothing pushed, baseline matches the applied server copy
		assert.Equal(t, 0, env.server.callCount())
		baseHash, err := env.state.GetBaseHash(ctx, models.RecordTypeNote, note.ID)
		require.NoError(t, err)
		serverSnap := models.RecordSnapshot{Title: "title", Content: "server content"}
		assert.Equal(t, env.hash.SnapshotHash(serverSnap), baseHash)
	})

	t.Run("keep_local pushes the local copy", func(t *testing.T) {
		env := setupTestEnv(t)
		note, c := seedConflict(t, env)

		outcome, err := env.conflicts.Resolve(ctx, c.ID, models.ResolveConflictRequest{Choice: models.ResolutionKeepLocal})
		require.NoError(t, err)
		assert.False(t, outcome.IsQueued())
		assert.Equal(t, 1, env.server.callCount())

		kept, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "local content", kept.Content)
	})

	t.Run("keep_local queues the push when offline", func(t *testing.T) {
		env := setupTestEnv(t)
		_, c := seedConflict(t, env)
		env.server.invokeErr = transientErr()

		outcome, err := env.conflicts.Resolve(ctx, c.ID, models.ResolveConflictRequest{Choice: models.ResolutionKeepLocal})
		require.NoError(t, err)
		assert.True(t, outcome.IsQueued())

		depth, err := env.mutations.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, depth)
	})

	// seedDeletionConflict stores a locally edited note whose server copy
	// was deleted, with the pre-edit baseline still on record
	seedDeletionConflict := func(t *testing.T, env *testEnv) (*models.Note, *models.Conflict) {
		t.Helper()
		note := models.NewNote("title", "edited after last sync")
		require.NoError(t, env.notes.Upsert(ctx, note))
		require.NoError(t, env.state.SetBaseHash(ctx, models.RecordTypeNote, note.ID, "stalebase"))

		c, err := env.conflicts.RecordDeletion(ctx, note.Snapshot())
		require.NoError(t, err)
		require.True(t, c.ServerDeleted)
		return note, c
	}

	t.Run("keep_server on a deletion conflict deletes the local record", func(t *testing.T) {
		env := setupTestEnv(t)
		note, c := seedDeletionConflict(t, env)

		outcome, err := env.conflicts.Resolve(ctx, c.ID, models.ResolveConflictRequest{Choice: models.ResolutionKeepServer})
		require.NoError(t, err)
		assert.False(t, outcome.IsQueued())
		assert.Equal(t, 0, env.server.callCount())

		gone, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.True(t, gone.Deleted)

		// The overwritten content survives in version history and the
		// stale baseline is cleared rather than rehashed
		versions, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, "edited after last sync", versions[0].Content)

		baseHash, err := env.state.GetBaseHash(ctx, models.RecordTypeNote, note.ID)
		require.NoError(t, err)
		assert.Empty(t, baseHash)
	})

	t.Run("keep_local on a deletion conflict restores the record upstream", func(t *testing.T) {
		env := setupTestEnv(t)
		note, c := seedDeletionConflict(t, env)

		outcome, err := env.conflicts.Resolve(ctx, c.ID, models.ResolveConflictRequest{Choice: models.ResolutionKeepLocal})
		require.NoError(t, err)
		assert.False(t, outcome.IsQueued())
		assert.Equal(t, 1, env.server.callCount())

		kept, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.False(t, kept.Deleted)
		assert.Equal(t, "edited after last sync", kept.Content)
	})

	t.Run("manual applies merged content and pushes it", func(t *testing.T) {
		env := setupTestEnv(t)
		note, c := seedConflict(t, env)

		outcome, err := env.conflicts.Resolve(ctx, c.ID, models.ResolveConflictRequest{
			Choice:        models.ResolutionManual,
			MergedTitle:   "merged title",
			MergedContent: "merged content",
		})
		require.NoError(t, err)
		assert.False(t, outcome.IsQueued())
		assert.Equal(t, 1, env.server.callCount())

		updated, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "merged title", updated.Title)
		assert.Equal(t, "merged content", updated.Content)

		// The pre-merge local content is preserved in version history
		versions, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, "local content", versions[0].Content)
	})

	t.Run("manual keeps current title when merge omits it", func(t *testing.T) {
		env := setupTestEnv(t)
		note, c := seedConflict(t, env)

		_, err := env.conflicts.Resolve(ctx, c.ID, models.ResolveConflictRequest{
			Choice:        models.ResolutionManual,
			MergedContent: "merged content",
		})
		require.NoError(t, err)

		updated, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "title", updated.Title)
	})

	t.Run("resolution removes the conflict", func(t *testing.T) {
		env := setupTestEnv(t)
		_, c := seedConflict(t, env)

		_, err := env.conflicts.Resolve(ctx, c.ID, models.ResolveConflictRequest{Choice: models.ResolutionKeepServer})
		require.NoError(t, err)

		count, err := env.conflicts.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("unknown choice is rejected", func(t *testing.T) {
		env := setupTestEnv(t)
		_, c := seedConflict(t, env)

		_, err := env.conflicts.Resolve(ctx, c.ID, models.ResolveConflictRequest{Choice: "split_difference"})
		assert.ErrorIs(t, err, ErrUnknownResolution)
	})

	t.Run("missing conflict returns not found", func(t *testing.T) {
		env := setupTestEnv(t)

		_, err := env.conflicts.Resolve(ctx, "missing", models.ResolveConflictRequest{Choice: models.ResolutionKeepLocal})
		assert.ErrorIs(t, err, ErrConflictNotFound)
	})
}
