package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/repository"
)

func TestVersionCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("captures and lists snapshots newest first", func(t *testing.T) {
		env := setupTestEnv(t)

		for i := 1; i <= 3; i++ {
			snap := models.RecordSnapshot{
				Type:    models.RecordTypeNote,
				ID:      "n1",
				Title:   "title",
				Content: fmt.Sprintf("revision %d", i),
			}
			require.NoError(t, env.versions.CaptureSnapshot(ctx, snap))
		}

		versions, err := env.versions.List(ctx, models.RecordTypeNote, "n1", 0)
		require.NoError(t, err)
		require.Len(t, versions, 3)
		assert.Equal(t, "revision 3", versions[0].Content)
		assert.Equal(t, "revision 1", versions[2].Content)
	})

	t.Run("history is capped per item", func(t *testing.T) {
		env := setupTestEnv(t)

		for i := 1; i <= repository.DefaultMaxVersionsPerItem+10; i++ {
			snap := models.RecordSnapshot{
				Type:    models.RecordTypeNote,
				ID:      "n1",
				Title:   "title",
				Content: fmt.Sprintf("revision %d", i),
			}
			require.NoError(t, env.versions.CaptureSnapshot(ctx, snap))
		}

		versions, err := env.versions.List(ctx, models.RecordTypeNote, "n1", 0)
		require.NoError(t, err)
		require.Len(t, versions, repository.DefaultMaxVersionsPerItem)

		// Oldest revisions are the ones evicted
		assert.Equal(t, fmt.Sprintf("revision %d", repository.DefaultMaxVersionsPerItem+10), versions[0].Content)
		assert.Equal(t, "revision 11", versions[len(versions)-1].Content)
	})

	t.Run("list rejects unknown item type", func(t *testing.T) {
		env := setupTestEnv(t)

		_, err := env.versions.List(ctx, models.RecordType("photo"), "n1", 0)
		assert.Error(t, err)
	})
}

func TestVersionRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("restores old content and pushes the update", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("title", "current content")
		require.NoError(t, env.notes.Upsert(ctx, note))

		old := models.RecordSnapshot{Type: models.RecordTypeNote, ID: note.ID, Title: "title", Content: "old content"}
		require.NoError(t, env.versions.CaptureSnapshot(ctx, old))

		versions, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)
		require.Len(t, versions, 1)

		resp, err := env.versions.Restore(ctx, versions[0].ID)
		require.NoError(t, err)
		assert.Equal(t, note.ID, resp.ItemID)
		assert.False(t, resp.Outcome.IsQueued())
		assert.Equal(t, 1, env.server.callCount())

		restored, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "old content", restored.Content)
	})

	t.Run("content being overwritten is versioned before restore", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("title", "current content")
		require.NoError(t, env.notes.Upsert(ctx, note))

		old := models.RecordSnapshot{Type: models.RecordTypeNote, ID: note.ID, Title: "title", Content: "old content"}
		require.NoError(t, env.versions.CaptureSnapshot(ctx, old))
		versions, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)

		_, err = env.versions.Restore(ctx, versions[0].ID)
		require.NoError(t, err)

		after, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)
		require.Len(t, after, 2)
		assert.Equal(t, "current content", after[0].Content)
	})

	t.Run("restore queues the push when offline", func(t *testing.T) {
		env := setupTestEnv(t)
		env.server.invokeErr = transientErr()

		note := models.NewNote("title", "current")
		require.NoError(t, env.notes.Upsert(ctx, note))
		old := models.RecordSnapshot{Type: models.RecordTypeNote, ID: note.ID, Title: "title", Content: "old"}
		require.NoError(t, env.versions.CaptureSnapshot(ctx, old))
		versions, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)

		resp, err := env.versions.Restore(ctx, versions[0].ID)
		require.NoError(t, err)
		assert.True(t, resp.Outcome.IsQueued())

		// The restore still lands locally
		restored, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "old", restored.Content)
	})

	t.Run("unknown version returns not found", func(t *testing.T) {
		env := setupTestEnv(t)

		_, err := env.versions.Restore(ctx, "missing")
		assert.ErrorIs(t, err, ErrVersionNotFound)
	})

	t.Run("restore of deleted record is rejected", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("title", "content")
		require.NoError(t, env.notes.Upsert(ctx, note))
		old := models.RecordSnapshot{Type: models.RecordTypeNote, ID: note.ID, Title: "title", Content: "old"}
		require.NoError(t, env.versions.CaptureSnapshot(ctx, old))
		versions, err := env.versions.List(ctx, models.RecordTypeNote, note.ID, 0)
		require.NoError(t, err)

		require.NoError(t, env.notes.SoftDelete(ctx, note.ID))

		_, err = env.versions.Restore(ctx, versions[0].ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}
