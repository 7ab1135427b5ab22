package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/engine/internal/models"
)

func TestNoteService(t *testing.T) {
	ctx := context.Background()

	t.Run("create stores locally and pushes", func(t *testing.T) {
		env := setupTestEnv(t)
		service := NewNoteService(env.notes, env.mutations)

		note, outcome, err := service.Create(ctx, &models.CreateNoteRequest{Title: "groceries", Content: "milk"})
		require.NoError(t, err)
		assert.False(t, outcome.IsQueued())
		assert.Equal(t, 1, env.server.callCount())

		stored, err := service.Get(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "groceries", stored.Title)
	})

	t.Run("create without title is rejected", func(t *testing.T) {
		env := setupTestEnv(t)
		service := NewNoteService(env.notes, env.mutations)

		_, _, err := service.Create(ctx, &models.CreateNoteRequest{Content: "orphaned"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("create while offline lands locally and queues the push", func(t *testing.T) {
		env := setupTestEnv(t)
		env.server.invokeErr = transientErr()
		service := NewNoteService(env.notes, env.mutations)

		note, outcome, err := service.Create(ctx, &models.CreateNoteRequest{Title: "offline note"})
		require.NoError(t, err)
		assert.True(t, outcome.IsQueued())

		stored, err := service.Get(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "offline note", stored.Title)

		depth, err := env.mutations.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, depth)
	})

	t.Run("update changes only the provided fields", func(t *testing.T) {
		env := setupTestEnv(t)
		service := NewNoteService(env.notes, env.mutations)

		note, _, err := service.Create(ctx, &models.CreateNoteRequest{Title: "title", Content: "content"})
		require.NoError(t, err)

		newContent := "edited content"
		updated, _, err := service.Update(ctx, note.ID, &models.UpdateNoteRequest{Content: &newContent})
		require.NoError(t, err)

		assert.Equal(t, "title", updated.Title)
		assert.Equal(t, "edited content", updated.Content)
	})

	t.Run("update cannot clear the title", func(t *testing.T) {
		env := setupTestEnv(t)
		service := NewNoteService(env.notes, env.mutations)

		note, _, err := service.Create(ctx, &models.CreateNoteRequest{Title: "title"})
		require.NoError(t, err)

		empty := ""
		_, _, err = service.Update(ctx, note.ID, &models.UpdateNoteRequest{Title: &empty})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("delete soft-deletes and pushes the deletion", func(t *testing.T) {
		env := setupTestEnv(t)
		service := NewNoteService(env.notes, env.mutations)

		note, _, err := service.Create(ctx, &models.CreateNoteRequest{Title: "doomed"})
		require.NoError(t, err)

		outcome, err := service.Delete(ctx, note.ID)
		require.NoError(t, err)
		assert.False(t, outcome.IsQueued())

		_, err = service.Get(ctx, note.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)

		// The row survives as a tombstone for sync
		raw, err := env.notes.GetByID(ctx, note.ID)
		require.NoError(t, err)
		require.NotNil(t, raw)
		assert.True(t, raw.Deleted)
	})

	t.Run("operations on missing notes return not found", func(t *testing.T) {
		env := setupTestEnv(t)
		service := NewNoteService(env.notes, env.mutations)

		_, err := service.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)

		_, _, err = service.Update(ctx, "missing", &models.UpdateNoteRequest{})
		assert.ErrorIs(t, err, ErrRecordNotFound)

		_, err = service.Delete(ctx, "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("list excludes deleted notes", func(t *testing.T) {
		env := setupTestEnv(t)
		service := NewNoteService(env.notes, env.mutations)

		kept, _, err := service.Create(ctx, &models.CreateNoteRequest{Title: "kept"})
		require.NoError(t, err)
		doomed, _, err := service.Create(ctx, &models.CreateNoteRequest{Title: "doomed"})
		require.NoError(t, err)
		_, err = service.Delete(ctx, doomed.ID)
		require.NoError(t, err)

		notes, err := service.List(ctx, 0, 100)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, kept.ID, notes[0].ID)
	})
}
