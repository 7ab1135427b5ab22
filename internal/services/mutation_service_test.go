package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/engine/internal/models"
)

func TestRunOrQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("applies mutation when server accepts it", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("reachable", "content")
		payload, err := json.Marshal(note)
		require.NoError(t, err)

		outcome, err := env.mutations.RunOrQueue(ctx, models.OpNoteCreate, models.RecordTypeNote, note.ID, payload)
		require.NoError(t, err)

		assert.False(t, outcome.IsQueued())
		assert.NotNil(t, outcome.Applied)

		depth, err := env.mutations.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, depth)
	})

	t.Run("applied mutation records the new baseline hash", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("baseline", "content")
		payload, err := json.Marshal(note)
		require.NoError(t, err)

		_, err = env.mutations.RunOrQueue(ctx, models.OpNoteCreate, models.RecordTypeNote, note.ID, payload)
		require.NoError(t, err)

		baseHash, err := env.state.GetBaseHash(ctx, models.RecordTypeNote, note.ID)
		require.NoError(t, err)
		assert.Equal(t, env.hash.SnapshotHash(note.Snapshot()), baseHash)
	})

	t.Run("applied deletion clears the baseline hash", func(t *testing.T) {
		env := setupTestEnv(t)

		require.NoError(t, env.state.SetBaseHash(ctx, models.RecordTypeNote, "n1", "somehash"))

		_, err := env.mutations.RunOrQueue(ctx, models.OpNoteDelete, models.RecordTypeNote, "n1", json.RawMessage(`{"id":"n1"}`))
		require.NoError(t, err)

		baseHash, err := env.state.GetBaseHash(ctx, models.RecordTypeNote, "n1")
		require.NoError(t, err)
		assert.Empty(t, baseHash)
	})

	t.Run("queues mutation when server is unreachable", func(t *testing.T) {
		env := setupTestEnv(t)
		env.server.invokeErr = transientErr()

		note := models.NewNote("offline", "content")
		payload, err := json.Marshal(note)
		require.NoError(t, err)

		outcome, err := env.mutations.RunOrQueue(ctx, models.OpNoteCreate, models.RecordTypeNote, note.ID, payload)
		require.NoError(t, err)

		require.True(t, outcome.IsQueued())
		assert.NotEmpty(t, outcome.Queued.MutationID)

		queued, err := env.mutations.ListQueue(ctx, 0)
		require.NoError(t, err)
		require.Len(t, queued, 1)
		assert.Equal(t, models.OpNoteCreate, queued[0].OperationName)
		assert.Equal(t, note.ID, queued[0].RecordID)
	})

	t.Run("permanent rejection surfaces as error without queueing", func(t *testing.T) {
		env := setupTestEnv(t)
		env.server.invokeErr = permanentErr()

		note := models.NewNote("rejected", "content")
		payload, err := json.Marshal(note)
		require.NoError(t, err)

		_, err = env.mutations.RunOrQueue(ctx, models.OpNoteCreate, models.RecordTypeNote, note.ID, payload)
		require.Error(t, err)

		depth, err := env.mutations.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, depth)

		// A rejected write must not move the baseline
		baseHash, err := env.state.GetBaseHash(ctx, models.RecordTypeNote, note.ID)
		require.NoError(t, err)
		assert.Empty(t, baseHash)
	})
}

func TestListQueue(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	for i := 0; i < 4; i++ {
		note := models.NewNote(fmt.Sprintf("note %d", i), "content")
		env.mustEnqueueNote(t, models.OpNoteCreate, note)
	}

	t.Run("zero limit returns the whole queue", func(t *testing.T) {
		queued, err := env.mutations.ListQueue(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, queued, 4)
	})

	t.Run("positive limit returns the oldest entries", func(t *testing.T) {
		all, err := env.mutations.ListQueue(ctx, 0)
		require.NoError(t, err)

		page, err := env.mutations.ListQueue(ctx, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, all[0].ID, page[0].ID)
		assert.Equal(t, all[1].ID, page[1].ID)
	})
}

func TestDropMutation(t *testing.T) {
	ctx := context.Background()

	t.Run("removes a queued mutation", func(t *testing.T) {
		env := setupTestEnv(t)

		note := models.NewNote("queued", "x")
		m := env.mustEnqueueNote(t, models.OpNoteCreate, note)

		require.NoError(t, env.mutations.DropMutation(ctx, m.ID))

		depth, err := env.mutations.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, depth)
	})

	t.Run("returns not found for unknown id", func(t *testing.T) {
		env := setupTestEnv(t)

		err := env.mutations.DropMutation(ctx, "missing")
		assert.ErrorIs(t, err, ErrMutationNotFound)
	})
}
