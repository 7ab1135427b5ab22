package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/engine/internal/models"
)

func openTestDB(t *testing.T) (dbPath string, repo *MutationQueueRepository) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "notesync-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	dbPath = filepath.Join(tempDir, "engine.db")
	db, err := NewSQLiteDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return dbPath, NewMutationQueueRepository(db)
}

func queueMutation(t *testing.T, repo *MutationQueueRepository, op, recordID string) *models.QueuedMutation {
	t.Helper()
	m := models.NewQueuedMutation(op, json.RawMessage(`{"id":"`+recordID+`"}`), models.RecordTypeNote, recordID)
	require.NoError(t, repo.Enqueue(context.Background(), m))
	return m
}

func TestMutationQueueOrder(t *testing.T) {
	ctx := context.Background()
	_, repo := openTestDB(t)

	// Mutations enqueued in the same instant must still replay in insert
	// order; seq breaks the timestamp tie.
	for i := 0; i < 5; i++ {
		queueMutation(t, repo, models.OpNoteUpdate, fmt.Sprintf("n%d", i))
	}

	entries, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, m := range entries {
		assert.Equal(t, fmt.Sprintf("n%d", i), m.RecordID)
	}

	batch, err := repo.PeekBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "n0", batch[0].RecordID)
	assert.Equal(t, "n1", batch[1].RecordID)
}

func TestMutationQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	_, repo := openTestDB(t)

	m := queueMutation(t, repo, models.OpNoteCreate, "n1")

	t.Run("failed attempt stays queued with attempt count", func(t *testing.T) {
		require.NoError(t, repo.MarkFailed(ctx, m.ID, "connection refused"))
		require.NoError(t, repo.MarkFailed(ctx, m.ID, "still down"))

		entries, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 2, entries[0].AttemptCount)
		assert.Equal(t, "still down", entries[0].LastError)
	})

	t.Run("success removes the mutation", func(t *testing.T) {
		require.NoError(t, repo.MarkSucceeded(ctx, m.ID))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestMutationQueueDurability(t *testing.T) {
	ctx := context.Background()
	dbPath, repo := openTestDB(t)

	queueMutation(t, repo, models.OpNoteCreate, "n1")
	queueMutation(t, repo, models.OpTaskCreate, "t1")

	// Reopen the file as a fresh process would after a crash
	db, err := NewSQLiteDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	reopened := NewMutationQueueRepository(db)
	entries, err := reopened.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.OpNoteCreate, entries[0].OperationName)
	assert.Equal(t, models.OpTaskCreate, entries[1].OperationName)
	assert.JSONEq(t, `{"id":"n1"}`, string(entries[0].Payload))
}
