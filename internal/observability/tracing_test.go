package observability

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/engine/internal/repository"
)

func openTraceDB(t *testing.T) *TraceDB {
	t.Helper()
	dir, err := os.MkdirTemp("", "notesync-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := sql.Open("sqlite3", filepath.Join(dir, "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	traced, err := NewTraceDB(db)
	require.NoError(t, err)
	return traced
}

func TestTraceDB(t *testing.T) {
	ctx := context.Background()
	traced := openTraceDB(t)

	// The wrapper stands in for *sql.DB wherever repositories expect one
	var _ repository.DB = traced

	_, err := traced.ExecContext(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	t.Run("exec and query round trip", func(t *testing.T) {
		result, err := traced.ExecContext(ctx, `INSERT INTO items (id, name) VALUES (?, ?)`, "i1", "first")
		require.NoError(t, err)
		affected, err := result.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)

		var name string
		require.NoError(t, traced.QueryRowContext(ctx, `SELECT name FROM items WHERE id = ?`, "i1").Scan(&name))
		assert.Equal(t, "first", name)

		rows, err := traced.QueryContext(ctx, `SELECT id FROM items ORDER BY id`)
		require.NoError(t, err)
		defer rows.Close()
		var ids []string
		for rows.Next() {
			var id string
			require.NoError(t, rows.Scan(&id))
			ids = append(ids, id)
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, []string{"i1"}, ids)
	})

	t.Run("transactions run on the underlying connection", func(t *testing.T) {
		tx, err := traced.BeginTx(ctx, nil)
		require.NoError(t, err)
		_, err = tx.ExecContext(ctx, `INSERT INTO items (id, name) VALUES (?, ?)`, "i2", "second")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		var name string
		require.NoError(t, traced.QueryRowContext(ctx, `SELECT name FROM items WHERE id = ?`, "i2").Scan(&name))
		assert.Equal(t, "second", name)
	})

	t.Run("errors surface unchanged", func(t *testing.T) {
		_, err := traced.QueryContext(ctx, `SELECT nope FROM missing`)
		assert.Error(t, err)
	})
}
