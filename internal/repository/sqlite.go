package repository

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the query surface the repositories run on. It is satisfied by
// *sql.DB and by instrumented wrappers such as observability.TraceDB.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// NewSQLiteDB creates and initializes the local SQLite store
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Single-writer local store; WAL keeps readers unblocked during syncs
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Notes (the primary knowledge records)
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		category_id TEXT,
		tag_ids TEXT NOT NULL DEFAULT '[]',
		pinned INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at);
	CREATE INDEX IF NOT EXISTS idx_notes_deleted ON notes(deleted);

	-- Tasks
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		due_date DATETIME,
		completed INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
	CREATE INDEX IF NOT EXISTS idx_tasks_deleted ON tasks(deleted);

	-- Journal entries
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		entry_date TEXT NOT NULL,
		content TEXT NOT NULL,
		mood TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_entries_entry_date ON journal_entries(entry_date);

	-- Catalog collections (kept for backup import/export)
	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		note_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attachments_note_id ON attachments(note_id);

	CREATE TABLE IF NOT EXISTS review_schedules (
		id TEXT PRIMARY KEY,
		note_id TEXT NOT NULL,
		interval_days INTEGER NOT NULL,
		next_review_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_review_schedules_note_id ON review_schedules(note_id);

	-- Pending remote writes; seq preserves FIFO order across equal timestamps
	CREATE TABLE IF NOT EXISTS mutation_queue (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		operation_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		record_type TEXT NOT NULL,
		record_id TEXT NOT NULL,
		enqueued_at DATETIME NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_mutation_queue_record ON mutation_queue(record_type, record_id);

	-- Unresolved conflicts; one per item, newer supersedes older
	CREATE TABLE IF NOT EXISTS conflicts (
		id TEXT PRIMARY KEY,
		item_type TEXT NOT NULL,
		item_id TEXT NOT NULL,
		item_title TEXT NOT NULL,
		local_title TEXT NOT NULL,
		local_content TEXT NOT NULL,
		server_title TEXT NOT NULL,
		server_content TEXT NOT NULL,
		server_deleted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		UNIQUE(item_type, item_id)
	);

	CREATE INDEX IF NOT EXISTS idx_conflicts_created_at ON conflicts(created_at);

	-- Append-only version history
	CREATE TABLE IF NOT EXISTS item_versions (
		id TEXT PRIMARY KEY,
		item_type TEXT NOT NULL,
		item_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_item_versions_item ON item_versions(item_type, item_id, created_at);

	-- Sync watermark and other engine-level markers
	CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	-- Content hash of each record as of its last successful sync
	CREATE TABLE IF NOT EXISTS base_hashes (
		item_type TEXT NOT NULL,
		item_id TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		PRIMARY KEY (item_type, item_id)
	);
	`

	_, err := db.Exec(schema)
	return err
}
