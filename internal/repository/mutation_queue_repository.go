package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/notesync/engine/internal/models"
)

// MutationQueueRepository is the durable FIFO log of pending remote writes.
// Rows are removed only after a confirmed successful replay; only
// attempt_count and last_error change in place.
type MutationQueueRepository struct {
	db DB
}

// NewMutationQueueRepository creates a new MutationQueueRepository
func NewMutationQueueRepository(db DB) *MutationQueueRepository {
	return &MutationQueueRepository{db: db}
}

// Enqueue appends a mutation to the queue. A failed insert is surfaced to the
// caller as a hard error since durability cannot be guaranteed.
func (r *MutationQueueRepository) Enqueue(ctx context.Context, m *models.QueuedMutation) error {
	query := `INSERT INTO mutation_queue (id, operation_name, payload, record_type, record_id, enqueued_at, attempt_count, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.OperationName,
		string(m.Payload),
		m.RecordType,
		m.RecordID,
		m.EnqueuedAt,
		m.AttemptCount,
		m.LastError,
	)
	if err != nil {
		return fmt.Errorf("enqueue mutation: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("enqueue mutation: %w", err)
	}
	m.Seq = seq
	return nil
}

// PeekBatch returns up to max mutations in replay order without removing them
func (r *MutationQueueRepository) PeekBatch(ctx context.Context, max int) ([]*models.QueuedMutation, error) {
	query := `SELECT seq, id, operation_name, payload, record_type, record_id, enqueued_at, attempt_count, last_error
		FROM mutation_queue ORDER BY enqueued_at ASC, seq ASC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, max)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMutations(rows)
}

// MarkSucceeded removes a mutation after a confirmed remote replay
func (r *MutationQueueRepository) MarkSucceeded(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE id = ?`, id)
	return err
}

// MarkFailed increments the attempt count and leaves the mutation queued
func (r *MutationQueueRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	query := `UPDATE mutation_queue SET attempt_count = attempt_count + 1, last_error = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, lastError, id)
	return err
}

// Drop removes a permanently rejected mutation from the queue
func (r *MutationQueueRepository) Drop(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE id = ?`, id)
	return err
}

// ListAll returns every queued mutation in replay order, for diagnostics
func (r *MutationQueueRepository) ListAll(ctx context.Context) ([]*models.QueuedMutation, error) {
	query := `SELECT seq, id, operation_name, payload, record_type, record_id, enqueued_at, attempt_count, last_error
		FROM mutation_queue ORDER BY enqueued_at ASC, seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMutations(rows)
}

// Count returns the number of queued mutations
func (r *MutationQueueRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutation_queue`).Scan(&count)
	return count, err
}

func scanMutations(rows *sql.Rows) ([]*models.QueuedMutation, error) {
	var mutations []*models.QueuedMutation
	for rows.Next() {
		m := &models.QueuedMutation{}
		var payload string
		err := rows.Scan(
			&m.Seq,
			&m.ID,
			&m.OperationName,
			&payload,
			&m.RecordType,
			&m.RecordID,
			&m.EnqueuedAt,
			&m.AttemptCount,
			&m.LastError,
		)
		if err != nil {
			return nil, err
		}
		m.Payload = []byte(payload)
		mutations = append(mutations, m)
	}
	return mutations, rows.Err()
}
