package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/notesync/engine/internal/models"
)

// TaskRepository handles task persistence
type TaskRepository struct {
	db DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// GetByID retrieves a task by its ID, including soft-deleted ones
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT id, title, notes, due_date, completed, deleted, created_at, updated_at
		FROM tasks WHERE id = ?`

	task, err := scanTaskRow(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

// GetAll retrieves tasks ordered by due date, undated last
func (r *TaskRepository) GetAll(ctx context.Context, includeDeleted bool, skip, take int) ([]*models.Task, error) {
	query := `SELECT id, title, notes, due_date, completed, deleted, created_at, updated_at
		FROM tasks`
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY due_date IS NULL, due_date ASC, created_at ASC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Upsert inserts or fully replaces a task
func (r *TaskRepository) Upsert(ctx context.Context, task *models.Task) error {
	query := `INSERT INTO tasks (id, title, notes, due_date, completed, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			notes = excluded.notes,
			due_date = excluded.due_date,
			completed = excluded.completed,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Notes,
		task.DueDate,
		task.Completed,
		task.Deleted,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

// SetEditable overwrites the task's editable fields only
func (r *TaskRepository) SetEditable(ctx context.Context, id, title, notes string) error {
	query := `UPDATE tasks SET title = ?, notes = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, title, notes, time.Now().UTC(), id)
	return err
}

// SoftDelete marks a task deleted without removing the row
func (r *TaskRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE tasks SET deleted = 1, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

func scanTaskRow(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var dueDate sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Notes,
		&dueDate,
		&task.Completed,
		&task.Deleted,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	return task, nil
}
