package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/repository"
)

// TaskService handles task business logic
type TaskService struct {
	tasks     *repository.TaskRepository
	mutations *MutationService
}

// NewTaskService creates a new TaskService
func NewTaskService(tasks *repository.TaskRepository, mutations *MutationService) *TaskService {
	return &TaskService{tasks: tasks, mutations: mutations}
}

// Create stores a new task locally and pushes it to the server
func (s *TaskService) Create(ctx context.Context, req *models.CreateTaskRequest) (*models.Task, models.MutationOutcome, error) {
	if req.Title == "" {
		return nil, models.MutationOutcome{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	task := models.NewTask(req.Title)
	task.Notes = req.Notes
	task.DueDate = req.DueDate

	if err := s.tasks.Upsert(ctx, task); err != nil {
		return nil, models.MutationOutcome{}, err
	}

	outcome, err := s.pushTask(ctx, models.OpTaskCreate, task)
	return task, outcome, err
}

// Get returns a task by ID
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil || task.Deleted {
		return nil, ErrRecordNotFound
	}
	return task, nil
}

// List returns tasks, excluding soft-deleted ones
func (s *TaskService) List(ctx context.Context, skip, take int) ([]*models.Task, error) {
	return s.tasks.GetAll(ctx, false, skip, take)
}

// Update applies the given changes locally and pushes the result
func (s *TaskService) Update(ctx context.Context, id string, req *models.UpdateTaskRequest) (*models.Task, models.MutationOutcome, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, models.MutationOutcome{}, err
	}
	if task == nil || task.Deleted {
		return nil, models.MutationOutcome{}, ErrRecordNotFound
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, models.MutationOutcome{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		task.Title = *req.Title
	}
	if req.Notes != nil {
		task.Notes = *req.Notes
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	task.UpdatedAt = time.Now().UTC()

	if err := s.tasks.Upsert(ctx, task); err != nil {
		return nil, models.MutationOutcome{}, err
	}

	outcome, err := s.pushTask(ctx, models.OpTaskUpdate, task)
	return task, outcome, err
}

// Delete soft-deletes a task locally and pushes the deletion
func (s *TaskService) Delete(ctx context.Context, id string) (models.MutationOutcome, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return models.MutationOutcome{}, err
	}
	if task == nil || task.Deleted {
		return models.MutationOutcome{}, ErrRecordNotFound
	}

	if err := s.tasks.SoftDelete(ctx, id); err != nil {
		return models.MutationOutcome{}, err
	}

	return s.mutations.RunOrQueue(ctx, models.OpTaskDelete, models.RecordTypeTask, id, deletePayload(id))
}

func (s *TaskService) pushTask(ctx context.Context, operationName string, task *models.Task) (models.MutationOutcome, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return models.MutationOutcome{}, fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	return s.mutations.RunOrQueue(ctx, operationName, models.RecordTypeTask, task.ID, payload)
}
