package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/repository"
)

// ErrInvalidInput is returned for requests that fail validation
var ErrInvalidInput = errors.New("invalid input")

// NoteService handles note business logic. Every write lands locally first,
// then reaches the server through the run-or-queue path.
type NoteService struct {
	notes     *repository.NoteRepository
	mutations *MutationService
}

// NewNoteService creates a new NoteService
func NewNoteService(notes *repository.NoteRepository, mutations *MutationService) *NoteService {
	return &NoteService{notes: notes, mutations: mutations}
}

// Create stores a new note locally and pushes it to the server
func (s *NoteService) Create(ctx context.Context, req *models.CreateNoteRequest) (*models.Note, models.MutationOutcome, error) {
	if req.Title == "" {
		return nil, models.MutationOutcome{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	note := models.NewNote(req.Title, req.Content)
	note.CategoryID = req.CategoryID
	note.TagIDs = req.TagIDs
	note.Pinned = req.Pinned

	if err := s.notes.Upsert(ctx, note); err != nil {
		return nil, models.MutationOutcome{}, err
	}

	outcome, err := s.pushNote(ctx, models.OpNoteCreate, note)
	return note, outcome, err
}

// Get returns a note by ID
func (s *NoteService) Get(ctx context.Context, id string) (*models.Note, error) {
	note, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note == nil || note.Deleted {
		return nil, ErrRecordNotFound
	}
	return note, nil
}

// List returns notes, excluding soft-deleted ones
func (s *NoteService) List(ctx context.Context, skip, take int) ([]*models.Note, error) {
	return s.notes.GetAll(ctx, false, skip, take)
}

// Update applies the given changes locally and pushes the result
func (s *NoteService) Update(ctx context.Context, id string, req *models.UpdateNoteRequest) (*models.Note, models.MutationOutcome, error) {
	note, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, models.MutationOutcome{}, err
	}
	if note == nil || note.Deleted {
		return nil, models.MutationOutcome{}, ErrRecordNotFound
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, models.MutationOutcome{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		note.Title = *req.Title
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	if req.CategoryID != nil {
		note.CategoryID = req.CategoryID
	}
	if req.TagIDs != nil {
		note.TagIDs = req.TagIDs
	}
	if req.Pinned != nil {
		note.Pinned = *req.Pinned
	}
	note.UpdatedAt = time.Now().UTC()

	if err := s.notes.Upsert(ctx, note); err != nil {
		return nil, models.MutationOutcome{}, err
	}

	outcome, err := s.pushNote(ctx, models.OpNoteUpdate, note)
	return note, outcome, err
}

// Delete soft-deletes a note locally and pushes the deletion
func (s *NoteService) Delete(ctx context.Context, id string) (models.MutationOutcome, error) {
	note, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return models.MutationOutcome{}, err
	}
	if note == nil || note.Deleted {
		return models.MutationOutcome{}, ErrRecordNotFound
	}

	if err := s.notes.SoftDelete(ctx, id); err != nil {
		return models.MutationOutcome{}, err
	}

	return s.mutations.RunOrQueue(ctx, models.OpNoteDelete, models.RecordTypeNote, id, deletePayload(id))
}

func (s *NoteService) pushNote(ctx context.Context, operationName string, note *models.Note) (models.MutationOutcome, error) {
	payload, err := json.Marshal(note)
	if err != nil {
		return models.MutationOutcome{}, fmt.Errorf("encode note %s: %w", note.ID, err)
	}
	return s.mutations.RunOrQueue(ctx, operationName, models.RecordTypeNote, note.ID, payload)
}

// deletePayload builds the payload for delete operations
func deletePayload(id string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"id": id})
	return b
}
