package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/repository"
)

// JournalService handles journal entry business logic
type JournalService struct {
	journal   *repository.JournalRepository
	mutations *MutationService
}

// NewJournalService creates a new JournalService
func NewJournalService(journal *repository.JournalRepository, mutations *MutationService) *JournalService {
	return &JournalService{journal: journal, mutations: mutations}
}

// Create stores a new journal entry locally and pushes it to the server
func (s *JournalService) Create(ctx context.Context, req *models.CreateJournalEntryRequest) (*models.JournalEntry, models.MutationOutcome, error) {
	if _, err := time.Parse("2006-01-02", req.EntryDate); err != nil {
		return nil, models.MutationOutcome{}, fmt.Errorf("%w: entryDate must be YYYY-MM-DD", ErrInvalidInput)
	}

	entry := models.NewJournalEntry(req.EntryDate, req.Content)
	entry.Mood = req.Mood

	if err := s.journal.Upsert(ctx, entry); err != nil {
		return nil, models.MutationOutcome{}, err
	}

	outcome, err := s.pushEntry(ctx, models.OpJournalCreate, entry)
	return entry, outcome, err
}

// Get returns a journal entry by ID
func (s *JournalService) Get(ctx context.Context, id string) (*models.JournalEntry, error) {
	entry, err := s.journal.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Deleted {
		return nil, ErrRecordNotFound
	}
	return entry, nil
}

// List returns journal entries, excluding soft-deleted ones
func (s *JournalService) List(ctx context.Context, skip, take int) ([]*models.JournalEntry, error) {
	return s.journal.GetAll(ctx, false, skip, take)
}

// Update applies the given changes locally and pushes the result
func (s *JournalService) Update(ctx context.Context, id string, req *models.UpdateJournalEntryRequest) (*models.JournalEntry, models.MutationOutcome, error) {
	entry, err := s.journal.GetByID(ctx, id)
	if err != nil {
		return nil, models.MutationOutcome{}, err
	}
	if entry == nil || entry.Deleted {
		return nil, models.MutationOutcome{}, ErrRecordNotFound
	}

	if req.Content != nil {
		entry.Content = *req.Content
	}
	if req.Mood != nil {
		entry.Mood = *req.Mood
	}
	entry.UpdatedAt = time.Now().UTC()

	if err := s.journal.Upsert(ctx, entry); err != nil {
		return nil, models.MutationOutcome{}, err
	}

	outcome, err := s.pushEntry(ctx, models.OpJournalUpdate, entry)
	return entry, outcome, err
}

// Delete soft-deletes a journal entry locally and pushes the deletion
func (s *JournalService) Delete(ctx context.Context, id string) (models.MutationOutcome, error) {
	entry, err := s.journal.GetByID(ctx, id)
	if err != nil {
		return models.MutationOutcome{}, err
	}
	if entry == nil || entry.Deleted {
		return models.MutationOutcome{}, ErrRecordNotFound
	}

	if err := s.journal.SoftDelete(ctx, id); err != nil {
		return models.MutationOutcome{}, err
	}

	return s.mutations.RunOrQueue(ctx, models.OpJournalDelete, models.RecordTypeJournal, id, deletePayload(id))
}

func (s *JournalService) pushEntry(ctx context.Context, operationName string, entry *models.JournalEntry) (models.MutationOutcome, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return models.MutationOutcome{}, fmt.Errorf("encode journal entry %s: %w", entry.ID, err)
	}
	return s.mutations.RunOrQueue(ctx, operationName, models.RecordTypeJournal, entry.ID, payload)
}
