package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/services"
)

// JournalHandler handles journal entry API endpoints
type JournalHandler struct {
	journalService *services.JournalService
}

// NewJournalHandler creates a new JournalHandler
func NewJournalHandler(journalService *services.JournalService) *JournalHandler {
	return &JournalHandler{journalService: journalService}
}

type journalWriteResponse struct {
	Entry   *models.JournalEntry   `json:"entry"`
	Outcome models.MutationOutcome `json:"outcome"`
}

// ListEntries returns journal entries, excluding soft-deleted ones
func (h *JournalHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	skip, take := parsePaging(r)
	entries, err := h.journalService.List(r.Context(), skip, take)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list journal entries")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetEntry returns a journal entry by ID
func (h *JournalHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Entry ID required")
		return
	}

	entry, err := h.journalService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get entry")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// CreateEntry creates a journal entry locally and pushes it to the server
func (h *JournalHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJournalEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, outcome, err := h.journalService.Create(r.Context(), &req)
	if err != nil {
		writeMutationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(journalWriteResponse{Entry: entry, Outcome: outcome})
}

// UpdateEntry updates a journal entry locally and pushes the result
func (h *JournalHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Entry ID required")
		return
	}

	var req models.UpdateJournalEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, outcome, err := h.journalService.Update(r.Context(), id, &req)
	if err != nil {
		writeMutationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(journalWriteResponse{Entry: entry, Outcome: outcome})
}

// DeleteEntry soft-deletes a journal entry locally and pushes the deletion
func (h *JournalHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Entry ID required")
		return
	}

	outcome, err := h.journalService.Delete(r.Context(), id)
	if err != nil {
		writeMutationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}
