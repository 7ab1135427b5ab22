package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/services"
)

// NoteHandler handles note API endpoints
type NoteHandler struct {
	noteService *services.NoteService
}

// NewNoteHandler creates a new NoteHandler
func NewNoteHandler(noteService *services.NoteService) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

type noteWriteResponse struct {
	Note    *models.Note           `json:"note"`
	Outcome models.MutationOutcome `json:"outcome"`
}

// ListNotes returns notes, excluding soft-deleted ones
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	skip, take := parsePaging(r)
	notes, err := h.noteService.List(r.Context(), skip, take)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notes")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notes)
}

// GetNote returns a note by ID
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Note ID required")
		return
	}

	note, err := h.noteService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Note not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get note")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(note)
}

// CreateNote creates a note locally and pushes it to the server
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, outcome, err := h.noteService.Create(r.Context(), &req)
	if err != nil {
		writeMutationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(noteWriteResponse{Note: note, Outcome: outcome})
}

// UpdateNote updates a note locally and pushes the result
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Note ID required")
		return
	}

	var req models.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, outcome, err := h.noteService.Update(r.Context(), id, &req)
	if err != nil {
		writeMutationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(noteWriteResponse{Note: note, Outcome: outcome})
}

// DeleteNote soft-deletes a note locally and pushes the deletion
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Note ID required")
		return
	}

	outcome, err := h.noteService.Delete(r.Context(), id)
	if err != nil {
		writeMutationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}

// writeMutationError maps service errors from the write path to HTTP statuses.
// A remote rejection comes back as 502 since the local write already landed.
func writeMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "Record not found")
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func parsePaging(r *http.Request) (skip, take int) {
	take = 100
	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = n
		}
	}
	if v := r.URL.Query().Get("take"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			take = n
		}
	}
	return skip, take
}
