package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/services"
)

// ConflictHandler handles conflict listing and resolution endpoints
type ConflictHandler struct {
	conflictService *services.ConflictService
}

// NewConflictHandler creates a new ConflictHandler
func NewConflictHandler(conflictService *services.ConflictService) *ConflictHandler {
	return &ConflictHandler{conflictService: conflictService}
}

// ListConflicts returns all open conflicts
// @Summary List open conflicts
// @Tags conflicts
// @Produce json
// @Success 200 {object} models.ConflictListResponse
// @Security ApiKeyAuth
// @Router /api/conflicts [get]
func (h *ConflictHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.conflictService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list conflicts")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.ConflictListResponse{
		Conflicts:  conflicts,
		TotalCount: len(conflicts),
	})
}

// GetConflict returns a single conflict with both sides' content
func (h *ConflictHandler) GetConflict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Conflict ID required")
		return
	}

	conflict, err := h.conflictService.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get conflict")
		return
	}
	if conflict == nil {
		writeError(w, http.StatusNotFound, "Conflict not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conflict)
}

// ResolveConflict applies a resolution choice to a conflict
// @Summary Resolve a conflict
// @Description Applies keep_local, keep_server or a manual merge and removes the conflict
// @Tags conflicts
// @Accept json
// @Produce json
// @Param id path string true "Conflict ID"
// @Param request body models.ResolveConflictRequest true "Resolution choice"
// @Success 200 {object} models.MutationOutcome
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/conflicts/{id}/resolve [post]
func (h *ConflictHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Conflict ID required")
		return
	}

	var req models.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	outcome, err := h.conflictService.Resolve(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConflictNotFound):
			writeError(w, http.StatusNotFound, "Conflict not found")
		case errors.Is(err, services.ErrUnknownResolution):
			writeError(w, http.StatusBadRequest, "Unknown resolution choice")
		case errors.Is(err, services.ErrRecordNotFound):
			writeError(w, http.StatusConflict, "Record no longer exists")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to resolve conflict")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}
