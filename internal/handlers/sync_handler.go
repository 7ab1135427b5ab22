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

// SyncHandler handles sync engine endpoints
type SyncHandler struct {
	engine    *services.SyncEngine
	mutations *services.MutationService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(engine *services.SyncEngine, mutations *services.MutationService) *SyncHandler {
	return &SyncHandler{
		engine:    engine,
		mutations: mutations,
	}
}

// TriggerSync runs a full sync cycle
// @Summary Trigger a full sync
// @Description Pushes pending mutations, then pulls and applies server changes
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncResult
// @Failure 409 {object} models.ErrorResponse "Sync already in progress"
// @Security ApiKeyAuth
// @Router /api/sync [post]
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.FullSync(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "Sync already in progress")
			return
		}
		// Partial results still matter: the push phase may have drained
		// part of the queue before the failure.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetSyncStatus reports watermark, queue depth and open conflicts
// @Summary Get sync status
// @Description Returns the last sync watermark, pending mutation count and open conflict count
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncStatusResponse
// @Security ApiKeyAuth
// @Router /api/sync/status [get]
func (h *SyncHandler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sync status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// ListQueue returns pending mutations in push order
// @Summary List the offline mutation queue
// @Tags sync
// @Produce json
// @Param limit query int false "Return only the oldest N mutations"
// @Success 200 {object} models.QueueListResponse
// @Security ApiKeyAuth
// @Router /api/sync/queue [get]
func (h *SyncHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	mutations, err := h.mutations.ListQueue(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list queue")
		return
	}

	total := len(mutations)
	if limit > 0 {
		if depth, err := h.mutations.QueueDepth(r.Context()); err == nil {
			total = depth
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.QueueListResponse{
		Mutations:  mutations,
		TotalCount: total,
	})
}

// DropMutation removes a pending mutation without pushing it
// @Summary Discard a queued mutation
// @Tags sync
// @Param id path string true "Mutation ID"
// @Success 204 "Mutation discarded"
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sync/queue/{id} [delete]
func (h *SyncHandler) DropMutation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Mutation ID required")
		return
	}

	if err := h.mutations.DropMutation(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrMutationNotFound) {
			writeError(w, http.StatusNotFound, "Mutation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to discard mutation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg})
}
