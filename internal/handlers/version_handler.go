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

// VersionHandler handles version history endpoints
type VersionHandler struct {
	versionService *services.VersionService
}

// NewVersionHandler creates a new VersionHandler
func NewVersionHandler(versionService *services.VersionService) *VersionHandler {
	return &VersionHandler{versionService: versionService}
}

// ListVersions returns the stored versions for an item, newest first
// @Summary List item versions
// @Tags versions
// @Produce json
// @Param type path string true "Item type (note, task, journal)"
// @Param id path string true "Item ID"
// @Param limit query int false "Maximum number of versions"
// @Success 200 {object} models.VersionListResponse
// @Security ApiKeyAuth
// @Router /api/items/{type}/{id}/versions [get]
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	itemType := models.RecordType(chi.URLParam(r, "type"))
	itemID := chi.URLParam(r, "id")
	if !itemType.IsValid() || itemID == "" {
		writeError(w, http.StatusBadRequest, "Valid item type and ID required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	versions, err := h.versionService.List(r.Context(), itemType, itemID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list versions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.VersionListResponse{
		Versions:   versions,
		TotalCount: len(versions),
	})
}

// RestoreVersion overwrites the item's current content with a stored version
// @Summary Restore a version
// @Description Snapshots the current content, overwrites it with the version and pushes the result
// @Tags versions
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} models.RestoreResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/versions/{id}/restore [post]
func (h *VersionHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Version ID required")
		return
	}

	resp, err := h.versionService.Restore(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVersionNotFound):
			writeError(w, http.StatusNotFound, "Version not found")
		case errors.Is(err, services.ErrRecordNotFound):
			writeError(w, http.StatusConflict, "Record no longer exists")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to restore version")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
