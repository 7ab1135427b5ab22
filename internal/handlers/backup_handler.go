package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/notesync/engine/internal/models"
	"github.com/notesync/engine/internal/services"
)

// BackupHandler handles export and import endpoints
type BackupHandler struct {
	backupService *services.BackupService
}

// NewBackupHandler creates a new BackupHandler
func NewBackupHandler(backupService *services.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// ExportBackup streams the full dataset as a backup document
// @Summary Export a backup
// @Description Returns the complete local dataset as a downloadable JSON backup
// @Tags backup
// @Produce json
// @Success 200 {object} models.Backup
// @Security ApiKeyAuth
// @Router /api/backup/export [get]
func (h *BackupHandler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	backup, err := h.backupService.Export(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export backup")
		return
	}

	filename := fmt.Sprintf("notesync-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	json.NewEncoder(w).Encode(backup)
}

// ImportBackup validates and applies a backup document
// @Summary Import a backup
// @Description Validates the document in full, then applies it with the chosen strategy in one transaction
// @Tags backup
// @Accept json
// @Produce json
// @Param request body models.ImportRequest true "Strategy and backup document"
// @Success 200 {object} models.ImportSummary
// @Failure 400 {object} models.ErrorResponse "Malformed backup or unknown strategy"
// @Security ApiKeyAuth
// @Router /api/backup/import [post]
func (h *BackupHandler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	var req models.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Backup) == 0 {
		writeError(w, http.StatusBadRequest, "Backup document required")
		return
	}

	summary, err := h.backupService.Import(r.Context(), req.Strategy, req.Backup)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to import backup")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
