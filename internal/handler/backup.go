package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/ourslists/internal/backup"
)

type BackupHandler struct {
	mgr    *backup.Manager
	logger *slog.Logger
}

func NewBackupHandler(mgr *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{mgr: mgr, logger: logger}
}

// Status handles GET /api/backups/status
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.Status())
}

// List handles GET /api/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.mgr.List(r.Context())
	if err != nil {
		h.writeBackupError(w, "list backups", err)
		return
	}
	if snaps == nil {
		snaps = []backup.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// Create handles POST /api/backups
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	snap, err := h.mgr.RunNow(r.Context())
	if err != nil {
		h.writeBackupError(w, "run backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *BackupHandler) writeBackupError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, backup.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, backup.ErrInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeServiceError(w, h.logger, op, err)
	}
}
