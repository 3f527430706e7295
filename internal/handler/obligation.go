package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/ourslists/internal/member"
	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/obligation"
)

type ObligationHandler struct {
	recorder *obligation.Recorder
	logger   *slog.Logger
}

func NewObligationHandler(rec *obligation.Recorder, logger *slog.Logger) *ObligationHandler {
	return &ObligationHandler{recorder: rec, logger: logger}
}

type createObligationRequest struct {
	Kind       string `json:"kind" validate:"required,oneof=chore reminder"`
	Title      string `json:"title" validate:"required,max=200"`
	Notes      string `json:"notes" validate:"max=2000"`
	Schedule   string `json:"schedule" validate:"max=200"`
	AssignedTo string `json:"assigned_to" validate:"max=100"`
}

// Create handles POST /api/spaces/{space_id}/obligations
func (h *ObligationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createObligationRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.recorder.Create(r.Context(), obligation.CreateParams{
		SpaceID:    r.PathValue("space_id"),
		Kind:       model.ObligationKind(req.Kind),
		Title:      req.Title,
		Notes:      req.Notes,
		Schedule:   req.Schedule,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		writeServiceError(w, h.logger, "create obligation", err)
		return
	}
	h.writeStatus(w, r, http.StatusCreated, o.ID)
}

// List handles GET /api/spaces/{space_id}/obligations, optionally filtered
// by ?kind=.
func (h *ObligationHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.recorder.List(r.Context(), r.PathValue("space_id"))
	if err != nil {
		writeServiceError(w, h.logger, "list obligations", err)
		return
	}

	kind := model.ObligationKind(r.URL.Query().Get("kind"))
	out := make([]obligation.Status, 0, len(statuses))
	for _, s := range statuses {
		if kind == "" || s.Kind == kind {
			out = append(out, s)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/obligations/{id}
func (h *ObligationHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, http.StatusOK, r.PathValue("id"))
}

type updateObligationRequest struct {
	Title      string `json:"title" validate:"required,max=200"`
	Notes      string `json:"notes" validate:"max=2000"`
	AssignedTo string `json:"assigned_to" validate:"max=100"`
}

// Update handles PUT /api/obligations/{id}
func (h *ObligationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateObligationRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.recorder.Update(r.Context(), r.PathValue("id"), obligation.UpdateParams{
		Title:      req.Title,
		Notes:      req.Notes,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		writeServiceError(w, h.logger, "update obligation", err)
		return
	}
	h.writeStatus(w, r, http.StatusOK, o.ID)
}

type doneRequest struct {
	CompletedBy string `json:"completed_by" validate:"max=100"`
}

// Done handles POST /api/obligations/{id}/done
func (h *ObligationHandler) Done(w http.ResponseWriter, r *http.Request) {
	var req doneRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	o, err := h.recorder.MarkDone(r.Context(), r.PathValue("id"), member.Or(r.Context(), req.CompletedBy))
	if err != nil {
		writeServiceError(w, h.logger, "mark done", err)
		return
	}
	h.writeStatus(w, r, http.StatusOK, o.ID)
}

type snoozeRequest struct {
	Days int `json:"days" validate:"gte=1,lte=365"`
}

// Snooze handles POST /api/obligations/{id}/snooze
func (h *ObligationHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	var req snoozeRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.recorder.Snooze(r.Context(), r.PathValue("id"), req.Days)
	if err != nil {
		writeServiceError(w, h.logger, "snooze obligation", err)
		return
	}
	h.writeStatus(w, r, http.StatusOK, o.ID)
}

// Pause handles POST /api/obligations/{id}/pause
func (h *ObligationHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// Resume handles POST /api/obligations/{id}/resume
func (h *ObligationHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *ObligationHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	o, err := h.recorder.SetPaused(r.Context(), r.PathValue("id"), paused)
	if err != nil {
		writeServiceError(w, h.logger, "set paused", err)
		return
	}
	h.writeStatus(w, r, http.StatusOK, o.ID)
}

type scheduleRequest struct {
	Schedule string `json:"schedule" validate:"max=200"`
}

// EditSchedule handles PUT /api/obligations/{id}/schedule
func (h *ObligationHandler) EditSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.recorder.EditSchedule(r.Context(), r.PathValue("id"), req.Schedule)
	if err != nil {
		writeServiceError(w, h.logger, "edit schedule", err)
		return
	}
	h.writeStatus(w, r, http.StatusOK, o.ID)
}

// Delete handles DELETE /api/obligations/{id}
func (h *ObligationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.recorder.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "delete obligation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/obligations/{id}/history
func (h *ObligationHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.recorder.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "list history", err)
		return
	}
	if history == nil {
		history = []model.Completion{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Reschedule handles POST /api/spaces/{space_id}/reschedule
func (h *ObligationHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	spaceID := r.PathValue("space_id")
	if err := h.recorder.ReloadSpace(r.Context(), spaceID); err != nil {
		h.logger.Warn("reschedule space", "space_id", spaceID, "error", err)
		writeError(w, http.StatusInternalServerError, "some notifications could not be rescheduled")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeStatus answers with the evaluated status of one obligation.
func (h *ObligationHandler) writeStatus(w http.ResponseWriter, r *http.Request, code int, id string) {
	st, err := h.recorder.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get obligation", err)
		return
	}
	writeJSON(w, code, st)
}
