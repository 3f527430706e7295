package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/model"
)

type SpaceStore interface {
	Create(ctx context.Context, sp *model.Space) error
	List(ctx context.Context) ([]model.Space, error)
}

type SpaceHandler struct {
	store  SpaceStore
	clock  clock.Clock
	logger *slog.Logger
}

func NewSpaceHandler(ss SpaceStore, clk clock.Clock, logger *slog.Logger) *SpaceHandler {
	return &SpaceHandler{store: ss, clock: clk, logger: logger}
}

type createSpaceRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Create handles POST /api/spaces
func (h *SpaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSpaceRequest
	if !decode(w, r, &req) {
		return
	}
	sp := &model.Space{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatedAt: h.clock.Now(),
	}
	if err := h.store.Create(r.Context(), sp); err != nil {
		writeServiceError(w, h.logger, "create space", err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// List handles GET /api/spaces
func (h *SpaceHandler) List(w http.ResponseWriter, r *http.Request) {
	spaces, err := h.store.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list spaces", err)
		return
	}
	if spaces == nil {
		spaces = []model.Space{}
	}
	writeJSON(w, http.StatusOK, spaces)
}
