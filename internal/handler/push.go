package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/member"
	"github.com/dukerupert/ourslists/internal/model"
)

// PushStore is the subscription and preference storage the push routes use.
type PushStore interface {
	CreateSubscription(ctx context.Context, sub *model.PushSubscription) (*model.PushSubscription, error)
	ListBySpace(ctx context.Context, spaceID string) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	GetPreferences(ctx context.Context, spaceID, member string) ([]model.NotificationPreference, error)
	SetPreference(ctx context.Context, p model.NotificationPreference) error
}

type PushHandler struct {
	store     PushStore
	publicKey string
	clock     clock.Clock
	logger    *slog.Logger
}

func NewPushHandler(ps PushStore, vapidPublicKey string, clk clock.Clock, logger *slog.Logger) *PushHandler {
	return &PushHandler{store: ps, publicKey: vapidPublicKey, clock: clk, logger: logger}
}

type subscribeRequest struct {
	Member     string `json:"member" validate:"max=100"`
	Endpoint   string `json:"endpoint" validate:"required,url"`
	P256dh     string `json:"p256dh" validate:"required"`
	Auth       string `json:"auth" validate:"required"`
	DeviceName string `json:"device_name" validate:"max=100"`
}

// Subscribe handles POST /api/spaces/{space_id}/push/subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Member = member.Or(r.Context(), req.Member); req.Member == "" {
		writeError(w, http.StatusBadRequest, "member is required")
		return
	}

	sub, err := h.store.CreateSubscription(r.Context(), &model.PushSubscription{
		SpaceID:    r.PathValue("space_id"),
		Member:     req.Member,
		Endpoint:   req.Endpoint,
		P256dhKey:  req.P256dh,
		AuthKey:    req.Auth,
		DeviceName: req.DeviceName,
		CreatedAt:  h.clock.Now(),
	})
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /api/spaces/{space_id}/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListBySpace(r.Context(), r.PathValue("space_id"))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// Unsubscribe handles DELETE /api/push/subscriptions
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.DeleteByEndpoint(r.Context(), req.Endpoint); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

// GetPreferences handles GET /api/spaces/{space_id}/push/preferences?member=
func (h *PushHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	name := member.Or(r.Context(), r.URL.Query().Get("member"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "member is required")
		return
	}
	prefs, err := h.store.GetPreferences(r.Context(), r.PathValue("space_id"), name)
	if err != nil {
		h.logger.Error("get notification preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type preferenceRequest struct {
	Member           string `json:"member" validate:"max=100"`
	NotificationType string `json:"notification_type" validate:"required"`
	Enabled          bool   `json:"enabled"`
}

// UpdatePreference handles PUT /api/spaces/{space_id}/push/preferences
func (h *PushHandler) UpdatePreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Member = member.Or(r.Context(), req.Member); req.Member == "" {
		writeError(w, http.StatusBadRequest, "member is required")
		return
	}
	if !slices.Contains(model.NotificationTypes, req.NotificationType) {
		writeError(w, http.StatusBadRequest, "unknown notification type")
		return
	}
	spaceID := r.PathValue("space_id")
	err := h.store.SetPreference(r.Context(), model.NotificationPreference{
		SpaceID:          spaceID,
		Member:           req.Member,
		NotificationType: req.NotificationType,
		Enabled:          req.Enabled,
	})
	if err != nil {
		h.logger.Error("set notification preference", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preference")
		return
	}
	prefs, err := h.store.GetPreferences(r.Context(), spaceID, req.Member)
	if err != nil {
		h.logger.Error("get notification preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
