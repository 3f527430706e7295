// Package obligation records completions, snoozes and pauses of chores and
// reminders and keeps their notification tickets in step.
package obligation

import (
	"context"
	"errors"

	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/notify"
	"github.com/dukerupert/ourslists/internal/websocket"
)

var (
	ErrNotFound        = errors.New("obligation not found")
	ErrNotSnoozable    = errors.New("only reminders can be snoozed")
	ErrPaused          = errors.New("obligation is paused")
	ErrInvalidKind     = errors.New("invalid obligation kind")
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrTitleRequired   = errors.New("title is required")
)

// Repository persists obligations and their completion history.
// GetObligation returns nil, nil when the obligation does not exist.
type Repository interface {
	GetObligation(ctx context.Context, id string) (*model.Obligation, error)
	ListObligations(ctx context.Context, spaceID string) ([]model.Obligation, error)
	CreateObligation(ctx context.Context, o *model.Obligation) error
	UpdateObligation(ctx context.Context, o *model.Obligation) error
	// DeleteObligation removes the obligation and its completions.
	DeleteObligation(ctx context.Context, id string) error
	// RecordCompletion stores c, saves o and trims history to the newest keep
	// records (keep <= 0 keeps everything) in one step.
	RecordCompletion(ctx context.Context, o *model.Obligation, c *model.Completion, keep int) error
	// ListCompletions returns history newest first.
	ListCompletions(ctx context.Context, obligationID string) ([]model.Completion, error)
}

// Notifier keeps notification tickets in line with obligations.
// *notify.Dispatcher implements it.
type Notifier interface {
	Reschedule(ctx context.Context, t notify.Target) (*notify.Ticket, error)
	Cancel(ctx context.Context, t notify.Target) error
	RescheduleAll(ctx context.Context, kind, spaceID string, targets []notify.Target) error
}

// TaskTargets lists notification targets for the project tasks of a space.
type TaskTargets interface {
	TaskTargets(ctx context.Context, spaceID string) ([]notify.Target, error)
}

// Broadcaster tells connected devices that an entity changed.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

var (
	_ Notifier    = (*notify.Dispatcher)(nil)
	_ Broadcaster = (*websocket.Hub)(nil)
)
