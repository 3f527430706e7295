// Package notify keeps at most one pending notification per obligation and
// hands due notifications to a Scheduler.
package notify

import (
	"context"
	"time"
)

// Ticket kinds. A ticket id is "<kind>-<id>".
const (
	KindChore    = "chore"
	KindReminder = "reminder"
	KindTask     = "task"
)

// Ticket is a pending notification as persisted in the store.
type Ticket struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	ObligationID string    `json:"obligation_id"`
	SpaceID      string    `json:"space_id"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle,omitempty"`
	Body         string    `json:"body"`
	FiringAt     time.Time `json:"firing_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Target describes the item a ticket is derived from.
type Target struct {
	Kind     string
	ID       string
	SpaceID  string
	Title    string
	Subtitle string
	Due      *time.Time
	Paused   bool
}

func TicketID(kind, id string) string {
	return kind + "-" + id
}

// Namespace groups the tickets of one kind within one space.
func Namespace(kind, spaceID string) string {
	return kind + ":" + spaceID
}

// TicketStore persists tickets. Get returns nil, nil when the ticket does not exist.
type TicketStore interface {
	GetTicket(ctx context.Context, id string) (*Ticket, error)
	PutTicket(ctx context.Context, t *Ticket) error
	DeleteTicket(ctx context.Context, id string) error
	DeleteTicketsByKind(ctx context.Context, kind, spaceID string) error
	ListTickets(ctx context.Context) ([]Ticket, error)
}

// Payload is what gets shown when a notification fires.
type Payload struct {
	Kind         string `json:"kind"`
	ObligationID string `json:"obligation_id"`
	SpaceID      string `json:"space_id"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle,omitempty"`
	Body         string `json:"body"`
}

type Request struct {
	ID        string
	Namespace string
	FiringAt  time.Time
	Payload   Payload
}

// Scheduler delivers requests at their firing time. Scheduling an id that is
// already pending replaces it.
type Scheduler interface {
	Schedule(ctx context.Context, req Request) error
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context, namespace string) error
}

func titleFor(kind string) string {
	switch kind {
	case KindChore:
		return "Chore Due Today"
	case KindTask:
		return "Project Task Due Today"
	case KindReminder:
		return "Reminder Due Today"
	}
	return "Due Today"
}
