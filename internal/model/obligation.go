package model

import "time"

type ObligationKind string

const (
	KindChore    ObligationKind = "chore"
	KindReminder ObligationKind = "reminder"
)

func (k ObligationKind) Valid() bool {
	return k == KindChore || k == KindReminder
}

// Obligation is a chore or a reminder. Schedule holds the recurrence rule text
// understood by the recurrence package; an empty rule means a one-time item.
type Obligation struct {
	ID              string         `json:"id"`
	SpaceID         string         `json:"space_id"`
	Kind            ObligationKind `json:"kind"`
	Title           string         `json:"title"`
	Notes           string         `json:"notes"`
	Schedule        string         `json:"schedule"`
	AssignedTo      string         `json:"assigned_to"`
	Paused          bool           `json:"paused"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	LastCompletedAt *time.Time     `json:"last_completed_at"`
	SnoozedUntil    *time.Time     `json:"snoozed_until"`
}

type Completion struct {
	ID           string    `json:"id"`
	ObligationID string    `json:"obligation_id"`
	CompletedAt  time.Time `json:"completed_at"`
	CompletedBy  string    `json:"completed_by"`
}
