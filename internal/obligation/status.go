package obligation

import (
	"time"

	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/notify"
	"github.com/dukerupert/ourslists/internal/recurrence"
	"github.com/dukerupert/ourslists/internal/urgency"
)

// Status is an obligation evaluated against a point in time.
type Status struct {
	model.Obligation
	NextDue     *time.Time      `json:"next_due,omitempty"`
	Urgency     urgency.Urgency `json:"urgency"`
	Label       string          `json:"label"`
	Description string          `json:"schedule_description"`

	// ScheduleErr is set when the stored schedule text does not parse.
	ScheduleErr error `json:"-"`
}

// PolicyFor returns the urgency policy for an obligation kind.
func PolicyFor(kind model.ObligationKind) urgency.Policy {
	if kind == model.KindReminder {
		return urgency.ReminderPolicy
	}
	return urgency.ChorePolicy
}

// Evaluate computes the due date, urgency and label of o at now. A snooze
// overrides the derived due date. A malformed schedule leaves the obligation
// without a due date and is reported in ScheduleErr.
func Evaluate(o model.Obligation, now time.Time) Status {
	st := Status{Obligation: o}

	s, err := recurrence.Parse(o.Schedule)
	if err != nil {
		st.ScheduleErr = err
		st.Label = urgency.Label(nil, o.Paused, false, now)
		return st
	}
	st.Description = s.Describe()

	if o.SnoozedUntil != nil {
		due := o.SnoozedUntil.In(now.Location())
		st.NextDue = &due
	} else {
		st.NextDue = recurrence.NextDue(s, o.LastCompletedAt, o.CreatedAt, now)
	}

	done := !s.Recurring() && o.LastCompletedAt != nil
	st.Urgency = urgency.Classify(st.NextDue, o.Paused, now, PolicyFor(o.Kind))
	st.Label = urgency.Label(st.NextDue, o.Paused, done, now)
	return st
}

// Entry adapts a Status for urgency.Sort.
func (s Status) Entry() urgency.Entry {
	return urgency.Entry{Due: s.NextDue, Urgency: s.Urgency}
}

// Target is the notification target for the evaluated obligation.
func (s Status) Target() notify.Target {
	return notify.Target{
		Kind:    string(s.Kind),
		ID:      s.ID,
		SpaceID: s.SpaceID,
		Title:   s.Title,
		Due:     s.NextDue,
		Paused:  s.Paused,
	}
}
