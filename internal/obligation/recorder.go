package obligation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/keylock"
	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/notify"
	"github.com/dukerupert/ourslists/internal/recurrence"
	"github.com/dukerupert/ourslists/internal/urgency"
	"github.com/dukerupert/ourslists/internal/websocket"
)

// Recorder is the single entry point for obligation writes. Writes to the
// same obligation are serialized; different obligations proceed in parallel.
type Recorder struct {
	repo     Repository
	tasks    TaskTargets
	notifier Notifier
	clock    clock.Clock
	hub      Broadcaster
	logger   *slog.Logger
	locks    keylock.Map

	// reload is held exclusively by ReloadSpace and shared by every write.
	reload sync.RWMutex
}

// NewRecorder creates a Recorder. tasks and hub may be nil.
func NewRecorder(repo Repository, tasks TaskTargets, notifier Notifier, clk clock.Clock, hub Broadcaster, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:     repo,
		tasks:    tasks,
		notifier: notifier,
		clock:    clk,
		hub:      hub,
		logger:   logger.With("component", "obligation"),
	}
}

type CreateParams struct {
	SpaceID    string
	Kind       model.ObligationKind
	Title      string
	Notes      string
	Schedule   string
	AssignedTo string
}

type UpdateParams struct {
	Title      string
	Notes      string
	AssignedTo string
}

func (r *Recorder) Create(ctx context.Context, p CreateParams) (*model.Obligation, error) {
	if !p.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	rule, err := canonicalRule(p.Schedule)
	if err != nil {
		return nil, err
	}

	r.reload.RLock()
	defer r.reload.RUnlock()

	now := r.clock.Now()
	o := &model.Obligation{
		ID:         uuid.NewString(),
		SpaceID:    p.SpaceID,
		Kind:       p.Kind,
		Title:      title,
		Notes:      p.Notes,
		Schedule:   rule,
		AssignedTo: p.AssignedTo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.repo.CreateObligation(ctx, o); err != nil {
		return nil, fmt.Errorf("create obligation: %w", err)
	}

	r.reschedule(ctx, *o)
	r.broadcast("created", o)
	return o, nil
}

func (r *Recorder) Update(ctx context.Context, id string, p UpdateParams) (*model.Obligation, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	return r.mutate(ctx, id, "updated", func(o *model.Obligation) error {
		o.Title = title
		o.Notes = p.Notes
		o.AssignedTo = p.AssignedTo
		return nil
	})
}

// MarkDone records a completion at the current time and advances the
// schedule. Reminders keep only their latest completion.
func (r *Recorder) MarkDone(ctx context.Context, id, completedBy string) (*model.Obligation, error) {
	unlock := r.lock(id)
	defer unlock()

	o, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	c := &model.Completion{
		ID:           uuid.NewString(),
		ObligationID: o.ID,
		CompletedAt:  now,
		CompletedBy:  completedBy,
	}
	o.LastCompletedAt = &now
	o.SnoozedUntil = nil
	o.UpdatedAt = now

	keep := 0
	if o.Kind == model.KindReminder {
		keep = 1
	}
	if err := r.repo.RecordCompletion(ctx, o, c, keep); err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}

	r.logger.Info("obligation completed", "obligation_id", o.ID, "kind", o.Kind, "completed_by", completedBy)
	r.reschedule(ctx, *o)
	r.broadcast("completed", o)
	return o, nil
}

// Snooze pushes a reminder's due date back by days (at least one). The delay
// counts from the current due date, or from now if that date has passed.
func (r *Recorder) Snooze(ctx context.Context, id string, days int) (*model.Obligation, error) {
	return r.mutate(ctx, id, "snoozed", func(o *model.Obligation) error {
		if o.Kind != model.KindReminder {
			return ErrNotSnoozable
		}
		if o.Paused {
			return ErrPaused
		}
		days = max(days, 1)

		now := r.clock.Now()
		base := now
		if due := r.evaluate(*o, now).NextDue; due != nil && !due.Before(now) {
			base = *due
		}
		until := base.AddDate(0, 0, days)
		o.SnoozedUntil = &until
		return nil
	})
}

// SetPaused pauses or resumes an obligation. A paused obligation has no
// pending notification. Resuming drops a snooze that has already run out so
// the due date is derived from the schedule again.
func (r *Recorder) SetPaused(ctx context.Context, id string, paused bool) (*model.Obligation, error) {
	action := "resumed"
	if paused {
		action = "paused"
	}
	return r.mutate(ctx, id, action, func(o *model.Obligation) error {
		o.Paused = paused
		if !paused && o.SnoozedUntil != nil && !o.SnoozedUntil.After(r.clock.Now()) {
			o.SnoozedUntil = nil
		}
		return nil
	})
}

// EditSchedule replaces the schedule with the canonical form of rule and
// drops any snooze.
func (r *Recorder) EditSchedule(ctx context.Context, id, rule string) (*model.Obligation, error) {
	canonical, err := canonicalRule(rule)
	if err != nil {
		return nil, err
	}
	return r.mutate(ctx, id, "updated", func(o *model.Obligation) error {
		o.Schedule = canonical
		o.SnoozedUntil = nil
		return nil
	})
}

// Delete removes the obligation, its history and its pending notification.
func (r *Recorder) Delete(ctx context.Context, id string) error {
	unlock := r.lock(id)
	defer unlock()

	o, err := r.get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.notifier.Cancel(ctx, notify.Target{Kind: string(o.Kind), ID: o.ID, SpaceID: o.SpaceID}); err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}
	if err := r.repo.DeleteObligation(ctx, id); err != nil {
		return fmt.Errorf("delete obligation: %w", err)
	}
	r.broadcast("deleted", o)
	return nil
}

func (r *Recorder) Get(ctx context.Context, id string) (*Status, error) {
	o, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := r.evaluate(*o, r.clock.Now())
	return &st, nil
}

// List evaluates every obligation in a space and sorts them by urgency.
func (r *Recorder) List(ctx context.Context, spaceID string) ([]Status, error) {
	obligations, err := r.repo.ListObligations(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	now := r.clock.Now()
	statuses := make([]Status, 0, len(obligations))
	for _, o := range obligations {
		statuses = append(statuses, r.evaluate(o, now))
	}
	urgency.Sort(statuses, Status.Entry)
	return statuses, nil
}

func (r *Recorder) History(ctx context.Context, id string) ([]model.Completion, error) {
	if _, err := r.get(ctx, id); err != nil {
		return nil, err
	}
	completions, err := r.repo.ListCompletions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return completions, nil
}

// ReloadSpace rebuilds every notification ticket of a space from scratch.
// Used at start-up and after a bulk sync. Failures of single items are
// collected without stopping the rest. Obligation writes wait until the
// reload is done.
func (r *Recorder) ReloadSpace(ctx context.Context, spaceID string) error {
	r.reload.Lock()
	defer r.reload.Unlock()

	obligations, err := r.repo.ListObligations(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("list obligations: %w", err)
	}

	now := r.clock.Now()
	byKind := map[string][]notify.Target{
		notify.KindChore:    nil,
		notify.KindReminder: nil,
	}
	for _, o := range obligations {
		k := string(o.Kind)
		byKind[k] = append(byKind[k], r.evaluate(o, now).Target())
	}

	var errs []error
	for _, kind := range []string{notify.KindChore, notify.KindReminder} {
		if err := r.notifier.RescheduleAll(ctx, kind, spaceID, byKind[kind]); err != nil {
			errs = append(errs, err)
		}
	}

	if r.tasks != nil {
		targets, err := r.tasks.TaskTargets(ctx, spaceID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list task targets: %w", err))
		} else if err := r.notifier.RescheduleAll(ctx, notify.KindTask, spaceID, targets); err != nil {
			errs = append(errs, err)
		}
	}

	r.logger.Info("space reloaded", "space_id", spaceID, "obligations", len(obligations))
	return errors.Join(errs...)
}

// mutate loads id under its lock, applies fn, persists and reschedules.
func (r *Recorder) mutate(ctx context.Context, id, action string, fn func(o *model.Obligation) error) (*model.Obligation, error) {
	unlock := r.lock(id)
	defer unlock()

	o, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	o.UpdatedAt = r.clock.Now()
	if err := r.repo.UpdateObligation(ctx, o); err != nil {
		return nil, fmt.Errorf("update obligation: %w", err)
	}

	r.reschedule(ctx, *o)
	r.broadcast(action, o)
	return o, nil
}

// lock serializes writes to id and keeps them out of a running ReloadSpace.
func (r *Recorder) lock(id string) func() {
	r.reload.RLock()
	unlock := r.locks.Lock(id)
	return func() {
		unlock()
		r.reload.RUnlock()
	}
}

func (r *Recorder) evaluate(o model.Obligation, now time.Time) Status {
	st := Evaluate(o, now)
	if st.ScheduleErr != nil {
		r.logger.Warn("invalid schedule", "obligation_id", o.ID, "schedule", o.Schedule, "error", st.ScheduleErr)
	}
	return st
}

func (r *Recorder) get(ctx context.Context, id string) (*model.Obligation, error) {
	o, err := r.repo.GetObligation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get obligation: %w", err)
	}
	if o == nil {
		return nil, ErrNotFound
	}
	return o, nil
}

// reschedule refreshes the ticket after a write. The write has already been
// persisted, so a failure here is logged rather than returned.
func (r *Recorder) reschedule(ctx context.Context, o model.Obligation) {
	st := r.evaluate(o, r.clock.Now())
	if _, err := r.notifier.Reschedule(ctx, st.Target()); err != nil {
		r.logger.Error("reschedule notification", "obligation_id", o.ID, "error", err)
	}
}

func (r *Recorder) broadcast(action string, o *model.Obligation) {
	if r.hub == nil {
		return
	}
	r.hub.Broadcast(websocket.NewMessage(o.SpaceID, string(o.Kind), action, o.ID, nil))
}

func canonicalRule(rule string) (string, error) {
	s, err := recurrence.Parse(rule)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return s.String(), nil
}
