package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/keylock"
)

// DefaultFireHour is the local hour at which due-date notifications fire.
const DefaultFireHour = 9

// Dispatcher derives tickets from targets. Every path cancels before it
// schedules, so repeating a call with the same input leaves one ticket.
type Dispatcher struct {
	store     TicketStore
	scheduler Scheduler
	clock     clock.Clock
	fireHour  int
	loc       *time.Location
	logger    *slog.Logger
	locks     keylock.Map
}

// NewDispatcher creates a Dispatcher. A nil loc means the clock's location.
func NewDispatcher(store TicketStore, scheduler Scheduler, clk clock.Clock, fireHour int, loc *time.Location, logger *slog.Logger) *Dispatcher {
	if fireHour < 0 || fireHour > 23 {
		fireHour = DefaultFireHour
	}
	return &Dispatcher{
		store:     store,
		scheduler: scheduler,
		clock:     clk,
		fireHour:  fireHour,
		loc:       loc,
		logger:    logger.With("component", "notify"),
	}
}

// FireTime returns the fire hour on due's calendar day.
func (d *Dispatcher) FireTime(due time.Time) time.Time {
	loc := d.loc
	if loc == nil {
		loc = d.clock.Now().Location()
	}
	y, m, day := due.In(loc).Date()
	return time.Date(y, m, day, d.fireHour, 0, 0, 0, loc)
}

// Reschedule replaces whatever ticket t had with a fresh one. No ticket is
// created when t is paused, has no due date, is already due, or its fire time
// has passed. Scheduler failures are logged; store failures are returned.
func (d *Dispatcher) Reschedule(ctx context.Context, t Target) (*Ticket, error) {
	id := TicketID(t.Kind, t.ID)
	unlock := d.locks.Lock(id)
	defer unlock()

	if err := d.cancel(ctx, id, t.Kind); err != nil {
		return nil, err
	}

	now := d.clock.Now()
	if t.Paused || t.Due == nil || !t.Due.After(now) {
		return nil, nil
	}
	fire := d.FireTime(*t.Due)
	if !fire.After(now) {
		return nil, nil
	}

	ticket := &Ticket{
		ID:           id,
		Kind:         t.Kind,
		ObligationID: t.ID,
		SpaceID:      t.SpaceID,
		Title:        titleFor(t.Kind),
		Subtitle:     t.Subtitle,
		Body:         t.Title,
		FiringAt:     fire,
		CreatedAt:    now,
	}
	if err := d.store.PutTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("put ticket %s: %w", id, err)
	}

	if err := d.scheduler.Schedule(ctx, requestFor(ticket)); err != nil {
		schedulerFailures.WithLabelValues("schedule").Inc()
		d.logger.Error("schedule notification", "ticket_id", id, "firing_at", fire, "error", err)
	}
	ticketsScheduled.WithLabelValues(t.Kind).Inc()
	d.logger.Debug("ticket scheduled", "ticket_id", id, "firing_at", fire)
	return ticket, nil
}

// Cancel removes t's pending ticket, if any.
func (d *Dispatcher) Cancel(ctx context.Context, t Target) error {
	id := TicketID(t.Kind, t.ID)
	unlock := d.locks.Lock(id)
	defer unlock()
	return d.cancel(ctx, id, t.Kind)
}

func (d *Dispatcher) cancel(ctx context.Context, id, kind string) error {
	if err := d.scheduler.Cancel(ctx, id); err != nil {
		schedulerFailures.WithLabelValues("cancel").Inc()
		d.logger.Error("cancel notification", "ticket_id", id, "error", err)
	}

	existing, err := d.store.GetTicket(ctx, id)
	if err != nil {
		return fmt.Errorf("get ticket %s: %w", id, err)
	}
	if existing == nil {
		return nil
	}
	if err := d.store.DeleteTicket(ctx, id); err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	ticketsCancelled.WithLabelValues(kind).Inc()
	return nil
}

// RescheduleAll clears every ticket of kind in spaceID and re-derives tickets
// for targets. A failing target is logged and reported in the joined error
// without stopping the others.
func (d *Dispatcher) RescheduleAll(ctx context.Context, kind, spaceID string, targets []Target) error {
	if err := d.scheduler.CancelAll(ctx, Namespace(kind, spaceID)); err != nil {
		schedulerFailures.WithLabelValues("cancel_all").Inc()
		d.logger.Error("cancel namespace", "kind", kind, "space_id", spaceID, "error", err)
	}
	if err := d.store.DeleteTicketsByKind(ctx, kind, spaceID); err != nil {
		return fmt.Errorf("clear %s tickets: %w", kind, err)
	}

	var errs []error
	scheduled := 0
	for _, t := range targets {
		if t.Kind != kind || t.SpaceID != spaceID {
			d.logger.Warn("skipping target outside namespace", "kind", t.Kind, "id", t.ID, "space_id", t.SpaceID)
			continue
		}
		ticket, err := d.Reschedule(ctx, t)
		if err != nil {
			d.logger.Error("reschedule target", "kind", kind, "id", t.ID, "error", err)
			errs = append(errs, fmt.Errorf("reschedule %s: %w", TicketID(kind, t.ID), err))
			continue
		}
		if ticket != nil {
			scheduled++
		}
	}

	d.logger.Info("tickets rescheduled", "kind", kind, "space_id", spaceID, "targets", len(targets), "scheduled", scheduled)
	return errors.Join(errs...)
}

// MarkFired retires the ticket behind a fired request. It returns nil when the
// request is stale, i.e. the ticket was cancelled or replaced in the meantime.
func (d *Dispatcher) MarkFired(ctx context.Context, req Request) (*Ticket, error) {
	unlock := d.locks.Lock(req.ID)
	defer unlock()

	ticket, err := d.store.GetTicket(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", req.ID, err)
	}
	if ticket == nil || !ticket.FiringAt.Equal(req.FiringAt) {
		return nil, nil
	}
	if err := d.store.DeleteTicket(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("delete ticket %s: %w", req.ID, err)
	}
	ticketsFired.WithLabelValues(ticket.Kind).Inc()
	return ticket, nil
}

// Restore hands every stored future ticket back to the scheduler, dropping the
// ones whose fire time passed while the process was down.
func (d *Dispatcher) Restore(ctx context.Context) (int, error) {
	tickets, err := d.store.ListTickets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tickets: %w", err)
	}

	now := d.clock.Now()
	restored := 0
	for i := range tickets {
		t := &tickets[i]
		if !t.FiringAt.After(now) {
			if err := d.store.DeleteTicket(ctx, t.ID); err != nil {
				return restored, fmt.Errorf("delete missed ticket %s: %w", t.ID, err)
			}
			d.logger.Info("dropped missed ticket", "ticket_id", t.ID, "firing_at", t.FiringAt)
			continue
		}
		if err := d.scheduler.Schedule(ctx, requestFor(t)); err != nil {
			schedulerFailures.WithLabelValues("schedule").Inc()
			d.logger.Error("restore notification", "ticket_id", t.ID, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

func requestFor(t *Ticket) Request {
	return Request{
		ID:        t.ID,
		Namespace: Namespace(t.Kind, t.SpaceID),
		FiringAt:  t.FiringAt,
		Payload: Payload{
			Kind:         t.Kind,
			ObligationID: t.ObligationID,
			SpaceID:      t.SpaceID,
			Title:        t.Title,
			Subtitle:     t.Subtitle,
			Body:         t.Body,
		},
	}
}
