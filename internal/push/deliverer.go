package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/notify"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Subscriptions is the part of the push store the deliverer needs.
type Subscriptions interface {
	ListBySpace(ctx context.Context, spaceID string) ([]model.PushSubscription, error)
	IsPreferenceEnabled(ctx context.Context, spaceID, member, notifType string) (bool, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Retirer retires the ticket behind a fired request, returning nil for stale
// requests.
type Retirer interface {
	MarkFired(ctx context.Context, req notify.Request) (*notify.Ticket, error)
}

// Deliverer turns fired scheduler requests into Web Push messages. With a nil
// sender it only retires tickets.
type Deliverer struct {
	sender  Sender
	subs    Subscriptions
	tickets Retirer
	logger  *slog.Logger
}

func NewDeliverer(sender Sender, subs Subscriptions, tickets Retirer, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		sender:  sender,
		subs:    subs,
		tickets: tickets,
		logger:  logger.With("component", "push"),
	}
}

// Run delivers requests from in until ctx is done or in is closed.
func (d *Deliverer) Run(ctx context.Context, in <-chan notify.Request) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-in:
			if !ok {
				return nil
			}
			if _, err := d.Deliver(ctx, req); err != nil {
				d.logger.Error("deliver notification", "ticket_id", req.ID, "error", err)
			}
		}
	}
}

// Deliver retires the request's ticket and pushes it to every subscription in
// the space whose member has the notification type enabled. It returns the
// number of successful sends.
func (d *Deliverer) Deliver(ctx context.Context, req notify.Request) (int, error) {
	ticket, err := d.tickets.MarkFired(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("mark fired: %w", err)
	}
	if ticket == nil {
		d.logger.Debug("skipped stale request", "ticket_id", req.ID)
		return 0, nil
	}
	if d.sender == nil {
		d.logger.Info("notification fired", "ticket_id", ticket.ID, "space_id", ticket.SpaceID)
		return 0, nil
	}

	subs, err := d.subs.ListBySpace(ctx, ticket.SpaceID)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	notifType := NotificationType(ticket.Kind)
	payload := payloadFor(ticket)
	sent := 0
	for i := range subs {
		sub := &subs[i]
		enabled, err := d.subs.IsPreferenceEnabled(ctx, sub.SpaceID, sub.Member, notifType)
		if err != nil {
			d.logger.Warn("check preference", "member", sub.Member, "error", err)
			continue
		}
		if !enabled {
			continue
		}

		if err := d.sender.Send(ctx, sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				deliveries.WithLabelValues(ticket.Kind, "expired").Inc()
				if err := d.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
					d.logger.Error("delete expired subscription", "endpoint", sub.Endpoint, "error", err)
				}
				continue
			}
			deliveries.WithLabelValues(ticket.Kind, "error").Inc()
			d.logger.Error("send notification", "ticket_id", ticket.ID, "member", sub.Member, "error", err)
			continue
		}
		deliveries.WithLabelValues(ticket.Kind, "sent").Inc()
		sent++
	}

	d.logger.Info("notification delivered", "ticket_id", ticket.ID, "space_id", ticket.SpaceID, "sent", sent)
	return sent, nil
}

// NotificationType maps a ticket kind to its preference key.
func NotificationType(kind string) string {
	switch kind {
	case notify.KindChore:
		return model.NotifTypeChoreDue
	case notify.KindTask:
		return model.NotifTypeTaskDue
	default:
		return model.NotifTypeReminderDue
	}
}

func payloadFor(t *notify.Ticket) Payload {
	url := "/reminders"
	switch t.Kind {
	case notify.KindChore:
		url = "/chores"
	case notify.KindTask:
		url = "/projects"
	}
	return Payload{
		Title:    t.Title,
		Subtitle: t.Subtitle,
		Body:     t.Body,
		URL:      url,
		Tag:      t.ID,
	}
}
