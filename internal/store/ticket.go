package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/ourslists/internal/notify"
)

// TicketStore persists pending notification tickets.
type TicketStore struct {
	db *sql.DB
}

func NewTicketStore(db *sql.DB) *TicketStore {
	return &TicketStore{db: db}
}

const ticketCols = `id, kind, obligation_id, space_id, title, subtitle, body, firing_at, created_at`

func scanTicket(sc scanner) (*notify.Ticket, error) {
	var t notify.Ticket
	err := sc.Scan(&t.ID, &t.Kind, &t.ObligationID, &t.SpaceID, &t.Title, &t.Subtitle, &t.Body, &t.FiringAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TicketStore) GetTicket(ctx context.Context, id string) (*notify.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketCols+` FROM notification_tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// PutTicket inserts or replaces the ticket with the same id.
func (s *TicketStore) PutTicket(ctx context.Context, t *notify.Ticket) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_tickets (`+ticketCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, obligation_id = excluded.obligation_id,
		 space_id = excluded.space_id, title = excluded.title, subtitle = excluded.subtitle,
		 body = excluded.body, firing_at = excluded.firing_at, created_at = excluded.created_at`,
		t.ID, t.Kind, t.ObligationID, t.SpaceID, t.Title, t.Subtitle, t.Body, utc(t.FiringAt), utc(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put ticket: %w", err)
	}
	return nil
}

func (s *TicketStore) DeleteTicket(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notification_tickets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}

func (s *TicketStore) DeleteTicketsByKind(ctx context.Context, kind, spaceID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_tickets WHERE kind = ? AND space_id = ?`, kind, spaceID)
	if err != nil {
		return fmt.Errorf("delete tickets by kind: %w", err)
	}
	return nil
}

// ListTickets returns every ticket, earliest firing first.
func (s *TicketStore) ListTickets(ctx context.Context) ([]notify.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ticketCols+` FROM notification_tickets ORDER BY firing_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []notify.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
