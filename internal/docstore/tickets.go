package docstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/dukerupert/ourslists/internal/notify"
)

func (s *Store) GetTicket(_ context.Context, id string) (*notify.Ticket, error) {
	var t notify.Ticket
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, key("tkt", id), &t)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) PutTicket(_ context.Context, t *notify.Ticket) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key("tkt", t.ID), t)
	}); err != nil {
		return fmt.Errorf("put ticket: %w", err)
	}
	return nil
}

func (s *Store) DeleteTicket(_ context.Context, id string) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key("tkt", id))
	}); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}

func (s *Store) DeleteTicketsByKind(_ context.Context, kind, spaceID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var doomed [][]byte
		if err := scan(txn, prefix("tkt"), true, func(k []byte, item *badger.Item) error {
			t, err := decode[notify.Ticket](item)
			if err != nil {
				return err
			}
			if t.Kind == kind && t.SpaceID == spaceID {
				doomed = append(doomed, k)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range doomed {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete tickets by kind: %w", err)
	}
	return nil
}

// ListTickets returns every ticket, earliest firing first.
func (s *Store) ListTickets(_ context.Context) ([]notify.Ticket, error) {
	var out []notify.Ticket
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, prefix("tkt"), true, func(_ []byte, item *badger.Item) error {
			t, err := decode[notify.Ticket](item)
			if err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	slices.SortFunc(out, func(a, b notify.Ticket) int {
		if c := a.FiringAt.Compare(b.FiringAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
