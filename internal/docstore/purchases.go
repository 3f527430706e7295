package docstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/dukerupert/ourslists/internal/model"
)

func (s *Store) FindPurchase(_ context.Context, spaceID, normalizedTitle string) (*model.PurchaseRecord, error) {
	var p model.PurchaseRecord
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, key("pur", spaceID, normalizedTitle), &p)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find purchase: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) CreatePurchase(_ context.Context, p *model.PurchaseRecord) error {
	k := key("pur", p.SpaceID, p.NormalizedTitle)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err == nil {
			return fmt.Errorf("purchase %q already exists in space %s", p.NormalizedTitle, p.SpaceID)
		}
		return setJSON(txn, k, p)
	})
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (s *Store) UpdatePurchase(_ context.Context, p *model.PurchaseRecord) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key("pur", p.SpaceID, p.NormalizedTitle), p)
	}); err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}
	return nil
}

// ListPurchases returns the space's records ordered by normalized title.
func (s *Store) ListPurchases(_ context.Context, spaceID string) ([]model.PurchaseRecord, error) {
	var out []model.PurchaseRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, prefix("pur", spaceID), true, func(_ []byte, item *badger.Item) error {
			p, err := decode[model.PurchaseRecord](item)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return out, nil
}
