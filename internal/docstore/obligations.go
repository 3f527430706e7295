package docstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/dukerupert/ourslists/internal/model"
)

func (s *Store) GetObligation(_ context.Context, id string) (*model.Obligation, error) {
	var o model.Obligation
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, key("obl", id), &o)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get obligation: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &o, nil
}

func (s *Store) ListObligations(_ context.Context, spaceID string) ([]model.Obligation, error) {
	var out []model.Obligation
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, prefix("obl-space", spaceID), false, func(k []byte, _ *badger.Item) error {
			var o model.Obligation
			found, err := getJSON(txn, key("obl", lastPart(k)), &o)
			if err != nil {
				return err
			}
			if found {
				out = append(out, o)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	slices.SortFunc(out, func(a, b model.Obligation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) CreateObligation(_ context.Context, o *model.Obligation) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key("obl", o.ID)); err == nil {
			return fmt.Errorf("obligation %s already exists", o.ID)
		}
		if err := setJSON(txn, key("obl", o.ID), o); err != nil {
			return err
		}
		return txn.Set(key("obl-space", o.SpaceID, o.ID), nil)
	})
	if err != nil {
		return fmt.Errorf("insert obligation: %w", err)
	}
	return nil
}

func (s *Store) UpdateObligation(_ context.Context, o *model.Obligation) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return updateObligation(txn, o)
	}); err != nil {
		return fmt.Errorf("update obligation: %w", err)
	}
	return nil
}

// updateObligation saves o, keeping the stored space and kind.
func updateObligation(txn *badger.Txn, o *model.Obligation) error {
	var stored model.Obligation
	found, err := getJSON(txn, key("obl", o.ID), &stored)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("obligation %s: %w", o.ID, badger.ErrKeyNotFound)
	}
	updated := *o
	updated.SpaceID = stored.SpaceID
	updated.Kind = stored.Kind
	updated.CreatedAt = stored.CreatedAt
	return setJSON(txn, key("obl", o.ID), &updated)
}

func (s *Store) DeleteObligation(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var o model.Obligation
		found, err := getJSON(txn, key("obl", id), &o)
		if err != nil || !found {
			return err
		}
		var doomed [][]byte
		if err := scan(txn, prefix("cmp", id), false, func(k []byte, _ *badger.Item) error {
			doomed = append(doomed, k)
			return nil
		}); err != nil {
			return err
		}
		doomed = append(doomed, key("obl", id), key("obl-space", o.SpaceID, id))
		for _, k := range doomed {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete obligation: %w", err)
	}
	return nil
}

// RecordCompletion stores c, saves o and trims history to the newest keep
// entries in one transaction.
func (s *Store) RecordCompletion(_ context.Context, o *model.Obligation, c *model.Completion, keep int) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := updateObligation(txn, o); err != nil {
			return err
		}
		if err := setJSON(txn, key("cmp", o.ID, nanos(c.CompletedAt), c.ID), c); err != nil {
			return err
		}
		if keep <= 0 {
			return nil
		}

		var keys [][]byte
		if err := scan(txn, prefix("cmp", o.ID), false, func(k []byte, _ *badger.Item) error {
			keys = append(keys, k)
			return nil
		}); err != nil {
			return err
		}
		// Keys sort oldest first.
		for len(keys) > keep {
			if err := txn.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// ListCompletions returns history newest first.
func (s *Store) ListCompletions(_ context.Context, obligationID string) ([]model.Completion, error) {
	var out []model.Completion
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, prefix("cmp", obligationID), true, func(_ []byte, item *badger.Item) error {
			c, err := decode[model.Completion](item)
			if err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// SpaceIDs returns every space that owns an obligation.
func (s *Store) SpaceIDs(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		p := prefix("obl-space")
		return scan(txn, p, false, func(k []byte, _ *badger.Item) error {
			rest := string(k[len(p):])
			space, _, _ := strings.Cut(rest, sep)
			if len(ids) == 0 || ids[len(ids)-1] != space {
				ids = append(ids, space)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list space ids: %w", err)
	}
	return ids, nil
}
