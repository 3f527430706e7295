package grocery

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/ourslists/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type memHistory struct {
	mu      sync.Mutex
	records map[string]model.PurchaseRecord
}

func newMemHistory() *memHistory {
	return &memHistory{records: make(map[string]model.PurchaseRecord)}
}

func (m *memHistory) FindPurchase(_ context.Context, spaceID, normalized string) (*model.PurchaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.SpaceID == spaceID && r.NormalizedTitle == normalized {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memHistory) CreatePurchase(_ context.Context, p *model.PurchaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[p.ID] = *p
	return nil
}

func (m *memHistory) UpdatePurchase(_ context.Context, p *model.PurchaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[p.ID] = *p
	return nil
}

func (m *memHistory) ListPurchases(_ context.Context, spaceID string) ([]model.PurchaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PurchaseRecord
	for _, r := range m.records {
		if r.SpaceID == spaceID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memItems struct {
	mu    sync.Mutex
	lists map[string]model.GroceryList
	items map[string]model.GroceryItem
}

func newMemItems() *memItems {
	return &memItems{
		lists: make(map[string]model.GroceryList),
		items: make(map[string]model.GroceryItem),
	}
}

func (m *memItems) GetList(_ context.Context, id string) (*model.GroceryList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *memItems) ListLists(_ context.Context, spaceID string) ([]model.GroceryList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.GroceryList
	for _, l := range m.lists {
		if l.SpaceID == spaceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memItems) CreateList(_ context.Context, l *model.GroceryList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[l.ID] = *l
	return nil
}

func (m *memItems) DeleteList(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists, id)
	for itemID, it := range m.items {
		if it.ListID == id {
			delete(m.items, itemID)
		}
	}
	return nil
}

func (m *memItems) GetItem(_ context.Context, id string) (*model.GroceryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (m *memItems) ListItems(_ context.Context, listID string) ([]model.GroceryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.GroceryItem
	for _, it := range m.items {
		if it.ListID == listID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memItems) CreateItem(_ context.Context, it *model.GroceryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = *it
	return nil
}

func (m *memItems) UpdateItem(_ context.Context, it *model.GroceryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = *it
	return nil
}

func (m *memItems) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memItems) SetChecked(_ context.Context, id string, checked bool, by string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.Checked == checked {
		return false, nil
	}
	it.Checked = checked
	if checked {
		it.CheckedBy = by
		it.CheckedAt = &at
	} else {
		it.CheckedBy = ""
		it.CheckedAt = nil
	}
	m.items[id] = it
	return true, nil
}

func (m *memItems) DeleteCheckedItems(_ context.Context, listID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, it := range m.items {
		if it.ListID == listID && it.Checked {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}
