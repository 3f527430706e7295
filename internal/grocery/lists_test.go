package grocery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/websocket"
)

type recordingHub struct {
	mu    sync.Mutex
	types []string
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.mu.Lock()
	h.types = append(h.types, msg.Type)
	h.mu.Unlock()
}

func titles(records []model.PurchaseRecord) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.NormalizedTitle)
	}
	return out
}

type listsHarness struct {
	lists   *Lists
	history *History
	items   *memItems
	hub     *recordingHub
	clock   *clock.Fixed
}

func newListsHarness() *listsHarness {
	clk := clock.NewFixed(t0)
	history := NewHistory(newMemHistory(), clk, discard)
	items := newMemItems()
	hub := &recordingHub{}
	return &listsHarness{
		lists:   NewLists(items, history, clk, hub, discard),
		history: history,
		items:   items,
		hub:     hub,
		clock:   clk,
	}
}

func (h *listsHarness) seed(t *testing.T, titles ...string) (*model.GroceryList, []*model.GroceryItem) {
	t.Helper()
	ctx := context.Background()
	list, err := h.lists.CreateList(ctx, "home", "Weekly shop")
	require.NoError(t, err)
	var items []*model.GroceryItem
	for _, title := range titles {
		it, err := h.lists.AddItem(ctx, list.ID, NewItem{Title: title, CreatedBy: "alex"})
		require.NoError(t, err)
		items = append(items, it)
	}
	return list, items
}

func TestAddItemCategorizes(t *testing.T) {
	h := newListsHarness()
	ctx := context.Background()
	list, items := h.seed(t, "Greek Yogurt")

	assert.Equal(t, string(Dairy), items[0].Category)

	explicit, err := h.lists.AddItem(ctx, list.ID, NewItem{Title: "Yogurt", Category: "snacks"})
	require.NoError(t, err)
	assert.Equal(t, string(Snacks), explicit.Category)

	_, err = h.lists.AddItem(ctx, list.ID, NewItem{Title: " "})
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = h.lists.AddItem(ctx, "missing", NewItem{Title: "Milk"})
	assert.ErrorIs(t, err, ErrListNotFound)
}

func TestToggleRecordsPurchaseOnlyWhenChecking(t *testing.T) {
	h := newListsHarness()
	ctx := context.Background()
	_, items := h.seed(t, "Bananas")
	id := items[0].ID

	item, err := h.lists.Toggle(ctx, id, "sam")
	require.NoError(t, err)
	assert.True(t, item.Checked)
	assert.Equal(t, "sam", item.CheckedBy)

	item, err = h.lists.Toggle(ctx, id, "sam")
	require.NoError(t, err)
	assert.False(t, item.Checked)

	item, err = h.lists.Toggle(ctx, id, "alex")
	require.NoError(t, err)
	assert.True(t, item.Checked)

	records, err := h.history.Frequent(ctx, "home", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].PurchaseCount)
	assert.Equal(t, string(Produce), records[0].Category)
}

func TestSetCheckedTwiceRecordsOnce(t *testing.T) {
	h := newListsHarness()
	ctx := context.Background()
	_, items := h.seed(t, "Coffee")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.lists.SetChecked(ctx, items[0].ID, true, "alex")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	records, err := h.history.Recent(ctx, "home", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].PurchaseCount)
}

func TestSetCheckedMissingItem(t *testing.T) {
	h := newListsHarness()
	_, err := h.lists.SetChecked(context.Background(), "nope", true, "alex")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestClearChecked(t *testing.T) {
	h := newListsHarness()
	ctx := context.Background()
	list, items := h.seed(t, "Milk", "Eggs", "Bread")

	for _, it := range items[:2] {
		_, err := h.lists.SetChecked(ctx, it.ID, true, "alex")
		require.NoError(t, err)
	}

	n, err := h.lists.ClearChecked(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := h.lists.Items(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Bread", remaining[0].Title)

	// History survives clearing the list.
	records, err := h.history.Frequent(ctx, "home", 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Contains(t, h.hub.types, "grocery_list_cleared")
}

func TestUpdateAndDeleteItem(t *testing.T) {
	h := newListsHarness()
	ctx := context.Background()
	_, items := h.seed(t, "Chips")

	h.clock.Advance(time.Minute)
	updated, err := h.lists.UpdateItem(ctx, items[0].ID, ItemUpdate{Title: "Tortilla chips", Quantity: "2 bags", Category: "Snacks"})
	require.NoError(t, err)
	assert.Equal(t, "Tortilla chips", updated.Title)
	assert.Equal(t, "2 bags", updated.Quantity)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	require.NoError(t, h.lists.DeleteItem(ctx, items[0].ID))
	assert.ErrorIs(t, h.lists.DeleteItem(ctx, items[0].ID), ErrItemNotFound)
}

func TestCreateListRequiresName(t *testing.T) {
	h := newListsHarness()
	_, err := h.lists.CreateList(context.Background(), "home", "  ")
	assert.ErrorIs(t, err, ErrNameRequired)
}
