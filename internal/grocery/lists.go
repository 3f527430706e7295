package grocery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/websocket"
)

var (
	ErrListNotFound = errors.New("grocery list not found")
	ErrItemNotFound = errors.New("grocery item not found")
	ErrNameRequired = errors.New("name is required")
)

// ItemRepository persists grocery lists and items. Get methods return nil, nil
// when the row does not exist.
type ItemRepository interface {
	GetList(ctx context.Context, id string) (*model.GroceryList, error)
	ListLists(ctx context.Context, spaceID string) ([]model.GroceryList, error)
	CreateList(ctx context.Context, l *model.GroceryList) error
	DeleteList(ctx context.Context, id string) error

	GetItem(ctx context.Context, id string) (*model.GroceryItem, error)
	ListItems(ctx context.Context, listID string) ([]model.GroceryItem, error)
	CreateItem(ctx context.Context, it *model.GroceryItem) error
	UpdateItem(ctx context.Context, it *model.GroceryItem) error
	DeleteItem(ctx context.Context, id string) error
	// SetChecked writes the checked state only if it differs from the stored
	// one and reports whether it did.
	SetChecked(ctx context.Context, id string, checked bool, by string, at time.Time) (bool, error)
	DeleteCheckedItems(ctx context.Context, listID string) (int, error)
}

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// Lists manages grocery lists and feeds check-offs into the purchase history.
type Lists struct {
	repo    ItemRepository
	history *History
	clock   clock.Clock
	hub     Broadcaster
	logger  *slog.Logger
}

func NewLists(repo ItemRepository, history *History, clk clock.Clock, hub Broadcaster, logger *slog.Logger) *Lists {
	return &Lists{
		repo:    repo,
		history: history,
		clock:   clk,
		hub:     hub,
		logger:  logger.With("component", "grocery"),
	}
}

func (l *Lists) CreateList(ctx context.Context, spaceID, name string) (*model.GroceryList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	list := &model.GroceryList{
		ID:        uuid.NewString(),
		SpaceID:   spaceID,
		Name:      name,
		CreatedAt: l.clock.Now(),
	}
	if err := l.repo.CreateList(ctx, list); err != nil {
		return nil, fmt.Errorf("create list: %w", err)
	}
	l.broadcast(list.SpaceID, "grocery_list", "created", list.ID)
	return list, nil
}

func (l *Lists) Lists(ctx context.Context, spaceID string) ([]model.GroceryList, error) {
	lists, err := l.repo.ListLists(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	return lists, nil
}

func (l *Lists) DeleteList(ctx context.Context, id string) error {
	list, err := l.getList(ctx, id)
	if err != nil {
		return err
	}
	if err := l.repo.DeleteList(ctx, id); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	l.broadcast(list.SpaceID, "grocery_list", "deleted", id)
	return nil
}

func (l *Lists) Items(ctx context.Context, listID string) ([]model.GroceryItem, error) {
	if _, err := l.getList(ctx, listID); err != nil {
		return nil, err
	}
	items, err := l.repo.ListItems(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

type NewItem struct {
	Title     string
	Quantity  string
	Note      string
	Category  string
	CreatedBy string
}

// AddItem adds an item to a list, guessing its category from the title when
// none is given.
func (l *Lists) AddItem(ctx context.Context, listID string, p NewItem) (*model.GroceryItem, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	list, err := l.getList(ctx, listID)
	if err != nil {
		return nil, err
	}

	category := Categorize(title)
	if c, ok := ParseCategory(p.Category); ok {
		category = c
	}

	now := l.clock.Now()
	item := &model.GroceryItem{
		ID:        uuid.NewString(),
		ListID:    listID,
		Title:     title,
		Quantity:  strings.TrimSpace(p.Quantity),
		Note:      p.Note,
		Category:  string(category),
		CreatedBy: p.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	l.broadcast(list.SpaceID, "grocery_item", "created", item.ID)
	return item, nil
}

type ItemUpdate struct {
	Title    string
	Quantity string
	Note     string
	Category string
}

func (l *Lists) UpdateItem(ctx context.Context, id string, p ItemUpdate) (*model.GroceryItem, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	item, list, err := l.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	item.Title = title
	item.Quantity = strings.TrimSpace(p.Quantity)
	item.Note = p.Note
	if c, ok := ParseCategory(p.Category); ok {
		item.Category = string(c)
	}
	item.UpdatedAt = l.clock.Now()
	if err := l.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	l.broadcast(list.SpaceID, "grocery_item", "updated", item.ID)
	return item, nil
}

func (l *Lists) DeleteItem(ctx context.Context, id string) error {
	_, list, err := l.getItem(ctx, id)
	if err != nil {
		return err
	}
	if err := l.repo.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	l.broadcast(list.SpaceID, "grocery_item", "deleted", id)
	return nil
}

// Toggle flips an item's checked state.
func (l *Lists) Toggle(ctx context.Context, id, by string) (*model.GroceryItem, error) {
	item, _, err := l.getItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.SetChecked(ctx, id, !item.Checked, by)
}

// SetChecked sets an item's checked state. The purchase is recorded once per
// unchecked-to-checked transition, however many callers race to check it.
func (l *Lists) SetChecked(ctx context.Context, id string, checked bool, by string) (*model.GroceryItem, error) {
	now := l.clock.Now()
	changed, err := l.repo.SetChecked(ctx, id, checked, by, now)
	if err != nil {
		return nil, fmt.Errorf("set checked: %w", err)
	}

	item, list, err := l.getItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return item, nil
	}

	if checked {
		_, err := l.history.RecordPurchase(ctx, list.SpaceID, Purchase{
			Title:    item.Title,
			Quantity: item.Quantity,
			Category: item.Category,
		})
		if err != nil {
			return nil, fmt.Errorf("record purchase: %w", err)
		}
	}

	action := "unchecked"
	if checked {
		action = "checked"
	}
	l.broadcast(list.SpaceID, "grocery_item", action, item.ID)
	return item, nil
}

// ClearChecked removes every checked item from a list.
func (l *Lists) ClearChecked(ctx context.Context, listID string) (int, error) {
	list, err := l.getList(ctx, listID)
	if err != nil {
		return 0, err
	}
	n, err := l.repo.DeleteCheckedItems(ctx, listID)
	if err != nil {
		return 0, fmt.Errorf("clear checked: %w", err)
	}
	if n > 0 {
		l.broadcast(list.SpaceID, "grocery_list", "cleared", listID)
	}
	l.logger.Info("cleared checked items", "list_id", listID, "count", n)
	return n, nil
}

func (l *Lists) getList(ctx context.Context, id string) (*model.GroceryList, error) {
	list, err := l.repo.GetList(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	if list == nil {
		return nil, ErrListNotFound
	}
	return list, nil
}

func (l *Lists) getItem(ctx context.Context, id string) (*model.GroceryItem, *model.GroceryList, error) {
	item, err := l.repo.GetItem(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, nil, ErrItemNotFound
	}
	list, err := l.getList(ctx, item.ListID)
	if err != nil {
		return nil, nil, err
	}
	return item, list, nil
}

func (l *Lists) broadcast(spaceID, entity, action, id string) {
	if l.hub == nil {
		return
	}
	l.hub.Broadcast(websocket.NewMessage(spaceID, entity, action, id, nil))
}
