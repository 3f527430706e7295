package grocery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/keylock"
	"github.com/dukerupert/ourslists/internal/model"
)

var ErrEmptyTitle = errors.New("title is required")

// HistoryRepository persists purchase records. FindPurchase returns nil, nil
// when no record exists.
type HistoryRepository interface {
	FindPurchase(ctx context.Context, spaceID, normalizedTitle string) (*model.PurchaseRecord, error)
	CreatePurchase(ctx context.Context, p *model.PurchaseRecord) error
	UpdatePurchase(ctx context.Context, p *model.PurchaseRecord) error
	ListPurchases(ctx context.Context, spaceID string) ([]model.PurchaseRecord, error)
}

// NormalizeTitle folds a title to the key purchases are grouped by: trimmed
// and lowercased. Inner spacing is kept as typed.
func NormalizeTitle(title string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(title))
}

type Purchase struct {
	Title    string
	Quantity string
	Category string
}

// History aggregates checked-off items into one record per title per space.
type History struct {
	repo   HistoryRepository
	clock  clock.Clock
	logger *slog.Logger
	locks  keylock.Map
}

func NewHistory(repo HistoryRepository, clk clock.Clock, logger *slog.Logger) *History {
	return &History{
		repo:   repo,
		clock:  clk,
		logger: logger.With("component", "purchase_history"),
	}
}

// RecordPurchase bumps the record for p's title or creates it. Quantity and
// category only overwrite the stored values when non-empty.
func (h *History) RecordPurchase(ctx context.Context, spaceID string, p Purchase) (*model.PurchaseRecord, error) {
	key := NormalizeTitle(p.Title)
	if key == "" {
		return nil, ErrEmptyTitle
	}

	unlock := h.locks.Lock(spaceID + "\x00" + key)
	defer unlock()

	now := h.clock.Now()
	rec, err := h.repo.FindPurchase(ctx, spaceID, key)
	if err != nil {
		return nil, fmt.Errorf("find purchase: %w", err)
	}

	if rec != nil {
		rec.PurchaseCount++
		rec.LastPurchasedAt = now
		if q := strings.TrimSpace(p.Quantity); q != "" {
			rec.Quantity = q
		}
		if c := strings.TrimSpace(p.Category); c != "" {
			rec.Category = c
		}
		if err := h.repo.UpdatePurchase(ctx, rec); err != nil {
			return nil, fmt.Errorf("update purchase: %w", err)
		}
		return rec, nil
	}

	rec = &model.PurchaseRecord{
		ID:              uuid.NewString(),
		SpaceID:         spaceID,
		NormalizedTitle: key,
		DisplayTitle:    strings.TrimSpace(p.Title),
		Quantity:        strings.TrimSpace(p.Quantity),
		Category:        strings.TrimSpace(p.Category),
		PurchaseCount:   1,
		LastPurchasedAt: now,
		CreatedAt:       now,
	}
	if err := h.repo.CreatePurchase(ctx, rec); err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	h.logger.Debug("new purchase record", "space_id", spaceID, "title", key)
	return rec, nil
}

// Frequent returns the most purchased items, most recent first on ties.
// limit <= 0 returns everything.
func (h *History) Frequent(ctx context.Context, spaceID string, limit int) ([]model.PurchaseRecord, error) {
	return h.ranked(ctx, spaceID, limit, func(a, b model.PurchaseRecord) int {
		if c := cmp.Compare(b.PurchaseCount, a.PurchaseCount); c != 0 {
			return c
		}
		return b.LastPurchasedAt.Compare(a.LastPurchasedAt)
	})
}

// Recent returns the most recently purchased items.
func (h *History) Recent(ctx context.Context, spaceID string, limit int) ([]model.PurchaseRecord, error) {
	return h.ranked(ctx, spaceID, limit, func(a, b model.PurchaseRecord) int {
		return b.LastPurchasedAt.Compare(a.LastPurchasedAt)
	})
}

func (h *History) ranked(ctx context.Context, spaceID string, limit int, order func(a, b model.PurchaseRecord) int) ([]model.PurchaseRecord, error) {
	records, err := h.repo.ListPurchases(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	slices.SortStableFunc(records, order)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
