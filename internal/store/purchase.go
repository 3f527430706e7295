package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/ourslists/internal/model"
)

// PurchaseStore keeps one aggregated row per normalized title and space.
type PurchaseStore struct {
	db *sql.DB
}

func NewPurchaseStore(db *sql.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

const purchaseCols = `id, space_id, normalized_title, display_title, quantity, category,
	purchase_count, last_purchased_at, created_at`

func scanPurchase(sc scanner) (*model.PurchaseRecord, error) {
	var p model.PurchaseRecord
	err := sc.Scan(&p.ID, &p.SpaceID, &p.NormalizedTitle, &p.DisplayTitle, &p.Quantity, &p.Category,
		&p.PurchaseCount, &p.LastPurchasedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PurchaseStore) FindPurchase(ctx context.Context, spaceID, normalizedTitle string) (*model.PurchaseRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+purchaseCols+` FROM purchase_history WHERE space_id = ? AND normalized_title = ?`,
		spaceID, normalizedTitle)
	p, err := scanPurchase(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find purchase: %w", err)
	}
	return p, nil
}

func (s *PurchaseStore) CreatePurchase(ctx context.Context, p *model.PurchaseRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO purchase_history (`+purchaseCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SpaceID, p.NormalizedTitle, p.DisplayTitle, p.Quantity, p.Category,
		p.PurchaseCount, utc(p.LastPurchasedAt), utc(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (s *PurchaseStore) UpdatePurchase(ctx context.Context, p *model.PurchaseRecord) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE purchase_history SET display_title = ?, quantity = ?, category = ?,
		 purchase_count = ?, last_purchased_at = ? WHERE id = ?`,
		p.DisplayTitle, p.Quantity, p.Category, p.PurchaseCount, utc(p.LastPurchasedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}
	return nil
}

func (s *PurchaseStore) ListPurchases(ctx context.Context, spaceID string) ([]model.PurchaseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+purchaseCols+` FROM purchase_history WHERE space_id = ? ORDER BY normalized_title ASC`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var out []model.PurchaseRecord
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
