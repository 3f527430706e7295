package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/ourslists/internal/model"
)

type GroceryStore struct {
	db *sql.DB
}

func NewGroceryStore(db *sql.DB) *GroceryStore {
	return &GroceryStore{db: db}
}

// --- List methods ---

func (s *GroceryStore) GetList(ctx context.Context, id string) (*model.GroceryList, error) {
	var l model.GroceryList
	err := s.db.QueryRowContext(ctx,
		`SELECT id, space_id, name, created_at FROM grocery_lists WHERE id = ?`, id,
	).Scan(&l.ID, &l.SpaceID, &l.Name, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return &l, nil
}

func (s *GroceryStore) ListLists(ctx context.Context, spaceID string) ([]model.GroceryList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, space_id, name, created_at FROM grocery_lists WHERE space_id = ? ORDER BY created_at ASC, id ASC`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []model.GroceryList
	for rows.Next() {
		var l model.GroceryList
		if err := rows.Scan(&l.ID, &l.SpaceID, &l.Name, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (s *GroceryStore) CreateList(ctx context.Context, l *model.GroceryList) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grocery_lists (id, space_id, name, created_at) VALUES (?, ?, ?, ?)`,
		l.ID, l.SpaceID, l.Name, utc(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert list: %w", err)
	}
	return nil
}

func (s *GroceryStore) DeleteList(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM grocery_lists WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// --- Item methods ---

const itemCols = `id, list_id, title, quantity, note, category, checked, checked_by, checked_at,
	created_by, created_at, updated_at`

func scanItem(sc scanner) (*model.GroceryItem, error) {
	var it model.GroceryItem
	var checkedAt sql.NullTime
	err := sc.Scan(&it.ID, &it.ListID, &it.Title, &it.Quantity, &it.Note, &it.Category,
		&it.Checked, &it.CheckedBy, &checkedAt, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.CheckedAt = timePtr(checkedAt)
	return &it, nil
}

func (s *GroceryStore) GetItem(ctx context.Context, id string) (*model.GroceryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemCols+` FROM grocery_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// ListItems returns unchecked items first, then by creation order.
func (s *GroceryStore) ListItems(ctx context.Context, listID string) ([]model.GroceryItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM grocery_items WHERE list_id = ?
		 ORDER BY checked ASC, created_at ASC, rowid ASC`, listID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.GroceryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (s *GroceryStore) CreateItem(ctx context.Context, it *model.GroceryItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grocery_items (`+itemCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.ListID, it.Title, it.Quantity, it.Note, it.Category,
		it.Checked, it.CheckedBy, nullTime(it.CheckedAt), it.CreatedBy, utc(it.CreatedAt), utc(it.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// UpdateItem saves the editable fields. The checked state is owned by
// SetChecked.
func (s *GroceryStore) UpdateItem(ctx context.Context, it *model.GroceryItem) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE grocery_items SET title = ?, quantity = ?, note = ?, category = ?, updated_at = ? WHERE id = ?`,
		it.Title, it.Quantity, it.Note, it.Category, utc(it.UpdatedAt), it.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func (s *GroceryStore) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM grocery_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// SetChecked flips the checked state only when it differs from the stored
// value, so concurrent toggles to the same state report one change.
func (s *GroceryStore) SetChecked(ctx context.Context, id string, checked bool, by string, at time.Time) (bool, error) {
	var checkedBy string
	var checkedAt sql.NullTime
	if checked {
		checkedBy = by
		checkedAt = nullTime(&at)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE grocery_items SET checked = ?, checked_by = ?, checked_at = ?, updated_at = ?
		 WHERE id = ? AND checked <> ?`,
		checked, checkedBy, checkedAt, utc(at), id, checked,
	)
	if err != nil {
		return false, fmt.Errorf("set checked: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *GroceryStore) DeleteCheckedItems(ctx context.Context, listID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM grocery_items WHERE list_id = ? AND checked = 1`, listID)
	if err != nil {
		return 0, fmt.Errorf("delete checked items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
