package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/ourslists/internal/model"
)

type SpaceStore struct {
	db *sql.DB
}

func NewSpaceStore(db *sql.DB) *SpaceStore {
	return &SpaceStore{db: db}
}

func (s *SpaceStore) Create(ctx context.Context, sp *model.Space) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spaces (id, name, created_at) VALUES (?, ?, ?)`,
		sp.ID, sp.Name, utc(sp.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert space: %w", err)
	}
	return nil
}

func (s *SpaceStore) Get(ctx context.Context, id string) (*model.Space, error) {
	var sp model.Space
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM spaces WHERE id = ?`, id,
	).Scan(&sp.ID, &sp.Name, &sp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get space: %w", err)
	}
	return &sp, nil
}

func (s *SpaceStore) List(ctx context.Context) ([]model.Space, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM spaces ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []model.Space
	for rows.Next() {
		var sp model.Space
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		spaces = append(spaces, sp)
	}
	return spaces, rows.Err()
}

// IDs returns every space that owns at least one schedulable item, plus the
// spaces table.
func (s *SpaceStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM spaces
		UNION SELECT space_id FROM obligations
		UNION SELECT space_id FROM tasks
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list space ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan space id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
