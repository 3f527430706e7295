package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/ourslists/internal/model"
)

type ObligationStore struct {
	db *sql.DB
}

func NewObligationStore(db *sql.DB) *ObligationStore {
	return &ObligationStore{db: db}
}

const obligationCols = `id, space_id, kind, title, notes, schedule, assigned_to, paused,
	created_at, updated_at, last_completed_at, snoozed_until`

func scanObligation(sc scanner) (*model.Obligation, error) {
	var o model.Obligation
	var last, snoozed sql.NullTime
	err := sc.Scan(&o.ID, &o.SpaceID, &o.Kind, &o.Title, &o.Notes, &o.Schedule, &o.AssignedTo, &o.Paused,
		&o.CreatedAt, &o.UpdatedAt, &last, &snoozed)
	if err != nil {
		return nil, err
	}
	o.LastCompletedAt = timePtr(last)
	o.SnoozedUntil = timePtr(snoozed)
	return &o, nil
}

func (s *ObligationStore) GetObligation(ctx context.Context, id string) (*model.Obligation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+obligationCols+` FROM obligations WHERE id = ?`, id)
	o, err := scanObligation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get obligation: %w", err)
	}
	return o, nil
}

func (s *ObligationStore) ListObligations(ctx context.Context, spaceID string) ([]model.Obligation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+obligationCols+` FROM obligations WHERE space_id = ? ORDER BY created_at ASC, id ASC`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	var out []model.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *ObligationStore) CreateObligation(ctx context.Context, o *model.Obligation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO obligations (`+obligationCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.SpaceID, string(o.Kind), o.Title, o.Notes, o.Schedule, o.AssignedTo, o.Paused,
		utc(o.CreatedAt), utc(o.UpdatedAt), nullTime(o.LastCompletedAt), nullTime(o.SnoozedUntil),
	)
	if err != nil {
		return fmt.Errorf("insert obligation: %w", err)
	}
	return nil
}

func (s *ObligationStore) UpdateObligation(ctx context.Context, o *model.Obligation) error {
	return updateObligation(ctx, s.db, o)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateObligation(ctx context.Context, db execer, o *model.Obligation) error {
	res, err := db.ExecContext(ctx,
		`UPDATE obligations SET title = ?, notes = ?, schedule = ?, assigned_to = ?, paused = ?,
		 updated_at = ?, last_completed_at = ?, snoozed_until = ? WHERE id = ?`,
		o.Title, o.Notes, o.Schedule, o.AssignedTo, o.Paused,
		utc(o.UpdatedAt), nullTime(o.LastCompletedAt), nullTime(o.SnoozedUntil), o.ID,
	)
	if err != nil {
		return fmt.Errorf("update obligation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update obligation %s: %w", o.ID, sql.ErrNoRows)
	}
	return nil
}

func (s *ObligationStore) DeleteObligation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM obligations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete obligation: %w", err)
	}
	return nil
}

// RecordCompletion inserts c, saves o and trims the history of o to the newest
// keep records in one transaction.
func (s *ObligationStore) RecordCompletion(ctx context.Context, o *model.Obligation, c *model.Completion, keep int) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO completions (id, obligation_id, completed_at, completed_by) VALUES (?, ?, ?, ?)`,
			c.ID, c.ObligationID, utc(c.CompletedAt), c.CompletedBy,
		); err != nil {
			return fmt.Errorf("insert completion: %w", err)
		}
		if err := updateObligation(ctx, tx, o); err != nil {
			return err
		}
		if keep <= 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM completions WHERE obligation_id = ? AND id NOT IN (
				SELECT id FROM completions WHERE obligation_id = ?
				ORDER BY completed_at DESC, rowid DESC LIMIT ?)`,
			o.ID, o.ID, keep,
		); err != nil {
			return fmt.Errorf("trim completions: %w", err)
		}
		return nil
	})
}

func (s *ObligationStore) ListCompletions(ctx context.Context, obligationID string) ([]model.Completion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, obligation_id, completed_at, completed_by FROM completions
		 WHERE obligation_id = ? ORDER BY completed_at DESC, rowid DESC`, obligationID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []model.Completion
	for rows.Next() {
		var c model.Completion
		if err := rows.Scan(&c.ID, &c.ObligationID, &c.CompletedAt, &c.CompletedBy); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
