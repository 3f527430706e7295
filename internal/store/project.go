package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/ourslists/internal/model"
)

type ProjectStore struct {
	db *sql.DB
}

func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// --- Project methods ---

const projectCols = `id, space_id, name, color, archived, created_at`

func scanProject(sc scanner) (*model.Project, error) {
	var p model.Project
	if err := sc.Scan(&p.ID, &p.SpaceID, &p.Name, &p.Color, &p.Archived, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProjectStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *ProjectStore) ListProjects(ctx context.Context, spaceID string) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectCols+` FROM projects WHERE space_id = ? ORDER BY archived ASC, name ASC`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *ProjectStore) CreateProject(ctx context.Context, p *model.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.SpaceID, p.Name, p.Color, p.Archived, utc(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *ProjectStore) UpdateProject(ctx context.Context, p *model.Project) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, color = ?, archived = ? WHERE id = ?`,
		p.Name, p.Color, p.Archived, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func (s *ProjectStore) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// --- Task methods ---

const taskCols = `id, project_id, space_id, title, note, priority, assigned_to, due_date, completed_at, created_at`

func scanTask(sc scanner) (*model.Task, error) {
	var t model.Task
	var due, completed sql.NullTime
	err := sc.Scan(&t.ID, &t.ProjectID, &t.SpaceID, &t.Title, &t.Note, &t.Priority, &t.AssignedTo,
		&due, &completed, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.DueDate = timePtr(due)
	t.CompletedAt = timePtr(completed)
	return &t, nil
}

func (s *ProjectStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *ProjectStore) listTasks(ctx context.Context, where string, arg any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE `+where+` ORDER BY created_at ASC, rowid ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *ProjectStore) ListTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	return s.listTasks(ctx, "project_id = ?", projectID)
}

func (s *ProjectStore) ListSpaceTasks(ctx context.Context, spaceID string) ([]model.Task, error) {
	return s.listTasks(ctx, "space_id = ?", spaceID)
}

func (s *ProjectStore) CreateTask(ctx context.Context, t *model.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.SpaceID, t.Title, t.Note, int(t.Priority), t.AssignedTo,
		nullTime(t.DueDate), nullTime(t.CompletedAt), utc(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *ProjectStore) UpdateTask(ctx context.Context, t *model.Task) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, note = ?, priority = ?, assigned_to = ?, due_date = ?, completed_at = ?
		 WHERE id = ?`,
		t.Title, t.Note, int(t.Priority), t.AssignedTo, nullTime(t.DueDate), nullTime(t.CompletedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *ProjectStore) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
