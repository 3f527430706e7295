// Package project manages ad-hoc project tasks and their due-date
// notifications.
package project

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
	"github.com/dukerupert/ourslists/internal/notify"
	"github.com/dukerupert/ourslists/internal/urgency"
	"github.com/dukerupert/ourslists/internal/websocket"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrTitleRequired   = errors.New("title is required")
)

// Repository persists projects and tasks. Get methods return nil, nil when
// the row does not exist.
type Repository interface {
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, spaceID string) ([]model.Project, error)
	CreateProject(ctx context.Context, p *model.Project) error
	UpdateProject(ctx context.Context, p *model.Project) error
	// DeleteProject removes the project and its tasks.
	DeleteProject(ctx context.Context, id string) error

	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]model.Task, error)
	ListSpaceTasks(ctx context.Context, spaceID string) ([]model.Task, error)
	CreateTask(ctx context.Context, t *model.Task) error
	UpdateTask(ctx context.Context, t *model.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type Notifier interface {
	Reschedule(ctx context.Context, t notify.Target) (*notify.Ticket, error)
	Cancel(ctx context.Context, t notify.Target) error
}

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// TaskStatus is a task evaluated against a point in time.
type TaskStatus struct {
	model.Task
	Urgency urgency.Urgency `json:"urgency"`
	Label   string          `json:"label"`
}

func Evaluate(t model.Task, now time.Time) TaskStatus {
	done := t.CompletedAt != nil
	due := t.DueDate
	if done {
		due = nil
	}
	return TaskStatus{
		Task:    t,
		Urgency: urgency.Classify(due, false, now, urgency.TaskPolicy),
		Label:   urgency.Label(t.DueDate, false, done, now),
	}
}

type Service struct {
	repo     Repository
	notifier Notifier
	clock    clock.Clock
	hub      Broadcaster
	logger   *slog.Logger
}

func NewService(repo Repository, notifier Notifier, clk clock.Clock, hub Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		hub:      hub,
		logger:   logger.With("component", "project"),
	}
}

func (s *Service) CreateProject(ctx context.Context, spaceID, name, color string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTitleRequired
	}
	p := &model.Project{
		ID:        uuid.NewString(),
		SpaceID:   spaceID,
		Name:      name,
		Color:     color,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.broadcast(spaceID, "project", "created", p.ID)
	return p, nil
}

func (s *Service) Projects(ctx context.Context, spaceID string) ([]model.Project, error) {
	projects, err := s.repo.ListProjects(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// SetArchived archives or restores a project. Tasks of an archived project
// keep no notifications.
func (s *Service) SetArchived(ctx context.Context, id string, archived bool) (*model.Project, error) {
	p, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Archived = archived
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}

	tasks, err := s.repo.ListTasks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range tasks {
		s.reschedule(ctx, t, p)
	}
	s.broadcast(p.SpaceID, "project", "updated", p.ID)
	return p, nil
}

// DeleteProject removes a project, its tasks and their notifications.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	p, err := s.getProject(ctx, id)
	if err != nil {
		return err
	}
	tasks, err := s.repo.ListTasks(ctx, id)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range tasks {
		if err := s.notifier.Cancel(ctx, target(t, p)); err != nil {
			return fmt.Errorf("cancel task notification: %w", err)
		}
	}
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	s.broadcast(p.SpaceID, "project", "deleted", id)
	return nil
}

type NewTask struct {
	Title      string
	Note       string
	Priority   model.TaskPriority
	AssignedTo string
	DueDate    *time.Time
}

func (s *Service) Create(ctx context.Context, projectID string, n NewTask) (*model.Task, error) {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	p, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	t := &model.Task{
		ID:         uuid.NewString(),
		ProjectID:  p.ID,
		SpaceID:    p.SpaceID,
		Title:      title,
		Note:       n.Note,
		Priority:   n.Priority,
		AssignedTo: n.AssignedTo,
		DueDate:    n.DueDate,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.reschedule(ctx, *t, p)
	s.broadcast(t.SpaceID, "task", "created", t.ID)
	return t, nil
}

// SetDue changes or clears a task's due date.
func (s *Service) SetDue(ctx context.Context, id string, due *time.Time) (*model.Task, error) {
	return s.mutate(ctx, id, "updated", func(t *model.Task) {
		t.DueDate = due
	})
}

// ToggleComplete completes an open task or reopens a completed one.
func (s *Service) ToggleComplete(ctx context.Context, id string) (*model.Task, error) {
	now := s.clock.Now()
	action := ""
	t, err := s.mutate(ctx, id, "", func(t *model.Task) {
		if t.CompletedAt == nil {
			t.CompletedAt = &now
			action = "completed"
		} else {
			t.CompletedAt = nil
			action = "reopened"
		}
	})
	if err != nil {
		return nil, err
	}
	s.broadcast(t.SpaceID, "task", action, t.ID)
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	t, p, err := s.getTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.notifier.Cancel(ctx, target(*t, p)); err != nil {
		return fmt.Errorf("cancel task notification: %w", err)
	}
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.broadcast(t.SpaceID, "task", "deleted", id)
	return nil
}

// List returns a project's tasks, most urgent first.
func (s *Service) List(ctx context.Context, projectID string) ([]TaskStatus, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListTasks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	now := s.clock.Now()
	out := make([]TaskStatus, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, Evaluate(t, now))
	}
	urgency.Sort(out, func(ts TaskStatus) urgency.Entry {
		if ts.CompletedAt != nil {
			return urgency.Entry{}
		}
		return urgency.Entry{Due: ts.DueDate, Urgency: ts.Urgency}
	})
	return out, nil
}

// TaskTargets returns a notification target for every task in a space.
func (s *Service) TaskTargets(ctx context.Context, spaceID string) ([]notify.Target, error) {
	projects, err := s.repo.ListProjects(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	byID := make(map[string]*model.Project, len(projects))
	for i := range projects {
		byID[projects[i].ID] = &projects[i]
	}

	tasks, err := s.repo.ListSpaceTasks(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list space tasks: %w", err)
	}
	targets := make([]notify.Target, 0, len(tasks))
	for _, t := range tasks {
		targets = append(targets, target(t, byID[t.ProjectID]))
	}
	return targets, nil
}

func (s *Service) mutate(ctx context.Context, id, action string, fn func(t *model.Task)) (*model.Task, error) {
	t, p, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(t)
	if err := s.repo.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	s.reschedule(ctx, *t, p)
	if action != "" {
		s.broadcast(t.SpaceID, "task", action, t.ID)
	}
	return t, nil
}

func (s *Service) reschedule(ctx context.Context, t model.Task, p *model.Project) {
	if _, err := s.notifier.Reschedule(ctx, target(t, p)); err != nil {
		s.logger.Error("reschedule task notification", "task_id", t.ID, "error", err)
	}
}

// target builds the notification target for t. Completed tasks and tasks of
// archived projects get no due date, which cancels their ticket.
func target(t model.Task, p *model.Project) notify.Target {
	tg := notify.Target{
		Kind:    notify.KindTask,
		ID:      t.ID,
		SpaceID: t.SpaceID,
		Title:   t.Title,
		Due:     t.DueDate,
	}
	if p != nil {
		tg.Subtitle = p.Name
		tg.Paused = p.Archived
	}
	if t.CompletedAt != nil {
		tg.Due = nil
	}
	return tg
}

func (s *Service) getProject(ctx context.Context, id string) (*model.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (s *Service) getTask(ctx context.Context, id string) (*model.Task, *model.Project, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, nil, ErrTaskNotFound
	}
	p, err := s.getProject(ctx, t.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

func (s *Service) broadcast(spaceID, entity, action, id string) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(websocket.NewMessage(spaceID, entity, action, id, nil))
}
