package project

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/notify"
)

type memRepo struct {
	mu       sync.Mutex
	projects map[string]model.Project
	tasks    map[string]model.Task
}

func newMemRepo() *memRepo {
	return &memRepo{projects: map[string]model.Project{}, tasks: map[string]model.Task{}}
}

func (m *memRepo) GetProject(_ context.Context, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memRepo) ListProjects(_ context.Context, spaceID string) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Project
	for _, p := range m.projects {
		if p.SpaceID == spaceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) CreateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = *p
	return nil
}

func (m *memRepo) UpdateProject(_ context.Context, p *model.Project) error {
	return m.CreateProject(context.Background(), p)
}

func (m *memRepo) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	for tid, t := range m.tasks {
		if t.ProjectID == id {
			delete(m.tasks, tid)
		}
	}
	return nil
}

func (m *memRepo) GetTask(_ context.Context, id string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memRepo) ListTasks(_ context.Context, projectID string) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *memRepo) ListSpaceTasks(_ context.Context, spaceID string) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Task
	for _, t := range m.tasks {
		if t.SpaceID == spaceID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memRepo) CreateTask(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = *t
	return nil
}

func (m *memRepo) UpdateTask(ctx context.Context, t *model.Task) error {
	return m.CreateTask(ctx, t)
}

func (m *memRepo) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

// fakeNotifier tracks which task ids would hold a ticket.
type fakeNotifier struct {
	mu      sync.Mutex
	tickets map[string]notify.Target
	now     func() time.Time
}

func (f *fakeNotifier) Reschedule(_ context.Context, t notify.Target) (*notify.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tickets, t.ID)
	if t.Paused || t.Due == nil || !t.Due.After(f.now()) {
		return nil, nil
	}
	f.tickets[t.ID] = t
	return &notify.Ticket{ID: notify.TicketID(t.Kind, t.ID)}, nil
}

func (f *fakeNotifier) Cancel(_ context.Context, t notify.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tickets, t.ID)
	return nil
}

var now = time.Date(2024, time.August, 12, 10, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memRepo, *fakeNotifier, *clock.Fixed) {
	clk := clock.NewFixed(now)
	repo := newMemRepo()
	n := &fakeNotifier{tickets: map[string]notify.Target{}, now: clk.Now}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, n, clk, nil, logger), repo, n, clk
}

func days(d int) *time.Time {
	t := now.AddDate(0, 0, d)
	return &t
}

func TestCreateTaskSchedulesNotification(t *testing.T) {
	svc, _, n, _ := newTestService()
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, "home", "Garden", "#00aa00")
	require.NoError(t, err)

	task, err := svc.Create(ctx, p.ID, NewTask{Title: "Build raised bed", DueDate: days(3), Priority: model.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, "home", task.SpaceID)

	tg, ok := n.tickets[task.ID]
	require.True(t, ok)
	assert.Equal(t, notify.KindTask, tg.Kind)
	assert.Equal(t, "Garden", tg.Subtitle)

	_, err = svc.Create(ctx, p.ID, NewTask{Title: "Someday"})
	require.NoError(t, err)
	assert.Len(t, n.tickets, 1)
}

func TestCreateTaskValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "missing", NewTask{Title: "x"})
	assert.ErrorIs(t, err, ErrProjectNotFound)

	p, err := svc.CreateProject(ctx, "home", "Garage", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, p.ID, NewTask{Title: "  "})
	assert.ErrorIs(t, err, ErrTitleRequired)
}

func TestToggleCompleteCancelsAndRestores(t *testing.T) {
	svc, _, n, _ := newTestService()
	ctx := context.Background()
	p, _ := svc.CreateProject(ctx, "home", "Kitchen", "")
	task, err := svc.Create(ctx, p.ID, NewTask{Title: "Paint cabinets", DueDate: days(5)})
	require.NoError(t, err)
	require.Contains(t, n.tickets, task.ID)

	done, err := svc.ToggleComplete(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.NotContains(t, n.tickets, task.ID)
	assert.Equal(t, "Done", Evaluate(*done, now).Label)

	reopened, err := svc.ToggleComplete(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
	assert.Contains(t, n.tickets, task.ID)
}

func TestSetDue(t *testing.T) {
	svc, _, n, _ := newTestService()
	ctx := context.Background()
	p, _ := svc.CreateProject(ctx, "home", "Taxes", "")
	task, err := svc.Create(ctx, p.ID, NewTask{Title: "Gather receipts"})
	require.NoError(t, err)
	assert.Empty(t, n.tickets)

	_, err = svc.SetDue(ctx, task.ID, days(2))
	require.NoError(t, err)
	assert.Contains(t, n.tickets, task.ID)

	_, err = svc.SetDue(ctx, task.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, n.tickets)
}

func TestDeleteTaskAndProject(t *testing.T) {
	svc, repo, n, _ := newTestService()
	ctx := context.Background()
	p, _ := svc.CreateProject(ctx, "home", "Move", "")
	a, _ := svc.Create(ctx, p.ID, NewTask{Title: "Book truck", DueDate: days(1)})
	_, _ = svc.Create(ctx, p.ID, NewTask{Title: "Pack books", DueDate: days(4)})

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.Len(t, n.tickets, 1)
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), ErrTaskNotFound)

	require.NoError(t, svc.DeleteProject(ctx, p.ID))
	assert.Empty(t, n.tickets)
	assert.Empty(t, repo.tasks)
}

func TestArchiveProjectSilencesTasks(t *testing.T) {
	svc, _, n, _ := newTestService()
	ctx := context.Background()
	p, _ := svc.CreateProject(ctx, "home", "Trip", "")
	_, _ = svc.Create(ctx, p.ID, NewTask{Title: "Passports", DueDate: days(6)})

	_, err := svc.SetArchived(ctx, p.ID, true)
	require.NoError(t, err)
	assert.Empty(t, n.tickets)

	_, err = svc.SetArchived(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Len(t, n.tickets, 1)
}

func TestListSortsByUrgency(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	p, _ := svc.CreateProject(ctx, "home", "House", "")

	mk := func(title string, due *time.Time) *model.Task {
		task, err := svc.Create(ctx, p.ID, NewTask{Title: title, DueDate: due})
		require.NoError(t, err)
		return task
	}
	mk("a-later", days(10))
	mk("b-none", nil)
	mk("c-overdue", days(-2))
	done := mk("d-done", days(-5))
	mk("e-soon", days(2))
	_, err := svc.ToggleComplete(ctx, done.ID)
	require.NoError(t, err)

	list, err := svc.List(ctx, p.ID)
	require.NoError(t, err)

	var got []string
	for _, ts := range list {
		got = append(got, ts.Title)
	}
	assert.Equal(t, []string{"c-overdue", "e-soon", "a-later", "b-none", "d-done"}, got)
	assert.True(t, list[0].Urgency.Overdue)
	assert.Equal(t, "2 days overdue", list[0].Label)
	assert.True(t, list[1].Urgency.DueSoon)
}

func TestTaskTargets(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	p, _ := svc.CreateProject(ctx, "home", "Yard", "")
	open, _ := svc.Create(ctx, p.ID, NewTask{Title: "Rake", DueDate: days(1)})
	closed, _ := svc.Create(ctx, p.ID, NewTask{Title: "Mulch", DueDate: days(2)})
	_, err := svc.ToggleComplete(ctx, closed.ID)
	require.NoError(t, err)

	targets, err := svc.TaskTargets(ctx, "home")
	require.NoError(t, err)
	require.Len(t, targets, 2)

	byID := map[string]notify.Target{}
	for _, tg := range targets {
		byID[tg.ID] = tg
	}
	assert.NotNil(t, byID[open.ID].Due)
	assert.Equal(t, "Yard", byID[open.ID].Subtitle)
	assert.Nil(t, byID[closed.ID].Due)
}
