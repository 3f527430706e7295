package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ourslists/internal/backup"
	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/database"
	"github.com/dukerupert/ourslists/internal/grocery"
	"github.com/dukerupert/ourslists/internal/member"
	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/notify"
	"github.com/dukerupert/ourslists/internal/obligation"
	"github.com/dukerupert/ourslists/internal/project"
	"github.com/dukerupert/ourslists/internal/store"
)

type testEnv struct {
	mux     *http.ServeMux
	clock   *clock.Fixed
	tickets *store.TicketStore
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFixed(time.Date(2024, 8, 12, 10, 0, 0, 0, time.UTC))
	tickets := store.NewTicketStore(db)
	dispatcher := notify.NewDispatcher(tickets, notify.NewEngine(8), clk, 9, time.UTC, logger)

	projects := project.NewService(store.NewProjectStore(db), dispatcher, clk, nil, logger)
	recorder := obligation.NewRecorder(store.NewObligationStore(db), projects, dispatcher, clk, nil, logger)
	history := grocery.NewHistory(store.NewPurchaseStore(db), clk, logger)
	lists := grocery.NewLists(store.NewGroceryStore(db), history, clk, nil, logger)

	sh := NewSpaceHandler(store.NewSpaceStore(db), clk, logger)
	oh := NewObligationHandler(recorder, logger)
	gh := NewGroceryHandler(lists, history, logger)
	ph := NewProjectHandler(projects, logger)
	pu := NewPushHandler(store.NewPushStore(db), "test-public-key", clk, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/spaces", sh.Create)
	mux.HandleFunc("GET /api/spaces", sh.List)
	mux.HandleFunc("POST /api/spaces/{space_id}/reschedule", oh.Reschedule)
	mux.HandleFunc("POST /api/spaces/{space_id}/obligations", oh.Create)
	mux.HandleFunc("GET /api/spaces/{space_id}/obligations", oh.List)
	mux.HandleFunc("GET /api/obligations/{id}", oh.Get)
	mux.HandleFunc("DELETE /api/obligations/{id}", oh.Delete)
	mux.HandleFunc("POST /api/obligations/{id}/done", oh.Done)
	mux.HandleFunc("POST /api/obligations/{id}/snooze", oh.Snooze)
	mux.HandleFunc("POST /api/obligations/{id}/pause", oh.Pause)
	mux.HandleFunc("GET /api/obligations/{id}/history", oh.History)
	mux.HandleFunc("POST /api/spaces/{space_id}/grocery-lists", gh.CreateList)
	mux.HandleFunc("POST /api/grocery-lists/{id}/items", gh.CreateItem)
	mux.HandleFunc("GET /api/grocery-lists/{id}/items", gh.ListItems)
	mux.HandleFunc("POST /api/grocery-lists/{id}/clear-checked", gh.ClearChecked)
	mux.HandleFunc("POST /api/grocery-items/{id}/check", gh.Check)
	mux.HandleFunc("GET /api/spaces/{space_id}/purchases/frequent", gh.Frequent)
	mux.HandleFunc("GET /api/grocery/categorize", gh.Categorize)
	mux.HandleFunc("POST /api/spaces/{space_id}/projects", ph.CreateProject)
	mux.HandleFunc("POST /api/projects/{id}/tasks", ph.CreateTask)
	mux.HandleFunc("GET /api/projects/{id}/tasks", ph.ListTasks)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", ph.ToggleTask)
	mux.HandleFunc("GET /api/push/vapid-key", pu.GetVAPIDKey)
	mux.HandleFunc("POST /api/spaces/{space_id}/push/subscriptions", pu.Subscribe)
	mux.HandleFunc("GET /api/spaces/{space_id}/push/preferences", pu.GetPreferences)
	mux.HandleFunc("PUT /api/spaces/{space_id}/push/preferences", pu.UpdatePreference)

	return &testEnv{mux: mux, clock: clk, tickets: tickets}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSpaces(t *testing.T) {
	env := setup(t)

	rec := env.do(t, "POST", "/api/spaces", map[string]string{"name": "Home"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sp := decodeBody[model.Space](t, rec)
	assert.NotEmpty(t, sp.ID)
	assert.Equal(t, "Home", sp.Name)

	rec = env.do(t, "POST", "/api/spaces", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is required")

	rec = env.do(t, "GET", "/api/spaces", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Space](t, rec), 1)
}

func TestObligationLifecycle(t *testing.T) {
	env := setup(t)

	rec := env.do(t, "POST", "/api/spaces/s1/obligations", map[string]string{
		"kind":     "chore",
		"title":    "Water plants",
		"schedule": "FREQ=DAILY;INTERVAL=3",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st := decodeBody[obligation.Status](t, rec)
	require.NotNil(t, st.NextDue)
	assert.Equal(t, "Repeats every 3 days", st.Description)

	tickets, err := env.tickets.ListTickets(t.Context())
	require.NoError(t, err)
	assert.Len(t, tickets, 1)

	env.clock.Advance(time.Hour)
	rec = env.do(t, "POST", "/api/obligations/"+st.ID+"/done", map[string]string{"completed_by": "sam"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeBody[obligation.Status](t, rec)
	require.NotNil(t, done.LastCompletedAt)

	rec = env.do(t, "GET", "/api/obligations/"+st.ID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]model.Completion](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "sam", history[0].CompletedBy)

	rec = env.do(t, "POST", "/api/obligations/"+st.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[obligation.Status](t, rec).Paused)

	rec = env.do(t, "DELETE", "/api/obligations/"+st.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "GET", "/api/obligations/"+st.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDoneUsesRequestMember(t *testing.T) {
	env := setup(t)
	rec := env.do(t, "POST", "/api/spaces/s1/obligations", map[string]string{"kind": "chore", "title": "Vacuum"})
	st := decodeBody[obligation.Status](t, rec)

	req := httptest.NewRequest("POST", "/api/obligations/"+st.ID+"/done", nil)
	req = req.WithContext(member.WithIdentity(req.Context(), member.Identity{Name: "alex"}))
	rec = httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, "GET", "/api/obligations/"+st.ID+"/history", nil)
	history := decodeBody[[]model.Completion](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "alex", history[0].CompletedBy)
}

func TestObligationValidation(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"unknown kind", map[string]string{"kind": "errand", "title": "x"}, http.StatusBadRequest},
		{"missing title", map[string]string{"kind": "chore"}, http.StatusBadRequest},
		{"bad schedule", map[string]string{"kind": "chore", "title": "x", "schedule": "FREQ=HOURLY"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/spaces/s1/obligations", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := env.do(t, "POST", "/api/spaces/s1/obligations", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnooze(t *testing.T) {
	env := setup(t)

	rec := env.do(t, "POST", "/api/spaces/s1/obligations", map[string]string{"kind": "chore", "title": "Dishes"})
	chore := decodeBody[obligation.Status](t, rec)
	rec = env.do(t, "POST", "/api/obligations/"+chore.ID+"/snooze", map[string]int{"days": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, "POST", "/api/spaces/s1/obligations", map[string]string{"kind": "reminder", "title": "Call mom"})
	reminder := decodeBody[obligation.Status](t, rec)

	rec = env.do(t, "POST", "/api/obligations/"+reminder.ID+"/snooze", map[string]int{"days": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/obligations/"+reminder.ID+"/snooze", map[string]int{"days": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeBody[obligation.Status](t, rec)
	require.NotNil(t, st.SnoozedUntil)
	assert.True(t, st.SnoozedUntil.After(env.clock.Now()))
}

func TestListObligationsByKind(t *testing.T) {
	env := setup(t)
	env.do(t, "POST", "/api/spaces/s1/obligations", map[string]string{"kind": "chore", "title": "Vacuum"})
	env.do(t, "POST", "/api/spaces/s1/obligations", map[string]string{"kind": "reminder", "title": "Renew passport"})

	rec := env.do(t, "GET", "/api/spaces/s1/obligations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]obligation.Status](t, rec), 2)

	rec = env.do(t, "GET", "/api/spaces/s1/obligations?kind=reminder", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[[]obligation.Status](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "Renew passport", got[0].Title)

	rec = env.do(t, "GET", "/api/spaces/empty/obligations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestReschedule(t *testing.T) {
	env := setup(t)
	env.do(t, "POST", "/api/spaces/s1/obligations", map[string]string{"kind": "chore", "title": "Vacuum", "schedule": "FREQ=WEEKLY"})

	rec := env.do(t, "POST", "/api/spaces/s1/reschedule", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	tickets, err := env.tickets.ListTickets(t.Context())
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestGroceryFlow(t *testing.T) {
	env := setup(t)

	rec := env.do(t, "POST", "/api/spaces/s1/grocery-lists", map[string]string{"name": "Weekly"})
	require.Equal(t, http.StatusCreated, rec.Code)
	list := decodeBody[model.GroceryList](t, rec)

	rec = env.do(t, "POST", "/api/grocery-lists/"+list.ID+"/items", map[string]string{"title": "Milk", "quantity": "2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decodeBody[model.GroceryItem](t, rec)
	assert.Equal(t, string(grocery.Dairy), item.Category)

	rec = env.do(t, "POST", "/api/grocery-items/"+item.ID+"/check", map[string]string{"by": "sam"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[model.GroceryItem](t, rec).Checked)

	rec = env.do(t, "GET", "/api/spaces/s1/purchases/frequent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeBody[[]model.PurchaseRecord](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "milk", records[0].NormalizedTitle)
	assert.Equal(t, 1, records[0].PurchaseCount)

	rec = env.do(t, "POST", "/api/grocery-lists/"+list.ID+"/clear-checked", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())

	rec = env.do(t, "GET", "/api/grocery-lists/"+list.ID+"/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = env.do(t, "POST", "/api/grocery-lists/missing/items", map[string]string{"title": "Eggs"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "GET", "/api/spaces/s1/purchases/frequent?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategorize(t *testing.T) {
	env := setup(t)

	rec := env.do(t, "GET", "/api/grocery/categorize?title=Milk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"category":"Dairy"}`, rec.Body.String())

	rec = env.do(t, "GET", "/api/grocery/categorize", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectTasks(t *testing.T) {
	env := setup(t)

	rec := env.do(t, "POST", "/api/spaces/s1/projects", map[string]string{"name": "Garage", "color": "zzz"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/spaces/s1/projects", map[string]string{"name": "Garage", "color": "#aabbcc"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decodeBody[model.Project](t, rec)

	due := env.clock.Now().Add(48 * time.Hour)
	rec = env.do(t, "POST", "/api/projects/"+p.ID+"/tasks", map[string]any{"title": "Sort tools", "due_date": due})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decodeBody[model.Task](t, rec)
	assert.Equal(t, model.PriorityMedium, task.Priority)

	rec = env.do(t, "POST", "/api/projects/"+p.ID+"/tasks", map[string]any{"title": "x", "priority": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/tasks/"+task.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decodeBody[model.Task](t, rec).CompletedAt)

	rec = env.do(t, "GET", "/api/projects/"+p.ID+"/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]project.TaskStatus](t, rec), 1)

	rec = env.do(t, "POST", "/api/projects/missing/tasks", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPushRoutes(t *testing.T) {
	env := setup(t)

	rec := env.do(t, "GET", "/api/push/vapid-key", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test-public-key")

	rec = env.do(t, "POST", "/api/spaces/s1/push/subscriptions", map[string]string{
		"member":   "sam",
		"endpoint": "https://push.example.com/abc",
		"p256dh":   "key",
		"auth":     "secret",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, "POST", "/api/spaces/s1/push/subscriptions", map[string]string{"member": "sam", "endpoint": "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/spaces/s1/push/subscriptions", map[string]string{
		"endpoint": "https://push.example.com/nobody",
		"p256dh":   "key",
		"auth":     "secret",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "member is required")

	rec = env.do(t, "PUT", "/api/spaces/s1/push/preferences", map[string]any{
		"member":            "sam",
		"notification_type": model.NotifTypeChoreDue,
		"enabled":           false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, "GET", "/api/spaces/s1/push/preferences?member=sam", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prefs := decodeBody[[]model.NotificationPreference](t, rec)
	require.Len(t, prefs, len(model.NotificationTypes))
	for _, p := range prefs {
		assert.Equal(t, p.NotificationType != model.NotifTypeChoreDue, p.Enabled, p.NotificationType)
	}
}

func TestBackupRoutes(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFixed(time.Date(2024, 8, 12, 3, 0, 0, 0, time.UTC))

	disabled := NewBackupHandler(backup.NewManager(backup.Config{}, db, nil, nil, clk, logger), logger)
	rec := httptest.NewRecorder()
	disabled.Create(rec, httptest.NewRequest("POST", "/api/backups", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	dest := backup.DirDestination{Dir: t.TempDir()}
	h := NewBackupHandler(backup.NewManager(backup.Config{Passphrase: "p"}, db, nil, dest, clk, logger), logger)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/api/backups", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snap := decodeBody[backup.Snapshot](t, rec)
	assert.Equal(t, "ourslists-20240812T030000Z", snap.Name)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/backups", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]backup.Snapshot](t, rec), 1)

	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest("GET", "/api/backups/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, backup.StateIdle, decodeBody[backup.Status](t, rec).State)
}
