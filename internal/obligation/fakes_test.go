package obligation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/ourslists/internal/clock"
	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/notify"
	"github.com/dukerupert/ourslists/internal/websocket"
)

type memRepo struct {
	mu          sync.Mutex
	obligations map[string]model.Obligation
	completions map[string][]model.Completion

	// When gate is set, RecordCompletion sends on entered and then waits
	// for gate to close before writing.
	gate    chan struct{}
	entered chan struct{}
}

func newMemRepo() *memRepo {
	return &memRepo{
		obligations: make(map[string]model.Obligation),
		completions: make(map[string][]model.Completion),
	}
}

func (m *memRepo) GetObligation(_ context.Context, id string) (*model.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.obligations[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memRepo) ListObligations(_ context.Context, spaceID string) ([]model.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Obligation
	for _, o := range m.obligations {
		if o.SpaceID == spaceID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *memRepo) CreateObligation(_ context.Context, o *model.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obligations[o.ID] = *o
	return nil
}

func (m *memRepo) UpdateObligation(_ context.Context, o *model.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.obligations[o.ID]; !ok {
		return errors.New("no such obligation")
	}
	m.obligations[o.ID] = *o
	return nil
}

func (m *memRepo) DeleteObligation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.obligations, id)
	delete(m.completions, id)
	return nil
}

func (m *memRepo) RecordCompletion(_ context.Context, o *model.Obligation, c *model.Completion, keep int) error {
	if m.gate != nil {
		m.entered <- struct{}{}
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obligations[o.ID] = *o
	list := append([]model.Completion{*c}, m.completions[o.ID]...)
	if keep > 0 && len(list) > keep {
		list = list[:keep]
	}
	m.completions[o.ID] = list
	return nil
}

func (m *memRepo) ListCompletions(_ context.Context, obligationID string) ([]model.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Completion(nil), m.completions[obligationID]...), nil
}

type memTickets struct {
	mu      sync.Mutex
	tickets map[string]notify.Ticket
}

func newMemTickets() *memTickets {
	return &memTickets{tickets: make(map[string]notify.Ticket)}
}

func (s *memTickets) GetTicket(_ context.Context, id string) (*notify.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *memTickets) PutTicket(_ context.Context, t *notify.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = *t
	return nil
}

func (s *memTickets) DeleteTicket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
	return nil
}

func (s *memTickets) DeleteTicketsByKind(_ context.Context, kind, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tickets {
		if t.Kind == kind && t.SpaceID == spaceID {
			delete(s.tickets, id)
		}
	}
	return nil
}

func (s *memTickets) ListTickets(_ context.Context) ([]notify.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Ticket
	for _, t := range s.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memTickets) get(id string) (notify.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	return t, ok
}

func (s *memTickets) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

type recordingHub struct {
	mu       sync.Mutex
	messages []websocket.Message
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, m := range h.messages {
		out = append(out, m.Type)
	}
	return out
}

type staticTasks []notify.Target

func (s staticTasks) TaskTargets(context.Context, string) ([]notify.Target, error) {
	return s, nil
}

type harness struct {
	recorder *Recorder
	repo     *memRepo
	tickets  *memTickets
	engine   *notify.Engine
	clock    *clock.Fixed
	hub      *recordingHub
}

// monday 2024-01-01 10:00 UTC
var start = time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, tasks TaskTargets) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		repo:    newMemRepo(),
		tickets: newMemTickets(),
		engine:  notify.NewEngine(8),
		clock:   clock.NewFixed(start),
		hub:     &recordingHub{},
	}
	dispatcher := notify.NewDispatcher(h.tickets, h.engine, h.clock, notify.DefaultFireHour, time.UTC, logger)
	h.recorder = NewRecorder(h.repo, tasks, dispatcher, h.clock, h.hub, logger)
	return h
}
