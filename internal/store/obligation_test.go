package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dukerupert/ourslists/internal/model"
)

func newObligation(id, spaceID string, kind model.ObligationKind) *model.Obligation {
	return &model.Obligation{
		ID:        id,
		SpaceID:   spaceID,
		Kind:      kind,
		Title:     "Water plants",
		Schedule:  "FREQ=WEEKLY",
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func TestObligationCRUD(t *testing.T) {
	s := NewObligationStore(setupTestDB(t))
	ctx := context.Background()

	o := newObligation("o1", "home", model.KindChore)
	if err := s.CreateObligation(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetObligation(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected obligation, got nil")
	}
	if got.Kind != model.KindChore || got.Title != "Water plants" || got.Schedule != "FREQ=WEEKLY" {
		t.Errorf("got = %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, base)
	}
	if got.LastCompletedAt != nil || got.SnoozedUntil != nil {
		t.Error("expected nil optional times")
	}

	got.Paused = true
	got.SnoozedUntil = ptr(base.Add(48 * time.Hour))
	got.UpdatedAt = base.Add(time.Hour)
	if err := s.UpdateObligation(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetObligation(ctx, "o1")
	if !got.Paused {
		t.Error("paused not saved")
	}
	if got.SnoozedUntil == nil || !got.SnoozedUntil.Equal(base.Add(48*time.Hour)) {
		t.Errorf("snoozed_until = %v", got.SnoozedUntil)
	}

	if err := s.DeleteObligation(ctx, "o1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.GetObligation(ctx, "o1")
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestUpdateMissingObligation(t *testing.T) {
	s := NewObligationStore(setupTestDB(t))
	if err := s.UpdateObligation(context.Background(), newObligation("nope", "home", model.KindChore)); err == nil {
		t.Error("expected error updating missing obligation")
	}
}

func TestListObligationsBySpace(t *testing.T) {
	s := NewObligationStore(setupTestDB(t))
	ctx := context.Background()

	for i, space := range []string{"home", "cabin", "home"} {
		o := newObligation(fmt.Sprintf("o%d", i), space, model.KindReminder)
		o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.CreateObligation(ctx, o); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := s.ListObligations(ctx, "home")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 obligations, got %d", len(list))
	}
	if list[0].ID != "o0" || list[1].ID != "o2" {
		t.Errorf("order = %s, %s", list[0].ID, list[1].ID)
	}
}

func TestRecordCompletion(t *testing.T) {
	s := NewObligationStore(setupTestDB(t))
	ctx := context.Background()

	o := newObligation("o1", "home", model.KindChore)
	if err := s.CreateObligation(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		at := base.AddDate(0, 0, i+1)
		o.LastCompletedAt = &at
		o.UpdatedAt = at
		c := &model.Completion{ID: fmt.Sprintf("c%d", i), ObligationID: "o1", CompletedAt: at, CompletedBy: "alex"}
		if err := s.RecordCompletion(ctx, o, c, 0); err != nil {
			t.Fatalf("record completion %d: %v", i, err)
		}
	}

	history, err := s.ListCompletions(ctx, "o1")
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 completions, got %d", len(history))
	}
	if history[0].ID != "c2" || history[2].ID != "c0" {
		t.Errorf("history not newest first: %s .. %s", history[0].ID, history[2].ID)
	}

	got, _ := s.GetObligation(ctx, "o1")
	if got.LastCompletedAt == nil || !got.LastCompletedAt.Equal(base.AddDate(0, 0, 3)) {
		t.Errorf("last_completed_at = %v", got.LastCompletedAt)
	}
}

func TestRecordCompletionKeepsNewest(t *testing.T) {
	s := NewObligationStore(setupTestDB(t))
	ctx := context.Background()

	o := newObligation("r1", "home", model.KindReminder)
	if err := s.CreateObligation(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		at := base.AddDate(0, 0, i+1)
		o.LastCompletedAt = &at
		c := &model.Completion{ID: fmt.Sprintf("c%d", i), ObligationID: "r1", CompletedAt: at}
		if err := s.RecordCompletion(ctx, o, c, 1); err != nil {
			t.Fatalf("record completion: %v", err)
		}
	}

	history, err := s.ListCompletions(ctx, "r1")
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(history) != 1 || history[0].ID != "c2" {
		t.Errorf("history = %+v, want only c2", history)
	}
}

func TestRecordCompletionRollsBack(t *testing.T) {
	s := NewObligationStore(setupTestDB(t))
	ctx := context.Background()

	// The obligation was never created, so the update fails and the
	// completion insert must not survive.
	o := newObligation("ghost", "home", model.KindChore)
	c := &model.Completion{ID: "c1", ObligationID: "ghost", CompletedAt: base}
	if err := s.RecordCompletion(ctx, o, c, 0); err == nil {
		t.Fatal("expected error")
	}
	history, err := s.ListCompletions(ctx, "ghost")
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected rollback, got %d completions", len(history))
	}
}

func TestDeleteObligationCascadesCompletions(t *testing.T) {
	db := setupTestDB(t)
	s := NewObligationStore(db)
	ctx := context.Background()

	o := newObligation("o1", "home", model.KindChore)
	if err := s.CreateObligation(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	c := &model.Completion{ID: "c1", ObligationID: "o1", CompletedAt: base}
	if err := s.RecordCompletion(ctx, o, c, 0); err != nil {
		t.Fatalf("record completion: %v", err)
	}
	if err := s.DeleteObligation(ctx, "o1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM completions`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("completions left = %d, want 0", n)
	}
}
