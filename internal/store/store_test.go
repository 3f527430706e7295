package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/ourslists/internal/database"
	"github.com/dukerupert/ourslists/internal/grocery"
	"github.com/dukerupert/ourslists/internal/notify"
	"github.com/dukerupert/ourslists/internal/obligation"
	"github.com/dukerupert/ourslists/internal/project"
	"github.com/dukerupert/ourslists/internal/push"
)

var (
	_ obligation.Repository     = (*ObligationStore)(nil)
	_ grocery.HistoryRepository = (*PurchaseStore)(nil)
	_ grocery.ItemRepository    = (*GroceryStore)(nil)
	_ project.Repository        = (*ProjectStore)(nil)
	_ notify.TicketStore        = (*TicketStore)(nil)
	_ push.Subscriptions        = (*PushStore)(nil)
)

var base = time.Date(2024, time.May, 6, 8, 30, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(t time.Time) *time.Time {
	return &t
}
