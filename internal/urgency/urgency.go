// Package urgency classifies due dates into overdue, due-today and due-soon
// buckets. The overdue threshold and soon window differ per item kind, so
// callers always pass a Policy.
package urgency

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

type OverdueRule int

const (
	// BeforeStartOfDay marks an item overdue once its due date is before
	// midnight today. Used for chores and tasks, which are day-granular.
	BeforeStartOfDay OverdueRule = iota
	// BeforeNow marks an item overdue as soon as its due instant passes.
	BeforeNow
)

type Policy struct {
	Overdue        OverdueRule
	SoonWindowDays int
}

var (
	ChorePolicy    = Policy{Overdue: BeforeStartOfDay, SoonWindowDays: 2}
	TaskPolicy     = Policy{Overdue: BeforeStartOfDay, SoonWindowDays: 3}
	ReminderPolicy = Policy{Overdue: BeforeNow, SoonWindowDays: 7}
)

// Urgency is the classification of one due date. Under BeforeNow an item can
// be both overdue and due today.
type Urgency struct {
	Overdue  bool `json:"overdue"`
	DueToday bool `json:"due_today"`
	DueSoon  bool `json:"due_soon"`
}

// Classify evaluates due against now in now's location. Paused items and items
// without a due date are never urgent.
func Classify(due *time.Time, paused bool, now time.Time, p Policy) Urgency {
	if paused || due == nil {
		return Urgency{}
	}
	d := due.In(now.Location())

	var u Urgency
	switch p.Overdue {
	case BeforeNow:
		u.Overdue = d.Before(now)
	default:
		u.Overdue = d.Before(startOfDay(now))
	}
	u.DueToday = sameDay(d, now)
	u.DueSoon = d.After(now) && !d.After(now.AddDate(0, 0, p.SoonWindowDays))
	return u
}

type Bucket int

const (
	BucketOverdue Bucket = iota
	BucketToday
	BucketSoon
	BucketNormal
)

func (b Bucket) String() string {
	switch b {
	case BucketOverdue:
		return "overdue"
	case BucketToday:
		return "today"
	case BucketSoon:
		return "soon"
	}
	return "normal"
}

// Bucket returns the most pressing bucket the classification falls in.
func (u Urgency) Bucket() Bucket {
	switch {
	case u.Overdue:
		return BucketOverdue
	case u.DueToday:
		return BucketToday
	case u.DueSoon:
		return BucketSoon
	}
	return BucketNormal
}

// Entry is what Sort needs to know about an item.
type Entry struct {
	Due     *time.Time
	Urgency Urgency
}

// Sort orders items overdue first, then due today, then by ascending due date,
// with undated items last. Equal items keep their relative order.
func Sort[T any](items []T, entry func(T) Entry) {
	slices.SortStableFunc(items, func(a, b T) int {
		return Compare(entry(a), entry(b))
	})
}

// Compare orders two entries the way Sort does.
func Compare(a, b Entry) int {
	if c := cmp.Compare(rank(a), rank(b)); c != 0 {
		return c
	}
	if a.Due == nil || b.Due == nil {
		return 0
	}
	return a.Due.Compare(*b.Due)
}

func rank(e Entry) int {
	switch {
	case e.Due == nil:
		return 3
	case e.Urgency.Overdue:
		return 0
	case e.Urgency.DueToday:
		return 1
	}
	return 2
}

// Label renders a short due description such as "Due tomorrow" or
// "3 days overdue". Items without a due date get an empty label.
func Label(due *time.Time, paused, done bool, now time.Time) string {
	switch {
	case paused:
		return "Paused"
	case done:
		return "Done"
	case due == nil:
		return ""
	}

	days := DaysBetween(now, *due)
	switch {
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due tomorrow"
	case days < 0:
		return fmt.Sprintf("%d %s overdue", -days, plural(-days))
	}
	return fmt.Sprintf("Due in %d %s", days, plural(days))
}

// DaysBetween counts calendar days from a's day to b's day in a's location.
func DaysBetween(a, b time.Time) int {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func plural(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
