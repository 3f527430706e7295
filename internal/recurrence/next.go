package recurrence

import "time"

// maxCandidates bounds the calendar search. A well-formed schedule never needs
// more than two periods; anything past this is treated as exhausted.
const maxCandidates = 12

// NextDue computes when an obligation on schedule s next falls due.
//
// Interval kinds add a fixed number of calendar days to the last completion
// (or creation). Calendar kinds pick the first day-of-month occurrence, at or
// after the start of today, that is not before the base and does not share a
// period with the last completion. A one-time obligation is due at creation
// until it is completed. The result is nil when nothing is due.
//
// All calendar arithmetic happens in now's location.
func NextDue(s Schedule, lastCompletedAt *time.Time, createdAt, now time.Time) *time.Time {
	s = s.Normalize()
	loc := now.Location()
	now = now.In(loc)
	created := createdAt.In(loc)

	var last *time.Time
	if lastCompletedAt != nil {
		l := lastCompletedAt.In(loc)
		last = &l
	}
	base := created
	if last != nil {
		base = *last
	}

	switch {
	case s.Kind == None:
		if last != nil {
			return nil
		}
		return &created
	case s.calendar():
		return nextCalendar(s, last, base, now)
	}

	days := s.IntervalDays()
	if days == 0 {
		return nil
	}
	due := base.AddDate(0, 0, days)
	return &due
}

// NextDueRule parses rule and evaluates it. A malformed rule yields nil and the
// parse error so the caller can log it and carry on without a due date.
func NextDueRule(rule string, lastCompletedAt *time.Time, createdAt, now time.Time) (*time.Time, error) {
	s, err := Parse(rule)
	if err != nil {
		return nil, err
	}
	return NextDue(s, lastCompletedAt, createdAt, now), nil
}

func nextCalendar(s Schedule, last *time.Time, base, now time.Time) *time.Time {
	today := StartOfDay(now)
	ref := now
	if base.After(ref) {
		ref = base
	}

	for i := range maxCandidates {
		c := candidate(s, ref, i, base)
		if c.Before(today) || c.Before(base) {
			continue
		}
		if last != nil && samePeriod(s.Kind, c, *last) {
			continue
		}
		return &c
	}
	return nil
}

// candidate returns the i-th occurrence counted from the period containing ref.
// It carries base's clock time so a same-day occurrence is never before base.
func candidate(s Schedule, ref time.Time, i int, base time.Time) time.Time {
	year, month := ref.Year(), ref.Month()
	switch s.Kind {
	case QuarterlyByDay:
		month = quarterMonths[(int(month)-1)/3] + time.Month(3*i)
	case YearlyByMonthDay:
		year += i
		month = time.Month(s.MonthOfYear)
	default:
		month += time.Month(i)
	}
	return time.Date(year, month, s.DayOfMonth,
		base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), ref.Location())
}

func samePeriod(k Kind, a, b time.Time) bool {
	if a.Year() != b.Year() {
		return false
	}
	switch k {
	case MonthlyByDay:
		return a.Month() == b.Month()
	case QuarterlyByDay:
		return (a.Month()-1)/3 == (b.Month()-1)/3
	}
	return true
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
