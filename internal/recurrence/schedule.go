package recurrence

import "time"

type Kind string

const (
	None             Kind = "none"
	Daily            Kind = "daily"
	Weekly           Kind = "weekly"
	Biweekly         Kind = "biweekly"
	Monthly          Kind = "monthly"
	CustomDays       Kind = "custom_days"
	MonthlyByDay     Kind = "monthly_by_day"
	QuarterlyByDay   Kind = "quarterly_by_day"
	YearlyByMonthDay Kind = "yearly_by_month_day"
)

// MaxDayOfMonth keeps calendar schedules away from month-end ambiguity.
const MaxDayOfMonth = 28

// quarterMonths are the months a quarterly schedule can fall in.
var quarterMonths = [...]time.Month{time.January, time.April, time.July, time.October}

// Schedule describes how often an obligation recurs. Only the fields relevant
// to Kind are meaningful.
type Schedule struct {
	Kind        Kind `json:"kind"`
	Days        int  `json:"days,omitempty"`
	DayOfMonth  int  `json:"day_of_month,omitempty"`
	MonthOfYear int  `json:"month_of_year,omitempty"`
}

func EveryNDays(n int) Schedule {
	return Schedule{Kind: CustomDays, Days: n}.Normalize()
}

func MonthlyOn(day int) Schedule {
	return Schedule{Kind: MonthlyByDay, DayOfMonth: day}.Normalize()
}

func QuarterlyOn(day int) Schedule {
	return Schedule{Kind: QuarterlyByDay, DayOfMonth: day}.Normalize()
}

func YearlyOn(month time.Month, day int) Schedule {
	return Schedule{Kind: YearlyByMonthDay, MonthOfYear: int(month), DayOfMonth: day}.Normalize()
}

// Normalize clamps parameters into their valid ranges and zeroes the ones the
// kind does not use. An unknown kind becomes None.
func (s Schedule) Normalize() Schedule {
	switch s.Kind {
	case None, Daily, Weekly, Biweekly, Monthly:
		return Schedule{Kind: s.Kind}
	case "":
		return Schedule{Kind: None}
	case CustomDays:
		return Schedule{Kind: CustomDays, Days: clamp(s.Days, 1, s.Days)}
	case MonthlyByDay, QuarterlyByDay:
		return Schedule{Kind: s.Kind, DayOfMonth: clamp(s.DayOfMonth, 1, MaxDayOfMonth)}
	case YearlyByMonthDay:
		return Schedule{
			Kind:        YearlyByMonthDay,
			MonthOfYear: clamp(s.MonthOfYear, 1, 12),
			DayOfMonth:  clamp(s.DayOfMonth, 1, MaxDayOfMonth),
		}
	}
	return Schedule{Kind: None}
}

// Recurring reports whether the schedule produces more than one due date.
func (s Schedule) Recurring() bool {
	return s.Kind != None && s.Kind != ""
}

// IntervalDays returns the fixed day interval for interval kinds and 0 for
// calendar kinds and one-time items.
func (s Schedule) IntervalDays() int {
	switch s.Kind {
	case Daily:
		return 1
	case Weekly:
		return 7
	case Biweekly:
		return 14
	case Monthly:
		return 30
	case CustomDays:
		return clamp(s.Days, 1, s.Days)
	}
	return 0
}

func (s Schedule) calendar() bool {
	switch s.Kind {
	case MonthlyByDay, QuarterlyByDay, YearlyByMonthDay:
		return true
	}
	return false
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
