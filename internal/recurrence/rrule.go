package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse parses a rule such as "FREQ=MONTHLY;INTERVAL=3;BYMONTHDAY=15".
//
//	""                                  one-time
//	FREQ=DAILY                          daily
//	FREQ=DAILY;INTERVAL=n               every n days
//	FREQ=WEEKLY                         weekly
//	FREQ=WEEKLY;INTERVAL=2              biweekly
//	FREQ=MONTHLY                        every 30 days
//	FREQ=MONTHLY;BYMONTHDAY=d           monthly on day d
//	FREQ=MONTHLY;INTERVAL=3;BYMONTHDAY=d  quarterly (Jan/Apr/Jul/Oct) on day d
//	FREQ=YEARLY;BYMONTH=m;BYMONTHDAY=d  yearly on m/d
//
// Numeric values out of range are clamped rather than rejected.
func Parse(rule string) (Schedule, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return Schedule{Kind: None}, nil
	}

	var (
		freq       string
		interval   = 1
		byMonthDay int
		byMonth    int
		hasDay     bool
		hasMonth   bool
	)

	for _, part := range strings.Split(rule, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			return Schedule{}, fmt.Errorf("invalid rule part: %q", part)
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])

		switch key {
		case "FREQ":
			switch val {
			case "DAILY", "WEEKLY", "MONTHLY", "YEARLY":
				freq = val
			default:
				return Schedule{}, fmt.Errorf("unknown frequency: %q", val)
			}

		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Schedule{}, fmt.Errorf("invalid interval: %q", val)
			}
			interval = max(n, 1)

		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Schedule{}, fmt.Errorf("invalid BYMONTHDAY: %q", val)
			}
			byMonthDay, hasDay = n, true

		case "BYMONTH":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Schedule{}, fmt.Errorf("invalid BYMONTH: %q", val)
			}
			byMonth, hasMonth = n, true

		default:
			return Schedule{}, fmt.Errorf("unsupported rule key: %q", key)
		}
	}

	if freq == "" {
		return Schedule{}, fmt.Errorf("FREQ is required")
	}

	var s Schedule
	switch freq {
	case "DAILY", "WEEKLY":
		if hasDay || hasMonth {
			return Schedule{}, fmt.Errorf("%s does not take BYMONTH or BYMONTHDAY", freq)
		}
		days := interval
		if freq == "WEEKLY" {
			days = 7 * interval
		}
		switch days {
		case 1:
			s = Schedule{Kind: Daily}
		case 7:
			s = Schedule{Kind: Weekly}
		case 14:
			s = Schedule{Kind: Biweekly}
		default:
			s = Schedule{Kind: CustomDays, Days: days}
		}

	case "MONTHLY":
		if hasMonth {
			return Schedule{}, fmt.Errorf("MONTHLY does not take BYMONTH")
		}
		switch {
		case !hasDay && interval == 1:
			s = Schedule{Kind: Monthly}
		case !hasDay:
			s = Schedule{Kind: CustomDays, Days: 30 * interval}
		case interval == 1:
			s = Schedule{Kind: MonthlyByDay, DayOfMonth: byMonthDay}
		case interval == 3:
			s = Schedule{Kind: QuarterlyByDay, DayOfMonth: byMonthDay}
		default:
			return Schedule{}, fmt.Errorf("unsupported monthly interval with BYMONTHDAY: %d", interval)
		}

	case "YEARLY":
		if interval != 1 {
			return Schedule{}, fmt.Errorf("unsupported yearly interval: %d", interval)
		}
		if !hasMonth {
			byMonth = 1
		}
		if !hasDay {
			byMonthDay = 1
		}
		s = Schedule{Kind: YearlyByMonthDay, MonthOfYear: byMonth, DayOfMonth: byMonthDay}
	}

	return s.Normalize(), nil
}

// String serializes the schedule to its canonical rule text.
func (s Schedule) String() string {
	s = s.Normalize()
	switch s.Kind {
	case Daily:
		return "FREQ=DAILY"
	case Weekly:
		return "FREQ=WEEKLY"
	case Biweekly:
		return "FREQ=WEEKLY;INTERVAL=2"
	case Monthly:
		return "FREQ=MONTHLY"
	case CustomDays:
		return fmt.Sprintf("FREQ=DAILY;INTERVAL=%d", s.Days)
	case MonthlyByDay:
		return fmt.Sprintf("FREQ=MONTHLY;BYMONTHDAY=%d", s.DayOfMonth)
	case QuarterlyByDay:
		return fmt.Sprintf("FREQ=MONTHLY;INTERVAL=3;BYMONTHDAY=%d", s.DayOfMonth)
	case YearlyByMonthDay:
		return fmt.Sprintf("FREQ=YEARLY;BYMONTH=%d;BYMONTHDAY=%d", s.MonthOfYear, s.DayOfMonth)
	}
	return ""
}

// Describe returns a human-readable description of the schedule.
func (s Schedule) Describe() string {
	s = s.Normalize()
	switch s.Kind {
	case Daily:
		return "Repeats daily"
	case Weekly:
		return "Repeats weekly"
	case Biweekly:
		return "Repeats every 2 weeks"
	case Monthly:
		return "Repeats monthly"
	case CustomDays:
		if s.Days == 1 {
			return "Repeats daily"
		}
		return fmt.Sprintf("Repeats every %d days", s.Days)
	case MonthlyByDay:
		return fmt.Sprintf("Monthly on day %d", s.DayOfMonth)
	case QuarterlyByDay:
		return fmt.Sprintf("Quarterly on day %d", s.DayOfMonth)
	case YearlyByMonthDay:
		return fmt.Sprintf("Yearly on %s %d", time.Month(s.MonthOfYear), s.DayOfMonth)
	}
	return "One time"
}
