package domain

import (
	"fmt"
	"strings"
	"time"
)

type Pattern string

const (
	PatternNone    Pattern = "none"
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
	PatternYearly  Pattern = "yearly"
)

type MonthlyMode string

const (
	MonthlyFixedDay   MonthlyMode = "fixed_day"   // the 15th
	MonthlyNthWeekday MonthlyMode = "nth_weekday" // the second Friday
	MonthlyLastDay    MonthlyMode = "last_day"
)

type WeekPosition string

const (
	PositionFirst  WeekPosition = "first"
	PositionSecond WeekPosition = "second"
	PositionThird  WeekPosition = "third"
	PositionFourth WeekPosition = "fourth"
	PositionLast   WeekPosition = "last"
)

// Ordinal returns 1-4 for first..fourth, -1 for last and 0 for unknown values.
func (p WeekPosition) Ordinal() int {
	switch p {
	case PositionFirst:
		return 1
	case PositionSecond:
		return 2
	case PositionThird:
		return 3
	case PositionFourth:
		return 4
	case PositionLast:
		return -1
	default:
		return 0
	}
}

// MonthlySpec picks the day inside a month for monthly and yearly rules.
type MonthlySpec struct {
	Mode       MonthlyMode  `json:"mode"`
	DayOfMonth int          `json:"day_of_month,omitempty"` // fixed_day only, 1-31
	Position   WeekPosition `json:"position,omitempty"`     // nth_weekday only
	Weekday    time.Weekday `json:"weekday,omitempty"`      // nth_weekday only
}

// RecurrenceRule describes how an obligation repeats. Only the fields
// relevant to Pattern may be populated.
type RecurrenceRule struct {
	Pattern  Pattern      `json:"pattern"`
	Interval int          `json:"interval,omitempty"` // 0 means 1
	Anchor   time.Time    `json:"anchor"`
	End      *time.Time   `json:"end,omitempty"` // no occurrences after this date
	Weekdays WeekdaySet   `json:"weekdays,omitempty"`
	Monthly  *MonthlySpec `json:"monthly,omitempty"`
	Month    time.Month   `json:"month,omitempty"` // yearly only
}

// MaxInterval caps Interval so date arithmetic stays within a few
// thousand pattern units.
const MaxInterval = 1000

// Step returns the interval with the default applied.
func (r RecurrenceRule) Step() int {
	if r.Interval == 0 {
		return 1
	}
	return r.Interval
}

// Validate checks that the populated fields match the pattern.
func (r RecurrenceRule) Validate() error {
	invalid := func(field, reason string) error {
		return &InvalidRuleError{Pattern: r.Pattern, Field: field, Reason: reason}
	}

	if r.Interval < 0 {
		return invalid("interval", "must be positive")
	}
	if r.Interval > MaxInterval {
		return invalid("interval", fmt.Sprintf("must be at most %d", MaxInterval))
	}
	if r.Anchor.IsZero() {
		return invalid("anchor", "is required")
	}
	if !r.Weekdays.Valid() {
		return invalid("weekdays", "contains unknown days")
	}

	switch r.Pattern {
	case PatternNone, PatternDaily:
		if !r.Weekdays.IsEmpty() {
			return invalid("weekdays", "must be empty")
		}
		if r.Monthly != nil {
			return invalid("monthly", "must be empty")
		}
		if r.Month != 0 {
			return invalid("month", "must be empty")
		}

	case PatternWeekly:
		if r.Weekdays.IsEmpty() {
			return invalid("weekdays", "must not be empty")
		}
		if r.Monthly != nil {
			return invalid("monthly", "must be empty")
		}
		if r.Month != 0 {
			return invalid("month", "must be empty")
		}

	case PatternMonthly:
		if !r.Weekdays.IsEmpty() {
			return invalid("weekdays", "must be empty")
		}
		if r.Month != 0 {
			return invalid("month", "must be empty")
		}
		if err := r.validateMonthly(); err != nil {
			return err
		}

	case PatternYearly:
		if !r.Weekdays.IsEmpty() {
			return invalid("weekdays", "must be empty")
		}
		if r.Month < time.January || r.Month > time.December {
			return invalid("month", "must be 1-12")
		}
		if err := r.validateMonthly(); err != nil {
			return err
		}

	default:
		return invalid("pattern", fmt.Sprintf("%q is unknown", string(r.Pattern)))
	}
	return nil
}

func (r RecurrenceRule) validateMonthly() error {
	invalid := func(field, reason string) error {
		return &InvalidRuleError{Pattern: r.Pattern, Field: field, Reason: reason}
	}

	m := r.Monthly
	if m == nil {
		return invalid("monthly", "is required")
	}

	switch m.Mode {
	case MonthlyFixedDay:
		if m.DayOfMonth < 1 || m.DayOfMonth > 31 {
			return invalid("monthly.day_of_month", "must be 1-31")
		}
		if m.Position != "" {
			return invalid("monthly.position", "must be empty")
		}
		if m.Weekday != 0 {
			return invalid("monthly.weekday", "must be empty")
		}
	case MonthlyNthWeekday:
		if m.Position.Ordinal() == 0 {
			return invalid("monthly.position", fmt.Sprintf("%q is unknown", string(m.Position)))
		}
		if m.Weekday < time.Sunday || m.Weekday > time.Saturday {
			return invalid("monthly.weekday", "must be 0-6")
		}
		if m.DayOfMonth != 0 {
			return invalid("monthly.day_of_month", "must be empty")
		}
	case MonthlyLastDay:
		if m.DayOfMonth != 0 {
			return invalid("monthly.day_of_month", "must be empty")
		}
		if m.Position != "" {
			return invalid("monthly.position", "must be empty")
		}
		if m.Weekday != 0 {
			return invalid("monthly.weekday", "must be empty")
		}
	default:
		return invalid("monthly.mode", fmt.Sprintf("%q is unknown", string(m.Mode)))
	}
	return nil
}

// Describe returns a short human readable form, e.g. "every 2 weeks on Tue, Thu".
func (r RecurrenceRule) Describe() string {
	every := func(unit string) string {
		if r.Step() == 1 {
			return "every " + unit
		}
		return fmt.Sprintf("every %d %ss", r.Step(), unit)
	}

	var sb strings.Builder
	switch r.Pattern {
	case PatternNone:
		sb.WriteString("once on " + r.Anchor.Format("2006-01-02"))
	case PatternDaily:
		sb.WriteString(every("day"))
	case PatternWeekly:
		var names []string
		for _, d := range r.Weekdays.Days() {
			names = append(names, WeekdayNameShort(d))
		}
		sb.WriteString(every("week") + " on " + strings.Join(names, ", "))
	case PatternMonthly:
		sb.WriteString(every("month") + " " + r.Monthly.describe())
	case PatternYearly:
		sb.WriteString(every("year") + " in " + r.Month.String() + " " + r.Monthly.describe())
	default:
		sb.WriteString(string(r.Pattern))
	}
	if r.End != nil {
		sb.WriteString(" until " + r.End.Format("2006-01-02"))
	}
	return sb.String()
}

func (m *MonthlySpec) describe() string {
	if m == nil {
		return ""
	}
	switch m.Mode {
	case MonthlyFixedDay:
		return fmt.Sprintf("on day %d", m.DayOfMonth)
	case MonthlyNthWeekday:
		return fmt.Sprintf("on the %s %s", m.Position, m.Weekday)
	case MonthlyLastDay:
		return "on the last day"
	default:
		return ""
	}
}
