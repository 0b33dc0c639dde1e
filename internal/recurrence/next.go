// Package recurrence turns recurrence rules into concrete due dates and
// drives the reminder series lifecycle. Everything here is a pure function of
// its arguments: no clock reads, no I/O.
package recurrence

import (
	"time"

	"github.com/tazhate/strata/internal/domain"
)

// maxSteps bounds the forward search in pattern units (weeks, months, years).
// A rule that passes Validate always resolves within one aligned step, so
// UnsatisfiableRuleError only guards against rules built around Validate.
const maxSteps = 5

// Next returns the first occurrence of rule strictly after from.
// ok is false when the series has ended (End passed or a one-off already happened).
// Dates are calendar dates at midnight in from's location.
func Next(rule domain.RecurrenceRule, from time.Time) (next time.Time, ok bool, err error) {
	if err := rule.Validate(); err != nil {
		return time.Time{}, false, err
	}

	loc := from.Location()
	from = domain.CalendarDate(from, loc)
	anchor := domain.CalendarDate(rule.Anchor, loc)

	var candidate time.Time
	switch rule.Pattern {
	case domain.PatternNone:
		if !anchor.After(from) {
			return time.Time{}, false, nil
		}
		candidate = anchor
	case domain.PatternDaily:
		candidate = from.AddDate(0, 0, rule.Step())
		if from.Before(anchor) {
			candidate = anchor
		}
	case domain.PatternWeekly:
		candidate, err = nextWeekly(rule, anchor, from)
	case domain.PatternMonthly:
		candidate, err = nextMonthly(rule, anchor, from)
	case domain.PatternYearly:
		candidate, err = nextYearly(rule, anchor, from)
	}
	if err != nil {
		return time.Time{}, false, err
	}

	if rule.End != nil && candidate.After(domain.CalendarDate(*rule.End, loc)) {
		return time.Time{}, false, nil
	}
	return candidate, true, nil
}

// Occurrences lists up to limit successive occurrences after from.
func Occurrences(rule domain.RecurrenceRule, from time.Time, limit int) ([]time.Time, error) {
	var dates []time.Time
	for len(dates) < limit {
		next, ok, err := Next(rule, from)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		dates = append(dates, next)
		from = next
	}
	return dates, nil
}

// nextWeekly scans day by day. Weeks start on Sunday and only weeks that are a
// multiple of the interval away from the anchor's week are included.
func nextWeekly(rule domain.RecurrenceRule, anchor, from time.Time) (time.Time, error) {
	step := rule.Step()
	anchorWeek := weekStart(anchor)

	day := from.AddDate(0, 0, 1)
	if day.Before(anchor) {
		day = anchor
	}

	for weeks := 0; weeks <= maxSteps*step; {
		start := weekStart(day)
		if (daysBetween(anchorWeek, start)/7)%step != 0 {
			// skipped week: jump to the next Sunday
			day = start.AddDate(0, 0, 7)
			weeks++
			continue
		}
		if rule.Weekdays.Has(day.Weekday()) {
			return day, nil
		}
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == time.Sunday {
			weeks++
		}
	}
	return time.Time{}, &domain.UnsatisfiableRuleError{Pattern: rule.Pattern, From: from, Steps: maxSteps}
}

func nextMonthly(rule domain.RecurrenceRule, anchor, from time.Time) (time.Time, error) {
	step := rule.Step()
	offset := alignUp(monthsBetween(anchor, from), step)

	for i := 0; i < maxSteps; i++ {
		year, month := addMonths(anchor.Year(), anchor.Month(), offset)
		candidate := dayInMonth(year, month, *rule.Monthly, from.Location())
		if candidate.After(from) && !candidate.Before(anchor) {
			return candidate, nil
		}
		offset += step
	}
	return time.Time{}, &domain.UnsatisfiableRuleError{Pattern: rule.Pattern, From: from, Steps: maxSteps}
}

func nextYearly(rule domain.RecurrenceRule, anchor, from time.Time) (time.Time, error) {
	step := rule.Step()
	offset := alignUp(from.Year()-anchor.Year(), step)

	for i := 0; i < maxSteps; i++ {
		candidate := dayInMonth(anchor.Year()+offset, rule.Month, *rule.Monthly, from.Location())
		if candidate.After(from) && !candidate.Before(anchor) {
			return candidate, nil
		}
		offset += step
	}
	return time.Time{}, &domain.UnsatisfiableRuleError{Pattern: rule.Pattern, From: from, Steps: maxSteps}
}

// dayInMonth resolves the monthly sub-mode to a date inside year/month.
func dayInMonth(year int, month time.Month, spec domain.MonthlySpec, loc *time.Location) time.Time {
	last := DaysIn(year, month)

	var day int
	switch spec.Mode {
	case domain.MonthlyFixedDay:
		day = min(spec.DayOfMonth, last)
	case domain.MonthlyLastDay:
		day = last
	case domain.MonthlyNthWeekday:
		if n := spec.Position.Ordinal(); n > 0 {
			first := time.Date(year, month, 1, 0, 0, 0, 0, loc).Weekday()
			day = 1 + (int(spec.Weekday)-int(first)+7)%7 + 7*(n-1)
		} else {
			lastWeekday := time.Date(year, month, last, 0, 0, 0, 0, loc).Weekday()
			day = last - (int(lastWeekday)-int(spec.Weekday)+7)%7
		}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	total := year*12 + int(month) - 1 + n
	return total / 12, time.Month(total%12 + 1)
}

// alignUp returns the smallest multiple of step that is >= max(n, 0).
func alignUp(n, step int) int {
	if n < 0 {
		return 0
	}
	if rem := n % step; rem != 0 {
		n += step - rem
	}
	return n
}
