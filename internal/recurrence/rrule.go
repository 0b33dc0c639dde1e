package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tazhate/strata/internal/domain"
)

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ToRRule builds the RFC 5545 equivalent of rule, anchored at midnight UTC
// of the anchor date. Used for calendar export.
func ToRRule(rule domain.RecurrenceRule) (*rrule.RRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	opt := rrule.ROption{
		Dtstart:  utcDate(rule.Anchor),
		Interval: rule.Step(),
		Wkst:     rrule.SU,
	}
	if rule.End != nil {
		opt.Until = utcDate(*rule.End)
	}

	switch rule.Pattern {
	case domain.PatternNone:
		opt.Freq = rrule.DAILY
		opt.Count = 1
	case domain.PatternDaily:
		opt.Freq = rrule.DAILY
	case domain.PatternWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.Weekdays.Days() {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	case domain.PatternMonthly:
		opt.Freq = rrule.MONTHLY
		applyMonthly(&opt, *rule.Monthly)
	case domain.PatternYearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(rule.Month)}
		applyMonthly(&opt, *rule.Monthly)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}
	return r, nil
}

// RRuleString returns the RRULE property value for rule, without DTSTART.
func RRuleString(rule domain.RecurrenceRule) (string, error) {
	r, err := ToRRule(rule)
	if err != nil {
		return "", err
	}
	return r.OrigOptions.RRuleString(), nil
}

func applyMonthly(opt *rrule.ROption, spec domain.MonthlySpec) {
	switch spec.Mode {
	case domain.MonthlyFixedDay:
		if spec.DayOfMonth <= 28 {
			opt.Bymonthday = []int{spec.DayOfMonth}
			return
		}
		// clamp: take the latest existing day between the 28th and the wanted day
		for d := 28; d <= spec.DayOfMonth; d++ {
			opt.Bymonthday = append(opt.Bymonthday, d)
		}
		opt.Bysetpos = []int{-1}
	case domain.MonthlyNthWeekday:
		wd := rruleWeekdays[spec.Weekday]
		opt.Byweekday = []rrule.Weekday{wd.Nth(spec.Position.Ordinal())}
	case domain.MonthlyLastDay:
		opt.Bymonthday = []int{-1}
	}
}

func utcDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
