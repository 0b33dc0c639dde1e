package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeekdaySet is a set of weekdays stored as a bitmask (bit 0 = Sunday).
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

// NewWeekdaySet builds a set from the given days
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

func (s WeekdaySet) Add(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) IsEmpty() bool {
	return s&allWeekdays == 0
}

// Valid reports whether only bits for real weekdays are set.
func (s WeekdaySet) Valid() bool {
	return s&^allWeekdays == 0
}

// Days returns the days in the set, Sunday first.
func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// String returns the storage form, e.g. "2,4" for Tue and Thu.
func (s WeekdaySet) String() string {
	var parts []string
	for _, d := range s.Days() {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

// ParseWeekdaySet parses the storage form produced by String.
func ParseWeekdaySet(raw string) (WeekdaySet, error) {
	var s WeekdaySet
	if strings.TrimSpace(raw) == "" {
		return s, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if d, ok := ParseWeekday(part); ok {
			s = s.Add(d)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return 0, fmt.Errorf("unknown weekday: %q", part)
		}
		s = s.Add(time.Weekday(n))
	}
	return s, nil
}

func (s WeekdaySet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *WeekdaySet) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekdaySet(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// WeekdayNameShort returns a three letter name for the weekday
func WeekdayNameShort(d time.Weekday) string {
	names := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	if d >= 0 && int(d) < len(names) {
		return names[d]
	}
	return ""
}

// ParseWeekday parses English weekday names ("tue", "Tuesday").
func ParseWeekday(s string) (time.Weekday, bool) {
	mapping := map[string]time.Weekday{
		"sun": time.Sunday, "sunday": time.Sunday,
		"mon": time.Monday, "monday": time.Monday,
		"tue": time.Tuesday, "tuesday": time.Tuesday,
		"wed": time.Wednesday, "wednesday": time.Wednesday,
		"thu": time.Thursday, "thursday": time.Thursday,
		"fri": time.Friday, "friday": time.Friday,
		"sat": time.Saturday, "saturday": time.Saturday,
	}

	if d, ok := mapping[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, true
	}
	return time.Sunday, false
}
