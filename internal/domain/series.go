package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SeriesStatus string

const (
	StatusActive    SeriesStatus = "active"
	StatusPaused    SeriesStatus = "paused"
	StatusCompleted SeriesStatus = "completed"
	StatusCancelled SeriesStatus = "cancelled"
)

func (s SeriesStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ReminderKind is what the obligation is about. It maps onto a notification
// category for delivery gating.
type ReminderKind string

const (
	KindStrataFee        ReminderKind = "monthly_strata_fee"
	KindPaymentDue       ReminderKind = "payment_due"
	KindInsuranceRenewal ReminderKind = "insurance_renewal"
	KindMaintenance      ReminderKind = "maintenance"
	KindMeeting          ReminderKind = "meeting"
	KindGeneral          ReminderKind = "general"
	KindEmergency        ReminderKind = "emergency"
)

// Category returns the notification category used by the delivery gate.
func (k ReminderKind) Category() Category {
	switch k {
	case KindStrataFee, KindPaymentDue, KindInsuranceRenewal:
		return CategoryPayment
	case KindMaintenance:
		return CategoryMaintenance
	case KindMeeting:
		return CategoryMeeting
	case KindEmergency:
		return CategoryEmergency
	default:
		return CategoryAnnouncement
	}
}

// ReminderSeries is a scheduled obligation bound to a recurrence rule.
type ReminderSeries struct {
	ID       int64
	StrataID int64
	UnitID   *int64 // nil = whole strata
	GroupID  string // shared by series fanned out from one request
	Title    string
	Message  string
	Kind     ReminderKind
	Rule     RecurrenceRule
	Amount   decimal.NullDecimal
	Status   SeriesStatus

	DueDate          time.Time // date the current occurrence is owed
	NextReminderDate time.Time // DueDate minus LeadDays
	LeadDays         int

	LastSentDate *time.Time
	LastSentFor  *time.Time // due date the last dispatch covered
	SentCount    int
	AutoSend     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReminderDateFor returns when a reminder for the given due date should fire.
func (s *ReminderSeries) ReminderDateFor(due time.Time) time.Time {
	return due.AddDate(0, 0, -s.LeadDays)
}

// DispatchedForCurrent reports whether a reminder already went out for the
// current occurrence. Lead times longer than the gap between occurrences
// are fine: each occurrence is tracked by its own due date.
func (s *ReminderSeries) DispatchedForCurrent() bool {
	if s.LastSentFor == nil {
		return false
	}
	return SameDate(*s.LastSentFor, s.DueDate)
}

func (s *ReminderSeries) StatusEmoji() string {
	switch s.Status {
	case StatusActive:
		return "🔔"
	case StatusPaused:
		return "⏸"
	case StatusCompleted:
		return "✅"
	case StatusCancelled:
		return "🔕"
	default:
		return "⚪"
	}
}

// SameDate compares calendar dates, ignoring clock and location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CalendarDate returns midnight of t's calendar date in loc.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
