package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/recurrence"
	"github.com/tazhate/strata/internal/storage"
)

type ReminderService struct {
	storage  *storage.Storage
	timezone *time.Location
}

func NewReminderService(s *storage.Storage, tz *time.Location) *ReminderService {
	if tz == nil {
		tz = time.UTC
	}
	return &ReminderService{
		storage:  s,
		timezone: tz,
	}
}

type CreateSeriesInput struct {
	StrataID int64               `validate:"required,gt=0"`
	UnitID   *int64              `validate:"omitempty,gt=0"`
	Title    string              `validate:"required,max=200"`
	Message  string              `validate:"max=2000"`
	Kind     domain.ReminderKind `validate:"required,oneof=monthly_strata_fee payment_due insurance_renewal maintenance meeting general emergency"`
	Rule     domain.RecurrenceRule
	Amount   string `validate:"omitempty,numeric"`
	LeadDays int    `validate:"gte=0,lte=90"`
	AutoSend bool
}

// Create stores the series described by input. A strata fee without a unit
// becomes one series per unit, all sharing a GroupID.
func (s *ReminderService) Create(input CreateSeriesInput) ([]*domain.ReminderSeries, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := validateInput("series", input); err != nil {
		return nil, err
	}

	strata, err := s.storage.GetStrata(input.StrataID)
	if err != nil {
		return nil, fmt.Errorf("get strata: %w", err)
	}
	if strata == nil {
		return nil, fmt.Errorf("strata %d: %w", input.StrataID, domain.ErrNotFound)
	}

	template := domain.ReminderSeries{
		StrataID: input.StrataID,
		UnitID:   input.UnitID,
		GroupID:  uuid.NewString(),
		Title:    input.Title,
		Message:  strings.TrimSpace(input.Message),
		Kind:     input.Kind,
		Rule:     input.Rule,
		LeadDays: input.LeadDays,
		AutoSend: input.AutoSend,
	}
	if input.Amount != "" {
		amount, err := decimal.NewFromString(input.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		template.Amount = decimal.NewNullDecimal(amount)
	}

	var unitIDs []int64
	if recurrence.NeedsFanOut(template) {
		units, err := s.storage.ListUnitsByStrata(input.StrataID)
		if err != nil {
			return nil, fmt.Errorf("list units: %w", err)
		}
		if len(units) == 0 {
			return nil, fmt.Errorf("strata %d has no units to bill", input.StrataID)
		}
		for _, u := range units {
			unitIDs = append(unitIDs, u.ID)
		}
	}

	expanded, err := recurrence.FanOut(template, unitIDs)
	if err != nil {
		return nil, err
	}

	series := make([]*domain.ReminderSeries, len(expanded))
	for i := range expanded {
		series[i] = &expanded[i]
	}
	if err := s.storage.CreateSeriesBatch(series); err != nil {
		return nil, fmt.Errorf("create series: %w", err)
	}
	return series, nil
}

func (s *ReminderService) Get(id int64) (*domain.ReminderSeries, error) {
	rs, err := s.storage.GetSeries(id)
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	if rs == nil {
		return nil, fmt.Errorf("series %d: %w", id, domain.ErrNotFound)
	}
	return rs, nil
}

func (s *ReminderService) List(strataID int64, includeFinished bool) ([]*domain.ReminderSeries, error) {
	return s.storage.ListSeriesByStrata(strataID, includeFinished)
}

func (s *ReminderService) Pause(id int64) (*domain.ReminderSeries, error) {
	return s.transition(id, recurrence.Pause)
}

func (s *ReminderService) Resume(id int64) (*domain.ReminderSeries, error) {
	return s.transition(id, recurrence.Resume)
}

func (s *ReminderService) Cancel(id int64) (*domain.ReminderSeries, error) {
	return s.transition(id, recurrence.Cancel)
}

func (s *ReminderService) transition(id int64, apply func(*domain.ReminderSeries) error) (*domain.ReminderSeries, error) {
	rs, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := apply(rs); err != nil {
		return nil, err
	}
	if err := s.storage.UpdateSeries(rs); err != nil {
		return nil, fmt.Errorf("update series: %w", err)
	}
	return rs, nil
}

// Acknowledge is the owner confirming the current occurrence was handled. It
// advances the series when its due date has been reached.
func (s *ReminderService) Acknowledge(id int64, now time.Time) (*domain.ReminderSeries, bool, error) {
	rs, err := s.Get(id)
	if err != nil {
		return nil, false, err
	}
	changed, err := recurrence.Advance(rs, now.In(s.timezone))
	if err != nil {
		return nil, false, err
	}
	if changed {
		if err := s.storage.UpdateSeries(rs); err != nil {
			return nil, false, fmt.Errorf("update series: %w", err)
		}
	}
	return rs, changed, nil
}

// Pending returns active auto-send series whose reminder date has been
// reached, including ones already dispatched for the current occurrence that
// still wait for their due date.
func (s *ReminderService) Pending(now time.Time) ([]*domain.ReminderSeries, error) {
	series, err := s.storage.ListDueSeries(now.In(s.timezone))
	if err != nil {
		return nil, fmt.Errorf("list due series: %w", err)
	}
	return series, nil
}

// DueForDispatch returns pending series whose reminder has not gone out yet.
func (s *ReminderService) DueForDispatch(now time.Time) ([]*domain.ReminderSeries, error) {
	now = now.In(s.timezone)
	candidates, err := s.Pending(now)
	if err != nil {
		return nil, err
	}

	var due []*domain.ReminderSeries
	for _, rs := range candidates {
		if recurrence.IsReminderDue(rs, now) {
			due = append(due, rs)
		}
	}
	return due, nil
}

func (s *ReminderService) Save(rs *domain.ReminderSeries) error {
	if err := s.storage.UpdateSeries(rs); err != nil {
		return fmt.Errorf("update series %d: %w", rs.ID, err)
	}
	return nil
}

// Overdue returns active series past their due date. strataID 0 means all.
func (s *ReminderService) Overdue(strataID int64, now time.Time) ([]*domain.ReminderSeries, error) {
	now = now.In(s.timezone)
	active, err := s.storage.ListActiveSeries(strataID)
	if err != nil {
		return nil, fmt.Errorf("list active series: %w", err)
	}

	var overdue []*domain.ReminderSeries
	for _, rs := range active {
		if recurrence.IsOverdue(rs, now) {
			overdue = append(overdue, rs)
		}
	}
	return overdue, nil
}

// Preview lists the current due date followed by the next n-1 occurrences.
func (s *ReminderService) Preview(id int64, n int) ([]time.Time, error) {
	rs, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if n <= 0 || rs.Status.IsTerminal() {
		return nil, nil
	}
	rest, err := recurrence.Occurrences(rs.Rule, rs.DueDate, n-1)
	if err != nil {
		return nil, err
	}
	return append([]time.Time{rs.DueDate}, rest...), nil
}

func (s *ReminderService) FormatSeries(rs *domain.ReminderSeries) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s #%d %s", rs.StatusEmoji(), rs.ID, html.EscapeString(rs.Title)))
	if rs.Amount.Valid {
		sb.WriteString(" $" + rs.Amount.Decimal.StringFixed(2))
	}
	if rs.Status.IsTerminal() {
		sb.WriteString(fmt.Sprintf(" (%s)", rs.Status))
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("\n   due %s, %s", rs.DueDate.Format("Mon 02 Jan 2006"), rs.Rule.Describe()))
	return sb.String()
}

func (s *ReminderService) FormatSeriesList(series []*domain.ReminderSeries) string {
	if len(series) == 0 {
		return "No reminders"
	}

	var sb strings.Builder
	for _, rs := range series {
		sb.WriteString(s.FormatSeries(rs))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatReminder builds the message body sent to recipients.
func (s *ReminderService) FormatReminder(rs *domain.ReminderSeries) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔔 <b>%s</b>\n", html.EscapeString(rs.Title)))
	sb.WriteString(fmt.Sprintf("Due: %s\n", rs.DueDate.Format("Mon 02 Jan 2006")))
	if rs.Amount.Valid {
		sb.WriteString(fmt.Sprintf("Amount: $%s\n", rs.Amount.Decimal.StringFixed(2)))
	}
	if rs.Message != "" {
		sb.WriteString("\n" + html.EscapeString(rs.Message))
	}
	return strings.TrimRight(sb.String(), "\n")
}
