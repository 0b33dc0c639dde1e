package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tazhate/strata/internal/domain"
)

// === Reminder series ===

const seriesColumns = `id, strata_id, unit_id, group_id, title, COALESCE(message, ''), kind, amount, status,
	pattern, interval, anchor_date, end_date, weekdays, monthly_mode, day_of_month, week_position,
	weekday, month, due_date, next_reminder_date, lead_days, last_sent_at, last_sent_for, sent_count, auto_send,
	created_at, updated_at`

func scanSeries(row interface{ Scan(...any) error }) (*domain.ReminderSeries, error) {
	s := &domain.ReminderSeries{}
	var (
		unitID                       sql.NullInt64
		amount                       decimal.NullDecimal
		anchor, due, nextReminder    string
		endDate, lastSentFor         sql.NullString
		weekdays, monthlyMode, wkPos string
		dayOfMonth, weekday, month   int
		lastSent                     sql.NullTime
	)
	err := row.Scan(&s.ID, &s.StrataID, &unitID, &s.GroupID, &s.Title, &s.Message, &s.Kind, &amount, &s.Status,
		&s.Rule.Pattern, &s.Rule.Interval, &anchor, &endDate, &weekdays, &monthlyMode, &dayOfMonth, &wkPos,
		&weekday, &month, &due, &nextReminder, &s.LeadDays, &lastSent, &lastSentFor, &s.SentCount, &s.AutoSend,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if unitID.Valid {
		s.UnitID = &unitID.Int64
	}
	s.Amount = amount
	if lastSent.Valid {
		s.LastSentDate = &lastSent.Time
	}
	if lastSentFor.Valid {
		sentFor, err := parseDate(lastSentFor.String)
		if err != nil {
			return nil, err
		}
		s.LastSentFor = &sentFor
	}

	if s.Rule.Anchor, err = parseDate(anchor); err != nil {
		return nil, err
	}
	if endDate.Valid {
		end, err := parseDate(endDate.String)
		if err != nil {
			return nil, err
		}
		s.Rule.End = &end
	}
	if s.Rule.Weekdays, err = domain.ParseWeekdaySet(weekdays); err != nil {
		return nil, fmt.Errorf("series %d: %w", s.ID, err)
	}
	if monthlyMode != "" {
		s.Rule.Monthly = &domain.MonthlySpec{
			Mode:       domain.MonthlyMode(monthlyMode),
			DayOfMonth: dayOfMonth,
			Position:   domain.WeekPosition(wkPos),
			Weekday:    time.Weekday(weekday),
		}
	}
	s.Rule.Month = time.Month(month)

	if s.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	if s.NextReminderDate, err = parseDate(nextReminder); err != nil {
		return nil, err
	}
	return s, nil
}

// ruleArgs flattens the rule into its columns, in seriesColumns order.
func ruleArgs(r domain.RecurrenceRule) []any {
	var (
		monthlyMode, wkPos  string
		dayOfMonth, weekday int
	)
	if r.Monthly != nil {
		monthlyMode = string(r.Monthly.Mode)
		dayOfMonth = r.Monthly.DayOfMonth
		wkPos = string(r.Monthly.Position)
		weekday = int(r.Monthly.Weekday)
	}
	return []any{
		r.Pattern, r.Step(), formatDate(r.Anchor), formatDatePtr(r.End), r.Weekdays.String(),
		monthlyMode, dayOfMonth, wkPos, weekday, int(r.Month),
	}
}

const insertSeries = `INSERT INTO reminder_series (strata_id, unit_id, group_id, title, message, kind, amount,
	status, pattern, interval, anchor_date, end_date, weekdays, monthly_mode, day_of_month,
	week_position, weekday, month, due_date, next_reminder_date, lead_days, sent_count, auto_send)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func seriesInsertArgs(s *domain.ReminderSeries) []any {
	args := []any{s.StrataID, s.UnitID, s.GroupID, s.Title, s.Message, s.Kind, s.Amount, s.Status}
	args = append(args, ruleArgs(s.Rule)...)
	return append(args, formatDate(s.DueDate), formatDate(s.NextReminderDate), s.LeadDays, s.SentCount, s.AutoSend)
}

func (s *Storage) CreateSeries(rs *domain.ReminderSeries) error {
	return s.CreateSeriesBatch([]*domain.ReminderSeries{rs})
}

// CreateSeriesBatch stores a fanned out group atomically.
func (s *Storage) CreateSeriesBatch(series []*domain.ReminderSeries) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, rs := range series {
		res, err := tx.Exec(insertSeries, seriesInsertArgs(rs)...)
		if err != nil {
			return fmt.Errorf("insert series %q: %w", rs.Title, err)
		}
		id, _ := res.LastInsertId()
		rs.ID = id
		rs.CreatedAt = now
		rs.UpdatedAt = now
	}
	return tx.Commit()
}

func (s *Storage) GetSeries(id int64) (*domain.ReminderSeries, error) {
	rs, err := scanSeries(s.db.QueryRow(`SELECT `+seriesColumns+` FROM reminder_series WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rs, err
}

// ListSeriesByStrata returns series ordered by due date. Terminal series are
// included only when includeFinished is set.
func (s *Storage) ListSeriesByStrata(strataID int64, includeFinished bool) ([]*domain.ReminderSeries, error) {
	query := `SELECT ` + seriesColumns + ` FROM reminder_series WHERE strata_id = ?`
	if !includeFinished {
		query += ` AND status IN ('active', 'paused')`
	}
	query += ` ORDER BY due_date, id`
	return s.listSeries(query, strataID)
}

// ListSeriesByGroup returns the series created by one fan-out.
func (s *Storage) ListSeriesByGroup(groupID string) ([]*domain.ReminderSeries, error) {
	return s.listSeries(`SELECT `+seriesColumns+` FROM reminder_series WHERE group_id = ? ORDER BY id`, groupID)
}

// ListDueSeries returns active auto-send series whose reminder date is on or
// before the given date.
func (s *Storage) ListDueSeries(date time.Time) ([]*domain.ReminderSeries, error) {
	return s.listSeries(
		`SELECT `+seriesColumns+` FROM reminder_series
		 WHERE status = 'active' AND auto_send = 1 AND next_reminder_date <= ?
		 ORDER BY next_reminder_date, id`,
		formatDate(date),
	)
}

// ListActiveSeries returns every active series, optionally limited to one strata (strataID > 0).
func (s *Storage) ListActiveSeries(strataID int64) ([]*domain.ReminderSeries, error) {
	if strataID > 0 {
		return s.listSeries(
			`SELECT `+seriesColumns+` FROM reminder_series WHERE status = 'active' AND strata_id = ? ORDER BY due_date, id`,
			strataID,
		)
	}
	return s.listSeries(`SELECT ` + seriesColumns + ` FROM reminder_series WHERE status = 'active' ORDER BY strata_id, due_date, id`)
}

func (s *Storage) listSeries(query string, args ...any) ([]*domain.ReminderSeries, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.ReminderSeries
	for rows.Next() {
		rs, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rs)
	}
	return list, rows.Err()
}

// UpdateSeries persists the mutable lifecycle fields.
func (s *Storage) UpdateSeries(rs *domain.ReminderSeries) error {
	rs.UpdatedAt = time.Now()
	var lastSent any
	if rs.LastSentDate != nil {
		lastSent = *rs.LastSentDate
	}
	_, err := s.db.Exec(
		`UPDATE reminder_series SET status = ?, due_date = ?, next_reminder_date = ?, last_sent_at = ?,
			last_sent_for = ?, sent_count = ?, updated_at = ?
		 WHERE id = ?`,
		rs.Status, formatDate(rs.DueDate), formatDate(rs.NextReminderDate), lastSent,
		formatDatePtr(rs.LastSentFor), rs.SentCount, rs.UpdatedAt, rs.ID,
	)
	return err
}
