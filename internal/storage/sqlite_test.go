package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tazhate/strata/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "strata.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedStrata(t *testing.T, s *Storage) (*domain.Strata, *domain.Unit, *domain.User) {
	t.Helper()
	st := &domain.Strata{Name: "Harbour View"}
	if err := s.CreateStrata(st); err != nil {
		t.Fatalf("create strata: %v", err)
	}
	unit := &domain.Unit{StrataID: st.ID, Label: "4B"}
	if err := s.CreateUnit(unit); err != nil {
		t.Fatalf("create unit: %v", err)
	}
	user := &domain.User{StrataID: st.ID, UnitID: &unit.ID, TelegramID: 1001, Name: "Dana", Role: domain.RoleOwner}
	if err := s.CreateUser(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return st, unit, user
}

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return d
}

func TestSeriesRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	st, unit, _ := seedStrata(t, s)

	end := day(t, "2025-12-31")
	rs := &domain.ReminderSeries{
		StrataID: st.ID,
		UnitID:   &unit.ID,
		GroupID:  "grp-1",
		Title:    "Strata fee",
		Kind:     domain.KindStrataFee,
		Amount:   decimal.NewNullDecimal(decimal.RequireFromString("412.50")),
		Status:   domain.StatusActive,
		Rule: domain.RecurrenceRule{
			Pattern:  domain.PatternMonthly,
			Interval: 1,
			Anchor:   day(t, "2024-01-31"),
			End:      &end,
			Monthly:  &domain.MonthlySpec{Mode: domain.MonthlyNthWeekday, Position: domain.PositionLast, Weekday: time.Friday},
		},
		DueDate:          day(t, "2024-01-26"),
		NextReminderDate: day(t, "2024-01-23"),
		LeadDays:         3,
		AutoSend:         true,
	}
	if err := s.CreateSeries(rs); err != nil {
		t.Fatalf("create series: %v", err)
	}

	got, err := s.GetSeries(rs.ID)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if got == nil {
		t.Fatalf("expected series %d to exist", rs.ID)
	}
	if got.UnitID == nil || *got.UnitID != unit.ID {
		t.Fatalf("expected unit %d, got %v", unit.ID, got.UnitID)
	}
	if !got.Amount.Valid || got.Amount.Decimal.StringFixed(2) != "412.50" {
		t.Fatalf("expected amount 412.50, got %+v", got.Amount)
	}
	if got.Rule.Monthly == nil || got.Rule.Monthly.Position != domain.PositionLast || got.Rule.Monthly.Weekday != time.Friday {
		t.Fatalf("expected last friday rule, got %+v", got.Rule.Monthly)
	}
	if got.Rule.End == nil || got.Rule.End.Format("2006-01-02") != "2025-12-31" {
		t.Fatalf("expected end date 2025-12-31, got %v", got.Rule.End)
	}
	if got.DueDate.Format("2006-01-02") != "2024-01-26" || got.NextReminderDate.Format("2006-01-02") != "2024-01-23" {
		t.Fatalf("unexpected dates: due=%s reminder=%s", got.DueDate, got.NextReminderDate)
	}
	if err := got.Rule.Validate(); err != nil {
		t.Fatalf("expected stored rule to stay valid: %v", err)
	}

	missing, err := s.GetSeries(9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for a missing series, got %v, %v", missing, err)
	}
}

func TestWeeklySeriesKeepsWeekdays(t *testing.T) {
	s := newTestStorage(t)
	st, _, _ := seedStrata(t, s)

	rs := &domain.ReminderSeries{
		StrataID: st.ID,
		Title:    "Bins",
		Kind:     domain.KindMaintenance,
		Status:   domain.StatusActive,
		Rule: domain.RecurrenceRule{
			Pattern:  domain.PatternWeekly,
			Anchor:   day(t, "2024-01-01"),
			Weekdays: domain.NewWeekdaySet(time.Tuesday, time.Thursday),
		},
		DueDate:          day(t, "2024-01-02"),
		NextReminderDate: day(t, "2024-01-02"),
	}
	if err := s.CreateSeries(rs); err != nil {
		t.Fatalf("create series: %v", err)
	}

	got, err := s.GetSeries(rs.ID)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if got.Rule.Weekdays != rs.Rule.Weekdays {
		t.Fatalf("expected weekdays %s, got %s", rs.Rule.Weekdays, got.Rule.Weekdays)
	}
	if got.Rule.Monthly != nil || got.UnitID != nil || got.Amount.Valid {
		t.Fatalf("expected empty optional fields, got %+v", got)
	}
}

func TestListDueSeriesAndUpdate(t *testing.T) {
	s := newTestStorage(t)
	st, _, _ := seedStrata(t, s)

	rule := domain.RecurrenceRule{Pattern: domain.PatternDaily, Anchor: day(t, "2024-01-01")}
	batch := []*domain.ReminderSeries{
		{StrataID: st.ID, Title: "due", Kind: domain.KindGeneral, Status: domain.StatusActive, Rule: rule,
			DueDate: day(t, "2024-01-05"), NextReminderDate: day(t, "2024-01-05"), AutoSend: true},
		{StrataID: st.ID, Title: "later", Kind: domain.KindGeneral, Status: domain.StatusActive, Rule: rule,
			DueDate: day(t, "2024-02-01"), NextReminderDate: day(t, "2024-02-01"), AutoSend: true},
		{StrataID: st.ID, Title: "manual", Kind: domain.KindGeneral, Status: domain.StatusActive, Rule: rule,
			DueDate: day(t, "2024-01-01"), NextReminderDate: day(t, "2024-01-01"), AutoSend: false},
		{StrataID: st.ID, Title: "paused", Kind: domain.KindGeneral, Status: domain.StatusPaused, Rule: rule,
			DueDate: day(t, "2024-01-01"), NextReminderDate: day(t, "2024-01-01"), AutoSend: true},
	}
	if err := s.CreateSeriesBatch(batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	due, err := s.ListDueSeries(day(t, "2024-01-10"))
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].Title != "due" {
		t.Fatalf("expected only the due auto-send series, got %d", len(due))
	}

	sent := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	sentFor := day(t, "2024-01-10")
	due[0].LastSentDate = &sent
	due[0].LastSentFor = &sentFor
	due[0].SentCount = 1
	due[0].DueDate = day(t, "2024-01-11")
	due[0].NextReminderDate = day(t, "2024-01-11")
	if err := s.UpdateSeries(due[0]); err != nil {
		t.Fatalf("update series: %v", err)
	}

	got, err := s.GetSeries(due[0].ID)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if got.SentCount != 1 || got.LastSentDate == nil || !got.LastSentDate.Equal(sent) {
		t.Fatalf("expected dispatch audit to persist, got count=%d last=%v", got.SentCount, got.LastSentDate)
	}
	if got.LastSentFor == nil || got.LastSentFor.Format("2006-01-02") != "2024-01-10" {
		t.Fatalf("expected dispatched occurrence 2024-01-10, got %v", got.LastSentFor)
	}
	if got.DueDate.Format("2006-01-02") != "2024-01-11" {
		t.Fatalf("expected due date 2024-01-11, got %s", got.DueDate.Format("2006-01-02"))
	}

	active, err := s.ListSeriesByStrata(st.ID, false)
	if err != nil {
		t.Fatalf("list by strata: %v", err)
	}
	if len(active) != 4 {
		t.Fatalf("expected 4 unfinished series, got %d", len(active))
	}
}

func TestPreferenceRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	_, _, user := seedStrata(t, s)

	got, err := s.GetPreference(user.ID)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil before saving, got %v, %v", got, err)
	}

	pref := domain.DefaultPreference(user.ID)
	pref.SetCategory(domain.CategoryMaintenance, false)
	pref.SetCategory(domain.CategoryPayment, true)
	pref.QuietHoursEnabled = true
	pref.QuietHoursStart = "21:30"
	pref.QuietHoursEnd = "07:00"
	pref.Timezone = "America/Vancouver"
	if err := s.SavePreference(&pref); err != nil {
		t.Fatalf("save preference: %v", err)
	}

	pref.EmailNotifications = false
	if err := s.SavePreference(&pref); err != nil {
		t.Fatalf("update preference: %v", err)
	}

	got, err = s.GetPreference(user.ID)
	if err != nil {
		t.Fatalf("get preference: %v", err)
	}
	if got.EmailNotifications {
		t.Fatalf("expected master switch off after update")
	}
	if enabled, set := got.CategoryFlag(domain.CategoryMaintenance); !set || enabled {
		t.Fatalf("expected maintenance explicitly off, got enabled=%v set=%v", enabled, set)
	}
	if enabled, set := got.CategoryFlag(domain.CategoryPayment); !set || !enabled {
		t.Fatalf("expected payment explicitly on, got enabled=%v set=%v", enabled, set)
	}
	if _, set := got.CategoryFlag(domain.CategoryMeeting); set {
		t.Fatalf("expected meeting flag unset")
	}
	if got.QuietHoursStart != "21:30" || got.QuietHoursEnd != "07:00" || got.Timezone != "America/Vancouver" {
		t.Fatalf("unexpected quiet hours: %+v", got)
	}
}

func TestApplyTransaction(t *testing.T) {
	s := newTestStorage(t)
	st, _, _ := seedStrata(t, s)

	reserve := &domain.Fund{StrataID: st.ID, Name: "Reserve", Kind: domain.FundReserve,
		Balance: decimal.RequireFromString("1000.00"), AnnualRate: decimal.RequireFromString("0.02"),
		Compounding: domain.CompoundMonthly}
	operating := &domain.Fund{StrataID: st.ID, Name: "Operating", Kind: domain.FundOperating,
		Balance: decimal.RequireFromString("50.00"), AnnualRate: decimal.Zero, Compounding: domain.CompoundMonthly}
	for _, f := range []*domain.Fund{reserve, operating} {
		if err := s.CreateFund(f); err != nil {
			t.Fatalf("create fund: %v", err)
		}
	}

	amount := decimal.RequireFromString("250.00")
	transfer := &domain.FundTransaction{FundID: reserve.ID, CounterpartFundID: &operating.ID,
		Kind: domain.TxTransfer, Amount: amount}
	err := s.ApplyTransaction(transfer, func(from, to *domain.Fund) error {
		if err := from.Debit(amount); err != nil {
			return err
		}
		to.Credit(amount)
		return nil
	})
	if err != nil {
		t.Fatalf("apply transfer: %v", err)
	}

	gotReserve, _ := s.GetFund(reserve.ID)
	gotOperating, _ := s.GetFund(operating.ID)
	if gotReserve.Balance.StringFixed(2) != "750.00" || gotOperating.Balance.StringFixed(2) != "300.00" {
		t.Fatalf("unexpected balances after transfer: %s / %s", gotReserve.Balance, gotOperating.Balance)
	}

	overdraw := &domain.FundTransaction{FundID: operating.ID, Kind: domain.TxWithdrawal,
		Amount: decimal.RequireFromString("1000.00")}
	err = s.ApplyTransaction(overdraw, func(f, _ *domain.Fund) error {
		return f.Debit(overdraw.Amount)
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	ledger, err := s.ListTransactions(operating.ID, 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Kind != domain.TxTransfer {
		t.Fatalf("expected only the transfer in the ledger, got %d rows", len(ledger))
	}

	missing := &domain.FundTransaction{FundID: 9999, Kind: domain.TxDeposit, Amount: amount}
	if err := s.ApplyTransaction(missing, func(_, _ *domain.Fund) error { return nil }); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatchLog(t *testing.T) {
	s := newTestStorage(t)
	st, _, user := seedStrata(t, s)

	rs := &domain.ReminderSeries{StrataID: st.ID, Title: "AGM", Kind: domain.KindMeeting, Status: domain.StatusActive,
		Rule:    domain.RecurrenceRule{Pattern: domain.PatternNone, Anchor: day(t, "2024-06-01")},
		DueDate: day(t, "2024-06-01"), NextReminderDate: day(t, "2024-06-01")}
	if err := s.CreateSeries(rs); err != nil {
		t.Fatalf("create series: %v", err)
	}

	at := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	records := []*domain.DispatchRecord{
		{ID: "a", SeriesID: rs.ID, UserID: user.ID, Category: domain.CategoryMeeting, Delivered: true, Reason: "allowed", SentAt: at},
		{ID: "b", SeriesID: rs.ID, UserID: user.ID, Category: domain.CategoryMeeting, Reason: "quiet_hours", SentAt: at.Add(time.Hour)},
	}
	for _, r := range records {
		if err := s.LogDispatch(r); err != nil {
			t.Fatalf("log dispatch: %v", err)
		}
	}

	got, err := s.ListDispatches(rs.ID)
	if err != nil {
		t.Fatalf("list dispatches: %v", err)
	}
	if len(got) != 2 || !got[0].Delivered || got[1].Delivered || got[1].Reason != "quiet_hours" {
		t.Fatalf("unexpected dispatch log: %+v", got)
	}
}
