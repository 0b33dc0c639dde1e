package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/tazhate/strata/internal/domain"
)

func TestParseRule(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		raw     string
		want    domain.RecurrenceRule
		wantErr string
	}{
		{raw: "once", want: domain.RecurrenceRule{Pattern: domain.PatternNone}},
		{raw: "daily/2", want: domain.RecurrenceRule{Pattern: domain.PatternDaily, Interval: 2}},
		{raw: "weekly:tue,thu", want: domain.RecurrenceRule{Pattern: domain.PatternWeekly, Weekdays: domain.NewWeekdaySet(time.Tuesday, time.Thursday)}},
		{raw: "Weekly/2:FRI", want: domain.RecurrenceRule{Pattern: domain.PatternWeekly, Interval: 2, Weekdays: domain.NewWeekdaySet(time.Friday)}},
		{raw: "monthly:15", want: domain.RecurrenceRule{Pattern: domain.PatternMonthly, Monthly: &domain.MonthlySpec{Mode: domain.MonthlyFixedDay, DayOfMonth: 15}}},
		{raw: "monthly:last", want: domain.RecurrenceRule{Pattern: domain.PatternMonthly, Monthly: &domain.MonthlySpec{Mode: domain.MonthlyLastDay}}},
		{raw: "monthly/3:2nd-fri", want: domain.RecurrenceRule{Pattern: domain.PatternMonthly, Interval: 3, Monthly: &domain.MonthlySpec{Mode: domain.MonthlyNthWeekday, Position: domain.PositionSecond, Weekday: time.Friday}}},
		{raw: "monthly:last-fri", want: domain.RecurrenceRule{Pattern: domain.PatternMonthly, Monthly: &domain.MonthlySpec{Mode: domain.MonthlyNthWeekday, Position: domain.PositionLast, Weekday: time.Friday}}},
		{raw: "yearly:jun:15", want: domain.RecurrenceRule{Pattern: domain.PatternYearly, Month: time.June, Monthly: &domain.MonthlySpec{Mode: domain.MonthlyFixedDay, DayOfMonth: 15}}},
		{raw: "yearly:12:last", want: domain.RecurrenceRule{Pattern: domain.PatternYearly, Month: time.December, Monthly: &domain.MonthlySpec{Mode: domain.MonthlyLastDay}}},
		{raw: "yearly:september:first-mon", want: domain.RecurrenceRule{Pattern: domain.PatternYearly, Month: time.September, Monthly: &domain.MonthlySpec{Mode: domain.MonthlyNthWeekday, Position: domain.PositionFirst, Weekday: time.Monday}}},
		{raw: "hourly", wantErr: "unknown repeat"},
		{raw: "daily/0", wantErr: "interval"},
		{raw: "daily:mon", wantErr: "no day list"},
		{raw: "weekly", wantErr: "needs days"},
		{raw: "weekly:funday", wantErr: "unknown weekday"},
		{raw: "monthly", wantErr: "missing day"},
		{raw: "monthly:5th-fri", wantErr: "unknown day"},
		{raw: "yearly:jun", wantErr: "month and day"},
		{raw: "yearly:ju:15", wantErr: "unknown month"},
	}

	for _, testCase := range cases {
		t.Run(testCase.raw, func(t *testing.T) {
			t.Parallel()
			got, err := parseRule(testCase.raw, anchor)
			if testCase.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
					t.Fatalf("expected error containing %q, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Anchor.Equal(anchor) {
				t.Fatalf("expected anchor %s, got %s", anchor, got.Anchor)
			}
			if got.Pattern != testCase.want.Pattern || got.Interval != testCase.want.Interval ||
				got.Weekdays != testCase.want.Weekdays || got.Month != testCase.want.Month {
				t.Fatalf("expected %+v, got %+v", testCase.want, got)
			}
			if (got.Monthly == nil) != (testCase.want.Monthly == nil) {
				t.Fatalf("expected monthly %v, got %v", testCase.want.Monthly, got.Monthly)
			}
			if got.Monthly != nil && *got.Monthly != *testCase.want.Monthly {
				t.Fatalf("expected monthly %+v, got %+v", *testCase.want.Monthly, *got.Monthly)
			}
		})
	}
}

func TestParseRemindArgs(t *testing.T) {
	t.Parallel()

	got, err := parseRemindArgs("fee monthly:1 2024-02-01 lead=5 amount=450.00 Strata fee Q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != domain.KindStrataFee || got.LeadDays != 5 || got.Amount != "450.00" {
		t.Fatalf("unexpected parse: %+v", got)
	}
	if !got.AutoSend || got.Title != "Strata fee Q1" {
		t.Fatalf("expected auto send with title, got %+v", got)
	}
	if got.Rule.Anchor.Format(dateLayout) != "2024-02-01" {
		t.Fatalf("expected anchor 2024-02-01, got %s", got.Rule.Anchor.Format(dateLayout))
	}

	got, err = parseRemindArgs("insurance_renewal yearly:jun:last 2024-06-30 manual unit=4B Building insurance")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != domain.KindInsuranceRenewal || got.AutoSend || got.UnitLabel != "4B" {
		t.Fatalf("unexpected parse: %+v", got)
	}

	cases := []struct {
		args    string
		wantErr string
	}{
		{args: "fee monthly:1 2024-02-01", wantErr: "expected kind"},
		{args: "rent monthly:1 2024-02-01 Rent", wantErr: "unknown kind"},
		{args: "fee monthly:1 01/02/2024 Fee", wantErr: "YYYY-MM-DD"},
		{args: "fee fortnightly 2024-02-01 Fee", wantErr: "unknown repeat"},
		{args: "fee monthly:1 2024-02-01 lead=soon Fee", wantErr: "lead"},
		{args: "fee monthly:1 2024-02-01 colour=red Fee", wantErr: "unknown option"},
		{args: "fee monthly:1 2024-02-01 lead=3 manual", wantErr: "missing title"},
	}
	for _, testCase := range cases {
		if _, err := parseRemindArgs(testCase.args); err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
			t.Fatalf("%q: expected error containing %q, got %v", testCase.args, testCase.wantErr, err)
		}
	}
}

func TestParseRegisterArgs(t *testing.T) {
	t.Parallel()

	got, err := parseRegisterArgs("501 Owner unit=1A email=kai@example.com Kai Tanaka")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := registerArgs{TelegramID: 501, Role: domain.RoleOwner, UnitLabel: "1A", Email: "kai@example.com", Name: "Kai Tanaka"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	for _, args := range []string{"501 owner", "@kai owner Kai", "-3 council Lee", "501 owner floor=2 Kai", "501 owner unit=1A"} {
		if _, err := parseRegisterArgs(args); err == nil {
			t.Fatalf("%q: expected error", args)
		}
	}
}

func TestParseFundArgs(t *testing.T) {
	t.Parallel()

	got, err := parseFundArgs("reserve 25000 rate=0.025 target=100000 compound=Quarterly Contingency reserve")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != domain.FundReserve || got.Balance != "25000" || got.AnnualRate != "0.025" || got.Target != "100000" {
		t.Fatalf("unexpected parse: %+v", got)
	}
	if got.Compounding != domain.CompoundQuarterly || got.Name != "Contingency reserve" {
		t.Fatalf("unexpected parse: %+v", got)
	}

	got, err = parseFundArgs("operating 1200 Operating")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Compounding != domain.CompoundMonthly || got.AnnualRate != "" {
		t.Fatalf("expected monthly default without rate, got %+v", got)
	}

	for _, args := range []string{"reserve 25000", "reserve 25000 rate=0.02", "reserve 25000 fee=3 Reserve"} {
		if _, err := parseFundArgs(args); err == nil {
			t.Fatalf("%q: expected error", args)
		}
	}
}

func TestParseFundSettingsArgs(t *testing.T) {
	t.Parallel()

	id, input, err := parseFundSettingsArgs("#7 rate=0.03 target=none New name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected fund 7, got %d", id)
	}
	if input.AnnualRate == nil || *input.AnnualRate != "0.03" {
		t.Fatalf("expected rate 0.03, got %v", input.AnnualRate)
	}
	if input.Target == nil || *input.Target != "" {
		t.Fatalf("expected target cleared, got %v", input.Target)
	}
	if input.Name == nil || *input.Name != "New name" || input.Compounding != nil {
		t.Fatalf("unexpected patch: %+v", input)
	}

	for _, args := range []string{"7", "x rate=1", "7 colour=red"} {
		if _, _, err := parseFundSettingsArgs(args); err == nil {
			t.Fatalf("%q: expected error", args)
		}
	}
}
