package bot

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/service"
	"github.com/tazhate/strata/internal/storage"
)

func TestVisible(t *testing.T) {
	t.Parallel()

	unitA, unitB := int64(1), int64(2)
	owner := &domain.User{StrataID: 7, UnitID: &unitA, Role: domain.RoleOwner}
	manager := &domain.User{StrataID: 7, Role: domain.RoleManager}

	cases := []struct {
		name   string
		user   *domain.User
		series *domain.ReminderSeries
		want   bool
	}{
		{name: "own unit", user: owner, series: &domain.ReminderSeries{StrataID: 7, UnitID: &unitA}, want: true},
		{name: "strata wide", user: owner, series: &domain.ReminderSeries{StrataID: 7}, want: true},
		{name: "other unit", user: owner, series: &domain.ReminderSeries{StrataID: 7, UnitID: &unitB}, want: false},
		{name: "other strata", user: owner, series: &domain.ReminderSeries{StrataID: 8}, want: false},
		{name: "manager sees all units", user: manager, series: &domain.ReminderSeries{StrataID: 7, UnitID: &unitB}, want: true},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			if got := visible(testCase.user, testCase.series); got != testCase.want {
				t.Fatalf("expected %v, got %v", testCase.want, got)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("series 4: %w", domain.ErrNotFound), want: "Not found"},
		{err: &domain.SeriesNotActiveError{SeriesID: 4, Status: domain.StatusPaused}, want: "That obligation is not active"},
		{err: &domain.TransitionError{SeriesID: 4, From: domain.StatusCancelled, To: domain.StatusActive}, want: "Not allowed in the current state"},
		{err: &service.InputError{What: "preferences", Problems: []string{"QuietHoursStart failed hhmm"}}, want: "QuietHoursStart failed hhmm"},
		{err: &domain.InvalidRuleError{Pattern: domain.PatternMonthly, Field: "monthly.day_of_month", Reason: "must be 1-31"}, want: "invalid monthly recurrence rule: monthly.day_of_month must be 1-31"},
	}

	for _, testCase := range cases {
		if got := userMessage(testCase.err); got != testCase.want {
			t.Fatalf("expected %q, got %q", testCase.want, got)
		}
	}
}

func TestAtoi(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]int64{"12": 12, " #7 ": 7, "x": 0, "": 0} {
		if got := atoi(raw); got != want {
			t.Fatalf("atoi(%q): expected %d, got %d", raw, want, got)
		}
	}
}

func TestPreferencesKeyboard(t *testing.T) {
	t.Parallel()

	p := domain.DefaultPreference(1)
	p.SetCategory(domain.CategoryMeeting, false)

	kb := preferencesKeyboard(p)
	if len(kb.InlineKeyboard) != len(toggleCategories)+2 {
		t.Fatalf("expected %d rows, got %d", len(toggleCategories)+2, len(kb.InlineKeyboard))
	}

	labels := map[string]string{}
	for _, row := range kb.InlineKeyboard {
		labels[*row[0].CallbackData] = row[0].Text
	}
	if labels["pref:cat:meeting"] != "❌ meeting" {
		t.Fatalf("expected meeting to be off, got %q", labels["pref:cat:meeting"])
	}
	if labels["pref:cat:payment"] != "✅ payment" {
		t.Fatalf("expected payment to default on, got %q", labels["pref:cat:payment"])
	}
	if labels["pref:quiet"] != "❌ Quiet hours" {
		t.Fatalf("expected quiet hours off, got %q", labels["pref:quiet"])
	}
}

func TestToggleInput(t *testing.T) {
	t.Parallel()

	store, err := storage.New(filepath.Join(t.TempDir(), "strata.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	st := &domain.Strata{Name: "Harbour View"}
	if err := store.CreateStrata(st); err != nil {
		t.Fatalf("create strata: %v", err)
	}
	user := &domain.User{StrataID: st.ID, TelegramID: 5, Name: "Sam", Role: domain.RoleOwner}
	if err := store.CreateUser(user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	b := &Bot{preferenceService: service.NewPreferenceService(store)}

	input, ok := b.toggleInput(user, []string{"cat", "payment"})
	if !ok {
		t.Fatal("expected category toggle to parse")
	}
	if enabled, set := input.Categories[domain.CategoryPayment]; !set || enabled {
		t.Fatalf("expected payment toggled off, got %v/%v", enabled, set)
	}

	input, ok = b.toggleInput(user, []string{"master"})
	if !ok || input.EmailNotifications == nil || *input.EmailNotifications {
		t.Fatalf("expected master toggled off, got %+v", input)
	}

	if _, ok := b.toggleInput(user, []string{"volume"}); ok {
		t.Fatal("expected unknown setting to be rejected")
	}
}

func TestCanManage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role domain.UserRole
		want bool
	}{
		{role: domain.RoleOwner, want: false},
		{role: domain.RoleTenant, want: false},
		{role: domain.RoleCouncil, want: true},
		{role: domain.RoleManager, want: true},
	}

	for _, testCase := range cases {
		if got := canManage(&domain.User{Role: testCase.role}); got != testCase.want {
			t.Fatalf("%s: expected %v, got %v", testCase.role, testCase.want, got)
		}
	}
}

func TestKindCommand(t *testing.T) {
	t.Parallel()

	if got := kindCommand(domain.TxWithdrawal); got != "withdraw" {
		t.Fatalf("expected withdraw, got %s", got)
	}
	if got := kindCommand(domain.TxDeposit); got != "deposit" {
		t.Fatalf("expected deposit, got %s", got)
	}
}
