package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(filepath.Join(t.TempDir(), "strata.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedBuilding creates a strata with the given unit labels and one owner per unit.
func seedBuilding(t *testing.T, s *storage.Storage, labels ...string) (*domain.Strata, []*domain.Unit, []*domain.User) {
	t.Helper()
	st := &domain.Strata{Name: "Harbour View"}
	if err := s.CreateStrata(st); err != nil {
		t.Fatalf("create strata: %v", err)
	}

	var units []*domain.Unit
	var users []*domain.User
	for i, label := range labels {
		unit := &domain.Unit{StrataID: st.ID, Label: label}
		if err := s.CreateUnit(unit); err != nil {
			t.Fatalf("create unit: %v", err)
		}
		user := &domain.User{
			StrataID:   st.ID,
			UnitID:     &unit.ID,
			TelegramID: int64(1000 + i),
			Name:       "Owner " + label,
			Role:       domain.RoleOwner,
		}
		if err := s.CreateUser(user); err != nil {
			t.Fatalf("create user: %v", err)
		}
		units = append(units, unit)
		users = append(users, user)
	}
	return st, units, users
}

func mustDay(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return d
}

func monthlyRule(t *testing.T, anchor string, day int) domain.RecurrenceRule {
	t.Helper()
	return domain.RecurrenceRule{
		Pattern: domain.PatternMonthly,
		Anchor:  mustDay(t, anchor),
		Monthly: &domain.MonthlySpec{Mode: domain.MonthlyFixedDay, DayOfMonth: day},
	}
}
