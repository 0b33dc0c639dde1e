package delivery

import (
	"testing"
	"time"

	"github.com/tazhate/strata/internal/domain"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.March, 5, hour, minute, 0, 0, time.UTC)
}

func quietPref(start, end string) domain.NotificationPreference {
	pref := domain.DefaultPreference(1)
	pref.QuietHoursEnabled = true
	pref.QuietHoursStart = start
	pref.QuietHoursEnd = end
	return pref
}

func TestEmergencyAlwaysDelivers(t *testing.T) {
	t.Parallel()

	pref := quietPref("00:00", "23:59")
	pref.EmailNotifications = false
	pref.SetCategory(domain.CategoryEmergency, false)

	for _, now := range []time.Time{at(3, 0), at(12, 0), at(23, 30)} {
		d := Decide(domain.CategoryEmergency, pref, now)
		if !d.Deliver || d.Reason != ReasonEmergency {
			t.Fatalf("expected emergency delivery at %s, got %+v", now.Format("15:04"), d)
		}
	}
}

func TestMasterSwitchBlocksEverythingElse(t *testing.T) {
	t.Parallel()

	pref := domain.DefaultPreference(1)
	pref.EmailNotifications = false

	for _, c := range []domain.Category{
		domain.CategoryPayment, domain.CategoryMaintenance, domain.CategoryMeeting, domain.CategoryAnnouncement,
	} {
		d := Decide(c, pref, at(12, 0))
		if d.Deliver || d.Reason != ReasonMasterOff {
			t.Fatalf("%s: expected master_off, got %+v", c, d)
		}
	}
}

func TestCategoryOptOut(t *testing.T) {
	t.Parallel()

	pref := domain.DefaultPreference(1)
	pref.SetCategory(domain.CategoryMaintenance, false)
	pref.SetCategory(domain.CategoryPayment, true)

	if d := Decide(domain.CategoryMaintenance, pref, at(12, 0)); d.Deliver || d.Reason != ReasonCategoryOff {
		t.Fatalf("expected category_off for maintenance, got %+v", d)
	}
	if !ShouldDeliver(domain.CategoryPayment, pref, at(12, 0)) {
		t.Fatalf("expected explicit opt-in to deliver")
	}
	if !ShouldDeliver(domain.CategoryMeeting, pref, at(12, 0)) {
		t.Fatalf("expected missing flag to mean enabled")
	}
}

func TestQuietHoursAcrossMidnight(t *testing.T) {
	t.Parallel()

	pref := quietPref("22:00", "08:00")

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "late evening", now: at(23, 0), want: false},
		{name: "start boundary", now: at(22, 0), want: false},
		{name: "early morning", now: at(7, 59), want: false},
		{name: "end boundary", now: at(8, 0), want: false},
		{name: "just after end", now: at(8, 1), want: true},
		{name: "noon", now: at(12, 0), want: true},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			d := Decide(domain.CategoryPayment, pref, testCase.now)
			if d.Deliver != testCase.want {
				t.Fatalf("expected deliver=%v at %s, got %+v", testCase.want, testCase.now.Format("15:04"), d)
			}
			if !testCase.want && !d.Deferred() {
				t.Fatalf("expected quiet hours suppression to be deferred, got %+v", d)
			}
		})
	}
}

func TestQuietHoursSameDayWindowMatchesAllDay(t *testing.T) {
	t.Parallel()

	pref := quietPref("09:00", "17:00")
	for _, now := range []time.Time{at(3, 0), at(12, 0), at(20, 0)} {
		if ShouldDeliver(domain.CategoryPayment, pref, now) {
			t.Fatalf("expected the documented comparison to suppress at %s", now.Format("15:04"))
		}
	}
}

func TestQuietHoursDisabled(t *testing.T) {
	t.Parallel()

	pref := quietPref("22:00", "08:00")
	pref.QuietHoursEnabled = false

	if d := Decide(domain.CategoryPayment, pref, at(23, 0)); !d.Deliver || d.Reason != ReasonAllowed {
		t.Fatalf("expected allowed with quiet hours disabled, got %+v", d)
	}
}

func TestQuietHoursUsesRecipientTimezone(t *testing.T) {
	t.Parallel()

	if _, err := time.LoadLocation("America/Vancouver"); err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	pref := quietPref("22:00", "08:00")
	pref.Timezone = "America/Vancouver"

	// 20:00 UTC is 12:00 in Vancouver (PST) on this date.
	if !ShouldDeliver(domain.CategoryPayment, pref, at(20, 0)) {
		t.Fatalf("expected delivery at local noon")
	}
	// 07:00 UTC is 23:00 the previous evening in Vancouver.
	if ShouldDeliver(domain.CategoryPayment, pref, at(7, 0)) {
		t.Fatalf("expected suppression at local 23:00")
	}
}
