// Package delivery decides whether a notification may reach a recipient now.
package delivery

import (
	"time"

	"github.com/tazhate/strata/internal/domain"
)

type Reason string

const (
	ReasonEmergency   Reason = "emergency"
	ReasonMasterOff   Reason = "master_off"
	ReasonCategoryOff Reason = "category_off"
	ReasonQuietHours  Reason = "quiet_hours"
	ReasonAllowed     Reason = "allowed"
)

// Decision is the gate outcome together with the rule that produced it.
type Decision struct {
	Deliver bool
	Reason  Reason
}

// Deferred reports whether the message was held back only temporarily.
func (d Decision) Deferred() bool {
	return !d.Deliver && d.Reason == ReasonQuietHours
}

// ShouldDeliver reports whether a message of the given category may be sent
// to a recipient with pref at now.
func ShouldDeliver(category domain.Category, pref domain.NotificationPreference, now time.Time) bool {
	return Decide(category, pref, now).Deliver
}

// Decide applies, in order: emergency bypass, master switch, category
// opt-out and quiet hours.
func Decide(category domain.Category, pref domain.NotificationPreference, now time.Time) Decision {
	if category == domain.CategoryEmergency {
		return Decision{Deliver: true, Reason: ReasonEmergency}
	}
	if !pref.EmailNotifications {
		return Decision{Reason: ReasonMasterOff}
	}
	if enabled, set := pref.CategoryFlag(category); set && !enabled {
		return Decision{Reason: ReasonCategoryOff}
	}
	if pref.QuietHoursEnabled && InQuietHours(pref, now) {
		return Decision{Reason: ReasonQuietHours}
	}
	return Decision{Deliver: true, Reason: ReasonAllowed}
}

// InQuietHours compares the recipient's wall clock against the window as
// "HH:MM" strings: current >= start || current <= end.
//
// This is the long-standing policy and is kept as is. It only behaves as a
// window for ranges that wrap midnight (22:00-08:00); a same-day range such
// as 09:00-17:00 matches every time of day.
func InQuietHours(pref domain.NotificationPreference, now time.Time) bool {
	current := localTime(pref.Timezone, now).Format("15:04")
	return current >= pref.QuietHoursStart || current <= pref.QuietHoursEnd
}

func localTime(tz string, now time.Time) time.Time {
	if tz == "" {
		return now
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return now
	}
	return now.In(loc)
}
