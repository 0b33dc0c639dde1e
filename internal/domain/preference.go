package domain

import "time"

// Category is a notification category recipients can opt out of.
type Category string

const (
	CategoryMaintenance  Category = "maintenance"
	CategoryPayment      Category = "payment"
	CategoryMeeting      Category = "meeting"
	CategoryAnnouncement Category = "announcement"
	CategoryEmergency    Category = "emergency" // never gated
)

// NotificationPreference holds per-recipient delivery settings.
type NotificationPreference struct {
	UserID             int64
	EmailNotifications bool // master switch
	// Categories holds explicit opt-ins/opt-outs; a missing key means enabled.
	Categories        map[Category]bool
	QuietHoursEnabled bool
	QuietHoursStart   string // "22:00"
	QuietHoursEnd     string // "08:00"
	Timezone          string // IANA name, empty = time of the caller
	UpdatedAt         time.Time
}

// DefaultPreference is used for recipients that never saved preferences.
func DefaultPreference(userID int64) NotificationPreference {
	return NotificationPreference{
		UserID:             userID,
		EmailNotifications: true,
		Categories:         map[Category]bool{},
		QuietHoursStart:    "22:00",
		QuietHoursEnd:      "08:00",
	}
}

// CategoryFlag returns the stored flag for c and whether one was stored.
func (p NotificationPreference) CategoryFlag(c Category) (enabled bool, set bool) {
	enabled, set = p.Categories[c]
	return enabled, set
}

func (p *NotificationPreference) SetCategory(c Category, enabled bool) {
	if p.Categories == nil {
		p.Categories = make(map[Category]bool)
	}
	p.Categories[c] = enabled
}
