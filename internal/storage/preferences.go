package storage

import (
	"database/sql"
	"time"

	"github.com/tazhate/strata/internal/domain"
)

// === Notification preferences ===

// GetPreference returns nil, nil when the user never saved preferences.
func (s *Storage) GetPreference(userID int64) (*domain.NotificationPreference, error) {
	p := &domain.NotificationPreference{UserID: userID, Categories: map[domain.Category]bool{}}
	var maintenance, payment, meeting, announcement sql.NullBool
	err := s.db.QueryRow(
		`SELECT email_notifications, maintenance_alerts, payment_reminders, meeting_reminders,
			announcement_notifications, quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
			timezone, updated_at
		 FROM notification_preferences WHERE user_id = ?`,
		userID,
	).Scan(&p.EmailNotifications, &maintenance, &payment, &meeting, &announcement,
		&p.QuietHoursEnabled, &p.QuietHoursStart, &p.QuietHoursEnd, &p.Timezone, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for c, flag := range map[domain.Category]sql.NullBool{
		domain.CategoryMaintenance:  maintenance,
		domain.CategoryPayment:      payment,
		domain.CategoryMeeting:      meeting,
		domain.CategoryAnnouncement: announcement,
	} {
		if flag.Valid {
			p.Categories[c] = flag.Bool
		}
	}
	return p, nil
}

// SavePreference inserts or replaces the user's preferences.
func (s *Storage) SavePreference(p *domain.NotificationPreference) error {
	flag := func(c domain.Category) sql.NullBool {
		enabled, set := p.CategoryFlag(c)
		return sql.NullBool{Bool: enabled, Valid: set}
	}

	p.UpdatedAt = time.Now()
	_, err := s.db.Exec(
		`INSERT INTO notification_preferences (user_id, email_notifications, maintenance_alerts,
			payment_reminders, meeting_reminders, announcement_notifications, quiet_hours_enabled,
			quiet_hours_start, quiet_hours_end, timezone, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			email_notifications = excluded.email_notifications,
			maintenance_alerts = excluded.maintenance_alerts,
			payment_reminders = excluded.payment_reminders,
			meeting_reminders = excluded.meeting_reminders,
			announcement_notifications = excluded.announcement_notifications,
			quiet_hours_enabled = excluded.quiet_hours_enabled,
			quiet_hours_start = excluded.quiet_hours_start,
			quiet_hours_end = excluded.quiet_hours_end,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`,
		p.UserID, p.EmailNotifications,
		flag(domain.CategoryMaintenance), flag(domain.CategoryPayment),
		flag(domain.CategoryMeeting), flag(domain.CategoryAnnouncement),
		p.QuietHoursEnabled, p.QuietHoursStart, p.QuietHoursEnd, p.Timezone, p.UpdatedAt,
	)
	return err
}
