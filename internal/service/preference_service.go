package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/strata/internal/delivery"
	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/storage"
)

type PreferenceService struct {
	storage *storage.Storage
}

func NewPreferenceService(s *storage.Storage) *PreferenceService {
	return &PreferenceService{storage: s}
}

// Get returns the saved preferences or the defaults for users that never
// saved any.
func (s *PreferenceService) Get(userID int64) (domain.NotificationPreference, error) {
	p, err := s.storage.GetPreference(userID)
	if err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("get preference: %w", err)
	}
	if p == nil {
		return domain.DefaultPreference(userID), nil
	}
	return *p, nil
}

// PreferenceInput is a partial update; nil fields are left unchanged.
type PreferenceInput struct {
	EmailNotifications *bool
	Categories         map[domain.Category]bool `validate:"dive,keys,oneof=maintenance payment meeting announcement,endkeys"`
	QuietHoursEnabled  *bool
	QuietHoursStart    *string `validate:"omitempty,hhmm"`
	QuietHoursEnd      *string `validate:"omitempty,hhmm"`
	Timezone           *string `validate:"omitempty,timezone"`
}

func (s *PreferenceService) Update(userID int64, input PreferenceInput) (domain.NotificationPreference, error) {
	if input.Timezone != nil {
		tz := strings.TrimSpace(*input.Timezone)
		input.Timezone = &tz
	}
	if err := validateInput("preferences", input); err != nil {
		return domain.NotificationPreference{}, err
	}

	user, err := s.storage.GetUserByID(userID)
	if err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return domain.NotificationPreference{}, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}

	p, err := s.Get(userID)
	if err != nil {
		return domain.NotificationPreference{}, err
	}

	if input.EmailNotifications != nil {
		p.EmailNotifications = *input.EmailNotifications
	}
	for c, enabled := range input.Categories {
		p.SetCategory(c, enabled)
	}
	if input.QuietHoursEnabled != nil {
		p.QuietHoursEnabled = *input.QuietHoursEnabled
	}
	if input.QuietHoursStart != nil {
		p.QuietHoursStart = *input.QuietHoursStart
	}
	if input.QuietHoursEnd != nil {
		p.QuietHoursEnd = *input.QuietHoursEnd
	}
	if input.Timezone != nil {
		p.Timezone = *input.Timezone
	}

	if err := s.storage.SavePreference(&p); err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("save preference: %w", err)
	}
	return p, nil
}

// Decide loads the user's preferences and runs the delivery gate.
func (s *PreferenceService) Decide(userID int64, category domain.Category, now time.Time) (delivery.Decision, error) {
	p, err := s.Get(userID)
	if err != nil {
		return delivery.Decision{}, err
	}
	return delivery.Decide(category, p, now), nil
}

func (s *PreferenceService) FormatPreference(p domain.NotificationPreference) string {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔔 Notifications: %s\n", onOff(p.EmailNotifications)))
	for _, c := range []domain.Category{
		domain.CategoryMaintenance, domain.CategoryPayment, domain.CategoryMeeting, domain.CategoryAnnouncement,
	} {
		enabled, set := p.CategoryFlag(c)
		sb.WriteString(fmt.Sprintf("  %s: %s\n", c, onOff(enabled || !set)))
	}
	if p.QuietHoursEnabled {
		sb.WriteString(fmt.Sprintf("🌙 Quiet hours: %s-%s", p.QuietHoursStart, p.QuietHoursEnd))
	} else {
		sb.WriteString("🌙 Quiet hours: off")
	}
	if p.Timezone != "" {
		sb.WriteString(" (" + p.Timezone + ")")
	}
	return sb.String()
}
