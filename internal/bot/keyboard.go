package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/strata/internal/domain"
)

var toggleCategories = []domain.Category{
	domain.CategoryMaintenance,
	domain.CategoryPayment,
	domain.CategoryMeeting,
	domain.CategoryAnnouncement,
}

// Preferences keyboard: one toggle per setting
func preferencesKeyboard(p domain.NotificationPreference) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggleLabel("All notifications", p.EmailNotifications), "pref:master"),
		),
	}

	for _, c := range toggleCategories {
		enabled, set := p.CategoryFlag(c)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggleLabel(string(c), enabled || !set), "pref:cat:"+string(c)),
		))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(toggleLabel("Quiet hours", p.QuietHoursEnabled), "pref:quiet"),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Series keyboard for manual series
func seriesKeyboard(seriesID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Paid", fmt.Sprintf("paid:%d", seriesID)),
			tgbotapi.NewInlineKeyboardButtonData("📅 Next dates", fmt.Sprintf("next:%d", seriesID)),
		),
	)
}

func toggleLabel(name string, on bool) string {
	if on {
		return "✅ " + name
	}
	return "❌ " + name
}
