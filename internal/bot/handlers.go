package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/service"
)

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	user, err := b.storage.GetUserByTelegramID(msg.From.ID)
	if err != nil {
		log.Printf("bot: get user %d: %v", msg.From.ID, err)
		return
	}
	if user == nil {
		if msg.IsCommand() && msg.Command() == "setup" {
			b.handleSetup(chatID, msg.From, strings.TrimSpace(msg.CommandArguments()))
			return
		}
		b.reply(chatID, fmt.Sprintf("⛔ This chat is not linked to a strata account. Ask your manager to register Telegram ID <code>%d</code>.", msg.From.ID))
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	b.reply(chatID, "Unknown input. /help for the command list")
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID

	user, err := b.storage.GetUserByTelegramID(callback.From.ID)
	if err != nil || user == nil {
		b.answer(callback.ID, "⛔ Not registered")
		return
	}

	parts := strings.Split(callback.Data, ":")
	switch parts[0] {
	case "pref":
		// pref:master | pref:quiet | pref:cat:<category>
		input, ok := b.toggleInput(user, parts[1:])
		if !ok {
			b.answer(callback.ID, "Unknown setting")
			return
		}
		p, err := b.preferenceService.Update(user.ID, input)
		if err != nil {
			b.answer(callback.ID, "❌ "+err.Error())
			return
		}
		kb := preferencesKeyboard(p)
		b.editMessage(chatID, msgID, b.preferenceService.FormatPreference(p), &kb)
		b.answer(callback.ID, "Saved")

	case "paid":
		// paid:<seriesID>
		if len(parts) < 2 {
			return
		}
		rs, changed, err := b.acknowledge(user, atoi(parts[1]))
		if err != nil {
			b.answer(callback.ID, "❌ "+userMessage(err))
			return
		}
		if !changed {
			b.answer(callback.ID, "Not due yet")
			return
		}
		b.editMessage(chatID, msgID, "✅ Recorded\n\n"+b.reminderService.FormatSeries(rs), nil)
		b.answer(callback.ID, "Recorded")

	case "next":
		// next:<seriesID>
		if len(parts) < 2 {
			return
		}
		text, err := b.previewText(user, atoi(parts[1]))
		if err != nil {
			b.answer(callback.ID, "❌ "+userMessage(err))
			return
		}
		b.reply(chatID, text)
		b.answer(callback.ID, "")

	default:
		b.answer(callback.ID, "")
	}
}

func (b *Bot) toggleInput(user *domain.User, args []string) (service.PreferenceInput, bool) {
	current, err := b.preferenceService.Get(user.ID)
	if err != nil {
		log.Printf("bot: get preferences for user %d: %v", user.ID, err)
		return service.PreferenceInput{}, false
	}

	var input service.PreferenceInput
	switch {
	case len(args) == 1 && args[0] == "master":
		v := !current.EmailNotifications
		input.EmailNotifications = &v
	case len(args) == 1 && args[0] == "quiet":
		v := !current.QuietHoursEnabled
		input.QuietHoursEnabled = &v
	case len(args) == 2 && args[0] == "cat":
		c := domain.Category(args[1])
		enabled, set := current.CategoryFlag(c)
		input.Categories = map[domain.Category]bool{c: !(enabled || !set)}
	default:
		return input, false
	}
	return input, true
}

// visible reports whether user may see or act on rs.
func visible(user *domain.User, rs *domain.ReminderSeries) bool {
	if rs.StrataID != user.StrataID {
		return false
	}
	if canManage(user) {
		return true
	}
	return rs.UnitID == nil || (user.UnitID != nil && *rs.UnitID == *user.UnitID)
}

func canManage(user *domain.User) bool {
	return user.Role == domain.RoleManager || user.Role == domain.RoleCouncil
}

func (b *Bot) acknowledge(user *domain.User, seriesID int64) (*domain.ReminderSeries, bool, error) {
	if _, err := b.visibleSeries(user, seriesID); err != nil {
		return nil, false, err
	}
	return b.reminderService.Acknowledge(seriesID, time.Now())
}

func (b *Bot) previewText(user *domain.User, seriesID int64) (string, error) {
	if _, err := b.visibleSeries(user, seriesID); err != nil {
		return "", err
	}
	dates, err := b.reminderService.Preview(seriesID, 6)
	if err != nil {
		return "", err
	}
	if len(dates) == 0 {
		return "No upcoming dates", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 <b>#%d next dates</b>\n", seriesID))
	for _, d := range dates {
		sb.WriteString(d.Format("Mon 02 Jan 2006") + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		log.Printf("bot: send to %d: %v", chatID, err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("bot: answer callback: %v", err)
	}
}

// userMessage turns service errors into short replies.
func userMessage(err error) string {
	var inputErr *service.InputError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Not found"
	case errors.Is(err, domain.ErrSeriesNotActive):
		return "That obligation is not active"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Not allowed in the current state"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "Not enough money in the fund"
	case errors.Is(err, domain.ErrInvalidRuleShape):
		return err.Error()
	case errors.As(err, &inputErr):
		return strings.Join(inputErr.Problems, "; ")
	default:
		log.Printf("bot: %v", err)
		return "Something went wrong"
	}
}

func atoi(s string) int64 {
	i, _ := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	return i
}
