package bot

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/strata/internal/service"
	"github.com/tazhate/strata/internal/storage"
)

type Bot struct {
	api               *tgbotapi.BotAPI
	storage           *storage.Storage
	reminderService   *service.ReminderService
	fundService       *service.FundService
	preferenceService *service.PreferenceService
	calendarService   *service.CalendarService
	memberService     *service.MemberService
	dispatcher        Dispatcher
	adminTelegramID   int64
}

func New(token string, storage *storage.Storage, reminderSvc *service.ReminderService, fundSvc *service.FundService, prefSvc *service.PreferenceService, memberSvc *service.MemberService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("bot: authorized as @%s", api.Self.UserName)

	bot := &Bot{
		api:               api,
		storage:           storage,
		reminderService:   reminderSvc,
		fundService:       fundSvc,
		preferenceService: prefSvc,
		memberService:     memberSvc,
	}

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

// SetCalendar enables /calendar and /sync.
func (b *Bot) SetCalendar(calendarSvc *service.CalendarService) {
	b.calendarService = calendarSvc
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "reminders", Description: "🔔 Upcoming obligations"},
		{Command: "overdue", Description: "⏰ Overdue obligations"},
		{Command: "paid", Description: "✅ Mark an obligation as handled"},
		{Command: "funds", Description: "🏦 Fund balances"},
		{Command: "project", Description: "📈 Project a fund"},
		{Command: "ledger", Description: "📒 Recent fund transactions"},
		{Command: "calendar", Description: "📅 Download the obligations calendar"},
		{Command: "remind", Description: "➕ Add an obligation (manager)"},
		{Command: "members", Description: "👥 Members (manager)"},
		{Command: "prefs", Description: "⚙️ Notification settings"},
		{Command: "help", Description: "❓ Command reference"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("bot: set commands: %v", err)
	}
}

// Start long-polls Telegram until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendDocument(chatID int64, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	_, err := b.api.Send(doc)
	return err
}

func (b *Bot) editMessage(chatID int64, msgID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = "HTML"
	edit.ReplyMarkup = keyboard
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("bot: edit message: %v", err)
	}
}

// LogSender stands in for Telegram when no bot token is configured.
type LogSender struct{}

func (LogSender) SendMessage(chatID int64, text string) error {
	log.Printf("bot: [no telegram] to %d: %s", chatID, text)
	return nil
}
