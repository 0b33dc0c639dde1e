package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/service"
)

// Dispatcher sends a series' reminder on demand.
type Dispatcher interface {
	SendNow(ctx context.Context, seriesID int64, now time.Time) (int, error)
}

// SetDispatcher enables /send.
func (b *Bot) SetDispatcher(d Dispatcher) {
	b.dispatcher = d
}

// SetAdmin lets the given Telegram account run /setup before it is registered.
func (b *Bot) SetAdmin(telegramID int64) {
	b.adminTelegramID = telegramID
}

// === Bootstrap ===

// handleSetup is the only command an unregistered account may run.
func (b *Bot) handleSetup(chatID int64, from *tgbotapi.User, args string) {
	if b.adminTelegramID == 0 || from.ID != b.adminTelegramID {
		b.reply(chatID, fmt.Sprintf("⛔ This chat is not linked to a strata account. Ask your manager to register Telegram ID <code>%d</code>.", from.ID))
		return
	}
	if args == "" {
		b.reply(chatID, "Usage: /setup BUILDING NAME")
		return
	}

	st, manager, err := b.memberService.Setup(service.SetupInput{
		StrataName:  args,
		TelegramID:  from.ID,
		ManagerName: displayName(from),
	})
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ <b>%s</b> created, %s is the manager\n\nNext: /unit 1A 1B ... then /register", html.EscapeString(st.Name), html.EscapeString(manager.Name)))
}

func displayName(from *tgbotapi.User) string {
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		name = from.UserName
	}
	if name == "" {
		name = fmt.Sprintf("user %d", from.ID)
	}
	return name
}

// === Members ===

func (b *Bot) cmdUnit(chatID int64, user *domain.User, args string) {
	if user.Role != domain.RoleManager {
		b.reply(chatID, "⛔ Only the manager can add units")
		return
	}
	labels := strings.Fields(args)
	if len(labels) == 0 {
		b.reply(chatID, "Usage: /unit LABEL [LABEL...]")
		return
	}

	created, err := b.memberService.AddUnits(user.StrataID, labels)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	if len(created) == 0 {
		b.reply(chatID, "Those units already exist")
		return
	}
	names := make([]string, len(created))
	for i, u := range created {
		names[i] = u.Label
	}
	b.reply(chatID, "✅ Added units: "+strings.Join(names, ", "))
}

func (b *Bot) cmdRegister(chatID int64, user *domain.User, args string) {
	if user.Role != domain.RoleManager {
		b.reply(chatID, "⛔ Only the manager can register members")
		return
	}
	parsed, err := parseRegisterArgs(args)
	if err != nil {
		b.reply(chatID, "❌ "+err.Error()+"\nUsage: /register TELEGRAM_ID ROLE [unit=LABEL] [email=ADDR] NAME")
		return
	}

	member, err := b.memberService.Register(service.RegisterInput{
		StrataID:   user.StrataID,
		TelegramID: parsed.TelegramID,
		Name:       parsed.Name,
		Email:      parsed.Email,
		Role:       parsed.Role,
		UnitLabel:  parsed.UnitLabel,
	})
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ Registered %s as %s", html.EscapeString(member.Name), member.Role))
}

func (b *Bot) cmdMembers(chatID int64, user *domain.User) {
	if !canManage(user) {
		b.reply(chatID, "⛔ Only the manager or council can list members")
		return
	}
	users, err := b.memberService.Members(user.StrataID)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	units, err := b.memberService.Units(user.StrataID)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, "👥 <b>Members</b>\n\n"+b.memberService.FormatMembers(users, units))
}

// === Obligations ===

func (b *Bot) cmdRemind(chatID int64, user *domain.User, args string) {
	if !canManage(user) {
		b.reply(chatID, "⛔ Only the manager or council can add obligations")
		return
	}
	parsed, err := parseRemindArgs(args)
	if err != nil {
		b.reply(chatID, "❌ "+err.Error()+"\nUsage: /remind KIND REPEAT YYYY-MM-DD [lead=N] [unit=LABEL] [amount=X] [manual] TITLE")
		return
	}

	input := service.CreateSeriesInput{
		StrataID: user.StrataID,
		Title:    parsed.Title,
		Kind:     parsed.Kind,
		Rule:     parsed.Rule,
		Amount:   parsed.Amount,
		LeadDays: parsed.LeadDays,
		AutoSend: parsed.AutoSend,
	}
	if parsed.UnitLabel != "" {
		unit, err := b.memberService.UnitByLabel(user.StrataID, parsed.UnitLabel)
		if err != nil {
			b.reply(chatID, "❌ "+userMessage(err))
			return
		}
		input.UnitID = &unit.ID
	}

	series, err := b.reminderService.Create(input)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}

	text := "✅ Added\n\n" + b.reminderService.FormatSeries(series[0])
	if len(series) > 1 {
		text = fmt.Sprintf("✅ Added for %d units\n\n%s", len(series), b.reminderService.FormatSeries(series[0]))
	}
	if err := b.SendMessageWithKeyboard(chatID, text, seriesKeyboard(series[0].ID)); err != nil {
		b.reply(chatID, text)
	}
}

// cmdTransition applies pause, resume or cancel to one series.
func (b *Bot) cmdTransition(chatID int64, user *domain.User, cmd, args string) {
	if !canManage(user) {
		b.reply(chatID, "⛔ Only the manager or council can change obligations")
		return
	}
	id := atoi(args)
	if id == 0 {
		b.reply(chatID, fmt.Sprintf("Usage: /%s ID", cmd))
		return
	}
	if _, err := b.visibleSeries(user, id); err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}

	var (
		rs  *domain.ReminderSeries
		err error
	)
	switch cmd {
	case "pause":
		rs, err = b.reminderService.Pause(id)
	case "resume":
		rs, err = b.reminderService.Resume(id)
	default:
		rs, err = b.reminderService.Cancel(id)
	}
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, b.reminderService.FormatSeries(rs))
}

func (b *Bot) cmdSend(ctx context.Context, chatID int64, user *domain.User, args string) {
	if !canManage(user) {
		b.reply(chatID, "⛔ Only the manager or council can send reminders")
		return
	}
	if b.dispatcher == nil {
		b.reply(chatID, "Sending is not available")
		return
	}
	id := atoi(args)
	if id == 0 {
		b.reply(chatID, "Usage: /send ID")
		return
	}
	if _, err := b.visibleSeries(user, id); err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}

	delivered, err := b.dispatcher.SendNow(ctx, id, time.Now())
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("📨 Delivered to %d", delivered))
}

func (b *Bot) visibleSeries(user *domain.User, id int64) (*domain.ReminderSeries, error) {
	rs, err := b.reminderService.Get(id)
	if err != nil {
		return nil, err
	}
	if !visible(user, rs) {
		return nil, domain.ErrNotFound
	}
	return rs, nil
}

// === Funds ===

func (b *Bot) cmdFund(chatID int64, user *domain.User, args string) {
	if !canManage(user) {
		b.reply(chatID, "⛔ Only the manager or council can add funds")
		return
	}
	input, err := parseFundArgs(args)
	if err != nil {
		b.reply(chatID, "❌ "+err.Error()+"\nUsage: /fund reserve|operating BALANCE [rate=0.025] [target=X] [compound=monthly] NAME")
		return
	}
	input.StrataID = user.StrataID

	fund, err := b.fundService.Create(input)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, "✅ Added\n\n"+b.fundService.FormatFund(fund))
}

func (b *Bot) cmdFundSet(ctx context.Context, chatID int64, user *domain.User, args string) {
	if !canManage(user) {
		b.reply(chatID, "⛔ Only the manager or council can change funds")
		return
	}
	id, input, err := parseFundSettingsArgs(args)
	if err != nil {
		b.reply(chatID, "❌ "+err.Error()+"\nUsage: /fundset ID [rate=R] [target=X|none] [compound=C] [NAME]")
		return
	}
	if _, ok := b.strataFund(user, fmt.Sprint(id)); !ok {
		b.reply(chatID, "❌ Fund not found")
		return
	}

	fund, err := b.fundService.UpdateSettings(ctx, id, input)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, "✅ Saved\n\n"+b.fundService.FormatFund(fund))
}
