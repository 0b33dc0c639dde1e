package bot

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/service"
)

const defaultProjectionYears = 5

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	chatID := msg.Chat.ID
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start":
		b.reply(chatID, fmt.Sprintf("👋 Hi %s!\n\n/help for the command list", user.Name))
	case "help":
		b.cmdHelp(chatID)
	case "reminders":
		b.cmdReminders(chatID, user)
	case "overdue":
		b.cmdOverdue(chatID, user)
	case "paid":
		b.cmdPaid(chatID, user, args)
	case "funds":
		b.cmdFunds(chatID, user)
	case "project":
		b.cmdProject(ctx, chatID, user, args)
	case "ledger":
		b.cmdLedger(chatID, user, args)
	case "deposit":
		b.cmdTransaction(ctx, chatID, user, domain.TxDeposit, args)
	case "withdraw":
		b.cmdTransaction(ctx, chatID, user, domain.TxWithdrawal, args)
	case "transfer":
		b.cmdTransfer(ctx, chatID, user, args)
	case "calendar":
		b.cmdCalendar(chatID, user)
	case "sync":
		b.cmdSync(ctx, chatID, user)
	case "prefs":
		b.cmdPrefs(chatID, user)
	case "quiet":
		b.cmdQuiet(chatID, user, args)
	case "unit":
		b.cmdUnit(chatID, user, args)
	case "register":
		b.cmdRegister(chatID, user, args)
	case "members":
		b.cmdMembers(chatID, user)
	case "remind":
		b.cmdRemind(chatID, user, args)
	case "pause", "resume", "cancel":
		b.cmdTransition(chatID, user, cmd, args)
	case "send":
		b.cmdSend(ctx, chatID, user, args)
	case "fund":
		b.cmdFund(chatID, user, args)
	case "fundset":
		b.cmdFundSet(ctx, chatID, user, args)
	default:
		b.reply(chatID, "Unknown command. /help for the command list")
	}
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Commands:</b>

<b>Obligations</b>
/reminders: upcoming obligations
/overdue: overdue obligations
/paid ID: mark the current occurrence as handled

<b>Funds</b>
/funds: balances
/project ID [years]: compound interest projection
/ledger ID: recent transactions
/deposit ID AMOUNT [note], /withdraw ID AMOUNT [note]
/transfer FROM TO AMOUNT [note]

<b>Calendar</b>
/calendar: obligations as an .ics file
/sync: push obligations to the shared CalDAV calendar

<b>Notifications</b>
/prefs: toggle categories and quiet hours
/quiet 22:00-08:00: set quiet hours (/quiet off to disable)

<b>Management</b>
/unit 1A 1B: add units
/register TELEGRAM_ID ROLE [unit=1A] NAME: link a member
/members: member list
/remind KIND REPEAT YYYY-MM-DD [lead=N] [unit=1A] [amount=X] [manual] TITLE
  kinds: fee payment insurance maintenance meeting general emergency
  repeat: once, daily, weekly:mon,thu, monthly:15, monthly:last, monthly:2nd-fri, yearly:jun:30
/pause ID, /resume ID, /cancel ID
/send ID: send the reminder now
/fund reserve|operating BALANCE [rate=0.025] [target=X] [compound=monthly] NAME
/fundset ID [rate=R] [target=X|none] [compound=C] [NAME]`
	b.reply(chatID, text)
}

func (b *Bot) cmdReminders(chatID int64, user *domain.User) {
	series, err := b.reminderService.List(user.StrataID, false)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	mine := series[:0]
	for _, rs := range series {
		if visible(user, rs) {
			mine = append(mine, rs)
		}
	}
	b.reply(chatID, "🔔 <b>Obligations</b>\n\n"+b.reminderService.FormatSeriesList(mine))
}

func (b *Bot) cmdOverdue(chatID int64, user *domain.User) {
	overdue, err := b.reminderService.Overdue(user.StrataID, time.Now())
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}

	sent := 0
	for _, rs := range overdue {
		if !visible(user, rs) {
			continue
		}
		text := "⏰ " + b.reminderService.FormatSeries(rs)
		if rs.AutoSend {
			b.reply(chatID, text)
		} else if err := b.SendMessageWithKeyboard(chatID, text, seriesKeyboard(rs.ID)); err != nil {
			b.reply(chatID, text)
		}
		sent++
	}
	if sent == 0 {
		b.reply(chatID, "Nothing overdue 🎉")
	}
}

func (b *Bot) cmdPaid(chatID int64, user *domain.User, args string) {
	id := atoi(args)
	if id == 0 {
		b.reply(chatID, "Usage: /paid ID")
		return
	}

	rs, changed, err := b.acknowledge(user, id)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	if !changed {
		b.reply(chatID, fmt.Sprintf("#%d is not due until %s", rs.ID, rs.DueDate.Format("02 Jan 2006")))
		return
	}
	b.reply(chatID, "✅ Recorded\n\n"+b.reminderService.FormatSeries(rs))
}

func (b *Bot) cmdFunds(chatID int64, user *domain.User) {
	funds, err := b.fundService.List(user.StrataID)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	if len(funds) == 0 {
		b.reply(chatID, "No funds")
		return
	}

	var sb strings.Builder
	for _, f := range funds {
		sb.WriteString(b.fundService.FormatFund(f))
		sb.WriteString("\n")
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) cmdProject(ctx context.Context, chatID int64, user *domain.User, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.reply(chatID, "Usage: /project ID [years]")
		return
	}

	fund, ok := b.strataFund(user, fields[0])
	if !ok {
		b.reply(chatID, "❌ Fund not found")
		return
	}

	years := defaultProjectionYears
	if len(fields) > 1 {
		var err error
		years, err = strconv.Atoi(fields[1])
		if err != nil || years < 1 || years > 50 {
			b.reply(chatID, "Years must be between 1 and 50")
			return
		}
	}

	p, err := b.fundService.Project(ctx, fund.ID, years)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, b.fundService.FormatProjection(fund, p))
}

func (b *Bot) strataFund(user *domain.User, raw string) (*domain.Fund, bool) {
	fund, err := b.fundService.Get(atoi(raw))
	if err != nil || fund.StrataID != user.StrataID {
		return nil, false
	}
	return fund, true
}

func (b *Bot) cmdLedger(chatID int64, user *domain.User, args string) {
	fund, ok := b.strataFund(user, args)
	if !ok {
		b.reply(chatID, "Usage: /ledger ID")
		return
	}
	txns, err := b.fundService.Transactions(fund.ID, 10)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, b.fundService.FormatFund(fund)+"\n\n"+b.fundService.FormatTransactions(txns))
}

func (b *Bot) cmdTransaction(ctx context.Context, chatID int64, user *domain.User, kind domain.TransactionKind, args string) {
	if !canManage(user) {
		b.reply(chatID, "⛔ Only the manager or council can record transactions")
		return
	}
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.reply(chatID, fmt.Sprintf("Usage: /%s ID AMOUNT [note]", kindCommand(kind)))
		return
	}
	fund, ok := b.strataFund(user, fields[0])
	if !ok {
		b.reply(chatID, "❌ Fund not found")
		return
	}

	input := service.TransactionInput{
		FundID:      fund.ID,
		Kind:        kind,
		Amount:      fields[1],
		Description: strings.Join(fields[2:], " "),
	}
	b.recordTransaction(ctx, chatID, fund.ID, input)
}

func (b *Bot) cmdTransfer(ctx context.Context, chatID int64, user *domain.User, args string) {
	if !canManage(user) {
		b.reply(chatID, "⛔ Only the manager or council can record transactions")
		return
	}
	fields := strings.Fields(args)
	if len(fields) < 3 {
		b.reply(chatID, "Usage: /transfer FROM TO AMOUNT [note]")
		return
	}
	from, okFrom := b.strataFund(user, fields[0])
	to, okTo := b.strataFund(user, fields[1])
	if !okFrom || !okTo {
		b.reply(chatID, "❌ Fund not found")
		return
	}

	input := service.TransactionInput{
		FundID:            from.ID,
		CounterpartFundID: &to.ID,
		Kind:              domain.TxTransfer,
		Amount:            fields[2],
		Description:       strings.Join(fields[3:], " "),
	}
	b.recordTransaction(ctx, chatID, from.ID, input)
}

func (b *Bot) recordTransaction(ctx context.Context, chatID, fundID int64, input service.TransactionInput) {
	if _, err := b.fundService.Record(ctx, input); err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	fund, err := b.fundService.Get(fundID)
	if err != nil {
		b.reply(chatID, "✅ Recorded")
		return
	}
	b.reply(chatID, "✅ Recorded\n\n"+b.fundService.FormatFund(fund))
}

func (b *Bot) cmdCalendar(chatID int64, user *domain.User) {
	if b.calendarService == nil {
		b.reply(chatID, "Calendar export is not available")
		return
	}

	var buf bytes.Buffer
	if err := b.calendarService.ExportICS(&buf, user.StrataID, time.Now()); err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	if err := b.SendDocument(chatID, "obligations.ics", buf.Bytes(), "📅 Import into any calendar app"); err != nil {
		log.Printf("bot: send calendar to %d: %v", chatID, err)
		b.reply(chatID, "❌ Could not send the file")
	}
}

func (b *Bot) cmdSync(ctx context.Context, chatID int64, user *domain.User) {
	if !canManage(user) {
		b.reply(chatID, "⛔ Only the manager or council can sync the calendar")
		return
	}
	if b.calendarService == nil || !b.calendarService.IsConfigured() {
		b.reply(chatID, "CalDAV is not configured")
		return
	}

	result, err := b.calendarService.PublishStrata(ctx, user.StrataID)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	text := fmt.Sprintf("🔄 Published %d, removed %d", result.Published, result.Removed)
	if len(result.Errors) > 0 {
		text += fmt.Sprintf("\n⚠️ %d failed", len(result.Errors))
	}
	b.reply(chatID, text)
}

func kindCommand(kind domain.TransactionKind) string {
	if kind == domain.TxWithdrawal {
		return "withdraw"
	}
	return string(kind)
}

func (b *Bot) cmdPrefs(chatID int64, user *domain.User) {
	p, err := b.preferenceService.Get(user.ID)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	if err := b.SendMessageWithKeyboard(chatID, b.preferenceService.FormatPreference(p), preferencesKeyboard(p)); err != nil {
		b.reply(chatID, b.preferenceService.FormatPreference(p))
	}
}

func (b *Bot) cmdQuiet(chatID int64, user *domain.User, args string) {
	var input service.PreferenceInput
	if strings.EqualFold(args, "off") {
		off := false
		input.QuietHoursEnabled = &off
	} else {
		start, end, ok := strings.Cut(args, "-")
		if !ok {
			b.reply(chatID, "Usage: /quiet 22:00-08:00 or /quiet off")
			return
		}
		on := true
		start, end = strings.TrimSpace(start), strings.TrimSpace(end)
		input.QuietHoursEnabled = &on
		input.QuietHoursStart = &start
		input.QuietHoursEnd = &end
	}

	p, err := b.preferenceService.Update(user.ID, input)
	if err != nil {
		b.reply(chatID, "❌ "+userMessage(err))
		return
	}
	b.reply(chatID, b.preferenceService.FormatPreference(p))
}
