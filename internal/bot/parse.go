package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/service"
)

const dateLayout = "2006-01-02"

var kindAliases = map[string]domain.ReminderKind{
	"fee":         domain.KindStrataFee,
	"payment":     domain.KindPaymentDue,
	"insurance":   domain.KindInsuranceRenewal,
	"maintenance": domain.KindMaintenance,
	"meeting":     domain.KindMeeting,
	"general":     domain.KindGeneral,
	"emergency":   domain.KindEmergency,
}

var positionAliases = map[string]domain.WeekPosition{
	"1st": domain.PositionFirst, "first": domain.PositionFirst,
	"2nd": domain.PositionSecond, "second": domain.PositionSecond,
	"3rd": domain.PositionThird, "third": domain.PositionThird,
	"4th": domain.PositionFourth, "fourth": domain.PositionFourth,
	"last": domain.PositionLast,
}

// parseKind accepts a short alias ("fee") or the full kind name.
func parseKind(raw string) (domain.ReminderKind, error) {
	raw = strings.ToLower(raw)
	if k, ok := kindAliases[raw]; ok {
		return k, nil
	}
	for _, k := range kindAliases {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q", raw)
}

// parseRule reads the compact rule syntax used by /remind:
//
//	once | daily[/N] | weekly[/N]:mon,thu | monthly[/N]:15|last|2nd-fri
//	yearly[/N]:jun:15|last|1st-mon
func parseRule(raw string, anchor time.Time) (domain.RecurrenceRule, error) {
	rule := domain.RecurrenceRule{Anchor: anchor}

	head, spec, _ := strings.Cut(strings.ToLower(raw), ":")
	name, step, hasStep := strings.Cut(head, "/")
	if hasStep {
		n, err := strconv.Atoi(step)
		if err != nil || n < 1 {
			return rule, fmt.Errorf("interval must be a positive number, got %q", step)
		}
		rule.Interval = n
	}

	switch name {
	case "once":
		rule.Pattern = domain.PatternNone
	case "daily":
		rule.Pattern = domain.PatternDaily
	case "weekly":
		rule.Pattern = domain.PatternWeekly
		days, err := domain.ParseWeekdaySet(spec)
		if err != nil {
			return rule, err
		}
		if days.IsEmpty() {
			return rule, fmt.Errorf("weekly needs days, e.g. weekly:mon,thu")
		}
		rule.Weekdays = days
		return rule, nil
	case "monthly":
		rule.Pattern = domain.PatternMonthly
		m, err := parseMonthDay(spec)
		if err != nil {
			return rule, err
		}
		rule.Monthly = m
		return rule, nil
	case "yearly":
		rule.Pattern = domain.PatternYearly
		monthRaw, daySpec, ok := strings.Cut(spec, ":")
		if !ok {
			return rule, fmt.Errorf("yearly needs a month and day, e.g. yearly:jun:15")
		}
		month, err := parseMonth(monthRaw)
		if err != nil {
			return rule, err
		}
		m, err := parseMonthDay(daySpec)
		if err != nil {
			return rule, err
		}
		rule.Month = month
		rule.Monthly = m
		return rule, nil
	default:
		return rule, fmt.Errorf("unknown repeat %q", name)
	}

	if spec != "" {
		return rule, fmt.Errorf("%s takes no day list", name)
	}
	return rule, nil
}

// parseMonthDay reads "15", "last" or "<position>-<weekday>".
func parseMonthDay(raw string) (*domain.MonthlySpec, error) {
	if raw == "" {
		return nil, fmt.Errorf("missing day, e.g. 15, last or 2nd-fri")
	}
	if raw == "last" {
		return &domain.MonthlySpec{Mode: domain.MonthlyLastDay}, nil
	}
	if day, err := strconv.Atoi(raw); err == nil {
		return &domain.MonthlySpec{Mode: domain.MonthlyFixedDay, DayOfMonth: day}, nil
	}

	posRaw, dayRaw, ok := strings.Cut(raw, "-")
	pos, okPos := positionAliases[posRaw]
	weekday, okDay := domain.ParseWeekday(dayRaw)
	if !ok || !okPos || !okDay {
		return nil, fmt.Errorf("unknown day %q", raw)
	}
	return &domain.MonthlySpec{Mode: domain.MonthlyNthWeekday, Position: pos, Weekday: weekday}, nil
}

func parseMonth(raw string) (time.Month, error) {
	if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= 12 {
		return time.Month(n), nil
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if raw == name || (len(raw) >= 3 && strings.HasPrefix(name, raw)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", raw)
}

// splitOptions pulls key=value options and bare flags off the front of
// fields. The remaining words are returned as rest.
func splitOptions(fields []string, flags ...string) (map[string]string, []string) {
	opts := map[string]string{}
	for i, f := range fields {
		if key, value, ok := strings.Cut(f, "="); ok && key != "" {
			opts[strings.ToLower(key)] = value
			continue
		}
		isFlag := false
		for _, flag := range flags {
			if strings.EqualFold(f, flag) {
				opts[flag] = "true"
				isFlag = true
			}
		}
		if !isFlag {
			return opts, fields[i:]
		}
	}
	return opts, nil
}

func unknownOption(opts map[string]string, allowed ...string) error {
	for key := range opts {
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
			}
		}
		if !known {
			return fmt.Errorf("unknown option %q", key)
		}
	}
	return nil
}

type remindArgs struct {
	Kind      domain.ReminderKind
	Rule      domain.RecurrenceRule
	LeadDays  int
	UnitLabel string
	Amount    string
	AutoSend  bool
	Title     string
}

// parseRemindArgs reads "KIND RULE YYYY-MM-DD [lead=N] [unit=LABEL] [amount=X] [manual] TITLE".
func parseRemindArgs(args string) (remindArgs, error) {
	var out remindArgs
	fields := strings.Fields(args)
	if len(fields) < 4 {
		return out, fmt.Errorf("expected kind, repeat, first date and title")
	}

	kind, err := parseKind(fields[0])
	if err != nil {
		return out, err
	}
	anchor, err := time.Parse(dateLayout, fields[2])
	if err != nil {
		return out, fmt.Errorf("first date must be YYYY-MM-DD, got %q", fields[2])
	}
	rule, err := parseRule(fields[1], anchor)
	if err != nil {
		return out, err
	}

	opts, rest := splitOptions(fields[3:], "manual")
	if err := unknownOption(opts, "lead", "unit", "amount", "manual"); err != nil {
		return out, err
	}
	if len(rest) == 0 {
		return out, fmt.Errorf("missing title")
	}

	out = remindArgs{
		Kind:      kind,
		Rule:      rule,
		UnitLabel: opts["unit"],
		Amount:    opts["amount"],
		AutoSend:  opts["manual"] == "",
		Title:     strings.Join(rest, " "),
	}
	if lead, ok := opts["lead"]; ok {
		if out.LeadDays, err = strconv.Atoi(lead); err != nil {
			return out, fmt.Errorf("lead must be a number of days, got %q", lead)
		}
	}
	return out, nil
}

type registerArgs struct {
	TelegramID int64
	Role       domain.UserRole
	UnitLabel  string
	Email      string
	Name       string
}

// parseRegisterArgs reads "TELEGRAM_ID ROLE [unit=LABEL] [email=ADDR] NAME".
func parseRegisterArgs(args string) (registerArgs, error) {
	var out registerArgs
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return out, fmt.Errorf("expected Telegram ID, role and name")
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return out, fmt.Errorf("telegram ID must be a positive number, got %q", fields[0])
	}
	opts, rest := splitOptions(fields[2:])
	if err := unknownOption(opts, "unit", "email"); err != nil {
		return out, err
	}
	if len(rest) == 0 {
		return out, fmt.Errorf("missing name")
	}

	return registerArgs{
		TelegramID: id,
		Role:       domain.UserRole(strings.ToLower(fields[1])),
		UnitLabel:  opts["unit"],
		Email:      opts["email"],
		Name:       strings.Join(rest, " "),
	}, nil
}

// fundOptions maps rate=, target= and compound= onto the settings patch.
func fundOptions(opts map[string]string) service.FundSettingsInput {
	var input service.FundSettingsInput
	if rate, ok := opts["rate"]; ok {
		input.AnnualRate = &rate
	}
	if target, ok := opts["target"]; ok {
		if strings.EqualFold(target, "none") {
			target = ""
		}
		input.Target = &target
	}
	if compound, ok := opts["compound"]; ok {
		c := domain.CompoundingFrequency(strings.ToLower(compound))
		input.Compounding = &c
	}
	return input
}

// parseFundArgs reads "KIND BALANCE [rate=R] [target=T] [compound=C] NAME".
func parseFundArgs(args string) (service.CreateFundInput, error) {
	var out service.CreateFundInput
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return out, fmt.Errorf("expected kind, balance and name")
	}

	opts, rest := splitOptions(fields[2:])
	if err := unknownOption(opts, "rate", "target", "compound"); err != nil {
		return out, err
	}
	if len(rest) == 0 {
		return out, fmt.Errorf("missing name")
	}

	settings := fundOptions(opts)
	out = service.CreateFundInput{
		Name:        strings.Join(rest, " "),
		Kind:        domain.FundKind(strings.ToLower(fields[0])),
		Balance:     fields[1],
		Compounding: domain.CompoundMonthly,
	}
	if settings.AnnualRate != nil {
		out.AnnualRate = *settings.AnnualRate
	}
	if settings.Target != nil {
		out.Target = *settings.Target
	}
	if settings.Compounding != nil {
		out.Compounding = *settings.Compounding
	}
	return out, nil
}

// parseFundSettingsArgs reads "ID [rate=R] [target=T|none] [compound=C] [NAME]".
func parseFundSettingsArgs(args string) (int64, service.FundSettingsInput, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return 0, service.FundSettingsInput{}, fmt.Errorf("expected fund ID and at least one change")
	}
	id := atoi(fields[0])
	if id == 0 {
		return 0, service.FundSettingsInput{}, fmt.Errorf("fund ID must be a number, got %q", fields[0])
	}

	opts, rest := splitOptions(fields[1:])
	if err := unknownOption(opts, "rate", "target", "compound"); err != nil {
		return 0, service.FundSettingsInput{}, err
	}
	input := fundOptions(opts)
	if len(rest) > 0 {
		name := strings.Join(rest, " ")
		input.Name = &name
	}
	return id, input, nil
}
