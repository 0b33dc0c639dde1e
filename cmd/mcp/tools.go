package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tazhate/strata/internal/delivery"
	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/projection"
	"github.com/tazhate/strata/internal/recurrence"
)

const maxOccurrences = 366

func toolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "strata_next_occurrences",
			Description: "List the next dates of a recurrence rule after a given date, plus its RFC 5545 RRULE.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"pattern":  {Type: "string", Description: "Recurrence pattern", Enum: []string{"none", "daily", "weekly", "monthly", "yearly"}},
					"interval": {Type: "integer", Description: "Every N periods (default 1)"},
					"anchor":   {Type: "string", Description: "First occurrence, YYYY-MM-DD"},
					"end":      {Type: "string", Description: "Last allowed date, YYYY-MM-DD (optional)"},
					"weekdays": {Type: "string", Description: "Weekly days, e.g. \"tue,thu\""},
					"monthly":  {Type: "object", Description: "{mode: fixed_day|nth_weekday|last_day, day_of_month, position: first..fourth|last, weekday (0=Sunday)}"},
					"month":    {Type: "integer", Description: "Month for yearly rules, 1-12"},
					"from":     {Type: "string", Description: "Start searching after this date, YYYY-MM-DD (default: day before anchor)"},
					"count":    {Type: "integer", Description: "How many dates to return (default 5)"},
				},
				Required: []string{"pattern", "anchor"},
			},
		},
		{
			Name:        "strata_project_fund",
			Description: "Project a fund balance under compound interest, month by month with cent rounding.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"balance":     {Type: "string", Description: "Starting balance, e.g. \"25000.00\""},
					"annual_rate": {Type: "string", Description: "Annual rate as a fraction, e.g. \"0.025\""},
					"compounding": {Type: "string", Description: "Compounding frequency", Enum: []string{"monthly", "quarterly", "annually"}},
					"years":       {Type: "integer", Description: "Years to project, 0-100"},
					"target":      {Type: "string", Description: "Target balance (optional)"},
				},
				Required: []string{"balance", "annual_rate", "compounding", "years"},
			},
		},
		{
			Name:        "strata_should_deliver",
			Description: "Decide whether a notification of a category may reach a recipient at a given time.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"category":            {Type: "string", Description: "Notification category", Enum: []string{"maintenance", "payment", "meeting", "announcement", "emergency"}},
					"at":                  {Type: "string", Description: "RFC 3339 timestamp"},
					"email_notifications": {Type: "boolean", Description: "Master switch (default true)"},
					"categories":          {Type: "object", Description: "Explicit category flags, e.g. {\"meeting\": false}"},
					"quiet_hours_enabled": {Type: "boolean", Description: "Quiet hours switch"},
					"quiet_hours_start":   {Type: "string", Description: "HH:MM"},
					"quiet_hours_end":     {Type: "string", Description: "HH:MM"},
					"timezone":            {Type: "string", Description: "IANA timezone of the recipient"},
				},
				Required: []string{"category", "at"},
			},
		},
	}
}

type occurrencesArgs struct {
	Pattern  domain.Pattern      `json:"pattern"`
	Interval int                 `json:"interval"`
	Anchor   string              `json:"anchor"`
	End      string              `json:"end"`
	Weekdays domain.WeekdaySet   `json:"weekdays"`
	Monthly  *domain.MonthlySpec `json:"monthly"`
	Month    int                 `json:"month"`
	From     string              `json:"from"`
	Count    int                 `json:"count"`
}

type occurrencesResult struct {
	RRule string   `json:"rrule"`
	Dates []string `json:"dates"`
}

func nextOccurrences(raw json.RawMessage) (*occurrencesResult, error) {
	var args occurrencesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	anchor, err := parseDay("anchor", args.Anchor)
	if err != nil {
		return nil, err
	}
	rule := domain.RecurrenceRule{
		Pattern:  args.Pattern,
		Interval: args.Interval,
		Anchor:   anchor,
		Weekdays: args.Weekdays,
		Monthly:  args.Monthly,
		Month:    time.Month(args.Month),
	}
	if args.End != "" {
		end, err := parseDay("end", args.End)
		if err != nil {
			return nil, err
		}
		rule.End = &end
	}

	from := anchor.AddDate(0, 0, -1)
	if args.From != "" {
		if from, err = parseDay("from", args.From); err != nil {
			return nil, err
		}
	}

	count := args.Count
	if count <= 0 {
		count = 5
	}
	if count > maxOccurrences {
		count = maxOccurrences
	}

	dates, err := recurrence.Occurrences(rule, from, count)
	if err != nil {
		return nil, err
	}
	rr, err := recurrence.RRuleString(rule)
	if err != nil {
		return nil, err
	}

	result := &occurrencesResult{RRule: rr, Dates: []string{}}
	for _, d := range dates {
		result.Dates = append(result.Dates, d.Format("2006-01-02"))
	}
	return result, nil
}

type projectArgs struct {
	Balance     decimal.Decimal             `json:"balance"`
	AnnualRate  decimal.Decimal             `json:"annual_rate"`
	Compounding domain.CompoundingFrequency `json:"compounding"`
	Years       int                         `json:"years"`
	Target      decimal.NullDecimal         `json:"target"`
}

func projectFund(raw json.RawMessage) (*projection.Projection, error) {
	var args projectArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	fund := domain.Fund{
		Name:        "projection",
		Balance:     args.Balance,
		Target:      args.Target,
		AnnualRate:  args.AnnualRate,
		Compounding: args.Compounding,
	}
	p, err := projection.Project(fund, args.Years)
	if err != nil {
		return nil, err
	}
	// the month-by-month rows are noise for a chat client
	p.Months = nil
	return p, nil
}

type deliverArgs struct {
	Category           domain.Category          `json:"category"`
	At                 time.Time                `json:"at"`
	EmailNotifications *bool                    `json:"email_notifications"`
	Categories         map[domain.Category]bool `json:"categories"`
	QuietHoursEnabled  bool                     `json:"quiet_hours_enabled"`
	QuietHoursStart    string                   `json:"quiet_hours_start"`
	QuietHoursEnd      string                   `json:"quiet_hours_end"`
	Timezone           string                   `json:"timezone"`
}

type deliverResult struct {
	Deliver  bool            `json:"deliver"`
	Reason   delivery.Reason `json:"reason"`
	Deferred bool            `json:"deferred"`
}

func shouldDeliver(raw json.RawMessage) (*deliverResult, error) {
	var args deliverArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.At.IsZero() {
		return nil, fmt.Errorf("at is required")
	}

	pref := domain.DefaultPreference(0)
	if args.EmailNotifications != nil {
		pref.EmailNotifications = *args.EmailNotifications
	}
	for c, enabled := range args.Categories {
		pref.SetCategory(c, enabled)
	}
	pref.QuietHoursEnabled = args.QuietHoursEnabled
	if args.QuietHoursStart != "" {
		pref.QuietHoursStart = args.QuietHoursStart
	}
	if args.QuietHoursEnd != "" {
		pref.QuietHoursEnd = args.QuietHoursEnd
	}
	pref.Timezone = args.Timezone

	d := delivery.Decide(args.Category, pref, args.At)
	return &deliverResult{Deliver: d.Deliver, Reason: d.Reason, Deferred: d.Deferred()}, nil
}

func parseDay(field, raw string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD, got %q", field, raw)
	}
	return d, nil
}
