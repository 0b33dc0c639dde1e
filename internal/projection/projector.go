// Package projection forecasts fund balances under compound interest.
package projection

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tazhate/strata/internal/domain"
)

// MonthProjection is the state of the fund at the end of one projected month.
type MonthProjection struct {
	Month    int             `json:"month"` // 1-based
	Balance  decimal.Decimal `json:"balance"`
	Interest decimal.Decimal `json:"interest"`
}

type Projection struct {
	FundID           int64             `json:"fund_id"`
	Years            int               `json:"years"`
	StartingBalance  decimal.Decimal   `json:"starting_balance"`
	ProjectedBalance decimal.Decimal   `json:"projected_balance"`
	TotalInterest    decimal.Decimal   `json:"total_interest"`
	Months           []MonthProjection `json:"months"`
	YearEnd          []MonthProjection `json:"year_end"`
	// TargetMonth is the first month the balance reaches the fund target, 0 if never.
	TargetMonth int `json:"target_month,omitempty"`
}

// MaxYears bounds the projection horizon.
const MaxYears = 100

var twelve = decimal.NewFromInt(12)

// Project steps the fund balance month by month for the given number of
// years. Interest and balance are rounded to cents after every step. The
// fund itself is not modified.
func Project(fund domain.Fund, years int) (*Projection, error) {
	if years < 0 {
		return nil, fmt.Errorf("project fund %d: years must not be negative, got %d", fund.ID, years)
	}
	if years > MaxYears {
		return nil, fmt.Errorf("project fund %d: years must be at most %d, got %d", fund.ID, MaxYears, years)
	}
	months, err := fund.Compounding.MonthsPerPeriod()
	if err != nil {
		return nil, fmt.Errorf("project fund %d: %w", fund.ID, err)
	}

	periodRate := decimal.Zero
	if fund.AnnualRate.IsPositive() {
		periodRate = fund.AnnualRate.Mul(decimal.NewFromInt(int64(months))).Div(twelve)
	}

	p := &Projection{
		FundID:          fund.ID,
		Years:           years,
		StartingBalance: fund.Balance,
		TotalInterest:   decimal.Zero,
		Months:          make([]MonthProjection, 0, years*12),
	}

	balance := fund.Balance
	for month := 1; month <= years*12; month++ {
		interest := decimal.Zero
		if month%months == 0 {
			interest = balance.Mul(periodRate).Round(2)
		}
		balance = balance.Add(interest).Round(2)
		p.TotalInterest = p.TotalInterest.Add(interest)

		step := MonthProjection{Month: month, Balance: balance, Interest: interest}
		p.Months = append(p.Months, step)
		if month%12 == 0 {
			p.YearEnd = append(p.YearEnd, step)
		}
		if p.TargetMonth == 0 && fund.Target.Valid && !fund.TargetReached() &&
			!balance.LessThan(fund.Target.Decimal) {
			p.TargetMonth = month
		}
	}
	p.ProjectedBalance = balance
	return p, nil
}
