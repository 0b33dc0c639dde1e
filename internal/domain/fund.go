package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type CompoundingFrequency string

const (
	CompoundMonthly   CompoundingFrequency = "monthly"
	CompoundQuarterly CompoundingFrequency = "quarterly"
	CompoundAnnually  CompoundingFrequency = "annually"
)

// MonthsPerPeriod returns how many months one compounding period spans.
func (f CompoundingFrequency) MonthsPerPeriod() (int, error) {
	switch f {
	case CompoundMonthly:
		return 1, nil
	case CompoundQuarterly:
		return 3, nil
	case CompoundAnnually:
		return 12, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCompounding, string(f))
	}
}

type FundKind string

const (
	FundReserve   FundKind = "reserve"
	FundOperating FundKind = "operating"
)

type Fund struct {
	ID          int64
	StrataID    int64
	Name        string
	Kind        FundKind
	Balance     decimal.Decimal
	Target      decimal.NullDecimal
	AnnualRate  decimal.Decimal // 0.025 = 2.5%
	Compounding CompoundingFrequency
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (f *Fund) Credit(amount decimal.Decimal) {
	f.Balance = f.Balance.Add(amount)
}

func (f *Fund) Debit(amount decimal.Decimal) error {
	if f.Balance.LessThan(amount) {
		return fmt.Errorf("%w in fund %q: balance %s, requested %s",
			ErrInsufficientFunds, f.Name, f.Balance.StringFixed(2), amount.StringFixed(2))
	}
	f.Balance = f.Balance.Sub(amount)
	return nil
}

// TargetReached reports whether the balance meets the target, if one is set.
func (f *Fund) TargetReached() bool {
	return f.Target.Valid && !f.Balance.LessThan(f.Target.Decimal)
}

type TransactionKind string

const (
	TxDeposit    TransactionKind = "deposit"
	TxWithdrawal TransactionKind = "withdrawal"
	TxInterest   TransactionKind = "interest"
	TxTransfer   TransactionKind = "transfer"
)

// FundTransaction is the only way a fund balance changes.
type FundTransaction struct {
	ID                int64
	FundID            int64
	CounterpartFundID *int64 // transfer destination
	Kind              TransactionKind
	Amount            decimal.Decimal
	Description       string
	OccurredAt        time.Time
}
