package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tazhate/strata/internal/cache"
	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/projection"
	"github.com/tazhate/strata/internal/storage"
)

const projectionTTL = 6 * time.Hour

type FundService struct {
	storage *storage.Storage
	cache   cache.Cache
}

func NewFundService(s *storage.Storage, c cache.Cache) *FundService {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &FundService{
		storage: s,
		cache:   c,
	}
}

type CreateFundInput struct {
	StrataID    int64                       `validate:"required,gt=0"`
	Name        string                      `validate:"required,max=100"`
	Kind        domain.FundKind             `validate:"required,oneof=reserve operating"`
	Balance     string                      `validate:"omitempty,numeric"`
	Target      string                      `validate:"omitempty,numeric"`
	AnnualRate  string                      `validate:"omitempty,numeric"`
	Compounding domain.CompoundingFrequency `validate:"required,oneof=monthly quarterly annually"`
}

func (s *FundService) Create(input CreateFundInput) (*domain.Fund, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput("fund", input); err != nil {
		return nil, err
	}

	strata, err := s.storage.GetStrata(input.StrataID)
	if err != nil {
		return nil, fmt.Errorf("get strata: %w", err)
	}
	if strata == nil {
		return nil, fmt.Errorf("strata %d: %w", input.StrataID, domain.ErrNotFound)
	}

	fund := &domain.Fund{
		StrataID:    input.StrataID,
		Name:        input.Name,
		Kind:        input.Kind,
		Compounding: input.Compounding,
	}
	if fund.Balance, err = parseAmount(input.Balance); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if fund.Balance.IsNegative() {
		return nil, &InputError{What: "fund", Problems: []string{"Balance must not be negative"}}
	}
	if fund.AnnualRate, err = parseAmount(input.AnnualRate); err != nil {
		return nil, fmt.Errorf("parse annual rate: %w", err)
	}
	if input.Target != "" {
		target, err := decimal.NewFromString(input.Target)
		if err != nil {
			return nil, fmt.Errorf("parse target: %w", err)
		}
		fund.Target = decimal.NewNullDecimal(target)
	}

	if err := s.storage.CreateFund(fund); err != nil {
		return nil, fmt.Errorf("create fund: %w", err)
	}
	return fund, nil
}

func (s *FundService) Get(id int64) (*domain.Fund, error) {
	fund, err := s.storage.GetFund(id)
	if err != nil {
		return nil, fmt.Errorf("get fund: %w", err)
	}
	if fund == nil {
		return nil, fmt.Errorf("fund %d: %w", id, domain.ErrNotFound)
	}
	return fund, nil
}

func (s *FundService) List(strataID int64) ([]*domain.Fund, error) {
	return s.storage.ListFundsByStrata(strataID)
}

type FundSettingsInput struct {
	Name        *string                      `validate:"omitempty,min=1,max=100"`
	Target      *string                      `validate:"omitempty,numeric"`
	AnnualRate  *string                      `validate:"omitempty,numeric"`
	Compounding *domain.CompoundingFrequency `validate:"omitempty,oneof=monthly quarterly annually"`
}

// UpdateSettings patches the non-balance settings of a fund. An empty Target
// clears it.
func (s *FundService) UpdateSettings(ctx context.Context, id int64, input FundSettingsInput) (*domain.Fund, error) {
	clearTarget := input.Target != nil && *input.Target == ""
	if clearTarget {
		input.Target = nil
	}
	if err := validateInput("fund settings", input); err != nil {
		return nil, err
	}

	fund, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		fund.Name = strings.TrimSpace(*input.Name)
	}
	if input.Target != nil {
		target, err := decimal.NewFromString(*input.Target)
		if err != nil {
			return nil, fmt.Errorf("parse target: %w", err)
		}
		fund.Target = decimal.NewNullDecimal(target)
	} else if clearTarget {
		fund.Target = decimal.NullDecimal{}
	}
	if input.AnnualRate != nil {
		if fund.AnnualRate, err = decimal.NewFromString(*input.AnnualRate); err != nil {
			return nil, fmt.Errorf("parse annual rate: %w", err)
		}
	}
	if input.Compounding != nil {
		fund.Compounding = *input.Compounding
	}

	if err := s.storage.UpdateFundSettings(fund); err != nil {
		return nil, fmt.Errorf("update fund: %w", err)
	}
	s.invalidate(ctx, fund.ID)
	return fund, nil
}

type TransactionInput struct {
	FundID            int64                  `validate:"required,gt=0"`
	CounterpartFundID *int64                 `validate:"required_if=Kind transfer,omitempty,gt=0"`
	Kind              domain.TransactionKind `validate:"required,oneof=deposit withdrawal interest transfer"`
	Amount            string                 `validate:"required,numeric"`
	Description       string                 `validate:"max=500"`
}

// Record applies a transaction to the fund balance. Withdrawals and
// transfers fail with ErrInsufficientFunds rather than overdrawing.
func (s *FundService) Record(ctx context.Context, input TransactionInput) (*domain.FundTransaction, error) {
	if err := validateInput("transaction", input); err != nil {
		return nil, err
	}
	if input.Kind != domain.TxTransfer && input.CounterpartFundID != nil {
		return nil, &InputError{What: "transaction", Problems: []string{"CounterpartFundID is only allowed for transfers"}}
	}
	if input.CounterpartFundID != nil && *input.CounterpartFundID == input.FundID {
		return nil, &InputError{What: "transaction", Problems: []string{"CounterpartFundID must differ from FundID"}}
	}

	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if !amount.IsPositive() {
		return nil, &InputError{What: "transaction", Problems: []string{"Amount must be positive"}}
	}

	txn := &domain.FundTransaction{
		FundID:            input.FundID,
		CounterpartFundID: input.CounterpartFundID,
		Kind:              input.Kind,
		Amount:            amount.Round(2),
		Description:       strings.TrimSpace(input.Description),
	}

	err = s.storage.ApplyTransaction(txn, func(fund, counterpart *domain.Fund) error {
		switch txn.Kind {
		case domain.TxDeposit, domain.TxInterest:
			fund.Credit(txn.Amount)
		case domain.TxWithdrawal:
			return fund.Debit(txn.Amount)
		case domain.TxTransfer:
			if err := fund.Debit(txn.Amount); err != nil {
				return err
			}
			counterpart.Credit(txn.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", txn.Kind, err)
	}

	s.invalidate(ctx, txn.FundID)
	if txn.CounterpartFundID != nil {
		s.invalidate(ctx, *txn.CounterpartFundID)
	}
	return txn, nil
}

func (s *FundService) Transactions(fundID int64, limit int) ([]*domain.FundTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.storage.ListTransactions(fundID, limit)
}

// Project forecasts the fund balance. Results are cached per fund state, so
// any transaction or settings change produces a new key.
func (s *FundService) Project(ctx context.Context, fundID int64, years int) (*projection.Projection, error) {
	fund, err := s.Get(fundID)
	if err != nil {
		return nil, err
	}

	key := projectionKey(fund, years)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var p projection.Projection
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
		log.Printf("drop corrupt projection cache entry %s", key)
	}

	p, err := projection.Project(*fund, years)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal projection: %w", err)
	}
	if err := s.cache.Set(ctx, key, string(raw), projectionTTL); err != nil {
		log.Printf("cache projection for fund %d: %v", fundID, err)
	}
	return p, nil
}

func (s *FundService) invalidate(ctx context.Context, fundID int64) {
	if err := s.cache.DeletePrefix(ctx, fmt.Sprintf("projection:%d:", fundID)); err != nil {
		log.Printf("invalidate projections for fund %d: %v", fundID, err)
	}
}

func projectionKey(f *domain.Fund, years int) string {
	return fmt.Sprintf("projection:%d:%s:%s:%s:%d",
		f.ID, f.Balance.StringFixed(2), f.AnnualRate.String(), f.Compounding, years)
}

func (s *FundService) FormatFund(f *domain.Fund) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏦 #%d %s (%s): $%s", f.ID, f.Name, f.Kind, f.Balance.StringFixed(2)))
	if f.Target.Valid {
		sb.WriteString(fmt.Sprintf(" of $%s", f.Target.Decimal.StringFixed(2)))
		if f.TargetReached() {
			sb.WriteString(" ✅")
		}
	}
	if f.AnnualRate.IsPositive() {
		sb.WriteString(fmt.Sprintf("\n   %s%% compounded %s", f.AnnualRate.Shift(2).String(), f.Compounding))
	}
	return sb.String()
}

func (s *FundService) FormatProjection(f *domain.Fund, p *projection.Projection) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📈 %s over %d years\n", f.Name, p.Years))
	for i, row := range p.YearEnd {
		sb.WriteString(fmt.Sprintf("Year %d: $%s\n", i+1, row.Balance.StringFixed(2)))
	}
	sb.WriteString(fmt.Sprintf("Interest earned: $%s", p.TotalInterest.StringFixed(2)))
	if p.TargetMonth > 0 {
		sb.WriteString(fmt.Sprintf("\nTarget reached in month %d", p.TargetMonth))
	}
	return sb.String()
}

func (s *FundService) FormatTransactions(txns []*domain.FundTransaction) string {
	if len(txns) == 0 {
		return "No transactions"
	}

	var sb strings.Builder
	for _, t := range txns {
		sign := "+"
		if t.Kind == domain.TxWithdrawal || t.Kind == domain.TxTransfer {
			sign = "-"
		}
		sb.WriteString(fmt.Sprintf("%s %s%s %s", t.OccurredAt.Format("02 Jan"), sign, t.Amount.StringFixed(2), t.Kind))
		if t.CounterpartFundID != nil {
			sb.WriteString(fmt.Sprintf(" → #%d", *t.CounterpartFundID))
		}
		if t.Description != "" {
			sb.WriteString(" · " + html.EscapeString(t.Description))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
