package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tazhate/strata/internal/domain"
)

// === Funds ===

const fundColumns = `id, strata_id, name, kind, balance, target, annual_rate, compounding, created_at, updated_at`

func scanFund(row interface{ Scan(...any) error }) (*domain.Fund, error) {
	f := &domain.Fund{}
	err := row.Scan(&f.ID, &f.StrataID, &f.Name, &f.Kind, &f.Balance, &f.Target, &f.AnnualRate,
		&f.Compounding, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Storage) CreateFund(f *domain.Fund) error {
	res, err := s.db.Exec(
		`INSERT INTO funds (strata_id, name, kind, balance, target, annual_rate, compounding) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.StrataID, f.Name, f.Kind, f.Balance, f.Target, f.AnnualRate, f.Compounding,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	f.ID = id
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	return nil
}

func (s *Storage) GetFund(id int64) (*domain.Fund, error) {
	f, err := scanFund(s.db.QueryRow(`SELECT `+fundColumns+` FROM funds WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

func (s *Storage) ListFundsByStrata(strataID int64) ([]*domain.Fund, error) {
	rows, err := s.db.Query(`SELECT `+fundColumns+` FROM funds WHERE strata_id = ? ORDER BY id`, strataID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var funds []*domain.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, err
		}
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

// UpdateFundSettings changes everything but the balance, which only moves
// through ApplyTransaction.
func (s *Storage) UpdateFundSettings(f *domain.Fund) error {
	f.UpdatedAt = time.Now()
	_, err := s.db.Exec(
		`UPDATE funds SET name = ?, kind = ?, target = ?, annual_rate = ?, compounding = ?, updated_at = ? WHERE id = ?`,
		f.Name, f.Kind, f.Target, f.AnnualRate, f.Compounding, f.UpdatedAt, f.ID,
	)
	return err
}

// ApplyTransaction loads the fund (and the counterpart for transfers) inside
// one sql.Tx, lets apply change the balances, then writes the balances and the
// transaction row. Nothing is written when apply fails.
func (s *Storage) ApplyTransaction(txn *domain.FundTransaction, apply func(fund, counterpart *domain.Fund) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	fund, err := scanFund(tx.QueryRow(`SELECT `+fundColumns+` FROM funds WHERE id = ?`, txn.FundID))
	if err == sql.ErrNoRows {
		return fmt.Errorf("fund %d: %w", txn.FundID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load fund %d: %w", txn.FundID, err)
	}

	var counterpart *domain.Fund
	if txn.CounterpartFundID != nil {
		counterpart, err = scanFund(tx.QueryRow(`SELECT `+fundColumns+` FROM funds WHERE id = ?`, *txn.CounterpartFundID))
		if err == sql.ErrNoRows {
			return fmt.Errorf("fund %d: %w", *txn.CounterpartFundID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load fund %d: %w", *txn.CounterpartFundID, err)
		}
	}

	if err := apply(fund, counterpart); err != nil {
		return err
	}

	now := time.Now()
	for _, f := range []*domain.Fund{fund, counterpart} {
		if f == nil {
			continue
		}
		if _, err := tx.Exec(`UPDATE funds SET balance = ?, updated_at = ? WHERE id = ?`, f.Balance, now, f.ID); err != nil {
			return fmt.Errorf("update fund %d balance: %w", f.ID, err)
		}
	}

	if txn.OccurredAt.IsZero() {
		txn.OccurredAt = now
	}
	res, err := tx.Exec(
		`INSERT INTO fund_transactions (fund_id, counterpart_fund_id, kind, amount, description, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`,
		txn.FundID, txn.CounterpartFundID, txn.Kind, txn.Amount, txn.Description, txn.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert fund transaction: %w", err)
	}
	id, _ := res.LastInsertId()
	txn.ID = id

	return tx.Commit()
}

// ListTransactions returns a fund's ledger, newest first. Transfers into the
// fund are included.
func (s *Storage) ListTransactions(fundID int64, limit int) ([]*domain.FundTransaction, error) {
	rows, err := s.db.Query(
		`SELECT id, fund_id, counterpart_fund_id, kind, amount, COALESCE(description, ''), occurred_at
		 FROM fund_transactions WHERE fund_id = ? OR counterpart_fund_id = ?
		 ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		fundID, fundID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.FundTransaction
	for rows.Next() {
		t := &domain.FundTransaction{}
		var counterpart sql.NullInt64
		if err := rows.Scan(&t.ID, &t.FundID, &counterpart, &t.Kind, &t.Amount, &t.Description, &t.OccurredAt); err != nil {
			return nil, err
		}
		if counterpart.Valid {
			t.CounterpartFundID = &counterpart.Int64
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
