package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/strata/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// dateLayout is how calendar dates are stored. Lexical order equals date order.
const dateLayout = "2006-01-02"

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS strata (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS units (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strata_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (strata_id) REFERENCES strata(id),
			UNIQUE (strata_id, label)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strata_id INTEGER NOT NULL,
			unit_id INTEGER,
			telegram_id INTEGER NOT NULL DEFAULT 0,
			name TEXT NOT NULL,
			email TEXT DEFAULT '',
			role TEXT NOT NULL DEFAULT 'owner',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (strata_id) REFERENCES strata(id),
			FOREIGN KEY (unit_id) REFERENCES units(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_strata_id ON users(strata_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_unit_id ON users(unit_id)`,
		// NULL category columns mean "never set", which delivers
		`CREATE TABLE IF NOT EXISTS notification_preferences (
			user_id INTEGER PRIMARY KEY,
			email_notifications INTEGER NOT NULL DEFAULT 1,
			maintenance_alerts INTEGER,
			payment_reminders INTEGER,
			meeting_reminders INTEGER,
			announcement_notifications INTEGER,
			quiet_hours_enabled INTEGER NOT NULL DEFAULT 0,
			quiet_hours_start TEXT NOT NULL DEFAULT '22:00',
			quiet_hours_end TEXT NOT NULL DEFAULT '08:00',
			timezone TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS reminder_series (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strata_id INTEGER NOT NULL,
			unit_id INTEGER,
			group_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			message TEXT DEFAULT '',
			kind TEXT NOT NULL,
			amount TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			pattern TEXT NOT NULL,
			interval INTEGER NOT NULL DEFAULT 1,
			anchor_date TEXT NOT NULL,
			end_date TEXT,
			weekdays TEXT NOT NULL DEFAULT '',
			monthly_mode TEXT NOT NULL DEFAULT '',
			day_of_month INTEGER NOT NULL DEFAULT 0,
			week_position TEXT NOT NULL DEFAULT '',
			weekday INTEGER NOT NULL DEFAULT 0,
			month INTEGER NOT NULL DEFAULT 0,
			due_date TEXT NOT NULL,
			next_reminder_date TEXT NOT NULL,
			lead_days INTEGER NOT NULL DEFAULT 0,
			last_sent_at DATETIME,
			last_sent_for TEXT,
			sent_count INTEGER NOT NULL DEFAULT 0,
			auto_send INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (strata_id) REFERENCES strata(id),
			FOREIGN KEY (unit_id) REFERENCES units(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_series_strata_id ON reminder_series(strata_id)`,
		`CREATE INDEX IF NOT EXISTS idx_series_next_reminder ON reminder_series(status, next_reminder_date)`,
		`CREATE INDEX IF NOT EXISTS idx_series_group_id ON reminder_series(group_id)`,
		`ALTER TABLE reminder_series ADD COLUMN last_sent_for TEXT`,
		`CREATE TABLE IF NOT EXISTS funds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strata_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'reserve',
			balance TEXT NOT NULL DEFAULT '0',
			target TEXT,
			annual_rate TEXT NOT NULL DEFAULT '0',
			compounding TEXT NOT NULL DEFAULT 'monthly',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (strata_id) REFERENCES strata(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_funds_strata_id ON funds(strata_id)`,
		`CREATE TABLE IF NOT EXISTS fund_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fund_id INTEGER NOT NULL,
			counterpart_fund_id INTEGER,
			kind TEXT NOT NULL,
			amount TEXT NOT NULL,
			description TEXT DEFAULT '',
			occurred_at DATETIME NOT NULL,
			FOREIGN KEY (fund_id) REFERENCES funds(id),
			FOREIGN KEY (counterpart_fund_id) REFERENCES funds(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fund_transactions_fund_id ON fund_transactions(fund_id)`,
		`CREATE TABLE IF NOT EXISTS dispatch_log (
			id TEXT PRIMARY KEY,
			series_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			category TEXT NOT NULL,
			delivered INTEGER NOT NULL,
			reason TEXT NOT NULL,
			sent_at DATETIME NOT NULL,
			FOREIGN KEY (series_id) REFERENCES reminder_series(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatch_log_series_id ON dispatch_log(series_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Strata ===

func (s *Storage) CreateStrata(st *domain.Strata) error {
	res, err := s.db.Exec(`INSERT INTO strata (name) VALUES (?)`, st.Name)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	st.ID = id
	st.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetStrata(id int64) (*domain.Strata, error) {
	st := &domain.Strata{}
	err := s.db.QueryRow(
		`SELECT id, name, created_at FROM strata WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// ListStrata returns every managed strata
func (s *Storage) ListStrata() ([]*domain.Strata, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM strata ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.Strata
	for rows.Next() {
		st := &domain.Strata{}
		if err := rows.Scan(&st.ID, &st.Name, &st.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, st)
	}
	return list, rows.Err()
}

// === Units ===

func (s *Storage) CreateUnit(u *domain.Unit) error {
	res, err := s.db.Exec(
		`INSERT INTO units (strata_id, label) VALUES (?, ?)`,
		u.StrataID, u.Label,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	u.ID = id
	u.CreatedAt = time.Now()
	return nil
}

func (s *Storage) ListUnitsByStrata(strataID int64) ([]*domain.Unit, error) {
	rows, err := s.db.Query(
		`SELECT id, strata_id, label, created_at FROM units WHERE strata_id = ? ORDER BY id`,
		strataID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*domain.Unit
	for rows.Next() {
		u := &domain.Unit{}
		if err := rows.Scan(&u.ID, &u.StrataID, &u.Label, &u.CreatedAt); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// === Users ===

const userColumns = `id, strata_id, unit_id, telegram_id, name, COALESCE(email, ''), role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	u := &domain.User{}
	var unitID sql.NullInt64
	if err := row.Scan(&u.ID, &u.StrataID, &unitID, &u.TelegramID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	if unitID.Valid {
		u.UnitID = &unitID.Int64
	}
	return u, nil
}

func (s *Storage) CreateUser(u *domain.User) error {
	res, err := s.db.Exec(
		`INSERT INTO users (strata_id, unit_id, telegram_id, name, email, role) VALUES (?, ?, ?, ?, ?, ?)`,
		u.StrataID, u.UnitID, u.TelegramID, u.Name, u.Email, u.Role,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	u.ID = id
	u.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetUserByID(id int64) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Storage) GetUserByTelegramID(telegramID int64) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ListUsersByStrata returns all users of a strata
func (s *Storage) ListUsersByStrata(strataID int64) ([]*domain.User, error) {
	return s.listUsers(`SELECT `+userColumns+` FROM users WHERE strata_id = ? ORDER BY id`, strataID)
}

// ListUsersByUnit returns the owners and tenants of one unit
func (s *Storage) ListUsersByUnit(unitID int64) ([]*domain.User, error) {
	return s.listUsers(`SELECT `+userColumns+` FROM users WHERE unit_id = ? ORDER BY id`, unitID)
}

func (s *Storage) listUsers(query string, args ...any) ([]*domain.User, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}
