package domain

import "time"

type UserRole string

const (
	RoleOwner   UserRole = "owner"
	RoleTenant  UserRole = "tenant"
	RoleCouncil UserRole = "council"
	RoleManager UserRole = "manager"
)

// Strata is one managed building or complex (a tenant of the system).
type Strata struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type Unit struct {
	ID        int64
	StrataID  int64
	Label     string // "Unit 4B"
	CreatedAt time.Time
}

type User struct {
	ID         int64
	StrataID   int64
	UnitID     *int64
	TelegramID int64 // chat id, 0 = no Telegram
	Name       string
	Email      string
	Role       UserRole
	CreatedAt  time.Time
}

// Reachable reports whether the user has a channel reminders can go to.
func (u *User) Reachable() bool {
	return u.TelegramID != 0
}

// DispatchRecord is one delivery decision for one recipient.
type DispatchRecord struct {
	ID        string
	SeriesID  int64
	UserID    int64
	Category  Category
	Delivered bool
	Reason    string
	SentAt    time.Time
}
