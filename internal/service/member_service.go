package service

import (
	"fmt"
	"html"
	"strings"

	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/storage"
)

// MemberService manages the strata, its units and the people linked to them.
type MemberService struct {
	storage *storage.Storage
}

func NewMemberService(s *storage.Storage) *MemberService {
	return &MemberService{storage: s}
}

type SetupInput struct {
	StrataName  string `validate:"required,max=100"`
	TelegramID  int64  `validate:"required,gt=0"`
	ManagerName string `validate:"required,max=100"`
}

// Setup creates a strata and registers its first manager.
func (s *MemberService) Setup(input SetupInput) (*domain.Strata, *domain.User, error) {
	input.StrataName = strings.TrimSpace(input.StrataName)
	input.ManagerName = strings.TrimSpace(input.ManagerName)
	if err := validateInput("setup", input); err != nil {
		return nil, nil, err
	}
	if err := s.ensureUnregistered(input.TelegramID); err != nil {
		return nil, nil, err
	}

	st := &domain.Strata{Name: input.StrataName}
	if err := s.storage.CreateStrata(st); err != nil {
		return nil, nil, fmt.Errorf("create strata: %w", err)
	}
	manager := &domain.User{
		StrataID:   st.ID,
		TelegramID: input.TelegramID,
		Name:       input.ManagerName,
		Role:       domain.RoleManager,
	}
	if err := s.storage.CreateUser(manager); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}
	return st, manager, nil
}

// AddUnits creates one unit per label. Labels already present are skipped.
func (s *MemberService) AddUnits(strataID int64, labels []string) ([]*domain.Unit, error) {
	existing, err := s.storage.ListUnitsByStrata(strataID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, u := range existing {
		seen[strings.ToLower(u.Label)] = true
	}

	var created []*domain.Unit
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" || seen[strings.ToLower(label)] {
			continue
		}
		if len(label) > 50 {
			return created, &InputError{What: "unit", Problems: []string{fmt.Sprintf("label %q is longer than 50 characters", label)}}
		}
		u := &domain.Unit{StrataID: strataID, Label: label}
		if err := s.storage.CreateUnit(u); err != nil {
			return created, fmt.Errorf("create unit: %w", err)
		}
		seen[strings.ToLower(label)] = true
		created = append(created, u)
	}
	return created, nil
}

// UnitByLabel finds a unit of the strata by label, ignoring case.
func (s *MemberService) UnitByLabel(strataID int64, label string) (*domain.Unit, error) {
	units, err := s.storage.ListUnitsByStrata(strataID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	for _, u := range units {
		if strings.EqualFold(u.Label, strings.TrimSpace(label)) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("unit %q: %w", label, domain.ErrNotFound)
}

type RegisterInput struct {
	StrataID   int64           `validate:"required,gt=0"`
	TelegramID int64           `validate:"required,gt=0"`
	Name       string          `validate:"required,max=100"`
	Email      string          `validate:"omitempty,email"`
	Role       domain.UserRole `validate:"required,oneof=owner tenant council manager"`
	UnitLabel  string          `validate:"max=50"`
}

// Register links a Telegram account to the strata. Owners and tenants
// belong to a unit.
func (s *MemberService) Register(input RegisterInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput("member", input); err != nil {
		return nil, err
	}
	needsUnit := input.Role == domain.RoleOwner || input.Role == domain.RoleTenant
	if needsUnit && input.UnitLabel == "" {
		return nil, &InputError{What: "member", Problems: []string{fmt.Sprintf("a %s needs a unit", input.Role)}}
	}
	if err := s.ensureUnregistered(input.TelegramID); err != nil {
		return nil, err
	}

	user := &domain.User{
		StrataID:   input.StrataID,
		TelegramID: input.TelegramID,
		Name:       input.Name,
		Email:      input.Email,
		Role:       input.Role,
	}
	if input.UnitLabel != "" {
		unit, err := s.UnitByLabel(input.StrataID, input.UnitLabel)
		if err != nil {
			return nil, err
		}
		user.UnitID = &unit.ID
	}

	if err := s.storage.CreateUser(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *MemberService) ensureUnregistered(telegramID int64) error {
	existing, err := s.storage.GetUserByTelegramID(telegramID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if existing != nil {
		return &InputError{What: "member", Problems: []string{fmt.Sprintf("Telegram ID %d is already registered", telegramID)}}
	}
	return nil
}

func (s *MemberService) Members(strataID int64) ([]*domain.User, error) {
	return s.storage.ListUsersByStrata(strataID)
}

func (s *MemberService) Units(strataID int64) ([]*domain.Unit, error) {
	return s.storage.ListUnitsByStrata(strataID)
}

// FormatMembers lists members with their role and unit label.
func (s *MemberService) FormatMembers(users []*domain.User, units []*domain.Unit) string {
	if len(users) == 0 {
		return "No members"
	}
	labels := make(map[int64]string, len(units))
	for _, u := range units {
		labels[u.ID] = u.Label
	}

	var sb strings.Builder
	for _, u := range users {
		sb.WriteString(fmt.Sprintf("👤 %s · %s", html.EscapeString(u.Name), u.Role))
		if u.UnitID != nil {
			sb.WriteString(" · " + html.EscapeString(labels[*u.UnitID]))
		}
		if u.TelegramID != 0 {
			sb.WriteString(fmt.Sprintf(" · <code>%d</code>", u.TelegramID))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
