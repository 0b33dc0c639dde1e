package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidRuleShape   = errors.New("invalid recurrence rule")
	ErrUnsatisfiableRule  = errors.New("unsatisfiable recurrence rule")
	ErrSeriesNotActive    = errors.New("reminder series is not active")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidCompounding = errors.New("invalid compounding frequency")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNotFound           = errors.New("not found")
)

// InvalidRuleError names the rule field whose shape does not match the pattern.
type InvalidRuleError struct {
	Pattern Pattern
	Field   string
	Reason  string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid %s recurrence rule: %s %s", e.Pattern, e.Field, e.Reason)
}

func (e *InvalidRuleError) Unwrap() error {
	return ErrInvalidRuleShape
}

// UnsatisfiableRuleError is returned when the bounded search finds no occurrence.
// It matches both ErrUnsatisfiableRule and ErrInvalidRuleShape.
type UnsatisfiableRuleError struct {
	Pattern Pattern
	From    time.Time
	Steps   int
}

func (e *UnsatisfiableRuleError) Error() string {
	return fmt.Sprintf("%s recurrence rule has no occurrence within %d steps after %s",
		e.Pattern, e.Steps, e.From.Format("2006-01-02"))
}

func (e *UnsatisfiableRuleError) Unwrap() []error {
	return []error{ErrUnsatisfiableRule, ErrInvalidRuleShape}
}

type SeriesNotActiveError struct {
	SeriesID int64
	Status   SeriesStatus
}

func (e *SeriesNotActiveError) Error() string {
	return fmt.Sprintf("reminder series %d is %s", e.SeriesID, e.Status)
}

func (e *SeriesNotActiveError) Unwrap() error {
	return ErrSeriesNotActive
}

type TransitionError struct {
	SeriesID int64
	From     SeriesStatus
	To       SeriesStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("reminder series %d: cannot move from %s to %s", e.SeriesID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
