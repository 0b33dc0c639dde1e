package recurrence

import (
	"time"

	"github.com/tazhate/strata/internal/domain"
)

// NewSeries validates the template's rule and returns an active series whose
// first occurrence is the rule anchor.
func NewSeries(template domain.ReminderSeries) (*domain.ReminderSeries, error) {
	if err := template.Rule.Validate(); err != nil {
		return nil, err
	}

	s := template
	s.Status = domain.StatusActive
	s.DueDate = domain.CalendarDate(template.Rule.Anchor, template.Rule.Anchor.Location())
	s.NextReminderDate = s.ReminderDateFor(s.DueDate)
	s.LastSentDate = nil
	s.LastSentFor = nil
	s.SentCount = 0
	return &s, nil
}

// IsOverdue reports whether an active series' due date is before asOf's date.
// Paused and terminal series are never overdue.
func IsOverdue(s *domain.ReminderSeries, asOf time.Time) bool {
	if s.Status != domain.StatusActive {
		return false
	}
	loc := asOf.Location()
	return domain.CalendarDate(s.DueDate, loc).Before(domain.CalendarDate(asOf, loc))
}

// IsReminderDue reports whether a reminder for the current occurrence should
// go out at asOf and has not been sent yet.
func IsReminderDue(s *domain.ReminderSeries, asOf time.Time) bool {
	if s.Status != domain.StatusActive {
		return false
	}
	loc := asOf.Location()
	if domain.CalendarDate(s.NextReminderDate, loc).After(domain.CalendarDate(asOf, loc)) {
		return false
	}
	return !s.DispatchedForCurrent()
}

// Advance moves the series to its next occurrence once the current due date
// has been reached. It reports whether the series changed. When the rule has
// no further occurrence the series becomes completed.
func Advance(s *domain.ReminderSeries, asOf time.Time) (bool, error) {
	if s.Status != domain.StatusActive {
		return false, &domain.SeriesNotActiveError{SeriesID: s.ID, Status: s.Status}
	}

	loc := asOf.Location()
	if domain.CalendarDate(s.DueDate, loc).After(domain.CalendarDate(asOf, loc)) {
		return false, nil
	}

	next, ok, err := Next(s.Rule, domain.CalendarDate(s.DueDate, loc))
	if err != nil {
		return false, err
	}
	if !ok {
		s.Status = domain.StatusCompleted
		return true, nil
	}

	s.DueDate = next
	s.NextReminderDate = s.ReminderDateFor(next)
	return true, nil
}

// RecordDispatch audits a successful send and marks the current occurrence
// as reminded. It never moves the due date, so repeated manual sends cannot
// skip occurrences.
func RecordDispatch(s *domain.ReminderSeries, asOf time.Time) error {
	if s.Status != domain.StatusActive {
		return &domain.SeriesNotActiveError{SeriesID: s.ID, Status: s.Status}
	}
	sent := asOf
	due := s.DueDate
	s.LastSentDate = &sent
	s.LastSentFor = &due
	s.SentCount++
	return nil
}

var transitions = map[domain.SeriesStatus][]domain.SeriesStatus{
	domain.StatusActive: {domain.StatusPaused, domain.StatusCompleted, domain.StatusCancelled},
	domain.StatusPaused: {domain.StatusActive, domain.StatusCancelled},
}

// Transition applies an owner-driven status change.
func Transition(s *domain.ReminderSeries, to domain.SeriesStatus) error {
	for _, allowed := range transitions[s.Status] {
		if allowed == to {
			s.Status = to
			return nil
		}
	}
	return &domain.TransitionError{SeriesID: s.ID, From: s.Status, To: to}
}

func Pause(s *domain.ReminderSeries) error    { return Transition(s, domain.StatusPaused) }
func Resume(s *domain.ReminderSeries) error   { return Transition(s, domain.StatusActive) }
func Cancel(s *domain.ReminderSeries) error   { return Transition(s, domain.StatusCancelled) }
func Complete(s *domain.ReminderSeries) error { return Transition(s, domain.StatusCompleted) }
