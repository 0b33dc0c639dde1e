package scheduler

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tazhate/strata/config"
	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/recurrence"
	"github.com/tazhate/strata/internal/service"
	"github.com/tazhate/strata/internal/storage"
)

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

const reasonSendFailed = "send_failed"

type Scheduler struct {
	cron              *cron.Cron
	cfg               *config.Config
	storage           *storage.Storage
	reminderService   *service.ReminderService
	preferenceService *service.PreferenceService
	calendarService   *service.CalendarService
	sender            MessageSender
}

func New(cfg *config.Config, storage *storage.Storage, reminderSvc *service.ReminderService, prefSvc *service.PreferenceService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:              c,
		cfg:               cfg,
		storage:           storage,
		reminderService:   reminderSvc,
		preferenceService: prefSvc,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

// SetCalendar makes the scheduler republish series it advances.
func (s *Scheduler) SetCalendar(calendarSvc *service.CalendarService) {
	s.calendarService = calendarSvc
}

func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.CheckSchedule, func() { s.checkReminders(ctx) }); err != nil {
		return fmt.Errorf("add reminder check: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.DigestSpec(), func() { s.morningDigest(ctx) }); err != nil {
		return fmt.Errorf("add morning digest: %w", err)
	}

	s.cron.Start()
	log.Printf("scheduler: started (TZ: %s, check: %q, digest: %s)",
		s.cfg.Timezone, s.cfg.CheckSchedule, s.cfg.DigestTime)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("scheduler: stopped")
}

func (s *Scheduler) checkReminders(ctx context.Context) {
	report, err := s.ProcessDue(ctx, time.Now())
	if err != nil {
		log.Printf("scheduler: process due reminders: %v", err)
		return
	}
	if report.Checked > 0 {
		log.Printf("scheduler: %s", report)
	}
}

func (s *Scheduler) morningDigest(ctx context.Context) {
	sent, err := s.MorningDigest(ctx, time.Now())
	if err != nil {
		log.Printf("scheduler: morning digest: %v", err)
		return
	}
	log.Printf("scheduler: morning digest sent to %d recipients", sent)
}

// Report summarises one ProcessDue run.
type Report struct {
	Checked    int
	Dispatched int
	Deferred   int
	Advanced   int
	Completed  int
	Failed     int
}

func (r Report) String() string {
	return fmt.Sprintf("checked %d, dispatched %d, deferred %d, advanced %d, completed %d, failed %d",
		r.Checked, r.Dispatched, r.Deferred, r.Advanced, r.Completed, r.Failed)
}

// ProcessDue sends reminders for pending auto-send series and advances the
// ones whose due date has been reached. A series whose recipients were all
// held back by quiet hours is left untouched so a later run retries it.
// Failures are logged per series and never stop the run.
func (s *Scheduler) ProcessDue(ctx context.Context, now time.Time) (Report, error) {
	var report Report
	now = now.In(s.cfg.Timezone)

	pending, err := s.reminderService.Pending(now)
	if err != nil {
		return report, err
	}

	for _, rs := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		changed := false
		if recurrence.IsReminderDue(rs, now) {
			outcome := s.dispatch(rs, now)
			if outcome.retry() {
				report.Deferred++
				continue
			}
			if err := recurrence.RecordDispatch(rs, now); err != nil {
				log.Printf("scheduler: record dispatch for series %d: %v", rs.ID, err)
				report.Failed++
				continue
			}
			report.Dispatched++
			changed = true
		}

		if rs.DispatchedForCurrent() {
			advanced, err := recurrence.Advance(rs, now)
			if err != nil {
				log.Printf("scheduler: advance series %d: %v", rs.ID, err)
				report.Failed++
				continue
			}
			if advanced {
				changed = true
				if rs.Status == domain.StatusCompleted {
					report.Completed++
				} else {
					report.Advanced++
				}
				s.republish(ctx, rs)
			}
		}

		if changed {
			if err := s.reminderService.Save(rs); err != nil {
				log.Printf("scheduler: %v", err)
				report.Failed++
			}
		}
	}

	return report, nil
}

// SendNow dispatches the current occurrence of a series immediately,
// whatever its reminder date. The series is not advanced.
func (s *Scheduler) SendNow(ctx context.Context, seriesID int64, now time.Time) (int, error) {
	now = now.In(s.cfg.Timezone)

	rs, err := s.reminderService.Get(seriesID)
	if err != nil {
		return 0, err
	}
	if rs.Status != domain.StatusActive {
		return 0, &domain.SeriesNotActiveError{SeriesID: rs.ID, Status: rs.Status}
	}

	outcome := s.dispatch(rs, now)
	if outcome.delivered == 0 {
		return 0, nil
	}
	if err := recurrence.RecordDispatch(rs, now); err != nil {
		return outcome.delivered, err
	}
	if err := s.reminderService.Save(rs); err != nil {
		return outcome.delivered, err
	}
	return outcome.delivered, nil
}

type dispatchOutcome struct {
	delivered int
	deferred  int
	failed    int
}

// retry reports whether nobody got the reminder but someone still may.
func (o dispatchOutcome) retry() bool {
	return o.delivered == 0 && (o.deferred > 0 || o.failed > 0)
}

// dispatch runs the delivery gate for every recipient of rs and logs each
// decision to the dispatch log.
func (s *Scheduler) dispatch(rs *domain.ReminderSeries, now time.Time) dispatchOutcome {
	var outcome dispatchOutcome

	recipients, err := s.recipients(rs)
	if err != nil {
		log.Printf("scheduler: recipients for series %d: %v", rs.ID, err)
		outcome.failed++
		return outcome
	}

	category := rs.Kind.Category()
	text := s.reminderService.FormatReminder(rs)

	for _, user := range recipients {
		decision, err := s.preferenceService.Decide(user.ID, category, now)
		if err != nil {
			log.Printf("scheduler: preferences for user %d: %v", user.ID, err)
			outcome.failed++
			continue
		}

		record := &domain.DispatchRecord{
			ID:       uuid.NewString(),
			SeriesID: rs.ID,
			UserID:   user.ID,
			Category: category,
			Reason:   string(decision.Reason),
			SentAt:   now,
		}

		switch {
		case decision.Deliver:
			if err := s.send(user.TelegramID, text); err != nil {
				log.Printf("scheduler: send series %d to user %d: %v", rs.ID, user.ID, err)
				record.Reason = reasonSendFailed
				outcome.failed++
			} else {
				record.Delivered = true
				outcome.delivered++
			}
		case decision.Deferred():
			outcome.deferred++
		}

		if err := s.storage.LogDispatch(record); err != nil {
			log.Printf("scheduler: log dispatch for series %d: %v", rs.ID, err)
		}
	}

	return outcome
}

// recipients are the unit's users for unit series and everyone in the strata
// otherwise. Users without a chat are skipped.
func (s *Scheduler) recipients(rs *domain.ReminderSeries) ([]*domain.User, error) {
	var (
		users []*domain.User
		err   error
	)
	if rs.UnitID != nil {
		users, err = s.storage.ListUsersByUnit(*rs.UnitID)
	} else {
		users, err = s.storage.ListUsersByStrata(rs.StrataID)
	}
	if err != nil {
		return nil, err
	}

	reachable := users[:0]
	for _, u := range users {
		if u.Reachable() {
			reachable = append(reachable, u)
		}
	}
	return reachable, nil
}

func (s *Scheduler) send(chatID int64, text string) error {
	if s.sender == nil {
		return fmt.Errorf("no sender configured")
	}
	return s.sender.SendMessage(chatID, text)
}

func (s *Scheduler) republish(ctx context.Context, rs *domain.ReminderSeries) {
	if s.calendarService == nil || !s.calendarService.IsConfigured() {
		return
	}
	if err := s.calendarService.Publish(ctx, rs.ID); err != nil {
		log.Printf("scheduler: publish series %d: %v", rs.ID, err)
	}
}

// MorningDigest sends every reachable user a list of the overdue series of
// their strata that concern them. It is gated as a payment notification.
// Returns the number of messages sent.
func (s *Scheduler) MorningDigest(ctx context.Context, now time.Time) (int, error) {
	now = now.In(s.cfg.Timezone)

	stratas, err := s.storage.ListStrata()
	if err != nil {
		return 0, fmt.Errorf("list strata: %w", err)
	}

	sent := 0
	for _, st := range stratas {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		overdue, err := s.reminderService.Overdue(st.ID, now)
		if err != nil {
			log.Printf("scheduler: overdue for strata %d: %v", st.ID, err)
			continue
		}
		if len(overdue) == 0 {
			continue
		}

		users, err := s.storage.ListUsersByStrata(st.ID)
		if err != nil {
			log.Printf("scheduler: users for strata %d: %v", st.ID, err)
			continue
		}

		for _, user := range users {
			if !user.Reachable() {
				continue
			}
			mine := concerning(overdue, user)
			if len(mine) == 0 {
				continue
			}

			decision, err := s.preferenceService.Decide(user.ID, domain.CategoryPayment, now)
			if err != nil {
				log.Printf("scheduler: preferences for user %d: %v", user.ID, err)
				continue
			}
			if !decision.Deliver {
				continue
			}

			if err := s.send(user.TelegramID, s.formatDigest(st, mine)); err != nil {
				log.Printf("scheduler: send digest to user %d: %v", user.ID, err)
				continue
			}
			sent++
		}
	}

	return sent, nil
}

// concerning keeps strata-wide series and series of the user's own unit.
// Managers and council members see everything.
func concerning(series []*domain.ReminderSeries, user *domain.User) []*domain.ReminderSeries {
	if user.Role == domain.RoleManager || user.Role == domain.RoleCouncil {
		return series
	}
	var mine []*domain.ReminderSeries
	for _, rs := range series {
		if rs.UnitID == nil || (user.UnitID != nil && *rs.UnitID == *user.UnitID) {
			mine = append(mine, rs)
		}
	}
	return mine
}

func (s *Scheduler) formatDigest(st *domain.Strata, overdue []*domain.ReminderSeries) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("☀️ <b>%s: %d overdue</b>\n\n", html.EscapeString(st.Name), len(overdue)))
	sb.WriteString(s.reminderService.FormatSeriesList(overdue))
	return strings.TrimRight(sb.String(), "\n")
}
