package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/tazhate/strata/internal/clients/caldav"
	"github.com/tazhate/strata/internal/domain"
	"github.com/tazhate/strata/internal/recurrence"
	"github.com/tazhate/strata/internal/storage"
)

// CalendarService mirrors reminder series into a CalDAV calendar and
// renders them as iCalendar feeds
type CalendarService struct {
	storage      *storage.Storage
	caldavClient *caldav.Client
	timezone     *time.Location
}

// NewCalendarService creates a new calendar service. client may be nil.
func NewCalendarService(s *storage.Storage, client *caldav.Client, tz *time.Location) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		storage:      s,
		caldavClient: client,
		timezone:     tz,
	}
}

// IsConfigured returns true if CalDAV client is configured
func (s *CalendarService) IsConfigured() bool {
	return s.caldavClient.IsConfigured()
}

// DiscoverCalendars returns available calendars on the server
func (s *CalendarService) DiscoverCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}
	return s.caldavClient.DiscoverCalendars(ctx)
}

// SeriesUID is the stable calendar UID of a series.
func SeriesUID(id int64) string {
	return fmt.Sprintf("series-%d@strata", id)
}

// EventForSeries builds the calendar event for a series, starting at its
// current due date.
func (s *CalendarService) EventForSeries(rs *domain.ReminderSeries) (*caldav.Event, error) {
	rule := rs.Rule
	rule.Anchor = rs.DueDate

	r, err := recurrence.ToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("series %d rrule: %w", rs.ID, err)
	}

	event := &caldav.Event{
		UID:         SeriesUID(rs.ID),
		Summary:     rs.Title,
		Description: rs.Message,
		Start:       rs.DueDate,
	}
	if rule.Pattern != domain.PatternNone {
		opt := r.OrigOptions
		event.Recurrence = &opt
	}
	return event, nil
}

// Publish pushes one series to the calendar. Finished series are removed.
func (s *CalendarService) Publish(ctx context.Context, seriesID int64) error {
	if !s.IsConfigured() {
		return nil
	}

	rs, err := s.storage.GetSeries(seriesID)
	if err != nil {
		return fmt.Errorf("get series: %w", err)
	}
	if rs == nil {
		return fmt.Errorf("series %d: %w", seriesID, domain.ErrNotFound)
	}
	return s.publish(ctx, rs)
}

func (s *CalendarService) publish(ctx context.Context, rs *domain.ReminderSeries) error {
	if rs.Status.IsTerminal() {
		return s.caldavClient.DeleteEvent(ctx, SeriesUID(rs.ID))
	}

	event, err := s.EventForSeries(rs)
	if err != nil {
		return err
	}
	return s.caldavClient.PutEvent(ctx, event)
}

// PublishResult contains sync operation results
type PublishResult struct {
	Published int
	Removed   int
	Errors    []string
}

// PublishStrata syncs every series of a strata, including finished ones so
// their events get removed.
func (s *CalendarService) PublishStrata(ctx context.Context, strataID int64) (*PublishResult, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}

	series, err := s.storage.ListSeriesByStrata(strataID, true)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	result := &PublishResult{}
	for _, rs := range series {
		if err := s.publish(ctx, rs); err != nil {
			log.Printf("publish series %d: %v", rs.ID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("#%d: %v", rs.ID, err))
			continue
		}
		if rs.Status.IsTerminal() {
			result.Removed++
		} else {
			result.Published++
		}
	}
	return result, nil
}

// ExportICS writes the strata's unfinished series as an iCalendar feed.
func (s *CalendarService) ExportICS(w io.Writer, strataID int64, now time.Time) error {
	series, err := s.storage.ListSeriesByStrata(strataID, false)
	if err != nil {
		return fmt.Errorf("list series: %w", err)
	}

	events := make([]*caldav.Event, 0, len(series))
	for _, rs := range series {
		event, err := s.EventForSeries(rs)
		if err != nil {
			return err
		}
		events = append(events, event)
	}
	return caldav.WriteCalendar(w, events, now.In(s.timezone))
}
