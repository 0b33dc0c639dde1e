package caldav

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Calendar represents a calendar collection on the server
type Calendar struct {
	DisplayName string
	Path        string
}

// Event is an all-day, optionally recurring calendar entry
type Event struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time // date only
	Recurrence  *rrule.ROption
}
