package clock

import (
	"fmt"
	"time"
)

// BusinessCalendar implements spec.md §4.1: "now", weekday tests, business
// hours policy. Pure aside from delegating "now" to the injected Clock;
// holidays are injected as a set of dates so no component reaches out to
// an external calendar service.
type BusinessCalendar struct {
	clock           Clock
	holidays        map[string]struct{} // "2006-01-02" -> present
	location        *time.Location
	businessStartHH int
	businessStartMM int
	businessEndHH   int
	businessEndMM   int
	sessionDuration time.Duration
}

// BusinessHours is the (start, end) window, expressed in local HH:MM.
type BusinessHours struct {
	Start string
	End   string
}

const (
	defaultBusinessStart = "09:00"
	defaultBusinessEnd   = "19:00"
)

// DefaultSessionDuration is the fixed ABA session length (spec.md §3/§9):
// authoritative at the database layer; any duration passed in a request
// is informational only.
const DefaultSessionDuration = 3 * time.Hour

func NewBusinessCalendar(c Clock, location *time.Location, holidays []time.Time) *BusinessCalendar {
	if location == nil {
		location = time.UTC
	}
	h := make(map[string]struct{}, len(holidays))
	for _, d := range holidays {
		h[d.In(location).Format("2006-01-02")] = struct{}{}
	}
	return &BusinessCalendar{
		clock:           c,
		holidays:        h,
		location:        location,
		businessStartHH: 9,
		businessEndHH:   19,
		sessionDuration: DefaultSessionDuration,
	}
}

func (bc *BusinessCalendar) Now() time.Time {
	return bc.clock.Now()
}

func (bc *BusinessCalendar) Location() *time.Location {
	return bc.location
}

func (bc *BusinessCalendar) SessionDuration() time.Duration {
	return bc.sessionDuration
}

// BusinessHoursWindow returns the (start, end) local time-of-day bounds.
func (bc *BusinessCalendar) BusinessHoursWindow() (startHH, startMM, endHH, endMM int) {
	return bc.businessStartHH, bc.businessStartMM, bc.businessEndHH, bc.businessEndMM
}

// IsBusinessDay reports whether t falls on a configured business weekday
// (Mon..Fri by default) and is not a holiday.
func (bc *BusinessCalendar) IsBusinessDay(t time.Time, validDays []time.Weekday) bool {
	local := t.In(bc.location)
	if _, holiday := bc.holidays[local.Format("2006-01-02")]; holiday {
		return false
	}
	if len(validDays) == 0 {
		validDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	}
	for _, d := range validDays {
		if local.Weekday() == d {
			return true
		}
	}
	return false
}

// LocalMinutesOfDay returns the minutes since local midnight for t.
func LocalMinutesOfDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

// ParseHHMM parses an "HH:MM" string into minutes since midnight.
func ParseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time format %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time out of range: %s", s)
	}
	return h*60 + m, nil
}
