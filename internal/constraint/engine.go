// Package constraint implements the ConstraintEngine (spec.md §4.4): a pure
// function validating a candidate session against the ten placement rules,
// plus a slot generator for the same rule set. Grounded on the teacher's
// AvailabilityService.GetAvailableSlots slot-walk loop (parseHHMM, buffer
// stepping), generalized from one service's duration to the fixed 3-hour
// session and the full rule checklist.
package constraint

import (
	"fmt"
	"time"

	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/models"
)

// ViolationType identifies which rule failed.
type ViolationType string

const (
	ViolationDuration         ViolationType = "duration"
	ViolationBusinessHours    ViolationType = "business_hours"
	ViolationBusinessDay      ViolationType = "business_day"
	ViolationPastStart        ViolationType = "past_start"
	ViolationTeamMembership   ViolationType = "team_membership"
	ViolationRbtConflict      ViolationType = "rbt_conflict"
	ViolationClientConflict   ViolationType = "client_conflict"
	ViolationRbtAvailability  ViolationType = "rbt_availability"
	ViolationDailyCap         ViolationType = "daily_cap"
	ViolationRestGap          ViolationType = "rest_gap"
)

// Violation describes one failed rule.
type Violation struct {
	Type                ViolationType `json:"type"`
	Description         string        `json:"description"`
	SuggestedResolution string        `json:"suggestedResolution,omitempty"`
}

// Candidate is the session under evaluation.
type Candidate struct {
	ClientID string
	RbtID    string
	Start    time.Time
	End      time.Time
	Location string
}

// SchedulingContext carries the state the engine evaluates the candidate
// against: existing sessions in range, the RBT's team membership for the
// client, and the RBT's availability slots.
type SchedulingContext struct {
	ExistingSessions []models.Session
	IsTeamMember     bool
	AvailabilitySlots []models.AvailabilitySlot
	ContinuityScore  int // 0..100, passed in, contributes to the bonus
}

// SchedulingConstraints is the configurable policy the rules are evaluated
// against (internal/config.SchedulingPolicy supplies production values).
type SchedulingConstraints struct {
	SessionDuration         time.Duration
	BusinessStartMinutes    int // minutes since local midnight
	BusinessEndMinutes      int
	ValidDays               []time.Weekday
	MaxSessionsPerDay       int
	MinBreakBetweenSessions time.Duration
}

// Result is the engine's verdict.
type Result struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
	Score      int         `json:"score"`
}

// Engine evaluates candidates against a shared BusinessCalendar so "not in
// past", business-day, and holiday-exclusion checks are all testable
// deterministically off the same injected Clock.
type Engine struct {
	calendar *clock.BusinessCalendar
}

func NewEngine(calendar *clock.BusinessCalendar) *Engine {
	return &Engine{calendar: calendar}
}

// Calendar exposes the engine's BusinessCalendar so callers that need the
// same business-day/holiday logic outside of Evaluate (e.g. the scheduling
// service's day-by-day slot walk) don't have to re-derive it.
func (e *Engine) Calendar() *clock.BusinessCalendar {
	return e.calendar
}

// Evaluate runs rules 1-10 against the candidate and returns a Result.
// Score starts at 100 and loses points per violation; a clean placement
// gains ContinuityScore/10 bonus points, capped at 100; no slot-centrality
// bonus is applied here. Score is informational only —
// Valid alone gates placement (spec.md §4.4).
func (e *Engine) Evaluate(candidate Candidate, sc SchedulingContext, cons SchedulingConstraints) Result {
	var violations []Violation

	local := candidate.Start.In(e.calendar.Location())
	localEnd := candidate.End.In(e.calendar.Location())

	// 1. duration
	if candidate.End.Sub(candidate.Start) != cons.SessionDuration {
		violations = append(violations, Violation{
			Type:        ViolationDuration,
			Description: fmt.Sprintf("session duration must be exactly %s", cons.SessionDuration),
		})
	}

	// 2. business hours
	startMinutes := local.Hour()*60 + local.Minute()
	endMinutes := localEnd.Hour()*60 + localEnd.Minute()
	if localEnd.Day() != local.Day() {
		// a session ending past local midnight cannot be within business hours
		endMinutes = 24*60 + 1
	}
	if startMinutes < cons.BusinessStartMinutes || endMinutes > cons.BusinessEndMinutes {
		violations = append(violations, Violation{
			Type:                ViolationBusinessHours,
			Description:         "session must fall within business hours",
			SuggestedResolution: "choose a start time later in the business day",
		})
	}

	// 3. business day (includes holiday exclusion)
	if !e.calendar.IsBusinessDay(local, cons.ValidDays) {
		violations = append(violations, Violation{
			Type:                ViolationBusinessDay,
			Description:         fmt.Sprintf("%s is not a configured business day or is a holiday", local.Weekday()),
			SuggestedResolution: "choose a different business day",
		})
	}

	// 4. not in past
	if !candidate.Start.After(e.calendar.Now()) {
		violations = append(violations, Violation{
			Type:        ViolationPastStart,
			Description: "session start must be in the future",
		})
	}

	// 5. team membership
	if !sc.IsTeamMember {
		violations = append(violations, Violation{
			Type:        ViolationTeamMembership,
			Description: "RBT is not a current member of the client's active team",
		})
	}

	// 6/7. RBT and client conflicts
	rbtConflict, clientConflict := false, false
	for _, existing := range sc.ExistingSessions {
		if existing.Status.IsTerminal() {
			continue
		}
		if !candidate.Start.Before(existing.EndTime) || !existing.StartTime.Before(candidate.End) {
			continue
		}
		if existing.RbtID == candidate.RbtID {
			rbtConflict = true
		}
		if existing.ClientID == candidate.ClientID {
			clientConflict = true
		}
	}
	if rbtConflict {
		violations = append(violations, Violation{
			Type:        ViolationRbtConflict,
			Description: "RBT already has a non-cancelled session overlapping this time",
		})
	}
	if clientConflict {
		violations = append(violations, Violation{
			Type:        ViolationClientConflict,
			Description: "client already has a non-cancelled session overlapping this time",
		})
	}

	// 8. RBT availability
	if !withinAvailability(local, localEnd, sc.AvailabilitySlots) {
		violations = append(violations, Violation{
			Type:                ViolationRbtAvailability,
			Description:         "session falls outside the RBT's availability for that day",
			SuggestedResolution: "pick a time within the RBT's published availability",
		})
	}

	// 9. daily cap
	dayCount := countSameDay(local, candidate.RbtID, sc.ExistingSessions, e.calendar.Location())
	if dayCount >= cons.MaxSessionsPerDay {
		violations = append(violations, Violation{
			Type:        ViolationDailyCap,
			Description: fmt.Sprintf("RBT already has %d session(s) scheduled that day", dayCount),
		})
	}

	// 10. rest gap
	if gap := nearestGapViolation(candidate, sc.ExistingSessions, cons.MinBreakBetweenSessions); gap != nil {
		violations = append(violations, *gap)
	}

	score := 100
	for _, v := range violations {
		score -= penaltyFor(v.Type)
	}
	if len(violations) == 0 {
		score += sc.ContinuityScore / 10
		if score > 100 {
			score = 100
		}
	}
	if score < 0 {
		score = 0
	}

	return Result{
		Valid:      len(violations) == 0,
		Violations: violations,
		Score:      score,
	}
}

func penaltyFor(t ViolationType) int {
	switch t {
	case ViolationDuration, ViolationRbtConflict, ViolationClientConflict:
		return 40
	case ViolationBusinessHours, ViolationBusinessDay, ViolationRbtAvailability:
		return 25
	case ViolationPastStart, ViolationTeamMembership:
		return 30
	case ViolationDailyCap, ViolationRestGap:
		return 15
	default:
		return 10
	}
}

func withinAvailability(localStart, localEnd time.Time, slots []models.AvailabilitySlot) bool {
	startMinutes := localStart.Hour()*60 + localStart.Minute()
	endMinutes := localEnd.Hour()*60 + localEnd.Minute()
	weekday := int(localStart.Weekday())

	for _, slot := range slots {
		if !slot.Active || slot.DayOfWeek != weekday {
			continue
		}
		if !slot.IsActiveOn(localStart) {
			continue
		}
		slotStart, err1 := parseHHMM(slot.StartTime)
		slotEnd, err2 := parseHHMM(slot.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if startMinutes >= slotStart && endMinutes <= slotEnd {
			return true
		}
	}
	return false
}

func countSameDay(local time.Time, rbtID string, sessions []models.Session, loc *time.Location) int {
	count := 0
	for _, s := range sessions {
		if s.RbtID != rbtID || s.Status.IsTerminal() {
			continue
		}
		sLocal := s.StartTime.In(loc)
		if sameDate(sLocal, local) {
			count++
		}
	}
	return count
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// nearestGapViolation checks the candidate's gap to the closest adjacent
// non-cancelled session for the same RBT on the same local date.
func nearestGapViolation(candidate Candidate, sessions []models.Session, minBreak time.Duration) *Violation {
	for _, s := range sessions {
		if s.RbtID != candidate.RbtID || s.Status.IsTerminal() {
			continue
		}
		var gap time.Duration
		if s.EndTime.Before(candidate.Start) {
			gap = candidate.Start.Sub(s.EndTime)
		} else if candidate.End.Before(s.StartTime) {
			gap = s.StartTime.Sub(candidate.End)
		} else {
			continue // overlap, already reported as a conflict
		}
		if gap < minBreak {
			return &Violation{
				Type:        ViolationRestGap,
				Description: fmt.Sprintf("only %s between sessions, minimum is %s", gap, minBreak),
			}
		}
	}
	return nil
}

func parseHHMM(s string) (int, error) {
	return clock.ParseHHMM(s)
}
