package constraint_test

import (
	"testing"
	"time"

	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/constraint"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func businessConstraints() constraint.SchedulingConstraints {
	return constraint.SchedulingConstraints{
		SessionDuration:         3 * time.Hour,
		BusinessStartMinutes:    9 * 60,
		BusinessEndMinutes:      19 * 60,
		ValidDays:               []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		MaxSessionsPerDay:       2,
		MinBreakBetweenSessions: 30 * time.Minute,
	}
}

// nextMonday returns a fixed, known Monday at 10:00 UTC so tests don't
// depend on the current date.
func nextMonday() time.Time {
	return time.Date(2026, time.August, 3, 10, 0, 0, 0, time.UTC)
}

// mondaySlots returns one active availability slot covering the whole
// business day of nextMonday(), so rule 8 holds for any in-hours candidate.
func mondaySlots(rbtID string) []models.AvailabilitySlot {
	return []models.AvailabilitySlot{{
		RbtID: rbtID, DayOfWeek: int(time.Monday), StartTime: "09:00", EndTime: "19:00",
		Active: true, EffectiveDate: nextMonday().AddDate(0, -1, 0),
	}}
}

func newEngine(now time.Time) *constraint.Engine {
	return newEngineWithHolidays(now, nil)
}

func newEngineWithHolidays(now time.Time, holidays []time.Time) *constraint.Engine {
	calendar := clock.NewBusinessCalendar(clock.NewFixed(now), time.UTC, holidays)
	return constraint.NewEngine(calendar)
}

func TestEngine_EvaluateValidCandidate(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(-48 * time.Hour))

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "client-1", RbtID: "rbt-1", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true, AvailabilitySlots: mondaySlots("rbt-1")},
		businessConstraints(),
	)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
	assert.Equal(t, 100, result.Score)
}

func TestEngine_DurationMismatch(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(-48 * time.Hour))

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "c", RbtID: "r", Start: start, End: start.Add(2 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true},
		businessConstraints(),
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationDuration)
}

func TestEngine_OutsideBusinessHours(t *testing.T) {
	start := nextMonday().Add(-3 * time.Hour) // 07:00, before the 09:00 open
	engine := newEngine(start.Add(-48 * time.Hour))

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "c", RbtID: "r", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true},
		businessConstraints(),
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationBusinessHours)
}

func TestEngine_WeekendRejected(t *testing.T) {
	start := nextMonday().AddDate(0, 0, 5) // the following Saturday, 10:00
	engine := newEngine(start.Add(-48 * time.Hour))

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "c", RbtID: "r", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true},
		businessConstraints(),
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationBusinessDay)
}

func TestEngine_HolidayRejected(t *testing.T) {
	start := nextMonday() // a Monday, normally a valid business day
	engine := newEngineWithHolidays(start.Add(-48*time.Hour), []time.Time{start})

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "c", RbtID: "r", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true},
		businessConstraints(),
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationBusinessDay)
}

func TestEngine_PastStartRejected(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(24 * time.Hour)) // clock is after the candidate start

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "c", RbtID: "r", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true},
		businessConstraints(),
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationPastStart)
}

func TestEngine_NonTeamMemberRejected(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(-48 * time.Hour))

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "c", RbtID: "r", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: false},
		businessConstraints(),
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationTeamMembership)
}

func TestEngine_RbtConflictRejected(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(-48 * time.Hour))

	existing := models.Session{
		RbtID:     "rbt-1",
		ClientID:  "other-client",
		StartTime: start,
		EndTime:   start.Add(3 * time.Hour),
		Status:    models.SessionScheduled,
	}

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "client-1", RbtID: "rbt-1", Start: start.Add(time.Hour), End: start.Add(4 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true, ExistingSessions: []models.Session{existing}},
		businessConstraints(),
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationRbtConflict)
}

func TestEngine_CancelledSessionDoesNotConflict(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(-48 * time.Hour))

	existing := models.Session{
		RbtID:     "rbt-1",
		ClientID:  "client-1",
		StartTime: start,
		EndTime:   start.Add(3 * time.Hour),
		Status:    models.SessionCancelled,
	}

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "client-1", RbtID: "rbt-1", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true, ExistingSessions: []models.Session{existing}, AvailabilitySlots: mondaySlots("rbt-1")},
		businessConstraints(),
	)

	assert.True(t, result.Valid)
}

func TestEngine_RbtAvailabilityEnforced(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(-48 * time.Hour))

	slot := models.AvailabilitySlot{
		RbtID:         "rbt-1",
		DayOfWeek:     int(start.Weekday()),
		StartTime:     "13:00",
		EndTime:       "17:00",
		Active:        true,
		EffectiveDate: start.AddDate(0, -1, 0),
	}

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "c", RbtID: "rbt-1", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true, AvailabilitySlots: []models.AvailabilitySlot{slot}},
		businessConstraints(),
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationRbtAvailability)
}

func TestEngine_DailyCapEnforced(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(-48 * time.Hour))

	cons := businessConstraints()
	cons.MaxSessionsPerDay = 1

	existing := models.Session{
		RbtID:     "rbt-1",
		ClientID:  "other-client",
		StartTime: start.Add(-5 * time.Hour),
		EndTime:   start.Add(-2 * time.Hour),
		Status:    models.SessionScheduled,
	}

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "client-1", RbtID: "rbt-1", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true, ExistingSessions: []models.Session{existing}},
		cons,
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationDailyCap)
}

func TestEngine_RestGapEnforced(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(-48 * time.Hour))

	cons := businessConstraints()
	cons.MaxSessionsPerDay = 5

	existing := models.Session{
		RbtID:     "rbt-1",
		ClientID:  "other-client",
		StartTime: start.Add(-4 * time.Hour),
		EndTime:   start.Add(-10 * time.Minute), // only 10 min before candidate starts
		Status:    models.SessionScheduled,
	}

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "client-1", RbtID: "rbt-1", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true, ExistingSessions: []models.Session{existing}},
		cons,
	)

	require.False(t, result.Valid)
	assertHasViolation(t, result, constraint.ViolationRestGap)
}

func TestEngine_ContinuityBonusCapsAtHundred(t *testing.T) {
	start := nextMonday()
	engine := newEngine(start.Add(-48 * time.Hour))

	result := engine.Evaluate(
		constraint.Candidate{ClientID: "c", RbtID: "r", Start: start, End: start.Add(3 * time.Hour)},
		constraint.SchedulingContext{IsTeamMember: true, ContinuityScore: 100, AvailabilitySlots: mondaySlots("r")},
		businessConstraints(),
	)

	assert.True(t, result.Valid)
	assert.Equal(t, 100, result.Score)
}

func assertHasViolation(t *testing.T, result constraint.Result, vt constraint.ViolationType) {
	t.Helper()
	for _, v := range result.Violations {
		if v.Type == vt {
			return
		}
	}
	t.Fatalf("expected violation %s, got %+v", vt, result.Violations)
}
