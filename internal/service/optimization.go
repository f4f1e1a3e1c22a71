package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/slotwise/scheduling-service/internal/apperr"
	"github.com/slotwise/scheduling-service/internal/constraint"
	"github.com/slotwise/scheduling-service/internal/models"
)

// OptimizationService implements spec.md §4.10.
type OptimizationService struct {
	*Deps
}

func NewOptimizationService(d *Deps) *OptimizationService {
	return &OptimizationService{Deps: d}
}

// ReschedulingPreferences narrows the candidate search (spec.md §4.10).
type ReschedulingPreferences struct {
	MaxDaysFromOriginal int
	AllowDifferentRBT    bool
	PreferredWindows     []TimeOfDayWindow // optional; empty means no filter
}

// TimeOfDayWindow is a local-time-of-day band, e.g. "09:00".."12:00".
type TimeOfDayWindow struct {
	Start string
	End   string
}

// RescheduleOption is one ranked candidate.
type RescheduleOption struct {
	RbtID              string
	Start              time.Time
	End                time.Time
	Rank               int
	OptimizationScore  float64
	ContinuityScore    int
	TimeProximity      float64
	DayProximity       float64
	SlotCentrality     float64
}

type OptimizationMetrics struct {
	TotalOptionsEvaluated int
	ConsideredConstraints []string
	SearchSpaceSize       int
}

type FindOptimalReschedulingOptionsResult struct {
	Options []RescheduleOption
	Metrics OptimizationMetrics
}

const (
	weightContinuity    = 0.45
	weightTimeProximity = 0.25
	weightDayProximity  = 0.20
	weightCentrality    = 0.10
)

// FindOptimalReschedulingOptions generates and scores reschedule candidates
// for a session (spec.md §4.10).
func (s *OptimizationService) FindOptimalReschedulingOptions(ctx context.Context, sessionID string, prefs ReschedulingPreferences, n int) (*FindOptimalReschedulingOptionsResult, error) {
	session, err := s.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}
	if n <= 0 {
		n = 5
	}

	team, err := s.Teams.FindActiveByClientID(ctx, session.ClientID)
	if err != nil {
		return nil, fmt.Errorf("lookup active team: %w", err)
	}
	if team == nil {
		return nil, apperr.NotFound("client has no active team")
	}

	candidateRbtIDs := []string{session.RbtID}
	if prefs.AllowDifferentRBT {
		candidateRbtIDs = teamMemberIDs(team)
	}

	clientSessions, _, err := s.Sessions.FindByClientID(ctx, session.ClientID, 500, 0)
	if err != nil {
		return nil, fmt.Errorf("load client history: %w", err)
	}
	existing, err := s.gatherExistingSessions(ctx, session.ClientID, candidateRbtIDs)
	if err != nil {
		return nil, fmt.Errorf("load existing sessions: %w", err)
	}
	filtered := existing[:0:0]
	for _, ex := range existing {
		if ex.ID != session.ID {
			filtered = append(filtered, ex)
		}
	}

	cons := s.constraints()
	loc := s.location()

	maxDays := prefs.MaxDaysFromOriginal
	if maxDays <= 0 {
		maxDays = 7
	}

	var options []RescheduleOption
	evaluated := 0
	searchSpace := (2*maxDays + 1) * 20 * len(candidateRbtIDs) // half-hour steps across a ~10h day

	for dayOffset := -maxDays; dayOffset <= maxDays; dayOffset++ {
		date := session.StartTime.AddDate(0, 0, dayOffset)
		if !s.Engine.Calendar().IsBusinessDay(date, cons.ValidDays) {
			continue
		}
		localDate := date.In(loc)
		dayStart := time.Date(localDate.Year(), localDate.Month(), localDate.Day(), 0, 0, 0, 0, loc)

		for minuteOfDay := cons.BusinessStartMinutes; minuteOfDay+int(cons.SessionDuration.Minutes()) <= cons.BusinessEndMinutes; minuteOfDay += 30 {
			start := dayStart.Add(time.Duration(minuteOfDay) * time.Minute)
			end := start.Add(cons.SessionDuration)

			if len(prefs.PreferredWindows) > 0 && !withinAnyWindow(start, prefs.PreferredWindows, loc) {
				continue
			}

			for _, rbtID := range candidateRbtIDs {
				evaluated++

				slots, err := s.Availability.FindByRbt(ctx, rbtID)
				if err != nil {
					continue
				}
				isMember := isTeamMember(team, rbtID)
				contScore := s.continuityScoreFor(clientSessions, rbtID, rbtID == team.PrimaryRbtID)

				candidate := constraint.Candidate{ClientID: session.ClientID, RbtID: rbtID, Start: start, End: end, Location: session.Location}
				sc := constraint.SchedulingContext{ExistingSessions: filtered, IsTeamMember: isMember, AvailabilitySlots: slots, ContinuityScore: contScore}
				verdict := s.Engine.Evaluate(candidate, sc, cons)
				if !verdict.Valid {
					continue
				}

				timeProximity := proximityScore(float64(minuteOfDay), float64(cons.BusinessStartMinutes), float64(cons.BusinessEndMinutes), float64(session.StartTime.In(loc).Hour()*60+session.StartTime.In(loc).Minute()))
				dayProximity := proximityScore(float64(dayOffset), float64(-maxDays), float64(maxDays), 0)
				centrality := slotCentrality(minuteOfDay, cons.BusinessStartMinutes, cons.BusinessEndMinutes)

				score := weightContinuity*float64(contScore) + weightTimeProximity*timeProximity + weightDayProximity*dayProximity + weightCentrality*centrality

				options = append(options, RescheduleOption{
					RbtID: rbtID, Start: start, End: end,
					OptimizationScore: score, ContinuityScore: contScore,
					TimeProximity: timeProximity, DayProximity: dayProximity, SlotCentrality: centrality,
				})
			}
		}
	}

	sort.SliceStable(options, func(i, j int) bool { return options[i].OptimizationScore > options[j].OptimizationScore })
	if len(options) > n {
		options = options[:n]
	}
	for i := range options {
		options[i].Rank = i + 1
	}

	return &FindOptimalReschedulingOptionsResult{
		Options: options,
		Metrics: OptimizationMetrics{
			TotalOptionsEvaluated: evaluated,
			ConsideredConstraints: []string{"business_hours", "business_day", "team_membership", "rbt_conflict", "client_conflict", "rbt_availability", "daily_cap", "rest_gap"},
			SearchSpaceSize:       searchSpace,
		},
	}, nil
}

// proximityScore is 100 at value==original, decaying linearly to 0 at
// either boundary (spec.md §4.10: "decaying linearly to 0 at the search
// boundary").
func proximityScore(value, lo, hi, original float64) float64 {
	span := hi - lo
	if span <= 0 {
		return 100
	}
	distance := value - original
	if distance < 0 {
		distance = -distance
	}
	maxDistance := hi - original
	if original-lo > maxDistance {
		maxDistance = original - lo
	}
	if maxDistance <= 0 {
		return 100
	}
	score := 100 * (1 - distance/maxDistance)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// slotCentrality peaks at the midpoint of the business day.
func slotCentrality(minuteOfDay, startMinutes, endMinutes int) float64 {
	mid := float64(startMinutes+endMinutes) / 2
	span := float64(endMinutes-startMinutes) / 2
	if span <= 0 {
		return 100
	}
	distance := float64(minuteOfDay) - mid
	if distance < 0 {
		distance = -distance
	}
	score := 100 * (1 - distance/span)
	if score < 0 {
		score = 0
	}
	return score
}

func withinAnyWindow(t time.Time, windows []TimeOfDayWindow, loc *time.Location) bool {
	local := t.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	for _, w := range windows {
		startMin, err1 := parseHHMMMinutes(w.Start)
		endMin, err2 := parseHHMMMinutes(w.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if minutes >= startMin && minutes < endMin {
			return true
		}
	}
	return false
}

// ReschedulingImpact is the result of AnalyzeReschedulingImpact (spec.md §4.10).
type ReschedulingImpact struct {
	AffectedSessions      []models.Session
	CascadingChanges      int
	NotificationCount     int
	ContinuityDisruption  int // 0..100
	OperationalComplexity int // 0..100
}

func (s *OptimizationService) AnalyzeReschedulingImpact(ctx context.Context, sessionID string, newStart time.Time, newRbtID string) (*ReschedulingImpact, error) {
	session, err := s.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}

	targetRbt := newRbtID
	if targetRbt == "" {
		targetRbt = session.RbtID
	}

	rbtSessions, _, err := s.Sessions.FindByRbtID(ctx, targetRbt, 500, 0)
	if err != nil {
		return nil, fmt.Errorf("load rbt sessions: %w", err)
	}
	loc := s.location()
	var cohort []models.Session
	for _, rs := range rbtSessions {
		if rs.Status.IsTerminal() || rs.ID == session.ID {
			continue
		}
		if sameLocalDate(rs.StartTime, newStart, loc) {
			cohort = append(cohort, rs)
		}
	}

	continuityDisruption := 0
	if targetRbt != session.RbtID {
		clientSessions, _, err := s.Sessions.FindByClientID(ctx, session.ClientID, 500, 0)
		if err != nil {
			return nil, fmt.Errorf("load client history: %w", err)
		}
		team, _ := s.Teams.FindActiveByClientID(ctx, session.ClientID)
		isPrimaryOld, isPrimaryNew := false, false
		if team != nil {
			isPrimaryOld = team.PrimaryRbtID == session.RbtID
			isPrimaryNew = team.PrimaryRbtID == targetRbt
		}
		originalScore := s.continuityScoreFor(clientSessions, session.RbtID, isPrimaryOld)
		newScore := s.continuityScoreFor(clientSessions, targetRbt, isPrimaryNew)
		if drop := originalScore - newScore; drop > 0 {
			continuityDisruption = drop
		}
	}

	complexity := len(cohort) * 15
	if targetRbt != session.RbtID {
		complexity += 20
	}
	if complexity > 100 {
		complexity = 100
	}

	return &ReschedulingImpact{
		AffectedSessions:      cohort,
		CascadingChanges:      len(cohort),
		NotificationCount:     len(cohort) + 1,
		ContinuityDisruption:  continuityDisruption,
		OperationalComplexity: complexity,
	}, nil
}

func sameLocalDate(a, b time.Time, loc *time.Location) bool {
	la, lb := a.In(loc), b.In(loc)
	ay, am, ad := la.Date()
	by, bm, bd := lb.Date()
	return ay == by && am == bm && ad == bd
}
