package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/slotwise/scheduling-service/internal/apperr"
	"github.com/slotwise/scheduling-service/internal/constraint"
	"github.com/slotwise/scheduling-service/internal/continuity"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/pkg/events"
)

// SchedulingService implements spec.md §4.7: scheduleSession,
// bulkScheduleSessions, findAlternativeTimeSlots, rescheduleSession.
type SchedulingService struct {
	*Deps
}

func NewSchedulingService(d *Deps) *SchedulingService {
	return &SchedulingService{Deps: d}
}

// ScheduleSessionRequest is the input to ScheduleSession. RbtID is optional:
// when empty, the service picks the best available team member via
// ContinuityScorer.
type ScheduleSessionRequest struct {
	ClientID          string
	RbtID             string
	StartTime         time.Time
	Location          string
	Notes             string
	AllowAlternatives bool
	Actor             string
}

// ScheduleSessionResult is the structured outcome of ScheduleSession: a
// success carries Session; a recoverable failure carries Violations (and
// Alternatives, if requested) with Session left nil.
type ScheduleSessionResult struct {
	Session      *models.Session
	Valid        bool
	Violations   []constraint.Violation
	Score        int
	Selection    *continuity.SelectionResult
	Alternatives []AlternativeSlot
}

// AlternativeSlot is one ranked candidate produced by FindAlternativeTimeSlots.
type AlternativeSlot struct {
	RbtID           string
	Start           time.Time
	End             time.Time
	Tier            string // preferred | available | possible
	ContinuityScore int
}

func (s *SchedulingService) ScheduleSession(ctx context.Context, req ScheduleSessionRequest) (*ScheduleSessionResult, error) {
	team, err := s.Teams.FindActiveByClientID(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("lookup active team: %w", err)
	}
	if team == nil {
		return nil, apperr.NotFound("client has no active team")
	}

	endTime := req.StartTime.Add(s.Policy.SessionDuration)
	memberIDs := teamMemberIDs(team)

	rbtID := req.RbtID
	var selection *continuity.SelectionResult

	if rbtID == "" {
		available, err := s.availableMembers(ctx, team, req.StartTime, endTime)
		if err != nil {
			return nil, fmt.Errorf("find available team members: %w", err)
		}
		if len(available) == 0 {
			result := &ScheduleSessionResult{
				Violations: []constraint.Violation{{
					Type:        constraint.ViolationRbtAvailability,
					Description: "no team member is available at the requested time",
				}},
			}
			if req.AllowAlternatives {
				alts, err := s.FindAlternativeTimeSlots(ctx, req.ClientID, req.StartTime, 7)
				if err != nil {
					s.Logger.Error("failed to compute alternatives", "error", err)
				} else {
					result.Alternatives = alts
				}
			}
			return result, nil
		}

		clientSessions, _, err := s.Sessions.FindByClientID(ctx, req.ClientID, 500, 0)
		if err != nil {
			return nil, fmt.Errorf("load client history: %w", err)
		}
		candidates := make([]continuity.Candidate, len(available))
		for i, id := range available {
			candidates[i] = continuity.Candidate{
				RbtID:           id,
				IsPrimaryOnTeam: id == team.PrimaryRbtID,
				Score:           s.continuityScoreFor(clientSessions, id, id == team.PrimaryRbtID),
			}
		}
		sel := continuity.Select(candidates)
		selection = &sel
		rbtID = sel.ChosenRbtID
	}

	existing, err := s.gatherExistingSessions(ctx, req.ClientID, append([]string{rbtID}, memberIDs...))
	if err != nil {
		return nil, fmt.Errorf("load existing sessions: %w", err)
	}
	slots, err := s.Availability.FindByRbt(ctx, rbtID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	clientSessions, _, err := s.Sessions.FindByClientID(ctx, req.ClientID, 500, 0)
	if err != nil {
		return nil, fmt.Errorf("load client history: %w", err)
	}
	contScore := s.continuityScoreFor(clientSessions, rbtID, rbtID == team.PrimaryRbtID)

	candidate := constraint.Candidate{
		ClientID: req.ClientID,
		RbtID:    rbtID,
		Start:    req.StartTime,
		End:      endTime,
		Location: req.Location,
	}
	sc := constraint.SchedulingContext{
		ExistingSessions:  existing,
		IsTeamMember:      isTeamMember(team, rbtID),
		AvailabilitySlots: slots,
		ContinuityScore:   contScore,
	}
	verdict := s.Engine.Evaluate(candidate, sc, s.constraints())

	result := &ScheduleSessionResult{
		Valid:      verdict.Valid,
		Violations: verdict.Violations,
		Score:      verdict.Score,
		Selection:  selection,
	}
	if !verdict.Valid {
		if req.AllowAlternatives {
			alts, err := s.FindAlternativeTimeSlots(ctx, req.ClientID, req.StartTime, 7)
			if err != nil {
				s.Logger.Error("failed to compute alternatives", "error", err)
			} else {
				result.Alternatives = alts
			}
		}
		return result, nil
	}

	session := &models.Session{
		ClientID:  req.ClientID,
		RbtID:     rbtID,
		StartTime: req.StartTime,
		EndTime:   endTime,
		Status:    models.SessionScheduled,
		Location:  req.Location,
		Notes:     req.Notes,
		CreatedBy: req.Actor,
	}
	if err := s.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.invalidateCaches(ctx, req.ClientID, rbtID, team.ID)

	_ = s.Events.Append(ctx, eventlog.Entry{
		Type:      models.EventSessionCreated,
		SessionID: &session.ID,
		RbtID:     &rbtID,
		ClientID:  &req.ClientID,
		NewValues: session,
		Reason:    "session scheduled",
		CreatedBy: req.Actor,
	})
	s.publish(events.SessionCreatedEvent, session.ID, req.ClientID, rbtID, session)

	result.Session = session
	return result, nil
}

// availableMembers intersects the team roster with RBTRepository's
// availability/conflict/employment check for [start,end). It queries the
// repository on every call; the available-RBT cache is not read or written.
func (s *SchedulingService) availableMembers(ctx context.Context, team *models.Team, start, end time.Time) ([]string, error) {
	memberIDs := teamMemberIDs(team)

	available, err := s.RBTs.FindAvailableForTimeSlot(ctx, start, end, nil)
	if err != nil {
		return nil, err
	}
	availableSet := make(map[string]bool, len(available))
	for _, rbt := range available {
		availableSet[rbt.ID] = true
	}

	var result []string
	for _, id := range memberIDs {
		if availableSet[id] {
			result = append(result, id)
		}
	}
	return result, nil
}

// FindAlternativeTimeSlots implements spec.md §4.7.3.
func (s *SchedulingService) FindAlternativeTimeSlots(ctx context.Context, clientID string, preferredDate time.Time, daysAhead int) ([]AlternativeSlot, error) {
	team, err := s.Teams.FindActiveByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("lookup active team: %w", err)
	}
	if team == nil {
		return nil, apperr.NotFound("client has no active team")
	}

	memberIDs := teamMemberIDs(team)
	clientSessions, _, err := s.Sessions.FindByClientID(ctx, clientID, 500, 0)
	if err != nil {
		return nil, fmt.Errorf("load client history: %w", err)
	}
	existing, err := s.gatherExistingSessions(ctx, clientID, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("load existing sessions: %w", err)
	}

	members := make([]constraint.TeamMemberContext, 0, len(memberIDs))
	for _, id := range memberIDs {
		slots, err := s.Availability.FindByRbt(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load availability for %s: %w", id, err)
		}
		members = append(members, constraint.TeamMemberContext{
			RbtID:             id,
			AvailabilitySlots: slots,
			ContinuityScore:   s.continuityScoreFor(clientSessions, id, id == team.PrimaryRbtID),
		})
	}

	cons := s.constraints()
	var alternatives []AlternativeSlot

	for offset := 0; offset <= daysAhead; offset++ {
		date := preferredDate.AddDate(0, 0, offset)
		if !s.Engine.Calendar().IsBusinessDay(date, cons.ValidDays) {
			continue
		}

		byRbt := s.Engine.FindAvailableTimeSlots(clientID, date, members, existing, cons)
		tier := tierFor(offset, daysAhead)

		for _, member := range members {
			windows := byRbt[member.RbtID]
			for _, w := range windows {
				alternatives = append(alternatives, AlternativeSlot{
					RbtID:           member.RbtID,
					Start:           w.Start,
					End:             w.End,
					Tier:            tier,
					ContinuityScore: member.ContinuityScore,
				})
			}
		}
	}

	sort.SliceStable(alternatives, func(i, j int) bool {
		ti, tj := tierRank(alternatives[i].Tier), tierRank(alternatives[j].Tier)
		if ti != tj {
			return ti < tj
		}
		return alternatives[i].ContinuityScore > alternatives[j].ContinuityScore
	})

	if len(alternatives) > 10 {
		alternatives = alternatives[:10]
	}
	return alternatives, nil
}

func tierFor(dayOffset, daysAhead int) string {
	switch {
	case dayOffset == 0:
		return "preferred"
	case dayOffset <= 3:
		return "available"
	default:
		return "possible"
	}
}

func tierRank(tier string) int {
	switch tier {
	case "preferred":
		return 0
	case "available":
		return 1
	default:
		return 2
	}
}

// BulkScheduleRequest expands into candidate instants, walked day by day
// (spec.md §4.7.2).
type BulkScheduleRequest struct {
	ClientID        string
	StartDate       time.Time
	EndDate         time.Time
	PreferredTimes  map[time.Weekday]string // "HH:MM" per weekday
	SessionsPerWeek int
	Location        string
	Actor           string
}

// BulkScheduleFailure records one candidate date that could not be scheduled.
type BulkScheduleFailure struct {
	Date      time.Time
	Reason    string
	Conflicts []constraint.Violation
}

type BulkScheduleResult struct {
	Scheduled []models.Session
	Failures  []BulkScheduleFailure
}

func (s *SchedulingService) BulkScheduleSessions(ctx context.Context, req BulkScheduleRequest) (*BulkScheduleResult, error) {
	result := &BulkScheduleResult{}
	loc := s.location()

	weekStart := req.StartDate
	weeklyCount := 0
	currentWeek := isoWeek(weekStart, loc)

	for date := req.StartDate; !date.After(req.EndDate); date = date.AddDate(0, 0, 1) {
		if w := isoWeek(date, loc); w != currentWeek {
			currentWeek = w
			weeklyCount = 0
		}
		if weeklyCount >= req.SessionsPerWeek {
			continue
		}
		if !s.Engine.Calendar().IsBusinessDay(date, s.constraints().ValidDays) {
			continue
		}

		hhmm, ok := req.PreferredTimes[date.In(loc).Weekday()]
		if !ok {
			continue
		}
		startMinutes, err := parseTimeOfDay(hhmm)
		if err != nil {
			continue
		}
		localDate := date.In(loc)
		start := time.Date(localDate.Year(), localDate.Month(), localDate.Day(), 0, 0, 0, 0, loc).Add(startMinutes)

		scheduleResult, err := s.ScheduleSession(ctx, ScheduleSessionRequest{
			ClientID:          req.ClientID,
			StartTime:         start,
			Location:          req.Location,
			AllowAlternatives: false,
			Actor:             req.Actor,
		})
		if err != nil {
			result.Failures = append(result.Failures, BulkScheduleFailure{Date: start, Reason: err.Error()})
			continue
		}
		if !scheduleResult.Valid {
			result.Failures = append(result.Failures, BulkScheduleFailure{Date: start, Reason: "constraint violation", Conflicts: scheduleResult.Violations})
			continue
		}

		result.Scheduled = append(result.Scheduled, *scheduleResult.Session)
		weeklyCount++
	}

	return result, nil
}

func isoWeek(t time.Time, loc *time.Location) int {
	_, week := t.In(loc).ISOWeek()
	return week
}

func parseTimeOfDay(hhmm string) (time.Duration, error) {
	minutes, err := parseHHMMMinutes(hhmm)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

func parseHHMMMinutes(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return h*60 + m, nil
}

// RescheduleSessionRequest is the input to RescheduleSession.
type RescheduleSessionRequest struct {
	SessionID    string
	NewStartTime time.Time
	Actor        string
	Reason       string
}

// RescheduleSession implements spec.md §4.7.4.
func (s *SchedulingService) RescheduleSession(ctx context.Context, req RescheduleSessionRequest) (*ScheduleSessionResult, error) {
	session, err := s.Sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}
	if session.Status.IsTerminal() {
		return nil, apperr.Conflict("cannot reschedule a terminal session")
	}

	team, err := s.Teams.FindActiveByClientID(ctx, session.ClientID)
	if err != nil {
		return nil, fmt.Errorf("lookup active team: %w", err)
	}
	if team == nil {
		return nil, apperr.NotFound("client has no active team")
	}

	newEnd := req.NewStartTime.Add(s.Policy.SessionDuration)

	existing, err := s.gatherExistingSessions(ctx, session.ClientID, append([]string{session.RbtID}, teamMemberIDs(team)...))
	if err != nil {
		return nil, fmt.Errorf("load existing sessions: %w", err)
	}
	// Exclude the session being moved from its own conflict check.
	filtered := existing[:0:0]
	for _, s := range existing {
		if s.ID != session.ID {
			filtered = append(filtered, s)
		}
	}

	slots, err := s.Availability.FindByRbt(ctx, session.RbtID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	clientSessions, _, err := s.Sessions.FindByClientID(ctx, session.ClientID, 500, 0)
	if err != nil {
		return nil, fmt.Errorf("load client history: %w", err)
	}
	contScore := s.continuityScoreFor(clientSessions, session.RbtID, session.RbtID == team.PrimaryRbtID)

	candidate := constraint.Candidate{
		ClientID: session.ClientID,
		RbtID:    session.RbtID,
		Start:    req.NewStartTime,
		End:      newEnd,
		Location: session.Location,
	}
	sc := constraint.SchedulingContext{
		ExistingSessions:  filtered,
		IsTeamMember:      isTeamMember(team, session.RbtID),
		AvailabilitySlots: slots,
		ContinuityScore:   contScore,
	}
	verdict := s.Engine.Evaluate(candidate, sc, s.constraints())

	result := &ScheduleSessionResult{Valid: verdict.Valid, Violations: verdict.Violations, Score: verdict.Score}
	if !verdict.Valid {
		return result, nil
	}

	oldStart, oldEnd := session.StartTime, session.EndTime
	patch := map[string]interface{}{
		"start_time": req.NewStartTime,
		"end_time":   newEnd,
		"updated_by": req.Actor,
	}
	if err := s.Sessions.Update(ctx, session.ID, patch); err != nil {
		return nil, fmt.Errorf("persist reschedule: %w", err)
	}
	session.StartTime, session.EndTime, session.UpdatedBy = req.NewStartTime, newEnd, req.Actor

	s.invalidateCaches(ctx, session.ClientID, session.RbtID, team.ID)

	_ = s.Events.Append(ctx, eventlog.Entry{
		Type:      models.EventSessionRescheduled,
		SessionID: &session.ID,
		RbtID:     &session.RbtID,
		ClientID:  &session.ClientID,
		OldValues: map[string]interface{}{"startTime": oldStart, "endTime": oldEnd},
		NewValues: map[string]interface{}{"startTime": req.NewStartTime, "endTime": newEnd},
		Reason:    req.Reason,
		CreatedBy: req.Actor,
	})
	s.publish(events.SessionRescheduledEvent, session.ID, session.ClientID, session.RbtID, session)

	result.Session = session
	return result, nil
}
