package service

import (
	"context"
	"fmt"
	"time"

	"github.com/slotwise/scheduling-service/internal/apperr"
	"github.com/slotwise/scheduling-service/internal/continuity"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/pkg/events"
)

// UnavailabilityService implements spec.md §4.9.
type UnavailabilityService struct {
	*Deps
}

func NewUnavailabilityService(d *Deps) *UnavailabilityService {
	return &UnavailabilityService{Deps: d}
}

type ProcessUnavailabilityRequest struct {
	RbtID         string
	StartDate     time.Time
	EndDate       time.Time
	Reason        string
	Type          string // e.g. "sick", "vacation", "training"
	Actor         string
	AutoReassign  bool
}

// ReassignmentStatus is the outcome of one session's reassignment attempt.
type ReassignmentStatus string

const (
	ReassignmentSuccessful ReassignmentStatus = "successful"
	ReassignmentFailed     ReassignmentStatus = "failed"
)

// SessionReassignmentResult is the per-session outcome (spec.md §4.9).
type SessionReassignmentResult struct {
	SessionID       string
	Status          ReassignmentStatus
	NewRbtID        string
	NewStart        *time.Time
	NewEnd          *time.Time
	Reason          string
	ErrorMessage    string
	ContinuityScore int
}

type ProcessUnavailabilityResult struct {
	AffectedSessions []models.Session
	Reassignments    []SessionReassignmentResult
}

// timeBand is a fixed time-of-day window scanned for a reassignment slot
// when the chosen RBT has a time conflict and the policy allows time
// changes (spec.md §4.9 step 4d).
type timeBand struct {
	startHour, endHour int
}

var timeBands = []timeBand{
	{9, 12},  // morning
	{13, 16}, // afternoon
	{16, 19}, // late
}

func (s *UnavailabilityService) ProcessRBTUnavailability(ctx context.Context, req ProcessUnavailabilityRequest) (*ProcessUnavailabilityResult, error) {
	rbt, err := s.RBTs.FindByID(ctx, req.RbtID)
	if err != nil {
		return nil, fmt.Errorf("lookup rbt: %w", err)
	}
	if rbt == nil {
		return nil, apperr.NotFound("rbt not found")
	}
	if !rbt.IsActive(s.Clock.Now()) {
		return nil, apperr.Conflict("rbt is not active")
	}

	affected, _, err := s.Sessions.FindByRbtID(ctx, req.RbtID, 1000, 0)
	if err != nil {
		return nil, fmt.Errorf("load rbt sessions: %w", err)
	}
	var inWindow []models.Session
	for _, sess := range affected {
		if sess.Status != models.SessionScheduled && sess.Status != models.SessionConfirmed {
			continue
		}
		if sess.StartTime.Before(req.StartDate) || sess.StartTime.After(req.EndDate) {
			continue
		}
		inWindow = append(inWindow, sess)
	}

	_ = s.Events.Append(ctx, eventlog.Entry{
		Type:      models.EventRbtUnavailable,
		RbtID:     &req.RbtID,
		Reason:    req.Reason,
		Metadata:  map[string]interface{}{"type": req.Type, "startDate": req.StartDate, "endDate": req.EndDate},
		CreatedBy: req.Actor,
	})
	s.publish(events.RbtUnavailableEvent, "", "", req.RbtID, map[string]interface{}{
		"reason": req.Reason, "type": req.Type, "startDate": req.StartDate, "endDate": req.EndDate,
	})

	result := &ProcessUnavailabilityResult{AffectedSessions: inWindow}
	if !req.AutoReassign {
		return result, nil
	}

	for _, sess := range inWindow {
		result.Reassignments = append(result.Reassignments, s.reassignSession(ctx, sess, req))
	}
	return result, nil
}

func (s *UnavailabilityService) reassignSession(ctx context.Context, sess models.Session, req ProcessUnavailabilityRequest) SessionReassignmentResult {
	team, err := s.Teams.FindActiveByClientID(ctx, sess.ClientID)
	if err != nil || team == nil {
		return SessionReassignmentResult{SessionID: sess.ID, Status: ReassignmentFailed, ErrorMessage: "no active team for client"}
	}

	clientSessions, _, err := s.Sessions.FindByClientID(ctx, sess.ClientID, 500, 0)
	if err != nil {
		return SessionReassignmentResult{SessionID: sess.ID, Status: ReassignmentFailed, ErrorMessage: err.Error()}
	}

	var candidates []continuity.Candidate
	candidateByID := map[string]models.RBT{}
	for _, member := range team.Members {
		if member.RbtID == req.RbtID {
			continue
		}
		rbt, err := s.RBTs.FindByID(ctx, member.RbtID)
		if err != nil || rbt == nil || !rbt.IsActive(s.Clock.Now()) {
			continue
		}
		conflicts, err := s.Sessions.CheckConflicts(ctx, sess.ClientID, member.RbtID, sess.StartTime, sess.EndTime, sess.ID)
		if err != nil || len(conflicts) > 0 {
			continue
		}
		candidateByID[member.RbtID] = *rbt
		candidates = append(candidates, continuity.Candidate{
			RbtID:           member.RbtID,
			IsPrimaryOnTeam: member.RbtID == team.PrimaryRbtID,
			Score:           s.continuityScoreFor(clientSessions, member.RbtID, member.RbtID == team.PrimaryRbtID),
		})
	}

	if len(candidates) > 0 {
		sel := continuity.Select(candidates)
		return s.applyReassignment(ctx, sess, sel.ChosenRbtID, sess.StartTime, sess.EndTime, sel.ChosenScore, req)
	}

	if !s.Policy.AllowTimeChanges {
		return SessionReassignmentResult{SessionID: sess.ID, Status: ReassignmentFailed, ErrorMessage: "no other team members available"}
	}

	for _, member := range team.Members {
		if member.RbtID == req.RbtID {
			continue
		}
		rbt, err := s.RBTs.FindByID(ctx, member.RbtID)
		if err != nil || rbt == nil || !rbt.IsActive(s.Clock.Now()) {
			continue
		}
		newStart, newEnd, ok := s.findRescheduleSlot(ctx, sess, member.RbtID)
		if !ok {
			continue
		}
		score := s.continuityScoreFor(clientSessions, member.RbtID, member.RbtID == team.PrimaryRbtID)
		return s.applyReassignment(ctx, sess, member.RbtID, newStart, newEnd, score, req)
	}

	return SessionReassignmentResult{SessionID: sess.ID, Status: ReassignmentFailed, ErrorMessage: "no other team members available"}
}

// findRescheduleSlot scans the next maxDaysToReschedule business days in
// fixed time bands, hourly steps, for a 3-hour slot with no conflict for
// either party (spec.md §4.9 step 4d).
func (s *UnavailabilityService) findRescheduleSlot(ctx context.Context, sess models.Session, candidateRbtID string) (time.Time, time.Time, bool) {
	loc := s.location()
	cons := s.constraints()

	for dayOffset := 1; dayOffset <= s.Policy.MaxDaysToReschedule; dayOffset++ {
		date := sess.StartTime.AddDate(0, 0, dayOffset)
		if !s.Engine.Calendar().IsBusinessDay(date, cons.ValidDays) {
			continue
		}
		localDate := date.In(loc)
		dayStart := time.Date(localDate.Year(), localDate.Month(), localDate.Day(), 0, 0, 0, 0, loc)

		for _, band := range timeBands {
			for hour := band.startHour; hour+int(cons.SessionDuration.Hours()) <= band.endHour; hour++ {
				start := dayStart.Add(time.Duration(hour) * time.Hour)
				end := start.Add(cons.SessionDuration)

				clientConflicts, err := s.Sessions.CheckConflicts(ctx, sess.ClientID, candidateRbtID, start, end, sess.ID)
				if err != nil || len(clientConflicts) > 0 {
					continue
				}
				return start, end, true
			}
		}
	}
	return time.Time{}, time.Time{}, false
}

func (s *UnavailabilityService) applyReassignment(ctx context.Context, sess models.Session, newRbtID string, newStart, newEnd time.Time, score int, req ProcessUnavailabilityRequest) SessionReassignmentResult {
	patch := map[string]interface{}{
		"rbt_id":     newRbtID,
		"start_time": newStart,
		"end_time":   newEnd,
		"updated_by": req.Actor,
	}
	if err := s.Sessions.Update(ctx, sess.ID, patch); err != nil {
		return SessionReassignmentResult{SessionID: sess.ID, Status: ReassignmentFailed, ErrorMessage: err.Error()}
	}

	team, _ := s.Teams.FindActiveByClientID(ctx, sess.ClientID)
	teamID := ""
	if team != nil {
		teamID = team.ID
	}
	s.invalidateCaches(ctx, sess.ClientID, req.RbtID, teamID)
	s.invalidateCaches(ctx, sess.ClientID, newRbtID, teamID)

	_ = s.Events.Append(ctx, eventlog.Entry{
		Type:      models.EventSessionRescheduled,
		SessionID: &sess.ID,
		RbtID:     &newRbtID,
		ClientID:  &sess.ClientID,
		OldValues: map[string]interface{}{"rbtId": req.RbtID, "startTime": sess.StartTime, "endTime": sess.EndTime},
		NewValues: map[string]interface{}{"rbtId": newRbtID, "startTime": newStart, "endTime": newEnd},
		Reason:    "rbt unavailability: " + req.Reason,
		CreatedBy: req.Actor,
	})
	s.publish(events.SessionRescheduledEvent, sess.ID, sess.ClientID, newRbtID, map[string]interface{}{
		"sessionId": sess.ID, "newRbtId": newRbtID, "newStart": newStart, "newEnd": newEnd,
	})

	return SessionReassignmentResult{
		SessionID:       sess.ID,
		Status:          ReassignmentSuccessful,
		NewRbtID:        newRbtID,
		NewStart:        &newStart,
		NewEnd:          &newEnd,
		ContinuityScore: score,
	}
}

// BulkUnavailabilityRequest applies ProcessRBTUnavailability to a list of
// (RBT, window) requests (spec.md §4.9: "Bulk variant").
type BulkUnavailabilityRequest struct {
	Requests []ProcessUnavailabilityRequest
}

type BulkUnavailabilityResult struct {
	Results []ProcessUnavailabilityResult
	Errors  []string
}

func (s *UnavailabilityService) ProcessBulkUnavailability(ctx context.Context, bulk BulkUnavailabilityRequest) *BulkUnavailabilityResult {
	result := &BulkUnavailabilityResult{}
	for _, req := range bulk.Requests {
		r, err := s.ProcessRBTUnavailability(ctx, req)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("rbt %s: %s", req.RbtID, err.Error()))
			continue
		}
		result.Results = append(result.Results, *r)
	}
	return result
}

// ResolveUnavailability appends the write-only "unavailability resolved"
// event (spec.md §4.9: "Resolution is a separate write-only event").
func (s *UnavailabilityService) ResolveUnavailability(ctx context.Context, rbtID, actor, note string) error {
	return s.Events.Append(ctx, eventlog.Entry{
		Type:      models.EventUnavailabilityResolved,
		RbtID:     &rbtID,
		Reason:    note,
		CreatedBy: actor,
	})
}
