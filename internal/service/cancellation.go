package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/slotwise/scheduling-service/internal/apperr"
	"github.com/slotwise/scheduling-service/internal/continuity"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/pkg/events"
)

// CancellationService implements spec.md §4.8.
type CancellationService struct {
	*Deps
}

func NewCancellationService(d *Deps) *CancellationService {
	return &CancellationService{Deps: d}
}

type CancelSessionRequest struct {
	SessionID        string
	Reason           string
	Actor            string
	FindAlternatives bool
	MaxAlternatives  int
}

// FreedSlotAlternative is a candidate beneficiary of a just-freed (RBT, time)
// slot: another client on the RBT's team-universe with no conflicting
// session at that time.
type FreedSlotAlternative struct {
	ClientID        string
	ContinuityScore int
}

type CancelSessionResult struct {
	Session      *models.Session
	Alternatives []FreedSlotAlternative
}

func (s *CancellationService) CancelSession(ctx context.Context, req CancelSessionRequest) (*CancelSessionResult, error) {
	session, err := s.Sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}
	if session.Status == models.SessionCancelled {
		return nil, apperr.Conflict("session is already cancelled")
	}
	if session.Status == models.SessionCompleted {
		return nil, apperr.Conflict("cannot cancel a completed session")
	}

	oldStatus := session.Status
	patch := map[string]interface{}{
		"status":              models.SessionCancelled,
		"cancellation_reason": req.Reason,
		"updated_by":          req.Actor,
	}
	if err := s.Sessions.Update(ctx, session.ID, patch); err != nil {
		return nil, fmt.Errorf("persist cancellation: %w", err)
	}
	session.Status = models.SessionCancelled
	session.CancellationReason = req.Reason
	session.UpdatedBy = req.Actor

	team, _ := s.Teams.FindActiveByClientID(ctx, session.ClientID)
	teamID := ""
	if team != nil {
		teamID = team.ID
	}
	s.invalidateCaches(ctx, session.ClientID, session.RbtID, teamID)

	_ = s.Events.Append(ctx, eventlog.Entry{
		Type:      models.EventSessionCancelled,
		SessionID: &session.ID,
		RbtID:     &session.RbtID,
		ClientID:  &session.ClientID,
		OldValues: map[string]interface{}{"status": oldStatus},
		NewValues: map[string]interface{}{"status": models.SessionCancelled},
		Reason:    req.Reason,
		CreatedBy: req.Actor,
	})
	s.publish(events.SessionCancelledEvent, session.ID, session.ClientID, session.RbtID, session)

	result := &CancelSessionResult{Session: session}
	if req.FindAlternatives {
		alts, err := s.findFreedSlotBeneficiaries(ctx, session, req.MaxAlternatives)
		if err != nil {
			s.Logger.Error("failed to compute freed-slot alternatives", "error", err)
		} else {
			result.Alternatives = alts
		}
	}
	return result, nil
}

// findFreedSlotBeneficiaries ranks other clients whose team includes the
// freed RBT and who have no session at the freed time, by continuity score
// (spec.md §4.8).
func (s *CancellationService) findFreedSlotBeneficiaries(ctx context.Context, freed *models.Session, max int) ([]FreedSlotAlternative, error) {
	if max <= 0 {
		max = 5
	}

	teams, err := s.Teams.FindByRbtID(ctx, freed.RbtID)
	if err != nil {
		return nil, fmt.Errorf("lookup teams for rbt: %w", err)
	}

	var beneficiaries []FreedSlotAlternative
	for _, team := range teams {
		if !team.Active || team.ClientID == freed.ClientID {
			continue
		}

		conflicts, err := s.Sessions.CheckConflicts(ctx, team.ClientID, freed.RbtID, freed.StartTime, freed.EndTime, "")
		if err != nil {
			return nil, fmt.Errorf("check conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			continue
		}

		clientSessions, _, err := s.Sessions.FindByClientID(ctx, team.ClientID, 500, 0)
		if err != nil {
			return nil, fmt.Errorf("load client history: %w", err)
		}
		total, recent := continuity.CountSessionsWith(clientSessions, freed.RbtID, s.Clock.Now(), s.Policy.ContinuityRecencyWindow)
		score := continuity.Score(continuity.ScoreInput{
			RbtID:              freed.RbtID,
			IsPrimaryOnTeam:    team.PrimaryRbtID == freed.RbtID,
			TotalSessionsWith:  total,
			RecentSessionsWith: recent,
		})
		beneficiaries = append(beneficiaries, FreedSlotAlternative{ClientID: team.ClientID, ContinuityScore: score})
	}

	sort.SliceStable(beneficiaries, func(i, j int) bool {
		return beneficiaries[i].ContinuityScore > beneficiaries[j].ContinuityScore
	})
	if len(beneficiaries) > max {
		beneficiaries = beneficiaries[:max]
	}
	return beneficiaries, nil
}

// BulkCancelResult applies CancelSession to each id independently: never
// abort the batch on a single failure (spec.md §4.8).
type BulkCancelResult struct {
	Succeeded []CancelSessionResult
	Failed    []BulkCancelFailure
}

type BulkCancelFailure struct {
	SessionID string
	Error     string
}

func (s *CancellationService) BulkCancelSessions(ctx context.Context, requests []CancelSessionRequest) *BulkCancelResult {
	result := &BulkCancelResult{}
	for _, req := range requests {
		r, err := s.CancelSession(ctx, req)
		if err != nil {
			result.Failed = append(result.Failed, BulkCancelFailure{SessionID: req.SessionID, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, *r)
	}
	return result
}

// CancellationStats is the aggregate query over cancellation events
// (spec.md §4.8: "counts by reason, by RBT, and average notice time").
type CancellationStats struct {
	ByReason           map[string]int
	ByRbt              map[string]int
	AverageNoticeHours float64
}

func (s *CancellationService) CancellationStatsFor(ctx context.Context, since, until time.Time) (*CancellationStats, error) {
	cancelledType := models.EventSessionCancelled
	evts, err := s.Events.Query(ctx, eventlogFilter(&cancelledType, since, until))
	if err != nil {
		return nil, fmt.Errorf("query cancellation events: %w", err)
	}

	stats := &CancellationStats{ByReason: map[string]int{}, ByRbt: map[string]int{}}
	var totalNoticeHours float64
	var count int

	for _, e := range evts {
		stats.ByReason[e.Reason]++
		if e.RbtID != nil {
			stats.ByRbt[*e.RbtID]++
		}
		if e.SessionID == nil {
			continue
		}
		session, err := s.Sessions.FindByID(ctx, *e.SessionID)
		if err != nil || session == nil {
			continue
		}
		notice := session.StartTime.Sub(e.CreatedAt).Hours()
		totalNoticeHours += notice
		count++
	}

	if count > 0 {
		stats.AverageNoticeHours = totalNoticeHours / float64(count)
	}
	return stats, nil
}
