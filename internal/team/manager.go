// Package team implements TeamManager (spec.md §4.6): team CRUD and member
// operations, appending a ScheduleEvent on every successful mutation.
// Grounded on the teacher's upsert-then-event idiom
// (subscribers/event_handlers.go) and AvailabilityService's
// validate -> persist -> publish pipeline shape.
package team

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slotwise/scheduling-service/internal/apperr"
	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/repository"
)

type Manager struct {
	teams  repository.TeamRepository
	rbts   repository.RBTRepository
	clients repository.ClientRepository
	events *eventlog.Log
	clock  clock.Clock
}

func NewManager(teams repository.TeamRepository, rbts repository.RBTRepository, clients repository.ClientRepository, events *eventlog.Log, c clock.Clock) *Manager {
	return &Manager{teams: teams, rbts: rbts, clients: clients, events: events, clock: c}
}

// QualificationWarning is a non-fatal finding surfaced from AssignTeam: the
// RBT lacks one of the requested qualifications. Spec.md §4.6: "missing
// qualifications produce warnings, not failures."
type QualificationWarning struct {
	RbtID                string
	MissingQualifications []string
}

type AssignTeamRequest struct {
	ClientID               string
	RbtIDs                 []string
	PrimaryRbtID           string
	EffectiveDate          time.Time
	RequiredQualifications []string
	Actor                  string
}

func (m *Manager) AssignTeam(ctx context.Context, req AssignTeamRequest) (*models.Team, []QualificationWarning, error) {
	client, err := m.clients.FindByID(ctx, req.ClientID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup client: %w", err)
	}
	if client == nil {
		return nil, nil, apperr.NotFound("client not found")
	}
	if !client.IsEnrolled(m.clock.Now()) {
		return nil, nil, apperr.Conflict("client is not currently enrolled")
	}

	existing, err := m.teams.FindActiveByClientID(ctx, req.ClientID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup active team: %w", err)
	}
	if existing != nil {
		return nil, nil, apperr.Conflict("client already has an active team")
	}

	if len(req.RbtIDs) == 0 {
		return nil, nil, apperr.New(apperr.KindInvariant, "team must have at least one RBT", nil)
	}
	if !contains(req.RbtIDs, req.PrimaryRbtID) {
		return nil, nil, apperr.New(apperr.KindInvariant, "primary RBT must be a member of the team", nil)
	}

	var warnings []QualificationWarning
	for _, rbtID := range req.RbtIDs {
		rbt, err := m.rbts.FindByID(ctx, rbtID)
		if err != nil {
			return nil, nil, fmt.Errorf("lookup rbt %s: %w", rbtID, err)
		}
		if rbt == nil {
			return nil, nil, apperr.NotFound(fmt.Sprintf("rbt %s not found", rbtID))
		}
		if !rbt.IsActive(m.clock.Now()) {
			return nil, nil, apperr.Conflict(fmt.Sprintf("rbt %s is inactive", rbtID))
		}

		var missing []string
		for _, q := range req.RequiredQualifications {
			if !rbt.HasQualification(q) {
				missing = append(missing, q)
			}
		}
		if len(missing) > 0 {
			warnings = append(warnings, QualificationWarning{RbtID: rbtID, MissingQualifications: missing})
		}
	}

	newTeam := &models.Team{
		ID:            uuid.New().String(),
		ClientID:      req.ClientID,
		PrimaryRbtID:  req.PrimaryRbtID,
		EffectiveDate: req.EffectiveDate,
		Active:        true,
	}
	if err := m.teams.Create(ctx, newTeam); err != nil {
		return nil, nil, fmt.Errorf("create team: %w", err)
	}
	for _, rbtID := range req.RbtIDs {
		if err := m.teams.AddRbt(ctx, newTeam.ID, rbtID); err != nil {
			return nil, nil, fmt.Errorf("add rbt %s to team: %w", rbtID, err)
		}
	}

	m.appendEvent(ctx, models.EventTeamCreated, &newTeam.ID, nil, &req.ClientID, nil, newTeam, "team assigned", req.Actor)

	return newTeam, warnings, nil
}

func (m *Manager) AddRbt(ctx context.Context, teamID, rbtID, actor string) error {
	teamRow, err := m.teams.FindByID(ctx, teamID)
	if err != nil {
		return fmt.Errorf("lookup team: %w", err)
	}
	if teamRow == nil {
		return apperr.NotFound("team not found")
	}
	for _, member := range teamRow.Members {
		if member.RbtID == rbtID {
			return apperr.Conflict("rbt is already a member of this team")
		}
	}
	rbt, err := m.rbts.FindByID(ctx, rbtID)
	if err != nil {
		return fmt.Errorf("lookup rbt: %w", err)
	}
	if rbt == nil {
		return apperr.NotFound("rbt not found")
	}
	if !rbt.IsActive(m.clock.Now()) {
		return apperr.Conflict("rbt is inactive")
	}

	if err := m.teams.AddRbt(ctx, teamID, rbtID); err != nil {
		return fmt.Errorf("add rbt: %w", err)
	}

	m.appendEvent(ctx, models.EventRbtAdded, &teamID, &rbtID, &teamRow.ClientID, nil, map[string]string{"rbtId": rbtID}, "rbt added to team", actor)
	return nil
}

func (m *Manager) RemoveRbt(ctx context.Context, teamID, rbtID, actor string) error {
	teamRow, err := m.teams.FindByID(ctx, teamID)
	if err != nil {
		return fmt.Errorf("lookup team: %w", err)
	}
	if teamRow == nil {
		return apperr.NotFound("team not found")
	}
	if teamRow.PrimaryRbtID == rbtID {
		return apperr.New(apperr.KindInvariant, "cannot remove the primary RBT from a team", nil)
	}

	if err := m.teams.RemoveRbt(ctx, teamID, rbtID); err != nil {
		return fmt.Errorf("remove rbt: %w", err)
	}

	m.appendEvent(ctx, models.EventRbtRemoved, &teamID, &rbtID, &teamRow.ClientID, map[string]string{"rbtId": rbtID}, nil, "rbt removed from team", actor)
	return nil
}

func (m *Manager) ChangePrimaryRbt(ctx context.Context, teamID, newPrimaryRbtID, actor string) error {
	teamRow, err := m.teams.FindByID(ctx, teamID)
	if err != nil {
		return fmt.Errorf("lookup team: %w", err)
	}
	if teamRow == nil {
		return apperr.NotFound("team not found")
	}

	isMember := false
	for _, member := range teamRow.Members {
		if member.RbtID == newPrimaryRbtID {
			isMember = true
			break
		}
	}
	if !isMember {
		return apperr.New(apperr.KindInvariant, "new primary must already be a team member", nil)
	}

	oldPrimary := teamRow.PrimaryRbtID
	if err := m.teams.ChangePrimaryRbt(ctx, teamID, newPrimaryRbtID); err != nil {
		return fmt.Errorf("change primary rbt: %w", err)
	}

	m.appendEvent(ctx, models.EventPrimaryChanged, &teamID, &newPrimaryRbtID, &teamRow.ClientID,
		map[string]string{"primaryRbtId": oldPrimary}, map[string]string{"primaryRbtId": newPrimaryRbtID}, "primary RBT changed", actor)
	return nil
}

// EndTeam sets the team's end date and clears its active flag. Idempotent:
// ending an already-ended team is a no-op success (spec.md §4.6).
func (m *Manager) EndTeam(ctx context.Context, teamID string, endDate time.Time, actor string) error {
	teamRow, err := m.teams.FindByID(ctx, teamID)
	if err != nil {
		return fmt.Errorf("lookup team: %w", err)
	}
	if teamRow == nil {
		return apperr.NotFound("team not found")
	}
	if !teamRow.Active {
		return nil
	}
	if endDate.Before(teamRow.EffectiveDate) {
		return apperr.New(apperr.KindInvariant, "end date must be on or after the effective date", nil)
	}

	if err := m.teams.EndTeam(ctx, teamID, endDate); err != nil {
		return fmt.Errorf("end team: %w", err)
	}

	m.appendEvent(ctx, models.EventTeamEnded, &teamID, nil, &teamRow.ClientID, nil, map[string]interface{}{"endDate": endDate}, "team ended", actor)
	return nil
}

func (m *Manager) appendEvent(ctx context.Context, eventType models.EventType, _ *string, rbtID, clientID *string, oldValues, newValues interface{}, reason, actor string) {
	_ = m.events.Append(ctx, eventlog.Entry{
		Type:      eventType,
		RbtID:     rbtID,
		ClientID:  clientID,
		OldValues: oldValues,
		NewValues: newValues,
		Reason:    reason,
		CreatedBy: actor,
	})
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
