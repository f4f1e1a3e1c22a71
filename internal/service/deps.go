// Package service implements the four mutator services spec'd over the
// core (SchedulingService, CancellationService, UnavailabilityService,
// OptimizationService), generalizing the teacher's BookingService/
// AvailabilityService request -> validate -> persist -> invalidate ->
// event -> broadcast pipeline shape (see CreateBooking, UpdateBookingStatus)
// to the ABA scheduling domain.
package service

import (
	"context"
	"time"

	"github.com/slotwise/scheduling-service/internal/cache"
	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/config"
	"github.com/slotwise/scheduling-service/internal/constraint"
	"github.com/slotwise/scheduling-service/internal/continuity"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/repository"
	"github.com/slotwise/scheduling-service/pkg/events"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

// Deps bundles the collaborators every service needs. Each concrete service
// (SchedulingService, CancellationService, ...) embeds *Deps rather than
// repeating the constructor wiring.
type Deps struct {
	Sessions     repository.SessionRepository
	Teams        repository.TeamRepository
	RBTs         repository.RBTRepository
	Clients      repository.ClientRepository
	Availability repository.AvailabilityRepository
	Events       *eventlog.Log
	Cache        cache.AvailabilityCache
	Publisher    *events.Publisher
	Clock        clock.Clock
	Engine       *constraint.Engine
	Policy       config.SchedulingPolicy
	Logger       *logger.Logger
}

func NewDeps(
	sessions repository.SessionRepository,
	teams repository.TeamRepository,
	rbts repository.RBTRepository,
	clients repository.ClientRepository,
	availability repository.AvailabilityRepository,
	eventLog *eventlog.Log,
	c cache.AvailabilityCache,
	publisher *events.Publisher,
	clk clock.Clock,
	engine *constraint.Engine,
	policy config.SchedulingPolicy,
	log *logger.Logger,
) *Deps {
	return &Deps{
		Sessions: sessions, Teams: teams, RBTs: rbts, Clients: clients, Availability: availability,
		Events: eventLog, Cache: c, Publisher: publisher, Clock: clk, Engine: engine, Policy: policy, Logger: log,
	}
}

// constraints converts the configured SchedulingPolicy into the engine's
// SchedulingConstraints shape.
func (d *Deps) constraints() constraint.SchedulingConstraints {
	startMin, err := clock.ParseHHMM(d.Policy.BusinessStart)
	if err != nil {
		startMin = 9 * 60
	}
	endMin, err := clock.ParseHHMM(d.Policy.BusinessEnd)
	if err != nil {
		endMin = 19 * 60
	}
	return constraint.SchedulingConstraints{
		SessionDuration:         d.Policy.SessionDuration,
		BusinessStartMinutes:    startMin,
		BusinessEndMinutes:      endMin,
		ValidDays:               d.Policy.ValidDaysAsWeekdays(),
		MaxSessionsPerDay:       d.Policy.MaxSessionsPerDay,
		MinBreakBetweenSessions: d.Policy.MinBreakBetweenSessions,
	}
}

func (d *Deps) location() *time.Location {
	loc, err := time.LoadLocation(d.Policy.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

// gatherExistingSessions returns the union of a client's sessions and the
// sessions of every rbtID listed, deduplicated by id — the pool the
// ConstraintEngine evaluates conflicts, daily caps, and rest gaps against.
func (d *Deps) gatherExistingSessions(ctx context.Context, clientID string, rbtIDs []string) ([]models.Session, error) {
	const window = 500

	seen := make(map[string]bool)
	var all []models.Session

	clientSessions, _, err := d.Sessions.FindByClientID(ctx, clientID, window, 0)
	if err != nil {
		return nil, err
	}
	for _, s := range clientSessions {
		if !seen[s.ID] {
			seen[s.ID] = true
			all = append(all, s)
		}
	}

	for _, rbtID := range rbtIDs {
		rbtSessions, _, err := d.Sessions.FindByRbtID(ctx, rbtID, window, 0)
		if err != nil {
			return nil, err
		}
		for _, s := range rbtSessions {
			if !seen[s.ID] {
				seen[s.ID] = true
				all = append(all, s)
			}
		}
	}

	return all, nil
}

// continuityScoreFor computes a ContinuityScorer score for one RBT against
// a client's session history.
func (d *Deps) continuityScoreFor(clientSessions []models.Session, rbtID string, isPrimary bool) int {
	total, recent := continuity.CountSessionsWith(clientSessions, rbtID, d.Clock.Now(), d.Policy.ContinuityRecencyWindow)
	return continuity.Score(continuity.ScoreInput{
		RbtID:              rbtID,
		IsPrimaryOnTeam:    isPrimary,
		TotalSessionsWith:  total,
		RecentSessionsWith: recent,
	})
}

// invalidateCaches runs the invalidation protocol from spec.md §4.3: the
// client's schedule cache, the RBT's daily schedule cache, and every
// available-RBT entry for the team (keyed by teamID prefix).
func (d *Deps) invalidateCaches(ctx context.Context, clientID, rbtID, teamID string) {
	if d.Cache == nil {
		return
	}
	cache.SafeInvalidate(ctx, d.Cache, d.Logger, cache.NamespaceClientSchedule, clientID)
	cache.SafeInvalidate(ctx, d.Cache, d.Logger, cache.NamespaceRbtSchedule, rbtID)
	if teamID != "" {
		cache.SafeInvalidate(ctx, d.Cache, d.Logger, cache.NamespaceAvailableRbts, teamID+":*")
	}
}

// domainEvent is the structured update message shape of spec.md §6.
type domainEvent struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	ClientID  string      `json:"clientId,omitempty"`
	RbtID     string      `json:"rbtId,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// publish emits a domain event to the NATS publisher. The realtime
// subscription manager consumes the same subjects and fans them out over
// WebSocket; this service layer is unaware of delivery (spec.md §6).
func (d *Deps) publish(subject, sessionID, clientID, rbtID string, data interface{}) {
	if d.Publisher == nil {
		return
	}
	evt := domainEvent{
		Type:      subject,
		SessionID: sessionID,
		ClientID:  clientID,
		RbtID:     rbtID,
		Data:      data,
		Timestamp: d.Clock.Now(),
	}
	if err := d.Publisher.Publish(subject, evt); err != nil {
		d.Logger.Error("failed to publish domain event", "subject", subject, "error", err)
	}
}

func teamMemberIDs(team *models.Team) []string {
	ids := make([]string, len(team.Members))
	for i, m := range team.Members {
		ids[i] = m.RbtID
	}
	return ids
}

// eventlogFilter builds a repository.EventFilter scoped to an event type and
// creation-time window.
func eventlogFilter(eventType *models.EventType, since, until time.Time) repository.EventFilter {
	filter := repository.EventFilter{EventType: eventType, Limit: 1000}
	if !since.IsZero() {
		filter.Since = &since
	}
	if !until.IsZero() {
		filter.Until = &until
	}
	return filter
}

func isTeamMember(team *models.Team, rbtID string) bool {
	if team == nil {
		return false
	}
	for _, m := range team.Members {
		if m.RbtID == rbtID {
			return true
		}
	}
	return false
}
