// Package repository defines the persistence ports the scheduling core
// depends on (spec.md §4.2) plus their GORM-backed implementations.
package repository

import (
	"context"
	"time"

	"github.com/slotwise/scheduling-service/internal/models"
)

// SessionRepository is the port over Session storage.
type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindByClientID(ctx context.Context, clientID string, limit, offset int) ([]models.Session, int64, error)
	FindByRbtID(ctx context.Context, rbtID string, limit, offset int) ([]models.Session, int64, error)
	FindActiveByDateRange(ctx context.Context, start, end time.Time) ([]models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, id string, patch map[string]interface{}) error
	// CheckConflicts returns non-terminal sessions overlapping [start,end) for
	// the given client or RBT, excluding excludeSessionID if non-empty.
	CheckConflicts(ctx context.Context, clientID, rbtID string, start, end time.Time, excludeSessionID string) ([]models.Session, error)
}

// TeamRepository is the port over Team storage.
type TeamRepository interface {
	FindByID(ctx context.Context, id string) (*models.Team, error)
	FindActiveByClientID(ctx context.Context, clientID string) (*models.Team, error)
	FindByRbtID(ctx context.Context, rbtID string) ([]models.Team, error)
	FindByPrimaryRbtID(ctx context.Context, rbtID string) ([]models.Team, error)
	Create(ctx context.Context, team *models.Team) error
	Update(ctx context.Context, id string, patch map[string]interface{}) error
	EndTeam(ctx context.Context, id string, endDate time.Time) error
	AddRbt(ctx context.Context, teamID, rbtID string) error
	RemoveRbt(ctx context.Context, teamID, rbtID string) error
	ChangePrimaryRbt(ctx context.Context, teamID, newPrimaryRbtID string) error
}

// RBTRepository is the port over RBT storage.
type RBTRepository interface {
	FindByID(ctx context.Context, id string) (*models.RBT, error)
	FindActive(ctx context.Context, now time.Time) ([]models.RBT, error)
	FindByQualification(ctx context.Context, qualification string, now time.Time) ([]models.RBT, error)
	// FindAvailableForTimeSlot intersects active availability slots, absence
	// of session conflicts, and active employment for the [start,end) window.
	FindAvailableForTimeSlot(ctx context.Context, start, end time.Time, excludeIDs []string) ([]models.RBT, error)
}

// ClientRepository is the port over Client storage.
type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
}

// AvailabilityRepository is the port over AvailabilitySlot storage.
type AvailabilityRepository interface {
	FindByRbt(ctx context.Context, rbtID string) ([]models.AvailabilitySlot, error)
}

// EventFilter narrows an EventLog query.
type EventFilter struct {
	EventType *models.EventType
	SessionID *string
	RbtID     *string
	ClientID  *string
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}

// EventLogRepository is the port over the append-only ScheduleEvent store.
type EventLogRepository interface {
	Append(ctx context.Context, event *models.ScheduleEvent) error
	Query(ctx context.Context, filter EventFilter) ([]models.ScheduleEvent, error)
}
