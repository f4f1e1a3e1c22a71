// Package eventlog wraps EventLogRepository with JSON-marshaling
// convenience methods for appending ScheduleEvents (spec.md §4.11). The
// repository already guarantees idempotent-by-id append and immutability;
// this package is the one place that knows how to shape an event from a
// mutation's before/after state.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/repository"
	"gorm.io/datatypes"
)

type Log struct {
	repo  repository.EventLogRepository
	clock clock.Clock
}

func New(repo repository.EventLogRepository, c clock.Clock) *Log {
	return &Log{repo: repo, clock: c}
}

// Entry is the data needed to append one ScheduleEvent.
type Entry struct {
	ID        string // caller-supplied; empty means generate one
	Type      models.EventType
	SessionID *string
	RbtID     *string
	ClientID  *string
	OldValues interface{}
	NewValues interface{}
	Reason    string
	Metadata  interface{}
	CreatedBy string
}

func (l *Log) Append(ctx context.Context, e Entry) error {
	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}

	oldJSON, err := marshal(e.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	newJSON, err := marshal(e.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}
	metaJSON, err := marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	event := &models.ScheduleEvent{
		ID:        id,
		EventType: e.Type,
		SessionID: e.SessionID,
		RbtID:     e.RbtID,
		ClientID:  e.ClientID,
		OldValues: datatypes.JSON(oldJSON),
		NewValues: datatypes.JSON(newJSON),
		Reason:    e.Reason,
		Metadata:  datatypes.JSON(metaJSON),
		CreatedBy: e.CreatedBy,
		CreatedAt: l.clock.Now(),
	}

	return l.repo.Append(ctx, event)
}

func (l *Log) Query(ctx context.Context, filter repository.EventFilter) ([]models.ScheduleEvent, error) {
	return l.repo.Query(ctx, filter)
}

func marshal(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
