package repository

import (
	"context"
	"fmt"

	"github.com/slotwise/scheduling-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// eventLogRepository is grounded on the teacher's upsert-on-conflict idiom
// (subscribers.HandleBusinessServiceCreated's clause.OnConflict), inverted
// from DoUpdates to DoNothing so a caller-supplied id makes Append
// idempotent rather than an update (spec.md §4.11: "duplicates are
// rejected").
type eventLogRepository struct {
	db *gorm.DB
}

func NewEventLogRepository(db *gorm.DB) EventLogRepository {
	return &eventLogRepository{db: db}
}

func (r *eventLogRepository) Append(ctx context.Context, event *models.ScheduleEvent) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(event).Error
	if err != nil {
		return fmt.Errorf("error appending schedule event: %w", err)
	}
	return nil
}

func (r *eventLogRepository) Query(ctx context.Context, filter EventFilter) ([]models.ScheduleEvent, error) {
	q := r.db.WithContext(ctx).Model(&models.ScheduleEvent{})

	if filter.EventType != nil {
		q = q.Where("event_type = ?", *filter.EventType)
	}
	if filter.SessionID != nil {
		q = q.Where("session_id = ?", *filter.SessionID)
	}
	if filter.RbtID != nil {
		q = q.Where("rbt_id = ?", *filter.RbtID)
	}
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		q = q.Where("created_at <= ?", *filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var events []models.ScheduleEvent
	if err := q.Order("created_at desc").Limit(limit).Offset(filter.Offset).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("error querying schedule events: %w", err)
	}
	return events, nil
}
