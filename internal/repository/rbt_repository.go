package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/slotwise/scheduling-service/internal/models"
	"gorm.io/gorm"
)

type rbtRepository struct {
	db *gorm.DB
}

func NewRBTRepository(db *gorm.DB) RBTRepository {
	return &rbtRepository{db: db}
}

func (r *rbtRepository) FindByID(ctx context.Context, id string) (*models.RBT, error) {
	var rbt models.RBT
	if err := r.db.WithContext(ctx).First(&rbt, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching rbt %s: %w", id, err)
	}
	return &rbt, nil
}

func (r *rbtRepository) FindActive(ctx context.Context, now time.Time) ([]models.RBT, error) {
	var rbts []models.RBT
	if err := r.db.WithContext(ctx).
		Where("termination_date IS NULL OR termination_date > ?", now).
		Find(&rbts).Error; err != nil {
		return nil, fmt.Errorf("error fetching active rbts: %w", err)
	}
	return rbts, nil
}

func (r *rbtRepository) FindByQualification(ctx context.Context, qualification string, now time.Time) ([]models.RBT, error) {
	var rbts []models.RBT
	if err := r.db.WithContext(ctx).
		Where("termination_date IS NULL OR termination_date > ?", now).
		Where("? = ANY(qualifications)", qualification).
		Find(&rbts).Error; err != nil {
		return nil, fmt.Errorf("error fetching rbts with qualification %s: %w", qualification, err)
	}
	return rbts, nil
}

// FindAvailableForTimeSlot intersects active availability slots covering the
// [start,end) window's weekday with absence of session conflicts and active
// employment (spec.md §4.2 guarantee). The availability-slot and conflict
// joins are expressed as correlated subqueries to keep this a single
// round-trip, the same shape as the teacher's single-query repository
// methods.
func (r *rbtRepository) FindAvailableForTimeSlot(ctx context.Context, start, end time.Time, excludeIDs []string) ([]models.RBT, error) {
	var rbts []models.RBT

	weekday := int(start.Weekday())
	startHHMM := start.Format("15:04")
	endHHMM := end.Format("15:04")

	q := r.db.WithContext(ctx).
		Where("termination_date IS NULL OR termination_date > ?", start).
		Where(`EXISTS (
			SELECT 1 FROM availability_slots a
			WHERE a.rbt_id = rbts.id
			  AND a.active = true
			  AND a.day_of_week = ?
			  AND a.start_time <= ?
			  AND a.end_time >= ?
			  AND a.effective_date <= ?
			  AND (a.end_date IS NULL OR a.end_date >= ?)
		)`, weekday, startHHMM, endHHMM, start, start).
		Where(`NOT EXISTS (
			SELECT 1 FROM sessions s
			WHERE s.rbt_id = rbts.id
			  AND s.status NOT IN (?, ?, ?)
			  AND s.start_time < ?
			  AND s.end_time > ?
		)`, models.SessionCancelled, models.SessionCompleted, models.SessionNoShow, end, start)

	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN (?)", excludeIDs)
	}

	if err := q.Find(&rbts).Error; err != nil {
		return nil, fmt.Errorf("error finding available rbts for %s-%s: %w", start, end, err)
	}
	return rbts, nil
}
