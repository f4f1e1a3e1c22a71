package repository

import (
	"context"
	"fmt"

	"github.com/slotwise/scheduling-service/internal/models"
	"gorm.io/gorm"
)

// availabilityRepository is grounded on the teacher's
// AvailabilityRepository.GetAvailabilityRulesFiltered, generalized from a
// business+day filter to the full per-RBT slot list (filtering by day and
// date range is done by the ConstraintEngine/generators, not the port).
type availabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepository{db: db}
}

func (r *availabilityRepository) FindByRbt(ctx context.Context, rbtID string) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	if err := r.db.WithContext(ctx).
		Where("rbt_id = ? AND active = ?", rbtID, true).
		Order("day_of_week asc, start_time asc").
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("error fetching availability slots for rbt %s: %w", rbtID, err)
	}
	return slots, nil
}
