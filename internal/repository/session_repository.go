package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/slotwise/scheduling-service/internal/models"
	"gorm.io/gorm"
)

// sessionRepository is the GORM-backed SessionRepository.
type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching session %s: %w", id, err)
	}
	return &session, nil
}

func (r *sessionRepository) FindByClientID(ctx context.Context, clientID string, limit, offset int) ([]models.Session, int64, error) {
	var sessions []models.Session
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Session{}).Where("client_id = ?", clientID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting client sessions: %w", err)
	}
	if err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("start_time desc").
		Limit(limit).
		Offset(offset).
		Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("error fetching client sessions: %w", err)
	}
	return sessions, total, nil
}

func (r *sessionRepository) FindByRbtID(ctx context.Context, rbtID string, limit, offset int) ([]models.Session, int64, error) {
	var sessions []models.Session
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Session{}).Where("rbt_id = ?", rbtID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting rbt sessions: %w", err)
	}
	if err := r.db.WithContext(ctx).
		Where("rbt_id = ?", rbtID).
		Order("start_time desc").
		Limit(limit).
		Offset(offset).
		Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("error fetching rbt sessions: %w", err)
	}
	return sessions, total, nil
}

func (r *sessionRepository) FindActiveByDateRange(ctx context.Context, start, end time.Time) ([]models.Session, error) {
	var sessions []models.Session
	if err := r.db.WithContext(ctx).
		Where("status NOT IN (?)", terminalStatuses()).
		Where("start_time < ?", end).
		Where("end_time > ?", start).
		Order("start_time asc").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("error fetching sessions in range: %w", err)
	}
	return sessions, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("error creating session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return fmt.Errorf("error updating session %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s not found for update", id)
	}
	return nil
}

// CheckConflicts mirrors the teacher's FindConflictingBookings predicate,
// generalized to the client/RBT pair and scoped to non-terminal statuses
// (spec.md §4.2: "checkConflicts excludes cancelled/no_show sessions").
func (r *sessionRepository) CheckConflicts(ctx context.Context, clientID, rbtID string, start, end time.Time, excludeSessionID string) ([]models.Session, error) {
	var conflicts []models.Session

	q := r.db.WithContext(ctx).
		Where("status NOT IN (?)", terminalStatuses()).
		Where("(client_id = ? OR rbt_id = ?)", clientID, rbtID).
		Where("start_time < ?", end).
		Where("end_time > ?", start)

	if excludeSessionID != "" {
		q = q.Where("id <> ?", excludeSessionID)
	}

	if err := q.Find(&conflicts).Error; err != nil {
		return nil, fmt.Errorf("error finding conflicting sessions for client %s / rbt %s: %w", clientID, rbtID, err)
	}
	return conflicts, nil
}

func terminalStatuses() []models.SessionStatus {
	return []models.SessionStatus{
		models.SessionCancelled,
		models.SessionCompleted,
		models.SessionNoShow,
	}
}
