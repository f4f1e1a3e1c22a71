package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slotwise/scheduling-service/internal/models"
	"gorm.io/gorm"
)

// teamRepository is grounded on the teacher's
// subscribers.HandleBusinessAvailabilityUpdated transactional
// delete-then-recreate idiom, adapted to team-member add/remove rather than
// a full rule-set replacement.
type teamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) FindByID(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).Preload("Members").First(&team, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching team %s: %w", id, err)
	}
	return &team, nil
}

func (r *teamRepository) FindActiveByClientID(ctx context.Context, clientID string) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).Preload("Members").
		Where("client_id = ? AND active = ?", clientID, true).
		First(&team).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching active team for client %s: %w", clientID, err)
	}
	return &team, nil
}

func (r *teamRepository) FindByRbtID(ctx context.Context, rbtID string) ([]models.Team, error) {
	var teams []models.Team
	if err := r.db.WithContext(ctx).Preload("Members").
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.rbt_id = ?", rbtID).
		Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("error fetching teams for rbt %s: %w", rbtID, err)
	}
	return teams, nil
}

func (r *teamRepository) FindByPrimaryRbtID(ctx context.Context, rbtID string) ([]models.Team, error) {
	var teams []models.Team
	if err := r.db.WithContext(ctx).Preload("Members").
		Where("primary_rbt_id = ?", rbtID).
		Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("error fetching teams with primary rbt %s: %w", rbtID, err)
	}
	return teams, nil
}

func (r *teamRepository) Create(ctx context.Context, team *models.Team) error {
	if err := r.db.WithContext(ctx).Create(team).Error; err != nil {
		return fmt.Errorf("error creating team: %w", err)
	}
	return nil
}

func (r *teamRepository) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Team{}).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return fmt.Errorf("error updating team %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("team %s not found for update", id)
	}
	return nil
}

func (r *teamRepository) EndTeam(ctx context.Context, id string, endDate time.Time) error {
	return r.Update(ctx, id, map[string]interface{}{
		"end_date": endDate,
		"active":   false,
	})
}

func (r *teamRepository) AddRbt(ctx context.Context, teamID, rbtID string) error {
	member := models.TeamMember{
		ID:     uuid.New().String(),
		TeamID: teamID,
		RbtID:  rbtID,
	}
	if err := r.db.WithContext(ctx).Create(&member).Error; err != nil {
		return fmt.Errorf("error adding rbt %s to team %s: %w", rbtID, teamID, err)
	}
	return nil
}

func (r *teamRepository) RemoveRbt(ctx context.Context, teamID, rbtID string) error {
	result := r.db.WithContext(ctx).
		Where("team_id = ? AND rbt_id = ?", teamID, rbtID).
		Delete(&models.TeamMember{})
	if result.Error != nil {
		return fmt.Errorf("error removing rbt %s from team %s: %w", rbtID, teamID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("rbt %s is not a member of team %s", rbtID, teamID)
	}
	return nil
}

func (r *teamRepository) ChangePrimaryRbt(ctx context.Context, teamID, newPrimaryRbtID string) error {
	return r.Update(ctx, teamID, map[string]interface{}{
		"primary_rbt_id": newPrimaryRbtID,
	})
}
