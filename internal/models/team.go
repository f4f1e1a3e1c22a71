package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Team binds a client to its set of assigned RBTs over an effective period.
// Invariants (enforced by internal/team.Manager, not by the struct itself):
// the primary RBT must be a member; at most one active team per client;
// end date, if set, must be >= effective date.
type Team struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID      string     `gorm:"type:uuid;not null;index" json:"clientId"`
	PrimaryRbtID  string     `gorm:"type:uuid;not null" json:"primaryRbtId"`
	EffectiveDate time.Time  `gorm:"type:date;not null" json:"effectiveDate"`
	EndDate       *time.Time `gorm:"type:date" json:"endDate,omitempty"`
	Active        bool       `gorm:"not null;default:true;index" json:"active"`

	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Team) TableName() string { return "teams" }

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// TeamMember is the join row between a Team and an RBT. Modeled as its own
// table, rather than a pq.StringArray of ids, because membership rows carry
// their own timestamps for the audit trail (who was added, when).
type TeamMember struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	TeamID string `gorm:"type:uuid;not null;index:idx_team_members_team_rbt,unique" json:"teamId"`
	RbtID  string `gorm:"type:uuid;not null;index:idx_team_members_team_rbt,unique" json:"rbtId"`

	AddedAt time.Time `gorm:"autoCreateTime" json:"addedAt"`
}

func (TeamMember) TableName() string { return "team_members" }

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
