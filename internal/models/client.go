package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Client is a capability-typed view over User (role=client_family).
type Client struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string         `gorm:"type:uuid;uniqueIndex;not null" json:"userId"`
	User            *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	DateOfBirth     time.Time      `gorm:"type:date;not null" json:"dateOfBirth"`
	GuardianContact string         `gorm:"type:varchar(255);not null" json:"guardianContact"`
	SpecialNeeds    pq.StringArray `gorm:"type:text[]" json:"specialNeeds"`
	EnrollmentDate  time.Time      `gorm:"type:date;not null" json:"enrollmentDate"`
	DischargeDate   *time.Time     `gorm:"type:date" json:"dischargeDate,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Client) TableName() string { return "clients" }

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// IsEnrolled reports whether the client has not been discharged as of "now".
func (c *Client) IsEnrolled(now time.Time) bool {
	if c.DischargeDate == nil {
		return true
	}
	return now.Before(*c.DischargeDate)
}
