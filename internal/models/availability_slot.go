package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AvailabilitySlot is a recurring (or one-off) window in which an RBT can be
// scheduled. DayOfWeek follows time.Weekday numbering restricted to 1..5
// (Mon..Fri), matching the teacher's AvailabilityRule day-of-week convention.
type AvailabilitySlot struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	RbtID         string     `gorm:"type:uuid;not null;index" json:"rbtId"`
	DayOfWeek     int        `gorm:"not null" json:"dayOfWeek"`
	StartTime     string     `gorm:"type:varchar(5);not null" json:"startTime"` // "HH:MM"
	EndTime       string     `gorm:"type:varchar(5);not null" json:"endTime"`   // "HH:MM"
	Recurring     bool       `gorm:"not null;default:true" json:"recurring"`
	EffectiveDate time.Time  `gorm:"type:date;not null" json:"effectiveDate"`
	EndDate       *time.Time `gorm:"type:date" json:"endDate,omitempty"`
	Active        bool       `gorm:"not null;default:true;index" json:"active"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (AvailabilitySlot) TableName() string { return "availability_slots" }

func (s *AvailabilitySlot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// IsActiveOn reports whether the slot is in force on date d.
func (s *AvailabilitySlot) IsActiveOn(d time.Time) bool {
	if !s.Active {
		return false
	}
	if d.Before(s.EffectiveDate) {
		return false
	}
	if s.EndDate != nil && d.After(*s.EndDate) {
		return false
	}
	return true
}
