package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RBT is a capability-typed view over User (role=rbt), not a subclass:
// it embeds UserID as an FK rather than inheriting from User.
type RBT struct {
	ID             string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string `gorm:"type:uuid;uniqueIndex;not null" json:"userId"`
	User           *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LicenseNumber  string `gorm:"type:varchar(50);uniqueIndex;not null" json:"licenseNumber"`
	Qualifications pq.StringArray `gorm:"type:text[]" json:"qualifications"`
	HourlyRate     float64        `gorm:"type:numeric(8,2);not null" json:"hourlyRate"`
	HireDate       time.Time      `gorm:"type:date;not null" json:"hireDate"`
	TerminationDate *time.Time    `gorm:"type:date" json:"terminationDate,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (RBT) TableName() string { return "rbts" }

func (r *RBT) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// IsActive reports whether the RBT has not been terminated as of "now".
// An RBT with a termination date on or before now is inactive.
func (r *RBT) IsActive(now time.Time) bool {
	if r.TerminationDate == nil {
		return true
	}
	return now.Before(*r.TerminationDate)
}

// HasQualification reports whether q is present in the RBT's qualification set.
func (r *RBT) HasQualification(q string) bool {
	for _, have := range r.Qualifications {
		if have == q {
			return true
		}
	}
	return false
}
