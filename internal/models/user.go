package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role enumerates the user roles spec'd in §3.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleCoordinator  Role = "coordinator"
	RoleRBT          Role = "rbt"
	RoleClientFamily Role = "client_family"
)

// User is the base identity shared by every actor in the system. RBT and
// Client are capability-typed views over a User row (spec.md §9: "tagged
// variants plus capability-typed views", not a class hierarchy) rather
// than separate identity tables.
type User struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	GivenName   string `gorm:"type:varchar(100);not null" json:"givenName"`
	FamilyName  string `gorm:"type:varchar(100);not null" json:"familyName"`
	Phone       string `gorm:"type:varchar(30)" json:"phone"`
	Role        Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	Active      bool   `gorm:"not null;default:true" json:"active"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}
