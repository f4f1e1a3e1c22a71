package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionConfirmed SessionStatus = "confirmed"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionNoShow    SessionStatus = "no_show"
)

// IsTerminal reports whether the status is final for placement purposes
// (cancelled/completed/no_show sessions no longer occupy conflict checks).
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCancelled || s == SessionCompleted || s == SessionNoShow
}

// Session is a single ABA therapy appointment between a client and an RBT.
// Invariants enforced above the struct (constraint engine + DB exclusion
// constraint): End-Start == 3h exactly; weekday and business-hours bounds;
// no overlapping non-cancelled session for the same RBT or client.
type Session struct {
	ID                 string        `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID           string        `gorm:"type:uuid;not null;index" json:"clientId"`
	RbtID              string        `gorm:"type:uuid;not null;index" json:"rbtId"`
	StartTime          time.Time     `gorm:"not null;index" json:"startTime"`
	EndTime            time.Time     `gorm:"not null" json:"endTime"`
	Status             SessionStatus `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	Location           string        `gorm:"type:varchar(200);not null" json:"location"`
	Notes              string        `gorm:"type:text" json:"notes,omitempty"`
	CancellationReason string        `gorm:"type:text" json:"cancellationReason,omitempty"`
	CompletionNotes    string        `gorm:"type:text" json:"completionNotes,omitempty"`
	CreatedBy          string        `gorm:"type:uuid;not null" json:"createdBy"`
	UpdatedBy          string        `gorm:"type:uuid" json:"updatedBy,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Overlaps reports whether s and other share any instant, the predicate
// used by conflict checks (half-open interval comparison).
func (s *Session) Overlaps(other *Session) bool {
	return s.StartTime.Before(other.EndTime) && other.StartTime.Before(s.EndTime)
}
