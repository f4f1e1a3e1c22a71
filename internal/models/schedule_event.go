package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventType string

const (
	EventSessionCreated     EventType = "session_created"
	EventSessionCancelled   EventType = "session_cancelled"
	EventSessionRescheduled EventType = "session_rescheduled"
	EventRbtUnavailable     EventType = "rbt_unavailable"
	EventUnavailabilityResolved EventType = "unavailability_resolved"
	EventTeamCreated        EventType = "team_created"
	EventTeamUpdated        EventType = "team_updated"
	EventTeamEnded          EventType = "team_ended"
	EventRbtAdded           EventType = "rbt_added"
	EventRbtRemoved         EventType = "rbt_removed"
	EventPrimaryChanged     EventType = "primary_changed"
)

// ScheduleEvent is an append-only audit record. Once written it is never
// updated or deleted; readers scan by filter through EventLogRepository.Query.
type ScheduleEvent struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	EventType EventType `gorm:"type:varchar(30);not null;index" json:"eventType"`

	SessionID *string `gorm:"type:uuid;index" json:"sessionId,omitempty"`
	RbtID     *string `gorm:"type:uuid;index" json:"rbtId,omitempty"`
	ClientID  *string `gorm:"type:uuid;index" json:"clientId,omitempty"`

	OldValues datatypes.JSON `gorm:"type:jsonb" json:"oldValues,omitempty"`
	NewValues datatypes.JSON `gorm:"type:jsonb" json:"newValues,omitempty"`
	Reason    string         `gorm:"type:text" json:"reason,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedBy string    `gorm:"type:uuid;not null" json:"createdBy"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (ScheduleEvent) TableName() string { return "schedule_events" }

func (e *ScheduleEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
