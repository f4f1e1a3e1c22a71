// Package testdata provides fluent test-data builders for the core's
// domain models, grounded on the teacher's factory idiom
// (pkg/testing's UserFactory/BookingFactory WithX chains), adapted to
// return real *models.X values instead of map[string]interface{}.
package testdata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slotwise/scheduling-service/internal/models"
)

func NewUUID() string {
	return uuid.New().String()
}

func NewTestEmail() string {
	return fmt.Sprintf("test-%s@example.com", uuid.New().String()[:8])
}

// UserFactory builds test Users with sensible defaults.
type UserFactory struct {
	user models.User
}

func NewUserFactory() *UserFactory {
	return &UserFactory{user: models.User{
		Email:      NewTestEmail(),
		GivenName:  "Test",
		FamilyName: "User",
		Role:       models.RoleClientFamily,
		Active:     true,
	}}
}

func (f *UserFactory) WithID(id string) *UserFactory        { f.user.ID = id; return f }
func (f *UserFactory) WithEmail(email string) *UserFactory  { f.user.Email = email; return f }
func (f *UserFactory) WithRole(role models.Role) *UserFactory { f.user.Role = role; return f }
func (f *UserFactory) Inactive() *UserFactory                { f.user.Active = false; return f }

func (f *UserFactory) Build() models.User {
	if f.user.ID == "" {
		f.user.ID = NewUUID()
	}
	return f.user
}

// RBTFactory builds test RBTs.
type RBTFactory struct {
	rbt models.RBT
}

func NewRBTFactory() *RBTFactory {
	return &RBTFactory{rbt: models.RBT{
		UserID:        NewUUID(),
		LicenseNumber: fmt.Sprintf("RBT-%s", NewUUID()[:8]),
		HourlyRate:    35.00,
		HireDate:      time.Now().AddDate(-1, 0, 0),
	}}
}

func (f *RBTFactory) WithID(id string) *RBTFactory        { f.rbt.ID = id; return f }
func (f *RBTFactory) WithUserID(userID string) *RBTFactory { f.rbt.UserID = userID; return f }
func (f *RBTFactory) WithQualifications(q ...string) *RBTFactory {
	f.rbt.Qualifications = q
	return f
}
func (f *RBTFactory) Terminated(when time.Time) *RBTFactory {
	f.rbt.TerminationDate = &when
	return f
}

func (f *RBTFactory) Build() models.RBT {
	if f.rbt.ID == "" {
		f.rbt.ID = NewUUID()
	}
	return f.rbt
}

// ClientFactory builds test Clients.
type ClientFactory struct {
	client models.Client
}

func NewClientFactory() *ClientFactory {
	return &ClientFactory{client: models.Client{
		UserID:          NewUUID(),
		DateOfBirth:     time.Now().AddDate(-8, 0, 0),
		GuardianContact: "guardian@example.com",
		EnrollmentDate:  time.Now().AddDate(0, -1, 0),
	}}
}

func (f *ClientFactory) WithID(id string) *ClientFactory        { f.client.ID = id; return f }
func (f *ClientFactory) WithUserID(userID string) *ClientFactory { f.client.UserID = userID; return f }
func (f *ClientFactory) Discharged(when time.Time) *ClientFactory {
	f.client.DischargeDate = &when
	return f
}

func (f *ClientFactory) Build() models.Client {
	if f.client.ID == "" {
		f.client.ID = NewUUID()
	}
	return f.client
}

// TeamFactory builds test Teams.
type TeamFactory struct {
	team models.Team
}

func NewTeamFactory() *TeamFactory {
	return &TeamFactory{team: models.Team{
		ClientID:      NewUUID(),
		PrimaryRbtID:  NewUUID(),
		EffectiveDate: time.Now().AddDate(0, -1, 0),
		Active:        true,
	}}
}

func (f *TeamFactory) WithID(id string) *TeamFactory               { f.team.ID = id; return f }
func (f *TeamFactory) WithClientID(clientID string) *TeamFactory   { f.team.ClientID = clientID; return f }
func (f *TeamFactory) WithPrimaryRbtID(rbtID string) *TeamFactory  { f.team.PrimaryRbtID = rbtID; return f }
func (f *TeamFactory) WithMembers(rbtIDs ...string) *TeamFactory {
	members := make([]models.TeamMember, len(rbtIDs))
	for i, id := range rbtIDs {
		members[i] = models.TeamMember{ID: NewUUID(), RbtID: id}
	}
	f.team.Members = members
	return f
}
func (f *TeamFactory) Ended(when time.Time) *TeamFactory {
	f.team.Active = false
	f.team.EndDate = &when
	return f
}

func (f *TeamFactory) Build() models.Team {
	if f.team.ID == "" {
		f.team.ID = NewUUID()
	}
	if len(f.team.Members) == 0 {
		f.team.Members = []models.TeamMember{{ID: NewUUID(), RbtID: f.team.PrimaryRbtID}}
	}
	return f.team
}

// SessionFactory builds test Sessions.
type SessionFactory struct {
	session models.Session
}

func NewSessionFactory() *SessionFactory {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	return &SessionFactory{session: models.Session{
		ClientID:  NewUUID(),
		RbtID:     NewUUID(),
		StartTime: start,
		EndTime:   start.Add(3 * time.Hour),
		Status:    models.SessionScheduled,
		Location:  "Clinic Room A",
		CreatedBy: NewUUID(),
	}}
}

func (f *SessionFactory) WithID(id string) *SessionFactory             { f.session.ID = id; return f }
func (f *SessionFactory) WithClientID(clientID string) *SessionFactory { f.session.ClientID = clientID; return f }
func (f *SessionFactory) WithRbtID(rbtID string) *SessionFactory       { f.session.RbtID = rbtID; return f }
func (f *SessionFactory) WithTimeSlot(start, end time.Time) *SessionFactory {
	f.session.StartTime = start
	f.session.EndTime = end
	return f
}
func (f *SessionFactory) WithStatus(status models.SessionStatus) *SessionFactory {
	f.session.Status = status
	return f
}
func (f *SessionFactory) AsCancelled(reason string) *SessionFactory {
	f.session.Status = models.SessionCancelled
	f.session.CancellationReason = reason
	return f
}
func (f *SessionFactory) AsCompleted() *SessionFactory {
	f.session.Status = models.SessionCompleted
	return f
}

func (f *SessionFactory) Build() models.Session {
	if f.session.ID == "" {
		f.session.ID = NewUUID()
	}
	return f.session
}

// AvailabilitySlotFactory builds test AvailabilitySlots.
type AvailabilitySlotFactory struct {
	slot models.AvailabilitySlot
}

func NewAvailabilitySlotFactory() *AvailabilitySlotFactory {
	return &AvailabilitySlotFactory{slot: models.AvailabilitySlot{
		RbtID:         NewUUID(),
		DayOfWeek:     1,
		StartTime:     "09:00",
		EndTime:       "17:00",
		Recurring:     true,
		EffectiveDate: time.Now().AddDate(0, -1, 0),
		Active:        true,
	}}
}

func (f *AvailabilitySlotFactory) WithRbtID(rbtID string) *AvailabilitySlotFactory {
	f.slot.RbtID = rbtID
	return f
}
func (f *AvailabilitySlotFactory) WithDayOfWeek(d int) *AvailabilitySlotFactory {
	f.slot.DayOfWeek = d
	return f
}
func (f *AvailabilitySlotFactory) WithWindow(start, end string) *AvailabilitySlotFactory {
	f.slot.StartTime = start
	f.slot.EndTime = end
	return f
}
func (f *AvailabilitySlotFactory) Inactive() *AvailabilitySlotFactory {
	f.slot.Active = false
	return f
}

func (f *AvailabilitySlotFactory) Build() models.AvailabilitySlot {
	if f.slot.ID == "" {
		f.slot.ID = NewUUID()
	}
	return f.slot
}
