package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/service"
	"github.com/slotwise/scheduling-service/pkg/testdata"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type CancellationServiceTestSuite struct {
	suite.Suite
	db  *gorm.DB
	env *testEnv
	svc *service.CancellationService

	client models.Client
	rbt    models.RBT
	team   models.Team
}

func TestCancellationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CancellationServiceTestSuite))
}

// Monday, well inside business hours.
func (s *CancellationServiceTestSuite) anchorTime() time.Time {
	return time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC)
}

func (s *CancellationServiceTestSuite) SetupTest() {
	s.env = newTestEnv(s.T(), s.anchorTime().Add(-72*time.Hour))
	s.db = s.env.db
	s.client, s.rbt, s.team = s.env.seedTeam(s.T(), s.anchorTime())
	s.svc = service.NewCancellationService(s.env.deps)
}

func (s *CancellationServiceTestSuite) scheduleSession() *models.Session {
	schedulingSvc := service.NewSchedulingService(s.env.deps)
	result, err := schedulingSvc.ScheduleSession(context.Background(), service.ScheduleSessionRequest{
		ClientID: s.client.ID, RbtID: s.rbt.ID, StartTime: s.anchorTime(), Location: "Room A", Actor: "c1",
	})
	s.Require().NoError(err)
	s.Require().True(result.Valid)
	return result.Session
}

func (s *CancellationServiceTestSuite) TestCancelSession_Success() {
	session := s.scheduleSession()

	result, err := s.svc.CancelSession(context.Background(), service.CancelSessionRequest{
		SessionID: session.ID, Reason: "client sick", Actor: "coordinator-1",
	})

	s.Require().NoError(err)
	s.Equal(models.SessionCancelled, result.Session.Status)
	s.Equal("client sick", result.Session.CancellationReason)

	var count int64
	s.db.Model(&models.ScheduleEvent{}).Where("event_type = ?", models.EventSessionCancelled).Count(&count)
	s.Equal(int64(1), count)
}

func (s *CancellationServiceTestSuite) TestCancelSession_RejectsAlreadyCancelled() {
	session := s.scheduleSession()
	ctx := context.Background()

	_, err := s.svc.CancelSession(ctx, service.CancelSessionRequest{SessionID: session.ID, Reason: "r1", Actor: "c1"})
	s.Require().NoError(err)

	_, err = s.svc.CancelSession(ctx, service.CancelSessionRequest{SessionID: session.ID, Reason: "r2", Actor: "c1"})
	s.Error(err)
}

func (s *CancellationServiceTestSuite) TestCancelSession_RejectsCompleted() {
	session := s.scheduleSession()
	s.Require().NoError(s.db.Model(&models.Session{}).Where("id = ?", session.ID).
		Update("status", models.SessionCompleted).Error)

	_, err := s.svc.CancelSession(context.Background(), service.CancelSessionRequest{
		SessionID: session.ID, Reason: "too late", Actor: "c1",
	})
	s.Error(err)
}

func (s *CancellationServiceTestSuite) TestCancelSession_FindsFreedSlotBeneficiaries() {
	session := s.scheduleSession()

	otherClient := models.Client{UserID: testdata.NewUUID(), EnrollmentDate: s.anchorTime().AddDate(0, -3, 0)}
	s.Require().NoError(s.db.Create(&otherClient).Error)
	otherTeam := models.Team{ClientID: otherClient.ID, PrimaryRbtID: s.rbt.ID, EffectiveDate: s.anchorTime().AddDate(0, -1, 0), Active: true}
	s.Require().NoError(s.db.Create(&otherTeam).Error)
	s.Require().NoError(s.db.Create(&models.TeamMember{TeamID: otherTeam.ID, RbtID: s.rbt.ID}).Error)

	result, err := s.svc.CancelSession(context.Background(), service.CancelSessionRequest{
		SessionID: session.ID, Reason: "client sick", Actor: "coordinator-1",
		FindAlternatives: true, MaxAlternatives: 5,
	})

	s.Require().NoError(err)
	s.Require().Len(result.Alternatives, 1)
	s.Equal(otherClient.ID, result.Alternatives[0].ClientID)
}

func (s *CancellationServiceTestSuite) TestBulkCancelSessions_PartialFailureIsolated() {
	session := s.scheduleSession()

	result := s.svc.BulkCancelSessions(context.Background(), []service.CancelSessionRequest{
		{SessionID: session.ID, Reason: "r1", Actor: "c1"},
		{SessionID: "does-not-exist", Reason: "r2", Actor: "c1"},
	})

	s.Require().Len(result.Succeeded, 1)
	s.Require().Len(result.Failed, 1)
	s.Equal("does-not-exist", result.Failed[0].SessionID)
}

func (s *CancellationServiceTestSuite) TestCancellationStatsFor_AggregatesByReasonAndRbt() {
	session := s.scheduleSession()

	_, err := s.svc.CancelSession(context.Background(), service.CancelSessionRequest{
		SessionID: session.ID, Reason: "family emergency", Actor: "coordinator-1",
	})
	s.Require().NoError(err)

	stats, err := s.svc.CancellationStatsFor(context.Background(),
		s.anchorTime().Add(-96*time.Hour), s.anchorTime().Add(96*time.Hour))
	s.Require().NoError(err)

	s.Equal(1, stats.ByReason["family emergency"])
	s.Equal(1, stats.ByRbt[s.rbt.ID])
	// cancelled 72h before the session starts (the fixed clock sits at
	// anchor-72h for the duration of the test), so notice is positive.
	s.InDelta(72.0, stats.AverageNoticeHours, 0.01)
}
