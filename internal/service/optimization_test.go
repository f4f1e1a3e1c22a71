package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/service"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type OptimizationServiceTestSuite struct {
	suite.Suite
	db  *gorm.DB
	env *testEnv
	svc *service.OptimizationService

	client  models.Client
	rbt     models.RBT
	team    models.Team
	session *models.Session
}

func TestOptimizationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OptimizationServiceTestSuite))
}

// Monday, well inside business hours.
func (s *OptimizationServiceTestSuite) anchorTime() time.Time {
	return time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC)
}

func (s *OptimizationServiceTestSuite) SetupTest() {
	s.env = newTestEnv(s.T(), s.anchorTime().Add(-72*time.Hour))
	s.db = s.env.db
	s.client, s.rbt, s.team = s.env.seedTeam(s.T(), s.anchorTime())
	s.svc = service.NewOptimizationService(s.env.deps)

	schedulingSvc := service.NewSchedulingService(s.env.deps)
	result, err := schedulingSvc.ScheduleSession(context.Background(), service.ScheduleSessionRequest{
		ClientID: s.client.ID, RbtID: s.rbt.ID, StartTime: s.anchorTime(), Location: "Room A", Actor: "c1",
	})
	s.Require().NoError(err)
	s.Require().True(result.Valid)
	s.session = result.Session
}

func (s *OptimizationServiceTestSuite) TestFindOptimalReschedulingOptions_RanksByOptimizationScore() {
	result, err := s.svc.FindOptimalReschedulingOptions(context.Background(), s.session.ID, service.ReschedulingPreferences{
		MaxDaysFromOriginal: 1,
	}, 10)

	s.Require().NoError(err)
	s.Require().NotEmpty(result.Options)
	s.Equal(s.rbt.ID, result.Options[0].RbtID)

	for i := 1; i < len(result.Options); i++ {
		s.GreaterOrEqual(result.Options[i-1].OptimizationScore, result.Options[i].OptimizationScore)
		s.Equal(i+1, result.Options[i].Rank)
	}
	s.Equal(1, result.Options[0].Rank)
	s.Greater(result.Metrics.TotalOptionsEvaluated, 0)
}

func (s *OptimizationServiceTestSuite) TestFindOptimalReschedulingOptions_RejectsUnknownSession() {
	_, err := s.svc.FindOptimalReschedulingOptions(context.Background(), "no-such-session", service.ReschedulingPreferences{}, 5)
	s.Error(err)
}

func (s *OptimizationServiceTestSuite) TestFindOptimalReschedulingOptions_ConsidersOtherTeamMembersWhenAllowed() {
	teammate := models.RBT{LicenseNumber: "LIC-TEAMMATE-2", HourlyRate: 42, HireDate: s.anchorTime().AddDate(-1, 0, 0)}
	s.Require().NoError(s.db.Create(&teammate).Error)
	s.Require().NoError(s.db.Create(&models.TeamMember{TeamID: s.team.ID, RbtID: teammate.ID}).Error)
	s.Require().NoError(s.db.Create(&models.AvailabilitySlot{
		RbtID: teammate.ID, DayOfWeek: int(s.anchorTime().Weekday()), StartTime: "08:00", EndTime: "18:00",
		Active: true, EffectiveDate: s.anchorTime().AddDate(0, -1, 0),
	}).Error)

	result, err := s.svc.FindOptimalReschedulingOptions(context.Background(), s.session.ID, service.ReschedulingPreferences{
		MaxDaysFromOriginal: 1, AllowDifferentRBT: true,
	}, 20)

	s.Require().NoError(err)
	sawTeammate := false
	for _, opt := range result.Options {
		if opt.RbtID == teammate.ID {
			sawTeammate = true
		}
	}
	s.True(sawTeammate, "expected at least one option on the teammate RBT when AllowDifferentRBT is set")
}

func (s *OptimizationServiceTestSuite) TestAnalyzeReschedulingImpact_SameRbtHasNoContinuityDisruption() {
	impact, err := s.svc.AnalyzeReschedulingImpact(context.Background(), s.session.ID, s.anchorTime().Add(4*time.Hour), "")
	s.Require().NoError(err)
	s.Equal(0, impact.ContinuityDisruption)
}

func (s *OptimizationServiceTestSuite) TestAnalyzeReschedulingImpact_CountsSameDayCohort() {
	otherClient := models.Client{EnrollmentDate: s.anchorTime().AddDate(0, -2, 0)}
	s.Require().NoError(s.db.Create(&otherClient).Error)
	otherSession := models.Session{
		ClientID: otherClient.ID, RbtID: s.rbt.ID,
		StartTime: s.anchorTime().Add(6 * time.Hour), EndTime: s.anchorTime().Add(9 * time.Hour),
		Location: "Room B", Status: models.SessionScheduled,
	}
	s.Require().NoError(s.db.Create(&otherSession).Error)

	impact, err := s.svc.AnalyzeReschedulingImpact(context.Background(), s.session.ID, s.anchorTime(), "")
	s.Require().NoError(err)
	s.Equal(1, impact.CascadingChanges)
	s.Equal(2, impact.NotificationCount)
}
