package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/handlers"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/repository"
	"github.com/slotwise/scheduling-service/internal/team"
	"github.com/slotwise/scheduling-service/pkg/logger"
	"github.com/slotwise/scheduling-service/pkg/testdata"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type TeamHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine

	client models.Client
	rbtA   models.RBT
	rbtB   models.RBT
}

func TestTeamHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TeamHandlerTestSuite))
}

func (s *TeamHandlerTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(db.AutoMigrate(&models.User{}, &models.RBT{}, &models.Client{}, &models.Team{}, &models.TeamMember{}, &models.ScheduleEvent{}))
	s.db = db

	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	fixedClock := clock.NewFixed(now)
	testLogger := logger.New("error")
	eventLog := eventlog.New(repository.NewEventLogRepository(db), fixedClock)
	manager := team.NewManager(
		repository.NewTeamRepository(db), repository.NewRBTRepository(db), repository.NewClientRepository(db),
		eventLog, fixedClock,
	)

	s.client = models.Client{UserID: testdata.NewUUID(), EnrollmentDate: now.AddDate(0, -6, 0)}
	s.Require().NoError(db.Create(&s.client).Error)
	s.rbtA = models.RBT{UserID: testdata.NewUUID(), LicenseNumber: "LIC-TH-A", HourlyRate: 35, HireDate: now.AddDate(-1, 0, 0)}
	s.Require().NoError(db.Create(&s.rbtA).Error)
	s.rbtB = models.RBT{UserID: testdata.NewUUID(), LicenseNumber: "LIC-TH-B", HourlyRate: 40, HireDate: now.AddDate(-1, 0, 0)}
	s.Require().NoError(db.Create(&s.rbtB).Error)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", "coordinator-1")
		c.Next()
	})
	teamHandler := handlers.NewTeamHandler(manager, testLogger)
	teams := router.Group("/api/v1/teams")
	teams.POST("", teamHandler.AssignTeam)
	teams.POST("/:teamId/members", teamHandler.AddRbt)
	teams.DELETE("/:teamId/members/:rbtId", teamHandler.RemoveRbt)
	teams.PUT("/:teamId/primary", teamHandler.ChangePrimaryRbt)
	teams.POST("/:teamId/end", teamHandler.EndTeam)
	s.router = router
}

func (s *TeamHandlerTestSuite) doRequest(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *TeamHandlerTestSuite) TestAssignTeamAPI_Success() {
	rr := s.doRequest(http.MethodPost, "/api/v1/teams", map[string]interface{}{
		"clientId":      s.client.ID,
		"rbtIds":        []string{s.rbtA.ID, s.rbtB.ID},
		"primaryRbtId":  s.rbtA.ID,
		"effectiveDate": time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
	s.Equal(http.StatusCreated, rr.Code)

	var body struct {
		Team     models.Team `json:"team"`
		Warnings []interface{} `json:"warnings"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.True(body.Team.Active)
	s.Empty(body.Warnings)
}

func (s *TeamHandlerTestSuite) TestAssignTeamAPI_RejectsMissingPrimary() {
	rr := s.doRequest(http.MethodPost, "/api/v1/teams", map[string]interface{}{
		"clientId": s.client.ID,
		"rbtIds":   []string{s.rbtA.ID},
	})
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *TeamHandlerTestSuite) assignTeam() string {
	rr := s.doRequest(http.MethodPost, "/api/v1/teams", map[string]interface{}{
		"clientId":      s.client.ID,
		"rbtIds":        []string{s.rbtA.ID},
		"primaryRbtId":  s.rbtA.ID,
		"effectiveDate": time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
	s.Require().Equal(http.StatusCreated, rr.Code)
	var body struct {
		Team models.Team `json:"team"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Team.ID
}

func (s *TeamHandlerTestSuite) TestAddRbtAPI_Success() {
	teamID := s.assignTeam()
	rr := s.doRequest(http.MethodPost, "/api/v1/teams/"+teamID+"/members", map[string]interface{}{"rbtId": s.rbtB.ID})
	s.Equal(http.StatusNoContent, rr.Code)
}

func (s *TeamHandlerTestSuite) TestRemoveRbtAPI_RejectsPrimary() {
	teamID := s.assignTeam()
	rr := s.doRequest(http.MethodDelete, "/api/v1/teams/"+teamID+"/members/"+s.rbtA.ID, nil)
	s.NotEqual(http.StatusNoContent, rr.Code)
}

func (s *TeamHandlerTestSuite) TestEndTeamAPI_Success() {
	teamID := s.assignTeam()
	rr := s.doRequest(http.MethodPost, "/api/v1/teams/"+teamID+"/end", map[string]interface{}{
		"endDate": time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
	s.Equal(http.StatusNoContent, rr.Code)

	var ended models.Team
	s.Require().NoError(s.db.First(&ended, "id = ?", teamID).Error)
	s.False(ended.Active)
}
