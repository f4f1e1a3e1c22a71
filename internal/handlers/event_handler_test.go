package handlers_test

import (
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
	"github.com/slotwise/scheduling-service/pkg/logger"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type EventHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	log    *eventlog.Log
}

func TestEventHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(EventHandlerTestSuite))
}

func (s *EventHandlerTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(db.AutoMigrate(&models.ScheduleEvent{}))
	s.db = db

	fixedClock := clock.NewFixed(time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC))
	s.log = eventlog.New(repository.NewEventLogRepository(db), fixedClock)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	eventHandler := handlers.NewEventHandler(s.log, logger.New("error"))
	router.GET("/api/v1/events", eventHandler.ListEvents)
	s.router = router
}

func (s *EventHandlerTestSuite) get(path string) *httptest.ResponseRecorder {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, path, nil)
	s.Require().NoError(err)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *EventHandlerTestSuite) decodeBody(rr *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func (s *EventHandlerTestSuite) TestListEvents_FiltersByEventType() {
	rbtID := "rbt-1"
	s.Require().NoError(s.log.Append(context.Background(), eventlog.Entry{
		Type: models.EventSessionCancelled, RbtID: &rbtID, Reason: "client sick", CreatedBy: "coordinator-1",
	}))
	s.Require().NoError(s.log.Append(context.Background(), eventlog.Entry{
		Type: models.EventTeamCreated, CreatedBy: "coordinator-1",
	}))

	rr := s.get("/api/v1/events?eventType=" + string(models.EventSessionCancelled))
	s.Equal(http.StatusOK, rr.Code)

	body := s.decodeBody(rr)
	data, ok := body["data"].([]interface{})
	s.Require().True(ok)
	s.Require().Len(data, 1)

	pagination, ok := body["pagination"].(map[string]interface{})
	s.Require().True(ok)
	s.EqualValues(1, pagination["page"])
}

func (s *EventHandlerTestSuite) TestListEvents_RespectsPageAndLimit() {
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.log.Append(context.Background(), eventlog.Entry{
			Type: models.EventTeamCreated, CreatedBy: "coordinator-1",
		}))
	}

	rr := s.get("/api/v1/events?limit=2&page=1")
	s.Equal(http.StatusOK, rr.Code)
	body := s.decodeBody(rr)
	data, ok := body["data"].([]interface{})
	s.Require().True(ok)
	s.Len(data, 2)

	pagination := body["pagination"].(map[string]interface{})
	s.EqualValues(2, pagination["limit"])
}

func (s *EventHandlerTestSuite) TestListEvents_NoMatchesReturnsEmptyData() {
	rr := s.get("/api/v1/events?sessionId=does-not-exist")
	s.Equal(http.StatusOK, rr.Code)

	body := s.decodeBody(rr)
	data, ok := body["data"].([]interface{})
	s.Require().True(ok)
	s.Empty(data)
}
