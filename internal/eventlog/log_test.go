package eventlog_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/repository"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type LogTestSuite struct {
	suite.Suite
	db  *gorm.DB
	log *eventlog.Log
}

func TestLogTestSuite(t *testing.T) {
	suite.Run(t, new(LogTestSuite))
}

func (s *LogTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(db.AutoMigrate(&models.ScheduleEvent{}))
	s.db = db
	s.log = eventlog.New(repository.NewEventLogRepository(db), clock.NewFixed(time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)))
}

func (s *LogTestSuite) TestAppend_GeneratesIDAndMarshalsPayloads() {
	sessionID := "session-1"
	err := s.log.Append(context.Background(), eventlog.Entry{
		Type:      models.EventSessionCancelled,
		SessionID: &sessionID,
		OldValues: map[string]interface{}{"status": "scheduled"},
		NewValues: map[string]interface{}{"status": "cancelled"},
		Reason:    "client request",
		CreatedBy: "coordinator-1",
	})
	s.Require().NoError(err)

	var stored models.ScheduleEvent
	s.Require().NoError(s.db.First(&stored).Error)
	s.NotEmpty(stored.ID)
	s.Equal(models.EventSessionCancelled, stored.EventType)

	var oldValues map[string]interface{}
	s.Require().NoError(json.Unmarshal(stored.OldValues, &oldValues))
	s.Equal("scheduled", oldValues["status"])
}

func (s *LogTestSuite) TestAppend_RespectsCallerSuppliedID() {
	err := s.log.Append(context.Background(), eventlog.Entry{ID: "fixed-id", Type: models.EventTeamCreated, CreatedBy: "c1"})
	s.Require().NoError(err)

	var stored models.ScheduleEvent
	s.Require().NoError(s.db.First(&stored, "id = ?", "fixed-id").Error)
	s.Equal("fixed-id", stored.ID)
}

func (s *LogTestSuite) TestQuery_FiltersByEventTypeAndWindow() {
	ctx := context.Background()
	s.Require().NoError(s.log.Append(ctx, eventlog.Entry{Type: models.EventSessionCancelled, CreatedBy: "c1"}))
	s.Require().NoError(s.log.Append(ctx, eventlog.Entry{Type: models.EventTeamCreated, CreatedBy: "c1"}))

	cancelledType := models.EventSessionCancelled
	results, err := s.log.Query(ctx, repository.EventFilter{EventType: &cancelledType})
	require.NoError(s.T(), err)
	s.Require().Len(results, 1)
	s.Equal(models.EventSessionCancelled, results[0].EventType)
}
