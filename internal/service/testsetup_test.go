package service_test

import (
	"testing"
	"time"

	"github.com/slotwise/scheduling-service/internal/cache"
	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/config"
	"github.com/slotwise/scheduling-service/internal/constraint"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/repository"
	"github.com/slotwise/scheduling-service/internal/service"
	"github.com/slotwise/scheduling-service/pkg/events"
	"github.com/slotwise/scheduling-service/pkg/logger"
	"github.com/slotwise/scheduling-service/pkg/testdata"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testEnv bundles an isolated in-memory database and ready-to-use Deps, so
// each service's test file doesn't repeat the wiring boilerplate.
type testEnv struct {
	db    *gorm.DB
	clock *clock.Fixed
	deps  *service.Deps
}

func newTestEnv(t *testing.T, anchor time.Time) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{}, &models.RBT{}, &models.Client{}, &models.Team{}, &models.TeamMember{},
		&models.AvailabilitySlot{}, &models.Session{}, &models.ScheduleEvent{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	fixedClock := clock.NewFixed(anchor)
	testLogger := logger.New("error")
	policy := config.SchedulingPolicy{
		BusinessStart: "09:00", BusinessEnd: "19:00",
		SessionDuration: 3 * time.Hour, MaxSessionsPerDay: 2, MinBreakBetweenSessions: 30 * time.Minute,
		ContinuityRecencyWindow: 30 * 24 * time.Hour, Timezone: "UTC",
	}
	engine := constraint.NewEngine(clock.NewBusinessCalendar(fixedClock, time.UTC, nil))
	eventLog := eventlog.New(repository.NewEventLogRepository(db), fixedClock)

	deps := service.NewDeps(
		repository.NewSessionRepository(db),
		repository.NewTeamRepository(db),
		repository.NewRBTRepository(db),
		repository.NewClientRepository(db),
		repository.NewAvailabilityRepository(db),
		eventLog,
		cache.NewNoopCache(),
		events.NewNullPublisher(testLogger),
		fixedClock,
		engine,
		policy,
		testLogger,
	)

	return &testEnv{db: db, clock: fixedClock, deps: deps}
}

// seedTeam creates a client, an RBT, an active team between them, and a
// wide-open Monday availability slot for the RBT.
func (e *testEnv) seedTeam(t *testing.T, anchor time.Time) (models.Client, models.RBT, models.Team) {
	t.Helper()

	client := models.Client{UserID: testdata.NewUUID(), EnrollmentDate: anchor.AddDate(0, -6, 0)}
	if err := e.db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	rbt := models.RBT{UserID: testdata.NewUUID(), LicenseNumber: "LIC-" + anchor.String(), HourlyRate: 35, HireDate: anchor.AddDate(-1, 0, 0)}
	if err := e.db.Create(&rbt).Error; err != nil {
		t.Fatalf("create rbt: %v", err)
	}
	team := models.Team{ClientID: client.ID, PrimaryRbtID: rbt.ID, EffectiveDate: anchor.AddDate(0, -1, 0), Active: true}
	if err := e.db.Create(&team).Error; err != nil {
		t.Fatalf("create team: %v", err)
	}
	if err := e.db.Create(&models.TeamMember{TeamID: team.ID, RbtID: rbt.ID}).Error; err != nil {
		t.Fatalf("add team member: %v", err)
	}
	slot := models.AvailabilitySlot{
		RbtID: rbt.ID, DayOfWeek: int(anchor.Weekday()), StartTime: "08:00", EndTime: "18:00",
		Active: true, EffectiveDate: anchor.AddDate(0, -1, 0),
	}
	if err := e.db.Create(&slot).Error; err != nil {
		t.Fatalf("create availability slot: %v", err)
	}
	return client, rbt, team
}
