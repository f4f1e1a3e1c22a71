package database

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slotwise/scheduling-service/internal/config"
	"github.com/slotwise/scheduling-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect connects to the PostgreSQL database, tuning the pool and GORM
// logger the way auth-service's Connect does.
func Connect(cfg config.Database) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create uuid extension: %w", err)
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist").Error; err != nil {
		return fmt.Errorf("failed to create btree_gist extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.RBT{},
		&models.Client{},
		&models.Team{},
		&models.TeamMember{},
		&models.AvailabilitySlot{},
		&models.Session{},
		&models.ScheduleEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to run auto-migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	if err := createExclusionConstraints(db); err != nil {
		return fmt.Errorf("failed to create exclusion constraints: %w", err)
	}

	return nil
}

// createIndexes creates additional indexes for common query patterns beyond
// what gorm tags express.
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_sessions_rbt_start ON sessions(rbt_id, start_time)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_client_start ON sessions(client_id, start_time)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_status_start ON sessions(status, start_time)",
		"CREATE INDEX IF NOT EXISTS idx_teams_client_active ON teams(client_id, active)",
		"CREATE INDEX IF NOT EXISTS idx_availability_slots_rbt_active ON availability_slots(rbt_id, active)",
		"CREATE INDEX IF NOT EXISTS idx_schedule_events_type_created ON schedule_events(event_type, created_at)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createExclusionConstraints enforces the core's no-overlap invariant
// (spec.md §4.7: "no overlapping non-cancelled session for the same RBT or
// client") at the database layer, as a last line of defense below the
// ConstraintEngine: a GiST exclusion constraint rejects any two
// non-terminal sessions for the same RBT, or the same client, whose
// [start_time, end_time) ranges overlap. A CHECK constraint also pins every
// session to the fixed 3-hour duration.
func createExclusionConstraints(db *gorm.DB) error {
	statements := []string{
		`ALTER TABLE sessions DROP CONSTRAINT IF EXISTS sessions_fixed_duration`,
		`ALTER TABLE sessions ADD CONSTRAINT sessions_fixed_duration
			CHECK (end_time = start_time + interval '3 hours')`,
		`ALTER TABLE sessions DROP CONSTRAINT IF EXISTS sessions_no_rbt_overlap`,
		`ALTER TABLE sessions ADD CONSTRAINT sessions_no_rbt_overlap
			EXCLUDE USING gist (
				rbt_id WITH =,
				tstzrange(start_time, end_time, '[)') WITH &&
			) WHERE (status NOT IN ('cancelled', 'completed', 'no_show'))`,
		`ALTER TABLE sessions DROP CONSTRAINT IF EXISTS sessions_no_client_overlap`,
		`ALTER TABLE sessions ADD CONSTRAINT sessions_no_client_overlap
			EXCLUDE USING gist (
				client_id WITH =,
				tstzrange(start_time, end_time, '[)') WITH &&
			) WHERE (status NOT IN ('cancelled', 'completed', 'no_show'))`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// ConnectRedis connects to Redis
func ConnectRedis(cfg config.Redis) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	return client, nil
}
