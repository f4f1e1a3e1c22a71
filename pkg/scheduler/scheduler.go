// Package scheduler runs the core's periodic background jobs: completing
// elapsed sessions and defensively re-invalidating cache namespaces the
// Redis client can't self-expire on its own schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slotwise/scheduling-service/internal/cache"
	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/repository"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

// Scheduler handles background scheduling tasks (spec.md §1.1: session
// completion sweep plus defensive cache re-invalidation).
type Scheduler struct {
	cron     *cron.Cron
	sessions repository.SessionRepository
	cache    cache.AvailabilityCache
	clock    clock.Clock
	logger   *logger.Logger
}

func New(sessions repository.SessionRepository, c cache.AvailabilityCache, clk clock.Clock, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		sessions: sessions,
		cache:    c,
		clock:    clk,
		logger:   log,
	}
}

// Start schedules the background jobs and begins running them.
func (s *Scheduler) Start() {
	s.logger.Info("starting background scheduler")

	if _, err := s.cron.AddFunc("@every 1m", s.completeElapsedSessions); err != nil {
		s.logger.Error("failed to register session completion sweep", "error", err)
	}
	if _, err := s.cron.AddFunc("@every 5m", s.sweepExpiredCacheNamespaces); err != nil {
		s.logger.Error("failed to register cache sweep", "error", err)
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping background scheduler")
	s.cron.Stop()
}

// completeElapsedSessions marks every scheduled/confirmed session whose end
// time has passed as completed. The constraint engine and the DB exclusion
// constraint only care about non-terminal sessions, so this keeps the
// active set accurate for conflict checks without requiring an explicit
// "complete" call from a caller.
func (s *Scheduler) completeElapsedSessions() {
	ctx := context.Background()
	now := s.clock.Now()

	candidates, err := s.sessions.FindActiveByDateRange(ctx, time.Unix(0, 0), now)
	if err != nil {
		s.logger.Error("failed to load sessions for completion sweep", "error", err)
		return
	}

	completed := 0
	for _, sess := range candidates {
		if sess.EndTime.After(now) {
			continue
		}
		if sess.Status != models.SessionScheduled && sess.Status != models.SessionConfirmed {
			continue
		}
		if err := s.sessions.Update(ctx, sess.ID, map[string]interface{}{"status": models.SessionCompleted}); err != nil {
			s.logger.Error("failed to complete elapsed session", "sessionId", sess.ID, "error", err)
			continue
		}
		completed++
	}
	if completed > 0 {
		s.logger.Info("completed elapsed sessions", "count", completed)
	}
}

// sweepExpiredCacheNamespaces defensively re-invalidates the availability
// cache's well-known namespaces. Redis TTLs already expire individual
// keys; this guards against entries written with no TTL by a future bug.
func (s *Scheduler) sweepExpiredCacheNamespaces() {
	if s.cache == nil {
		return
	}
	ctx := context.Background()
	for _, ns := range []string{cache.NamespaceClientSchedule, cache.NamespaceRbtSchedule, cache.NamespaceAvailableRbts} {
		cache.SafeInvalidate(ctx, s.cache, s.logger, ns, "*")
	}
}
