package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/slotwise/scheduling-service/internal/cache"
	"github.com/slotwise/scheduling-service/internal/clock"
	"github.com/slotwise/scheduling-service/internal/config"
	"github.com/slotwise/scheduling-service/internal/constraint"
	"github.com/slotwise/scheduling-service/internal/database"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/handlers"
	"github.com/slotwise/scheduling-service/internal/middleware"
	"github.com/slotwise/scheduling-service/internal/realtime"
	"github.com/slotwise/scheduling-service/internal/repository"
	"github.com/slotwise/scheduling-service/internal/service"
	"github.com/slotwise/scheduling-service/internal/team"
	"github.com/slotwise/scheduling-service/pkg/events"
	"github.com/slotwise/scheduling-service/pkg/jwt"
	"github.com/slotwise/scheduling-service/pkg/logger"
	"github.com/slotwise/scheduling-service/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.Migrate(db); err != nil {
		appLogger.Fatal("Failed to run database migrations", "error", err)
	}

	var redisClient *redis.Client
	redisClient, err = database.ConnectRedis(cfg.Redis)
	if err != nil {
		if cfg.Environment == "development" {
			appLogger.Warn("Failed to connect to Redis, continuing without Redis", "error", err)
			redisClient = nil
		} else {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
	}

	var natsConn *nats.Conn
	var eventPublisher *events.Publisher
	natsConn, err = events.Connect(cfg.NATS)
	if err != nil {
		if cfg.Environment == "development" {
			appLogger.Warn("Failed to connect to NATS, continuing without NATS", "error", err)
			eventPublisher = events.NewNullPublisher(appLogger)
		} else {
			appLogger.Fatal("Failed to connect to NATS", "error", err)
		}
	} else {
		eventPublisher = events.NewPublisher(natsConn, appLogger)
	}

	location, err := time.LoadLocation(cfg.Scheduling.Timezone)
	if err != nil {
		appLogger.Warn("Invalid scheduling timezone, defaulting to UTC", "timezone", cfg.Scheduling.Timezone, "error", err)
		location = time.UTC
	}

	prodClock := clock.System{}
	businessCalendar := clock.NewBusinessCalendar(prodClock, location, cfg.Scheduling.HolidaysAsTimes(location))
	engine := constraint.NewEngine(businessCalendar)

	var availabilityCache cache.AvailabilityCache
	if redisClient != nil {
		availabilityCache = cache.NewRedisCache(redisClient, appLogger)
	} else {
		availabilityCache = cache.NewNoopCache()
	}

	sessionRepo := repository.NewSessionRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	rbtRepo := repository.NewRBTRepository(db)
	clientRepo := repository.NewClientRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	eventLogRepo := repository.NewEventLogRepository(db)

	eventLog := eventlog.New(eventLogRepo, prodClock)
	teamManager := team.NewManager(teamRepo, rbtRepo, clientRepo, eventLog, prodClock)

	deps := service.NewDeps(
		sessionRepo, teamRepo, rbtRepo, clientRepo, availabilityRepo,
		eventLog, availabilityCache, eventPublisher, prodClock, engine,
		cfg.Scheduling, appLogger,
	)

	schedulingService := service.NewSchedulingService(deps)
	cancellationService := service.NewCancellationService(deps)
	unavailabilityService := service.NewUnavailabilityService(deps)
	optimizationService := service.NewOptimizationService(deps)

	jwtManager := jwt.NewManager(cfg.JWT)

	var eventSubscriber *events.Subscriber
	if natsConn != nil {
		eventSubscriber = events.NewSubscriber(natsConn, appLogger)
	}
	realtimeManager := realtime.NewSubscriptionManager(appLogger, eventSubscriber)
	go realtimeManager.Run()
	realtimeManager.StartEventSubscriptions()

	backgroundScheduler := scheduler.New(sessionRepo, availabilityCache, prodClock, appLogger)
	backgroundScheduler.Start()
	defer backgroundScheduler.Stop()

	healthHandler := handlers.NewHealthHandler(db, redisClient, natsConn)
	sessionHandler := handlers.NewSessionHandler(schedulingService, cancellationService, unavailabilityService, optimizationService, appLogger)
	teamHandler := handlers.NewTeamHandler(teamManager, appLogger)
	eventHandler := handlers.NewEventHandler(eventLog, appLogger)
	wsHandler := handlers.NewWebSocketHandler(realtimeManager, appLogger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(appLogger))
	router.Use(middleware.CORS())

	router.GET("/health", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/ws", wsHandler.HandleConnections)

	if redisClient != nil {
		router.Use(middleware.RateLimit(redisClient, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Window, appLogger))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(jwtManager, appLogger))
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.ScheduleSession)
			sessions.POST("/bulk", sessionHandler.BulkScheduleSessions)
			sessions.GET("/alternatives", sessionHandler.FindAlternatives)
			sessions.PUT("/:sessionId/reschedule", sessionHandler.RescheduleSession)
			sessions.POST("/:sessionId/cancel", sessionHandler.CancelSession)
			sessions.POST("/cancel/bulk", sessionHandler.BulkCancelSessions)
			sessions.GET("/cancellations/stats", sessionHandler.CancellationStats)
			sessions.GET("/:sessionId/optimal-reschedule", sessionHandler.FindOptimalReschedulingOptions)
			sessions.GET("/:sessionId/reschedule-impact", sessionHandler.AnalyzeReschedulingImpact)
		}

		v1.POST("/rbts/:rbtId/unavailability", sessionHandler.ProcessUnavailability)
		v1.POST("/rbts/:rbtId/unavailability/resolve", sessionHandler.ResolveUnavailability)

		teams := v1.Group("/teams")
		{
			teams.POST("", teamHandler.AssignTeam)
			teams.POST("/:teamId/members", teamHandler.AddRbt)
			teams.DELETE("/:teamId/members/:rbtId", teamHandler.RemoveRbt)
			teams.PUT("/:teamId/primary", teamHandler.ChangePrimaryRbt)
			teams.POST("/:teamId/end", teamHandler.EndTeam)
		}

		v1.GET("/events", eventHandler.ListEvents)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting Scheduling Service", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down Scheduling Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Scheduling Service stopped")
}
