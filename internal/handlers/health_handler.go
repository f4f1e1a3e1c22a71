package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler answers liveness/readiness probes. Grounded on the
// teacher's health endpoints, extended to check every downstream the core
// depends on (spec.md: "the service must not report ready while any
// dependency it needs for correctness is unreachable").
type HealthHandler struct {
	DB    *gorm.DB
	Redis *redis.Client
	NATS  *nats.Conn
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) *HealthHandler {
	return &HealthHandler{DB: db, Redis: redisClient, NATS: natsConn}
}

// Live handles GET /health — process is up, nothing more.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready — every downstream dependency must answer.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		checks["database"] = "unreachable"
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if h.Redis == nil || h.Redis.Ping(c.Request.Context()).Err() != nil {
		checks["redis"] = "unreachable"
		ready = false
	} else {
		checks["redis"] = "ok"
	}

	if h.NATS == nil || !h.NATS.IsConnected() {
		checks["nats"] = "unreachable"
		ready = false
	} else {
		checks["nats"] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
