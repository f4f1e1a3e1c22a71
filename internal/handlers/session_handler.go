package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/scheduling-service/internal/service"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

// SessionHandler exposes the four mutator services (spec.md §4.7-§4.10)
// over HTTP. Grounded on BookingHandler's DTO-binding / error-mapping
// shape.
type SessionHandler struct {
	scheduling   *service.SchedulingService
	cancellation *service.CancellationService
	unavailability *service.UnavailabilityService
	optimization *service.OptimizationService
	logger       *logger.Logger
}

func NewSessionHandler(
	scheduling *service.SchedulingService,
	cancellation *service.CancellationService,
	unavailability *service.UnavailabilityService,
	optimization *service.OptimizationService,
	log *logger.Logger,
) *SessionHandler {
	return &SessionHandler{
		scheduling: scheduling, cancellation: cancellation,
		unavailability: unavailability, optimization: optimization, logger: log,
	}
}

type scheduleSessionDTO struct {
	ClientID          string    `json:"clientId" binding:"required"`
	RbtID              string    `json:"rbtId"`
	StartTime          time.Time `json:"startTime" binding:"required"`
	Location           string    `json:"location" binding:"required"`
	Notes              string    `json:"notes"`
	AllowAlternatives  bool      `json:"allowAlternatives"`
}

// ScheduleSession handles POST /api/v1/sessions
func (h *SessionHandler) ScheduleSession(c *gin.Context) {
	var req scheduleSessionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}

	result, err := h.scheduling.ScheduleSession(c.Request.Context(), service.ScheduleSessionRequest{
		ClientID:          req.ClientID,
		RbtID:              req.RbtID,
		StartTime:          req.StartTime,
		Location:           req.Location,
		Notes:              req.Notes,
		AllowAlternatives:  req.AllowAlternatives,
		Actor:              actorFrom(c),
	})
	if err != nil {
		h.logger.Error("failed to schedule session", "error", err)
		respondError(c, err)
		return
	}
	if !result.Valid {
		c.JSON(http.StatusConflict, gin.H{"violations": result.Violations, "alternatives": result.Alternatives})
		return
	}
	c.JSON(http.StatusCreated, result)
}

type bulkScheduleDTO struct {
	ClientID        string           `json:"clientId" binding:"required"`
	StartDate       time.Time        `json:"startDate" binding:"required"`
	EndDate         time.Time        `json:"endDate" binding:"required"`
	PreferredTimes  map[string]string `json:"preferredTimes" binding:"required"`
	SessionsPerWeek int              `json:"sessionsPerWeek"`
	Location        string           `json:"location" binding:"required"`
}

var weekdayByName = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// BulkScheduleSessions handles POST /api/v1/sessions/bulk
func (h *SessionHandler) BulkScheduleSessions(c *gin.Context) {
	var req bulkScheduleDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}

	preferred := make(map[time.Weekday]string, len(req.PreferredTimes))
	for day, hhmm := range req.PreferredTimes {
		if wd, ok := weekdayByName[day]; ok {
			preferred[wd] = hhmm
		}
	}

	result, err := h.scheduling.BulkScheduleSessions(c.Request.Context(), service.BulkScheduleRequest{
		ClientID:        req.ClientID,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		PreferredTimes:  preferred,
		SessionsPerWeek: req.SessionsPerWeek,
		Location:        req.Location,
		Actor:           actorFrom(c),
	})
	if err != nil {
		h.logger.Error("failed to bulk schedule sessions", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// FindAlternatives handles GET /api/v1/sessions/alternatives
func (h *SessionHandler) FindAlternatives(c *gin.Context) {
	clientID := c.Query("clientId")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId query parameter is required"})
		return
	}
	preferredDate := time.Now()
	if ds := c.Query("preferredDate"); ds != "" {
		if parsed, err := time.Parse(time.RFC3339, ds); err == nil {
			preferredDate = parsed
		}
	}
	daysAhead, _ := parseIntQuery(c, "daysAhead", 7)

	alts, err := h.scheduling.FindAlternativeTimeSlots(c.Request.Context(), clientID, preferredDate, daysAhead)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alternatives": alts})
}

type rescheduleSessionDTO struct {
	NewStartTime time.Time `json:"newStartTime" binding:"required"`
	Reason       string    `json:"reason"`
}

// RescheduleSession handles PUT /api/v1/sessions/:sessionId/reschedule
func (h *SessionHandler) RescheduleSession(c *gin.Context) {
	var req rescheduleSessionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}

	result, err := h.scheduling.RescheduleSession(c.Request.Context(), service.RescheduleSessionRequest{
		SessionID:    c.Param("sessionId"),
		NewStartTime: req.NewStartTime,
		Reason:       req.Reason,
		Actor:        actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !result.Valid {
		c.JSON(http.StatusConflict, gin.H{"violations": result.Violations})
		return
	}
	c.JSON(http.StatusOK, result)
}

type cancelSessionDTO struct {
	Reason           string `json:"reason"`
	FindAlternatives bool   `json:"findAlternatives"`
	MaxAlternatives  int    `json:"maxAlternatives"`
}

// CancelSession handles POST /api/v1/sessions/:sessionId/cancel
func (h *SessionHandler) CancelSession(c *gin.Context) {
	var req cancelSessionDTO
	_ = c.ShouldBindJSON(&req)

	result, err := h.cancellation.CancelSession(c.Request.Context(), service.CancelSessionRequest{
		SessionID:        c.Param("sessionId"),
		Reason:           req.Reason,
		Actor:            actorFrom(c),
		FindAlternatives: req.FindAlternatives,
		MaxAlternatives:  req.MaxAlternatives,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type bulkCancelDTO struct {
	SessionIDs []string `json:"sessionIds" binding:"required"`
	Reason     string   `json:"reason"`
}

// BulkCancelSessions handles POST /api/v1/sessions/cancel/bulk
func (h *SessionHandler) BulkCancelSessions(c *gin.Context) {
	var req bulkCancelDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}

	requests := make([]service.CancelSessionRequest, len(req.SessionIDs))
	for i, id := range req.SessionIDs {
		requests[i] = service.CancelSessionRequest{SessionID: id, Reason: req.Reason, Actor: actorFrom(c)}
	}

	result := h.cancellation.BulkCancelSessions(c.Request.Context(), requests)
	c.JSON(http.StatusOK, result)
}

// CancellationStats handles GET /api/v1/sessions/cancellations/stats
func (h *SessionHandler) CancellationStats(c *gin.Context) {
	since := parseTimeQuery(c, "since", time.Now().AddDate(0, -1, 0))
	until := parseTimeQuery(c, "until", time.Now())

	stats, err := h.cancellation.CancellationStatsFor(c.Request.Context(), since, until)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type processUnavailabilityDTO struct {
	RbtID        string    `json:"rbtId" binding:"required"`
	StartDate    time.Time `json:"startDate" binding:"required"`
	EndDate      time.Time `json:"endDate" binding:"required"`
	Reason       string    `json:"reason"`
	Type         string    `json:"type"`
	AutoReassign bool      `json:"autoReassign"`
}

// ProcessUnavailability handles POST /api/v1/rbts/:rbtId/unavailability
func (h *SessionHandler) ProcessUnavailability(c *gin.Context) {
	var req processUnavailabilityDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}
	req.RbtID = c.Param("rbtId")

	result, err := h.unavailability.ProcessRBTUnavailability(c.Request.Context(), service.ProcessUnavailabilityRequest{
		RbtID: req.RbtID, StartDate: req.StartDate, EndDate: req.EndDate,
		Reason: req.Reason, Type: req.Type, AutoReassign: req.AutoReassign, Actor: actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ResolveUnavailability handles POST /api/v1/rbts/:rbtId/unavailability/resolve
func (h *SessionHandler) ResolveUnavailability(c *gin.Context) {
	var body struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&body)

	if err := h.unavailability.ResolveUnavailability(c.Request.Context(), c.Param("rbtId"), actorFrom(c), body.Note); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type findOptimalDTO struct {
	MaxDaysFromOriginal int    `json:"maxDaysFromOriginal"`
	AllowDifferentRBT    bool   `json:"allowDifferentRbt"`
	N                   int    `json:"limit"`
}

// FindOptimalReschedulingOptions handles GET /api/v1/sessions/:sessionId/optimal-reschedule
func (h *SessionHandler) FindOptimalReschedulingOptions(c *gin.Context) {
	maxDays, _ := parseIntQuery(c, "maxDaysFromOriginal", 7)
	n, _ := parseIntQuery(c, "limit", 5)
	allowDifferentRBT := c.Query("allowDifferentRbt") == "true"

	result, err := h.optimization.FindOptimalReschedulingOptions(c.Request.Context(), c.Param("sessionId"), service.ReschedulingPreferences{
		MaxDaysFromOriginal: maxDays,
		AllowDifferentRBT:   allowDifferentRBT,
	}, n)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzeReschedulingImpact handles GET /api/v1/sessions/:sessionId/reschedule-impact
func (h *SessionHandler) AnalyzeReschedulingImpact(c *gin.Context) {
	newStartStr := c.Query("newStartTime")
	newStart, err := time.Parse(time.RFC3339, newStartStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "newStartTime query parameter must be RFC3339"})
		return
	}

	result, err := h.optimization.AnalyzeReschedulingImpact(c.Request.Context(), c.Param("sessionId"), newStart, c.Query("newRbtId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseIntQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, err
	}
	return n, nil
}

func parseTimeQuery(c *gin.Context, key string, def time.Time) time.Time {
	v := c.Query(key)
	if v == "" {
		return def
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return def
	}
	return t
}

// actorFrom extracts the authenticated principal's user id set by
// middleware.Auth.
func actorFrom(c *gin.Context) string {
	if id, ok := c.Get("userID"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
