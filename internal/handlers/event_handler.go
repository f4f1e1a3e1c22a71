package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/scheduling-service/internal/eventlog"
	"github.com/slotwise/scheduling-service/internal/models"
	"github.com/slotwise/scheduling-service/internal/repository"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

// EventHandler exposes the EventLog's query surface (spec.md §4.11: "Queries
// support filters on event type, involved ids, and creation-time window").
type EventHandler struct {
	events *eventlog.Log
	logger *logger.Logger
}

func NewEventHandler(events *eventlog.Log, log *logger.Logger) *EventHandler {
	return &EventHandler{events: events, logger: log}
}

// ListEvents handles GET /api/v1/events (optional eventType, sessionId,
// rbtId, clientId, since, until, page, limit query params), grounded on
// BookingHandler.ListBookings' page/limit->offset conversion and
// data+pagination envelope.
func (h *EventHandler) ListEvents(c *gin.Context) {
	limit, offset, page := paginationParams(c)

	filter := repository.EventFilter{Limit: limit, Offset: offset}
	if v := c.Query("eventType"); v != "" {
		eventType := models.EventType(v)
		filter.EventType = &eventType
	}
	if v := c.Query("sessionId"); v != "" {
		filter.SessionID = &v
	}
	if v := c.Query("rbtId"); v != "" {
		filter.RbtID = &v
	}
	if v := c.Query("clientId"); v != "" {
		filter.ClientID = &v
	}
	if v := c.Query("since"); v != "" {
		if since, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = &since
		}
	}
	if v := c.Query("until"); v != "" {
		if until, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Until = &until
		}
	}

	events, err := h.events.Query(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list schedule events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve events: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": events,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
		},
	})
}
