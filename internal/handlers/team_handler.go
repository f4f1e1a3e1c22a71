package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/scheduling-service/internal/team"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

// TeamHandler exposes team.Manager over HTTP.
type TeamHandler struct {
	manager *team.Manager
	logger  *logger.Logger
}

func NewTeamHandler(manager *team.Manager, log *logger.Logger) *TeamHandler {
	return &TeamHandler{manager: manager, logger: log}
}

type assignTeamDTO struct {
	ClientID               string    `json:"clientId" binding:"required"`
	RbtIDs                 []string  `json:"rbtIds" binding:"required"`
	PrimaryRbtID           string    `json:"primaryRbtId" binding:"required"`
	EffectiveDate          time.Time `json:"effectiveDate" binding:"required"`
	RequiredQualifications []string  `json:"requiredQualifications"`
}

// AssignTeam handles POST /api/v1/teams
func (h *TeamHandler) AssignTeam(c *gin.Context) {
	var req assignTeamDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}

	newTeam, warnings, err := h.manager.AssignTeam(c.Request.Context(), team.AssignTeamRequest{
		ClientID:               req.ClientID,
		RbtIDs:                 req.RbtIDs,
		PrimaryRbtID:           req.PrimaryRbtID,
		EffectiveDate:          req.EffectiveDate,
		RequiredQualifications: req.RequiredQualifications,
		Actor:                  actorFrom(c),
	})
	if err != nil {
		h.logger.Error("failed to assign team", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"team": newTeam, "warnings": warnings})
}

type addRbtDTO struct {
	RbtID string `json:"rbtId" binding:"required"`
}

// AddRbt handles POST /api/v1/teams/:teamId/members
func (h *TeamHandler) AddRbt(c *gin.Context) {
	var req addRbtDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}
	if err := h.manager.AddRbt(c.Request.Context(), c.Param("teamId"), req.RbtID, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveRbt handles DELETE /api/v1/teams/:teamId/members/:rbtId
func (h *TeamHandler) RemoveRbt(c *gin.Context) {
	if err := h.manager.RemoveRbt(c.Request.Context(), c.Param("teamId"), c.Param("rbtId"), actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type changePrimaryDTO struct {
	NewPrimaryRbtID string `json:"newPrimaryRbtId" binding:"required"`
}

// ChangePrimaryRbt handles PUT /api/v1/teams/:teamId/primary
func (h *TeamHandler) ChangePrimaryRbt(c *gin.Context) {
	var req changePrimaryDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}
	if err := h.manager.ChangePrimaryRbt(c.Request.Context(), c.Param("teamId"), req.NewPrimaryRbtID, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type endTeamDTO struct {
	EndDate time.Time `json:"endDate" binding:"required"`
}

// EndTeam handles POST /api/v1/teams/:teamId/end
func (h *TeamHandler) EndTeam(c *gin.Context) {
	var req endTeamDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}
	if err := h.manager.EndTeam(c.Request.Context(), c.Param("teamId"), req.EndDate, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
