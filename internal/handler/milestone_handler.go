package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"buildtrack/internal/service"
	"buildtrack/pkg/logger"
)

type MilestoneHandler struct {
	milestones *service.MilestoneService
	logger     *zap.Logger
}

func NewMilestoneHandler(milestones *service.MilestoneService, logger *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones, logger: logger}
}

// ListByProject GET /api/milestones/project/:projectId
func (h *MilestoneHandler) ListByProject(c *gin.Context) {
	list, err := h.milestones.ListByProject(c.Request.Context(), actorOf(c), c.Param("projectId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, list)
}

// PendingApprovals GET /api/milestones/status/pending-approval
func (h *MilestoneHandler) PendingApprovals(c *gin.Context) {
	list, err := h.milestones.PendingApprovals(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *MilestoneHandler) Get(c *gin.Context) {
	m, err := h.milestones.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, m)
}

func (h *MilestoneHandler) Create(c *gin.Context) {
	var req service.CreateMilestoneInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	m, err := h.milestones.Create(c.Request.Context(), actorOf(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, m)
}

func (h *MilestoneHandler) Update(c *gin.Context) {
	var req service.UpdateMilestoneInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	m, err := h.milestones.Update(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, m)
}

func (h *MilestoneHandler) Delete(c *gin.Context) {
	if err := h.milestones.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, "milestone deleted")
}

// Submit PUT /api/milestones/:id/submit
func (h *MilestoneHandler) Submit(c *gin.Context) {
	m, err := h.milestones.Submit(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, m)
}

// Review PUT /api/milestones/:id/approve，body {"status": "approved"|"rejected", "comments": "..."}
func (h *MilestoneHandler) Review(c *gin.Context) {
	actor := actorOf(c)
	logger.WithTrace(c.Request.Context(), h.logger).Info("Milestone review request received",
		zap.String("milestone_id", c.Param("id")),
		zap.String("user_id", actor.UserID),
	)

	var req service.ReviewInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	res, err := h.milestones.Review(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res)
}
