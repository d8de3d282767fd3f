package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"buildtrack/internal/model"
	"buildtrack/internal/service"
)

type ProjectHandler struct {
	projects *service.ProjectService
	logger   *zap.Logger
}

func NewProjectHandler(projects *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// List GET /api/projects?status=&priority=&search=&page=&limit=
func (h *ProjectHandler) List(c *gin.Context) {
	q := service.ProjectQuery{
		Status:   model.ProjectStatus(c.Query("status")),
		Priority: model.Priority(c.Query("priority")),
		Search:   c.Query("search"),
		Page:     pageOf(c),
	}
	projects, page, err := h.projects.List(c.Request.Context(), actorOf(c), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, projects, page)
}

// Create POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	p, err := h.projects.Create(c.Request.Context(), actorOf(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, p)
}

// Get GET /api/projects/:id，读取时重算进度
func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// Update PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req service.UpdateProjectInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	p, err := h.projects.Update(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// Delete DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, "project deleted")
}

// UpdateBudget PUT /api/projects/:id/budget
func (h *ProjectHandler) UpdateBudget(c *gin.Context) {
	var req model.Budget
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	p, err := h.projects.UpdateBudget(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

type overrideProgressRequest struct {
	Progress *int `json:"progress" binding:"required"`
}

// OverrideProgress PUT /api/projects/:id/progress
func (h *ProjectHandler) OverrideProgress(c *gin.Context) {
	var req overrideProgressRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	p, err := h.projects.OverrideProgress(c.Request.Context(), actorOf(c), c.Param("id"), *req.Progress)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// Recalculate POST /api/projects/:id/calculate-progress
func (h *ProjectHandler) Recalculate(c *gin.Context) {
	res, err := h.projects.Recalculate(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res)
}
