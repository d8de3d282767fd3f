package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"buildtrack/internal/service"
)

type ReportHandler struct {
	reports *service.ReportService
	logger  *zap.Logger
}

func NewReportHandler(reports *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// ListByProject GET /api/reports/project/:projectId?startDate=&endDate=&page=&limit=
func (h *ReportHandler) ListByProject(c *gin.Context) {
	q := service.ReportQuery{
		From: c.Query("startDate"),
		To:   c.Query("endDate"),
		Page: pageOf(c),
	}
	reports, page, err := h.reports.List(c.Request.Context(), actorOf(c), c.Param("projectId"), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, reports, page)
}

// Mine GET /api/reports/user/my-reports
func (h *ReportHandler) Mine(c *gin.Context) {
	reports, page, err := h.reports.Mine(c.Request.Context(), actorOf(c), pageOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, reports, page)
}

func (h *ReportHandler) Get(c *gin.Context) {
	rep, err := h.reports.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, rep)
}

func (h *ReportHandler) Create(c *gin.Context) {
	var req service.CreateReportInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	rep, err := h.reports.Create(c.Request.Context(), actorOf(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, rep)
}

func (h *ReportHandler) Update(c *gin.Context) {
	var req service.UpdateReportInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	rep, err := h.reports.Update(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, rep)
}

func (h *ReportHandler) Delete(c *gin.Context) {
	if err := h.reports.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, "daily report deleted")
}
