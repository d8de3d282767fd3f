package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"buildtrack/pkg/apperr"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/outbox"
)

const defaultFailedLimit = 50

// AdminHandler outbox 运维接口，仅 admin 可用
type AdminHandler struct {
	replay *outbox.ReplayService
	logger *zap.Logger
}

func NewAdminHandler(replay *outbox.ReplayService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{replay: replay, logger: logger}
}

type outboxEventView struct {
	ID            string     `json:"id"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   string     `json:"aggregate_id"`
	RoutingKey    string     `json:"routing_key"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func viewOf(e *outbox.Event) outboxEventView {
	return outboxEventView{
		ID:            e.ID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		RoutingKey:    e.RoutingKey,
		Status:        e.Status,
		RetryCount:    e.RetryCount,
		NextRetryAt:   e.NextRetryAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func limitOf(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 || n > 500 {
		return defaultFailedLimit
	}
	return n
}

// FailedEvents GET /api/admin/outbox/failed?limit=
func (h *AdminHandler) FailedEvents(c *gin.Context) {
	events, err := h.replay.FailedEvents(c.Request.Context(), limitOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	views := make([]outboxEventView, 0, len(events))
	for _, e := range events {
		views = append(views, viewOf(e))
	}
	respond(c, http.StatusOK, views)
}

// Replay POST /api/admin/outbox/:id/replay
func (h *AdminHandler) Replay(c *gin.Context) {
	id := c.Param("id")
	logger.WithTrace(c.Request.Context(), h.logger).Info("Outbox replay requested",
		zap.String("event_id", id),
		zap.String("user_id", actorOf(c).UserID),
	)
	if err := h.replay.ReplayEvent(c.Request.Context(), id); err != nil {
		if errors.Is(err, outbox.ErrEventNotFound) {
			err = apperr.NotFound("outbox event")
		}
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, "event replayed")
}

// ReplayFailed POST /api/admin/outbox/replay-failed?limit=
func (h *AdminHandler) ReplayFailed(c *gin.Context) {
	n, err := h.replay.ReplayFailedEvents(c.Request.Context(), limitOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"replayed": n})
}
