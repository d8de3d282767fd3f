package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/pkg/logger"
	"buildtrack/pkg/metrics"
)

const (
	NotificationMilestoneReviewed = "milestone_reviewed"
	NotificationLowStock          = "low_stock"
)

// NotificationHandler 把审批结果和低库存告警写成通知日志
type NotificationHandler struct {
	guard  *Guard
	logger *zap.Logger
}

func NewNotificationHandler(guard *Guard, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{guard: guard, logger: logger}
}

func (h *NotificationHandler) HandleMilestoneReviewed(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.MilestoneReviewedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return h.undecodable(ctx, mqcontracts.RoutingMilestoneReviewed, raw, err)
	}

	return h.guard.Run(ctx, "notify_reviewed", mqcontracts.RoutingMilestoneReviewed, p.EventID, raw, func(ctx context.Context) error {
		logger.WithTrace(ctx, h.logger).Info("Milestone review notification",
			zap.String("milestone_id", p.MilestoneID),
			zap.String("project_id", p.ProjectID),
			zap.String("title", p.Title),
			zap.String("decision", p.Decision),
			zap.String("reviewed_by", p.ReviewedBy),
			zap.Int("project_progress", p.ProjectProgress),
		)
		metrics.IncrementNotification(NotificationMilestoneReviewed)
		return nil
	})
}

func (h *NotificationHandler) HandleLowStock(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.InventoryLowStockPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return h.undecodable(ctx, mqcontracts.RoutingInventoryLowStock, raw, err)
	}

	return h.guard.Run(ctx, "notify_low_stock", mqcontracts.RoutingInventoryLowStock, p.EventID, raw, func(ctx context.Context) error {
		logger.WithTrace(ctx, h.logger).Warn("Low stock notification",
			zap.String("item_id", p.ItemID),
			zap.String("project_id", p.ProjectID),
			zap.String("name", p.Name),
			zap.Float64("quantity", p.Quantity),
			zap.Float64("min_quantity", p.MinQuantity),
			zap.String("unit", p.Unit),
		)
		metrics.IncrementNotification(NotificationLowStock)
		return nil
	})
}

func (h *NotificationHandler) undecodable(ctx context.Context, routingKey string, raw json.RawMessage, err error) error {
	return h.guard.Run(ctx, "notify", routingKey, "", raw, func(context.Context) error {
		return fmt.Errorf("decode %s payload: %w", routingKey, err)
	})
}
