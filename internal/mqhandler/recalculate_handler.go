package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "buildtrack/contracts/mq"
	"buildtrack/internal/service"
	"buildtrack/pkg/logger"
)

// ProjectRecalculateHandler 消费 project.recalculate 命令
type ProjectRecalculateHandler struct {
	recalculator *service.Recalculator
	guard        *Guard
	logger       *zap.Logger
}

func NewProjectRecalculateHandler(recalculator *service.Recalculator, guard *Guard, logger *zap.Logger) *ProjectRecalculateHandler {
	return &ProjectRecalculateHandler{
		recalculator: recalculator,
		guard:        guard,
		logger:       logger,
	}
}

func (h *ProjectRecalculateHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.ProjectRecalculatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return h.guard.Run(ctx, "recalculate", mqcontracts.RoutingProjectRecalculate, "", raw, func(context.Context) error {
			return fmt.Errorf("decode recalculate payload: %w", err)
		})
	}

	return h.guard.Run(ctx, "recalculate", mqcontracts.RoutingProjectRecalculate, p.EventID, raw, func(ctx context.Context) error {
		res, err := h.recalculator.Run(ctx, p.ProjectID, service.TriggerCommand)
		if err != nil {
			return err
		}
		logger.WithTrace(ctx, h.logger).Info("Project progress recalculated",
			zap.String("project_id", p.ProjectID),
			zap.String("reason", p.Reason),
			zap.Int("previous", res.Previous),
			zap.Int("progress", res.Progress),
			zap.Bool("changed", res.Changed),
		)
		return nil
	})
}
