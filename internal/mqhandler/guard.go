// Package mqhandler worker 侧的消息处理：去重、重试计数、死信
package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"buildtrack/pkg/logger"
	"buildtrack/pkg/mq"
	"buildtrack/pkg/util"
)

const defaultMaxRetries = 5

// DeadLetterPublisher 由 *mq.Publisher 实现
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, d mq.DeadLetter) error
}

// Guard 包住一次处理。deduper / retries / dlq 为 nil 时对应能力关闭（memory 驱动）
type Guard struct {
	deduper    *util.Deduper
	retries    *util.RetryCounter
	dlq        DeadLetterPublisher
	maxRetries int64
	logger     *zap.Logger
}

func NewGuard(deduper *util.Deduper, retries *util.RetryCounter, dlq DeadLetterPublisher, maxRetries int, logger *zap.Logger) *Guard {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Guard{
		deduper:    deduper,
		retries:    retries,
		dlq:        dlq,
		maxRetries: int64(maxRetries),
		logger:     logger,
	}
}

// Run 返回 error 表示需要重投；放弃的消息进死信后返回 nil
func (g *Guard) Run(ctx context.Context, name, routingKey, eventID string, raw json.RawMessage, fn func(ctx context.Context) error) error {
	log := logger.WithTrace(ctx, g.logger).With(
		zap.String("handler", name),
		zap.String("event_id", eventID),
	)

	dedup := g.deduper != nil && eventID != ""
	if dedup && !g.deduper.AcquireOnce(ctx, name, eventID) {
		return nil
	}

	retryKey := util.FormatRetryKey(name, eventID)
	err := fn(ctx)
	if err == nil {
		g.resetRetries(ctx, retryKey)
		return nil
	}

	retryable, errType := util.IsRetryableError(err)
	if errType == "not_found" {
		// 目标已被删除，没有可做的事
		log.Info("Target no longer exists, acking", zap.Error(err))
		g.resetRetries(ctx, retryKey)
		return nil
	}

	count := int64(1)
	if g.retries != nil && eventID != "" {
		n, cerr := g.retries.IncrementAndGet(ctx, retryKey)
		if cerr != nil {
			log.Warn("Failed to get retry count, continuing anyway", zap.Error(cerr))
		} else {
			count = n
		}
	}

	log.Error("Handler failed",
		zap.String("error_type", errType),
		zap.Bool("retryable", retryable),
		zap.Int64("retry_count", count),
		zap.Int64("max_retries", g.maxRetries),
		zap.Error(err),
	)

	if util.ShouldRetry(count, g.maxRetries, retryable) {
		if dedup {
			g.deduper.Release(ctx, name, eventID)
		}
		return err
	}

	if g.dlq != nil {
		letter := mq.DeadLetter{
			RoutingKey: routingKey,
			Handler:    name,
			EventID:    eventID,
			Payload:    raw,
			Reason:     err.Error(),
			Attempts:   count,
		}
		if dErr := g.dlq.PublishToDLQ(ctx, letter); dErr != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(dErr))
			if dedup {
				g.deduper.Release(ctx, name, eventID)
			}
			return dErr
		}
		log.Warn("Message sent to DLQ", zap.String("routing_key", routingKey))
	} else {
		log.Warn("Message dropped after giving up", zap.String("routing_key", routingKey))
	}
	g.resetRetries(ctx, retryKey)
	return nil
}

func (g *Guard) resetRetries(ctx context.Context, key string) {
	if g.retries == nil {
		return
	}
	if err := g.retries.Reset(ctx, key); err != nil {
		g.logger.Warn("Failed to reset retry count", zap.String("key", key), zap.Error(err))
	}
}
