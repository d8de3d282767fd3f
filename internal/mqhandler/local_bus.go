package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"buildtrack/pkg/mq"
)

// LocalBus memory 驱动下代替 RabbitMQ，outbox Dispatcher 发布时同步调用进程内的处理函数。
// 处理函数返回错误时发布失败，由 outbox 负责退避重试。
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]mq.MessageHandler
	logger   *zap.Logger
}

func NewLocalBus(logger *zap.Logger) *LocalBus {
	return &LocalBus{
		handlers: make(map[string][]mq.MessageHandler),
		logger:   logger,
	}
}

func (b *LocalBus) Subscribe(routingKey string, h mq.MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[routingKey] = append(b.handlers[routingKey], h)
}

func (b *LocalBus) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	handlers := b.handlers[routingKey]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("No local subscriber for event", zap.String("routing_key", routingKey))
		return nil
	}
	for _, h := range handlers {
		if err := h(ctx, body); err != nil {
			return fmt.Errorf("local handler for %s: %w", routingKey, err)
		}
	}
	return nil
}
