package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"buildtrack/pkg/trace"
)

const (
	DLQExchangeName = "buildtrack.dlq"

	// 死信保留 7 天，之后由 broker 丢弃
	dlqRetention = 7 * 24 * time.Hour
)

// 死信消息头
const (
	HeaderHandler  = "x-handler"
	HeaderEventID  = "x-event-id"
	HeaderReason   = "x-reason"
	HeaderAttempts = "x-attempts"
	HeaderFailedAt = "x-failed-at"
)

// DeadLetter 放弃处理的一条消息，Payload 为原始消息体
type DeadLetter struct {
	RoutingKey string
	Handler    string
	EventID    string
	Payload    []byte
	Reason     string
	Attempts   int64
}

func (d DeadLetter) headers(ctx context.Context, now time.Time) amqp091.Table {
	h := amqp091.Table{
		HeaderHandler:  d.Handler,
		HeaderReason:   d.Reason,
		HeaderAttempts: d.Attempts,
		HeaderFailedAt: now.UTC().Format(time.RFC3339),
	}
	if d.EventID != "" {
		h[HeaderEventID] = d.EventID
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		h[TraceHeader] = traceID
	}
	return h
}

// DLQName 每个路由键一条死信队列
func DLQName(routingKey string) string {
	return fmt.Sprintf("%s.%s", DLQExchangeName, routingKey)
}

func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(DLQExchangeName, "topic", true, false, false, false, nil)
}

// DeclareDLQQueue 声明并绑定 routingKey 的死信队列
func DeclareDLQQueue(ch *amqp091.Channel, routingKey string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		DLQName(routingKey),
		true,
		false,
		false,
		false,
		amqp091.Table{"x-message-ttl": dlqRetention.Milliseconds()},
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}
	return q, nil
}

// PublishToDLQ 原样转发消息体，失败原因与重试次数写入消息头
func (p *Publisher) PublishToDLQ(ctx context.Context, d DeadLetter) error {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(
		ctx,
		DLQExchangeName,
		d.RoutingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         d.Payload,
			DeliveryMode: amqp091.Persistent,
			MessageId:    d.EventID,
			Timestamp:    now,
			Headers:      d.headers(ctx, now),
		},
	)
}
