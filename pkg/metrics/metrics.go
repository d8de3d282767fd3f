package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		},
	)

	// 里程碑状态流转，result: ok / rejected_by_policy / error
	MilestoneTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milestone_transitions_total",
			Help: "Milestone workflow transitions by action and result",
		},
		[]string{"action", "result"},
	)

	// 进度重算，trigger: read / review / report / explicit / command
	ProgressRecalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_progress_recalculations_total",
			Help: "Project progress recalculations by trigger",
		},
		[]string{"trigger", "changed"},
	)

	ProgressRecalcDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "project_progress_recalc_duration_seconds",
			Help:    "Time spent recomputing and persisting project progress",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// Outbox 发布计数，status: sent / failed
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events published to MQ",
		},
		[]string{"routing_key", "status"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 低库存告警计数
	LowStockAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_low_stock_alerts_total",
			Help: "Inventory items that crossed into low stock",
		},
	)

	// 通知计数，kind: milestone_reviewed / low_stock
	NotificationsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_logged_total",
			Help: "Notifications emitted by the worker",
		},
		[]string{"kind"},
	)

	// 熔断器状态：0 closed / 1 open / 2 half_open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state per dependency",
		},
		[]string{"name"},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(statement string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(statement).Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}

// RecordTransition 记录里程碑状态流转
func RecordTransition(action, result string) {
	MilestoneTransitions.WithLabelValues(action, result).Inc()
}

// RecordRecalculation 记录一次进度重算
func RecordRecalculation(trigger string, changed bool, duration time.Duration) {
	c := "false"
	if changed {
		c = "true"
	}
	ProgressRecalculations.WithLabelValues(trigger, c).Inc()
	ProgressRecalcDuration.Observe(duration.Seconds())
}

// RecordOutboxPublish 记录 outbox 发布结果
func RecordOutboxPublish(routingKey, status string) {
	OutboxPublished.WithLabelValues(routingKey, status).Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementNotification 增加通知计数
func IncrementNotification(kind string) {
	NotificationsLogged.WithLabelValues(kind).Inc()
}

func SetBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}
