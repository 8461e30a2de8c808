// Package metrics 暴露工作流引擎的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal 按实体、边与结果统计迁移请求
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflow",
			Subsystem: "engine",
			Name:      "transitions_total",
			Help:      "Total number of transition requests by kind, edge and result",
		},
		[]string{"kind", "from", "to", "result"},
	)

	// TransitionDuration 单次迁移耗时（不含事件投递）
	TransitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "workflow",
			Subsystem: "engine",
			Name:      "transition_duration_seconds",
			Help:      "Duration of transition requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"kind"},
	)

	// CreatesTotal 按实体与结果统计创建请求
	CreatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflow",
			Subsystem: "engine",
			Name:      "creates_total",
			Help:      "Total number of create requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	// UpdatesTotal 不改变状态的属性操作（分派、调整优先级）
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflow",
			Subsystem: "engine",
			Name:      "updates_total",
			Help:      "Total number of attribute update requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	// SinkEventsTotal 事件投递结果：delivered / failed / dropped
	SinkEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflow",
			Subsystem: "sink",
			Name:      "events_total",
			Help:      "Total number of domain events by delivery result",
		},
		[]string{"result"},
	)

	// SinkQueueDepth 待投递事件数
	SinkQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "workflow",
			Subsystem: "sink",
			Name:      "queue_depth",
			Help:      "Number of domain events waiting for delivery",
		},
	)

	// RelayMessagesTotal Redis Stream -> Kafka 转发结果
	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflow",
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Total number of outbox messages relayed by result",
		},
		[]string{"result"},
	)

	// AuditLogsTotal 审计消费端落库结果
	AuditLogsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflow",
			Subsystem: "audit",
			Name:      "logs_total",
			Help:      "Total number of audit events consumed by result",
		},
		[]string{"result"},
	)
)
