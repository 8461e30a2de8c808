package queue

import (
	"context"
	stderrors "errors"
	"log/slog"

	rd "github.com/redis/go-redis/v9"
)

// Sink 接收领域事件（通知/审计）。引擎不依赖其成功与否。
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc 便于测试与组合。
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// StreamSink 把事件写入 Redis Stream（outbox），由 Relay 异步转发到 Kafka。
type StreamSink struct {
	rdb    *rd.Client
	stream string
	maxLen int64
}

func NewStreamSink(rdb *rd.Client, stream string, maxLen int64) *StreamSink {
	return &StreamSink{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Publish(ctx context.Context, e Event) error {
	args := &rd.XAddArgs{
		Stream: s.stream,
		Values: e.Values(),
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.rdb.XAdd(ctx, args).Err()
}

// LogSink 只记录日志，未配置外部中间件时使用。
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "domain event",
		"event_id", e.ID,
		"kind", e.Kind,
		"entity_id", e.EntityID,
		"from", e.From,
		"to", e.To,
		"actor_id", e.ActorID,
		"role", e.ActorRole,
	)
	return nil
}

// MultiSink 依次投递到全部下游，汇总错误。
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// AuditSink 直接写审计流水，不经过 Kafka。用于 log 模式与命令行工具。
type AuditSink struct {
	w AuditWriter
}

func NewAuditSink(w AuditWriter) *AuditSink {
	return &AuditSink{w: w}
}

func (s *AuditSink) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return s.w.AppendLog(ctx, e.AuditLog())
}
