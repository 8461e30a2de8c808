package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"b2b_workflow/internal/metrics"
	"b2b_workflow/internal/model"
)

// AuditWriter 审计流水落库接口，由 store.Store 实现。
type AuditWriter interface {
	AppendLog(ctx context.Context, entry *model.TransitionLog) error
}

// Consumer 从 Kafka 读取领域事件并写入审计流水。
type Consumer struct {
	r      *kafka.Reader
	audit  AuditWriter
	logger *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, audit AuditWriter, logger *slog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		audit:  audit,
		logger: logger,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

const handleAttempts = 3

// Run 阻塞消费直到 ctx 取消。
// 落库失败时原地重试，重试耗尽才跳过并提交 offset；EventID 唯一保证重复消息无害。
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "consumer fetch")
		}

		for attempt := 1; attempt <= handleAttempts; attempt++ {
			err = c.handle(ctx, m.Value)
			if err == nil || ctx.Err() != nil {
				break
			}
			c.logger.Error("consumer handle", "offset", m.Offset, "partition", m.Partition, "attempt", attempt, "err", err)
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("consumer commit", "offset", m.Offset, "err", err)
		}
	}
}

// handle 处理单条消息。脏消息返回 nil（跳过并提交），落库失败返回错误。
func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		metrics.AuditLogsTotal.WithLabelValues("malformed").Inc()
		c.logger.Warn("consumer unmarshal", "err", err)
		return nil
	}
	if err := e.Validate(); err != nil {
		metrics.AuditLogsTotal.WithLabelValues("malformed").Inc()
		c.logger.Warn("consumer invalid event", "err", err)
		return nil
	}
	if err := c.audit.AppendLog(ctx, e.AuditLog()); err != nil {
		metrics.AuditLogsTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.AuditLogsTotal.WithLabelValues("stored").Inc()
	return nil
}
