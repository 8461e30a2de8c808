package queue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	rd "github.com/redis/go-redis/v9"

	"b2b_workflow/internal/metrics"
)

// Relay 将 Redis Stream 中的领域事件异步转发到下游（通常是 Kafka）。
// 语义：下游发布成功后才 ACK Stream，失败则保留消息等待重试。
type Relay struct {
	rdb    *rd.Client
	target Sink
	logger *slog.Logger

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, target Sink, stream, group, consumer string, logger *slog.Logger) *Relay {
	return &Relay{
		rdb:      rdb,
		target:   target,
		logger:   logger,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

// Run 阻塞运行直到 ctx 取消。
func (r *Relay) Run(ctx context.Context) error {
	// Redis 暂不可用时持续重试，不拖垮整个进程
	for {
		err := r.ensureGroup(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Error("relay ensure group", "err", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := r.pollOnce(ctx, 2*time.Second); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			r.logger.Error("relay poll", "err", err)
			time.Sleep(300 * time.Millisecond)
		}
	}
}

// pollOnce 先处理本消费者遗留的 pending 消息，没有时再阻塞读取新消息。
// 返回成功转发的条数。
func (r *Relay) pollOnce(ctx context.Context, block time.Duration) (int, error) {
	msgs, err := r.readGroup(ctx, "0", 0)
	if err != nil {
		return 0, errors.Wrap(err, "read pending")
	}
	if len(msgs) == 0 {
		msgs, err = r.readGroup(ctx, ">", block)
		if err != nil {
			return 0, errors.Wrap(err, "read new")
		}
	}

	n := 0
	for _, xm := range msgs {
		relayed, err := r.processOne(ctx, xm)
		if err != nil {
			// 发布失败不 ACK，消息会继续保留用于重试。
			metrics.RelayMessagesTotal.WithLabelValues("retry").Inc()
			return n, errors.Wrapf(err, "process message id=%s", xm.ID)
		}
		if relayed {
			n++
		}
	}
	return n, nil
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	args := &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
		NoAck:    false,
	}
	// 读取 pending 时不能阻塞；go-redis 中 Block=0 表示永久阻塞，需传负值关闭 BLOCK。
	if block <= 0 {
		args.Block = -1
	}
	streams, err := r.rdb.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

// processOne 返回消息是否被转发；脏消息 ACK 后丢弃，返回 false。
func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) (bool, error) {
	e, err := parseEvent(xm.Values)
	if err != nil {
		// 脏消息直接 ACK 丢弃，避免阻塞队列。
		metrics.RelayMessagesTotal.WithLabelValues("discarded").Inc()
		r.logger.Warn("relay discard malformed message", "id", xm.ID, "err", err)
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return false, errors.Wrapf(ackErr, "parse failed: %v, ack failed", err)
		}
		return false, nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.target.Publish(pubCtx, e); err != nil {
		return false, err
	}
	metrics.RelayMessagesTotal.WithLabelValues("relayed").Inc()
	return true, r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}
