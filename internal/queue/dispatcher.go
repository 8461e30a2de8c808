package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"b2b_workflow/internal/metrics"
)

// DispatcherConfig 事件分发参数。
type DispatcherConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Dispatcher 以“发后即忘”的方式把事件交给 Sink：
//   - Emit 永不阻塞，队列满时直接丢弃并计数
//   - 每次投递都有超时，慢或失败的 Sink 不影响已提交的迁移
//   - 投递失败只记日志，不重试
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan Event
	wg     sync.WaitGroup
}

func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	d := &Dispatcher{
		sink:    sink,
		timeout: cfg.Timeout,
		logger:  logger,
		ch:      make(chan Event, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Emit 入队一条事件，返回是否被接受。
func (d *Dispatcher) Emit(e Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.SinkEventsTotal.WithLabelValues("dropped").Inc()
		d.logger.Warn("dispatcher closed, event dropped", "event_id", e.ID, "kind", e.Kind, "entity_id", e.EntityID)
		return false
	}
	select {
	case d.ch <- e:
		metrics.SinkQueueDepth.Inc()
		return true
	default:
		metrics.SinkEventsTotal.WithLabelValues("dropped").Inc()
		d.logger.Warn("sink queue full, event dropped", "event_id", e.ID, "kind", e.Kind, "entity_id", e.EntityID)
		return false
	}
}

// Close 停止接收新事件并等待队列中的事件投递完毕。
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for e := range d.ch {
		metrics.SinkQueueDepth.Dec()
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.SinkEventsTotal.WithLabelValues("failed").Inc()
			d.logger.Error("sink panicked", "event_id", e.ID, "panic", r)
		}
	}()

	if err := d.sink.Publish(ctx, e); err != nil {
		metrics.SinkEventsTotal.WithLabelValues("failed").Inc()
		d.logger.Error("sink publish failed", "event_id", e.ID, "kind", e.Kind, "entity_id", e.EntityID, "err", err)
		return
	}
	metrics.SinkEventsTotal.WithLabelValues("delivered").Inc()
}
