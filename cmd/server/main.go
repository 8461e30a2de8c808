package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"b2b_workflow/internal/config"
	"b2b_workflow/internal/engine"
	"b2b_workflow/internal/middleware"
	"b2b_workflow/internal/queue"
	"b2b_workflow/internal/router"
	"b2b_workflow/internal/store"
	"b2b_workflow/pkg/log"
)

// outbox Stream 近似上限，Relay 正常时会及时删除已转发的消息
const streamMaxLen = 100000

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return err
	}
	logger := log.Logger("server")

	// 1. 连接 SQLite，自动建表
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := store.Migrate(db); err != nil {
		return err
	}
	st := store.New(db)

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// 限流与幂等会降级放行，stream 模式下事件投递会失败并计数
		logger.Warn("redis unavailable at startup", "addr", cfg.RedisAddr, "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// 2. 事件投递链路
	var sink queue.Sink
	switch cfg.EventSink {
	case config.SinkStream:
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		sink = queue.NewStreamSink(rdb, cfg.EventStream, streamMaxLen)
		relay := queue.NewRelay(rdb, producer, cfg.EventStream, cfg.EventGroup, cfg.EventConsumer, log.Logger("relay"))
		g.Go(func() error { return relay.Run(gctx) })
	case config.SinkKafka:
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		sink = producer
	default:
		// 没有 Kafka 时直接落审计流水
		sink = queue.MultiSink{queue.NewLogSink(log.Logger("events")), queue.NewAuditSink(st)}
	}
	dispatcher := queue.NewDispatcher(sink, queue.DispatcherConfig{
		QueueSize: cfg.SinkQueueSize,
		Workers:   cfg.SinkWorkers,
		Timeout:   cfg.SinkTimeout(),
	}, log.Logger("dispatcher"))

	if cfg.AuditConsumerEnabled && cfg.EventSink != config.SinkLog {
		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, st, log.Logger("audit"))
		defer consumer.Close()
		g.Go(func() error { return consumer.Run(gctx) })
	}

	// 3. HTTP
	eng := engine.New(st, dispatcher, engine.WithLogger(log.Logger("engine")))
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(log.Logger("http")))
	router.Setup(r, router.Deps{
		Engine: eng,
		Store:  st,
		Redis:  rdb,
		Config: cfg,
		Logger: log.Logger("router"),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "sink", cfg.EventSink)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	// HTTP 已停止，投递剩余事件后再关闭 Kafka/Redis
	dispatcher.Close()
	logger.Info("server stopped")
	return err
}
