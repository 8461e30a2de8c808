package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"b2b_workflow/pkg/log"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"DB_PATH" envDefault:"workflow.db"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka 集群地址（逗号分隔）、Topic、审计消费者组
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"workflow-events"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"workflow-audit"`

	// Redis Stream outbox（引擎事件入流，Relay 异步转 Kafka）
	EventStream   string `env:"EVENT_STREAM" envDefault:"workflow:events"`
	EventGroup    string `env:"EVENT_GROUP" envDefault:"workflow-relay-group"`
	EventConsumer string `env:"EVENT_CONSUMER" envDefault:"workflow-relay-1"`
	// stream: Redis outbox + Relay；kafka: 直接写 Kafka；log: 只打日志
	EventSink string `env:"EVENT_SINK" envDefault:"stream"`

	SinkQueueSize int `env:"SINK_QUEUE_SIZE" envDefault:"1024"`
	SinkWorkers   int `env:"SINK_WORKERS" envDefault:"2"`
	SinkTimeoutMS int `env:"SINK_TIMEOUT_MS" envDefault:"2000"`

	// 迁移接口按用户限流
	TransitionRateLimit     int `env:"TRANSITION_RATE_LIMIT" envDefault:"60"`
	TransitionRateWindowSec int `env:"TRANSITION_RATE_WINDOW_SEC" envDefault:"1"`

	AuditConsumerEnabled bool `env:"AUDIT_CONSUMER_ENABLED" envDefault:"true"`

	Log log.Config
}

const (
	SinkStream = "stream"
	SinkKafka  = "kafka"
	SinkLog    = "log"
)

// SinkTimeout 单次事件投递超时
func (c AppConfig) SinkTimeout() time.Duration {
	return time.Duration(c.SinkTimeoutMS) * time.Millisecond
}

// TransitionRateWindow 限流窗口
func (c AppConfig) TransitionRateWindow() time.Duration {
	return time.Duration(c.TransitionRateWindowSec) * time.Second
}

// Load 读取并校验配置，缺失时使用默认值。工作目录下存在 .env 时先加载。
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, errors.Wrap(err, "load .env")
	}
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, errors.Wrap(err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate 校验取值范围与必填项。
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("HTTP_ADDR must not be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if c.RedisDB < 0 {
		return errors.New("REDIS_DB must be >= 0")
	}
	if c.SinkQueueSize <= 0 {
		return errors.New("SINK_QUEUE_SIZE must be > 0")
	}
	if c.SinkWorkers <= 0 {
		return errors.New("SINK_WORKERS must be > 0")
	}
	if c.SinkTimeoutMS <= 0 {
		return errors.New("SINK_TIMEOUT_MS must be > 0")
	}
	if c.TransitionRateLimit <= 0 {
		return errors.New("TRANSITION_RATE_LIMIT must be > 0")
	}
	if c.TransitionRateWindowSec <= 0 {
		return errors.New("TRANSITION_RATE_WINDOW_SEC must be > 0")
	}

	c.EventSink = strings.ToLower(strings.TrimSpace(c.EventSink))
	switch c.EventSink {
	case SinkStream:
		if c.EventStream == "" || c.EventGroup == "" || c.EventConsumer == "" {
			return errors.New("EVENT_STREAM, EVENT_GROUP and EVENT_CONSUMER must not be empty")
		}
	case SinkKafka, SinkLog:
	default:
		return errors.Errorf("EVENT_SINK must be one of stream|kafka|log, got %q", c.EventSink)
	}

	// Kafka 在 stream 模式下作为 Relay 的目标，也用于审计消费
	if c.EventSink != SinkLog || c.AuditConsumerEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS must not be empty")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC must not be empty")
		}
	}
	if c.AuditConsumerEnabled && c.KafkaGroupID == "" {
		return errors.New("KAFKA_GROUP_ID must not be empty")
	}

	if err := c.Log.Validate(); err != nil {
		return errors.Wrap(err, "log config")
	}
	return nil
}
