package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer 封装 Kafka 写入器，同时实现 Sink。
type Producer struct {
	w *kafka.Writer
}

// NewProducer 创建生产者并配置可靠性参数：
// - Hash + Key: 同一实体的事件落到同一分区，保证单实体有序。
// - RequireAll: 等待 ISR 副本确认，降低消息丢失风险。
// - MaxAttempts/Timeout: 控制重试与超时边界。
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            5,
			WriteTimeout:           5 * time.Second,
			ReadTimeout:            5 * time.Second,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Close 释放 writer 资源。
func (p *Producer) Close() error { return p.w.Close() }

// Publish 同步写入一条领域事件。
func (p *Producer) Publish(ctx context.Context, e Event) error {
	b, err := encodeMessage(e)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, b)
}

func encodeMessage(e Event) (kafka.Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.Key()),
		Value: b,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "entity_kind", Value: []byte(e.Kind)},
		},
	}, nil
}
