// Package mq 提供 Kafka 生产者，通知以 JSON 写入主题，由外部网关消费投递
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/pantry/pkg/logger"
)

// KafkaConfig Kafka 配置，RetryBackoff 单位为毫秒
type KafkaConfig struct {
	Brokers      []string
	MaxRetries   int
	RetryBackoff int
}

// MessageWriter kafka.Writer 的写入能力，测试中可替换
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer 同一 key 的消息进入同一分区，保持接收人维度的顺序
type KafkaProducer struct {
	writer MessageWriter
	source string
}

// NewProducer 创建生产者，不会立即连接 broker
func NewProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}

	backoff := time.Duration(max(cfg.RetryBackoff, 1)) * time.Millisecond
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		MaxAttempts:            max(cfg.MaxRetries, 1),
		WriteBackoffMin:        backoff,
		WriteBackoffMax:        8 * backoff,
		BatchTimeout:           50 * time.Millisecond,
	}
	return NewProducerWithWriter(writer), nil
}

// NewProducerWithWriter 使用给定 writer
func NewProducerWithWriter(w MessageWriter) *KafkaProducer {
	return &KafkaProducer{writer: w, source: "pantry-order"}
}

// Publish 把 value 编码为 JSON 写入 topic
func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kafka: encode %s message: %w", topic, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "source", Value: []byte(p.source)},
		},
	})
	if err != nil {
		logger.Error(ctx, "kafka publish failed", "topic", topic, "error", err)
		return fmt.Errorf("kafka: publish to %s: %w", topic, err)
	}
	return nil
}

// Close 刷出缓冲并关闭
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
