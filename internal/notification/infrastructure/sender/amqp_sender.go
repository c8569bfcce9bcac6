package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
	"github.com/wyfcoding/pantry/pkg/utils"
)

// AMQPPublisher 由 *amqp.Channel 实现
type AMQPPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSender 把通知指令发布到 RabbitMQ topic exchange
type AMQPSender struct {
	mu         sync.Mutex
	ch         AMQPPublisher
	exchange   string
	routingKey string
}

// NewAMQPSender 使用已有 channel 创建发送器
func NewAMQPSender(ch AMQPPublisher, exchange, routingKey string) *AMQPSender {
	return &AMQPSender{ch: ch, exchange: exchange, routingKey: routingKey}
}

// DialAMQP 连接 RabbitMQ 并声明持久化 topic exchange，启动阶段按退避重试
func DialAMQP(ctx context.Context, url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	err := utils.RetryWithBackoff(ctx, 5, 500*time.Millisecond, 5*time.Second, func() error {
		var dialErr error
		conn, dialErr = amqp.Dial(url)
		if dialErr != nil {
			logger.Warn(ctx, "RabbitMQ connection attempt failed", "error", dialErr)
		}
		return dialErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	logger.Info(ctx, "RabbitMQ connected", "exchange", exchange)
	return conn, ch, nil
}

// Send 发布 JSON 通知指令
func (s *AMQPSender) Send(ctx context.Context, target, subject, content string) error {
	body, err := json.Marshal(NotificationCommand{Target: target, Subject: subject, Content: content})
	if err != nil {
		return fmt.Errorf("could not marshal notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.ch.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish failed: %w", err)
	}
	return nil
}

var _ domain.Sender = (*AMQPSender)(nil)
