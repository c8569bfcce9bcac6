package sender

import (
	"context"

	"github.com/wyfcoding/pantry/internal/notification/domain"
)

// NotificationCommand 发送到消息队列的统一指令格式
type NotificationCommand struct {
	Target  string `json:"target"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// MessageProducer 由 mq.KafkaProducer 实现
type MessageProducer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// KafkaNotificationSender 把通知指令写入 Kafka，由邮件网关消费后实际投递
type KafkaNotificationSender struct {
	producer MessageProducer
	topic    string
}

// NewKafkaNotificationSender 创建 Kafka 发送器
func NewKafkaNotificationSender(producer MessageProducer, topic string) domain.Sender {
	return &KafkaNotificationSender{
		producer: producer,
		topic:    topic,
	}
}

// Send 以接收人为 key 写入，保证同一接收人的顺序
func (s *KafkaNotificationSender) Send(ctx context.Context, target, subject, content string) error {
	return s.producer.Publish(ctx, s.topic, target, NotificationCommand{
		Target:  target,
		Subject: subject,
		Content: content,
	})
}
