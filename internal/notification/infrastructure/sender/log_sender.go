package sender

import (
	"context"

	"github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
)

// LogSender 只写日志的发送器，用于本地开发
type LogSender struct{}

// NewLogSender 创建日志发送器
func NewLogSender() domain.Sender {
	return &LogSender{}
}

// Send 记录通知内容
func (s *LogSender) Send(ctx context.Context, target, subject, content string) error {
	logger.Info(ctx, "Sending notification",
		"sender", "log",
		"target", target,
		"subject", subject,
		"content_length", len(content),
	)
	return nil
}
