package domain

import "context"

// NotificationRepository 通知记录仓储
type NotificationRepository interface {
	// Save 保存或更新通知记录
	Save(ctx context.Context, notification *Notification) error
	// ListByOrder 按创建顺序列出订单相关的通知
	ListByOrder(ctx context.Context, orderID uint) ([]*Notification, error)
}
