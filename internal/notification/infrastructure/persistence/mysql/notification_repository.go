// Package mysql 提供了通知仓储接口的 GORM 实现。
package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/pkg/db"
	"github.com/wyfcoding/pantry/pkg/logger"
)

type notificationRepositoryImpl struct {
	db *db.DB
}

// NewNotificationRepository 创建通知仓储实例
func NewNotificationRepository(database *db.DB) domain.NotificationRepository {
	return &notificationRepositoryImpl{db: database}
}

// Save 首次保存时插入，之后按主键更新
func (r *notificationRepositoryImpl) Save(ctx context.Context, n *domain.Notification) error {
	if err := r.db.Conn(ctx).Save(n).Error; err != nil {
		logger.Error(ctx, "notification_repository.save failed", "notification_id", n.NotificationID, "error", err)
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// ListByOrder 列出订单相关的通知
func (r *notificationRepositoryImpl) ListByOrder(ctx context.Context, orderID uint) ([]*domain.Notification, error) {
	var list []*domain.Notification
	if err := r.db.Conn(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}
