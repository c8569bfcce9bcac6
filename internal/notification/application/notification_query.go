package application

import (
	"context"

	"github.com/wyfcoding/pantry/internal/notification/domain"
)

// NotificationQueryService 通知记录查询
type NotificationQueryService struct {
	repo domain.NotificationRepository
}

// NewNotificationQueryService 创建查询服务
func NewNotificationQueryService(repo domain.NotificationRepository) *NotificationQueryService {
	return &NotificationQueryService{repo: repo}
}

// ListByOrder 列出订单的通知投递记录
func (s *NotificationQueryService) ListByOrder(ctx context.Context, orderID uint) ([]*domain.Notification, error) {
	return s.repo.ListByOrder(ctx, orderID)
}
