package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
)

// OrderNotificationService 在订单提交或状态变更后异步发送通知。
// 所有失败都在任务内部消化，不会传回调用方。
type OrderNotificationService struct {
	dispatcher        *Dispatcher
	notifier          domain.Notifier
	contacts          domain.ContactDirectory
	lowStockThreshold int
}

// NewOrderNotificationService 创建订单通知服务
func NewOrderNotificationService(dispatcher *Dispatcher, notifier domain.Notifier, contacts domain.ContactDirectory, lowStockThreshold int) *OrderNotificationService {
	return &OrderNotificationService{
		dispatcher:        dispatcher,
		notifier:          notifier,
		contacts:          contacts,
		lowStockThreshold: lowStockThreshold,
	}
}

// OrderPlaced 投递下单通知任务
func (s *OrderNotificationService) OrderPlaced(ctx context.Context, evt domain.OrderPlaced) {
	s.dispatcher.Submit(ctx, "order_placed", func(ctx context.Context) error {
		return s.handleOrderPlaced(ctx, evt)
	})
}

// StatusChanged 投递状态变更通知任务
func (s *OrderNotificationService) StatusChanged(ctx context.Context, evt domain.StatusChanged) {
	s.dispatcher.Submit(ctx, "status_changed", func(ctx context.Context) error {
		return s.handleStatusChanged(ctx, evt)
	})
}

// handleOrderPlaced 依次发送顾客确认、管理员提醒和低库存告警，各步骤互不影响
func (s *OrderNotificationService) handleOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error {
	var errs []error

	customer, err := s.contacts.Customer(ctx, evt.Order.CustomerID)
	if err != nil {
		errs = append(errs, fmt.Errorf("lookup customer %d: %w", evt.Order.CustomerID, err))
	} else if err := s.notifier.SendOrderConfirmation(ctx, customer, evt.Order); err != nil {
		errs = append(errs, err)
	}

	admins, err := s.contacts.Admins(ctx)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("lookup admins: %w", err))...)
	}

	if err := s.notifier.SendNewOrderAlert(ctx, admins, evt.Order); err != nil {
		errs = append(errs, err)
	}

	if low := domain.LowStock(evt.Stock, s.lowStockThreshold); len(low) > 0 {
		logger.Info(ctx, "Low stock detected after order", "order_id", evt.Order.OrderID, "products", len(low))
		if err := s.notifier.SendLowStockAlert(ctx, admins, low); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// handleStatusChanged 通知顾客与管理员
func (s *OrderNotificationService) handleStatusChanged(ctx context.Context, evt domain.StatusChanged) error {
	var (
		recipients []domain.Recipient
		errs       []error
	)

	if customer, err := s.contacts.Customer(ctx, evt.Order.CustomerID); err != nil {
		errs = append(errs, fmt.Errorf("lookup customer %d: %w", evt.Order.CustomerID, err))
	} else {
		recipients = append(recipients, customer)
	}

	if admins, err := s.contacts.Admins(ctx); err != nil {
		errs = append(errs, fmt.Errorf("lookup admins: %w", err))
	} else {
		recipients = append(recipients, admins...)
	}

	if err := s.notifier.SendStatusUpdate(ctx, dedupe(recipients), evt.Order, evt.To); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// dedupe 按邮箱去重，管理员本人下单时只收一封
func dedupe(rs []domain.Recipient) []domain.Recipient {
	seen := make(map[string]struct{}, len(rs))
	out := rs[:0:0]
	for _, r := range rs {
		if _, ok := seen[r.Email]; ok && r.Email != "" {
			continue
		}
		seen[r.Email] = struct{}{}
		out = append(out, r)
	}
	return out
}
