package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
	"github.com/wyfcoding/pantry/pkg/metrics"
)

// MessageNotifier 组装通知内容，通过 Sender 投递并保存投递记录
type MessageNotifier struct {
	sender  domain.Sender
	repo    domain.NotificationRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewMessageNotifier 创建通知器，repo 与 m 可为 nil
func NewMessageNotifier(sender domain.Sender, repo domain.NotificationRepository, m *metrics.Metrics) *MessageNotifier {
	return &MessageNotifier{
		sender:  sender,
		repo:    repo,
		metrics: m,
		now:     time.Now,
	}
}

var _ domain.Notifier = (*MessageNotifier)(nil)

// SendOrderConfirmation 向顾客发送下单确认
func (n *MessageNotifier) SendOrderConfirmation(ctx context.Context, customer domain.Recipient, order domain.OrderSnapshot) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", displayName(customer))
	fmt.Fprintf(&b, "Thank you for your order #%d.\n\nOrder details:\n", order.OrderID)
	writeLines(&b, order.Lines)
	fmt.Fprintf(&b, "\nTotal: %s\n", order.TotalPrice.StringFixed(2))

	return n.deliver(ctx, domain.KindOrderConfirmation, order.OrderID, customer, "Order Confirmation", b.String())
}

// SendNewOrderAlert 向管理员发送新订单提醒
func (n *MessageNotifier) SendNewOrderAlert(ctx context.Context, admins []domain.Recipient, order domain.OrderSnapshot) error {
	var b strings.Builder
	fmt.Fprintf(&b, "A new order #%d has been placed by customer %d.\n\nItems:\n", order.OrderID, order.CustomerID)
	writeLines(&b, order.Lines)
	fmt.Fprintf(&b, "\nTotal: %s\n", order.TotalPrice.StringFixed(2))

	return n.broadcast(ctx, domain.KindNewOrderAlert, order.OrderID, admins, "New Order Received", b.String())
}

// SendLowStockAlert 所有低库存商品合并为一条告警
func (n *MessageNotifier) SendLowStockAlert(ctx context.Context, admins []domain.Recipient, items []domain.StockItem) error {
	if len(items) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("The following products are running low on stock:\n\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- %s - Current stock: %d\n", productLabel(it.Name, it.ProductID), it.Stock)
	}

	return n.broadcast(ctx, domain.KindLowStockAlert, 0, admins, "Low Stock Alert", b.String())
}

// SendStatusUpdate 通知订单状态变更
func (n *MessageNotifier) SendStatusUpdate(ctx context.Context, recipients []domain.Recipient, order domain.OrderSnapshot, status string) error {
	subject := fmt.Sprintf("Order #%d Status Update", order.OrderID)
	body := fmt.Sprintf("Order #%d status has been updated to: %s\n", order.OrderID, status)
	return n.broadcast(ctx, domain.KindStatusUpdate, order.OrderID, recipients, subject, body)
}

func (n *MessageNotifier) broadcast(ctx context.Context, kind domain.Kind, orderID uint, recipients []domain.Recipient, subject, body string) error {
	if len(recipients) == 0 {
		n.count(kind, "skipped")
		return fmt.Errorf("%s for order %d: %w", kind, orderID, domain.ErrNoRecipients)
	}

	var errs []error
	for _, r := range recipients {
		if err := n.deliver(ctx, kind, orderID, r, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliver 单个接收人的投递。记录保存失败不影响投递结果。
func (n *MessageNotifier) deliver(ctx context.Context, kind domain.Kind, orderID uint, to domain.Recipient, subject, body string) error {
	record := &domain.Notification{
		NotificationID: uuid.NewString(),
		Kind:           kind,
		OrderID:        orderID,
		Target:         to.Email,
		Subject:        subject,
		Content:        body,
		Status:         domain.StatusPending,
	}

	var err error
	if strings.TrimSpace(to.Email) == "" {
		err = fmt.Errorf("recipient %d has no email address", to.UserID)
	} else {
		err = n.sender.Send(ctx, to.Email, subject, body)
	}

	if err != nil {
		record.MarkFailed(err)
		n.count(kind, "failed")
		logger.Warn(ctx, "Notification delivery failed", "kind", kind, "order_id", orderID, "target", to.Email, "error", err)
	} else {
		record.MarkSent(n.now())
		n.count(kind, "sent")
	}

	if n.repo != nil {
		if saveErr := n.repo.Save(ctx, record); saveErr != nil {
			logger.Warn(ctx, "Failed to record notification", "kind", kind, "error", saveErr)
		}
	}

	if err != nil {
		return fmt.Errorf("%s to %q: %w", kind, to.Email, err)
	}
	return nil
}

func (n *MessageNotifier) count(kind domain.Kind, result string) {
	if n.metrics != nil {
		n.metrics.Notifications.WithLabelValues(string(kind), result).Inc()
	}
}

func writeLines(b *strings.Builder, lines []domain.OrderLine) {
	for _, l := range lines {
		fmt.Fprintf(b, "- %s x %d @ %s\n", productLabel(l.ProductName, l.ProductID), l.Quantity, l.UnitPrice.StringFixed(2))
	}
}

func productLabel(name string, id uint) string {
	if name == "" {
		return fmt.Sprintf("Product #%d", id)
	}
	return name
}

func displayName(r domain.Recipient) string {
	if r.Name != "" {
		return r.Name
	}
	return "Customer"
}
