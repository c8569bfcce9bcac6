package domain

import (
	"context"
	"errors"
)

// ErrNoRecipients 没有可用的接收人
var ErrNoRecipients = errors.New("no notification recipients")

// Notifier 订单相关的通知能力
type Notifier interface {
	// SendOrderConfirmation 向顾客发送下单确认
	SendOrderConfirmation(ctx context.Context, customer Recipient, order OrderSnapshot) error
	// SendNewOrderAlert 向管理员发送新订单提醒
	SendNewOrderAlert(ctx context.Context, admins []Recipient, order OrderSnapshot) error
	// SendLowStockAlert 向管理员发送一条汇总的低库存告警
	SendLowStockAlert(ctx context.Context, admins []Recipient, items []StockItem) error
	// SendStatusUpdate 通知订单状态变更
	SendStatusUpdate(ctx context.Context, recipients []Recipient, order OrderSnapshot, status string) error
}
