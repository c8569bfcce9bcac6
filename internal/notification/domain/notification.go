// Package domain 通知服务的领域模型
package domain

import (
	"context"
	"time"
)

// Kind 通知类型
type Kind string

const (
	KindOrderConfirmation Kind = "order_confirmation" // 顾客下单确认
	KindNewOrderAlert     Kind = "new_order_alert"    // 管理员新订单提醒
	KindLowStockAlert     Kind = "low_stock_alert"    // 管理员低库存告警
	KindStatusUpdate      Kind = "status_update"      // 订单状态变更
)

// Status 通知投递状态
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Recipient 通知接收人
type Recipient struct {
	UserID uint
	Name   string
	Email  string
}

// Notification 通知投递记录
type Notification struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	NotificationID string `gorm:"column:notification_id;type:varchar(36);uniqueIndex;not null"`
	Kind           Kind   `gorm:"column:kind;type:varchar(32);index;not null"`
	// OrderID 关联订单，低库存告警为 0
	OrderID      uint       `gorm:"column:order_id;index"`
	Target       string     `gorm:"column:target;type:varchar(255);not null"`
	Subject      string     `gorm:"column:subject;type:varchar(255)"`
	Content      string     `gorm:"column:content;type:text"`
	Status       Status     `gorm:"column:status;type:varchar(16);index;not null;default:'PENDING'"`
	ErrorMessage string     `gorm:"column:error_message;type:text"`
	SentAt       *time.Time `gorm:"column:sent_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

// MarkSent 标记为已发送
func (n *Notification) MarkSent(at time.Time) {
	n.Status = StatusSent
	n.SentAt = &at
	n.ErrorMessage = ""
}

// MarkFailed 标记为发送失败
func (n *Notification) MarkFailed(err error) {
	n.Status = StatusFailed
	n.ErrorMessage = err.Error()
}

// Sender 通知发送接口
type Sender interface {
	Send(ctx context.Context, target string, subject string, content string) error
}

// ContactDirectory 查询通知接收人
type ContactDirectory interface {
	// Customer 返回顾客的联系方式
	Customer(ctx context.Context, userID uint) (Recipient, error)
	// Admins 返回所有应接收运营通知的管理员
	Admins(ctx context.Context) ([]Recipient, error)
}
