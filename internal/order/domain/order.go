// Package domain 包含订单服务的领域模型
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// 正向流程中各状态的位置
var statusRank = map[OrderStatus]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusCompleted:  3,
}

// ParseStatus 解析状态字符串，大小写不敏感
func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statusRank[st]; ok || st == StatusCancelled {
		return st, nil
	}
	return "", ErrUnknownStatus
}

// IsTerminal 是否为终态
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo 只允许沿正向流程前进一步，或从非终态取消
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || s == next {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	from, ok1 := statusRank[s]
	to, ok2 := statusRank[next]
	return ok1 && ok2 && to == from+1
}

// LineItem 订单行，创建后不可变
type LineItem struct {
	ID          uint
	OrderID     uint
	ProductID   uint
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	CreatedAt   time.Time
}

// Order 订单实体
type Order struct {
	ID         uint
	CustomerID uint
	Status     OrderStatus
	// TotalPrice 创建时计算一次，之后不再变化
	TotalPrice decimal.Decimal
	// PaymentIntentID 支付占位字段
	PaymentIntentID string
	Items           []*LineItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CreatedBy       uint
	UpdatedBy       uint
}

// NewOrder 根据计划创建待提交订单
func NewOrder(customerID uint, plan *Plan) *Order {
	items := make([]*LineItem, 0, len(plan.Fulfillable))
	for _, l := range plan.Fulfillable {
		items = append(items, &LineItem{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	return &Order{
		CustomerID: customerID,
		Status:     StatusPending,
		TotalPrice: plan.TotalPrice,
		Items:      items,
		CreatedBy:  customerID,
		UpdatedBy:  customerID,
	}
}

// ItemsTotal 按订单行重新求和
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// OwnedBy 是否属于该顾客
func (o *Order) OwnedBy(customerID uint) bool {
	return o.CustomerID == customerID
}

// TransitionTo 迁移状态，不合法时返回 TransitionError
func (o *Order) TransitionTo(next OrderStatus, actor uint) error {
	if !o.Status.CanTransitionTo(next) {
		return &TransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedBy = actor
	return nil
}
