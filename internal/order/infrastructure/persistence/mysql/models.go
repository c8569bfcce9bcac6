package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pantry/internal/order/domain"
)

// OrderModel 订单表映射
type OrderModel struct {
	ID              uint             `gorm:"primaryKey;autoIncrement"`
	CreatedAt       time.Time        `gorm:"column:created_at;index"`
	UpdatedAt       time.Time        `gorm:"column:updated_at"`
	CustomerID      uint             `gorm:"column:customer_id;index;not null;comment:下单顾客"`
	Status          string           `gorm:"column:status;type:varchar(20);index;not null;comment:订单状态"`
	TotalPrice      string           `gorm:"column:total_price;type:decimal(14,2);not null;comment:创建时计算的总价"`
	PaymentIntentID string           `gorm:"column:payment_intent_id;type:varchar(64);comment:支付占位"`
	CreatedBy       uint             `gorm:"column:created_by"`
	UpdatedBy       uint             `gorm:"column:updated_by"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 订单行表映射。product_id 不建外键，商品删除后仍保留历史记录。
type OrderItemModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	OrderID     uint      `gorm:"column:order_id;index;not null"`
	ProductID   uint      `gorm:"column:product_id;index;not null"`
	ProductName string    `gorm:"column:product_name;type:varchar(255);comment:下单时的商品名"`
	Quantity    int       `gorm:"column:quantity;not null;check:chk_order_items_quantity,quantity > 0"`
	UnitPrice   string    `gorm:"column:unit_price;type:decimal(12,2);not null;comment:下单时的单价快照"`
}

func (OrderItemModel) TableName() string { return "order_items" }

// Models 需要迁移的表
func Models() []any {
	return []any{&OrderModel{}, &OrderItemModel{}}
}

func toOrderModel(o *domain.Order) *OrderModel {
	items := make([]OrderItemModel, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemModel{
			ID:          it.ID,
			OrderID:     o.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.StringFixed(2),
		})
	}
	return &OrderModel{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		TotalPrice:      o.TotalPrice.StringFixed(2),
		PaymentIntentID: o.PaymentIntentID,
		CreatedBy:       o.CreatedBy,
		UpdatedBy:       o.UpdatedBy,
		Items:           items,
	}
}

func toOrder(m *OrderModel) *domain.Order {
	items := make([]*domain.LineItem, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, &domain.LineItem{
			ID:          it.ID,
			OrderID:     it.OrderID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   parseDecimal(it.UnitPrice),
			CreatedAt:   it.CreatedAt,
		})
	}
	return &domain.Order{
		ID:              m.ID,
		CustomerID:      m.CustomerID,
		Status:          domain.OrderStatus(m.Status),
		TotalPrice:      parseDecimal(m.TotalPrice),
		PaymentIntentID: m.PaymentIntentID,
		Items:           items,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		CreatedBy:       m.CreatedBy,
		UpdatedBy:       m.UpdatedBy,
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
