package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine 通知中展示的订单行
type OrderLine struct {
	ProductID   uint
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// OrderSnapshot 通知使用的订单快照，与订单领域模型解耦
type OrderSnapshot struct {
	OrderID    uint
	CustomerID uint
	Status     string
	TotalPrice decimal.Decimal
	Lines      []OrderLine
	CreatedAt  time.Time
}

// StockItem 下单后的商品库存
type StockItem struct {
	ProductID uint
	Name      string
	Stock     int
}

// OrderPlaced 订单提交成功
type OrderPlaced struct {
	Order OrderSnapshot
	// Stock 本次订单涉及商品在提交后的库存，按订单行顺序
	Stock []StockItem
}

// StatusChanged 订单状态变更
type StatusChanged struct {
	Order OrderSnapshot
	From  string
	To    string
}

// LowStock 返回库存低于阈值的商品，保持输入顺序
func LowStock(items []StockItem, threshold int) []StockItem {
	var low []StockItem
	for _, it := range items {
		if it.Stock < threshold {
			low = append(low, it)
		}
	}
	return low
}
