package domain

import (
	"context"
)

// ListFilter 订单列表过滤条件，零值表示不过滤
type ListFilter struct {
	CustomerID uint
	Status     OrderStatus
}

// OrderRepository 订单仓储接口，事务由 context 携带
type OrderRepository interface {
	// Create 写入订单头与全部订单行，回填生成的 ID
	Create(ctx context.Context, order *Order) error
	// Get 根据订单 ID 获取订单及订单行
	Get(ctx context.Context, id uint) (*Order, error)
	// List 按创建时间倒序分页列出订单
	List(ctx context.Context, filter ListFilter, offset, limit int) ([]*Order, int64, error)
	// UpdateStatus 仅当当前状态为 from 时更新，否则返回 ErrConcurrentUpdate
	UpdateStatus(ctx context.Context, id uint, from, to OrderStatus, actor uint) error
	// Delete 删除订单及其订单行
	Delete(ctx context.Context, id uint) error
}

// Inventory 商品目录提供的库存能力
type Inventory interface {
	// Snapshot 一次读取多个商品的库存与价格，不存在的商品不在结果中
	Snapshot(ctx context.Context, ids []uint) (map[uint]StockSnapshot, error)
	// Decrement 条件扣减，库存不足时返回 false
	Decrement(ctx context.Context, productID uint, qty int) (bool, error)
	// Levels 读取当前库存
	Levels(ctx context.Context, ids []uint) (map[uint]int, error)
}
