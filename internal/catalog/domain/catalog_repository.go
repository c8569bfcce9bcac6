package domain

import "context"

// ProductRepository 商品仓储。事务由 context 携带，实现需通过 context 取连接。
type ProductRepository interface {
	Save(ctx context.Context, product *Product) error
	GetByID(ctx context.Context, id uint) (*Product, error)
	List(ctx context.Context, categoryID uint, offset, limit int) ([]*Product, int64, error)
	// Delete 删除商品，已有订单行不受影响
	Delete(ctx context.Context, id uint) error

	// FindByIDs 一次查询读取多个商品，不存在的 ID 不出现在结果中
	FindByIDs(ctx context.Context, ids []uint) ([]*Product, error)
	// DecrementStock 条件扣减库存，库存不足时返回 false 且不做修改
	DecrementStock(ctx context.Context, id uint, qty int) (bool, error)
	// StockLevels 读取当前库存
	StockLevels(ctx context.Context, ids []uint) (map[uint]int, error)
}
