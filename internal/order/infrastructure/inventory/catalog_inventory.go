// Package inventory 通过商品目录仓储实现订单所需的库存能力
package inventory

import (
	"context"

	catalogdomain "github.com/wyfcoding/pantry/internal/catalog/domain"
	"github.com/wyfcoding/pantry/internal/order/domain"
)

type catalogInventory struct {
	products catalogdomain.ProductRepository
}

// NewCatalogInventory 创建库存适配器
func NewCatalogInventory(products catalogdomain.ProductRepository) domain.Inventory {
	return &catalogInventory{products: products}
}

// Snapshot 读取库存与价格，价格按入库精度取整，保证行小计之和等于订单总价
func (i *catalogInventory) Snapshot(ctx context.Context, ids []uint) (map[uint]domain.StockSnapshot, error) {
	products, err := i.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	snap := make(map[uint]domain.StockSnapshot, len(products))
	for _, p := range products {
		snap[p.ID] = domain.StockSnapshot{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price.Round(catalogdomain.PriceScale),
			Stock:     p.Stock,
		}
	}
	return snap, nil
}

func (i *catalogInventory) Decrement(ctx context.Context, productID uint, qty int) (bool, error) {
	return i.products.DecrementStock(ctx, productID, qty)
}

func (i *catalogInventory) Levels(ctx context.Context, ids []uint) (map[uint]int, error) {
	return i.products.StockLevels(ctx, ids)
}
