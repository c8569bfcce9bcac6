// Package mysql 商品仓储的 GORM 实现
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/pantry/internal/catalog/domain"
	"github.com/wyfcoding/pantry/pkg/db"
	"gorm.io/gorm"
)

type productRepository struct {
	db *db.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(database *db.DB) domain.ProductRepository {
	return &productRepository{db: database}
}

func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	if err := r.db.Conn(ctx).Save(product).Error; err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uint) (*domain.Product, error) {
	var p domain.Product
	if err := r.db.Conn(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (r *productRepository) List(ctx context.Context, categoryID uint, offset, limit int) ([]*domain.Product, int64, error) {
	var products []*domain.Product
	var total int64

	q := r.db.Conn(ctx).Model(&domain.Product{})
	if categoryID != 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

func (r *productRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.Conn(ctx).Delete(&domain.Product{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []uint) ([]*domain.Product, error) {
	var products []*domain.Product
	if len(ids) == 0 {
		return products, nil
	}
	if err := r.db.Conn(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	return products, nil
}

// DecrementStock 在同一条语句中校验并扣减库存
func (r *productRepository) DecrementStock(ctx context.Context, id uint, qty int) (bool, error) {
	result := r.db.Conn(ctx).Model(&domain.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return false, fmt.Errorf("failed to decrement stock of product %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *productRepository) StockLevels(ctx context.Context, ids []uint) (map[uint]int, error) {
	levels := make(map[uint]int, len(ids))
	if len(ids) == 0 {
		return levels, nil
	}

	var rows []struct {
		ID    uint
		Stock int
	}
	if err := r.db.Conn(ctx).Model(&domain.Product{}).Select("id, stock").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read stock levels: %w", err)
	}
	for _, row := range rows {
		levels[row.ID] = row.Stock
	}
	return levels, nil
}
