package application

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pantry/internal/catalog/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
)

// CreateProductCommand 创建商品命令
type CreateProductCommand struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  uint
}

// UpdateProductCommand 管理员编辑商品，nil 字段保持不变
type UpdateProductCommand struct {
	ID          uint
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	CategoryID  *uint
}

// CatalogCommandService 商品目录命令服务
type CatalogCommandService struct {
	repo domain.ProductRepository
}

// NewCatalogCommandService 创建商品目录命令服务实例
func NewCatalogCommandService(repo domain.ProductRepository) *CatalogCommandService {
	return &CatalogCommandService{repo: repo}
}

// CreateProduct 创建商品
func (s *CatalogCommandService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*domain.Product, error) {
	product := &domain.Product{
		Name:        cmd.Name,
		Description: cmd.Description,
		Price:       cmd.Price,
		Stock:       cmd.Stock,
		CategoryID:  cmd.CategoryID,
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, product); err != nil {
		logger.Error(ctx, "Failed to create product", "name", cmd.Name, "error", err)
		return nil, err
	}

	logger.Info(ctx, "Product created", "product_id", product.ID, "stock", product.Stock)
	return product, nil
}

// UpdateProduct 编辑商品，库存为绝对值覆盖
func (s *CatalogCommandService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}

	oldStock := product.Stock
	if cmd.Name != nil {
		product.Name = *cmd.Name
	}
	if cmd.Description != nil {
		product.Description = *cmd.Description
	}
	if cmd.Price != nil {
		product.Price = *cmd.Price
	}
	if cmd.Stock != nil {
		product.Stock = *cmd.Stock
	}
	if cmd.CategoryID != nil {
		product.CategoryID = *cmd.CategoryID
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, product); err != nil {
		logger.Error(ctx, "Failed to update product", "product_id", cmd.ID, "error", err)
		return nil, err
	}

	if oldStock != product.Stock {
		logger.Info(ctx, "Product stock adjusted", "product_id", product.ID, "old_stock", oldStock, "new_stock", product.Stock)
	}
	return product, nil
}

// DeleteProduct 删除商品，历史订单行保留商品 ID、名称与单价快照
func (s *CatalogCommandService) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, domain.ErrProductNotFound) {
			logger.Error(ctx, "Failed to delete product", "product_id", id, "error", err)
		}
		return err
	}
	logger.Info(ctx, "Product deleted", "product_id", id)
	return nil
}
