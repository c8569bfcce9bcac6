package application

import (
	"context"

	"github.com/wyfcoding/pantry/internal/catalog/domain"
	"github.com/wyfcoding/pantry/pkg/utils"
)

// CatalogQueryService 商品目录查询服务
type CatalogQueryService struct {
	repo domain.ProductRepository
}

// NewCatalogQueryService 创建商品目录查询服务实例
func NewCatalogQueryService(repo domain.ProductRepository) *CatalogQueryService {
	return &CatalogQueryService{repo: repo}
}

// GetProduct 根据ID获取商品信息
func (s *CatalogQueryService) GetProduct(ctx context.Context, id uint) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// ListProducts 分页列出商品，categoryID 为 0 时不过滤
func (s *CatalogQueryService) ListProducts(ctx context.Context, categoryID uint, page, size int) ([]*domain.Product, *utils.Pagination, error) {
	p := utils.NewPagination(page, size, 0)
	products, total, err := s.repo.List(ctx, categoryID, p.Offset(), p.Limit())
	if err != nil {
		return nil, nil, err
	}
	return products, utils.NewPagination(p.Page, p.PageSize, total), nil
}
