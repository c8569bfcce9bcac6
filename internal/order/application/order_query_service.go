package application

import (
	"context"

	"github.com/wyfcoding/pantry/internal/order/domain"
	"github.com/wyfcoding/pantry/pkg/utils"
)

// Viewer 查询者身份
type Viewer struct {
	UserID  uint
	IsAdmin bool
}

// OrderQueryService 处理所有订单相关的查询操作（Queries）。
type OrderQueryService struct {
	repo domain.OrderRepository
}

// NewOrderQueryService 构造函数。
func NewOrderQueryService(repo domain.OrderRepository) *OrderQueryService {
	return &OrderQueryService{repo: repo}
}

// GetOrder 管理员可查看任意订单，顾客只能查看自己的订单
func (s *OrderQueryService) GetOrder(ctx context.Context, viewer Viewer, id uint) (*domain.Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, domain.AsPersistence("get order", err)
	}
	if !viewer.IsAdmin && !order.OwnedBy(viewer.UserID) {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

// ListOrders 管理员看到全部订单，顾客只看到自己的
func (s *OrderQueryService) ListOrders(ctx context.Context, viewer Viewer, status string, page, pageSize int) ([]*domain.Order, *utils.Pagination, error) {
	filter := domain.ListFilter{}
	if !viewer.IsAdmin {
		filter.CustomerID = viewer.UserID
	}
	if status != "" {
		st, err := domain.ParseStatus(status)
		if err != nil {
			return nil, nil, err
		}
		filter.Status = st
	}

	p := utils.NewPagination(page, pageSize, 0)
	orders, total, err := s.repo.List(ctx, filter, p.Offset(), p.Limit())
	if err != nil {
		return nil, nil, domain.AsPersistence("list orders", err)
	}
	return orders, utils.NewPagination(p.Page, p.PageSize, total), nil
}
