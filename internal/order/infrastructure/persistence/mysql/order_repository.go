// Package mysql 提供了订单仓储接口的 GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/pantry/internal/order/domain"
	"github.com/wyfcoding/pantry/pkg/db"
	"github.com/wyfcoding/pantry/pkg/logger"
	"gorm.io/gorm"
)

// orderRepositoryImpl 是 domain.OrderRepository 接口的 GORM 实现。
type orderRepositoryImpl struct {
	db *db.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(database *db.DB) domain.OrderRepository {
	return &orderRepositoryImpl{db: database}
}

// Create 订单头与订单行在同一次 Create 中写入
func (r *orderRepositoryImpl) Create(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	if err := r.db.Conn(ctx).Create(model).Error; err != nil {
		logger.Error(ctx, "order_repository.create failed", "customer_id", order.CustomerID, "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}

	order.ID = model.ID
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	for i := range model.Items {
		order.Items[i].ID = model.Items[i].ID
		order.Items[i].OrderID = model.ID
		order.Items[i].CreatedAt = model.Items[i].CreatedAt
	}
	return nil
}

// Get 实现 domain.OrderRepository.Get
func (r *orderRepositoryImpl) Get(ctx context.Context, id uint) (*domain.Order, error) {
	var model OrderModel
	err := r.db.Conn(ctx).Preload("Items", orderItemsByID).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		logger.Error(ctx, "order_repository.get failed", "order_id", id, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toOrder(&model), nil
}

// List 实现 domain.OrderRepository.List
func (r *orderRepositoryImpl) List(ctx context.Context, filter domain.ListFilter, offset, limit int) ([]*domain.Order, int64, error) {
	var models []OrderModel
	var total int64

	q := r.db.Conn(ctx).Model(&OrderModel{})
	if filter.CustomerID != 0 {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	err := q.Preload("Items", orderItemsByID).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&models).Error
	if err != nil {
		logger.Error(ctx, "order_repository.list failed", "customer_id", filter.CustomerID, "error", err)
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = toOrder(&models[i])
	}
	return orders, total, nil
}

// UpdateStatus 以当前状态为条件更新，并发修改时只有一个请求成功
func (r *orderRepositoryImpl) UpdateStatus(ctx context.Context, id uint, from, to domain.OrderStatus, actor uint) error {
	result := r.db.Conn(ctx).Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_by": actor,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		logger.Error(ctx, "order_repository.update_status failed", "order_id", id, "error", result.Error)
		return fmt.Errorf("failed to update order status: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.Conn(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if count == 0 {
		return domain.ErrOrderNotFound
	}
	return domain.ErrConcurrentUpdate
}

// Delete 先删订单行再删订单头，不依赖数据库外键级联
func (r *orderRepositoryImpl) Delete(ctx context.Context, id uint) error {
	return r.db.Transaction(ctx, func(txCtx context.Context) error {
		conn := r.db.Conn(txCtx)
		if err := conn.Where("order_id = ?", id).Delete(&OrderItemModel{}).Error; err != nil {
			logger.Error(ctx, "order_repository.delete items failed", "order_id", id, "error", err)
			return fmt.Errorf("failed to delete order items: %w", err)
		}
		result := conn.Delete(&OrderModel{}, id)
		if result.Error != nil {
			logger.Error(ctx, "order_repository.delete failed", "order_id", id, "error", result.Error)
			return fmt.Errorf("failed to delete order: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrOrderNotFound
		}
		return nil
	})
}

func orderItemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
