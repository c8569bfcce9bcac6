package application

import (
	"context"
	"errors"
	"time"

	notifdomain "github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/internal/order/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
	"github.com/wyfcoding/pantry/pkg/metrics"
)

// Transactor 开启事务，事务句柄通过 context 传给 fn
type Transactor interface {
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// NotificationDispatcher 提交后的通知出口，调用立即返回
type NotificationDispatcher interface {
	OrderPlaced(ctx context.Context, evt notifdomain.OrderPlaced)
	StatusChanged(ctx context.Context, evt notifdomain.StatusChanged)
}

// PlaceOrderCommand 下单命令
type PlaceOrderCommand struct {
	CustomerID uint
	Items      []domain.LineRequest
}

// PlaceOrderResult 下单结果，Unavailable 为未能履约的行
type PlaceOrderResult struct {
	Order       *domain.Order
	Unavailable []domain.UnavailableLine
}

// UpdateStatusCommand 管理员修改订单状态
type UpdateStatusCommand struct {
	OrderID uint
	Status  string
	ActorID uint
}

// OrderCommandService 处理订单相关的命令操作
type OrderCommandService struct {
	tx            Transactor
	repo          domain.OrderRepository
	inventory     domain.Inventory
	notifications NotificationDispatcher
	metrics       *metrics.Metrics
}

// NewOrderCommandService 创建新的 OrderCommandService 实例，m 可为 nil
func NewOrderCommandService(tx Transactor, repo domain.OrderRepository, inventory domain.Inventory, notifications NotificationDispatcher, m *metrics.Metrics) *OrderCommandService {
	return &OrderCommandService{
		tx:            tx,
		repo:          repo,
		inventory:     inventory,
		notifications: notifications,
		metrics:       m,
	}
}

// PlaceOrder 下单：校验购物车，按一次库存快照生成计划，在单个事务中写入订单并条件扣减库存。
// 提交成功后把通知交给调度器，通知失败不影响返回结果。
func (s *OrderCommandService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*PlaceOrderResult, error) {
	defer logger.LogDuration(ctx, "PlaceOrder", "customer_id", cmd.CustomerID)()

	if err := domain.ValidateCart(cmd.Items); err != nil {
		s.countFailure("validation")
		return nil, err
	}
	lines := domain.MergeLines(cmd.Items)

	ids := make([]uint, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	snapshot, err := s.inventory.Snapshot(ctx, ids)
	if err != nil {
		s.countFailure("persistence")
		logger.Error(ctx, "Failed to load stock snapshot", "customer_id", cmd.CustomerID, "error", err)
		return nil, domain.AsPersistence("load stock snapshot", err)
	}

	plan, err := domain.BuildPlan(lines, snapshot)
	if err != nil {
		s.countFailure("no_fulfillable_items")
		logger.Info(ctx, "No fulfillable items in cart", "customer_id", cmd.CustomerID, "lines", len(lines))
		return nil, err
	}

	order := domain.NewOrder(cmd.CustomerID, plan)
	var levels map[uint]int
	err = s.tx.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, order); err != nil {
			return err
		}
		for _, l := range plan.Fulfillable {
			ok, err := s.inventory.Decrement(txCtx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &domain.InsufficientStockAtCommitError{ProductID: l.ProductID, Requested: l.Quantity}
			}
		}
		var err error
		levels, err = s.inventory.Levels(txCtx, plan.ProductIDs())
		return err
	})
	if err != nil {
		err = domain.AsPersistence("commit order", err)
		if errors.Is(err, domain.ErrInsufficientStockAtCommit) {
			s.countFailure("stock_race")
			if s.metrics != nil {
				s.metrics.StockRaces.Inc()
			}
			logger.Warn(ctx, "Lost stock race at commit", "customer_id", cmd.CustomerID, "error", err)
		} else {
			s.countFailure("persistence")
			logger.Error(ctx, "Failed to commit order", "customer_id", cmd.CustomerID, "error", err)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersPlaced.Inc()
		s.metrics.OrderValue.Observe(order.TotalPrice.InexactFloat64())
	}
	logger.Info(ctx, "Order placed",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"items", len(order.Items),
		"unavailable", len(plan.Unavailable),
		"total_price", order.TotalPrice.StringFixed(2))

	s.notifications.OrderPlaced(ctx, notifdomain.OrderPlaced{
		Order: toSnapshot(order),
		Stock: stockItems(order, levels),
	})

	return &PlaceOrderResult{Order: order, Unavailable: plan.Unavailable}, nil
}

// UpdateStatus 修改订单状态，只允许合法迁移。库存不随取消回补。
func (s *OrderCommandService) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*domain.Order, error) {
	next, err := domain.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, domain.AsPersistence("load order", err)
	}

	from := order.Status
	if err := order.TransitionTo(next, cmd.ActorID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, order.ID, from, next, cmd.ActorID); err != nil {
		return nil, domain.AsPersistence("update order status", err)
	}
	order.UpdatedAt = time.Now()

	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(next)).Inc()
	}
	logger.Info(ctx, "Order status updated", "order_id", order.ID, "from", from, "to", next, "actor", cmd.ActorID)

	s.notifications.StatusChanged(ctx, notifdomain.StatusChanged{
		Order: toSnapshot(order),
		From:  string(from),
		To:    string(next),
	})
	return order, nil
}

// DeleteOrder 删除订单及订单行，不回补库存
func (s *OrderCommandService) DeleteOrder(ctx context.Context, orderID uint) error {
	if err := s.repo.Delete(ctx, orderID); err != nil {
		return domain.AsPersistence("delete order", err)
	}
	logger.Info(ctx, "Order deleted", "order_id", orderID)
	return nil
}

func (s *OrderCommandService) countFailure(reason string) {
	if s.metrics != nil {
		s.metrics.OrderFailures.WithLabelValues(reason).Inc()
	}
}

func toSnapshot(o *domain.Order) notifdomain.OrderSnapshot {
	lines := make([]notifdomain.OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, notifdomain.OrderLine{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return notifdomain.OrderSnapshot{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
		TotalPrice: o.TotalPrice,
		Lines:      lines,
		CreatedAt:  o.CreatedAt,
	}
}

// stockItems 按订单行顺序列出提交后的库存
func stockItems(o *domain.Order, levels map[uint]int) []notifdomain.StockItem {
	items := make([]notifdomain.StockItem, 0, len(o.Items))
	for _, it := range o.Items {
		stock, ok := levels[it.ProductID]
		if !ok {
			continue
		}
		items = append(items, notifdomain.StockItem{ProductID: it.ProductID, Name: it.ProductName, Stock: stock})
	}
	return items
}
