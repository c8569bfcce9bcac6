package application

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	catalogdomain "github.com/wyfcoding/pantry/internal/catalog/domain"
	catalogmysql "github.com/wyfcoding/pantry/internal/catalog/infrastructure/persistence/mysql"
	notifdomain "github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/internal/order/domain"
	"github.com/wyfcoding/pantry/internal/order/infrastructure/inventory"
	ordermysql "github.com/wyfcoding/pantry/internal/order/infrastructure/persistence/mysql"
	"github.com/wyfcoding/pantry/pkg/db"
	"github.com/wyfcoding/pantry/pkg/metrics"
)

type recordedEvents struct {
	mu      sync.Mutex
	placed  []notifdomain.OrderPlaced
	changed []notifdomain.StatusChanged
}

func (r *recordedEvents) OrderPlaced(_ context.Context, evt notifdomain.OrderPlaced) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, evt)
}

func (r *recordedEvents) StatusChanged(_ context.Context, evt notifdomain.StatusChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, evt)
}

type fixture struct {
	db       *db.DB
	products catalogdomain.ProductRepository
	orders   domain.OrderRepository
	events   *recordedEvents
	metrics  *metrics.Metrics
	cmd      *OrderCommandService
	query    *OrderQueryService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Init(db.Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(append([]any{&catalogdomain.Product{}}, ordermysql.Models()...)...))
	t.Cleanup(func() { _ = database.Close() })

	m := metrics.New("test")
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	f := &fixture{
		db:       database,
		products: catalogmysql.NewProductRepository(database),
		orders:   ordermysql.NewOrderRepository(database),
		events:   &recordedEvents{},
		metrics:  m,
	}
	f.cmd = NewOrderCommandService(database, f.orders, inventory.NewCatalogInventory(f.products), f.events, m)
	f.query = NewOrderQueryService(f.orders)
	return f
}

func (f *fixture) product(t *testing.T, name, price string, stock int) *catalogdomain.Product {
	t.Helper()
	p := &catalogdomain.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, f.products.Save(context.Background(), p))
	return p
}

func (f *fixture) stock(t *testing.T, id uint) int {
	t.Helper()
	p, err := f.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) orderCount(t *testing.T) (orders, items int64) {
	t.Helper()
	require.NoError(t, f.db.Model(&ordermysql.OrderModel{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&ordermysql.OrderItemModel{}).Count(&items).Error)
	return orders, items
}

func TestPlaceOrder_CommitsAndDecrements(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)

	res, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	assert.NotZero(t, res.Order.ID)
	assert.Empty(t, res.Unavailable)
	assert.Equal(t, "20.00", res.Order.TotalPrice.StringFixed(2))
	assert.Equal(t, 6, f.stock(t, p.ID))

	stored, err := f.orders.Get(context.Background(), res.Order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.ItemsTotal().Equal(stored.TotalPrice))

	require.Len(t, f.events.placed, 1)
	evt := f.events.placed[0]
	assert.Equal(t, res.Order.ID, evt.Order.OrderID)
	assert.Equal(t, []notifdomain.StockItem{{ProductID: p.ID, Name: "Flour", Stock: 6}}, evt.Stock)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrdersPlaced))
}

func TestPlaceOrder_PartialFulfilment(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)
	q := f.product(t, "Salt", "1", 2)

	res, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items: []domain.LineRequest{
			{ProductID: p.ID, Quantity: 4},
			{ProductID: q.ID, Quantity: 5},
			{ProductID: 999, Quantity: 1000000},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, p.ID, res.Order.Items[0].ProductID)
	assert.Equal(t, "20.00", res.Order.TotalPrice.StringFixed(2))
	assert.Equal(t, []domain.UnavailableLine{
		{ProductID: q.ID, Requested: 5, Available: 2, Reason: domain.ReasonInsufficientStock},
		{ProductID: 999, Requested: 1000000, Available: 0, Reason: domain.ReasonNotFound},
	}, res.Unavailable)

	assert.Equal(t, 6, f.stock(t, p.ID))
	assert.Equal(t, 2, f.stock(t, q.ID), "unavailable lines leave stock untouched")
}

func TestPlaceOrder_NothingFulfillable(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)

	_, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 20}},
	})
	require.ErrorIs(t, err, domain.ErrNoFulfillableItems)

	orders, items := f.orderCount(t)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Equal(t, 10, f.stock(t, p.ID))
	assert.Empty(t, f.events.placed)
}

func TestPlaceOrder_ValidationHappensBeforeStoreAccess(t *testing.T) {
	f := setup(t)
	// 关闭连接后任何存储访问都会失败
	require.NoError(t, f.db.Close())

	_, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{CustomerID: 3})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: 1, Quantity: 0}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPlaceOrder_DuplicateLinesAreMerged(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)

	_, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 6}, {ProductID: p.ID, Quantity: 6}},
	})
	require.ErrorIs(t, err, domain.ErrNoFulfillableItems)
	assert.Equal(t, 10, f.stock(t, p.ID))

	res, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 3}, {ProductID: p.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, 7, res.Order.Items[0].Quantity)
	assert.Equal(t, 3, f.stock(t, p.ID))
}

// racingInventory 在读取快照后、提交前由另一个请求消耗库存
type racingInventory struct {
	domain.Inventory
	products catalogdomain.ProductRepository
	steal    map[uint]int
}

func (r *racingInventory) Snapshot(ctx context.Context, ids []uint) (map[uint]domain.StockSnapshot, error) {
	snap, err := r.Inventory.Snapshot(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, qty := range r.steal {
		if _, err := r.products.DecrementStock(ctx, id, qty); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func TestPlaceOrder_LostStockRaceRollsBackEverything(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)
	q := f.product(t, "Rice", "2", 10)

	racing := &racingInventory{
		Inventory: inventory.NewCatalogInventory(f.products),
		products:  f.products,
		steal:     map[uint]int{q.ID: 8},
	}
	cmd := NewOrderCommandService(f.db, f.orders, racing, f.events, f.metrics)

	_, err := cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 4}, {ProductID: q.ID, Quantity: 5}},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStockAtCommit)
	assert.NotErrorIs(t, err, domain.ErrNoFulfillableItems)

	var race *domain.InsufficientStockAtCommitError
	require.True(t, errors.As(err, &race))
	assert.Equal(t, q.ID, race.ProductID)
	assert.Equal(t, 5, race.Requested)

	assert.Equal(t, 10, f.stock(t, p.ID), "earlier decrement must be rolled back")
	assert.Equal(t, 2, f.stock(t, q.ID))
	orders, items := f.orderCount(t)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Empty(t, f.events.placed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StockRaces))
}

func TestPlaceOrder_PersistenceFailureRollsBack(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)
	require.NoError(t, f.db.Migrator().DropTable(&ordermysql.OrderItemModel{}))

	_, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 4}},
	})
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotErrorIs(t, err, domain.ErrInsufficientStockAtCommit)

	var orders int64
	require.NoError(t, f.db.Model(&ordermysql.OrderModel{}).Count(&orders).Error)
	assert.Zero(t, orders)
	assert.Equal(t, 10, f.stock(t, p.ID))
}

// snapshotBarrier 让所有请求都读到同一份旧库存后才进入提交
type snapshotBarrier struct {
	domain.Inventory
	mu      sync.Mutex
	waiting int
	parties int
	release chan struct{}
}

func newSnapshotBarrier(inner domain.Inventory, parties int) *snapshotBarrier {
	return &snapshotBarrier{Inventory: inner, parties: parties, release: make(chan struct{})}
}

func (b *snapshotBarrier) Snapshot(ctx context.Context, ids []uint) (map[uint]domain.StockSnapshot, error) {
	snap, err := b.Inventory.Snapshot(ctx, ids)
	b.mu.Lock()
	b.waiting++
	if b.waiting == b.parties {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-time.After(5 * time.Second):
	}
	return snap, err
}

func TestPlaceOrder_StaleSnapshotsNeverOversell(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)

	const workers = 8
	barrier := newSnapshotBarrier(inventory.NewCatalogInventory(f.products), workers)
	cmd := NewOrderCommandService(f.db, f.orders, barrier, f.events, f.metrics)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		raced     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(customer uint) {
			defer wg.Done()
			_, err := cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
				CustomerID: customer,
				Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 6}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStockAtCommit):
				raced++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint(i + 1))
	}
	wg.Wait()

	// 每个请求的快照都显示库存 10，只有提交时的条件扣减能拦住超卖
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, raced)
	assert.Equal(t, 4, f.stock(t, p.ID))
	orders, _ := f.orderCount(t)
	assert.EqualValues(t, 1, orders)
	assert.Equal(t, float64(workers-1), testutil.ToFloat64(f.metrics.StockRaces))
}

func TestPlaceOrder_HugeDuplicateQuantitiesRejected(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)

	_, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items: []domain.LineRequest{
			{ProductID: p.ID, Quantity: math.MaxInt},
			{ProductID: p.ID, Quantity: math.MaxInt},
			{ProductID: p.ID, Quantity: 4},
		},
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, 10, f.stock(t, p.ID))
	orders, _ := f.orderCount(t)
	assert.Zero(t, orders)
}

func TestPlaceOrder_SubCentPriceKeepsTotalsConsistent(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Spice", "0.333", 10)

	res, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "0.99", res.Order.TotalPrice.StringFixed(2))
	assert.True(t, res.Order.ItemsTotal().Equal(res.Order.TotalPrice))

	stored, err := f.orders.Get(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalPrice.Equal(res.Order.TotalPrice), "stored %s, returned %s", stored.TotalPrice, res.Order.TotalPrice)
	assert.True(t, stored.ItemsTotal().Equal(stored.TotalPrice))
	assert.True(t, decimal.RequireFromString("0.33").Equal(stored.Items[0].UnitPrice))
}

func TestUpdateStatus(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)
	res, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	id := res.Order.ID

	o, err := f.cmd.UpdateStatus(context.Background(), UpdateStatusCommand{OrderID: id, Status: "processing", ActorID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, o.Status)
	assert.Equal(t, uint(1), o.UpdatedBy)

	_, err = f.cmd.UpdateStatus(context.Background(), UpdateStatusCommand{OrderID: id, Status: "pending", ActorID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.cmd.UpdateStatus(context.Background(), UpdateStatusCommand{OrderID: id, Status: "teleported", ActorID: 1})
	assert.ErrorIs(t, err, domain.ErrUnknownStatus)

	_, err = f.cmd.UpdateStatus(context.Background(), UpdateStatusCommand{OrderID: 404, Status: "processing", ActorID: 1})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.cmd.UpdateStatus(context.Background(), UpdateStatusCommand{OrderID: id, Status: "cancelled", ActorID: 1})
	require.NoError(t, err)
	assert.Equal(t, 6, f.stock(t, p.ID), "cancellation does not restock")

	require.Len(t, f.events.changed, 2)
	assert.Equal(t, "processing", f.events.changed[1].From)
	assert.Equal(t, "cancelled", f.events.changed[1].To)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StatusTransitions.WithLabelValues("cancelled")))
}

func TestDeleteOrder(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Flour", "5", 10)
	res, err := f.cmd.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: 3,
		Items:      []domain.LineRequest{{ProductID: p.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	require.NoError(t, f.cmd.DeleteOrder(context.Background(), res.Order.ID))
	orders, items := f.orderCount(t)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Equal(t, 6, f.stock(t, p.ID))

	assert.ErrorIs(t, f.cmd.DeleteOrder(context.Background(), res.Order.ID), domain.ErrOrderNotFound)
}
