package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wyfcoding/pantry/pkg/logger"
	"github.com/wyfcoding/pantry/pkg/metrics"
)

// ErrDispatcherClosed 调度器已关闭
var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// DispatcherConfig 调度器配置
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Timeout 单个任务的执行上限
	Timeout time.Duration
}

type task struct {
	name string
	ctx  context.Context
	run  func(ctx context.Context) error
}

// Dispatcher 进程内通知任务池。任务在调用方返回后异步执行，失败只记录日志与指标。
type Dispatcher struct {
	cfg     DispatcherConfig
	queue   chan task
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher 创建并启动调度器，m 可为 nil
func NewDispatcher(cfg DispatcherConfig, m *metrics.Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	d := &Dispatcher{
		cfg:     cfg,
		queue:   make(chan task, cfg.QueueSize),
		metrics: m,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit 非阻塞投递任务。队列已满或调度器已关闭时丢弃任务并返回 false。
// 任务继承 ctx 中的 trace 信息，但不受其取消影响。
func (d *Dispatcher) Submit(ctx context.Context, name string, run func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		logger.Warn(ctx, "Notification task dropped, dispatcher closed", "task", name)
		d.count(name, "dropped")
		return false
	}

	select {
	case d.queue <- task{name: name, ctx: context.WithoutCancel(ctx), run: run}:
		d.setDepth()
		return true
	default:
		logger.Error(ctx, "Notification task dropped, queue full", "task", name, "queue_size", d.cfg.QueueSize)
		d.count(name, "dropped")
		return false
	}
}

// Close 停止接收新任务并等待已排队任务执行完毕，ctx 到期时提前返回
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification dispatcher drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.setDepth()
		d.execute(t)
	}
}

func (d *Dispatcher) execute(t task) {
	ctx, cancel := context.WithTimeout(t.ctx, d.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Notification task panicked", "task", t.name, "panic", r)
			d.count(t.name, "panic")
		}
	}()

	start := time.Now()
	if err := t.run(ctx); err != nil {
		logger.Error(ctx, "Notification task failed", "task", t.name, "error", err, "duration", time.Since(start))
		d.count(t.name, "failed")
		return
	}
	logger.Debug(ctx, "Notification task completed", "task", t.name, "duration", time.Since(start))
	d.count(t.name, "completed")
}

func (d *Dispatcher) count(name, result string) {
	if d.metrics != nil {
		d.metrics.Notifications.WithLabelValues("task:"+name, result).Inc()
	}
}

func (d *Dispatcher) setDepth() {
	if d.metrics != nil {
		d.metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
	}
}
