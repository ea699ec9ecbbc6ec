package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"GuildFM/core/metrics"
	"GuildFM/core/queue"
	"GuildFM/logger"
	"GuildFM/model"
)

// ErrDispatcherClosed Close 之后不再接收事件
var ErrDispatcherClosed = errors.New("dispatcher closed")

// EventHandler 处理单个事件，Reconciler 实现此接口
type EventHandler interface {
	HandleEvent(ctx context.Context, ev model.NodeEvent) error
}

// DispatcherConfig 调度器配置
type DispatcherConfig struct {
	IdleTimeout  time.Duration // 空闲 worker 退出时间
	EventTimeout time.Duration // 单个事件处理超时
	Metrics      *metrics.Metrics
}

// mailbox 单个租户的无界 FIFO 事件队列
type mailbox struct {
	events []model.NodeEvent
	signal chan struct{}
}

// Dispatcher delivers node events to the handler one tenant at a time: events of a tenant are
// handled sequentially in arrival order, different tenants proceed in parallel.
type Dispatcher struct {
	handler EventHandler
	cfg     DispatcherConfig

	mu        sync.Mutex
	mailboxes map[string]*mailbox
	closed    bool
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewDispatcher 创建调度器
func NewDispatcher(handler EventHandler, cfg DispatcherConfig) *Dispatcher {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 10 * time.Second
	}
	return &Dispatcher{
		handler:   handler,
		cfg:       cfg,
		mailboxes: make(map[string]*mailbox),
		done:      make(chan struct{}),
	}
}

// Dispatch enqueues ev on its tenant's mailbox without blocking.
func (d *Dispatcher) Dispatch(ev model.NodeEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	mb, ok := d.mailboxes[ev.TenantID]
	if !ok {
		mb = &mailbox{signal: make(chan struct{}, 1)}
		d.mailboxes[ev.TenantID] = mb
		d.wg.Add(1)
		go d.worker(ev.TenantID, mb)
	}
	mb.events = append(mb.events, ev)
	d.cfg.Metrics.BacklogAdd(1)

	select {
	case mb.signal <- struct{}{}:
	default:
	}
	return nil
}

// Workers 当前活跃的 worker 数量
func (d *Dispatcher) Workers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mailboxes)
}

// Close 停止接收事件，处理完已入队的事件后返回
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(tenantID string, mb *mailbox) {
	defer d.wg.Done()

	for {
		ev, ok := d.next(tenantID, mb)
		if !ok {
			return
		}
		d.handle(ev)
	}
}

// next 取出下一个事件；空闲超时或关闭且已清空时返回 false，并移除邮箱
func (d *Dispatcher) next(tenantID string, mb *mailbox) (model.NodeEvent, bool) {
	var idle *time.Timer
	defer func() {
		if idle != nil {
			idle.Stop()
		}
	}()

	for {
		d.mu.Lock()
		if len(mb.events) > 0 {
			ev := mb.events[0]
			mb.events[0] = model.NodeEvent{}
			mb.events = mb.events[1:]
			d.mu.Unlock()
			d.cfg.Metrics.BacklogAdd(-1)
			return ev, true
		}
		if d.closed {
			delete(d.mailboxes, tenantID)
			d.mu.Unlock()
			return model.NodeEvent{}, false
		}
		d.mu.Unlock()

		if idle == nil {
			idle = time.NewTimer(d.cfg.IdleTimeout)
		}
		select {
		case <-mb.signal:
		case <-d.done:
		case <-idle.C:
			d.mu.Lock()
			if len(mb.events) == 0 {
				delete(d.mailboxes, tenantID)
				d.mu.Unlock()
				logger.Debug("event worker idle, exiting", logger.Tenant(tenantID))
				return model.NodeEvent{}, false
			}
			d.mu.Unlock()
			idle.Reset(d.cfg.IdleTimeout)
		}
	}
}

func (d *Dispatcher) handle(ev model.NodeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.EventTimeout)
	defer cancel()

	err := d.handler.HandleEvent(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrNoQueueFound):
		logger.Debug("event discarded", logger.Tenant(ev.TenantID), logger.ErrorField(err))
	default:
		logger.Warn("event handling failed",
			logger.Tenant(ev.TenantID),
			logger.String("kind", string(ev.Kind)),
			logger.ErrorField(err))
	}
}
