// core/reminder.go
package core

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chhz0/tasklist/transport"
	"github.com/chhz0/tasklist/types"
)

// DefaultReminderInterval 到期扫描的周期
const DefaultReminderInterval = time.Hour

// Notifier 接收每次扫描的结果（可能为空）
type Notifier func(ctx context.Context, reminders []types.Reminder)

type ReminderScanner struct {
	store    *TaskStore
	notify   Notifier
	interval time.Duration
	now      func() time.Time
	changes  <-chan transport.Change
	logger   *log.Logger

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
	latest  []types.Reminder
}

type ReminderOption func(*ReminderScanner)

func WithInterval(d time.Duration) ReminderOption {
	return func(r *ReminderScanner) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithClock(now func() time.Time) ReminderOption {
	return func(r *ReminderScanner) { r.now = now }
}

// WithChanges 收到变更事件时立即重新扫描
func WithChanges(ch <-chan transport.Change) ReminderOption {
	return func(r *ReminderScanner) { r.changes = ch }
}

func WithReminderLogger(l *log.Logger) ReminderOption {
	return func(r *ReminderScanner) { r.logger = l }
}

func NewReminderScanner(store *TaskStore, notify Notifier, opts ...ReminderOption) *ReminderScanner {
	r := &ReminderScanner{
		store:    store,
		notify:   notify,
		interval: DefaultReminderInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// Scan 读取当前集合并计算即将到期的任务
func (r *ReminderScanner) Scan(ctx context.Context) ([]types.Reminder, error) {
	tasks, err := r.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return DueSoon(tasks, r.now()), nil
}

// Latest 最近一次投递的结果
func (r *ReminderScanner) Latest() []types.Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Reminder(nil), r.latest...)
}

// Start 立即扫描一次，之后按周期扫描，重复调用无效
func (r *ReminderScanner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop 取消并等待扫描协程退出
func (r *ReminderScanner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.running = false
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *ReminderScanner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.scanAndNotify(ctx)
	changes := r.changes
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scanAndNotify(ctx)
		case _, ok := <-changes:
			if !ok {
				// 变更流关闭后只保留定时扫描
				changes = nil
				continue
			}
			r.scanAndNotify(ctx)
		}
	}
}

func (r *ReminderScanner) scanAndNotify(ctx context.Context) {
	reminders, err := r.Scan(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("reminder scan failed", "err", err)
		}
		return
	}

	r.mu.Lock()
	r.latest = reminders
	r.mu.Unlock()

	r.logger.Debug("reminder scan", "due_soon", len(reminders))
	if r.notify != nil {
		r.notify(ctx, reminders)
	}
}
