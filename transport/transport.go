package transport

import (
	"context"
	"time"
)

// Change 任务集合写入成功后广播的事件
type Change struct {
	Node     string    `json:"node"`
	Key      string    `json:"key"`
	Revision uint64    `json:"revision"`
	At       time.Time `json:"at"`
}

// Transport 接口定义
type Transport interface {
	PublishChange(ctx context.Context, change Change) error
	SubscribeChanges(ctx context.Context) (<-chan Change, error)
	Close() error
}

// Noop 单进程部署时使用，不发送也不接收任何事件
type Noop struct{}

func (Noop) PublishChange(ctx context.Context, change Change) error { return nil }

func (Noop) SubscribeChanges(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (Noop) Close() error { return nil }
