// middleware/middleware.go
package middleware

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chhz0/tasklist/storage"
)

type Middleware func(next storage.Medium) storage.Medium

// 中间件链，第一个中间件在最外层
func Chain(middlewares ...Middleware) Middleware {
	return func(final storage.Medium) storage.Medium {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// medium 把函数适配为 storage.Medium
type medium struct {
	get   func(ctx context.Context, key string) ([]byte, storage.Revision, error)
	put   func(ctx context.Context, key string, value []byte, expected storage.Revision) (storage.Revision, error)
	close func() error
}

func (m medium) Get(ctx context.Context, key string) ([]byte, storage.Revision, error) {
	return m.get(ctx, key)
}

func (m medium) Put(ctx context.Context, key string, value []byte, expected storage.Revision) (storage.Revision, error) {
	return m.put(ctx, key, value, expected)
}

func (m medium) Close() error {
	return m.close()
}

// 超时中间件
func Timeout(d time.Duration) Middleware {
	return func(next storage.Medium) storage.Medium {
		return medium{
			get: func(ctx context.Context, key string) ([]byte, storage.Revision, error) {
				ctx, cancel := context.WithTimeout(ctx, d)
				defer cancel()
				return next.Get(ctx, key)
			},
			put: func(ctx context.Context, key string, value []byte, expected storage.Revision) (storage.Revision, error) {
				ctx, cancel := context.WithTimeout(ctx, d)
				defer cancel()
				return next.Put(ctx, key, value, expected)
			},
			close: next.Close,
		}
	}
}

// 日志中间件
func Logger(logger *log.Logger) Middleware {
	return func(next storage.Medium) storage.Medium {
		return medium{
			get: func(ctx context.Context, key string) ([]byte, storage.Revision, error) {
				start := time.Now()
				value, rev, err := next.Get(ctx, key)
				switch {
				case err == nil, errors.Is(err, storage.ErrKeyNotFound):
					logger.Debug("medium get", "key", key, "rev", rev, "bytes", len(value), "took", time.Since(start), "found", err == nil)
				default:
					logger.Warn("medium get failed", "key", key, "err", err)
				}
				return value, rev, err
			},
			put: func(ctx context.Context, key string, value []byte, expected storage.Revision) (storage.Revision, error) {
				start := time.Now()
				rev, err := next.Put(ctx, key, value, expected)
				switch {
				case err == nil:
					logger.Debug("medium put", "key", key, "rev", rev, "bytes", len(value), "took", time.Since(start))
				case errors.Is(err, storage.ErrRevisionConflict):
					logger.Debug("medium put conflict", "key", key, "expected", expected)
				default:
					logger.Warn("medium put failed", "key", key, "err", err)
				}
				return rev, err
			},
			close: next.Close,
		}
	}
}

// Stats 介质调用计数
type Stats struct {
	gets      atomic.Int64
	puts      atomic.Int64
	conflicts atomic.Int64
	errors    atomic.Int64
	latency   atomic.Int64
}

type Snapshot struct {
	Gets      int64         `json:"gets"`
	Puts      int64         `json:"puts"`
	Conflicts int64         `json:"conflicts"`
	Errors    int64         `json:"errors"`
	Latency   time.Duration `json:"latency_ns"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Gets:      s.gets.Load(),
		Puts:      s.puts.Load(),
		Conflicts: s.conflicts.Load(),
		Errors:    s.errors.Load(),
		Latency:   time.Duration(s.latency.Load()),
	}
}

// 指标收集中间件
func Metrics(stats *Stats) Middleware {
	return func(next storage.Medium) storage.Medium {
		return medium{
			get: func(ctx context.Context, key string) ([]byte, storage.Revision, error) {
				start := time.Now()
				value, rev, err := next.Get(ctx, key)
				stats.gets.Add(1)
				stats.record(time.Since(start), err)
				return value, rev, err
			},
			put: func(ctx context.Context, key string, value []byte, expected storage.Revision) (storage.Revision, error) {
				start := time.Now()
				rev, err := next.Put(ctx, key, value, expected)
				stats.puts.Add(1)
				stats.record(time.Since(start), err)
				return rev, err
			},
			close: next.Close,
		}
	}
}

func (s *Stats) record(d time.Duration, err error) {
	s.latency.Add(int64(d))
	switch {
	case err == nil, errors.Is(err, storage.ErrKeyNotFound):
	case errors.Is(err, storage.ErrRevisionConflict):
		s.conflicts.Add(1)
	default:
		s.errors.Add(1)
	}
}
