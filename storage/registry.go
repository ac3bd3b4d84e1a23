package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Options 打开存储介质所需的参数，按后端取用
type Options struct {
	Backend string
	// bolt / sqlite 的文件路径
	Path string
	// mysql / postgres 连接串
	DSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

type Factory func(ctx context.Context, opts Options) (Medium, error)

type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(backend string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
}

func (r *Registry) GetFactory(backend string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[backend]
	return f, ok
}

func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Open(ctx context.Context, opts Options) (Medium, error) {
	f, ok := r.GetFactory(opts.Backend)
	if !ok {
		return nil, fmt.Errorf("unknown storage backend %q (available: %v)", opts.Backend, r.Backends())
	}
	return f(ctx, opts)
}

var defaultRegistry = NewRegistry()

func Register(backend string, factory Factory) {
	defaultRegistry.Register(backend, factory)
}

func Backends() []string {
	return defaultRegistry.Backends()
}

// Open 通过默认注册表打开介质
func Open(ctx context.Context, opts Options) (Medium, error) {
	return defaultRegistry.Open(ctx, opts)
}

func init() {
	Register("memory", func(ctx context.Context, opts Options) (Medium, error) {
		return NewMemoryStorage(), nil
	})
	Register("bolt", func(ctx context.Context, opts Options) (Medium, error) {
		if err := ensureParent(opts.Path); err != nil {
			return nil, err
		}
		return NewBoltStorage(opts.Path)
	})
	Register("sqlite", func(ctx context.Context, opts Options) (Medium, error) {
		if err := ensureParent(opts.Path); err != nil {
			return nil, err
		}
		return NewSQLiteStorage(opts.Path)
	})
	Register("mysql", func(ctx context.Context, opts Options) (Medium, error) {
		return NewMySQLStorage(opts.DSN)
	})
	Register("postgres", func(ctx context.Context, opts Options) (Medium, error) {
		return NewPostgresStorage(opts.DSN)
	})
	Register("redis", func(ctx context.Context, opts Options) (Medium, error) {
		s := NewRedisStorageWithClient(redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		}), opts.RedisPrefix)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis %s: %w", opts.RedisAddr, err)
		}
		return s, nil
	})
}

func ensureParent(path string) error {
	if path == "" {
		return fmt.Errorf("storage path is empty")
	}
	return os.MkdirAll(filepath.Dir(path), 0700)
}
