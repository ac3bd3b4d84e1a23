package storage

import (
	"context"
	"errors"
)

// DefaultKey 任务集合使用的固定键
const DefaultKey = "todos"

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrRevisionConflict = errors.New("revision conflict")
)

// Revision 键值的版本号，0 表示键不存在
type Revision uint64

// Medium 单键值持久化介质。Put 是针对 expected 版本的比较并交换写入。
type Medium interface {
	Get(ctx context.Context, key string) ([]byte, Revision, error)
	Put(ctx context.Context, key string, value []byte, expected Revision) (Revision, error)
	Close() error
}
