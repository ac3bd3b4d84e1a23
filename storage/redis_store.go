// storage/redis_store.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

const defaultRedisPrefix = "tasklist:"

type RedisStorage struct {
	client *redis.Client
	prefix string
}

func NewRedisStorage(addr, password string, db int) *RedisStorage {
	return NewRedisStorageWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), defaultRedisPrefix)
}

func NewRedisStorageWithClient(client *redis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStorage{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStorage) key(key string) string {
	return s.prefix + key
}

func (s *RedisStorage) revKey(key string) string {
	return s.prefix + key + ":rev"
}

// Ping 验证连接
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, Revision, error) {
	// MGET 保证值和版本号来自同一时刻
	vals, err := s.client.MGet(ctx, s.key(key), s.revKey(key)).Result()
	if err != nil {
		return nil, 0, err
	}
	value, rev, err := splitEntry(vals)
	if err != nil {
		return nil, 0, err
	}
	if value == nil {
		return nil, 0, ErrKeyNotFound
	}
	return value, rev, nil
}

func (s *RedisStorage) Put(ctx context.Context, key string, value []byte, expected Revision) (Revision, error) {
	var next Revision
	txf := func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx, s.key(key), s.revKey(key)).Result()
		if err != nil {
			return err
		}
		_, current, err := splitEntry(vals)
		if err != nil {
			return err
		}
		if current != expected {
			next = current
			return ErrRevisionConflict
		}
		next = current + 1

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key(key), value, 0)
			pipe.Set(ctx, s.revKey(key), strconv.FormatUint(uint64(next), 10), 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, s.key(key), s.revKey(key))
	if errors.Is(err, redis.TxFailedErr) {
		// WATCH 的键在事务提交前被其他客户端修改
		return 0, ErrRevisionConflict
	}
	if err != nil {
		return next, err
	}
	return next, nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// splitEntry 解析 MGET 的结果。值不存在时残留的版本号视为0，
// 与 Get 报告的 ErrKeyNotFound 保持一致
func splitEntry(vals []interface{}) ([]byte, Revision, error) {
	if len(vals) != 2 {
		return nil, 0, fmt.Errorf("unexpected MGET reply of %d values", len(vals))
	}
	value, ok := vals[0].(string)
	if !ok {
		return nil, 0, nil
	}
	rev, err := parseRevision(vals[1])
	if err != nil {
		return nil, 0, err
	}
	return []byte(value), rev, nil
}

func parseRevision(v interface{}) (Revision, error) {
	switch raw := v.(type) {
	case nil:
		return 0, nil
	case string:
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, err
		}
		return Revision(n), nil
	}
	return 0, errors.New("unexpected revision type")
}
