// storage/boltdb_store.go
package storage

import (
	"context"
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	valueBucket    = []byte("tasks")
	revisionBucket = []byte("revisions")
)

type BoltStorage struct {
	db *bolt.DB
}

func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	// 初始化Bucket
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{valueBucket, revisionBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Get(ctx context.Context, key string) ([]byte, Revision, error) {
	var (
		value []byte
		rev   Revision
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(valueBucket).Get([]byte(key))
		if data == nil {
			return ErrKeyNotFound
		}
		// bolt 的值只在事务内有效
		value = append([]byte(nil), data...)
		rev = readRevision(tx, key)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return value, rev, nil
}

func (s *BoltStorage) Put(ctx context.Context, key string, value []byte, expected Revision) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var next Revision
	err := s.db.Update(func(tx *bolt.Tx) error {
		current := readRevision(tx, key)
		if current != expected {
			next = current
			return ErrRevisionConflict
		}
		next = current + 1

		if err := tx.Bucket(valueBucket).Put([]byte(key), value); err != nil {
			return err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(next))
		return tx.Bucket(revisionBucket).Put([]byte(key), buf)
	})
	return next, err
}

func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func readRevision(tx *bolt.Tx, key string) Revision {
	data := tx.Bucket(revisionBucket).Get([]byte(key))
	if len(data) != 8 {
		return 0
	}
	return Revision(binary.BigEndian.Uint64(data))
}
