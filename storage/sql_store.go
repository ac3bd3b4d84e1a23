package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// dialect 描述不同SQL驱动之间的差异
type dialect struct {
	name   string
	schema string
	// 键已存在时不插入、不报错
	insert string
	// 占位符风格：? 或 $n
	numbered bool
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// SQLStorage 在一张 kv 表上实现 Medium，被 sqlite/mysql/postgres 共用
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
}

func newSQLStorage(db *sql.DB, d dialect) (*SQLStorage, error) {
	// 创建表结构
	if _, err := db.Exec(d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s schema: %w", d.name, err)
	}
	return &SQLStorage{db: db, dialect: d}, nil
}

func (s *SQLStorage) Get(ctx context.Context, key string) ([]byte, Revision, error) {
	var (
		value []byte
		rev   int64
	)
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT v, rev FROM kv WHERE k = ?`), key,
	).Scan(&value, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrKeyNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	return value, Revision(rev), nil
}

func (s *SQLStorage) Put(ctx context.Context, key string, value []byte, expected Revision) (Revision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	next := expected + 1
	var res sql.Result
	if expected == 0 {
		// 键不存在时插入；主键冲突说明其他写入者抢先创建
		res, err = tx.ExecContext(ctx, s.dialect.rebind(s.dialect.insert), key, value, int64(next))
	} else {
		res, err = tx.ExecContext(ctx,
			s.dialect.rebind(`UPDATE kv SET v = ?, rev = ? WHERE k = ? AND rev = ?`),
			value, int64(next), key, int64(expected),
		)
	}
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrRevisionConflict
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
