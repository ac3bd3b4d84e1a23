package storage

import (
	"database/sql"

	_ "modernc.org/sqlite" // 纯Go SQLite驱动
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
		CREATE TABLE IF NOT EXISTS kv (
			k   TEXT PRIMARY KEY,
			v   BLOB NOT NULL,
			rev INTEGER NOT NULL
		);
	`,
	insert: `INSERT INTO kv (k, v, rev) VALUES (?, ?, ?) ON CONFLICT (k) DO NOTHING`,
}

func NewSQLiteStorage(path string) (*SQLStorage, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	return newSQLStorage(db, sqliteDialect)
}
