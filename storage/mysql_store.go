package storage

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: `
		CREATE TABLE IF NOT EXISTS kv (
			k   VARCHAR(255) NOT NULL PRIMARY KEY,
			v   LONGBLOB NOT NULL,
			rev BIGINT NOT NULL
		)
	`,
	insert: `INSERT IGNORE INTO kv (k, v, rev) VALUES (?, ?, ?)`,
}

// NewMySQLStorage dsn 形如 user:pass@tcp(127.0.0.1:3306)/tasklist
func NewMySQLStorage(dsn string) (*SQLStorage, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	// UPDATE 需要返回匹配行数而不是变更行数
	cfg.ClientFoundRows = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	return newSQLStorage(db, mysqlDialect)
}
