// Package database はデータベース接続の確立とスキーマのマイグレーションを扱います。
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Dialect は接続先データベースの種類です。値は database/sql のドライバ名と一致します。
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// Open はデータベース接続を初期化し、疎通を確認します。
// SQLite の場合、dsn はファイルパスで、親ディレクトリがなければ作成します。
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case MySQL:
		return openMySQL(dsn)
	case SQLite:
		return openSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", dialect)
	}
}

func openMySQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(MySQL), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Str("driver", string(MySQL)).Msg("Successfully connected to MySQL database")
	return db, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// PRAGMA は接続ごとに DSN から適用される
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sql.Open(string(SQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	// SQLite は書き込みが直列なので接続を1本に固定する
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Str("driver", string(SQLite)).Str("path", path).Msg("Successfully opened SQLite database")
	return db, nil
}
