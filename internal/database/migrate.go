package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// migration はスキーマ変更の1ステップです。
// version は一度適用されると schema_migrations に記録され、以降は実行されません。
type migration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sql.Tx, d Dialect) error
}

// migrations は適用順に並べたスキーマ変更の一覧です。
// 記録のない古いデータベースでも収束するよう、後半のステップは実際の列を確認してから変更します。
var migrations = []migration{
	{1, "create_users", createUsers},
	{2, "create_tasks", createTasks},
	{3, "rename_email_notifications", renameEmailNotifications},
	{4, "add_browser_notifications", addBrowserNotifications},
	{5, "drop_tasks_reminder_sent", dropReminderSent},
	{6, "add_tasks_created_at", addCreatedAt},
}

const createLedgerSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

// Migrate は未適用のマイグレーションを順に適用します。
// 失敗したステップは記録されず、次回起動時に再実行されます。
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	if _, err := db.ExecContext(ctx, createLedgerSQL); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := apply(ctx, db, d, m); err != nil {
			log.Error().Err(err).Int("version", m.version).Str("name", m.name).Msg("Migration failed")
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		log.Info().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, d Dialect, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx, d); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// rowQuerier は *sql.DB と *sql.Tx の共通部分です。
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ColumnExists は table に column が存在するかを返します。
func ColumnExists(ctx context.Context, q rowQuerier, d Dialect, table, column string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, columnExistsQuery(d), table, column).Scan(&n); err != nil {
		return false, fmt.Errorf("inspecting %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

func columnExistsQuery(d Dialect) string {
	if d == SQLite {
		return "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?"
	}
	return `SELECT COUNT(*) FROM information_schema.COLUMNS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`
}

func createUsersSQL(d Dialect) string {
	if d == SQLite {
		return `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			browser_notifications BOOLEAN DEFAULT 1
		)`
	}
	return `
		CREATE TABLE IF NOT EXISTS users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			password VARCHAR(255) NOT NULL,
			browser_notifications BOOLEAN DEFAULT TRUE
		)`
}

func createUsers(ctx context.Context, tx *sql.Tx, d Dialect) error {
	_, err := tx.ExecContext(ctx, createUsersSQL(d))
	return err
}

func createTasksSQL(d Dialect) string {
	if d == SQLite {
		return `
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT,
			priority TEXT NOT NULL,
			status TEXT NOT NULL,
			dueDate TEXT,
			completed BOOLEAN DEFAULT 0,
			user_id INTEGER NOT NULL REFERENCES users(id),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
	}
	return `
		CREATE TABLE IF NOT EXISTS tasks (
			id INT AUTO_INCREMENT PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			priority VARCHAR(50) NOT NULL,
			status VARCHAR(50) NOT NULL,
			dueDate VARCHAR(64),
			completed BOOLEAN DEFAULT FALSE,
			user_id INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`
}

func createTasks(ctx context.Context, tx *sql.Tx, d Dialect) error {
	_, err := tx.ExecContext(ctx, createTasksSQL(d))
	return err
}

func renameEmailNotificationsSQL(d Dialect) string {
	if d == SQLite {
		return "ALTER TABLE users RENAME COLUMN email_notifications TO browser_notifications"
	}
	return "ALTER TABLE users CHANGE email_notifications browser_notifications BOOLEAN DEFAULT TRUE"
}

func renameEmailNotifications(ctx context.Context, tx *sql.Tx, d Dialect) error {
	legacy, err := ColumnExists(ctx, tx, d, "users", "email_notifications")
	if err != nil || !legacy {
		return err
	}
	current, err := ColumnExists(ctx, tx, d, "users", "browser_notifications")
	if err != nil {
		return err
	}
	if current {
		log.Warn().Msg("users has both email_notifications and browser_notifications; leaving legacy column in place")
		return nil
	}
	_, err = tx.ExecContext(ctx, renameEmailNotificationsSQL(d))
	return err
}

func addBrowserNotificationsSQL(d Dialect) string {
	if d == SQLite {
		return "ALTER TABLE users ADD COLUMN browser_notifications BOOLEAN DEFAULT 1"
	}
	return "ALTER TABLE users ADD COLUMN browser_notifications BOOLEAN DEFAULT TRUE"
}

func addBrowserNotifications(ctx context.Context, tx *sql.Tx, d Dialect) error {
	exists, err := ColumnExists(ctx, tx, d, "users", "browser_notifications")
	if err != nil || exists {
		return err
	}
	_, err = tx.ExecContext(ctx, addBrowserNotificationsSQL(d))
	return err
}

func dropReminderSent(ctx context.Context, tx *sql.Tx, d Dialect) error {
	exists, err := ColumnExists(ctx, tx, d, "tasks", "reminder_sent")
	if err != nil || !exists {
		return err
	}
	_, err = tx.ExecContext(ctx, "ALTER TABLE tasks DROP COLUMN reminder_sent")
	return err
}

// SQLite は ADD COLUMN で CURRENT_TIMESTAMP を既定値にできないため、既存行は UPDATE で埋める
func addCreatedAtSQL(d Dialect) string {
	if d == SQLite {
		return "ALTER TABLE tasks ADD COLUMN created_at TIMESTAMP"
	}
	return "ALTER TABLE tasks ADD COLUMN created_at TIMESTAMP NULL DEFAULT CURRENT_TIMESTAMP"
}

func addCreatedAt(ctx context.Context, tx *sql.Tx, d Dialect) error {
	exists, err := ColumnExists(ctx, tx, d, "tasks", "created_at")
	if err != nil || exists {
		return err
	}
	if _, err := tx.ExecContext(ctx, addCreatedAtSQL(d)); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "UPDATE tasks SET created_at = ? WHERE created_at IS NULL", time.Now().UTC())
	return err
}
