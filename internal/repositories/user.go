package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"todo-app/backend/internal/models"
)

// UserRepository はデータベース操作を行うための構造体です。
type UserRepository struct {
	DB *sql.DB
}

// NewUserRepository は新しいUserRepositoryインスタンスを作成します。
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = "id, username, email, password, browser_notifications"

// Create は新しいユーザーをデータベースに挿入します。
func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	query := "INSERT INTO users (username, email, password, browser_notifications) VALUES (?, ?, ?, ?)"
	result, err := r.DB.ExecContext(ctx, query, u.Username, u.Email, u.PasswordHash, u.BrowserNotifications)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("could not insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get last insert ID: %w", err)
	}
	u.ID = id
	return u, nil
}

// ExistsByUsernameOrEmail はユーザー名またはメールアドレスが登録済みかを返します。
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ? OR email = ?", username, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("could not query users: %w", err)
	}
	return n > 0, nil
}

// FindByEmail はメールアドレスでユーザーを検索します。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

// FindByID はIDでユーザーを検索します。
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.BrowserNotifications,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("could not query user: %w", err)
	}
	return &u, nil
}

// UpdateNotifications は通知設定を更新します。
// MySQL は値が変わらない UPDATE の影響行数を0と報告するため、存在確認は呼び出し側で行います。
func (r *UserRepository) UpdateNotifications(ctx context.Context, id int64, enabled bool) error {
	if _, err := r.DB.ExecContext(ctx, "UPDATE users SET browser_notifications = ? WHERE id = ?", enabled, id); err != nil {
		return fmt.Errorf("could not update user: %w", err)
	}
	return nil
}

// DeleteWithTasks はユーザーと所有タスクを1つのトランザクションで削除します。
// ユーザー行が存在しない場合はロールバックし ErrUserNotFound を返します。
func (r *UserRepository) DeleteWithTasks(ctx context.Context, id int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error().Err(err).Int64("user_id", id).Msg("Failed to roll back account deletion")
		}
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ?", id)
	if err != nil {
		return fmt.Errorf("could not delete tasks: %w", err)
	}
	deletedTasks, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("could not delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit account deletion: %w", err)
	}
	log.Info().Int64("user_id", id).Int64("tasks", deletedTasks).Msg("Deleted account")
	return nil
}
