package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"todo-app/backend/internal/models"
)

// TaskRepository は tasks テーブルを操作します。すべての操作は user_id で絞り込みます。
type TaskRepository struct {
	DB *sql.DB
}

// NewTaskRepository は新しいTaskRepositoryインスタンスを作成します。
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{DB: db}
}

const taskColumns = "id, title, description, priority, status, dueDate, completed, user_id, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var (
		t    models.Task
		desc sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Title, &desc, &t.Priority, &t.Status, &t.DueDate, &t.Completed, &t.UserID, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Description = desc.String
	return &t, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// FindByUserID はユーザーのタスクをID昇順で取得します。
func (r *TaskRepository) FindByUserID(ctx context.Context, userID int64) ([]*models.Task, error) {
	return r.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks WHERE user_id = ? ORDER BY id ASC", userID)
}

// FindIncompleteDueOn は未完了で、期限日が days のいずれかに一致するタスクを期限の昇順で取得します。
func (r *TaskRepository) FindIncompleteDueOn(ctx context.Context, userID int64, days ...string) ([]*models.Task, error) {
	if len(days) == 0 {
		return []*models.Task{}, nil
	}
	placeholders := "?"
	args := []any{userID, false, days[0]}
	for _, d := range days[1:] {
		placeholders += ", ?"
		args = append(args, d)
	}
	query := "SELECT " + taskColumns + " FROM tasks" +
		" WHERE user_id = ? AND completed = ? AND dueDate IS NOT NULL AND SUBSTR(dueDate, 1, 10) IN (" + placeholders + ")" +
		" ORDER BY dueDate ASC, id ASC"
	return r.queryTasks(ctx, query, args...)
}

// FindByIDForUser は所有者が一致するタスクを1件取得します。
// 他人のタスクは存在しないものとして ErrTaskNotFound を返します。
func (r *TaskRepository) FindByIDForUser(ctx context.Context, id, userID int64) (*models.Task, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?", id, userID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}
	return t, nil
}

// Create は新しいタスクを挿入し、採番されたIDを設定して返します。
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	models.ApplyCompletion(t)
	query := "INSERT INTO tasks (title, description, priority, status, dueDate, completed, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	result, err := r.DB.ExecContext(ctx, query, t.Title, t.Description, t.Priority, t.Status, t.DueDate, t.Completed, t.UserID, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("could not insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get last insert ID: %w", err)
	}
	t.ID = id
	return t, nil
}

// Update はタスクの可変フィールドを書き戻します。id, user_id, created_at は変更しません。
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	models.ApplyCompletion(t)
	query := "UPDATE tasks SET title = ?, description = ?, priority = ?, status = ?, dueDate = ?, completed = ? WHERE id = ? AND user_id = ?"
	if _, err := r.DB.ExecContext(ctx, query, t.Title, t.Description, t.Priority, t.Status, t.DueDate, t.Completed, t.ID, t.UserID); err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}
	return nil
}

// Delete は所有者が一致するタスクを削除します。
func (r *TaskRepository) Delete(ctx context.Context, id, userID int64) error {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}
