package services

import (
	"context"
	"errors"
	"math"
	"time"

	"todo-app/backend/internal/apperror"
	"todo-app/backend/internal/models"
	"todo-app/backend/internal/repositories"
)

const msgTaskNotFound = "Task not found"

// TaskService はTask関連のビジネスロジックを扱います。
type TaskService struct {
	taskRepo *repositories.TaskRepository
	now      func() time.Time
}

// NewTaskService は新しいTaskServiceを作成します。
func NewTaskService(taskRepo *repositories.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo, now: time.Now}
}

// WithClock は「今日」の判定に使う時計を差し替えます。
func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	s.now = now
	return s
}

// GetTasks はユーザーのタスクをすべて返します。
func (s *TaskService) GetTasks(ctx context.Context, userID int64) ([]*models.Task, error) {
	tasks, err := s.taskRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return tasks, nil
}

// GetDueSoon は今日または明日が期限の未完了タスクを、残り日数付きで返します。
func (s *TaskService) GetDueSoon(ctx context.Context, userID int64) ([]*models.DueSoonTask, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)

	tasks, err := s.taskRepo.FindIncompleteDueOn(ctx, userID,
		today.Format(models.DateLayout), tomorrow.Format(models.DateLayout))
	if err != nil {
		return nil, apperror.Internal(err)
	}

	result := make([]*models.DueSoonTask, 0, len(tasks))
	for _, t := range tasks {
		due, err := time.Parse(models.DateLayout, t.DueDay())
		if err != nil {
			continue
		}
		result = append(result, &models.DueSoonTask{Task: *t, DaysUntilDue: daysBetween(today, due)})
	}
	return result, nil
}

// daysBetween は暦日の差を切り上げで返します。夏時間の影響を避けるため UTC の日付同士で計算します。
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(b.Sub(a).Hours() / 24))
}

// CreateTask は新しいタスクを作成します。
func (s *TaskService) CreateTask(ctx context.Context, userID int64, req models.TaskCreateRequest) (*models.Task, error) {
	t := req.NewTask(userID)
	if err := validateTask(t); err != nil {
		return nil, err
	}
	t.CreatedAt = s.now().UTC().Truncate(time.Second)

	created, err := s.taskRepo.Create(ctx, t)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return created, nil
}

// UpdateTask は所有者のタスクに指定フィールドだけを反映します。
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID int64, req models.TaskUpdateRequest) (*models.Task, error) {
	existing, err := s.taskRepo.FindByIDForUser(ctx, taskID, userID)
	if err != nil {
		return nil, taskError(err)
	}

	req.Apply(existing)
	if err := validateTask(existing); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Update(ctx, existing); err != nil {
		return nil, apperror.Internal(err)
	}
	return existing, nil
}

// DeleteTask は所有者のタスクを削除します。
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID int64) error {
	if err := s.taskRepo.Delete(ctx, taskID, userID); err != nil {
		return taskError(err)
	}
	return nil
}

func validateTask(t *models.Task) error {
	var violations []string
	if t.Title == "" {
		violations = append(violations, "Title is required")
	}
	if day := t.DueDay(); day != "" {
		if _, err := time.Parse(models.DateLayout, day); err != nil {
			violations = append(violations, "dueDate must start with a date in YYYY-MM-DD format")
		}
	}
	if len(violations) > 0 {
		return apperror.Validation(violations[0], violations...)
	}
	return nil
}

func taskError(err error) error {
	if errors.Is(err, repositories.ErrTaskNotFound) {
		return apperror.NotFound(msgTaskNotFound)
	}
	return apperror.Internal(err)
}
