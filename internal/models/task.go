// Package models はユーザーとタスクのデータ構造を定義します。
package models

import (
	"strings"
	"time"
)

// タスクの既定値
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"

	PriorityMedium = "medium"
)

// Task は tasks テーブルの1行を表します。
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	DueDate     *string   `json:"dueDate"`
	Completed   bool      `json:"completed"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// DueSoonTask は期限が近いタスクに残り日数を付けたものです。
type DueSoonTask struct {
	Task
	DaysUntilDue int `json:"daysUntilDue"`
}

// TaskCreateRequest は POST /api/tasks のリクエストです。
type TaskCreateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	DueDate     *string `json:"dueDate"`
}

// TaskUpdateRequest は PUT /api/tasks/:id のリクエストです。
// 更新できるのはここに並ぶフィールドだけで、id や user_id は受け付けません。
type TaskUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	DueDate     *string `json:"dueDate"`
	Completed   *bool   `json:"completed"`
}

// NewTask はリクエストに既定値を補ってタスクを作ります。
func (r *TaskCreateRequest) NewTask(userID int64) *Task {
	t := &Task{
		Title:       strings.TrimSpace(r.Title),
		Description: "",
		Priority:    PriorityMedium,
		Status:      StatusPending,
		UserID:      userID,
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Priority != nil && *r.Priority != "" {
		t.Priority = *r.Priority
	}
	if r.Status != nil && *r.Status != "" {
		t.Status = *r.Status
	}
	t.DueDate = normalizeDueDate(r.DueDate)
	ApplyCompletion(t)
	return t
}

// Apply は指定されたフィールドだけを t に反映します。
// completed だけが指定された場合は status 側を合わせます。
func (r *TaskUpdateRequest) Apply(t *Task) {
	if r.Title != nil {
		t.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Priority != nil && *r.Priority != "" {
		t.Priority = *r.Priority
	}
	if r.DueDate != nil {
		t.DueDate = normalizeDueDate(r.DueDate)
	}

	switch {
	case r.Status != nil && *r.Status != "":
		t.Status = *r.Status
	case r.Completed != nil && *r.Completed:
		t.Status = StatusCompleted
	case r.Completed != nil && t.Status == StatusCompleted:
		t.Status = StatusPending
	}
	ApplyCompletion(t)
}

// ApplyCompletion は status から completed を導出します。
// タスクを書き込むすべての経路で呼び出してください。
func ApplyCompletion(t *Task) {
	t.Completed = t.Status == StatusCompleted
}

// DueDay は dueDate の日付部分 (YYYY-MM-DD) を返します。
func (t *Task) DueDay() string {
	if t.DueDate == nil {
		return ""
	}
	d := *t.DueDate
	if len(d) > len(DateLayout) {
		d = d[:len(DateLayout)]
	}
	return d
}

// DateLayout は dueDate の日付部分の書式です。
const DateLayout = "2006-01-02"

// 空文字列は期限なし (NULL) として扱う
func normalizeDueDate(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
