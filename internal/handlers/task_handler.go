package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"todo-app/backend/internal/apperror"
	"todo-app/backend/internal/models"
	"todo-app/backend/internal/services"
)

// TaskHandler はTask関連のハンドラーを管理します。
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler は新しいTaskHandlerを作成します。
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// 数値でないIDは存在しないタスクと同じ扱いにする
func taskIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, apperror.NotFound("Task not found"))
		return 0, false
	}
	return id, true
}

// GetTasksHandler はタスク一覧を取得します。
func (h *TaskHandler) GetTasksHandler(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.GetTasks(c.Request.Context(), identity.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GetDueSoonHandler は今日・明日が期限の未完了タスクを取得します。
func (h *TaskHandler) GetDueSoonHandler(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.GetDueSoon(c.Request.Context(), identity.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// CreateTaskHandler は新しいTaskを作成します。
func (h *TaskHandler) CreateTaskHandler(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req models.TaskCreateRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.taskService.CreateTask(c.Request.Context(), identity.ID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateTaskHandler はTaskを更新します。
func (h *TaskHandler) UpdateTaskHandler(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	var req models.TaskUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.taskService.UpdateTask(c.Request.Context(), identity.ID, id, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteTaskHandler はTaskを削除します。
func (h *TaskHandler) DeleteTaskHandler(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), identity.ID, id); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}
