package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"todo-app/backend/internal/models"
	"todo-app/backend/internal/services"
)

// UserHandler はユーザー関連のハンドラーを管理します。
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler は新しいUserHandlerを作成します。
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterHandler はユーザー登録を処理します。
func (h *UserHandler) RegisterHandler(c *gin.Context) {
	var req models.UserRegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.RegisterUser(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
}

// LoginHandler はユーザーログインを処理します。
func (h *UserHandler) LoginHandler(c *gin.Context) {
	var req models.UserLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// ForgotPasswordHandler はパスワードリセットリクエストを処理します。
// メールアドレスの登録有無は応答から判別できません。
func (h *UserHandler) ForgotPasswordHandler(c *gin.Context) {
	var req models.UserForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	msg := h.userService.ForgotPassword(c.Request.Context(), req.Email)
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// GetMeHandler はログイン中ユーザーのプロフィールを返します。
func (h *UserHandler) GetMeHandler(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), identity.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMeHandler は通知設定を更新します。
func (h *UserHandler) UpdateMeHandler(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req models.ProfileUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.userService.UpdateProfile(c.Request.Context(), identity.ID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DeleteAccountHandler はアカウントと所有タスクを削除します。
func (h *UserHandler) DeleteAccountHandler(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	if err := h.userService.DeleteAccount(c.Request.Context(), identity.ID); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}
