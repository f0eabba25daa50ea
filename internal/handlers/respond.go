// Package handlers は HTTP リクエストを処理する gin ハンドラーを提供します。
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"todo-app/backend/internal/apperror"
	"todo-app/backend/internal/models"
)

// RespondError はエラーを種別に応じたステータスと安全なメッセージに変換して返します。
// 内部エラーの詳細はログにのみ出力します。
func RespondError(c *gin.Context, err error) {
	appErr := apperror.As(err)
	if appErr.Kind == apperror.KindInternal {
		log.Error().Err(appErr.Err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString("request_id")).
			Msg("Request failed")
	}

	body := gin.H{"error": appErr.Message}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(appErr.Status(), body)
}

// bindJSON はリクエストボディを dst にデコードします。失敗時は 400 を返して false を返します。
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return false
	}
	return true
}

// currentIdentity は認証ミドルウェアが設定した Identity を取り出します。
func currentIdentity(c *gin.Context) (*models.Identity, bool) {
	v, exists := c.Get(models.IdentityKey)
	if !exists {
		RespondError(c, apperror.Auth("No token provided"))
		return nil, false
	}
	identity, ok := v.(*models.Identity)
	if !ok {
		log.Error().Msg("Invalid identity type in context")
		RespondError(c, apperror.Internal(nil))
		return nil, false
	}
	return identity, true
}
