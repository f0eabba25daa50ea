package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HealthHandler は死活監視用のエンドポイントを提供します。
type HealthHandler struct {
	db        *sql.DB
	startTime time.Time
}

// NewHealthHandler は新しいHealthHandlerを作成します。
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db, startTime: time.Now()}
}

// RootHandler はシンプルな稼働確認エンドポイントです。
func (h *HealthHandler) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "To-Do API is running"})
}

// HealthHandler は静的なヘルスステータスを返します。
func (h *HealthHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// DBCheckHandler はデータベース接続の健全性を確認します。
func (h *HealthHandler) DBCheckHandler(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("DB ping failed")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Database connection failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Database connection is healthy"})
}
