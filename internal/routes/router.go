// Package routesはroutingを行います。
package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"todo-app/backend/internal/config"
	"todo-app/backend/internal/handlers"
	"todo-app/backend/internal/repositories"
	"todo-app/backend/internal/services"
)

type routerOptions struct {
	now func() time.Time
}

// Option は SetupRouter の挙動を変更します。
type Option func(*routerOptions)

// WithClock は期限判定に使う現在時刻の取得元を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(o *routerOptions) { o.now = now }
}

// SetupRouter はGinルーターをセットアップし、すべてのエンドポイントを登録します。
func SetupRouter(db *sql.DB, cfg *config.Config, opts ...Option) *gin.Engine {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := gin.New()
	r.Use(RequestID(), RequestLogger(), Metrics(), Recovery())

	// CORS対策
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	// リポジトリ
	taskRepo := repositories.NewTaskRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// サービス
	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	userService := services.NewUserService(userRepo, jwtService, cfg.BcryptCost)
	taskService := services.NewTaskService(taskRepo)
	if o.now != nil {
		taskService = taskService.WithClock(o.now)
	}

	// ハンドラー
	userHandler := handlers.NewUserHandler(userService)
	taskHandler := handlers.NewTaskHandler(taskService)
	healthHandler := handlers.NewHealthHandler(db)

	// ルーティング
	r.GET("/", healthHandler.RootHandler)
	r.GET("/api/health", healthHandler.HealthHandler)
	r.GET("/api/dbcheck", healthHandler.DBCheckHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", userHandler.RegisterHandler)
		auth.POST("/login", userHandler.LoginHandler)
		auth.POST("/forgot-password", userHandler.ForgotPasswordHandler)
	}

	authorized := r.Group("/api")
	authorized.Use(AuthMiddleware(jwtService))
	{
		authorized.GET("/tasks", taskHandler.GetTasksHandler)
		authorized.GET("/tasks/due-soon", taskHandler.GetDueSoonHandler)
		authorized.POST("/tasks", taskHandler.CreateTaskHandler)
		authorized.PUT("/tasks/:id", taskHandler.UpdateTaskHandler)
		authorized.DELETE("/tasks/:id", taskHandler.DeleteTaskHandler)

		authorized.GET("/me", userHandler.GetMeHandler)
		authorized.PUT("/me", userHandler.UpdateMeHandler)
		authorized.DELETE("/me/delete-account", userHandler.DeleteAccountHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	return r
}
