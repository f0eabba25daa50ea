package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"todo-app/backend/internal/config"
	"todo-app/backend/internal/database"
	"todo-app/backend/internal/logger"
	"todo-app/backend/internal/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// ロガー初期化前なのでデフォルト出力
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	dialect := database.Dialect(cfg.DBDriver)
	db, err := database.Open(dialect, cfg.DataSource())
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("Failed to initialize database")
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = database.Migrate(migrateCtx, db, dialect)
	cancelMigrate()
	if err != nil {
		if !cfg.MigrationsNonFatal {
			log.Fatal().Err(err).Msg("Failed to apply database migrations")
		}
		log.Error().Err(err).Msg("Database migrations failed, starting anyway")
	}

	router := routes.SetupRouter(db, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
