package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"loyalty/pkg/app"
	"loyalty/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger, err := config.NewLogger(cfg.Development())
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	// `./loyalty migrate` runs the schema migration and exits
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB(cfg, logger)
		fmt.Println("migration completed")
		return
	}

	ensureUploadBase(cfg, logger)
	a, err := app.FromConfig(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	if cfg.Development() {
		seedDB(a.DB, logger)
	}

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	newServer(a, []byte(cfg.JWTSecret), cfg.MaxUploadBytes).setupRoutes(r)

	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
