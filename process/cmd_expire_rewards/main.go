package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"loyalty/pkg/app"
	"loyalty/pkg/config"
	"loyalty/pkg/repository"
	"loyalty/pkg/rewards"
)

// Marks every active reward past its expiry as expired. Meant for cron.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, _ := config.NewLogger(cfg.Development())
	defer logger.Sync()

	db, err := app.OpenDB(cfg, logger)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	svc := rewards.NewService(repository.New(db), logger.Named("rewards"))
	n, err := svc.ExpireOverdue(context.Background())
	if err != nil {
		logger.Fatal("expire rewards", zap.Error(err))
	}
	fmt.Printf("expired %d rewards\n", n)
}
