package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"loyalty/pkg/app"
	"loyalty/pkg/config"
	"loyalty/process/inbox"
)

// Feeds a kiosk drop directory through the receipt pipeline for one store.
func main() {
	dir := flag.String("dir", "inbox", "directory the kiosk drops receipt photos into")
	storeID := flag.Uint("store-id", 0, "store the kiosk belongs to (required)")
	watch := flag.Bool("watch", false, "keep watching the directory for new files")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	flag.Parse()

	if *storeID == 0 {
		fmt.Fprintln(os.Stderr, "--store-id is required")
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, _ := config.NewLogger(cfg.Development())
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.FromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	if _, err := a.Repo.FindStoreByID(ctx, uint(*storeID)); err != nil {
		logger.Fatal("store lookup failed", zap.Uint("store_id", uint(*storeID)), zap.Error(err))
	}

	ib := inbox.New(inbox.Options{Dir: *dir, StoreID: uint(*storeID), Workers: *workers}, a.Validator, logger.Named("inbox"))
	run := ib.RunOnce
	if *watch {
		run = ib.Watch
	}
	stats, err := run(ctx)
	if err != nil {
		logger.Fatal("inbox failed", zap.Error(err))
	}
	logger.Info("inbox done", zap.Any("by_status", stats.ByStatus), zap.Int("failed", stats.Failed))
}
