package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"loyalty/pkg/app"
	"loyalty/pkg/config"
	"loyalty/pkg/repository"
	"loyalty/process/reparse"
)

func main() {
	days := flag.Int("days", 30, "reparse receipts processed in the last N days")
	statuses := flag.String("status", strings.Join(reparse.DefaultStatuses, ","), "comma-separated receipt statuses")
	dry := flag.Bool("dry-run", true, "dry-run: don't write to DB")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, _ := config.NewLogger(cfg.Development())
	defer logger.Sync()

	db, err := app.OpenDB(cfg, logger)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}

	now := time.Now().UTC()
	sum, err := reparse.Run(context.Background(), repository.New(db), reparse.Options{
		From:     now.AddDate(0, 0, -*days),
		To:       now,
		Statuses: strings.Split(*statuses, ","),
		DryRun:   *dry,
	}, os.Stdout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("scanned=%d changed=%d skipped=%d\n", sum.Scanned, sum.Changed, sum.Skipped)
}
