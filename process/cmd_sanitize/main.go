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
	"loyalty/process/sanitize"
)

func main() {
	dryRun := flag.Bool("dry-run", true, "Don't perform destructive actions; show what would be done")
	yes := flag.Bool("yes", false, "Confirm destructive action (required to actually truncate)")
	reseed := flag.Bool("reseed", false, "After truncation, reseed default settings and a demo store")
	tables := flag.String("tables", strings.Join(sanitize.DefaultTables, ","), "Comma-separated list of tables to truncate")
	flag.Parse()

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
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := sanitize.Run(ctx, db, sanitize.Options{
		Tables: strings.Split(*tables, ","),
		DryRun: *dryRun,
		Yes:    *yes,
		Reseed: *reseed,
	}, os.Stdout, logger); err != nil {
		logger.Fatal("sanitize failed", zap.Error(err))
	}
}
