package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"loyalty/pkg/config"
	"loyalty/pkg/repository"
	"loyalty/process/report"
)

func main() {
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to report (YYYY-MM)")
	list := flag.Bool("list", false, "list matching receipts")
	xlsx := flag.String("xlsx", "", "also write the report to this .xlsx file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.DBDSN == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}
	logger, _ := config.NewLogger(cfg.Development())
	defer logger.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	rep, err := report.Build(context.Background(), repository.New(gdb), *month)
	if err != nil {
		logger.Fatal("build report", zap.Error(err))
	}
	rep.Print(os.Stdout, *list)

	if *xlsx != "" {
		b, err := rep.XLSX()
		if err != nil {
			logger.Fatal("render xlsx", zap.Error(err))
		}
		if err := os.WriteFile(*xlsx, b, 0o644); err != nil {
			logger.Fatal("write xlsx", zap.Error(err))
		}
		logger.Info("xlsx written", zap.String("path", *xlsx), zap.Int("receipts", len(rep.Receipts)))
	}
}
