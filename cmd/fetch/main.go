// Command fetch runs the stock data pipeline once for the configured symbols.
//
//	fetch [SYMBOL ...]
//
// Symbols given on the command line replace the configured list.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	redisv9 "github.com/redis/go-redis/v9"

	"stock_pipeline/internal/app/di"
	"stock_pipeline/internal/config"
	"stock_pipeline/internal/platform/db"
	"stock_pipeline/internal/platform/logging"
	"stock_pipeline/internal/platform/redis"
)

func main() {
	flag.Parse()
	os.Exit(run(flag.Args()))
}

func run(args []string) int {
	cfg, err := config.Load(config.Path())
	if err != nil {
		logging.Setup(os.Stdout, os.Getenv("LOG_LEVEL"))
		slog.Error("failed to load config", "error", err)
		return 1
	}
	logging.Setup(os.Stdout, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	symbols := cfg.Symbols
	if len(args) > 0 {
		symbols = nil
		for _, a := range args {
			if s := strings.ToUpper(strings.TrimSpace(a)); s != "" {
				symbols = append(symbols, s)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	gdb, err := db.OpenDB(cfg.Database)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		return 1
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Redis（任意）
	var rdb *redisv9.Client
	if cfg.Redis.Enabled() {
		if c, err := redis.NewRedisClient(ctx, cfg.Redis); err != nil {
			slog.Warn("redis unavailable, running without cache", "error", err)
		} else {
			rdb = c
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("failed to close redis client", "error", err)
				}
			}()
		}
	}

	repos := di.NewRepositories(gdb, rdb, cfg, nil)
	pipeline := di.NewPipeline(cfg, di.NewMarket(cfg.AlphaVantage), repos.Prices)

	ok := pipeline.RunPipeline(ctx, symbols)
	if errors.Is(ctx.Err(), context.Canceled) {
		slog.Info("pipeline stopped by user")
		return 0
	}
	if !ok {
		slog.Error("pipeline failed")
		return 1
	}
	slog.Info("pipeline finished")
	return 0
}
