// Command scheduler runs the stock data pipeline DAG on a cron schedule and
// serves run status over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"stock_pipeline/internal/app/di"
	"stock_pipeline/internal/app/router"
	"stock_pipeline/internal/config"
	"stock_pipeline/internal/feature/prices/transport/handler"
	"stock_pipeline/internal/feature/prices/usecase"
	"stock_pipeline/internal/platform/cache"
	"stock_pipeline/internal/platform/dag"
	"stock_pipeline/internal/platform/db"
	"stock_pipeline/internal/platform/healthcheck"
	httphandler "stock_pipeline/internal/platform/http/handler"
	"stock_pipeline/internal/platform/http/middleware"
	"stock_pipeline/internal/platform/logging"
	"stock_pipeline/internal/platform/redis"
	"stock_pipeline/internal/platform/scheduler"
)

const (
	historySize     = 20
	shutdownTimeout = 30 * time.Second
)

func main() {
	runNow := flag.Bool("run-now", false, "trigger one DAG run immediately on start")
	flag.Parse()
	os.Exit(run(*runNow))
}

func run(runNow bool) int {
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

	// キャッシュは次回のスケジュール実行までに失効させる
	var schedule cron.Schedule
	expiry := func() time.Duration {
		if schedule == nil {
			return 0
		}
		return cache.TimeUntilNextRun(schedule, time.Now())
	}

	// Repository / Usecase
	repos := di.NewRepositories(gdb, rdb, cfg, expiry)
	market := di.NewMarket(cfg.AlphaVantage)
	pipeline := di.NewPipeline(cfg, market, repos.Prices)
	verifier := usecase.NewVerifyUsecase(repos.Summary, time.Now)

	apiCheck := healthcheck.NewAPICheck(market, 0)
	dbCheck := healthcheck.NewDatabaseCheck(db.BuildDSN(cfg.Database), nil, 0)

	graph, err := di.NewPipelineGraph(cfg, di.PipelineTasks{
		APICheck: apiCheck,
		DBCheck:  dbCheck,
		Runner:   pipeline,
		Verifier: di.VerifierFunc(func(ctx context.Context, symbols []string) error {
			_, err := verifier.Verify(ctx, symbols)
			return err
		}),
	})
	if err != nil {
		slog.Error("failed to build pipeline graph", "error", err)
		return 1
	}

	history := dag.NewHistory(historySize)
	newJob := func(kind string) scheduler.Job {
		return func(ctx context.Context) {
			runDAG(ctx, graph, history, kind)
		}
	}

	sched := scheduler.New(ctx)
	schedule, err = sched.Register(di.GraphName, cfg.Schedule, newJob("scheduled"))
	if err != nil {
		slog.Error("failed to register schedule", "error", err)
		return 1
	}
	sched.Start()
	if runNow {
		go sched.Trigger(di.GraphName, newJob("manual"))
	}

	// ステータスサーバー
	r := router.NewRouter(router.Handlers{
		Prices: handler.NewPricesHandler(usecase.NewPricesUsecase(repos.Prices)),
		Runs:   history,
		Readiness: map[string]httphandler.Checker{
			"api":      apiCheck,
			"database": dbCheck,
		},
		Limiter: middleware.NewRateLimiter(5, 10, 10*time.Minute),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	code := 0
	select {
	case <-ctx.Done():
		slog.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			slog.Error("status server failed", "error", err)
			code = 1
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("status server shutdown failed", "error", err)
	}
	sched.Stop(shutdownCtx)
	return code
}

// runDAG は1回分のDAG実行を行い、結果を履歴に記録します。
func runDAG(ctx context.Context, graph *dag.Graph, history *dag.History, kind string) {
	runID := kind + "__" + time.Now().UTC().Format(time.RFC3339)
	res, err := graph.Run(ctx, runID)
	if err != nil {
		slog.Error("dag run failed to start", "run_id", runID, "error", err)
		return
	}
	history.Record(res)
	slog.Info("dag run recorded", "run_id", runID, "state", res.State,
		"elapsed", res.FinishedAt.Sub(res.StartedAt))
}
