package di

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"stock_pipeline/internal/config"
	"stock_pipeline/internal/platform/dag"
)

// GraphName は株価パイプラインDAGの名前です。
const GraphName = "stock_data_pipeline"

const (
	TaskStart    = "start_pipeline"
	TaskCheckAPI = "check_api_connection"
	TaskCheckDB  = "check_database_connection"
	TaskVerify   = "verify_data_saved"
	TaskComplete = "pipeline_complete"
)

// FetchTaskID は銘柄の取得タスクIDを返します（例: fetch_aapl_data）。
func FetchTaskID(symbol string) string {
	return "fetch_" + strings.ToLower(symbol) + "_data"
}

// Checker は接続確認です。
type Checker interface {
	Check(ctx context.Context) error
}

// SymbolRunner は銘柄を処理し、成否を返します（*usecase.PipelineUsecase が満たします）。
type SymbolRunner interface {
	RunPipeline(ctx context.Context, symbols []string) bool
}

// Verifier は保存結果を確認します。
type Verifier interface {
	Verify(ctx context.Context, symbols []string) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, symbols []string) error

func (f VerifierFunc) Verify(ctx context.Context, symbols []string) error { return f(ctx, symbols) }

// PipelineTasks are the collaborators of the pipeline DAG.
type PipelineTasks struct {
	APICheck Checker
	DBCheck  Checker
	Runner   SymbolRunner
	Verifier Verifier
}

// NewPipelineGraph builds:
//
//	start_pipeline → {check_api_connection, check_database_connection}
//	  → fetch_<symbol>_data (each) → verify_data_saved → pipeline_complete
func NewPipelineGraph(cfg *config.Config, tasks PipelineTasks) (*dag.Graph, error) {
	g := dag.New(GraphName, dag.Options{
		Retries:     cfg.DAG.Retries,
		RetryDelay:  cfg.DAG.RetryDelay,
		MaxParallel: cfg.DAG.MaxParallel,
	})

	add := func(id string, fn dag.TaskFunc, opts ...dag.TaskOption) error {
		if err := g.Add(id, fn, opts...); err != nil {
			return fmt.Errorf("build %s: %w", GraphName, err)
		}
		return nil
	}

	if err := add(TaskStart, func(context.Context) error {
		slog.Info("stock data pipeline started", "symbols", cfg.Symbols)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := add(TaskCheckAPI, tasks.APICheck.Check, dag.After(TaskStart)); err != nil {
		return nil, err
	}
	if err := add(TaskCheckDB, tasks.DBCheck.Check, dag.After(TaskStart)); err != nil {
		return nil, err
	}

	// 取得タスクは max_parallel に関係なく1銘柄ずつ実行する（APIのレート制限のため）
	var fetchMu sync.Mutex
	fetchIDs := make([]string, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		id := FetchTaskID(sym)
		fetchIDs = append(fetchIDs, id)
		if err := add(id, func(ctx context.Context) error {
			fetchMu.Lock()
			defer fetchMu.Unlock()
			if !tasks.Runner.RunPipeline(ctx, []string{sym}) {
				return fmt.Errorf("pipeline failed for %s", sym)
			}
			return nil
		}, dag.After(TaskCheckAPI, TaskCheckDB)); err != nil {
			return nil, err
		}
	}

	if err := add(TaskVerify, func(ctx context.Context) error {
		return tasks.Verifier.Verify(ctx, cfg.Symbols)
	}, dag.After(fetchIDs...)); err != nil {
		return nil, err
	}
	if err := add(TaskComplete, func(context.Context) error {
		slog.Info("stock data pipeline complete")
		return nil
	}, dag.After(TaskVerify)); err != nil {
		return nil, err
	}

	if _, err := g.Layers(); err != nil {
		return nil, err
	}
	return g, nil
}
