package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/shared/ratelimiter"
)

// Stage は銘柄ごとの処理段階です。
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageFetchedOK   Stage = "fetched_ok"
	StageFetchFailed Stage = "fetch_failed"
	StageParsedOK    Stage = "parsed_ok"
	StageParseFailed Stage = "parse_failed"
	StageStoredOK    Stage = "stored_ok"
	StageStoreFailed Stage = "store_failed"
)

// Source は保存したデータの出所です。
type Source string

const (
	SourceLive Source = "live"
	SourceDemo Source = "demo"
)

// MarketRepository は外部APIから日次時系列を取得し、分類済みの結果を返します。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type MarketRepository interface {
	GetDailySeries(ctx context.Context, symbol string) entity.Outcome
}

// SeriesGenerator はライブデータが使えないときの代替データを生成します。
type SeriesGenerator interface {
	Generate(symbol string) entity.DailySeries
}

// SymbolResult は1銘柄の処理結果です。
type SymbolResult struct {
	Symbol   string
	Stage    Stage
	Source   Source
	Category string // 取得結果の分類（entity.Category）
	Records  int
	Err      error
}

// OK は銘柄が保存まで完了したかを返します。
func (r SymbolResult) OK() bool {
	return r.Stage == StageStoredOK
}

// RunReport は1回のパイプライン実行の集計です。
type RunReport struct {
	Requested   int
	Results     []SymbolResult
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool
}

// Success は要求された全銘柄が保存まで完了した場合に true を返します。
func (r RunReport) Success() bool {
	if len(r.Results) != r.Requested {
		return false
	}
	for _, res := range r.Results {
		if !res.OK() {
			return false
		}
	}
	return true
}

// LiveDataDelivered は保存された全銘柄がライブAPIのデータだった場合に true を返します。
// デモデータで代替した銘柄があれば false です。
func (r RunReport) LiveDataDelivered() bool {
	for _, res := range r.Results {
		if res.OK() && res.Source != SourceLive {
			return false
		}
	}
	return true
}

// Failed は失敗した銘柄の一覧を返します。
func (r RunReport) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res.Symbol)
		}
	}
	return out
}

// Option は PipelineUsecase の設定を変更します。
type Option func(*PipelineUsecase)

// WithRequireLive を true にすると、デモデータで代替した実行を RunPipeline が失敗として扱います。
func WithRequireLive(requireLive bool) Option {
	return func(pu *PipelineUsecase) { pu.requireLive = requireLive }
}

// WithClock は実行時刻の取得関数を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(pu *PipelineUsecase) { pu.now = now }
}

// PipelineUsecase は外部APIからデータを取得し、変換してデータベースに永続化するユースケースです。
type PipelineUsecase struct {
	market      MarketRepository
	prices      PriceRepository
	generator   SeriesGenerator
	pacer       ratelimiter.Pacer
	requireLive bool
	now         func() time.Time
}

// NewPipelineUsecase は新しい PipelineUsecase を作成します。
func NewPipelineUsecase(market MarketRepository, prices PriceRepository, generator SeriesGenerator, pacer ratelimiter.Pacer, opts ...Option) *PipelineUsecase {
	pu := &PipelineUsecase{
		market:    market,
		prices:    prices,
		generator: generator,
		pacer:     pacer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(pu)
	}
	return pu
}

// RunPipeline は指定された全銘柄を処理し、全体の成否を返します。
// オーケストレーション層が呼び出す唯一のエントリポイントです。
func (pu *PipelineUsecase) RunPipeline(ctx context.Context, symbols []string) bool {
	report := pu.Run(ctx, symbols)
	if pu.requireLive && !report.LiveDataDelivered() {
		slog.Warn("demo data was substituted while live data is required", "symbols", symbols)
		return false
	}
	return report.Success()
}

// Run は銘柄を1つずつ順番に処理します。1銘柄の失敗で処理を止めず、次の銘柄へ進みます。
// 保存まで成功した銘柄の後だけ、APIのレートリミットを考慮して待機します。
func (pu *PipelineUsecase) Run(ctx context.Context, symbols []string) RunReport {
	report := RunReport{Requested: len(symbols), StartedAt: pu.now()}
	slog.Info("starting stock data pipeline", "symbols", symbols)

	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			slog.Warn("pipeline interrupted", "next_symbol", s, "error", err)
			report.Interrupted = true
			break
		}

		res := pu.processSymbol(ctx, s)
		report.Results = append(report.Results, res)
		if !res.OK() {
			// 失敗した銘柄の後は待機しない
			continue
		}

		if err := pu.pacer.Pause(ctx); err != nil {
			slog.Warn("pipeline interrupted while pacing", "symbol", s, "error", err)
			report.Interrupted = true
			break
		}
	}

	report.FinishedAt = pu.now()
	logSummary(report)
	return report
}

// processSymbol は1銘柄を fetching → parsed → stored の順に処理します。
func (pu *PipelineUsecase) processSymbol(ctx context.Context, symbol string) SymbolResult {
	res := SymbolResult{Symbol: symbol, Stage: StageFetching}
	slog.Info("processing symbol", "symbol", symbol)

	series, source, category, err := pu.fetch(ctx, symbol)
	res.Source = source
	res.Category = category
	if err != nil {
		res.Stage, res.Err = StageFetchFailed, err
		slog.Error("failed to fetch data", "symbol", symbol, "stage", res.Stage, "error", err)
		return res
	}
	res.Stage = StageFetchedOK

	records, err := ParseDailySeries(series, symbol)
	if err == nil && len(records) == 0 {
		err = fmt.Errorf("%s: %w", symbol, ErrNoRecords)
	}
	if err != nil {
		res.Stage, res.Err = StageParseFailed, err
		slog.Error("failed to parse data", "symbol", symbol, "stage", res.Stage, "error", err)
		return res
	}
	res.Stage = StageParsedOK
	res.Records = len(records)
	slog.Info("parsed records", "symbol", symbol, "records", len(records))

	if err := pu.prices.UpsertBatch(ctx, records); err != nil {
		res.Stage, res.Err = StageStoreFailed, err
		slog.Error("failed to save data", "symbol", symbol, "stage", res.Stage, "records", len(records), "error", err)
		return res
	}
	res.Stage = StageStoredOK
	slog.Info("successfully processed symbol", "symbol", symbol, "records", len(records), "source", source)
	return res
}

// fetch はAPIから取得した結果を分類し、使えない場合はデモデータで代替します。
// コンテキストがキャンセルされた場合のみエラーを返します。
func (pu *PipelineUsecase) fetch(ctx context.Context, symbol string) (entity.DailySeries, Source, string, error) {
	outcome := pu.market.GetDailySeries(ctx, symbol)
	category := entity.Category(outcome)
	msg := entity.Message(outcome)

	switch o := outcome.(type) {
	case entity.Success:
		slog.Info("fetched live data", "symbol", symbol, "category", category, "bars", len(o.Series.Bars))
		return o.Series, SourceLive, category, nil
	case entity.TransportFailure:
		// 中断時はデモデータを生成せずに失敗とする
		if errors.Is(o.Err, context.Canceled) || ctx.Err() != nil {
			return entity.DailySeries{}, "", category, fmt.Errorf("fetch %s: %w", symbol, o.Err)
		}
		slog.Error("network error while fetching data", "symbol", symbol, "category", category, "message", msg)
	case entity.HardError:
		slog.Error("api error", "symbol", symbol, "category", category, "message", msg)
	case entity.SoftLimit:
		slog.Warn("api rate limit", "symbol", symbol, "category", category, "message", msg)
	case entity.Malformed:
		slog.Error("unexpected api response format", "symbol", symbol, "category", category, "keys", o.Keys, "message", msg)
	default:
		slog.Error("unclassified api response", "symbol", symbol, "category", category)
	}

	slog.Info("using demo data instead", "symbol", symbol)
	return pu.generator.Generate(symbol), SourceDemo, category, nil
}

func logSummary(report RunReport) {
	for _, res := range report.Results {
		attrs := []any{"symbol", res.Symbol, "stage", res.Stage, "source", res.Source, "category", res.Category, "records", res.Records}
		if res.Err != nil {
			attrs = append(attrs, "error", res.Err)
		}
		slog.Info("symbol trace", attrs...)
	}

	elapsed := report.FinishedAt.Sub(report.StartedAt)
	if report.Success() {
		slog.Info("pipeline completed successfully for all symbols",
			"symbols", len(report.Results), "live", report.LiveDataDelivered(), "elapsed", elapsed)
		return
	}
	slog.Warn("pipeline completed with some errors",
		"requested", report.Requested, "processed", len(report.Results), "failed", report.Failed(),
		"interrupted", report.Interrupted, "elapsed", elapsed)
}
