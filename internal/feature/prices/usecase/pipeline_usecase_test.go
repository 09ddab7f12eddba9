package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

var ErrDB = errors.New("database error")

// mockMarketRepository is a mock implementation of the MarketRepository interface.
type mockMarketRepository struct {
	GetDailySeriesFunc func(ctx context.Context, symbol string) entity.Outcome
	Calls              []string
}

func (m *mockMarketRepository) GetDailySeries(ctx context.Context, symbol string) entity.Outcome {
	m.Calls = append(m.Calls, symbol)
	if m.GetDailySeriesFunc != nil {
		return m.GetDailySeriesFunc(ctx, symbol)
	}
	return entity.TransportFailure{Err: errors.New("GetDailySeriesFunc is not implemented")}
}

// mockPriceRepository is a mock implementation of the PriceRepository interface.
type mockPriceRepository struct {
	UpsertBatchFunc func(ctx context.Context, records []entity.PriceRecord) error
	FindFunc        func(ctx context.Context, symbol string, limit int) ([]entity.PriceRecord, error)
	Committed       map[string][]entity.PriceRecord
}

func (m *mockPriceRepository) UpsertBatch(ctx context.Context, records []entity.PriceRecord) error {
	if m.UpsertBatchFunc != nil {
		if err := m.UpsertBatchFunc(ctx, records); err != nil {
			return err
		}
	}
	if m.Committed == nil {
		m.Committed = map[string][]entity.PriceRecord{}
	}
	if len(records) > 0 {
		m.Committed[records[0].Symbol] = records
	}
	return nil
}

func (m *mockPriceRepository) Find(ctx context.Context, symbol string, limit int) ([]entity.PriceRecord, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, symbol, limit)
	}
	return nil, nil
}

// mockPacer is a mock implementation of ratelimiter.Pacer.
type mockPacer struct {
	PauseCalls int
	Err        error
}

func (m *mockPacer) Pause(ctx context.Context) error {
	m.PauseCalls++
	// For testing purposes, return immediately without waiting
	return m.Err
}

// countingGenerator wraps DemoGenerator and records calls.
type countingGenerator struct {
	inner *DemoGenerator
	Calls []string
}

func (g *countingGenerator) Generate(symbol string) entity.DailySeries {
	g.Calls = append(g.Calls, symbol)
	return g.inner.Generate(symbol)
}

func newCountingGenerator() *countingGenerator {
	return &countingGenerator{inner: NewDemoGeneratorWith(rand.NewPCG(42, 42), time.Now)}
}

func liveSeries(symbol string) entity.Outcome {
	return entity.Success{Series: entity.DailySeries{
		Meta: map[string]string{"2. Symbol": symbol},
		Bars: map[string]entity.DailyBar{
			"2024-01-03": {Open: "10.00", High: "11.00", Low: "9.50", Close: "10.50", Volume: "1200"},
			"2024-01-02": {Open: "9.80", High: "10.20", Low: "9.70", Close: "10.00", Volume: "1100"},
		},
	}}
}

func timeoutError() error {
	return &url.Error{Op: "Get", URL: "https://www.alphavantage.co/query", Err: &net.DNSError{Err: "i/o timeout", IsTimeout: true}}
}

func TestPipelineUsecase_Run_FallbackScenarios(t *testing.T) {
	testCases := []struct {
		name     string
		symbol   string
		outcome  entity.Outcome
		category string
	}{
		{
			name:     "information rate limit uses demo data",
			symbol:   "AAPL",
			outcome:  entity.SoftLimit{Kind: entity.LimitInformation, Message: "rate limit"},
			category: "soft_limit_information",
		},
		{
			name:     "timeout uses demo data",
			symbol:   "MSFT",
			outcome:  entity.TransportFailure{Err: timeoutError()},
			category: "transport_failure",
		},
		{
			name:     "note rate limit uses demo data",
			symbol:   "GOOGL",
			outcome:  entity.SoftLimit{Kind: entity.LimitNote, Message: "5 calls per minute"},
			category: "soft_limit_note",
		},
		{
			name:     "hard error uses demo data",
			symbol:   "AAPL",
			outcome:  entity.HardError{Message: "Invalid API call"},
			category: "hard_error",
		},
		{
			name:     "missing time series uses demo data",
			symbol:   "AAPL",
			outcome:  entity.Malformed{Keys: []string{"Meta Data"}},
			category: "malformed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			market := &mockMarketRepository{
				GetDailySeriesFunc: func(ctx context.Context, symbol string) entity.Outcome { return tc.outcome },
			}
			prices := &mockPriceRepository{}
			gen := newCountingGenerator()
			pacer := &mockPacer{}

			uc := NewPipelineUsecase(market, prices, gen, pacer)
			report := uc.Run(context.Background(), []string{tc.symbol})

			require.Len(t, report.Results, 1)
			res := report.Results[0]
			assert.True(t, report.Success())
			assert.False(t, report.LiveDataDelivered())
			assert.Equal(t, StageStoredOK, res.Stage)
			assert.Equal(t, SourceDemo, res.Source)
			assert.Equal(t, tc.category, res.Category)
			assert.Equal(t, 7, res.Records)
			assert.Equal(t, []string{tc.symbol}, gen.Calls)
			assert.Len(t, prices.Committed[tc.symbol], 7)
			assert.Equal(t, 1, pacer.PauseCalls)
		})
	}
}

func TestPipelineUsecase_Run_LiveData(t *testing.T) {
	market := &mockMarketRepository{
		GetDailySeriesFunc: func(ctx context.Context, symbol string) entity.Outcome { return liveSeries(symbol) },
	}
	prices := &mockPriceRepository{}
	gen := newCountingGenerator()

	uc := NewPipelineUsecase(market, prices, gen, &mockPacer{})
	report := uc.Run(context.Background(), []string{"AAPL", "MSFT"})

	assert.True(t, report.Success())
	assert.True(t, report.LiveDataDelivered())
	assert.Empty(t, gen.Calls, "generator must not be used for live data")
	assert.Equal(t, []string{"AAPL", "MSFT"}, market.Calls)
	for _, res := range report.Results {
		assert.Equal(t, SourceLive, res.Source)
		assert.Equal(t, "success", res.Category)
		assert.Equal(t, 2, res.Records)
	}
	assert.Equal(t, "MSFT", prices.Committed["MSFT"][0].Symbol)
}

func TestPipelineUsecase_Run_FailureIsolation(t *testing.T) {
	market := &mockMarketRepository{
		GetDailySeriesFunc: func(ctx context.Context, symbol string) entity.Outcome { return liveSeries(symbol) },
	}
	prices := &mockPriceRepository{
		UpsertBatchFunc: func(ctx context.Context, records []entity.PriceRecord) error {
			if records[0].Symbol == "GOOGL" {
				return ErrDB
			}
			return nil
		},
	}
	pacer := &mockPacer{}

	uc := NewPipelineUsecase(market, prices, newCountingGenerator(), pacer)
	report := uc.Run(context.Background(), []string{"AAPL", "GOOGL", "MSFT"})

	assert.False(t, report.Success())
	assert.Equal(t, []string{"GOOGL"}, report.Failed())
	require.Len(t, report.Results, 3)
	assert.Equal(t, StageStoredOK, report.Results[0].Stage)
	assert.Equal(t, StageStoreFailed, report.Results[1].Stage)
	assert.ErrorIs(t, report.Results[1].Err, ErrDB)
	assert.Equal(t, StageStoredOK, report.Results[2].Stage)

	assert.Contains(t, prices.Committed, "AAPL")
	assert.Contains(t, prices.Committed, "MSFT")
	assert.NotContains(t, prices.Committed, "GOOGL")

	// no pause after the failed symbol
	assert.Equal(t, 2, pacer.PauseCalls)
}

func TestPipelineUsecase_Run_ParseFailure(t *testing.T) {
	testCases := []struct {
		name    string
		outcome entity.Outcome
		wantErr error
	}{
		{
			name: "malformed field value",
			outcome: entity.Success{Series: entity.DailySeries{Bars: map[string]entity.DailyBar{
				"2024-01-03": {Open: "10.00", High: "11.00", Low: "9.50", Close: "10.50", Volume: "n/a"},
			}}},
			wantErr: ErrParse,
		},
		{
			name:    "empty time series",
			outcome: entity.Success{Series: entity.DailySeries{Bars: map[string]entity.DailyBar{}}},
			wantErr: ErrNoRecords,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			market := &mockMarketRepository{
				GetDailySeriesFunc: func(ctx context.Context, symbol string) entity.Outcome { return tc.outcome },
			}
			prices := &mockPriceRepository{
				UpsertBatchFunc: func(ctx context.Context, records []entity.PriceRecord) error {
					t.Error("UpsertBatch should not be called")
					return nil
				},
			}
			pacer := &mockPacer{}

			uc := NewPipelineUsecase(market, prices, newCountingGenerator(), pacer)
			report := uc.Run(context.Background(), []string{"AAPL"})

			assert.False(t, report.Success())
			require.Len(t, report.Results, 1)
			assert.Equal(t, StageParseFailed, report.Results[0].Stage)
			assert.ErrorIs(t, report.Results[0].Err, tc.wantErr)
			assert.Equal(t, 0, pacer.PauseCalls)
		})
	}
}

func TestPipelineUsecase_Run_CancelledBeforeStart(t *testing.T) {
	market := &mockMarketRepository{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := NewPipelineUsecase(market, &mockPriceRepository{}, newCountingGenerator(), &mockPacer{})
	report := uc.Run(ctx, []string{"AAPL", "MSFT"})

	assert.True(t, report.Interrupted)
	assert.False(t, report.Success())
	assert.Empty(t, market.Calls)
	assert.Empty(t, report.Results)
}

func TestPipelineUsecase_Run_CancelledDuringFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	market := &mockMarketRepository{
		GetDailySeriesFunc: func(_ context.Context, symbol string) entity.Outcome {
			cancel()
			return entity.TransportFailure{Err: fmt.Errorf("get: %w", context.Canceled)}
		},
	}
	gen := newCountingGenerator()

	uc := NewPipelineUsecase(market, &mockPriceRepository{}, gen, &mockPacer{})
	report := uc.Run(ctx, []string{"AAPL", "MSFT"})

	assert.True(t, report.Interrupted)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StageFetchFailed, report.Results[0].Stage)
	assert.ErrorIs(t, report.Results[0].Err, context.Canceled)
	assert.Empty(t, gen.Calls, "demo data must not be generated when interrupted")
}

func TestPipelineUsecase_Run_PacerInterrupted(t *testing.T) {
	market := &mockMarketRepository{
		GetDailySeriesFunc: func(ctx context.Context, symbol string) entity.Outcome { return liveSeries(symbol) },
	}
	pacer := &mockPacer{Err: context.Canceled}

	uc := NewPipelineUsecase(market, &mockPriceRepository{}, newCountingGenerator(), pacer)
	report := uc.Run(context.Background(), []string{"AAPL", "MSFT"})

	assert.True(t, report.Interrupted)
	assert.False(t, report.Success())
	assert.Equal(t, []string{"AAPL"}, market.Calls)
}

func TestPipelineUsecase_Run_EmptySymbols(t *testing.T) {
	market := &mockMarketRepository{}

	uc := NewPipelineUsecase(market, &mockPriceRepository{}, newCountingGenerator(), &mockPacer{})
	report := uc.Run(context.Background(), []string{})

	assert.True(t, report.Success())
	assert.Empty(t, market.Calls)
}

func TestPipelineUsecase_RunPipeline(t *testing.T) {
	demo := func(ctx context.Context, symbol string) entity.Outcome {
		return entity.SoftLimit{Kind: entity.LimitInformation, Message: "rate limit"}
	}
	live := func(ctx context.Context, symbol string) entity.Outcome { return liveSeries(symbol) }

	testCases := []struct {
		name        string
		market      func(ctx context.Context, symbol string) entity.Outcome
		requireLive bool
		upsertErr   error
		want        bool
	}{
		{"live data succeeds", live, false, nil, true},
		{"demo data succeeds by default", demo, false, nil, true},
		{"demo data fails when live data is required", demo, true, nil, false},
		{"live data succeeds when live data is required", live, true, nil, true},
		{"store failure fails the run", live, false, ErrDB, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			market := &mockMarketRepository{GetDailySeriesFunc: tc.market}
			prices := &mockPriceRepository{
				UpsertBatchFunc: func(ctx context.Context, records []entity.PriceRecord) error { return tc.upsertErr },
			}

			uc := NewPipelineUsecase(market, prices, newCountingGenerator(), &mockPacer{}, WithRequireLive(tc.requireLive))
			got := uc.RunPipeline(context.Background(), []string{"AAPL", "GOOGL", "MSFT"})

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPipelineUsecase_Run_Timestamps(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return start.Add(time.Duration(calls) * time.Second)
	}

	uc := NewPipelineUsecase(&mockMarketRepository{}, &mockPriceRepository{}, newCountingGenerator(), &mockPacer{}, WithClock(clock))
	report := uc.Run(context.Background(), nil)

	assert.Equal(t, start.Add(time.Second), report.StartedAt)
	assert.Equal(t, start.Add(2*time.Second), report.FinishedAt)
}
