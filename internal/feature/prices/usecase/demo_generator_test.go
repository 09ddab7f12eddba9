package usecase

import (
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDemoGenerator_Generate_Shape(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 5, 15, 30, 0, 0, time.Local)
	g := NewDemoGeneratorWith(rand.NewPCG(1, 2), fixedClock(now))

	series := g.Generate("AAPL")

	require.Len(t, series.Bars, 7)
	for i := range 7 {
		d := now.AddDate(0, 0, -i).Format(entity.DateLayout)
		assert.Contains(t, series.Bars, d, "missing date %s", d)
	}
	assert.Equal(t, "AAPL", series.Meta["2. Symbol"])
	assert.Equal(t, "2024-03-05", series.Meta["3. Last Refreshed"])
	assert.Contains(t, series.Meta["1. Information"], "AAPL")
}

func TestDemoGenerator_Generate_Invariants(t *testing.T) {
	t.Parallel()

	symbols := []string{"AAPL", "GOOGL", "MSFT", "TSLA"}
	g := NewDemoGenerator()

	// Values are random, so check the structural invariants over many draws.
	for range 200 {
		for _, sym := range symbols {
			series := g.Generate(sym)
			require.Len(t, series.Bars, 7)

			for date, b := range series.Bars {
				open := decimal.RequireFromString(b.Open)
				high := decimal.RequireFromString(b.High)
				low := decimal.RequireFromString(b.Low)
				closePrice := decimal.RequireFromString(b.Close)

				assert.True(t, low.LessThanOrEqual(decimal.Min(open, closePrice)), "%s %s: low %s > min(open, close)", sym, date, low)
				assert.True(t, high.GreaterThanOrEqual(decimal.Max(open, closePrice)), "%s %s: high %s < max(open, close)", sym, date, high)
				assert.True(t, low.IsPositive(), "%s %s: low must be positive", sym, date)

				vol, err := strconv.Atoi(b.Volume)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, vol, 1_000_000)
				assert.LessOrEqual(t, vol, 10_000_000)
			}
		}
	}
}

func TestDemoGenerator_Generate_BasePrices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol string
		base   float64
	}{
		{"AAPL", 150.0},
		{"GOOGL", 2500.0},
		{"MSFT", 300.0},
		{"UNKNOWN", 100.0},
	}

	g := NewDemoGeneratorWith(rand.NewPCG(7, 7), time.Now)
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			// open stays within ±2% of the base price, before rounding
			lo := decimal.NewFromFloat(tt.base * 0.98).Sub(decimal.RequireFromString("0.01"))
			hi := decimal.NewFromFloat(tt.base * 1.02).Add(decimal.RequireFromString("0.01"))

			for _, b := range g.Generate(tt.symbol).Bars {
				open := decimal.RequireFromString(b.Open)
				assert.True(t, open.GreaterThanOrEqual(lo) && open.LessThanOrEqual(hi),
					"open %s outside [%s, %s]", open, lo, hi)
			}
		})
	}
}

func TestDemoGenerator_OutputIsParseable(t *testing.T) {
	t.Parallel()

	g := NewDemoGenerator()
	records, err := ParseDailySeries(g.Generate("GOOGL"), "GOOGL")
	require.NoError(t, err)
	assert.Len(t, records, 7)
}
