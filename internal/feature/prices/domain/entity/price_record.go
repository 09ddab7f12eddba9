// Package entity defines the domain models for the prices feature.
package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one trading day of OHLCV data for a single symbol.
// (Symbol, Date) identifies a record; a later write for the same key replaces
// the price and volume fields.
type PriceRecord struct {
	Symbol string          // Stock ticker symbol (e.g., "AAPL")
	Date   time.Time       // Calendar date, midnight in the parsed location
	Open   decimal.Decimal // Opening price
	High   decimal.Decimal // Highest price of the day
	Low    decimal.Decimal // Lowest price of the day
	Close  decimal.Decimal // Closing price
	Volume int64           // Trading volume
}

// SymbolSummary is the per-symbol aggregate used to verify a run.
type SymbolSummary struct {
	Symbol      string
	RecordCount int64
	LatestDate  time.Time
}
