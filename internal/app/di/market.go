// Package di provides dependency injection factories for creating application components.
package di

import (
	"stock_pipeline/internal/platform/externalapi/alphavantage"
	infrahttp "stock_pipeline/internal/platform/http"
)

// NewMarket creates a fully configured AlphaVantageMarket with HTTP client.
func NewMarket(cfg alphavantage.Config) *alphavantage.AlphaVantageMarket {
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	return alphavantage.NewAlphaVantageMarket(cfg, httpClient)
}
