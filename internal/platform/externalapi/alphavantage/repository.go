package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
	"stock_pipeline/internal/platform/externalapi/alphavantage/dto"
)

// AlphaVantageMarket はAlpha Vantage外部APIから日次株価データを取得するMarketRepository実装です。
type AlphaVantageMarket struct {
	cfg    Config
	client *http.Client
}

// AlphaVantageMarketがMarketRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.MarketRepository = (*AlphaVantageMarket)(nil)

// NewAlphaVantageMarket は指定された設定とHTTPクライアントでAlphaVantageMarketの新しいインスタンスを生成します。
func NewAlphaVantageMarket(cfg Config, client *http.Client) *AlphaVantageMarket {
	return &AlphaVantageMarket{cfg: cfg, client: client}
}

// GetDailySeries は日次時系列を取得し、分類済みの結果を返します。
// エラーは返さず、すべて entity.Outcome として表現します。
func (a *AlphaVantageMarket) GetDailySeries(ctx context.Context, symbol string) entity.Outcome {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("apikey", a.cfg.APIKey)
	q.Set("datatype", "json")

	body, err := a.get(ctx, q)
	return Classify(body, err)
}

// Ping はAPIに到達できるかを確認します。
// 通信エラー、非2xx、"Error Message" の場合のみ失敗とし、レートリミット通知は成功として扱います。
func (a *AlphaVantageMarket) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_INTRADAY")
	q.Set("symbol", "AAPL")
	q.Set("interval", "1min")
	q.Set("apikey", a.cfg.APIKey)

	body, err := a.get(ctx, q)
	if err != nil {
		return err
	}
	if body.ErrorMessage != nil {
		return fmt.Errorf("%w: %s", ErrAPI, *body.ErrorMessage)
	}
	if body.Note != nil || body.Information != nil {
		slog.Warn("api connection test returned a rate limit notice")
	}
	return nil
}

func (a *AlphaVantageMarket) get(ctx context.Context, q url.Values) (*dto.DailyResponse, error) {
	u := fmt.Sprintf("%s?%s", a.cfg.BaseURL, q.Encode())

	// リクエストオブジェクトを作成
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, res.StatusCode)
	}

	// JSONレスポンスをDTOにデコード
	var body dto.DailyResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &body, nil
}
