// Package usecase は株価データの取得・変換・保存のビジネスロジックを実装します。
package usecase

import (
	"context"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

const (
	// DefaultLimit は株価クエリのデフォルト返却件数です。
	DefaultLimit = MaxRecordsPerSymbol
	// MaxLimit は株価クエリの最大返却件数です。
	MaxLimit = 500
)

// PriceRepository は株価データの永続化レイヤーを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type PriceRepository interface {
	// UpsertBatch はレコードを1トランザクションで挿入または更新します。
	UpsertBatch(ctx context.Context, records []entity.PriceRecord) error
	// Find は指定銘柄のレコードを日付の新しい順に返します。
	Find(ctx context.Context, symbol string, limit int) ([]entity.PriceRecord, error)
}

// pricesUsecase は保存済み株価データの読み取りユースケースを定義します。
type pricesUsecase struct {
	prices PriceRepository
}

// NewPricesUsecase は pricesUsecase の新しいインスタンスを生成します。
func NewPricesUsecase(prices PriceRepository) *pricesUsecase {
	return &pricesUsecase{prices: prices}
}

// GetPrices は指定された銘柄の株価データを取得します。
func (pu *pricesUsecase) GetPrices(ctx context.Context, symbol string, limit int) ([]entity.PriceRecord, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return pu.prices.Find(ctx, symbol, limit)
}
