package usecase

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

// MaxRecordsPerSymbol は1回の実行で銘柄ごとに保存する最大件数です。
const MaxRecordsPerSymbol = 7

// ParseDailySeries は日次時系列を PriceRecord のスライスに変換します。
// 日付の新しい順に並べ、直近 MaxRecordsPerSymbol 件に切り詰めます。
// どこか1件でも変換に失敗した場合はバッチ全体を破棄し、ErrParse をラップしたエラーを返します。
func ParseDailySeries(series entity.DailySeries, symbol string) ([]entity.PriceRecord, error) {
	dates := make([]string, 0, len(series.Bars))
	for d := range series.Bars {
		dates = append(dates, d)
	}
	// ISO形式の日付は辞書順と時系列順が一致する
	slices.Sort(dates)
	slices.Reverse(dates)
	if len(dates) > MaxRecordsPerSymbol {
		dates = dates[:MaxRecordsPerSymbol]
	}

	records := make([]entity.PriceRecord, 0, len(dates))
	for _, d := range dates {
		rec, err := parseBar(symbol, d, series.Bars[d])
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrParse, symbol, d, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseBar(symbol, date string, bar entity.DailyBar) (entity.PriceRecord, error) {
	day, err := time.Parse(entity.DateLayout, date)
	if err != nil {
		return entity.PriceRecord{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	// 始値をパース
	o, err := decimal.NewFromString(bar.Open)
	if err != nil {
		return entity.PriceRecord{}, fmt.Errorf("parse open %q: %w", bar.Open, err)
	}
	// 高値をパース
	h, err := decimal.NewFromString(bar.High)
	if err != nil {
		return entity.PriceRecord{}, fmt.Errorf("parse high %q: %w", bar.High, err)
	}
	// 安値をパース
	l, err := decimal.NewFromString(bar.Low)
	if err != nil {
		return entity.PriceRecord{}, fmt.Errorf("parse low %q: %w", bar.Low, err)
	}
	// 終値をパース
	c, err := decimal.NewFromString(bar.Close)
	if err != nil {
		return entity.PriceRecord{}, fmt.Errorf("parse close %q: %w", bar.Close, err)
	}
	// 出来高をパース
	vol, err := strconv.ParseInt(bar.Volume, 10, 64)
	if err != nil {
		return entity.PriceRecord{}, fmt.Errorf("parse volume %q: %w", bar.Volume, err)
	}
	if vol < 0 {
		return entity.PriceRecord{}, fmt.Errorf("parse volume %q: negative", bar.Volume)
	}

	return entity.PriceRecord{
		Symbol: symbol,
		Date:   day,
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: vol,
	}, nil
}
