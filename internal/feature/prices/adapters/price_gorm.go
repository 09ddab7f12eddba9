// Package adapters provides the gorm-backed persistence for the prices feature.
package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
)

const defaultQueryTimeout = 10 * time.Second

type priceGorm struct {
	db      *gorm.DB
	timeout time.Duration
}

var _ usecase.PriceRepository = (*priceGorm)(nil)

// NewPriceRepository returns a repository on the stock_prices table.
// timeout bounds every database call; zero means 10s.
func NewPriceRepository(db *gorm.DB, timeout time.Duration) *priceGorm {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &priceGorm{db: db, timeout: timeout}
}

// PriceModel は stock_prices テーブルの行です。
// 外部でDDLを管理する場合も、upsert が書き込む updated_at 列が必要です。
type PriceModel struct {
	ID     uint            `gorm:"primaryKey"`
	Symbol string          `gorm:"size:16;not null;uniqueIndex:stock_prices_symbol_date,priority:1"`
	Date   time.Time       `gorm:"type:date;not null;uniqueIndex:stock_prices_symbol_date,priority:2"`
	Open   decimal.Decimal `gorm:"column:open_price;type:numeric(18,4);not null"`
	High   decimal.Decimal `gorm:"column:high_price;type:numeric(18,4);not null"`
	Low    decimal.Decimal `gorm:"column:low_price;type:numeric(18,4);not null"`
	Close  decimal.Decimal `gorm:"column:close_price;type:numeric(18,4);not null"`
	Volume int64           `gorm:"type:bigint;not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PriceModel) TableName() string {
	return "stock_prices"
}

func toModel(e entity.PriceRecord) PriceModel {
	return PriceModel{
		Symbol: e.Symbol,
		Date:   e.Date,
		Open:   e.Open,
		High:   e.High,
		Low:    e.Low,
		Close:  e.Close,
		Volume: e.Volume,
	}
}

func toEntity(m PriceModel) entity.PriceRecord {
	return entity.PriceRecord{
		Symbol: m.Symbol,
		Date:   m.Date,
		Open:   m.Open,
		High:   m.High,
		Low:    m.Low,
		Close:  m.Close,
		Volume: m.Volume,
	}
}

// UpsertBatch writes all records in one transaction on a dedicated connection.
// Existing (symbol, date) rows get their prices, volume and updated_at
// overwritten; created_at is left as is. Any error rolls the whole batch back.
func (r *priceGorm) UpsertBatch(ctx context.Context, records []entity.PriceRecord) error {
	if len(records) == 0 {
		slog.Warn("no records to save")
		return usecase.ErrNoRecords
	}
	ms := make([]PriceModel, 0, len(records))
	for _, e := range records {
		ms = append(ms, toModel(e))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Connection acquires one connection from the pool and returns it on every exit path.
	err := r.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		return conn.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"open_price", "high_price", "low_price", "close_price", "volume", "updated_at",
				}),
			}).Create(&ms).Error
		})
	})
	if err != nil {
		return fmt.Errorf("upsert %d records for %s: %w", len(records), records[0].Symbol, err)
	}
	slog.Info("saved records to database", "symbol", records[0].Symbol, "records", len(records))
	return nil
}

// Find returns up to limit records for symbol, newest first. limit <= 0 returns all.
func (r *priceGorm) Find(ctx context.Context, symbol string, limit int) ([]entity.PriceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []PriceModel
	q := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.PriceRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, toEntity(m))
	}
	return out, nil
}

// RecentSummary reports, per symbol, how many rows exist on or after since and
// the latest date among them.
func (r *priceGorm) RecentSummary(ctx context.Context, since time.Time) ([]entity.SymbolSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []struct {
		Symbol      string
		RecordCount int64
	}
	err := r.db.WithContext(ctx).Model(&PriceModel{}).
		Select("symbol, COUNT(*) AS record_count").
		Where("date >= ?", since).
		Group("symbol").
		Order("symbol").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]entity.SymbolSummary, 0, len(rows))
	for _, row := range rows {
		// MAX(date) comes back as text on some drivers, so read the newest row instead.
		var latest PriceModel
		if err := r.db.WithContext(ctx).
			Where("symbol = ? AND date >= ?", row.Symbol, since).
			Order("date DESC").
			Limit(1).
			Find(&latest).Error; err != nil {
			return nil, err
		}
		out = append(out, entity.SymbolSummary{
			Symbol:      row.Symbol,
			RecordCount: row.RecordCount,
			LatestDate:  latest.Date,
		})
	}
	return out, nil
}

// Count returns the number of rows in stock_prices.
func (r *priceGorm) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int64
	err := r.db.WithContext(ctx).Model(&PriceModel{}).Count(&n).Error
	return n, err
}
