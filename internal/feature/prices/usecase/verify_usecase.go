package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

// VerifyDays は保存確認で参照する日数です。
const VerifyDays = 7

// SummaryRepository は銘柄ごとの保存状況を集計します。
type SummaryRepository interface {
	RecentSummary(ctx context.Context, since time.Time) ([]entity.SymbolSummary, error)
}

// VerifyUsecase は直近のデータが保存されているかを確認します。
type VerifyUsecase struct {
	repo SummaryRepository
	now  func() time.Time
}

// NewVerifyUsecase は VerifyUsecase を作成します。now が nil の場合は time.Now を使います。
func NewVerifyUsecase(repo SummaryRepository, now func() time.Time) *VerifyUsecase {
	if now == nil {
		now = time.Now
	}
	return &VerifyUsecase{repo: repo, now: now}
}

// Verify は直近7日間の銘柄ごとの件数と最新日付をログに出力して返します。
// expected に含まれるのに記録がない銘柄は警告として扱い、エラーにはしません。
func (v *VerifyUsecase) Verify(ctx context.Context, expected []string) ([]entity.SymbolSummary, error) {
	// 日付はデモデータと同じくローカルの暦日で数え、パーサと同じUTC 0時で表す
	y, m, d := v.now().Date()
	since := time.Date(y, m, d-VerifyDays, 0, 0, 0, 0, time.UTC)

	summary, err := v.repo.RecentSummary(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("recent summary: %w", err)
	}

	slog.Info("recent stock data summary", "since", since.Format(entity.DateLayout), "symbols", len(summary))
	seen := make([]string, 0, len(summary))
	for _, s := range summary {
		slog.Info("stored records", "symbol", s.Symbol, "records", s.RecordCount, "latest", s.LatestDate.Format(entity.DateLayout))
		seen = append(seen, s.Symbol)
	}
	for _, sym := range expected {
		if !slices.Contains(seen, sym) {
			slog.Warn("no recent records", "symbol", sym, "since", since.Format(entity.DateLayout))
		}
	}
	slog.Info("data verification complete")
	return summary, nil
}
