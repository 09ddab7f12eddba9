package di

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"stock_pipeline/internal/config"
	priceadapters "stock_pipeline/internal/feature/prices/adapters"
	"stock_pipeline/internal/feature/prices/usecase"
	"stock_pipeline/internal/platform/cache"
	"stock_pipeline/internal/shared/ratelimiter"
)

// Repositories groups the stores built on one database handle.
type Repositories struct {
	// Prices is the store the pipeline writes through; cached when Redis is available.
	Prices usecase.PriceRepository
	// Summary serves the verification query.
	Summary usecase.SummaryRepository
}

// NewRepositories builds the price stores. If rdb is nil, no cache is used.
// expiry, when set, caps cache TTLs (e.g. time until the next scheduled run).
func NewRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config, expiry func() time.Duration) Repositories {
	store := priceadapters.NewPriceRepository(db, cfg.Database.QueryTimeout)
	repos := Repositories{Prices: store, Summary: store}
	if rdb != nil {
		var opts []cache.CacheOption
		if expiry != nil {
			opts = append(opts, cache.WithExpiry(expiry))
		}
		repos.Prices = cache.NewCachingPriceRepository(rdb, cfg.CacheTTL, store, "prices", opts...)
	}
	return repos
}

// NewPipeline wires the fetch/parse/store runner.
func NewPipeline(cfg *config.Config, market usecase.MarketRepository, prices usecase.PriceRepository) *usecase.PipelineUsecase {
	var pacer ratelimiter.Pacer = ratelimiter.Noop{}
	if cfg.Pacing > 0 {
		pacer = ratelimiter.NewFixedDelay(cfg.Pacing)
	}
	return usecase.NewPipelineUsecase(
		market,
		prices,
		usecase.NewDemoGenerator(),
		pacer,
		usecase.WithRequireLive(cfg.RequireLive),
	)
}
