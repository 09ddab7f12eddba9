package router

import (
	"github.com/gin-gonic/gin"

	priceshandler "stock_pipeline/internal/feature/prices/transport/handler"
	"stock_pipeline/internal/platform/http/handler"
	"stock_pipeline/internal/platform/http/middleware"
)

// Handlers are the endpoints served by the status server.
type Handlers struct {
	Prices    *priceshandler.PricesHandler
	Runs      handler.RunHistory
	Readiness map[string]handler.Checker
	Limiter   *middleware.RateLimiter
}

func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	// 依存先（API・DB）の確認
	r.GET("/readyz", handler.Readiness(0, h.Readiness))

	api := r.Group("/")
	if h.Limiter != nil {
		api.Use(h.Limiter.Handler())
	}
	{
		api.GET("/prices/:symbol", h.Prices.GetPrices)
		api.GET("/runs/latest", handler.LatestRun(h.Runs))
	}

	return r
}
