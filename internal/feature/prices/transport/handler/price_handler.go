// Package handler はpricesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/transport/http/dto"
)

// PricesUsecase は保存済み株価の参照ユースケースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type PricesUsecase interface {
	GetPrices(ctx context.Context, symbol string, limit int) ([]entity.PriceRecord, error)
}

// PricesHandler は株価データのHTTPリクエストを処理します。
type PricesHandler struct {
	uc PricesUsecase
}

// NewPricesHandler は指定されたusecaseでPricesHandlerの新しいインスタンスを生成します。
func NewPricesHandler(uc PricesUsecase) *PricesHandler {
	return &PricesHandler{uc: uc}
}

// GetPrices は銘柄コードを受け取り、新しい日付順の株価をJSONで返します。
//
// エンドポイント例:
// GET /prices/:symbol?limit=7
func (h *PricesHandler) GetPrices(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "symbol is required"})
		return
	}

	// limit の上限・デフォルトはusecaseで補正する
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "limit must be an integer"})
			return
		}
		limit = n
	}

	records, err := h.uc.GetPrices(c.Request.Context(), symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	out := dto.PricesResponse{Symbol: symbol, Prices: make([]dto.PriceResponse, 0, len(records))}
	for _, r := range records {
		out.Prices = append(out.Prices, dto.PriceResponse{
			Date:   r.Date.UTC().Format(entity.DateLayout),
			Open:   r.Open.String(),
			High:   r.High.String(),
			Low:    r.Low.String(),
			Close:  r.Close.String(),
			Volume: r.Volume,
		})
	}

	c.JSON(http.StatusOK, out)
}
