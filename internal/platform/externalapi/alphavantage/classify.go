package alphavantage

import (
	"errors"
	"maps"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/platform/externalapi/alphavantage/dto"
)

// Classify はAPI呼び出しの結果を entity.Outcome に変換します。
//
// 優先順位: Error Message > Note > Information > 時系列なし > 成功
func Classify(body *dto.DailyResponse, err error) entity.Outcome {
	if err != nil {
		if errors.Is(err, ErrDecode) {
			return entity.Malformed{Err: err}
		}
		return entity.TransportFailure{Err: err}
	}
	if body == nil {
		return entity.Malformed{}
	}

	switch {
	case body.ErrorMessage != nil:
		return entity.HardError{Message: *body.ErrorMessage}
	case body.Note != nil:
		return entity.SoftLimit{Kind: entity.LimitNote, Message: *body.Note}
	case body.Information != nil:
		return entity.SoftLimit{Kind: entity.LimitInformation, Message: *body.Information}
	case body.TimeSeries == nil:
		return entity.Malformed{Keys: body.Keys}
	}

	series := entity.DailySeries{
		Meta: maps.Clone(body.MetaData),
		Bars: make(map[string]entity.DailyBar, len(body.TimeSeries)),
	}
	for date, b := range body.TimeSeries {
		series.Bars[date] = entity.DailyBar{
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return entity.Success{Series: series}
}
