package dto

// PriceResponse は日次株価のレスポンスDTOです。価格は精度を保つため文字列で返します。
type PriceResponse struct {
	Date   string `json:"date"`   // 日付
	Open   string `json:"open"`   // 始値
	High   string `json:"high"`   // 高値
	Low    string `json:"low"`    // 安値
	Close  string `json:"close"`  // 終値
	Volume int64  `json:"volume"` // 出来高
}

// PricesResponse は銘柄ごとの株価一覧です。
type PricesResponse struct {
	Symbol string          `json:"symbol"`
	Prices []PriceResponse `json:"prices"`
}

// ErrorResponse はエラー時のレスポンスDTOです。
type ErrorResponse struct {
	Error string `json:"error"`
}
