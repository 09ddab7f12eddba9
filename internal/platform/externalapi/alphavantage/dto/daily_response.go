// Package dto defines data transfer objects for the Alpha Vantage API responses.
package dto

import (
	"encoding/json"
	"sort"
)

// DailyBar is one entry of "Time Series (Daily)".
type DailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// DailyResponse represents the JSON response of function=TIME_SERIES_DAILY.
// Error, rate-limit and data shapes share one object, so every field is optional.
type DailyResponse struct {
	ErrorMessage *string             `json:"Error Message,omitempty"`
	Note         *string             `json:"Note,omitempty"`
	Information  *string             `json:"Information,omitempty"`
	MetaData     map[string]string   `json:"Meta Data,omitempty"`
	TimeSeries   map[string]DailyBar `json:"Time Series (Daily)"`

	// Keys は受信したトップレベルのキー一覧です（ソート済み）。ログ出力用。
	Keys []string `json:"-"`
}

// UnmarshalJSON decodes the known fields and records the top-level keys.
func (r *DailyResponse) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	type plain DailyResponse
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = DailyResponse(p)

	r.Keys = make([]string, 0, len(raw))
	for k := range raw {
		r.Keys = append(r.Keys, k)
	}
	sort.Strings(r.Keys)
	return nil
}
