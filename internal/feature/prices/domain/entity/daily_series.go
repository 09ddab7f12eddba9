package entity

// DateLayout is the layout of the date keys in a DailySeries.
const DateLayout = "2006-01-02"

// DailyBar holds the five per-day fields as the quote API sends them.
// Values stay strings until the parser converts them.
type DailyBar struct {
	Open   string
	High   string
	Low    string
	Close  string
	Volume string
}

// DailySeries is a daily time series for one symbol, either fetched live or
// generated locally. Bars is keyed by ISO calendar date (YYYY-MM-DD).
type DailySeries struct {
	Meta map[string]string
	Bars map[string]DailyBar
}
