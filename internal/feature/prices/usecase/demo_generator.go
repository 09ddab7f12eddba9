package usecase

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

const (
	demoDays             = 7
	defaultDemoBasePrice = 100.0
	minDemoVolume        = 1_000_000
	maxDemoVolume        = 10_000_000
)

// demoBasePrices は既知の銘柄ごとのデモ用基準価格です。
var demoBasePrices = map[string]float64{
	"AAPL":  150.0,
	"GOOGL": 2500.0,
	"MSFT":  300.0,
}

// DemoGenerator はライブAPIが使えないときに、成功レスポンスと同じ形の
// 合成データを生成します。数値は呼び出しごとにランダムです。
type DemoGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewDemoGenerator は現在時刻とランダムなシードを使う DemoGenerator を生成します。
func NewDemoGenerator() *DemoGenerator {
	return NewDemoGeneratorWith(rand.NewPCG(rand.Uint64(), rand.Uint64()), time.Now)
}

// NewDemoGeneratorWith は乱数ソースと時計を指定して DemoGenerator を生成します。
func NewDemoGeneratorWith(src rand.Source, now func() time.Time) *DemoGenerator {
	return &DemoGenerator{rng: rand.New(src), now: now}
}

// Generate は今日から遡る直近7暦日分の日次データを生成します。
// 各日について low <= min(open, close) かつ high >= max(open, close) が成り立ちます。
func (g *DemoGenerator) Generate(symbol string) entity.DailySeries {
	g.mu.Lock()
	defer g.mu.Unlock()

	base, ok := demoBasePrices[symbol]
	if !ok {
		base = defaultDemoBasePrice
	}

	now := g.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	bars := make(map[string]entity.DailyBar, demoDays)
	for i := range demoDays {
		date := today.AddDate(0, 0, -i).Format(entity.DateLayout)

		dailyChange := g.uniform(-0.05, 0.05)
		open := base * (1 + g.uniform(-0.02, 0.02))
		closePrice := open * (1 + dailyChange)
		high := max(open, closePrice) * (1 + g.uniform(0, 0.03))
		low := min(open, closePrice) * (1 - g.uniform(0, 0.03))
		volume := minDemoVolume + g.rng.IntN(maxDemoVolume-minDemoVolume+1)

		bars[date] = entity.DailyBar{
			Open:   formatPrice(open),
			High:   formatPrice(high),
			Low:    formatPrice(low),
			Close:  formatPrice(closePrice),
			Volume: strconv.Itoa(volume),
		}
	}

	return entity.DailySeries{
		Meta: map[string]string{
			"1. Information":    fmt.Sprintf("Demo Daily Prices and Volumes for %s", symbol),
			"2. Symbol":         symbol,
			"3. Last Refreshed": today.Format(entity.DateLayout),
			"4. Output Size":    "Compact",
			"5. Time Zone":      "US/Eastern",
		},
		Bars: bars,
	}
}

func (g *DemoGenerator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rng.Float64()
}

// formatPrice は小数点以下2桁に丸めます。丸めは単調なので価格の大小関係は保たれます。
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
