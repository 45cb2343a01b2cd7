package tiermanager

import "math"

// Metrics is the per-market input to Score. All fields default to their
// zero value when unknown, matching how MarketUniverse rows are populated
// from ingestion before the full metric set has ever been observed.
type Metrics struct {
	Price           *float64 // primary outcome price, 0-1
	Volume24h       float64
	Liquidity       float64
	PriceChange24h  float64
	PriceChange1h   float64
	Spread          float64
	DaysToEnd       *float64
	MarketAgeDays   *float64
	Category        string
	OutcomeCount    int
}

var categoryBoosts = map[string]float64{
	"politics":      5,
	"crypto":        3,
	"sports":        2,
	"science":       4,
	"economics":     4,
	"entertainment": 1,
	"technology":    3,
}

// Score computes a strategy-agnostic interestingness score in [0,100] used
// to prioritize which markets deserve a higher data tier. This is not a
// trading signal on its own — ported directly from the scoring formula's
// original breakdown (volume/liquidity, price movement, timing, price
// extremes, category boost, spread penalty, multi-outcome penalty).
func Score(m Metrics) float64 {
	score := 0.0

	if m.Volume24h > 0 {
		score += math.Min(15, 15*(math.Log10(m.Volume24h+1)/6))
	}
	if m.Liquidity > 0 {
		score += math.Min(10, 10*(m.Liquidity/100_000))
	}

	score += math.Min(15, math.Abs(m.PriceChange24h)*150)
	score += math.Min(10, math.Abs(m.PriceChange1h)*200)

	if m.MarketAgeDays != nil && *m.MarketAgeDays < 7 {
		score += 10 * (1 - *m.MarketAgeDays/7)
	}
	if m.DaysToEnd != nil && *m.DaysToEnd < 14 {
		score += 10 * (1 - *m.DaysToEnd/14)
	}

	if m.Price != nil {
		p := *m.Price
		if p > 0.90 {
			score += 10 * ((p - 0.90) / 0.10)
		}
		if p < 0.10 {
			score += 10 * ((0.10 - p) / 0.10)
		}
		if p > 0.40 && p < 0.60 && m.Volume24h > 50_000 {
			score += 5
		}
	}

	if m.Spread > 0.05 {
		score -= math.Min(10, (m.Spread-0.05)*100)
	}

	if m.Category != "" {
		score += categoryBoosts[m.Category]
	}

	if m.OutcomeCount > 2 {
		score -= 5
	}

	return math.Max(0, math.Min(100, score))
}
