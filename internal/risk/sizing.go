package risk

import "github.com/shopspring/decimal"

// Sizer computes an optional Kelly-criterion position size from realized
// win-rate statistics, for strategies that want to size more aggressively
// than the Gate's flat per-bet cap once a track record exists. Adapted from
// the teacher's risk.Sizer.CalculateWithKelly; that version derives risk-
// per-share from a per-signal stop-loss, which this project's Signal does
// not carry (positions exit on the Exit Manager's profit/stop/time/
// resolution rules, not a per-trade stop price), so sizing here keys off
// win-rate/win-loss-ratio instead and defers to half-Kelly for safety.
type Sizer struct {
	maxPct decimal.Decimal // hard ceiling on the fraction of balance risked, regardless of the Kelly output
}

func NewSizer(maxPct decimal.Decimal) *Sizer {
	return &Sizer{maxPct: maxPct}
}

// KellySize returns a position size in shares of price. winRate is in [0,1];
// avgWinLossRatio is the realized average-win / average-loss magnitude. When
// the inputs aren't yet meaningful (no avg loss on record, or negative edge),
// it returns zero so the caller falls back to the Gate's flat sizing.
func (s *Sizer) KellySize(price, balance, winRate, avgWinLossRatio decimal.Decimal) decimal.Decimal {
	if avgWinLossRatio.IsZero() || price.IsZero() {
		return decimal.Zero
	}

	one := decimal.NewFromInt(1)
	kellyPct := winRate.Sub(one.Sub(winRate).Div(avgWinLossRatio))
	halfKelly := kellyPct.Div(decimal.NewFromInt(2))

	if halfKelly.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if halfKelly.GreaterThan(s.maxPct) {
		halfKelly = s.maxPct
	}

	return balance.Mul(halfKelly).Div(price).Truncate(2)
}
