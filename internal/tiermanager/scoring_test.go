package tiermanager

import "testing"

func floatPtr(f float64) *float64 { return &f }

func TestScore_BoundedBetween0And100(t *testing.T) {
	got := Score(Metrics{
		Volume24h:      10_000_000,
		Liquidity:      1_000_000,
		PriceChange24h: 1.0,
		PriceChange1h:  1.0,
		Price:          floatPtr(0.99),
		Category:       "politics",
	})
	if got > 100 {
		t.Fatalf("expected score capped at 100, got %v", got)
	}

	low := Score(Metrics{Spread: 0.5, OutcomeCount: 5})
	if low < 0 {
		t.Fatalf("expected score floored at 0, got %v", low)
	}
}

func TestScore_HighVolumeScoresHigherThanNone(t *testing.T) {
	high := Score(Metrics{Volume24h: 1_000_000, Liquidity: 100_000})
	low := Score(Metrics{})
	if high <= low {
		t.Fatalf("expected high-volume market to score higher: high=%v low=%v", high, low)
	}
}

func TestScore_WideSpreadPenalized(t *testing.T) {
	tight := Score(Metrics{Volume24h: 100_000, Spread: 0.01})
	wide := Score(Metrics{Volume24h: 100_000, Spread: 0.20})
	if wide >= tight {
		t.Fatalf("expected wide spread to score lower: tight=%v wide=%v", tight, wide)
	}
}

func TestScore_MultiOutcomePenalty(t *testing.T) {
	binary := Score(Metrics{Volume24h: 50_000, OutcomeCount: 2})
	multi := Score(Metrics{Volume24h: 50_000, OutcomeCount: 5})
	if multi >= binary {
		t.Fatalf("expected multi-outcome penalty: binary=%v multi=%v", binary, multi)
	}
}
