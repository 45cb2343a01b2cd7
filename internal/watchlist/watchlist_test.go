package watchlist

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/storage"
)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	dsn := t.TempDir() + "/test.db"
	store, err := storage.Open(dsn, config.BackoffConfig{MaxAttempts: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(storage.NewWatchlistRepository(store), cfg)
}

func TestScore_MonotoneAsExpiryShrinks(t *testing.T) {
	far := Score(0.5, 240)
	near := Score(0.5, 1)
	if near <= far {
		t.Fatalf("expected score to increase as time_to_end shrinks: far=%v near=%v", far, near)
	}
}

func TestScore_BoundedAtOne(t *testing.T) {
	if got := Score(0.99, 0); got > 1.0 {
		t.Fatalf("expected score capped at 1.0, got %v", got)
	}
}

func TestRescoreAll_PromotesAboveThreshold(t *testing.T) {
	cfg := Config{ExecutionThreshold: decimal.NewFromFloat(0.5), WatchlistMin: decimal.NewFromFloat(0.1), MinHoursToExpiry: 6}
	svc := newTestService(t, cfg)

	if err := svc.AddToWatchlist("token-a", "cond-1", "Will it happen?", decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.9), decimal.NewFromInt(10), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	promotions, err := svc.RescoreAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(promotions) != 1 {
		t.Fatalf("expected 1 promotion for a near-expiry high-score item, got %d", len(promotions))
	}
	if promotions[0].TokenID != "token-a" {
		t.Fatalf("unexpected promotion token: %+v", promotions[0])
	}
}

func TestRescoreAll_ExpiresBelowMin(t *testing.T) {
	cfg := Config{ExecutionThreshold: decimal.NewFromFloat(0.99), WatchlistMin: decimal.NewFromFloat(0.5), MinHoursToExpiry: 6}
	svc := newTestService(t, cfg)

	if err := svc.AddToWatchlist("token-a", "cond-1", "Will it happen?", decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.9), decimal.NewFromInt(10), 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.RescoreAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
