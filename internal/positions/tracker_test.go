package positions

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/storage"
)

func newTestTracker(t *testing.T) (*Tracker, *storage.Store) {
	t.Helper()
	dsn := t.TempDir() + "/test.db"
	store, err := storage.Open(dsn, config.BackoffConfig{MaxAttempts: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewTracker(storage.NewPositionRepository(store), storage.NewExitRepository(store)), store
}

func TestApplyFill_BuyOpensAndAggregates(t *testing.T) {
	tracker, store := newTestTracker(t)

	if err := tracker.ApplyFill("token-a", "cond-1", "BUY", decimal.NewFromInt(10), decimal.NewFromFloat(0.5), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tracker.ApplyFill("token-a", "cond-1", "BUY", decimal.NewFromInt(10), decimal.NewFromFloat(0.7), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo := storage.NewPositionRepository(store)
	pos, err := repo.GetOpenByToken("token-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.Size.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected size 20, got %s", pos.Size)
	}
	if !pos.EntryPrice.Equal(decimal.NewFromFloat(0.6)) {
		t.Fatalf("expected weighted entry 0.6, got %s", pos.EntryPrice)
	}
}

func TestApplyFill_ZeroSizeIsNoop(t *testing.T) {
	tracker, store := newTestTracker(t)

	if err := tracker.ApplyFill("token-a", "cond-1", "BUY", decimal.Zero, decimal.NewFromFloat(0.5), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo := storage.NewPositionRepository(store)
	if _, err := repo.GetOpenByToken("token-a"); err == nil {
		t.Fatal("expected no position to be created by a zero-size fill")
	}
}

func TestApplyFill_SellToZeroCloses(t *testing.T) {
	tracker, store := newTestTracker(t)
	repo := storage.NewPositionRepository(store)

	if err := tracker.ApplyFill("token-a", "cond-1", "BUY", decimal.NewFromInt(10), decimal.NewFromFloat(0.5), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tracker.ApplyFill("token-a", "cond-1", "SELL", decimal.NewFromInt(10), decimal.NewFromFloat(0.8), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := repo.GetOpenByToken("token-a"); err == nil {
		t.Fatal("expected position to be closed (no longer open) after a full sell")
	}
}

func TestClosePosition_IsIdempotent(t *testing.T) {
	tracker, store := newTestTracker(t)
	repo := storage.NewPositionRepository(store)
	exits := storage.NewExitRepository(store)

	pos := &storage.Position{PositionID: "pos-1", TokenID: "token-a", ConditionID: "cond-1", Size: decimal.NewFromInt(10), EntryPrice: decimal.NewFromFloat(0.5)}
	if err := repo.Create(pos); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tracker.ClosePosition(*pos, decimal.NewFromFloat(0.9), storage.ExitProfitTarget, "order-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tracker.ClosePosition(*pos, decimal.NewFromFloat(0.95), storage.ExitStopLoss, "order-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := exits.ByPosition("pos-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one exit event recorded, got %d", len(events))
	}
}
