package trigger

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/eventproc"
	"github.com/web3guy0/polybot/internal/storage"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	dsn := t.TempDir() + "/test.db"
	store, err := storage.Open(dsn, config.BackoffConfig{MaxAttempts: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewTracker(storage.NewTriggerRepository(store), storage.NewCandidateRepository(store))
}

func TestEvaluate_BelowThresholdDoesNothing(t *testing.T) {
	tr := newTestTracker(t)
	ctx := eventproc.StrategyContext{TokenID: "tok-a", ConditionID: "0xC", Price: decimal.NewFromFloat(0.8)}

	_, ok, err := tr.Evaluate(ctx, decimal.NewFromFloat(0.95), 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no candidate below threshold")
	}
}

func TestEvaluate_DualKeyDedupAcrossTokens(t *testing.T) {
	tr := newTestTracker(t)
	threshold := decimal.NewFromFloat(0.95)

	var wg sync.WaitGroup
	wins := make([]bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokenID := "tok_Y"
			if i%2 == 0 {
				tokenID = "tok_N"
			}
			ctx := eventproc.StrategyContext{TokenID: tokenID, ConditionID: "0xC", Price: decimal.NewFromFloat(0.95)}
			_, ok, err := tr.Evaluate(ctx, threshold, 0.5)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			wins[i] = ok
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range wins {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}
