package storage

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := t.TempDir() + "/test.db"
	store, err := Open(dsn, config.BackoffConfig{InitialDelay: 0, Multiplier: 2, MaxDelay: 0, MaxAttempts: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTryRecordAtomic_FirstCallWins(t *testing.T) {
	store := newTestStore(t)
	repo := NewTriggerRepository(store)

	threshold := decimal.NewFromFloat(0.9)
	ok, err := repo.TryRecordAtomic("token-a", "cond-1", threshold, decimal.NewFromFloat(0.91), decimal.NewFromInt(100), 0.8, "YES")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected first call to record the trigger")
	}

	ok2, err := repo.TryRecordAtomic("token-a", "cond-1", threshold, decimal.NewFromFloat(0.92), decimal.NewFromInt(50), 0.8, "YES")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok2 {
		t.Fatal("expected second call for same (condition, threshold) to be a no-op")
	}
}

// TestTryRecordAtomic_DualKeyAcrossTokens exercises the G2 fix directly:
// two different tokens of the same condition racing to record the same
// threshold must see exactly one winner, because the dedup key is
// (condition_id, threshold), not (token_id, condition_id, threshold).
func TestTryRecordAtomic_DualKeyAcrossTokens(t *testing.T) {
	store := newTestStore(t)
	repo := NewTriggerRepository(store)

	threshold := decimal.NewFromFloat(0.95)
	const attempts = 20

	var wg sync.WaitGroup
	results := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokenID := "token-yes"
			if i%2 == 0 {
				tokenID = "token-no"
			}
			ok, err := repo.TryRecordAtomic(tokenID, "cond-race", threshold, decimal.NewFromFloat(0.95), decimal.NewFromInt(1), 0.5, "YES")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range results {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner across %d concurrent callers, got %d", attempts, winners)
	}
}

func TestTryRecordAtomic_DifferentThresholdsIndependent(t *testing.T) {
	store := newTestStore(t)
	repo := NewTriggerRepository(store)

	ok1, err := repo.TryRecordAtomic("token-a", "cond-1", decimal.NewFromFloat(0.9), decimal.NewFromFloat(0.9), decimal.NewFromInt(1), 0.5, "YES")
	if err != nil || !ok1 {
		t.Fatalf("expected first threshold to record, ok=%v err=%v", ok1, err)
	}
	ok2, err := repo.TryRecordAtomic("token-a", "cond-1", decimal.NewFromFloat(0.95), decimal.NewFromFloat(0.95), decimal.NewFromInt(1), 0.5, "YES")
	if err != nil || !ok2 {
		t.Fatalf("expected distinct threshold to record independently, ok=%v err=%v", ok2, err)
	}
}

func TestHasConditionTriggered(t *testing.T) {
	store := newTestStore(t)
	repo := NewTriggerRepository(store)

	threshold := decimal.NewFromFloat(0.9)
	has, err := repo.HasConditionTriggered("cond-1", threshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if has {
		t.Fatal("expected no trigger recorded yet")
	}

	if _, err := repo.TryRecordAtomic("token-a", "cond-1", threshold, decimal.NewFromFloat(0.9), decimal.NewFromInt(1), 0.5, "YES"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	has, err = repo.HasConditionTriggered("cond-1", threshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !has {
		t.Fatal("expected trigger to be visible after recording")
	}
}
