package storage

import "testing"

func TestWatermarkRepository_AdvanceIsMonotonic(t *testing.T) {
	store := newTestStore(t)
	repo := NewWatermarkRepository(store)

	if err := repo.Advance("trades", "cond-1", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := repo.Get("trades", "cond-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 100 {
		t.Fatalf("expected watermark 100, got %d", v)
	}

	// Out-of-order delivery of an older record must not regress the marker.
	if err := repo.Advance("trades", "cond-1", 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err = repo.Get("trades", "cond-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 100 {
		t.Fatalf("expected watermark to stay at 100 after stale advance, got %d", v)
	}

	if err := repo.Advance("trades", "cond-1", 150); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err = repo.Get("trades", "cond-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 150 {
		t.Fatalf("expected watermark to advance to 150, got %d", v)
	}
}

func TestWatermarkRepository_GetDefaultsToZero(t *testing.T) {
	store := newTestStore(t)
	repo := NewWatermarkRepository(store)

	v, err := repo.Get("trades", "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected default watermark 0, got %d", v)
	}
}

func TestWatermarkRepository_IndependentKeysPerStream(t *testing.T) {
	store := newTestStore(t)
	repo := NewWatermarkRepository(store)

	if err := repo.Advance("trades", "cond-1", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Advance("prices", "cond-1", 99); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, _ := repo.Get("trades", "cond-1")
	if v != 10 {
		t.Fatalf("expected trades watermark 10, got %d", v)
	}
	v, _ = repo.Get("prices", "cond-1")
	if v != 99 {
		t.Fatalf("expected prices watermark 99, got %d", v)
	}
}
