package storage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTradeRepository_InsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	repo := NewTradeRepository(store)

	trade := Trade{
		ConditionID: "cond-1",
		TradeID:     "trade-1",
		TokenID:     "token-a",
		Price:       decimal.NewFromFloat(0.5),
		Size:        decimal.NewFromInt(10),
		Side:        "buy",
		Timestamp:   time.Now().UTC(),
	}

	inserted, err := repo.Insert(trade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report inserted=true")
	}

	inserted, err = repo.Insert(trade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted {
		t.Fatal("expected replayed insert of the same (condition_id, trade_id) to be a no-op")
	}
}

func TestTradeRepository_InsertBatchCountsOnlyNew(t *testing.T) {
	store := newTestStore(t)
	repo := NewTradeRepository(store)

	now := time.Now().UTC()
	batch := []Trade{
		{ConditionID: "cond-1", TradeID: "t1", TokenID: "token-a", Price: decimal.NewFromFloat(0.5), Size: decimal.NewFromInt(1), Timestamp: now},
		{ConditionID: "cond-1", TradeID: "t2", TokenID: "token-a", Price: decimal.NewFromFloat(0.6), Size: decimal.NewFromInt(1), Timestamp: now},
	}
	n, err := repo.InsertBatch(batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 new trades, got %d", n)
	}

	// Replay the same page plus one genuinely new trade.
	batch = append(batch, Trade{ConditionID: "cond-1", TradeID: "t3", TokenID: "token-a", Price: decimal.NewFromFloat(0.7), Size: decimal.NewFromInt(1), Timestamp: now})
	n, err = repo.InsertBatch(batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 new trade on replay, got %d", n)
	}
}

func TestTradeRepository_LastPrice(t *testing.T) {
	store := newTestStore(t)
	repo := NewTradeRepository(store)

	_, ok, err := repo.LastPrice("token-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no price before any trades")
	}

	base := time.Now().UTC().Add(-time.Minute)
	if _, err := repo.Insert(Trade{ConditionID: "cond-1", TradeID: "t1", TokenID: "token-a", Price: decimal.NewFromFloat(0.5), Size: decimal.NewFromInt(1), Timestamp: base}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.Insert(Trade{ConditionID: "cond-1", TradeID: "t2", TokenID: "token-a", Price: decimal.NewFromFloat(0.8), Size: decimal.NewFromInt(1), Timestamp: base.Add(30 * time.Second)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	price, ok, err := repo.LastPrice("token-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a price after inserting trades")
	}
	if !price.Equal(decimal.NewFromFloat(0.8)) {
		t.Fatalf("expected latest price 0.8, got %s", price)
	}
}
