package storage

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// TradeRepository persists ingested trades. Inserts are idempotent on
// (condition_id, trade_id): replaying the same page of venue history never
// duplicates a row.
type TradeRepository struct {
	store *Store
}

func NewTradeRepository(s *Store) *TradeRepository {
	return &TradeRepository{store: s}
}

// Insert upserts a trade, doing nothing if (condition_id, trade_id) already
// exists. Returns whether this call actually inserted a new row, so callers
// can distinguish "newly seen" from "already known" without a second query.
func (r *TradeRepository) Insert(t Trade) (bool, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	var inserted bool
	err := r.store.retryTransient("insert_trade", func() error {
		res := r.store.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&t)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected > 0
		return nil
	})
	return inserted, err
}

// InsertBatch upserts a page of trades, returning how many were newly
// inserted (the rest were already known).
func (r *TradeRepository) InsertBatch(trades []Trade) (int, error) {
	newCount := 0
	for i := range trades {
		ok, err := r.Insert(trades[i])
		if err != nil {
			return newCount, err
		}
		if ok {
			newCount++
		}
	}
	return newCount, nil
}

// RecentByToken returns trades for a token newer than since, oldest first —
// used by the event processor to replay a short freshness window.
func (r *TradeRepository) RecentByToken(tokenID string, since time.Time, limit int) ([]Trade, error) {
	var trades []Trade
	err := r.store.retryTransient("recent_trades_by_token", func() error {
		return r.store.db.
			Where("token_id = ? AND timestamp >= ?", tokenID, since).
			Order("timestamp ASC").
			Limit(limit).
			Find(&trades).Error
	})
	return trades, err
}

// LastPrice returns the most recent trade price for a token, if any.
func (r *TradeRepository) LastPrice(tokenID string) (decimal.Decimal, bool, error) {
	var t Trade
	err := r.store.retryTransient("last_price", func() error {
		return r.store.db.
			Where("token_id = ?", tokenID).
			Order("timestamp DESC").
			First(&t).Error
	})
	if err != nil {
		if err == errRecordNotFound {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return t.Price, true, nil
}
