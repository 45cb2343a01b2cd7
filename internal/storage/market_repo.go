package storage

import (
	"time"

	"gorm.io/gorm/clause"
)

// MarketRepository persists venue market/condition metadata and their
// outcome tokens.
type MarketRepository struct {
	store *Store
}

func NewMarketRepository(s *Store) *MarketRepository {
	return &MarketRepository{store: s}
}

// Upsert inserts or replaces a market's metadata row.
func (r *MarketRepository) Upsert(m *Market) error {
	m.UpdatedAt = time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = m.UpdatedAt
	}
	return r.store.retryTransient("upsert_market", func() error {
		return r.store.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "condition_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"question", "category", "end_time", "resolved", "resolved_outcome", "updated_at"}),
		}).Create(m).Error
	})
}

func (r *MarketRepository) GetByCondition(conditionID string) (*Market, error) {
	var m Market
	err := r.store.retryTransient("get_market", func() error {
		return r.store.db.Where("condition_id = ?", conditionID).First(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkResolved flips a market resolved and records the winning outcome.
func (r *MarketRepository) MarkResolved(conditionID, outcome string) error {
	return r.store.retryTransient("mark_market_resolved", func() error {
		return r.store.db.Model(&Market{}).Where("condition_id = ?", conditionID).
			Updates(map[string]interface{}{
				"resolved":         true,
				"resolved_outcome": outcome,
				"updated_at":       time.Now().UTC(),
			}).Error
	})
}

// Unresolved returns markets ending before cutoff that are not yet marked
// resolved, used by the position tracker to detect resolution events the
// venue may not push proactively.
func (r *MarketRepository) Unresolved(cutoff time.Time) ([]Market, error) {
	var out []Market
	err := r.store.retryTransient("unresolved_markets", func() error {
		return r.store.db.Where("resolved = ? AND end_time <= ?", false, cutoff).Find(&out).Error
	})
	return out, err
}

// TokenRepository persists outcome tokens belonging to a market.
type TokenRepository struct {
	store *Store
}

func NewTokenRepository(s *Store) *TokenRepository {
	return &TokenRepository{store: s}
}

func (r *TokenRepository) Upsert(t *OutcomeToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return r.store.retryTransient("upsert_token", func() error {
		return r.store.db.Clauses(clause.OnConflict{DoNothing: true}).Create(t).Error
	})
}

func (r *TokenRepository) GetByID(tokenID string) (*OutcomeToken, error) {
	var t OutcomeToken
	err := r.store.retryTransient("get_token", func() error {
		return r.store.db.Where("token_id = ?", tokenID).First(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TokenRepository) ByCondition(conditionID string) ([]OutcomeToken, error) {
	var out []OutcomeToken
	err := r.store.retryTransient("tokens_by_condition", func() error {
		return r.store.db.Where("condition_id = ?", conditionID).Find(&out).Error
	})
	return out, err
}
