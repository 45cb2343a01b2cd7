package storage

import "time"

// UniverseRepository backs the tier manager: per-market scoring state and
// strategy-issued promotion requests.
type UniverseRepository struct {
	store *Store
}

func NewUniverseRepository(s *Store) *UniverseRepository {
	return &UniverseRepository{store: s}
}

// Upsert inserts or updates a market's universe row.
func (r *UniverseRepository) Upsert(u *MarketUniverse) error {
	u.UpdatedAt = time.Now().UTC()
	return r.store.retryTransient("upsert_market_universe", func() error {
		return r.store.db.Save(u).Error
	})
}

func (r *UniverseRepository) GetByCondition(conditionID string) (*MarketUniverse, error) {
	var u MarketUniverse
	err := r.store.retryTransient("get_market_universe", func() error {
		return r.store.db.Where("condition_id = ?", conditionID).First(&u).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UniverseRepository) ByTier(tier Tier) ([]MarketUniverse, error) {
	var out []MarketUniverse
	err := r.store.retryTransient("universe_by_tier", func() error {
		return r.store.db.Where("tier = ?", tier).Find(&out).Error
	})
	return out, err
}

func (r *UniverseRepository) CountByTier(tier Tier) (int64, error) {
	var count int64
	err := r.store.retryTransient("count_by_tier", func() error {
		return r.store.db.Model(&MarketUniverse{}).Where("tier = ?", tier).Count(&count).Error
	})
	return count, err
}

func (r *UniverseRepository) SetTier(conditionID string, tier Tier) error {
	return r.store.retryTransient("set_tier", func() error {
		return r.store.db.Model(&MarketUniverse{}).
			Where("condition_id = ?", conditionID).
			Updates(map[string]interface{}{"tier": tier, "updated_at": time.Now().UTC()}).Error
	})
}

func (r *UniverseRepository) CreateTierRequest(req *TierRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	return r.store.retryTransient("create_tier_request", func() error {
		return r.store.db.Create(req).Error
	})
}

// PendingTierRequests returns unexpired requests, ordered by requested tier
// descending so tier-3 requests are processed before tier-2 ones.
func (r *UniverseRepository) PendingTierRequests() ([]TierRequest, error) {
	var out []TierRequest
	err := r.store.retryTransient("pending_tier_requests", func() error {
		return r.store.db.Where("expires_at > ?", time.Now().UTC()).Order("requested_tier DESC").Find(&out).Error
	})
	return out, err
}

// DeleteExpiredTierRequests removes requests past their expiry, called at
// the end of every promotion cycle.
func (r *UniverseRepository) DeleteExpiredTierRequests() error {
	return r.store.retryTransient("delete_expired_tier_requests", func() error {
		return r.store.db.Where("expires_at <= ?", time.Now().UTC()).Delete(&TierRequest{}).Error
	})
}

// TopByScore returns up to limit markets at tier with score >= minScore,
// highest score first — the candidate pool for promotion.
func (r *UniverseRepository) TopByScore(tier Tier, minScore float64, limit int) ([]MarketUniverse, error) {
	var out []MarketUniverse
	err := r.store.retryTransient("universe_top_by_score", func() error {
		return r.store.db.
			Where("tier = ? AND interestingness_score >= ?", tier, minScore).
			Order("interestingness_score DESC").
			Limit(limit).
			Find(&out).Error
	})
	return out, err
}

// UpdateScore sets a market's interestingness score and maintains
// score_below_threshold_since: set the first time score drops below
// belowThreshold, cleared once score recovers above it.
func (r *UniverseRepository) UpdateScore(conditionID string, score float64, belowThreshold float64) error {
	return r.store.retryTransient("update_universe_score", func() error {
		var u MarketUniverse
		if err := r.store.db.Where("condition_id = ?", conditionID).First(&u).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{"interestingness_score": score, "updated_at": time.Now().UTC()}
		switch {
		case score < belowThreshold && u.ScoreBelowThresholdSince == nil:
			now := time.Now().UTC()
			updates["score_below_threshold_since"] = &now
		case score >= belowThreshold && u.ScoreBelowThresholdSince != nil:
			updates["score_below_threshold_since"] = nil
		}
		return r.store.db.Model(&MarketUniverse{}).Where("condition_id = ?", conditionID).Updates(updates).Error
	})
}
