package storage

import (
	"time"

	"gorm.io/gorm/clause"
)

// WatchlistRepository persists the watching -> promoted|expired state
// machine, keyed one row per token_id.
type WatchlistRepository struct {
	store *Store
}

func NewWatchlistRepository(s *Store) *WatchlistRepository {
	return &WatchlistRepository{store: s}
}

// Upsert inserts a new watchlist row or refreshes an existing one,
// preserving InitialScore on conflict (re-adding an already-watched token
// must not reset its original trigger context).
func (r *WatchlistRepository) Upsert(item *WatchlistItem) error {
	now := time.Now().UTC()
	item.UpdatedAt = now
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.Status == "" {
		item.Status = WatchlistWatching
	}
	return r.store.retryTransient("upsert_watchlist_item", func() error {
		return r.store.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"condition_id", "question", "trigger_price", "trigger_size",
				"current_score", "time_to_end_hours", "status", "updated_at",
			}),
		}).Create(item).Error
	})
}

func (r *WatchlistRepository) GetWatching() ([]WatchlistItem, error) {
	var out []WatchlistItem
	err := r.store.retryTransient("get_watching", func() error {
		return r.store.db.Where("status = ?", WatchlistWatching).Order("current_score DESC").Find(&out).Error
	})
	return out, err
}

func (r *WatchlistRepository) GetByStatus(status WatchlistStatus) ([]WatchlistItem, error) {
	var out []WatchlistItem
	err := r.store.retryTransient("get_watchlist_by_status", func() error {
		return r.store.db.Where("status = ?", status).Order("updated_at DESC").Find(&out).Error
	})
	return out, err
}

// UpdateScore refreshes a watched item's current score, guarded to only
// apply while the item is still watching.
func (r *WatchlistRepository) UpdateScore(tokenID string, score, timeToEndHours float64) error {
	now := time.Now().UTC()
	return r.store.retryTransient("update_watchlist_score", func() error {
		return r.store.db.Model(&WatchlistItem{}).
			Where("token_id = ? AND status = ?", tokenID, WatchlistWatching).
			Updates(map[string]interface{}{
				"current_score":     score,
				"time_to_end_hours": timeToEndHours,
				"last_scored_at":    now,
				"updated_at":        now,
			}).Error
	})
}

func (r *WatchlistRepository) transition(tokenID string, from, to WatchlistStatus) error {
	return r.store.retryTransient("transition_watchlist_status", func() error {
		return r.store.db.Model(&WatchlistItem{}).
			Where("token_id = ? AND status = ?", tokenID, from).
			Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()}).Error
	})
}

func (r *WatchlistRepository) Promote(tokenID string) error {
	return r.transition(tokenID, WatchlistWatching, WatchlistPromoted)
}

func (r *WatchlistRepository) MarkExpired(tokenID string) error {
	return r.transition(tokenID, WatchlistWatching, WatchlistExpired)
}

// ExpiringWithin returns watching items whose market closes within
// minHours, used by RemoveExpired.
func (r *WatchlistRepository) ExpiringWithin(minHours float64) ([]WatchlistItem, error) {
	var out []WatchlistItem
	err := r.store.retryTransient("watchlist_expiring_within", func() error {
		return r.store.db.
			Where("status = ? AND time_to_end_hours <= ?", WatchlistWatching, minHours).
			Find(&out).Error
	})
	return out, err
}

// AppendScoreHistory records one score observation for a token.
func (r *WatchlistRepository) AppendScoreHistory(tokenID string, score, timeToEndHours float64) error {
	return r.store.retryTransient("append_score_history", func() error {
		return r.store.db.Create(&ScoreHistory{
			TokenID:        tokenID,
			Score:          score,
			TimeToEndHours: timeToEndHours,
			ScoredAt:       time.Now().UTC(),
		}).Error
	})
}
