package storage

import "time"

// PriceSnapshotRepository stores point-in-time price readings per market,
// used to compute 1h/24h price-change scores without depending on a
// market having any trades yet.
type PriceSnapshotRepository struct {
	store *Store
}

func NewPriceSnapshotRepository(s *Store) *PriceSnapshotRepository {
	return &PriceSnapshotRepository{store: s}
}

func (r *PriceSnapshotRepository) Save(s *PriceSnapshot) error {
	if s.SnapshotAt.IsZero() {
		s.SnapshotAt = time.Now().UTC()
	}
	return r.store.retryTransient("save_price_snapshot", func() error {
		return r.store.db.Create(s).Error
	})
}

// Nearest returns the snapshot closest to (but not after) target, used to
// compute a price-change percentage relative to an hour/day ago.
func (r *PriceSnapshotRepository) Nearest(conditionID string, target time.Time) (*PriceSnapshot, error) {
	var s PriceSnapshot
	err := r.store.retryTransient("nearest_price_snapshot", func() error {
		return r.store.db.
			Where("condition_id = ? AND snapshot_at <= ?", conditionID, target).
			Order("snapshot_at DESC").
			First(&s).Error
	})
	if err != nil {
		if err == errRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// PruneOlderThan deletes snapshots older than cutoff, called after each
// fetch cycle to bound table growth.
func (r *PriceSnapshotRepository) PruneOlderThan(cutoff time.Time) error {
	return r.store.retryTransient("prune_price_snapshots", func() error {
		return r.store.db.Where("snapshot_at < ?", cutoff).Delete(&PriceSnapshot{}).Error
	})
}
