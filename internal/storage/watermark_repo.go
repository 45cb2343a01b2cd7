package storage

import "time"

// WatermarkRepository tracks per-stream progress markers (e.g. last-seen
// trade timestamp per condition) so ingestion can resume without
// reprocessing, and so out-of-order delivery never regresses the marker.
type WatermarkRepository struct {
	store *Store
}

func NewWatermarkRepository(s *Store) *WatermarkRepository {
	return &WatermarkRepository{store: s}
}

// Get returns the current watermark value for (stream, key), or 0 if unset.
func (r *WatermarkRepository) Get(stream, key string) (int64, error) {
	var wm Watermark
	err := r.store.retryTransient("get_watermark", func() error {
		return r.store.db.Where("stream = ? AND key = ?", stream, key).First(&wm).Error
	})
	if err != nil {
		if err == errRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return wm.Value, nil
}

// Advance moves the watermark forward to value iff value is greater than
// the currently stored one (or no row exists yet). It never regresses a
// watermark, so late/out-of-order delivery of an older record is a no-op.
func (r *WatermarkRepository) Advance(stream, key string, value int64) error {
	return r.store.retryTransient("advance_watermark", func() error {
		now := time.Now().UTC()

		res := r.store.db.Exec(
			`UPDATE watermarks SET value = ?, updated_at = ? WHERE stream = ? AND key = ? AND value < ?`,
			value, now, stream, key, value,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		// No existing row advanced — either none exists yet, or the stored
		// value is already >= value. Try a conflict-free insert; if a row
		// exists with a higher value this is a harmless no-op.
		return r.store.db.Exec(
			`INSERT INTO watermarks (stream, key, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (stream, key) DO NOTHING`,
			stream, key, value, now,
		).Error
	})
}
