package storage

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TriggerRepository implements the G2-safe first-trigger dedup contract
// (spec §4.4). TryRecordAtomic is the ONLY method that may gate order
// submission; IsFirstTrigger and HasConditionTriggered are read-only helpers
// for dashboards/diagnostics and must never be used to decide whether to
// trade — they are not atomic with the insert and a concurrent caller can
// race them.
type TriggerRepository struct {
	store *Store
}

func NewTriggerRepository(s *Store) *TriggerRepository {
	return &TriggerRepository{store: s}
}

// TryRecordAtomic opens a transaction, acquires a transaction-scoped
// advisory lock derived from (conditionID, threshold), checks whether any
// row already exists for that condition at that threshold (regardless of
// which token_id), and inserts iff absent. It returns whether THIS call
// recorded the trigger.
//
// Different thresholds for the same (token, condition) are independent;
// the same threshold across different tokens of the same condition is not
// — the lock and the existence check are both keyed on (condition_id,
// threshold), never on token_id alone, which is exactly the G2 fix: two
// concurrent callers racing to record the same condition's first crossing
// of a threshold always see exactly one winner, even though they carry
// different token_ids.
func (r *TriggerRepository) TryRecordAtomic(tokenID, conditionID string, threshold, price, size decimal.Decimal, score float64, outcome string) (bool, error) {
	if !r.store.IsPostgres() {
		unlock := r.store.localLocks.lock(triggerLockKey(conditionID, threshold))
		defer unlock()
		return r.recordTx(r.store.db, tokenID, conditionID, threshold, price, size, score, outcome)
	}

	var recorded bool
	err := r.store.retryTransient("try_record_trigger_atomic", func() error {
		return r.store.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", triggerLockKey(conditionID, threshold)).Error; err != nil {
				return err
			}
			var err error
			recorded, err = r.recordTx(tx, tokenID, conditionID, threshold, price, size, score, outcome)
			return err
		})
	})
	return recorded, err
}

// recordTx performs the exists-check + insert once the caller already holds
// whatever serialization (advisory lock or local mutex) is appropriate.
func (r *TriggerRepository) recordTx(tx *gorm.DB, tokenID, conditionID string, threshold, price, size decimal.Decimal, score float64, outcome string) (bool, error) {
	var count int64
	if err := tx.Model(&Trigger{}).
		Where("condition_id = ? AND threshold = ?", conditionID, threshold).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	trigger := &Trigger{
		TokenID:     tokenID,
		ConditionID: conditionID,
		Threshold:   threshold,
		Price:       price,
		Size:        size,
		Score:       score,
		Outcome:     outcome,
		TriggeredAt: time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	res := tx.Create(trigger)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IsFirstTrigger reports whether this exact (token_id, condition_id,
// threshold) has triggered before. Read-only; see type doc comment.
func (r *TriggerRepository) IsFirstTrigger(tokenID, conditionID string, threshold decimal.Decimal) (bool, error) {
	var count int64
	err := r.store.retryTransient("is_first_trigger", func() error {
		return r.store.db.Model(&Trigger{}).
			Where("token_id = ? AND condition_id = ? AND threshold = ?", tokenID, conditionID, threshold).
			Count(&count).Error
	})
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// HasConditionTriggered reports whether ANY token for this condition has
// triggered at this threshold. Read-only; see type doc comment.
func (r *TriggerRepository) HasConditionTriggered(conditionID string, threshold decimal.Decimal) (bool, error) {
	var count int64
	err := r.store.retryTransient("has_condition_triggered", func() error {
		return r.store.db.Model(&Trigger{}).
			Where("condition_id = ? AND threshold = ?", conditionID, threshold).
			Count(&count).Error
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByCondition returns triggers for a condition across all its tokens,
// most recent first.
func (r *TriggerRepository) GetByCondition(conditionID string, limit int) ([]Trigger, error) {
	var triggers []Trigger
	err := r.store.retryTransient("get_triggers_by_condition", func() error {
		return r.store.db.
			Where("condition_id = ?", conditionID).
			Order("triggered_at DESC").
			Limit(limit).
			Find(&triggers).Error
	})
	return triggers, err
}
