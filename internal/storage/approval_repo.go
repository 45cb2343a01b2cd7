package storage

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApprovalRepository tracks human-in-the-loop per-token price-cap overrides.
type ApprovalRepository struct {
	store *Store
}

func NewApprovalRepository(s *Store) *ApprovalRepository {
	return &ApprovalRepository{store: s}
}

func (r *ApprovalRepository) Create(a *Approval) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = ApprovalPending
	}
	return r.store.retryTransient("create_approval", func() error {
		return r.store.db.Create(a).Error
	})
}

// ActiveForToken returns an unexpired, pending approval for tokenID, if any.
func (r *ApprovalRepository) ActiveForToken(tokenID string) (*Approval, error) {
	var a Approval
	err := r.store.retryTransient("active_approval_for_token", func() error {
		return r.store.db.
			Where("token_id = ? AND status = ? AND expires_at > ?", tokenID, ApprovalPending, time.Now().UTC()).
			Order("created_at DESC").
			First(&a).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Claim atomically selects the active approval for tokenID covering price
// and marks it executed in the same transaction-scoped lock, so two
// concurrent callers racing for the same one-time approval can never both
// win it. Returns (nil, ErrNotFound) if no approval covers price.
func (r *ApprovalRepository) Claim(tokenID string, price decimal.Decimal) (*Approval, error) {
	if !r.store.IsPostgres() {
		unlock := r.store.localLocks.lock(approvalLockKey(tokenID))
		defer unlock()
		return r.claimTx(r.store.db, tokenID, price)
	}

	var claimed *Approval
	err := r.store.retryTransient("claim_approval", func() error {
		return r.store.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", approvalLockKey(tokenID)).Error; err != nil {
				return err
			}
			var err error
			claimed, err = r.claimTx(tx, tokenID, price)
			return err
		})
	})
	return claimed, err
}

func (r *ApprovalRepository) claimTx(tx *gorm.DB, tokenID string, price decimal.Decimal) (*Approval, error) {
	var a Approval
	err := tx.
		Where("token_id = ? AND status = ? AND expires_at > ? AND max_price >= ?", tokenID, ApprovalPending, time.Now().UTC(), price).
		Order("created_at DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	if err := tx.Model(&Approval{}).Where("id = ?", a.ID).Update("status", ApprovalExecuted).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ApprovalRepository) MarkExecuted(id uint) error {
	return r.store.retryTransient("mark_approval_executed", func() error {
		return r.store.db.Model(&Approval{}).Where("id = ?", id).Update("status", ApprovalExecuted).Error
	})
}

// ExpireStale marks any pending approval past its expiry as expired.
func (r *ApprovalRepository) ExpireStale() (int64, error) {
	var affected int64
	err := r.store.retryTransient("expire_stale_approvals", func() error {
		res := r.store.db.Model(&Approval{}).
			Where("status = ? AND expires_at <= ?", ApprovalPending, time.Now().UTC()).
			Update("status", ApprovalExpired)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}
