package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionRepository aggregates fills into size-weighted-average positions
// and tracks their open/closed/resolved lifecycle.
type PositionRepository struct {
	store *Store
}

func NewPositionRepository(s *Store) *PositionRepository {
	return &PositionRepository{store: s}
}

func (r *PositionRepository) Create(p *Position) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = time.Now().UTC()
	if p.Status == "" {
		p.Status = PositionOpen
	}
	return r.store.retryTransient("create_position", func() error {
		return r.store.db.Create(p).Error
	})
}

func (r *PositionRepository) GetByID(positionID string) (*Position, error) {
	var p Position
	err := r.store.retryTransient("get_position", func() error {
		return r.store.db.Where("position_id = ?", positionID).First(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PositionRepository) GetOpenByToken(tokenID string) (*Position, error) {
	var p Position
	err := r.store.retryTransient("get_open_position_by_token", func() error {
		return r.store.db.Where("token_id = ? AND status = ?", tokenID, PositionOpen).First(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PositionRepository) OpenPositions() ([]Position, error) {
	var out []Position
	err := r.store.retryTransient("open_positions", func() error {
		return r.store.db.Where("status = ?", PositionOpen).Find(&out).Error
	})
	return out, err
}

// ApplyFill folds an additional fill into the position's size-weighted
// average entry price and cost basis.
func (r *PositionRepository) ApplyFill(positionID string, fillSize, fillPrice decimal.Decimal) error {
	return r.store.retryTransient("apply_position_fill", func() error {
		var p Position
		if err := r.store.db.Where("position_id = ?", positionID).First(&p).Error; err != nil {
			return err
		}

		newSize := p.Size.Add(fillSize)
		newCost := p.EntryCost.Add(fillSize.Mul(fillPrice))
		newEntry := p.EntryPrice
		if newSize.GreaterThan(decimal.Zero) {
			newEntry = newCost.Div(newSize)
		}

		return r.store.db.Model(&Position{}).Where("position_id = ?", positionID).Updates(map[string]interface{}{
			"size":        newSize,
			"entry_price": newEntry,
			"entry_cost":  newCost,
			"updated_at":  time.Now().UTC(),
		}).Error
	})
}

// ApplyFillReduce shrinks a position by a SELL fill without closing it,
// recording the incremental realized P&L.
func (r *PositionRepository) ApplyFillReduce(positionID string, newSize, newRealizedPnL decimal.Decimal) error {
	return r.store.retryTransient("apply_position_fill_reduce", func() error {
		return r.store.db.Model(&Position{}).Where("position_id = ?", positionID).Updates(map[string]interface{}{
			"size":         newSize,
			"realized_pnl": newRealizedPnL,
			"updated_at":   time.Now().UTC(),
		}).Error
	})
}

// UpdateMark refreshes the current mark price and unrealized P&L.
func (r *PositionRepository) UpdateMark(positionID string, price decimal.Decimal) error {
	return r.store.retryTransient("update_position_mark", func() error {
		var p Position
		if err := r.store.db.Where("position_id = ?", positionID).First(&p).Error; err != nil {
			return err
		}
		unrealized := price.Sub(p.EntryPrice).Mul(p.Size)
		return r.store.db.Model(&Position{}).Where("position_id = ?", positionID).Updates(map[string]interface{}{
			"current_price":  price,
			"unrealized_pnl": unrealized,
			"updated_at":     time.Now().UTC(),
		}).Error
	})
}

// Close transitions a position from open to closed/resolved exactly once:
// the WHERE clause requires status = open, so a replayed close (e.g. both
// a fill-driven close and a resolution event racing) only applies once.
func (r *PositionRepository) Close(positionID string, status PositionStatus, realizedPnL decimal.Decimal, exitOrderID string) (bool, error) {
	var ok bool
	err := r.store.retryTransient("close_position", func() error {
		now := time.Now().UTC()
		res := r.store.db.Model(&Position{}).
			Where("position_id = ? AND status = ?", positionID, PositionOpen).
			Updates(map[string]interface{}{
				"status":         status,
				"realized_pnl":   realizedPnL,
				"exit_order_id":  exitOrderID,
				"exit_timestamp": &now,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		ok = res.RowsAffected > 0
		return nil
	})
	return ok, err
}
