package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRepository persists the single orders table shared by paper and live
// trading (discriminated by Mode — see DESIGN.md Open Question decision #4).
type OrderRepository struct {
	store *Store
}

func NewOrderRepository(s *Store) *OrderRepository {
	return &OrderRepository{store: s}
}

func (r *OrderRepository) Create(o *Order) error {
	if o.SubmittedAt.IsZero() {
		o.SubmittedAt = time.Now().UTC()
	}
	o.UpdatedAt = time.Now().UTC()
	if o.Status == "" {
		o.Status = OrderPending
	}
	return r.store.retryTransient("create_order", func() error {
		return r.store.db.Create(o).Error
	})
}

func (r *OrderRepository) GetByID(orderID string) (*Order, error) {
	var o Order
	err := r.store.retryTransient("get_order", func() error {
		return r.store.db.Where("order_id = ?", orderID).First(&o).Error
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByClientID(clientID string) (*Order, error) {
	var o Order
	err := r.store.retryTransient("get_order_by_client_id", func() error {
		return r.store.db.Where("client_id = ?", clientID).First(&o).Error
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateFill applies a fill event, recomputing filled size and the
// size-weighted average fill price, and advances status. The update is
// idempotent by order_id + a monotonic filled_size check: a replayed fill
// event that wouldn't increase filled_size is a no-op, which is what makes
// reconciliation-after-reconnect safe to re-run.
func (r *OrderRepository) UpdateFill(orderID string, newFilledSize, fillPrice decimal.Decimal, status OrderStatus) error {
	return r.store.retryTransient("update_order_fill", func() error {
		var o Order
		if err := r.store.db.Where("order_id = ?", orderID).First(&o).Error; err != nil {
			return err
		}
		if newFilledSize.LessThanOrEqual(o.FilledSize) {
			return nil
		}

		addedSize := newFilledSize.Sub(o.FilledSize)
		totalCost := o.AvgFillPrice.Mul(o.FilledSize).Add(fillPrice.Mul(addedSize))
		newAvg := o.AvgFillPrice
		if newFilledSize.GreaterThan(decimal.Zero) {
			newAvg = totalCost.Div(newFilledSize)
		}

		return r.store.db.Model(&Order{}).Where("order_id = ?", orderID).Updates(map[string]interface{}{
			"filled_size":    newFilledSize,
			"avg_fill_price": newAvg,
			"status":         status,
			"updated_at":     time.Now().UTC(),
		}).Error
	})
}

func (r *OrderRepository) UpdateStatus(orderID string, status OrderStatus) error {
	return r.store.retryTransient("update_order_status", func() error {
		return r.store.db.Model(&Order{}).
			Where("order_id = ?", orderID).
			Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
	})
}

// OpenOrders returns all orders not in a terminal state, used by the
// reconciler to rehydrate in-flight orders on startup.
func (r *OrderRepository) OpenOrders() ([]Order, error) {
	var out []Order
	err := r.store.retryTransient("open_orders", func() error {
		return r.store.db.
			Where("status IN ?", []OrderStatus{OrderPending, OrderLive, OrderPartial}).
			Find(&out).Error
	})
	return out, err
}
