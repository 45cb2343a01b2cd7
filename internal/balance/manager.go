// Package balance tracks available venue balance against in-flight order
// reservations, so the order manager never submits more than it can cover.
package balance

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/pkgerr"
)

// Reservation is held against an order until it is released, adjusted for
// a partial fill, or the order reaches a terminal state.
type Reservation struct {
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Manager is the in-memory reservation ledger against a periodically
// refreshed venue balance. It owns its map; all mutation goes through its
// methods (§5 "shared-resource policy").
type Manager struct {
	mu sync.Mutex

	venueBalance decimal.Decimal
	minReserve   decimal.Decimal
	reservations map[string]Reservation

	refresh func() (decimal.Decimal, error)
}

// NewManager builds a Manager with an initial balance and a refresh
// callback that re-reads the authoritative venue balance.
func NewManager(initialBalance, minReserve decimal.Decimal, refresh func() (decimal.Decimal, error)) *Manager {
	return &Manager{
		venueBalance: initialBalance,
		minReserve:   minReserve,
		reservations: make(map[string]Reservation),
		refresh:      refresh,
	}
}

func (m *Manager) totalReserved() decimal.Decimal {
	total := decimal.Zero
	for _, r := range m.reservations {
		total = total.Add(r.Amount)
	}
	return total
}

// AvailableBalance is venue_balance - Σ reservations.
func (m *Manager) AvailableBalance() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.venueBalance.Sub(m.totalReserved())
}

// TradeableBalance is venue_balance - min_reserve - Σ reservations; the
// portion actually safe to commit to new orders.
func (m *Manager) TradeableBalance() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.venueBalance.Sub(m.minReserve).Sub(m.totalReserved())
}

// Reserve records a reservation for orderID, failing with InsufficientBalance
// if amount exceeds the currently available balance. Idempotent on orderID:
// reserving an order that already holds a reservation returns nil and
// leaves the existing reservation unchanged rather than double-counting.
func (m *Manager) Reserve(orderID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reservations[orderID]; exists {
		return nil
	}

	available := m.venueBalance.Sub(m.totalReserved())
	if amount.GreaterThan(available) {
		return pkgerr.InsufficientBalanceErr(amount.String(), available.String())
	}

	m.reservations[orderID] = Reservation{Amount: amount, CreatedAt: time.Now().UTC()}
	return nil
}

// ReleaseReservation drops orderID's reservation; a no-op if absent.
func (m *Manager) ReleaseReservation(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservations, orderID)
}

// AdjustForPartialFill shrinks orderID's reservation by filledAmount, or
// releases it entirely if filledAmount covers the whole reservation.
func (m *Manager) AdjustForPartialFill(orderID string, filledAmount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[orderID]
	if !ok {
		return
	}
	if filledAmount.GreaterThanOrEqual(r.Amount) {
		delete(m.reservations, orderID)
		return
	}
	r.Amount = r.Amount.Sub(filledAmount)
	m.reservations[orderID] = r
}

// RefreshBalance re-reads the venue balance. Per G4, this must be called
// after every terminal or partial order-state transition so callers never
// observe a stale cached total.
func (m *Manager) RefreshBalance() error {
	newBalance, err := m.refresh()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.venueBalance = newBalance
	m.mu.Unlock()
	return nil
}

// ClearStaleReservations drops reservations older than maxAge, guarding
// against leaks from orders whose terminal event was missed.
func (m *Manager) ClearStaleReservations(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	cleared := 0
	for id, r := range m.reservations {
		if r.CreatedAt.Before(cutoff) {
			delete(m.reservations, id)
			cleared++
		}
	}
	return cleared
}

// ReservationFor returns the current reservation for orderID, if any.
func (m *Manager) ReservationFor(orderID string) (Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[orderID]
	return r, ok
}
