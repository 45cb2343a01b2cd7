// Package orders is the Order Manager: submits BUY/SELL orders, maintains
// an in-memory order cache, persists every mutation to Storage, and
// reconciles cached state against the venue. Generalized from teacher's
// execution.Executor (paper/live dual path, order state machine) plus
// execution.Reconciler (startup rehydration).
package orders

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/balance"
	"github.com/web3guy0/polybot/internal/pkgerr"
	"github.com/web3guy0/polybot/internal/storage"
	"github.com/web3guy0/polybot/internal/venue"
)

// VenueClient is the subset of venue.Client the Order Manager drives.
// A paper-mode simulator satisfies the same interface so the manager
// never branches on mode beyond choosing which implementation to hold.
type VenueClient interface {
	PlaceOrder(tokenID string, price, size decimal.Decimal, side string) (venue.PlaceOrderResult, error)
	OrderStatus(orderID string) (venue.VenueOrder, error)
	CancelOrder(orderID string) error
}

// Config controls order-submission policy.
type Config struct {
	MaxBuyPrice decimal.Decimal
	Mode        storage.OrderMode
}

// Manager owns the order_id -> Order cache backing fast lookups, while
// Storage remains the source of truth (§3 ownership rule).
type Manager struct {
	mu sync.RWMutex

	cfg       Config
	venue     VenueClient
	repo      *storage.OrderRepository
	balance   *balance.Manager
	approvals *storage.ApprovalRepository

	cache map[string]*storage.Order // keyed by order_id once live; by client_id while pending
}

func NewManager(v VenueClient, repo *storage.OrderRepository, bal *balance.Manager, approvals *storage.ApprovalRepository, cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		venue:     v,
		repo:      repo,
		balance:   bal,
		approvals: approvals,
		cache:     make(map[string]*storage.Order),
	}
}

// Submit places a BUY or SELL order. BUYs above MaxBuyPrice are rejected
// unless an unexpired, pending Approval for tokenID covers the price — a
// human-in-the-loop override mirroring the source's approval_repo.py.
// Claim atomically selects and marks the approval executed in one
// transaction-scoped lock, so two concurrent Submit calls can never both
// spend the same one-time approval.
func (m *Manager) Submit(tokenID, conditionID, side string, price, size decimal.Decimal, strategy string) (*storage.Order, error) {
	if strings.EqualFold(side, venue.SideBuy) && price.GreaterThan(m.cfg.MaxBuyPrice) {
		approval, err := m.approvals.Claim(tokenID, price)
		if err != nil || approval == nil {
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				log.Warn().Err(err).Str("token_id", tokenID).Msg("📋 approval lookup failed, enforcing price cap")
			}
			return nil, pkgerr.PriceCapErr(price.String(), m.cfg.MaxBuyPrice.String())
		}
		log.Info().
			Str("token_id", tokenID).
			Str("price", price.String()).
			Str("approval_max_price", approval.MaxPrice.String()).
			Msg("📋 price cap overridden by pending approval")
	}

	clientID := fmt.Sprintf("pb_%d_%s", time.Now().UnixNano(), tokenID)

	reservation := decimal.Zero
	if strings.EqualFold(side, venue.SideBuy) {
		reservation = price.Mul(size)
		if err := m.balance.Reserve(clientID, reservation); err != nil {
			return nil, err
		}
	}

	order := &storage.Order{
		OrderID:     clientID, // placeholder until the venue assigns a real ID
		ClientID:    clientID,
		TokenID:     tokenID,
		ConditionID: conditionID,
		Side:        strings.ToUpper(side),
		Mode:        m.cfg.Mode,
		Price:       price,
		Size:        size,
		FilledSize:  decimal.Zero,
		Status:      storage.OrderPending,
		Strategy:    strategy,
	}
	if err := m.repo.Create(order); err != nil {
		m.balance.ReleaseReservation(clientID)
		return nil, err
	}

	m.mu.Lock()
	m.cache[clientID] = order
	m.mu.Unlock()

	result, err := m.venue.PlaceOrder(tokenID, price, size, side)
	if err != nil || result.OrderID == "" {
		// Empty order_id is treated identically to a transport failure:
		// the pending row is marked REJECTED (it is not deleted; it keeps
		// the client ID as its order_id, so no row with an empty ID is
		// written) and the reservation is released.
		if err == nil {
			err = pkgerr.VenueRejectedErr("empty order_id on submission")
		}
		if uerr := m.repo.UpdateStatus(clientID, storage.OrderRejected); uerr != nil {
			log.Error().Err(uerr).Str("client_id", clientID).Msg("📋 failed to mark rejected order")
		}
		m.balance.ReleaseReservation(clientID)
		m.mu.Lock()
		delete(m.cache, clientID)
		m.mu.Unlock()
		return nil, err
	}

	if err := m.transitionToLive(order, result.OrderID); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", result.OrderID).
		Str("client_id", clientID).
		Str("token_id", tokenID).
		Str("side", side).
		Str("price", price.String()).
		Str("size", size.String()).
		Msg("📤 order submitted")

	return order, nil
}

// transitionToLive moves a pending order to LIVE under its venue-assigned
// order_id, re-keying both Storage and the in-memory cache.
func (m *Manager) transitionToLive(order *storage.Order, venueOrderID string) error {
	if err := m.repo.UpdateStatus(order.ClientID, storage.OrderLive); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.cache, order.ClientID)
	order.OrderID = venueOrderID
	order.Status = storage.OrderLive
	m.cache[venueOrderID] = order
	m.mu.Unlock()

	// Reservations are keyed by client_id throughout the order's life, so
	// no re-reservation is needed on this rename — only the lookup key
	// changes, not the reservation itself.
	return nil
}

// acceptedCancelled are the spellings the venue may report for a
// cancellation; both collapse to the same terminal status.
var acceptedCancelled = map[string]bool{"CANCELED": true, "CANCELLED": true}

// SyncStatus polls the venue for orderID's current state, applies the
// transition, and adjusts reservations/balance as required by the
// resulting state. Safe to call repeatedly — a no-op transition (unchanged
// filled_size, already-terminal status) leaves everything as is.
func (m *Manager) SyncStatus(orderID string) error {
	m.mu.RLock()
	order, ok := m.cache[orderID]
	m.mu.RUnlock()
	if !ok {
		stored, err := m.repo.GetByID(orderID)
		if err != nil {
			return err
		}
		order = stored
	}

	venueOrder, err := m.venue.OrderStatus(orderID)
	if err != nil {
		return err
	}

	status := resolveStatus(venueOrder.Status, order.Size, venueOrder.Filled)

	switch status {
	case storage.OrderPartial:
		prevFilled := order.FilledSize
		if err := m.repo.UpdateFill(orderID, venueOrder.Filled, venueOrder.AvgPrice, status); err != nil {
			return err
		}
		incremental := venueOrder.Filled.Sub(prevFilled)
		if incremental.GreaterThan(decimal.Zero) && strings.EqualFold(order.Side, venue.SideBuy) {
			m.balance.AdjustForPartialFill(order.ClientID, incremental.Mul(venueOrder.AvgPrice))
		}
		if err := m.balance.RefreshBalance(); err != nil {
			log.Warn().Err(err).Msg("📋 balance refresh after partial fill failed")
		}
	case storage.OrderFilled:
		if err := m.repo.UpdateFill(orderID, venueOrder.Filled, venueOrder.AvgPrice, status); err != nil {
			return err
		}
		m.releaseTerminal(order)
	case storage.OrderCancelled, storage.OrderRejected:
		if err := m.repo.UpdateStatus(orderID, status); err != nil {
			return err
		}
		m.releaseTerminal(order)
	}

	m.mu.Lock()
	order.Status = status
	if venueOrder.Filled.GreaterThan(order.FilledSize) {
		order.FilledSize = venueOrder.Filled
		order.AvgFillPrice = venueOrder.AvgPrice
	}
	m.mu.Unlock()

	return nil
}

func (m *Manager) releaseTerminal(order *storage.Order) {
	m.balance.ReleaseReservation(order.ClientID)
	if err := m.balance.RefreshBalance(); err != nil {
		log.Warn().Err(err).Msg("📋 balance refresh after terminal order failed")
	}
}

// resolveStatus maps a venue-reported raw status plus cumulative filled
// size into one of our lifecycle states.
func resolveStatus(venueStatus string, size, filled decimal.Decimal) storage.OrderStatus {
	upper := strings.ToUpper(venueStatus)
	if acceptedCancelled[upper] {
		return storage.OrderCancelled
	}
	if upper == "REJECTED" {
		return storage.OrderRejected
	}
	switch {
	case filled.GreaterThanOrEqual(size) && size.GreaterThan(decimal.Zero):
		return storage.OrderFilled
	case filled.GreaterThan(decimal.Zero):
		return storage.OrderPartial
	default:
		return storage.OrderLive
	}
}

// Cancel requests cancellation of orderID. Idempotent: the venue reporting
// "already canceled" is treated as success. The venue client's CancelOrder
// surfaces every failure, so Cancel recognizes that reply itself (either
// spelling) and surfaces only the remaining transport/API failures.
func (m *Manager) Cancel(orderID string) error {
	if err := m.venue.CancelOrder(orderID); err != nil {
		msg := strings.ToLower(err.Error())
		if !strings.Contains(msg, "already canceled") && !strings.Contains(msg, "already cancelled") {
			return err
		}
	}
	if err := m.repo.UpdateStatus(orderID, storage.OrderCancelled); err != nil {
		return err
	}
	m.mu.RLock()
	order, ok := m.cache[orderID]
	m.mu.RUnlock()
	if ok {
		m.releaseTerminal(order)
	}
	return nil
}

// LoadOrders rehydrates every non-terminal order from Storage on startup,
// re-establishing cache entries and reservations for each order's unfilled
// remainder. An order whose reservation would push total reservations past
// the currently available balance is still tracked — just not re-reserved
// — and logged as over-committed, preserving crash-recovery truthfulness
// rather than silently inventing balance that may not exist.
func (m *Manager) LoadOrders() (int, error) {
	open, err := m.repo.OpenOrders()
	if err != nil {
		return 0, err
	}

	loaded := 0
	for i := range open {
		o := open[i]
		m.mu.Lock()
		m.cache[o.OrderID] = &o
		m.mu.Unlock()

		if strings.EqualFold(o.Side, venue.SideBuy) {
			remaining := o.Size.Sub(o.FilledSize)
			unreservedCost := remaining.Mul(o.Price)
			if err := m.balance.Reserve(o.ClientID, unreservedCost); err != nil {
				log.Warn().
					Str("order_id", o.OrderID).
					Str("amount", unreservedCost.String()).
					Msg("⚠️ over-committed from prior run: not re-reserving")
			}
		}
		loaded++
	}

	log.Info().Int("loaded", loaded).Msg("📥 orders rehydrated from storage")
	return loaded, nil
}

// Get returns the cached order for orderID, if known.
func (m *Manager) Get(orderID string) (*storage.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.cache[orderID]
	return o, ok
}

// Outstanding returns the order_ids of every cached order not yet in a
// terminal state — the set the reconciliation loop must poll so a fill,
// cancellation, or rejection that happens at the venue between a
// submit-time sync and the next one is never missed.
func (m *Manager) Outstanding() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.cache))
	for id, o := range m.cache {
		switch o.Status {
		case storage.OrderPending, storage.OrderLive, storage.OrderPartial:
			ids = append(ids, id)
		}
	}
	return ids
}
