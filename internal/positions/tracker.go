// Package positions aggregates fills into positions and evaluates exit
// rules against them every tick. The math here is the generalization of
// teacher's execution.Executor.updatePosition to a persisted, multi-token
// binary-market domain.
package positions

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
)

// Tracker maintains position state in Storage, applying fills and
// producing realized/unrealized P&L.
type Tracker struct {
	positions *storage.PositionRepository
	exits     *storage.ExitRepository
}

func NewTracker(positions *storage.PositionRepository, exits *storage.ExitRepository) *Tracker {
	return &Tracker{positions: positions, exits: exits}
}

// ApplyFill folds a fill into the position for tokenID, creating one if
// this is the first BUY fill. A zero-size fill creates nothing.
//
// BUY increases size and recomputes entry_price as the size-weighted mean;
// SELL decreases size and accrues realized_pnl, closing the position once
// size reaches zero or below (an oversized SELL also closes it).
func (t *Tracker) ApplyFill(tokenID, conditionID, side string, filledSize, fillPrice decimal.Decimal, holdHours float64) error {
	if filledSize.IsZero() {
		return nil
	}

	pos, err := t.positions.GetOpenByToken(tokenID)
	isNotFound := errors.Is(err, storage.ErrNotFound)
	if err != nil && !isNotFound {
		return err
	}

	if side == "BUY" {
		if pos == nil {
			now := time.Now().UTC()
			newPos := &storage.Position{
				PositionID:  fmt.Sprintf("pos_%s_%d", tokenID, now.UnixNano()),
				TokenID:     tokenID,
				ConditionID: conditionID,
				Size:        decimal.Zero,
				EntryPrice:  decimal.Zero,
				EntryCost:   decimal.Zero,
				EntryTime:   now,
				HoldStartAt: now.Add(time.Duration(holdHours * float64(time.Hour))),
				Status:      storage.PositionOpen,
			}
			if err := t.positions.Create(newPos); err != nil {
				return err
			}
			pos = newPos
		}
		return t.positions.ApplyFill(pos.PositionID, filledSize, fillPrice)
	}

	// SELL against an existing position.
	if pos == nil {
		log.Warn().Str("token_id", tokenID).Msg("📉 sell fill with no open position, ignoring")
		return nil
	}

	realizedDelta := filledSize.Mul(fillPrice.Sub(pos.EntryPrice))
	newSize := pos.Size.Sub(filledSize)
	newRealized := pos.RealizedPnL.Add(realizedDelta)

	if newSize.LessThanOrEqual(decimal.Zero) {
		_, err := t.positions.Close(pos.PositionID, storage.PositionClosed, newRealized, "")
		return err
	}

	return t.reducePosition(pos.PositionID, newSize, newRealized)
}

func (t *Tracker) reducePosition(positionID string, newSize, newRealized decimal.Decimal) error {
	return t.positions.ApplyFillReduce(positionID, newSize, newRealized)
}

// CalculatePnL returns size * (currentPrice - entryPrice) for a position.
func CalculatePnL(pos storage.Position, currentPrice decimal.Decimal) decimal.Decimal {
	return pos.Size.Mul(currentPrice.Sub(pos.EntryPrice))
}

// CalculateTotalPnL sums unrealized P&L across positions given a
// token_id -> price map; positions with no known price are skipped.
func CalculateTotalPnL(positions []storage.Position, prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, pos := range positions {
		if price, ok := prices[pos.TokenID]; ok {
			total = total.Add(CalculatePnL(pos, price))
		}
	}
	return total
}

// RefreshMark updates a position's current price and unrealized P&L.
func (t *Tracker) RefreshMark(positionID string, price decimal.Decimal) error {
	return t.positions.UpdateMark(positionID, price)
}

// ClosePosition closes a position, recording an ExitEvent. Calling this
// twice on the same position is a no-op the second time, because
// PositionRepository.Close only transitions rows still in status=open.
func (t *Tracker) ClosePosition(pos storage.Position, exitPrice decimal.Decimal, exitType storage.ExitType, exitOrderID string) error {
	netPnL := pos.Size.Mul(exitPrice.Sub(pos.EntryPrice))
	hoursHeld := time.Since(pos.EntryTime).Hours()

	status := storage.ExitPending
	if exitOrderID != "" {
		status = storage.ExitExecuted
	}

	ok, err := t.positions.Close(pos.PositionID, storage.PositionClosed, netPnL, exitOrderID)
	if err != nil {
		return err
	}
	if !ok {
		// Already closed by a racing transition; no second ExitEvent is
		// recorded, so callers' P&L rollups never double count.
		return nil
	}

	return t.exits.Create(&storage.ExitEvent{
		PositionID: pos.PositionID,
		ExitType:   exitType,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Size:       pos.Size,
		GrossPnL:   netPnL,
		NetPnL:     netPnL,
		HoursHeld:  hoursHeld,
		Status:     status,
	})
}
