package positions

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
)

// ExitConfig mirrors config.ExitConfig without importing the config
// package, keeping this package dependency-light and independently
// testable.
type ExitConfig struct {
	ProfitTarget  decimal.Decimal
	StopLoss      decimal.Decimal
	TimeExitHours float64
}

// ExitSignal is produced by EvaluateExit for the execution service to act on.
type ExitSignal struct {
	PositionID string
	ExitType   storage.ExitType
}

// MarketState is the per-position market context EvaluateExit needs beyond
// the position row itself.
type MarketState struct {
	CurrentPrice   decimal.Decimal
	TimeToEndHours float64
	HasExpiry      bool
	Resolved       bool
}

// EvaluateExit checks a position against every exit rule and returns the
// first match in the order the spec lists them — profit_target, stop_loss,
// time_exit, resolution — which is also how simultaneous matches are
// tie-broken.
func EvaluateExit(pos storage.Position, market MarketState, cfg ExitConfig, holdHours float64) (ExitSignal, bool) {
	hoursHeld := time.Since(pos.EntryTime).Hours()

	profitTarget := hoursHeld >= holdHours && market.CurrentPrice.GreaterThanOrEqual(cfg.ProfitTarget)
	stopLoss := hoursHeld >= holdHours && market.CurrentPrice.LessThanOrEqual(cfg.StopLoss)
	timeExit := market.HasExpiry && market.TimeToEndHours <= cfg.TimeExitHours
	resolution := market.Resolved

	switch {
	case profitTarget:
		return ExitSignal{PositionID: pos.PositionID, ExitType: storage.ExitProfitTarget}, true
	case stopLoss:
		return ExitSignal{PositionID: pos.PositionID, ExitType: storage.ExitStopLoss}, true
	case timeExit:
		return ExitSignal{PositionID: pos.PositionID, ExitType: storage.ExitTimeExit}, true
	case resolution:
		return ExitSignal{PositionID: pos.PositionID, ExitType: storage.ExitResolution}, true
	default:
		return ExitSignal{}, false
	}
}
