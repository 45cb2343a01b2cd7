// Package risk is the centralized trade-approval authority sitting between
// a strategy's Signal and the order manager's Submit: every entry passes
// through Gate.CanEnter, and nothing skips around it. Generalized from the
// teacher's risk.RiskGate/risk.Manager pair (both independently reimplement
// the same circuit-breaker/daily-loss/per-asset rules against a crypto
// "Asset" symbol; this package unifies them against a prediction market's
// condition_id instead).
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/config"
)

// TradeRequest is what a candidate must clear before submission.
type TradeRequest struct {
	ConditionID string
	TokenID     string
	Side        string // BUY or SELL
	Price       decimal.Decimal
	Size        decimal.Decimal
	Strategy    string
	Liquidity   decimal.Decimal // venue-reported liquidity for the market, for the min-liquidity floor
}

// Approval is CanEnter/CanExit's verdict.
type Approval struct {
	Approved     bool
	AdjustedSize decimal.Decimal
	RejectionMsg string
	RiskScore    float64 // 0-100, higher = riskier
}

// Gate is the risk approval authority. One Gate instance per running bot;
// all state is mutex-guarded so strategy evaluation and position exits can
// call it concurrently.
type Gate struct {
	mu sync.Mutex

	cfg config.RiskConfig

	currentBalance    decimal.Decimal
	dailyPnL          decimal.Decimal
	dailyStartBalance decimal.Decimal
	dailyTrades       int
	totalExposure     decimal.Decimal
	consecutiveLosses int
	circuitTripped    bool
	circuitTrippedAt  time.Time
	lastResetDay      int

	marketLosses   map[string]int
	marketDisabled map[string]bool
	marketLastExit map[string]time.Time
	marketOpen     map[string]decimal.Decimal // condition_id -> exposure held, for RecordExit to release

	onCircuitTrip func(reason string)
}

func NewGate(cfg config.RiskConfig, initialBalance decimal.Decimal) *Gate {
	g := &Gate{
		cfg:               cfg,
		currentBalance:    initialBalance,
		dailyStartBalance: initialBalance,
		marketLosses:      make(map[string]int),
		marketDisabled:    make(map[string]bool),
		marketLastExit:    make(map[string]time.Time),
		marketOpen:        make(map[string]decimal.Decimal),
	}
	log.Info().
		Str("max_bet", cfg.MaxBetSize.String()).
		Str("max_daily_loss", cfg.MaxDailyLoss.String()).
		Str("max_daily_exposure", cfg.MaxDailyExposure.String()).
		Int("max_daily_trades", cfg.MaxDailyTrades).
		Int("max_consec_losses", cfg.MaxConsecLosses).
		Dur("trade_cooldown", cfg.TradeCooldown).
		Msg("🛡️ risk gate initialized")
	return g
}

// CanEnter checks every hard block, then clamps size, then scores the
// approved trade. Rules are evaluated in the order the teacher's gate.go
// lists them; the first failing rule's message is returned.
func (g *Gate) CanEnter(req TradeRequest) Approval {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkDayReset()

	reject := func(msg string) Approval {
		log.Debug().Str("condition_id", req.ConditionID).Str("reason", msg).Msg("🚫 trade rejected")
		return Approval{Approved: false, RejectionMsg: msg}
	}

	if g.circuitTripped {
		if time.Since(g.circuitTrippedAt) < g.cfg.CircuitCooldown {
			return reject("circuit breaker active")
		}
		g.circuitTripped = false
		g.consecutiveLosses = 0
		log.Info().Msg("✅ circuit breaker reset after cooldown")
	}

	dailyLossFloor := g.cfg.MaxDailyLoss.Neg()
	if g.dailyPnL.LessThan(dailyLossFloor) {
		return reject("daily loss limit hit")
	}

	if g.cfg.MaxDailyTrades > 0 && g.dailyTrades >= g.cfg.MaxDailyTrades {
		return reject("daily trade count limit hit")
	}

	if g.marketDisabled[req.ConditionID] {
		return reject("market disabled after repeated losses")
	}

	if _, open := g.marketOpen[req.ConditionID]; open {
		return reject("already have a position on this market")
	}

	if lastExit, ok := g.marketLastExit[req.ConditionID]; ok {
		if remaining := g.cfg.TradeCooldown - time.Since(lastExit); remaining > 0 {
			return reject(fmt.Sprintf("cooldown active (%.0fs remaining)", remaining.Seconds()))
		}
	}

	if !req.Liquidity.IsZero() && req.Liquidity.LessThan(g.cfg.MinLiquidity) {
		return reject("market liquidity below floor")
	}

	adjustedSize := g.sizeForEntry(req)
	positionValue := req.Price.Mul(adjustedSize)
	if g.totalExposure.Add(positionValue).GreaterThan(g.cfg.MaxDailyExposure) {
		return reject("total exposure limit hit")
	}

	minSize := decimal.NewFromInt(1)
	if adjustedSize.LessThan(minSize) {
		return reject("position size too small after adjustments")
	}

	riskScore := g.calculateRiskScore(req)

	g.marketOpen[req.ConditionID] = positionValue
	g.totalExposure = g.totalExposure.Add(positionValue)
	g.dailyTrades++

	log.Info().
		Str("condition_id", req.ConditionID).
		Str("side", req.Side).
		Str("size", adjustedSize.String()).
		Float64("risk_score", riskScore).
		Msg("✅ trade approved by risk gate")

	return Approval{Approved: true, AdjustedSize: adjustedSize, RiskScore: riskScore}
}

// sizeForEntry clamps the requested size so that price × size stays within
// the flat per-bet dollar cap (config.RiskConfig.MaxBetSize), truncated to
// two decimals. Current balance is not consulted: the teacher's
// MAX_POSITION_PCT rule is expressed here as that flat dollar cap rather
// than a percentage, consistent with how this project's config already
// shapes risk limits.
func (g *Gate) sizeForEntry(req TradeRequest) decimal.Decimal {
	size := req.Size
	if !req.Price.IsZero() {
		if maxByBet := g.cfg.MaxBetSize.Div(req.Price); size.GreaterThan(maxByBet) {
			size = maxByBet
		}
	}
	return size.Truncate(2)
}

// calculateRiskScore returns a 0-100 score, monotone in consecutive losses,
// this market's loss history, and how deep into the daily loss budget
// today's PnL already sits.
func (g *Gate) calculateRiskScore(req TradeRequest) float64 {
	score := float64(g.consecutiveLosses) * 15
	score += float64(g.marketLosses[req.ConditionID]) * 20

	if g.dailyPnL.IsNegative() && !g.cfg.MaxDailyLoss.IsZero() {
		pctOfLimit := g.dailyPnL.Abs().Div(g.cfg.MaxDailyLoss).InexactFloat64() * 100
		score += pctOfLimit * 0.3
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// CanExit is almost always approved — trapping capital in a bad position to
// protect a risk metric defeats the point of having an exit manager.
func (g *Gate) CanExit(req TradeRequest) Approval {
	log.Debug().Str("condition_id", req.ConditionID).Msg("🔓 exit approved")
	return Approval{Approved: true, AdjustedSize: req.Size}
}

// RecordExit updates balance, daily PnL, exposure, and loss-streak state
// after a position closes. Must be called exactly once per position close.
func (g *Gate) RecordExit(conditionID string, pnl decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.currentBalance = g.currentBalance.Add(pnl)
	g.dailyPnL = g.dailyPnL.Add(pnl)

	if exposure, ok := g.marketOpen[conditionID]; ok {
		g.totalExposure = g.totalExposure.Sub(exposure)
		if g.totalExposure.IsNegative() {
			g.totalExposure = decimal.Zero
		}
		delete(g.marketOpen, conditionID)
	}
	g.marketLastExit[conditionID] = time.Now()

	if pnl.LessThan(decimal.Zero) {
		g.consecutiveLosses++
		g.marketLosses[conditionID]++

		if g.cfg.MaxConsecLosses > 0 && g.consecutiveLosses >= g.cfg.MaxConsecLosses {
			g.circuitTripped = true
			g.circuitTrippedAt = time.Now()
			log.Error().Int("consecutive_losses", g.consecutiveLosses).Msg("🚨 circuit breaker tripped")
			if g.onCircuitTrip != nil {
				g.onCircuitTrip("consecutive losses")
			}
		}

		if g.marketLosses[conditionID] >= 2 && !g.marketDisabled[conditionID] {
			g.marketDisabled[conditionID] = true
			log.Error().Str("condition_id", conditionID).Int("losses", g.marketLosses[conditionID]).
				Msg("🛑 market disabled after repeated losses")
		}

		log.Warn().Str("condition_id", conditionID).Str("pnl", pnl.String()).
			Int("consecutive_losses", g.consecutiveLosses).Msg("📉 loss recorded")
	} else {
		g.consecutiveLosses = 0
		log.Info().Str("condition_id", conditionID).Str("pnl", pnl.String()).Msg("📈 win recorded")
	}
}

// checkDayReset resets daily-scoped counters at local midnight rollover.
func (g *Gate) checkDayReset() {
	today := time.Now().YearDay()
	if g.lastResetDay != today {
		g.dailyPnL = decimal.Zero
		g.dailyStartBalance = g.currentBalance
		g.dailyTrades = 0
		g.lastResetDay = today
		g.consecutiveLosses = 0
		g.circuitTripped = false
		g.marketLosses = make(map[string]int)
		g.marketDisabled = make(map[string]bool)
		log.Info().Str("balance", g.currentBalance.String()).Msg("📅 daily risk stats reset")
	}
}

// SetBalance updates the balance the gate sizes against, e.g. after the
// balance manager refreshes from the venue.
func (g *Gate) SetBalance(balance decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.currentBalance = balance
	if g.dailyStartBalance.IsZero() {
		g.dailyStartBalance = balance
	}
}

// Stats is a snapshot of the gate's current risk posture, for the alerting
// package's periodic stats digest.
type Stats struct {
	Balance           decimal.Decimal
	DailyPnL          decimal.Decimal
	DailyTrades       int
	TotalExposure     decimal.Decimal
	ConsecutiveLosses int
	CircuitTripped    bool
	DisabledMarkets   int
}

func (g *Gate) GetStats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Balance:           g.currentBalance,
		DailyPnL:          g.dailyPnL,
		DailyTrades:       g.dailyTrades,
		TotalExposure:     g.totalExposure,
		ConsecutiveLosses: g.consecutiveLosses,
		CircuitTripped:    g.circuitTripped,
		DisabledMarkets:   len(g.marketDisabled),
	}
}

// OnCircuitTrip registers a callback fired whenever the circuit breaker trips.
func (g *Gate) OnCircuitTrip(fn func(reason string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onCircuitTrip = fn
}

func (g *Gate) IsMarketDisabled(conditionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.marketDisabled[conditionID]
}

func (g *Gate) IsDailyLimitHit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dailyPnL.LessThan(g.cfg.MaxDailyLoss.Neg())
}

func (g *Gate) IsCircuitTripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.circuitTripped
}
