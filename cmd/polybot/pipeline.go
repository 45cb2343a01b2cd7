package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/alerting"
	"github.com/web3guy0/polybot/internal/balance"
	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/eventproc"
	"github.com/web3guy0/polybot/internal/orders"
	"github.com/web3guy0/polybot/internal/positions"
	"github.com/web3guy0/polybot/internal/risk"
	"github.com/web3guy0/polybot/internal/storage"
	"github.com/web3guy0/polybot/internal/strategy"
	"github.com/web3guy0/polybot/internal/supervisor"
	"github.com/web3guy0/polybot/internal/tiermanager"
	"github.com/web3guy0/polybot/internal/trigger"
	"github.com/web3guy0/polybot/internal/watchlist"
)

// Pipeline wires the event-driven trigger/candidate path and the periodic
// watchlist/exit/tier maintenance loops. It holds every component the
// teacher's trading.Engine and bot.TelegramBot used to reach into each
// other directly for; here each method touches only the narrow
// repo/manager set it needs, and the Supervisor is the one place that
// holds the whole graph.
type Pipeline struct {
	cfg *config.Config
	sup *supervisor.Supervisor

	repos    *storage.Repos
	metadata *marketMetadataLookup

	riskGate     *risk.Gate
	strategies   []strategy.Strategy
	triggerTr    *trigger.Tracker
	watchlistSvc *watchlist.Service
	balanceMgr   *balance.Manager
	orderMgr     *orders.Manager
	posTracker   *positions.Tracker
	tierMgr      *tiermanager.Manager
	notifier     *alerting.Notifier

	mu          sync.Mutex
	latestPrice map[string]decimal.Decimal
}

// handleEvent is the WebSocket client's OnEvent callback: it is the only
// path by which a raw venue event becomes a Trigger/Candidate/Watchlist
// row. Every step before trigger.Evaluate is read-only filtering;
// trigger.Evaluate is the single point allowed to gate on first-trigger
// dedup (§4.4 — the non-atomic helpers must never be used for this).
func (p *Pipeline) handleEvent(e eventproc.RawEvent) {
	if !eventproc.ShouldProcess(e.Type) {
		return
	}

	now := time.Now().UTC()
	candidate, ok := eventproc.ExtractTrigger(e, now)
	if !ok {
		return
	}

	p.mu.Lock()
	p.latestPrice[candidate.TokenID] = candidate.Price
	p.mu.Unlock()

	if !eventproc.IsFresh(candidate.TradeAgeSeconds, p.cfg.MaxTradeAgeSeconds) {
		return
	}

	ctx := eventproc.BuildContext(candidate, p.metadata, now)
	if !eventproc.ApplyFilters(ctx, p.cfg.Watchlist.MinHoursToExpiry) {
		return
	}

	threshold := p.cfg.Watchlist.WatchlistMin
	initialScore := watchlist.Score(priceAsScore(ctx.Price), ctx.TimeToEndHours)

	_, won, err := p.triggerTr.Evaluate(ctx, threshold, initialScore)
	if err != nil {
		log.Error().Err(err).Str("token_id", ctx.TokenID).Msg("📡 trigger evaluation failed")
		return
	}
	if !won {
		return
	}

	if err := p.watchlistSvc.AddToWatchlist(
		ctx.TokenID, ctx.ConditionID, ctx.Question,
		decimal.NewFromFloat(initialScore), ctx.Price, ctx.Size, ctx.TimeToEndHours,
	); err != nil {
		log.Error().Err(err).Str("token_id", ctx.TokenID).Msg("📋 failed to add to watchlist")
	}

	log.Info().
		Str("condition_id", ctx.ConditionID).
		Str("token_id", ctx.TokenID).
		Str("price", ctx.Price.String()).
		Msg("🎯 first trigger recorded")

	if p.notifier != nil {
		p.notifier.NotifyTrigger(ctx.ConditionID, ctx.TokenID, ctx.Price, threshold, "price crossed watchlist threshold")
	}
}

func priceAsScore(price decimal.Decimal) float64 {
	f, _ := price.Float64()
	return f
}

// evaluateCandidates is the periodic watchlist rescoring/promotion cycle.
// While the supervisor is paused, rescoring and expiry still run (so
// watchlist state stays current) but no promoted token proceeds to
// strategy evaluation or order submission.
func (p *Pipeline) evaluateCandidates(ctx context.Context) error {
	promotions, err := p.watchlistSvc.RescoreAll()
	if err != nil {
		return err
	}
	if _, err := p.watchlistSvc.RemoveExpired(); err != nil {
		log.Warn().Err(err).Msg("📋 failed to expire near-closing watchlist entries")
	}

	if p.sup.Paused() {
		return nil
	}

	for _, promo := range promotions {
		p.tryExecute(promo)
	}
	return nil
}

func (p *Pipeline) tryExecute(promo watchlist.Promotion) {
	p.mu.Lock()
	price, known := p.latestPrice[promo.TokenID]
	p.mu.Unlock()
	if !known {
		log.Warn().Str("token_id", promo.TokenID).Msg("📈 promoted token has no cached live price, skipping")
		return
	}

	sctx := eventproc.StrategyContext{
		TokenID:     promo.TokenID,
		ConditionID: promo.ConditionID,
		Price:       price,
		Question:    promo.Question,
	}

	var signal *strategy.Signal
	for _, strat := range p.strategies {
		if !strat.Enabled() {
			continue
		}
		if s := strat.Evaluate(sctx); s != nil {
			signal = s
			break
		}
	}
	if signal == nil || !signal.Validate() {
		return
	}

	liquidity := decimal.Zero
	if market, err := p.repos.Universe.GetByCondition(promo.ConditionID); err == nil {
		liquidity = market.Volume24h
	}

	approval := p.riskGate.CanEnter(risk.TradeRequest{
		ConditionID: signal.ConditionID,
		TokenID:     signal.TokenID,
		Side:        signal.Side,
		Price:       signal.Entry,
		Size:        signal.Size,
		Strategy:    signal.Strategy,
		Liquidity:   liquidity,
	})
	if !approval.Approved {
		log.Info().
			Str("condition_id", signal.ConditionID).
			Str("reason", approval.RejectionMsg).
			Msg("🚫 risk gate rejected signal")
		return
	}

	order, err := p.orderMgr.Submit(signal.TokenID, signal.ConditionID, signal.Side, signal.Entry, approval.AdjustedSize, signal.Strategy)
	if err != nil {
		log.Error().Err(err).Str("condition_id", signal.ConditionID).Msg("📤 order submission failed")
		if p.notifier != nil {
			p.notifier.NotifyError(fmt.Errorf("order submission failed for %s: %w", signal.ConditionID, err))
		}
		return
	}
	if p.notifier != nil {
		p.notifier.NotifyOrder("SUBMITTED", *order)
	}

	if err := p.orderMgr.SyncStatus(order.OrderID); err != nil {
		log.Warn().Err(err).Str("order_id", order.OrderID).Msg("📤 order status sync failed")
		return
	}
	p.applyFillIfNeeded(order.OrderID)
}

// applyFillIfNeeded re-reads orderID from the order manager's cache and, if
// it is a BUY that has reached PARTIAL or FILLED since it was last seen,
// folds the newly-filled size into the position tracker. Shared between
// the post-submit sync in tryExecute and the periodic reconciliation loop,
// since both can be the one that first observes a fill.
func (p *Pipeline) applyFillIfNeeded(orderID string) {
	synced, ok := p.orderMgr.Get(orderID)
	if !ok {
		return
	}
	if !strings.EqualFold(synced.Side, "BUY") {
		return
	}
	if synced.Status != storage.OrderFilled && synced.Status != storage.OrderPartial {
		return
	}

	if err := p.posTracker.ApplyFill(synced.TokenID, synced.ConditionID, synced.Side, synced.FilledSize, synced.AvgFillPrice, p.cfg.Exit.HoldHoursOwnTrades); err != nil {
		log.Error().Err(err).Str("order_id", synced.OrderID).Msg("📦 failed to apply fill to position")
		return
	}
	if p.notifier != nil {
		p.notifier.NotifyOrder("FILLED", *synced)
	}
}

// reconcileOrders polls the venue for every cached order not yet in a
// terminal state. This is the only path that ever re-syncs an order
// rehydrated by LoadOrders, or a live order whose fill/cancel/reject
// happens after its one submit-time sync (§4.7, §5 "order reconciliation
// polling").
func (p *Pipeline) reconcileOrders(ctx context.Context) error {
	for _, orderID := range p.orderMgr.Outstanding() {
		if err := p.orderMgr.SyncStatus(orderID); err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("📤 order reconciliation sync failed")
			continue
		}
		p.applyFillIfNeeded(orderID)
	}
	return nil
}

// runExitCycle evaluates every open position against the exit rules each
// tick, independent of whether the supervisor is paused — closing
// existing risk is never gated on the pause flag, only opening new risk is.
func (p *Pipeline) runExitCycle(ctx context.Context) error {
	open, err := p.repos.Positions.OpenPositions()
	if err != nil {
		return err
	}
	for _, pos := range open {
		p.evaluateExit(pos)
	}
	return nil
}

func (p *Pipeline) evaluateExit(pos storage.Position) {
	p.mu.Lock()
	price, known := p.latestPrice[pos.TokenID]
	p.mu.Unlock()
	if !known {
		price = pos.CurrentPrice
	}
	if price.IsZero() {
		return
	}

	if err := p.posTracker.RefreshMark(pos.PositionID, price); err != nil {
		log.Warn().Err(err).Str("position_id", pos.PositionID).Msg("📦 failed to refresh mark price")
	}

	state := positions.MarketState{CurrentPrice: price}
	if market, err := p.repos.Markets.GetByCondition(pos.ConditionID); err == nil {
		state.HasExpiry = !market.EndTime.IsZero()
		state.TimeToEndHours = time.Until(market.EndTime).Hours()
		state.Resolved = market.Resolved
	}

	signal, ok := positions.EvaluateExit(pos, state, positions.ExitConfig{
		ProfitTarget:  p.cfg.Exit.ProfitTarget,
		StopLoss:      p.cfg.Exit.StopLoss,
		TimeExitHours: p.cfg.Exit.TimeExitHours,
	}, p.cfg.Exit.HoldHoursOwnTrades)
	if !ok {
		return
	}

	order, err := p.orderMgr.Submit(pos.TokenID, pos.ConditionID, "SELL", price, pos.Size, "exit_manager")
	if err != nil {
		log.Error().Err(err).Str("position_id", pos.PositionID).Msg("📤 exit order submission failed")
		return
	}
	if err := p.orderMgr.SyncStatus(order.OrderID); err != nil {
		log.Warn().Err(err).Str("order_id", order.OrderID).Msg("📤 exit order status sync failed")
	}

	if err := p.posTracker.ClosePosition(pos, price, signal.ExitType, order.OrderID); err != nil {
		log.Error().Err(err).Str("position_id", pos.PositionID).Msg("📦 failed to close position")
		return
	}

	netPnL := positions.CalculatePnL(pos, price)
	p.riskGate.RecordExit(pos.ConditionID, netPnL)

	if p.notifier != nil {
		p.notifier.NotifyExit(storage.ExitEvent{
			PositionID: pos.PositionID,
			ExitType:   signal.ExitType,
			EntryPrice: pos.EntryPrice,
			ExitPrice:  price,
			Size:       pos.Size,
			GrossPnL:   netPnL,
			NetPnL:     netPnL,
			HoursHeld:  time.Since(pos.EntryTime).Hours(),
		})
	}
}

func (p *Pipeline) runTierCycle(ctx context.Context) error {
	_, err := p.tierMgr.RunCycle()
	return err
}

func (p *Pipeline) clearStaleReservations(ctx context.Context) error {
	cleared := p.balanceMgr.ClearStaleReservations(time.Hour)
	if cleared > 0 {
		log.Info().Int("cleared", cleared).Msg("💰 cleared stale balance reservations")
	}
	return nil
}
