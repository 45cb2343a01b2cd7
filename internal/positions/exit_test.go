package positions

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
)

func TestEvaluateExit_ProfitTarget(t *testing.T) {
	pos := storage.Position{PositionID: "p1", EntryTime: time.Now().Add(-time.Hour)}
	market := MarketState{CurrentPrice: decimal.NewFromFloat(0.99)}
	cfg := ExitConfig{ProfitTarget: decimal.NewFromFloat(0.99), StopLoss: decimal.NewFromFloat(0.9), TimeExitHours: 1}

	sig, ok := EvaluateExit(pos, market, cfg, 0)
	if !ok {
		t.Fatal("expected profit target exit")
	}
	if sig.ExitType != storage.ExitProfitTarget {
		t.Fatalf("expected profit_target, got %s", sig.ExitType)
	}
}

func TestEvaluateExit_RespectsHoldHours(t *testing.T) {
	pos := storage.Position{PositionID: "p1", EntryTime: time.Now()}
	market := MarketState{CurrentPrice: decimal.NewFromFloat(0.99)}
	cfg := ExitConfig{ProfitTarget: decimal.NewFromFloat(0.99), StopLoss: decimal.NewFromFloat(0.9), TimeExitHours: 1}

	_, ok := EvaluateExit(pos, market, cfg, 24)
	if ok {
		t.Fatal("expected no exit before hold_hours elapses")
	}
}

func TestEvaluateExit_TimeExit(t *testing.T) {
	pos := storage.Position{PositionID: "p1", EntryTime: time.Now()}
	market := MarketState{CurrentPrice: decimal.NewFromFloat(0.95), HasExpiry: true, TimeToEndHours: 0.5}
	cfg := ExitConfig{ProfitTarget: decimal.NewFromFloat(0.99), StopLoss: decimal.NewFromFloat(0.9), TimeExitHours: 1}

	sig, ok := EvaluateExit(pos, market, cfg, 0)
	if !ok || sig.ExitType != storage.ExitTimeExit {
		t.Fatalf("expected time_exit, got ok=%v type=%s", ok, sig.ExitType)
	}
}

func TestEvaluateExit_ResolutionLowestPriority(t *testing.T) {
	pos := storage.Position{PositionID: "p1", EntryTime: time.Now().Add(-time.Hour)}
	market := MarketState{CurrentPrice: decimal.NewFromFloat(0.99), Resolved: true}
	cfg := ExitConfig{ProfitTarget: decimal.NewFromFloat(0.99), StopLoss: decimal.NewFromFloat(0.9), TimeExitHours: 1}

	sig, ok := EvaluateExit(pos, market, cfg, 0)
	if !ok || sig.ExitType != storage.ExitProfitTarget {
		t.Fatalf("expected profit_target to win over resolution per listed ordering, got ok=%v type=%s", ok, sig.ExitType)
	}
}

func TestEvaluateExit_NoMatch(t *testing.T) {
	pos := storage.Position{PositionID: "p1", EntryTime: time.Now()}
	market := MarketState{CurrentPrice: decimal.NewFromFloat(0.95)}
	cfg := ExitConfig{ProfitTarget: decimal.NewFromFloat(0.99), StopLoss: decimal.NewFromFloat(0.9), TimeExitHours: 1}

	_, ok := EvaluateExit(pos, market, cfg, 0)
	if ok {
		t.Fatal("expected no exit signal when nothing matches")
	}
}
