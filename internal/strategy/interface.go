// Package strategy defines the plug-in contract candidate evaluation runs
// against: a Strategy consumes a StrategyContext and either emits a Signal
// approving the candidate for execution, or returns nil to pass.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/eventproc"
)

// Strategy is the interface every strategy plugin implements.
type Strategy interface {
	// Name returns the strategy identifier recorded on Order.Strategy.
	Name() string

	// Evaluate inspects a filter-passed StrategyContext and returns a
	// Signal approving the candidate, or nil to pass.
	Evaluate(ctx eventproc.StrategyContext) *Signal

	// Enabled reports whether the strategy is active.
	Enabled() bool
}

// Signal is a trade recommendation from a strategy, carrying enough
// context for the candidate/execution pipeline to act on it.
type Signal struct {
	ConditionID string
	TokenID     string
	Threshold   decimal.Decimal
	CandidateID uint
	Side        string // "BUY" or "SELL"
	Entry       decimal.Decimal
	Size        decimal.Decimal
	Confidence  decimal.Decimal
	Reason      string
	Strategy    string
}

// SignalBuilder constructs a Signal with fluent setters, matching the
// teacher's builder idiom.
type SignalBuilder struct {
	signal *Signal
}

func NewSignal() *SignalBuilder {
	return &SignalBuilder{signal: &Signal{Side: "BUY", Confidence: decimal.NewFromFloat(0.5)}}
}

func (b *SignalBuilder) ConditionID(v string) *SignalBuilder { b.signal.ConditionID = v; return b }
func (b *SignalBuilder) TokenID(v string) *SignalBuilder     { b.signal.TokenID = v; return b }
func (b *SignalBuilder) Threshold(v decimal.Decimal) *SignalBuilder {
	b.signal.Threshold = v
	return b
}
func (b *SignalBuilder) CandidateID(v uint) *SignalBuilder { b.signal.CandidateID = v; return b }
func (b *SignalBuilder) Side(v string) *SignalBuilder      { b.signal.Side = v; return b }
func (b *SignalBuilder) Entry(v decimal.Decimal) *SignalBuilder {
	b.signal.Entry = v
	return b
}
func (b *SignalBuilder) Size(v decimal.Decimal) *SignalBuilder { b.signal.Size = v; return b }
func (b *SignalBuilder) Confidence(v decimal.Decimal) *SignalBuilder {
	b.signal.Confidence = v
	return b
}
func (b *SignalBuilder) Reason(v string) *SignalBuilder   { b.signal.Reason = v; return b }
func (b *SignalBuilder) Strategy(v string) *SignalBuilder { b.signal.Strategy = v; return b }
func (b *SignalBuilder) Build() *Signal                   { return b.signal }

// Validate reports whether a Signal is well-formed enough to submit.
func (s *Signal) Validate() bool {
	if s.ConditionID == "" || s.TokenID == "" {
		return false
	}
	if s.Entry.IsZero() || s.Size.IsZero() {
		return false
	}
	return s.Side == "BUY" || s.Side == "SELL"
}

// ThresholdCross is the default strategy: while enabled it emits a BUY
// signal at ctx.Price, with confidence 1, for every candidate it is handed.
// Evaluate checks neither price nor score itself; minConfidence is stored
// but not consulted.
type ThresholdCross struct {
	minConfidence decimal.Decimal
	size          decimal.Decimal
	enabled       bool
}

func NewThresholdCross(minConfidence, size decimal.Decimal) *ThresholdCross {
	return &ThresholdCross{minConfidence: minConfidence, size: size, enabled: true}
}

func (s *ThresholdCross) Name() string    { return "threshold_cross" }
func (s *ThresholdCross) Enabled() bool   { return s.enabled }
func (s *ThresholdCross) SetEnabled(v bool) { s.enabled = v }

func (s *ThresholdCross) Evaluate(ctx eventproc.StrategyContext) *Signal {
	if !s.enabled {
		return nil
	}
	return NewSignal().
		ConditionID(ctx.ConditionID).
		TokenID(ctx.TokenID).
		Side("BUY").
		Entry(ctx.Price).
		Size(s.size).
		Confidence(decimal.NewFromFloat(1)).
		Reason("price crossed watched threshold").
		Strategy(s.Name()).
		Build()
}
