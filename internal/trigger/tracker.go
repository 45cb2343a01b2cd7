// Package trigger wires event-processor output into the G2-safe
// first-trigger dedup and, on a genuine first trigger, creates a
// Candidate for strategy evaluation.
package trigger

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/eventproc"
	"github.com/web3guy0/polybot/internal/storage"
)

// Tracker evaluates a StrategyContext against a threshold and, if this is
// the first time (condition_id, threshold) has crossed, atomically records
// it and opens a Candidate.
type Tracker struct {
	triggers   *storage.TriggerRepository
	candidates *storage.CandidateRepository
}

func NewTracker(triggers *storage.TriggerRepository, candidates *storage.CandidateRepository) *Tracker {
	return &Tracker{triggers: triggers, candidates: candidates}
}

// Evaluate checks ctx against threshold. It returns the created candidate
// ID and true only when this call is the one that won the G2-safe dedup —
// every other caller (including one racing on a different token_id for the
// same condition) gets ok=false and must not proceed to strategy
// evaluation or order submission.
func (t *Tracker) Evaluate(ctx eventproc.StrategyContext, threshold decimal.Decimal, score float64) (uint, bool, error) {
	if !eventproc.MeetsThreshold(ctx.Price, threshold) {
		return 0, false, nil
	}

	won, err := t.triggers.TryRecordAtomic(ctx.TokenID, ctx.ConditionID, threshold, ctx.Price, ctx.Size, score, ctx.Outcome)
	if err != nil {
		return 0, false, err
	}
	if !won {
		return 0, false, nil
	}

	candidate := &storage.Candidate{
		TokenID:     ctx.TokenID,
		ConditionID: ctx.ConditionID,
		Threshold:   threshold,
		Question:    ctx.Question,
		Score:       score,
	}
	if err := t.candidates.Create(candidate); err != nil {
		return 0, false, err
	}
	return candidate.ID, true, nil
}
