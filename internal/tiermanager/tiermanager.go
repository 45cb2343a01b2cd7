// Package tiermanager promotes and demotes markets across the three data
// depth tiers (metadata-only, candles, full book), subject to capacity
// limits, hysteresis between promotion/demotion thresholds, and manual
// pins. Generalized directly from original_source's tier_manager.py.
package tiermanager

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/storage"
)

// Limits caps how many markets may occupy tier 2 and tier 3 at once.
type Limits struct {
	Tier2Max int
	Tier3Max int
}

// Thresholds controls promotion/demotion score cutoffs. Promotion
// thresholds sit above demotion thresholds by design — this hysteresis
// gap is what stops a market oscillating across a tier boundary every
// cycle.
type Thresholds struct {
	PromoteToTier2Score  float64
	PromoteToTier3Score  float64
	DemoteFromTier3Score float64
	DemoteFromTier2Score float64
	Tier3InactivityHours float64
	Tier2LowScoreDays    float64
}

// Stats summarizes the outcome of one RunCycle call.
type Stats struct {
	PromotedToTier2  int
	PromotedToTier3  int
	DemotedToTier2   int
	DemotedToTier1   int
	RequestsProcessed int
}

// Manager drives the tier promotion/demotion cycle.
type Manager struct {
	universe   *storage.UniverseRepository
	positions  *storage.PositionRepository
	orders     *storage.OrderRepository
	limits     Limits
	thresholds Thresholds
}

func NewManager(universe *storage.UniverseRepository, positions *storage.PositionRepository, orders *storage.OrderRepository, limits Limits, thresholds Thresholds) *Manager {
	return &Manager{universe: universe, positions: positions, orders: orders, limits: limits, thresholds: thresholds}
}

// RunCycle executes one full promotion/demotion pass, in the fixed order
// the original service runs it: requests, promote 1->2, promote 2->3,
// demote 3->2, demote 2->1, cleanup. Each step's capacity accounting
// depends on the previous step having already applied its transitions.
func (m *Manager) RunCycle() (Stats, error) {
	var stats Stats
	var err error

	if stats.RequestsProcessed, err = m.processTierRequests(); err != nil {
		return stats, err
	}
	if stats.PromotedToTier2, err = m.promoteToTier2(); err != nil {
		return stats, err
	}
	if stats.PromotedToTier3, err = m.promoteToTier3(); err != nil {
		return stats, err
	}
	if stats.DemotedToTier2, err = m.demoteFromTier3(); err != nil {
		return stats, err
	}
	if stats.DemotedToTier1, err = m.demoteFromTier2(); err != nil {
		return stats, err
	}
	if err := m.universe.DeleteExpiredTierRequests(); err != nil {
		return stats, err
	}

	log.Info().
		Int("promoted_t2", stats.PromotedToTier2).
		Int("promoted_t3", stats.PromotedToTier3).
		Int("demoted_t2", stats.DemotedToTier2).
		Int("demoted_t1", stats.DemotedToTier1).
		Msg("🎚️ tier cycle complete")

	return stats, nil
}

func (m *Manager) processTierRequests() (int, error) {
	requests, err := m.universe.PendingTierRequests() // already ordered tier desc
	if err != nil {
		return 0, err
	}

	tier2Available, err := m.remainingCapacity(storage.Tier2Candles, m.limits.Tier2Max)
	if err != nil {
		return 0, err
	}
	tier3Available, err := m.remainingCapacity(storage.Tier3FullBook, m.limits.Tier3Max)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, req := range requests {
		switch req.RequestedTier {
		case storage.Tier3FullBook:
			if tier3Available <= 0 {
				continue
			}
			tier3Available--
		case storage.Tier2Candles:
			if tier2Available <= 0 {
				continue
			}
			tier2Available--
		default:
			continue
		}
		if err := m.universe.SetTier(req.ConditionID, req.RequestedTier); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (m *Manager) remainingCapacity(tier storage.Tier, max int) (int, error) {
	current, err := m.universe.CountByTier(tier)
	if err != nil {
		return 0, err
	}
	remaining := max - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (m *Manager) promoteToTier2() (int, error) {
	available, err := m.remainingCapacity(storage.Tier2Candles, m.limits.Tier2Max)
	if err != nil || available == 0 {
		return 0, err
	}

	candidates, err := m.universe.TopByScore(storage.Tier1Metadata, m.thresholds.PromoteToTier2Score, available)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, market := range candidates {
		if err := m.universe.SetTier(market.ConditionID, storage.Tier2Candles); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (m *Manager) promoteToTier3() (int, error) {
	available, err := m.remainingCapacity(storage.Tier3FullBook, m.limits.Tier3Max)
	if err != nil || available == 0 {
		return 0, err
	}

	active, err := m.activeConditions()
	if err != nil {
		return 0, err
	}

	count := 0
	// Priority 1: markets with an open position or order must be tier 3,
	// regardless of score.
	for conditionID := range active {
		if available <= 0 {
			break
		}
		if err := m.universe.SetTier(conditionID, storage.Tier3FullBook); err != nil {
			return count, err
		}
		count++
		available--
	}
	if available <= 0 {
		return count, nil
	}

	// Priority 2: highest-scoring tier-2 markets fill remaining capacity.
	candidates, err := m.universe.TopByScore(storage.Tier2Candles, m.thresholds.PromoteToTier3Score, available)
	if err != nil {
		return count, err
	}
	for _, market := range candidates {
		if active[market.ConditionID] {
			continue // already promoted above
		}
		if err := m.universe.SetTier(market.ConditionID, storage.Tier3FullBook); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// activeConditions returns the set of condition_ids with an open position
// or a non-terminal order — markets that may not be demoted out of tier 3
// regardless of score.
func (m *Manager) activeConditions() (map[string]bool, error) {
	active := make(map[string]bool)

	positions, err := m.positions.OpenPositions()
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		if p.ConditionID != "" {
			active[p.ConditionID] = true
		}
	}

	orders, err := m.orders.OpenOrders()
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.ConditionID != "" {
			active[o.ConditionID] = true
		}
	}
	return active, nil
}

func (m *Manager) demoteFromTier3() (int, error) {
	protected, err := m.activeConditions()
	if err != nil {
		return 0, err
	}

	markets, err := m.universe.ByTier(storage.Tier3FullBook)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-time.Duration(m.thresholds.Tier3InactivityHours * float64(time.Hour)))

	count := 0
	for _, market := range markets {
		if protected[market.ConditionID] {
			continue
		}
		if market.PinnedTier != nil && *market.PinnedTier >= storage.Tier3FullBook {
			continue
		}
		if market.LastStrategySignalAt != nil && !market.LastStrategySignalAt.Before(cutoff) {
			continue
		}
		if market.InterestingnessScore >= m.thresholds.DemoteFromTier3Score {
			continue
		}
		if err := m.universe.SetTier(market.ConditionID, storage.Tier2Candles); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (m *Manager) demoteFromTier2() (int, error) {
	markets, err := m.universe.ByTier(storage.Tier2Candles)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -int(m.thresholds.Tier2LowScoreDays))

	count := 0
	for _, market := range markets {
		if market.PinnedTier != nil && *market.PinnedTier >= storage.Tier2Candles {
			continue
		}
		if market.InterestingnessScore >= m.thresholds.DemoteFromTier2Score {
			continue
		}
		if market.ScoreBelowThresholdSince == nil || market.ScoreBelowThresholdSince.After(cutoff) {
			continue
		}
		if err := m.universe.SetTier(market.ConditionID, storage.Tier1Metadata); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// RequestTier records a strategy-issued request to promote conditionID to
// tier, expiring after ttl.
func (m *Manager) RequestTier(conditionID string, tier storage.Tier, ttl time.Duration) error {
	return m.universe.CreateTierRequest(&storage.TierRequest{
		ConditionID:   conditionID,
		RequestedTier: tier,
		ExpiresAt:     time.Now().UTC().Add(ttl),
	})
}

// UpdateScores recomputes and persists interestingness scores for a batch
// of markets, maintaining score_below_threshold_since against the demotion
// threshold applicable to that market's current tier.
func (m *Manager) UpdateScores(scores map[string]float64) (int, error) {
	updated := 0
	for conditionID, score := range scores {
		market, err := m.universe.GetByCondition(conditionID)
		if err != nil {
			log.Warn().Err(err).Str("condition_id", conditionID).Msg("🎚️ skip score update for unknown market")
			continue
		}
		belowThreshold := m.thresholds.DemoteFromTier2Score
		if market.Tier == storage.Tier3FullBook {
			belowThreshold = m.thresholds.DemoteFromTier3Score
		}
		if err := m.universe.UpdateScore(conditionID, score, belowThreshold); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
