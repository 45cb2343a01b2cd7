package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
	"github.com/web3guy0/polybot/internal/sync"
)

// UniverseFetcher paginates all known markets and folds them into
// storage.MarketUniverse/Market/OutcomeToken rows, retaining price
// snapshots for later 1h/24h change computation. It is the single
// implementation behind sync.Fetcher — the three duplicated sync scripts
// the original implementation carried are folded into one fetcher whose
// SyncMarkets takes sync.FetchOptions (PriceOnly, TopN) to pick the scope
// (see DESIGN.md Open Question decision #3).
type UniverseFetcher struct {
	rest      *RESTClient
	markets   *storage.MarketRepository
	tokens    *storage.TokenRepository
	universe  *storage.UniverseRepository
	snapshots *storage.PriceSnapshotRepository

	pageSize         int
	maxPages         int
	interPageDelay   time.Duration
}

func NewUniverseFetcher(
	rest *RESTClient,
	markets *storage.MarketRepository,
	tokens *storage.TokenRepository,
	universe *storage.UniverseRepository,
	snapshots *storage.PriceSnapshotRepository,
	interPageDelay time.Duration,
) *UniverseFetcher {
	return &UniverseFetcher{
		rest:           rest,
		markets:        markets,
		tokens:         tokens,
		universe:       universe,
		snapshots:      snapshots,
		pageSize:       100,
		maxPages:       200,
		interPageDelay: interPageDelay,
	}
}

// SyncMarkets implements sync.Fetcher. A full sync paginates the entire
// active market set; a price-only sync saves fresh price snapshots only for
// the markets currently at tier 2 and tier 3 (up to opts.TopN of each,
// highest interestingness score first) to keep the 1h/24h price-change
// series warm without re-pulling metadata on every short interval. The
// price-only selection does not rank markets by volume.
func (f *UniverseFetcher) SyncMarkets(ctx context.Context, opts sync.FetchOptions) (int, error) {
	if opts.PriceOnly {
		return f.syncTopByVolume(ctx, opts.TopN)
	}
	return f.syncAll(ctx)
}

func (f *UniverseFetcher) syncAll(ctx context.Context) (int, error) {
	count := 0
	offset := 0
	for page := 0; page < f.maxPages; page++ {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		markets, err := f.rest.GetMarketsPage(f.pageSize, offset, true)
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("📡 markets page fetch failed")
			break
		}
		if len(markets) == 0 {
			break
		}

		for _, m := range markets {
			if err := f.upsertMarket(m); err != nil {
				log.Warn().Err(err).Str("condition_id", m.ConditionID).Msg("📡 failed to upsert market")
				continue
			}
			count++
		}

		offset += f.pageSize
		time.Sleep(f.interPageDelay)
	}
	log.Info().Int("count", count).Msg("📡 universe sync complete")
	return count, nil
}

// syncTopByVolume refreshes price snapshots for only the tracked markets
// worth watching closely (tier 2/3), stopping once every tracked market has
// been seen or maxPages is exhausted — cheaper than a full metadata sync,
// since it still walks the paginated markets feed but skips anything
// outside the tracked set instead of re-upserting every market and token.
func (f *UniverseFetcher) syncTopByVolume(ctx context.Context, topN int) (int, error) {
	if topN <= 0 {
		topN = 200
	}
	tier2, err := f.universe.TopByScore(storage.Tier2Candles, 0, topN)
	if err != nil {
		return 0, err
	}
	tier3, err := f.universe.TopByScore(storage.Tier3FullBook, 0, topN)
	if err != nil {
		return 0, err
	}
	tracked := make(map[string]struct{}, len(tier2)+len(tier3))
	for _, u := range tier2 {
		tracked[u.ConditionID] = struct{}{}
	}
	for _, u := range tier3 {
		tracked[u.ConditionID] = struct{}{}
	}

	count := 0
	offset := 0
	for page := 0; page < f.maxPages && len(tracked) > 0; page++ {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		markets, err := f.rest.GetMarketsPage(f.pageSize, offset, true)
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("📡 price-only page fetch failed")
			break
		}
		if len(markets) == 0 {
			break
		}

		for _, m := range markets {
			if _, watched := tracked[m.ConditionID]; !watched || !m.HasPrice {
				continue
			}
			if err := f.snapshots.Save(&storage.PriceSnapshot{
				ConditionID: m.ConditionID,
				Price:       m.Price,
				Volume24h:   m.Volume24h,
				SnapshotAt:  time.Now().UTC(),
			}); err != nil {
				log.Warn().Err(err).Str("condition_id", m.ConditionID).Msg("📡 failed to save price snapshot")
				continue
			}
			delete(tracked, m.ConditionID)
			count++
		}

		offset += f.pageSize
		time.Sleep(f.interPageDelay)
	}
	return count, nil
}

func (f *UniverseFetcher) upsertMarket(m RawMarket) error {
	market := &storage.Market{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Category:    m.Category,
		Resolved:    m.Resolved,
	}
	if m.HasEndTime {
		market.EndTime = m.EndTime
	}
	if err := f.markets.Upsert(market); err != nil {
		return err
	}

	for _, t := range m.Tokens {
		if err := f.tokens.Upsert(&storage.OutcomeToken{
			TokenID:      t.TokenID,
			ConditionID:  m.ConditionID,
			OutcomeIndex: t.OutcomeIndex,
			Outcome:      t.Outcome,
		}); err != nil {
			return err
		}
	}

	universeRow := &storage.MarketUniverse{
		ConditionID: m.ConditionID,
		Tier:        storage.Tier1Metadata,
		Volume24h:   m.Volume24h,
	}
	if existing, err := f.universe.GetByCondition(m.ConditionID); err == nil && existing != nil {
		universeRow.Tier = existing.Tier
		universeRow.PinnedTier = existing.PinnedTier
		universeRow.InterestingnessScore = existing.InterestingnessScore
		universeRow.ScoreBelowThresholdSince = existing.ScoreBelowThresholdSince
	}
	if err := f.universe.Upsert(universeRow); err != nil {
		return err
	}

	if m.HasPrice {
		return f.snapshots.Save(&storage.PriceSnapshot{
			ConditionID: m.ConditionID,
			Price:       m.Price,
			Volume24h:   m.Volume24h,
			SnapshotAt:  time.Now().UTC(),
		})
	}
	return nil
}

// PriceChanges computes the 1h and 24h percentage change for a market from
// its retained snapshots, returning ok=false when there isn't enough
// history yet.
func PriceChanges(snapshots *storage.PriceSnapshotRepository, conditionID string, current decimal.Decimal, now time.Time) (change1h, change24h float64, ok1h, ok24h bool) {
	if s, err := snapshots.Nearest(conditionID, now.Add(-time.Hour)); err == nil && s != nil && !s.Price.IsZero() {
		change1h = current.Sub(s.Price).Div(s.Price).InexactFloat64()
		ok1h = true
	}
	if s, err := snapshots.Nearest(conditionID, now.Add(-24*time.Hour)); err == nil && s != nil && !s.Price.IsZero() {
		change24h = current.Sub(s.Price).Div(s.Price).InexactFloat64()
		ok24h = true
	}
	return
}
