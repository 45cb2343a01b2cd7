package storage

// Repos bundles every repository over a single Store, so callers wire one
// struct instead of constructing each repository individually.
type Repos struct {
	Store *Store

	Markets    *MarketRepository
	Tokens     *TokenRepository
	Trades     *TradeRepository
	Triggers   *TriggerRepository
	Candidates *CandidateRepository
	Orders     *OrderRepository
	Positions  *PositionRepository
	Exits      *ExitRepository
	Watermarks *WatermarkRepository
	Universe   *UniverseRepository
	Approvals  *ApprovalRepository
	SyncRuns   *SyncRunRepository
	DailyStats *DailyStatsRepository
	Watchlist  *WatchlistRepository
	PriceSnapshots *PriceSnapshotRepository
}

// NewRepos constructs every repository bound to store.
func NewRepos(store *Store) *Repos {
	return &Repos{
		Store:      store,
		Markets:    NewMarketRepository(store),
		Tokens:     NewTokenRepository(store),
		Trades:     NewTradeRepository(store),
		Triggers:   NewTriggerRepository(store),
		Candidates: NewCandidateRepository(store),
		Orders:     NewOrderRepository(store),
		Positions:  NewPositionRepository(store),
		Exits:      NewExitRepository(store),
		Watermarks: NewWatermarkRepository(store),
		Universe:   NewUniverseRepository(store),
		Approvals:  NewApprovalRepository(store),
		SyncRuns:   NewSyncRunRepository(store),
		DailyStats: NewDailyStatsRepository(store),
		Watchlist:  NewWatchlistRepository(store),
		PriceSnapshots: NewPriceSnapshotRepository(store),
	}
}
