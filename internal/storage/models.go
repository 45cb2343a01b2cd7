package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market mirrors a condition on the venue.
type Market struct {
	ConditionID      string `gorm:"column:condition_id;primaryKey"`
	Question         string
	Category         string
	EndTime          time.Time
	Resolved         bool
	ResolvedOutcome  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Market) TableName() string { return "markets" }

// OutcomeToken is one tradeable side of a Market.
type OutcomeToken struct {
	TokenID      string `gorm:"column:token_id;primaryKey"`
	ConditionID  string `gorm:"column:condition_id;index"`
	OutcomeIndex int
	Outcome      string
	CreatedAt    time.Time
}

func (OutcomeToken) TableName() string { return "outcome_tokens" }

// Trade is an immutable ingested trade record, unique on (condition_id, trade_id).
type Trade struct {
	ConditionID string `gorm:"column:condition_id;primaryKey"`
	TradeID     string `gorm:"column:trade_id;primaryKey"`
	TokenID     string `gorm:"column:token_id;index"`
	Price       decimal.Decimal `gorm:"type:decimal(10,6)"`
	Size        decimal.Decimal `gorm:"type:decimal(20,6)"`
	Side        string
	Timestamp   time.Time
	CreatedAt   time.Time
}

func (Trade) TableName() string { return "trades" }

// Trigger records the first time (token_id, condition_id, threshold) crossed
// threshold. Immutable once inserted; dual-key uniqueness on
// (condition_id, threshold) is enforced by TriggerRepository.TryRecordAtomic,
// not by a database constraint alone (see that method's doc comment).
type Trigger struct {
	TokenID     string `gorm:"column:token_id;primaryKey"`
	ConditionID string `gorm:"column:condition_id;primaryKey"`
	Threshold   decimal.Decimal `gorm:"column:threshold;primaryKey;type:decimal(10,6)"`
	Price       decimal.Decimal `gorm:"type:decimal(10,6)"`
	Size        decimal.Decimal `gorm:"type:decimal(20,6)"`
	Score       float64
	Outcome     string
	TriggeredAt time.Time
	CreatedAt   time.Time
}

func (Trigger) TableName() string { return "triggers" }

// WatchlistStatus is the lifecycle state of a WatchlistItem.
type WatchlistStatus string

const (
	WatchlistWatching WatchlistStatus = "watching"
	WatchlistPromoted WatchlistStatus = "promoted"
	WatchlistExpired  WatchlistStatus = "expired"
)

// WatchlistItem is a token under rescoring, one row per token_id.
type WatchlistItem struct {
	TokenID          string `gorm:"column:token_id;primaryKey"`
	ConditionID      string `gorm:"index"`
	Question         string
	TriggerPrice     decimal.Decimal `gorm:"type:decimal(10,6)"`
	TriggerSize      decimal.Decimal `gorm:"type:decimal(20,6)"`
	InitialScore     float64
	CurrentScore     float64
	TimeToEndHours   float64
	LastScoredAt     time.Time
	Status           WatchlistStatus `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (WatchlistItem) TableName() string { return "trade_watchlist" }

// ScoreHistory is an append-only per-token score trail for diagnostics.
type ScoreHistory struct {
	ID             uint `gorm:"primaryKey;autoIncrement"`
	TokenID        string `gorm:"index"`
	Score          float64
	TimeToEndHours float64
	ScoredAt       time.Time
}

func (ScoreHistory) TableName() string { return "score_history" }

// CandidateStatus is the strategy-evaluation state of a Candidate.
type CandidateStatus string

const (
	CandidatePending  CandidateStatus = "pending"
	CandidateApproved CandidateStatus = "approved"
	CandidateRejected CandidateStatus = "rejected"
	CandidateExecuted CandidateStatus = "executed"
)

// Candidate is a trigger under strategy evaluation.
type Candidate struct {
	ID           uint `gorm:"primaryKey;autoIncrement"`
	TokenID      string `gorm:"index"`
	ConditionID  string `gorm:"index"`
	Threshold    decimal.Decimal `gorm:"type:decimal(10,6)"`
	Question     string
	Status       CandidateStatus `gorm:"index"`
	Score        float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Candidate) TableName() string { return "candidates" }

// OrderStatus is the venue-visible lifecycle state of an Order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderLive      OrderStatus = "LIVE"
	OrderPartial   OrderStatus = "PARTIAL"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRejected  OrderStatus = "REJECTED"
)

// OrderMode discriminates paper vs. live orders within a single table
// (see DESIGN.md "Open Question decisions" #4).
type OrderMode string

const (
	ModePaper OrderMode = "paper"
	ModeLive  OrderMode = "live"
)

// Order is created when submitted and mutated only by the order manager.
type Order struct {
	OrderID      string `gorm:"primaryKey"`
	ClientID     string `gorm:"index"`
	TokenID      string `gorm:"index"`
	ConditionID  string `gorm:"index"`
	Side         string
	Mode         OrderMode
	Price        decimal.Decimal `gorm:"type:decimal(10,6)"`
	Size         decimal.Decimal `gorm:"type:decimal(20,6)"`
	FilledSize   decimal.Decimal `gorm:"type:decimal(20,6)"`
	AvgFillPrice decimal.Decimal `gorm:"type:decimal(10,6)"`
	Status       OrderStatus     `gorm:"index"`
	Strategy     string
	SubmittedAt  time.Time
	UpdatedAt    time.Time
}

func (Order) TableName() string { return "orders" }

// PositionStatus is the lifecycle state of a Position.
type PositionStatus string

const (
	PositionOpen     PositionStatus = "open"
	PositionClosed   PositionStatus = "closed"
	PositionResolved PositionStatus = "resolved"
)

// Position aggregates fills into a size-weighted-average entry.
type Position struct {
	PositionID    string `gorm:"primaryKey"`
	TokenID       string `gorm:"index"`
	ConditionID   string `gorm:"index"`
	Size          decimal.Decimal `gorm:"type:decimal(20,6)"`
	EntryPrice    decimal.Decimal `gorm:"type:decimal(10,6)"`
	EntryCost     decimal.Decimal `gorm:"type:decimal(20,6)"`
	EntryTime     time.Time
	HoldStartAt   time.Time
	RealizedPnL   decimal.Decimal `gorm:"type:decimal(20,6)"`
	CurrentPrice  decimal.Decimal `gorm:"type:decimal(10,6)"`
	UnrealizedPnL decimal.Decimal `gorm:"type:decimal(20,6)"`
	Status        PositionStatus `gorm:"index"`
	ExitOrderID   string
	ExitTimestamp *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Position) TableName() string { return "positions" }

// ExitType enumerates why a position was closed.
type ExitType string

const (
	ExitProfitTarget ExitType = "profit_target"
	ExitStopLoss     ExitType = "stop_loss"
	ExitTimeExit     ExitType = "time_exit"
	ExitResolution   ExitType = "resolution"
	ExitManual       ExitType = "manual"
)

// ExitStatus tracks whether an ExitEvent has completed on the venue.
type ExitStatus string

const (
	ExitPending  ExitStatus = "pending"
	ExitExecuted ExitStatus = "executed"
)

// ExitEvent is the audit record of a position close.
type ExitEvent struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	PositionID  string `gorm:"index"`
	ExitType    ExitType
	EntryPrice  decimal.Decimal `gorm:"type:decimal(10,6)"`
	ExitPrice   decimal.Decimal `gorm:"type:decimal(10,6)"`
	Size        decimal.Decimal `gorm:"type:decimal(20,6)"`
	GrossPnL    decimal.Decimal `gorm:"type:decimal(20,6)"`
	NetPnL      decimal.Decimal `gorm:"type:decimal(20,6)"`
	HoursHeld   float64
	Status      ExitStatus
	CreatedAt   time.Time
}

func (ExitEvent) TableName() string { return "exit_events" }

// Watermark is a monotonically advancing per-stream marker, one row per
// (stream, key) pair.
type Watermark struct {
	Stream    string `gorm:"primaryKey"`
	Key       string `gorm:"primaryKey"`
	Value     int64
	UpdatedAt time.Time
}

func (Watermark) TableName() string { return "watermarks" }

// Tier is the data-depth tier of a MarketUniverse row.
type Tier int

const (
	Tier1Metadata Tier = 1
	Tier2Candles  Tier = 2
	Tier3FullBook Tier = 3
)

// MarketUniverse is the per-market scoring/tiering record.
type MarketUniverse struct {
	ConditionID            string `gorm:"column:condition_id;primaryKey"`
	Tier                   Tier   `gorm:"index"`
	InterestingnessScore   float64
	PinnedTier             *Tier
	LastStrategySignalAt   *time.Time
	ScoreBelowThresholdSince *time.Time
	Volume24h              decimal.Decimal `gorm:"type:decimal(20,2)"`
	PriceChange1h          decimal.Decimal `gorm:"type:decimal(10,6)"`
	PriceChange24h         decimal.Decimal `gorm:"type:decimal(10,6)"`
	UpdatedAt              time.Time
}

func (MarketUniverse) TableName() string { return "market_universe" }

// TierRequest is a strategy-issued request to promote a market to a target tier.
type TierRequest struct {
	ID           uint `gorm:"primaryKey;autoIncrement"`
	ConditionID  string `gorm:"index"`
	RequestedTier Tier
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

func (TierRequest) TableName() string { return "tier_requests" }

// ApprovalStatus tracks a human-in-the-loop authorization.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalExecuted ApprovalStatus = "executed"
	ApprovalExpired  ApprovalStatus = "expired"
)

// Approval is an optional per-token authorization above the standard price cap.
type Approval struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	TokenID   string `gorm:"index"`
	MaxPrice  decimal.Decimal `gorm:"type:decimal(10,6)"`
	ExpiresAt time.Time
	Status    ApprovalStatus
	CreatedAt time.Time
}

func (Approval) TableName() string { return "approvals" }

// SyncRunStatus is the outcome of a Sync Service iteration.
type SyncRunStatus string

const (
	SyncRunning SyncRunStatus = "running"
	SyncSuccess SyncRunStatus = "success"
	SyncFailed  SyncRunStatus = "failed"
	SyncSkipped SyncRunStatus = "skipped"
)

// SyncRun is an audit row for one Sync Service iteration.
type SyncRun struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	Scope       string `gorm:"index"` // "full" or "price"
	Status      SyncRunStatus
	StartedAt   time.Time
	FinishedAt  *time.Time
	DurationMs  int64
	RecordCount int
	Error       string
}

func (SyncRun) TableName() string { return "sync_runs" }

// DailyStats is the daily trading rollup used by the alerting /stats command.
type DailyStats struct {
	Date    string `gorm:"primaryKey"` // YYYY-MM-DD
	Trades  int
	Wins    int
	Losses  int
	PnL     decimal.Decimal `gorm:"type:decimal(20,6)"`
	Equity  decimal.Decimal `gorm:"type:decimal(20,6)"`
}

func (DailyStats) TableName() string { return "daily_stats" }

// PriceSnapshot is a point-in-time price reading for a market, retained so
// the universe fetcher can compute 1h/24h price-change scores without
// depending on the trades table (some markets have metadata but no trades
// yet).
type PriceSnapshot struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	ConditionID string `gorm:"index"`
	Price       decimal.Decimal `gorm:"type:decimal(10,6)"`
	Volume24h   decimal.Decimal `gorm:"type:decimal(20,2)"`
	SnapshotAt  time.Time `gorm:"index"`
}

func (PriceSnapshot) TableName() string { return "price_snapshots" }

// AllModels lists every model for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Market{}, &OutcomeToken{}, &Trade{}, &Trigger{}, &Candidate{},
		&Order{}, &Position{}, &ExitEvent{}, &Watermark{}, &MarketUniverse{},
		&TierRequest{}, &Approval{}, &SyncRun{}, &DailyStats{},
		&WatchlistItem{}, &ScoreHistory{}, &PriceSnapshot{},
	}
}
