// Package ingestion pulls markets and trades from the venue over REST, and
// order-book/price events over a persistent WebSocket, normalizing both
// into the shapes the rest of the pipeline understands. Grounded on the
// teacher's internal/polymarket/ws_client.go (reconnect/resubscribe loop)
// and 0xtitan6-polymarket-mm's internal/exchange/client.go (resty-based
// REST client with retry).
package ingestion

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTrade is a single trade row as returned by the venue's trades endpoint.
type RawTrade struct {
	TradeID     string
	ConditionID string
	TokenID     string
	Price       decimal.Decimal
	Size        decimal.Decimal
	Side        string
	Timestamp   time.Time
}

// RawMarket is a parsed venue market/condition, defensively extracted from
// the Gamma API's camelCase, nested-JSON-string response shape.
type RawMarket struct {
	ConditionID string
	Question    string
	Category    string
	EndTime     time.Time
	HasEndTime  bool
	Resolved    bool
	Tokens      []RawToken

	Price         decimal.Decimal
	HasPrice      bool
	BestBid       decimal.Decimal
	BestAsk       decimal.Decimal
	HasSpread     bool
	Volume24h     decimal.Decimal
	VolumeTotal   decimal.Decimal
	Liquidity     decimal.Decimal
}

// RawToken is one outcome token belonging to a RawMarket.
type RawToken struct {
	TokenID      string
	Outcome      string
	OutcomeIndex int
}

// PriceSnapshot is a point-in-time price reading for a market, retained to
// compute 1h/24h price-change scores.
type PriceSnapshot struct {
	ConditionID string
	Price       decimal.Decimal
	Volume24h   decimal.Decimal
	SnapshotAt  time.Time
}
