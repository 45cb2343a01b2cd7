// Package eventproc turns raw venue events into a StrategyContext: it
// decides which events are worth looking at, extracts a trigger candidate
// (rejecting anything without a trustworthy timestamp), enriches it with
// market metadata, and applies the hard filters that keep obviously
// irrelevant markets out of the pipeline entirely.
package eventproc

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
)

// EventType enumerates the venue event kinds the processor understands.
// Unknown string values from the wire map to EventUnknown and are ignored
// by ShouldProcess.
type EventType string

const (
	EventPriceChange   EventType = "price_change"
	EventTrade         EventType = "trade"
	EventPriceUpdate   EventType = "price_update"
	EventBook          EventType = "book"
	EventLastTradePrice EventType = "last_trade_price"
	EventHeartbeat     EventType = "heartbeat"
	EventUnknown       EventType = ""
)

// RawEvent is the normalized shape produced by the ingestion layer from
// whatever JSON frame the venue sent.
type RawEvent struct {
	Type        EventType
	TokenID     string
	ConditionID string
	Price       decimal.Decimal
	Size        decimal.Decimal
	HasSize     bool
	// Timestamp is the event's own timestamp claim, already normalized to
	// UTC by the ingestion layer. It is only meaningful when HasTimestamp is
	// set; ExtractTrigger decides on HasTimestamp alone, not on a zero value.
	Timestamp time.Time
	HasTimestamp bool
}

// TriggerCandidate is what ExtractTrigger produces from a RawEvent.
type TriggerCandidate struct {
	TokenID         string
	ConditionID     string
	Price           decimal.Decimal
	Size            decimal.Decimal
	HasSize         bool
	TradeAgeSeconds float64
	Timestamp       time.Time
}

// StrategyContext is the fully enriched, filter-passed record handed to
// strategy evaluation.
type StrategyContext struct {
	TokenID         string
	ConditionID     string
	Price           decimal.Decimal
	Size            decimal.Decimal
	HasSize         bool
	TradeAgeSeconds float64
	Question        string
	Outcome         string
	TimeToEndHours  float64
	HasExpiry       bool
}

// ShouldProcess reports whether an event type carries a trigger candidate.
// Heartbeats and unrecognized types are ignored.
func ShouldProcess(t EventType) bool {
	switch t {
	case EventPriceChange, EventTrade, EventPriceUpdate, EventBook, EventLastTradePrice:
		return true
	default:
		return false
	}
}

// ExtractTrigger builds a TriggerCandidate from a raw event, evaluated at
// "now". It returns ok=false if the event has no valid timestamp — this is
// the deliberate fix for the stale-as-fresh bug: an event silently missing
// its timestamp must never be treated as current.
func ExtractTrigger(e RawEvent, now time.Time) (TriggerCandidate, bool) {
	if !e.HasTimestamp {
		return TriggerCandidate{}, false
	}
	age := now.Sub(e.Timestamp).Seconds()
	return TriggerCandidate{
		TokenID:         e.TokenID,
		ConditionID:     e.ConditionID,
		Price:           e.Price,
		Size:            e.Size,
		HasSize:         e.HasSize,
		TradeAgeSeconds: age,
		Timestamp:       e.Timestamp,
	}, true
}

// MeetsThreshold reports whether price has crossed threshold; the boundary
// is inclusive (price == threshold crosses).
func MeetsThreshold(price, threshold decimal.Decimal) bool {
	return price.GreaterThanOrEqual(threshold)
}

// IsFresh reports whether a trade's age is within the configured freshness
// window. The boundary is inclusive: age == maxAgeSeconds is still fresh.
func IsFresh(tradeAgeSeconds float64, maxAgeSeconds int) bool {
	return tradeAgeSeconds <= float64(maxAgeSeconds)
}

// MarketMetadataLookup resolves market metadata for BuildContext. Absent
// metadata (ErrNotFound-style "no row") must still yield safe zero-value
// defaults rather than erroring the whole pipeline.
type MarketMetadataLookup interface {
	GetByCondition(conditionID string) (*storage.Market, error)
	GetByID(tokenID string) (*storage.OutcomeToken, error)
}

// BuildContext enriches a TriggerCandidate with market metadata. Missing
// metadata (lookup errors or not-found) yields empty strings and no expiry
// rather than failing the candidate — metadata is an enrichment, not a
// precondition.
func BuildContext(c TriggerCandidate, lookup MarketMetadataLookup, now time.Time) StrategyContext {
	ctx := StrategyContext{
		TokenID:         c.TokenID,
		ConditionID:     c.ConditionID,
		Price:           c.Price,
		Size:            c.Size,
		HasSize:         c.HasSize,
		TradeAgeSeconds: c.TradeAgeSeconds,
	}

	if market, err := lookup.GetByCondition(c.ConditionID); err == nil && market != nil {
		ctx.Question = market.Question
		if !market.EndTime.IsZero() {
			ctx.TimeToEndHours = market.EndTime.Sub(now).Hours()
			ctx.HasExpiry = true
		}
	}
	if token, err := lookup.GetByID(c.TokenID); err == nil && token != nil {
		ctx.Outcome = token.Outcome
	}
	return ctx
}

// weatherWords are matched as whole words only (case-insensitive) so that
// "Rainbow Six", "snowboard", and "storming through" are never mistaken for
// weather markets (G6).
var weatherWords = []string{"rain", "snow", "storm", "snowstorm", "hurricane", "tornado", "blizzard", "heatwave", "drought"}

// ApplyFilters returns false for contexts the pipeline must never act on:
// whole-word weather-market matches, and markets closing within
// minHoursToExpiry.
func ApplyFilters(ctx StrategyContext, minHoursToExpiry float64) bool {
	if isWeatherMarket(ctx.Question) {
		return false
	}
	if ctx.HasExpiry && ctx.TimeToEndHours < minHoursToExpiry {
		return false
	}
	return true
}

func isWeatherMarket(question string) bool {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	for _, weatherWord := range weatherWords {
		if _, ok := set[weatherWord]; ok {
			return true
		}
	}
	return false
}
