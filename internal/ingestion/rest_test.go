package ingestion

import (
	"testing"
	"time"
)

func TestParseMarket_CamelCaseConditionID(t *testing.T) {
	data := map[string]interface{}{
		"conditionId":   "0xabc123",
		"question":      "Test market?",
		"clobTokenIds":  "[]",
		"outcomes":      "[]",
		"outcomePrices": "[]",
	}
	m, ok := parseMarket(data)
	if !ok {
		t.Fatal("expected market to parse")
	}
	if m.ConditionID != "0xabc123" {
		t.Fatalf("expected condition id 0xabc123, got %q", m.ConditionID)
	}
}

func TestParseMarket_TokenIDsFromJSONString(t *testing.T) {
	data := map[string]interface{}{
		"conditionId":   "0xabc123",
		"clobTokenIds":  `["tok1", "tok2"]`,
		"outcomes":      `["Yes", "No"]`,
		"outcomePrices": `["0.75", "0.25"]`,
	}
	m, ok := parseMarket(data)
	if !ok {
		t.Fatal("expected market to parse")
	}
	if len(m.Tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(m.Tokens))
	}
	if m.Tokens[0].TokenID != "tok1" || m.Tokens[0].Outcome != "Yes" {
		t.Fatalf("unexpected token 0: %+v", m.Tokens[0])
	}
	if m.Tokens[1].TokenID != "tok2" || m.Tokens[1].Outcome != "No" {
		t.Fatalf("unexpected token 1: %+v", m.Tokens[1])
	}
	if !m.HasPrice || m.Price.String() != "0.75" {
		t.Fatalf("expected price 0.75 from outcomePrices[0], got %v (has=%v)", m.Price, m.HasPrice)
	}
}

func TestParseMarket_MissingFieldsGraceful(t *testing.T) {
	data := map[string]interface{}{
		"conditionId": "0xabc123",
		"question":    "Test market?",
	}
	m, ok := parseMarket(data)
	if !ok {
		t.Fatal("expected market to parse even with missing optional fields")
	}
	if len(m.Tokens) != 0 {
		t.Fatalf("expected no tokens, got %d", len(m.Tokens))
	}
}

func TestParseMarket_NoConditionIDRejected(t *testing.T) {
	if _, ok := parseMarket(map[string]interface{}{"question": "no id"}); ok {
		t.Fatal("expected market with no condition id to be rejected")
	}
}

func TestFilterFreshTrades_DropsStaleTrades(t *testing.T) {
	now := time.Now()
	raw := []map[string]interface{}{
		{
			"id":        "fresh_trade",
			"price":     "0.75",
			"size":      "100",
			"side":      "BUY",
			"timestamp": float64(now.Add(-1 * time.Minute).UnixMilli()),
		},
		{
			"id":        "stale_trade",
			"price":     "0.95",
			"size":      "50",
			"timestamp": float64(now.Add(-60 * 24 * time.Hour).UnixMilli()),
		},
	}

	trades := filterFreshTrades(raw, "token_123", 300, now)
	if len(trades) != 1 {
		t.Fatalf("expected exactly 1 fresh trade, got %d", len(trades))
	}
	if trades[0].TradeID != "fresh_trade" {
		t.Fatalf("expected fresh_trade to survive, got %q", trades[0].TradeID)
	}
}

func TestFilterFreshTrades_AllStaleReturnsEmpty(t *testing.T) {
	now := time.Now()
	raw := []map[string]interface{}{
		{"id": "stale_1", "price": "0.50", "size": "100", "timestamp": float64(now.Add(-30 * 24 * time.Hour).UnixMilli())},
		{"id": "stale_2", "price": "0.60", "size": "200", "timestamp": float64(now.Add(-60 * 24 * time.Hour).UnixMilli())},
	}
	trades := filterFreshTrades(raw, "token_123", 300, now)
	if len(trades) != 0 {
		t.Fatalf("expected no trades to survive, got %d", len(trades))
	}
}

func TestFilterFreshTrades_ConfigurableMaxAge(t *testing.T) {
	now := time.Now()
	raw := []map[string]interface{}{
		{"id": "trade_1", "price": "0.50", "size": "100", "timestamp": float64(now.Add(-10 * time.Minute).UnixMilli())},
	}
	if got := filterFreshTrades(raw, "token_123", 300, now); len(got) != 0 {
		t.Fatalf("expected strict 300s window to drop a 10-minute-old trade, got %d", len(got))
	}
	if got := filterFreshTrades(raw, "token_123", 900, now); len(got) != 1 {
		t.Fatalf("expected lenient 900s window to keep a 10-minute-old trade, got %d", len(got))
	}
}

func TestParseTradeTimestamp_SecondsAndMilliseconds(t *testing.T) {
	now := time.Now().UTC()
	secTS := float64(now.Unix())
	msTS := float64(now.UnixMilli())

	tSec, ok := parseTradeTimestamp(secTS)
	if !ok || tSec.Unix() != now.Unix() {
		t.Fatalf("expected seconds timestamp to normalize, got %v ok=%v", tSec, ok)
	}

	tMs, ok := parseTradeTimestamp(msTS)
	if !ok || tMs.Unix() != now.Unix() {
		t.Fatalf("expected milliseconds timestamp to normalize, got %v ok=%v", tMs, ok)
	}
}

func TestParseFlexibleTime_DateOnlyAndDateTime(t *testing.T) {
	dt, err := parseFlexibleTime("2026-02-28T00:00:00Z")
	if err != nil || dt.Year() != 2026 || dt.Month() != 2 || dt.Day() != 28 {
		t.Fatalf("expected 2026-02-28, got %v err=%v", dt, err)
	}

	dateOnly, err := parseFlexibleTime("2026-02-28")
	if err != nil || dateOnly.Year() != 2026 || dateOnly.Day() != 28 {
		t.Fatalf("expected date-only format to parse, got %v err=%v", dateOnly, err)
	}
}
