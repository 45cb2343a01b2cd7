package ingestion

import (
	"testing"
	"time"

	"github.com/web3guy0/polybot/internal/eventproc"
)

func newTestWSClient(t *testing.T) (*WSClient, *[]eventproc.RawEvent) {
	t.Helper()
	c := NewWSClient("wss://example.invalid", 30*time.Second, 60*time.Second)
	var received []eventproc.RawEvent
	c.OnEvent(func(e eventproc.RawEvent) { received = append(received, e) })
	return c, &received
}

func TestHandleFrame_EmptyArrayIsAcknowledgment(t *testing.T) {
	c, received := newTestWSClient(t)
	c.handleFrame([]byte("[]"))
	if len(*received) != 0 {
		t.Fatalf("expected empty array to be a no-op acknowledgment, got %d events", len(*received))
	}
}

func TestHandleFrame_ArrayOfEvents(t *testing.T) {
	c, received := newTestWSClient(t)
	c.handleFrame([]byte(`[
		{"event_type":"book","asset_id":"token_1","last_trade_price":"0.75","bids":[{"price":"0.74","size":"100"}]},
		{"event_type":"book","asset_id":"token_2","last_trade_price":"0.50","bids":[{"price":"0.49","size":"100"}]}
	]`))
	if len(*received) != 2 {
		t.Fatalf("expected both array events processed, got %d", len(*received))
	}
}

func TestHandleFrame_SingleDictEvent(t *testing.T) {
	c, received := newTestWSClient(t)
	c.handleFrame([]byte(`{"event_type":"price_change","asset_id":"token_123","price":"0.85"}`))
	if len(*received) != 1 {
		t.Fatalf("expected single dict event processed, got %d", len(*received))
	}
}

func TestHandleFrame_InvalidJSONDoesNotPanic(t *testing.T) {
	c, received := newTestWSClient(t)
	c.handleFrame([]byte("not valid json{"))
	if len(*received) != 0 {
		t.Fatalf("expected invalid JSON to be ignored, got %d events", len(*received))
	}
}

func TestNormalizeFrame_PriceFieldTakesPriority(t *testing.T) {
	e, ok := normalizeFrame(map[string]interface{}{
		"event_type": "price_change",
		"asset_id":   "token_123",
		"price":      "0.85",
	})
	if !ok || e.Price.String() != "0.85" {
		t.Fatalf("expected price 0.85, got %v ok=%v", e.Price, ok)
	}
}

func TestNormalizeFrame_FallsBackToLastTradePrice(t *testing.T) {
	e, ok := normalizeFrame(map[string]interface{}{
		"event_type":       "book",
		"asset_id":         "token_123",
		"last_trade_price": "0.92",
	})
	if !ok || e.Price.String() != "0.92" {
		t.Fatalf("expected price 0.92 from last_trade_price, got %v ok=%v", e.Price, ok)
	}
}

func TestNormalizeFrame_FallsBackToBestBid(t *testing.T) {
	e, ok := normalizeFrame(map[string]interface{}{
		"event_type": "book",
		"asset_id":   "token_123",
		"bids":       []interface{}{map[string]interface{}{"price": "0.88", "size": "100"}},
		"asks":       []interface{}{map[string]interface{}{"price": "0.90", "size": "100"}},
	})
	if !ok || e.Price.String() != "0.88" {
		t.Fatalf("expected price 0.88 from best bid, got %v ok=%v", e.Price, ok)
	}
}

func TestNormalizeFrame_SkippedWhenNoPriceAvailable(t *testing.T) {
	_, ok := normalizeFrame(map[string]interface{}{
		"event_type": "book",
		"asset_id":   "token_123",
		"bids":       []interface{}{},
	})
	if ok {
		t.Fatal("expected event with no extractable price to be skipped")
	}
}

func TestNormalizeFrame_SkipsMessageWithOnlyMarketNoAssetID(t *testing.T) {
	_, ok := normalizeFrame(map[string]interface{}{
		"event_type": "book",
		"market":     "0xabc123condition",
		"price":      "0.75",
	})
	if ok {
		t.Fatal("expected message with market but no asset_id to be skipped — market is a condition id, not a token id")
	}
}

func TestNormalizeFrame_ConditionIDFromMarketField(t *testing.T) {
	e, ok := normalizeFrame(map[string]interface{}{
		"event_type": "book",
		"asset_id":   "token_123",
		"market":     "0xabc123condition",
		"price":      "0.75",
	})
	if !ok || e.ConditionID != "0xabc123condition" {
		t.Fatalf("expected condition id extracted from market field, got %q ok=%v", e.ConditionID, ok)
	}
}

func TestNormalizeFrame_MissingTimestampLeavesHasTimestampFalse(t *testing.T) {
	e, ok := normalizeFrame(map[string]interface{}{
		"event_type": "price_change",
		"asset_id":   "token_123",
		"price":      "0.50",
	})
	if !ok {
		t.Fatal("expected event to parse")
	}
	if e.HasTimestamp {
		t.Fatal("expected HasTimestamp=false when the frame carries no timestamp — eventproc must see the true absence")
	}
}

func TestBackoffDelay_CapsAtMax(t *testing.T) {
	max := 10 * time.Second
	if d := backoffDelay(1, max); d != time.Second {
		t.Fatalf("expected first attempt to wait 1s, got %v", d)
	}
	if d := backoffDelay(10, max); d != max {
		t.Fatalf("expected backoff to cap at %v, got %v", max, d)
	}
}
