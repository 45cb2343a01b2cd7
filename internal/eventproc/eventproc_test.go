package eventproc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestShouldProcess(t *testing.T) {
	cases := map[EventType]bool{
		EventPriceChange:    true,
		EventTrade:          true,
		EventPriceUpdate:    true,
		EventBook:           true,
		EventLastTradePrice: true,
		EventHeartbeat:      false,
		EventType("ack"):    false,
	}
	for typ, want := range cases {
		if got := ShouldProcess(typ); got != want {
			t.Errorf("ShouldProcess(%q) = %v, want %v", typ, got, want)
		}
	}
}

func TestExtractTrigger_MissingTimestampRejected(t *testing.T) {
	e := RawEvent{Type: EventTrade, TokenID: "tok_A", ConditionID: "0xC", Price: decimal.NewFromFloat(0.95), HasTimestamp: false}
	_, ok := ExtractTrigger(e, time.Now())
	if ok {
		t.Fatal("expected event with no timestamp to be rejected")
	}
}

func TestExtractTrigger_StaleTradeDropped(t *testing.T) {
	now := time.Now().UTC()
	e := RawEvent{
		Type:         EventTrade,
		TokenID:      "tok_A",
		ConditionID:  "0xC",
		Price:        decimal.NewFromFloat(0.95),
		Timestamp:    now.Add(-60 * 24 * time.Hour),
		HasTimestamp: true,
	}
	cand, ok := ExtractTrigger(e, now)
	if !ok {
		t.Fatal("expected candidate to be extracted")
	}
	if IsFresh(cand.TradeAgeSeconds, 300) {
		t.Fatal("expected a 60-day-old trade to be stale at max_age_seconds=300")
	}
}

func TestIsFresh_Boundary(t *testing.T) {
	if !IsFresh(300, 300) {
		t.Fatal("expected age == max_age to be fresh (inclusive boundary)")
	}
	if IsFresh(300.01, 300) {
		t.Fatal("expected age > max_age to be stale")
	}
}

func TestMeetsThreshold_Boundary(t *testing.T) {
	threshold := decimal.NewFromFloat(0.95)
	if !MeetsThreshold(threshold, threshold) {
		t.Fatal("expected price exactly at threshold to cross (inclusive)")
	}
	if MeetsThreshold(decimal.NewFromFloat(0.9499), threshold) {
		t.Fatal("expected price strictly below threshold to not cross")
	}
}

func TestApplyFilters_WeatherWholeWordOnly(t *testing.T) {
	cases := []struct {
		question string
		rejected bool
	}{
		{"Will it rain in NYC tomorrow?", true},
		{"Will there be a snowstorm this weekend?", true},
		{"Will Team A win Rainbow Six Siege tournament?", false},
		{"Will the snowboard event get cancelled?", false},
		{"Will the team go storming through the playoffs?", false},
	}
	for _, c := range cases {
		ctx := StrategyContext{Question: c.question, HasExpiry: true, TimeToEndHours: 240}
		ok := ApplyFilters(ctx, 6)
		rejected := !ok
		if rejected != c.rejected {
			t.Errorf("ApplyFilters(%q) rejected=%v, want %v", c.question, rejected, c.rejected)
		}
	}
}

func TestApplyFilters_ExpiryFilter(t *testing.T) {
	ctx := StrategyContext{Question: "Will team A win?", HasExpiry: true, TimeToEndHours: 5}
	if ApplyFilters(ctx, 6) {
		t.Fatal("expected market closing in 5h to be rejected with min_hours_to_expiry=6")
	}
	ctx.TimeToEndHours = 6
	if !ApplyFilters(ctx, 6) {
		t.Fatal("expected market closing in exactly 6h to pass (boundary)")
	}
}

func TestApplyFilters_NoExpiryPasses(t *testing.T) {
	ctx := StrategyContext{Question: "Will team A win?", HasExpiry: false}
	if !ApplyFilters(ctx, 6) {
		t.Fatal("expected a context with unknown expiry to pass the expiry filter")
	}
}
