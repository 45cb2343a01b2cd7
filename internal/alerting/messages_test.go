package alerting

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestFormatTriggerMessage(t *testing.T) {
	t.Parallel()
	msg := formatTriggerMessage("cond_1", "token_1", dec("0.55"), dec("0.5"), "crossed above threshold")

	for _, want := range []string{"cond_1", "token_1", "55.0¢", "50.0¢", "crossed above threshold"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected message to contain %q, got:\n%s", want, msg)
		}
	}
}

func TestFormatOrderMessage_EmojiPerAction(t *testing.T) {
	t.Parallel()
	order := storage.Order{
		ConditionID: "cond_1",
		Side:        "BUY",
		Price:       dec("0.5"),
		Size:        dec("10"),
	}

	cases := []struct {
		action string
		emoji  string
	}{
		{"SUBMITTED", "📤"},
		{"FILLED", "✅"},
		{"REJECTED", "⚠️"},
		{"CANCELLED", "🚫"},
		{"UNKNOWN", "📌"},
	}
	for _, c := range cases {
		msg := formatOrderMessage(c.action, order)
		if !strings.Contains(msg, c.emoji) {
			t.Errorf("action %s: expected emoji %s in:\n%s", c.action, c.emoji, msg)
		}
		if !strings.Contains(msg, c.action) {
			t.Errorf("action %s: expected action name in message", c.action)
		}
	}
}

func TestFormatExitMessage_SignFlipsOnLoss(t *testing.T) {
	t.Parallel()

	win := formatExitMessage(storage.ExitEvent{
		ExitType:   "profit_target",
		EntryPrice: dec("0.4"),
		ExitPrice:  dec("0.6"),
		Size:       dec("10"),
		NetPnL:     dec("20"),
		HoursHeld:  2.5,
	})
	if !strings.Contains(win, "📈") || !strings.Contains(win, "+$20.00") {
		t.Fatalf("expected winning exit to show + sign and up emoji, got:\n%s", win)
	}

	loss := formatExitMessage(storage.ExitEvent{
		ExitType:   "stop_loss",
		EntryPrice: dec("0.5"),
		ExitPrice:  dec("0.3"),
		Size:       dec("10"),
		NetPnL:     dec("-20"),
		HoursHeld:  1,
	})
	if !strings.Contains(loss, "📉") || strings.Contains(loss, "+$-20") {
		t.Fatalf("expected losing exit to show down emoji without + sign, got:\n%s", loss)
	}
	if !strings.Contains(loss, "$-20.00") {
		t.Fatalf("expected loss amount rendered as $-20.00, got:\n%s", loss)
	}
}

func TestFormatDailySummaryMessage_WinRateAndSign(t *testing.T) {
	t.Parallel()

	msg := formatDailySummaryMessage(storage.DailyStats{
		Date:    "2026-07-31",
		Trades:  4,
		Wins:    3,
		Losses:  1,
		PnL:     dec("30"),
		Equity:  dec("1030"),
	})
	if !strings.Contains(msg, "75.0%") {
		t.Fatalf("expected win rate 75.0%%, got:\n%s", msg)
	}
	if !strings.Contains(msg, "📈") || !strings.Contains(msg, "+$30.00") {
		t.Fatalf("expected profitable day to show up emoji and + sign, got:\n%s", msg)
	}

	zeroTrades := formatDailySummaryMessage(storage.DailyStats{Date: "2026-07-30"})
	if !strings.Contains(zeroTrades, "0.0%") {
		t.Fatalf("expected 0 trades to report 0.0%% win rate without dividing by zero, got:\n%s", zeroTrades)
	}
}

func TestFormatErrorMessage(t *testing.T) {
	t.Parallel()
	msg := formatErrorMessage(errors.New("connection refused"))
	if !strings.Contains(msg, "connection refused") {
		t.Fatalf("expected error text in message, got:\n%s", msg)
	}
}

func TestFormatStartupMessage(t *testing.T) {
	t.Parallel()
	msg := formatStartupMessage("live", dec("500.5"))
	if !strings.Contains(msg, "live") || !strings.Contains(msg, "$500.50") {
		t.Fatalf("expected mode and balance in message, got:\n%s", msg)
	}
}

func TestShouldSend(t *testing.T) {
	t.Parallel()
	now := time.Now()
	cooldown := 5 * time.Minute

	if !shouldSend(time.Time{}, cooldown, now) {
		t.Fatal("expected a never-sent key to always send")
	}
	if shouldSend(now.Add(-1*time.Minute), cooldown, now) {
		t.Fatal("expected a recently-sent key to be suppressed within cooldown")
	}
	if !shouldSend(now.Add(-6*time.Minute), cooldown, now) {
		t.Fatal("expected a key sent before the cooldown window to send again")
	}
	if !shouldSend(now.Add(-5*time.Minute), cooldown, now) {
		t.Fatal("expected exactly-at-cooldown-boundary to send")
	}
}
