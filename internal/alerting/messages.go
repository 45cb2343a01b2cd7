package alerting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
)

// Pure message-formatting functions, split out from the Notify* methods so
// the message bodies are testable without a live Telegram connection
// (tgbotapi.NewBotAPI dials the real API on construction).

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func formatTriggerMessage(conditionID, tokenID string, price, threshold decimal.Decimal, reason string) string {
	return fmt.Sprintf(`🎯 *TRIGGER DETECTED*

📊 Condition: *%s*
🪙 Token: *%s*
💵 Price: *%s¢* (threshold %s¢)
📝 %s`,
		conditionID, tokenID, pct(price), pct(threshold), reason,
	)
}

func formatOrderMessage(action string, order storage.Order) string {
	emoji := "📌"
	switch action {
	case "SUBMITTED":
		emoji = "📤"
	case "FILLED":
		emoji = "✅"
	case "REJECTED":
		emoji = "⚠️"
	case "CANCELLED":
		emoji = "🚫"
	}

	return fmt.Sprintf(`%s *ORDER %s*

📊 %s %s
💵 Price: *%s¢*
📦 Size: *%s*`,
		emoji, action,
		order.ConditionID, order.Side,
		pct(order.Price),
		order.Size.StringFixed(2),
	)
}

func formatExitMessage(event storage.ExitEvent) string {
	emoji := "📈"
	sign := "+"
	if event.NetPnL.IsNegative() {
		emoji = "📉"
		sign = ""
	}

	return fmt.Sprintf(`%s *POSITION CLOSED* (%s)

💵 Entry: *%s¢* → Exit: *%s¢*
📦 Size: *%s*
💰 P&L: *%s$%s*
⏱️ Held: *%.1fh*`,
		emoji, event.ExitType,
		pct(event.EntryPrice), pct(event.ExitPrice),
		event.Size.StringFixed(2),
		sign, event.NetPnL.StringFixed(2),
		event.HoursHeld,
	)
}

func formatDailySummaryMessage(stats storage.DailyStats) string {
	winRate := 0.0
	if stats.Trades > 0 {
		winRate = float64(stats.Wins) / float64(stats.Trades) * 100
	}

	emoji := "📈"
	sign := "+"
	if stats.PnL.IsNegative() {
		emoji = "📉"
		sign = ""
	}

	return fmt.Sprintf(`%s *DAILY SUMMARY* — %s
━━━━━━━━━━━━━━━━━━━━

📊 Trades: *%d*
✅ Wins: *%d*
❌ Losses: *%d*
📈 Win Rate: *%.1f%%*

━━━━━━━━━━━━━━━━━━━━
💵 P&L: *%s$%s*
💰 Equity: *$%s*`,
		emoji, stats.Date,
		stats.Trades, stats.Wins, stats.Losses, winRate,
		sign, stats.PnL.StringFixed(2),
		stats.Equity.StringFixed(2),
	)
}

func formatErrorMessage(err error) string {
	return fmt.Sprintf("⚠️ *ERROR*\n\n`%s`", err.Error())
}

func formatStartupMessage(mode string, balance decimal.Decimal) string {
	return fmt.Sprintf(`🚀 *POLYBOT STARTED*
━━━━━━━━━━━━━━━━━━━━

📊 Mode: *%s*
💰 Balance: *$%s*

Use /help for commands`, mode, balance.StringFixed(2))
}

// shouldSend reports whether an alert keyed by key should be sent given the
// last time it was sent and the configured cooldown. A zero lastSent means
// the key has never fired.
func shouldSend(lastSent time.Time, cooldown time.Duration, now time.Time) bool {
	if lastSent.IsZero() {
		return true
	}
	return now.Sub(lastSent) >= cooldown
}
