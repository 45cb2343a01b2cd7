// Package alerting is the Telegram notification transport: trigger/fill/exit
// alerts outbound, and a minimal /help /balance /stats /positions /ping
// query plus /pause /resume command surface inbound. Business logic beyond
// "deliver this alert" and "answer this read-only query" stays out of
// scope — generalized from the teacher's bot.TelegramBot.
package alerting

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
)

// StatsProvider supplies the read-only data the command surface reports
// back; kept narrow so alerting never reaches into storage repositories
// beyond what a digest needs.
type StatsProvider interface {
	DailyStats() (*storage.DailyStats, error)
	Balance() (decimal.Decimal, error)
	OpenPositions() ([]storage.Position, error)
}

// Notifier manages the Telegram interface: outbound alerts plus an inbound
// command loop restricted to a single authorized chat.
type Notifier struct {
	mu      sync.RWMutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	stats StatsProvider

	cooldown   time.Duration
	lastSentAt map[string]time.Time

	onPause  func()
	onResume func()
}

// New builds a Notifier from a bot token and chat ID. A failure here
// (bad token, unreachable Telegram API) is non-fatal for the caller to
// decide on — the trading pipeline must not depend on alert delivery to
// function.
func New(token string, chatID int64, cooldown time.Duration, stats StatsProvider) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token not set")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id not set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	n := &Notifier{
		api:        api,
		chatID:     chatID,
		stopCh:     make(chan struct{}),
		stats:      stats,
		cooldown:   cooldown,
		lastSentAt: make(map[string]time.Time),
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 telegram notifier initialized")
	return n, nil
}

// SetControlCallbacks wires /pause and /resume to the supervisor's actual
// pause/resume hooks.
func (n *Notifier) SetControlCallbacks(onPause, onResume func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onPause = onPause
	n.onResume = onResume
}

// Start begins the inbound command loop. Idempotent.
func (n *Notifier) Start() {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()

	go n.commandLoop()
	log.Info().Msg("📱 telegram notifier started")
}

func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return
	}
	n.running = false
	close(n.stopCh)
	log.Info().Msg("telegram notifier stopped")
}

// ═══════════════════════════════════════════════════════════════════════
// OUTBOUND ALERTS
// ═══════════════════════════════════════════════════════════════════════

// NotifyTrigger announces a newly recorded trigger crossing its threshold.
func (n *Notifier) NotifyTrigger(conditionID, tokenID string, price, threshold decimal.Decimal, reason string) {
	n.sendMarkdown("trigger:"+conditionID, formatTriggerMessage(conditionID, tokenID, price, threshold, reason))
}

// NotifyOrder announces a submitted/filled/rejected order.
func (n *Notifier) NotifyOrder(action string, order storage.Order) {
	n.sendMarkdown("order:"+order.OrderID, formatOrderMessage(action, order))
}

// NotifyExit announces a position close along with its realized P&L.
func (n *Notifier) NotifyExit(event storage.ExitEvent) {
	n.sendMarkdown("exit:"+event.PositionID, formatExitMessage(event))
}

// NotifyDailySummary sends the day's rollup from DailyStats.
func (n *Notifier) NotifyDailySummary() {
	if n.stats == nil {
		return
	}
	stats, err := n.stats.DailyStats()
	if err != nil {
		log.Warn().Err(err).Msg("📱 daily summary unavailable")
		return
	}
	n.send(formatDailySummaryMessage(*stats), true)
}

// NotifyError surfaces a non-fatal operational error, deduped per
// distinct message within the alert cooldown so a hot error loop doesn't
// flood the chat.
func (n *Notifier) NotifyError(err error) {
	n.sendMarkdown("error:"+err.Error(), formatErrorMessage(err))
}

// NotifyStartup announces process start with mode and opening balance.
func (n *Notifier) NotifyStartup(mode string, balance decimal.Decimal) {
	n.send(formatStartupMessage(mode, balance), true)
}

// ═══════════════════════════════════════════════════════════════════════
// INBOUND COMMANDS
// ═══════════════════════════════════════════════════════════════════════

func (n *Notifier) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := n.api.GetUpdatesChan(u)

	for {
		select {
		case <-n.stopCh:
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != n.chatID {
				continue
			}
			n.handleCommand(update.Message)
		}
	}
}

func (n *Notifier) handleCommand(msg *tgbotapi.Message) {
	switch strings.ToLower(msg.Command()) {
	case "start", "help":
		n.cmdHelp()
	case "balance":
		n.cmdBalance()
	case "stats":
		n.cmdStats()
	case "positions":
		n.cmdPositions()
	case "pause":
		n.cmdPause()
	case "resume":
		n.cmdResume()
	case "ping":
		n.send("🏓 Pong!", false)
	default:
		n.send("❓ Unknown command. Use /help", false)
	}
}

func (n *Notifier) cmdHelp() {
	n.send(`🤖 *POLYBOT COMMANDS*
━━━━━━━━━━━━━━━━━━━━

💰 /balance — Account balance
📈 /stats — Today's trading stats
💼 /positions — Open positions
⏸️ /pause — Pause trading
▶️ /resume — Resume trading
🏓 /ping — Test connection`, true)
}

func (n *Notifier) cmdBalance() {
	if n.stats == nil {
		n.send("❌ Balance not available", false)
		return
	}
	balance, err := n.stats.Balance()
	if err != nil {
		n.send("❌ Failed to fetch balance", false)
		return
	}
	n.send(fmt.Sprintf("💰 *BALANCE*\n\n💵 Available: *$%s*", balance.StringFixed(2)), true)
}

func (n *Notifier) cmdStats() {
	n.NotifyDailySummary()
}

func (n *Notifier) cmdPositions() {
	if n.stats == nil {
		n.send("❌ Positions not available", false)
		return
	}
	positions, err := n.stats.OpenPositions()
	if err != nil {
		n.send("❌ Failed to fetch positions", false)
		return
	}
	if len(positions) == 0 {
		n.send("📭 No open positions", false)
		return
	}

	var b strings.Builder
	b.WriteString("💼 *OPEN POSITIONS*\n━━━━━━━━━━━━━━━━━━━━\n\n")
	for i, pos := range positions {
		if i >= 10 {
			fmt.Fprintf(&b, "_... and %d more_", len(positions)-10)
			break
		}
		duration := time.Since(pos.EntryTime).Round(time.Second)
		fmt.Fprintf(&b, "📊 *%s*\n💵 Entry: %s¢ | Size: %s\n⏱️ Held: %v\n\n",
			pos.ConditionID,
			pos.EntryPrice.Mul(decimal.NewFromInt(100)).StringFixed(1),
			pos.Size.StringFixed(2),
			duration,
		)
	}
	n.send(b.String(), true)
}

func (n *Notifier) cmdPause() {
	n.mu.RLock()
	cb := n.onPause
	n.mu.RUnlock()
	if cb != nil {
		cb()
	}
	n.send("⏸️ Trading paused", false)
	log.Info().Msg("📱 trading paused via telegram")
}

func (n *Notifier) cmdResume() {
	n.mu.RLock()
	cb := n.onResume
	n.mu.RUnlock()
	if cb != nil {
		cb()
	}
	n.send("▶️ Trading resumed", false)
	log.Info().Msg("📱 trading resumed via telegram")
}

// ═══════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════

// sendMarkdown sends a markdown alert under key, unless an identical key
// was sent within the cooldown window.
func (n *Notifier) sendMarkdown(key, text string) {
	n.mu.Lock()
	now := time.Now()
	if !shouldSend(n.lastSentAt[key], n.cooldown, now) {
		n.mu.Unlock()
		return
	}
	n.lastSentAt[key] = now
	n.mu.Unlock()

	n.send(text, true)
}

func (n *Notifier) send(text string, markdown bool) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if markdown {
		msg.ParseMode = "Markdown"
	}
	if _, err := n.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("📱 failed to send telegram message")
	}
}
