// Package config loads process configuration from the environment, with
// sensible defaults for local/dry-run operation. Nothing here reads a config
// file beyond the optional credentials JSON; everything else is env-driven.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Credentials holds venue API/wallet secrets loaded from a JSON file so they
// never need to live in the environment or process args.
type Credentials struct {
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	APIPassphrase string `json:"api_passphrase"`
	Funder        string `json:"funder,omitempty"`
	PrivateKey    string `json:"private_key,omitempty"`
}

// BackoffConfig controls exponential backoff for reconnect/retry loops.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

// RiskConfig defines risk-management and position-sizing limits.
type RiskConfig struct {
	MaxBetSize       decimal.Decimal
	MaxDailyLoss     decimal.Decimal
	MaxDailyTrades   int
	MaxDailyExposure decimal.Decimal
	MinLiquidity     decimal.Decimal
	TradeCooldown    time.Duration
	MaxConsecLosses  int
	CircuitCooldown  time.Duration
}

// ExitConfig defines the thresholds the Exit Manager evaluates per tick.
type ExitConfig struct {
	ProfitTarget       decimal.Decimal // e.g. 0.99
	StopLoss           decimal.Decimal // e.g. 0.90
	TimeExitHours      float64         // exit when time_to_end_hours <= this
	HoldHoursImported  float64         // default hold window for imported positions
	HoldHoursOwnTrades float64         // hold window for bot-opened positions
}

// TierConfig defines tier capacities and promotion/demotion thresholds.
type TierConfig struct {
	Tier2Max                 int
	Tier3Max                 int
	PromoteToTier2Score      float64
	PromoteToTier3Score      float64
	DemoteFromTier3Score     float64
	DemoteFromTier2Score     float64
	Tier3InactivityHours     float64
	Tier2LowScoreDays        float64
	CycleInterval            time.Duration
}

// WatchlistConfig controls the candidate/watchlist rescoring pipeline.
type WatchlistConfig struct {
	ExecutionThreshold decimal.Decimal // promote to execution at/above this score
	WatchlistMin       decimal.Decimal // expire below this score
	RescoreInterval    time.Duration
	MinHoursToExpiry   float64
}

// Config is the fully resolved process configuration.
type Config struct {
	Debug bool

	// Database
	DatabaseURL string

	// Venue endpoints
	VenueAPIURL  string
	VenueWSURL   string
	VenueCLOBURL string

	// Credentials file (contains api_key/api_secret/api_passphrase/funder/private_key)
	CredentialsPath string
	Credentials     Credentials

	// Live vs. paper mode
	DryRun bool

	// Ingestion
	MaxTradeAgeSeconds int
	MinInterPageDelay  time.Duration

	// WebSocket
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxReconnectDelay time.Duration

	// Sync service
	FullSyncInterval  time.Duration
	PriceSyncInterval time.Duration
	PriceSyncTopN     int

	// Order/Balance
	MaxBuyPrice            decimal.Decimal
	MinReserve             decimal.Decimal
	PaperStartingBalance   decimal.Decimal
	OrderReconcileInterval time.Duration

	DBBackoff BackoffConfig

	Risk      RiskConfig
	Exit      ExitConfig
	Tier      TierConfig
	Watchlist WatchlistConfig

	// Alerting
	TelegramToken  string
	TelegramChatID int64
	AlertCooldown  time.Duration
}

// Load builds Config from the environment. It returns an error when a
// field required for live trading is missing; in dry-run/paper mode missing
// credentials are tolerated (see DryRun).
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		VenueAPIURL:  getEnv("VENUE_API_URL", "https://gamma-api.polymarket.com"),
		VenueWSURL:   getEnv("VENUE_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		VenueCLOBURL: getEnv("VENUE_CLOB_URL", "https://clob.polymarket.com"),

		CredentialsPath: getEnv("CREDENTIALS_PATH", "credentials.json"),

		DryRun: getEnvBool("DRY_RUN", true),

		MaxTradeAgeSeconds: getEnvInt("MAX_TRADE_AGE_SECONDS", 300),
		MinInterPageDelay:  getEnvDuration("MIN_INTER_PAGE_DELAY", 250*time.Millisecond),

		HeartbeatInterval: getEnvDuration("WS_HEARTBEAT_INTERVAL", 10*time.Second),
		HeartbeatTimeout:  getEnvDuration("WS_HEARTBEAT_TIMEOUT", 30*time.Second),
		MaxReconnectDelay: getEnvDuration("WS_MAX_RECONNECT_DELAY", 60*time.Second),

		FullSyncInterval:  getEnvDuration("FULL_SYNC_INTERVAL", 15*time.Minute),
		PriceSyncInterval: getEnvDuration("PRICE_SYNC_INTERVAL", 30*time.Second),
		PriceSyncTopN:     getEnvInt("PRICE_SYNC_TOP_N", 200),

		MaxBuyPrice:            getEnvDecimal("MAX_BUY_PRICE", decimal.NewFromFloat(0.97)),
		MinReserve:             getEnvDecimal("MIN_RESERVE", decimal.NewFromFloat(10)),
		PaperStartingBalance:   getEnvDecimal("PAPER_STARTING_BALANCE", decimal.NewFromFloat(1000)),
		OrderReconcileInterval: getEnvDuration("ORDER_RECONCILE_INTERVAL", 20*time.Second),

		DBBackoff: BackoffConfig{
			InitialDelay: getEnvDuration("DB_BACKOFF_INITIAL", 200*time.Millisecond),
			Multiplier:   getEnvFloat("DB_BACKOFF_MULTIPLIER", 2.0),
			MaxDelay:     getEnvDuration("DB_BACKOFF_MAX", 10*time.Second),
			MaxAttempts:  getEnvInt("DB_BACKOFF_MAX_ATTEMPTS", 6),
		},

		Risk: RiskConfig{
			MaxBetSize:       getEnvDecimal("RISK_MAX_BET_SIZE", decimal.NewFromFloat(25)),
			MaxDailyLoss:     getEnvDecimal("RISK_MAX_DAILY_LOSS", decimal.NewFromFloat(100)),
			MaxDailyTrades:   getEnvInt("RISK_MAX_DAILY_TRADES", 40),
			MaxDailyExposure: getEnvDecimal("RISK_MAX_DAILY_EXPOSURE", decimal.NewFromFloat(500)),
			MinLiquidity:     getEnvDecimal("RISK_MIN_LIQUIDITY", decimal.NewFromFloat(1000)),
			TradeCooldown:    getEnvDuration("RISK_TRADE_COOLDOWN", 30*time.Second),
			MaxConsecLosses:  getEnvInt("RISK_MAX_CONSECUTIVE_LOSSES", 3),
			CircuitCooldown:  getEnvDuration("RISK_CIRCUIT_COOLDOWN", 30*time.Minute),
		},

		Exit: ExitConfig{
			ProfitTarget:       getEnvDecimal("EXIT_PROFIT_TARGET", decimal.NewFromFloat(0.99)),
			StopLoss:           getEnvDecimal("EXIT_STOP_LOSS", decimal.NewFromFloat(0.90)),
			TimeExitHours:      getEnvFloat("EXIT_TIME_HOURS", 1.0),
			HoldHoursImported:  getEnvFloat("EXIT_HOLD_HOURS_IMPORTED", 7*24),
			HoldHoursOwnTrades: getEnvFloat("EXIT_HOLD_HOURS_OWN", 0),
		},

		Tier: TierConfig{
			Tier2Max:             getEnvInt("TIER_2_MAX", 2000),
			Tier3Max:             getEnvInt("TIER_3_MAX", 300),
			PromoteToTier2Score:  getEnvFloat("TIER_PROMOTE_2_SCORE", 40.0),
			PromoteToTier3Score:  getEnvFloat("TIER_PROMOTE_3_SCORE", 80.0),
			DemoteFromTier3Score: getEnvFloat("TIER_DEMOTE_3_SCORE", 60.0),
			DemoteFromTier2Score: getEnvFloat("TIER_DEMOTE_2_SCORE", 20.0),
			Tier3InactivityHours: getEnvFloat("TIER_3_INACTIVITY_HOURS", 24),
			Tier2LowScoreDays:    getEnvFloat("TIER_2_LOW_SCORE_DAYS", 7),
			CycleInterval:        getEnvDuration("TIER_CYCLE_INTERVAL", 15*time.Minute),
		},

		Watchlist: WatchlistConfig{
			ExecutionThreshold: getEnvDecimal("WATCHLIST_EXECUTION_THRESHOLD", decimal.NewFromFloat(0.97)),
			WatchlistMin:       getEnvDecimal("WATCHLIST_MIN_SCORE", decimal.NewFromFloat(0.90)),
			RescoreInterval:    getEnvDuration("WATCHLIST_RESCORE_INTERVAL", time.Minute),
			MinHoursToExpiry:   getEnvFloat("WATCHLIST_MIN_HOURS_TO_EXPIRY", 6),
		},

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AlertCooldown: getEnvDuration("ALERT_COOLDOWN", 5*time.Minute),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if !cfg.DryRun {
		creds, err := loadCredentials(cfg.CredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("load credentials (required for live mode): %w", err)
		}
		cfg.Credentials = creds

		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in live mode")
		}
	} else if creds, err := loadCredentials(cfg.CredentialsPath); err == nil {
		cfg.Credentials = creds
	}

	return cfg, nil
}

func loadCredentials(path string) (Credentials, error) {
	var creds Credentials
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("parse credentials file %s: %w", path, err)
	}
	if creds.APIKey == "" || creds.APISecret == "" || creds.APIPassphrase == "" {
		return creds, fmt.Errorf("credentials file %s missing required fields", path)
	}
	return creds, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
