// Polybot - Automated Binary Prediction Market Trading Bot
//
// Architecture: Ingest -> Trigger -> Watchlist -> Strategy -> Risk -> Order -> Position -> Exit
// - The ingestion layer (REST + WebSocket + universe sync) feeds raw venue events.
// - The event processor filters and enriches them into a StrategyContext.
// - The trigger tracker records the first time each market (condition_id)
//   crosses the watchlist floor on any of its tokens, atomically, so a
//   flapping price never re-fires the same trigger.
// - The watchlist rescores watched tokens on an interval and promotes the ones
//   that cross the execution threshold.
// - Strategies evaluate promoted tokens into Signals; the risk gate approves or
//   rejects and sizes them; the order manager submits and tracks fills; the
//   position tracker and exit manager close the loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/alerting"
	"github.com/web3guy0/polybot/internal/balance"
	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/ingestion"
	"github.com/web3guy0/polybot/internal/orders"
	"github.com/web3guy0/polybot/internal/positions"
	"github.com/web3guy0/polybot/internal/risk"
	"github.com/web3guy0/polybot/internal/storage"
	"github.com/web3guy0/polybot/internal/strategy"
	"github.com/web3guy0/polybot/internal/supervisor"
	syncsvc "github.com/web3guy0/polybot/internal/sync"
	"github.com/web3guy0/polybot/internal/tiermanager"
	"github.com/web3guy0/polybot/internal/trigger"
	"github.com/web3guy0/polybot/internal/venue"
	"github.com/web3guy0/polybot/internal/watchlist"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	mode := "paper"
	if !cfg.DryRun {
		mode = "live"
	}
	log.Info().Str("version", version).Str("mode", mode).Msg("🚀 polybot starting")

	store, err := storage.Open(cfg.DatabaseURL, cfg.DBBackoff)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()
	repos := storage.NewRepos(store)

	sup := supervisor.New(context.Background())

	balanceMgr, venueClient := buildVenue(cfg)
	orderMgr := orders.NewManager(venueClient, repos.Orders, balanceMgr, repos.Approvals, orders.Config{
		MaxBuyPrice: cfg.MaxBuyPrice,
		Mode:        orderMode(cfg.DryRun),
	})
	if loaded, err := orderMgr.LoadOrders(); err != nil {
		log.Error().Err(err).Msg("📤 failed to reload in-flight orders")
	} else if loaded > 0 {
		log.Info().Int("count", loaded).Msg("📤 reloaded in-flight orders")
	}

	riskGate := risk.NewGate(cfg.Risk, balanceMgr.AvailableBalance())
	riskGate.OnCircuitTrip(func(reason string) {
		log.Warn().Str("reason", reason).Msg("🛑 risk circuit tripped, pausing new entries")
		sup.Pause()
	})

	posTracker := positions.NewTracker(repos.Positions, repos.Exits)
	triggerTr := trigger.NewTracker(repos.Triggers, repos.Candidates)
	watchlistSvc := watchlist.NewService(repos.Watchlist, watchlist.Config{
		ExecutionThreshold: cfg.Watchlist.ExecutionThreshold,
		WatchlistMin:       cfg.Watchlist.WatchlistMin,
		MinHoursToExpiry:   cfg.Watchlist.MinHoursToExpiry,
	})
	tierMgr := tiermanager.NewManager(repos.Universe, repos.Positions, repos.Orders,
		tiermanager.Limits{Tier2Max: cfg.Tier.Tier2Max, Tier3Max: cfg.Tier.Tier3Max},
		tiermanager.Thresholds{
			PromoteToTier2Score:  cfg.Tier.PromoteToTier2Score,
			PromoteToTier3Score:  cfg.Tier.PromoteToTier3Score,
			DemoteFromTier3Score: cfg.Tier.DemoteFromTier3Score,
			DemoteFromTier2Score: cfg.Tier.DemoteFromTier2Score,
			Tier3InactivityHours: cfg.Tier.Tier3InactivityHours,
			Tier2LowScoreDays:    cfg.Tier.Tier2LowScoreDays,
		})

	strategies := []strategy.Strategy{
		strategy.NewThresholdCross(cfg.Watchlist.ExecutionThreshold, cfg.Risk.MaxBetSize),
	}

	var notifier *alerting.Notifier
	if cfg.TelegramToken != "" {
		statsProvider := &repoStatsProvider{dailyStats: repos.DailyStats, positions: repos.Positions, balanceMgr: balanceMgr}
		notifier, err = alerting.New(cfg.TelegramToken, cfg.TelegramChatID, cfg.AlertCooldown, statsProvider)
		if err != nil {
			log.Error().Err(err).Msg("🤖 telegram notifier disabled")
			notifier = nil
		} else {
			notifier.SetControlCallbacks(sup.Pause, sup.Resume)
			notifier.Start()
			notifier.NotifyStartup(mode, balanceMgr.AvailableBalance())
		}
	}

	pipeline := &Pipeline{
		cfg:          cfg,
		sup:          sup,
		repos:        repos,
		metadata:     &marketMetadataLookup{markets: repos.Markets, tokens: repos.Tokens},
		riskGate:     riskGate,
		strategies:   strategies,
		triggerTr:    triggerTr,
		watchlistSvc: watchlistSvc,
		balanceMgr:   balanceMgr,
		orderMgr:     orderMgr,
		posTracker:   posTracker,
		tierMgr:      tierMgr,
		notifier:     notifier,
		latestPrice:  make(map[string]decimal.Decimal),
	}

	rest := ingestion.NewRESTClient(cfg.VenueAPIURL, cfg.VenueCLOBURL)
	fetcher := ingestion.NewUniverseFetcher(rest, repos.Markets, repos.Tokens, repos.Universe, repos.PriceSnapshots, cfg.MinInterPageDelay)
	syncSvc := syncsvc.NewService(store, repos.SyncRuns, fetcher)

	ws := ingestion.NewWSClient(cfg.VenueWSURL, cfg.HeartbeatTimeout, cfg.MaxReconnectDelay)
	ws.OnEvent(pipeline.handleEvent)

	sup.Spawn("websocket", func(ctx context.Context) error {
		if err := ws.Connect(); err != nil {
			return err
		}
		<-ctx.Done()
		ws.Close()
		return nil
	})

	sup.Spawn("sync", func(ctx context.Context) error {
		syncSvc.Run(ctx, cfg.FullSyncInterval, cfg.PriceSyncInterval, cfg.PriceSyncTopN)
		return nil
	})

	sup.Every("watchlist_rescore", cfg.Watchlist.RescoreInterval, pipeline.evaluateCandidates)
	sup.Every("order_reconcile", cfg.OrderReconcileInterval, pipeline.reconcileOrders)
	sup.Every("exit_cycle", time.Minute, pipeline.runExitCycle)
	sup.Every("tier_cycle", cfg.Tier.CycleInterval, pipeline.runTierCycle)
	sup.Every("balance_refresh", 5*time.Minute, func(ctx context.Context) error {
		return balanceMgr.RefreshBalance()
	})
	sup.Every("clear_stale_reservations", 10*time.Minute, pipeline.clearStaleReservations)
	sup.Every("expire_stale_approvals", 10*time.Minute, func(ctx context.Context) error {
		expired, err := repos.Approvals.ExpireStale()
		if err != nil {
			return err
		}
		if expired > 0 {
			log.Info().Int64("expired", expired).Msg("📋 expired stale approvals")
		}
		return nil
	})

	if notifier != nil {
		sup.Every("daily_summary", 24*time.Hour, func(ctx context.Context) error {
			notifier.NotifyDailySummary()
			return nil
		})
	}

	log.Info().Msg("✅ all services started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 shutting down")
	if notifier != nil {
		notifier.Stop()
	}
	if err := sup.Shutdown(30 * time.Second); err != nil {
		log.Error().Err(err).Msg("🛑 shutdown did not complete cleanly")
	}
	log.Info().Msg("👋 goodbye")
}

func orderMode(dryRun bool) storage.OrderMode {
	if dryRun {
		return storage.ModePaper
	}
	return storage.ModeLive
}

// buildVenue wires the paper or live venue client and the balance manager
// that sits in front of it, depending on cfg.DryRun. Paper mode has no
// venue balance to read, so the refresh callback returns the configured
// starting balance unchanged every time.
func buildVenue(cfg *config.Config) (*balance.Manager, orders.VenueClient) {
	if cfg.DryRun {
		paperVenue := orders.NewPaperVenue(50)
		refresh := func() (decimal.Decimal, error) { return cfg.PaperStartingBalance, nil }
		bal := balance.NewManager(cfg.PaperStartingBalance, cfg.MinReserve, refresh)
		return bal, paperVenue
	}

	vc, err := venue.NewClient(cfg.VenueCLOBURL, venue.Credentials{
		APIKey:        cfg.Credentials.APIKey,
		APISecret:     cfg.Credentials.APISecret,
		APIPassphrase: cfg.Credentials.APIPassphrase,
		Funder:        cfg.Credentials.Funder,
		PrivateKeyHex: cfg.Credentials.PrivateKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build venue client")
	}

	initial, err := vc.Balance()
	if err != nil {
		log.Warn().Err(err).Msg("💰 initial balance fetch failed, starting from zero")
		initial = decimal.Zero
	}
	bal := balance.NewManager(initial, cfg.MinReserve, vc.Balance)
	return bal, vc
}
