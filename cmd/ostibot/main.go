// Ostibot - Copy-trade bot for Ostium perpetuals on Arbitrum
//
// The bot tracks the open positions of configured traders via the Ostium
// subgraph, alerts on Telegram when a position's drawdown enters the
// configured band, and mirrors selected positions as three-leg split orders
// with laddered take-profits.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/ostibot/internal/bot"
	"github.com/web3guy0/ostibot/internal/config"
	"github.com/web3guy0/ostibot/internal/database"
	"github.com/web3guy0/ostibot/internal/feeds"
	"github.com/web3guy0/ostibot/internal/monitor"
	"github.com/web3guy0/ostibot/internal/oracle"
	"github.com/web3guy0/ostibot/internal/ostium"
	"github.com/web3guy0/ostibot/internal/snapshot"
	"github.com/web3guy0/ostibot/internal/subgraph"
	"github.com/web3guy0/ostibot/internal/trading"
	"github.com/web3guy0/ostibot/internal/types"
)

const version = "1.0.0"

const profilePath = "config.json"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	profile, err := config.LoadProfile(profilePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", profilePath).Msg("Failed to load trading profile")
	}

	log.Info().
		Str("version", version).
		Str("network", cfg.Network).
		Bool("dry_run", cfg.DryRun).
		Msg("⚡ Ostibot starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// ====== CORE COMPONENTS ======

	// 1. Subgraph client - pairs and tracked-trader positions
	graph := subgraph.NewClient(cfg.SubgraphURL)

	pairList, err := graph.GetPairs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch tradable pairs")
	}
	pairs := make(map[int]types.Pair, len(pairList))
	for _, p := range pairList {
		pairs[p.Index] = p
	}
	log.Info().Int("pairs", len(pairs)).Msg("📊 Pair map loaded")

	// 2. Price sources - HTTP API with optional WebSocket fast path
	priceAPI := ostium.NewPriceAPI(cfg.PriceAPIURL)

	var stream *feeds.PriceStream
	if cfg.PriceWSURL != "" {
		stream = feeds.NewPriceStream(cfg.PriceWSURL)
		stream.Start()
		priceAPI.SetStream(stream)
		log.Info().Msg("📈 Price WebSocket connected")
	}

	priceOracle := oracle.New(priceAPI, oracle.DefaultRetryPolicy(), cfg.DryRun)

	// 3. Execution client - Ostium order gateway + Arbitrum RPC
	execClient, err := ostium.NewClient(ostium.Config{
		RPCURL:        cfg.ArbitrumRPCURL,
		GatewayURL:    cfg.GatewayURL,
		Network:       cfg.Network,
		VaultAddress:  cfg.VaultAddress,
		RouterAddress: cfg.RouterAddress,
		USDCAddress:   cfg.USDCAddress,
		WalletAddress: cfg.WalletAddress,
		PrivateKey:    cfg.PrivateKey,
		DryRun:        cfg.DryRun,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize execution client")
	}

	// 4. Copy-trade executor
	executor := trading.NewExecutor(priceOracle, execClient, cfg.DryRun)

	// 5. Snapshot builder over the tracked traders
	traders := profile.Traders
	if len(traders) == 0 && cfg.TargetWallet != "" {
		traders = []string{cfg.TargetWallet}
	}
	if len(traders) == 0 {
		log.Warn().Msg("⚠️ No tracked traders configured - monitoring is idle")
	}
	builder := snapshot.NewBuilder(graph, priceOracle, pairs, traders)

	// ====== TELEGRAM BOT ======
	telegramBot, err := bot.New(cfg, profile, builder, executor, execClient, db, pairs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	telegramBot.Start()

	// ====== DRAWDOWN MONITOR ======
	ddMonitor := monitor.New(builder, telegramBot, cfg.PollInterval,
		profile.DrawdownMin, profile.DrawdownMax)
	ddMonitor.Start(ctx)

	log.Info().Msg("✅ All systems online")
	log.Info().Msg("💡 Use /help for commands")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("🛑 Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("🛑 Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down...")

	ddMonitor.Stop()
	telegramBot.Stop()
	if stream != nil {
		stream.Stop()
	}
	execClient.Close()

	log.Info().Msg("👋 Goodbye!")
}
