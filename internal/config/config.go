package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all environment-sourced settings for the bot
type Config struct {
	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Ostium / Arbitrum
	ArbitrumRPCURL string
	SubgraphURL    string
	PriceAPIURL    string
	PriceWSURL     string
	GatewayURL     string
	Network        string // "mainnet" or "testnet"
	VaultAddress   string
	RouterAddress  string
	USDCAddress    string

	// Wallet
	WalletAddress string
	PrivateKey    string

	// Monitoring
	TargetWallet string
	PollInterval time.Duration

	// Mode
	DryRun bool
	Debug  bool

	// Database
	DatabasePath string
}

// Profile is the trading profile loaded from config.json. It carries the copy
// trade sizing and the drawdown alert band.
type Profile struct {
	DrawdownMin  float64   `json:"drawdown_min"`
	DrawdownMax  float64   `json:"drawdown_max"`
	AmountIn     float64   `json:"amount_in"`
	Leverage     float64   `json:"leverage"`
	TPPnLTargets []float64 `json:"tp_pnl_targets"`
	SLPnL        *float64  `json:"sl_pnl"`
	SlippageBps  int       `json:"slippage_bps"`
	Traders      []string  `json:"traders"`
	CopyTPSL     *bool     `json:"copy_tp_sl"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		ArbitrumRPCURL: os.Getenv("ARBITRUM_RPC_URL"),
		SubgraphURL:    os.Getenv("OSTIUM_SUBGRAPH_URL"),
		PriceAPIURL:    getEnv("OSTIUM_PRICE_API_URL", "https://metadata-backend.ostium.io"),
		PriceWSURL:     os.Getenv("OSTIUM_PRICE_WS_URL"),
		GatewayURL:     getEnv("OSTIUM_GATEWAY_URL", "https://api.ostium.io"),
		Network:        strings.ToLower(getEnv("OSTIUM_NETWORK", "mainnet")),
		VaultAddress:   os.Getenv("OSTIUM_VAULT_ADDRESS"),
		RouterAddress:  os.Getenv("OSTIUM_ROUTER_ADDRESS"),
		USDCAddress:    os.Getenv("USDC_ADDRESS"),

		WalletAddress: os.Getenv("WALLET_ADDRESS"),
		PrivateKey:    os.Getenv("PRIVATE_KEY"),

		TargetWallet: os.Getenv("TARGET_WALLET"),
		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 30)) * time.Second,

		DryRun: getEnvBool("TEST_MODE", true),
		Debug:  getEnvBool("DEBUG", false),

		DatabasePath: getEnv("DATABASE_PATH", "data/ostibot.db"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	// Validate required fields
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if cfg.SubgraphURL == "" {
		return nil, fmt.Errorf("OSTIUM_SUBGRAPH_URL is required")
	}
	if cfg.Network != "mainnet" && cfg.Network != "testnet" {
		return nil, fmt.Errorf("OSTIUM_NETWORK must be mainnet or testnet, got %q", cfg.Network)
	}
	if !cfg.DryRun {
		if cfg.ArbitrumRPCURL == "" {
			return nil, fmt.Errorf("ARBITRUM_RPC_URL is required in live mode")
		}
		if cfg.PrivateKey == "" || cfg.WalletAddress == "" {
			return nil, fmt.Errorf("PRIVATE_KEY and WALLET_ADDRESS are required in live mode")
		}
	}

	return cfg, nil
}

// LoadProfile reads and validates the trading profile from config.json
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	p := &Profile{
		DrawdownMin: 20.0,
		DrawdownMax: 30.0,
		SlippageBps: 50,
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if p.TPPnLTargets == nil {
		p.TPPnLTargets = []float64{5.0, 10.0}
	}
	if p.SLPnL == nil {
		sl := -10.0
		p.SLPnL = &sl
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate rejects profiles that would produce nonsensical trades or alerts.
func (p *Profile) Validate() error {
	if p.DrawdownMin <= 0 || p.DrawdownMax <= 0 {
		return fmt.Errorf("drawdown band must be positive, got [%.2f, %.2f]", p.DrawdownMin, p.DrawdownMax)
	}
	if p.DrawdownMin > p.DrawdownMax {
		return fmt.Errorf("drawdown_min %.2f above drawdown_max %.2f", p.DrawdownMin, p.DrawdownMax)
	}
	if p.AmountIn <= 0 {
		return fmt.Errorf("amount_in must be positive, got %.2f", p.AmountIn)
	}
	if p.Leverage <= 1 {
		return fmt.Errorf("leverage must be above 1, got %.2f", p.Leverage)
	}
	if p.SlippageBps <= 0 {
		return fmt.Errorf("slippage_bps must be positive, got %d", p.SlippageBps)
	}
	return nil
}

// CopyTPSLEnabled defaults to true when the field is omitted.
func (p *Profile) CopyTPSLEnabled() bool {
	return p.CopyTPSL == nil || *p.CopyTPSL
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
