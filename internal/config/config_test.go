package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadProfileDefaults(t *testing.T) {
	path := writeProfile(t, `{"amount_in": 300, "leverage": 5}`)

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.DrawdownMin != 20.0 || p.DrawdownMax != 30.0 {
		t.Errorf("band got [%.1f, %.1f], want [20.0, 30.0]", p.DrawdownMin, p.DrawdownMax)
	}
	if len(p.TPPnLTargets) != 2 || p.TPPnLTargets[0] != 5.0 || p.TPPnLTargets[1] != 10.0 {
		t.Errorf("tp targets got %v, want [5 10]", p.TPPnLTargets)
	}
	if p.SLPnL == nil || *p.SLPnL != -10.0 {
		t.Errorf("sl got %v, want -10", p.SLPnL)
	}
	if p.SlippageBps != 50 {
		t.Errorf("slippage got %d, want 50", p.SlippageBps)
	}
	if !p.CopyTPSLEnabled() {
		t.Error("copy_tp_sl should default to enabled")
	}
}

func TestLoadProfileRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"zero amount", `{"amount_in": 0, "leverage": 5}`},
		{"leverage one", `{"amount_in": 100, "leverage": 1}`},
		{"inverted band", `{"amount_in": 100, "leverage": 5, "drawdown_min": 40, "drawdown_max": 30}`},
		{"negative slippage", `{"amount_in": 100, "leverage": 5, "slippage_bps": -1}`},
		{"bad json", `{"amount_in": `},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadProfile(writeProfile(t, tc.body)); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing config.json")
	}
}

func TestLoadRequiresTelegram(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	t.Setenv("OSTIUM_SUBGRAPH_URL", "https://example.com/subgraph")
	t.Setenv("TEST_MODE", "true")

	if _, err := Load(); err == nil {
		t.Error("expected error when telegram settings are missing")
	}
}

func TestLoadLiveModeRequiresWallet(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("OSTIUM_SUBGRAPH_URL", "https://example.com/subgraph")
	t.Setenv("TEST_MODE", "false")
	t.Setenv("ARBITRUM_RPC_URL", "https://arb1.example.com")
	t.Setenv("PRIVATE_KEY", "")
	t.Setenv("WALLET_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when live mode lacks wallet credentials")
	}
}

func TestLoadDryRunDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("OSTIUM_SUBGRAPH_URL", "https://example.com/subgraph")
	t.Setenv("TEST_MODE", "")
	t.Setenv("POLL_INTERVAL_SECONDS", "")
	t.Setenv("OSTIUM_NETWORK", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DryRun {
		t.Error("TEST_MODE should default to true")
	}
	if cfg.PollInterval.Seconds() != 30 {
		t.Errorf("poll interval got %v, want 30s", cfg.PollInterval)
	}
	if cfg.Network != "mainnet" {
		t.Errorf("network got %q, want mainnet", cfg.Network)
	}
}
