package bot

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/ostibot/internal/config"
	"github.com/web3guy0/ostibot/internal/types"
)

func TestParseCopyCallback(t *testing.T) {
	cases := []struct {
		data    string
		pair    int
		isLong  bool
		wantErr bool
	}{
		{"copy:0:long", 0, true, false},
		{"copy:17:short", 17, false, false},
		{"copy:17", 0, false, true},
		{"copy:abc:long", 0, false, true},
		{"copy:3:sideways", 0, false, true},
		{"refresh", 0, false, true},
	}

	for _, c := range cases {
		pair, isLong, err := parseCopyCallback(c.data)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseCopyCallback(%q): expected error", c.data)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCopyCallback(%q): %v", c.data, err)
			continue
		}
		if pair != c.pair || isLong != c.isLong {
			t.Errorf("parseCopyCallback(%q) = (%d, %v), want (%d, %v)", c.data, pair, isLong, c.pair, c.isLong)
		}
	}
}

func TestIntentForRespectsCopyTPSL(t *testing.T) {
	sl := -10.0
	off := false

	b := &Bot{profile: &config.Profile{
		AmountIn:     300,
		Leverage:     10,
		SlippageBps:  50,
		TPPnLTargets: []float64{5, 10},
		SLPnL:        &sl,
	}}

	intent := b.intentFor(2, true)
	if intent.PairIndex != 2 || !intent.IsLong {
		t.Errorf("intent pair/side: %+v", intent)
	}
	if len(intent.TPTargets) != 2 || intent.SLTarget == nil {
		t.Errorf("TP/SL should follow the profile when copy_tp_sl is on: %+v", intent)
	}

	b.profile.CopyTPSL = &off
	intent = b.intentFor(2, false)
	if len(intent.TPTargets) != 0 || intent.SLTarget != nil {
		t.Errorf("TP/SL must be dropped when copy_tp_sl is off: %+v", intent)
	}
}

func TestFormatExecutionResult(t *testing.T) {
	pair := types.Pair{Index: 0, Base: "BTC", Quote: "USD", Symbol: "BTC-USD"}
	result := &types.ExecutionResult{
		Status:       types.StatusSubmitted,
		CurrentPrice: 50000,
		Legs: []types.OrderLeg{
			{Collateral: decimal.NewFromInt(99), TP: decimal.NewFromInt(52500), SL: decimal.NewFromInt(47500)},
			{Collateral: decimal.NewFromInt(99), TP: decimal.NewFromInt(55000), SL: decimal.NewFromInt(47500)},
			{Collateral: decimal.NewFromInt(102), TP: decimal.NewFromInt(55000), SL: decimal.NewFromInt(47500)},
		},
		Receipts: []types.Receipt{
			{LegIndex: 0, OrderID: "ord-1"},
			{LegIndex: 1, OrderID: "ord-2"},
			{LegIndex: 2, OrderID: "ord-3"},
		},
	}

	text := formatExecutionResult(pair, true, result)
	for _, want := range []string{"BTC-USD", "LONG", "Leg 1", "Leg 3", "52500", "47500", "ord-3", "submitted"} {
		if !strings.Contains(text, want) {
			t.Errorf("result text missing %q:\n%s", want, text)
		}
	}

	result.Status = types.StatusSimulated
	if text := formatExecutionResult(pair, true, result); !strings.Contains(text, "dry run") {
		t.Errorf("simulated result should say dry run:\n%s", text)
	}
}

func TestFormatExecutionResultNoTPSL(t *testing.T) {
	pair := types.Pair{Symbol: "EUR-USD"}
	result := &types.ExecutionResult{
		Status:       types.StatusSimulated,
		CurrentPrice: 1.1,
		Legs: []types.OrderLeg{
			{Collateral: decimal.NewFromInt(100)},
		},
	}

	text := formatExecutionResult(pair, false, result)
	if strings.Contains(text, "TP") || strings.Contains(text, "SL") {
		t.Errorf("no TP/SL requested but text shows one:\n%s", text)
	}
}

func TestFormatPosition(t *testing.T) {
	v := types.PositionView{
		Position: types.Position{
			Trader: "0xabc", IsLong: false, EntryPrice: 2000,
			Leverage: 5, CollateralUSD: 100, SizeUSD: 500,
		},
		Symbol:       "ETH-USD",
		CurrentPrice: 1900,
		PnLPct:       25,
		DrawdownPct:  0,
	}

	text := formatPosition(v)
	for _, want := range []string{"ETH-USD", "SHORT", "0xabc", "+25.00%"} {
		if !strings.Contains(text, want) {
			t.Errorf("position text missing %q:\n%s", want, text)
		}
	}
}
