package snapshot

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/web3guy0/ostibot/internal/types"
)

type fakeSource struct {
	byTrader map[string][]types.Position
	errFor   map[string]error
	calls    []string
}

func (f *fakeSource) GetOpenTrades(_ context.Context, trader string) ([]types.Position, error) {
	f.calls = append(f.calls, trader)
	if err := f.errFor[trader]; err != nil {
		return nil, err
	}
	return f.byTrader[trader], nil
}

type fakeOracle struct {
	prices map[string]float64
	errFor map[string]error
	calls  map[string]int
}

func (f *fakeOracle) GetPrice(_ context.Context, base, quote string) (float64, error) {
	key := base + "-" + quote
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[key]++
	if err := f.errFor[key]; err != nil {
		return 0, err
	}
	return f.prices[key], nil
}

func pairMap() map[int]types.Pair {
	return map[int]types.Pair{
		0: {Index: 0, Base: "BTC", Quote: "USD", Symbol: "BTC-USD"},
		1: {Index: 1, Base: "ETH", Quote: "USD", Symbol: "ETH-USD"},
	}
}

func longPos(id, trader string, pairIndex int, entry, leverage float64) types.Position {
	return types.Position{
		ID: id, Trader: trader, PairIndex: pairIndex,
		IsLong: true, EntryPrice: entry, Leverage: leverage,
		CollateralUSD: 100, SizeUSD: 100 * leverage,
	}
}

func TestBuildEmptyTraderList(t *testing.T) {
	src := &fakeSource{}
	b := NewBuilder(src, &fakeOracle{}, pairMap(), nil)

	views, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("got %d views, want 0", len(views))
	}
	if len(src.calls) != 0 {
		t.Error("no trader means no fetches")
	}
}

func TestBuildSkipsFailedTrader(t *testing.T) {
	src := &fakeSource{
		byTrader: map[string][]types.Position{
			"0xaaa": {longPos("a1", "0xaaa", 0, 100, 2)},
			"0xbbb": {longPos("b1", "0xbbb", 1, 2000, 3)},
		},
		errFor: map[string]error{"0xaaa": errors.New("subgraph timeout")},
	}
	oracle := &fakeOracle{prices: map[string]float64{"BTC-USD": 100, "ETH-USD": 2000}}

	views, err := NewBuilder(src, oracle, pairMap(), []string{"0xaaa", "0xbbb"}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(views) != 1 || views[0].ID != "b1" {
		t.Fatalf("got %+v, want only 0xbbb's position", views)
	}
}

func TestBuildComputesDrawdownAndPnL(t *testing.T) {
	src := &fakeSource{byTrader: map[string][]types.Position{
		"0xaaa": {longPos("a1", "0xaaa", 0, 100, 2)},
	}}
	oracle := &fakeOracle{prices: map[string]float64{"BTC-USD": 90}}

	views, err := NewBuilder(src, oracle, pairMap(), []string{"0xaaa"}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	v := views[0]
	if v.Symbol != "BTC-USD" || v.CurrentPrice != 90 {
		t.Errorf("view got %+v", v)
	}
	if math.Abs(v.PnLPct-(-20)) > 1e-9 {
		t.Errorf("pnl got %f, want -20", v.PnLPct)
	}
	if math.Abs(v.DrawdownPct-20) > 1e-9 {
		t.Errorf("drawdown got %f, want 20", v.DrawdownPct)
	}
}

func TestBuildPriceCachePerPair(t *testing.T) {
	src := &fakeSource{byTrader: map[string][]types.Position{
		"0xaaa": {
			longPos("a1", "0xaaa", 0, 100, 2),
			longPos("a2", "0xaaa", 0, 110, 5),
			longPos("a3", "0xaaa", 1, 2000, 2),
		},
	}}
	oracle := &fakeOracle{prices: map[string]float64{"BTC-USD": 105, "ETH-USD": 1900}}

	_, err := NewBuilder(src, oracle, pairMap(), []string{"0xaaa"}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if oracle.calls["BTC-USD"] != 1 {
		t.Errorf("BTC-USD fetched %d times, want 1 (pass-scoped cache)", oracle.calls["BTC-USD"])
	}
	if oracle.calls["ETH-USD"] != 1 {
		t.Errorf("ETH-USD fetched %d times, want 1", oracle.calls["ETH-USD"])
	}
}

func TestBuildEntryPriceFallback(t *testing.T) {
	src := &fakeSource{byTrader: map[string][]types.Position{
		"0xaaa": {longPos("a1", "0xaaa", 0, 50, 2)},
	}}

	// Oracle failure → fallback to entry price → no move → zero drawdown.
	oracle := &fakeOracle{errFor: map[string]error{"BTC-USD": errors.New("down")}}
	views, err := NewBuilder(src, oracle, pairMap(), []string{"0xaaa"}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if views[0].CurrentPrice != 50 {
		t.Errorf("current price got %f, want entry 50", views[0].CurrentPrice)
	}
	if views[0].DrawdownPct != 0 {
		t.Errorf("drawdown got %f, want 0", views[0].DrawdownPct)
	}

	// Sentinel 0 (dry run) takes the same fallback.
	oracle = &fakeOracle{prices: map[string]float64{"BTC-USD": 0}}
	views, err = NewBuilder(src, oracle, pairMap(), []string{"0xaaa"}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if views[0].CurrentPrice != 50 {
		t.Errorf("sentinel path: current price got %f, want entry 50", views[0].CurrentPrice)
	}
}

func TestBuildUnknownPairPlaceholder(t *testing.T) {
	src := &fakeSource{byTrader: map[string][]types.Position{
		"0xaaa": {longPos("a1", "0xaaa", 42, 100, 2)},
	}}
	oracle := &fakeOracle{prices: map[string]float64{"UNKNOWN-USD": 0}}

	views, err := NewBuilder(src, oracle, pairMap(), []string{"0xaaa"}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if views[0].Symbol != "PAIR-42" {
		t.Errorf("symbol got %q, want PAIR-42", views[0].Symbol)
	}
}

func TestBuildIdempotentForFixedInputs(t *testing.T) {
	src := &fakeSource{byTrader: map[string][]types.Position{
		"0xaaa": {longPos("a1", "0xaaa", 0, 100, 2), longPos("a2", "0xaaa", 1, 2000, 3)},
	}}
	oracle := &fakeOracle{prices: map[string]float64{"BTC-USD": 95, "ETH-USD": 2100}}
	b := NewBuilder(src, oracle, pairMap(), []string{"0xaaa"})

	first, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("snapshots differ for unchanged inputs:\n%+v\n%+v", first, second)
	}
}
