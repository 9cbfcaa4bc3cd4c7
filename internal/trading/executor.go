package trading

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/ostibot/internal/oracle"
	"github.com/web3guy0/ostibot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// COPY TRADE EXECUTOR - Three-leg split orders with laddered TPs
// ═══════════════════════════════════════════════════════════════════════════════
//
// One copy trade becomes three legs at 33/33/34% of the collateral, each with
// its own TP from the laddered target list and one shared SL. Legs are
// submitted sequentially; a failed leg aborts the rest but earlier legs stay
// live (no compensating cancellation).
//
// The dry-run path computes exactly the same leg parameters as the live path
// and stops short of the sink.
//
// ═══════════════════════════════════════════════════════════════════════════════

const legCount = 3

var legFractions = []decimal.Decimal{
	decimal.NewFromFloat(0.33),
	decimal.NewFromFloat(0.33),
	decimal.NewFromFloat(0.34),
}

// collateralPrecision is USDC's 6 decimals.
const collateralPrecision = 6

// PriceGetter resolves the current spot price (the oracle).
type PriceGetter interface {
	GetPrice(ctx context.Context, base, quote string) (float64, error)
}

// Sink submits one order leg to the venue.
type Sink interface {
	SubmitLeg(ctx context.Context, leg types.OrderLeg, atPrice, slippagePct float64) (types.Receipt, error)
}

// Executor turns an operator-selected pair/direction into submitted order legs.
// Executions are serialized: the sink handle is shared, and interleaving two
// multi-leg submissions against one wallet invites nonce races.
type Executor struct {
	mu     sync.Mutex
	oracle PriceGetter
	sink   Sink
	dryRun bool
}

// NewExecutor creates an executor over the given oracle and trade sink.
func NewExecutor(priceGetter PriceGetter, sink Sink, dryRun bool) *Executor {
	return &Executor{
		oracle: priceGetter,
		sink:   sink,
		dryRun: dryRun,
	}
}

// Execute opens a copy trade. The current spot price must resolve and be
// positive or the execution fails before any leg is submitted.
func (e *Executor) Execute(ctx context.Context, intent types.TradeIntent, pair types.Pair) (*types.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, err := e.oracle.GetPrice(ctx, pair.Base, pair.Quote)
	if err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: no live price for %s", oracle.ErrPriceUnavailable, pair.Symbol)
	}

	tpPrices, slPrice := TPSLPrices(price, intent.Leverage, intent.TPTargets, intent.SLTarget, intent.IsLong)
	legs := BuildLegs(intent, pair, tpPrices, slPrice)

	log.Info().
		Str("pair", pair.Symbol).
		Bool("long", intent.IsLong).
		Float64("price", price).
		Float64("amount", intent.AmountIn).
		Float64("leverage", intent.Leverage).
		Bool("dry_run", e.dryRun).
		Msg("⚡ Executing copy trade")

	if e.dryRun {
		return &types.ExecutionResult{
			Status:       types.StatusSimulated,
			CurrentPrice: price,
			Legs:         legs,
			Receipts:     simulatedReceipts(legs),
		}, nil
	}

	// Slippage is a property of the whole execution, translated from basis
	// points to percent and handed to the sink per call.
	slippagePct := float64(intent.SlippageBps) / 100

	receipts := make([]types.Receipt, 0, len(legs))
	for i, leg := range legs {
		receipt, err := e.sink.SubmitLeg(ctx, leg, price, slippagePct)
		if err != nil {
			return nil, &types.SubmissionError{LegIndex: i, Submitted: receipts, Err: err}
		}
		receipt.LegIndex = i
		receipts = append(receipts, receipt)
	}

	return &types.ExecutionResult{
		Status:       types.StatusSubmitted,
		CurrentPrice: price,
		Legs:         legs,
		Receipts:     receipts,
	}, nil
}

// BuildLegs splits the collateral 33/33/34 and assigns laddered TPs. A TP list
// shorter than three legs is padded by repeating its last value; an empty list
// leaves all legs without TP. Prices are rounded to the pair's precision,
// collateral to USDC's six decimals.
func BuildLegs(intent types.TradeIntent, pair types.Pair, tpPrices []float64, slPrice *float64) []types.OrderLeg {
	prec := PricePrecision(pair.Base, pair.Quote)
	amount := decimal.NewFromFloat(intent.AmountIn)

	sl := decimal.Zero
	if slPrice != nil {
		sl = decimal.NewFromFloat(*slPrice).Round(prec)
	}

	legs := make([]types.OrderLeg, 0, legCount)
	for i, frac := range legFractions {
		tp := decimal.Zero
		if len(tpPrices) > 0 {
			idx := i
			if idx >= len(tpPrices) {
				idx = len(tpPrices) - 1
			}
			tp = decimal.NewFromFloat(tpPrices[idx]).Round(prec)
		}

		legs = append(legs, types.OrderLeg{
			Collateral: amount.Mul(frac).Round(collateralPrecision),
			PairIndex:  intent.PairIndex,
			IsLong:     intent.IsLong,
			Leverage:   intent.Leverage,
			TP:         tp,
			SL:         sl,
		})
	}
	return legs
}

// PricePrecision is the fixed decimals table by instrument class: majors and
// metals quoted in USD round to 2, other USD pairs (forex, indices) to 4,
// crypto-quoted pairs to 8.
func PricePrecision(base, quote string) int32 {
	switch strings.ToUpper(quote) {
	case "USD":
		switch strings.ToUpper(base) {
		case "BTC", "ETH", "XAU", "XAG":
			return 2
		default:
			return 4
		}
	default:
		return 8
	}
}

func simulatedReceipts(legs []types.OrderLeg) []types.Receipt {
	receipts := make([]types.Receipt, 0, len(legs))
	for i := range legs {
		receipts = append(receipts, types.Receipt{
			LegIndex:  i,
			OrderID:   fmt.Sprintf("SIM-%d", i),
			Simulated: true,
		})
	}
	return receipts
}
