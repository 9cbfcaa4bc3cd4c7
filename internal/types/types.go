package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Pair is a tradable instrument on Ostium, identified by a stable numeric index.
// Immutable once fetched; the pair map is a static snapshot for the process lifetime.
type Pair struct {
	Index  int
	Base   string
	Quote  string
	Symbol string // "BTC-USD"
}

// Position is an open leveraged trade of a tracked trader, as reported by the
// subgraph. Read-only inside the bot, never persisted.
type Position struct {
	ID            string
	Trader        string
	PairIndex     int
	IsLong        bool
	SizeUSD       float64 // notional, quote units
	CollateralUSD float64
	EntryPrice    float64
	Leverage      float64
}

// PositionView is a Position enriched for display and alerting. Built once per
// monitoring/display pass and discarded after use.
type PositionView struct {
	Position
	Symbol       string
	CurrentPrice float64
	PnLPct       float64
	DrawdownPct  float64
}

// Side returns "LONG" or "SHORT" for display.
func (v PositionView) Side() string {
	if v.IsLong {
		return "LONG"
	}
	return "SHORT"
}

// TradeIntent is an operator-selected copy trade plus the static trading
// profile. Immutable per execution.
type TradeIntent struct {
	PairIndex    int
	IsLong       bool
	AmountIn     float64   // collateral, USDC
	Leverage     float64
	SlippageBps  int
	TPTargets    []float64 // PnL% on margin, caller order is semantic
	SLTarget     *float64  // PnL% on margin, typically negative; nil = no SL
}

// OrderLeg is one leg of a split copy trade. Exists only during one execution.
type OrderLeg struct {
	Collateral decimal.Decimal // rounded to 6 decimals (USDC)
	PairIndex  int
	IsLong     bool
	Leverage   float64
	TP         decimal.Decimal // rounded to the pair's price precision, zero = none
	SL         decimal.Decimal
}

// Receipt is what the trade sink returns for one submitted (or simulated) leg.
type Receipt struct {
	LegIndex  int
	OrderID   string
	TxHash    string
	Simulated bool
	Timestamp time.Time
}

// ExecutionStatus tells whether an execution reached the live sink.
type ExecutionStatus string

const (
	StatusSimulated ExecutionStatus = "simulated"
	StatusSubmitted ExecutionStatus = "submitted"
)

// ExecutionResult is the outcome of one copy-trade execution.
type ExecutionResult struct {
	Status       ExecutionStatus
	CurrentPrice float64
	Legs         []OrderLeg
	Receipts     []Receipt
}

// SubmissionError reports a leg the trade sink rejected or failed. Legs
// submitted before the failing one are NOT rolled back; their receipts ride
// along so the operator can see what actually went through.
type SubmissionError struct {
	LegIndex  int
	Submitted []Receipt
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("leg %d submission failed (%d legs already live): %v",
		e.LegIndex, len(e.Submitted), e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
