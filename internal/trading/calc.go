package trading

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION MATH - Drawdown / PnL / TP-SL level calculators
// ═══════════════════════════════════════════════════════════════════════════════
//
// All percentages are margin-relative: leverage amplifies the underlying price
// move, so a +5% PnL target at 2x leverage is a +2.5% move on the underlying.
// Pure arithmetic, no rounding — callers round for display.
//
// ═══════════════════════════════════════════════════════════════════════════════

// PnLPct returns the signed margin-relative return in percent.
// Zero for degenerate inputs (entry or leverage not positive).
func PnLPct(entryPrice, currentPrice float64, isLong bool, leverage float64) float64 {
	if entryPrice <= 0 || leverage <= 0 {
		return 0
	}
	priceMovePct := (currentPrice - entryPrice) / entryPrice * 100
	if !isLong {
		priceMovePct = -priceMovePct
	}
	return priceMovePct * leverage
}

// Drawdown returns the unrealized loss in percent of margin, never negative.
// A position at or above breakeven reports exactly 0. Degenerate inputs
// (entry or leverage not positive) are a no-op, not an error.
func Drawdown(entryPrice, currentPrice float64, isLong bool, leverage float64) float64 {
	pnl := PnLPct(entryPrice, currentPrice, isLong, leverage)
	if pnl >= 0 {
		return 0
	}
	return -pnl
}

// TPSLPrices converts margin PnL% targets into absolute price levels.
// The returned TP slice preserves the caller's target order (the first TP is
// meant to be hit first); slTarget may be nil for no stop. Degenerate inputs
// yield (nil, nil).
func TPSLPrices(entryPrice, leverage float64, tpTargets []float64, slTarget *float64, isLong bool) ([]float64, *float64) {
	if entryPrice <= 0 || leverage <= 0 {
		return nil, nil
	}

	tpPrices := make([]float64, 0, len(tpTargets))
	for _, target := range tpTargets {
		tpPrices = append(tpPrices, levelFor(entryPrice, leverage, target, isLong))
	}

	var slPrice *float64
	if slTarget != nil {
		p := levelFor(entryPrice, leverage, *slTarget, isLong)
		slPrice = &p
	}

	return tpPrices, slPrice
}

func levelFor(entryPrice, leverage, targetPnLPct float64, isLong bool) float64 {
	move := (targetPnLPct / 100) / leverage
	if isLong {
		return entryPrice * (1 + move)
	}
	return entryPrice * (1 - move)
}
