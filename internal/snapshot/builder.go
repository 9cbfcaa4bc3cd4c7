package snapshot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/ostibot/internal/trading"
	"github.com/web3guy0/ostibot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SNAPSHOT BUILDER - Live view of tracked traders
// ═══════════════════════════════════════════════════════════════════════════════
//
// Best effort by design: one trader's subgraph hiccup drops that trader from
// the pass, a dead price source degrades to the entry price. Monitoring must
// never halt because a single upstream call failed.
//
// ═══════════════════════════════════════════════════════════════════════════════

// PositionSource fetches the open positions of one trader.
type PositionSource interface {
	GetOpenTrades(ctx context.Context, trader string) ([]types.Position, error)
}

// PriceGetter resolves the current spot price (the oracle).
type PriceGetter interface {
	GetPrice(ctx context.Context, base, quote string) (float64, error)
}

// Builder assembles display/alert-ready position views.
type Builder struct {
	source  PositionSource
	oracle  PriceGetter
	pairs   map[int]types.Pair
	traders []string
}

// NewBuilder creates a snapshot builder over a static pair map and a fixed
// tracked-trader list.
func NewBuilder(source PositionSource, priceGetter PriceGetter, pairs map[int]types.Pair, traders []string) *Builder {
	return &Builder{
		source:  source,
		oracle:  priceGetter,
		pairs:   pairs,
		traders: traders,
	}
}

// Build produces one enriched snapshot pass. An empty tracked-trader list
// yields an empty snapshot — there is no implicit "track everyone".
func (b *Builder) Build(ctx context.Context) ([]types.PositionView, error) {
	if len(b.traders) == 0 {
		return []types.PositionView{}, nil
	}

	var positions []types.Position
	for _, trader := range b.traders {
		trades, err := b.source.GetOpenTrades(ctx, trader)
		if err != nil {
			log.Warn().Err(err).Str("trader", trader).Msg("skipping trader this pass")
			continue
		}
		positions = append(positions, trades...)
	}

	// One price fetch per pair index per pass.
	priceCache := make(map[int]float64)

	views := make([]types.PositionView, 0, len(positions))
	for _, pos := range positions {
		pair, known := b.pairs[pos.PairIndex]
		if !known {
			pair = types.Pair{
				Index:  pos.PairIndex,
				Base:   "UNKNOWN",
				Quote:  "USD",
				Symbol: fmt.Sprintf("PAIR-%d", pos.PairIndex),
			}
		}

		current, cached := priceCache[pos.PairIndex]
		if !cached {
			current = b.resolvePrice(ctx, pair, pos.EntryPrice)
			priceCache[pos.PairIndex] = current
		}

		views = append(views, types.PositionView{
			Position:     pos,
			Symbol:       pair.Symbol,
			CurrentPrice: current,
			PnLPct:       trading.PnLPct(pos.EntryPrice, current, pos.IsLong, pos.Leverage),
			DrawdownPct:  trading.Drawdown(pos.EntryPrice, current, pos.IsLong, pos.Leverage),
		})
	}

	log.Debug().Int("positions", len(views)).Msg("snapshot built")
	return views, nil
}

// resolvePrice fetches the live price, falling back to the entry price when
// the oracle fails or reports the no-price sentinel. The first position's
// entry price seeds the fallback for its whole pair this pass.
func (b *Builder) resolvePrice(ctx context.Context, pair types.Pair, entryPrice float64) float64 {
	price, err := b.oracle.GetPrice(ctx, pair.Base, pair.Quote)
	if err != nil {
		log.Warn().Err(err).Str("pair", pair.Symbol).Msg("price unavailable, using entry price")
		return entryPrice
	}
	if price <= 0 {
		return entryPrice
	}
	return price
}
