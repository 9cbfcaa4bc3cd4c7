package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRICE ORACLE - Retrying wrapper around the spot price source
// ═══════════════════════════════════════════════════════════════════════════════

// ErrPriceUnavailable means the spot price fetch exhausted its retries.
// Callers decide the fallback: the snapshot builder substitutes the entry
// price, the copy-trade executor aborts before any submission.
var ErrPriceUnavailable = errors.New("spot price unavailable")

// PriceSource is the external spot price lookup.
type PriceSource interface {
	SpotPrice(ctx context.Context, base, quote string) (float64, error)
}

// RetryPolicy describes a bounded exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the production tuning: 3 attempts total,
// 500ms base, capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// delayFor returns the backoff before retry number attempt (0-based).
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// Oracle fetches spot prices with retries. In dry-run mode it returns the
// sentinel 0 without touching the source; callers treat 0 as "no live price"
// uniformly in both the dry-run and failure paths.
type Oracle struct {
	source PriceSource
	policy RetryPolicy
	dryRun bool

	sleep func(time.Duration) // swapped in tests
}

// New creates an oracle around the given source.
func New(source PriceSource, policy RetryPolicy, dryRun bool) *Oracle {
	return &Oracle{
		source: source,
		policy: policy,
		dryRun: dryRun,
		sleep:  time.Sleep,
	}
}

// GetPrice returns the current spot price of one unit of base in quote units.
// A non-positive returned price is NOT retried here — whether 0 is a soft
// failure is the caller's call, not the oracle's.
func (o *Oracle) GetPrice(ctx context.Context, base, quote string) (float64, error) {
	if o.dryRun {
		log.Debug().Str("pair", base+"-"+quote).Msg("dry run, returning sentinel price 0")
		return 0, nil
	}

	var lastErr error
	for attempt := 0; attempt < o.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			o.sleep(o.policy.delayFor(attempt - 1))
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		price, err := o.source.SpotPrice(ctx, base, quote)
		if err == nil {
			return price, nil
		}
		lastErr = err

		log.Warn().
			Err(err).
			Str("pair", base+"-"+quote).
			Int("attempt", attempt+1).
			Int("max_attempts", o.policy.MaxAttempts).
			Msg("spot price fetch failed")
	}

	return 0, fmt.Errorf("%w: %w", ErrPriceUnavailable, lastErr)
}
