package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/ostibot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DRAWDOWN MONITOR - Periodic scan + alert loop
// ═══════════════════════════════════════════════════════════════════════════════
//
// Scans tracked positions on a fixed interval and pushes an alert for every
// position whose drawdown sits inside the configured band. The loop is the
// bot's heartbeat: a failed pass is logged and the next tick runs regardless.
//
// ═══════════════════════════════════════════════════════════════════════════════

// SnapshotBuilder produces one pass of enriched position views.
type SnapshotBuilder interface {
	Build(ctx context.Context) ([]types.PositionView, error)
}

// AlertSink receives alert text (the Telegram bot in production).
type AlertSink interface {
	SendText(text string) error
}

// Monitor runs the periodic drawdown scan.
type Monitor struct {
	builder  SnapshotBuilder
	sink     AlertSink
	interval time.Duration
	minPct   float64
	maxPct   float64

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a monitor alerting on drawdowns inside [minPct, maxPct].
func New(builder SnapshotBuilder, sink AlertSink, interval time.Duration, minPct, maxPct float64) *Monitor {
	return &Monitor{
		builder:  builder,
		sink:     sink,
		interval: interval,
		minPct:   minPct,
		maxPct:   maxPct,
	}
}

// Start launches the scan loop. The first pass runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	log.Info().
		Dur("interval", m.interval).
		Float64("min_pct", m.minPct).
		Float64("max_pct", m.maxPct).
		Msg("📡 Drawdown monitor started")

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop halts the scan loop and waits for the in-flight pass to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	log.Info().Msg("Drawdown monitor stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runPass(ctx)

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runPass(ctx)
		}
	}
}

// runPass executes one scan. Panics and errors are confined to the pass.
func (m *Monitor) runPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("monitor pass panicked")
		}
	}()

	views, err := m.builder.Build(ctx)
	if err != nil {
		log.Error().Err(err).Msg("monitor pass failed")
		return
	}

	alerted := 0
	for _, v := range views {
		if !m.inBand(v.DrawdownPct) {
			continue
		}
		if err := m.sink.SendText(AlertText(v)); err != nil {
			log.Error().Err(err).Str("position", v.ID).Msg("alert delivery failed")
			continue
		}
		alerted++
	}

	log.Debug().Int("positions", len(views)).Int("alerts", alerted).Msg("monitor pass complete")
}

// inBand reports whether a drawdown falls inside the alert band. Both edges
// are inclusive.
func (m *Monitor) inBand(drawdownPct float64) bool {
	return drawdownPct >= m.minPct && drawdownPct <= m.maxPct
}

// AlertText formats one drawdown alert.
func AlertText(v types.PositionView) string {
	return fmt.Sprintf("⚠️ Drawdown %.1f%% on %s (trader %s, %s) | Entry %.4f, Price %.4f, Leverage %.0fx",
		v.DrawdownPct, v.Symbol, v.Trader, v.Side(), v.EntryPrice, v.CurrentPrice, v.Leverage)
}
