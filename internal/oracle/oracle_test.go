package oracle

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSource struct {
	prices []float64
	errs   []error
	calls  int
}

func (f *fakeSource) SpotPrice(_ context.Context, _, _ string) (float64, error) {
	i := f.calls
	f.calls++
	if i >= len(f.prices) {
		i = len(f.prices) - 1
	}
	return f.prices[i], f.errs[i]
}

func newTestOracle(src PriceSource, dryRun bool) (*Oracle, *[]time.Duration) {
	o := New(src, DefaultRetryPolicy(), dryRun)
	var slept []time.Duration
	o.sleep = func(d time.Duration) { slept = append(slept, d) }
	return o, &slept
}

func TestGetPriceFirstTry(t *testing.T) {
	src := &fakeSource{prices: []float64{42000.5}, errs: []error{nil}}
	o, slept := newTestOracle(src, false)

	price, err := o.GetPrice(context.Background(), "BTC", "USD")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if price != 42000.5 {
		t.Errorf("price got %.2f, want 42000.5", price)
	}
	if src.calls != 1 || len(*slept) != 0 {
		t.Errorf("calls=%d slept=%v, want one call and no backoff", src.calls, *slept)
	}
}

func TestGetPriceRetriesWithBackoff(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{
		prices: []float64{0, 0, 1850.25},
		errs:   []error{boom, boom, nil},
	}
	o, slept := newTestOracle(src, false)

	price, err := o.GetPrice(context.Background(), "ETH", "USD")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if price != 1850.25 {
		t.Errorf("price got %.2f, want 1850.25", price)
	}
	if src.calls != 3 {
		t.Errorf("calls got %d, want 3", src.calls)
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("backoffs got %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("backoff[%d] got %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestGetPriceExhaustsAttempts(t *testing.T) {
	boom := errors.New("subgraph down")
	src := &fakeSource{prices: []float64{0}, errs: []error{boom}}
	o, _ := newTestOracle(src, false)

	_, err := o.GetPrice(context.Background(), "BTC", "USD")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("want ErrPriceUnavailable, got %v", err)
	}
	// The final failure must still be visible, not swallowed.
	if !errors.Is(err, boom) {
		t.Errorf("final source error lost from chain: %v", err)
	}
	if src.calls != 3 {
		t.Errorf("calls got %d, want hard cap of 3", src.calls)
	}
}

func TestGetPriceNonPositiveNotRetried(t *testing.T) {
	// The source answering 0 without an error is a soft failure for callers,
	// not a retry trigger for the oracle.
	src := &fakeSource{prices: []float64{0}, errs: []error{nil}}
	o, _ := newTestOracle(src, false)

	price, err := o.GetPrice(context.Background(), "XAU", "USD")
	if err != nil || price != 0 {
		t.Errorf("got (%v, %v), want (0, nil)", price, err)
	}
	if src.calls != 1 {
		t.Errorf("calls got %d, want 1", src.calls)
	}
}

func TestGetPriceDryRunSentinel(t *testing.T) {
	src := &fakeSource{prices: []float64{42000}, errs: []error{nil}}
	o, _ := newTestOracle(src, true)

	price, err := o.GetPrice(context.Background(), "BTC", "USD")
	if err != nil || price != 0 {
		t.Errorf("got (%v, %v), want sentinel (0, nil)", price, err)
	}
	if src.calls != 0 {
		t.Error("dry run must not contact the source")
	}
}

func TestGetPriceHonoursCancellation(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{prices: []float64{0}, errs: []error{boom}}
	o, _ := newTestOracle(src, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.GetPrice(ctx, "BTC", "USD")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestDelayForCap(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
	if d := p.delayFor(0); d != 500*time.Millisecond {
		t.Errorf("delayFor(0) got %v", d)
	}
	if d := p.delayFor(4); d != 8*time.Second {
		t.Errorf("delayFor(4) got %v, want cap", d)
	}
	if d := p.delayFor(40); d != 8*time.Second {
		t.Errorf("delayFor(40) got %v, want cap on overflow", d)
	}
}
