package ostium

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/ostibot/internal/feeds"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SPOT PRICE CLIENT - Ostium price API with stream fast path
// ═══════════════════════════════════════════════════════════════════════════════

// maxStreamAge is how old a streamed tick may be before we fall back to HTTP.
const maxStreamAge = 10 * time.Second

// PriceAPI fetches spot prices from the Ostium price backend. When a
// PriceStream is attached and holds a fresh tick, the HTTP round-trip is
// skipped. Implements oracle.PriceSource.
type PriceAPI struct {
	baseURL    string
	httpClient *http.Client
	stream     *feeds.PriceStream
}

// NewPriceAPI creates a price client for the given backend URL.
func NewPriceAPI(baseURL string) *PriceAPI {
	return &PriceAPI{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetStream attaches a live price stream as the fast path.
func (p *PriceAPI) SetStream(stream *feeds.PriceStream) {
	p.stream = stream
}

// SpotPrice returns the current mid price of base quoted in quote units.
func (p *PriceAPI) SpotPrice(ctx context.Context, base, quote string) (float64, error) {
	if p.stream != nil {
		if price, at, ok := p.stream.GetPrice(base, quote); ok && time.Since(at) < maxStreamAge {
			log.Debug().Str("pair", base+"-"+quote).Float64("price", price).Msg("price from stream")
			return price, nil
		}
	}

	endpoint := fmt.Sprintf("%s/price/latest?from=%s&to=%s",
		p.baseURL, url.QueryEscape(base), url.QueryEscape(quote))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build price request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price request %s-%s: %w", base, quote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("price API returned %d for %s-%s: %s", resp.StatusCode, base, quote, string(raw))
	}

	var payload struct {
		Mid   float64 `json:"mid"`
		Bid   float64 `json:"bid"`
		Ask   float64 `json:"ask"`
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode price response: %w", err)
	}

	// Prefer mid; some deployments only expose a single price field.
	switch {
	case payload.Mid > 0:
		return payload.Mid, nil
	case payload.Price > 0:
		return payload.Price, nil
	case payload.Bid > 0 && payload.Ask > 0:
		return (payload.Bid + payload.Ask) / 2, nil
	default:
		return 0, fmt.Errorf("price API returned no usable price for %s-%s", base, quote)
	}
}
