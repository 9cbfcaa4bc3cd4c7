package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/ostibot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// OSTIUM SUBGRAPH CLIENT - Pair metadata and open trades
// ═══════════════════════════════════════════════════════════════════════════════
//
// Plain GraphQL-over-HTTP. The subgraph returns BigInt fields as decimal
// strings with fixed on-chain precisions:
//   openPrice      1e18
//   leverage       1e2
//   collateral     1e6   (USDC)
//   tradeNotional  1e18
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	pairsQuery = `query Pairs {
  pairs(first: 1000) {
    id
    from
    to
  }
}`

	openTradesQuery = `query OpenTrades($trader: Bytes!) {
  trades(where: { trader: $trader, isOpen: true }) {
    tradeID
    trader
    isBuy
    openPrice
    leverage
    collateral
    tradeNotional
    pair {
      id
      from
      to
    }
  }
}`
)

// Precision divisors for the subgraph's fixed-point BigInt fields.
const (
	pricePrecision      = 1e18
	leveragePrecision   = 1e2
	collateralPrecision = 1e6
	notionalPrecision   = 1e18
)

// Client queries the Ostium subgraph.
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient creates a subgraph client for the given endpoint.
func NewClient(url string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        url,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// execute posts one GraphQL query and decodes the data envelope into out.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subgraph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("subgraph returned %d: %s", resp.StatusCode, string(raw))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("subgraph error: %s", envelope.Errors[0].Message)
	}
	if envelope.Data == nil {
		return fmt.Errorf("subgraph response has no data")
	}
	return json.Unmarshal(envelope.Data, out)
}

type rawPair struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

type rawTrade struct {
	TradeID       string   `json:"tradeID"`
	Trader        string   `json:"trader"`
	IsBuy         bool     `json:"isBuy"`
	OpenPrice     string   `json:"openPrice"`
	Leverage      string   `json:"leverage"`
	Collateral    string   `json:"collateral"`
	TradeNotional string   `json:"tradeNotional"`
	Pair          *rawPair `json:"pair"`
}

// GetPairs fetches the full pair list. Malformed entries are logged and
// skipped; they never fail the batch.
func (c *Client) GetPairs(ctx context.Context) ([]types.Pair, error) {
	var data struct {
		Pairs []rawPair `json:"pairs"`
	}
	if err := c.execute(ctx, pairsQuery, nil, &data); err != nil {
		return nil, fmt.Errorf("fetch pairs: %w", err)
	}

	pairs := make([]types.Pair, 0, len(data.Pairs))
	for _, raw := range data.Pairs {
		pair, err := decodePair(raw)
		if err != nil {
			log.Warn().Err(err).Str("pair_id", raw.ID).Msg("skipping malformed pair")
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// GetOpenTrades fetches the open positions of one trader. The address is
// normalized to lowercase; zero results are a valid answer. Malformed trades
// are logged and skipped.
func (c *Client) GetOpenTrades(ctx context.Context, trader string) ([]types.Position, error) {
	if trader == "" {
		return nil, nil
	}

	var data struct {
		Trades []rawTrade `json:"trades"`
	}
	vars := map[string]any{"trader": strings.ToLower(trader)}
	if err := c.execute(ctx, openTradesQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("fetch open trades for %s: %w", trader, err)
	}

	positions := make([]types.Position, 0, len(data.Trades))
	for _, raw := range data.Trades {
		pos, err := decodeTrade(raw)
		if err != nil {
			log.Warn().Err(err).Str("trade_id", raw.TradeID).Msg("skipping malformed trade")
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func decodePair(raw rawPair) (types.Pair, error) {
	index, err := strconv.Atoi(raw.ID)
	if err != nil {
		return types.Pair{}, fmt.Errorf("pair id %q: %w", raw.ID, err)
	}
	base := raw.From
	if base == "" {
		base = "UNKNOWN"
	}
	quote := raw.To
	if quote == "" {
		quote = "USD"
	}
	return types.Pair{
		Index:  index,
		Base:   base,
		Quote:  quote,
		Symbol: base + "-" + quote,
	}, nil
}

func decodeTrade(raw rawTrade) (types.Position, error) {
	if raw.Pair == nil {
		return types.Position{}, fmt.Errorf("trade %s has no pair", raw.TradeID)
	}
	pairIndex, err := strconv.Atoi(raw.Pair.ID)
	if err != nil {
		return types.Position{}, fmt.Errorf("pair id %q: %w", raw.Pair.ID, err)
	}

	entryPrice, err := scaled(raw.OpenPrice, pricePrecision)
	if err != nil {
		return types.Position{}, fmt.Errorf("openPrice: %w", err)
	}
	leverage, err := scaled(raw.Leverage, leveragePrecision)
	if err != nil {
		return types.Position{}, fmt.Errorf("leverage: %w", err)
	}
	collateral, err := scaled(raw.Collateral, collateralPrecision)
	if err != nil {
		return types.Position{}, fmt.Errorf("collateral: %w", err)
	}

	// Notional is optional in older deployments; fall back to collateral*leverage.
	notional, err := scaled(raw.TradeNotional, notionalPrecision)
	if err != nil || notional == 0 {
		notional = collateral * leverage
	}

	return types.Position{
		ID:            raw.TradeID,
		Trader:        strings.ToLower(raw.Trader),
		PairIndex:     pairIndex,
		IsLong:        raw.IsBuy,
		SizeUSD:       notional,
		CollateralUSD: collateral,
		EntryPrice:    entryPrice,
		Leverage:      leverage,
	}, nil
}

// scaled parses a fixed-point BigInt string into a float divided by precision.
func scaled(value string, precision float64) (float64, error) {
	if value == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", value, err)
	}
	return f / precision, nil
}
