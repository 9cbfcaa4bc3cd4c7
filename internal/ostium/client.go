package ostium

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/ostibot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// OSTIUM EXECUTION CLIENT - Order submission and wallet reads
// ═══════════════════════════════════════════════════════════════════════════════
//
// Orders go to the Ostium order gateway as signed JSON; wallet balance is read
// straight off Arbitrum via eth_call. One client handle is shared by all legs
// of an execution; slippage travels per call, never as client state.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	usdcDecimals = 1e6

	// ERC-20 balanceOf(address) selector
	balanceOfSelector = "70a08231"
)

// Config carries the connection settings for the execution client.
type Config struct {
	RPCURL        string
	GatewayURL    string
	Network       string
	VaultAddress  string
	RouterAddress string
	USDCAddress   string
	WalletAddress string
	PrivateKey    string // hex, no 0x prefix required
	DryRun        bool
}

// Client talks to the Ostium order gateway and the Arbitrum RPC.
type Client struct {
	cfg        Config
	httpClient *http.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	eth        *ethclient.Client
}

// NewClient creates an execution client. In dry-run mode the private key and
// RPC connection are optional; nothing is ever sent.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	if pk := strings.TrimPrefix(cfg.PrivateKey, "0x"); pk != "" {
		key, err := crypto.HexToECDSA(pk)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.privateKey = key
		c.address = crypto.PubkeyToAddress(key.PublicKey)
	} else if cfg.WalletAddress != "" {
		c.address = common.HexToAddress(cfg.WalletAddress)
	}

	if !cfg.DryRun {
		if c.privateKey == nil {
			return nil, fmt.Errorf("live mode requires a private key")
		}
		eth, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("dial arbitrum rpc: %w", err)
		}
		c.eth = eth
	}

	mode := "LIVE"
	if cfg.DryRun {
		mode = "DRY RUN"
	}
	log.Info().
		Str("mode", mode).
		Str("network", cfg.Network).
		Str("address", c.address.Hex()).
		Msg("🚀 Execution client initialized")

	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// orderPayload is the wire shape the gateway expects for one leg.
type orderPayload struct {
	Trader      string `json:"trader"`
	PairIndex   int    `json:"pairIndex"`
	Long        bool   `json:"long"`
	Collateral  string `json:"collateral"`
	Leverage    string `json:"leverage"`
	AtPrice     string `json:"atPrice"`
	TP          string `json:"tp"`
	SL          string `json:"sl"`
	SlippagePct string `json:"slippagePct"`
	Network     string `json:"network"`
	Timestamp   int64  `json:"timestamp"`
}

// SubmitLeg sends one order leg to the gateway at the given market price.
// slippagePct is a property of the whole execution, threaded through per call.
func (c *Client) SubmitLeg(ctx context.Context, leg types.OrderLeg, atPrice, slippagePct float64) (types.Receipt, error) {
	if c.cfg.DryRun {
		return types.Receipt{}, fmt.Errorf("submit called in dry-run mode")
	}

	payload := orderPayload{
		Trader:      c.address.Hex(),
		PairIndex:   leg.PairIndex,
		Long:        leg.IsLong,
		Collateral:  leg.Collateral.String(),
		Leverage:    fmt.Sprintf("%.2f", leg.Leverage),
		AtPrice:     fmt.Sprintf("%f", atPrice),
		TP:          leg.TP.String(),
		SL:          leg.SL.String(),
		SlippagePct: fmt.Sprintf("%.4f", slippagePct),
		Network:     c.cfg.Network,
		Timestamp:   time.Now().Unix(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.Receipt{}, fmt.Errorf("marshal order: %w", err)
	}

	signature, err := c.signPayload(body)
	if err != nil {
		return types.Receipt{}, fmt.Errorf("sign order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return types.Receipt{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Receipt{}, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return types.Receipt{}, fmt.Errorf("gateway rejected order (%d): %s", resp.StatusCode, string(raw))
	}

	var result struct {
		OrderID string `json:"orderId"`
		TxHash  string `json:"txHash"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return types.Receipt{}, fmt.Errorf("decode gateway response: %w", err)
	}

	log.Info().
		Str("order_id", result.OrderID).
		Str("tx", result.TxHash).
		Int("pair", leg.PairIndex).
		Str("collateral", leg.Collateral.String()).
		Msg("✅ Order leg submitted")

	return types.Receipt{
		OrderID:   result.OrderID,
		TxHash:    result.TxHash,
		Timestamp: time.Now(),
	}, nil
}

// signPayload produces an EIP-191 personal signature over the order body.
func (c *Client) signPayload(body []byte) (string, error) {
	if c.privateKey == nil {
		return "", fmt.Errorf("no private key loaded")
	}
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(body), body)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(msg)), c.privateKey)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// USDCBalance reads the wallet's USDC balance via eth_call. Returns 0 in
// dry-run mode without touching the RPC.
func (c *Client) USDCBalance(ctx context.Context) (float64, error) {
	if c.cfg.DryRun || c.eth == nil {
		log.Debug().Msg("dry run, reporting USDC balance 0")
		return 0, nil
	}
	if c.cfg.USDCAddress == "" || c.address == (common.Address{}) {
		return 0, nil
	}

	// balanceOf(address)
	data := common.Hex2Bytes(balanceOfSelector)
	data = append(data, common.LeftPadBytes(c.address.Bytes(), 32)...)

	token := common.HexToAddress(c.cfg.USDCAddress)
	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("balanceOf call: %w", err)
	}

	wei := new(big.Int).SetBytes(result)
	balance, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(usdcDecimals)).Float64()
	return balance, nil
}
