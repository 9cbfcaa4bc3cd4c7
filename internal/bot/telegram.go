// Package bot provides Telegram bot functionality
//
// telegram.go - Telegram front end for the copy-trade bot
// Features: position views with copy buttons, balance, execution history
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/ostibot/internal/config"
	"github.com/web3guy0/ostibot/internal/database"
	"github.com/web3guy0/ostibot/internal/types"
)

// Callback data prefix for copy-trade buttons: "copy:<pairIndex>:<side>"
const cbCopyPrefix = "copy:"

const executeTimeout = 60 * time.Second

// PositionsProvider builds the current tracked-position snapshot.
type PositionsProvider interface {
	Build(ctx context.Context) ([]types.PositionView, error)
}

// CopyExecutor opens a copy trade.
type CopyExecutor interface {
	Execute(ctx context.Context, intent types.TradeIntent, pair types.Pair) (*types.ExecutionResult, error)
}

// AccountReader reads the operator wallet's USDC balance.
type AccountReader interface {
	USDCBalance(ctx context.Context) (float64, error)
}

// Journal persists submitted legs and serves the history view. Optional.
type Journal interface {
	RecordLeg(leg *database.ExecutionLeg) error
	RecentLegs(limit int) ([]database.ExecutionLeg, error)
	SubmittedCollateral() (decimal.Decimal, error)
}

// Bot handles Telegram interactions for the copy-trade system
type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	profile   *config.Profile
	positions PositionsProvider
	executor  CopyExecutor
	account   AccountReader
	journal   Journal
	pairs     map[int]types.Pair

	startedAt time.Time

	mu     sync.Mutex
	stopCh chan struct{}
}

// New creates the Telegram bot
func New(cfg *config.Config, profile *config.Profile, positions PositionsProvider,
	executor CopyExecutor, account AccountReader, journal Journal,
	pairs map[int]types.Pair) (*Bot, error) {

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	return &Bot{
		api:       api,
		cfg:       cfg,
		profile:   profile,
		positions: positions,
		executor:  executor,
		account:   account,
		journal:   journal,
		pairs:     pairs,
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins the bot's command listener
func (b *Bot) Start() {
	go b.listenForUpdates()

	if b.cfg.TelegramChatID != 0 {
		b.sendStartupMessage()
	}
}

// Stop stops the bot
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.stopCh:
	default:
		close(b.stopCh)
	}
}

// SendText pushes plain text to the configured chat. Used by the drawdown
// monitor for alerts.
func (b *Bot) SendText(text string) error {
	msg := tgbotapi.NewMessage(b.cfg.TelegramChatID, text)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) listenForUpdates() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
			if update.CallbackQuery != nil {
				go b.handleCallback(update.CallbackQuery)
			}
		case <-b.stopCh:
			return
		}
	}
}

// ==================== MESSAGE HANDLERS ====================

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// Only respond to authorized user
	if b.cfg.TelegramChatID != 0 && chatID != b.cfg.TelegramChatID {
		b.sendText(chatID, "⛔ Unauthorized")
		return
	}

	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start":
		b.cmdStart(chatID)
	case "positions", "pos", "p":
		b.cmdPositions(chatID)
	case "balance", "wallet", "b":
		b.cmdBalance(chatID)
	case "status", "s":
		b.cmdStatus(chatID)
	case "history":
		b.cmdHistory(chatID)
	case "ping":
		b.sendText(chatID, "🏓 pong")
	case "help", "h":
		b.cmdHelp(chatID)
	default:
		b.sendText(chatID, "❓ Unknown command. Use /help")
	}
}

// ==================== CALLBACK HANDLERS ====================

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	// Acknowledge callback
	callback := tgbotapi.NewCallback(cb.ID, "")
	b.api.Request(callback)

	if b.cfg.TelegramChatID != 0 && chatID != b.cfg.TelegramChatID {
		return
	}

	if strings.HasPrefix(cb.Data, cbCopyPrefix) {
		b.handleCopyCallback(chatID, msgID, cb.Data)
	}
}

func (b *Bot) handleCopyCallback(chatID int64, msgID int, data string) {
	pairIndex, isLong, err := parseCopyCallback(data)
	if err != nil {
		log.Warn().Err(err).Str("data", data).Msg("bad copy callback")
		b.sendText(chatID, "❌ Malformed copy request")
		return
	}

	pair, ok := b.pairs[pairIndex]
	if !ok {
		b.sendText(chatID, fmt.Sprintf("❌ Unknown pair index %d", pairIndex))
		return
	}

	b.editPlain(chatID, msgID, fmt.Sprintf("⏳ Copying %s %s...", sideText(isLong), pair.Symbol))

	ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
	defer cancel()

	result, err := b.executor.Execute(ctx, b.intentFor(pairIndex, isLong), pair)
	if err != nil {
		b.recordFailure(pair, isLong, err)
		b.editPlain(chatID, msgID, fmt.Sprintf("❌ Copy trade failed: %v", err))
		return
	}

	b.recordResult(pair, result)
	b.editPlain(chatID, msgID, formatExecutionResult(pair, isLong, result))
}

// intentFor builds the trade intent from the static profile.
func (b *Bot) intentFor(pairIndex int, isLong bool) types.TradeIntent {
	intent := types.TradeIntent{
		PairIndex:   pairIndex,
		IsLong:      isLong,
		AmountIn:    b.profile.AmountIn,
		Leverage:    b.profile.Leverage,
		SlippageBps: b.profile.SlippageBps,
	}
	if b.profile.CopyTPSLEnabled() {
		intent.TPTargets = b.profile.TPPnLTargets
		intent.SLTarget = b.profile.SLPnL
	}
	return intent
}

func parseCopyCallback(data string) (pairIndex int, isLong bool, err error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return 0, false, fmt.Errorf("expected copy:<pair>:<side>, got %q", data)
	}
	pairIndex, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, false, fmt.Errorf("bad pair index %q", parts[1])
	}
	switch parts[2] {
	case "long":
		return pairIndex, true, nil
	case "short":
		return pairIndex, false, nil
	default:
		return 0, false, fmt.Errorf("bad side %q", parts[2])
	}
}

// ==================== COMMANDS ====================

func (b *Bot) cmdStart(chatID int64) {
	msg := `⚡ *OSTIBOT*
━━━━━━━━━━━━━━━━━━━━━

Copy-trade bot for Ostium on Arbitrum

*Quick Commands:*
/positions - Tracked positions
/balance - Wallet USDC
/status - System status
/history - Recent orders
/help - All commands

━━━━━━━━━━━━━━━━━━━━━
💡 Tap a Copy button on /positions to mirror a trade`

	b.sendMarkdown(chatID, msg)
}

func (b *Bot) cmdHelp(chatID int64) {
	msg := `📖 *Commands*

/positions (/pos) - Open positions of tracked traders
/balance (/wallet) - Operator wallet USDC balance
/status - Mode, tracked traders, uptime
/history - Recently submitted legs
/ping - Liveness check
/help - This message`

	b.sendMarkdown(chatID, msg)
}

func (b *Bot) cmdPositions(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	views, err := b.positions.Build(ctx)
	if err != nil {
		b.sendText(chatID, fmt.Sprintf("❌ Failed to fetch positions: %v", err))
		return
	}
	if len(views) == 0 {
		b.sendText(chatID, "📭 No open positions for tracked traders")
		return
	}

	for _, v := range views {
		b.sendMarkdownWithKeyboard(chatID, formatPosition(v), copyKeyboard(v.PairIndex))
	}
}

func (b *Bot) cmdBalance(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	balance, err := b.account.USDCBalance(ctx)
	if err != nil {
		b.sendText(chatID, fmt.Sprintf("❌ Balance check failed: %v", err))
		return
	}

	b.sendMarkdown(chatID, fmt.Sprintf("💰 *Wallet USDC:* $%.2f\n`%s`", balance, b.cfg.WalletAddress))
}

func (b *Bot) cmdStatus(chatID int64) {
	modeEmoji := "🧪"
	modeText := "DRY RUN"
	if !b.cfg.DryRun {
		modeEmoji = "💰"
		modeText = "LIVE"
	}

	traders := b.profile.Traders
	if len(traders) == 0 && b.cfg.TargetWallet != "" {
		traders = []string{b.cfg.TargetWallet}
	}

	deployed := "n/a"
	if b.journal != nil {
		if total, err := b.journal.SubmittedCollateral(); err == nil {
			deployed = "$" + total.StringFixed(2)
		}
	}

	text := fmt.Sprintf(`%s *OSTIBOT* │ %s
━━━━━━━━━━━━━━━━━━━━━

🌐 *Network:* %s
👀 *Tracked traders:* %d
📡 *Poll interval:* %s
🚨 *Alert band:* %.0f%% – %.0f%% drawdown
💵 *Copy size:* $%.0f @ %.0fx
📦 *Deployed collateral:* %s
⏱ *Uptime:* %s

━━━━━━━━━━━━━━━━━━━━━`,
		modeEmoji, modeText,
		b.cfg.Network,
		len(traders),
		b.cfg.PollInterval,
		b.profile.DrawdownMin, b.profile.DrawdownMax,
		b.profile.AmountIn, b.profile.Leverage,
		deployed,
		time.Since(b.startedAt).Round(time.Second),
	)

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdHistory(chatID int64) {
	if b.journal == nil {
		b.sendText(chatID, "📭 Order journal disabled")
		return
	}

	legs, err := b.journal.RecentLegs(15)
	if err != nil {
		b.sendText(chatID, fmt.Sprintf("❌ History unavailable: %v", err))
		return
	}
	if len(legs) == 0 {
		b.sendText(chatID, "📭 No orders recorded yet")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 *Recent orders*\n━━━━━━━━━━━━━━━━━━━━━\n")
	for _, leg := range legs {
		sb.WriteString(fmt.Sprintf("\n%s *%s* %s $%s @ %.0fx — %s",
			statusEmoji(leg.Status), leg.Symbol, leg.Side,
			leg.Collateral.StringFixed(2), leg.Leverage, leg.Status))
		if leg.OrderID != "" {
			sb.WriteString(fmt.Sprintf("\n  `%s`", leg.OrderID))
		}
	}

	b.sendMarkdown(chatID, sb.String())
}

// ==================== JOURNAL ====================

func (b *Bot) recordResult(pair types.Pair, result *types.ExecutionResult) {
	if b.journal == nil {
		return
	}
	for i, leg := range result.Legs {
		entry := &database.ExecutionLeg{
			PairIndex:  leg.PairIndex,
			Symbol:     pair.Symbol,
			Side:       sideText(leg.IsLong),
			Collateral: leg.Collateral,
			Leverage:   leg.Leverage,
			TP:         leg.TP,
			SL:         leg.SL,
			Price:      decimal.NewFromFloat(result.CurrentPrice),
			Status:     string(result.Status),
		}
		if i < len(result.Receipts) {
			entry.OrderID = result.Receipts[i].OrderID
			entry.TxHash = result.Receipts[i].TxHash
		}
		if err := b.journal.RecordLeg(entry); err != nil {
			log.Error().Err(err).Msg("failed to journal execution leg")
		}
	}
}

// recordFailure journals what actually went live before the failing leg, then
// the failure itself.
func (b *Bot) recordFailure(pair types.Pair, isLong bool, execErr error) {
	if b.journal == nil {
		return
	}

	var subErr *types.SubmissionError
	if errors.As(execErr, &subErr) {
		for _, receipt := range subErr.Submitted {
			entry := &database.ExecutionLeg{
				OrderID:   receipt.OrderID,
				TxHash:    receipt.TxHash,
				PairIndex: pair.Index,
				Symbol:    pair.Symbol,
				Side:      sideText(isLong),
				Status:    "submitted",
			}
			if err := b.journal.RecordLeg(entry); err != nil {
				log.Error().Err(err).Msg("failed to journal surviving leg")
			}
		}
	}

	entry := &database.ExecutionLeg{
		PairIndex: pair.Index,
		Symbol:    pair.Symbol,
		Side:      sideText(isLong),
		Status:    "failed",
		Error:     execErr.Error(),
	}
	if err := b.journal.RecordLeg(entry); err != nil {
		log.Error().Err(err).Msg("failed to journal failed execution")
	}
}

// ==================== FORMATTING ====================

func formatPosition(v types.PositionView) string {
	dirEmoji := "📈"
	if !v.IsLong {
		dirEmoji = "📉"
	}

	return fmt.Sprintf(`%s *%s* %s @ %.0fx
━━━━━━━━━━━━━━━━━━━━━

👤 Trader: `+"`%s`"+`
💵 Collateral: $%.2f │ Size: $%.2f
🎯 Entry: %.4f │ Now: %.4f
📊 PnL: %+.2f%% │ Drawdown: %.2f%%`,
		dirEmoji, v.Symbol, v.Side(), v.Leverage,
		v.Trader,
		v.CollateralUSD, v.SizeUSD,
		v.EntryPrice, v.CurrentPrice,
		v.PnLPct, v.DrawdownPct,
	)
}

func formatExecutionResult(pair types.Pair, isLong bool, result *types.ExecutionResult) string {
	header := "✅ Copy trade submitted"
	if result.Status == types.StatusSimulated {
		header = "🧪 Copy trade simulated (dry run)"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s\n%s %s @ %.4f\n", header, pair.Symbol, sideText(isLong), result.CurrentPrice))
	for i, leg := range result.Legs {
		sb.WriteString(fmt.Sprintf("\nLeg %d: $%s", i+1, leg.Collateral.StringFixed(2)))
		if !leg.TP.IsZero() {
			sb.WriteString(fmt.Sprintf(" │ TP %s", leg.TP.String()))
		}
		if !leg.SL.IsZero() {
			sb.WriteString(fmt.Sprintf(" │ SL %s", leg.SL.String()))
		}
		if i < len(result.Receipts) && result.Receipts[i].OrderID != "" {
			sb.WriteString(fmt.Sprintf(" │ %s", result.Receipts[i].OrderID))
		}
	}
	return sb.String()
}

func copyKeyboard(pairIndex int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📈 Copy LONG", fmt.Sprintf("copy:%d:long", pairIndex)),
			tgbotapi.NewInlineKeyboardButtonData("📉 Copy SHORT", fmt.Sprintf("copy:%d:short", pairIndex)),
		),
	)
}

func sideText(isLong bool) string {
	if isLong {
		return "LONG"
	}
	return "SHORT"
}

func statusEmoji(status string) string {
	switch status {
	case "submitted":
		return "✅"
	case "simulated":
		return "🧪"
	default:
		return "❌"
	}
}

func (b *Bot) sendStartupMessage() {
	modeEmoji := "🧪"
	modeText := "DRY RUN"
	if !b.cfg.DryRun {
		modeEmoji = "🔴"
		modeText = "LIVE"
	}

	text := fmt.Sprintf(`⚡ *Ostibot Started*
━━━━━━━━━━━━━━━━━━━━━

%s *Mode:* %s
🌐 *Network:* %s
💵 *Copy size:* $%.0f @ %.0fx

_Monitoring tracked traders..._

━━━━━━━━━━━━━━━━━━━━━
💡 /help for commands`,
		modeEmoji, modeText,
		b.cfg.Network,
		b.profile.AmountIn, b.profile.Leverage,
	)

	b.sendMarkdown(b.cfg.TelegramChatID, text)
}

// ==================== HELPERS ====================

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send message")
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send message")
	}
}

func (b *Bot) sendMarkdownWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send message")
	}
}

func (b *Bot) editPlain(chatID int64, msgID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	if _, err := b.api.Send(edit); err != nil {
		log.Debug().Err(err).Msg("Failed to edit message")
	}
}
