package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solswap/service/db"
	"github.com/brojonat/solswap/service/jupiter"
	"github.com/brojonat/solswap/service/metrics"
	natspkg "github.com/brojonat/solswap/service/nats"
	"github.com/brojonat/solswap/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Side is the direction of a trade relative to the target token.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ChainInterface defines the Solana operations needed by the trader.
// This allows for easy mocking in tests.
type ChainInterface interface {
	SOLBalance(ctx context.Context, owner solanago.PublicKey) (decimal.Decimal, error)
	TokenAccounts(ctx context.Context, owner, mint solanago.PublicKey) ([]*solana.TokenAccount, error)
	TokenAccountBalance(ctx context.Context, account solanago.PublicKey) (decimal.Decimal, error)
	WaitForConfirmation(ctx context.Context, sig solanago.Signature, maxAttempts int) (*solana.Confirmation, error)
}

// AggregatorInterface defines the quote and swap-build operations.
type AggregatorInterface interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
	BuildSwap(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (*jupiter.SwapTransaction, error)
}

// SubmitterInterface sends signed transactions.
type SubmitterInterface interface {
	Submit(ctx context.Context, encoded string) (solanago.Signature, error)
}

// JournalInterface records finished trades. Optional.
type JournalInterface interface {
	CreateTrade(ctx context.Context, params db.CreateTradeParams) (*db.Trade, error)
}

// PublisherInterface publishes finished trades. Optional.
type PublisherInterface interface {
	PublishTrade(ctx context.Context, event *natspkg.TradeEvent) error
}

// Options are the tunables of a trade.
type Options struct {
	MaxAttempts   int
	SettleDelay   time.Duration
	MinFeeBalance decimal.Decimal
	ExplorerTxURL string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:   solana.DefaultMaxAttempts,
		SettleDelay:   2 * time.Second,
		MinFeeBalance: decimal.RequireFromString("0.002"),
		ExplorerTxURL: "https://solscan.io/tx",
	}
}

// TradeResult describes a submitted trade.
type TradeResult struct {
	Side          Side
	Wallet        solanago.PublicKey
	Mint          solanago.PublicKey
	InputMint     solanago.PublicKey
	OutputMint    solanago.PublicKey
	Amount        decimal.Decimal // human units of the input asset
	RawAmount     string          // smallest units sent to the quote
	QuotedOut     string
	Signature     solanago.Signature
	Confirmation  *solana.Confirmation
	ExplorerURL   string
	PreBalance    *decimal.Decimal // token balance before a sell
	PostBalance   *decimal.Decimal // token balance after a sell settled
	BalanceDipped bool
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Trader runs buy and sell operations for a wallet. Every failure is returned
// as an error value; nothing is printed.
type Trader struct {
	chain      ChainInterface
	aggregator AggregatorInterface
	submitter  SubmitterInterface
	journal    JournalInterface
	publisher  PublisherInterface
	opts       Options
	metrics    *metrics.Metrics
	logger     *slog.Logger
	progress   func(string)
	sleep      func(context.Context, time.Duration) error
}

// New creates a Trader. journal, publisher and metrics may be nil.
func New(
	chain ChainInterface,
	aggregator AggregatorInterface,
	submitter SubmitterInterface,
	journal JournalInterface,
	publisher PublisherInterface,
	opts Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Trader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trader{
		chain:      chain,
		aggregator: aggregator,
		submitter:  submitter,
		journal:    journal,
		publisher:  publisher,
		opts:       opts,
		metrics:    m,
		logger:     logger,
		progress:   func(string) {},
		sleep:      sleepContext,
	}
}

// OnProgress registers a callback for human-readable progress lines.
func (t *Trader) OnProgress(fn func(string)) {
	if fn == nil {
		fn = func(string) {}
	}
	t.progress = fn
}

// Buy spends spend SOL on mint.
func (t *Trader) Buy(ctx context.Context, wallet *solana.Wallet, mint solanago.PublicKey, spend decimal.Decimal) (*TradeResult, error) {
	start := time.Now()
	owner := wallet.PublicKey()

	if !spend.IsPositive() {
		return nil, fmt.Errorf("%w: spend must be positive, got %s", ErrInvalidAmount, spend)
	}

	balance, err := t.chain.SOLBalance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to check SOL balance: %w", err)
	}
	if balance.LessThan(spend) {
		return nil, fmt.Errorf("%w: have %s SOL, need %s SOL", ErrInsufficientBalance, balance, spend)
	}

	lamports := solana.ToSmallestUnits(spend, solana.SOLDecimals)
	if lamports == "0" {
		return nil, fmt.Errorf("%w: %s SOL is less than one lamport", ErrInvalidAmount, spend)
	}

	result := &TradeResult{
		Side:       SideBuy,
		Wallet:     owner,
		Mint:       mint,
		InputMint:  solana.NativeMint,
		OutputMint: mint,
		Amount:     spend,
		RawAmount:  lamports,
		StartedAt:  start,
	}

	err = t.swap(ctx, wallet, result)
	t.finish(ctx, result, err)
	return result, err
}

// Sell sells amount of mint for SOL. A zero amount, or one larger than the
// token balance, sells the whole balance.
func (t *Trader) Sell(ctx context.Context, wallet *solana.Wallet, mint solanago.PublicKey, amount decimal.Decimal) (*TradeResult, error) {
	start := time.Now()
	owner := wallet.PublicKey()

	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount cannot be negative, got %s", ErrInvalidAmount, amount)
	}

	accounts, err := t.chain.TokenAccounts(ctx, owner, mint)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTokenAccount, mint)
	}
	account := accounts[0]

	balance, err := account.Balance()
	if err != nil {
		return nil, fmt.Errorf("failed to read token balance: %w", err)
	}

	sellAmount := ResolveSellAmount(amount, balance)
	if !sellAmount.IsPositive() {
		return nil, ErrNothingToSell
	}

	solBalance, err := t.chain.SOLBalance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to check SOL balance: %w", err)
	}
	if solBalance.LessThan(t.opts.MinFeeBalance) {
		return nil, fmt.Errorf("%w: have %s SOL, need %s SOL", ErrInsufficientFeeBalance, solBalance, t.opts.MinFeeBalance)
	}

	units := solana.ToSmallestUnits(sellAmount, account.Decimals)
	if units == "0" {
		return nil, ErrNothingToSell
	}

	t.progress(fmt.Sprintf("Selling %s tokens...", sellAmount))

	result := &TradeResult{
		Side:       SideSell,
		Wallet:     owner,
		Mint:       mint,
		InputMint:  mint,
		OutputMint: solana.NativeMint,
		Amount:     sellAmount,
		RawAmount:  units,
		PreBalance: &balance,
		StartedAt:  start,
	}

	if err := t.swap(ctx, wallet, result); err != nil {
		t.finish(ctx, result, err)
		return result, err
	}

	t.verifySell(ctx, account.Address, result)
	t.finish(ctx, result, nil)
	return result, nil
}

// ResolveSellAmount returns the amount a sell will trade: the whole balance
// when requested is zero or exceeds it, otherwise requested.
func ResolveSellAmount(requested, balance decimal.Decimal) decimal.Decimal {
	if requested.IsZero() || requested.GreaterThan(balance) {
		return balance
	}
	return requested
}

// swap runs quote, build, sign, submit and confirm for result's pair and amount.
func (t *Trader) swap(ctx context.Context, wallet *solana.Wallet, result *TradeResult) error {
	quote, err := t.aggregator.Quote(ctx, jupiter.QuoteRequest{
		InputMint:  result.InputMint.String(),
		OutputMint: result.OutputMint.String(),
		Amount:     result.RawAmount,
	})
	if err != nil {
		return err
	}
	result.QuotedOut = quote.OutAmount

	swapTx, err := t.aggregator.BuildSwap(ctx, quote, result.Wallet.String())
	if err != nil {
		return err
	}

	signed, err := solana.SignTransaction(swapTx.Transaction, wallet)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := t.submitter.Submit(ctx, signed)
	if err != nil {
		return err
	}
	result.Signature = sig
	result.ExplorerURL = t.ExplorerURL(sig)

	t.progress("Transaction submitted. Waiting for confirmation...")

	conf, err := t.chain.WaitForConfirmation(ctx, sig, t.opts.MaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to confirm transaction %s: %w", sig, err)
	}
	result.Confirmation = conf

	switch conf.Status {
	case solana.StatusConfirmed:
		return nil
	case solana.StatusFailed:
		reason := "unknown error"
		if conf.Err != nil {
			reason = *conf.Err
		}
		return fmt.Errorf("%w: %s: %s", ErrTransactionFailed, sig, reason)
	default:
		return fmt.Errorf("%w: %s after %d attempts", ErrConfirmationTimeout, sig, conf.Attempts)
	}
}

// verifySell waits for balances to settle and checks the token balance
// dropped. A balance that did not drop is logged, not returned.
func (t *Trader) verifySell(ctx context.Context, account solanago.PublicKey, result *TradeResult) {
	if err := t.sleep(ctx, t.opts.SettleDelay); err != nil {
		return
	}

	post, err := t.chain.TokenAccountBalance(ctx, account)
	if err != nil {
		t.logger.WarnContext(ctx, "could not verify post-sell balance",
			"account", account.String(),
			"error", err,
		)
		return
	}
	result.PostBalance = &post

	if post.LessThan(*result.PreBalance) {
		result.BalanceDipped = true
		return
	}

	t.logger.WarnContext(ctx, "token balance did not decrease after sell",
		"account", account.String(),
		"signature", result.Signature.String(),
		"before", result.PreBalance.String(),
		"after", post.String(),
	)
}

// ExplorerURL returns the block explorer link for sig.
func (t *Trader) ExplorerURL(sig solanago.Signature) string {
	return strings.TrimRight(t.opts.ExplorerTxURL, "/") + "/" + sig.String()
}

// finish records metrics and, for submitted trades, journals and publishes
// them. Journal and publish failures are logged only.
func (t *Trader) finish(ctx context.Context, result *TradeResult, tradeErr error) {
	result.FinishedAt = time.Now()
	status := tradeStatus(result, tradeErr)

	if t.metrics != nil {
		t.metrics.RecordTrade(string(result.Side), status, result.FinishedAt.Sub(result.StartedAt).Seconds())
	}

	if result.Signature.IsZero() {
		return
	}

	params := db.CreateTradeParams{
		Signature:     result.Signature.String(),
		WalletAddress: result.Wallet.String(),
		Side:          string(result.Side),
		TokenMint:     result.Mint.String(),
		InputMint:     result.InputMint.String(),
		OutputMint:    result.OutputMint.String(),
		InAmount:      result.RawAmount,
		Status:        status,
	}
	if result.QuotedOut != "" {
		params.QuotedOutAmount = &result.QuotedOut
	}
	if tradeErr != nil {
		msg := tradeErr.Error()
		params.Error = &msg
	}
	if conf := result.Confirmation; conf != nil && conf.Slot > 0 {
		slot := int64(conf.Slot)
		fee := int64(conf.Fee)
		params.Slot = &slot
		params.FeeLamports = &fee
	}

	trade := &db.Trade{
		Signature:       params.Signature,
		WalletAddress:   params.WalletAddress,
		Side:            params.Side,
		TokenMint:       params.TokenMint,
		InputMint:       params.InputMint,
		OutputMint:      params.OutputMint,
		InAmount:        params.InAmount,
		QuotedOutAmount: params.QuotedOutAmount,
		Status:          params.Status,
		Error:           params.Error,
		Slot:            params.Slot,
		FeeLamports:     params.FeeLamports,
		CreatedAt:       result.FinishedAt.UTC(),
	}

	if t.journal != nil {
		saved, err := t.journal.CreateTrade(ctx, params)
		if t.metrics != nil {
			t.metrics.RecordJournalWrite(err)
		}
		if err != nil {
			t.logger.ErrorContext(ctx, "failed to journal trade",
				"signature", params.Signature,
				"error", err,
			)
		} else {
			trade = saved
		}
	}

	if t.publisher != nil {
		if err := t.publisher.PublishTrade(ctx, natspkg.FromDBTrade(trade)); err != nil {
			t.logger.ErrorContext(ctx, "failed to publish trade to NATS",
				"signature", params.Signature,
				"error", err,
			)
		}
	}
}

func tradeStatus(result *TradeResult, err error) string {
	switch {
	case err == nil:
		return string(solana.StatusConfirmed)
	case errors.Is(err, ErrTransactionFailed):
		return string(solana.StatusFailed)
	case errors.Is(err, ErrConfirmationTimeout):
		return string(solana.StatusTimedOut)
	case !result.Signature.IsZero():
		return "unconfirmed"
	default:
		return "error"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
