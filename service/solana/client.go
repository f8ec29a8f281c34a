package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solswap/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	SendEncodedTransaction(
		ctx context.Context,
		encoded string,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetTokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		mint solana.PublicKey,
	) ([]*TokenAccount, error)

	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.UiTokenAmount, error)
}

// DefaultMaxAttempts is the default number of confirmation polls.
const DefaultMaxAttempts = 30

// sendMaxRetries is the provider-side retry count for sendTransaction.
const sendMaxRetries uint = 3

// Client provides the chain operations a swap needs: balances, submission
// and confirmation. It wraps the RPC client with domain-specific operations.
type Client struct {
	rpc          RPCClient
	logger       *slog.Logger
	metrics      *metrics.Metrics
	endpoint     string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
	pollInterval time.Duration
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:          rpcClient,
		logger:       logger,
		metrics:      m,
		endpoint:     endpoint,
		pollInterval: time.Second,
	}
}

// SetPollInterval overrides the fixed sleep between confirmation polls.
func (c *Client) SetPollInterval(d time.Duration) {
	c.pollInterval = d
}

func (c *Client) record(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.Timer(start, func(d float64) {
		c.metrics.RecordRPCCall(method, status, c.endpoint, d)
	})()
}

// SOLBalance returns the native balance of owner in SOL.
// A failed lookup returns an error wrapping ErrBalanceUnavailable rather than zero.
func (c *Client) SOLBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error) {
	start := time.Now()
	lamports, err := c.rpc.GetBalance(ctx, owner)
	c.record("getBalance", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get SOL balance",
			"wallet", owner.String(),
			"error", err,
		)
		return decimal.Zero, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
	}

	balance := LamportsToSOL(lamports)
	c.logger.DebugContext(ctx, "fetched SOL balance",
		"wallet", owner.String(),
		"lamports", lamports,
	)
	return balance, nil
}

// TokenAccounts returns the wallet's token accounts for mint.
func (c *Client) TokenAccounts(ctx context.Context, owner, mint solana.PublicKey) ([]*TokenAccount, error) {
	start := time.Now()
	accounts, err := c.rpc.GetTokenAccountsByOwner(ctx, owner, mint)
	c.record("getTokenAccountsByOwner", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get token accounts: %w", err)
	}

	c.logger.DebugContext(ctx, "fetched token accounts",
		"wallet", owner.String(),
		"mint", mint.String(),
		"count", len(accounts),
	)
	return accounts, nil
}

// TokenAccountBalance returns the current human balance of a token account.
func (c *Client) TokenAccountBalance(ctx context.Context, account solana.PublicKey) (decimal.Decimal, error) {
	start := time.Now()
	amount, err := c.rpc.GetTokenAccountBalance(ctx, account)
	c.record("getTokenAccountBalance", start, err)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get token account balance: %w", err)
	}
	return FromSmallestUnits(amount.Amount, amount.Decimals)
}

// SendTransaction submits a base64 encoded signed transaction through the RPC
// provider with preflight skipped and provider-side retries.
func (c *Client) SendTransaction(ctx context.Context, encoded string) (solana.Signature, error) {
	maxRetries := sendMaxRetries
	opts := rpc.TransactionOpts{
		Encoding:      solana.EncodingBase64,
		SkipPreflight: true,
		MaxRetries:    &maxRetries,
	}

	start := time.Now()
	sig, err := c.rpc.SendEncodedTransaction(ctx, encoded, opts)
	c.record("sendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sendTransaction failed: %w", err)
	}

	c.logger.InfoContext(ctx, "transaction sent via RPC", "signature", sig.String())
	return sig, nil
}

// WaitForConfirmation polls getTransaction until the transaction lands or
// maxAttempts polls have returned nothing. It sleeps a fixed interval between
// polls. RPC errors are logged and treated as "not yet available".
func (c *Client) WaitForConfirmation(ctx context.Context, sig solana.Signature, maxAttempts int) (*Confirmation, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	version := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &version,
	}

	start := time.Now()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callStart := time.Now()
		result, err := c.rpc.GetTransaction(ctx, sig, opts)
		if errors.Is(err, rpc.ErrNotFound) {
			// not landed yet; not an RPC failure
			c.record("getTransaction", callStart, nil)
			err = nil
			result = nil
		} else {
			c.record("getTransaction", callStart, err)
		}

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WarnContext(ctx, "error checking transaction status",
				"signature", sig.String(),
				"attempt", attempt,
				"error", err,
			)
		case result != nil:
			conf := confirmationFromResult(sig, result)
			conf.Attempts = attempt
			if conf.Status == StatusFailed {
				c.logger.ErrorContext(ctx, "transaction failed on-chain",
					"signature", sig.String(),
					"error", *conf.Err,
				)
			}
			c.recordConfirmation(conf, start)
			return conf, nil
		}

		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.WarnContext(ctx, "transaction confirmation timed out",
		"signature", sig.String(),
		"attempts", maxAttempts,
	)
	conf := &Confirmation{
		Signature: sig,
		Status:    StatusTimedOut,
		Attempts:  maxAttempts,
	}
	c.recordConfirmation(conf, start)
	return conf, nil
}

func (c *Client) recordConfirmation(conf *Confirmation, start time.Time) {
	if c.metrics == nil {
		return
	}
	metrics.Timer(start, func(d float64) {
		c.metrics.RecordConfirmation(string(conf.Status), conf.Attempts, d)
	})()
}

// confirmationFromResult converts a getTransaction result to our domain Confirmation.
func confirmationFromResult(sig solana.Signature, result *rpc.GetTransactionResult) *Confirmation {
	conf := &Confirmation{
		Signature: sig,
		Status:    StatusConfirmed,
		Slot:      result.Slot,
	}

	if result.BlockTime != nil {
		conf.BlockTime = result.BlockTime.Time()
	}

	if result.Meta != nil {
		conf.Fee = result.Meta.Fee
		if result.Meta.Err != nil {
			errMsg := fmt.Sprintf("%v", result.Meta.Err)
			conf.Err = &errMsg
			conf.Status = StatusFailed
		}
	}

	return conf
}
