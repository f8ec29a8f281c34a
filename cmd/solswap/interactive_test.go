package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/solswap/service/solana"
	"github.com/brojonat/solswap/service/trader"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

type tradeCall struct {
	side   string
	mint   solanago.PublicKey
	amount decimal.Decimal
}

// fakeRunner records calls and returns canned outcomes.
type fakeRunner struct {
	calls  []tradeCall
	result *trader.TradeResult
	err    error
}

func (f *fakeRunner) Buy(ctx context.Context, wallet *solana.Wallet, mint solanago.PublicKey, spend decimal.Decimal) (*trader.TradeResult, error) {
	f.calls = append(f.calls, tradeCall{"buy", mint, spend})
	return f.result, f.err
}

func (f *fakeRunner) Sell(ctx context.Context, wallet *solana.Wallet, mint solanago.PublicKey, amount decimal.Decimal) (*trader.TradeResult, error) {
	f.calls = append(f.calls, tradeCall{"sell", mint, amount})
	return f.result, f.err
}

func runSession(t *testing.T, runner *fakeRunner, lines ...string) string {
	t.Helper()

	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	input := key.String() + "\n" + strings.Join(lines, "\n")
	var out bytes.Buffer
	err = newSession(runner, strings.NewReader(input), &out).Run(context.Background())
	require.NoError(t, err)
	return out.String()
}

func confirmedResult() *trader.TradeResult {
	return &trader.TradeResult{ExplorerURL: "https://solscan.io/tx/abc"}
}

func TestSession_BuyThenExit(t *testing.T) {
	runner := &fakeRunner{result: confirmedResult()}

	out := runSession(t, runner, "1", usdcMint, "0.5", "3")

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "buy", runner.calls[0].side)
	assert.Equal(t, usdcMint, runner.calls[0].mint.String())
	assert.True(t, runner.calls[0].amount.Equal(decimal.RequireFromString("0.5")))

	assert.Contains(t, out, "Welcome to Solana Token Trader!")
	assert.Contains(t, out, "Transaction confirmed! View details: https://solscan.io/tx/abc")
	assert.Contains(t, out, "Thank you for using Solana Token Trader!")
}

func TestSession_SellAllOnEmptyAmount(t *testing.T) {
	pre := decimal.RequireFromString("100")
	post := decimal.RequireFromString("0")
	result := confirmedResult()
	result.PreBalance = &pre
	result.PostBalance = &post
	result.BalanceDipped = true
	runner := &fakeRunner{result: result}

	out := runSession(t, runner, "2", usdcMint, "", "3")

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "sell", runner.calls[0].side)
	assert.True(t, runner.calls[0].amount.IsZero())
	assert.Contains(t, out, "Initiating sell of tokens...")
	assert.Contains(t, out, "Balance reduced from 100 to 0")
}

func TestSession_SellBalanceNotReduced(t *testing.T) {
	pre := decimal.RequireFromString("100")
	result := confirmedResult()
	result.PreBalance = &pre
	result.PostBalance = &pre
	runner := &fakeRunner{result: result}

	out := runSession(t, runner, "2", usdcMint, "10", "3")
	assert.Contains(t, out, "Warning: Token balance did not decrease as expected")
}

func TestSession_InvalidInputKeepsLooping(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"invalid choice", []string{"9"}, "Invalid choice"},
		{"invalid mint", []string{"1", "not-a-mint"}, "Invalid token address"},
		{"invalid buy amount", []string{"1", usdcMint, "abc"}, "Invalid amount"},
		{"zero buy amount", []string{"1", usdcMint, "0"}, "Invalid amount"},
		{"negative sell amount", []string{"2", usdcMint, "-5"}, "Invalid amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}

			out := runSession(t, runner, append(tt.lines, "3")...)
			assert.Contains(t, out, tt.want)
			assert.Empty(t, runner.calls)
			assert.Contains(t, out, "Thank you for using Solana Token Trader!")
		})
	}
}

func TestSession_ErrorsArePrintedAndLoopContinues(t *testing.T) {
	t.Run("validation error", func(t *testing.T) {
		runner := &fakeRunner{err: fmt.Errorf("%w: have 0.1 SOL, need 0.5 SOL", trader.ErrInsufficientBalance)}

		out := runSession(t, runner, "1", usdcMint, "0.5", "1", usdcMint, "0.5", "3")
		assert.Len(t, runner.calls, 2)
		assert.Contains(t, out, "Initiating buy of tokens for 0.5 SOL...\nError: insufficient SOL balance")
		assert.Contains(t, out, "Transaction failed")
	})

	t.Run("confirmation timeout", func(t *testing.T) {
		runner := &fakeRunner{
			result: confirmedResult(),
			err:    fmt.Errorf("%w: abc after 30 attempts", trader.ErrConfirmationTimeout),
		}

		out := runSession(t, runner, "1", usdcMint, "0.5", "3")
		assert.Contains(t, out, "Transaction failed or timed out!")
		assert.Contains(t, out, "View details: https://solscan.io/tx/abc")
	})
}

func TestSession_EOFExitsCleanly(t *testing.T) {
	runner := &fakeRunner{}

	out := runSession(t, runner, "1", usdcMint)
	assert.Empty(t, runner.calls)
	assert.Contains(t, out, "Thank you for using Solana Token Trader!")
}

func TestSession_InvalidPrivateKey(t *testing.T) {
	var out bytes.Buffer
	err := newSession(&fakeRunner{}, strings.NewReader("garbage\n"), &out).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, solana.ErrInvalidPrivateKey))
}

func TestSession_CancelledContext(t *testing.T) {
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err = newSession(&fakeRunner{}, strings.NewReader(key.String()+"\n1\n"), &out).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_CancelDuringBlockedRead(t *testing.T) {
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	pr, pw := io.Pipe()
	defer pw.Close()
	go func() {
		pw.Write([]byte(key.String() + "\n"))
	}()

	ctx, cancel := context.WithCancel(context.Background())
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- newSession(&fakeRunner{}, pr, out).Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Enter choice (1-3): ")
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation while waiting for input")
	}
}

func TestSession_ReadsSecretSeparately(t *testing.T) {
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	var out bytes.Buffer
	s := newSession(&fakeRunner{}, strings.NewReader("3\n"), &out)
	s.readSecret = func() (string, error) { return key.String(), nil }

	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "Using wallet "+key.PublicKey().String())
	assert.NotContains(t, out.String(), key.String())
}


// lockedBuffer is a bytes.Buffer safe to poll from another goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
