package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/brojonat/solswap/service/solana"
	"github.com/brojonat/solswap/service/trader"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// tradeRunner is the part of trader.Trader the interactive session drives.
type tradeRunner interface {
	Buy(ctx context.Context, wallet *solana.Wallet, mint solanago.PublicKey, spend decimal.Decimal) (*trader.TradeResult, error)
	Sell(ctx context.Context, wallet *solana.Wallet, mint solanago.PublicKey, amount decimal.Decimal) (*trader.TradeResult, error)
}

func tradeCommand() *cli.Command {
	return &cli.Command{
		Name:   "trade",
		Usage:  "Start the interactive buy/sell menu (default)",
		Action: tradeAction,
	}
}

func tradeAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// restore default handling so a second signal kills the process
		<-ctx.Done()
		stop()
	}()

	d, err := newDeps(ctx, c)
	if err != nil {
		return err
	}
	defer d.Close()

	t := d.newTrader()
	out := c.App.Writer
	t.OnProgress(func(line string) { fmt.Fprintln(out, line) })

	s := newSession(t, c.App.Reader, out)
	if f, ok := c.App.Reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		if state, err := term.GetState(fd); err == nil {
			// an interrupted ReadPassword leaves echo disabled
			defer term.Restore(fd, state)
		}
		s.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return string(b), err
		}
	}

	err = s.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out)
		return nil
	}
	return err
}

// session is one interactive run: a wallet read once, then a menu loop.
type session struct {
	trader     tradeRunner
	in         *bufio.Reader
	out        io.Writer
	readSecret func() (string, error)
}

func newSession(t tradeRunner, in io.Reader, out io.Writer) *session {
	s := &session{
		trader: t,
		in:     bufio.NewReader(in),
		out:    out,
	}
	s.readSecret = s.readRawLine
	return s
}

// Run prompts for the private key and serves the menu until the user exits,
// stdin closes, or ctx is cancelled.
func (s *session) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "Welcome to Solana Token Trader!")

	fmt.Fprint(s.out, "Enter your private key: ")
	secret, err := s.await(ctx, s.readSecret)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to read private key: %w", err)
	}
	wallet, err := solana.ParseWallet(secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Using wallet %s\n", wallet.PublicKey())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(s.out, "\n1. Buy tokens")
		fmt.Fprintln(s.out, "2. Sell tokens")
		fmt.Fprintln(s.out, "3. Exit")
		fmt.Fprint(s.out, "Enter choice (1-3): ")

		choice, err := s.readLine(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out, "\nThank you for using Solana Token Trader!")
			return nil
		}
		if err != nil {
			return err
		}

		switch choice {
		case "1", "2":
		case "3":
			fmt.Fprintln(s.out, "Thank you for using Solana Token Trader!")
			return nil
		default:
			fmt.Fprintln(s.out, "Invalid choice")
			continue
		}

		fmt.Fprint(s.out, "Enter token contract address: ")
		input, err := s.readLine(ctx)
		if err != nil {
			continue
		}
		mint, err := solanago.PublicKeyFromBase58(input)
		if err != nil {
			fmt.Fprintln(s.out, "Invalid token address")
			continue
		}

		if choice == "1" {
			s.buy(ctx, wallet, mint)
		} else {
			s.sell(ctx, wallet, mint)
		}
	}
}

func (s *session) buy(ctx context.Context, wallet *solana.Wallet, mint solanago.PublicKey) {
	fmt.Fprint(s.out, "Enter SOL amount: ")
	input, err := s.readLine(ctx)
	if err != nil {
		return
	}
	amount, err := decimal.NewFromString(input)
	if err != nil || !amount.IsPositive() {
		fmt.Fprintln(s.out, "Invalid amount")
		return
	}

	fmt.Fprintf(s.out, "\nInitiating buy of tokens for %s SOL...\n", amount)
	result, err := s.trader.Buy(ctx, wallet, mint, amount)
	s.report(result, err)
}

func (s *session) sell(ctx context.Context, wallet *solana.Wallet, mint solanago.PublicKey) {
	fmt.Fprint(s.out, "Enter token amount (or press Enter for all): ")
	input, err := s.readLine(ctx)
	if err != nil {
		return
	}

	amount := decimal.Zero
	if input != "" {
		amount, err = decimal.NewFromString(input)
		if err != nil || amount.IsNegative() {
			fmt.Fprintln(s.out, "Invalid amount")
			return
		}
	}

	fmt.Fprintln(s.out, "\nInitiating sell of tokens...")
	result, err := s.trader.Sell(ctx, wallet, mint, amount)
	s.report(result, err)
}

// report prints the outcome of a trade. It is the only place trade errors
// are presented.
func (s *session) report(result *trader.TradeResult, err error) {
	switch {
	case err == nil:
		fmt.Fprintf(s.out, "Transaction confirmed! View details: %s\n", result.ExplorerURL)
		if result.PreBalance != nil && result.PostBalance != nil {
			if result.BalanceDipped {
				fmt.Fprintf(s.out, "Balance reduced from %s to %s\n", result.PreBalance, result.PostBalance)
			} else {
				fmt.Fprintln(s.out, "Warning: Token balance did not decrease as expected")
			}
		}
	case errors.Is(err, trader.ErrTransactionFailed), errors.Is(err, trader.ErrConfirmationTimeout):
		fmt.Fprintln(s.out, "Transaction failed or timed out!")
		if result != nil && result.ExplorerURL != "" {
			fmt.Fprintf(s.out, "View details: %s\n", result.ExplorerURL)
		}
		fmt.Fprintf(s.out, "Error: %v\n", err)
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
		fmt.Fprintln(s.out, "Transaction failed")
	}
}

// readLine reads one trimmed line, returning ctx.Err() as soon as ctx is
// cancelled even while the read is blocked.
func (s *session) readLine(ctx context.Context) (string, error) {
	return s.await(ctx, s.readRawLine)
}

// await runs read in its own goroutine. A read abandoned on cancellation
// is left blocked; Run returns right after, so nothing reads concurrently.
func (s *session) await(ctx context.Context, read func() (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		text, err := read()
		ch <- line{text, err}
	}()

	select {
	case l := <-ch:
		return l.text, l.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// readRawLine blocks for one trimmed line. A final line without a newline is
// returned without error; io.EOF is returned only when nothing was read.
func (s *session) readRawLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
