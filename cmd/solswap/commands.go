package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solswap/service/db"
	"github.com/brojonat/solswap/service/jupiter"
	"github.com/brojonat/solswap/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

// balanceOutput is the --json shape of the balance command.
type balanceOutput struct {
	Address      string           `json:"address"`
	SOL          decimal.Decimal  `json:"sol"`
	Mint         string           `json:"mint,omitempty"`
	TokenAccount string           `json:"token_account,omitempty"`
	TokenBalance *decimal.Decimal `json:"token_balance,omitempty"`
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show the SOL (and optionally token) balance of an address",
		ArgsUsage: "<address>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mint",
				Aliases: []string{"m"},
				Usage:   "Also show the balance of this token mint",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}
			owner, err := solanago.PublicKeyFromBase58(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}

			ctx := context.Background()
			d, err := newDeps(ctx, c)
			if err != nil {
				return err
			}
			defer d.Close()

			sol, err := d.chain.SOLBalance(ctx, owner)
			if err != nil {
				return err
			}
			out := balanceOutput{Address: owner.String(), SOL: sol}

			if mintStr := c.String("mint"); mintStr != "" {
				mint, err := solanago.PublicKeyFromBase58(mintStr)
				if err != nil {
					return fmt.Errorf("invalid mint: %w", err)
				}
				out.Mint = mint.String()

				accounts, err := d.chain.TokenAccounts(ctx, owner, mint)
				if err != nil {
					return err
				}
				if len(accounts) > 0 {
					balance, err := accounts[0].Balance()
					if err != nil {
						return err
					}
					out.TokenAccount = accounts[0].Address.String()
					out.TokenBalance = &balance
				}
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, out)
			}
			printBalance(c.App.Writer, out)
			return nil
		},
	}
}

func printBalance(w io.Writer, b balanceOutput) {
	fmt.Fprintf(w, "Address:       %s\n", b.Address)
	fmt.Fprintf(w, "SOL:           %s\n", b.SOL)
	if b.Mint == "" {
		return
	}
	fmt.Fprintf(w, "Mint:          %s\n", b.Mint)
	if b.TokenBalance == nil {
		fmt.Fprintf(w, "Token balance: (no token account)\n")
		return
	}
	fmt.Fprintf(w, "Token account: %s\n", b.TokenAccount)
	fmt.Fprintf(w, "Token balance: %s\n", b.TokenBalance)
}

func quoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Fetch a swap quote from the aggregator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "in",
				Usage: "Input token mint",
				Value: solana.NativeMint.String(),
			},
			&cli.StringFlag{
				Name:     "out",
				Usage:    "Output token mint",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "Input amount in smallest units (lamports for SOL)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter applied to the raw quote JSON (can be repeated)",
			},
		},
		Action: func(c *cli.Context) error {
			amount, err := decimal.NewFromString(c.String("amount"))
			if err != nil || !amount.IsPositive() || !amount.IsInteger() {
				return fmt.Errorf("--amount must be a positive integer in smallest units")
			}

			filters, err := compileJQFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			ctx := context.Background()
			d, err := newDeps(ctx, c)
			if err != nil {
				return err
			}
			defer d.Close()

			quote, err := d.jupiter.Quote(ctx, jupiter.QuoteRequest{
				InputMint:  c.String("in"),
				OutputMint: c.String("out"),
				Amount:     amount.String(),
			})
			if err != nil {
				return err
			}

			if len(filters) > 0 {
				return runJQFilters(c.App.Writer, filters, quote.Raw)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, json.RawMessage(quote.Raw))
			}

			fmt.Fprintf(c.App.Writer, "In:           %s %s\n", quote.InAmount, quote.InputMint)
			fmt.Fprintf(c.App.Writer, "Out:          %s %s\n", quote.OutAmount, quote.OutputMint)
			fmt.Fprintf(c.App.Writer, "Price impact: %s%%\n", quote.PriceImpactPct)
			fmt.Fprintf(c.App.Writer, "Slippage:     %d bps\n", quote.SlippageBps)
			return nil
		},
	}
}

func compileJQFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// runJQFilters applies each filter to raw and writes every result as JSON.
func runJQFilters(w io.Writer, filters []*gojq.Code, raw []byte) error {
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("failed to decode quote: %w", err)
	}

	enc := json.NewEncoder(w)
	for _, code := range filters {
		iter := code.Run(input)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				return fmt.Errorf("jq filter error: %w", err)
			}
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:    "history",
		Usage:   "List journaled trades",
		Aliases: []string{"trades"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Filter by wallet address",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of trades to show",
				Value:   20,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
			}

			ctx := context.Background()
			store, closer, err := openStore(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer closer()

			wallet := c.String("wallet")
			trades, err := store.ListTrades(ctx, db.ListTradesParams{
				WalletAddress: wallet,
				Limit:         int32(c.Int("limit")),
			})
			if err != nil {
				return fmt.Errorf("failed to list trades: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, trades)
			}

			total := int64(len(trades))
			if wallet != "" {
				total, err = store.CountTradesByWallet(ctx, wallet)
				if err != nil {
					return fmt.Errorf("failed to count trades: %w", err)
				}
			}
			printTrades(c.App.Writer, trades, total)
			return nil
		},
	}
}

// printTrades renders trades as a table. total is the number of matching
// trades, which may exceed len(trades) when --limit truncated the list.
func printTrades(w io.Writer, trades []*db.Trade, total int64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSIDE\tSTATUS\tMINT\tIN AMOUNT\tSIGNATURE")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.CreatedAt.Format(time.RFC3339),
			t.Side,
			t.Status,
			t.TokenMint,
			t.InAmount,
			t.Signature,
		)
	}
	tw.Flush()
	if total > int64(len(trades)) {
		fmt.Fprintf(w, "\nShowing %d of %d trades\n", len(trades), total)
		return
	}
	fmt.Fprintf(w, "\nTotal: %d trades\n", len(trades))
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
