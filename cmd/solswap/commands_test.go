package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/brojonat/solswap/service/db"
	natspkg "github.com/brojonat/solswap/service/nats"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleQuote = `{
	"inputMint": "So11111111111111111111111111111111111111112",
	"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"inAmount": "500000000",
	"outAmount": "81234567",
	"priceImpactPct": "0.0012",
	"slippageBps": 50,
	"routePlan": [{"swapInfo": {"label": "Whirlpool"}}, {"swapInfo": {"label": "Raydium"}}]
}`

func TestRunJQFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters []string
		want    string
		wantErr bool
	}{
		{
			name:    "single field",
			filters: []string{".outAmount"},
			want:    "\"81234567\"\n",
		},
		{
			name:    "route labels",
			filters: []string{"[.routePlan[].swapInfo.label]"},
			want:    "[\"Whirlpool\",\"Raydium\"]\n",
		},
		{
			name:    "multiple filters",
			filters: []string{".inAmount", ".slippageBps"},
			want:    "\"500000000\"\n50\n",
		},
		{
			name:    "runtime error",
			filters: []string{".inAmount | keys"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := compileJQFilters(tt.filters)
			require.NoError(t, err)

			var buf bytes.Buffer
			err = runJQFilters(&buf, code, []byte(sampleQuote))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestCompileJQFilters_Invalid(t *testing.T) {
	_, err := compileJQFilters([]string{".foo | ]"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestQuoteCommand(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(sampleQuote))
	}))
	defer srv.Close()

	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	defer os.Unsetenv("SOLANA_RPC_URL")

	t.Run("pretty output", func(t *testing.T) {
		app := newApp()
		var out bytes.Buffer
		app.Writer = &out

		err := app.Run([]string{"solswap", "--jupiter-url", srv.URL, "quote",
			"--out", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "--amount", "500000000"})
		require.NoError(t, err)

		assert.Contains(t, gotQuery, "amount=500000000")
		assert.Contains(t, gotQuery, "inputMint=So11111111111111111111111111111111111111112")
		assert.Contains(t, out.String(), "Out:          81234567")
	})

	t.Run("jq filter", func(t *testing.T) {
		app := newApp()
		var out bytes.Buffer
		app.Writer = &out

		err := app.Run([]string{"solswap", "--jupiter-url", srv.URL, "quote",
			"--out", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "--amount", "500000000",
			"--jq", ".priceImpactPct"})
		require.NoError(t, err)
		assert.Equal(t, "\"0.0012\"\n", out.String())
	})

	t.Run("fractional amount rejected", func(t *testing.T) {
		app := newApp()
		app.Writer = &bytes.Buffer{}

		err := app.Run([]string{"solswap", "--jupiter-url", srv.URL, "quote",
			"--out", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "--amount", "0.5"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "positive integer")
	})
}

func TestPrintBalance(t *testing.T) {
	var buf bytes.Buffer
	tokens := decimal.RequireFromString("12.5")
	printBalance(&buf, balanceOutput{
		Address:      "wallet1",
		SOL:          decimal.RequireFromString("1.25"),
		Mint:         "mint1",
		TokenAccount: "ata1",
		TokenBalance: &tokens,
	})

	assert.Contains(t, buf.String(), "SOL:           1.25")
	assert.Contains(t, buf.String(), "Token balance: 12.5")

	buf.Reset()
	printBalance(&buf, balanceOutput{Address: "wallet1", SOL: decimal.Zero, Mint: "mint1"})
	assert.Contains(t, buf.String(), "(no token account)")
}

func TestBalanceOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outputJSON(&buf, balanceOutput{Address: "wallet1", SOL: decimal.RequireFromString("0.5")}))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "0.5", decoded["sol"])
	assert.NotContains(t, decoded, "token_balance")
}

func TestPrintTrades(t *testing.T) {
	var buf bytes.Buffer
	printTrades(&buf, []*db.Trade{
		{
			Signature: "sig1",
			Side:      "buy",
			Status:    "confirmed",
			TokenMint: "mint1",
			InAmount:  "500000000",
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}, 1)

	out := buf.String()
	assert.Contains(t, out, "SIDE")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	assert.Contains(t, out, "sig1")
	assert.Contains(t, out, "Total: 1 trades")
}

func TestPrintTrades_Truncated(t *testing.T) {
	var buf bytes.Buffer
	printTrades(&buf, []*db.Trade{
		{Signature: "sig1", Side: "sell", Status: "timed_out", CreatedAt: time.Now()},
	}, 12)

	assert.Contains(t, buf.String(), "Showing 1 of 12 trades")
	assert.NotContains(t, buf.String(), "Total:")
}

func TestHistoryCommand_RequiresDatabase(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	defer os.Unsetenv("SOLANA_RPC_URL")
	os.Unsetenv("DATABASE_URL")

	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"solswap", "history"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url is required")
}

func TestVersionCommand(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	require.NoError(t, app.Run([]string{"solswap", "version"}))
	assert.Contains(t, out.String(), "solswap dev")
}

func TestExtractEndpointFromURL(t *testing.T) {
	tests := map[string]string{
		"https://api.mainnet-beta.solana.com":              "mainnet",
		"https://api.devnet.solana.com":                    "devnet",
		"https://mainnet.helius-rpc.com/?api-key=secret":   "helius",
		"https://example.solana-mainnet.quiknode.pro/key/": "quiknode",
		"https://rpc.example.org":                          "rpc.example.org",
		"::not a url":                                      "unknown",
	}

	for input, want := range tests {
		assert.Equal(t, want, extractEndpointFromURL(input), input)
	}
}

func TestSetupLogger(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelWarn,
	}

	for input, level := range tests {
		logger := setupLogger(input)
		assert.True(t, logger.Enabled(context.Background(), level), input)
		assert.False(t, logger.Enabled(context.Background(), level-1), input)
	}
}

func TestPrintTradeEvent(t *testing.T) {
	failure := "InstructionError"
	var buf bytes.Buffer
	printTradeEvent(&buf, 3, &natspkg.TradeEvent{
		Signature:     "sig1",
		WalletAddress: "wallet1",
		Side:          "sell",
		TokenMint:     "mint1",
		InAmount:      "100000000",
		Status:        "failed",
		Error:         &failure,
		PublishedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	out := buf.String()
	assert.Contains(t, out, "Trade #3")
	assert.Contains(t, out, "Side:         sell")
	assert.Contains(t, out, "Error:        InstructionError")
	assert.NotContains(t, out, "Slot:")
	assert.NotContains(t, out, "Quoted Out:")
}

func TestEventsCommand_RequiresNATS(t *testing.T) {
	os.Unsetenv("NATS_URL")

	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"solswap", "events"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats-url is required")
}
