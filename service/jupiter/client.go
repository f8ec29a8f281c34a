package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Quote is the aggregator's price quote. Raw is forwarded byte-for-byte to the
// swap endpoint; the other fields are decoded from it for display only.
type Quote struct {
	Raw json.RawMessage `json:"-"`

	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	SlippageBps    int    `json:"slippageBps"`
}

// QuoteRequest identifies the asset pair and the input amount in smallest units.
type QuoteRequest struct {
	InputMint  string
	OutputMint string
	Amount     string
}

// SwapTransaction is the unsigned transaction returned by the swap endpoint.
type SwapTransaction struct {
	Transaction          string `json:"swapTransaction"` // base64 versioned transaction
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SwapOptions are the fee and slippage limits sent with every swap build.
type SwapOptions struct {
	MaxSlippageBps         int
	MaxPriorityFeeLamports uint64
	PriorityLevel          string
}

// DefaultSwapOptions returns the limits used when none are configured.
func DefaultSwapOptions() SwapOptions {
	return SwapOptions{
		MaxSlippageBps:         300,
		MaxPriorityFeeLamports: 10_000_000,
		PriorityLevel:          "veryHigh",
	}
}

// swapRequest is the POST body for the swap endpoint.
type swapRequest struct {
	QuoteResponse             json.RawMessage   `json:"quoteResponse"`
	UserPublicKey             string            `json:"userPublicKey"`
	WrapAndUnwrapSOL          bool              `json:"wrapUnwrapSOL"`
	UseVersionedTransaction   bool              `json:"useVersionedTransaction"`
	DynamicComputeUnitLimit   bool              `json:"dynamicComputeUnitLimit"`
	DynamicSlippage           dynamicSlippage   `json:"dynamicSlippage"`
	PrioritizationFeeLamports prioritizationFee `json:"prioritizationFeeLamports"`
}

type dynamicSlippage struct {
	MaxBps int `json:"maxBps"`
}

type prioritizationFee struct {
	PriorityLevelWithMaxLamports priorityLevelWithMaxLamports `json:"priorityLevelWithMaxLamports"`
}

type priorityLevelWithMaxLamports struct {
	MaxLamports   uint64 `json:"maxLamports"`
	PriorityLevel string `json:"priorityLevel"`
	Global        bool   `json:"global"`
}

// Client is the HTTP client for the Jupiter swap aggregator.
type Client struct {
	baseURL    string
	relayURL   string
	opts       SwapOptions
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new aggregator client. baseURL is the quote/swap API
// root (e.g. https://quote-api.jup.ag/v6) and relayURL the transaction relay.
func NewClient(baseURL, relayURL string, opts SwapOptions, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		relayURL:   relayURL,
		opts:       opts,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Quote requests a quote for swapping req.Amount of req.InputMint into
// req.OutputMint, restricted to routes through liquid intermediate tokens.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount)
	q.Set("restrictIntermediateTokens", "true")

	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("quote failed: %w", c.parseErrorResponse(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote: %w", err)
	}

	quote, err := ParseQuote(body)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "received quote",
		"input_mint", req.InputMint,
		"output_mint", req.OutputMint,
		"in_amount", quote.InAmount,
		"out_amount", quote.OutAmount,
	)
	return quote, nil
}

// ParseQuote decodes a quote response, keeping the raw bytes for forwarding.
func ParseQuote(body []byte) (*Quote, error) {
	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	quote.Raw = append(json.RawMessage(nil), body...)
	return &quote, nil
}

// BuildSwap asks the aggregator to build an unsigned swap transaction for quote
// with userPublicKey as the fee payer and signer.
func (c *Client) BuildSwap(ctx context.Context, quote *Quote, userPublicKey string) (*SwapTransaction, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, fmt.Errorf("quote is required")
	}

	reqBody := swapRequest{
		QuoteResponse:           quote.Raw,
		UserPublicKey:           userPublicKey,
		WrapAndUnwrapSOL:        true,
		UseVersionedTransaction: true,
		DynamicComputeUnitLimit: true,
		DynamicSlippage:         dynamicSlippage{MaxBps: c.opts.MaxSlippageBps},
		PrioritizationFeeLamports: prioritizationFee{
			PriorityLevelWithMaxLamports: priorityLevelWithMaxLamports{
				MaxLamports:   c.opts.MaxPriorityFeeLamports,
				PriorityLevel: c.opts.PriorityLevel,
				Global:        false,
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("swap transaction failed: %w", c.parseErrorResponse(resp))
	}

	var swap SwapTransaction
	if err := json.NewDecoder(resp.Body).Decode(&swap); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if swap.Transaction == "" {
		return nil, fmt.Errorf("swap response has no swapTransaction")
	}

	c.logger.DebugContext(ctx, "built swap transaction",
		"user", userPublicKey,
		"last_valid_block_height", swap.LastValidBlockHeight,
	)
	return &swap, nil
}

// SendTransaction posts a signed base64 transaction to the relay and returns
// the transaction id it reports.
func (c *Client) SendTransaction(ctx context.Context, encoded string) (string, error) {
	body, err := json.Marshal(map[string]string{"transaction": encoded})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.relayURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", fmt.Errorf("relay rejected transaction: %w", c.parseErrorResponse(resp))
	}

	var out struct {
		TxID string `json:"txid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.TxID == "" {
		return "", fmt.Errorf("relay response has no txid")
	}

	c.logger.DebugContext(ctx, "transaction sent via relay", "txid", out.TxID)
	return out.TxID, nil
}

// parseErrorResponse attempts to parse an error response from the aggregator.
// isSuccess reports whether code is a 2xx status.
func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return fmt.Errorf("status %d: %s", resp.StatusCode, errResp.Error)
}
