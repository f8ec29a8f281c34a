package solana

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
// This adapter allows us to control the interface and makes testing easier.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
// - Alchemy: https://solana-mainnet.g.alchemy.com/v2/YOUR-KEY
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

// SelectRandomEndpoint picks one endpoint from a configured list.
// SOLANA_RPC_URL may hold several comma-separated endpoints.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", fmt.Errorf("no RPC endpoints configured")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(endpoints))))
	if err != nil {
		return "", fmt.Errorf("failed to select RPC endpoint: %w", err)
	}
	return endpoints[n.Int64()], nil
}

// SplitEndpoints splits a comma-separated endpoint list, dropping blanks.
func SplitEndpoints(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *realRPCClient) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := r.client.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

func (r *realRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return r.client.GetTransaction(ctx, signature, opts)
}

func (r *realRPCClient) SendEncodedTransaction(
	ctx context.Context,
	encoded string,
	opts rpc.TransactionOpts,
) (solana.Signature, error) {
	return r.client.SendEncodedTransactionWithOpts(ctx, encoded, opts)
}

func (r *realRPCClient) GetTokenAccountsByOwner(
	ctx context.Context,
	owner solana.PublicKey,
	mint solana.PublicKey,
) ([]*TokenAccount, error) {
	out, err := r.client.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{Mint: mint.ToPointer()},
		&rpc.GetTokenAccountsOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingJSONParsed,
		},
	)
	if err != nil {
		return nil, err
	}

	accounts := make([]*TokenAccount, 0, len(out.Value))
	for _, v := range out.Value {
		if v == nil || v.Account.Data == nil {
			continue
		}
		acct, err := parseTokenAccountData(v.Pubkey, v.Account.Data.GetRawJSON())
		if err != nil {
			return nil, fmt.Errorf("token account %s: %w", v.Pubkey, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func (r *realRPCClient) GetTokenAccountBalance(
	ctx context.Context,
	account solana.PublicKey,
) (*rpc.UiTokenAmount, error) {
	out, err := r.client.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, fmt.Errorf("empty token balance for %s", account)
	}
	return out.Value, nil
}

// parsedTokenAccount is the jsonParsed layout of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
		Type string `json:"type"`
	} `json:"parsed"`
}

// parseTokenAccountData decodes the jsonParsed account data returned by getTokenAccountsByOwner.
func parseTokenAccountData(address solana.PublicKey, data json.RawMessage) (*TokenAccount, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("account data is not jsonParsed")
	}

	var parsed parsedTokenAccount
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode parsed token account: %w", err)
	}

	info := parsed.Parsed.Info
	if info.TokenAmount.Amount == "" {
		return nil, fmt.Errorf("missing tokenAmount")
	}

	mint, err := solana.PublicKeyFromBase58(info.Mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", info.Mint, err)
	}

	return &TokenAccount{
		Address:  address,
		Mint:     mint,
		Amount:   info.TokenAmount.Amount,
		Decimals: info.TokenAmount.Decimals,
	}, nil
}
