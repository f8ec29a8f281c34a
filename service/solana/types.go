package solana

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// NativeMint is the wrapped SOL mint the aggregator uses for the native asset.
var NativeMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// SOLDecimals is the precision of native SOL; one SOL is 10^9 lamports.
const SOLDecimals = 9

var (
	// ErrBalanceUnavailable means the balance could not be read. It is never
	// reported as a zero balance.
	ErrBalanceUnavailable = errors.New("balance unavailable")

	// ErrSignerNotFound means the wallet is not one of the transaction's required signers.
	ErrSignerNotFound = errors.New("wallet is not a required signer of the transaction")

	// ErrInvalidPrivateKey is returned by ParseWallet for malformed key material.
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// TokenAccount is an SPL token account held by a wallet.
// This is our domain model, independent of the RPC response format.
type TokenAccount struct {
	Address  solana.PublicKey
	Mint     solana.PublicKey
	Amount   string // raw amount in smallest units
	Decimals uint8
}

// Balance returns the human-readable token balance (Amount / 10^Decimals).
func (a *TokenAccount) Balance() (decimal.Decimal, error) {
	return FromSmallestUnits(a.Amount, a.Decimals)
}

// ConfirmationStatus is the terminal state of a confirmation poll.
type ConfirmationStatus string

const (
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusFailed    ConfirmationStatus = "failed"
	StatusTimedOut  ConfirmationStatus = "timed_out"
)

// Confirmation describes the outcome of waiting for a submitted transaction.
type Confirmation struct {
	Signature solana.Signature
	Status    ConfirmationStatus
	Attempts  int
	Slot      uint64
	BlockTime time.Time
	Fee       uint64
	Err       *string // on-chain error, set when Status is StatusFailed
}
