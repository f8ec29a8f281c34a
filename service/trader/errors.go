package trader

import "errors"

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientBalance    = errors.New("insufficient SOL balance")
	ErrNoTokenAccount         = errors.New("no token account found for this mint")
	ErrNothingToSell          = errors.New("no tokens to sell")
	ErrInsufficientFeeBalance = errors.New("insufficient SOL balance for transaction fees")

	// ErrTransactionFailed means the transaction landed with an on-chain error.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConfirmationTimeout means the transaction was not seen within the poll budget.
	// It may still land later.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
)
