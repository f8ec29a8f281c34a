package solana

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToSmallestUnits scales a human amount by 10^decimals and truncates toward
// zero, returning the base-10 integer string the aggregator expects.
func ToSmallestUnits(amount decimal.Decimal, decimals uint8) string {
	return amount.Shift(int32(decimals)).BigInt().String()
}

// FromSmallestUnits converts a raw integer amount string into a human amount.
func FromSmallestUnits(raw string, decimals uint8) (decimal.Decimal, error) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid integer amount %q", raw)
	}
	return decimal.NewFromBigInt(n, -int32(decimals)), nil
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -SOLDecimals)
}
