package solana

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{amount: "0.5", decimals: 9, want: "500000000"},
		{amount: "1", decimals: 9, want: "1000000000"},
		{amount: "100", decimals: 6, want: "100000000"},
		{amount: "0.1234567", decimals: 6, want: "123456"}, // truncates
		{amount: "0", decimals: 9, want: "0"},
		{amount: "12.5", decimals: 0, want: "12"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := ToSmallestUnits(decimal.RequireFromString(tt.amount), tt.decimals)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromSmallestUnits(t *testing.T) {
	d, err := FromSmallestUnits("100000000", 6)
	require.NoError(t, err)
	assert.Equal(t, "100", d.String())

	d, err = FromSmallestUnits("1", 9)
	require.NoError(t, err)
	assert.Equal(t, "0.000000001", d.String())

	_, err = FromSmallestUnits("12x", 6)
	assert.Error(t, err)
}

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, "1", LamportsToSOL(1_000_000_000).String())
	assert.Equal(t, "0.002", LamportsToSOL(2_000_000).String())
}
