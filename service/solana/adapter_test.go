package solana

import (
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRandomEndpoint(t *testing.T) {
	t.Run("successful selection from multiple endpoints", func(t *testing.T) {
		endpoints := []string{
			"https://api.mainnet-beta.solana.com",
			"https://mainnet.helius-rpc.com",
			"https://rpc.ankr.com/solana",
		}

		selected, err := SelectRandomEndpoint(endpoints)
		require.NoError(t, err)
		assert.Contains(t, endpoints, selected)
	})

	t.Run("successful selection from single endpoint", func(t *testing.T) {
		endpoints := []string{"https://api.mainnet-beta.solana.com"}

		selected, err := SelectRandomEndpoint(endpoints)
		require.NoError(t, err)
		assert.Equal(t, endpoints[0], selected)
	})

	t.Run("error on empty slice", func(t *testing.T) {
		_, err := SelectRandomEndpoint([]string{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no RPC endpoints configured")
	})

	t.Run("error on nil slice", func(t *testing.T) {
		_, err := SelectRandomEndpoint(nil)
		assert.Error(t, err)
	})

	t.Run("distribution across multiple calls", func(t *testing.T) {
		endpoints := []string{
			"https://endpoint1.com",
			"https://endpoint2.com",
			"https://endpoint3.com",
		}

		// probabilistic: 60 picks from 3 endpoints all landing on one is ~1e-28
		seen := make(map[string]bool)
		for i := 0; i < 60; i++ {
			selected, err := SelectRandomEndpoint(endpoints)
			require.NoError(t, err)
			seen[selected] = true
		}

		assert.GreaterOrEqual(t, len(seen), 2, "Expected to see multiple endpoints selected")
	})
}

func TestSplitEndpoints(t *testing.T) {
	assert.Equal(t,
		[]string{"https://a.example.com", "https://b.example.com"},
		SplitEndpoints(" https://a.example.com, ,https://b.example.com "),
	)
	assert.Empty(t, SplitEndpoints(""))
}

func TestParseTokenAccountData(t *testing.T) {
	address := solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	data := json.RawMessage(`{
		"program": "spl-token",
		"parsed": {
			"info": {
				"isNative": false,
				"mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				"owner": "11111111111111111111111111111111",
				"state": "initialized",
				"tokenAmount": {
					"amount": "100000000",
					"decimals": 6,
					"uiAmount": 100.0,
					"uiAmountString": "100"
				}
			},
			"type": "account"
		},
		"space": 165
	}`)

	acct, err := parseTokenAccountData(address, data)
	require.NoError(t, err)
	assert.Equal(t, address, acct.Address)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", acct.Mint.String())
	assert.Equal(t, "100000000", acct.Amount)
	assert.Equal(t, uint8(6), acct.Decimals)

	balance, err := acct.Balance()
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())
}

func TestParseTokenAccountData_Errors(t *testing.T) {
	address := solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

	_, err := parseTokenAccountData(address, nil)
	assert.Error(t, err)

	_, err = parseTokenAccountData(address, json.RawMessage(`{"parsed": {"info": {}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing tokenAmount")

	_, err = parseTokenAccountData(address, json.RawMessage(`not json`))
	assert.Error(t, err)
}
