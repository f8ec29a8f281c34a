package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/solswap/service/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDBTrade(t *testing.T) {
	out := "81234567"
	slot := int64(250000000)
	fee := int64(5000)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	event := FromDBTrade(&db.Trade{
		Signature:       "sig1",
		WalletAddress:   "wallet1",
		Side:            "buy",
		TokenMint:       "mint1",
		InputMint:       "So11111111111111111111111111111111111111112",
		OutputMint:      "mint1",
		InAmount:        "500000000",
		QuotedOutAmount: &out,
		Status:          "confirmed",
		Slot:            &slot,
		FeeLamports:     &fee,
		CreatedAt:       created,
	})

	assert.Equal(t, "sig1", event.Signature)
	assert.Equal(t, "buy", event.Side)
	assert.Equal(t, "81234567", event.OutAmount)
	assert.Equal(t, int64(250000000), event.Slot)
	assert.Equal(t, int64(5000), event.FeeLamports)
	assert.Equal(t, created, event.Timestamp)
	assert.WithinDuration(t, time.Now(), event.PublishedAt, 5*time.Second)
	assert.Equal(t, "trades.wallet1", event.Subject())
}

func TestFromDBTrade_OptionalFieldsOmitted(t *testing.T) {
	event := FromDBTrade(&db.Trade{
		Signature:     "sig2",
		WalletAddress: "wallet1",
		Side:          "sell",
		Status:        "timed_out",
	})

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "slot")
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "quoted_out_amount")
	assert.Equal(t, "timed_out", decoded["status"])
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	m := NewMockPublisher()

	require.NoError(t, m.PublishTrade(ctx, &TradeEvent{Signature: "a", WalletAddress: "w1"}))
	require.NoError(t, m.PublishTrade(ctx, &TradeEvent{Signature: "b", WalletAddress: "w2"}))

	assert.Len(t, m.GetPublishedEvents(), 2)
	assert.Len(t, m.GetPublishedEventsForWallet("w1"), 1)

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishTrade(ctx, &TradeEvent{Signature: "c"}))
	assert.Len(t, m.GetPublishedEvents(), 2)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}
