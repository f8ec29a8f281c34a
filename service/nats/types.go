package nats

import (
	"time"

	"github.com/brojonat/solswap/service/db"
)

// TradeEvent is published to the subject "trades.{wallet_address}" in JetStream
// once a submitted trade reaches a final status.
type TradeEvent struct {
	Signature     string `json:"signature"`
	WalletAddress string `json:"wallet_address"`

	Side       string `json:"side"`
	TokenMint  string `json:"token_mint"`
	InputMint  string `json:"input_mint"`
	OutputMint string `json:"output_mint"`
	InAmount   string `json:"in_amount"`
	OutAmount  string `json:"quoted_out_amount,omitempty"`

	Status      string  `json:"status"`
	Error       *string `json:"error,omitempty"`
	Slot        int64   `json:"slot,omitempty"`
	FeeLamports int64   `json:"fee_lamports,omitempty"`

	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// FromDBTrade converts a journaled trade to a TradeEvent for publishing.
func FromDBTrade(trade *db.Trade) *TradeEvent {
	event := &TradeEvent{
		Signature:     trade.Signature,
		WalletAddress: trade.WalletAddress,
		Side:          trade.Side,
		TokenMint:     trade.TokenMint,
		InputMint:     trade.InputMint,
		OutputMint:    trade.OutputMint,
		InAmount:      trade.InAmount,
		Status:        trade.Status,
		Error:         trade.Error,
		Timestamp:     trade.CreatedAt,
		PublishedAt:   time.Now().UTC(),
	}

	if trade.QuotedOutAmount != nil {
		event.OutAmount = *trade.QuotedOutAmount
	}
	if trade.Slot != nil {
		event.Slot = *trade.Slot
	}
	if trade.FeeLamports != nil {
		event.FeeLamports = *trade.FeeLamports
	}

	return event
}

// Subject returns the subject the event is published on.
func (e *TradeEvent) Subject() string {
	return SubjectPrefix + e.WalletAddress
}
