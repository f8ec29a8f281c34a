package trader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/solswap/service/metrics"
	solanago "github.com/gagliardetto/solana-go"
)

// Relay sends a signed transaction through the aggregator's relay.
type Relay interface {
	SendTransaction(ctx context.Context, encoded string) (string, error)
}

// RPCSender sends a signed transaction through the RPC provider.
type RPCSender interface {
	SendTransaction(ctx context.Context, encoded string) (solanago.Signature, error)
}

// Submitter sends signed transactions, preferring the relay and falling back
// to the RPC provider.
type Submitter struct {
	relay   Relay
	rpc     RPCSender
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSubmitter creates a Submitter. If metrics is nil, no metrics will be recorded.
func NewSubmitter(relay Relay, rpc RPCSender, m *metrics.Metrics, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		relay:   relay,
		rpc:     rpc,
		metrics: m,
		logger:  logger,
	}
}

// Submit sends a base64 encoded signed transaction and returns its signature.
// When both routes fail the returned error carries both causes.
func (s *Submitter) Submit(ctx context.Context, encoded string) (solanago.Signature, error) {
	txid, relayErr := s.relay.SendTransaction(ctx, encoded)
	if relayErr == nil {
		sig, err := solanago.SignatureFromBase58(txid)
		if err == nil {
			s.record("relay", "success")
			s.logger.InfoContext(ctx, "transaction submitted", "route", "relay", "signature", txid)
			return sig, nil
		}
		relayErr = fmt.Errorf("relay returned invalid txid %q: %w", txid, err)
	}
	s.record("relay", "error")

	s.logger.WarnContext(ctx, "relay submission failed, falling back to RPC", "error", relayErr)

	sig, rpcErr := s.rpc.SendTransaction(ctx, encoded)
	if rpcErr != nil {
		s.record("rpc", "error")
		return solanago.Signature{}, fmt.Errorf("failed to submit transaction: relay: %v; rpc: %w", relayErr, rpcErr)
	}

	s.record("rpc", "success")
	s.logger.InfoContext(ctx, "transaction submitted", "route", "rpc", "signature", sig.String())
	return sig, nil
}

func (s *Submitter) record(route, status string) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(route, status)
	}
}
