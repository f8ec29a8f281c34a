package trader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	txid  string
	err   error
	calls int
}

func (f *fakeRelay) SendTransaction(ctx context.Context, encoded string) (string, error) {
	f.calls++
	return f.txid, f.err
}

type fakeRPCSender struct {
	sig   solanago.Signature
	err   error
	calls int
}

func (f *fakeRPCSender) SendTransaction(ctx context.Context, encoded string) (solanago.Signature, error) {
	f.calls++
	return f.sig, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitter_RelaySuccess(t *testing.T) {
	sig := solanago.Signature{1, 2, 3}
	relay := &fakeRelay{txid: sig.String()}
	rpc := &fakeRPCSender{}

	got, err := NewSubmitter(relay, rpc, nil, discardLogger()).Submit(context.Background(), "dHg=")
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	assert.Equal(t, 1, relay.calls)
	assert.Equal(t, 0, rpc.calls, "RPC must not be used when the relay succeeds")
}

func TestSubmitter_FallsBackToRPC(t *testing.T) {
	rpcSig := solanago.Signature{9, 9, 9}

	tests := []struct {
		name  string
		relay *fakeRelay
	}{
		{"relay error", &fakeRelay{err: errors.New("relay rejected transaction: status 500: boom")}},
		{"empty txid", &fakeRelay{err: errors.New("relay response has no txid")}},
		{"malformed txid", &fakeRelay{txid: "not-a-signature"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := &fakeRPCSender{sig: rpcSig}

			got, err := NewSubmitter(tt.relay, rpc, nil, discardLogger()).Submit(context.Background(), "dHg=")
			require.NoError(t, err)
			assert.Equal(t, rpcSig, got)
			assert.Equal(t, 1, rpc.calls)
		})
	}
}

func TestSubmitter_BothFail(t *testing.T) {
	relay := &fakeRelay{err: errors.New("relay down")}
	rpc := &fakeRPCSender{err: errors.New("node unhealthy")}

	_, err := NewSubmitter(relay, rpc, nil, discardLogger()).Submit(context.Background(), "dHg=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
	assert.Contains(t, err.Error(), "node unhealthy")
}
