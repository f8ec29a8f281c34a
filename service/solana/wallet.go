package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Wallet is the signing identity for a session. It is held in memory only.
type Wallet struct {
	key    solana.PrivateKey
	pubkey solana.PublicKey
}

// ParseWallet accepts a base58 private key (as exported by Phantom and most
// wallets) or a solana-keygen JSON byte array like "[12,34,...]".
func ParseWallet(input string) (*Wallet, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidPrivateKey)
	}

	var key solana.PrivateKey
	if strings.HasPrefix(input, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(input), &ints); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
		}
		raw := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidPrivateKey, i)
			}
			raw[i] = byte(v)
		}
		key = solana.PrivateKey(raw)
	} else {
		k, err := solana.PrivateKeyFromBase58(input)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
		}
		key = k
	}

	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, ed25519.PrivateKeySize, len(key))
	}
	// ed25519 signs with the trailing 32 bytes as the public key.
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(key[ed25519.SeedSize:], derived[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidPrivateKey)
	}

	return &Wallet{key: key, pubkey: key.PublicKey()}, nil
}

// NewWallet wraps an existing private key.
func NewWallet(key solana.PrivateKey) *Wallet {
	return &Wallet{key: key, pubkey: key.PublicKey()}
}

// PublicKey returns the wallet's address.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.pubkey
}

// Sign signs payload with the wallet's ed25519 key.
func (w *Wallet) Sign(payload []byte) (solana.Signature, error) {
	return w.key.Sign(payload)
}
