package solana

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// SignTransaction signs a base64 encoded (versioned) transaction built by the
// aggregator and returns it base64 encoded with the wallet's signature attached.
//
// The message bytes are never re-serialized: the signature covers exactly the
// bytes that follow the signature array in the input, and those bytes are
// copied unchanged into the output.
func SignTransaction(encoded string, wallet *Wallet) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}

	signed, err := signRawTransaction(raw, wallet)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(signed), nil
}

func signRawTransaction(raw []byte, wallet *Wallet) ([]byte, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}

	message, existing, err := splitSignatures(raw)
	if err != nil {
		return nil, err
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || required > len(tx.Message.AccountKeys) {
		return nil, fmt.Errorf("transaction header requires %d signatures", required)
	}

	signerIndex := -1
	for i := 0; i < required; i++ {
		if tx.Message.AccountKeys[i].Equals(wallet.PublicKey()) {
			signerIndex = i
			break
		}
	}
	if signerIndex < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSignerNotFound, wallet.PublicKey())
	}

	sig, err := wallet.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	signatures := make([]solana.Signature, required)
	copy(signatures, existing)
	signatures[signerIndex] = sig

	out := make([]byte, 0, 3+len(signatures)*solana.SignatureLength+len(message))
	if err := bin.EncodeCompactU16Length(&out, len(signatures)); err != nil {
		return nil, fmt.Errorf("failed to encode signature count: %w", err)
	}
	for _, s := range signatures {
		out = append(out, s[:]...)
	}
	out = append(out, message...)

	return out, nil
}

// splitSignatures separates the signature array from the serialized message.
func splitSignatures(raw []byte) ([]byte, []solana.Signature, error) {
	count, size, err := bin.DecodeCompactU16(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read signature count: %w", err)
	}

	offset := size + count*solana.SignatureLength
	if offset >= len(raw) {
		return nil, nil, fmt.Errorf("transaction truncated: %d signatures but %d bytes", count, len(raw))
	}

	signatures := make([]solana.Signature, count)
	for i := range signatures {
		copy(signatures[i][:], raw[size+i*solana.SignatureLength:])
	}

	return raw[offset:], signatures, nil
}
