package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Relayer holds the hub's own signing key. The key is immutable after
// construction, so a single Relayer is safe for concurrent use across
// request goroutines.
type Relayer struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewRelayer parses a hex-encoded secp256k1 private key.
func NewRelayer(hexKey string) (*Relayer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse relayer key: %w", err)
	}
	return &Relayer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

// GenerateRelayer creates a relayer with a fresh random key. Used for dev
// mode and tests; production hubs load a configured key.
func GenerateRelayer() (*Relayer, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate relayer key: %w", err)
	}
	return &Relayer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

// Address returns the relayer's checksummed address.
func (r *Relayer) Address() string { return r.address }

// Sign produces a personal-message signature over msg, hex encoded with the
// recovery id in wire form (27/28) so it verifies under Verify.
func (r *Relayer) Sign(msg []byte) (string, error) {
	sig, err := ethcrypto.Sign(PersonalHash(msg), r.key)
	if err != nil {
		return "", fmt.Errorf("relayer sign: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}
