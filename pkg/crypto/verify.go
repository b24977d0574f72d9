package crypto

import (
	"encoding/hex"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Verify recovers the signer of msg from a 65-byte hex signature over the
// personal-message hash and compares it case-insensitively to
// claimedAddress. Malformed input yields false, never a panic or an error:
// the caller only needs a trust decision.
func Verify(claimedAddress, signature string, msg []byte) bool {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != ethcrypto.SignatureLength {
		return false
	}

	// Wire signatures carry the recovery id as 27/28; secp256k1 recovery
	// wants 0/1.
	recovery := make([]byte, ethcrypto.SignatureLength)
	copy(recovery, sig)
	if recovery[64] >= 27 {
		recovery[64] -= 27
	}
	if recovery[64] > 1 {
		return false
	}

	pub, err := ethcrypto.SigToPub(PersonalHash(msg), recovery)
	if err != nil {
		return false
	}
	recovered := ethcrypto.PubkeyToAddress(*pub).Hex()
	return strings.EqualFold(recovered, claimedAddress)
}
