package crypto

import "github.com/ethereum/go-ethereum/common"

// ChecksumAddress normalizes an address to its EIP-55 checksummed form.
// Persisted projections store addresses this way so lookups and responses
// are case-stable no matter how the client cased the submission.
func ChecksumAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}
