// Package crypto verifies client signatures over signed governance messages
// and holds the relayer identity that countersigns accepted submissions.
//
// Signatures follow the prefixed personal-message scheme: the signed digest
// is keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
package crypto

import (
	"strconv"

	"golang.org/x/crypto/sha3"
)

const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// PersonalHash returns the prefixed personal-message digest of msg.
func PersonalHash(msg []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(personalMessagePrefix))
	h.Write([]byte(strconv.Itoa(len(msg))))
	h.Write(msg)
	return h.Sum(nil)
}
