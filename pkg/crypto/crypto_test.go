package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known throwaway dev key, account 0 of the default ganache mnemonic.
const (
	devKey     = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"
	devAddress = "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"
)

func TestPersonalHashLength(t *testing.T) {
	assert.Len(t, PersonalHash([]byte("hello")), 32)
	assert.Len(t, PersonalHash(nil), 32)
	assert.NotEqual(t, PersonalHash([]byte("a")), PersonalHash([]byte("b")))
}

func TestRelayerAddress(t *testing.T) {
	r, err := NewRelayer(devKey)
	require.NoError(t, err)
	assert.Equal(t, devAddress, r.Address())

	// A 0x prefix on the key is accepted too.
	r2, err := NewRelayer("0x" + devKey)
	require.NoError(t, err)
	assert.Equal(t, devAddress, r2.Address())
}

func TestNewRelayerRejectsBadKey(t *testing.T) {
	_, err := NewRelayer("not a key")
	assert.Error(t, err)
	_, err = NewRelayer("abcd")
	assert.Error(t, err)
}

func TestSignThenVerify(t *testing.T) {
	r, err := NewRelayer(devKey)
	require.NoError(t, err)

	msg := []byte(`{"version":"0.1.3","timestamp":"1700000000"}`)
	sig, err := r.Sign(msg)
	require.NoError(t, err)

	assert.True(t, Verify(r.Address(), sig, msg))

	// The address comparison is case-insensitive.
	assert.True(t, Verify("0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1", sig, msg))

	// Any change to the signed bytes breaks verification.
	assert.False(t, Verify(r.Address(), sig, append(msg, ' ')))

	// A different claimed address does not verify.
	other, err := GenerateRelayer()
	require.NoError(t, err)
	assert.False(t, Verify(other.Address(), sig, msg))
}

func TestVerifyMalformedSignature(t *testing.T) {
	msg := []byte("hello")
	assert.False(t, Verify(devAddress, "", msg))
	assert.False(t, Verify(devAddress, "0x1234", msg))
	assert.False(t, Verify(devAddress, "zz", msg))
	assert.False(t, Verify(devAddress, "0x"+hex.EncodeToString(make([]byte, 64)), msg))

	// 65 zero bytes is the right length but not a recoverable signature.
	assert.False(t, Verify(devAddress, "0x"+hex.EncodeToString(make([]byte, 65)), msg))
}

func TestVerifyRejectsBadRecoveryID(t *testing.T) {
	r, err := NewRelayer(devKey)
	require.NoError(t, err)
	msg := []byte("hello")
	sig, err := r.Sign(msg)
	require.NoError(t, err)

	raw, err := hex.DecodeString(sig[2:])
	require.NoError(t, err)
	raw[64] = 99
	assert.False(t, Verify(r.Address(), "0x"+hex.EncodeToString(raw), msg))
}

func TestSignVerifyProperty(t *testing.T) {
	r, err := GenerateRelayer()
	require.NoError(t, err)

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("any signed message verifies under the signer's address", prop.ForAll(
		func(msg []byte) bool {
			sig, err := r.Sign(msg)
			if err != nil {
				return false
			}
			return Verify(r.Address(), sig, msg)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("a flipped byte never verifies", prop.ForAll(
		func(msg []byte, at uint8) bool {
			if len(msg) == 0 {
				return true
			}
			sig, err := r.Sign(msg)
			if err != nil {
				return false
			}
			tampered := append([]byte(nil), msg...)
			tampered[int(at)%len(tampered)] ^= 0xff
			return !Verify(r.Address(), sig, tampered)
		},
		gen.SliceOf(gen.UInt8()),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

func TestChecksumAddress(t *testing.T) {
	assert.Equal(t, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		ChecksumAddress("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"))
	assert.Equal(t, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		ChecksumAddress("0xFB6916095CA1DF60BB79CE92CE3EA74C37C5D359"))
}
