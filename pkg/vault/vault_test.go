package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f"

func TestEncryptDecrypt_RoundTrips(t *testing.T) {
	v, err := New(testKeyHex)
	require.NoError(t, err)

	wire, err := v.Encrypt("sk-super-secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wire, encPrefix))

	plaintext, err := v.Decrypt(wire)
	require.NoError(t, err)
	assert.Equal(t, "sk-super-secret", plaintext)
}

func TestEncrypt_ProducesDistinctCiphertextEachCall(t *testing.T) {
	v, err := New(testKeyHex)
	require.NoError(t, err)

	a, err := v.Encrypt("same-secret")
	require.NoError(t, err)
	b, err := v.Encrypt("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "random nonce per call must prevent identical ciphertext for identical plaintext")
}

func TestNew_RejectsWrongKeyLength(t *testing.T) {
	_, err := New("deadbeef")
	require.Error(t, err)
}

func TestNew_RejectsInvalidHex(t *testing.T) {
	_, err := New("not-hex-at-all-zzzz")
	require.Error(t, err)
}

func TestNoKeyConfigured_FallsBackToPlaintext(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)

	wire, err := v.Encrypt("secret")
	require.NoError(t, err)
	assert.Equal(t, "plain:secret", wire)

	plaintext, err := v.Decrypt(wire)
	require.NoError(t, err)
	assert.Equal(t, "secret", plaintext)
}

func TestDecrypt_EncryptedValueWithoutKeyIsMisconfigured(t *testing.T) {
	keyed, err := New(testKeyHex)
	require.NoError(t, err)
	wire, err := keyed.Encrypt("secret")
	require.NoError(t, err)

	unkeyed, err := New("")
	require.NoError(t, err)
	_, err = unkeyed.Decrypt(wire)
	require.Error(t, err)
}

func TestDecrypt_RejectsUnrecognizedFormat(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)
	_, err = v.Decrypt("garbage-no-prefix")
	require.Error(t, err)
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	v, err := New(testKeyHex)
	require.NoError(t, err)
	wire, err := v.Encrypt("secret")
	require.NoError(t, err)

	tampered := wire[:len(wire)-4] + "AAAA"
	_, err = v.Decrypt(tampered)
	require.Error(t, err, "GCM must reject a tampered authentication tag")
}
