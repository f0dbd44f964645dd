package cryptovault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("super-secret-client-secret")
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)
	assert.False(t, strings.Contains(ciphertext, "super-secret"))

	plaintext, err := v.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-client-secret", plaintext)
}

func TestNew_RejectsBadKeyLength(t *testing.T) {
	_, err := New("too-short")
	assert.ErrorIs(t, err, ErrKeyInvalid)
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("hello")
	require.NoError(t, err)

	tampered := []byte(ciphertext)
	tampered[len(tampered)-1] ^= 0xFF
	_, err = v.Decrypt(string(tampered))
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecrypt_RejectsMalformedInput(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	_, err = v.Decrypt("not-base64!!!")
	assert.ErrorIs(t, err, ErrDecryptFailed)
}
