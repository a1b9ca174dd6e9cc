package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignDeterministic(t *testing.T) {
	message := []byte("lic_12345" + "1234567890")
	secret := []byte("my_secret_key")

	sig1 := Sign(message, secret)
	sig2 := Sign(message, secret)

	assert.Equal(t, sig1, sig2, "same input must produce the same signature")
	assert.Len(t, sig1, 64, "HMAC-SHA256 hex digest is 64 characters")
	for _, c := range sig1 {
		assert.Contains(t, "0123456789abcdef", string(c))
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		message string
		secret  string
	}{
		{"typical request", "lic_12345" + "1700000000", "shared-secret"},
		{"empty message", "", "shared-secret"},
		{"empty secret accepted", "lic_12345", ""},
		{"binary-ish secret", "data", "\x00\x01\x02\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Sign([]byte(tt.message), []byte(tt.secret))
			assert.True(t, Verify([]byte(tt.message), []byte(tt.secret), sig))
		})
	}
}

func TestVerifyRejectsMutations(t *testing.T) {
	message := []byte("lic_test-payload")
	secret := []byte("test_secret")
	sig := Sign(message, secret)

	// Any single-byte mutation of the signature must fail verification.
	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		mutated[i] ^= 0x01
		require.False(t, Verify(message, secret, string(mutated)),
			"mutation at byte %d should be rejected", i)
	}

	assert.False(t, Verify(message, []byte("wrong_secret"), sig))
	assert.False(t, Verify([]byte("wrong_data"), secret, sig))
	assert.False(t, Verify(message, secret, sig+"00"), "length change rejected")
	assert.False(t, Verify(message, secret, ""))
}
