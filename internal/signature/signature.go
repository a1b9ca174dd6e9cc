// Package signature implements keyed message authentication for
// verification requests. Signatures are hex-encoded HMAC-SHA256 digests,
// which gives deterministic output, resistance to length extension, and
// acceptance of any-length keys.
//
// The layer is deliberately permissive: an empty secret produces a valid
// (if worthless) signature rather than an error. Callers own the policy
// that secrets must be non-empty.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the hex-encoded HMAC-SHA256 of message under secret.
func Sign(message, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC of message under secret.
// The expected signature is recomputed and compared byte-for-byte in
// constant time regardless of where a mismatch occurs, so the comparison
// leaks no timing information about the signature content.
func Verify(message, secret []byte, signature string) bool {
	expected := Sign(message, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
