// Package nonce produces single-use random values and their digests for
// binding an authorization response to the request that asked for it.
package nonce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DefaultLength is the nonce length used by the Apple flow.
const DefaultLength = 32

// Charset is the RFC 3986 unreserved set, so a nonce never needs escaping.
const Charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-._~"

// Generate returns length characters drawn from Charset using crypto/rand.
// The byte-to-character mapping is modulo based and carries a small bias.
//
// It panics if length < 1 or if the system random source fails: a
// predictable nonce would defeat replay protection, so there is nothing
// sensible to fall back to.
func Generate(length int) string {
	if length < 1 {
		panic(fmt.Sprintf("nonce: invalid length %d", length))
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("nonce: unable to read random bytes: %v", err))
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = Charset[int(b)%len(Charset)]
	}
	return string(out)
}

// Hash returns the lowercase hex SHA-256 digest of input.
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
