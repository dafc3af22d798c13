// Package security provides the crypto primitives shared by the session,
// token, and MFA components: CSPRNG identifiers, storage hashing with
// constant-time comparison, keyed hashing, and authenticated encryption
// for secrets at rest.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// SessionTokenBytes is the entropy of a raw session identifier (256 bits).
const SessionTokenBytes = 32

// NewToken returns n bytes of CSPRNG output encoded as unpadded base64url.
func NewToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSessionToken returns a raw session identifier with SessionTokenBytes of entropy.
// The raw value is handed to the client once; only its hash is ever stored.
func NewSessionToken() (string, error) {
	return NewToken(SessionTokenBytes)
}

// NewJTI returns a 128-bit random token id, hex-encoded.
func NewJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomBytes returns n bytes of CSPRNG output.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
