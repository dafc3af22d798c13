package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashIdentifier returns the hex-encoded SHA-256 digest of a raw secret
// identifier (session token, refresh token). Stores never see the raw value;
// lookups and comparisons go through the digest.
func HashIdentifier(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// IdentifierHashEqual reports whether the raw identifier matches the stored
// digest. The comparison is constant-time to keep equality checks from
// leaking prefix information.
func IdentifierHashEqual(raw, storedHash string) bool {
	computed := HashIdentifier(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// HashEqual compares two hex digests in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// KeyedHasher produces deterministic HMAC-SHA-256 digests under a fixed
// server key. Unlike the unkeyed HashIdentifier it is safe for values with
// low entropy, such as normalized fingerprint material.
type KeyedHasher struct {
	key []byte
}

// NewKeyedHasher builds a KeyedHasher over key. The key is copied.
func NewKeyedHasher(key []byte) *KeyedHasher {
	k := make([]byte, len(key))
	copy(k, key)
	return &KeyedHasher{key: k}
}

// Hash returns the hex-encoded HMAC-SHA-256 of value.
func (h *KeyedHasher) Hash(value string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether value hashes to storedHash under the hasher's key.
func (h *KeyedHasher) Verify(value, storedHash string) bool {
	return HashEqual(h.Hash(value), storedHash)
}
