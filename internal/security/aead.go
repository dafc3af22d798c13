package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
	// SaltSize is the KDF salt length in bytes.
	SaltSize = 32
	// KDFIterations is the PBKDF2-SHA-256 iteration count used to stretch
	// the server secret into an encryption key.
	KDFIterations = 600_000
)

// ErrDecryptFailed is returned for any decryption failure: malformed input,
// truncated segments, or authentication tag mismatch. Callers get no detail
// about which check failed.
var ErrDecryptFailed = errors.New("security: decryption failed")

// DeriveKey stretches a server secret into an AES-256 key with
// PBKDF2-SHA-256. Derivation is deliberately slow; do it once at startup,
// not per operation.
func DeriveKey(secret, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = KDFIterations
	}
	return pbkdf2.Key(secret, salt, iterations, KeySize, sha256.New)
}

// SecretBox encrypts small secrets at rest with AES-256-GCM. Sealed values
// are self-contained strings of the form nonce:ciphertext:tag, each segment
// base64url without padding. A fresh nonce is drawn per Seal call.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox builds a SecretBox from an already-derived 32-byte key.
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != KeySize {
		return nil, errors.New("security: key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &SecretBox{aead: aead}, nil
}

// NewSecretBoxFromSecret derives the key from a server secret and salt, then
// builds the SecretBox.
func NewSecretBoxFromSecret(secret, salt []byte, iterations int) (*SecretBox, error) {
	return NewSecretBox(DeriveKey(secret, salt, iterations))
}

// Seal encrypts plaintext and returns the delimited blob.
func (s *SecretBox) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nil, nonce, plaintext, nil)
	if len(sealed) < TagSize {
		return "", errors.New("security: sealed output too short")
	}
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	enc := base64.RawURLEncoding
	return enc.EncodeToString(nonce) + ":" + enc.EncodeToString(ciphertext) + ":" + enc.EncodeToString(tag), nil
}

// Open decrypts a blob produced by Seal. Any failure, structural or
// cryptographic, yields ErrDecryptFailed.
func (s *SecretBox) Open(blob string) ([]byte, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return nil, ErrDecryptFailed
	}
	enc := base64.RawURLEncoding
	nonce, err := enc.DecodeString(parts[0])
	if err != nil || len(nonce) != NonceSize {
		return nil, ErrDecryptFailed
	}
	ciphertext, err := enc.DecodeString(parts[1])
	if err != nil {
		return nil, ErrDecryptFailed
	}
	tag, err := enc.DecodeString(parts[2])
	if err != nil || len(tag) != TagSize {
		return nil, ErrDecryptFailed
	}
	plaintext, err := s.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
