// Package mfa implements the TOTP enrollment lifecycle, backup codes, and
// the recovery key. TOTP secrets are sealed with authenticated encryption
// before storage; codes and keys are stored only as hashes.
package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"matterguard/authcore/internal/security"
)

// codeAlphabet is the 32-symbol set used for backup codes and the recovery
// key. 0/O and 1/I are excluded so codes survive being read aloud or
// transcribed.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	// DefaultBackupCodeCount is how many backup codes an enrollment gets.
	DefaultBackupCodeCount = 10
	backupCodeBytes        = 8  // two 4-char groups
	recoveryKeyBytes       = 32 // eight 4-char groups
	codeGroupLen           = 4
)

// renderCode maps raw bytes onto the code alphabet and joins fixed-width
// groups with dashes.
func renderCode(raw []byte) string {
	var b strings.Builder
	for i, c := range raw {
		if i > 0 && i%codeGroupLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
	}
	return b.String()
}

// GenerateBackupCodes returns count fresh backup codes, each two 4-char
// groups ("XXXX-XXXX"). The raw codes are shown to the user once; only
// their hashes are stored.
func GenerateBackupCodes(count int) ([]string, error) {
	if count <= 0 {
		count = DefaultBackupCodeCount
	}
	codes := make([]string, count)
	for i := range codes {
		raw := make([]byte, backupCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		codes[i] = renderCode(raw)
	}
	return codes, nil
}

// GenerateRecoveryKey returns a recovery key rendered from 32 bytes of
// CSPRNG output as eight 4-char groups.
func GenerateRecoveryKey() (string, error) {
	raw := make([]byte, recoveryKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return renderCode(raw), nil
}

// NormalizeCode strips separators and whitespace and uppercases, so user
// input matches regardless of how the dashes were typed.
func NormalizeCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HashBackupCode hashes a normalized backup code under a per-user salt.
func HashBackupCode(code string, salt []byte) string {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(NormalizeCode(code)))
	return hex.EncodeToString(h.Sum(nil))
}

// BackupCodeEqual compares a presented code against a stored hash in
// constant time.
func BackupCodeEqual(code string, salt []byte, storedHash string) bool {
	return security.HashEqual(HashBackupCode(code, salt), storedHash)
}

// NewBackupCodeSalt returns a fresh per-user salt, hex-encoded for storage.
func NewBackupCodeSalt() (string, error) {
	raw, err := security.RandomBytes(16)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
