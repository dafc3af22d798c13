package mfa

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"matterguard/authcore/internal/mfa/domain"
	"matterguard/authcore/internal/mfa/store"
	"matterguard/authcore/internal/security"
)

// TOTP parameters per RFC 6238, chosen for compatibility with common
// authenticator apps.
const (
	totpSecretSize = 20 // 160 bits
	totpPeriod     = 30
	totpSkew       = 1 // accept codes one period either side
)

var (
	ErrAlreadyEnrolled     = errors.New("mfa: already enrolled")
	ErrNotEnrolled         = errors.New("mfa: not enrolled")
	ErrNoPendingEnrollment = errors.New("mfa: no pending enrollment")
	ErrInvalidCode         = errors.New("mfa: invalid code")
)

// EnrollmentResult carries the secrets returned exactly once at enrollment.
// None of these values are recoverable afterwards.
type EnrollmentResult struct {
	Secret      string // Base32 TOTP secret
	OTPAuthURL  string // otpauth:// provisioning URI for authenticator apps
	BackupCodes []string
	RecoveryKey string
}

// BackupCodeResult reports a backup-code verification.
type BackupCodeResult struct {
	Valid         bool
	ConsumedIndex int // index of the consumed code, -1 when invalid
	Remaining     int
}

// Engine drives the enrollment state machine: unenrolled -> pending ->
// active -> disabled. A pending record is replaced by a new enrollment
// attempt; only one active enrollment exists per user.
type Engine struct {
	store       store.Store
	box         *security.SecretBox
	recovery    *security.Hasher
	issuer      string
	backupCount int
	nowF        func() time.Time
}

// NewEngine builds an Engine. box seals TOTP secrets at rest, recovery
// hashes recovery keys, issuer labels provisioning URIs.
func NewEngine(st store.Store, box *security.SecretBox, recovery *security.Hasher, issuer string) *Engine {
	return &Engine{
		store:       st,
		box:         box,
		recovery:    recovery,
		issuer:      issuer,
		backupCount: DefaultBackupCodeCount,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// Enroll creates a pending enrollment and returns the one-time secrets.
// An existing pending record is replaced; an active one is an error and
// the caller must disable it first.
func (e *Engine) Enroll(ctx context.Context, userID, orgID, label string) (*EnrollmentResult, error) {
	existing, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing.Active() {
		return nil, ErrAlreadyEnrolled
	}
	if label == "" {
		label = userID
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: label,
		SecretSize:  totpSecretSize,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	sealed, err := e.box.Seal([]byte(key.Secret()))
	if err != nil {
		return nil, fmt.Errorf("seal totp secret: %w", err)
	}

	codes, err := GenerateBackupCodes(e.backupCount)
	if err != nil {
		return nil, err
	}
	salt, err := NewBackupCodeSalt()
	if err != nil {
		return nil, err
	}
	hashes, err := hashCodes(codes, salt)
	if err != nil {
		return nil, err
	}

	recoveryKey, err := GenerateRecoveryKey()
	if err != nil {
		return nil, err
	}
	recoveryHash, err := e.recovery.Hash([]byte(NormalizeCode(recoveryKey)))
	if err != nil {
		return nil, fmt.Errorf("hash recovery key: %w", err)
	}

	rec := &domain.Enrollment{
		UserID:           userID,
		OrgID:            orgID,
		Label:            label,
		SecretSealed:     sealed,
		BackupCodeSalt:   salt,
		BackupCodeHashes: hashes,
		RecoveryKeyHash:  recoveryHash,
		State:            domain.StatePending,
		CreatedAt:        e.nowF(),
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return &EnrollmentResult{
		Secret:      key.Secret(),
		OTPAuthURL:  key.URL(),
		BackupCodes: codes,
		RecoveryKey: recoveryKey,
	}, nil
}

// VerifyEnrollment validates code against the pending secret and promotes
// the record to active.
func (e *Engine) VerifyEnrollment(ctx context.Context, userID, code string) error {
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !rec.Pending() {
		return ErrNoPendingEnrollment
	}
	secret, err := e.box.Open(rec.SecretSealed)
	if err != nil {
		return fmt.Errorf("open totp secret for %s: %w", userID, err)
	}
	if !e.validTOTP(string(secret), code) {
		return ErrInvalidCode
	}
	now := e.nowF()
	rec.State = domain.StateActive
	rec.VerifiedAt = &now
	return e.store.Save(ctx, rec)
}

// VerifyCode checks code against the active secret and records use.
// A code is not consumed within its validity window; replay protection
// is the caller's concern.
func (e *Engine) VerifyCode(ctx context.Context, userID, code string) (bool, error) {
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if !rec.Active() {
		return false, ErrNotEnrolled
	}
	secret, err := e.box.Open(rec.SecretSealed)
	if err != nil {
		return false, fmt.Errorf("open totp secret for %s: %w", userID, err)
	}
	if !e.validTOTP(string(secret), code) {
		return false, nil
	}
	now := e.nowF()
	rec.LastUsedAt = &now
	if err := e.store.Save(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// VerifyBackupCode checks code against the stored hashes and consumes the
// matching entry so it can never be used again. The comparison visits
// every stored hash regardless of where a match lands.
func (e *Engine) VerifyBackupCode(ctx context.Context, userID, code string) (*BackupCodeResult, error) {
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !rec.Active() {
		return nil, ErrNotEnrolled
	}
	salt, err := hex.DecodeString(rec.BackupCodeSalt)
	if err != nil {
		return nil, fmt.Errorf("decode backup code salt for %s: %w", userID, err)
	}

	matched := -1
	for i, stored := range rec.BackupCodeHashes {
		if BackupCodeEqual(code, salt, stored) && matched < 0 {
			matched = i
		}
	}
	if matched < 0 {
		return &BackupCodeResult{Valid: false, ConsumedIndex: -1, Remaining: len(rec.BackupCodeHashes)}, nil
	}

	rec.BackupCodeHashes = append(rec.BackupCodeHashes[:matched], rec.BackupCodeHashes[matched+1:]...)
	now := e.nowF()
	rec.LastUsedAt = &now
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	log.Printf("warn: backup code consumed for user %s, %d remaining", userID, len(rec.BackupCodeHashes))
	return &BackupCodeResult{Valid: true, ConsumedIndex: matched, Remaining: len(rec.BackupCodeHashes)}, nil
}

// RegenerateBackupCodes replaces the remaining codes with a fresh set
// under a fresh salt and returns the raw codes once.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !rec.Active() {
		return nil, ErrNotEnrolled
	}
	codes, err := GenerateBackupCodes(e.backupCount)
	if err != nil {
		return nil, err
	}
	salt, err := NewBackupCodeSalt()
	if err != nil {
		return nil, err
	}
	hashes, err := hashCodes(codes, salt)
	if err != nil {
		return nil, err
	}
	rec.BackupCodeSalt = salt
	rec.BackupCodeHashes = hashes
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return codes, nil
}

// VerifyRecoveryKey checks the recovery key. It works in any enrolled
// state, including disabled, since recovery is for when every other factor
// is gone.
func (e *Engine) VerifyRecoveryKey(ctx context.Context, userID, key string) (bool, error) {
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.RecoveryKeyHash == "" {
		return false, ErrNotEnrolled
	}
	if err := e.recovery.Compare(rec.RecoveryKeyHash, []byte(NormalizeCode(key))); err != nil {
		return false, nil
	}
	return true, nil
}

// Disable deactivates the enrollment without wiping it, so disablement
// stays reviewable. Idempotent on an already-disabled record.
func (e *Engine) Disable(ctx context.Context, userID string) error {
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotEnrolled
	}
	if rec.State == domain.StateDisabled {
		return nil
	}
	now := e.nowF()
	rec.State = domain.StateDisabled
	rec.DisabledAt = &now
	return e.store.Save(ctx, rec)
}

// Status reports the user's enrollment state; StateUnenrolled when no
// record exists.
func (e *Engine) Status(ctx context.Context, userID string) (domain.State, error) {
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return domain.StateUnenrolled, nil
	}
	return rec.State, nil
}

func (e *Engine) validTOTP(secret, code string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, e.nowF(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}

func hashCodes(codes []string, saltHex string) ([]string, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = HashBackupCode(c, salt)
	}
	return hashes, nil
}
