package domain

import "time"

// State is the lifecycle state of an enrollment. A pending record is
// replaced, not accumulated, by a new enrollment attempt; only one active
// enrollment exists per user.
type State string

const (
	StateUnenrolled State = "unenrolled"
	StatePending    State = "pending"
	StateActive     State = "active"
	StateDisabled   State = "disabled"
)

// Enrollment is one user's MFA record. The TOTP secret is stored only as
// an authenticated-encryption blob; backup codes and the recovery key are
// stored only as hashes.
type Enrollment struct {
	UserID           string
	OrgID            string
	Label            string // account label shown in the authenticator app
	SecretSealed     string // AES-GCM blob wrapping the Base32 TOTP secret
	BackupCodeSalt   string // hex, per-user salt for backup-code hashing
	BackupCodeHashes []string
	RecoveryKeyHash  string // bcrypt
	State            State
	CreatedAt        time.Time
	VerifiedAt       *time.Time
	LastUsedAt       *time.Time
	DisabledAt       *time.Time
}

// Active reports whether the enrollment is verified and usable.
func (e *Enrollment) Active() bool { return e != nil && e.State == StateActive }

// Pending reports whether the enrollment awaits its first verification.
func (e *Enrollment) Pending() bool { return e != nil && e.State == StatePending }

// Clone returns a deep copy.
func (e *Enrollment) Clone() *Enrollment {
	if e == nil {
		return nil
	}
	cp := *e
	cp.BackupCodeHashes = append([]string(nil), e.BackupCodeHashes...)
	cp.VerifiedAt = cloneTime(e.VerifiedAt)
	cp.LastUsedAt = cloneTime(e.LastUsedAt)
	cp.DisabledAt = cloneTime(e.DisabledAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	at := *t
	return &at
}
