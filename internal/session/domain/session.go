package domain

import "time"

// Privilege is the privilege level captured when the session was created.
type Privilege string

const (
	PrivilegeStandard Privilege = "standard"
	PrivilegeElevated Privilege = "elevated"
)

// Invalidation reasons recorded when a session is marked inactive.
const (
	ReasonLogout              = "logout"
	ReasonIdleTimeout         = "idle_timeout"
	ReasonAbsoluteTimeout     = "absolute_timeout"
	ReasonRevoked             = "revoked"
	ReasonFingerprintMismatch = "fingerprint_mismatch"
	ReasonTokenReuse          = "token_reuse"
	ReasonRegenerated         = "regenerated"
)

// Session represents one authenticated client binding.
type Session struct {
	ID             string // SHA-256 hash of the raw client identifier; the raw value is never stored
	UserID         string
	OrgID          string
	Fingerprint    string // keyed hash of client IP joined with keyed hash of normalized user-agent
	MFAVerified    bool
	Privilege      Privilege
	Active         bool
	Reason         string     // invalidation reason; empty while active
	InvalidatedAt  *time.Time // nil while active
	CreatedAt      time.Time
	LastActivityAt time.Time
	IPAddress      string
	UserAgent      string // normalized form, kept for session listings
	Metadata       map[string]string
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing the stored session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.InvalidatedAt != nil {
		at := *s.InvalidatedAt
		cp.InvalidatedAt = &at
	}
	if s.Metadata != nil {
		cp.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
