package session

import (
	"errors"
	"net/http"
	"time"

	"matterguard/authcore/internal/security"
	"matterguard/authcore/internal/session/domain"
)

// Default timeouts applied when the Manager is constructed with zero values.
const (
	DefaultIdleTimeout     = 15 * time.Minute
	DefaultAbsoluteTimeout = 8 * time.Hour
)

// CookieName is the recommended cookie for carrying the raw session
// identifier.
const CookieName = "mg_session"

// Validation failures. Exactly one is returned per Validate call; checks
// run most-specific first so callers can act on the reason.
var (
	ErrNotFound            = errors.New("session: not found")
	ErrInvalidated         = errors.New("session: invalidated")
	ErrExpiredAbsolute     = errors.New("session: absolute lifetime exceeded")
	ErrExpiredIdle         = errors.New("session: idle timeout exceeded")
	ErrFingerprintMismatch = errors.New("session: fingerprint mismatch")
	ErrMFARequired         = errors.New("session: mfa required")
)

// Remaining reports time left before the session hits each timeout,
// clamped at zero. Used for UI countdown display.
type Remaining struct {
	Idle     time.Duration
	Absolute time.Duration
}

// Manager creates and evaluates sessions. It performs no I/O; callers load
// and persist sessions through a store.
type Manager struct {
	idleTimeout     time.Duration
	absoluteTimeout time.Duration
	fp              *Fingerprinter
	nowF            func() time.Time
}

// NewManager builds a Manager. Zero timeouts fall back to the defaults
// (15m idle, 8h absolute).
func NewManager(fp *Fingerprinter, idleTimeout, absoluteTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if absoluteTimeout <= 0 {
		absoluteTimeout = DefaultAbsoluteTimeout
	}
	return &Manager{
		idleTimeout:     idleTimeout,
		absoluteTimeout: absoluteTimeout,
		fp:              fp,
		nowF:            func() time.Time { return time.Now().UTC() },
	}
}

// Create builds a new session for the user and returns it together with the
// raw identifier. The raw value is handed out exactly once; the session
// stores only its hash.
func (m *Manager) Create(userID, orgID, ip, userAgent string, privilege domain.Privilege, metadata map[string]string) (*domain.Session, string, error) {
	rawID, err := security.NewSessionToken()
	if err != nil {
		return nil, "", err
	}
	now := m.nowF()
	if privilege == "" {
		privilege = domain.PrivilegeStandard
	}
	s := &domain.Session{
		ID:             security.HashIdentifier(rawID),
		UserID:         userID,
		OrgID:          orgID,
		Fingerprint:    m.fp.Fingerprint(ip, userAgent),
		MFAVerified:    false,
		Privilege:      privilege,
		Active:         true,
		CreatedAt:      now,
		LastActivityAt: now,
		IPAddress:      ip,
		UserAgent:      NormalizeUserAgent(userAgent),
		Metadata:       metadata,
	}
	return s, rawID, nil
}

// Validate fails closed with the most specific error: ErrNotFound for a nil
// session, then ErrInvalidated, ErrExpiredAbsolute, ErrExpiredIdle,
// ErrFingerprintMismatch, and ErrMFARequired when the caller demands MFA
// that the session has not completed. A fingerprint mismatch is a security
// event; callers must log it, never silently retry.
func (m *Manager) Validate(s *domain.Session, ip, userAgent string, requireMFA bool) error {
	if s == nil {
		return ErrNotFound
	}
	if !s.Active {
		return ErrInvalidated
	}
	now := m.nowF()
	if now.Sub(s.CreatedAt) > m.absoluteTimeout {
		return ErrExpiredAbsolute
	}
	if now.Sub(s.LastActivityAt) > m.idleTimeout {
		return ErrExpiredIdle
	}
	if !m.fp.Matches(s.Fingerprint, ip, userAgent) {
		return ErrFingerprintMismatch
	}
	if requireMFA && !s.MFAVerified {
		return ErrMFARequired
	}
	return nil
}

// Touch records activity. It moves the idle window; the absolute window is
// anchored to CreatedAt and never extends.
func (m *Manager) Touch(s *domain.Session) {
	s.LastActivityAt = m.nowF()
}

// Regenerate rotates the session identifier, returning the replacement
// session and its raw identifier. Issued after MFA completion or privilege
// escalation to defeat session fixation. With preserveCreatedAt the
// absolute-timeout anchor carries over; otherwise the clock restarts.
func (m *Manager) Regenerate(s *domain.Session, preserveCreatedAt bool) (*domain.Session, string, error) {
	rawID, err := security.NewSessionToken()
	if err != nil {
		return nil, "", err
	}
	now := m.nowF()
	next := s.Clone()
	next.ID = security.HashIdentifier(rawID)
	next.Active = true
	next.Reason = ""
	next.InvalidatedAt = nil
	next.LastActivityAt = now
	if !preserveCreatedAt {
		next.CreatedAt = now
	}
	return next, rawID, nil
}

// Invalidate marks the session inactive with the given reason. Idempotent:
// an already-inactive session keeps its original reason and timestamp.
func (m *Manager) Invalidate(s *domain.Session, reason string) {
	if !s.Active {
		return
	}
	now := m.nowF()
	s.Active = false
	s.Reason = reason
	s.InvalidatedAt = &now
}

// RemainingTime reports how long the session has before each timeout
// triggers, clamped at zero.
func (m *Manager) RemainingTime(s *domain.Session) Remaining {
	now := m.nowF()
	idle := m.idleTimeout - now.Sub(s.LastActivityAt)
	if idle < 0 {
		idle = 0
	}
	absolute := m.absoluteTimeout - now.Sub(s.CreatedAt)
	if absolute < 0 {
		absolute = 0
	}
	return Remaining{Idle: idle, Absolute: absolute}
}

// CookieAttributes returns the recommended cookie settings for the raw
// session identifier: http-only, secure, same-site strict, max-age bound to
// the absolute timeout.
func (m *Manager) CookieAttributes(rawID string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    rawID,
		Path:     "/",
		MaxAge:   int(m.absoluteTimeout / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// IdleTimeout returns the configured idle timeout.
func (m *Manager) IdleTimeout() time.Duration { return m.idleTimeout }

// AbsoluteTimeout returns the configured absolute timeout.
func (m *Manager) AbsoluteTimeout() time.Duration { return m.absoluteTimeout }
