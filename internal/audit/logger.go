package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"matterguard/authcore/internal/audit/domain"
	auditstore "matterguard/authcore/internal/audit/store"
)

// SentinelOrgID is the org_id used for audit events that have no org
// (e.g. login_failure, logout with an invalid token).
const SentinelOrgID = "_system"

// Event actions recorded by the auth flows. The server interceptor
// derives further actions from RPC names via ParseFullMethod.
const (
	ActionSessionCreated      = "session_created"
	ActionSessionRevoked      = "session_revoked"
	ActionSessionsRevoked     = "sessions_revoked"
	ActionLogout              = "logout"
	ActionMFAEnrolled         = "mfa_enrolled"
	ActionMFACompleted        = "mfa_completed"
	ActionMFAFailed           = "mfa_failed"
	ActionBackupCodeUsed      = "backup_code_used"
	ActionRecoveryKeyUsed     = "recovery_key_used"
	ActionTokenRefreshed      = "token_refreshed"
	ActionTokenReuseDetected  = "token_reuse_detected"
	ActionFingerprintMismatch = "fingerprint_mismatch"
	ActionAccessDenied        = "access_denied"
)

// IPExtractor returns the client IP from the request context (e.g.
// gRPC metadata or peer).
type IPExtractor func(context.Context) string

// AuditLogger records a single audit event. LogEvent is best-effort:
// failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, e domain.Event)
}

// Logger implements AuditLogger over an event store and an optional IP
// extractor.
type Logger struct {
	store       auditstore.Store
	ipExtractor IPExtractor
}

// NewLogger returns an AuditLogger that persists to store and uses
// ipExtractor for the client IP when the event does not carry one.
// ipExtractor may be nil; then missing IPs are recorded as "unknown".
func NewLogger(store auditstore.Store, ipExtractor IPExtractor) *Logger {
	return &Logger{store: store, ipExtractor: ipExtractor}
}

// LogEvent writes one audit entry, filling ID, CreatedAt, IP, and the
// sentinel org id. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, e domain.Event) {
	if l.store == nil {
		return
	}
	if e.IP == "" {
		e.IP = "unknown"
		if l.ipExtractor != nil {
			if ip := l.ipExtractor(ctx); ip != "" {
				e.IP = ip
			}
		}
	}
	if e.OrgID == "" {
		e.OrgID = SentinelOrgID
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := l.store.Append(ctx, &e); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", e.Action, e.Resource, err)
	}
}
