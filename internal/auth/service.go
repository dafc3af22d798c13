// Package auth orchestrates the session, token, MFA, and policy
// components into the flows the transport layer calls: beginning a
// session after credential checks, completing MFA, rotating refresh
// tokens, authorizing requests, and revoking sessions. It owns the
// cross-component bookkeeping those flows need: persisting sessions,
// recording rotations, auditing, and emitting security events.
package auth

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"matterguard/authcore/internal/audit"
	auditdomain "matterguard/authcore/internal/audit/domain"
	"matterguard/authcore/internal/mfa"
	mfadomain "matterguard/authcore/internal/mfa/domain"
	"matterguard/authcore/internal/policy"
	"matterguard/authcore/internal/security"
	"matterguard/authcore/internal/session"
	sessiondomain "matterguard/authcore/internal/session/domain"
	sessionstore "matterguard/authcore/internal/session/store"
	"matterguard/authcore/internal/telemetry"
	telemetrydomain "matterguard/authcore/internal/telemetry/domain"
	"matterguard/authcore/internal/token"
	tokenstore "matterguard/authcore/internal/token/store"
)

// Sentinel errors for the auth service; the transport handler maps each
// to a status code and one generic client-facing message, so a caller
// cannot tell which check rejected the request. Internal logs and the
// audit trail keep the specific cause.
var (
	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
	ErrPermissionDenied    = errors.New("auth: permission denied")
	ErrInvalidRefreshToken = errors.New("auth: invalid or expired refresh token")
	ErrRefreshTokenReuse   = errors.New("auth: refresh token reuse detected")
	ErrInvalidMFACode      = errors.New("auth: invalid mfa code")
	ErrMFANotRequired      = errors.New("auth: mfa already satisfied")
)

// eventSource labels security events emitted by this service.
const eventSource = "authcore"

// rolesMetadataKey stores the subject's roles on the session so
// CompleteMFA can mint claims without a second directory lookup.
const rolesMetadataKey = "roles"

// BeginResult is the outcome of BeginSession and CompleteMFA.
// SessionToken is the raw session identifier, handed out exactly once;
// only its hash is stored. Tokens is nil while MFA completion is still
// outstanding.
type BeginResult struct {
	SessionToken string
	Session      *sessiondomain.Session
	MFARequired  bool
	Tokens       *token.Pair
}

// RefreshResult is the outcome of a refresh-token exchange. SessionID
// carries the hashed session identifier, as in token claims.
type RefreshResult struct {
	Tokens    *token.Pair
	UserID    string
	OrgID     string
	SessionID string
}

// Service wires the evaluators to their stores and to the audit and
// telemetry sinks. Safe for concurrent use.
type Service struct {
	sessions     *session.Manager
	sessionStore sessionstore.Store
	tokens       *token.Service
	tokenStore   tokenstore.Store
	mfa          *mfa.Engine
	policies     *policy.Engine
	audit        audit.AuditLogger
	emitter      telemetry.EventEmitter
	nowF         func() time.Time
}

// NewService returns a Service with the given dependencies. auditLog and
// emitter may be nil; auditing and event emission are then skipped.
func NewService(
	sessions *session.Manager,
	sessionStore sessionstore.Store,
	tokens *token.Service,
	tokenStore tokenstore.Store,
	mfaEngine *mfa.Engine,
	policies *policy.Engine,
	auditLog audit.AuditLogger,
	emitter telemetry.EventEmitter,
) *Service {
	return &Service{
		sessions:     sessions,
		sessionStore: sessionStore,
		tokens:       tokens,
		tokenStore:   tokenStore,
		mfa:          mfaEngine,
		policies:     policies,
		audit:        auditLog,
		emitter:      emitter,
		nowF:         func() time.Time { return time.Now().UTC() },
	}
}

// BeginSession creates a session for a user whose credentials the caller
// has already verified. When the user has an active MFA enrollment the
// result carries no tokens; the client must present a code to
// CompleteMFA first. Otherwise a full token pair is issued immediately.
func (s *Service) BeginSession(ctx context.Context, userID, orgID string, roles []string, ip, userAgent string, privilege sessiondomain.Privilege) (*BeginResult, error) {
	if userID == "" || orgID == "" {
		return nil, ErrInvalidCredentials
	}
	state, err := s.mfa.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	mfaRequired := state == mfadomain.StateActive
	var metadata map[string]string
	if len(roles) > 0 {
		metadata = map[string]string{rolesMetadataKey: strings.Join(roles, ",")}
	}
	sess, rawID, err := s.sessions.Create(userID, orgID, ip, userAgent, privilege, metadata)
	if err != nil {
		return nil, err
	}
	if err := s.sessionStore.Save(ctx, sess, s.sessions.AbsoluteTimeout()); err != nil {
		return nil, err
	}
	res := &BeginResult{SessionToken: rawID, Session: sess, MFARequired: mfaRequired}
	if !mfaRequired {
		pair, err := s.issueTokens(ctx, sess, roles)
		if err != nil {
			return nil, err
		}
		res.Tokens = pair
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:     orgID,
		UserID:    userID,
		SessionID: sess.ID,
		Action:    audit.ActionSessionCreated,
		Resource:  "session",
		IP:        ip,
		Metadata: map[string]string{
			"mfa_required": strconv.FormatBool(mfaRequired),
			"privilege":    string(sess.Privilege),
		},
	})
	s.emitEvent(ctx, telemetrydomain.SeverityInfo, audit.ActionSessionCreated, orgID, userID, sess.ID, nil)
	return res, nil
}

// CompleteMFA verifies a TOTP or backup code for the session identified
// by rawSessionID, rotates the session identifier, marks the session MFA
// verified, and issues the full token pair. The caller must replace its
// stored session token with the one in the result; the old identifier
// stops validating.
func (s *Service) CompleteMFA(ctx context.Context, rawSessionID, code, ip, userAgent string) (*BeginResult, error) {
	if rawSessionID == "" || code == "" {
		return nil, ErrInvalidCredentials
	}
	sess, err := s.sessionStore.Get(ctx, security.HashIdentifier(rawSessionID))
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Validate(sess, ip, userAgent, false); err != nil {
		s.noteValidationFailure(ctx, sess, ip, err)
		return nil, ErrInvalidCredentials
	}
	if sess.MFAVerified {
		return nil, ErrMFANotRequired
	}

	// TOTP first; a miss falls through to the backup codes so the client
	// needs no separate recovery endpoint for them.
	usedBackup := false
	var remaining int
	ok, err := s.mfa.VerifyCode(ctx, sess.UserID, code)
	if err != nil {
		if errors.Is(err, mfa.ErrNotEnrolled) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !ok {
		res, err := s.mfa.VerifyBackupCode(ctx, sess.UserID, code)
		if err != nil {
			return nil, err
		}
		if !res.Valid {
			s.auditLog(ctx, auditdomain.Event{
				OrgID:     sess.OrgID,
				UserID:    sess.UserID,
				SessionID: sess.ID,
				Action:    audit.ActionMFAFailed,
				Resource:  "session",
				IP:        ip,
			})
			s.emitEvent(ctx, telemetrydomain.SeverityWarn, audit.ActionMFAFailed, sess.OrgID, sess.UserID, sess.ID, nil)
			return nil, ErrInvalidMFACode
		}
		usedBackup = true
		remaining = res.Remaining
	}

	// Rotate the identifier now that the session gains capability. The
	// absolute clock stays anchored to the original login.
	next, nextRaw, err := s.sessions.Regenerate(sess, true)
	if err != nil {
		return nil, err
	}
	next.MFAVerified = true
	s.sessions.Invalidate(sess, sessiondomain.ReasonRegenerated)
	if err := s.sessionStore.Save(ctx, next, s.sessions.AbsoluteTimeout()); err != nil {
		return nil, err
	}
	if err := s.sessionStore.Save(ctx, sess, s.sessions.AbsoluteTimeout()); err != nil {
		log.Printf("auth: persisting superseded session %s: %v", sess.ID, err)
	}

	pair, err := s.issueTokens(ctx, next, splitRoles(next.Metadata[rolesMetadataKey]))
	if err != nil {
		return nil, err
	}

	action := audit.ActionMFACompleted
	severity := telemetrydomain.SeverityInfo
	var meta map[string]string
	if usedBackup {
		action = audit.ActionBackupCodeUsed
		severity = telemetrydomain.SeverityWarn
		meta = map[string]string{"codes_remaining": strconv.Itoa(remaining)}
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:     next.OrgID,
		UserID:    next.UserID,
		SessionID: next.ID,
		Action:    action,
		Resource:  "session",
		IP:        ip,
		Metadata:  meta,
	})
	s.emitEvent(ctx, severity, action, next.OrgID, next.UserID, next.ID, meta)
	return &BeginResult{SessionToken: nextRaw, Session: next, Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the old
// token's record atomically. Presentation of an already-rotated token is
// a compromise signal: the whole rotation family and the bound session
// are revoked, and ErrRefreshTokenReuse is returned. Refresh counts as
// session activity; only liveness and the absolute clock gate it.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		log.Printf("auth: refresh token rejected: %v", err)
		return nil, ErrInvalidRefreshToken
	}
	rec, err := s.tokenStore.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if rec.TokenHash != "" && !s.tokens.StorageHashEqual(refreshToken, rec.TokenHash) {
		return nil, ErrInvalidRefreshToken
	}

	sess, err := s.sessionStore.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Active {
		return nil, ErrInvalidRefreshToken
	}
	if s.sessions.RemainingTime(sess).Absolute <= 0 {
		s.sessions.Invalidate(sess, sessiondomain.ReasonAbsoluteTimeout)
		if err := s.sessionStore.Save(ctx, sess, s.sessions.AbsoluteTimeout()); err != nil {
			log.Printf("auth: persisting session expiry %s: %v", sess.ID, err)
		}
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.tokens.IssueTokenPair(claims.Subject, claims.OrgID, claims.SessionID, claims.Roles, claims.MFAVerified, claims.Custom)
	if err != nil {
		return nil, err
	}

	// MarkRotated is the commit point: under concurrent exchange of one
	// token exactly one caller passes, the loser sees ErrReused. The
	// successor record is written only after, so a lost race leaves no
	// live orphan.
	switch err := s.tokenStore.MarkRotated(ctx, claims.ID, pair.RefreshJTI); {
	case errors.Is(err, tokenstore.ErrReused):
		s.handleReuse(ctx, rec)
		return nil, ErrRefreshTokenReuse
	case errors.Is(err, tokenstore.ErrNotFound):
		return nil, ErrInvalidRefreshToken
	case err != nil:
		return nil, err
	}
	if err := s.tokenStore.Put(ctx, &tokenstore.RefreshRecord{
		JTI:       pair.RefreshJTI,
		FamilyID:  rec.FamilyID,
		SessionID: claims.SessionID,
		UserID:    claims.Subject,
		OrgID:     claims.OrgID,
		TokenHash: s.tokens.HashForStorage(pair.RefreshToken),
		IssuedAt:  s.nowF(),
		ExpiresAt: pair.RefreshExpiresAt,
	}); err != nil {
		return nil, err
	}

	s.sessions.Touch(sess)
	if err := s.sessionStore.Save(ctx, sess, s.sessions.AbsoluteTimeout()); err != nil {
		log.Printf("auth: recording session activity %s: %v", sess.ID, err)
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:     claims.OrgID,
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Action:    audit.ActionTokenRefreshed,
		Resource:  "refresh_token",
		Metadata:  map[string]string{"family_id": rec.FamilyID},
	})
	return &RefreshResult{
		Tokens:    pair,
		UserID:    claims.Subject,
		OrgID:     claims.OrgID,
		SessionID: claims.SessionID,
	}, nil
}

// Logout invalidates the session identified by rawSessionID and revokes
// its refresh tokens. Unknown or already-inactive sessions are a no-op,
// so logout never tells a caller whether an identifier was real.
func (s *Service) Logout(ctx context.Context, rawSessionID, ip string) error {
	if rawSessionID == "" {
		return nil
	}
	id := security.HashIdentifier(rawSessionID)
	sess, err := s.sessionStore.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if sess.Active {
		s.sessions.Invalidate(sess, sessiondomain.ReasonLogout)
		if err := s.sessionStore.Save(ctx, sess, s.sessions.AbsoluteTimeout()); err != nil {
			return err
		}
	}
	if _, err := s.tokenStore.RevokeBySession(ctx, id); err != nil {
		log.Printf("auth: revoking refresh tokens for session %s: %v", id, err)
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:     sess.OrgID,
		UserID:    sess.UserID,
		SessionID: id,
		Action:    audit.ActionLogout,
		Resource:  "session",
		IP:        ip,
	})
	s.emitEvent(ctx, telemetrydomain.SeverityInfo, audit.ActionLogout, sess.OrgID, sess.UserID, id, nil)
	return nil
}

// ListSessions returns the user's active sessions in the org, for the
// "where am I signed in" surface.
func (s *Service) ListSessions(ctx context.Context, userID, orgID string) ([]*sessiondomain.Session, error) {
	return s.sessionStore.ListActiveByUser(ctx, userID, orgID)
}

// RevokeOtherSessions invalidates every active session of the user
// except the one identified by keepRawID (pass "" to revoke all),
// together with their refresh tokens. Returns the number of sessions
// revoked.
func (s *Service) RevokeOtherSessions(ctx context.Context, userID, orgID, keepRawID, ip string) (int, error) {
	exceptID := ""
	if keepRawID != "" {
		exceptID = security.HashIdentifier(keepRawID)
	}
	active, err := s.sessionStore.ListActiveByUser(ctx, userID, orgID)
	if err != nil {
		return 0, err
	}
	for _, sess := range active {
		if sess.ID == exceptID {
			continue
		}
		if _, err := s.tokenStore.RevokeBySession(ctx, sess.ID); err != nil {
			log.Printf("auth: revoking refresh tokens for session %s: %v", sess.ID, err)
		}
	}
	revoked, err := s.sessionStore.RevokeAllByUser(ctx, userID, orgID, exceptID, sessiondomain.ReasonRevoked)
	if err != nil {
		return 0, err
	}
	if revoked > 0 {
		s.auditLog(ctx, auditdomain.Event{
			OrgID:    orgID,
			UserID:   userID,
			Action:   audit.ActionSessionsRevoked,
			Resource: "session",
			IP:       ip,
			Metadata: map[string]string{"count": strconv.Itoa(revoked)},
		})
		s.emitEvent(ctx, telemetrydomain.SeverityInfo, audit.ActionSessionsRevoked, orgID, userID, "", map[string]string{"count": strconv.Itoa(revoked)})
	}
	return revoked, nil
}

// issueTokens mints a pair for the session and records the refresh
// token, opening a fresh rotation family.
func (s *Service) issueTokens(ctx context.Context, sess *sessiondomain.Session, roles []string) (*token.Pair, error) {
	pair, err := s.tokens.IssueTokenPair(sess.UserID, sess.OrgID, sess.ID, roles, sess.MFAVerified, nil)
	if err != nil {
		return nil, err
	}
	if err := s.tokenStore.Put(ctx, &tokenstore.RefreshRecord{
		JTI:       pair.RefreshJTI,
		FamilyID:  uuid.New().String(),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		OrgID:     sess.OrgID,
		TokenHash: s.tokens.HashForStorage(pair.RefreshToken),
		IssuedAt:  s.nowF(),
		ExpiresAt: pair.RefreshExpiresAt,
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// handleReuse runs the compromise response: revoke the rotation family,
// invalidate the bound session, and record the signal. Best-effort; the
// caller returns ErrRefreshTokenReuse regardless.
func (s *Service) handleReuse(ctx context.Context, rec *tokenstore.RefreshRecord) {
	revoked, err := s.tokenStore.RevokeFamily(ctx, rec.FamilyID)
	if err != nil {
		log.Printf("auth: revoking token family %s: %v", rec.FamilyID, err)
	}
	sess, err := s.sessionStore.Get(ctx, rec.SessionID)
	if err != nil {
		log.Printf("auth: loading session %s after token reuse: %v", rec.SessionID, err)
	}
	if sess != nil && sess.Active {
		s.sessions.Invalidate(sess, sessiondomain.ReasonTokenReuse)
		if err := s.sessionStore.Save(ctx, sess, s.sessions.AbsoluteTimeout()); err != nil {
			log.Printf("auth: persisting session revocation %s: %v", sess.ID, err)
		}
	}
	meta := map[string]string{
		"family_id":      rec.FamilyID,
		"jti":            rec.JTI,
		"tokens_revoked": strconv.Itoa(revoked),
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:     rec.OrgID,
		UserID:    rec.UserID,
		SessionID: rec.SessionID,
		Action:    audit.ActionTokenReuseDetected,
		Resource:  "refresh_token",
		Metadata:  meta,
	})
	s.emitEvent(ctx, telemetrydomain.SeverityCritical, audit.ActionTokenReuseDetected, rec.OrgID, rec.UserID, rec.SessionID, meta)
}

// noteValidationFailure records the session bookkeeping for a failed
// validation. A fingerprint mismatch is treated as hijack evidence: the
// session is invalidated and the signal is audited and emitted. Expiry
// failures just persist the reason.
func (s *Service) noteValidationFailure(ctx context.Context, sess *sessiondomain.Session, ip string, cause error) {
	if sess == nil {
		return
	}
	switch {
	case errors.Is(cause, session.ErrFingerprintMismatch):
		s.sessions.Invalidate(sess, sessiondomain.ReasonFingerprintMismatch)
		s.auditLog(ctx, auditdomain.Event{
			OrgID:     sess.OrgID,
			UserID:    sess.UserID,
			SessionID: sess.ID,
			Action:    audit.ActionFingerprintMismatch,
			Resource:  "session",
			IP:        ip,
		})
		s.emitEvent(ctx, telemetrydomain.SeverityWarn, audit.ActionFingerprintMismatch, sess.OrgID, sess.UserID, sess.ID, map[string]string{"presented_ip": ip})
	case errors.Is(cause, session.ErrExpiredIdle):
		s.sessions.Invalidate(sess, sessiondomain.ReasonIdleTimeout)
	case errors.Is(cause, session.ErrExpiredAbsolute):
		s.sessions.Invalidate(sess, sessiondomain.ReasonAbsoluteTimeout)
	default:
		return
	}
	if err := s.sessionStore.Save(ctx, sess, s.sessions.AbsoluteTimeout()); err != nil {
		log.Printf("auth: persisting session invalidation %s: %v", sess.ID, err)
	}
}

func (s *Service) auditLog(ctx context.Context, e auditdomain.Event) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, e)
}

func (s *Service) emitEvent(ctx context.Context, severity, eventType, orgID, userID, sessionID string, meta map[string]string) {
	telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.SecurityEvent{
		OrgID:     orgID,
		UserID:    userID,
		SessionID: sessionID,
		EventType: eventType,
		Source:    eventSource,
		Severity:  severity,
		Metadata:  meta,
		CreatedAt: s.nowF(),
	})
}

func splitRoles(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	roles := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	if len(roles) == 0 {
		return nil
	}
	return roles
}
