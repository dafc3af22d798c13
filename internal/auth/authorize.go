package auth

import (
	"context"
	"log"

	"matterguard/authcore/internal/audit"
	auditdomain "matterguard/authcore/internal/audit/domain"
	policydomain "matterguard/authcore/internal/policy/domain"
	sessiondomain "matterguard/authcore/internal/session/domain"
	telemetrydomain "matterguard/authcore/internal/telemetry/domain"
	"matterguard/authcore/internal/token"
)

// Authorization is the identity and decision attached to a request that
// passed the full pipeline. SessionID carries the hashed identifier.
type Authorization struct {
	UserID      string
	OrgID       string
	SessionID   string
	Roles       []string
	MFAVerified bool
	Decision    policydomain.Decision
}

// Authenticate runs the credential half of the per-request pipeline:
// bearer extraction, access token verification, and session validation
// against the presented client fingerprint. Every failure comes back as
// ErrInvalidCredentials; the audit trail keeps the specific cause. A
// pass counts as session activity and moves the idle window. The
// Decision field of the result stays zero; Authorize fills it.
func (s *Service) Authenticate(ctx context.Context, authorization, ip, userAgent string) (*Authorization, error) {
	claims, sess, err := s.authenticate(ctx, authorization, ip, userAgent)
	if err != nil {
		return nil, err
	}
	return &Authorization{
		UserID:      claims.Subject,
		OrgID:       claims.OrgID,
		SessionID:   claims.SessionID,
		Roles:       claims.Roles,
		MFAVerified: sess.MFAVerified,
	}, nil
}

func (s *Service) authenticate(ctx context.Context, authorization, ip, userAgent string) (*token.Claims, *sessiondomain.Session, error) {
	tok, ok := token.ExtractFromHeader(authorization)
	if !ok {
		return nil, nil, ErrInvalidCredentials
	}
	claims, err := s.tokens.VerifyAccess(tok)
	if err != nil {
		log.Printf("auth: access token rejected: %v", err)
		return nil, nil, ErrInvalidCredentials
	}
	sess, err := s.sessionStore.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessions.Validate(sess, ip, userAgent, false); err != nil {
		s.noteValidationFailure(ctx, sess, ip, err)
		return nil, nil, ErrInvalidCredentials
	}
	s.sessions.Touch(sess)
	if err := s.sessionStore.Save(ctx, sess, s.sessions.AbsoluteTimeout()); err != nil {
		log.Printf("auth: recording session activity %s: %v", sess.ID, err)
	}
	return claims, sess, nil
}

// Authorize runs the full pipeline: Authenticate plus policy evaluation
// for the action on the resource. Policy denials come back as
// ErrPermissionDenied and are audited with the matched policy.
func (s *Service) Authorize(ctx context.Context, authorization, ip, userAgent string, action policydomain.Action, resource policydomain.Resource) (*Authorization, error) {
	claims, sess, err := s.authenticate(ctx, authorization, ip, userAgent)
	if err != nil {
		return nil, err
	}

	now := s.nowF()
	decision := s.policies.Evaluate(ctx, &policydomain.Context{
		Subject: policydomain.Subject{
			ID:    claims.Subject,
			OrgID: claims.OrgID,
			Roles: claims.Roles,
		},
		Resource: resource,
		Action:   action,
		Environment: policydomain.Environment{
			Timestamp:   now,
			IP:          ip,
			MFAVerified: sess.MFAVerified,
			SessionAge:  now.Sub(sess.CreatedAt),
		},
	})
	if !decision.Allowed {
		meta := map[string]string{
			"action": string(action),
			"reason": decision.Reason,
		}
		if decision.MatchedPolicy != "" {
			meta["policy"] = decision.MatchedPolicy
		}
		s.auditLog(ctx, auditdomain.Event{
			OrgID:     claims.OrgID,
			UserID:    claims.Subject,
			SessionID: claims.SessionID,
			Action:    audit.ActionAccessDenied,
			Resource:  resource.Type + "/" + resource.ID,
			IP:        ip,
			Metadata:  meta,
		})
		s.emitEvent(ctx, telemetrydomain.SeverityWarn, audit.ActionAccessDenied, claims.OrgID, claims.Subject, claims.SessionID, meta)
		return nil, ErrPermissionDenied
	}
	return &Authorization{
		UserID:      claims.Subject,
		OrgID:       claims.OrgID,
		SessionID:   claims.SessionID,
		Roles:       claims.Roles,
		MFAVerified: sess.MFAVerified,
		Decision:    decision,
	}, nil
}
