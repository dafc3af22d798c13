package auth

import (
	"context"
	"strconv"

	"matterguard/authcore/internal/audit"
	auditdomain "matterguard/authcore/internal/audit/domain"
	"matterguard/authcore/internal/mfa"
	telemetrydomain "matterguard/authcore/internal/telemetry/domain"
)

// EnrollMFA starts a TOTP enrollment for the user and returns the
// one-time provisioning material. The enrollment stays pending until
// ActivateMFA confirms a code; a repeat call while pending replaces it.
func (s *Service) EnrollMFA(ctx context.Context, userID, orgID, label, ip string) (*mfa.EnrollmentResult, error) {
	res, err := s.mfa.Enroll(ctx, userID, orgID, label)
	if err != nil {
		return nil, err
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:    orgID,
		UserID:   userID,
		Action:   audit.ActionMFAEnrolled,
		Resource: "mfa_enrollment",
		IP:       ip,
		Metadata: map[string]string{"state": "pending"},
	})
	return res, nil
}

// ActivateMFA confirms the pending enrollment with a first TOTP code.
// From the next BeginSession on, the user's logins require MFA
// completion.
func (s *Service) ActivateMFA(ctx context.Context, userID, orgID, code, ip string) error {
	if err := s.mfa.VerifyEnrollment(ctx, userID, code); err != nil {
		return err
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:    orgID,
		UserID:   userID,
		Action:   audit.ActionMFAEnrolled,
		Resource: "mfa_enrollment",
		IP:       ip,
		Metadata: map[string]string{"state": "active"},
	})
	s.emitEvent(ctx, telemetrydomain.SeverityInfo, audit.ActionMFAEnrolled, orgID, userID, "", nil)
	return nil
}

// RegenerateBackupCodes replaces the user's remaining backup codes with
// a fresh set, returned once.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID, orgID, ip string) ([]string, error) {
	codes, err := s.mfa.RegenerateBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:    orgID,
		UserID:   userID,
		Action:   audit.ActionMFAEnrolled,
		Resource: "mfa_backup_codes",
		IP:       ip,
		Metadata: map[string]string{"count": strconv.Itoa(len(codes))},
	})
	return codes, nil
}

// DisableMFA turns enrollment off for the user. The record is kept
// disabled, not wiped, so the change stays reviewable.
func (s *Service) DisableMFA(ctx context.Context, userID, orgID, ip string) error {
	if err := s.mfa.Disable(ctx, userID); err != nil {
		return err
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:    orgID,
		UserID:   userID,
		Action:   audit.ActionMFAEnrolled,
		Resource: "mfa_enrollment",
		IP:       ip,
		Metadata: map[string]string{"state": "disabled"},
	})
	s.emitEvent(ctx, telemetrydomain.SeverityWarn, audit.ActionMFAEnrolled, orgID, userID, "", map[string]string{"state": "disabled"})
	return nil
}

// RecoverMFA verifies the recovery key and disables the enrollment so a
// user locked out of their authenticator can re-enroll. Also revokes the
// user's refresh tokens and sessions in the org: a recovery key
// presented by an attacker must not leave prior credentials standing.
func (s *Service) RecoverMFA(ctx context.Context, userID, orgID, recoveryKey, ip string) error {
	ok, err := s.mfa.VerifyRecoveryKey(ctx, userID, recoveryKey)
	if err != nil {
		return err
	}
	if !ok {
		s.auditLog(ctx, auditdomain.Event{
			OrgID:    orgID,
			UserID:   userID,
			Action:   audit.ActionMFAFailed,
			Resource: "mfa_recovery",
			IP:       ip,
		})
		s.emitEvent(ctx, telemetrydomain.SeverityWarn, audit.ActionMFAFailed, orgID, userID, "", map[string]string{"method": "recovery_key"})
		return ErrInvalidMFACode
	}
	if err := s.mfa.Disable(ctx, userID); err != nil {
		return err
	}
	if _, err := s.RevokeOtherSessions(ctx, userID, orgID, "", ip); err != nil {
		return err
	}
	s.auditLog(ctx, auditdomain.Event{
		OrgID:    orgID,
		UserID:   userID,
		Action:   audit.ActionRecoveryKeyUsed,
		Resource: "mfa_recovery",
		IP:       ip,
	})
	s.emitEvent(ctx, telemetrydomain.SeverityCritical, audit.ActionRecoveryKeyUsed, orgID, userID, "", nil)
	return nil
}
