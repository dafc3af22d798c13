package policy

import "matterguard/authcore/internal/policy/domain"

// Baseline returns the built-in policy set. Callers append org-defined
// custom policies and hand the combined slice to New. The slice is
// freshly allocated on every call.
func Baseline() []domain.Policy {
	return []domain.Policy{
		{
			Name:        "deny-cross-tenant-access",
			Description: "subject and resource belong to different organizations",
			Effect:      domain.EffectDeny,
			Priority:    1,
			Condition:   domain.Not{C: domain.SameOrg{}},
		},
		{
			Name:        "deny-audit-log-mutation",
			Description: "audit log entries are append-only",
			Effect:      domain.EffectDeny,
			Priority:    2,
			Condition: domain.All{
				domain.ResourceTypeIn{"audit_log"},
				domain.ActionIn{domain.ActionUpdate, domain.ActionDelete},
			},
		},
		{
			Name:        "deny-privileged-without-mfa",
			Description: "privileged resources require a verified MFA session",
			Effect:      domain.EffectDeny,
			Priority:    3,
			Condition: domain.All{
				domain.ConfidentialityIn{domain.ConfidentialityPrivileged},
				domain.Not{C: domain.MFAVerified{}},
			},
		},
		{
			Name:        "allow-admin-org-access",
			Description: "admins manage everything inside their organization",
			Effect:      domain.EffectAllow,
			Priority:    10,
			Condition:   domain.RoleIn{"admin"},
		},
		{
			Name:        "allow-attorney-matter-access",
			Description: "attorneys work matters and documents they own or are assigned to",
			Effect:      domain.EffectAllow,
			Priority:    20,
			Condition: domain.All{
				domain.RoleIn{"attorney"},
				domain.ResourceTypeIn{"matter", "document"},
				domain.Any{domain.Owner{}, domain.Assignee{}},
			},
		},
		{
			Name:        "allow-paralegal-assigned-work",
			Description: "paralegals read and update matters they are assigned to",
			Effect:      domain.EffectAllow,
			Priority:    30,
			Condition: domain.All{
				domain.RoleIn{"paralegal"},
				domain.ResourceTypeIn{"matter", "document"},
				domain.Assignee{},
				domain.ActionIn{domain.ActionRead, domain.ActionList, domain.ActionUpdate},
			},
		},
		{
			Name:        "allow-template-read",
			Description: "document templates are readable org-wide",
			Effect:      domain.EffectAllow,
			Priority:    100,
			Condition: domain.All{
				domain.ResourceTypeIn{"template"},
				domain.ActionIn{domain.ActionRead, domain.ActionList},
			},
		},
	}
}
