package policy

import (
	"time"

	"matterguard/authcore/internal/policy/domain"
)

// evalInput flattens an evaluation context into the map form consumed
// by expression and Rego conditions. Key names are part of the custom
// policy surface and must stay stable.
func evalInput(pc *domain.Context) map[string]any {
	return map[string]any{
		"subject": map[string]any{
			"id":          pc.Subject.ID,
			"org_id":      pc.Subject.OrgID,
			"roles":       pc.Subject.Roles,
			"permissions": pc.Subject.Permissions,
		},
		"resource": map[string]any{
			"type":            pc.Resource.Type,
			"id":              pc.Resource.ID,
			"org_id":          pc.Resource.OrgID,
			"owner_id":        pc.Resource.OwnerID,
			"assignees":       pc.Resource.Assignees,
			"confidentiality": pc.Resource.Confidentiality,
		},
		"action": string(pc.Action),
		"environment": map[string]any{
			"timestamp":           pc.Environment.Timestamp.Format(time.RFC3339),
			"ip":                  pc.Environment.IP,
			"mfa_verified":        pc.Environment.MFAVerified,
			"session_age_seconds": int64(pc.Environment.SessionAge / time.Second),
		},
	}
}
