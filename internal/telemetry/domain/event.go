package domain

import "time"

// Severity levels for security events.
const (
	SeverityInfo     = "info"
	SeverityWarn     = "warn"
	SeverityCritical = "critical"
)

// SecurityEvent is the emission form of a security-relevant occurrence:
// session lifecycle changes, MFA outcomes, token rotation and reuse,
// policy denials. Events are shipped to the OTel log pipeline and to
// Kafka as JSON; the audit store keeps the durable queryable copy.
//
// SessionID carries the hashed session identifier, never the raw value.
type SecurityEvent struct {
	OrgID     string            `json:"orgId,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	EventType string            `json:"eventType"`
	Source    string            `json:"source,omitempty"`
	Severity  string            `json:"severity,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
