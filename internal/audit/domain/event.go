package domain

import "time"

// Event is one security/audit event. SessionID carries the hashed
// session identifier, never the raw value.
type Event struct {
	ID        string
	OrgID     string
	UserID    string
	SessionID string
	Action    string
	Resource  string
	IP        string
	Metadata  map[string]string
	CreatedAt time.Time
}
