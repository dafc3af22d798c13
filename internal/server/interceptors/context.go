// Package interceptors provides the unary gRPC interceptors the server
// chains around every RPC: authentication, audit logging, and request
// telemetry. The authenticated identity travels in the request context.
package interceptors

import "context"

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// Identity is the authenticated caller attached to the request context
// by the auth interceptor. SessionID carries the hashed session
// identifier, as in token claims.
type Identity struct {
	UserID      string
	OrgID       string
	SessionID   string
	Roles       []string
	MFAVerified bool
}

// WithIdentity returns a context carrying the authenticated identity.
// Handlers read it via GetIdentity or the field accessors below.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the authenticated identity and true if set;
// otherwise a zero Identity and false.
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// GetUserID returns the user id from context and true if set; otherwise
// "", false.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	return id.UserID, ok && id.UserID != ""
}

// GetOrgID returns the org id from context and true if set; otherwise
// "", false.
func GetOrgID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	return id.OrgID, ok && id.OrgID != ""
}

// GetSessionID returns the hashed session id from context and true if
// set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	return id.SessionID, ok && id.SessionID != ""
}
