// Package token issues and verifies the access/refresh token pairs bound
// to a session. Tokens are JWTs signed with HMAC-SHA-512; rotation and
// reuse detection state lives in the store subpackage.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates access from refresh tokens. A refresh token is never
// accepted where an access token is required, and vice versa.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the payload carried by both token types. Access and refresh
// tokens share the structure and differ in TokenType and TTL.
type Claims struct {
	jwt.RegisteredClaims
	OrgID       string         `json:"org"`
	SessionID   string         `json:"sid"`
	TokenType   Type           `json:"type"`
	MFAVerified bool           `json:"mfa"`
	Roles       []string       `json:"roles,omitempty"`
	Custom      map[string]any `json:"custom,omitempty"`
}

// Pair is one issued access/refresh pair. Both tokens share sub, org, and
// sid; each carries its own jti.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessJTI        string
	RefreshJTI       string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
