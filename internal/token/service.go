package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"matterguard/authcore/internal/security"
)

// Default TTLs applied when the Service is constructed with zero values.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// MinSecretLen is the minimum signing secret length in bytes. HS512 wants a
// secret at least as wide as the hash output would suggest; anything
// shorter is a configuration error, fatal at startup.
const MinSecretLen = 32

// Verification failures, most specific first. The transport boundary maps
// all of them to one generic "invalid token" response; the specific kind is
// for internal branching and logs only.
var (
	ErrMalformed        = errors.New("token: malformed structure")
	ErrSignatureInvalid = errors.New("token: signature mismatch")
	ErrExpired          = errors.New("token: expired")
	ErrNotYetValid      = errors.New("token: not yet valid")
	ErrIssuerMismatch   = errors.New("token: issuer mismatch")
	ErrAudienceMismatch = errors.New("token: audience mismatch")
	ErrWrongType        = errors.New("token: wrong token type")
	ErrInvalid          = errors.New("token: invalid")
)

// Service mints and verifies token pairs. It is a stateless evaluator:
// rotation bookkeeping belongs to the caller and the token store.
type Service struct {
	secret     []byte
	storage    *security.KeyedHasher
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowF       func() time.Time
}

// NewService builds a Service signing with secret (HMAC-SHA-512). The
// storage key feeds HashForStorage and must differ from the signing secret.
// Returns an error when the secret is missing or too short.
func NewService(secret, storageKey []byte, issuer, audience string, accessTTL, refreshTTL time.Duration) (*Service, error) {
	if len(secret) < MinSecretLen {
		return nil, errors.New("token: signing secret must be at least 32 bytes")
	}
	if len(storageKey) == 0 {
		return nil, errors.New("token: storage key is required")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Service{
		secret:     secret,
		storage:    security.NewKeyedHasher(storageKey),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// IssueTokenPair mints an access/refresh pair sharing sub, org, and sid
// with distinct jtis. iat and nbf are set to now, exp to now plus the
// per-type TTL.
func (s *Service) IssueTokenPair(userID, orgID, sessionID string, roles []string, mfaVerified bool, custom map[string]any) (*Pair, error) {
	now := s.nowF()

	accessJTI, err := security.NewJTI()
	if err != nil {
		return nil, err
	}
	refreshJTI, err := security.NewJTI()
	if err != nil {
		return nil, err
	}

	accessExp := now.Add(s.accessTTL)
	access, err := s.sign(s.claims(userID, orgID, sessionID, accessJTI, TypeAccess, roles, mfaVerified, custom, now, accessExp))
	if err != nil {
		return nil, err
	}

	refreshExp := now.Add(s.refreshTTL)
	refresh, err := s.sign(s.claims(userID, orgID, sessionID, refreshJTI, TypeRefresh, roles, mfaVerified, custom, now, refreshExp))
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessJTI:        accessJTI,
		RefreshJTI:       refreshJTI,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) claims(userID, orgID, sessionID, jti string, typ Type, roles []string, mfaVerified bool, custom map[string]any, now, exp time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		OrgID:       orgID,
		SessionID:   sessionID,
		TokenType:   typ,
		MFAVerified: mfaVerified,
		Roles:       roles,
		Custom:      custom,
	}
}

func (s *Service) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
}

// Verify checks the token: structure, signature, then expiry, not-before,
// issuer, audience, and finally the type discriminator. Exactly one error
// is returned per failure; no claims are exposed unless every check passes.
func (s *Service) Verify(tokenString string, want Type) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.nowF() }),
	)
	if err != nil {
		return nil, translateJWTError(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.TokenType != want {
		return nil, ErrWrongType
	}
	return claims, nil
}

// VerifyAccess verifies an access token.
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	return s.Verify(tokenString, TypeAccess)
}

// VerifyRefresh verifies a refresh token.
func (s *Service) VerifyRefresh(tokenString string) (*Claims, error) {
	return s.Verify(tokenString, TypeRefresh)
}

// Refresh exchanges a valid refresh token for a new pair bound to the same
// session, returning the old token's jti. The caller must mark oldJTI
// rotated in the token store and treat any later presentation of it as
// reuse.
func (s *Service) Refresh(refreshToken string) (pair *Pair, oldJTI string, err error) {
	claims, err := s.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, "", err
	}
	pair, err = s.IssueTokenPair(claims.Subject, claims.OrgID, claims.SessionID, claims.Roles, claims.MFAVerified, claims.Custom)
	if err != nil {
		return nil, "", err
	}
	return pair, claims.ID, nil
}

// HashForStorage returns a keyed one-way hash of the token so raw tokens
// are never persisted. The key is server-side and fixed, so the hash is
// stable across restarts for lookup.
func (s *Service) HashForStorage(tokenString string) string {
	return s.storage.Hash(tokenString)
}

// StorageHashEqual compares a token against a stored hash in constant time.
func (s *Service) StorageHashEqual(tokenString, storedHash string) bool {
	return s.storage.Verify(tokenString, storedHash)
}

// AccessTTL returns the configured access-token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

const bearerPrefix = "bearer "

// ExtractFromHeader pulls the bearer token out of an Authorization header
// value. The scheme match is case-insensitive. Returns ("", false) when the
// header does not carry a bearer token.
func ExtractFromHeader(headerValue string) (string, bool) {
	v := strings.TrimSpace(headerValue)
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(v[len(bearerPrefix):])
	if tok == "" {
		return "", false
	}
	return tok, true
}

// translateJWTError maps jwt/v5 parse failures onto the package sentinels,
// most specific first. jwt joins multiple claim failures; the first match
// in check order wins so callers see the same precedence the verifier ran.
func translateJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	default:
		return ErrInvalid
	}
}
