// Package session owns session lifecycle: creation with fingerprint
// binding, idle/absolute timeout enforcement, identifier regeneration, and
// invalidation. The Manager is a stateless evaluator; persistence lives in
// the store subpackage.
package session

import (
	"strings"

	"matterguard/authcore/internal/security"
)

// browserFamilies maps a marker substring in the user-agent to a canonical
// family name. Order matters: Edge and Opera embed "Chrome", Chrome embeds
// "Safari".
var browserFamilies = []struct {
	marker string
	family string
}{
	{"edg/", "edge"},
	{"edga/", "edge"},
	{"edgios/", "edge"},
	{"opr/", "opera"},
	{"opera/", "opera"},
	{"firefox/", "firefox"},
	{"fxios/", "firefox"},
	{"crios/", "chrome"},
	{"chrome/", "chrome"},
	{"version/", "safari"}, // Safari reports Version/x.y Safari/...
}

// NormalizeUserAgent reduces a user-agent string to browser family plus
// major version, so minor version churn does not invalidate sessions.
// Unrecognized agents are kept verbatim (lowercased, trimmed): custom
// clients get strict binding instead of a shared bucket.
func NormalizeUserAgent(ua string) string {
	trimmed := strings.ToLower(strings.TrimSpace(ua))
	if trimmed == "" {
		return "unknown"
	}
	for _, bf := range browserFamilies {
		idx := strings.Index(trimmed, bf.marker)
		if idx < 0 {
			continue
		}
		if bf.family == "safari" && !strings.Contains(trimmed, "safari/") {
			continue
		}
		version := trimmed[idx+len(bf.marker):]
		return bf.family + "/" + majorVersion(version)
	}
	return trimmed
}

func majorVersion(v string) string {
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == 0 {
		return "0"
	}
	return v[:end]
}

// Fingerprinter derives session fingerprints from client characteristics.
// IP and user-agent are hashed separately under a server key and joined, so
// a stolen database row cannot be reversed into client addresses by brute
// force.
type Fingerprinter struct {
	hasher *security.KeyedHasher
}

// NewFingerprinter builds a Fingerprinter keyed with key.
func NewFingerprinter(key []byte) *Fingerprinter {
	return &Fingerprinter{hasher: security.NewKeyedHasher(key)}
}

// Fingerprint returns the derived fingerprint for ip and userAgent.
func (f *Fingerprinter) Fingerprint(ip, userAgent string) string {
	return f.hasher.Hash(strings.TrimSpace(ip)) + "." + f.hasher.Hash(NormalizeUserAgent(userAgent))
}

// Matches recomputes the fingerprint for the presented client
// characteristics and compares it against stored in constant time.
func (f *Fingerprinter) Matches(stored, ip, userAgent string) bool {
	return security.HashEqual(f.Fingerprint(ip, userAgent), stored)
}
