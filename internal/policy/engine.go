// Package policy implements attribute-based access control over a
// fixed, priority-ordered policy set with deny-override semantics.
package policy

import (
	"context"
	"log"
	"sort"
	"time"

	"matterguard/authcore/internal/policy/domain"
)

// DefaultDenyReason is the Decision reason when no policy matched.
const DefaultDenyReason = "no matching policy"

// Engine evaluates access decisions against an immutable policy set.
// DENY policies are always evaluated before ALLOW policies, each class
// ordered by ascending priority; equal priorities keep the order they
// were given in. Safe for concurrent use.
type Engine struct {
	denies []domain.Policy
	allows []domain.Policy

	nowF func() time.Time
}

// New builds an Engine from policies. Policies whose effect is not
// EffectAllow are evaluated as denies.
func New(policies []domain.Policy) *Engine {
	e := &Engine{nowF: func() time.Time { return time.Now().UTC() }}
	for _, p := range policies {
		switch p.Effect {
		case domain.EffectAllow:
			e.allows = append(e.allows, p)
		case domain.EffectDeny:
			e.denies = append(e.denies, p)
		default:
			log.Printf("policy: %s has effect %q, evaluating as deny", p.Name, p.Effect)
			e.denies = append(e.denies, p)
		}
	}
	sort.SliceStable(e.denies, func(i, j int) bool { return e.denies[i].Priority < e.denies[j].Priority })
	sort.SliceStable(e.allows, func(i, j int) bool { return e.allows[i].Priority < e.allows[j].Priority })
	return e
}

// Evaluate runs the two-phase decision. Phase one walks the deny
// policies: a match, or a condition that fails to evaluate, denies with
// that policy's name. Phase two walks the allow policies: a match
// allows, a condition error is logged and the policy skipped. If
// nothing matched the request is denied with DefaultDenyReason.
func (e *Engine) Evaluate(ctx context.Context, pc *domain.Context) domain.Decision {
	for _, p := range e.denies {
		ok, err := matchPolicy(ctx, p, pc)
		if err != nil {
			log.Printf("policy: deny policy %s failed to evaluate, denying: %v", p.Name, err)
			return domain.Decision{Allowed: false, MatchedPolicy: p.Name, Reason: "policy evaluation failed"}
		}
		if ok {
			return domain.Decision{Allowed: false, MatchedPolicy: p.Name, Reason: p.Description}
		}
	}
	for _, p := range e.allows {
		ok, err := matchPolicy(ctx, p, pc)
		if err != nil {
			log.Printf("policy: allow policy %s failed to evaluate, skipping: %v", p.Name, err)
			continue
		}
		if ok {
			return domain.Decision{Allowed: true, MatchedPolicy: p.Name, Reason: p.Description}
		}
	}
	return domain.Decision{Allowed: false, Reason: DefaultDenyReason}
}

// Can is a convenience wrapper answering a single yes/no question. The
// environment carries the current time and the session MFA state.
func (e *Engine) Can(ctx context.Context, sub domain.Subject, action domain.Action, res domain.Resource, mfaVerified bool) bool {
	pc := &domain.Context{
		Subject:  sub,
		Resource: res,
		Action:   action,
		Environment: domain.Environment{
			Timestamp:   e.nowF(),
			MFAVerified: mfaVerified,
		},
	}
	return e.Evaluate(ctx, pc).Allowed
}

// CanMultiple evaluates each action independently against the same
// subject and resource. Useful for building UI capability maps.
func (e *Engine) CanMultiple(ctx context.Context, sub domain.Subject, actions []domain.Action, res domain.Resource, mfaVerified bool) map[domain.Action]bool {
	out := make(map[domain.Action]bool, len(actions))
	for _, a := range actions {
		out[a] = e.Can(ctx, sub, a, res, mfaVerified)
	}
	return out
}

// Policies returns the policy set in evaluation order, denies first.
func (e *Engine) Policies() []domain.Policy {
	out := make([]domain.Policy, 0, len(e.denies)+len(e.allows))
	out = append(out, e.denies...)
	out = append(out, e.allows...)
	return out
}

func matchPolicy(ctx context.Context, p domain.Policy, pc *domain.Context) (bool, error) {
	if p.Condition == nil {
		return true, nil
	}
	return p.Condition.Match(ctx, pc)
}
