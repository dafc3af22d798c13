package policy

import (
	"fmt"

	"matterguard/authcore/internal/policy/domain"
)

// FromCustom compiles stored org-defined policies into engine policies.
// Disabled entries are skipped. Org-scoped entries are wrapped so they
// only apply to subjects of that org. A policy that fails to compile
// aborts the whole load; a broken custom deny must not silently vanish
// from the set.
func FromCustom(customs []domain.CustomPolicy) ([]domain.Policy, error) {
	out := make([]domain.Policy, 0, len(customs))
	for _, cp := range customs {
		if !cp.Enabled {
			continue
		}
		p, err := compileCustom(cp)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func compileCustom(cp domain.CustomPolicy) (domain.Policy, error) {
	switch cp.Effect {
	case domain.EffectAllow, domain.EffectDeny:
	default:
		return domain.Policy{}, fmt.Errorf("policy: custom policy %s: unknown effect %q", cp.Name, cp.Effect)
	}

	var (
		cond domain.Condition
		err  error
	)
	switch cp.Kind {
	case domain.CustomKindExpr:
		cond, err = NewExprCondition(cp.Source)
	case domain.CustomKindRego:
		cond, err = NewRegoCondition(cp.Source, cp.Query)
	default:
		err = fmt.Errorf("unknown kind %q", cp.Kind)
	}
	if err != nil {
		return domain.Policy{}, fmt.Errorf("policy: custom policy %s: %w", cp.Name, err)
	}
	if cp.OrgID != "" {
		cond = domain.All{domain.OrgIs(cp.OrgID), cond}
	}

	return domain.Policy{
		Name:        cp.Name,
		Description: cp.Description,
		Effect:      cp.Effect,
		Priority:    cp.Priority,
		Condition:   cond,
	}, nil
}
