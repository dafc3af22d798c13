package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"matterguard/authcore/internal/policy/domain"
)

// DefaultRegoQuery is the rule evaluated when a custom Rego policy does
// not name one.
const DefaultRegoQuery = "data.matterguard.policy.match"

type regoCondition struct {
	compiler *ast.Compiler
	query    string
}

// NewRegoCondition compiles a Rego module and returns a condition that
// evaluates query against it with the flattened context attributes as
// input. The queried rule must produce a boolean; an undefined result
// counts as no match.
func NewRegoCondition(module, query string) (domain.Condition, error) {
	if strings.TrimSpace(module) == "" {
		return nil, errors.New("policy: empty rego module")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultRegoQuery
	}
	compiler, err := ast.CompileModules(map[string]string{"policy_0.rego": module})
	if err != nil {
		return nil, fmt.Errorf("policy: compile rego module: %w", err)
	}
	return &regoCondition{compiler: compiler, query: query}, nil
}

func (c *regoCondition) Match(ctx context.Context, pc *domain.Context) (bool, error) {
	r := rego.New(
		rego.Query(c.query),
		rego.Compiler(c.compiler),
		rego.Input(evalInput(pc)),
	)
	rs, err := r.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval rego query %s: %w", c.query, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	switch v := rs[0].Expressions[0].Value.(type) {
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("rego query %s returned %T, want boolean", c.query, v)
	}
}
