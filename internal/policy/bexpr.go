package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-bexpr"

	"matterguard/authcore/internal/policy/domain"
)

type exprCondition struct {
	src string
	ev  *bexpr.Evaluator
}

// NewExprCondition compiles a go-bexpr boolean expression into a
// condition evaluated against the flattened context attributes, for
// example `"admin" in subject.roles and action == "export"`. The
// expression is compiled once here; a bad or empty expression is
// rejected so a broken stored policy surfaces at load time.
func NewExprCondition(expression string) (domain.Condition, error) {
	src := strings.TrimSpace(expression)
	if src == "" {
		return nil, errors.New("policy: empty expression")
	}
	ev, err := bexpr.CreateEvaluator(src)
	if err != nil {
		return nil, fmt.Errorf("policy: compile expression %q: %w", src, err)
	}
	return &exprCondition{src: src, ev: ev}, nil
}

func (c *exprCondition) Match(_ context.Context, pc *domain.Context) (bool, error) {
	ok, err := c.ev.Evaluate(evalInput(pc))
	if err != nil {
		return false, fmt.Errorf("evaluate expression %q: %w", c.src, err)
	}
	return ok, nil
}
