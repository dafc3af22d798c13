package domain

import (
	"context"
	"time"
)

// Effect is the outcome a policy contributes when its condition matches.
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// Action is the operation a subject is attempting on a resource.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionList    Action = "list"
	ActionAssign  Action = "assign"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
)

// Confidentiality tiers, least to most restrictive.
const (
	ConfidentialityPublic     = "public"
	ConfidentialityInternal   = "internal"
	ConfidentialityRestricted = "restricted"
	ConfidentialityPrivileged = "privileged"
)

// Subject is the authenticated principal requesting an action.
type Subject struct {
	ID          string
	OrgID       string
	Roles       []string
	Permissions []string
}

// Resource is the target of the requested action.
type Resource struct {
	Type            string
	ID              string
	OrgID           string
	OwnerID         string
	Assignees       []string
	Confidentiality string
}

// Environment carries request-time facts that are not part of the
// subject or resource, such as the MFA state of the calling session.
type Environment struct {
	Timestamp   time.Time
	IP          string
	MFAVerified bool
	SessionAge  time.Duration
}

// Context is the full input to a policy evaluation.
type Context struct {
	Subject     Subject
	Resource    Resource
	Action      Action
	Environment Environment
}

// Decision is the result of evaluating a Context against a policy set.
// MatchedPolicy is empty when the default deny applied.
type Decision struct {
	Allowed       bool
	MatchedPolicy string
	Reason        string
}

// Condition is a predicate over an evaluation context. Implementations
// must be safe for concurrent use. A returned error means the condition
// could not be evaluated; how that is treated depends on the effect of
// the policy holding it.
type Condition interface {
	Match(ctx context.Context, pc *Context) (bool, error)
}

// CondFunc adapts a plain function to the Condition interface.
type CondFunc func(ctx context.Context, pc *Context) (bool, error)

func (f CondFunc) Match(ctx context.Context, pc *Context) (bool, error) {
	return f(ctx, pc)
}

// Policy is a single named rule. Priority orders policies within their
// effect class, lower values first. A nil Condition matches every
// context.
type Policy struct {
	Name        string
	Description string
	Effect      Effect
	Priority    int
	Condition   Condition
}

// Custom policy source kinds.
const (
	CustomKindExpr = "bexpr"
	CustomKindRego = "rego"
)

// CustomPolicy is the serialized form of an org-defined policy as held
// in the policy store. Source is a bexpr expression or a Rego module
// depending on Kind; Query names the Rego rule to evaluate and is
// ignored for bexpr policies. An empty OrgID makes the policy
// platform-wide, otherwise it only applies to subjects of that org.
type CustomPolicy struct {
	Name        string
	OrgID       string
	Description string
	Effect      Effect
	Priority    int
	Kind        string
	Source      string
	Query       string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
