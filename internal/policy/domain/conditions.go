package domain

import (
	"context"
	"time"
)

// SameOrg matches when the subject and resource carry the same
// non-empty organization id. Empty org ids never compare equal.
type SameOrg struct{}

func (SameOrg) Match(_ context.Context, pc *Context) (bool, error) {
	return pc.Subject.OrgID != "" && pc.Subject.OrgID == pc.Resource.OrgID, nil
}

// OrgIs matches when the subject belongs to the given organization.
type OrgIs string

func (o OrgIs) Match(_ context.Context, pc *Context) (bool, error) {
	return string(o) != "" && pc.Subject.OrgID == string(o), nil
}

// RoleIn matches when the subject holds any of the listed roles.
type RoleIn []string

func (r RoleIn) Match(_ context.Context, pc *Context) (bool, error) {
	for _, want := range r {
		for _, have := range pc.Subject.Roles {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// PermissionIn matches when the subject holds any of the listed
// permissions.
type PermissionIn []string

func (p PermissionIn) Match(_ context.Context, pc *Context) (bool, error) {
	for _, want := range p {
		for _, have := range pc.Subject.Permissions {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// ActionIn matches when the requested action is one of the listed
// actions.
type ActionIn []Action

func (a ActionIn) Match(_ context.Context, pc *Context) (bool, error) {
	for _, act := range a {
		if pc.Action == act {
			return true, nil
		}
	}
	return false, nil
}

// ResourceTypeIn matches when the resource type is one of the listed
// types.
type ResourceTypeIn []string

func (r ResourceTypeIn) Match(_ context.Context, pc *Context) (bool, error) {
	for _, typ := range r {
		if pc.Resource.Type == typ {
			return true, nil
		}
	}
	return false, nil
}

// ConfidentialityIn matches when the resource confidentiality tier is
// one of the listed tiers.
type ConfidentialityIn []string

func (c ConfidentialityIn) Match(_ context.Context, pc *Context) (bool, error) {
	for _, tier := range c {
		if pc.Resource.Confidentiality == tier {
			return true, nil
		}
	}
	return false, nil
}

// Owner matches when the subject is the resource owner.
type Owner struct{}

func (Owner) Match(_ context.Context, pc *Context) (bool, error) {
	return pc.Subject.ID != "" && pc.Subject.ID == pc.Resource.OwnerID, nil
}

// Assignee matches when the subject appears in the resource assignee
// list.
type Assignee struct{}

func (Assignee) Match(_ context.Context, pc *Context) (bool, error) {
	if pc.Subject.ID == "" {
		return false, nil
	}
	for _, id := range pc.Resource.Assignees {
		if id == pc.Subject.ID {
			return true, nil
		}
	}
	return false, nil
}

// MFAVerified matches when the calling session has satisfied MFA.
type MFAVerified struct{}

func (MFAVerified) Match(_ context.Context, pc *Context) (bool, error) {
	return pc.Environment.MFAVerified, nil
}

// MaxSessionAge matches when the calling session is no older than the
// given duration. A zero or negative limit never matches.
type MaxSessionAge time.Duration

func (m MaxSessionAge) Match(_ context.Context, pc *Context) (bool, error) {
	if m <= 0 {
		return false, nil
	}
	return pc.Environment.SessionAge <= time.Duration(m), nil
}

// All matches when every inner condition matches. An empty All matches.
// Evaluation stops at the first non-match or error.
type All []Condition

func (a All) Match(ctx context.Context, pc *Context) (bool, error) {
	for _, c := range a {
		ok, err := c.Match(ctx, pc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Any matches when at least one inner condition matches. An empty Any
// never matches. Evaluation stops at the first match or error.
type Any []Condition

func (a Any) Match(ctx context.Context, pc *Context) (bool, error) {
	for _, c := range a {
		ok, err := c.Match(ctx, pc)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Not inverts the inner condition. Errors pass through uninverted.
type Not struct {
	C Condition
}

func (n Not) Match(ctx context.Context, pc *Context) (bool, error) {
	ok, err := n.C.Match(ctx, pc)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
