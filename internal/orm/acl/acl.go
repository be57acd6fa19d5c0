// Package acl implements per-entity access control lists. An ACL maps a role
// to a Permission; each permission holds one Rule per action that either
// grants the action outright, denies it, or restricts it to the rows matching
// a filter.
package acl

import (
	"context"
	"sort"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// Everyone is the role that applies to every caller, authenticated or not.
const Everyone = "*"

// Action is the kind of access requested.
type Action int

const (
	ActionRead Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

type ruleKind int

const (
	ruleUnset ruleKind = iota
	ruleAllow
	ruleDeny
	ruleFilter
)

// FilterFunc produces a row-level filter for the caller in ctx.
type FilterFunc func(ctx context.Context) provider.Filter

// Rule is the permission for a single action. The zero Rule is unset and
// defers to the next broader rule of the permission.
type Rule struct {
	kind   ruleKind
	filter FilterFunc
}

// Allow grants the action without restriction.
func Allow() Rule { return Rule{kind: ruleAllow} }

// Deny refuses the action.
func Deny() Rule { return Rule{kind: ruleDeny} }

// Where restricts the action to rows matching the filter fn returns.
func Where(fn FilterFunc) Rule {
	if fn == nil {
		return Deny()
	}
	return Rule{kind: ruleFilter, filter: fn}
}

// WhereFilter restricts the action to rows matching f.
func WhereFilter(f provider.Filter) Rule {
	return Where(func(context.Context) provider.Filter { return f })
}

// IsSet reports whether the rule was configured.
func (r Rule) IsSet() bool { return r.kind != ruleUnset }

// Allows reports whether the rule grants the action outright.
func (r Rule) Allows() bool { return r.kind == ruleAllow }

// Denies reports whether the rule refuses the action.
func (r Rule) Denies() bool { return r.kind == ruleDeny }

// Filters reports whether the rule restricts by filter.
func (r Rule) Filters() bool { return r.kind == ruleFilter }

// Filter evaluates a filter rule. It returns nil for other rule kinds.
func (r Rule) Filter(ctx context.Context) provider.Filter {
	if r.kind != ruleFilter {
		return nil
	}
	return r.filter(ctx)
}

// String describes the rule kind.
func (r Rule) String() string {
	switch r.kind {
	case ruleAllow:
		return "allow"
	case ruleDeny:
		return "deny"
	case ruleFilter:
		return "filter"
	default:
		return "unset"
	}
}

// Permission holds the rules for one role. Specific rules win over Write,
// and Write wins over All.
type Permission struct {
	All    Rule
	Read   Rule
	Write  Rule
	Create Rule
	Update Rule
	Delete Rule
}

// AllowAll returns a permission granting every action.
func AllowAll() Permission {
	return Permission{All: Allow()}
}

// ReadOnly returns a permission granting reads and denying writes.
func ReadOnly() Permission {
	return Permission{Read: Allow(), Write: Deny()}
}

// RuleFor returns the effective rule for action a.
func (p Permission) RuleFor(a Action) Rule {
	var specific Rule
	switch a {
	case ActionRead:
		specific = p.Read
	case ActionCreate:
		specific = p.Create
	case ActionUpdate:
		specific = p.Update
	case ActionDelete:
		specific = p.Delete
	}
	if specific.IsSet() {
		return specific
	}
	if a != ActionRead && p.Write.IsSet() {
		return p.Write
	}
	return p.All
}

// ACL maps role names to permissions.
type ACL map[string]Permission

// Roles returns the configured roles in sorted order.
func (a ACL) Roles() []string {
	roles := make([]string, 0, len(a))
	for role := range a {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Decision is the outcome of evaluating an ACL.
type Decision struct {
	// Allowed is true when at least one role grants the action.
	Allowed bool
	// Filter restricts the action to matching rows. It is nil when a role
	// granted the action outright.
	Filter provider.Filter
	// MatchNone is set when every granting role restricted the action to
	// an empty filter. Such a grant reaches no rows.
	MatchNone bool
	// Unauthenticated is set on a refusal for a caller without identity
	// when no Everyone entry exists.
	Unauthenticated bool
}

// Evaluate decides whether a caller holding roles may perform action.
// Grants from every matching role (and Everyone) are combined: an outright
// allow wins, otherwise the filters of all filtering roles are OR-combined.
// A nil ACL allows everything.
func (a ACL) Evaluate(ctx context.Context, roles []string, authenticated bool, action Action) Decision {
	if a == nil {
		return Decision{Allowed: true}
	}

	candidates := append([]string{Everyone}, roles...)
	seen := make(map[string]bool, len(candidates))
	var filters []provider.Filter
	granted := false

	for _, role := range candidates {
		if seen[role] {
			continue
		}
		seen[role] = true

		perm, ok := a[role]
		if !ok {
			continue
		}
		rule := perm.RuleFor(action)
		switch {
		case rule.Allows():
			return Decision{Allowed: true}
		case rule.Filters():
			// an empty filter matches no rows
			granted = true
			if f := rule.Filter(ctx); len(f) > 0 {
				filters = append(filters, f)
			}
		}
	}

	if granted {
		if len(filters) == 0 {
			return Decision{Allowed: true, MatchNone: true}
		}
		return Decision{Allowed: true, Filter: provider.Or(filters...)}
	}

	_, hasEveryone := a[Everyone]
	return Decision{Unauthenticated: !authenticated && !hasEveryone}
}
