package declare

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	webcontext "github.com/conduit-lang/gqlmeta/internal/web/context"
)

// Filter placeholders resolved per request
const (
	PlaceholderUser  = "$user"
	PlaceholderClaim = "$claim."
)

// RuleDecl is "allow", "deny" or a mapping {where: filter}
type RuleDecl struct {
	Effect string
	Where  provider.Filter
}

// UnmarshalYAML accepts the scalar and mapping forms
func (r *RuleDecl) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Value {
		case "allow", "deny":
			r.Effect = node.Value
			return nil
		}
		return fmt.Errorf("line %d: rule must be allow, deny or {where: ...}, got %q", node.Line, node.Value)
	case yaml.MappingNode:
		var raw struct {
			Where map[string]any `yaml:"where"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw.Where == nil {
			return fmt.Errorf("line %d: rule mapping requires where", node.Line)
		}
		r.Effect = "where"
		r.Where = provider.Filter(raw.Where)
		return nil
	}
	return fmt.Errorf("line %d: invalid rule", node.Line)
}

// PermissionDecl is the permission of one role. The scalar forms are
// "allow", "deny" and "read_only"; the mapping form sets rules per action.
type PermissionDecl struct {
	All    *RuleDecl `yaml:"all"`
	Read   *RuleDecl `yaml:"read"`
	Write  *RuleDecl `yaml:"write"`
	Create *RuleDecl `yaml:"create"`
	Update *RuleDecl `yaml:"update"`
	Delete *RuleDecl `yaml:"delete"`
}

// UnmarshalYAML accepts the scalar and mapping forms
func (p *PermissionDecl) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		switch node.Value {
		case "allow", "deny":
			p.All = &RuleDecl{Effect: node.Value}
		case "read_only":
			p.Read = &RuleDecl{Effect: "allow"}
			p.Write = &RuleDecl{Effect: "deny"}
		default:
			return fmt.Errorf("line %d: permission must be allow, deny, read_only or a mapping, got %q", node.Line, node.Value)
		}
		return nil
	}

	type plain PermissionDecl
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*p = PermissionDecl(decoded)
	return nil
}

// buildACL converts the declared permissions. pk is the primary key column,
// used to build a filter matching nothing when a placeholder is unresolved.
func buildACL(decls map[string]PermissionDecl, pk string) acl.ACL {
	if len(decls) == 0 {
		return nil
	}
	out := make(acl.ACL, len(decls))
	for role, decl := range decls {
		out[role] = acl.Permission{
			All:    buildRule(decl.All, pk),
			Read:   buildRule(decl.Read, pk),
			Write:  buildRule(decl.Write, pk),
			Create: buildRule(decl.Create, pk),
			Update: buildRule(decl.Update, pk),
			Delete: buildRule(decl.Delete, pk),
		}
	}
	return out
}

func buildRule(decl *RuleDecl, pk string) acl.Rule {
	if decl == nil {
		return acl.Rule{}
	}
	switch decl.Effect {
	case "allow":
		return acl.Allow()
	case "deny":
		return acl.Deny()
	}

	where := decl.Where
	if !hasPlaceholder(where) {
		return acl.WhereFilter(where)
	}
	return acl.Where(func(ctx context.Context) provider.Filter {
		resolved, ok := resolve(ctx, map[string]any(where))
		if !ok {
			return provider.Filter{pk + provider.In.Suffix(): []any{}}
		}
		return provider.Filter(resolved.(map[string]any))
	})
}

func hasPlaceholder(v any) bool {
	switch v := v.(type) {
	case string:
		return v == PlaceholderUser || strings.HasPrefix(v, PlaceholderClaim)
	case provider.Filter:
		return hasPlaceholder(map[string]any(v))
	case map[string]any:
		for _, item := range v {
			if hasPlaceholder(item) {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if hasPlaceholder(item) {
				return true
			}
		}
	}
	return false
}

// resolve substitutes placeholders from the caller identity. It reports
// false when any placeholder has no value.
func resolve(ctx context.Context, v any) (any, bool) {
	switch v := v.(type) {
	case string:
		switch {
		case v == PlaceholderUser:
			user := webcontext.GetCurrentUser(ctx)
			return user, user != ""
		case strings.HasPrefix(v, PlaceholderClaim):
			claim, ok := webcontext.GetClaim(ctx, strings.TrimPrefix(v, PlaceholderClaim))
			return claim, ok && claim != nil
		}
		return v, true
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			resolved, ok := resolve(ctx, item)
			if !ok {
				return nil, false
			}
			out[key] = resolved
		}
		return out, true
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, ok := resolve(ctx, item)
			if !ok {
				return nil, false
			}
			out[i] = resolved
		}
		return out, true
	}
	return v, true
}
