package acl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

func TestPermission_RuleFor(t *testing.T) {
	tests := []struct {
		name   string
		perm   Permission
		action Action
		want   string
	}{
		{"all applies to read", Permission{All: Allow()}, ActionRead, "allow"},
		{"specific wins over all", Permission{All: Allow(), Delete: Deny()}, ActionDelete, "deny"},
		{"write covers create", Permission{All: Allow(), Write: Deny()}, ActionCreate, "deny"},
		{"write does not cover read", Permission{All: Allow(), Write: Deny()}, ActionRead, "allow"},
		{"specific wins over write", Permission{Write: Deny(), Update: Allow()}, ActionUpdate, "allow"},
		{"unset", Permission{}, ActionRead, "unset"},
		{"filter", Permission{Read: WhereFilter(provider.Filter{"a": 1})}, ActionRead, "filter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.perm.RuleFor(tt.action).String())
		})
	}
}

func TestACL_Evaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("nil ACL allows", func(t *testing.T) {
		var a ACL
		d := a.Evaluate(ctx, nil, false, ActionDelete)
		assert.True(t, d.Allowed)
		assert.Nil(t, d.Filter)
	})

	t.Run("outright allow wins over filters", func(t *testing.T) {
		a := ACL{
			"member": {Read: WhereFilter(provider.Filter{"ownerId": "u1"})},
			"admin":  AllowAll(),
		}
		d := a.Evaluate(ctx, []string{"member", "admin"}, true, ActionRead)
		assert.True(t, d.Allowed)
		assert.Nil(t, d.Filter)
	})

	t.Run("filters from several roles are OR-combined", func(t *testing.T) {
		a := ACL{
			"member":  {Read: WhereFilter(provider.Filter{"ownerId": "u1"})},
			Everyone: {Read: WhereFilter(provider.Filter{"public": true})},
		}
		d := a.Evaluate(ctx, []string{"member"}, true, ActionRead)
		require.True(t, d.Allowed)
		assert.Equal(t, provider.Filter{provider.KeyOr: []provider.Filter{
			{"public": true},
			{"ownerId": "u1"},
		}}, d.Filter)
	})

	t.Run("filter function sees the context", func(t *testing.T) {
		type key struct{}
		a := ACL{"member": {All: Where(func(ctx context.Context) provider.Filter {
			return provider.Filter{"ownerId": ctx.Value(key{})}
		})}}
		d := a.Evaluate(context.WithValue(ctx, key{}, "u7"), []string{"member"}, true, ActionUpdate)
		require.True(t, d.Allowed)
		assert.Equal(t, provider.Filter{"ownerId": "u7"}, d.Filter)
	})

	t.Run("empty filter matches nothing", func(t *testing.T) {
		a := ACL{"member": {Read: Where(func(context.Context) provider.Filter { return nil })}}
		d := a.Evaluate(ctx, []string{"member"}, true, ActionRead)
		assert.True(t, d.Allowed)
		assert.True(t, d.MatchNone)
		assert.Nil(t, d.Filter)

		a["auditor"] = Permission{Read: WhereFilter(provider.Filter{"status": "done"})}
		d = a.Evaluate(ctx, []string{"member", "auditor"}, true, ActionRead)
		assert.False(t, d.MatchNone)
		assert.Equal(t, provider.Filter{"status": "done"}, d.Filter)
	})

	t.Run("deny is forbidden for an authenticated caller", func(t *testing.T) {
		a := ACL{"member": ReadOnly()}
		d := a.Evaluate(ctx, []string{"member"}, true, ActionCreate)
		assert.False(t, d.Allowed)
		assert.False(t, d.Unauthenticated)
	})

	t.Run("anonymous caller without an Everyone entry", func(t *testing.T) {
		a := ACL{"member": AllowAll()}
		d := a.Evaluate(ctx, nil, false, ActionRead)
		assert.False(t, d.Allowed)
		assert.True(t, d.Unauthenticated)
	})

	t.Run("anonymous caller refused by an Everyone entry is forbidden", func(t *testing.T) {
		a := ACL{Everyone: {Read: Deny()}}
		d := a.Evaluate(ctx, nil, false, ActionRead)
		assert.False(t, d.Allowed)
		assert.False(t, d.Unauthenticated)
	})
}

func TestWhere_NilFunctionDenies(t *testing.T) {
	assert.True(t, Where(nil).Denies())
}
