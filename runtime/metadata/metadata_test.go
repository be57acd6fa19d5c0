package metadata

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/memory"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

func registry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	status := &schema.EnumType{Name: "Status", Values: []string{"OPEN", "DONE"}}

	require.NoError(t, reg.RegisterEntity(&schema.Entity{Name: "User", PrimaryKey: "userId", Provider: memory.New("userId"), Fields: []*schema.Field{
		{Name: "userId", Type: schema.TypeID},
		{Name: "name", AdminReadOnly: true},
		{Name: "tasks", Relation: schema.RelationOneToMany, Target: schema.To("Task"), RelatedField: "userId"},
		{Name: "manager", Relation: schema.RelationManyToOne, Target: schema.To("User"), IDField: "managerId"},
		{Name: "managerId", Type: schema.TypeID, Nullable: true},
	}}))
	require.NoError(t, reg.RegisterEntity(&schema.Entity{Name: "Task", PrimaryKey: "taskId", Fields: []*schema.Field{
		{Name: "taskId", Type: schema.TypeID, Column: "task_id"},
		{Name: "title"},
		{Name: "status", Type: schema.TypeEnum, Enum: status},
		{Name: "slug", ReadOnly: true},
		{Name: "notes", ExcludeFromFilterType: true, Nullable: true},
		{Name: "userId", Type: schema.TypeID},
		{Name: "user", Relation: schema.RelationManyToOne, Target: schema.To("User"), IDField: "userId"},
	}}))
	require.NoError(t, reg.RegisterACL("User", acl.ACL{"admin": acl.AllowAll()}))
	require.NoError(t, reg.RegisterHook("Task", hooks.BeforeRead, func(_ context.Context, p *hooks.Params) (*hooks.Params, error) {
		return p, nil
	}))
	require.NoError(t, reg.Finalize())
	return reg
}

func TestCollect(t *testing.T) {
	reg := registry(t)
	meta := Collect(reg.Entities(), func(e *schema.Entity) []string {
		return []string{schema.LowerFirst(e.Name)}
	})

	require.Len(t, meta.Entities, 2)
	assert.Equal(t, Version, meta.Version)
	assert.Equal(t, []EnumMetadata{{Name: "Status", Values: []string{"OPEN", "DONE"}}}, meta.Enums)

	user := meta.Entities[0]
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, "Users", user.Plural)
	assert.Equal(t, []string{"user"}, user.Operations)
	assert.Equal(t, []string{"admin"}, user.Roles)
	assert.Contains(t, user.Capabilities, "createOne")

	task := meta.Entities[1]
	assert.Equal(t, []string{"BEFORE_READ"}, task.Hooks)
	assert.Empty(t, task.Capabilities)

	byName := func(fields []FieldMetadata) map[string]FieldMetadata {
		out := map[string]FieldMetadata{}
		for _, f := range fields {
			out[f.Name] = f
		}
		return out
	}

	fields := byName(task.Fields)
	assert.Equal(t, "task_id", fields["taskId"].Column)
	assert.False(t, fields["taskId"].Writable)
	assert.True(t, fields["title"].Writable)
	assert.True(t, fields["title"].Filterable)
	assert.Equal(t, "Status", fields["status"].Type)
	assert.True(t, fields["slug"].ReadOnly)
	assert.False(t, fields["slug"].Writable)
	assert.False(t, fields["notes"].Filterable)
	assert.True(t, fields["notes"].Writable)

	rel := fields["user"]
	assert.Equal(t, "User", rel.Type)
	assert.True(t, rel.Nullable)
	assert.True(t, rel.Writable)
	assert.Equal(t, &RelationshipMetadata{Kind: "MANY_TO_ONE", Target: "User", IDField: "userId"}, rel.Relationship)

	userFields := byName(user.Fields)
	assert.True(t, userFields["name"].AdminReadOnly)
	assert.True(t, userFields["name"].Writable)
	assert.False(t, userFields["tasks"].Writable)
	assert.False(t, userFields["tasks"].Filterable)
	assert.Equal(t, "ONE_TO_MANY", userFields["tasks"].Relationship.Kind)
}

func TestIndex(t *testing.T) {
	reg := registry(t)
	data, err := json.Marshal(Collect(reg.Entities(), nil))
	require.NoError(t, err)

	idx, err := Load(data)
	require.NoError(t, err)

	task, err := idx.Entity("Task")
	require.NoError(t, err)
	assert.Equal(t, "taskId", task.PrimaryKey)

	_, err = idx.Entity("Missing")
	assert.Error(t, err)

	f, err := idx.Field("Task", "title")
	require.NoError(t, err)
	assert.Equal(t, "String", f.Type)
	_, err = idx.Field("Task", "missing")
	assert.Error(t, err)

	refs := idx.ReferencedBy("User")
	require.Len(t, refs, 2)
	assert.Equal(t, "User", refs[0].SourceEntity)
	assert.Equal(t, "manager", refs[0].Field)
	assert.Equal(t, "Task", refs[1].SourceEntity)
	assert.Empty(t, idx.ReferencedBy("Nobody"))
}

func TestDependencies(t *testing.T) {
	reg := registry(t)
	idx := NewIndex(Collect(reg.Entities(), nil))

	t.Run("forward", func(t *testing.T) {
		g, err := idx.Dependencies("Task", DependencyOptions{})
		require.NoError(t, err)
		assert.Contains(t, g.Nodes, "User")
		assert.Len(t, g.Nodes, 2)
	})

	t.Run("reverse limited", func(t *testing.T) {
		g, err := idx.Dependencies("User", DependencyOptions{Reverse: true, Kinds: []string{"MANY_TO_ONE"}})
		require.NoError(t, err)
		for _, e := range g.Edges {
			assert.Equal(t, "MANY_TO_ONE", e.Relationship)
			assert.Equal(t, "User", e.To)
		}
		assert.Contains(t, g.Nodes, "Task")
	})

	t.Run("cached", func(t *testing.T) {
		a, err := idx.Dependencies("Task", DependencyOptions{Depth: 1})
		require.NoError(t, err)
		b, err := idx.Dependencies("Task", DependencyOptions{Depth: 1})
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := idx.Dependencies("Missing", DependencyOptions{})
		assert.Error(t, err)
	})

	t.Run("cycles", func(t *testing.T) {
		cycles := idx.Metadata().Dependencies.DetectCycles()
		assert.Contains(t, cycles, []string{"User", "User"})
		assert.Contains(t, cycles, []string{"Task", "User", "Task"})
	})
}
