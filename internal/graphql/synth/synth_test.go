package synth

import (
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider/memory"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

var status = &schema.EnumType{Name: "Status", Values: []string{"OPEN", "DONE"}}

func entities(t *testing.T) (*schema.Entity, *schema.Entity) {
	t.Helper()
	reg := schema.NewRegistry()
	user := &schema.Entity{Name: "User", Provider: memory.New("id"), Fields: []*schema.Field{
		{Name: "id", Type: schema.TypeID},
		{Name: "name"},
		{Name: "tasks", Relation: schema.RelationOneToMany, Target: schema.To("Task"), RelatedField: "userId"},
	}}
	task := &schema.Entity{Name: "Task", Provider: memory.New("id"), Fields: []*schema.Field{
		{Name: "id", Type: schema.TypeID},
		{Name: "title"},
		{Name: "notes", Nullable: true},
		{Name: "priority", Type: schema.TypeInt},
		{Name: "done", Type: schema.TypeBoolean},
		{Name: "status", Type: schema.TypeEnum, Enum: status},
		{Name: "labels", List: true},
		{Name: "meta", Type: schema.TypeJSON, Nullable: true},
		{Name: "secret", ExcludeFromFilterType: true},
		{Name: "slug", ReadOnly: true, ExcludeFromInputTypes: false},
		{Name: "internal", ExcludeFromInputTypes: true},
		{Name: "userId", Type: schema.TypeID},
		{Name: "user", Relation: schema.RelationManyToOne, Target: schema.To("User"), IDField: "userId"},
	}}
	require.NoError(t, reg.RegisterEntity(user))
	require.NoError(t, reg.RegisterEntity(task))
	require.NoError(t, reg.Finalize())
	return user, task
}

func fieldTypes(in *graphql.InputObject) map[string]string {
	out := map[string]string{}
	for name, f := range in.Fields() {
		out[name] = f.Type.String()
	}
	return out
}

func TestListFilter(t *testing.T) {
	user, task := entities(t)
	types, err := New([]*schema.Entity{user, task}, Options{}, nil)
	require.NoError(t, err)

	filter := types.ListFilter("Task")
	assert.Equal(t, "TasksListFilter", filter.Name())
	fields := fieldTypes(filter)

	assert.Equal(t, "[TasksListFilter!]", fields["_and"])
	assert.Equal(t, "[TasksListFilter!]", fields["_or"])
	assert.Equal(t, "String", fields["title"])
	assert.Equal(t, "String", fields["title_like"])
	assert.Equal(t, "[String!]", fields["title_in"])
	assert.Equal(t, "Boolean", fields["title_null"])
	assert.Equal(t, "Int", fields["priority_gte"])
	assert.Equal(t, "Status", fields["status"])
	assert.Equal(t, "[Status!]", fields["status_nin"])
	assert.Equal(t, "UserRelationFilter", fields["user"])
	assert.Equal(t, "String", fields["labels"])
	assert.Equal(t, "Boolean", fields["meta_null"])

	assert.NotContains(t, fields, "title_ilike")
	assert.NotContains(t, fields, "done_gt")
	assert.NotContains(t, fields, "status_gt")
	assert.NotContains(t, fields, "labels_in")
	assert.NotContains(t, fields, "meta")
	assert.NotContains(t, fields, "secret")
	assert.NotContains(t, fields, "secret_in")
	assert.NotContains(t, fields, "tasks")

	rel := fieldTypes(filter.Fields()["user"].Type.(*graphql.InputObject))
	assert.Equal(t, map[string]string{"id": "ID", "id_in": "[ID!]"}, rel)

	assert.NotContains(t, fieldTypes(types.ListFilter("User")), "tasks")
}

func TestListFilter_CaseInsensitive(t *testing.T) {
	user, task := entities(t)
	types, err := New([]*schema.Entity{user, task}, Options{CaseInsensitiveFilters: true}, nil)
	require.NoError(t, err)

	fields := fieldTypes(types.ListFilter("Task"))
	assert.Contains(t, fields, "title_ilike")
	assert.NotContains(t, fields, "title_like")
}

func TestInputs(t *testing.T) {
	user, task := entities(t)
	types, err := New([]*schema.Entity{user, task}, Options{}, nil)
	require.NoError(t, err)

	insert := fieldTypes(types.InsertInput("Task"))
	assert.Equal(t, map[string]string{
		"title":    "String!",
		"notes":    "String",
		"priority": "Int!",
		"done":     "Boolean!",
		"status":   "Status!",
		"labels":   "[String!]!",
		"meta":     "JSON",
		"secret":   "String!",
		"userId":   "ID",
		"user":     "UserRelationInput",
	}, insert)

	update := fieldTypes(types.UpdateInput("Task"))
	assert.Equal(t, "ID", update["id"])
	assert.Equal(t, "Int", update["priority"])
	assert.NotContains(t, update, "slug")
	assert.NotContains(t, update, "internal")

	relation := fieldTypes(types.InsertInput("Task").Fields()["user"].Type.(*graphql.InputObject))
	assert.Equal(t, map[string]string{"id": "ID", "create": "UserInsertInput"}, relation)

	// to-many relationships are never inputs
	assert.NotContains(t, fieldTypes(types.InsertInput("User")), "tasks")
}

func TestWritableFields_ReadOnlyWins(t *testing.T) {
	e := &schema.Entity{Name: "Thing", PrimaryKey: "id", Fields: []*schema.Field{
		{Name: "id", Type: schema.TypeID},
		{Name: "a", ReadOnly: true, AdminReadOnly: false},
		{Name: "b", AdminReadOnly: true},
	}}
	var names []string
	for _, f := range WritableFields(e) {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"b"}, names)
	assert.False(t, Creatable(e))
}

func TestObject(t *testing.T) {
	user, task := entities(t)
	types, err := New([]*schema.Entity{user, task}, Options{}, func(owner *schema.Entity, f *schema.Field) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (interface{}, error) { return nil, nil }
	})
	require.NoError(t, err)

	fields := types.Object("Task").Fields()
	assert.Equal(t, "ID!", fields["id"].Type.String())
	assert.Equal(t, "String", fields["notes"].Type.String())
	assert.Equal(t, "[String!]!", fields["labels"].Type.String())
	assert.Equal(t, "User", fields["user"].Type.String())
	assert.NotNil(t, fields["user"].Resolve)

	assert.Equal(t, "[Task!]!", types.Object("User").Fields()["tasks"].Type.String())
	assert.Equal(t, "TasksPaginationInput", types.Pagination("Task").Name())
	assert.NotNil(t, types.Enum("Status"))
}

func TestEnums(t *testing.T) {
	a := &schema.Entity{Name: "A", Fields: []*schema.Field{{Name: "state", Type: schema.TypeEnum, Enum: status}}}
	b := &schema.Entity{Name: "B", Fields: []*schema.Field{{Name: "state", Type: schema.TypeEnum,
		Enum: &schema.EnumType{Name: "Status", Values: []string{"DONE", "OPEN"}}}}}

	enums, err := CollectEnums([]*schema.Entity{a, b})
	require.NoError(t, err)
	assert.Len(t, enums, 1)

	c := &schema.Entity{Name: "C", Fields: []*schema.Field{{Name: "state", Type: schema.TypeEnum,
		Enum: &schema.EnumType{Name: "Status", Values: []string{"OPEN", "CLOSED"}}}}}
	_, err = CollectEnums([]*schema.Entity{a, b, c})
	require.Error(t, err)
	assert.True(t, IsConflictingEnum(err))

	var ce *ConflictingEnumDefinitionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Status", ce.Enum)
	assert.Equal(t, []string{"A.state", "B.state", "C.state"}, ce.Fields)
}

func TestNew_UnresolvedTarget(t *testing.T) {
	task := &schema.Entity{Name: "Task", Fields: []*schema.Field{
		{Name: "id", Type: schema.TypeID},
		{Name: "user", Relation: schema.RelationManyToOne, Target: schema.To("User"), IDField: "id"},
	}}
	_, err := New([]*schema.Entity{task}, Options{}, nil)
	assert.True(t, schema.IsUnresolvedRelationship(err))
}
