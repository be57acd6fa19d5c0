package relationships

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/gqlmeta/internal/orm/dataloader"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

type rowsProvider struct {
	pk       string
	rows     []provider.Record
	findMany atomic.Int32
	find     atomic.Int32
}

func (p *rowsProvider) Find(ctx context.Context, filter provider.Filter, page *provider.Pagination) ([]provider.Record, error) {
	p.find.Add(1)
	var out []provider.Record
	for _, r := range p.rows {
		ok, err := provider.Matches(r, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *rowsProvider) FindMany(ctx context.Context, ids []any) ([]provider.Record, error) {
	p.findMany.Add(1)
	return p.Find(ctx, provider.Filter{p.pk + "_in": ids}, nil)
}

type fixture struct {
	reg   *schema.Registry
	user  *schema.Entity
	task  *schema.Entity
	tag   *schema.Entity
	users *rowsProvider
	tasks *rowsProvider
	tags  *rowsProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reg: schema.NewRegistry(),
		users: &rowsProvider{pk: "user_id", rows: []provider.Record{
			{"user_id": "1", "name": "Ada"},
			{"user_id": "2", "name": "Linus"},
		}},
		tasks: &rowsProvider{pk: "id", rows: []provider.Record{
			{"id": "t1", "owner": "1", "tagIds": []any{"a", "b"}},
			{"id": "t2", "owner": "1"},
			{"id": "t3", "owner": "2"},
		}},
		tags: &rowsProvider{pk: "id", rows: []provider.Record{
			{"id": "a", "taskIds": []any{"t1"}},
			{"id": "b", "taskIds": []any{"t1", "t3"}},
		}},
	}

	f.user = &schema.Entity{Name: "User", PrimaryKey: "userId", Provider: f.users, Fields: []*schema.Field{
		{Name: "userId", Column: "user_id", Type: schema.TypeID},
		{Name: "name"},
		{Name: "tasks", Relation: schema.RelationOneToMany, Target: schema.To("Task"), RelatedField: "userId"},
	}}
	f.task = &schema.Entity{Name: "Task", Provider: f.tasks, Fields: []*schema.Field{
		{Name: "id", Type: schema.TypeID},
		{Name: "userId", Column: "owner", Type: schema.TypeID},
		{Name: "tagIds", Type: schema.TypeID, List: true},
		{Name: "user", Relation: schema.RelationManyToOne, Target: schema.ToFunc(func() *schema.Entity { return f.user }), IDField: "userId"},
		{Name: "tags", Relation: schema.RelationManyToMany, Target: schema.To("Tag"), IDField: "tagIds"},
		{Name: "labels", Relation: schema.RelationManyToMany, Target: schema.To("Tag"), RelatedField: "taskIds"},
	}}
	f.tag = &schema.Entity{Name: "Tag", Provider: f.tags, Fields: []*schema.Field{
		{Name: "id", Type: schema.TypeID},
		{Name: "taskIds", Type: schema.TypeID, List: true},
	}}

	require.NoError(t, f.reg.RegisterEntity(f.user))
	require.NoError(t, f.reg.RegisterEntity(f.task))
	require.NoError(t, f.reg.RegisterEntity(f.tag))
	require.NoError(t, f.reg.Finalize())
	return f
}

func field(e *schema.Entity, name string) *schema.Field {
	f, _ := e.Field(name)
	return f
}

func TestResolver_ManyToOne_Batches(t *testing.T) {
	f := newFixture(t)
	r := NewResolver(nil, nil)
	ctx := dataloader.WithLoader(context.Background(), dataloader.New())

	userField := field(f.task, "user")
	t1 := r.ResolveThunk(ctx, f.task, userField, provider.Record{"id": "t1", "userId": "1"})
	t2 := r.ResolveThunk(ctx, f.task, userField, provider.Record{"id": "t2", "userId": "2"})
	t3 := r.ResolveThunk(ctx, f.task, userField, provider.Record{"id": "t3"})

	v1, err := t1()
	require.NoError(t, err)
	v2, err := t2()
	require.NoError(t, err)
	v3, err := t3()
	require.NoError(t, err)

	assert.Equal(t, "Ada", v1.(provider.Record)["name"])
	assert.Equal(t, "Linus", v2.(provider.Record)["name"])
	assert.Nil(t, v3)
	assert.Equal(t, int32(1), f.users.findMany.Load())
}

func TestResolver_OneToMany(t *testing.T) {
	f := newFixture(t)
	r := NewResolver(nil, nil)
	ctx := dataloader.WithLoader(context.Background(), dataloader.New())

	v, err := r.Resolve(ctx, f.user, field(f.user, "tasks"), provider.Record{"userId": "1"})
	require.NoError(t, err)
	rows := v.([]provider.Record)
	require.Len(t, rows, 2)
	assert.Equal(t, "t1", rows[0]["id"])
	assert.Equal(t, "t2", rows[1]["id"])

	v, err = r.Resolve(ctx, f.user, field(f.user, "tasks"), provider.Record{})
	require.NoError(t, err)
	assert.Equal(t, []provider.Record{}, v)
}

func TestResolver_ManyToMany(t *testing.T) {
	f := newFixture(t)
	r := NewResolver(nil, nil)
	ctx := dataloader.WithLoader(context.Background(), dataloader.New())

	t.Run("ids on the source", func(t *testing.T) {
		v, err := r.Resolve(ctx, f.task, field(f.task, "tags"), provider.Record{"id": "t1", "tagIds": []any{"a", "b"}})
		require.NoError(t, err)
		assert.Len(t, v.([]provider.Record), 2)
	})

	t.Run("ids on the target", func(t *testing.T) {
		v, err := r.Resolve(ctx, f.task, field(f.task, "labels"), provider.Record{"id": "t3"})
		require.NoError(t, err)
		rows := v.([]provider.Record)
		require.Len(t, rows, 1)
		assert.Equal(t, "b", rows[0]["id"])
	})
}

func TestResolver_Reader(t *testing.T) {
	f := newFixture(t)
	denied := errors.New("forbidden")
	r := NewResolver(func(target *schema.Entity) Reader {
		if target.Name == "User" {
			return ReaderFunc(func(ctx context.Context, rows []provider.Record) ([]provider.Record, error) {
				return nil, denied
			})
		}
		return ReaderFunc(func(ctx context.Context, rows []provider.Record) ([]provider.Record, error) {
			out := make([]provider.Record, 0, len(rows))
			for _, row := range rows {
				out = append(out, provider.Record{"taskId": row["id"]})
			}
			return out, nil
		})
	}, nil)
	ctx := dataloader.WithLoader(context.Background(), dataloader.New())

	_, err := r.Resolve(ctx, f.task, field(f.task, "user"), provider.Record{"userId": "1"})
	assert.ErrorIs(t, err, denied)

	v, err := r.Resolve(ctx, f.user, field(f.user, "tasks"), provider.Record{"userId": "2"})
	require.NoError(t, err)
	assert.Equal(t, []provider.Record{{"taskId": "t3"}}, v)
}

func TestResolver_UnresolvedTarget(t *testing.T) {
	owner := &schema.Entity{Name: "Task"}
	f := &schema.Field{Name: "user", Relation: schema.RelationManyToOne, Target: schema.To("User"), IDField: "userId"}

	_, err := NewResolver(nil, nil).Resolve(context.Background(), owner, f, provider.Record{"userId": "1"})
	assert.ErrorIs(t, err, ErrUnresolvedTarget)

	reg := schema.NewRegistry()
	_, err = ResolveTarget(reg, owner, f)
	assert.True(t, schema.IsUnresolvedRelationship(err))
}
