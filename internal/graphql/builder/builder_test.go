package builder

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/crud"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/memory"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
	webcontext "github.com/conduit-lang/gqlmeta/internal/web/context"
)

// finder only implements Find
type finder struct {
	rows []provider.Record
}

func (f *finder) Find(_ context.Context, filter provider.Filter, _ *provider.Pagination) ([]provider.Record, error) {
	var out []provider.Record
	for _, r := range f.rows {
		if len(filter) > 0 {
			ok, err := provider.Matches(r, filter)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// oneFinder only implements FindOne
type oneFinder struct {
	rows map[string]provider.Record
}

func (f *oneFinder) FindOne(_ context.Context, id any) (provider.Record, error) {
	rec, ok := f.rows[provider.KeyOf(id)]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

// bulkDeleter only implements DeleteMany
type bulkDeleter struct {
	calls [][]any
}

func (d *bulkDeleter) DeleteMany(_ context.Context, ids []any) (bool, error) {
	d.calls = append(d.calls, ids)
	return true, nil
}

func as(user string, roles ...string) context.Context {
	ctx := webcontext.SetCurrentUser(context.Background(), user)
	return webcontext.SetUserRoles(ctx, roles)
}

func execute(t *testing.T, a *Artifact, ctx context.Context, query string) string {
	t.Helper()
	result := a.Execute(ctx, query, nil, "")
	require.Empty(t, result.Errors)
	data, err := json.Marshal(result.Data)
	require.NoError(t, err)
	return string(data)
}

func taskRegistry(t *testing.T) (*schema.Registry, *memory.Store, *memory.Store) {
	t.Helper()
	users := memory.New("id", memory.WithRows(
		provider.Record{"id": "1", "name": "Ada"},
		provider.Record{"id": "2", "name": "Linus"},
	))
	tasks := memory.New("task_id", memory.WithRows(
		provider.Record{"task_id": "t1", "title": "write docs", "status": "done", "owner_id": "1"},
		provider.Record{"task_id": "t2", "title": "fix bug", "status": "open", "owner_id": "1"},
		provider.Record{"task_id": "t3", "title": "review", "status": "done", "owner_id": "2"},
		provider.Record{"task_id": "t4", "title": "deploy", "status": "done", "owner_id": "1"},
	))

	reg := schema.NewRegistry()
	require.NoError(t, reg.RegisterEntity(&schema.Entity{Name: "User", Provider: users, Fields: []*schema.Field{
		{Name: "id", Type: schema.TypeID},
		{Name: "name"},
	}}))
	require.NoError(t, reg.RegisterEntity(&schema.Entity{Name: "Task", PrimaryKey: "taskId", Provider: tasks, Fields: []*schema.Field{
		{Name: "taskId", Column: "task_id", Type: schema.TypeID},
		{Name: "title"},
		{Name: "status"},
		{Name: "userId", Column: "owner_id", Type: schema.TypeID},
		{Name: "user", Relation: schema.RelationManyToOne, Target: schema.To("User"), IDField: "userId"},
	}}))
	return reg, users, tasks
}

func TestBuild_FindWithHook(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.RegisterEntity(&schema.Entity{
		Name:     "User",
		Provider: &finder{rows: []provider.Record{{"id": "1", "name": "Test User"}}},
		Fields: []*schema.Field{
			{Name: "id", Type: schema.TypeID},
			{Name: "name"},
		},
	}))

	invoked := 0
	require.NoError(t, reg.RegisterHook("User", hooks.BeforeRead, func(_ context.Context, p *hooks.Params) (*hooks.Params, error) {
		invoked++
		return p, nil
	}))

	a, err := Build(context.Background(), reg)
	require.NoError(t, err)

	got := execute(t, a, context.Background(), `{ users { id name } }`)
	assert.JSONEq(t, `{"users":[{"id":"1","name":"Test User"}]}`, got)
	assert.Equal(t, 1, invoked)
}

func TestBuild_RelationThroughExcludedEntity(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.RegisterEntity(&schema.Entity{
		Name:                         "User",
		PrimaryKey:                   "userId",
		ExcludeFromBuiltInOperations: true,
		Provider:                     &oneFinder{rows: map[string]provider.Record{"2": {"userId": "2"}}},
		Fields:                       []*schema.Field{{Name: "userId", Type: schema.TypeID}},
	}))
	require.NoError(t, reg.RegisterEntity(&schema.Entity{
		Name:       "Task",
		PrimaryKey: "taskId",
		Provider:   &oneFinder{rows: map[string]provider.Record{"1": {"taskId": "1", "userId": "2"}}},
		Fields: []*schema.Field{
			{Name: "taskId", Type: schema.TypeID},
			{Name: "userId", Type: schema.TypeID},
			{Name: "user", Relation: schema.RelationManyToOne, Target: schema.To("User"), IDField: "userId"},
		},
	}))

	a, err := Build(context.Background(), reg)
	require.NoError(t, err)

	assert.Equal(t, []string{"task"}, a.Operations["Task"])
	assert.NotContains(t, a.Operations, "User")

	got := execute(t, a, context.Background(), `{ task(id: "1") { taskId user { userId } } }`)
	assert.JSONEq(t, `{"task":{"taskId":"1","user":{"userId":"2"}}}`, got)

	got = execute(t, a, context.Background(), `{ task(id: "9") { taskId } }`)
	assert.JSONEq(t, `{"task":null}`, got)
}

func TestBuild_InsertInputMatchesMetadata(t *testing.T) {
	reg, _, _ := taskRegistry(t)
	a, err := Build(context.Background(), reg)
	require.NoError(t, err)

	var inputFields []string
	for name := range a.Types.InsertInput("Task").Fields() {
		inputFields = append(inputFields, name)
	}
	sort.Strings(inputFields)

	var writable []string
	for _, e := range a.Metadata.Entities {
		if e.Name != "Task" {
			continue
		}
		for _, f := range e.Fields {
			if f.Writable {
				writable = append(writable, f.Name)
			}
		}
	}
	sort.Strings(writable)

	assert.Equal(t, writable, inputFields)
	assert.Contains(t, inputFields, "user")
	assert.NotContains(t, inputFields, "taskId")
}

func TestBuild_MetadataQuery(t *testing.T) {
	reg, _, _ := taskRegistry(t)
	a, err := Build(context.Background(), reg)
	require.NoError(t, err)

	result := a.Execute(context.Background(), `{
		_metadata {
			version
			entities { name plural operations fields { name writable relationship { kind target } } }
		}
	}`, nil, "")
	require.Empty(t, result.Errors)

	data, err := json.Marshal(result.Data)
	require.NoError(t, err)

	var out struct {
		Metadata struct {
			Version  string `json:"version"`
			Entities []struct {
				Name       string   `json:"name"`
				Plural     string   `json:"plural"`
				Operations []string `json:"operations"`
				Fields     []struct {
					Name         string `json:"name"`
					Writable     bool   `json:"writable"`
					Relationship *struct {
						Kind   string `json:"kind"`
						Target string `json:"target"`
					} `json:"relationship"`
				} `json:"fields"`
			} `json:"entities"`
		} `json:"_metadata"`
	}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "1.0", out.Metadata.Version)
	require.Len(t, out.Metadata.Entities, 2)
	task := out.Metadata.Entities[1]
	assert.Equal(t, "Task", task.Name)
	assert.Equal(t, "Tasks", task.Plural)
	assert.Equal(t, a.Operations["Task"], task.Operations)

	var rel string
	for _, f := range task.Fields {
		if f.Relationship != nil {
			rel = f.Name + ":" + f.Relationship.Kind + ":" + f.Relationship.Target
		}
	}
	assert.Equal(t, "user:MANY_TO_ONE:User", rel)
}

func ownTasks(ctx context.Context) provider.Filter {
	return provider.Filter{"owner_id": webcontext.GetCurrentUser(ctx)}
}

func TestBuild_ACLFilterAndCallerFilter(t *testing.T) {
	reg, _, _ := taskRegistry(t)
	require.NoError(t, reg.RegisterACL("Task", acl.ACL{"member": {Read: acl.Where(ownTasks)}}))
	a, err := Build(context.Background(), reg)
	require.NoError(t, err)

	got := execute(t, a, as("1", "member"), `{ tasks(filter: {status: "done"}) { taskId } }`)
	assert.JSONEq(t, `{"tasks":[{"taskId":"t1"},{"taskId":"t4"}]}`, got)

	got = execute(t, a, as("1", "member"), `{ tasks_aggregate { count } }`)
	assert.JSONEq(t, `{"tasks_aggregate":{"count":3}}`, got)

	got = execute(t, a, as("2", "member"), `{ tasks(filter: {_or: [{status: "open"}, {title: "review"}]}) { taskId } }`)
	assert.JSONEq(t, `{"tasks":[{"taskId":"t3"}]}`, got)
}

func TestBuild_ErrorExtensions(t *testing.T) {
	reg, _, _ := taskRegistry(t)
	require.NoError(t, reg.RegisterACL("Task", acl.ACL{"member": acl.ReadOnly()}))
	a, err := Build(context.Background(), reg)
	require.NoError(t, err)

	result := a.Execute(as("1", "guest"), `{ tasks { taskId } }`, nil, "")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Forbidden", result.Errors[0].Message)
	assert.Equal(t, crud.CodeForbidden, result.Errors[0].Extensions["code"])

	result = a.Execute(context.Background(), `{ tasks { taskId } }`, nil, "")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, crud.CodeUnauthenticated, result.Errors[0].Extensions["code"])

	result = a.Execute(as("1", "member"), `mutation { deleteTask(id: "t1") }`, nil, "")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, crud.CodeForbidden, result.Errors[0].Extensions["code"])
}

func TestBuild_CapabilityPrecedence(t *testing.T) {
	t.Run("bulk delete serves single delete", func(t *testing.T) {
		deleter := &bulkDeleter{}
		reg := schema.NewRegistry()
		require.NoError(t, reg.RegisterEntity(&schema.Entity{
			Name:       "Task",
			PrimaryKey: "taskId",
			Provider:   deleter,
			Fields: []*schema.Field{
				{Name: "taskId", Type: schema.TypeID},
				{Name: "title"},
			},
		}))
		a, err := Build(context.Background(), reg)
		require.NoError(t, err)
		assert.Equal(t, []string{"deleteTask", "deleteTasks"}, a.Operations["Task"])

		got := execute(t, a, context.Background(), `mutation { deleteTask(id: "7") }`)
		assert.JSONEq(t, `{"deleteTask":true}`, got)
		assert.Equal(t, [][]any{{"7"}}, deleter.calls)
	})

	t.Run("find serves every read", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.RegisterEntity(&schema.Entity{
			Name:       "Task",
			PrimaryKey: "taskId",
			Provider: &finder{rows: []provider.Record{
				{"taskId": "1", "title": "a"},
				{"taskId": "2", "title": "b"},
			}},
			Fields: []*schema.Field{
				{Name: "taskId", Type: schema.TypeID},
				{Name: "title"},
			},
		}))
		a, err := Build(context.Background(), reg)
		require.NoError(t, err)
		assert.Equal(t, []string{"task", "tasks", "tasks_aggregate"}, a.Operations["Task"])
		assert.Nil(t, a.Schema.MutationType())

		got := execute(t, a, context.Background(), `{ task(id: "2") { title } tasks_aggregate { count } }`)
		assert.JSONEq(t, `{"task":{"title":"b"},"tasks_aggregate":{"count":2}}`, got)
	})
}

func TestBuild_Collisions(t *testing.T) {
	t.Run("plural equals name", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.RegisterEntity(&schema.Entity{
			Name:     "Sheep",
			Plural:   "Sheep",
			Provider: memory.New("id"),
			Fields:   []*schema.Field{{Name: "id", Type: schema.TypeID}, {Name: "name"}},
		}))
		_, err := Build(context.Background(), reg)
		require.Error(t, err)
		assert.True(t, IsOperationNameCollision(err))
		assert.Contains(t, err.Error(), "Query.sheep (Sheep, Sheep)")
		assert.Contains(t, err.Error(), "Mutation.createSheep")
	})

	t.Run("user resolver", func(t *testing.T) {
		reg, _, _ := taskRegistry(t)
		_, err := Build(context.Background(), reg, WithResolvers(Resolver{
			Name:  "tasks",
			Field: &graphql.Field{Type: graphql.String},
		}))
		var collision *OperationNameCollisionError
		require.ErrorAs(t, err, &collision)
		assert.Equal(t, []Collision{{Root: "Query", Name: "tasks", Sources: []string{"Task", "resolver"}}}, collision.Collisions)
	})

	t.Run("mutation resolver on a free name", func(t *testing.T) {
		reg, _, _ := taskRegistry(t)
		a, err := Build(context.Background(), reg, WithResolvers(Resolver{
			Name:     "ping",
			Mutation: true,
			Field: &graphql.Field{
				Type:    graphql.String,
				Resolve: func(graphql.ResolveParams) (interface{}, error) { return "pong", nil },
			},
		}))
		require.NoError(t, err)
		got := execute(t, a, context.Background(), `mutation { ping }`)
		assert.JSONEq(t, `{"ping":"pong"}`, got)
	})
}

func TestBuild_CachedUntilReset(t *testing.T) {
	reg, _, _ := taskRegistry(t)
	first, err := Build(context.Background(), reg)
	require.NoError(t, err)
	again, err := Build(context.Background(), reg)
	require.NoError(t, err)
	assert.Same(t, first, again)

	reg.Reset()
	require.NoError(t, reg.RegisterEntity(&schema.Entity{
		Name:     "Note",
		Provider: memory.New("id"),
		Fields:   []*schema.Field{{Name: "id", Type: schema.TypeID}, {Name: "body"}},
	}))
	rebuilt, err := Build(context.Background(), reg)
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
	assert.Contains(t, rebuilt.Operations, "Note")
	assert.NotContains(t, rebuilt.Operations, "Task")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Build(ctx, reg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_MissingEntity(t *testing.T) {
	reg, _, _ := taskRegistry(t)
	require.NoError(t, reg.RegisterACL("Comment", acl.ACL{"admin": acl.AllowAll()}))

	_, err := Build(context.Background(), reg)
	require.Error(t, err)
	assert.True(t, schema.IsMissingEntity(err))
	assert.False(t, reg.Finalized())
}

func TestBuild_RelationshipsBatch(t *testing.T) {
	reg, users, _ := taskRegistry(t)
	a, err := Build(context.Background(), reg)
	require.NoError(t, err)

	got := execute(t, a, context.Background(), `{ tasks { taskId user { name } } }`)
	assert.JSONEq(t, `{"tasks":[
		{"taskId":"t1","user":{"name":"Ada"}},
		{"taskId":"t2","user":{"name":"Ada"}},
		{"taskId":"t3","user":{"name":"Linus"}},
		{"taskId":"t4","user":{"name":"Ada"}}
	]}`, got)

	calls := users.Calls()
	assert.Equal(t, 1, calls["findMany"])
	assert.Zero(t, calls["findOne"])
}

func TestBuild_Mutations(t *testing.T) {
	reg, _, tasks := taskRegistry(t)
	a, err := Build(context.Background(), reg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"task", "tasks", "tasks_aggregate",
		"createTask", "updateTask", "deleteTask",
		"createTasks", "updateTasks", "deleteTasks",
	}, a.Operations["Task"])

	got := execute(t, a, context.Background(), `mutation {
		updateTask(id: "t2", input: {status: "done"}) { taskId status }
	}`)
	assert.JSONEq(t, `{"updateTask":{"taskId":"t2","status":"done"}}`, got)

	got = execute(t, a, context.Background(), `mutation { deleteTasks(ids: ["t1", "t3"]) }`)
	assert.JSONEq(t, `{"deleteTasks":true}`, got)
	assert.Equal(t, 2, tasks.Len())

	got = execute(t, a, context.Background(), `{ tasks(pagination: {limit: 1, orderBy: [{field: "title", direction: DESC}]}) { title } }`)
	assert.JSONEq(t, `{"tasks":[{"title":"fix bug"}]}`, got)
}

func TestBuild_AsyncHooksRunOnQueue(t *testing.T) {
	reg, _, _ := taskRegistry(t)
	seen := make(chan any, 1)
	require.NoError(t, reg.RegisterHookSpec("Task", &hooks.Hook{
		Point: hooks.AfterUpdate,
		Async: true,
		Fn: func(ctx context.Context, p *hooks.Params) (*hooks.Params, error) {
			seen <- p.Result.(provider.Record)["status"]
			return p, nil
		},
	}))

	queue := hooks.NewAsyncQueue(hooks.QueueConfig{Workers: 1, Buffer: 1}, nil)
	a, err := Build(context.Background(), reg, WithAsyncQueue(queue))
	require.NoError(t, err)

	got := execute(t, a, context.Background(), `mutation {
		updateTask(id: "t2", input: {status: "done"}) { status }
	}`)
	assert.JSONEq(t, `{"updateTask":{"status":"done"}}`, got)

	require.NoError(t, queue.Shutdown(context.Background()))
	assert.Equal(t, "done", <-seen)
	assert.Equal(t, hooks.QueueStats{Queued: 1, Completed: 1}, queue.Stats())
}
