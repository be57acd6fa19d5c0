package declare

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/gqlmeta/internal/graphql/builder"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/memory"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/rediscache"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/sqlprovider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
	webcontext "github.com/conduit-lang/gqlmeta/internal/web/context"
)

const tasksDoc = `
enums:
  Status: [todo, done]
entities:
  - name: User
    fields:
      - {name: id, type: ID}
      - {name: name}
      - {name: tasks, relation: one_to_many, target: Task, related_field: ownerId}
    provider:
      rows:
        - {id: u1, name: Ada}
        - {id: u2, name: Grace}
    acl:
      "*": read_only
  - name: Task
    fields:
      - {name: id, type: ID}
      - {name: title, type: String}
      - {name: status, type: Status}
      - {name: ownerId, type: ID, nullable: true}
      - {name: owner, relation: many_to_one, target: User, id_field: ownerId}
    provider:
      kind: memory
      rows:
        - {id: t1, title: write docs, status: todo, ownerId: u1}
        - {id: t2, title: fix bug, status: done, ownerId: u2}
        - {id: t3, title: review, status: done, ownerId: u1}
    acl:
      admin: allow
      member:
        read: {where: {ownerId: $user}}
        write: deny
      auditor:
        read: {where: {status: done}}
`

func build(t *testing.T, doc string, backends Backends) (*schema.Registry, *builder.Artifact) {
	t.Helper()
	file, err := Parse([]byte(doc))
	require.NoError(t, err)

	reg := schema.NewRegistry()
	require.NoError(t, Apply(reg, file, backends))
	a, err := builder.Build(context.Background(), reg)
	require.NoError(t, err)
	return reg, a
}

func caller(user string, roles ...string) context.Context {
	ctx := webcontext.SetCurrentUser(context.Background(), user)
	return webcontext.SetUserRoles(ctx, roles)
}

func run(t *testing.T, a *builder.Artifact, ctx context.Context, query string) string {
	t.Helper()
	result := a.Execute(ctx, query, nil, "")
	require.Empty(t, result.Errors)
	data, err := json.Marshal(result.Data)
	require.NoError(t, err)
	return string(data)
}

func TestApply_Memory(t *testing.T) {
	reg, a := build(t, tasksDoc, Backends{})

	task, ok := reg.Get("Task")
	require.True(t, ok)
	assert.IsType(t, &memory.Store{}, task.Provider)
	status, _ := task.Field("status")
	assert.Equal(t, schema.TypeEnum, status.Type)
	assert.Equal(t, []string{"todo", "done"}, status.Enum.Values)

	got := run(t, a, caller("admin-1", "admin"), `{ tasks_aggregate { count } }`)
	assert.JSONEq(t, `{"tasks_aggregate":{"count":3}}`, got)

	got = run(t, a, caller("u1", "member"),
		`{ tasks(pagination: {orderBy: [{field: "title", direction: ASC}]}) { title owner { name } } }`)
	assert.JSONEq(t, `{"tasks":[{"title":"review","owner":{"name":"Ada"}},{"title":"write docs","owner":{"name":"Ada"}}]}`, got)

	got = run(t, a, caller("x", "auditor"), `{ tasks_aggregate { count } }`)
	assert.JSONEq(t, `{"tasks_aggregate":{"count":2}}`, got)
}

func TestApply_UnresolvedPlaceholderMatchesNothing(t *testing.T) {
	_, a := build(t, tasksDoc, Backends{})

	got := run(t, a, caller("", "member"), `{ tasks { id } }`)
	assert.JSONEq(t, `{"tasks":[]}`, got)
}

func TestApply_ReadOnlyPermission(t *testing.T) {
	_, a := build(t, tasksDoc, Backends{})

	got := run(t, a, context.Background(), `{ users_aggregate { count } }`)
	assert.JSONEq(t, `{"users_aggregate":{"count":2}}`, got)

	result := a.Execute(context.Background(), `mutation { deleteUser(id: "u1") }`, nil, "")
	assert.NotEmpty(t, result.Errors)

	result = a.Execute(caller("u1", "member"), `mutation { deleteTask(id: "t1") }`, nil, "")
	assert.NotEmpty(t, result.Errors)
}

func TestApply_SQLWithCache(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := sqlprovider.Open(ctx, "sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.ExecContext(ctx, `CREATE TABLE line_items (id TEXT PRIMARY KEY, sku TEXT NOT NULL, qty INTEGER)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO line_items (id, sku, qty) VALUES ('a', 'SKU-1', 2)`)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	doc := `
entities:
  - name: LineItem
    provider:
      kind: sql
      ids: uuid
      cache: true
    fields:
      - {name: id, type: ID}
      - {name: sku}
      - {name: qty, type: Int, nullable: true}
`
	reg, a := build(t, doc, Backends{DB: db, Dialect: dialect, Redis: client})

	item, _ := reg.Get("LineItem")
	assert.IsType(t, &rediscache.Provider{}, item.Provider)

	got := run(t, a, ctx, `{ lineItem(id: "a") { sku qty } }`)
	assert.JSONEq(t, `{"lineItem":{"sku":"SKU-1","qty":2}}`, got)
	assert.True(t, mr.Exists("gqlmeta:LineItem:a"))

	result := a.Execute(ctx, `mutation { createLineItem(input: {sku: "SKU-2"}) { id sku } }`, nil, "")
	require.Empty(t, result.Errors)
	created := result.Data.(map[string]interface{})["createLineItem"].(map[string]interface{})
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, "SKU-2", created["sku"])
}

func TestApply_Errors(t *testing.T) {
	doc := `
enums:
  Color: [red]
entities:
  - name: Stored
    provider: {kind: sql}
    fields: [{name: id, type: ID}]
  - name: Painted
    fields:
      - {name: id, type: ID}
      - {name: shade, enum: Shade}
  - name: Odd
    provider: {kind: mongo}
    fields: [{name: id, type: ID}]
  - name: Typed
    fields:
      - {name: id, type: ID}
      - {name: size, type: huge}
  - name: Fine
    fields: [{name: id, type: ID}]
`
	file, err := Parse([]byte(doc))
	require.NoError(t, err)

	reg := schema.NewRegistry()
	err = Apply(reg, file, Backends{})
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNoDatabase)
	for _, want := range []string{
		`entity "Stored"`,
		`undeclared enum "Shade"`,
		`unknown provider kind "mongo"`,
		"unknown field type: huge",
	} {
		assert.Contains(t, err.Error(), want)
	}
	assert.Equal(t, []string{"Fine"}, reg.List())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		err  string
	}{
		{name: "empty document", doc: ""},
		{name: "unknown key", doc: "entities:\n  - name: Task\n    colour: red\n", err: "field colour not found"},
		{name: "bad permission", doc: "entities:\n  - name: Task\n    acl:\n      admin: maybe\n", err: "permission must be allow, deny, read_only"},
		{name: "bad rule", doc: "entities:\n  - name: Task\n    acl:\n      admin:\n        read: sometimes\n", err: "rule must be allow, deny"},
		{name: "rule without where", doc: "entities:\n  - name: Task\n    acl:\n      admin:\n        read: {}\n", err: "rule mapping requires where"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestParse_Permissions(t *testing.T) {
	file, err := Parse([]byte(tasksDoc))
	require.NoError(t, err)

	task := file.Entities[1]
	assert.Equal(t, "allow", task.ACL["admin"].All.Effect)
	assert.Equal(t, "where", task.ACL["member"].Read.Effect)
	assert.Equal(t, "$user", task.ACL["member"].Read.Where["ownerId"])
	assert.Equal(t, "deny", task.ACL["member"].Write.Effect)

	users := file.Entities[0]
	assert.Equal(t, "allow", users.ACL["*"].Read.Effect)
	assert.Equal(t, "deny", users.ACL["*"].Write.Effect)
}

func TestResolve(t *testing.T) {
	ctx := webcontext.SetClaims(caller("u1"), map[string]any{"org": "acme"})

	got, ok := resolve(ctx, map[string]any{
		"ownerId": "$user",
		"_or":     []any{map[string]any{"org": "$claim.org"}, map[string]any{"public": true}},
	})
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"ownerId": "u1",
		"_or":     []any{map[string]any{"org": "acme"}, map[string]any{"public": true}},
	}, got)

	_, ok = resolve(ctx, map[string]any{"team": "$claim.team"})
	assert.False(t, ok)

	assert.True(t, hasPlaceholder(map[string]any{"a": []any{"$claim.x"}}))
	assert.False(t, hasPlaceholder(map[string]any{"a": "literal"}))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yml")
	require.NoError(t, os.WriteFile(path, []byte(tasksDoc), 0644))

	file, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, file.Entities, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestApply_Offline(t *testing.T) {
	doc := `
entities:
  - name: Invoice
    provider: {kind: sql, table: billing_invoices}
    fields: [{name: id, type: ID}, {name: total, type: Float}]
`
	reg, a := build(t, doc, Backends{Offline: true})

	invoice, _ := reg.Get("Invoice")
	p, ok := invoice.Provider.(*sqlprovider.Provider)
	require.True(t, ok)
	assert.Equal(t, "billing_invoices", p.Table())
	assert.Contains(t, a.Operations["Invoice"], "createInvoice")
}

func TestApply_DefaultTable(t *testing.T) {
	file, err := Parse([]byte("entities:\n  - name: LineItem\n    provider: {kind: sql}\n    fields: [{name: id, type: ID}]\n"))
	require.NoError(t, err)

	reg := schema.NewRegistry()
	require.NoError(t, Apply(reg, file, Backends{Offline: true}))
	item, _ := reg.Get("LineItem")
	assert.Equal(t, "line_items", item.Provider.(*sqlprovider.Provider).Table())
}
