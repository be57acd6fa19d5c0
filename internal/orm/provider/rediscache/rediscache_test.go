package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/memory"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func seeded() *memory.Store {
	return memory.New("id", memory.WithRows(
		provider.Record{"id": "1", "name": "Ada", "age": 36},
		provider.Record{"id": "2", "name": "Linus", "age": 28},
		provider.Record{"id": "3", "name": "Grace", "age": 45},
	))
}

// finder only lists records
type finder struct {
	rows []provider.Record
}

func (f *finder) Find(ctx context.Context, filter provider.Filter, page *provider.Pagination) ([]provider.Record, error) {
	var out []provider.Record
	for _, r := range f.rows {
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

func TestProvider_FindOneCaches(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := seeded()
	p := New(store, client, "id", WithPrefix("User:"), WithTTL(time.Minute))
	ctx := context.Background()

	rec, err := p.FindOne(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])
	assert.True(t, mr.Exists("User:1"))
	assert.Equal(t, time.Minute, mr.TTL("User:1"))

	rec, err = p.FindOne(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])
	assert.EqualValues(t, 36, rec["age"])
	assert.Equal(t, 1, store.Calls()["findOne"])
}

func TestProvider_MissNotCached(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := seeded()
	p := New(store, client, "id", WithPrefix("User:"))

	rec, err := p.FindOne(context.Background(), "404")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.False(t, mr.Exists("User:404"))
}

func TestProvider_FindManyLoadsMisses(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := seeded()
	p := New(store, client, "id")
	ctx := context.Background()

	_, err := p.FindOne(ctx, "1")
	require.NoError(t, err)

	rows, err := p.FindMany(ctx, []any{"1", "2", "9"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	names := []any{rows[0]["name"], rows[1]["name"]}
	assert.ElementsMatch(t, []any{"Ada", "Linus"}, names)
	assert.Equal(t, 1, store.Calls()["findMany"])

	rows, err = p.FindMany(ctx, []any{"1", "2"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, store.Calls()["findMany"])
}

func TestProvider_WritesEvict(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := seeded()
	p := New(store, client, "id", WithPrefix("User:"))
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := p.FindOne(ctx, id)
		require.NoError(t, err)
	}

	rec, err := p.UpdateOne(ctx, "1", provider.Record{"name": "Ada L."})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", rec["name"])
	assert.False(t, mr.Exists("User:1"))

	rec, err = p.FindOne(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", rec["name"])

	ok, err := p.DeleteMany(ctx, []any{"2", "3"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("User:2"))
	assert.False(t, mr.Exists("User:3"))

	rec, err = p.FindOne(ctx, "2")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestProvider_ForwardsCapabilities(t *testing.T) {
	client, _ := setupTestRedis(t)
	inner := &finder{rows: []provider.Record{{"id": "1", "name": "Ada"}}}
	p := New(inner, client, "id")

	assert.Equal(t, provider.CapFind, provider.Capabilities(p))
	assert.True(t, provider.Capabilities(p).Supports(provider.OpFindOne))
	assert.False(t, provider.Capabilities(p).Supports(provider.OpCreateOne))

	rec, err := provider.FindOne(context.Background(), p, "id", "1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])

	rows, err := p.FindMany(context.Background(), []any{"1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = p.CreateOne(context.Background(), provider.Record{"name": "Linus"})
	var unsupported *provider.UnsupportedError
	assert.ErrorAs(t, err, &unsupported)
}

func TestProvider_RedisDownFallsThrough(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := seeded()
	p := New(store, client, "id")
	mr.Close()

	rec, err := p.FindOne(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "Linus", rec["name"])
}

func TestProvider_Clear(t *testing.T) {
	client, mr := setupTestRedis(t)
	p := New(seeded(), client, "id", WithPrefix("User:"))
	ctx := context.Background()

	_, err := p.FindMany(ctx, []any{"1", "2"})
	require.NoError(t, err)
	require.NoError(t, mr.Set("Other:1", "x"))

	require.NoError(t, p.Clear(ctx))
	assert.False(t, mr.Exists("User:1"))
	assert.True(t, mr.Exists("Other:1"))
}
