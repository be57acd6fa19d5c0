package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

func TestExecutor_Run_InOrder(t *testing.T) {
	reg := NewRegistry()
	var order []string

	reg.Add(BeforeRead, func(ctx context.Context, p *Params) (*Params, error) {
		order = append(order, "first")
		p.Filter = provider.And(p.Filter, provider.Filter{"active": true})
		return p, nil
	})
	reg.Add(BeforeRead, func(ctx context.Context, p *Params) (*Params, error) {
		order = append(order, "second")
		return nil, nil
	})

	out, err := NewExecutor(reg, nil, nil).Run(context.Background(), BeforeRead, &Params{
		Entity: "Task",
		Filter: provider.Filter{"title": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, provider.Filter{provider.KeyAnd: []provider.Filter{
		{"title": "x"},
		{"active": true},
	}}, out.Filter)
}

func TestExecutor_Run_ReplacesParams(t *testing.T) {
	reg := NewRegistry()
	reg.Add(AfterRead, func(ctx context.Context, p *Params) (*Params, error) {
		return &Params{Entity: p.Entity, Result: []provider.Record{}}, nil
	})

	out, err := NewExecutor(reg, nil, nil).Run(context.Background(), AfterRead, &Params{
		Entity: "Task",
		Result: []provider.Record{{"id": "1"}},
	})
	require.NoError(t, err)
	assert.Empty(t, out.Result)
}

func TestExecutor_Run_ErrorAborts(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	called := false

	reg.Add(BeforeCreate, func(ctx context.Context, p *Params) (*Params, error) {
		return nil, boom
	})
	reg.Add(BeforeCreate, func(ctx context.Context, p *Params) (*Params, error) {
		called = true
		return p, nil
	})

	_, err := NewExecutor(reg, nil, nil).Run(context.Background(), BeforeCreate, &Params{Entity: "Task"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)

	var hookErr *Error
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, BeforeCreate, hookErr.Point)
	assert.Equal(t, "Task", hookErr.Entity)
}

func TestExecutor_Run_NoHooks(t *testing.T) {
	params := &Params{Entity: "Task"}
	out, err := NewExecutor(nil, nil, nil).Run(context.Background(), BeforeDelete, params)
	require.NoError(t, err)
	assert.Same(t, params, out)
}

func TestExecutor_Run_AsyncAfterHook(t *testing.T) {
	queue := NewAsyncQueue(QueueConfig{Workers: 1, Buffer: 1}, nil)

	var mu sync.Mutex
	var seen provider.Record
	done := make(chan struct{})

	reg := NewRegistry()
	reg.Register(AfterCreate, &Hook{
		Async: true,
		Fn: func(ctx context.Context, p *Params) (*Params, error) {
			mu.Lock()
			seen = p.Result.(provider.Record)
			mu.Unlock()
			close(done)
			return nil, errors.New("ignored")
		},
	})

	result := provider.Record{"id": "1"}
	_, err := NewExecutor(reg, queue, nil).Run(context.Background(), AfterCreate, &Params{
		Entity: "Task",
		Result: result,
	})
	require.NoError(t, err)

	// mutate after the hook was queued; the hook must see the original
	result["id"] = "2"

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async hook did not run")
	}
	require.NoError(t, queue.Shutdown(context.Background()))
	assert.Equal(t, QueueStats{Queued: 1, Failed: 1}, queue.Stats())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "1", seen["id"])
}

func TestParsePoint(t *testing.T) {
	for _, in := range []string{"BEFORE_READ", "before_read", "beforeRead"} {
		p, err := ParsePoint(in)
		require.NoError(t, err, in)
		assert.Equal(t, BeforeRead, p)
	}

	_, err := ParsePoint("during_read")
	assert.Error(t, err)
}

func TestOperationPoints(t *testing.T) {
	assert.Equal(t, BeforeRead, BeforePoint(provider.OpCount))
	assert.Equal(t, AfterRead, AfterPoint(provider.OpFindByRelatedID))
	assert.Equal(t, BeforeUpdate, BeforePoint(provider.OpUpdateMany))
	assert.Equal(t, AfterDelete, AfterPoint(provider.OpDeleteOne))
	assert.Equal(t, AfterCreate, AfterPoint(provider.OpCreateMany))
}

func TestRegistry_Merge(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	noop := func(ctx context.Context, p *Params) (*Params, error) { return p, nil }

	a.Add(BeforeRead, noop)
	b.Add(BeforeRead, noop)
	b.Register(AfterRead, &Hook{Fn: noop, Async: true})

	a.Merge(b)
	assert.Equal(t, 3, a.Len())
	assert.True(t, a.GetHooks(AfterRead)[0].Async)
	assert.Equal(t, AfterRead, a.GetHooks(AfterRead)[0].Point)
}
