package hooks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncQueue_ShutdownDrainsQueuedJobs(t *testing.T) {
	q := NewAsyncQueue(QueueConfig{Workers: 2, Buffer: 10}, nil)

	var ran atomic.Int32
	for range 5 {
		require.NoError(t, q.Enqueue(context.Background(), AsyncJob{
			Entity: "Task",
			Point:  AfterCreate,
			Run: func(ctx context.Context) error {
				time.Sleep(5 * time.Millisecond)
				ran.Add(1)
				return nil
			},
		}))
	}

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, QueueStats{Queued: 5, Completed: 5}, q.Stats())

	err := q.Enqueue(context.Background(), AsyncJob{Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.NoError(t, q.Shutdown(context.Background()))
}

func TestAsyncQueue_FailuresAndPanicsAreCounted(t *testing.T) {
	q := NewAsyncQueue(QueueConfig{Workers: 1, Buffer: 2}, nil)

	require.NoError(t, q.Enqueue(context.Background(), AsyncJob{
		Entity: "Task", Point: AfterUpdate,
		Run: func(context.Context) error { return errors.New("mailer down") },
	}))
	require.NoError(t, q.Enqueue(context.Background(), AsyncJob{
		Entity: "Task", Point: AfterDelete,
		Run: func(context.Context) error { panic("boom") },
	}))

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, QueueStats{Queued: 2, Failed: 2}, q.Stats())
}

func TestAsyncQueue_Timeout(t *testing.T) {
	q := NewAsyncQueue(QueueConfig{Workers: 1, Timeout: 10 * time.Millisecond}, nil)

	done := make(chan error, 1)
	require.NoError(t, q.Enqueue(context.Background(), AsyncJob{
		Entity: "Task", Point: AfterCreate,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			done <- ctx.Err()
			return ctx.Err()
		},
	}))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("hook was not cancelled")
	}
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestAsyncQueue_ShutdownDeadlineCancelsRunningHooks(t *testing.T) {
	q := NewAsyncQueue(QueueConfig{Workers: 1}, nil)

	started := make(chan struct{})
	require.NoError(t, q.Enqueue(context.Background(), AsyncJob{
		Entity: "Task", Point: AfterCreate,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)
	assert.Equal(t, int64(1), q.Stats().Failed)
}

func TestAsyncQueue_EnqueueRespectsCallerContext(t *testing.T) {
	q := NewAsyncQueue(QueueConfig{Workers: 1}, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, q.Enqueue(context.Background(), AsyncJob{
		Run: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))
	<-started

	// the single worker is busy and there is no buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, AsyncJob{Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, q.Shutdown(context.Background()))
}
