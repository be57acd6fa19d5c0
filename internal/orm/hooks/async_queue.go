package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has begun
var ErrQueueClosed = errors.New("hooks: async queue closed")

// QueueConfig sizes an AsyncQueue
type QueueConfig struct {
	// Workers is the number of hooks run at once. Defaults to 4.
	Workers int
	// Buffer is the number of jobs waiting for a worker before Enqueue
	// blocks.
	Buffer int
	// Timeout bounds a single hook run. Zero means no deadline.
	Timeout time.Duration
}

// AsyncJob is one async hook invocation waiting for a worker
type AsyncJob struct {
	Entity string
	Point  Point
	Run    func(ctx context.Context) error
}

func (j AsyncJob) name() string {
	return fmt.Sprintf("%s.%s", j.Entity, j.Point)
}

// QueueStats counts async jobs by outcome
type QueueStats struct {
	Queued    int64
	Completed int64
	Failed    int64
}

// AsyncQueue runs async after hooks outside the request that triggered
// them. Workers start with the queue; Shutdown drains what is queued.
type AsyncQueue struct {
	jobs    chan AsyncJob
	workers *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool

	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewAsyncQueue starts a worker pool for async hooks
func NewAsyncQueue(cfg QueueConfig, logger *zap.Logger) *AsyncQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &AsyncQueue{
		jobs:    make(chan AsyncJob, cfg.Buffer),
		workers: &errgroup.Group{},
		ctx:     ctx,
		cancel:  cancel,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	for worker := range cfg.Workers {
		q.workers.Go(func() error {
			for job := range q.jobs {
				q.run(worker, job)
			}
			return nil
		})
	}
	return q
}

func (q *AsyncQueue) run(worker int, job AsyncJob) {
	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	started := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return job.Run(ctx)
	}()

	if err != nil {
		q.failed.Add(1)
		q.logger.Warn("async hook failed",
			zap.Int("worker", worker),
			zap.String("hook", job.name()),
			zap.Duration("duration", time.Since(started)),
			zap.Error(err))
		return
	}
	q.completed.Add(1)
	if ce := q.logger.Check(zap.DebugLevel, "async hook completed"); ce != nil {
		ce.Write(zap.Int("worker", worker), zap.String("hook", job.name()), zap.Duration("duration", time.Since(started)))
	}
}

// Enqueue hands job to the pool. It blocks while the buffer is full, until
// ctx is done or the queue stops.
func (q *AsyncQueue) Enqueue(ctx context.Context, job AsyncJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.queued.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return ErrQueueClosed
	}
}

// Shutdown stops accepting jobs and waits for the queued ones to finish.
// When ctx ends first, running hooks are cancelled and ctx's error is
// returned. It matches the server's shutdown hook signature.
func (q *AsyncQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		q.cancel()
		<-done
		err = ctx.Err()
	}
	q.cancel()

	stats := q.Stats()
	q.logger.Info("async hook queue stopped",
		zap.Int64("queued", stats.Queued),
		zap.Int64("completed", stats.Completed),
		zap.Int64("failed", stats.Failed))
	return err
}

// Stats returns the job counters
func (q *AsyncQueue) Stats() QueueStats {
	return QueueStats{
		Queued:    q.queued.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
	}
}
