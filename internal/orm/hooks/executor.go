package hooks

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Error wraps the failure of a synchronous hook.
type Error struct {
	Entity string
	Point  Point
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("hook %s on %s failed: %v", e.Point, e.Entity, e.Err)
}

// Unwrap returns the hook's own error
func (e *Error) Unwrap() error {
	return e.Err
}

// Executor runs the hooks of one entity
type Executor struct {
	registry   *Registry
	asyncQueue *AsyncQueue
	logger     *zap.Logger
}

// NewExecutor creates a hook executor over registry. asyncQueue may be nil,
// in which case async hooks run synchronously with errors logged.
func NewExecutor(registry *Registry, asyncQueue *AsyncQueue, logger *zap.Logger) *Executor {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry:   registry,
		asyncQueue: asyncQueue,
		logger:     logger,
	}
}

// Run executes the hooks registered for point in order, threading params
// through each. The first error aborts the remaining hooks.
func (e *Executor) Run(ctx context.Context, point Point, params *Params) (*Params, error) {
	hooks := e.registry.GetHooks(point)
	if len(hooks) == 0 {
		return params, nil
	}

	for _, hook := range hooks {
		if hook.Async && point.IsAfter() {
			e.runAsync(ctx, hook, params)
			continue
		}

		next, err := hook.Fn(ctx, params)
		if err != nil {
			return params, &Error{Entity: params.Entity, Point: point, Err: err}
		}
		if next != nil {
			params = next
		}
	}

	return params, nil
}

// runAsync hands a copy of params to an async hook. The copy isolates the
// hook from mutations made by the rest of the pipeline.
func (e *Executor) runAsync(ctx context.Context, hook *Hook, params *Params) {
	paramsCopy := params.Clone()
	job := AsyncJob{
		Entity: paramsCopy.Entity,
		Point:  hook.Point,
		Run: func(jobCtx context.Context) error {
			_, err := hook.Fn(jobCtx, paramsCopy)
			return err
		},
	}
	log := e.logger.With(zap.String("hook", job.name()))

	if e.asyncQueue == nil {
		if err := job.Run(context.WithoutCancel(ctx)); err != nil {
			log.Warn("async hook failed", zap.Error(err))
		}
		return
	}
	if err := e.asyncQueue.Enqueue(ctx, job); err != nil {
		// async hooks never fail the operation
		log.Warn("failed to enqueue async hook", zap.Error(err))
	}
}

// HasHooks returns true if there are any hooks registered for the given point
func (e *Executor) HasHooks(point Point) bool {
	return e.registry.HasHooks(point)
}

// GetRegistry returns the hook registry
func (e *Executor) GetRegistry() *Registry {
	return e.registry
}

// deepCopyRecord creates a deep copy of a record map to ensure
// async hooks have fully isolated data
func deepCopyRecord(record map[string]interface{}) map[string]interface{} {
	if record == nil {
		return nil
	}
	copy := make(map[string]interface{}, len(record))
	for k, v := range record {
		copy[k] = deepCopyValue(v)
	}
	return copy
}

// deepCopyValue recursively copies values to ensure full isolation
func deepCopyValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyRecord(val)
	case []map[string]interface{}:
		copySlice := make([]map[string]interface{}, len(val))
		for i, item := range val {
			copySlice[i] = deepCopyRecord(item)
		}
		return copySlice
	case []interface{}:
		copySlice := make([]interface{}, len(val))
		for i, item := range val {
			copySlice[i] = deepCopyValue(item)
		}
		return copySlice
	case []string:
		copySlice := make([]string, len(val))
		copy(copySlice, val)
		return copySlice
	case []int:
		copySlice := make([]int, len(val))
		copy(copySlice, val)
		return copySlice
	case []int64:
		copySlice := make([]int64, len(val))
		copy(copySlice, val)
		return copySlice
	case []float64:
		copySlice := make([]float64, len(val))
		copy(copySlice, val)
		return copySlice
	default:
		// Primitive types (string, int, bool, time.Time, uuid.UUID, etc.)
		// are copied by value, so just return them
		return v
	}
}
