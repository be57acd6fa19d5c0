// Package hooks implements per-entity lifecycle hooks run around every
// generated CRUD operation.
package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// Point identifies where in the CRUD pipeline a hook runs
type Point int

const (
	BeforeRead Point = iota
	AfterRead
	BeforeCreate
	AfterCreate
	BeforeUpdate
	AfterUpdate
	BeforeDelete
	AfterDelete
)

// Points lists every hook point in pipeline order.
var Points = []Point{
	BeforeRead, AfterRead,
	BeforeCreate, AfterCreate,
	BeforeUpdate, AfterUpdate,
	BeforeDelete, AfterDelete,
}

// String returns the string representation of the hook point
func (p Point) String() string {
	switch p {
	case BeforeRead:
		return "BEFORE_READ"
	case AfterRead:
		return "AFTER_READ"
	case BeforeCreate:
		return "BEFORE_CREATE"
	case AfterCreate:
		return "AFTER_CREATE"
	case BeforeUpdate:
		return "BEFORE_UPDATE"
	case AfterUpdate:
		return "AFTER_UPDATE"
	case BeforeDelete:
		return "BEFORE_DELETE"
	case AfterDelete:
		return "AFTER_DELETE"
	default:
		return "UNKNOWN"
	}
}

// IsAfter reports whether the point runs after the provider call.
func (p Point) IsAfter() bool {
	switch p {
	case AfterRead, AfterCreate, AfterUpdate, AfterDelete:
		return true
	default:
		return false
	}
}

// ParsePoint converts "BEFORE_READ", "before_read" or "beforeRead" into a Point.
func ParsePoint(s string) (Point, error) {
	norm := strings.ToUpper(strings.ReplaceAll(s, "_", ""))
	for _, p := range Points {
		if strings.ReplaceAll(p.String(), "_", "") == norm {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown hook point: %s", s)
}

// Params is the mutable state of one CRUD operation as seen by hooks.
// Before hooks may rewrite the filter, pagination or payload; after hooks
// may rewrite Result.
type Params struct {
	Entity     string
	Operation  provider.Operation
	ID         any
	IDs        []any
	Filter     provider.Filter
	Pagination *provider.Pagination
	Input      provider.Record
	Inputs     []provider.Record
	Updates    []provider.Update
	// Result is provider.Record, []provider.Record, int or bool depending
	// on Operation.
	Result any
}

// Clone returns a copy of p whose maps and slices can be mutated freely.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	c := *p
	if p.IDs != nil {
		c.IDs = append([]any(nil), p.IDs...)
	}
	if p.Filter != nil {
		c.Filter = provider.Filter(deepCopyRecord(p.Filter))
	}
	if p.Pagination != nil {
		page := *p.Pagination
		page.OrderBy = append([]provider.OrderBy(nil), p.Pagination.OrderBy...)
		c.Pagination = &page
	}
	if p.Input != nil {
		c.Input = deepCopyRecord(p.Input)
	}
	if p.Inputs != nil {
		c.Inputs = make([]provider.Record, len(p.Inputs))
		for i, in := range p.Inputs {
			c.Inputs[i] = deepCopyRecord(in)
		}
	}
	if p.Updates != nil {
		c.Updates = make([]provider.Update, len(p.Updates))
		for i, u := range p.Updates {
			c.Updates[i] = provider.Update{ID: u.ID, Input: deepCopyRecord(u.Input)}
		}
	}
	c.Result = deepCopyValue(p.Result)
	return &c
}

// Func is a hook function. It returns the params the pipeline continues
// with; returning nil keeps the params it was given. A non-nil error aborts
// the operation.
type Func func(ctx context.Context, p *Params) (*Params, error)

// Hook represents a registered lifecycle hook
type Hook struct {
	Point Point
	Fn    Func
	// Async after hooks receive a copy of the params and run on the
	// executor's queue once the operation has completed. Their result and
	// error do not affect the caller.
	Async bool
}

// Registry holds the hooks of one entity in registration order.
type Registry struct {
	hooks map[Point][]*Hook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[Point][]*Hook),
	}
}

// Register adds a hook to the registry
func (r *Registry) Register(point Point, hook *Hook) {
	hook.Point = point
	r.hooks[point] = append(r.hooks[point], hook)
}

// Add registers fn as a synchronous hook.
func (r *Registry) Add(point Point, fn Func) {
	r.Register(point, &Hook{Fn: fn})
}

// GetHooks returns all hooks for a given point
func (r *Registry) GetHooks(point Point) []*Hook {
	if r == nil {
		return nil
	}
	return r.hooks[point]
}

// HasHooks returns true if there are any hooks registered for the given point
func (r *Registry) HasHooks(point Point) bool {
	return len(r.GetHooks(point)) > 0
}

// Len returns the total number of registered hooks.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, hs := range r.hooks {
		n += len(hs)
	}
	return n
}

// Merge appends every hook of other, preserving its order per point.
func (r *Registry) Merge(other *Registry) {
	if other == nil {
		return
	}
	for _, p := range Points {
		for _, h := range other.hooks[p] {
			r.Register(p, &Hook{Fn: h.Fn, Async: h.Async})
		}
	}
}

// BeforePoint maps an operation to the hook point run before it.
func BeforePoint(op provider.Operation) Point {
	switch op {
	case provider.OpCreateOne, provider.OpCreateMany:
		return BeforeCreate
	case provider.OpUpdateOne, provider.OpUpdateMany:
		return BeforeUpdate
	case provider.OpDeleteOne, provider.OpDeleteMany:
		return BeforeDelete
	default:
		return BeforeRead
	}
}

// AfterPoint maps an operation to the hook point run after it.
func AfterPoint(op provider.Operation) Point {
	return BeforePoint(op) + 1
}
