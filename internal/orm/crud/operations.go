// Package crud implements the generic resolver pipeline run for every
// built-in operation of an entity: access control, lifecycle hooks, one
// provider call and field mapping.
package crud

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
	webcontext "github.com/conduit-lang/gqlmeta/internal/web/context"
)

// Stage is a step of the resolver pipeline
type Stage int

const (
	StageReceived Stage = iota
	StageACLChecked
	StageHooksBefore
	StageProviderCall
	StageHooksAfter
	StageMappedResponse
	StageFailed
)

// String returns the string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "RECEIVED"
	case StageACLChecked:
		return "ACL_CHECKED"
	case StageHooksBefore:
		return "HOOKS_BEFORE"
	case StageProviderCall:
		return "PROVIDER_CALL"
	case StageHooksAfter:
		return "HOOKS_AFTER"
	case StageMappedResponse:
		return "MAPPED_RESPONSE"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Lookup returns the resolver of another entity, used for cascading
// creates through relationship inputs.
type Lookup func(entity string) *Resolver

// StageObserver is notified of every stage a call enters
type StageObserver func(entity string, op provider.Operation, stage Stage)

// Resolver runs the operations of one entity
type Resolver struct {
	entity   *schema.Entity
	acl      acl.ACL
	hooks    *hooks.Executor
	logger   *zap.Logger
	lookup   Lookup
	observer StageObserver

	defaultLimit int
	maxLimit     int
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithAsyncQueue runs async after hooks on queue
func WithAsyncQueue(queue *hooks.AsyncQueue) Option {
	return func(r *Resolver) {
		r.hooks = hooks.NewExecutor(r.entity.Hooks, queue, r.logger)
	}
}

// WithLookup sets the lookup used to reach the resolvers of related
// entities
func WithLookup(lookup Lookup) Option {
	return func(r *Resolver) { r.lookup = lookup }
}

// WithPageSize sets the limit applied to lists requested without one and
// the largest limit a caller may request. Zero disables either bound.
func WithPageSize(defaultLimit, maxLimit int) Option {
	return func(r *Resolver) {
		r.defaultLimit = defaultLimit
		r.maxLimit = maxLimit
	}
}

// WithStageObserver registers fn to be told about stage transitions
func WithStageObserver(fn StageObserver) Option {
	return func(r *Resolver) { r.observer = fn }
}

// New creates the resolver of entity guarded by a. A nil ACL allows every
// caller.
func New(entity *schema.Entity, a acl.ACL, opts ...Option) *Resolver {
	r := &Resolver{
		entity: entity,
		acl:    a,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.hooks == nil {
		r.hooks = hooks.NewExecutor(entity.Hooks, nil, r.logger)
	}
	return r
}

// Entity returns the entity served by the resolver
func (r *Resolver) Entity() *schema.Entity {
	return r.entity
}

// Caller is the identity an operation runs as
type Caller struct {
	ID    string
	Roles []string
}

// Authenticated reports whether the caller carries an identity
func (c Caller) Authenticated() bool {
	return c.ID != ""
}

// CallerFrom reads the caller identity placed in ctx by the auth middleware
func CallerFrom(ctx context.Context) Caller {
	return Caller{
		ID:    webcontext.GetCurrentUser(ctx),
		Roles: webcontext.GetUserRoles(ctx),
	}
}

// call tracks one operation through the pipeline
type call struct {
	r       *Resolver
	ctx     context.Context
	op      provider.Operation
	stage   Stage
	started time.Time
}

func (r *Resolver) begin(ctx context.Context, op provider.Operation) *call {
	c := &call{r: r, ctx: ctx, op: op, started: time.Now()}
	c.enter(StageReceived)
	return c
}

func (c *call) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("entity", c.r.entity.Name),
		zap.String("operation", c.op.String()),
	}
	if id := webcontext.GetRequestID(c.ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}

func (c *call) enter(stage Stage) {
	c.stage = stage
	if c.r.observer != nil {
		c.r.observer(c.r.entity.Name, c.op, stage)
	}
	if ce := c.r.logger.Check(zap.DebugLevel, "crud stage"); ce != nil {
		ce.Write(append(c.fields(), zap.String("stage", stage.String()))...)
	}
}

// fail moves the call to StageFailed and returns err
func (c *call) fail(err error) error {
	failedAt := c.stage
	c.enter(StageFailed)
	c.r.logger.Warn("crud operation failed", append(c.fields(),
		zap.String("stage", failedAt.String()),
		zap.Duration("duration", time.Since(c.started)),
		zap.Error(err))...)
	return err
}

func (c *call) done() {
	c.enter(StageMappedResponse)
}

// authorize evaluates the ACL for action and returns the row filter the
// caller is restricted to, in backend column terms.
func (c *call) authorize(action acl.Action) (provider.Filter, error) {
	caller := CallerFrom(c.ctx)
	decision := c.r.acl.Evaluate(c.ctx, caller.Roles, caller.Authenticated(), action)
	if !decision.Allowed {
		if decision.Unauthenticated {
			return nil, c.fail(&AuthenticationError{Entity: c.r.entity.Name, Action: action})
		}
		return nil, c.fail(&ForbiddenError{Entity: c.r.entity.Name, Action: action})
	}
	c.enter(StageACLChecked)
	if decision.MatchNone {
		return provider.Filter{c.r.entity.PrimaryKeyColumn() + provider.In.Suffix(): []any{}}, nil
	}
	return decision.Filter, nil
}

// before runs the before hooks of the call's operation
func (c *call) before(params *hooks.Params) (*hooks.Params, error) {
	params, err := c.r.hooks.Run(c.ctx, hooks.BeforePoint(c.op), params)
	if err != nil {
		return nil, c.fail(err)
	}
	c.enter(StageHooksBefore)
	return params, nil
}

// after runs the after hooks of the call's operation
func (c *call) after(params *hooks.Params) (*hooks.Params, error) {
	params, err := c.r.hooks.Run(c.ctx, hooks.AfterPoint(c.op), params)
	if err != nil {
		return nil, c.fail(err)
	}
	c.enter(StageHooksAfter)
	return params, nil
}

func (r *Resolver) params(op provider.Operation) *hooks.Params {
	return &hooks.Params{Entity: r.entity.Name, Operation: op}
}
