package builder

import (
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/graphql/synth"
	"github.com/conduit-lang/gqlmeta/internal/orm/crud"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
)

// Resolver is a user-supplied operation added next to the generated ones
type Resolver struct {
	Name     string
	Mutation bool
	Field    *graphql.Field
}

// Option configures Build
type Option func(*config)

type config struct {
	resolvers    []Resolver
	logger       *zap.Logger
	synth        synth.Options
	defaultLimit int
	maxLimit     int
	queue        *hooks.AsyncQueue
	observer     crud.StageObserver
}

// WithResolvers adds user-supplied operations
func WithResolvers(resolvers ...Resolver) Option {
	return func(c *config) {
		c.resolvers = append(c.resolvers, resolvers...)
	}
}

// WithLogger sets the logger used by the builder and every CRUD resolver
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSynthOptions tunes type synthesis
func WithSynthOptions(opts synth.Options) Option {
	return func(c *config) {
		c.synth = opts
	}
}

// WithPageSize sets the default and maximum page size of list queries
func WithPageSize(defaultLimit, maxLimit int) Option {
	return func(c *config) {
		c.defaultLimit = defaultLimit
		c.maxLimit = maxLimit
	}
}

// WithAsyncQueue runs async hooks on queue
func WithAsyncQueue(queue *hooks.AsyncQueue) Option {
	return func(c *config) {
		c.queue = queue
	}
}

// WithStageObserver reports every resolver stage transition to fn
func WithStageObserver(fn crud.StageObserver) Option {
	return func(c *config) {
		c.observer = fn
	}
}
