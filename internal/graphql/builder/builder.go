// Package builder turns a finalized entity registry into an executable
// GraphQL schema with one generic CRUD resolver per entity.
package builder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/graphql/synth"
	"github.com/conduit-lang/gqlmeta/internal/orm/crud"
	"github.com/conduit-lang/gqlmeta/internal/orm/dataloader"
	"github.com/conduit-lang/gqlmeta/internal/orm/relationships"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
	"github.com/conduit-lang/gqlmeta/runtime/metadata"
)

// Artifact is the executable result of a build
type Artifact struct {
	Schema    graphql.Schema
	Resolvers map[string]*crud.Resolver
	Types     *synth.Types
	Metadata  *metadata.Metadata

	// Operations lists the generated operation names of each entity
	Operations map[string][]string

	logger     *zap.Logger
	generation uint64
}

var (
	cacheMu sync.Mutex
	cache   = make(map[*schema.Registry]*Artifact)
)

// Build finalizes reg and synthesizes its schema. Building the same
// registry again returns the cached artifact until the registry is reset;
// options of later calls are ignored.
func Build(ctx context.Context, reg *schema.Registry, opts ...Option) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if a, ok := cache[reg]; ok && reg.Finalized() && a.generation == reg.Generation() {
		return a, nil
	}

	cfg := &config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	start := time.Now()
	if err := reg.Finalize(); err != nil {
		cfg.logger.Error("schema registry is invalid", zap.Error(err))
		return nil, err
	}

	a, err := build(reg, cfg)
	if err != nil {
		cfg.logger.Error("schema build failed", zap.Error(err))
		return nil, err
	}
	cache[reg] = a

	cfg.logger.Info("schema built",
		zap.Int("entities", len(a.Resolvers)),
		zap.Duration("duration", time.Since(start)))
	return a, nil
}

func build(reg *schema.Registry, cfg *config) (*Artifact, error) {
	entities := reg.Entities()
	a := &Artifact{
		Resolvers:  make(map[string]*crud.Resolver, len(entities)),
		Operations: make(map[string][]string, len(entities)),
		logger:     cfg.logger,
		generation: reg.Generation(),
	}

	lookup := func(name string) *crud.Resolver { return a.Resolvers[name] }
	for _, e := range entities {
		a.Resolvers[e.Name] = crud.New(e, e.ACL,
			crud.WithLogger(cfg.logger.Named("crud")),
			crud.WithAsyncQueue(cfg.queue),
			crud.WithLookup(lookup),
			crud.WithPageSize(cfg.defaultLimit, cfg.maxLimit),
			crud.WithStageObserver(cfg.observer))
	}

	rel := relationships.NewResolver(func(target *schema.Entity) relationships.Reader {
		if r, ok := a.Resolvers[target.Name]; ok {
			return r
		}
		return nil
	}, cfg.logger.Named("relationships"))

	types, err := synth.New(entities, cfg.synth, func(owner *schema.Entity, f *schema.Field) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (interface{}, error) {
			source, ok := p.Source.(map[string]interface{})
			if !ok {
				return nil, nil
			}
			return rel.ResolveThunk(p.Context, owner, f, source), nil
		}
	})
	if err != nil {
		return nil, err
	}
	a.Types = types

	query := newRoot("Query")
	mutation := newRoot("Mutation")
	for _, e := range entities {
		if e.ExcludeFromBuiltInOperations {
			continue
		}
		ops := &operations{entity: e, resolver: a.Resolvers[e.Name], types: types}
		a.Operations[e.Name] = ops.register(query, mutation)
	}

	a.Metadata = metadata.Collect(entities, func(e *schema.Entity) []string {
		return a.Operations[e.Name]
	})
	query.add("_metadata", "metadata", &graphql.Field{
		Type:        graphql.NewNonNull(adminMetadataType()),
		Description: "Introspection metadata for admin tooling",
		Resolve: func(graphql.ResolveParams) (interface{}, error) {
			return a.Metadata, nil
		},
	})

	for _, r := range cfg.resolvers {
		root := query
		if r.Mutation {
			root = mutation
		}
		root.add(r.Name, "resolver", r.Field)
	}

	if collisions := append(query.collisions(), mutation.collisions()...); len(collisions) > 0 {
		return nil, &OperationNameCollisionError{Collisions: collisions}
	}

	schemaConfig := graphql.SchemaConfig{
		Query: query.object(),
		Types: types.All(),
	}
	if len(mutation.fields) > 0 {
		schemaConfig.Mutation = mutation.object()
	}
	a.Schema, err = graphql.NewSchema(schemaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return a, nil
}

// Execute runs a GraphQL request against the schema. A request-scoped
// loader is attached to ctx unless it already carries one.
func (a *Artifact) Execute(ctx context.Context, query string, variables map[string]interface{}, operationName string) *graphql.Result {
	if dataloader.FromContext(ctx) == nil {
		ctx = dataloader.WithLoader(ctx, dataloader.New(dataloader.WithLogger(a.logger.Named("dataloader"))))
	}
	return graphql.Do(graphql.Params{
		Schema:         a.Schema,
		RequestString:  query,
		VariableValues: variables,
		OperationName:  operationName,
		Context:        ctx,
	})
}

// root accumulates the fields of a root operation type
type root struct {
	name    string
	fields  graphql.Fields
	sources map[string][]string
}

func newRoot(name string) *root {
	return &root{name: name, fields: graphql.Fields{}, sources: make(map[string][]string)}
}

func (r *root) add(name, source string, field *graphql.Field) {
	r.sources[name] = append(r.sources[name], source)
	if _, exists := r.fields[name]; !exists {
		r.fields[name] = field
	}
}

func (r *root) collisions() []Collision {
	var out []Collision
	for name, sources := range r.sources {
		if len(sources) > 1 {
			out = append(out, Collision{Root: r.name, Name: name, Sources: sources})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *root) object() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{Name: r.name, Fields: r.fields})
}
