// Package relationships resolves relationship fields at request time on top
// of the request-scoped dataloader.
package relationships

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/orm/dataloader"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// Reader post-processes backend records loaded for a relationship: access
// control, hooks and mapping into the GraphQL shape of the target entity.
type Reader interface {
	ReadLoaded(ctx context.Context, rows []provider.Record) ([]provider.Record, error)
}

// ReaderFunc adapts a function to Reader
type ReaderFunc func(ctx context.Context, rows []provider.Record) ([]provider.Record, error)

// ReadLoaded calls f
func (f ReaderFunc) ReadLoaded(ctx context.Context, rows []provider.Record) ([]provider.Record, error) {
	return f(ctx, rows)
}

// ReaderLookup returns the Reader of a target entity. A nil Reader returns
// the loaded records unchanged.
type ReaderLookup func(target *schema.Entity) Reader

// ResolveTarget resolves the target descriptor of a relationship field
func ResolveTarget(reg *schema.Registry, owner *schema.Entity, f *schema.Field) (*schema.Entity, error) {
	return reg.ResolveTarget(owner, f)
}

// Resolver loads relationship fields
type Resolver struct {
	readers ReaderLookup
	logger  *zap.Logger
}

// NewResolver creates a relationship resolver
func NewResolver(readers ReaderLookup, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{readers: readers, logger: logger}
}

// Resolve loads the value of relationship field f for a source record of
// owner. source is keyed by field name. Many-to-one fields yield a
// provider.Record (nil when absent); to-many fields yield []provider.Record.
func (r *Resolver) Resolve(ctx context.Context, owner *schema.Entity, f *schema.Field, source provider.Record) (any, error) {
	return r.ResolveThunk(ctx, owner, f, source)()
}

// ResolveThunk is Resolve deferred. Many-to-one lookups are queued with the
// loader when the thunk is created, so thunks created for sibling records
// are loaded in one batch.
func (r *Resolver) ResolveThunk(ctx context.Context, owner *schema.Entity, f *schema.Field, source provider.Record) func() (any, error) {
	fail := func(err error) func() (any, error) {
		return func() (any, error) { return nil, err }
	}

	target := f.TargetEntity()
	if target == nil {
		return fail(fmt.Errorf("%w: %s.%s", ErrUnresolvedTarget, owner.Name, f.Name))
	}
	loader := dataloader.For(ctx)

	switch {
	case f.Relation == schema.RelationManyToOne:
		id := f.ExtractID(source)
		if id == nil {
			return func() (any, error) { return nil, nil }
		}
		thunk := loader.LoadOneThunk(ctx, target, id)
		return func() (any, error) {
			rec, err := thunk()
			if err != nil || rec == nil {
				return nil, err
			}
			rows, err := r.read(ctx, target, []provider.Record{rec})
			if err != nil || len(rows) == 0 {
				return nil, err
			}
			return rows[0], nil
		}

	case f.Relation == schema.RelationManyToMany && f.UsesIDStrategy():
		ids, _ := provider.ToSlice(f.ExtractID(source))
		thunks := make([]dataloader.Thunk, 0, len(ids))
		for _, id := range ids {
			if id != nil {
				thunks = append(thunks, loader.LoadOneThunk(ctx, target, id))
			}
		}
		return func() (any, error) {
			rows := make([]provider.Record, 0, len(thunks))
			for _, thunk := range thunks {
				rec, err := thunk()
				if err != nil {
					return nil, err
				}
				if rec != nil {
					rows = append(rows, rec)
				}
			}
			return r.read(ctx, target, rows)
		}

	case f.Relation == schema.RelationOneToMany || f.Relation == schema.RelationManyToMany:
		related, ok := target.Field(f.RelatedField)
		if !ok {
			return fail(fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, target.Name, f.RelatedField))
		}
		id := source[owner.PrimaryKey]
		if id == nil {
			return func() (any, error) { return []provider.Record{}, nil }
		}
		return func() (any, error) {
			rows, err := loader.LoadByRelatedID(ctx, target, related.ColumnName(), id)
			if err != nil {
				return nil, err
			}
			return r.read(ctx, target, rows)
		}

	default:
		return fail(fmt.Errorf("%w: %s", ErrInvalidRelationType, f.Relation))
	}
}

func (r *Resolver) read(ctx context.Context, target *schema.Entity, rows []provider.Record) ([]provider.Record, error) {
	if rows == nil {
		rows = []provider.Record{}
	}
	if r.readers == nil {
		return rows, nil
	}
	reader := r.readers(target)
	if reader == nil {
		return rows, nil
	}
	out, err := reader.ReadLoaded(ctx, rows)
	if err != nil {
		r.logger.Debug("relationship read refused",
			zap.String("entity", target.Name),
			zap.Error(err))
	}
	return out, err
}
