package crud

import (
	"context"
	"fmt"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/dataloader"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// FindOne returns the record with primary key id, or nil when it does not
// exist or the caller may not see it.
func (r *Resolver) FindOne(ctx context.Context, id any) (provider.Record, error) {
	c := r.begin(ctx, provider.OpFindOne)
	filter, err := c.authorize(acl.ActionRead)
	if err != nil {
		return nil, err
	}

	params := r.params(provider.OpFindOne)
	params.ID = id
	if params, err = c.before(params); err != nil {
		return nil, err
	}

	c.enter(StageProviderCall)
	rec, err := dataloader.For(ctx).LoadOne(ctx, r.entity, params.ID)
	if err != nil {
		return nil, c.fail(err)
	}
	if rec != nil {
		rows, err := c.visible(filter, []provider.Record{rec})
		if err != nil {
			return nil, err
		}
		if len(rows) == 1 {
			params.Result = r.toGraphQL(rows[0])
		}
	}

	if params, err = c.after(params); err != nil {
		return nil, err
	}
	out, err := asRecord(params.Result)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done()
	return out, nil
}

// Find lists the records matching filter, which is keyed by field names.
// The caller's row filter is AND-combined with it.
func (r *Resolver) Find(ctx context.Context, filter provider.Filter, page *provider.Pagination) ([]provider.Record, error) {
	c := r.begin(ctx, provider.OpFind)
	restrict, err := c.authorize(acl.ActionRead)
	if err != nil {
		return nil, err
	}

	params := r.params(provider.OpFind)
	params.Filter = filter
	params.Pagination = page
	if params, err = c.before(params); err != nil {
		return nil, err
	}

	where, err := r.translateFilter(params.Filter)
	if err != nil {
		return nil, c.fail(err)
	}
	pg, err := r.translatePage(params.Pagination)
	if err != nil {
		return nil, c.fail(err)
	}

	c.enter(StageProviderCall)
	rows, err := provider.Find(ctx, r.entity.Provider, provider.And(where, restrict), pg)
	if err != nil {
		return nil, c.fail(err)
	}
	r.prime(ctx, rows)
	params.Result = r.toGraphQLList(rows)

	if params, err = c.after(params); err != nil {
		return nil, err
	}
	out, err := asRecords(params.Result)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done()
	return out, nil
}

// Count counts the records matching filter within the caller's row filter
func (r *Resolver) Count(ctx context.Context, filter provider.Filter) (int, error) {
	c := r.begin(ctx, provider.OpCount)
	restrict, err := c.authorize(acl.ActionRead)
	if err != nil {
		return 0, err
	}

	params := r.params(provider.OpCount)
	params.Filter = filter
	if params, err = c.before(params); err != nil {
		return 0, err
	}

	where, err := r.translateFilter(params.Filter)
	if err != nil {
		return 0, c.fail(err)
	}

	c.enter(StageProviderCall)
	n, err := provider.Count(ctx, r.entity.Provider, provider.And(where, restrict))
	if err != nil {
		return 0, c.fail(err)
	}
	params.Result = n

	if params, err = c.after(params); err != nil {
		return 0, err
	}
	n, ok := params.Result.(int)
	if !ok {
		return 0, c.fail(fmt.Errorf("%w: %T", ErrUnexpectedResult, params.Result))
	}
	c.done()
	return n, nil
}

// FindByRelatedID lists the records whose field relatedField references
// id.
func (r *Resolver) FindByRelatedID(ctx context.Context, relatedField string, id any) ([]provider.Record, error) {
	c := r.begin(ctx, provider.OpFindByRelatedID)
	restrict, err := c.authorize(acl.ActionRead)
	if err != nil {
		return nil, err
	}

	params := r.params(provider.OpFindByRelatedID)
	params.ID = id
	params.Filter = provider.Filter{relatedField: id}
	if params, err = c.before(params); err != nil {
		return nil, err
	}

	f, ok := r.entity.Field(relatedField)
	if !ok || f.IsRelation() {
		return nil, c.fail(invalid(r.entity.Name, relatedField, ErrFieldNotFound, "unknown related field"))
	}

	c.enter(StageProviderCall)
	rows, err := dataloader.For(ctx).LoadByRelatedID(ctx, r.entity, f.ColumnName(), params.ID)
	if err != nil {
		return nil, c.fail(err)
	}
	if rows, err = c.visible(restrict, rows); err != nil {
		return nil, err
	}
	params.Result = r.toGraphQLList(rows)

	if params, err = c.after(params); err != nil {
		return nil, err
	}
	out, err := asRecords(params.Result)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done()
	return out, nil
}

// ReadLoaded implements relationships.Reader. It applies the read ACL and
// read hooks to backend records loaded for a relationship field and maps
// them to the entity's GraphQL shape. Rows outside the caller's row filter,
// or outside a filter set by a before-read hook, are dropped.
func (r *Resolver) ReadLoaded(ctx context.Context, rows []provider.Record) ([]provider.Record, error) {
	c := r.begin(ctx, provider.OpFind)
	restrict, err := c.authorize(acl.ActionRead)
	if err != nil {
		return nil, err
	}

	params := r.params(provider.OpFind)
	if params, err = c.before(params); err != nil {
		return nil, err
	}
	where, err := r.translateFilter(params.Filter)
	if err != nil {
		return nil, c.fail(err)
	}
	if rows, err = c.visible(provider.And(restrict, where), rows); err != nil {
		return nil, err
	}
	params.Result = r.toGraphQLList(rows)
	if params, err = c.after(params); err != nil {
		return nil, err
	}
	out, err := asRecords(params.Result)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done()
	return out, nil
}
