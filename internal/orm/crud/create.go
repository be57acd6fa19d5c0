package crud

import (
	"context"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// CreateOne inserts a record from an input keyed by field names and
// returns the stored record.
func (r *Resolver) CreateOne(ctx context.Context, input provider.Record) (provider.Record, error) {
	c := r.begin(ctx, provider.OpCreateOne)
	restrict, err := c.authorize(acl.ActionCreate)
	if err != nil {
		return nil, err
	}

	params := r.params(provider.OpCreateOne)
	params.Input = input
	if params, err = c.before(params); err != nil {
		return nil, err
	}

	values, nested, err := r.toBackend(params.Input, true)
	if err != nil {
		return nil, c.fail(err)
	}
	inputs := []provider.Record{values}
	if err := c.checkInputs(restrict, inputs, nested, acl.ActionCreate); err != nil {
		return nil, err
	}
	created, err := c.createNested(nested)
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		if err := c.checkInputs(restrict, inputs, nil, acl.ActionCreate); err != nil {
			c.rollback(created)
			return nil, err
		}
	}

	c.enter(StageProviderCall)
	rec, err := provider.CreateOne(ctx, r.entity.Provider, values)
	if err != nil {
		c.rollback(created)
		return nil, c.fail(err)
	}
	r.invalidate(ctx)
	if rec != nil {
		params.Result = r.toGraphQL(rec)
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
