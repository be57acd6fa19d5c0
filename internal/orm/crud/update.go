package crud

import (
	"context"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// UpdateOne patches the record with primary key id. It returns nil when
// the record does not exist.
func (r *Resolver) UpdateOne(ctx context.Context, id any, input provider.Record) (provider.Record, error) {
	c := r.begin(ctx, provider.OpUpdateOne)
	restrict, err := c.authorize(acl.ActionUpdate)
	if err != nil {
		return nil, err
	}

	params := r.params(provider.OpUpdateOne)
	params.ID = id
	params.Input = input
	if params, err = c.before(params); err != nil {
		return nil, err
	}

	values, nested, err := r.toBackend(params.Input, false)
	if err != nil {
		return nil, c.fail(err)
	}
	created, err := c.prepareUpdates(restrict, []provider.Update{{ID: params.ID, Input: values}}, nested)
	if err != nil {
		return nil, err
	}

	c.enter(StageProviderCall)
	rec, err := provider.UpdateOne(ctx, r.entity.Provider, params.ID, values)
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

// prepareUpdates checks that every target is visible to the caller now and
// stays within the caller's row filter once patched, then runs the nested
// creates the patches asked for.
func (c *call) prepareUpdates(restrict provider.Filter, updates []provider.Update, nested []nestedCreate) ([]nestedCreate, error) {
	ids := make([]any, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
	}
	current, err := c.loadTargets(restrict, ids, acl.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if err := c.checkInputs(restrict, patched(current, updates), nested, acl.ActionUpdate); err != nil {
		return nil, err
	}
	created, err := c.createNested(nested)
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		if err := c.checkInputs(restrict, patched(current, updates), nil, acl.ActionUpdate); err != nil {
			c.rollback(created)
			return nil, err
		}
	}
	return created, nil
}
