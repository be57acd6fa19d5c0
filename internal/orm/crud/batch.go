package crud

import (
	"context"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// CreateMany inserts several records in one provider call
func (r *Resolver) CreateMany(ctx context.Context, inputs []provider.Record) ([]provider.Record, error) {
	c := r.begin(ctx, provider.OpCreateMany)
	restrict, err := c.authorize(acl.ActionCreate)
	if err != nil {
		return nil, err
	}

	params := r.params(provider.OpCreateMany)
	params.Inputs = inputs
	if params, err = c.before(params); err != nil {
		return nil, err
	}

	values := make([]provider.Record, 0, len(params.Inputs))
	var nested []nestedCreate
	for _, in := range params.Inputs {
		v, pending, err := r.toBackend(in, true)
		if err != nil {
			return nil, c.fail(err)
		}
		values = append(values, v)
		nested = append(nested, pending...)
	}
	if err := c.checkInputs(restrict, values, nested, acl.ActionCreate); err != nil {
		return nil, err
	}
	created, err := c.createNested(nested)
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		if err := c.checkInputs(restrict, values, nil, acl.ActionCreate); err != nil {
			c.rollback(created)
			return nil, err
		}
	}

	c.enter(StageProviderCall)
	rows, err := provider.CreateMany(ctx, r.entity.Provider, values)
	if err != nil {
		c.rollback(created)
		return nil, c.fail(err)
	}
	r.invalidate(ctx)
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

// UpdateMany patches several records. Every input carries the primary key
// of the record it targets.
func (r *Resolver) UpdateMany(ctx context.Context, inputs []provider.Record) ([]provider.Record, error) {
	c := r.begin(ctx, provider.OpUpdateMany)
	restrict, err := c.authorize(acl.ActionUpdate)
	if err != nil {
		return nil, err
	}

	params := r.params(provider.OpUpdateMany)
	ve := &ValidationError{Entity: r.entity.Name}
	for _, in := range inputs {
		id, ok := in[r.entity.PrimaryKey]
		if !ok || id == nil {
			ve.add(r.entity.PrimaryKey, nil, "required to target an update")
			continue
		}
		params.Updates = append(params.Updates, provider.Update{ID: id, Input: in})
	}
	if err := ve.orNil(); err != nil {
		return nil, c.fail(err)
	}
	if params, err = c.before(params); err != nil {
		return nil, err
	}

	updates := make([]provider.Update, 0, len(params.Updates))
	var nested []nestedCreate
	for _, u := range params.Updates {
		v, pending, err := r.toBackend(u.Input, false)
		if err != nil {
			return nil, c.fail(err)
		}
		updates = append(updates, provider.Update{ID: u.ID, Input: v})
		nested = append(nested, pending...)
	}
	created, err := c.prepareUpdates(restrict, updates, nested)
	if err != nil {
		return nil, err
	}

	c.enter(StageProviderCall)
	rows, err := provider.UpdateMany(ctx, r.entity.Provider, updates)
	if err != nil {
		c.rollback(created)
		return nil, c.fail(err)
	}
	r.invalidate(ctx)
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
