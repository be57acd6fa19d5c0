package crud

import (
	"context"
	"fmt"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// DeleteOne removes the record with primary key id and reports whether it
// existed.
func (r *Resolver) DeleteOne(ctx context.Context, id any) (bool, error) {
	c := r.begin(ctx, provider.OpDeleteOne)
	restrict, err := c.authorize(acl.ActionDelete)
	if err != nil {
		return false, err
	}

	params := r.params(provider.OpDeleteOne)
	params.ID = id
	if params, err = c.before(params); err != nil {
		return false, err
	}
	if err := c.checkTargets(restrict, []any{params.ID}, acl.ActionDelete); err != nil {
		return false, err
	}

	c.enter(StageProviderCall)
	ok, err := provider.DeleteOne(ctx, r.entity.Provider, params.ID)
	if err != nil {
		return false, c.fail(err)
	}
	r.invalidate(ctx)
	params.Result = ok

	return c.finishDelete(params)
}

// DeleteMany removes the records with the given primary keys and reports
// whether any existed.
func (r *Resolver) DeleteMany(ctx context.Context, ids []any) (bool, error) {
	c := r.begin(ctx, provider.OpDeleteMany)
	restrict, err := c.authorize(acl.ActionDelete)
	if err != nil {
		return false, err
	}

	params := r.params(provider.OpDeleteMany)
	params.IDs = ids
	if params, err = c.before(params); err != nil {
		return false, err
	}
	if err := c.checkTargets(restrict, params.IDs, acl.ActionDelete); err != nil {
		return false, err
	}

	c.enter(StageProviderCall)
	ok, err := provider.DeleteMany(ctx, r.entity.Provider, params.IDs)
	if err != nil {
		return false, c.fail(err)
	}
	r.invalidate(ctx)
	params.Result = ok

	return c.finishDelete(params)
}

// finishDelete runs the after hooks of a delete and reads back its result
func (c *call) finishDelete(params *hooks.Params) (bool, error) {
	params, err := c.after(params)
	if err != nil {
		return false, err
	}
	ok, isBool := params.Result.(bool)
	if !isBool {
		return false, c.fail(fmt.Errorf("%w: %T", ErrUnexpectedResult, params.Result))
	}
	c.done()
	return ok, nil
}
