package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/dataloader"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// checkTargets refuses a write unless every target id is visible through
// the caller's row filter.
func (c *call) checkTargets(filter provider.Filter, ids []any, action acl.Action) error {
	_, err := c.loadTargets(filter, ids, action)
	return err
}

// loadTargets returns the current records of ids keyed by provider.KeyOf,
// refusing the write unless each is visible through the caller's row
// filter. Without a filter nothing is loaded.
func (c *call) loadTargets(filter provider.Filter, ids []any, action acl.Action) (map[string]provider.Record, error) {
	if len(filter) == 0 || len(ids) == 0 {
		return nil, nil
	}
	e := c.r.entity
	pk := e.PrimaryKeyColumn()
	visible := make(map[string]provider.Record, len(ids))

	if e.Capabilities().Has(provider.CapFind) {
		rows, err := provider.Find(c.ctx, e.Provider, provider.And(filter, provider.Filter{pk + provider.In.Suffix(): ids}), nil)
		if err != nil {
			return nil, c.fail(err)
		}
		for _, row := range rows {
			visible[provider.KeyOf(row[pk])] = row
		}
	} else {
		for _, id := range ids {
			rec, err := provider.FindOne(c.ctx, e.Provider, pk, id)
			if err != nil {
				return nil, c.fail(err)
			}
			if rec == nil {
				continue
			}
			ok, err := provider.Matches(rec, filter)
			if err != nil {
				return nil, c.fail(err)
			}
			if ok {
				visible[provider.KeyOf(id)] = rec
			}
		}
	}

	for _, id := range ids {
		if _, ok := visible[provider.KeyOf(id)]; !ok {
			return nil, c.fail(&ForbiddenError{Entity: e.Name, Action: action})
		}
	}
	return visible, nil
}

// checkInputs refuses a write whose records would fall outside the
// caller's row filter. Columns still waiting on a pending nested create
// are not known yet and are left out of the check.
func (c *call) checkInputs(filter provider.Filter, inputs []provider.Record, pending []nestedCreate, action acl.Action) error {
	if len(filter) == 0 {
		return nil
	}
	group, err := provider.Parse(filter)
	if err != nil {
		return c.fail(err)
	}
	if len(pending) > 0 {
		cols := make(map[string]bool, len(pending))
		for _, n := range pending {
			cols[n.column] = true
		}
		group = group.Without(cols)
	}
	for _, in := range inputs {
		if !provider.Match(in, group) {
			return c.fail(&ForbiddenError{Entity: c.r.entity.Name, Action: action})
		}
	}
	return nil
}

// patched returns each update applied over its current record, as the
// record will read once the write is done.
func patched(current map[string]provider.Record, updates []provider.Update) []provider.Record {
	out := make([]provider.Record, 0, len(updates))
	for _, u := range updates {
		rec := make(provider.Record, len(current[provider.KeyOf(u.ID)])+len(u.Input))
		for k, v := range current[provider.KeyOf(u.ID)] {
			rec[k] = v
		}
		for k, v := range u.Input {
			rec[k] = v
		}
		out = append(out, rec)
	}
	return out
}

// createNested runs pending nested creates in order and fills in the
// referencing columns. When one fails the records already created are
// removed again.
func (c *call) createNested(pending []nestedCreate) ([]nestedCreate, error) {
	created := make([]nestedCreate, 0, len(pending))
	for _, n := range pending {
		target := n.related.entity
		rec, err := n.related.CreateOne(c.ctx, n.input)
		if err == nil && rec == nil {
			err = fmt.Errorf("nested create of %s returned no record", target.Name)
		}
		if err != nil {
			c.rollback(created)
			if nested, ok := err.(*ValidationError); ok {
				ve := &ValidationError{Entity: c.r.entity.Name}
				for _, fe := range nested.Errors {
					ve.add(n.field+"."+fe.Field, fe.Err, "%s", fe.Message)
				}
				err = ve
			}
			return nil, c.fail(err)
		}
		n.id = rec[target.PrimaryKey]
		n.values[n.column] = n.id
		created = append(created, n)
	}
	return created, nil
}

// rollback removes records made by nested creates for a write that did
// not happen. Failures are logged and otherwise ignored.
func (c *call) rollback(created []nestedCreate) {
	for i := len(created) - 1; i >= 0; i-- {
		n := created[i]
		target := n.related.entity
		if _, err := provider.DeleteOne(c.ctx, target.Provider, n.id); err != nil {
			c.r.logger.Warn("failed to remove nested record", append(c.fields(),
				zap.String("related", target.Name),
				zap.Any("id", n.id),
				zap.Error(err))...)
		}
		n.related.invalidate(c.ctx)
	}
}

// visible keeps the rows matching the caller's row filter
func (c *call) visible(filter provider.Filter, rows []provider.Record) ([]provider.Record, error) {
	if len(filter) == 0 {
		return rows, nil
	}
	group, err := provider.Parse(filter)
	if err != nil {
		return nil, c.fail(err)
	}
	out := make([]provider.Record, 0, len(rows))
	for _, row := range rows {
		if row != nil && provider.Match(row, group) {
			out = append(out, row)
		}
	}
	return out, nil
}

// invalidate drops the request's cached records of the entity after a
// write.
func (r *Resolver) invalidate(ctx context.Context) {
	if l := dataloader.FromContext(ctx); l != nil {
		l.Forget(r.entity)
	}
}

// prime hands records read by a list query to the request's loader
func (r *Resolver) prime(ctx context.Context, rows []provider.Record) {
	l := dataloader.FromContext(ctx)
	if l == nil {
		return
	}
	for _, row := range rows {
		l.Prime(r.entity, row)
	}
}
