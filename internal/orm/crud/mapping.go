package crud

import (
	"fmt"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// toGraphQL maps a backend record onto the entity's fields and applies the
// entity's Serialize function.
func (r *Resolver) toGraphQL(rec provider.Record) provider.Record {
	if rec == nil {
		return nil
	}
	out := make(provider.Record, len(r.entity.Fields))
	for _, f := range r.entity.Fields {
		if f.IsRelation() {
			continue
		}
		if v, ok := rec[f.ColumnName()]; ok {
			out[f.Name] = v
		}
	}
	if r.entity.Serialize != nil {
		out = r.entity.Serialize(out)
	}
	return out
}

func (r *Resolver) toGraphQLList(rows []provider.Record) []provider.Record {
	out := make([]provider.Record, 0, len(rows))
	for _, rec := range rows {
		if rec != nil {
			out = append(out, r.toGraphQL(rec))
		}
	}
	return out
}

// nestedCreate is a related record requested through a relationship
// input. It is created only after the owning write has passed its access
// checks; its id then fills column of values.
type nestedCreate struct {
	field   string
	column  string
	related *Resolver
	input   provider.Record
	values  provider.Record
	id      any
}

// toBackend maps a GraphQL input onto backend columns after the entity's
// Deserialize function. Many-to-one relationship inputs are replaced by the
// referenced id; nested creates are returned pending.
func (r *Resolver) toBackend(in provider.Record, keepPrimaryKey bool) (provider.Record, []nestedCreate, error) {
	if r.entity.Deserialize != nil {
		in = r.entity.Deserialize(in)
	}

	ve := &ValidationError{Entity: r.entity.Name}
	out := make(provider.Record, len(in))
	var nested []nestedCreate
	for name, value := range in {
		f, ok := r.entity.Field(name)
		switch {
		case !ok:
			ve.add(name, ErrFieldNotFound, "unknown field")
		case f.ReadOnly:
			ve.add(name, ErrReadOnlyField, "field is read-only")
		case name == r.entity.PrimaryKey && !keepPrimaryKey:
		case f.IsRelation():
			col, id, pending, err := r.relationInput(f, value)
			if err != nil {
				if fe, ok := err.(*ValidationError); ok {
					ve.Errors = append(ve.Errors, fe.Errors...)
					continue
				}
				return nil, nil, err
			}
			if pending != nil {
				pending.values = out
				nested = append(nested, *pending)
				continue
			}
			if col != "" {
				out[col] = id
			}
		default:
			out[f.ColumnName()] = value
		}
	}
	if err := ve.orNil(); err != nil {
		return nil, nil, err
	}
	return out, nested, nil
}

// relationInput resolves the value of a many-to-one relationship input:
// either a bare id or an object {id, create}.
func (r *Resolver) relationInput(f *schema.Field, value any) (string, any, *nestedCreate, error) {
	if f.Relation != schema.RelationManyToOne || f.IDField == "" {
		return "", nil, nil, invalid(r.entity.Name, f.Name, ErrRelationshipField, "relationship is not writable")
	}
	idField, ok := r.entity.Field(f.IDField)
	if !ok {
		return "", nil, nil, invalid(r.entity.Name, f.Name, ErrFieldNotFound, "unknown id field %s", f.IDField)
	}
	col := idField.ColumnName()

	obj, isObj := asInput(value)
	if !isObj {
		return col, value, nil, nil
	}

	if create, ok := obj["create"]; ok && create != nil {
		target := f.TargetEntity()
		if target == nil || r.lookup == nil {
			return "", nil, nil, invalid(r.entity.Name, f.Name, ErrRelationshipField, "nested create is not available")
		}
		related := r.lookup(target.Name)
		if related == nil {
			return "", nil, nil, invalid(r.entity.Name, f.Name, ErrRelationshipField, "nested create is not available")
		}
		input, ok := asInput(create)
		if !ok {
			return "", nil, nil, invalid(r.entity.Name, f.Name, nil, "create expects an object")
		}
		return col, nil, &nestedCreate{field: f.Name, column: col, related: related, input: input}, nil
	}
	return col, obj["id"], nil, nil
}

func asInput(v any) (provider.Record, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case provider.Filter:
		return provider.Record(m), true
	default:
		return nil, false
	}
}

// translateFilter rewrites a filter keyed by field names into one keyed by
// backend columns. Many-to-one relationship filters keyed by the target's
// primary key become conditions on the owner's id column.
func (r *Resolver) translateFilter(f provider.Filter) (provider.Filter, error) {
	if len(f) == 0 {
		return nil, nil
	}
	ve := &ValidationError{Entity: r.entity.Name}
	out := make(provider.Filter, len(f))
	for key, value := range f {
		if key == provider.KeyAnd || key == provider.KeyOr {
			subs, err := provider.Nested(value)
			if err != nil {
				ve.add(key, err, "%v", err)
				continue
			}
			translated := make([]provider.Filter, 0, len(subs))
			for _, sub := range subs {
				t, err := r.translateFilter(sub)
				if err != nil {
					return nil, err
				}
				translated = append(translated, t)
			}
			out[key] = translated
			continue
		}

		name, op := key, provider.Eq
		field, ok := r.entity.Field(key)
		if !ok {
			name, op = provider.SplitKey(key)
			field, ok = r.entity.Field(name)
		}
		switch {
		case !ok:
			ve.add(key, ErrFieldNotFound, "unknown filter field")
		case field.IsRelation():
			if err := r.translateRelationFilter(field, value, out); err != nil {
				ve.add(key, ErrRelationshipField, "%v", err)
			}
		default:
			out[field.ColumnName()+op.Suffix()] = value
		}
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) translateRelationFilter(f *schema.Field, value any, out provider.Filter) error {
	if f.Relation != schema.RelationManyToOne || f.IDField == "" {
		return fmt.Errorf("relationship %s cannot be filtered", f.Name)
	}
	idField, ok := r.entity.Field(f.IDField)
	if !ok {
		return fmt.Errorf("unknown id field %s", f.IDField)
	}
	cond, ok := asInput(value)
	if !ok {
		return fmt.Errorf("expected an object")
	}
	target := f.TargetEntity()
	for key, v := range cond {
		op := provider.Eq
		if target == nil || key != target.PrimaryKey {
			var name string
			name, op = provider.SplitKey(key)
			if target != nil && name != target.PrimaryKey {
				return fmt.Errorf("unknown key %s", key)
			}
		}
		if op != provider.Eq && op != provider.In {
			return fmt.Errorf("unsupported operator on %s", key)
		}
		out[idField.ColumnName()+op.Suffix()] = v
	}
	return nil
}

// translatePage maps order-by fields onto columns and applies the page
// size bounds.
func (r *Resolver) translatePage(page *provider.Pagination) (*provider.Pagination, error) {
	out := &provider.Pagination{}
	if page != nil {
		out.Limit = page.Limit
		out.Offset = page.Offset
		for _, o := range page.OrderBy {
			f, ok := r.entity.Field(o.Field)
			if !ok || f.IsRelation() {
				return nil, invalid(r.entity.Name, o.Field, ErrFieldNotFound, "cannot order by %s", o.Field)
			}
			out.OrderBy = append(out.OrderBy, provider.OrderBy{Field: f.ColumnName(), Direction: o.Direction})
		}
	}
	if out.Offset < 0 {
		return nil, invalid(r.entity.Name, "offset", nil, "offset must not be negative")
	}
	if out.Limit < 0 {
		return nil, invalid(r.entity.Name, "limit", nil, "limit must not be negative")
	}
	if out.Limit == 0 {
		out.Limit = r.defaultLimit
	}
	if r.maxLimit > 0 && (out.Limit == 0 || out.Limit > r.maxLimit) {
		out.Limit = r.maxLimit
	}
	if out.Limit == 0 && out.Offset == 0 && len(out.OrderBy) == 0 {
		return nil, nil
	}
	return out, nil
}

func asRecord(v any) (provider.Record, error) {
	switch rec := v.(type) {
	case nil:
		return nil, nil
	case provider.Record:
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedResult, v)
	}
}

func asRecords(v any) ([]provider.Record, error) {
	switch rows := v.(type) {
	case nil:
		return []provider.Record{}, nil
	case []provider.Record:
		return rows, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedResult, v)
	}
}
