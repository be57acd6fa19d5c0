package synth

import (
	"github.com/graphql-go/graphql"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// Filterable reports whether a field appears in its entity's list filter.
// Many-to-one relationships are filterable through the id they store.
func Filterable(f *schema.Field) bool {
	if f.ExcludeFromFilterType {
		return false
	}
	if f.IsRelation() {
		return f.Relation == schema.RelationManyToOne && f.IDField != ""
	}
	return true
}

// FilterOperators returns the operators offered for a scalar field
func FilterOperators(f *schema.Field, opts Options) []provider.Operator {
	if f.List {
		return []provider.Operator{provider.Eq, provider.IsNull}
	}
	if f.Type == schema.TypeJSON {
		return []provider.Operator{provider.IsNull}
	}

	ops := []provider.Operator{provider.Eq, provider.Ne}
	if f.Type.Orderable() {
		ops = append(ops, provider.Gt, provider.Gte, provider.Lt, provider.Lte)
	}
	ops = append(ops, provider.In, provider.NotIn)
	if f.Type == schema.TypeString {
		if opts.CaseInsensitiveFilters {
			ops = append(ops, provider.ILike)
		} else {
			ops = append(ops, provider.Like)
		}
	}
	return append(ops, provider.IsNull)
}

func (t *Types) listFilter(e *schema.Entity) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        e.Plural + "ListFilter",
		Description: "Filter for " + e.Plural,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			self := graphql.NewList(graphql.NewNonNull(t.listFilters[e.Name]))
			fields := graphql.InputObjectConfigFieldMap{
				provider.KeyAnd: &graphql.InputObjectFieldConfig{Type: self},
				provider.KeyOr:  &graphql.InputObjectFieldConfig{Type: self},
			}
			for _, f := range e.Fields {
				if !Filterable(f) {
					continue
				}
				if f.IsRelation() {
					fields[f.Name] = &graphql.InputObjectFieldConfig{Type: t.relationFilter(f.TargetEntity())}
					continue
				}
				for _, op := range FilterOperators(f, t.opts) {
					fields[f.Name+op.Suffix()] = &graphql.InputObjectFieldConfig{Type: t.operandType(f, op)}
				}
			}
			return fields
		}),
	})
}

func (t *Types) operandType(f *schema.Field, op provider.Operator) graphql.Input {
	switch op {
	case provider.In, provider.NotIn:
		return graphql.NewList(graphql.NewNonNull(t.leaf(f)))
	case provider.Like, provider.ILike:
		return graphql.String
	case provider.IsNull:
		return graphql.Boolean
	default:
		return t.leaf(f).(graphql.Input)
	}
}

// relationFilter returns <Target>RelationFilter, which selects related
// records by primary key.
func (t *Types) relationFilter(target *schema.Entity) *graphql.InputObject {
	if in, ok := t.relationFilters[target.Name]; ok {
		return in
	}
	in := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: target.Name + "RelationFilter",
		Fields: graphql.InputObjectConfigFieldMap{
			target.PrimaryKey:                        &graphql.InputObjectFieldConfig{Type: graphql.ID},
			target.PrimaryKey + provider.In.Suffix(): &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.ID))},
		},
	})
	t.relationFilters[target.Name] = in
	return in
}
