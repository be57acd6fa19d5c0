package builder

import (
	"github.com/graphql-go/graphql"

	"github.com/conduit-lang/gqlmeta/internal/graphql/synth"
	"github.com/conduit-lang/gqlmeta/internal/orm/crud"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// operations generates the built-in operations of one entity
type operations struct {
	entity   *schema.Entity
	resolver *crud.Resolver
	types    *synth.Types
}

// register adds the operations the entity's provider can serve and returns
// their names in the order they were added.
func (o *operations) register(query, mutation *root) []string {
	e := o.entity
	single := schema.LowerFirst(e.Name)
	plural := schema.LowerFirst(e.Plural)
	obj := o.types.Object(e.Name)
	list := graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(obj)))

	names := []string{}
	add := func(r *root, name string, field *graphql.Field) {
		r.add(name, e.Name, field)
		names = append(names, name)
	}

	if e.Supports(provider.OpFindOne) {
		add(query, single, &graphql.Field{
			Type:        obj,
			Description: "Fetch one " + e.Name + " by primary key",
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: o.findOne,
		})
	}
	if e.Supports(provider.OpFind) {
		add(query, plural, &graphql.Field{
			Type:        list,
			Description: "List " + e.Plural,
			Args: graphql.FieldConfigArgument{
				"filter":     &graphql.ArgumentConfig{Type: o.types.ListFilter(e.Name)},
				"pagination": &graphql.ArgumentConfig{Type: o.types.Pagination(e.Name)},
			},
			Resolve: o.find,
		})
	}
	if e.Supports(provider.OpCount) {
		add(query, plural+"_aggregate", &graphql.Field{
			Type:        o.types.AggregateResult,
			Description: "Aggregate " + e.Plural,
			Args: graphql.FieldConfigArgument{
				"filter": &graphql.ArgumentConfig{Type: o.types.ListFilter(e.Name)},
			},
			Resolve: o.aggregate,
		})
	}

	if e.ExcludeFromBuiltInWriteOperations {
		return names
	}

	name := schema.UpperFirst(e.Name)
	plurals := schema.UpperFirst(e.Plural)
	writable := len(synth.WritableFields(e)) > 0
	updatable := len(synth.UpdatableFields(e)) > 0

	if synth.Creatable(e) {
		add(mutation, "create"+name, &graphql.Field{
			Type: obj,
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(o.types.InsertInput(e.Name))},
			},
			Resolve: o.createOne,
		})
	}
	if e.Supports(provider.OpUpdateOne) && updatable {
		add(mutation, "update"+name, &graphql.Field{
			Type: obj,
			Args: graphql.FieldConfigArgument{
				"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(o.types.UpdateInput(e.Name))},
			},
			Resolve: o.updateOne,
		})
	}
	if e.Supports(provider.OpDeleteOne) {
		add(mutation, "delete"+name, &graphql.Field{
			Type: graphql.Boolean,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: o.deleteOne,
		})
	}

	if e.Supports(provider.OpCreateMany) && writable {
		add(mutation, "create"+plurals, &graphql.Field{
			Type: list,
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{Type: nonNullList(o.types.InsertInput(e.Name))},
			},
			Resolve: o.createMany,
		})
	}
	if e.Supports(provider.OpUpdateMany) && updatable {
		add(mutation, "update"+plurals, &graphql.Field{
			Type: list,
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{Type: nonNullList(o.types.UpdateInput(e.Name))},
			},
			Resolve: o.updateMany,
		})
	}
	if e.Supports(provider.OpDeleteMany) {
		add(mutation, "delete"+plurals, &graphql.Field{
			Type: graphql.Boolean,
			Args: graphql.FieldConfigArgument{
				"ids": &graphql.ArgumentConfig{Type: nonNullList(graphql.ID)},
			},
			Resolve: o.deleteMany,
		})
	}
	return names
}

func nonNullList(t graphql.Type) *graphql.NonNull {
	return graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t)))
}

func (o *operations) findOne(p graphql.ResolveParams) (interface{}, error) {
	rec, err := o.resolver.FindOne(p.Context, p.Args["id"])
	if err != nil || rec == nil {
		return nil, err
	}
	return rec, nil
}

func (o *operations) find(p graphql.ResolveParams) (interface{}, error) {
	page, err := pagination(p.Args["pagination"])
	if err != nil {
		return nil, err
	}
	return o.resolver.Find(p.Context, filter(p.Args["filter"]), page)
}

func (o *operations) aggregate(p graphql.ResolveParams) (interface{}, error) {
	n, err := o.resolver.Count(p.Context, filter(p.Args["filter"]))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": n}, nil
}

func (o *operations) createOne(p graphql.ResolveParams) (interface{}, error) {
	rec, err := o.resolver.CreateOne(p.Context, record(p.Args["input"]))
	if err != nil || rec == nil {
		return nil, err
	}
	return rec, nil
}

func (o *operations) updateOne(p graphql.ResolveParams) (interface{}, error) {
	rec, err := o.resolver.UpdateOne(p.Context, p.Args["id"], record(p.Args["input"]))
	if err != nil || rec == nil {
		return nil, err
	}
	return rec, nil
}

func (o *operations) deleteOne(p graphql.ResolveParams) (interface{}, error) {
	return o.resolver.DeleteOne(p.Context, p.Args["id"])
}

func (o *operations) createMany(p graphql.ResolveParams) (interface{}, error) {
	return o.resolver.CreateMany(p.Context, records(p.Args["input"]))
}

func (o *operations) updateMany(p graphql.ResolveParams) (interface{}, error) {
	return o.resolver.UpdateMany(p.Context, records(p.Args["input"]))
}

func (o *operations) deleteMany(p graphql.ResolveParams) (interface{}, error) {
	ids, _ := p.Args["ids"].([]interface{})
	return o.resolver.DeleteMany(p.Context, ids)
}
