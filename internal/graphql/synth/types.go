// Package synth derives the GraphQL types of a set of entities: object
// types, list filters, pagination and insert/update inputs, and enums.
package synth

import (
	"errors"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// Options tunes type synthesis
type Options struct {
	// CaseInsensitiveFilters offers _ilike instead of _like on string
	// fields.
	CaseInsensitiveFilters bool
}

// RelationResolver returns the resolver of a relationship field
type RelationResolver func(owner *schema.Entity, f *schema.Field) graphql.FieldResolveFn

// Types holds the synthesized types of every entity
type Types struct {
	opts     Options
	entities map[string]*schema.Entity
	order    []string

	objects         map[string]*graphql.Object
	listFilters     map[string]*graphql.InputObject
	relationFilters map[string]*graphql.InputObject
	insertInputs    map[string]*graphql.InputObject
	updateInputs    map[string]*graphql.InputObject
	relationInputs  map[string]*graphql.InputObject
	paginations     map[string]*graphql.InputObject
	enums           map[string]*graphql.Enum

	SortOrder       *graphql.Enum
	OrderByInput    *graphql.InputObject
	AggregateResult *graphql.Object
}

// New synthesizes the types of entities. Relationship targets must be
// resolved and part of entities.
func New(entities []*schema.Entity, opts Options, relations RelationResolver) (*Types, error) {
	t := &Types{
		opts:            opts,
		entities:        make(map[string]*schema.Entity, len(entities)),
		objects:         make(map[string]*graphql.Object),
		listFilters:     make(map[string]*graphql.InputObject),
		relationFilters: make(map[string]*graphql.InputObject),
		insertInputs:    make(map[string]*graphql.InputObject),
		updateInputs:    make(map[string]*graphql.InputObject),
		relationInputs:  make(map[string]*graphql.InputObject),
		paginations:     make(map[string]*graphql.InputObject),
		enums:           make(map[string]*graphql.Enum),
	}
	for _, e := range entities {
		t.entities[e.Name] = e
		t.order = append(t.order, e.Name)
	}

	var errs []error
	for _, e := range entities {
		for _, f := range e.RelationFields() {
			target := f.TargetEntity()
			if target == nil || t.entities[target.Name] != target {
				errs = append(errs, &schema.UnresolvedRelationshipError{
					Entity: e.Name, Field: f.Name, Reason: "target is not part of the schema",
				})
			}
		}
	}
	enums, err := CollectEnums(entities)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, name := range sortedKeys(enums) {
		enum, err := newEnum(enums[name])
		if err != nil {
			return nil, err
		}
		t.enums[name] = enum
	}
	t.shared()

	for _, e := range entities {
		t.objects[e.Name] = t.object(e, relations)
		t.listFilters[e.Name] = t.listFilter(e)
		t.insertInputs[e.Name] = t.insertInput(e)
		t.updateInputs[e.Name] = t.updateInput(e)
		t.paginations[e.Name] = graphql.NewInputObject(graphql.InputObjectConfig{
			Name: e.Plural + "PaginationInput",
			Fields: graphql.InputObjectConfigFieldMap{
				"limit":   &graphql.InputObjectFieldConfig{Type: graphql.Int},
				"offset":  &graphql.InputObjectFieldConfig{Type: graphql.Int},
				"orderBy": &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(t.OrderByInput))},
			},
		})
	}
	return t, nil
}

// shared creates the types used by every entity
func (t *Types) shared() {
	t.SortOrder = graphql.NewEnum(graphql.EnumConfig{
		Name: "SortOrder",
		Values: graphql.EnumValueConfigMap{
			"ASC":  &graphql.EnumValueConfig{Value: provider.Asc},
			"DESC": &graphql.EnumValueConfig{Value: provider.Desc},
		},
	})
	t.OrderByInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "OrderByInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"field":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"direction": &graphql.InputObjectFieldConfig{Type: t.SortOrder},
		},
	})
	t.AggregateResult = graphql.NewObject(graphql.ObjectConfig{
		Name: "AggregateResult",
		Fields: graphql.Fields{
			"count": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})
}

// Object returns the object type of an entity
func (t *Types) Object(entity string) *graphql.Object { return t.objects[entity] }

// ListFilter returns the <Plural>ListFilter input of an entity
func (t *Types) ListFilter(entity string) *graphql.InputObject { return t.listFilters[entity] }

// InsertInput returns the <Entity>InsertInput of an entity
func (t *Types) InsertInput(entity string) *graphql.InputObject { return t.insertInputs[entity] }

// UpdateInput returns the <Entity>UpdateInput of an entity
func (t *Types) UpdateInput(entity string) *graphql.InputObject { return t.updateInputs[entity] }

// Pagination returns the <Plural>PaginationInput of an entity
func (t *Types) Pagination(entity string) *graphql.InputObject { return t.paginations[entity] }

// Enum returns a synthesized enum by name
func (t *Types) Enum(name string) *graphql.Enum { return t.enums[name] }

// Enums returns every synthesized enum sorted by name
func (t *Types) Enums() []*graphql.Enum {
	out := make([]*graphql.Enum, 0, len(t.enums))
	for _, name := range sortedKeys(t.enums) {
		out = append(out, t.enums[name])
	}
	return out
}

// All returns every synthesized named type in a stable order
func (t *Types) All() []graphql.Type {
	out := []graphql.Type{t.SortOrder, t.OrderByInput, t.AggregateResult}
	for _, e := range t.Enums() {
		out = append(out, e)
	}
	for _, name := range t.order {
		out = append(out, t.objects[name], t.listFilters[name], t.paginations[name])
		if len(WritableFields(t.entities[name])) > 0 {
			out = append(out, t.insertInputs[name])
		}
		if len(UpdatableFields(t.entities[name])) > 0 {
			out = append(out, t.updateInputs[name])
		}
	}
	return out
}

func (t *Types) object(e *schema.Entity, relations RelationResolver) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name:        e.Name,
		Description: e.Description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			fields := graphql.Fields{}
			for _, f := range e.Fields {
				if !f.IsRelation() {
					fields[f.Name] = &graphql.Field{
						Type:        t.outputType(f),
						Description: f.Description,
					}
					continue
				}

				target := t.objects[f.TargetEntity().Name]
				var typ graphql.Output = target
				if f.List {
					typ = graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(target)))
				}
				field := &graphql.Field{Type: typ, Description: f.Description}
				if relations != nil {
					field.Resolve = relations(e, f)
				}
				fields[f.Name] = field
			}
			return fields
		}),
	})
}

// leaf returns the scalar or enum type of a non-relationship field
func (t *Types) leaf(f *schema.Field) graphql.Type {
	if f.Type == schema.TypeEnum && f.Enum != nil {
		return t.enums[f.Enum.Name]
	}
	return scalar(f.Type)
}

func (t *Types) outputType(f *schema.Field) graphql.Output {
	var typ graphql.Type = t.leaf(f)
	if f.List {
		typ = graphql.NewList(graphql.NewNonNull(typ))
	}
	if !f.Nullable {
		typ = graphql.NewNonNull(typ)
	}
	return typ.(graphql.Output)
}

func (t *Types) inputType(f *schema.Field, required bool) graphql.Input {
	var typ graphql.Type = t.leaf(f)
	if f.List {
		typ = graphql.NewList(graphql.NewNonNull(typ))
	}
	if required {
		typ = graphql.NewNonNull(typ)
	}
	return typ.(graphql.Input)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CollectEnums returns the distinct enums used by entities keyed by name.
// Enums sharing a name must declare the same values.
func CollectEnums(entities []*schema.Entity) (map[string]*schema.EnumType, error) {
	enums := make(map[string]*schema.EnumType)
	users := make(map[string][]string)
	conflicts := make(map[string]bool)

	for _, e := range entities {
		for _, f := range e.ScalarFields() {
			if f.Type != schema.TypeEnum || f.Enum == nil {
				continue
			}
			name := f.Enum.Name
			users[name] = append(users[name], e.Name+"."+f.Name)
			prev, ok := enums[name]
			if !ok {
				enums[name] = f.Enum
				continue
			}
			if prev != f.Enum && !prev.SameValues(f.Enum) {
				conflicts[name] = true
			}
		}
	}

	var errs []error
	for _, name := range sortedKeys(conflicts) {
		errs = append(errs, &ConflictingEnumDefinitionError{Enum: name, Fields: users[name]})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return enums, nil
}

func newEnum(e *schema.EnumType) (*graphql.Enum, error) {
	values := graphql.EnumValueConfigMap{}
	for _, v := range e.Values {
		if _, dup := values[v]; dup {
			return nil, fmt.Errorf("enum %s declares value %s twice", e.Name, v)
		}
		values[v] = &graphql.EnumValueConfig{Value: v}
	}
	return graphql.NewEnum(graphql.EnumConfig{
		Name:        e.Name,
		Description: e.Description,
		Values:      values,
	}), nil
}
