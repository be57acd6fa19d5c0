package synth

import (
	"github.com/graphql-go/graphql"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// inputCandidate reports whether a field may appear in any input type.
// ReadOnly wins over every other flag.
func inputCandidate(f *schema.Field) bool {
	if f.ReadOnly || f.ExcludeFromInputTypes {
		return false
	}
	if f.IsRelation() {
		return f.Relation == schema.RelationManyToOne && f.IDField != ""
	}
	return true
}

// WritableFields returns the fields accepted by an entity's InsertInput,
// in declaration order. The metadata query reports the same set as
// writable.
func WritableFields(e *schema.Entity) []*schema.Field {
	var out []*schema.Field
	for _, f := range e.Fields {
		if f.Name == e.PrimaryKey || !inputCandidate(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// UpdatableFields returns the fields accepted by an entity's UpdateInput.
// The primary key is included so bulk updates can target records.
func UpdatableFields(e *schema.Entity) []*schema.Field {
	var out []*schema.Field
	for _, f := range e.Fields {
		if inputCandidate(f) {
			out = append(out, f)
		}
	}
	return out
}

// Creatable reports whether records of e can be created through the
// schema
func Creatable(e *schema.Entity) bool {
	return !e.ExcludeFromBuiltInWriteOperations && e.Supports(provider.OpCreateOne) && len(WritableFields(e)) > 0
}

// relationIDFields returns the names of fields holding the id of a
// writable many-to-one relationship. They stay optional on insert since
// the relationship input may supply the id instead.
func relationIDFields(e *schema.Entity) map[string]bool {
	out := make(map[string]bool)
	for _, f := range e.RelationFields() {
		if f.Relation == schema.RelationManyToOne && f.IDField != "" && inputCandidate(f) {
			out[f.IDField] = true
		}
	}
	return out
}

func (t *Types) insertInput(e *schema.Entity) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: e.Name + "InsertInput",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			optional := relationIDFields(e)
			fields := graphql.InputObjectConfigFieldMap{}
			for _, f := range WritableFields(e) {
				if f.IsRelation() {
					fields[f.Name] = &graphql.InputObjectFieldConfig{Type: t.relationInput(f.TargetEntity()), Description: f.Description}
					continue
				}
				required := !f.Nullable && !optional[f.Name]
				fields[f.Name] = &graphql.InputObjectFieldConfig{Type: t.inputType(f, required), Description: f.Description}
			}
			return fields
		}),
	})
}

func (t *Types) updateInput(e *schema.Entity) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: e.Name + "UpdateInput",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{}
			for _, f := range UpdatableFields(e) {
				if f.IsRelation() {
					fields[f.Name] = &graphql.InputObjectFieldConfig{Type: t.relationInput(f.TargetEntity()), Description: f.Description}
					continue
				}
				fields[f.Name] = &graphql.InputObjectFieldConfig{Type: t.inputType(f, false), Description: f.Description}
			}
			return fields
		}),
	})
}

// relationInput returns <Target>RelationInput: a reference to an existing
// record by id or, when the target is creatable, a nested create.
func (t *Types) relationInput(target *schema.Entity) *graphql.InputObject {
	if in, ok := t.relationInputs[target.Name]; ok {
		return in
	}
	fields := graphql.InputObjectConfigFieldMap{
		"id": &graphql.InputObjectFieldConfig{Type: graphql.ID},
	}
	if Creatable(target) {
		fields["create"] = &graphql.InputObjectFieldConfig{Type: t.insertInputs[target.Name]}
	}
	in := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   target.Name + "RelationInput",
		Fields: fields,
	})
	t.relationInputs[target.Name] = in
	return in
}
