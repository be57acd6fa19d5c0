package builder

import "github.com/graphql-go/graphql"

// adminMetadataType describes runtime/metadata.Metadata. Fields resolve
// through the default resolver, which matches struct fields by name.
func adminMetadataType() *graphql.Object {
	str := graphql.NewNonNull(graphql.String)
	boolean := graphql.NewNonNull(graphql.Boolean)
	strings := graphql.NewList(graphql.NewNonNull(graphql.String))

	relationship := graphql.NewObject(graphql.ObjectConfig{
		Name: "AdminRelationshipMetadata",
		Fields: graphql.Fields{
			"kind":         &graphql.Field{Type: str},
			"target":       &graphql.Field{Type: str},
			"relatedField": &graphql.Field{Type: graphql.String},
			"idField":      &graphql.Field{Type: graphql.String},
		},
	})

	field := graphql.NewObject(graphql.ObjectConfig{
		Name: "AdminFieldMetadata",
		Fields: graphql.Fields{
			"name":          &graphql.Field{Type: str},
			"column":        &graphql.Field{Type: graphql.String},
			"type":          &graphql.Field{Type: str},
			"nullable":      &graphql.Field{Type: boolean},
			"list":          &graphql.Field{Type: boolean},
			"description":   &graphql.Field{Type: graphql.String},
			"relationship":  &graphql.Field{Type: relationship},
			"filterable":    &graphql.Field{Type: boolean},
			"writable":      &graphql.Field{Type: boolean},
			"readOnly":      &graphql.Field{Type: boolean},
			"adminReadOnly": &graphql.Field{Type: boolean},
		},
	})

	entity := graphql.NewObject(graphql.ObjectConfig{
		Name: "AdminEntityMetadata",
		Fields: graphql.Fields{
			"name":                               &graphql.Field{Type: str},
			"plural":                             &graphql.Field{Type: str},
			"primaryKey":                         &graphql.Field{Type: str},
			"description":                        &graphql.Field{Type: graphql.String},
			"excludedFromBuiltInOperations":      &graphql.Field{Type: boolean},
			"excludedFromBuiltInWriteOperations": &graphql.Field{Type: boolean},
			"excludedFromFederation":             &graphql.Field{Type: boolean},
			"capabilities":                       &graphql.Field{Type: strings},
			"operations":                         &graphql.Field{Type: strings},
			"hooks":                              &graphql.Field{Type: strings},
			"roles":                              &graphql.Field{Type: strings},
			"fields":                             &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(field)))},
		},
	})

	enum := graphql.NewObject(graphql.ObjectConfig{
		Name: "AdminEnumMetadata",
		Fields: graphql.Fields{
			"name":   &graphql.Field{Type: str},
			"values": &graphql.Field{Type: graphql.NewNonNull(strings)},
		},
	})

	return graphql.NewObject(graphql.ObjectConfig{
		Name:        "AdminMetadata",
		Description: "Entity metadata for admin tooling",
		Fields: graphql.Fields{
			"version":  &graphql.Field{Type: str},
			"entities": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(entity)))},
			"enums":    &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(enum)))},
		},
	})
}
