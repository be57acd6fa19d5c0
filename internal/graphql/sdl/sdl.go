// Package sdl renders an executable schema as GraphQL SDL. The schema is
// converted to a gqlparser document, printed with gqlparser's formatter and
// can be validated by loading the printed text back.
package sdl

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// builtInScalars are predeclared by every GraphQL schema
var builtInScalars = map[string]bool{
	"String":  true,
	"Int":     true,
	"Float":   true,
	"Boolean": true,
	"ID":      true,
}

// Document converts s into a gqlparser schema document. Root operation
// types come first, every other named type follows in name order.
func Document(s graphql.Schema) (*ast.SchemaDocument, error) {
	doc := &ast.SchemaDocument{}

	var roots []string
	if q := s.QueryType(); q != nil {
		roots = append(roots, q.Name())
	}
	if m := s.MutationType(); m != nil {
		roots = append(roots, m.Name())
	}
	if sub := s.SubscriptionType(); sub != nil {
		roots = append(roots, sub.Name())
	}

	typeMap := s.TypeMap()
	names := make([]string, 0, len(typeMap))
	isRoot := make(map[string]bool, len(roots))
	for _, r := range roots {
		isRoot[r] = true
	}
	for name := range typeMap {
		if strings.HasPrefix(name, "__") || builtInScalars[name] || isRoot[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range append(roots, names...) {
		def, err := definition(typeMap[name])
		if err != nil {
			return nil, err
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	return doc, nil
}

// Write prints s as SDL to w
func Write(w io.Writer, s graphql.Schema) error {
	doc, err := Document(s)
	if err != nil {
		return err
	}
	formatter.NewFormatter(w, formatter.WithIndent("  ")).FormatSchemaDocument(doc)
	return nil
}

// Print returns s as SDL
func Print(s graphql.Schema) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Validate loads sdl with gqlparser and reports the first problem found
func Validate(sdl string) (*ast.Schema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return schema, nil
}

func definition(t graphql.Type) (*ast.Definition, error) {
	def := &ast.Definition{Name: t.Name(), Description: t.Description()}

	switch t := t.(type) {
	case *graphql.Scalar:
		def.Kind = ast.Scalar

	case *graphql.Enum:
		def.Kind = ast.Enum
		for _, v := range t.Values() {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
				Name:        v.Name,
				Description: v.Description,
				Directives:  deprecated(v.DeprecationReason),
			})
		}

	case *graphql.Object:
		def.Kind = ast.Object
		for _, i := range t.Interfaces() {
			def.Interfaces = append(def.Interfaces, i.Name())
		}
		def.Fields = outputFields(t.Fields())

	case *graphql.Interface:
		def.Kind = ast.Interface
		def.Fields = outputFields(t.Fields())

	case *graphql.Union:
		def.Kind = ast.Union
		for _, o := range t.Types() {
			def.Types = append(def.Types, o.Name())
		}

	case *graphql.InputObject:
		def.Kind = ast.InputObject
		fields := t.Fields()
		for _, name := range sortedKeys(fields) {
			f := fields[name]
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:        f.Name(),
				Description: f.Description(),
				Type:        typeRef(f.Type),
			})
		}

	default:
		return nil, fmt.Errorf("unsupported type %s (%T)", t.Name(), t)
	}
	return def, nil
}

func outputFields(fields graphql.FieldDefinitionMap) ast.FieldList {
	out := make(ast.FieldList, 0, len(fields))
	for _, name := range sortedKeys(fields) {
		f := fields[name]
		field := &ast.FieldDefinition{
			Name:        f.Name,
			Description: f.Description,
			Type:        typeRef(f.Type),
			Directives:  deprecated(f.DeprecationReason),
		}
		args := append([]*graphql.Argument(nil), f.Args...)
		sort.Slice(args, func(i, j int) bool { return args[i].Name() < args[j].Name() })
		for _, a := range args {
			field.Arguments = append(field.Arguments, &ast.ArgumentDefinition{
				Name:        a.Name(),
				Description: a.Description(),
				Type:        typeRef(a.Type),
			})
		}
		out = append(out, field)
	}
	return out
}

func typeRef(t graphql.Type) *ast.Type {
	switch t := t.(type) {
	case *graphql.NonNull:
		inner := typeRef(t.OfType)
		inner.NonNull = true
		return inner
	case *graphql.List:
		return ast.ListType(typeRef(t.OfType), nil)
	default:
		return ast.NamedType(t.Name(), nil)
	}
}

func deprecated(reason string) ast.DirectiveList {
	if reason == "" {
		return nil
	}
	return ast.DirectiveList{{
		Name: "deprecated",
		Arguments: ast.ArgumentList{{
			Name:  "reason",
			Value: &ast.Value{Kind: ast.StringValue, Raw: reason},
		}},
	}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
