// Package schema provides the entity and field descriptors the GraphQL
// schema is derived from, and the registry that collects them.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// Type is the declared GraphQL type of a field
type Type int

const (
	TypeString Type = iota
	TypeID
	TypeInt
	TypeFloat
	TypeBoolean
	TypeDateTime
	TypeJSON
	TypeEnum
	TypeEntity
)

// String returns the string representation of the type
func (t Type) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeID:
		return "ID"
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeBoolean:
		return "Boolean"
	case TypeDateTime:
		return "DateTime"
	case TypeJSON:
		return "JSON"
	case TypeEnum:
		return "Enum"
	case TypeEntity:
		return "Entity"
	default:
		return "Unknown"
	}
}

// ParseType converts a type name to a Type. Matching is case-insensitive and
// accepts a few common aliases.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "string", "text":
		return TypeString, nil
	case "id", "uuid":
		return TypeID, nil
	case "int", "integer":
		return TypeInt, nil
	case "float", "number", "decimal":
		return TypeFloat, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "datetime", "timestamp", "time":
		return TypeDateTime, nil
	case "json":
		return TypeJSON, nil
	case "enum":
		return TypeEnum, nil
	case "entity":
		return TypeEntity, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

// Orderable reports whether values of the type support range operators.
func (t Type) Orderable() bool {
	switch t {
	case TypeString, TypeID, TypeInt, TypeFloat, TypeDateTime:
		return true
	default:
		return false
	}
}

// EnumType is a named set of values shared by every field that uses it.
type EnumType struct {
	Name        string
	Values      []string
	Description string
}

// SameValues reports whether both enums declare the same value set.
func (e *EnumType) SameValues(other *EnumType) bool {
	a := slices.Clone(e.Values)
	b := slices.Clone(other.Values)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// RelationKind represents the kind of relationship a field models
type RelationKind int

const (
	RelationNone RelationKind = iota
	RelationManyToOne
	RelationOneToMany
	RelationManyToMany
)

// String returns the string representation of the relation kind
func (r RelationKind) String() string {
	switch r {
	case RelationNone:
		return "none"
	case RelationManyToOne:
		return "many_to_one"
	case RelationOneToMany:
		return "one_to_many"
	case RelationManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// ParseRelationKind converts a string to a RelationKind
func ParseRelationKind(s string) (RelationKind, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "", "none":
		return RelationNone, nil
	case "many_to_one", "belongs_to":
		return RelationManyToOne, nil
	case "one_to_many", "has_many":
		return RelationOneToMany, nil
	case "many_to_many":
		return RelationManyToMany, nil
	default:
		return 0, fmt.Errorf("unknown relationship kind: %s", s)
	}
}

// Ref is a forward reference to a relationship target. It is resolved when
// the registry is finalized, so the target does not need to exist (or be
// fully declared) at the time the field is declared.
type Ref struct {
	name string
	fn   func() *Entity
}

// To references the entity registered under name.
func To(name string) Ref {
	return Ref{name: name}
}

// ToFunc references the entity fn returns. fn is invoked lazily at
// finalize time and must return the registered descriptor.
func ToFunc(fn func() *Entity) Ref {
	return Ref{fn: fn}
}

// IsZero reports whether no target was set.
func (r Ref) IsZero() bool {
	return r.name == "" && r.fn == nil
}

// Name returns the referenced name, or "" for closure references.
func (r Ref) Name() string {
	return r.name
}

// String describes the reference for error messages.
func (r Ref) String() string {
	switch {
	case r.name != "":
		return r.name
	case r.fn != nil:
		return "<closure>"
	default:
		return "<none>"
	}
}

// Field describes one field of an entity.
type Field struct {
	Name string
	// Column is the key of the field in backend records. Defaults to Name.
	Column      string
	Type        Type
	Enum        *EnumType
	Nullable    bool
	List        bool
	Description string

	Relation RelationKind
	Target   Ref
	// IDField names the field of the owning entity holding the target's
	// primary key. IDFunc computes it instead. Used by many-to-one and
	// many-to-many fields.
	IDField string
	IDFunc  func(provider.Record) any
	// RelatedField names the field of the target entity referencing the
	// owner's primary key. Used by one-to-many and many-to-many fields.
	RelatedField string

	ExcludeFromFilterType bool
	ExcludeFromInputTypes bool
	// ReadOnly fields are never written to the backend.
	ReadOnly bool
	// AdminReadOnly fields are shown but not editable in admin tooling.
	AdminReadOnly bool

	target *Entity
}

// ColumnName returns the backend key of the field
func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// IsRelation reports whether the field models a relationship
func (f *Field) IsRelation() bool {
	return f.Relation != RelationNone
}

// UsesIDStrategy reports whether the relationship extracts the target id
// from the owning record.
func (f *Field) UsesIDStrategy() bool {
	return f.IDField != "" || f.IDFunc != nil
}

// TargetEntity returns the resolved relationship target. It is nil until
// the registry is finalized.
func (f *Field) TargetEntity() *Entity {
	return f.target
}

// ExtractID returns the target id referenced by rec, which is keyed by
// field name.
func (f *Field) ExtractID(rec provider.Record) any {
	if f.IDFunc != nil {
		return f.IDFunc(rec)
	}
	if f.IDField != "" {
		return rec[f.IDField]
	}
	return nil
}

// validate checks the declaration of a single field in isolation
func (f *Field) validate() string {
	if f.Name == "" {
		return "field name is required"
	}
	if !validName(f.Name) {
		return "field name is not a valid GraphQL name"
	}

	if !f.IsRelation() {
		switch {
		case f.Type == TypeEntity:
			return "entity-typed fields must declare a relationship kind"
		case f.Type == TypeEnum && (f.Enum == nil || f.Enum.Name == "" || len(f.Enum.Values) == 0):
			return "enum fields require a named enum with at least one value"
		case f.UsesIDStrategy() || f.RelatedField != "":
			return "only relationship fields may declare an id extractor or related field"
		}
		return ""
	}

	if f.Target.IsZero() {
		return "relationship fields require a target"
	}
	if f.IDField != "" && f.IDFunc != nil {
		return "relationship declares both an id field and an id function"
	}
	hasID := f.UsesIDStrategy()
	hasRelated := f.RelatedField != ""
	switch {
	case hasID && hasRelated:
		return "relationship declares both an id extractor and a related field"
	case !hasID && !hasRelated:
		return "relationship requires an id extractor or a related field"
	case f.Relation == RelationManyToOne && !hasID:
		return "many-to-one relationships resolve through an id extractor"
	case f.Relation == RelationOneToMany && !hasRelated:
		return "one-to-many relationships resolve through a related field"
	}
	return ""
}

// normalize fills derived attributes once the field is accepted
func (f *Field) normalize() {
	if f.IsRelation() {
		f.Type = TypeEntity
		f.List = f.Relation != RelationManyToOne
	}
}

// Entity describes one entity exposed through the GraphQL schema.
type Entity struct {
	Name        string
	Plural      string
	PrimaryKey  string
	Description string

	// Provider implements some subset of the provider capability
	// interfaces.
	Provider any
	ACL      acl.ACL
	Hooks    *hooks.Registry
	Fields   []*Field

	ExcludeFromBuiltInOperations      bool
	ExcludeFromBuiltInWriteOperations bool
	ExcludeFromFederation             bool
	OverrideReservedName              bool

	// Serialize post-processes a record after field mapping on the way
	// out. Deserialize pre-processes an input before field mapping.
	Serialize   func(provider.Record) provider.Record
	Deserialize func(provider.Record) provider.Record
}

// Field returns the field with the given name
func (e *Entity) Field(name string) (*Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// FieldByColumn returns the field stored under the given backend key
func (e *Entity) FieldByColumn(column string) (*Field, bool) {
	for _, f := range e.Fields {
		if f.ColumnName() == column {
			return f, true
		}
	}
	return nil, false
}

// HasField returns true if the entity has a field with the given name
func (e *Entity) HasField(name string) bool {
	_, ok := e.Field(name)
	return ok
}

// PrimaryKeyField returns the primary key field
func (e *Entity) PrimaryKeyField() (*Field, error) {
	f, ok := e.Field(e.PrimaryKey)
	if !ok {
		return nil, fmt.Errorf("entity %s has no primary key field %q", e.Name, e.PrimaryKey)
	}
	return f, nil
}

// PrimaryKeyColumn returns the backend key of the primary key
func (e *Entity) PrimaryKeyColumn() string {
	if f, ok := e.Field(e.PrimaryKey); ok {
		return f.ColumnName()
	}
	return e.PrimaryKey
}

// ScalarFields returns the non-relationship fields in declaration order
func (e *Entity) ScalarFields() []*Field {
	var out []*Field
	for _, f := range e.Fields {
		if !f.IsRelation() {
			out = append(out, f)
		}
	}
	return out
}

// RelationFields returns the relationship fields in declaration order
func (e *Entity) RelationFields() []*Field {
	var out []*Field
	for _, f := range e.Fields {
		if f.IsRelation() {
			out = append(out, f)
		}
	}
	return out
}

// Capabilities returns the provider capabilities of the entity
func (e *Entity) Capabilities() provider.Capability {
	return provider.Capabilities(e.Provider)
}

// Supports reports whether the entity's provider can serve op
func (e *Entity) Supports(op provider.Operation) bool {
	return e.Capabilities().Supports(op)
}

func (e *Entity) applyDefaults() {
	if e.Plural == "" {
		e.Plural = Pluralize(e.Name)
	}
	if e.PrimaryKey == "" {
		e.PrimaryKey = "id"
	}
	if e.Hooks == nil {
		e.Hooks = hooks.NewRegistry()
	}
}
