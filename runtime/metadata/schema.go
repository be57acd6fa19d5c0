package metadata

import "time"

// Version is the version of the metadata format
const Version = "1.0"

// Metadata is the top-level container for introspection metadata.
type Metadata struct {
	Version      string           `json:"version"`
	Generated    time.Time        `json:"generated"`
	Entities     []EntityMetadata `json:"entities"`
	Enums        []EnumMetadata   `json:"enums"`
	Dependencies DependencyGraph  `json:"dependencies"`
}

// EntityMetadata describes one entity of the schema.
type EntityMetadata struct {
	Name        string `json:"name"`
	Plural      string `json:"plural"`
	PrimaryKey  string `json:"primaryKey"`
	Description string `json:"description,omitempty"`

	ExcludedFromBuiltInOperations      bool `json:"excludedFromBuiltInOperations"`
	ExcludedFromBuiltInWriteOperations bool `json:"excludedFromBuiltInWriteOperations"`
	ExcludedFromFederation             bool `json:"excludedFromFederation"`

	Capabilities []string        `json:"capabilities"`         // provider contract methods
	Operations   []string        `json:"operations"`           // generated query and mutation names
	Hooks        []string        `json:"hooks,omitempty"`      // hook points with registered hooks
	Roles        []string        `json:"roles,omitempty"`      // roles named by the ACL
	Fields       []FieldMetadata `json:"fields"`
}

// FieldMetadata describes one field of an entity.
type FieldMetadata struct {
	Name        string `json:"name"`
	Column      string `json:"column,omitempty"` // set when it differs from Name
	Type        string `json:"type"`             // scalar, enum or target entity name
	Nullable    bool   `json:"nullable"`
	List        bool   `json:"list"`
	Description string `json:"description,omitempty"`

	Relationship *RelationshipMetadata `json:"relationship,omitempty"`

	Filterable    bool `json:"filterable"`
	Writable      bool `json:"writable"`
	ReadOnly      bool `json:"readOnly"`
	AdminReadOnly bool `json:"adminReadOnly"`
}

// RelationshipMetadata describes how a relationship field resolves.
type RelationshipMetadata struct {
	Kind         string `json:"kind"` // MANY_TO_ONE, ONE_TO_MANY or MANY_TO_MANY
	Target       string `json:"target"`
	RelatedField string `json:"relatedField,omitempty"`
	IDField      string `json:"idField,omitempty"`
}

// EnumMetadata describes an enum shared by the entities.
type EnumMetadata struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// DependencyGraph captures the relationships between entities.
type DependencyGraph struct {
	Nodes map[string]*DependencyNode `json:"nodes"`
	Edges []DependencyEdge           `json:"edges"`

	// adjacency lists, rebuilt on load
	outgoingEdges map[string][]DependencyEdge
	incomingEdges map[string][]DependencyEdge
}

// DependencyNode is an entity in the dependency graph.
type DependencyNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DependencyEdge is a relationship field from one entity to another.
type DependencyEdge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Field        string `json:"field"`
	Relationship string `json:"relationship"` // relationship kind
}
