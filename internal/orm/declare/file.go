// Package declare loads entity declarations from YAML files into a schema
// registry.
//
// A declaration file lists shared enums and entities. Each entity names its
// fields, optional relationships, per-role permissions and the backend that
// stores its records:
//
//	enums:
//	  Status: [todo, doing, done]
//	entities:
//	  - name: Task
//	    provider:
//	      kind: sql
//	      table: tasks
//	      cache: true
//	    fields:
//	      - {name: id, type: ID}
//	      - {name: status, type: Status}
//	      - {name: owner, relation: many_to_one, target: User, id_field: ownerId}
//	    acl:
//	      admin: allow
//	      member:
//	        read: allow
//	        write: {where: {ownerId: $user}}
package declare

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is a parsed declaration file
type File struct {
	Enums    map[string][]string `yaml:"enums"`
	Entities []EntityDecl        `yaml:"entities"`
}

// EntityDecl declares one entity
type EntityDecl struct {
	Name        string `yaml:"name"`
	Plural      string `yaml:"plural"`
	PrimaryKey  string `yaml:"primary_key"`
	Description string `yaml:"description"`

	// ReadOnly hides the built-in mutations, Internal hides every built-in
	// operation.
	ReadOnly bool `yaml:"read_only"`
	Internal bool `yaml:"internal"`

	Provider ProviderDecl              `yaml:"provider"`
	Fields   []FieldDecl               `yaml:"fields"`
	ACL      map[string]PermissionDecl `yaml:"acl"`
}

// FieldDecl declares one field. Type may name a declared enum.
type FieldDecl struct {
	Name        string `yaml:"name"`
	Column      string `yaml:"column"`
	Type        string `yaml:"type"`
	Enum        string `yaml:"enum"`
	Description string `yaml:"description"`
	Nullable    bool   `yaml:"nullable"`
	List        bool   `yaml:"list"`
	ReadOnly    bool   `yaml:"read_only"`

	ExcludeFromFilter bool `yaml:"exclude_from_filter"`
	ExcludeFromInput  bool `yaml:"exclude_from_input"`

	Relation     string `yaml:"relation"`
	Target       string `yaml:"target"`
	IDField      string `yaml:"id_field"`
	RelatedField string `yaml:"related_field"`
}

// Provider kinds
const (
	KindMemory = "memory"
	KindSQL    = "sql"
)

// ProviderDecl selects the backend of an entity. Memory is the default.
type ProviderDecl struct {
	Kind    string   `yaml:"kind"`
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns"`
	// IDs set to "uuid" generates primary keys for sql inserts that carry none
	IDs string `yaml:"ids"`
	// Cache wraps the backend in the Redis record cache when one is configured
	Cache bool `yaml:"cache"`
	// Rows seed a memory store
	Rows []map[string]any `yaml:"rows"`
}

// Load reads and parses a declaration file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declarations: %w", err)
	}
	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Parse decodes a declaration document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid declarations: %w", err)
	}
	return &file, nil
}
