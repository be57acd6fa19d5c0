package metadata

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Index provides indexed access to collected metadata. It is safe for
// concurrent use; metadata never changes once indexed, so query results
// are cached.
type Index struct {
	meta *Metadata

	// Pre-computed indexes for fast queries (built at initialization)
	entitiesByName    map[string]*EntityMetadata
	relationshipIndex map[string][]RelationshipRef // target entity -> relationships

	cache      map[string]*DependencyGraph
	cacheMutex sync.RWMutex
}

// RelationshipRef references a relationship field and the entity declaring it
type RelationshipRef struct {
	SourceEntity string
	Field        string
	Relationship RelationshipMetadata
}

// NewIndex indexes meta
func NewIndex(meta *Metadata) *Index {
	idx := &Index{
		meta:              meta,
		entitiesByName:    make(map[string]*EntityMetadata),
		relationshipIndex: make(map[string][]RelationshipRef),
		cache:             make(map[string]*DependencyGraph),
	}
	if meta == nil {
		return idx
	}

	for i := range meta.Entities {
		e := &meta.Entities[i]
		idx.entitiesByName[e.Name] = e
		for _, f := range e.Fields {
			if f.Relationship == nil {
				continue
			}
			idx.relationshipIndex[f.Relationship.Target] = append(idx.relationshipIndex[f.Relationship.Target], RelationshipRef{
				SourceEntity: e.Name,
				Field:        f.Name,
				Relationship: *f.Relationship,
			})
		}
	}
	if meta.Dependencies.Nodes == nil {
		meta.Dependencies = *BuildDependencyGraph(meta)
	} else {
		meta.Dependencies.index()
	}
	return idx
}

// Load decodes JSON produced by marshaling a Metadata and indexes it
func Load(data []byte) (*Index, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return NewIndex(&meta), nil
}

// Metadata returns the indexed metadata
func (idx *Index) Metadata() *Metadata {
	return idx.meta
}

// Entity finds an entity by name. The result is a copy.
func (idx *Index) Entity(name string) (*EntityMetadata, error) {
	e, ok := idx.entitiesByName[name]
	if !ok {
		return nil, fmt.Errorf("entity not found: %s", name)
	}
	c := *e
	return &c, nil
}

// Field finds a field of an entity. The result is a copy.
func (idx *Index) Field(entity, field string) (*FieldMetadata, error) {
	e, ok := idx.entitiesByName[entity]
	if !ok {
		return nil, fmt.Errorf("entity not found: %s", entity)
	}
	for _, f := range e.Fields {
		if f.Name == field {
			c := f
			return &c, nil
		}
	}
	return nil, fmt.Errorf("field not found: %s.%s", entity, field)
}

// ReferencedBy returns the relationships pointing to an entity
func (idx *Index) ReferencedBy(entity string) []RelationshipRef {
	return append([]RelationshipRef{}, idx.relationshipIndex[entity]...)
}

// Dependencies returns the dependency subgraph of an entity
func (idx *Index) Dependencies(entity string, opts DependencyOptions) (*DependencyGraph, error) {
	key := fmt.Sprintf("deps:%s:%d:%v:%v", entity, opts.Depth, opts.Reverse, opts.Kinds)

	idx.cacheMutex.RLock()
	cached, ok := idx.cache[key]
	idx.cacheMutex.RUnlock()
	if ok {
		return cached, nil
	}

	if idx.meta == nil {
		return nil, fmt.Errorf("entity not found: %s", entity)
	}
	graph, err := idx.meta.Dependencies.Subgraph(entity, opts)
	if err != nil {
		return nil, err
	}

	idx.cacheMutex.Lock()
	idx.cache[key] = graph
	idx.cacheMutex.Unlock()
	return graph, nil
}
