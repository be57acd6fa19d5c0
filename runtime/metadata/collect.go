package metadata

import (
	"sort"
	"strings"
	"time"

	"github.com/conduit-lang/gqlmeta/internal/graphql/synth"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// OperationsFunc returns the names of the operations generated for an entity
type OperationsFunc func(e *schema.Entity) []string

// Collect builds the metadata of finalized entities. The writable and
// filterable flags follow the same rules as the synthesized input types.
func Collect(entities []*schema.Entity, operations OperationsFunc) *Metadata {
	meta := &Metadata{
		Version:   Version,
		Generated: time.Now().UTC(),
		Entities:  make([]EntityMetadata, 0, len(entities)),
		Enums:     []EnumMetadata{},
	}

	for _, e := range entities {
		meta.Entities = append(meta.Entities, collectEntity(e, operations))
	}

	enums, err := synth.CollectEnums(entities)
	if err == nil {
		names := make([]string, 0, len(enums))
		for name := range enums {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			meta.Enums = append(meta.Enums, EnumMetadata{
				Name:   name,
				Values: append([]string(nil), enums[name].Values...),
			})
		}
	}

	meta.Dependencies = *BuildDependencyGraph(meta)
	return meta
}

func collectEntity(e *schema.Entity, operations OperationsFunc) EntityMetadata {
	em := EntityMetadata{
		Name:                               e.Name,
		Plural:                             e.Plural,
		PrimaryKey:                         e.PrimaryKey,
		Description:                        e.Description,
		ExcludedFromBuiltInOperations:      e.ExcludeFromBuiltInOperations,
		ExcludedFromBuiltInWriteOperations: e.ExcludeFromBuiltInWriteOperations,
		ExcludedFromFederation:             e.ExcludeFromFederation,
		Capabilities:                       e.Capabilities().Names(),
		Operations:                         []string{},
		Fields:                             make([]FieldMetadata, 0, len(e.Fields)),
	}
	if em.Capabilities == nil {
		em.Capabilities = []string{}
	}
	if operations != nil {
		if ops := operations(e); ops != nil {
			em.Operations = ops
		}
	}
	if e.Hooks != nil {
		for _, p := range hooks.Points {
			if e.Hooks.HasHooks(p) {
				em.Hooks = append(em.Hooks, p.String())
			}
		}
	}
	if e.ACL != nil {
		em.Roles = e.ACL.Roles()
	}

	writable := make(map[*schema.Field]bool)
	for _, f := range synth.WritableFields(e) {
		writable[f] = true
	}
	for _, f := range e.Fields {
		em.Fields = append(em.Fields, collectField(f, writable[f]))
	}
	return em
}

func collectField(f *schema.Field, writable bool) FieldMetadata {
	fm := FieldMetadata{
		Name:          f.Name,
		Type:          f.Type.String(),
		Nullable:      f.Nullable,
		List:          f.List,
		Description:   f.Description,
		Filterable:    synth.Filterable(f),
		Writable:      writable,
		ReadOnly:      f.ReadOnly,
		AdminReadOnly: f.AdminReadOnly,
	}
	if f.ColumnName() != f.Name {
		fm.Column = f.ColumnName()
	}
	if f.Type == schema.TypeEnum && f.Enum != nil {
		fm.Type = f.Enum.Name
	}
	if f.IsRelation() {
		fm.Type = f.Target.Name()
		if target := f.TargetEntity(); target != nil {
			fm.Type = target.Name
		}
		// a to-one relationship may always be absent
		fm.Nullable = f.Nullable || f.Relation == schema.RelationManyToOne
		fm.Relationship = &RelationshipMetadata{
			Kind:         strings.ToUpper(f.Relation.String()),
			Target:       fm.Type,
			RelatedField: f.RelatedField,
			IDField:      f.IDField,
		}
	}
	return fm
}
