package schema

import (
	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
)

// defaultRegistry is the process-wide registry used by the package-level
// functions. Entities declared from package init functions register here.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry
func Default() *Registry {
	return defaultRegistry
}

// RegisterEntity registers an entity with the default registry
func RegisterEntity(e *Entity) error {
	return defaultRegistry.RegisterEntity(e)
}

// RegisterField registers a field with the default registry
func RegisterField(entityName string, f *Field) error {
	return defaultRegistry.RegisterField(entityName, f)
}

// RegisterACL registers an ACL with the default registry
func RegisterACL(entityName string, a acl.ACL) error {
	return defaultRegistry.RegisterACL(entityName, a)
}

// RegisterHook registers a hook with the default registry
func RegisterHook(entityName string, point hooks.Point, fn hooks.Func) error {
	return defaultRegistry.RegisterHook(entityName, point, fn)
}

// ValidateEntities validates the default registry
func ValidateEntities() error {
	return defaultRegistry.ValidateEntities()
}

// Reset clears the default registry. Intended for tests.
func Reset() {
	defaultRegistry.Reset()
}

// MustRegister registers entities with the default registry and panics on
// the first error. Intended for package init functions.
func MustRegister(entities ...*Entity) {
	for _, e := range entities {
		if err := RegisterEntity(e); err != nil {
			panic(err)
		}
	}
}
