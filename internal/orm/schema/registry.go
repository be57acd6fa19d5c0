package schema

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
	"github.com/conduit-lang/gqlmeta/internal/orm/hooks"
)

// Registry collects entity, field, ACL and hook declarations.
//
// A registry has two phases. During accumulation declarations may arrive in
// any order: fields, ACLs and hooks registered against a name that is not
// yet an entity are buffered until RegisterEntity runs. Finalize validates
// the declarations, resolves every relationship target and freezes the
// registry; registration calls fail afterwards. Reset returns the registry
// to an empty accumulation phase.
type Registry struct {
	mu sync.RWMutex

	entities map[string]*Entity
	order    []string

	pendingFields map[string][]*Field
	pendingHooks  map[string]*hooks.Registry
	acls          map[string]acl.ACL

	finalized  bool
	generation uint64
	// revision counts successful mutations; Finalize uses it to detect
	// registrations made while target closures ran.
	revision uint64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.entities = make(map[string]*Entity)
	r.order = nil
	r.pendingFields = make(map[string][]*Field)
	r.pendingHooks = make(map[string]*hooks.Registry)
	r.acls = make(map[string]acl.ACL)
	r.finalized = false
	r.generation++
	r.revision++
}

// Reset discards every declaration and reopens the registry
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// RegisterEntity registers an entity descriptor. Fields already present on
// the descriptor come first, followed by fields buffered against its name in
// the order they were declared. Every check runs before the registry or the
// descriptor is modified, so a failed registration leaves both untouched.
// Registering the same descriptor twice is a no-op.
func (r *Registry) RegisterEntity(e *Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return ErrRegistryFinalized
	}
	if e == nil || !validName(e.Name) {
		return ErrInvalidEntity
	}
	if existing, ok := r.entities[e.Name]; ok {
		if existing == e {
			return nil
		}
		return &DuplicateEntityError{Entity: e.Name}
	}
	if IsReservedName(e.Name) && !e.OverrideReservedName {
		return &ReservedNameError{Entity: e.Name}
	}
	if e.ACL != nil {
		if _, ok := r.acls[e.Name]; ok {
			return &DuplicateACLError{Entity: e.Name}
		}
	}

	fields := make([]*Field, 0, len(e.Fields)+len(r.pendingFields[e.Name]))
	seen := make(map[string]bool)
	for _, f := range append(append([]*Field(nil), e.Fields...), r.pendingFields[e.Name]...) {
		if f == nil {
			return &InvalidFieldError{Entity: e.Name, Reason: "nil field"}
		}
		if reason := f.validate(); reason != "" {
			return &InvalidFieldError{Entity: e.Name, Field: f.Name, Reason: reason}
		}
		if seen[f.Name] {
			return &InvalidFieldError{Entity: e.Name, Field: f.Name, Reason: "duplicate field name"}
		}
		seen[f.Name] = true
		fields = append(fields, f)
	}

	for _, f := range fields {
		f.normalize()
	}
	e.Fields = fields
	e.applyDefaults()
	if pending := r.pendingHooks[e.Name]; pending != nil {
		e.Hooks.Merge(pending)
	}
	if e.ACL != nil {
		r.acls[e.Name] = e.ACL
	}

	delete(r.pendingFields, e.Name)
	delete(r.pendingHooks, e.Name)
	r.entities[e.Name] = e
	r.order = append(r.order, e.Name)
	r.revision++
	return nil
}

// RegisterField appends a field to an entity. When the entity is not yet
// registered the field is buffered against the name.
func (r *Registry) RegisterField(entityName string, f *Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return ErrRegistryFinalized
	}
	if f == nil {
		return &InvalidFieldError{Entity: entityName, Reason: "nil field"}
	}
	if reason := f.validate(); reason != "" {
		return &InvalidFieldError{Entity: entityName, Field: f.Name, Reason: reason}
	}

	if e, ok := r.entities[entityName]; ok {
		if e.HasField(f.Name) {
			return &InvalidFieldError{Entity: entityName, Field: f.Name, Reason: "duplicate field name"}
		}
		f.normalize()
		e.Fields = append(e.Fields, f)
		r.revision++
		return nil
	}

	for _, existing := range r.pendingFields[entityName] {
		if existing.Name == f.Name {
			return &InvalidFieldError{Entity: entityName, Field: f.Name, Reason: "duplicate field name"}
		}
	}
	r.pendingFields[entityName] = append(r.pendingFields[entityName], f)
	r.revision++
	return nil
}

// RegisterACL registers the access control list of an entity. At most one
// ACL may be registered per name.
func (r *Registry) RegisterACL(entityName string, a acl.ACL) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return ErrRegistryFinalized
	}
	if _, ok := r.acls[entityName]; ok {
		return &DuplicateACLError{Entity: entityName}
	}
	if a == nil {
		a = acl.ACL{}
	}
	r.acls[entityName] = a
	if e, ok := r.entities[entityName]; ok {
		e.ACL = a
	}
	r.revision++
	return nil
}

// RegisterHook appends a synchronous hook to an entity
func (r *Registry) RegisterHook(entityName string, point hooks.Point, fn hooks.Func) error {
	return r.RegisterHookSpec(entityName, &hooks.Hook{Point: point, Fn: fn})
}

// RegisterHookSpec appends a hook to an entity
func (r *Registry) RegisterHookSpec(entityName string, hook *hooks.Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return ErrRegistryFinalized
	}
	if hook == nil || hook.Fn == nil {
		return fmt.Errorf("schema: nil hook for %s", entityName)
	}

	r.revision++
	if e, ok := r.entities[entityName]; ok {
		e.Hooks.Register(hook.Point, hook)
		return nil
	}
	pending, ok := r.pendingHooks[entityName]
	if !ok {
		pending = hooks.NewRegistry()
		r.pendingHooks[entityName] = pending
	}
	pending.Register(hook.Point, hook)
	return nil
}

// ValidateEntities reports every name that received field, hook or ACL
// declarations without ever being registered as an entity. Offenders are
// reported in name order, joined into one error.
func (r *Registry) ValidateEntities() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validateEntities()
}

func (r *Registry) validateEntities() error {
	missing := make(map[string]*MissingEntityError)
	get := func(name string) *MissingEntityError {
		m, ok := missing[name]
		if !ok {
			m = &MissingEntityError{Entity: name}
			missing[name] = m
		}
		return m
	}

	for name, fields := range r.pendingFields {
		m := get(name)
		for _, f := range fields {
			m.Fields = append(m.Fields, f.Name)
		}
	}
	for name, pending := range r.pendingHooks {
		get(name).Hooks = pending.Len()
	}
	for name := range r.acls {
		if _, ok := r.entities[name]; !ok {
			get(name).ACL = true
		}
	}

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, missing[name])
	}
	return errors.Join(errs...)
}

// ErrRegistryBusy is returned by Finalize when declarations keep arriving
// while relationship closures are being resolved.
var ErrRegistryBusy = errors.New("schema: registry modified while resolving relationships")

const finalizeAttempts = 3

type resolution struct {
	target *Entity
	err    error
}

// Finalize validates the declarations, resolves relationship targets and
// freezes the registry. It is idempotent once it has succeeded. All
// problems found are returned joined; the registry stays open on failure.
//
// Target closures run without the registry lock held, so they may call
// Get or any other read method on the registry.
func (r *Registry) Finalize() error {
	for attempt := 0; attempt < finalizeAttempts; attempt++ {
		r.mu.RLock()
		if r.finalized {
			r.mu.RUnlock()
			return nil
		}
		rev := r.revision
		entities := maps.Clone(r.entities)
		var relations []*Field
		owners := make(map[*Field]*Entity)
		for _, name := range r.order {
			e := r.entities[name]
			for _, f := range e.RelationFields() {
				relations = append(relations, f)
				owners[f] = e
			}
		}
		r.mu.RUnlock()

		resolved := make(map[*Field]resolution, len(relations))
		for _, f := range relations {
			target, err := resolveRef(entities, owners[f], f)
			resolved[f] = resolution{target: target, err: err}
		}

		r.mu.Lock()
		if r.revision != rev {
			r.mu.Unlock()
			continue
		}
		err := r.commit(resolved)
		r.mu.Unlock()
		return err
	}
	return ErrRegistryBusy
}

// commit applies resolved targets and freezes the registry. Callers hold
// the write lock.
func (r *Registry) commit(resolved map[*Field]resolution) error {
	if r.finalized {
		return nil
	}

	var errs []error
	if err := r.validateEntities(); err != nil {
		errs = append(errs, err)
	}

	for _, name := range r.order {
		e := r.entities[name]
		if _, err := e.PrimaryKeyField(); err != nil {
			errs = append(errs, &InvalidFieldError{
				Entity: e.Name,
				Field:  e.PrimaryKey,
				Reason: "primary key is not a declared field",
			})
		}
		for _, f := range e.RelationFields() {
			res := resolved[f]
			if res.err != nil {
				errs = append(errs, res.err)
				continue
			}
			f.target = res.target
			if err := checkStrategy(e, f, res.target); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		for _, e := range r.entities {
			for _, f := range e.Fields {
				f.target = nil
			}
		}
		return errors.Join(errs...)
	}

	for name, a := range r.acls {
		r.entities[name].ACL = a
	}
	r.finalized = true
	return nil
}

// checkStrategy validates the field names a relationship refers to
func checkStrategy(owner *Entity, f *Field, target *Entity) error {
	if f.IDField != "" {
		idField, ok := owner.Field(f.IDField)
		if !ok || idField.IsRelation() {
			return &InvalidFieldError{
				Entity: owner.Name,
				Field:  f.Name,
				Reason: fmt.Sprintf("id field %q is not a scalar field of %s", f.IDField, owner.Name),
			}
		}
	}
	if f.RelatedField != "" {
		related, ok := target.Field(f.RelatedField)
		if !ok || related.IsRelation() {
			return &InvalidFieldError{
				Entity: owner.Name,
				Field:  f.Name,
				Reason: fmt.Sprintf("related field %q is not a scalar field of %s", f.RelatedField, target.Name),
			}
		}
	}
	return nil
}

// resolveRef resolves a relationship target. Closure panics and results
// that are not the registered descriptor of their name are reported as
// UnresolvedRelationshipError.
func resolveRef(entities map[string]*Entity, owner *Entity, f *Field) (target *Entity, err error) {
	unresolved := func(format string, args ...any) error {
		return &UnresolvedRelationshipError{
			Entity: owner.Name,
			Field:  f.Name,
			Reason: fmt.Sprintf(format, args...),
		}
	}

	ref := f.Target
	switch {
	case ref.fn != nil:
		defer func() {
			if p := recover(); p != nil {
				target, err = nil, unresolved("target closure panicked: %v", p)
			}
		}()
		t := ref.fn()
		if t == nil {
			return nil, unresolved("target closure returned nil")
		}
		registered, ok := entities[t.Name]
		if !ok || registered != t {
			return nil, unresolved("target closure returned %q, which is not a registered entity", t.Name)
		}
		return t, nil
	case ref.name != "":
		t, ok := entities[ref.name]
		if !ok {
			return nil, unresolved("unknown entity %q", ref.name)
		}
		return t, nil
	default:
		return nil, unresolved("no target declared")
	}
}

// ResolveTarget resolves the relationship target of a field of owner. After
// Finalize the resolved descriptor is returned directly.
func (r *Registry) ResolveTarget(owner *Entity, f *Field) (*Entity, error) {
	if !f.IsRelation() {
		return nil, &UnresolvedRelationshipError{Entity: owner.Name, Field: f.Name, Reason: "not a relationship field"}
	}
	if t := f.TargetEntity(); t != nil {
		return t, nil
	}
	r.mu.RLock()
	entities := maps.Clone(r.entities)
	r.mu.RUnlock()
	return resolveRef(entities, owner, f)
}

// Generation identifies the current contents of the registry. It changes
// on every Reset, so artifacts built from an older snapshot can be told
// apart.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Finalized reports whether Finalize has succeeded
func (r *Registry) Finalized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finalized
}

// Get retrieves an entity by name
func (r *Registry) Get(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[name]
	return e, ok
}

// Exists checks if an entity is registered
func (r *Registry) Exists(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Entities returns the registered entities in registration order
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entities[name])
	}
	return out
}

// List returns the registered entity names in registration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered entities
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// ACL returns the access control list registered for an entity, or nil
func (r *Registry) ACL(entityName string) acl.ACL {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.acls[entityName]
}

// Enums returns every enum used by a registered field, keyed by name. When
// several fields declare the same name the first declaration is returned;
// conflicts are reported by schema synthesis.
func (r *Registry) Enums() map[string]*EnumType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	enums := make(map[string]*EnumType)
	for _, name := range r.order {
		for _, f := range r.entities[name].Fields {
			if f.Type == TypeEnum && f.Enum != nil {
				if _, ok := enums[f.Enum.Name]; !ok {
					enums[f.Enum.Name] = f.Enum
				}
			}
		}
	}
	return enums
}

// Stats summarizes the registry contents
type Stats struct {
	Entities      int
	Fields        int
	Relationships int
	Hooks         int
	ACLs          int
	PendingFields int
}

// GetStats returns statistics about the registry
func (r *Registry) GetStats() *Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &Stats{Entities: len(r.entities), ACLs: len(r.acls)}
	for _, e := range r.entities {
		stats.Fields += len(e.Fields)
		stats.Relationships += len(e.RelationFields())
		stats.Hooks += e.Hooks.Len()
	}
	for _, fields := range r.pendingFields {
		stats.PendingFields += len(fields)
	}
	return stats
}
