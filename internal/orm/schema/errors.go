package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRegistryFinalized is returned by registration calls made after Finalize.
var ErrRegistryFinalized = errors.New("schema: registry is finalized")

// ErrInvalidEntity is returned for an entity descriptor without a usable name.
var ErrInvalidEntity = errors.New("schema: invalid entity")

// DuplicateEntityError is returned when a second descriptor claims a name
type DuplicateEntityError struct {
	Entity string
}

// Error implements the error interface
func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("entity %s is already registered", e.Entity)
}

// ReservedNameError is returned for entity names the schema reserves
type ReservedNameError struct {
	Entity string
}

// Error implements the error interface
func (e *ReservedNameError) Error() string {
	return fmt.Sprintf("entity name %s is reserved; set OverrideReservedName to use it anyway", e.Entity)
}

// MissingEntityError is returned when declarations target a name that was
// never registered as an entity.
type MissingEntityError struct {
	Entity string
	Fields []string
	Hooks  int
	ACL    bool
}

// Error implements the error interface
func (e *MissingEntityError) Error() string {
	var what []string
	if len(e.Fields) > 0 {
		what = append(what, fmt.Sprintf("fields [%s]", strings.Join(e.Fields, ", ")))
	}
	if e.Hooks > 0 {
		what = append(what, fmt.Sprintf("%d hook(s)", e.Hooks))
	}
	if e.ACL {
		what = append(what, "an ACL")
	}
	return fmt.Sprintf("%s declares %s but was never registered as an entity",
		e.Entity, strings.Join(what, " and "))
}

// MissingEntityDecoratorError is the name the error taxonomy uses for
// MissingEntityError.
type MissingEntityDecoratorError = MissingEntityError

// UnresolvedRelationshipError is returned when a relationship target cannot
// be resolved to a registered entity
type UnresolvedRelationshipError struct {
	Entity string
	Field  string
	Reason string
}

// Error implements the error interface
func (e *UnresolvedRelationshipError) Error() string {
	return fmt.Sprintf("%s.%s: unresolved relationship: %s", e.Entity, e.Field, e.Reason)
}

// DuplicateACLError is returned on a second ACL registration for a name
type DuplicateACLError struct {
	Entity string
}

// Error implements the error interface
func (e *DuplicateACLError) Error() string {
	return fmt.Sprintf("an ACL is already registered for %s", e.Entity)
}

// InvalidFieldError is returned for an inconsistent field declaration
type InvalidFieldError struct {
	Entity string
	Field  string
	Reason string
}

// Error implements the error interface
func (e *InvalidFieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

// IsDuplicateEntity returns true if err is or wraps a DuplicateEntityError
func IsDuplicateEntity(err error) bool {
	var target *DuplicateEntityError
	return errors.As(err, &target)
}

// IsMissingEntity returns true if err is or wraps a MissingEntityError
func IsMissingEntity(err error) bool {
	var target *MissingEntityError
	return errors.As(err, &target)
}

// IsUnresolvedRelationship returns true if err is or wraps an
// UnresolvedRelationshipError
func IsUnresolvedRelationship(err error) bool {
	var target *UnresolvedRelationshipError
	return errors.As(err, &target)
}
