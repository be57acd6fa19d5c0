package crud

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/gqlmeta/internal/orm/acl"
)

// Error codes reported in the extensions of GraphQL errors
const (
	CodeForbidden       = "FORBIDDEN"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeBadUserInput    = "BAD_USER_INPUT"
)

var (
	// ErrFieldNotFound is returned when a field does not exist on an entity
	ErrFieldNotFound = errors.New("field not found")

	// ErrRelationshipField is returned when a relationship field cannot be
	// used where a scalar is expected
	ErrRelationshipField = errors.New("relationship field cannot be used here")

	// ErrReadOnlyField is returned when an input writes a read-only field
	ErrReadOnlyField = errors.New("field is read-only")

	// ErrUnexpectedResult is returned when a hook replaces a result with a
	// value of the wrong shape
	ErrUnexpectedResult = errors.New("unexpected result type")
)

// ForbiddenError is returned when the caller's roles do not grant an
// action. The message is generic so it does not reveal which rows or
// fields were withheld.
type ForbiddenError struct {
	Entity string
	Action acl.Action
}

// Error implements the error interface
func (e *ForbiddenError) Error() string {
	return "Forbidden"
}

// Extensions implements gqlerrors.ExtendedError
func (e *ForbiddenError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": CodeForbidden}
}

// AuthenticationError is returned when an anonymous caller is refused an
// action that some authenticated role could be granted.
type AuthenticationError struct {
	Entity string
	Action acl.Action
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	return "Unauthorized"
}

// Extensions implements gqlerrors.ExtendedError
func (e *AuthenticationError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": CodeUnauthenticated}
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface
func (fe FieldError) Error() string {
	return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
}

// Unwrap returns the underlying cause
func (fe FieldError) Unwrap() error {
	return fe.Err
}

// ValidationError contains the validation errors of one request
type ValidationError struct {
	Entity string
	Errors []FieldError
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	switch len(ve.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s", ve.Errors[0].Error())
	default:
		msgs := make([]string, len(ve.Errors))
		for i, fe := range ve.Errors {
			msgs[i] = fe.Error()
		}
		return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
	}
}

// Unwrap exposes the field errors to errors.Is
func (ve *ValidationError) Unwrap() []error {
	out := make([]error, len(ve.Errors))
	for i, fe := range ve.Errors {
		out[i] = fe
	}
	return out
}

// Extensions implements gqlerrors.ExtendedError
func (ve *ValidationError) Extensions() map[string]interface{} {
	fields := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		fields[i] = fe.Field
	}
	return map[string]interface{}{"code": CodeBadUserInput, "fields": fields}
}

// add records a field error
func (ve *ValidationError) add(field string, err error, format string, args ...any) {
	ve.Errors = append(ve.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...), Err: err})
}

// orNil returns ve when it holds errors
func (ve *ValidationError) orNil() error {
	if len(ve.Errors) == 0 {
		return nil
	}
	return ve
}

func invalid(entity, field string, err error, format string, args ...any) error {
	ve := &ValidationError{Entity: entity}
	ve.add(field, err, format, args...)
	return ve
}

// IsForbidden returns true if the error is a ForbiddenError
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// IsUnauthenticated returns true if the error is an AuthenticationError
func IsUnauthenticated(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsValidationFailed returns true if the error is a validation error
func IsValidationFailed(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
