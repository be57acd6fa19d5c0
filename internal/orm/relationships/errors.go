package relationships

import "errors"

var (
	// ErrUnknownRelationship is returned when a relationship is not found
	ErrUnknownRelationship = errors.New("unknown relationship")

	// ErrInvalidRelationType is returned when an invalid relationship type is encountered
	ErrInvalidRelationType = errors.New("invalid relationship type")

	// ErrUnresolvedTarget is returned when a relationship is used before
	// its target was resolved
	ErrUnresolvedTarget = errors.New("relationship target is not resolved")
)
