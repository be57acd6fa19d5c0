package synth

import (
	"errors"
	"fmt"
	"strings"
)

// ConflictingEnumDefinitionError is returned when fields declare enums of
// the same name with different value sets
type ConflictingEnumDefinitionError struct {
	Enum   string
	Fields []string
}

// Error implements the error interface
func (e *ConflictingEnumDefinitionError) Error() string {
	return fmt.Sprintf("enum %s is declared with different values by %s", e.Enum, strings.Join(e.Fields, ", "))
}

// IsConflictingEnum returns true if the error is a ConflictingEnumDefinitionError
func IsConflictingEnum(err error) bool {
	var ce *ConflictingEnumDefinitionError
	return errors.As(err, &ce)
}
