package builder

import (
	"errors"
	"fmt"
	"strings"
)

// Collision is an operation name claimed by more than one source
type Collision struct {
	Root    string // Query or Mutation
	Name    string
	Sources []string // entity names, or "resolver" for user resolvers
}

// OperationNameCollisionError lists every operation name defined twice on
// the same root type.
type OperationNameCollisionError struct {
	Collisions []Collision
}

func (e *OperationNameCollisionError) Error() string {
	parts := make([]string, len(e.Collisions))
	for i, c := range e.Collisions {
		parts[i] = fmt.Sprintf("%s.%s (%s)", c.Root, c.Name, strings.Join(c.Sources, ", "))
	}
	return "operation name collision: " + strings.Join(parts, "; ")
}

// IsOperationNameCollision checks if an error is an OperationNameCollisionError
func IsOperationNameCollision(err error) bool {
	var e *OperationNameCollisionError
	return errors.As(err, &e)
}
