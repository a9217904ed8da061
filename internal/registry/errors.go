package registry

import (
	"fmt"

	"github.com/roach88/polyglot/internal/ir"
)

// TypeMappingError reports a type with no known spelling in the
// requested target. It is terminal: generation aborts on the first one.
type TypeMappingError struct {
	Type   ir.Type
	Target Target
}

func (e *TypeMappingError) Error() string {
	return fmt.Sprintf("no %s mapping for type '%s'", e.Target, e.Type)
}
