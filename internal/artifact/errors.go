package artifact

import (
	"fmt"
	"strings"
)

// StructuralError reports problems that make a source package unusable:
// unreadable or malformed definitions, over-long identifiers, a missing
// className. It blocks graph construction entirely.
type StructuralError struct {
	Problems []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("source package is structurally invalid: %s", strings.Join(e.Problems, "; "))
}
