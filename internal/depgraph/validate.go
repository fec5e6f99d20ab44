package depgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/target"
)

// CircularDependencyError carries the full cycle path as a closed walk,
// e.g. [a b a].
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Path, " -> "))
}

// ExternalReference is a dependency on an artifact outside the batch,
// resolved against the target snapshot.
type ExternalReference struct {
	ArtifactID   string
	ReferencedID string
	Satisfied    bool
}

// ValidationResult is the output of Validate. Any cycle makes the graph
// unplannable; unsatisfied external references are warnings only, so a
// multi-step bring-up can deploy a batch whose externals arrive later.
type ValidationResult struct {
	Cycles   []*CircularDependencyError
	External []ExternalReference
}

// Valid reports whether the graph can be planned.
func (r *ValidationResult) Valid() bool {
	return len(r.Cycles) == 0
}

// MissingExternal returns the external references not present in the
// snapshot, in graph order.
func (r *ValidationResult) MissingExternal() []ExternalReference {
	var out []ExternalReference
	for _, ref := range r.External {
		if !ref.Satisfied {
			out = append(out, ref)
		}
	}
	return out
}

// Validate runs cycle detection and external-reference resolution. Traversal
// starts from artifact IDs in lexical order and follows dependency edges in
// lexical order, so the reported cycles are deterministic for a given graph.
func Validate(ctx context.Context, g *Graph, snap *target.Snapshot) *ValidationResult {
	logger := ctxlog.FromContext(ctx)
	result := &ValidationResult{}

	// Three-color DFS: white = unvisited, gray = on the current stack,
	// black = fully explored. An edge into a gray node closes a cycle.
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.artifacts))
	var path []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		path = append(path, id)

		for _, dep := range g.Dependencies(id) {
			switch color[dep] {
			case gray:
				// Close the walk back to where dep first appeared on the path.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(path)-start+1)
				cycle = append(cycle, path[start:]...)
				cycle = append(cycle, dep)
				result.Cycles = append(result.Cycles, &CircularDependencyError{Path: cycle})
			case white:
				visit(dep)
			}
		}

		path = path[:len(path)-1]
		color[id] = black
	}

	for _, id := range g.IDs() {
		if color[id] == white {
			visit(id)
		}
	}

	for _, e := range g.ExternalEdges() {
		result.External = append(result.External, ExternalReference{
			ArtifactID:   e.From,
			ReferencedID: e.To,
			Satisfied:    snap.Has(e.To),
		})
	}

	logger.Debug("graph validated",
		"cycles", len(result.Cycles), "external_refs", len(result.External))
	return result
}
