// Package depgraph builds and validates the dependency graph for one batch
// of artifacts. The graph owns the batch's artifacts and the deduplicated
// reference edges between them; edges whose target is not in the batch are
// tracked separately as external references.
package depgraph

import (
	"sort"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/artifact"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/refscan"
)

// Edge is one dependency: From depends on To. Kind records which reference
// shape produced it.
type Edge struct {
	From string
	To   string
	Kind refscan.RefKind
}

// Graph is the dependency graph for one batch. It is built once by Build and
// read-only afterwards; a fresh graph is constructed per invocation, so no
// locking is needed.
type Graph struct {
	artifacts map[string]artifact.Artifact
	edges     map[Edge]struct{}

	// successors[id] lists IDs that id depends on (internal only).
	// predecessors[id] lists IDs that depend on id. Both directions are kept
	// so topological sort and reverse-impact queries are both cheap.
	successors   map[string]map[string]struct{}
	predecessors map[string]map[string]struct{}

	// external holds edges whose target is outside the batch.
	external []Edge
}

// Artifacts returns the batch's artifacts in ascending ID order.
func (g *Graph) Artifacts() []artifact.Artifact {
	out := make([]artifact.Artifact, 0, len(g.artifacts))
	for _, a := range g.artifacts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Artifact returns the artifact with the given ID.
func (g *Graph) Artifact(id string) (artifact.Artifact, bool) {
	a, ok := g.artifacts[id]
	return a, ok
}

// IDs returns every artifact ID in the batch, ascending.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.artifacts))
	for id := range g.artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependencies returns the internal IDs that id depends on, ascending.
func (g *Graph) Dependencies(id string) []string {
	return sortedKeys(g.successors[id])
}

// Dependents returns the internal IDs that depend on id, ascending.
func (g *Graph) Dependents(id string) []string {
	return sortedKeys(g.predecessors[id])
}

// ExternalEdges returns edges pointing outside the batch, ordered by
// (From, To).
func (g *Graph) ExternalEdges() []Edge {
	out := make([]Edge, len(g.external))
	copy(out, g.external)
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
