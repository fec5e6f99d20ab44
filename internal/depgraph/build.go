package depgraph

import (
	"context"
	"fmt"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/artifact"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/refscan"
)

// DuplicateArtifactError reports two artifacts in one batch sharing an ID.
type DuplicateArtifactError struct {
	ID string
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("duplicate artifact ID in batch: %s", e.ID)
}

// Build assembles the dependency graph for a batch. refs carries the scanner
// output per artifact ID; references to IDs inside the batch become internal
// edges, everything else is recorded as an external edge. The only structural
// failure is a duplicate artifact ID.
func Build(ctx context.Context, batch *artifact.Batch, refs map[string][]refscan.Reference) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	g := &Graph{
		artifacts:    make(map[string]artifact.Artifact, len(batch.Artifacts)),
		edges:        make(map[Edge]struct{}),
		successors:   make(map[string]map[string]struct{}),
		predecessors: make(map[string]map[string]struct{}),
	}

	for _, a := range batch.Artifacts {
		if _, exists := g.artifacts[a.ID]; exists {
			return nil, &DuplicateArtifactError{ID: a.ID}
		}
		g.artifacts[a.ID] = a
		g.successors[a.ID] = make(map[string]struct{})
		g.predecessors[a.ID] = make(map[string]struct{})
	}

	internal, external := 0, 0
	for fromID, list := range refs {
		if _, ok := g.artifacts[fromID]; !ok {
			// Scanner output for something not in the batch; nothing to hang
			// the edge on.
			continue
		}
		for _, ref := range list {
			e := Edge{From: fromID, To: ref.TargetID, Kind: ref.Kind}
			if _, dup := g.edges[e]; dup {
				continue
			}
			g.edges[e] = struct{}{}

			if _, ok := g.artifacts[ref.TargetID]; ok {
				g.successors[fromID][ref.TargetID] = struct{}{}
				g.predecessors[ref.TargetID][fromID] = struct{}{}
				internal++
			} else {
				g.external = append(g.external, e)
				external++
			}
		}
	}

	logger.Debug("dependency graph built",
		"artifacts", len(g.artifacts), "internal_edges", internal, "external_edges", external)
	return g, nil
}
