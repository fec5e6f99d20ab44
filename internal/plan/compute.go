package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/depgraph"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/target"
)

// Options adjusts action classification.
type Options struct {
	// UpdateOnly turns would-be CREATE actions into SKIP instead of
	// rejecting the plan.
	UpdateOnly bool

	// Exclude forces SKIP for the listed artifact IDs.
	Exclude []string

	// ExtraWarnings are carried into the plan verbatim (loader findings,
	// mostly) so one preview shows everything the operator should read.
	ExtraWarnings []string
}

// Compute produces the deployment plan for a validated graph. Cycles become
// blocking errors; missing external references become warnings; table
// conflicts are blocking. The topological order uses Kahn's algorithm with
// the eligible set kept in ascending ID order, so the same graph and
// snapshot always yield the same plan.
func Compute(ctx context.Context, g *depgraph.Graph, snap *target.Snapshot, v *depgraph.ValidationResult, opts Options) *Plan {
	logger := ctxlog.FromContext(ctx)

	p := &Plan{Entries: make(map[string]Action)}
	p.Warnings = append(p.Warnings, opts.ExtraWarnings...)

	for _, c := range v.Cycles {
		p.BlockingErrors = append(p.BlockingErrors, c.Error())
	}
	for _, ref := range v.MissingExternal() {
		p.Warnings = append(p.Warnings,
			fmt.Sprintf("%s references %s, which is neither in the package nor on the target", ref.ArtifactID, ref.ReferencedID))
	}
	checkTableConflicts(g, snap, p)

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, id := range opts.Exclude {
		excluded[id] = true
	}
	for _, id := range g.IDs() {
		switch {
		case excluded[id]:
			p.Entries[id] = ActionSkip
		case snap.Has(id):
			p.Entries[id] = ActionUpdate
		case opts.UpdateOnly:
			p.Entries[id] = ActionSkip
		default:
			p.Entries[id] = ActionCreate
		}
	}

	if !p.Valid() {
		logger.Debug("plan is blocked", "blockers", len(p.BlockingErrors))
		return p
	}

	p.Order = topologicalOrder(g)
	logger.Debug("plan computed", "order_len", len(p.Order), "warnings", len(p.Warnings))
	return p
}

// topologicalOrder runs Kahn's algorithm over the internal edges. The
// eligible queue is re-sorted after every insertion; ties always resolve to
// the lexically smallest ID.
func topologicalOrder(g *depgraph.Graph) []string {
	ids := g.IDs()

	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		inDegree[id] = len(g.Dependencies(id))
	}

	var queue []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, dependent := range g.Dependents(id) {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
		sort.Strings(queue)
	}
	return order
}

// checkTableConflicts appends a blocking error for every table claimed twice
// within the batch, and for every declared table that matches a different
// artifact ID already existing on the target.
func checkTableConflicts(g *depgraph.Graph, snap *target.Snapshot, p *Plan) {
	claimed := make(map[string]string) // table -> first claimant
	for _, a := range g.Artifacts() {
		if a.DeclaredTable == "" {
			continue
		}
		if first, ok := claimed[a.DeclaredTable]; ok {
			conflict := &TableConflictError{Table: a.DeclaredTable, First: first, Second: a.ID}
			p.BlockingErrors = append(p.BlockingErrors, conflict.Error())
			continue
		}
		claimed[a.DeclaredTable] = a.ID

		if a.DeclaredTable != a.ID && snap.Has(a.DeclaredTable) {
			conflict := &TableConflictError{Table: a.DeclaredTable, First: a.DeclaredTable, Second: a.ID}
			p.BlockingErrors = append(p.BlockingErrors,
				fmt.Sprintf("%s (existing form on target)", conflict.Error()))
		}
	}
}
