package plan

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/artifact"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/depgraph"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/refscan"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/target"
)

func buildGraph(t *testing.T, tables map[string]string, deps map[string][]string) *depgraph.Graph {
	t.Helper()
	batch := &artifact.Batch{}
	for id, table := range tables {
		batch.Artifacts = append(batch.Artifacts, artifact.Artifact{
			ID: id, DeclaredTable: table, Definition: map[string]any{},
		})
	}
	refs := make(map[string][]refscan.Reference)
	for from, tos := range deps {
		for _, to := range tos {
			refs[from] = append(refs[from], refscan.Reference{TargetID: to, Kind: refscan.KindSubform})
		}
	}
	g, err := depgraph.Build(context.Background(), batch, refs)
	require.NoError(t, err)
	return g
}

func computeFor(t *testing.T, g *depgraph.Graph, snap *target.Snapshot, opts Options) *Plan {
	t.Helper()
	v := depgraph.Validate(context.Background(), g, snap)
	return Compute(context.Background(), g, snap, v, opts)
}

func TestCompute_LinearChainOrder(t *testing.T) {
	g := buildGraph(t,
		map[string]string{"a": "t_a", "b": "t_b", "c": "t_c"},
		map[string][]string{"b": {"a"}, "c": {"b"}},
	)
	snap := target.NewSnapshot("app", nil)

	p := computeFor(t, g, snap, Options{})
	require.True(t, p.Valid())
	assert.Equal(t, []string{"a", "b", "c"}, p.Order)
}

func TestCompute_TopologicalInvariant(t *testing.T) {
	deps := map[string][]string{
		"d": {"b", "c"},
		"b": {"a"},
		"c": {"a"},
		"e": {"d"},
	}
	g := buildGraph(t,
		map[string]string{"a": "t1", "b": "t2", "c": "t3", "d": "t4", "e": "t5"},
		deps,
	)

	p := computeFor(t, g, target.NewSnapshot("app", nil), Options{})
	require.True(t, p.Valid())

	index := make(map[string]int, len(p.Order))
	for i, id := range p.Order {
		index[id] = i
	}
	for from, tos := range deps {
		for _, to := range tos {
			assert.Less(t, index[to], index[from], "%s must precede %s", to, from)
		}
	}
}

func TestCompute_LexicalTieBreak(t *testing.T) {
	g := buildGraph(t,
		map[string]string{"zeta": "t1", "alpha": "t2", "mid": "t3"},
		nil,
	)

	p := computeFor(t, g, target.NewSnapshot("app", nil), Options{})
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, p.Order)
}

func TestCompute_Deterministic(t *testing.T) {
	make1 := func() *Plan {
		g := buildGraph(t,
			map[string]string{"a": "t1", "b": "t2", "c": "t3", "d": "t4"},
			map[string][]string{"c": {"a", "b"}, "d": {"c"}},
		)
		return computeFor(t, g, target.NewSnapshot("app", map[string]string{"b": "t2"}), Options{})
	}

	first, second := make1(), make1()
	assert.Equal(t, first.Order, second.Order)
	assert.Equal(t, first.Entries, second.Entries)
}

func TestCompute_ActionClassification(t *testing.T) {
	g := buildGraph(t, map[string]string{"newForm": "t1", "oldForm": "t2"}, nil)
	snap := target.NewSnapshot("app", map[string]string{"oldForm": "t2"})

	p := computeFor(t, g, snap, Options{})
	assert.Equal(t, ActionCreate, p.Entries["newForm"])
	assert.Equal(t, ActionUpdate, p.Entries["oldForm"])
}

func TestCompute_UpdateOnlySkipsCreates(t *testing.T) {
	g := buildGraph(t, map[string]string{"newForm": "t1", "oldForm": "t2"}, nil)
	snap := target.NewSnapshot("app", map[string]string{"oldForm": "t2"})

	p := computeFor(t, g, snap, Options{UpdateOnly: true})
	require.True(t, p.Valid())
	assert.Equal(t, ActionSkip, p.Entries["newForm"])
	assert.Equal(t, ActionUpdate, p.Entries["oldForm"])
}

func TestCompute_ExplicitExclude(t *testing.T) {
	g := buildGraph(t, map[string]string{"a": "t1", "b": "t2"}, nil)

	p := computeFor(t, g, target.NewSnapshot("app", nil), Options{Exclude: []string{"b"}})
	assert.Equal(t, ActionCreate, p.Entries["a"])
	assert.Equal(t, ActionSkip, p.Entries["b"])
}

func TestCompute_CycleBlocksPlanning(t *testing.T) {
	g := buildGraph(t,
		map[string]string{"a": "t1", "b": "t2"},
		map[string][]string{"a": {"b"}, "b": {"a"}},
	)

	p := computeFor(t, g, target.NewSnapshot("app", nil), Options{})
	assert.False(t, p.Valid())
	assert.Empty(t, p.Order)
	require.NotEmpty(t, p.BlockingErrors)
	assert.Contains(t, p.BlockingErrors[0], "circular dependency")
}

func TestCompute_TableConflictWithinBatch(t *testing.T) {
	g := buildGraph(t, map[string]string{"a": "shared", "b": "shared"}, nil)

	p := computeFor(t, g, target.NewSnapshot("app", nil), Options{})
	assert.False(t, p.Valid())
	require.Len(t, p.BlockingErrors, 1)
	assert.Contains(t, p.BlockingErrors[0], `"shared"`)
}

func TestCompute_TableConflictWithTargetForm(t *testing.T) {
	// "a" declares a table whose name is a different form's ID on the target.
	g := buildGraph(t, map[string]string{"a": "existingForm"}, nil)
	snap := target.NewSnapshot("app", map[string]string{"existingForm": "t_other"})

	p := computeFor(t, g, snap, Options{})
	assert.False(t, p.Valid())
	require.Len(t, p.BlockingErrors, 1)
	assert.Contains(t, p.BlockingErrors[0], "existing form on target")
}

func TestCompute_OwnTableMatchingOwnIDIsFine(t *testing.T) {
	// Updating a form whose table is its own ID must not self-conflict.
	g := buildGraph(t, map[string]string{"a": "a"}, nil)
	snap := target.NewSnapshot("app", map[string]string{"a": "a"})

	p := computeFor(t, g, snap, Options{})
	assert.True(t, p.Valid())
	assert.Equal(t, ActionUpdate, p.Entries["a"])
}

func TestCompute_MissingExternalIsWarning(t *testing.T) {
	batch := &artifact.Batch{Artifacts: []artifact.Artifact{
		{ID: "x", DeclaredTable: "t_x", Definition: map[string]any{}},
	}}
	refs := map[string][]refscan.Reference{
		"x": {{TargetID: "ext1", Kind: refscan.KindLookup}},
	}
	g, err := depgraph.Build(context.Background(), batch, refs)
	require.NoError(t, err)

	p := computeFor(t, g, target.NewSnapshot("app", nil), Options{})
	assert.True(t, p.Valid())
	require.Len(t, p.Warnings, 1)
	assert.Contains(t, p.Warnings[0], "ext1")

	satisfied := computeFor(t, g, target.NewSnapshot("app", map[string]string{"ext1": "ext1"}), Options{})
	assert.Empty(t, satisfied.Warnings)
}

func TestPreview_Shape(t *testing.T) {
	g := buildGraph(t, map[string]string{"a": "t1"}, nil)
	p := computeFor(t, g, target.NewSnapshot("app", nil), Options{})

	raw, err := p.Preview()
	require.NoError(t, err)

	var decoded struct {
		Order          []string          `json:"order"`
		Entries        map[string]string `json:"entries"`
		Warnings       []string          `json:"warnings"`
		BlockingErrors []string          `json:"blockingErrors"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []string{"a"}, decoded.Order)
	assert.Equal(t, map[string]string{"a": "CREATE"}, decoded.Entries)
	assert.NotNil(t, decoded.Warnings)
	assert.NotNil(t, decoded.BlockingErrors)
}
