package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const validForm = `{
  "className": "org.joget.apps.form.model.Form",
  "properties": {"name": "Farmer Basic", "tableName": "farmer_basic"},
  "elements": []
}`

func TestLoad_ValidPackage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "farmerBasic.json", validForm)

	res, err := Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Batch.Artifacts, 1)

	a := res.Batch.Artifacts[0]
	assert.Equal(t, "farmerBasic", a.ID)
	assert.Equal(t, "Farmer Basic", a.Name)
	assert.Equal(t, "farmer_basic", a.DeclaredTable)
	assert.Equal(t, KindTransactional, a.Kind)
	assert.Empty(t, res.Warnings)
}

func TestLoad_ManifestOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "md01status.json", validForm)
	writeFile(t, dir, "package.yaml", `
forms:
  md01status:
    kind: master-data
    name: "MD.01 - Status"
`)

	res, err := Load(context.Background(), dir)
	require.NoError(t, err)

	a := res.Batch.Artifacts[0]
	assert.Equal(t, KindMasterData, a.Kind)
	assert.Equal(t, "MD.01 - Status", a.Name)
}

func TestLoad_ManifestEntryWithoutFileWarns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", validForm)
	writeFile(t, dir, "package.yaml", "forms:\n  ghost:\n    kind: master-data\n")

	res, err := Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "ghost")
}

func TestLoad_MissingTableNameWarns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "noTable.json", `{"className": "f", "properties": {"name": "No Table"}}`)

	res, err := Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "tableName")
}

func TestLoad_CollectsAllStructuralProblems(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", "{not json")
	writeFile(t, dir, "noClass.json", `{"properties": {}}`)
	writeFile(t, dir, strings.Repeat("x", 21)+".json", validForm)

	_, err := Load(context.Background(), dir)
	var structural *StructuralError
	require.ErrorAs(t, err, &structural)
	// Every problem is reported, not just the first.
	assert.Len(t, structural.Problems, 3)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir())
	var structural *StructuralError
	require.ErrorAs(t, err, &structural)
	assert.Contains(t, structural.Error(), "no form definitions")
}

func TestLoad_UnknownManifestKind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", validForm)
	writeFile(t, dir, "package.yaml", "forms:\n  a:\n    kind: nonsense\n")

	_, err := Load(context.Background(), dir)
	var structural *StructuralError
	require.ErrorAs(t, err, &structural)
	assert.Contains(t, structural.Error(), "unknown artifact kind")
}

func TestBatch_Lookup(t *testing.T) {
	b := &Batch{Artifacts: []Artifact{{ID: "a"}, {ID: "b"}}}

	got, ok := b.ByID("b")
	assert.True(t, ok)
	assert.Equal(t, "b", got.ID)

	_, ok = b.ByID("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, b.IDs())
}
