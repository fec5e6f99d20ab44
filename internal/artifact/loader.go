package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
)

// maxFormIDLength is the platform limit on form identifiers.
const maxFormIDLength = 20

// manifestFileName is the optional per-package manifest carrying kind and
// display-name overrides.
const manifestFileName = "package.yaml"

// manifest mirrors package.yaml:
//
//	forms:
//	  md01maritalStatus:
//	    kind: master-data
//	    name: "MD.01 - Marital Status"
type manifest struct {
	Forms map[string]manifestEntry `yaml:"forms"`
}

type manifestEntry struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
}

// LoadResult is the outcome of loading a source package. Warnings are
// non-fatal findings (missing tableName, manifest entries without a matching
// file) carried forward into the plan for visibility.
type LoadResult struct {
	Batch    *Batch
	Warnings []string
}

// Load reads every *.json file in dir as one form definition (file stem is
// the form ID), applies the optional package.yaml manifest, and validates the
// result. Structural problems are collected across the whole package and
// returned as a single *StructuralError so the operator sees the full list
// in one pass.
func Load(ctx context.Context, dir string) (*LoadResult, error) {
	logger := ctxlog.FromContext(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading source package %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, &StructuralError{Problems: []string{fmt.Sprintf("no form definitions (*.json) found in %s", dir)}}
	}
	logger.Debug("source package scanned", "dir", dir, "definitions", len(files))

	man, warnings, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}

	var problems []string
	batch := &Batch{}
	seen := make(map[string]bool, len(files))

	for _, name := range files {
		id := strings.TrimSuffix(name, ".json")

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", id, err))
			continue
		}

		var def map[string]any
		if err := json.Unmarshal(raw, &def); err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid JSON: %v", id, err))
			continue
		}
		if _, ok := def["className"].(string); !ok {
			problems = append(problems, fmt.Sprintf("%s: missing className", id))
			continue
		}
		if len(id) > maxFormIDLength {
			problems = append(problems, fmt.Sprintf("%s: form ID exceeds %d characters (%d)", id, maxFormIDLength, len(id)))
			continue
		}

		a := Artifact{
			ID:         id,
			Kind:       KindTransactional,
			Definition: def,
		}
		if props, ok := def["properties"].(map[string]any); ok {
			a.Name, _ = props["name"].(string)
			a.DeclaredTable, _ = props["tableName"].(string)
		}
		if a.DeclaredTable == "" {
			warnings = append(warnings, fmt.Sprintf("%s: missing tableName in properties", id))
		}

		if entry, ok := man.Forms[id]; ok {
			if entry.Kind != "" {
				kind, err := ParseKind(entry.Kind)
				if err != nil {
					problems = append(problems, fmt.Sprintf("%s: %v", id, err))
					continue
				}
				a.Kind = kind
			}
			if entry.Name != "" {
				a.Name = entry.Name
			}
		}

		seen[id] = true
		batch.Artifacts = append(batch.Artifacts, a)
	}

	for id := range man.Forms {
		if !seen[id] {
			warnings = append(warnings, fmt.Sprintf("manifest lists %s but no %s.json exists", id, id))
		}
	}
	sort.Strings(warnings)

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &StructuralError{Problems: problems}
	}

	logger.Debug("source package loaded", "artifacts", len(batch.Artifacts), "warnings", len(warnings))
	return &LoadResult{Batch: batch, Warnings: warnings}, nil
}

func loadManifest(dir string) (manifest, []string, error) {
	var man manifest
	raw, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if os.IsNotExist(err) {
		return man, nil, nil
	}
	if err != nil {
		return man, nil, fmt.Errorf("reading %s: %w", manifestFileName, err)
	}
	if err := yaml.Unmarshal(raw, &man); err != nil {
		return man, nil, &StructuralError{Problems: []string{fmt.Sprintf("%s: %v", manifestFileName, err)}}
	}
	return man, nil, nil
}
