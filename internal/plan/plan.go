// Package plan turns a validated dependency graph into an executable
// deployment plan: a topological order plus a CREATE/UPDATE/SKIP action per
// artifact. Planning is pure; the target snapshot is supplied by the caller
// and no network calls happen here.
package plan

import (
	"encoding/json"
	"fmt"
)

// Action is what the executor will do with one artifact.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionSkip   Action = "SKIP"
)

// TableConflictError reports two artifacts claiming the same storage table,
// or a declared table colliding with a different form already on the target.
// Either way the platform would bind two forms to one table, which corrupts
// data rather than merely looking untidy, so it blocks planning.
type TableConflictError struct {
	Table  string
	First  string
	Second string
}

func (e *TableConflictError) Error() string {
	return fmt.Sprintf("table %q claimed by both %s and %s", e.Table, e.First, e.Second)
}

// Plan is the validated, ordered, action-classified result of dependency
// analysis. Order is only meaningful when Valid() is true.
type Plan struct {
	Order          []string
	Entries        map[string]Action
	Warnings       []string
	BlockingErrors []string
}

// Valid reports whether the plan can be executed.
func (p *Plan) Valid() bool {
	return len(p.BlockingErrors) == 0
}

// preview is the stable JSON shape shared by the dry-run renderer and CI
// consumers.
type preview struct {
	Order          []string          `json:"order"`
	Entries        map[string]string `json:"entries"`
	Warnings       []string          `json:"warnings"`
	BlockingErrors []string          `json:"blockingErrors"`
}

// Preview marshals the plan as JSON: {order, entries, warnings,
// blockingErrors}. Empty collections marshal as [] / {} so parsers never see
// null.
func (p *Plan) Preview() ([]byte, error) {
	out := preview{
		Order:          p.Order,
		Entries:        make(map[string]string, len(p.Entries)),
		Warnings:       p.Warnings,
		BlockingErrors: p.BlockingErrors,
	}
	if out.Order == nil {
		out.Order = []string{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	if out.BlockingErrors == nil {
		out.BlockingErrors = []string{}
	}
	for id, action := range p.Entries {
		out.Entries[id] = string(action)
	}
	return json.MarshalIndent(out, "", "  ")
}
