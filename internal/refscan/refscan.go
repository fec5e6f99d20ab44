// Package refscan extracts inter-form references from decoded form
// definitions. It recognizes a closed set of reference shapes; anything else
// is deliberately not extracted, so an exotic plugin that embeds a form ID in
// an unknown position produces no edge rather than an error.
package refscan

import (
	"sort"
	"strings"
)

// RefKind tags which shape produced a reference.
type RefKind string

const (
	// KindGrid is an embedded-grid element carrying a formDefId.
	KindGrid RefKind = "grid"
	// KindSubform is a subform element carrying a formDefId.
	KindSubform RefKind = "subform"
	// KindLookup is an options-source or load binder carrying a formDefId.
	KindLookup RefKind = "lookup"
)

// Reference is one extracted dependency on another form.
type Reference struct {
	TargetID string
	Kind     RefKind
}

// Scan walks a decoded form definition and returns every recognized
// reference, deduplicated and sorted by target ID then kind. It is a pure
// function: no I/O, never an error. Self-references (a form pointing at its
// own ID) are dropped.
func Scan(selfID string, def map[string]any) []Reference {
	seen := make(map[Reference]bool)

	var scanElement func(el map[string]any)
	scanElement = func(el map[string]any) {
		className, _ := el["className"].(string)

		if props, ok := el["properties"].(map[string]any); ok {
			if id := literalFormID(props["formDefId"]); id != "" && id != selfID {
				seen[Reference{TargetID: id, Kind: directKind(className)}] = true
			}
			for _, key := range []string{"optionsBinder", "loadBinder"} {
				if id := binderFormID(props[key]); id != "" && id != selfID {
					seen[Reference{TargetID: id, Kind: KindLookup}] = true
				}
			}
		}

		if children, ok := el["elements"].([]any); ok {
			for _, c := range children {
				if child, ok := c.(map[string]any); ok {
					scanElement(child)
				}
			}
		}
	}

	if elements, ok := def["elements"].([]any); ok {
		for _, e := range elements {
			if el, ok := e.(map[string]any); ok {
				scanElement(el)
			}
		}
	}

	refs := make([]Reference, 0, len(seen))
	for r := range seen {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].TargetID != refs[j].TargetID {
			return refs[i].TargetID < refs[j].TargetID
		}
		return refs[i].Kind < refs[j].Kind
	})
	return refs
}

// directKind classifies a literal formDefId on an element by its class name.
// Grid elements (FormGrid and friends) embed rows of another form; everything
// else with a formDefId is treated as a subform embed.
func directKind(className string) RefKind {
	if strings.Contains(className, "Grid") {
		return KindGrid
	}
	return KindSubform
}

// literalFormID returns a trimmed form ID if v is a non-blank string.
func literalFormID(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// binderFormID digs properties.formDefId out of an options/load binder block.
func binderFormID(v any) string {
	binder, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	props, ok := binder["properties"].(map[string]any)
	if !ok {
		return ""
	}
	return literalFormID(props["formDefId"])
}
