package artifact

import "fmt"

// Kind classifies what a form definition is used for. It changes nothing
// about how a form is deployed, but it is carried into logs and the audit
// record so operators can tell master-data bring-up apart from transactional
// form rollout.
type Kind string

const (
	KindMasterData    Kind = "master-data"
	KindGridSubform   Kind = "grid-subform"
	KindTransactional Kind = "transactional"
)

// ParseKind converts a manifest string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindMasterData, KindGridSubform, KindTransactional:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown artifact kind %q", s)
}

// Artifact is one deployable form definition. Instances are constructed by
// the package loader and are immutable afterwards; nothing downstream writes
// to Definition.
type Artifact struct {
	// ID is the form identifier, unique within a batch.
	ID string

	// Kind is the manifest-declared classification, KindTransactional when
	// the manifest is absent or silent.
	Kind Kind

	// Name is the human-readable form name from the definition properties.
	Name string

	// Definition is the decoded form JSON. Treated as opaque by everything
	// except the reference scanner.
	Definition map[string]any

	// DeclaredTable is properties.tableName, used for conflict detection.
	// May be empty; the loader surfaces a warning in that case.
	DeclaredTable string
}

// Batch is the set of artifacts loaded from one source package, in the
// stable order the loader produced them (ascending by ID).
type Batch struct {
	Artifacts []Artifact
}

// ByID returns the artifact with the given ID, or false if the batch does
// not contain it.
func (b *Batch) ByID(id string) (Artifact, bool) {
	for _, a := range b.Artifacts {
		if a.ID == id {
			return a, true
		}
	}
	return Artifact{}, false
}

// IDs returns all artifact IDs in batch order.
func (b *Batch) IDs() []string {
	ids := make([]string, 0, len(b.Artifacts))
	for _, a := range b.Artifacts {
		ids = append(ids, a.ID)
	}
	return ids
}
