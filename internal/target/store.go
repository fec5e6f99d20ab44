// Package target defines the engine's collaborator for the deployment
// target: a point-in-time snapshot of what exists there, and the store
// interface through which artifacts are created and updated. The engine
// never builds HTTP requests itself; it goes through a Store.
package target

import (
	"context"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/artifact"
)

// Store is the mutation and query surface of one target application.
// Implementations own their transport concerns (timeouts, retries); a
// timed-out call surfaces to the executor as an ordinary error.
type Store interface {
	// Ping verifies the target instance is reachable.
	Ping(ctx context.Context) error

	// AppExists reports whether the target application container exists.
	AppExists(ctx context.Context) (bool, error)

	// ValidateCredentials verifies the configured credentials are accepted.
	ValidateCredentials(ctx context.Context) error

	// Snapshot reads the IDs and declared tables of every form currently in
	// the target application.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Exists reports whether a single form ID exists in the target.
	Exists(ctx context.Context, id string) (bool, error)

	// Create pushes a new form definition to the target.
	Create(ctx context.Context, a artifact.Artifact) error

	// Update replaces an existing form definition on the target.
	Update(ctx context.Context, a artifact.Artifact) error
}

// Snapshot is a point-in-time read of the target application, fetched once
// before planning. It is never refreshed during a run: a concurrent external
// writer changing the target mid-run is an accepted race, not a condition the
// engine detects.
type Snapshot struct {
	// AppID is the application the snapshot was taken from.
	AppID string

	// ExistingIDs holds every form ID known to exist.
	ExistingIDs map[string]struct{}

	// Tables maps existing form IDs to their declared table names.
	Tables map[string]string
}

// NewSnapshot builds a snapshot from parallel id/table data.
func NewSnapshot(appID string, tables map[string]string) *Snapshot {
	s := &Snapshot{
		AppID:       appID,
		ExistingIDs: make(map[string]struct{}, len(tables)),
		Tables:      make(map[string]string, len(tables)),
	}
	for id, table := range tables {
		s.ExistingIDs[id] = struct{}{}
		s.Tables[id] = table
	}
	return s
}

// Has reports whether the given form ID existed at snapshot time.
func (s *Snapshot) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ExistingIDs[id]
	return ok
}
