// Package testutil provides shared test doubles for the deployment engine.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/artifact"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/target"
)

// FakeStore is an in-memory target.Store. Existing seeds the snapshot;
// FailCreate/FailUpdate force errors for specific artifact IDs; the
// Ping/App/Credential errors gate the prerequisite checks.
type FakeStore struct {
	mu sync.Mutex

	AppID    string
	Existing map[string]string // id -> table

	PingErr       error
	AppMissing    bool
	AppErr        error
	CredentialErr error

	FailCreate map[string]error
	FailUpdate map[string]error

	// CreateHook, when set, runs after a successful Create with the created
	// artifact's ID. Tests use it to trigger cancellation mid-run.
	CreateHook func(id string)

	// Calls records every Create/Update in invocation order as "create:id" /
	// "update:id".
	Calls []string
}

// NewFakeStore returns a store whose target application contains the given
// forms (table name defaults to the form ID).
func NewFakeStore(appID string, existingIDs ...string) *FakeStore {
	existing := make(map[string]string, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = id
	}
	return &FakeStore{AppID: appID, Existing: existing}
}

func (s *FakeStore) Ping(ctx context.Context) error { return s.PingErr }

func (s *FakeStore) AppExists(ctx context.Context) (bool, error) {
	if s.AppErr != nil {
		return false, s.AppErr
	}
	return !s.AppMissing, nil
}

func (s *FakeStore) ValidateCredentials(ctx context.Context) error { return s.CredentialErr }

func (s *FakeStore) Snapshot(ctx context.Context) (*target.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return target.NewSnapshot(s.AppID, s.Existing), nil
}

func (s *FakeStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Existing[id]
	return ok, nil
}

func (s *FakeStore) Create(ctx context.Context, a artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "create:"+a.ID)
	if err := s.FailCreate[a.ID]; err != nil {
		return err
	}
	if _, ok := s.Existing[a.ID]; ok {
		return fmt.Errorf("form %s already exists", a.ID)
	}
	s.Existing[a.ID] = a.DeclaredTable
	if s.CreateHook != nil {
		s.CreateHook(a.ID)
	}
	return nil
}

func (s *FakeStore) Update(ctx context.Context, a artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "update:"+a.ID)
	if err := s.FailUpdate[a.ID]; err != nil {
		return err
	}
	if _, ok := s.Existing[a.ID]; !ok {
		return fmt.Errorf("form %s does not exist", a.ID)
	}
	s.Existing[a.ID] = a.DeclaredTable
	return nil
}

// Form builds a minimal form definition that references the given form IDs
// through subform elements.
func Form(table string, dependsOn ...string) map[string]any {
	elements := make([]any, 0, len(dependsOn))
	for _, dep := range dependsOn {
		elements = append(elements, map[string]any{
			"className":  "org.joget.apps.form.lib.SubForm",
			"properties": map[string]any{"formDefId": dep},
		})
	}
	return map[string]any{
		"className": "org.joget.apps.form.model.Form",
		"properties": map[string]any{
			"name":      table,
			"tableName": table,
		},
		"elements": elements,
	}
}

// Batch assembles artifacts from id -> definition pairs, in map-independent
// ascending ID order via artifact IDs supplied explicitly.
func Batch(ids []string, defs map[string]map[string]any) *artifact.Batch {
	b := &artifact.Batch{}
	for _, id := range ids {
		def := defs[id]
		a := artifact.Artifact{ID: id, Kind: artifact.KindTransactional, Definition: def}
		if props, ok := def["properties"].(map[string]any); ok {
			a.Name, _ = props["name"].(string)
			a.DeclaredTable, _ = props["tableName"].(string)
		}
		b.Artifacts = append(b.Artifacts, a)
	}
	return b
}
