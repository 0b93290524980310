// Package memory stores dictionary artifacts in-memory for tests and
// ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/dictgen/internal/dictionary"
)

// ArtifactStore keeps encoded artifacts keyed by id.
type ArtifactStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewArtifactStore creates an empty store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{data: make(map[string][]byte)}
}

// Write encodes and stores records, replacing any previous artifact.
func (s *ArtifactStore) Write(_ context.Context, id string, records []dictionary.Record) error {
	if err := dictionary.ValidateID(id); err != nil {
		return err
	}
	encoded := dictionary.EncodeRecords(records)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = encoded
	return nil
}

// Read returns a copy of the stored bytes.
func (s *ArtifactStore) Read(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[id]
	if !ok {
		return nil, dictionary.NotFoundf("no artifact for %q", id)
	}
	return append([]byte(nil), data...), nil
}

// ReadAll parses every stored artifact, ordered by id.
func (s *ArtifactStore) ReadAll(_ context.Context) ([]dictionary.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifacts := make([]dictionary.Artifact, 0, len(s.data))
	for id, data := range s.data {
		records, err := dictionary.ParseRecords(data)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", dictionary.ErrIOFailure, id, err)
		}
		artifacts = append(artifacts, dictionary.Artifact{ID: id, Records: records})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].ID < artifacts[j].ID })
	return artifacts, nil
}

// Delete removes the artifact for id.
func (s *ArtifactStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return dictionary.NotFoundf("no artifact for %q", id)
	}
	delete(s.data, id)
	return nil
}

// Has reports whether an artifact exists for id.
func (s *ArtifactStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok
}
