package metadata

import (
	"context"
	"sort"
	"sync"
)

// memStore is a minimal Store and ChangeLogStore for registry tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]*ComponentMetadata
	changes []ChangeRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*ComponentMetadata)}
}

func (s *memStore) Get(_ context.Context, path string) (*ComponentMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[path].Clone(), nil
}

func (s *memStore) Upsert(_ context.Context, m *ComponentMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[m.Path] = m.Clone()
	return nil
}

func (s *memStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, path)
	return nil
}

func (s *memStore) Query(_ context.Context, _ StoreQuery) ([]*ComponentMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ComponentMetadata, 0, len(s.records))
	for _, m := range s.records {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *memStore) AppendChange(_ context.Context, rec ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, rec)
	return nil
}

func (s *memStore) ListChanges(_ context.Context, path string, limit int) ([]ChangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ChangeRecord
	for i := len(s.changes) - 1; i >= 0 && len(out) < limit; i-- {
		if path == "" || s.changes[i].Path == path {
			out = append(out, s.changes[i])
		}
	}
	return out, nil
}
