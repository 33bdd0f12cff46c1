package storage

import (
	"context"
	"sync"

	"github.com/conduit-lang/catalog/runtime/metadata"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*metadata.ComponentMetadata
	changes []metadata.ChangeRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*metadata.ComponentMetadata)}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (*metadata.ComponentMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.records[path]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) Upsert(ctx context.Context, m *metadata.ComponentMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[m.Path] = m.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, path)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, q metadata.StoreQuery) ([]*metadata.ComponentMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	records := make([]*metadata.ComponentMetadata, 0, len(s.records))
	for _, m := range s.records {
		records = append(records, m.Clone())
	}
	s.mu.RUnlock()
	return filter(records, q), nil
}

func (s *MemoryStore) AppendChange(ctx context.Context, rec metadata.ChangeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.changes = append(s.changes, rec)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListChanges(ctx context.Context, path string, limit int) ([]metadata.ChangeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.changes, path, limit), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
