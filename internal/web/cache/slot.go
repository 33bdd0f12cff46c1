package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Slot is a single typed value held in a Cache under a fixed key with a TTL.
// Values are stored as JSON so any backend can hold them.
type Slot[T any] struct {
	backend Cache
	key     string
	ttl     time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	fetchedAt time.Time
}

// NewSlot creates a slot. A ttl of zero uses the backend default.
func NewSlot[T any](backend Cache, key string, ttl time.Duration) *Slot[T] {
	return &Slot[T]{backend: backend, key: key, ttl: ttl, now: time.Now}
}

// Load returns the cached value. The boolean is false on a miss, an expired
// entry or an undecodable payload.
func (s *Slot[T]) Load(ctx context.Context) (T, bool, error) {
	var zero T
	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if IsCacheMiss(err) {
			return zero, false, nil
		}
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		_ = s.backend.Delete(ctx, s.key)
		return zero, false, fmt.Errorf("cache slot %s: decode: %w", s.key, err)
	}
	return v, true, nil
}

// Store replaces the cached value and records the fetch time.
func (s *Slot[T]) Store(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache slot %s: encode: %w", s.key, err)
	}
	if err := s.backend.Set(ctx, s.key, data, s.ttl); err != nil {
		return err
	}
	s.mu.Lock()
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return nil
}

// Invalidate drops the cached value.
func (s *Slot[T]) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
	return s.backend.Delete(ctx, s.key)
}

// FetchedAt is the time of the last Store by this slot, zero after
// Invalidate.
func (s *Slot[T]) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Key returns the backend key of the slot.
func (s *Slot[T]) Key() string {
	return s.key
}
