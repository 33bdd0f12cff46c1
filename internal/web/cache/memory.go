package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

const janitorInterval = time.Minute

// MemoryCache is a process-local Cache with TTL support. Expired entries are
// dropped on access and by a background janitor.
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	config Config
	now    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// NewMemoryCache creates an in-memory cache with the default configuration
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultConfig())
}

// NewMemoryCacheWithConfig creates an in-memory cache
func NewMemoryCacheWithConfig(config Config) *MemoryCache {
	m := &MemoryCache{
		items:  make(map[string]memoryItem),
		config: config,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullKey := m.config.Prefix + key

	m.mu.RLock()
	item, ok := m.items[fullKey]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}
	if item.expired(m.now()) {
		m.mu.Lock()
		delete(m.items, fullKey)
		m.mu.Unlock()
		return nil, ErrCacheMiss{Key: key}
	}
	return append([]byte(nil), item.value...), nil
}

// Set stores a value in the cache
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[m.config.Prefix+key] = item
	m.mu.Unlock()
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.items, m.config.Prefix+key)
	m.mu.Unlock()
	return nil
}

// Clear removes every value under the cache prefix
func (m *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	for k := range m.items {
		if strings.HasPrefix(k, m.config.Prefix) {
			delete(m.items, k)
		}
	}
	m.mu.Unlock()
	return nil
}

// Exists checks if an unexpired value is stored under key
func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := m.Get(ctx, key); err != nil {
		if IsCacheMiss(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Len returns the number of stored entries, expired ones included
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close stops the janitor. It is safe to call more than once.
func (m *MemoryCache) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryCache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryCache) evictExpired() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, item := range m.items {
		if item.expired(now) {
			delete(m.items, k)
		}
	}
}
