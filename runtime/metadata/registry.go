package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultChangeLimit caps GetChangeHistory when no limit is given.
	DefaultChangeLimit = 100

	defaultChangeLogCapacity = 10000
	defaultAuthor            = "catalog"
)

// ErrInvalidMetadata is returned by Upsert for records without a path.
var ErrInvalidMetadata = errors.New("metadata: record has no path")

// Store is the durable persistence collaborator of the registry.
type Store interface {
	Get(ctx context.Context, path string) (*ComponentMetadata, error)
	Upsert(ctx context.Context, m *ComponentMetadata) error
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, q StoreQuery) ([]*ComponentMetadata, error)
}

// ChangeLogStore is implemented by stores that also persist the system-wide
// change log.
type ChangeLogStore interface {
	AppendChange(ctx context.Context, rec ChangeRecord) error
	ListChanges(ctx context.Context, path string, limit int) ([]ChangeRecord, error)
}

// StoreQuery narrows a Store.Query call. Zero values match everything.
type StoreQuery struct {
	Category Category
	Search   string
	Limit    int
}

// UpsertResult describes the outcome of an Upsert.
type UpsertResult struct {
	Type     EventType // EventAdd or EventUpdate; empty when nothing changed
	Changed  bool
	Version  string
	Breaking bool
}

// Registry is the addressable table of component records. It owns the
// system-wide change log and notifies change listeners on every mutation.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*ComponentMetadata
	byCategory map[Category]map[string]struct{}
	changes    []ChangeRecord
	gen        uint64 // bumped on every mutation, guarded by mu

	// Query result cache, cleared on every mutation
	cache      map[string][]*ComponentMetadata
	cacheGen   uint64
	cacheMutex sync.RWMutex

	locksMu   sync.Mutex
	pathLocks map[string]*sync.Mutex

	listenerMu   sync.RWMutex
	listeners    map[ListenerID]ChangeListener
	listenerSeq  []ListenerID
	nextListener ListenerID

	store          Store
	logger         *zap.Logger
	now            func() time.Time
	author         string
	changeCapacity int
	perfCapacity   int
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore makes the registry write through to a durable store.
func WithStore(s Store) Option {
	return func(r *Registry) { r.store = s }
}

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for change dates.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithAuthor sets the author recorded on generated changes.
func WithAuthor(author string) Option {
	return func(r *Registry) {
		if author != "" {
			r.author = author
		}
	}
}

// WithChangeLogCapacity bounds the in-memory system-wide change log.
func WithChangeLogCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.changeCapacity = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		components:     make(map[string]*ComponentMetadata),
		byCategory:     make(map[Category]map[string]struct{}),
		cache:          make(map[string][]*ComponentMetadata),
		pathLocks:      make(map[string]*sync.Mutex),
		listeners:      make(map[ListenerID]ChangeListener),
		logger:         zap.NewNop(),
		now:            time.Now,
		author:         defaultAuthor,
		changeCapacity: defaultChangeLogCapacity,
		perfCapacity:   defaultPerformanceHistory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load hydrates the registry from its store. Existing records are replaced.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.Query(ctx, StoreQuery{})
	if err != nil {
		return fmt.Errorf("failed to load components: %w", err)
	}

	var changes []ChangeRecord
	if cl, ok := r.store.(ChangeLogStore); ok {
		newest, err := cl.ListChanges(ctx, "", r.changeCapacity)
		if err != nil {
			return fmt.Errorf("failed to load change log: %w", err)
		}
		// Stored newest-first, kept oldest-first in memory.
		for i := len(newest) - 1; i >= 0; i-- {
			changes = append(changes, newest[i])
		}
	}

	r.mu.Lock()
	r.components = make(map[string]*ComponentMetadata, len(records))
	r.byCategory = make(map[Category]map[string]struct{})
	for _, rec := range records {
		m := rec.Clone()
		m.Normalize()
		if m.ContentHash == "" {
			m.ContentHash = ContentHash(m)
		}
		r.components[m.Path] = m
		r.indexLocked(m)
	}
	if changes != nil {
		r.changes = changes
	}
	r.invalidateLocked()
	r.mu.Unlock()

	r.logger.Info("registry loaded", zap.Int("components", len(records)), zap.Int("changes", len(changes)))
	return nil
}

// Upsert inserts or replaces the record at m.Path. Identical content leaves
// the stored record untouched apart from LastUpdated; any other change bumps
// the version and appends exactly one Change.
func (r *Registry) Upsert(ctx context.Context, m ComponentMetadata) (UpsertResult, error) {
	if m.Path == "" {
		return UpsertResult{}, ErrInvalidMetadata
	}

	lock := r.pathLock(m.Path)
	lock.Lock()
	defer lock.Unlock()

	next := m.Clone()
	next.Normalize()
	next.ContentHash = ContentHash(next)

	r.mu.Lock()
	prev := r.components[next.Path]
	now := r.now()
	result := UpsertResult{}

	switch {
	case prev == nil:
		if !ValidVersion(next.Version) {
			next.Version = InitialVersion
		}
		if len(next.ChangeHistory) == 0 {
			next.ChangeHistory = []Change{{
				Version:     next.Version,
				Date:        now,
				Author:      r.author,
				Description: "Initial version",
			}}
		}
		result = UpsertResult{Type: EventAdd, Changed: true, Version: next.Version}

	case prev.ContentHash == next.ContentHash:
		touched := !prev.LastUpdated.Equal(next.LastUpdated) && !next.LastUpdated.IsZero()
		if touched {
			prev.LastUpdated = next.LastUpdated
			r.invalidateLocked()
		}
		snapshot := prev.Clone()
		r.mu.Unlock()
		if touched {
			r.persist(ctx, snapshot)
		}
		return UpsertResult{Version: snapshot.Version}, nil

	default:
		b, breaking, summary := classifyChange(prev, next)
		next.Version = nextVersion(prev.Version, b)
		date := now
		if n := len(prev.ChangeHistory); n > 0 && date.Before(prev.ChangeHistory[n-1].Date) {
			date = prev.ChangeHistory[n-1].Date
		}
		next.ChangeHistory = append(append([]Change(nil), prev.ChangeHistory...), Change{
			Version:     next.Version,
			Date:        date,
			Author:      r.author,
			Description: summary,
			IsBreaking:  breaking,
		})
		if next.PerformanceMetrics == nil && prev.PerformanceMetrics != nil {
			next.PerformanceMetrics = prev.PerformanceMetrics
			next.PerformanceHistory = prev.PerformanceHistory
		}
		r.unindexLocked(prev)
		result = UpsertResult{Type: EventUpdate, Changed: true, Version: next.Version, Breaking: breaking}
	}

	r.components[next.Path] = next
	r.indexLocked(next)

	last := next.ChangeHistory[len(next.ChangeHistory)-1]
	changeType := ChangeTypeAdd
	if result.Type == EventUpdate {
		changeType = ChangeTypeUpdate
	}
	rec := r.appendChangeLocked(ChangeRecord{
		Path:        next.Path,
		Name:        next.Name,
		ChangeType:  changeType,
		Version:     next.Version,
		IsBreaking:  last.IsBreaking,
		Description: last.Description,
		Author:      r.author,
		Timestamp:   now,
	})
	snapshot := next.Clone()
	r.invalidateLocked()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	r.persistChange(ctx, rec)

	r.logger.Debug("component upserted",
		zap.String("path", snapshot.Path),
		zap.String("type", string(result.Type)),
		zap.String("version", snapshot.Version),
	)
	r.emit(ChangeEvent{Type: result.Type, Component: snapshot, Path: snapshot.Path, Timestamp: now})
	return result, nil
}

// Remove deletes the record at path and logs a DELETE change. It reports
// whether a record existed.
func (r *Registry) Remove(ctx context.Context, path string) (bool, error) {
	lock := r.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	prev, ok := r.components[path]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.components, path)
	r.unindexLocked(prev)
	now := r.now()
	rec := r.appendChangeLocked(ChangeRecord{
		Path:        path,
		Name:        prev.Name,
		ChangeType:  ChangeTypeDelete,
		Version:     prev.Version,
		Description: "Component removed",
		Author:      r.author,
		Timestamp:   now,
	})
	removed := prev.Clone()
	r.invalidateLocked()
	r.mu.Unlock()

	var err error
	if r.store != nil {
		if err = r.store.Delete(ctx, path); err != nil {
			r.logger.Warn("failed to delete persisted component", zap.String("path", path), zap.Error(err))
			err = fmt.Errorf("failed to delete %s: %w", path, err)
		}
	}
	r.persistChange(ctx, rec)

	r.emit(ChangeEvent{Type: EventDelete, Component: removed, Path: path, Timestamp: now})
	return true, err
}

// RemoveSource removes every record extracted from file and returns their
// paths.
func (r *Registry) RemoveSource(ctx context.Context, file string) []string {
	paths := r.pathsForSource(file)
	removed := make([]string, 0, len(paths))
	for _, p := range paths {
		ok, err := r.Remove(ctx, p)
		if err != nil {
			r.logger.Warn("remove failed", zap.String("path", p), zap.Error(err))
		}
		if ok {
			removed = append(removed, p)
		}
	}
	return removed
}

// PathsForSource returns the registry keys of all records extracted from file.
func (r *Registry) PathsForSource(file string) []string {
	return r.pathsForSource(file)
}

func (r *Registry) pathsForSource(file string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var paths []string
	for p, m := range r.components {
		if m.SourceFile == file {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// Get returns a copy of the record at path.
func (r *Registry) Get(path string) (*ComponentMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.components[path]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// GetAll returns copies of every record, ordered by path.
func (r *Registry) GetAll() []*ComponentMetadata {
	if cached, ok := r.getCached("all"); ok {
		return cached
	}
	r.mu.RLock()
	out := make([]*ComponentMetadata, 0, len(r.components))
	for _, m := range r.components {
		out = append(out, m)
	}
	return r.finishLocked("all", out)
}

// GetByCategory returns the records in category, ordered by path.
func (r *Registry) GetByCategory(category Category) []*ComponentMetadata {
	key := "category:" + string(category)
	if cached, ok := r.getCached(key); ok {
		return cached
	}
	r.mu.RLock()
	paths := r.byCategory[category]
	out := make([]*ComponentMetadata, 0, len(paths))
	for p := range paths {
		out = append(out, r.components[p])
	}
	return r.finishLocked(key, out)
}

// Search returns records whose name, description or path contains query,
// ignoring case. An empty query matches every record.
func (r *Registry) Search(query string) []*ComponentMetadata {
	q := strings.ToLower(strings.TrimSpace(query))
	key := "search:" + q
	if cached, ok := r.getCached(key); ok {
		return cached
	}
	r.mu.RLock()
	var out []*ComponentMetadata
	for _, m := range r.components {
		if Matches(m, q) {
			out = append(out, m)
		}
	}
	return r.finishLocked(key, out)
}

// Matches reports whether m matches an already lower-cased search query.
func Matches(m *ComponentMetadata, lowerQuery string) bool {
	if lowerQuery == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Name), lowerQuery) ||
		strings.Contains(strings.ToLower(m.Description), lowerQuery) ||
		strings.Contains(strings.ToLower(m.Path), lowerQuery)
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}

// finishLocked sorts, clones and caches a query result. It must be called
// with r.mu read-locked and releases it. The cached slice holds private
// copies so later callers get their own clones.
func (r *Registry) finishLocked(key string, records []*ComponentMetadata) []*ComponentMetadata {
	private := make([]*ComponentMetadata, len(records))
	for i, m := range records {
		private[i] = m.Clone()
	}
	gen := r.gen
	r.mu.RUnlock()

	sort.Slice(private, func(i, j int) bool { return private[i].Path < private[j].Path })
	r.setCached(key, gen, private)
	return cloneAll(private)
}

func (r *Registry) getCached(key string) ([]*ComponentMetadata, bool) {
	r.cacheMutex.RLock()
	defer r.cacheMutex.RUnlock()
	v, ok := r.cache[key]
	if !ok {
		return nil, false
	}
	return cloneAll(v), true
}

// setCached stores v only if no mutation happened since the snapshot at gen
// was taken.
func (r *Registry) setCached(key string, gen uint64, v []*ComponentMetadata) {
	r.cacheMutex.Lock()
	if gen == r.cacheGen {
		r.cache[key] = v
	}
	r.cacheMutex.Unlock()
}

// invalidateLocked must be called with r.mu held for writing.
func (r *Registry) invalidateLocked() {
	r.gen++
	r.cacheMutex.Lock()
	r.cache = make(map[string][]*ComponentMetadata)
	r.cacheGen = r.gen
	r.cacheMutex.Unlock()
}

func (r *Registry) clearCache() {
	r.mu.Lock()
	r.invalidateLocked()
	r.mu.Unlock()
}

func (r *Registry) indexLocked(m *ComponentMetadata) {
	set, ok := r.byCategory[m.Category]
	if !ok {
		set = make(map[string]struct{})
		r.byCategory[m.Category] = set
	}
	set[m.Path] = struct{}{}
}

func (r *Registry) unindexLocked(m *ComponentMetadata) {
	if set, ok := r.byCategory[m.Category]; ok {
		delete(set, m.Path)
	}
}

func (r *Registry) pathLock(path string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.pathLocks[path]
	if !ok {
		l = &sync.Mutex{}
		r.pathLocks[path] = l
	}
	return l
}

// appendChangeLocked must be called with r.mu held.
func (r *Registry) appendChangeLocked(rec ChangeRecord) ChangeRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now()
	}
	r.changes = append(r.changes, rec)
	if over := len(r.changes) - r.changeCapacity; over > 0 {
		r.changes = append([]ChangeRecord(nil), r.changes[over:]...)
	}
	return rec
}

func (r *Registry) persist(ctx context.Context, m *ComponentMetadata) {
	if r.store == nil {
		return
	}
	if err := r.store.Upsert(ctx, m); err != nil {
		r.logger.Warn("failed to persist component", zap.String("path", m.Path), zap.Error(err))
	}
}

func (r *Registry) persistChange(ctx context.Context, rec ChangeRecord) {
	cl, ok := r.store.(ChangeLogStore)
	if !ok {
		return
	}
	if err := cl.AppendChange(ctx, rec); err != nil {
		r.logger.Warn("failed to persist change", zap.String("path", rec.Path), zap.Error(err))
	}
}

func cloneAll(in []*ComponentMetadata) []*ComponentMetadata {
	out := make([]*ComponentMetadata, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
