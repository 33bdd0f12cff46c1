// Package storage persists registry records and the system-wide change log.
// Implementations: MemoryStore for tests and ephemeral runs, SQLStore for
// SQLite and PostgreSQL (pgx, or lib/pq as "libpq"), RedisStore for
// deployments sharing one registry.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/catalog/runtime/metadata"
)

// ErrNotFound is returned by Get when no record exists at the path
var ErrNotFound = errors.New("storage: record not found")

// Store is the persistence collaborator of metadata.Registry.
type Store interface {
	metadata.Store
	metadata.ChangeLogStore
	Close() error
}

// Supported drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverLibPQ    = "libpq"
	DriverRedis    = "redis"
)

// Open creates a store for driver and prepares its schema.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, "sqlite3":
		return OpenSQL(ctx, DialectSQLite, dsn)
	case DriverPostgres, "postgresql", "pgx":
		return OpenSQL(ctx, DialectPostgres, dsn)
	case DriverLibPQ:
		return OpenSQL(ctx, DialectLibPQ, dsn)
	case DriverRedis:
		return OpenRedis(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// filter applies a StoreQuery to records sorted by path.
func filter(records []*metadata.ComponentMetadata, q metadata.StoreQuery) []*metadata.ComponentMetadata {
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	query := strings.ToLower(q.Search)
	out := make([]*metadata.ComponentMetadata, 0, len(records))
	for _, r := range records {
		if q.Category != "" && r.Category != q.Category {
			continue
		}
		if !metadata.Matches(r, query) {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// newestFirst keeps at most limit records matching path, newest first, from
// a log stored oldest first.
func newestFirst(log []metadata.ChangeRecord, path string, limit int) []metadata.ChangeRecord {
	if limit <= 0 {
		limit = metadata.DefaultChangeLimit
	}
	out := make([]metadata.ChangeRecord, 0, min(limit, len(log)))
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		if path == "" || log[i].Path == path {
			out = append(out, log[i])
		}
	}
	return out
}
