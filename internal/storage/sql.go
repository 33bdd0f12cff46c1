package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects placeholder style and DDL types.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "pgx"
	DialectLibPQ    Dialect = "postgres"
)

func (d Dialect) postgres() bool {
	return d == DialectPostgres || d == DialectLibPQ
}

// SQLStore persists records in a SQL database. Each record is stored as a
// JSON document next to the columns used for filtering.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens the database, verifies the connection and creates the
// tables when missing.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage: %s requires a dsn", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// One connection keeps :memory: databases shared and avoids lock errors
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := NewSQLStore(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. Call Migrate before first use.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Migrate creates the components and change_log tables if they do not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	seq, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	if s.dialect.postgres() {
		seq, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS components (
	path TEXT PRIMARY KEY,
	source_file TEXT NOT NULL,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL,
	data TEXT NOT NULL,
	last_updated ` + ts + `
)`,
		`CREATE INDEX IF NOT EXISTS idx_components_category ON components(category)`,
		`CREATE TABLE IF NOT EXISTS change_log (
	seq ` + seq + `,
	id TEXT NOT NULL UNIQUE,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	change_type TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	is_breaking BOOLEAN NOT NULL DEFAULT FALSE,
	description TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	ts ` + ts + ` NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_change_log_path ON change_log(path)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize storage schema: %w", convertError(err))
		}
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, path string) (*metadata.ComponentMetadata, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data FROM components WHERE path = ?`), path).Scan(&data)
	if err != nil {
		return nil, convertError(err)
	}
	return decode(data)
}

func (s *SQLStore) Upsert(ctx context.Context, m *metadata.ComponentMetadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.Path, err)
	}
	query := s.rebind(`INSERT INTO components (path, source_file, name, category, description, version, data, last_updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (path) DO UPDATE SET
	source_file = excluded.source_file,
	name = excluded.name,
	category = excluded.category,
	description = excluded.description,
	version = excluded.version,
	data = excluded.data,
	last_updated = excluded.last_updated`)
	_, err = s.db.ExecContext(ctx, query,
		m.Path, m.SourceFile, m.Name, string(m.Category), m.Description, m.Version, string(data), m.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", m.Path, convertError(err))
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM components WHERE path = ?`), path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, convertError(err))
	}
	return nil
}

func (s *SQLStore) Query(ctx context.Context, q metadata.StoreQuery) ([]*metadata.ComponentMetadata, error) {
	var (
		where []string
		args  []any
	)
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(q.Category))
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(path) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := "SELECT data FROM components"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY path"
	if q.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query components: %w", convertError(err))
	}
	defer rows.Close()

	var out []*metadata.ComponentMetadata
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		m, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendChange(ctx context.Context, rec metadata.ChangeRecord) error {
	query := s.rebind(`INSERT INTO change_log (id, path, name, change_type, version, is_breaking, description, author, ts)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Path, rec.Name, string(rec.ChangeType), rec.Version, rec.IsBreaking, rec.Description, rec.Author, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append change: %w", convertError(err))
	}
	return nil
}

func (s *SQLStore) ListChanges(ctx context.Context, path string, limit int) ([]metadata.ChangeRecord, error) {
	if limit <= 0 {
		limit = metadata.DefaultChangeLimit
	}
	query := `SELECT id, path, name, change_type, version, is_breaking, description, author, ts FROM change_log`
	var args []any
	if path != "" {
		query += " WHERE path = ?"
		args = append(args, path)
	}
	query += " ORDER BY seq DESC LIMIT " + strconv.Itoa(limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query change log: %w", convertError(err))
	}
	defer rows.Close()

	var out []metadata.ChangeRecord
	for rows.Next() {
		var rec metadata.ChangeRecord
		var changeType string
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Name, &changeType, &rec.Version, &rec.IsBreaking,
			&rec.Description, &rec.Author, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		rec.ChangeType = metadata.ChangeType(changeType)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.postgres() {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func decode(data string) (*metadata.ComponentMetadata, error) {
	var m metadata.ComponentMetadata
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to decode component: %w", err)
	}
	return &m, nil
}

// convertError maps driver errors onto storage errors
func convertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("storage schema missing: %s: %w", pgErr.Message, err)
		case "23505": // unique_violation
			return fmt.Errorf("duplicate record: %s: %w", pgErr.Detail, err)
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "undefined_table":
			return fmt.Errorf("storage schema missing: %s: %w", pqErr.Message, err)
		case "unique_violation":
			return fmt.Errorf("duplicate record: %s: %w", pqErr.Detail, err)
		}
	}
	return err
}
