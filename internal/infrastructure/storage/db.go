package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"PerspectiveEngine/internal/config"
	"PerspectiveEngine/internal/domain"
	"PerspectiveEngine/internal/ports"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLStore reads articles and sources and keeps the perspective cache in a SQL database.
type SQLStore struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
}

var (
	_ ports.ArticleStore     = (*SQLStore)(nil)
	_ ports.SourceRegistry   = (*SQLStore)(nil)
	_ ports.PerspectiveCache = (*SQLStore)(nil)
)

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case DriverPostgres:
		connector, cerr := pq.NewConnector(cfg.DSN)
		if cerr != nil {
			return nil, fmt.Errorf("postgres connector: %w", cerr)
		}
		db = sql.OpenDB(connector)
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
	case DriverSQLite:
		db, err = sql.Open(DriverSQLite, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.NewStoreError("ping", err)
	}

	return New(db, cfg.Driver)
}

// New wraps an existing connection pool. driver selects the placeholder format.
func New(db *sql.DB, driver string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: nil db")
	}

	sb := sq.StatementBuilder
	switch driver {
	case DriverPostgres:
		sb = sb.PlaceholderFormat(sq.Dollar)
	case DriverSQLite:
		sb = sb.PlaceholderFormat(sq.Question)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return &SQLStore{db: db, driver: driver, sb: sb}, nil
}

// DB exposes the underlying pool.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// query runs a built SELECT and hands every row to scan.
func (s *SQLStore) query(ctx context.Context, op string, b sq.Sqlizer, scan func(*sql.Rows) error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("%s: build query: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.NewStoreError(op, err)
	}

	for rows.Next() {
		if err := scan(rows); err != nil {
			_ = rows.Close()
			return domain.NewStoreError(op, fmt.Errorf("scan: %w", err))
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return domain.NewStoreError(op, fmt.Errorf("rows iteration: %w", rowsErr))
	}

	if closeErr := rows.Close(); closeErr != nil {
		return domain.NewStoreError(op, fmt.Errorf("close rows: %w", closeErr))
	}

	return nil
}

// dbTime normalises timestamps so SQLite text comparison orders them correctly.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// windowBounds widens [start, end] to whole seconds so stored sub-second
// timestamps at either edge still match; callers re-check the exact bounds.
func windowBounds(start, end time.Time) (time.Time, time.Time) {
	lo := dbTime(start)
	hi := dbTime(end)
	if hi.Before(end) {
		hi = hi.Add(time.Second)
	}
	return lo, hi
}

func nullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}
