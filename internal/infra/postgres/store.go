// Package postgres implements the catalog directly against the Postgres
// database behind the hosted backend.
package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osa030/melodify/internal/app/catalog"
)

// DB defines the interface for database operations.
// It is implemented by *pgxpool.Pool and can be mocked for testing.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a Postgres-backed catalog.
type Store struct {
	db DB
}

var _ catalog.Store = (*Store)(nil)

// New creates a store on db.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a connection pool and checks it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	return pool, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// notFound maps pgx.ErrNoRows to catalog.ErrNotFound.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Mark(errors.Wrapf(err, format, args...), catalog.ErrNotFound)
	}
	return errors.Wrapf(err, format, args...)
}

func affectedOne(tag pgconn.CommandTag, what, id string) error {
	if tag.RowsAffected() == 0 {
		return errors.Mark(errors.Newf("%s %s not found", what, id), catalog.ErrNotFound)
	}
	return nil
}
