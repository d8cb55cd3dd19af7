// Package storage is the entity store: durable SQLite tables for the ledger
// entities and parameter-bound filtered queries over them.
//
// Every read defaults to valid rows only; soft delete is a store concern,
// not a call-site one. Mutations that span rows run through InTx so they
// commit as a single atomic unit.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"homeledger/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every query can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles the per-entity query methods over a DBTX.
type Queries struct {
	db DBTX
}

// New binds the query set to db.
func New(db DBTX) *Queries { return &Queries{db: db} }

// Store owns the database handle and the migration lifecycle.
type Store struct {
	db *sql.DB
	q  *Queries
}

// Open opens (or creates) the SQLite database at dbPath and brings the
// schema up to date.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Single-writer model; one connection also keeps SQLite from returning
	// SQLITE_BUSY under concurrent readers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, q: New(db)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Queries returns the auto-committing query set.
func (s *Store) Queries() *Queries { return s.q }

// InTx runs fn inside a database transaction. Any error rolls the whole
// unit back; the mutation is never observable partially applied.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func checkID(kind string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: bad %s id %d", core.ErrValidation, kind, id)
	}
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
