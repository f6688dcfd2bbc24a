// Package sqlite is the single-file channel directory backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"channelcast/internal/domain"
	"channelcast/internal/domain/ports/repository"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type DB struct {
	sql *sql.DB
}

// Open opens (creating if needed) the database at dbPath and applies the schema.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)
	}
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps a :memory: database alive on a single connection
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := &DB{sql: sqldb}
	if err := db.migrate(ctx); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS channels (
			owner_id   INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			title      TEXT    NOT NULL,
			username   TEXT    NOT NULL DEFAULT '',
			added_at   INTEGER NOT NULL,
			PRIMARY KEY (owner_id, channel_id)
		);`,
		`CREATE INDEX IF NOT EXISTS channels_channel_id_idx ON channels (channel_id);`,
	}
	for _, s := range stmts {
		if _, err := d.sql.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var _ repository.TransactionManager = (*DB)(nil)

// WithTx runs fn inside a *sql.Tx.
func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w: %v", domain.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) executor(tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case *sql.Tx:
		return v, nil
	case nil:
		return d.sql, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}
