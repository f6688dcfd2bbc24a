package repository

import (
	"context"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres, *sql.Tx for SQLite). Repositories accept NoTX to run
// on their pool directly.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a storage transaction, passing the handle
// through tx. fn's error rolls back; nil commits.
//
// tm.WithTx(ctx, func(ctx context.Context, tx Tx) error {
//	return channels.Upsert(ctx, tx, b)
// })
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
