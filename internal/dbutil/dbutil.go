// Package dbutil opens SQLite databases and runs transactions against them.
package dbutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Reader is satisfied by both *sqlx.DB and *sqlx.Tx
type Reader interface {
	Get(dst any, query string, args ...any) error
	Select(dst any, query string, args ...any) error
}

var (
	_ Reader = &sqlx.DB{}
	_ Reader = &sqlx.Tx{}
)

// Open opens the SQLite database at p.
// The empty path and ":memory:" open a private in-memory database.
func Open(p string) (*sqlx.DB, error) {
	if p == "" {
		p = ":memory:"
	}
	db, err := sqlx.Open(driverName, p)
	if err != nil {
		return nil, err
	}
	// SQLite only allows a single writer, and every connection to ":memory:" is a different database.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbutil: %s: %w", pragma, err)
		}
	}
	return db, nil
}

// DoTx runs fn in a transaction, committing if fn returns nil and rolling back otherwise.
func DoTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	_, err := DoTx1(ctx, db, func(tx *sqlx.Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// DoTx1 is like DoTx, but fn also returns a value.
func DoTx1[T any](ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) (T, error)) (T, error) {
	var zero T
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return zero, err
	}
	ret, err := fn(tx)
	if err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			logctx.Error(ctx, "rollback", zap.Error(err2))
		}
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return ret, nil
}

// NewTestDB opens an in-memory database which is closed when the test completes.
func NewTestDB(t testing.TB) *sqlx.DB {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}
