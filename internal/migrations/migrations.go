// Package migrations applies an ordered list of schema statements to a database.
package migrations

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"aeterna.dev/aeterna/internal/dbutil"
)

// State is a schema, described by the statements which produce it.
// States are immutable; ApplyStmt returns a new State.
type State struct {
	stmts []string
}

// InitialState is the empty schema.
func InitialState() *State {
	return &State{}
}

// ApplyStmt returns the State after q has been applied to s.
func (s *State) ApplyStmt(q string) *State {
	stmts := make([]string, 0, len(s.stmts)+1)
	stmts = append(stmts, s.stmts...)
	stmts = append(stmts, q)
	return &State{stmts: stmts}
}

// Version is the number of statements applied to reach s.
func (s *State) Version() int {
	return len(s.stmts)
}

// Migrate brings db up to target, applying only the statements it has not seen.
func Migrate(ctx context.Context, db *sqlx.DB, target *State) error {
	return dbutil.DoTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)`); err != nil {
			return err
		}
		var current int
		if err := tx.Get(&current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
			return err
		}
		if current > target.Version() {
			return fmt.Errorf("migrations: database is at version %d, which is newer than %d", current, target.Version())
		}
		for i := current; i < target.Version(); i++ {
			if _, err := tx.Exec(target.stmts[i]); err != nil {
				return fmt.Errorf("migrations: applying statement %d: %w", i, err)
			}
		}
		if current == target.Version() {
			return nil
		}
		if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, target.Version()); err != nil {
			return err
		}
		logctx.Info(ctx, "migrated database", zap.Int("from", current), zap.Int("to", target.Version()))
		return nil
	})
}
