package checkpoint

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"aeterna.dev/aeterna"
	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/internal/cadata"
	"aeterna.dev/aeterna/internal/dbutil"
	"aeterna.dev/aeterna/internal/migrations"
	"aeterna.dev/aeterna/internal/sqlstores"
)

// Migration adds the tables used by SQL.
func Migration(x *migrations.State) *migrations.State {
	x = sqlstores.Migration(x)
	return x.
		ApplyStmt(`CREATE TABLE checkpoints (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL,
		blob_id BLOB NOT NULL,
		pc INTEGER NOT NULL,
		tai64 INTEGER NOT NULL,
		nanos INTEGER NOT NULL,
		FOREIGN KEY(blob_id) REFERENCES blobs(id)
	) STRICT;`).
		ApplyStmt(`CREATE INDEX checkpoints_label ON checkpoints (label, seq);`)
}

var _ Store = &SQL{}

// SQL is a Store in a SQLite database.
// The database must have been migrated with Migration.
type SQL struct {
	db *sqlx.DB
}

func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Save(ctx context.Context, label string, st avm.State) (Entry, error) {
	data, err := st.Marshal()
	if err != nil {
		return Entry{}, err
	}
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (Entry, error) {
		id, err := s.blobs(tx).Post(ctx, data)
		if err != nil {
			return Entry{}, err
		}
		ent := newEntry(label, id, st)
		if err := tx.GetContext(ctx, &ent.Seq, `INSERT INTO checkpoints (label, blob_id, pc, tai64, nanos)
			VALUES (?, ?, ?, ?, ?) RETURNING seq`, ent.Label, ent.ID[:], int64(ent.PC), int64(ent.Seconds), ent.Nanos); err != nil {
			return Entry{}, err
		}
		return ent, nil
	})
}

func (s *SQL) Load(ctx context.Context, id cadata.ID) (*avm.State, error) {
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (*avm.State, error) {
		return s.load(ctx, tx, id)
	})
}

func (s *SQL) Latest(ctx context.Context, label string) (*avm.State, error) {
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (*avm.State, error) {
		var idBytes []byte
		if err := tx.GetContext(ctx, &idBytes, `SELECT blob_id FROM checkpoints
			WHERE label = ? ORDER BY seq DESC LIMIT 1`, label); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}
		return s.load(ctx, tx, cadata.IDFromBytes(idBytes))
	})
}

func (s *SQL) List(ctx context.Context, label string) ([]Entry, error) {
	ret := []Entry{}
	q := `SELECT seq, label, blob_id, pc, tai64, nanos FROM checkpoints`
	args := []any{}
	if label != "" {
		q += ` WHERE label = ?`
		args = append(args, label)
	}
	q += ` ORDER BY seq`
	if err := s.db.SelectContext(ctx, &ret, q, args...); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQL) load(ctx context.Context, tx *sqlx.Tx, id cadata.ID) (*avm.State, error) {
	blobs := s.blobs(tx)
	data, err := cadata.GetBytes(ctx, blobs, &id, blobs.MaxSize())
	if err != nil {
		return nil, err
	}
	return decode(id, data)
}

func (s *SQL) blobs(tx *sqlx.Tx) *sqlstores.TxStore {
	return sqlstores.NewTxStore(tx, hash, aeterna.MaxStateSize)
}
