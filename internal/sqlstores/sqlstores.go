// Package sqlstores implements content addressed stores on top of SQLite.
package sqlstores

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/jmoiron/sqlx"

	"aeterna.dev/aeterna/internal/cadata"
	"aeterna.dev/aeterna/internal/migrations"
)

// Migration creates the blobs table.
func Migration(x *migrations.State) *migrations.State {
	return x.
		ApplyStmt(`CREATE TABLE blobs (
		id BLOB NOT NULL,
		data BLOB NOT NULL,

		PRIMARY KEY(id)
	) WITHOUT ROWID, STRICT;`)
}

var _ cadata.Store = &TxStore{}

// TxStore is a cadata.Store which reads and writes within a transaction.
type TxStore struct {
	tx      *sqlx.Tx
	hf      cadata.HashFunc
	maxSize int
}

func NewTxStore(tx *sqlx.Tx, hf cadata.HashFunc, maxSize int) *TxStore {
	return &TxStore{
		tx:      tx,
		hf:      hf,
		maxSize: maxSize,
	}
}

func (s *TxStore) Post(ctx context.Context, data []byte) (cadata.ID, error) {
	if len(data) > s.MaxSize() {
		return cadata.ID{}, cadata.ErrTooLarge
	}
	id := s.hf(data)
	if _, err := s.tx.ExecContext(ctx, `INSERT INTO blobs (id, data)
		VALUES (?, ?) ON CONFLICT DO NOTHING`, id[:], data); err != nil {
		return cadata.ID{}, err
	}
	return id, nil
}

func (s *TxStore) Get(ctx context.Context, id *cadata.ID, buf []byte) (int, error) {
	var data []byte
	if err := s.tx.GetContext(ctx, &data, `SELECT data FROM blobs WHERE id = ?`, id[:]); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = cadata.ErrNotFound{Key: id}
		}
		return 0, err
	}
	if len(data) > len(buf) {
		return 0, io.ErrShortBuffer
	}
	if err := cadata.Check(s.hf, id, data); err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

func (s *TxStore) Exists(ctx context.Context, id *cadata.ID) (bool, error) {
	var exists bool
	if err := s.tx.GetContext(ctx, &exists, `SELECT EXISTS(
		SELECT 1 FROM blobs WHERE id = ?
	)`, id[:]); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *TxStore) Delete(ctx context.Context, id *cadata.ID) error {
	_, err := s.tx.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id[:])
	return err
}

func (s *TxStore) MaxSize() int {
	return s.maxSize
}

// CountBlobs counts the blobs in the table.
func CountBlobs(tx *sqlx.Tx) (int64, error) {
	var ret int64
	err := tx.Get(&ret, `SELECT count(*) FROM blobs`)
	return ret, err
}
