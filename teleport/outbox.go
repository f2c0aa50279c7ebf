package teleport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/tai64"

	"aeterna.dev/aeterna/internal/dbutil"
	"aeterna.dev/aeterna/internal/migrations"
)

// OutboxMigration adds the tables used by Outbox.
func OutboxMigration(x *migrations.State) *migrations.State {
	return x.
		ApplyStmt(`CREATE TABLE hosts (
		id TEXT NOT NULL,
		tai64 INTEGER NOT NULL,
		PRIMARY KEY(id)
	) WITHOUT ROWID, STRICT;`).
		ApplyStmt(`CREATE TABLE parcels (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
		payload BLOB NOT NULL,
		tai64 INTEGER NOT NULL,
		nanos INTEGER NOT NULL,
		acked INTEGER NOT NULL DEFAULT 0
	) STRICT;`).
		ApplyStmt(`CREATE INDEX parcels_pending ON parcels (host, acked, seq);`)
}

// Parcel is a payload waiting in the Outbox.
type Parcel struct {
	Seq     uint64 `db:"seq"`
	Host    string `db:"host"`
	Size    int    `db:"size"`
	Seconds uint64 `db:"tai64"`
	Nanos   uint32 `db:"nanos"`
	Acked   bool   `db:"acked"`

	// Payload is only set by Get.
	Payload []byte `db:"payload"`
}

var _ Transport = &Outbox{}

// Outbox is a Transport which queues payloads in a SQLite database,
// for another process to forward to their hosts.
// Only hosts added with AddHost can receive parcels.
type Outbox struct {
	db *sqlx.DB
}

func NewOutbox(db *sqlx.DB) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) AddHost(ctx context.Context, host string) error {
	if host == "" {
		return fmt.Errorf("teleport: empty host id")
	}
	ts := tai64.Now()
	_, err := o.db.ExecContext(ctx, `INSERT INTO hosts (id, tai64) VALUES (?, ?)
		ON CONFLICT DO NOTHING`, host, int64(ts.Seconds))
	return err
}

// RemoveHost removes host and any parcels addressed to it.
func (o *Outbox) RemoveHost(ctx context.Context, host string) error {
	return dbutil.DoTx(ctx, o.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM parcels WHERE host = ?`, host); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM hosts WHERE id = ?`, host)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrHostNotFound{Host: host}
		}
		return nil
	})
}

func (o *Outbox) Hosts(ctx context.Context) ([]string, error) {
	ret := []string{}
	if err := o.db.SelectContext(ctx, &ret, `SELECT id FROM hosts ORDER BY id`); err != nil {
		return nil, err
	}
	return ret, nil
}

func (o *Outbox) Deliver(ctx context.Context, host string, payload []byte) error {
	return dbutil.DoTx(ctx, o.db, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM hosts WHERE id = ?)`, host); err != nil {
			return err
		}
		if !exists {
			return ErrHostNotFound{Host: host}
		}
		ts := tai64.Now()
		_, err := tx.ExecContext(ctx, `INSERT INTO parcels (host, payload, tai64, nanos)
			VALUES (?, ?, ?, ?)`, host, payload, int64(ts.Seconds), uint32(ts.Nanoseconds))
		return err
	})
}

// List returns the parcels which have not been acknowledged, oldest first.
// If host is empty, parcels for every host are listed.
func (o *Outbox) List(ctx context.Context, host string) ([]Parcel, error) {
	q := `SELECT seq, host, length(payload) AS size, tai64, nanos, acked FROM parcels WHERE acked = 0`
	args := []any{}
	if host != "" {
		q += ` AND host = ?`
		args = append(args, host)
	}
	q += ` ORDER BY seq`
	ret := []Parcel{}
	if err := o.db.SelectContext(ctx, &ret, q, args...); err != nil {
		return nil, err
	}
	return ret, nil
}

// Get returns a parcel, including its payload.
func (o *Outbox) Get(ctx context.Context, seq uint64) (*Parcel, error) {
	var p Parcel
	if err := o.db.GetContext(ctx, &p, `SELECT seq, host, length(payload) AS size, tai64, nanos, acked, payload
		FROM parcels WHERE seq = ?`, int64(seq)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("teleport: no parcel %d", seq)
		}
		return nil, err
	}
	return &p, nil
}

// Ack marks a parcel as forwarded.  It will no longer be listed.
func (o *Outbox) Ack(ctx context.Context, seq uint64) error {
	res, err := o.db.ExecContext(ctx, `UPDATE parcels SET acked = 1 WHERE seq = ?`, int64(seq))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("teleport: no parcel %d", seq)
	}
	return nil
}
