// Package checkpoint stores VM snapshots, for SAVE_STATE and LOAD_STATE.
//
// Snapshots are content addressed: the ID of a snapshot is the hash of its encoding.
// Each save also appends an Entry under a label, so the latest state for a label can be found.
package checkpoint

import (
	"context"
	"fmt"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.brendoncarroll.net/tai64"
	"go.uber.org/zap"

	"aeterna.dev/aeterna"
	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/internal/cadata"
)

// Entry records one save.
type Entry struct {
	Seq   uint64    `db:"seq"`
	Label string    `db:"label"`
	ID    cadata.ID `db:"blob_id"`
	PC    uint64    `db:"pc"`
	// Seconds and Nanos are a TAI64N timestamp.
	Seconds uint64 `db:"tai64"`
	Nanos   uint32 `db:"nanos"`
}

type Store interface {
	// Save stores st and appends an Entry for it under label.
	Save(ctx context.Context, label string, st avm.State) (Entry, error)
	// Load returns the state with the given ID.
	Load(ctx context.Context, id cadata.ID) (*avm.State, error)
	// Latest returns the most recently saved state under label, or nil if there is none.
	Latest(ctx context.Context, label string) (*avm.State, error)
	// List returns the entries for label, oldest first.
	// The empty label lists every entry.
	List(ctx context.Context, label string) ([]Entry, error)
}

// SaveHook returns a function suitable for avm.Hooks.SaveState
func SaveHook(s Store, label string) func(context.Context, avm.State) error {
	return func(ctx context.Context, st avm.State) error {
		ent, err := s.Save(ctx, label, st)
		if err != nil {
			return err
		}
		logctx.Info(ctx, "checkpoint saved", zap.String("label", label), zap.Uint64("seq", ent.Seq), zap.Stringer("id", ent.ID))
		return nil
	}
}

// LoadHook returns a function suitable for avm.Hooks.LoadState
func LoadHook(s Store, label string) func(context.Context) (*avm.State, error) {
	return func(ctx context.Context) (*avm.State, error) {
		return s.Latest(ctx, label)
	}
}

func hash(x []byte) cadata.ID {
	return aeterna.Hash(nil, x)
}

func newEntry(label string, id cadata.ID, st avm.State) Entry {
	ts := tai64.Now()
	return Entry{
		Label:   label,
		ID:      id,
		PC:      st.PC,
		Seconds: uint64(ts.Seconds),
		Nanos:   uint32(ts.Nanoseconds),
	}
}

func decode(id cadata.ID, data []byte) (*avm.State, error) {
	st, err := avm.UnmarshalState(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %v: %w", id, err)
	}
	return st, nil
}
