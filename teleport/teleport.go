// Package teleport moves VM state snapshots between hosts.
//
// A snapshot is encoded canonically, sealed with XChaCha20-Poly1305 under a key for the target host,
// and handed to a Transport.
package teleport

import (
	"context"
	"errors"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"aeterna.dev/aeterna/avm"
)

// Transport delivers sealed payloads to hosts.
type Transport interface {
	// Deliver returns ErrHostNotFound if host is not known to the transport.
	Deliver(ctx context.Context, host string, payload []byte) error
}

type Teleporter struct {
	Keys      KeySource
	Transport Transport
}

// Teleport seals st for host and delivers it.
func (tp *Teleporter) Teleport(ctx context.Context, st avm.State, host string) error {
	data, err := st.Marshal()
	if err != nil {
		return ErrSerialization{Cause: err}
	}
	key, err := tp.Keys.Key(ctx, host)
	if err != nil {
		if IsHostNotFound(err) {
			return err
		}
		return ErrEncryption{Cause: err}
	}
	payload := Seal(key, host, data)
	logctx.Info(ctx, "teleporting state",
		zap.String("host", host),
		zap.Int("payload_size", len(payload)),
		zap.Stringer("checksum", st.ID()),
	)
	if err := tp.Transport.Deliver(ctx, host, payload); err != nil {
		var hnf ErrHostNotFound
		if errors.As(err, &hnf) {
			return hnf
		}
		return ErrNetwork{Host: host, Cause: err}
	}
	return nil
}

// Hook returns a function suitable for avm.Hooks.RequestHost, which teleports synchronously.
func (tp *Teleporter) Hook(host string) func(context.Context, avm.State) error {
	return func(ctx context.Context, st avm.State) error {
		return tp.Teleport(ctx, st, host)
	}
}

// Open decrypts and decodes a payload produced by Teleport.
func Open(key *[32]byte, host string, payload []byte) (*avm.State, error) {
	data, err := Unseal(key, host, payload)
	if err != nil {
		return nil, ErrEncryption{Cause: err}
	}
	st, err := avm.UnmarshalState(data)
	if err != nil {
		return nil, ErrSerialization{Cause: err}
	}
	return st, nil
}

// Receiver opens payloads addressed to Host and passes the states to Resume.
type Receiver struct {
	Host   string
	Keys   KeySource
	Resume func(ctx context.Context, st *avm.State) error
}

// Handle can be registered on a Switchboard.
func (r *Receiver) Handle(ctx context.Context, payload []byte) error {
	key, err := r.Keys.Key(ctx, r.Host)
	if err != nil {
		return err
	}
	st, err := Open(key, r.Host, payload)
	if err != nil {
		return err
	}
	logctx.Info(ctx, "received state", zap.String("host", r.Host), zap.Uint64("pc", st.PC))
	return r.Resume(ctx, st)
}
