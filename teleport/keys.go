package teleport

import (
	"context"
	"crypto/rand"
	"sync"

	"go.brendoncarroll.net/stdctx/logctx"

	"aeterna.dev/aeterna"
)

// KeySource provides the key used to seal payloads for a host.
type KeySource interface {
	Key(ctx context.Context, host string) (*[32]byte, error)
}

var (
	_ KeySource = &StaticKeys{}
	_ KeySource = &DerivedKeys{}
	_ KeySource = EphemeralKeys{}
)

// StaticKeys holds a key for each host.
// Hosts without a key are not found.
type StaticKeys struct {
	mu   sync.RWMutex
	keys map[string][32]byte
}

func NewStaticKeys(keys map[string][32]byte) *StaticKeys {
	sk := &StaticKeys{keys: make(map[string][32]byte, len(keys))}
	for host, k := range keys {
		sk.keys[host] = k
	}
	return sk
}

func (sk *StaticKeys) Set(host string, key [32]byte) {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	if sk.keys == nil {
		sk.keys = make(map[string][32]byte)
	}
	sk.keys[host] = key
}

func (sk *StaticKeys) Key(ctx context.Context, host string) (*[32]byte, error) {
	sk.mu.RLock()
	defer sk.mu.RUnlock()
	k, ok := sk.keys[host]
	if !ok {
		return nil, ErrHostNotFound{Host: host}
	}
	return &k, nil
}

// DerivedKeys derives a key for every host from a single shared secret.
type DerivedKeys struct {
	Secret [32]byte
}

// NewDerivedKeys hashes a passphrase into the shared secret.
func NewDerivedKeys(passphrase string) *DerivedKeys {
	return &DerivedKeys{Secret: [32]byte(aeterna.Hash(nil, []byte(passphrase)))}
}

func (dk *DerivedKeys) Key(ctx context.Context, host string) (*[32]byte, error) {
	k := [32]byte(aeterna.Hash(&dk.Secret, []byte("aeterna/teleport/"+host)))
	return &k, nil
}

// EphemeralKeys returns a fresh random key on every call.
// Nothing retains the key, so the receiver can only open the payload if the key reaches it some other way.
type EphemeralKeys struct{}

func (EphemeralKeys) Key(ctx context.Context, host string) (*[32]byte, error) {
	k := new([32]byte)
	if _, err := rand.Read(k[:]); err != nil {
		return nil, err
	}
	logctx.Warnf(ctx, "using an ephemeral key for %q; the payload cannot be opened without it", host)
	return k, nil
}
