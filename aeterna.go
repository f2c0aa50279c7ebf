// Package aeterna holds the definitions shared by the soul toolchain,
// the virtual machine and the migration protocol.
package aeterna

import (
	"lukechampine.com/blake3"

	"aeterna.dev/aeterna/internal/cadata"
)

const (
	// MemorySize is the number of memory cells a VM gets when none is configured.
	MemorySize = 1024
	// MaxSteps is the default step budget for a single run.
	MaxSteps = 1 << 20
	// MaxDepth is the default limit on MANIFOLD nesting.
	MaxDepth = 64
	// MaxStateSize bounds the size of an encoded state snapshot.
	MaxStateSize = 1 << 22
)

type (
	// CID is a Content ID
	CID = cadata.ID

	Store   = cadata.Store
	Getter  = cadata.Getter
	Poster  = cadata.Poster
	Exister = cadata.Exister
)

// Hash calculates the hash of x.
// If key == nil, then the hash is unkeyed.
// If key != nil, then the hash will be keyed with it.
func Hash(key *[32]byte, x []byte) (ret CID) {
	var k []byte
	if key != nil {
		k = key[:]
	}
	h := blake3.New(32, k)
	h.Write(x)
	h.Sum(ret[:0])
	return ret
}
