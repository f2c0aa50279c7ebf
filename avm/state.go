package avm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"aeterna.dev/aeterna"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

// ErrBadChecksum is returned when a State's checksum does not match its contents.
var ErrBadChecksum = errors.New("avm: state checksum mismatch")

// State is a snapshot of a VM: its memory, its stack, and where it was in the program.
// A State shares no memory with the VM it was taken from.
type State struct {
	Memory   []int64  `cbor:"memory_snapshot"`
	Stack    []int64  `cbor:"stack_snapshot"`
	PC       uint64   `cbor:"program_counter"`
	Checksum [32]byte `cbor:"checksum"`
}

// checksummed is the part of a State covered by the checksum.
type checksummed struct {
	Memory []int64 `cbor:"memory"`
	Stack  []int64 `cbor:"stack"`
	PC     uint64  `cbor:"pc"`
}

// NewState copies memory and stack into a new State and computes its checksum.
func NewState(memory, stack []int64, pc uint64) State {
	st := State{
		Memory: cloneWords(memory),
		Stack:  cloneWords(stack),
		PC:     pc,
	}
	st.Checksum = st.ComputeChecksum()
	return st
}

// ComputeChecksum hashes the canonical encoding of the memory, stack and pc.
func (s State) ComputeChecksum() [32]byte {
	data, err := encMode.Marshal(checksummed{
		Memory: cloneWords(s.Memory),
		Stack:  cloneWords(s.Stack),
		PC:     s.PC,
	})
	if err != nil {
		// only slices of int64 and a uint64
		panic(err)
	}
	return aeterna.Hash(nil, data)
}

// Verify returns ErrBadChecksum if the checksum does not match.
func (s State) Verify() error {
	if s.ComputeChecksum() != s.Checksum {
		return ErrBadChecksum
	}
	return nil
}

// ID returns the checksum as a content ID.
func (s State) ID() aeterna.CID {
	return aeterna.CID(s.Checksum)
}

func (s State) Clone() State {
	return State{
		Memory:   cloneWords(s.Memory),
		Stack:    cloneWords(s.Stack),
		PC:       s.PC,
		Checksum: s.Checksum,
	}
}

// Marshal returns the canonical CBOR encoding of s.
func (s State) Marshal() ([]byte, error) {
	return encMode.Marshal(s)
}

// UnmarshalState decodes a State produced by Marshal and verifies its checksum.
func UnmarshalState(data []byte) (*State, error) {
	if len(data) > aeterna.MaxStateSize {
		return nil, fmt.Errorf("avm: encoded state is too large (%d bytes)", len(data))
	}
	var st State
	if err := cbor.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("avm: decoding state: %w", err)
	}
	st.Memory = cloneWords(st.Memory)
	st.Stack = cloneWords(st.Stack)
	if err := st.Verify(); err != nil {
		return nil, err
	}
	return &st, nil
}

// cloneWords copies x, never returning nil.
func cloneWords(x []int64) []int64 {
	return append(make([]int64, 0, len(x)), x...)
}
