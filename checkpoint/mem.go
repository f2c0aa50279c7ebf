package checkpoint

import (
	"context"
	"sync"

	"aeterna.dev/aeterna"
	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/internal/cadata"
	"aeterna.dev/aeterna/internal/stores"
)

var _ Store = &Mem{}

// Mem is a Store held in memory.
type Mem struct {
	blobs *stores.Mem

	mu      sync.Mutex
	entries []Entry
}

func NewMem() *Mem {
	return &Mem{
		blobs: stores.NewMem(hash, aeterna.MaxStateSize),
	}
}

func (s *Mem) Save(ctx context.Context, label string, st avm.State) (Entry, error) {
	data, err := st.Marshal()
	if err != nil {
		return Entry{}, err
	}
	id, err := s.blobs.Post(ctx, data)
	if err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ent := newEntry(label, id, st)
	ent.Seq = uint64(len(s.entries)) + 1
	s.entries = append(s.entries, ent)
	return ent, nil
}

func (s *Mem) Load(ctx context.Context, id cadata.ID) (*avm.State, error) {
	data, err := cadata.GetBytes(ctx, s.blobs, &id, s.blobs.MaxSize())
	if err != nil {
		return nil, err
	}
	return decode(id, data)
}

func (s *Mem) Latest(ctx context.Context, label string) (*avm.State, error) {
	s.mu.Lock()
	var found *Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Label == label {
			found = &s.entries[i]
			break
		}
	}
	var id cadata.ID
	if found != nil {
		id = found.ID
	}
	s.mu.Unlock()
	if found == nil {
		return nil, nil
	}
	return s.Load(ctx, id)
}

func (s *Mem) List(ctx context.Context, label string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := []Entry{}
	for _, ent := range s.entries {
		if label == "" || ent.Label == label {
			ret = append(ret, ent)
		}
	}
	return ret, nil
}
