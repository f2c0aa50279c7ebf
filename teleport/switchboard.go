package teleport

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

// Handler receives the payloads delivered to a host.
type Handler = func(ctx context.Context, payload []byte) error

var _ Transport = &Switchboard{}

// Switchboard is an in-process Transport.
type Switchboard struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewSwitchboard() *Switchboard {
	return &Switchboard{handlers: make(map[string]Handler)}
}

// Register replaces any handler already registered for host.
func (sb *Switchboard) Register(host string, h Handler) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.handlers[host] = h
}

func (sb *Switchboard) Unregister(host string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	delete(sb.handlers, host)
}

// Hosts returns the registered hosts in sorted order.
func (sb *Switchboard) Hosts() []string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	hosts := maps.Keys(sb.handlers)
	slices.Sort(hosts)
	return hosts
}

func (sb *Switchboard) Deliver(ctx context.Context, host string, payload []byte) error {
	sb.mu.RLock()
	h, ok := sb.handlers[host]
	sb.mu.RUnlock()
	if !ok {
		return ErrHostNotFound{Host: host}
	}
	return h(ctx, slices.Clone(payload))
}
