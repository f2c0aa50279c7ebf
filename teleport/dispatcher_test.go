package teleport

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/internal/testutil"
)

func TestDispatcher(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	keys := NewDerivedKeys("secret")

	var mu sync.Mutex
	var got []*avm.State
	sb := NewSwitchboard()
	sb.Register("node-b", (&Receiver{
		Host: "node-b",
		Keys: keys,
		Resume: func(ctx context.Context, st *avm.State) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, st)
			return nil
		},
	}).Handle)

	var results []Result
	d := NewDispatcher(&Teleporter{Keys: keys, Transport: sb}, DispatcherConfig{
		QueueSize: 2,
		OnResult: func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
		},
	})
	st := testState()
	require.NoError(t, d.Enqueue("node-b", st))
	require.NoError(t, d.Enqueue("nowhere", st))
	// nothing is running yet, so the queue is full
	require.ErrorIs(t, d.Enqueue("node-b", st), ErrBusy)
	require.Equal(t, 2, d.Len())

	d.Close()
	require.ErrorIs(t, d.Enqueue("node-b", st), ErrClosed)
	require.NoError(t, d.Run(ctx))

	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.True(t, IsHostNotFound(results[1].Err))
	require.Len(t, got, 1)
	require.Equal(t, st, *got[0])
}

func TestDispatcherHook(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	ob := newTestOutbox(t)
	require.NoError(t, ob.AddHost(ctx, "node-b"))
	d := NewDispatcher(&Teleporter{Keys: NewDerivedKeys("secret"), Transport: ob}, DispatcherConfig{})

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	prog := []avm.I{avm.Load{X: 5}, avm.RequestHost{}, avm.Print{}, avm.Halt{}}
	vm := avm.New(prog, 8, avm.Hooks{RequestHost: d.Hook("node-b")})
	vm.Run(ctx, 100)
	require.True(t, vm.Halted())
	d.Close()
	require.NoError(t, <-done)

	ps, err := ob.List(ctx, "node-b")
	require.NoError(t, err)
	require.Len(t, ps, 1)
}

func TestDispatcherCancel(t *testing.T) {
	t.Parallel()
	ctx, cf := context.WithCancel(testutil.Context(t))
	d := NewDispatcher(&Teleporter{Keys: EphemeralKeys{}, Transport: NewSwitchboard()}, DispatcherConfig{Workers: 3})
	cf()
	require.ErrorIs(t, d.Run(ctx), context.Canceled)
}
