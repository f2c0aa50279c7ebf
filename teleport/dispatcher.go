package teleport

import (
	"context"
	"sync"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aeterna.dev/aeterna/avm"
)

// Result is the outcome of one teleport made by a Dispatcher.
type Result struct {
	Host  string
	State avm.State
	Err   error
}

type DispatcherConfig struct {
	// QueueSize is the number of teleports which can wait.  Defaults to 16.
	QueueSize int
	// Workers defaults to 1.
	Workers int
	// OnResult, if set, is called with the outcome of every teleport.
	OnResult func(Result)
}

type job struct {
	host string
	st   avm.State
}

// Dispatcher teleports states in the background, so that the VM requesting a migration does not wait for it.
type Dispatcher struct {
	tp  *Teleporter
	cfg DispatcherConfig

	mu     sync.RWMutex
	closed bool
	queue  chan job
}

func NewDispatcher(tp *Teleporter, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Dispatcher{
		tp:    tp,
		cfg:   cfg,
		queue: make(chan job, cfg.QueueSize),
	}
}

// Enqueue schedules st to be teleported to host.  It never blocks.
// It returns ErrBusy if the queue is full.
func (d *Dispatcher) Enqueue(host string, st avm.State) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- job{host: host, st: st.Clone()}:
		return nil
	default:
		return ErrBusy
	}
}

// Hook returns a function suitable for avm.Hooks.RequestHost
func (d *Dispatcher) Hook(host string) func(context.Context, avm.State) error {
	return func(ctx context.Context, st avm.State) error {
		if err := d.Enqueue(host, st); err != nil {
			return err
		}
		logctx.Debug(ctx, "teleport queued", zap.String("host", host))
		return nil
	}
}

// Run processes the queue until Close is called and the queue is drained, or until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		eg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case j, ok := <-d.queue:
					if !ok {
						return nil
					}
					d.process(ctx, j)
				}
			}
		})
	}
	return eg.Wait()
}

// Close stops accepting new work.  Work already queued is still processed by Run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
}

// Len returns the number of queued teleports.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

func (d *Dispatcher) process(ctx context.Context, j job) {
	err := d.tp.Teleport(ctx, j.st, j.host)
	if err != nil {
		logctx.Error(ctx, "teleport failed", zap.String("host", j.host), zap.Error(err))
	} else {
		logctx.Info(ctx, "teleport complete", zap.String("host", j.host), zap.Uint64("pc", j.st.PC))
	}
	if d.cfg.OnResult != nil {
		d.cfg.OnResult(Result{Host: j.host, State: j.st, Err: err})
	}
}
