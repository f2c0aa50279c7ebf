package aetcmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/checkpoint"
	"aeterna.dev/aeterna/teleport"
)

var labelParam = star.Param[optional[string]]{
	Name:    "label",
	Default: star.Ptr(""),
	Parse:   parseOptional(star.ParseString),
}

var runFlags = []star.IParam{configParam, dbParam, memParam, maxStepsParam, targetParam, labelParam, strictParam, verboseParam}

var runCmd = star.Command{
	Metadata: star.Metadata{
		Short: "compile and run a soul program",
	},
	Flags: runFlags,
	Pos:   []star.IParam{fileParam},
	F: func(c star.Context) error {
		ctx := newContext(c)
		src, err := readSource(c)
		if err != nil {
			return err
		}
		prog, err := build(ctx, src, strictParam.Load(c))
		if err != nil {
			return err
		}
		return runWith(ctx, c, prog)
	},
}

var execCmd = star.Command{
	Metadata: star.Metadata{
		Short: "run an assembly program",
	},
	Flags: runFlags,
	Pos:   []star.IParam{fileParam},
	F: func(c star.Context) error {
		ctx := newContext(c)
		src, err := readSource(c)
		if err != nil {
			return err
		}
		prog, err := avm.ParseAsm(string(src))
		if err != nil {
			return err
		}
		return runWith(ctx, c, prog)
	},
}

func runWith(ctx context.Context, c star.Context, prog []avm.I) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	var db *sqlx.DB
	if cfg.Store.DB != "" {
		if db, err = OpenDB(ctx, cfg.Store.DB); err != nil {
			return err
		}
		defer db.Close()
	}
	label := labelParam.Load(c).X
	if label == "" {
		label = defaultLabel(fileParam.Load(c))
	}
	return Execute(ctx, Machine{
		Config: cfg,
		DB:     db,
		Label:  label,
		Out:    c.StdOut,
	}, prog)
}

// defaultLabel names checkpoints after the program's file.
func defaultLabel(p string) string {
	if p == "-" || p == "" {
		return "stdin"
	}
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Machine is everything a program needs to run, besides the program.
type Machine struct {
	Config Config
	// DB holds checkpoints and the outbox.  If nil, checkpoints are kept in memory and migration is unavailable.
	DB *sqlx.DB
	// Label names the checkpoints saved by the program.
	Label string
	// Out receives the console output.
	Out io.Writer
	// Transport overrides the outbox.
	Transport teleport.Transport
}

// Execute runs prog to completion.
// Migrations requested by the program are made in the background, and are finished before Execute returns.
func Execute(ctx context.Context, m Machine, prog []avm.I) error {
	cfg := m.Config
	var cps checkpoint.Store
	if m.DB != nil {
		cps = checkpoint.NewSQL(m.DB)
	} else {
		cps = checkpoint.NewMem()
	}
	hooks := avm.Hooks{
		Console:   m.Out,
		SaveState: checkpoint.SaveHook(cps, m.Label),
		LoadState: checkpoint.LoadHook(cps, m.Label),
	}

	var d *teleport.Dispatcher
	if host := cfg.Teleport.TargetHost; host != "" {
		tp, err := newTeleporter(cfg, m)
		if err != nil {
			return err
		}
		d = teleport.NewDispatcher(tp, teleport.DispatcherConfig{QueueSize: cfg.Teleport.QueueSize})
		hooks.RequestHost = d.Hook(host)
	}

	eg, ctx := errgroup.WithContext(ctx)
	if d != nil {
		eg.Go(func() error { return d.Run(ctx) })
	}
	eg.Go(func() error {
		if d != nil {
			defer d.Close()
		}
		vm := avm.New(prog, cfg.VM.MemorySize, hooks)
		steps := vm.Run(ctx, cfg.VM.MaxSteps)
		logctx.Info(ctx, "vm stopped", zap.Stringer("status", vm.Status()), zap.Uint64("steps", steps), zap.Uint64("pc", vm.PC()))
		if err := ctx.Err(); err != nil {
			return err
		}
		if !vm.Halted() {
			return fmt.Errorf("program did not halt within %d steps", cfg.VM.MaxSteps)
		}
		return nil
	})
	return eg.Wait()
}

func newTeleporter(cfg Config, m Machine) (*teleport.Teleporter, error) {
	var keys teleport.KeySource = teleport.EphemeralKeys{}
	if cfg.Teleport.Secret != "" {
		keys = teleport.NewDerivedKeys(cfg.Teleport.Secret)
	}
	tr := m.Transport
	if tr == nil {
		if m.DB == nil {
			return nil, fmt.Errorf("migrating to %q requires a database for the outbox", cfg.Teleport.TargetHost)
		}
		tr = teleport.NewOutbox(m.DB)
	}
	return &teleport.Teleporter{Keys: keys, Transport: tr}, nil
}
