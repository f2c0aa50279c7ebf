// Package aetcmd implements the aeterna command line tool.
package aetcmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"aeterna.dev/aeterna/checkpoint"
	"aeterna.dev/aeterna/internal/dbutil"
	"aeterna.dev/aeterna/internal/migrations"
	"aeterna.dev/aeterna/teleport"
)

func Root() star.Command {
	return root
}

var root = star.NewDir(star.Metadata{
	Short: "soul language toolchain and virtual machine",
}, map[star.Symbol]star.Command{
	"parse":   parseCmd,
	"fmt":     fmtCmd,
	"compile": compileCmd,

	"run":  runCmd,
	"exec": execCmd,

	"checkpoints": checkpointsCmd,
	"outbox":      outboxCmd,
})

// optional is the value of a flag which falls back to the config file when unset.
type optional[T any] struct {
	X  T
	OK bool
}

func parseOptional[T any](parse func(string) (T, error)) func(string) (optional[T], error) {
	return func(x string) (optional[T], error) {
		if x == "" {
			return optional[T]{}, nil
		}
		y, err := parse(x)
		if err != nil {
			return optional[T]{}, err
		}
		return optional[T]{X: y, OK: true}, nil
	}
}

func parseUint64(x string) (uint64, error) {
	return strconv.ParseUint(x, 10, 64)
}

var configParam = star.Param[string]{
	Name:    "config",
	Default: star.Ptr(""),
	Parse:   star.ParseString,
}

var dbParam = star.Param[optional[string]]{
	Name:    "db",
	Default: star.Ptr(""),
	Parse:   parseOptional(star.ParseString),
}

var memParam = star.Param[optional[int]]{
	Name:    "mem",
	Default: star.Ptr(""),
	Parse:   parseOptional(strconv.Atoi),
}

var maxStepsParam = star.Param[optional[uint64]]{
	Name:    "max-steps",
	Default: star.Ptr(""),
	Parse:   parseOptional(parseUint64),
}

var targetParam = star.Param[optional[string]]{
	Name:    "target",
	Default: star.Ptr(""),
	Parse:   parseOptional(star.ParseString),
}

var verboseParam = star.Param[bool]{
	Name:    "v",
	Default: star.Ptr("false"),
	Parse:   strconv.ParseBool,
}

var strictParam = star.Param[bool]{
	Name:    "strict",
	Default: star.Ptr("false"),
	Parse:   strconv.ParseBool,
}

var fileParam = star.Param[string]{
	Name:  "file",
	Parse: star.ParseString,
}

// loadConfig reads the config file and applies any flags which override it.
func loadConfig(c star.Context) (Config, error) {
	cfg, err := LoadConfig(configParam.Load(c))
	if err != nil {
		return Config{}, err
	}
	if x := dbParam.Load(c); x.OK {
		cfg.Store.DB = x.X
	}
	if x := memParam.Load(c); x.OK {
		cfg.VM.MemorySize = x.X
	}
	if x := maxStepsParam.Load(c); x.OK {
		cfg.VM.MaxSteps = x.X
	}
	if x := targetParam.Load(c); x.OK {
		cfg.Teleport.TargetHost = x.X
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// newContext installs a logger into the command's context.
// Logs go to stderr, so they never mix with program output.
func newContext(c star.Context) context.Context {
	lvl := zapcore.WarnLevel
	if verboseParam.Load(c) {
		lvl = zapcore.DebugLevel
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	l, err := zcfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return logctx.NewContext(c.Context, l)
}

// Schema is the database schema used by the command line tool.
func Schema() *migrations.State {
	x := migrations.InitialState()
	x = checkpoint.Migration(x)
	x = teleport.OutboxMigration(x)
	return x
}

// OpenDB opens the database at p and migrates it to Schema.
func OpenDB(ctx context.Context, p string) (*sqlx.DB, error) {
	db, err := dbutil.Open(p)
	if err != nil {
		return nil, err
	}
	if err := migrations.Migrate(ctx, db, Schema()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openConfiguredDB(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if cfg.Store.DB == "" {
		return nil, fmt.Errorf("no database configured.  set [store] db or pass -db")
	}
	return OpenDB(ctx, cfg.Store.DB)
}

// readSource reads the file named by the file param, or stdin if it is "-".
func readSource(c star.Context) ([]byte, error) {
	p := fileParam.Load(c)
	if p == "-" {
		return io.ReadAll(c.StdIn)
	}
	return os.ReadFile(p)
}
