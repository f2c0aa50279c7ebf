package aetcmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/checkpoint"
	"aeterna.dev/aeterna/internal/testutil"
	"aeterna.dev/aeterna/soul"
	"aeterna.dev/aeterna/teleport"
)

const testProgram = `MANIFEST 108 ANCHOR 0 MANIFEST 42 ANCHOR 1 BECOME VOID ECHO`

func TestExecute(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	prog, err := build(ctx, []byte(testProgram), false)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	require.NoError(t, Execute(ctx, Machine{Config: DefaultConfig(), Label: "t", Out: out}, prog))
	require.Equal(t, "VM Output: 150\n", out.String())
}

func TestExecuteNoHalt(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	cfg := DefaultConfig()
	cfg.VM.MaxSteps = 10
	prog := []avm.I{avm.Jump{Addr: 0}}
	err := Execute(ctx, Machine{Config: cfg, Out: &bytes.Buffer{}}, prog)
	require.ErrorContains(t, err, "did not halt")
}

func TestExecuteEndOnLastStep(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	cfg := DefaultConfig()
	cfg.VM.MaxSteps = 4
	prog := []avm.I{avm.Load{X: 1}, avm.Load{X: 2}, avm.Add{}, avm.Print{}}
	out := &bytes.Buffer{}
	require.NoError(t, Execute(ctx, Machine{Config: cfg, Out: out}, prog))
	require.Equal(t, "VM Output: 3\n", out.String())
}

func TestExecuteCheckpoints(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	db, err := OpenDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	prog, err := avm.ParseAsm("LOAD 42\nLOAD 8\nSAVE_STATE\nHALT\n")
	require.NoError(t, err)
	m := Machine{Config: DefaultConfig(), DB: db, Label: "p", Out: &bytes.Buffer{}}
	require.NoError(t, Execute(ctx, m, prog))

	ents, err := checkpoint.NewSQL(db).List(ctx, "p")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	require.Equal(t, uint64(3), ents[0].PC)

	buf := &bytes.Buffer{}
	require.NoError(t, printCheckpoints(buf, ents))
	require.Contains(t, buf.String(), ents[0].ID.String())

	// a second program picks up where the first left off
	prog, err = avm.ParseAsm("LOAD_STATE\nHALT\nHALT\nADD\nPRINT\nHALT\n")
	require.NoError(t, err)
	out := &bytes.Buffer{}
	m.Out = out
	require.NoError(t, Execute(ctx, m, prog))
	require.Equal(t, "VM Output: 50\n", out.String())
}

func TestExecuteTeleport(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	db, err := OpenDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ob := teleport.NewOutbox(db)
	require.NoError(t, ob.AddHost(ctx, "node-b"))

	cfg := DefaultConfig()
	cfg.Teleport.TargetHost = "node-b"
	cfg.Teleport.Secret = "secret"
	prog, err := soul.Compile(ctx, []byte(`MANIFEST 7 BECOME VOID ECHO`))
	require.NoError(t, err)
	prog = append([]avm.I{avm.RequestHost{}}, prog...)
	require.NoError(t, Execute(ctx, Machine{Config: cfg, DB: db, Label: "t", Out: &bytes.Buffer{}}, prog))

	ps, err := ob.List(ctx, "node-b")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	p, err := ob.Get(ctx, ps[0].Seq)
	require.NoError(t, err)
	key, err := teleport.NewDerivedKeys("secret").Key(ctx, "node-b")
	require.NoError(t, err)
	st, err := teleport.Open(key, "node-b", p.Payload)
	require.NoError(t, err)
	require.Equal(t, uint64(1), st.PC)

	buf := &bytes.Buffer{}
	require.NoError(t, printState(buf, st))
	require.Contains(t, buf.String(), "PC: 1\n")

	// without a database there is nowhere to put the parcel
	err = Execute(ctx, Machine{Config: cfg, Out: &bytes.Buffer{}}, prog)
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	nodes, err := soul.Parse([]byte(`MANIFEST 1 MANIFOLD a { MANIFEST 2 ANCHOR 0 } BECOME VOID`))
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	require.NoError(t, summarize(buf, nodes))
	require.Equal(t, "STATEMENTS: 5\nDEPTH: 1\n"+
		"ANCHOR       1\n"+
		"BECOME VOID  1\n"+
		"MANIFEST     2\n"+
		"MANIFOLD     1\n", buf.String())
}

func TestDefaultLabel(t *testing.T) {
	t.Parallel()
	require.Equal(t, "hello", defaultLabel("dir/hello.soul"))
	require.Equal(t, "stdin", defaultLabel("-"))
}
