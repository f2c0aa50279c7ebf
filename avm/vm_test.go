package avm

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"aeterna.dev/aeterna/internal/testutil"
)

func TestVM(t *testing.T) {
	t.Parallel()
	type testCase struct {
		Name  string
		Setup func(t testing.TB, vm *VM)
		Prog  []I
		// MaxSteps defaults to 1000
		MaxSteps uint64

		// End is what is on the stack at the end
		End []int64
		// Mem is the expected prefix of memory at the end, if set
		Mem []int64
	}
	tcs := []testCase{
		{
			Name: "Add",
			Prog: []I{Load{X: 10}, Load{X: 20}, Add{}, Halt{}},
			End:  []int64{30},
		},
		{
			Name: "SubOrder",
			Prog: []I{Load{X: 10}, Load{X: 3}, Sub{}},
			End:  []int64{7},
		},
		{
			Name: "Mul",
			Prog: []I{Load{X: -4}, Load{X: 6}, Mul{}},
			End:  []int64{-24},
		},
		{
			Name: "DivTruncates",
			Prog: []I{Load{X: -7}, Load{X: 2}, Div{}},
			End:  []int64{-3},
		},
		{
			Name: "DivByZero",
			Prog: []I{Load{X: 10}, Load{X: 0}, Div{}, Halt{}},
			End:  []int64{10, 0},
		},
		{
			Name: "DivMinByMinusOne",
			Prog: []I{Load{X: math.MinInt64}, Load{X: -1}, Div{}},
			End:  []int64{math.MinInt64},
		},
		{
			Name: "AddWraps",
			Prog: []I{Load{X: math.MaxInt64}, Load{X: 1}, Add{}},
			End:  []int64{math.MinInt64},
		},
		{
			Name: "AddUnderflow",
			Prog: []I{Load{X: 5}, Add{}},
			End:  []int64{5},
		},
		{
			Name: "SubEmpty",
			Prog: []I{Sub{}},
			End:  []int64{0},
		},
		{
			Name: "DivUnderflowDefaultsDivisor",
			Prog: []I{Div{}},
			End:  []int64{0},
		},
		{
			Name: "Store",
			Prog: []I{Load{X: 42}, Store{Addr: 0}, Halt{}},
			End:  []int64{},
			Mem:  []int64{42},
		},
		{
			Name: "StoreOutOfRange",
			Prog: []I{Load{X: 42}, Store{Addr: 1 << 40}, Load{X: 1}},
			End:  []int64{1},
			Mem:  []int64{0},
		},
		{
			Name: "StoreEmpty",
			Prog: []I{Store{Addr: 3}, Load{X: 1}},
			End:  []int64{1},
		},
		{
			Name: "JumpIfZero",
			Prog: []I{Load{X: 0}, JumpIf{Addr: 3}, Load{X: 1}, Load{X: 2}},
			End:  []int64{1, 2},
		},
		{
			Name: "JumpIfNonZero",
			Prog: []I{Load{X: 9}, JumpIf{Addr: 3}, Load{X: 1}, Load{X: 2}},
			End:  []int64{2},
		},
		{
			Name: "JumpIfEmpty",
			Prog: []I{JumpIf{Addr: 100}, Load{X: 1}},
			End:  []int64{1},
		},
		{
			Name: "JumpPastEnd",
			Prog: []I{Jump{Addr: 100}, Load{X: 1}},
			End:  []int64{},
		},
		{
			Name:     "EndOnLastStep",
			Prog:     []I{Load{X: 1}, Load{X: 2}, Add{}, Print{}},
			MaxSteps: 4,
			End:      []int64{3},
		},
		{
			Name: "NilSkipped",
			Prog: []I{Load{X: 1}, nil, Load{X: 2}},
			End:  []int64{1, 2},
		},
		{
			Name: "HaltStops",
			Prog: []I{Load{X: 1}, Halt{}, Load{X: 2}},
			End:  []int64{1},
		},
		{
			Name: "EntropyReset",
			Setup: func(t testing.TB, vm *VM) {
				vm.mem[0] = 108
				vm.mem[1] = 42
				vm.mem[len(vm.mem)-1] = -50
			},
			Prog: []I{EntropyReset{}},
			End:  []int64{100},
			Mem:  []int64{100, 0},
		},
		{
			Name: "PrintDoesNotPop",
			Prog: []I{Load{X: 3}, Print{}},
			End:  []int64{3},
		},
		{
			Name: "ExtensionsOnlyOutput",
			Prog: []I{
				Load{X: 1},
				ResonateMembrane{Frequency: 432},
				DefineMatter{Syntax: "x"},
				PatchReality{Bug: 0, Fix: "a_to_b"},
				TuneConstant{ID: 1, Value: 6.67e-11},
			},
			End: []int64{1},
		},
	}
	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			ctx := testutil.Context(t)
			vm := New(tc.Prog, 0, Hooks{})
			if tc.Setup != nil {
				tc.Setup(t, vm)
			}
			maxSteps := tc.MaxSteps
			if maxSteps == 0 {
				maxSteps = 1000
			}
			steps := vm.Run(ctx, maxSteps)
			require.LessOrEqual(t, steps, maxSteps)
			require.True(t, vm.Halted())
			require.Equal(t, tc.End, vm.Stack())
			if tc.Mem != nil {
				require.Equal(t, tc.Mem, vm.Memory()[:len(tc.Mem)])
			}
		})
	}
}

func TestAdd(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	xs := []int64{0, 1, -1, 2, -2, 1 << 32, -(1 << 32), math.MaxInt64, math.MaxInt64 - 1, math.MinInt64, math.MinInt64 + 1}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 32; i++ {
		xs = append(xs, int64(rng.Uint64()))
	}
	for _, a := range xs {
		for _, b := range xs {
			vm := New([]I{Load{X: a}, Load{X: b}, Add{}, Halt{}}, 0, Hooks{})
			vm.Run(ctx, 10)
			require.True(t, vm.Halted())
			top, ok := vm.Top()
			require.True(t, ok)
			require.Equal(t, a+b, top, "%d + %d", a, b)
			require.Len(t, vm.Stack(), 1)
		}
	}
}

func TestStepBudget(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	// an infinite loop
	vm := New([]I{Load{X: 1}, JumpIf{Addr: 0}}, 0, Hooks{})
	require.Equal(t, uint64(100), vm.Run(ctx, 100))
	require.Equal(t, Running, vm.Status())
	require.Equal(t, uint64(50), vm.Run(ctx, 50))
	require.Equal(t, uint64(150), vm.Steps())
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	ctx, cf := context.WithCancel(testutil.Context(t))
	cf()
	vm := New([]I{Jump{Addr: 0}}, 0, Hooks{})
	require.Equal(t, uint64(0), vm.Run(ctx, 1000))
	require.False(t, vm.Halted())
}

func TestPrint(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	buf := &bytes.Buffer{}
	vm := New([]I{Print{}, Load{X: -5}, Print{}, InvertLogic{Gate: 7}}, 0, Hooks{Console: buf})
	vm.Run(ctx, 10)
	require.Equal(t, "VM Output: [Empty Stack]\nVM Output: -5\nINVERT_LOGIC 7\n", buf.String())
}

func TestOnExtensionAndStep(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	var exts []I
	var pcs []uint64
	prog := []I{Load{X: 1}, ForkInstance{ID: 3}, RecycleChrono{Delta: 1.5}, Halt{}}
	vm := New(prog, 0, Hooks{
		OnExtension: func(ctx context.Context, ix I) { exts = append(exts, ix) },
		OnStep:      func(pc uint64, ix I) { pcs = append(pcs, pc) },
	})
	vm.Run(ctx, 10)
	require.Equal(t, []I{ForkInstance{ID: 3}, RecycleChrono{Delta: 1.5}}, exts)
	require.Equal(t, []uint64{0, 1, 2, 3}, pcs)
}

func TestEntropyResetSum(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	vm := New([]I{EntropyReset{}}, 64, Hooks{})
	var before int64
	for i := range vm.mem {
		vm.mem[i] = int64(i*i) - 300
		before += vm.mem[i]
	}
	vm.Run(ctx, 10)
	mem := vm.Memory()
	var after int64
	for _, x := range mem {
		after += x
	}
	require.Equal(t, before, after)
	require.Equal(t, before, mem[0])
	for _, x := range mem[1:] {
		require.Zero(t, x)
	}
}

func TestSaveAndLoadState(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	var saved *State
	hooks := Hooks{
		SaveState: func(ctx context.Context, st State) error {
			saved = &st
			return nil
		},
		LoadState: func(ctx context.Context) (*State, error) {
			return saved, nil
		},
	}
	// The first run saves the state with 42 in memory and 7 on the stack.
	vm := New([]I{Load{X: 42}, Store{Addr: 0}, Load{X: 7}, SaveState{}, Halt{}}, 16, hooks)
	vm.Run(ctx, 10)
	require.NotNil(t, saved)
	require.NoError(t, saved.Verify())
	require.Equal(t, uint64(4), saved.PC)

	// A second program loads it, then continues at pc 4, which adds.
	vm2 := New([]I{LoadState{}, Halt{}, Halt{}, Halt{}, Load{X: 1}, Add{}, Halt{}}, 16, hooks)
	vm2.Run(ctx, 10)
	require.Equal(t, []int64{8}, vm2.Stack())
	require.Equal(t, int64(42), vm2.Memory()[0])
}

func TestLoadStateRejects(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	good := NewState(make([]int64, 8), []int64{1}, 0)
	bad := good.Clone()
	bad.Stack[0] = 2
	type testCase struct {
		Name string
		St   *State
	}
	tcs := []testCase{
		{"Nil", nil},
		{"BadChecksum", &bad},
		{"WrongMemorySize", &good},
	}
	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			vm := New([]I{Load{X: 5}, LoadState{}}, 16, Hooks{
				LoadState: func(ctx context.Context) (*State, error) { return tc.St, nil },
			})
			vm.Run(ctx, 10)
			require.Equal(t, []int64{5}, vm.Stack())
			require.True(t, vm.Halted())
		})
	}
}

func TestRequestHost(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	var sent []State
	vm := New([]I{Load{X: 3}, RequestHost{}, Load{X: 4}}, 8, Hooks{
		RequestHost: func(ctx context.Context, st State) error {
			sent = append(sent, st)
			return context.DeadlineExceeded
		},
	})
	vm.Run(ctx, 10)
	// migration failure does not stop the VM
	require.Equal(t, []int64{3, 4}, vm.Stack())
	require.Len(t, sent, 1)
	require.Equal(t, []int64{3}, sent[0].Stack)
	require.Equal(t, uint64(2), sent[0].PC)
}

func TestRestore(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	prog := []I{
		Load{X: 5}, Store{Addr: 1},
		Load{X: 2}, Load{X: 3}, Mul{},
		Load{X: 4}, Add{},
		Store{Addr: 2},
		Load{X: 1},
		Halt{},
	}
	whole := New(prog, 8, Hooks{})
	whole.Run(ctx, 100)

	first := New(prog, 8, Hooks{})
	require.Equal(t, uint64(4), first.Run(ctx, 4))
	st := first.CaptureState()

	data, err := st.Marshal()
	require.NoError(t, err)
	st2, err := UnmarshalState(data)
	require.NoError(t, err)
	require.Equal(t, st, *st2)

	resumed, err := Restore(prog, *st2, Hooks{})
	require.NoError(t, err)
	resumed.Run(ctx, 100)
	require.Equal(t, whole.Stack(), resumed.Stack())
	require.Equal(t, whole.Memory(), resumed.Memory())
	require.Equal(t, whole.PC(), resumed.PC())
	require.True(t, resumed.Halted())

	// restoring twice gives the same machine
	again, err := Restore(prog, st, Hooks{})
	require.NoError(t, err)
	require.Equal(t, st, again.CaptureState())

	st.Memory[0] = 99
	_, err = Restore(prog, st, Hooks{})
	require.ErrorIs(t, err, ErrBadChecksum)
}
