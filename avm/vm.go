// package avm contains the aeterna virtual machine: a stack machine with a fixed size memory,
// which can snapshot itself and ask to be moved to another host.
package avm

import (
	"context"
	"fmt"
	"io"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"aeterna.dev/aeterna"
)

type Status uint8

const (
	Running Status = iota
	Halted
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Hooks connect a VM to the world outside of it.
// Any of them may be nil.
type Hooks struct {
	// Console receives a line for each PRINT and each extension instruction.
	Console io.Writer
	// SaveState is called by SAVE_STATE.
	SaveState func(ctx context.Context, st State) error
	// LoadState is called by LOAD_STATE.  It returns nil if there is no state to load.
	LoadState func(ctx context.Context) (*State, error)
	// RequestHost is called by REQUEST_HOST to migrate the VM.
	RequestHost func(ctx context.Context, st State) error
	// OnExtension observes the extension instructions.
	OnExtension func(ctx context.Context, ix I)
	// OnStep is called before each instruction is executed.
	OnStep func(pc uint64, ix I)
}

type VM struct {
	prog   []I
	pc     uint64
	stack  []int64
	mem    []int64
	status Status
	steps  uint64
	hooks  Hooks

	ctx context.Context
}

// New creates a VM which will run prog with memSize cells of memory.
// If memSize <= 0, aeterna.MemorySize is used.
func New(prog []I, memSize int, hooks Hooks) *VM {
	if memSize <= 0 {
		memSize = aeterna.MemorySize
	}
	return &VM{
		prog:  prog,
		mem:   make([]int64, memSize),
		hooks: hooks,
	}
}

// Restore creates a VM which resumes prog from st.
// The memory size is taken from st.
func Restore(prog []I, st State, hooks Hooks) (*VM, error) {
	if err := st.Verify(); err != nil {
		return nil, err
	}
	if len(st.Memory) == 0 {
		return nil, fmt.Errorf("avm: cannot restore state with no memory")
	}
	vm := &VM{
		prog:  prog,
		mem:   make([]int64, len(st.Memory)),
		hooks: hooks,
	}
	vm.restore(st)
	return vm, nil
}

// Run executes the VM for a maximum of maxSteps.
// The number of steps taken is returned.
// If Run returns less than maxSteps, then the machine has halted,
// or ctx was cancelled.
func (vm *VM) Run(ctx context.Context, maxSteps uint64) (steps uint64) {
	vm.ctx = ctx
	defer func() { vm.ctx = nil }()
	defer func() { vm.steps += steps }()

	for i := uint64(0); i < maxSteps; i++ {
		if !vm.isAlive() {
			return i
		}
		if i%256 == 0 && ctx.Err() != nil {
			return i
		}
		ix := vm.prog[vm.pc]
		if vm.hooks.OnStep != nil {
			vm.hooks.OnStep(vm.pc, ix)
		}
		vm.pc++
		// the program counter is advanced before the instruction so
		// that the instruction can override it.
		vm.step(ix)
	}
	// running off the end on the last step is still a halt
	vm.isAlive()
	return maxSteps
}

func (vm *VM) isAlive() bool {
	if vm.status != Running {
		return false
	}
	if vm.pc >= uint64(len(vm.prog)) {
		vm.status = Halted
		return false
	}
	return true
}

func (vm *VM) step(ix I) {
	switch ix := ix.(type) {
	case nil:
		logctx.Error(vm.ctx, "nil instruction, skipping", zap.Uint64("pc", vm.pc-1))
	case Load:
		vm.push(ix.X)
	case Store:
		vm.store(ix.Addr)

	case Add:
		vm.arith(OpAdd, func(a, b int64) int64 { return a + b })
	case Sub:
		vm.arith(OpSub, func(a, b int64) int64 { return a - b })
	case Mul:
		vm.arith(OpMul, func(a, b int64) int64 { return a * b })
	case Div:
		vm.div()

	case Jump:
		vm.pc = ix.Addr
	case JumpIf:
		vm.jumpIf(ix.Addr)
	case Halt:
		vm.status = Halted
		logctx.Debug(vm.ctx, "halted", zap.Uint64("pc", vm.pc-1))

	case SaveState:
		vm.saveState()
	case LoadState:
		vm.loadState()
	case RequestHost:
		vm.requestHost()
	case Print:
		vm.print()
	case EntropyReset:
		vm.entropyReset()

	default:
		if ix.Op().IsExtension() {
			vm.extension(ix)
			return
		}
		panic(fmt.Sprintf("unrecognized instruction %v", ix))
	}
}

func (vm *VM) push(x int64) {
	vm.stack = append(vm.stack, x)
}

func (vm *VM) pop() (int64, bool) {
	if len(vm.stack) == 0 {
		return 0, false
	}
	x := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return x, true
}

// operands pops the right then the left operand of a binary operator.
// Missing operands are replaced with 0.
func (vm *VM) operands(op Opcode) (left, right int64) {
	right, okR := vm.pop()
	left, okL := vm.pop()
	if !okR || !okL {
		logctx.Warnf(vm.ctx, "stack underflow: %v at pc %d", op, vm.pc-1)
	}
	return left, right
}

func (vm *VM) arith(op Opcode, fn func(a, b int64) int64) {
	left, right := vm.operands(op)
	vm.push(fn(left, right))
}

// div pops the divisor first.  Dividing by zero pushes 0 and leaves the dividend on the stack.
func (vm *VM) div() {
	right, okR := vm.pop()
	if !okR {
		right = 1
	} else if right == 0 {
		logctx.Error(vm.ctx, "division by zero", zap.Uint64("pc", vm.pc-1))
		vm.push(0)
		return
	}
	left, okL := vm.pop()
	if !okR || !okL {
		logctx.Warnf(vm.ctx, "stack underflow: %v at pc %d", OpDiv, vm.pc-1)
	}
	// math.MinInt64 / -1 wraps to math.MinInt64
	vm.push(left / right)
}

func (vm *VM) store(addr uint64) {
	x, ok := vm.pop()
	if !ok {
		logctx.Warnf(vm.ctx, "stack underflow: %v at pc %d", OpStore, vm.pc-1)
		return
	}
	if addr >= uint64(len(vm.mem)) {
		logctx.Error(vm.ctx, "memory access violation", zap.Uint64("addr", addr), zap.Int("mem_size", len(vm.mem)))
		return
	}
	vm.mem[addr] = x
}

func (vm *VM) jumpIf(addr uint64) {
	x, ok := vm.pop()
	if !ok {
		logctx.Warnf(vm.ctx, "stack underflow: %v at pc %d", OpJumpIf, vm.pc-1)
		return
	}
	if x != 0 {
		vm.pc = addr
	}
}

func (vm *VM) print() {
	line := "VM Output: [Empty Stack]"
	if len(vm.stack) > 0 {
		line = fmt.Sprintf("VM Output: %d", vm.stack[len(vm.stack)-1])
	}
	logctx.Info(vm.ctx, "print", zap.String("line", line))
	vm.writeConsole(line)
}

// entropyReset collapses memory into slot 0 and pushes the total.
// The sum of memory is unchanged.
func (vm *VM) entropyReset() {
	var sum int64
	for i := range vm.mem {
		sum += vm.mem[i]
		vm.mem[i] = 0
	}
	vm.mem[0] = sum
	vm.push(sum)
}

func (vm *VM) saveState() {
	st := vm.CaptureState()
	logctx.Info(vm.ctx, "state saved", zap.Stringer("checksum", st.ID()), zap.Uint64("pc", st.PC))
	if vm.hooks.SaveState == nil {
		return
	}
	if err := vm.hooks.SaveState(vm.ctx, st); err != nil {
		logctx.Error(vm.ctx, "saving state", zap.Error(err))
	}
}

func (vm *VM) loadState() {
	if vm.hooks.LoadState == nil {
		logctx.Warnf(vm.ctx, "LOAD_STATE: no state source configured")
		return
	}
	st, err := vm.hooks.LoadState(vm.ctx)
	if err != nil {
		logctx.Error(vm.ctx, "loading state", zap.Error(err))
		return
	}
	if st == nil {
		logctx.Info(vm.ctx, "no state to load")
		return
	}
	if err := st.Verify(); err != nil {
		logctx.Error(vm.ctx, "loading state", zap.Error(err))
		return
	}
	if len(st.Memory) != len(vm.mem) {
		logctx.Error(vm.ctx, "loading state: memory size mismatch", zap.Int("have", len(vm.mem)), zap.Int("state", len(st.Memory)))
		return
	}
	vm.restore(*st)
	logctx.Info(vm.ctx, "state loaded", zap.Stringer("checksum", st.ID()), zap.Uint64("pc", st.PC))
}

func (vm *VM) requestHost() {
	if vm.hooks.RequestHost == nil {
		logctx.Warnf(vm.ctx, "REQUEST_HOST: no migration configured")
		return
	}
	st := vm.CaptureState()
	if err := vm.hooks.RequestHost(vm.ctx, st); err != nil {
		logctx.Error(vm.ctx, "requesting host", zap.Error(err))
		return
	}
	logctx.Info(vm.ctx, "host requested", zap.Stringer("checksum", st.ID()))
}

func (vm *VM) extension(ix I) {
	line := FormatI(ix)
	logctx.Info(vm.ctx, "extension", zap.Stringer("op", ix.Op()), zap.String("payload", line))
	vm.writeConsole(line)
	if vm.hooks.OnExtension != nil {
		vm.hooks.OnExtension(vm.ctx, ix)
	}
}

func (vm *VM) writeConsole(line string) {
	if vm.hooks.Console == nil {
		return
	}
	if _, err := io.WriteString(vm.hooks.Console, line+"\n"); err != nil {
		logctx.Error(vm.ctx, "writing to console", zap.Error(err))
	}
}

func (vm *VM) restore(st State) {
	copy(vm.mem, st.Memory)
	vm.stack = append(vm.stack[:0], st.Stack...)
	vm.pc = st.PC
	vm.status = Running
}

// CaptureState returns a snapshot of the VM.
func (vm *VM) CaptureState() State {
	return NewState(vm.mem, vm.stack, vm.pc)
}

func (vm *VM) Status() Status {
	return vm.status
}

func (vm *VM) Halted() bool {
	return vm.status == Halted
}

func (vm *VM) PC() uint64 {
	return vm.pc
}

// Steps is the total number of instructions executed across all calls to Run.
func (vm *VM) Steps() uint64 {
	return vm.steps
}

// Stack returns a copy of the operand stack, bottom first.
func (vm *VM) Stack() []int64 {
	return cloneWords(vm.stack)
}

// Memory returns a copy of memory.
func (vm *VM) Memory() []int64 {
	return cloneWords(vm.mem)
}

// Top returns the value on top of the stack.
func (vm *VM) Top() (int64, bool) {
	if len(vm.stack) == 0 {
		return 0, false
	}
	return vm.stack[len(vm.stack)-1], true
}
