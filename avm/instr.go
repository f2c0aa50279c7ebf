package avm

import "fmt"

// Opcode names an instruction.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	OpLoad
	OpStore
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpJump
	OpJumpIf
	OpSaveState
	OpLoadState
	OpRequestHost
	OpPrint
	OpHalt
	OpEntropyReset

	// extensions
	OpOntologicalShift
	OpResonateMembrane
	OpInvertEntropy
	OpVerifyTimeline
	OpPredictNeed
	OpTuneConstant
	OpInvertLogic
	OpDefineMatter
	OpRecycleChrono
	OpForkInstance
	OpPatchReality
)

var opNames = [...]string{
	OpInvalid: "INVALID",

	OpLoad:         "LOAD",
	OpStore:        "STORE",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpJump:         "JUMP",
	OpJumpIf:       "JUMP_IF",
	OpSaveState:    "SAVE_STATE",
	OpLoadState:    "LOAD_STATE",
	OpRequestHost:  "REQUEST_HOST",
	OpPrint:        "PRINT",
	OpHalt:         "HALT",
	OpEntropyReset: "ENTROPY_RESET",

	OpOntologicalShift: "ONTOLOGICAL_SHIFT",
	OpResonateMembrane: "RESONATE_MEMBRANE",
	OpInvertEntropy:    "INVERT_ENTROPY",
	OpVerifyTimeline:   "VERIFY_TIMELINE",
	OpPredictNeed:      "PREDICT_NEED",
	OpTuneConstant:     "TUNE_CONSTANT",
	OpInvertLogic:      "INVERT_LOGIC",
	OpDefineMatter:     "DEFINE_MATTER",
	OpRecycleChrono:    "RECYCLE_CHRONO",
	OpForkInstance:     "FORK_INSTANCE",
	OpPatchReality:     "PATCH_REALITY",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// IsExtension is true for the host specific instructions, which only produce output.
func (op Opcode) IsExtension() bool {
	return op >= OpOntologicalShift && op <= OpPatchReality
}

// ParseOpcode looks up an opcode by name.
func ParseOpcode(name string) (Opcode, bool) {
	for op := OpLoad; int(op) < len(opNames); op++ {
		if opNames[op] == name {
			return op, true
		}
	}
	return OpInvalid, false
}

// I is an instruction, it changes the state of the VM
type I interface {
	Op() Opcode
	isI()
}

type baseI struct{}

func (baseI) isI() {}

// stack and memory

// Load pushes X.
type Load struct {
	X int64
	baseI
}

// Store pops a value and writes it to memory at Addr.
type Store struct {
	Addr uint64
	baseI
}

// arithmetic

type Add struct{ baseI }

type Sub struct{ baseI }

type Mul struct{ baseI }

type Div struct{ baseI }

// control flow

type Jump struct {
	Addr uint64
	baseI
}

// JumpIf pops a value and jumps to Addr if it is not zero.
type JumpIf struct {
	Addr uint64
	baseI
}

type Halt struct{ baseI }

// host interaction

type SaveState struct{ baseI }

type LoadState struct{ baseI }

type RequestHost struct{ baseI }

type Print struct{ baseI }

// EntropyReset collapses all of memory into slot 0.
type EntropyReset struct{ baseI }

// extensions

type OntologicalShift struct {
	Coords uint64
	baseI
}

type ResonateMembrane struct {
	Frequency uint64
	baseI
}

type InvertEntropy struct {
	Joules uint64
	baseI
}

type VerifyTimeline struct {
	Hash uint64
	baseI
}

type PredictNeed struct {
	Entity uint64
	baseI
}

type TuneConstant struct {
	ID    uint64
	Value float64
	baseI
}

type InvertLogic struct {
	Gate uint64
	baseI
}

type DefineMatter struct {
	Syntax string
	baseI
}

type RecycleChrono struct {
	Delta float64
	baseI
}

type ForkInstance struct {
	ID uint64
	baseI
}

type PatchReality struct {
	Bug uint64
	Fix string
	baseI
}

func (Load) Op() Opcode         { return OpLoad }
func (Store) Op() Opcode        { return OpStore }
func (Add) Op() Opcode          { return OpAdd }
func (Sub) Op() Opcode          { return OpSub }
func (Mul) Op() Opcode          { return OpMul }
func (Div) Op() Opcode          { return OpDiv }
func (Jump) Op() Opcode         { return OpJump }
func (JumpIf) Op() Opcode       { return OpJumpIf }
func (Halt) Op() Opcode         { return OpHalt }
func (SaveState) Op() Opcode    { return OpSaveState }
func (LoadState) Op() Opcode    { return OpLoadState }
func (RequestHost) Op() Opcode  { return OpRequestHost }
func (Print) Op() Opcode        { return OpPrint }
func (EntropyReset) Op() Opcode { return OpEntropyReset }

func (OntologicalShift) Op() Opcode { return OpOntologicalShift }
func (ResonateMembrane) Op() Opcode { return OpResonateMembrane }
func (InvertEntropy) Op() Opcode    { return OpInvertEntropy }
func (VerifyTimeline) Op() Opcode   { return OpVerifyTimeline }
func (PredictNeed) Op() Opcode      { return OpPredictNeed }
func (TuneConstant) Op() Opcode     { return OpTuneConstant }
func (InvertLogic) Op() Opcode      { return OpInvertLogic }
func (DefineMatter) Op() Opcode     { return OpDefineMatter }
func (RecycleChrono) Op() Opcode    { return OpRecycleChrono }
func (ForkInstance) Op() Opcode     { return OpForkInstance }
func (PatchReality) Op() Opcode     { return OpPatchReality }

// zeroOperand returns the instruction for an opcode which takes no operands.
func zeroOperand(op Opcode) (I, bool) {
	switch op {
	case OpAdd:
		return Add{}, true
	case OpSub:
		return Sub{}, true
	case OpMul:
		return Mul{}, true
	case OpDiv:
		return Div{}, true
	case OpHalt:
		return Halt{}, true
	case OpSaveState:
		return SaveState{}, true
	case OpLoadState:
		return LoadState{}, true
	case OpRequestHost:
		return RequestHost{}, true
	case OpPrint:
		return Print{}, true
	case OpEntropyReset:
		return EntropyReset{}, true
	default:
		return nil, false
	}
}
