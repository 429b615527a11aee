package isa

import (
	"fmt"

	"github.com/spacemeshos/cranelift/compiler/entity"
	"github.com/spacemeshos/cranelift/compiler/ir"
)

type (
	RelocKind uint8

	// CodeSink receives machine code bytes and side tables.
	CodeSink interface {
		Offset() uint32

		Put1(b byte)
		Put2(x uint16)
		Put4(x uint32)
		Put8(x uint64)

		// Reloc records a relocation at the current offset.
		Reloc(k RelocKind, name string, addend int64)
		// Trap records a trap site at the current offset.
		Trap(code ir.TrapCode)
		// Safepoint records a call return address at the current offset.
		Safepoint()
	}

	// Emitter is passed to recipe emission routines.
	Emitter struct {
		ISA  TargetISA
		Func *ir.Function
		Sink CodeSink

		Inst ir.Inst
		// Next is the block following the current one in the layout.
		Next ir.Block

		// Offsets are block offsets of the previous layout pass.
		Offsets *entity.Map[ir.Block, uint32]

		// OutOfRange is set when a branch of the current instruction does not fit its form.
		OutOfRange bool
	}
)

const (
	RelocAbs4 RelocKind = iota
	RelocAbs8
	// RelocX86CallPCRel4 is a 32 bit pc relative call displacement.
	RelocX86CallPCRel4
	// RelocArm64Call is a 26 bit word offset of bl.
	RelocArm64Call
	// RelocRiscvCall patches an auipc and jalr pair.
	RelocRiscvCall
)

var relocNames = [...]string{"abs4", "abs8", "x86_call_pcrel4", "arm64_call", "riscv_call"}

func (k RelocKind) String() string {
	if int(k) < len(relocNames) {
		return relocNames[k]
	}

	return fmt.Sprintf("reloc%d", int(k))
}

// Reg returns the register assigned to v.
func (e *Emitter) Reg(v ir.Value) ir.RegUnit {
	loc := e.Func.Locations.Get(v)
	if loc.Kind != ir.LocReg {
		panic(fmt.Sprintf("%v: %v is not in a register", e.Inst, v))
	}

	return loc.Reg
}

func (e *Emitter) Arg(d *ir.InstData, k int) ir.RegUnit { return e.Reg(d.Args[k]) }

func (e *Emitter) Res(d *ir.InstData, k int) ir.RegUnit { return e.Reg(d.Results[k]) }

// SlotOffset is the stack pointer relative offset of a stack slot.
func (e *Emitter) SlotOffset(ss ir.StackSlot) int64 {
	return int64(e.Func.StackSlots.Get(ss).FrameOffset)
}

// SpillOffset is the stack pointer relative offset of a value living on the stack.
func (e *Emitter) SpillOffset(v ir.Value) int64 {
	loc := e.Func.Locations.Get(v)
	if loc.Kind != ir.LocStack {
		panic(fmt.Sprintf("%v: %v is not on the stack", e.Inst, v))
	}

	return e.SlotOffset(loc.Slot)
}

func (e *Emitter) Scratch(c RegClass) ir.RegUnit {
	return e.ISA.RegInfo().Classes[c].Scratch
}

func (e *Emitter) ClassOf(v ir.Value) RegClass {
	return e.ISA.ClassFor(e.Func.DFG.ValueType(v))
}

// Falls reports whether b directly follows the current block.
func (e *Emitter) Falls(b ir.Block) bool { return b == e.Next }

// Disp returns the displacement from offset from to block target.
// OutOfRange is set if it does not fit into [min, max].
func (e *Emitter) Disp(target ir.Block, from uint32, min, max int64) int64 {
	d := int64(e.Offsets.Get(target)) - int64(from)

	if d < min || d > max {
		e.OutOfRange = true
	}

	return d
}

// FuncName is the symbol of an external function.
func (e *Emitter) FuncName(fn ir.FuncRef) string {
	return e.Func.DFG.ExtFuncs.Get(fn).Name
}

// Global returns the symbol and addend of a global value.
func (e *Emitter) Global(gv ir.GlobalValue) (string, int64) {
	g := e.Func.Globals.Get(gv)

	return g.Name, g.Offset
}
