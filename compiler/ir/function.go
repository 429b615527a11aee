package ir

import (
	"github.com/spacemeshos/cranelift/compiler/entity"
)

type (
	CallConv uint8

	Signature struct {
		Params   []Type
		Returns  []Type
		CallConv CallConv
	}

	StackSlotKind uint8

	StackSlotData struct {
		Kind  StackSlotKind
		Size  int32
		Align int32

		// Offset is the ABI offset of argument slots.
		Offset int32

		// FrameOffset is the stack pointer relative offset assigned by frame layout.
		FrameOffset int32
	}

	JumpTableData struct {
		Blocks []Block
	}

	GlobalValueData struct {
		Name   string
		Offset int64
	}

	// Encoding is the machine instruction form selected for an instruction.
	Encoding struct {
		Recipe uint16
		Bits   uint32
	}

	LocKind uint8

	// ValueLoc is where a value lives after register allocation.
	ValueLoc struct {
		Kind LocKind
		Reg  RegUnit
		Slot StackSlot
	}

	// Frame is the stack frame computed after register allocation.
	Frame struct {
		// Size is the stack pointer adjustment made by the prologue,
		// not counting the return address and frame pointer setup.
		Size int32

		// Saved are callee-saved registers stored by the prologue at SavedOffsets.
		Saved        []RegUnit
		SavedOffsets []int32

		// SaveLink is set when the link register is saved at LinkOffset.
		SaveLink   bool
		LinkOffset int32

		OutgoingSize int32
		HasCalls     bool
	}

	Function struct {
		Name string
		Sig  Signature

		DFG    DataFlowGraph
		Layout Layout

		StackSlots entity.Pool[StackSlot, StackSlotData]
		JumpTables entity.Pool[JumpTable, JumpTableData]
		Globals    entity.Pool[GlobalValue, GlobalValueData]

		Encodings entity.Map[Inst, Encoding]
		Locations entity.Map[Value, ValueLoc]

		// Fixed are registers mandated by the calling convention or instruction constraints.
		Fixed entity.Map[Value, RegUnit]

		Frame Frame

		ABILowered bool
	}
)

const (
	CallConvDefault CallConv = iota
	CallConvSystemV
	CallConvWindowsFastcall
	CallConvAAPCS64
	CallConvRiscV
)

const (
	SlotExplicit StackSlotKind = iota
	SlotSpill
	SlotIncomingArg
	SlotOutgoingArg
)

const (
	LocUnassigned LocKind = iota
	LocReg
	LocStack
)

var callConvNames = [...]string{"default", "system_v", "windows_fastcall", "aapcs64", "riscv"}

var slotKindNames = [...]string{"explicit_slot", "spill_slot", "incoming_arg", "outgoing_arg"}

func (c CallConv) String() string {
	if int(c) < len(callConvNames) {
		return callConvNames[c]
	}

	return "callconv?"
}

func CallConvByName(n string) (CallConv, bool) {
	for c, name := range callConvNames {
		if name == n {
			return CallConv(c), true
		}
	}

	return 0, false
}

func (k StackSlotKind) String() string { return slotKindNames[k] }

func (e Encoding) IsValid() bool { return e.Recipe != 0 }

func RegLoc(r RegUnit) ValueLoc { return ValueLoc{Kind: LocReg, Reg: r} }

func StackLoc(s StackSlot) ValueLoc { return ValueLoc{Kind: LocStack, Slot: s} }

func NewFunction(name string, sig Signature) *Function {
	f := &Function{
		Name: name,
		Sig:  sig,
	}

	f.init()

	return f
}

func (f *Function) init() {
	f.Layout = MakeLayout()
	f.Encodings = entity.MakeMap[Inst](Encoding{})
	f.Locations = entity.MakeMap[Value](ValueLoc{})
	f.Fixed = entity.MakeMap[Value](NoReg)
}

// Clear resets the function for reuse.
func (f *Function) Clear() {
	f.Name = ""
	f.Sig = Signature{}

	f.DFG.Clear()
	f.StackSlots.Reset()
	f.JumpTables.Reset()
	f.Globals.Reset()

	f.init()

	f.Frame = Frame{}
	f.ABILowered = false
}

func (f *Function) CreateStackSlot(kind StackSlotKind, size int32) StackSlot {
	align := int32(1)
	for align < size && align < 16 {
		align <<= 1
	}

	return f.StackSlots.Push(StackSlotData{Kind: kind, Size: size, Align: align})
}

func (f *Function) CreateJumpTable(blocks ...Block) JumpTable {
	return f.JumpTables.Push(JumpTableData{Blocks: blocks})
}

func (f *Function) CreateGlobal(name string, off int64) GlobalValue {
	return f.Globals.Push(GlobalValueData{Name: name, Offset: off})
}

// Pin fixes the register of v.
func (f *Function) Pin(v Value, r RegUnit) {
	f.Fixed.Set(v, r)
}

func (f *Function) Pinned(v Value) (RegUnit, bool) {
	r := f.Fixed.Get(v)

	return r, r != NoReg
}

// Insts calls fn for each instruction in layout order.
// Instructions inserted after the current one are visited, removing the current one is allowed.
func (f *Function) Insts(fn func(b Block, i Inst) error) error {
	for b := f.Layout.EntryBlock(); b != NoBlock; b = f.Layout.NextBlock(b) {
		for i := f.Layout.FirstInst(b); i != NoInst; {
			next := f.Layout.NextInst(i)

			if err := fn(b, i); err != nil {
				return err
			}

			if f.Layout.IsInstInserted(i) {
				next = f.Layout.NextInst(i)
			}

			i = next
		}
	}

	return nil
}

// Terminator returns the last instruction of the block if it is a terminator.
func (f *Function) Terminator(b Block) Inst {
	i := f.Layout.LastInst(b)
	if i == NoInst || !f.DFG.Inst(i).Opcode.IsTerminator() {
		return NoInst
	}

	return i
}
