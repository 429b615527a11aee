package ir

import (
	"strconv"

	"tlog.app/go/tlog/tlwire"

	"github.com/spacemeshos/cranelift/compiler/entity"
)

type (
	Value       uint32
	Inst        uint32
	Block       uint32
	StackSlot   uint32
	JumpTable   uint32
	FuncRef     uint32
	SigRef      uint32
	GlobalValue uint32

	// RegUnit is an ISA-defined physical register number.
	RegUnit uint16
)

const (
	NoValue     = Value(entity.Reserved)
	NoInst      = Inst(entity.Reserved)
	NoBlock     = Block(entity.Reserved)
	NoStackSlot = StackSlot(entity.Reserved)
	NoJumpTable = JumpTable(entity.Reserved)
	NoFuncRef   = FuncRef(entity.Reserved)
	NoSigRef    = SigRef(entity.Reserved)
	NoGlobal    = GlobalValue(entity.Reserved)

	NoReg = RegUnit(0xffff)
)

func (v Value) String() string       { return name("v", uint32(v)) }
func (i Inst) String() string        { return name("inst", uint32(i)) }
func (b Block) String() string       { return name("block", uint32(b)) }
func (s StackSlot) String() string   { return name("ss", uint32(s)) }
func (j JumpTable) String() string   { return name("jt", uint32(j)) }
func (f FuncRef) String() string     { return name("fn", uint32(f)) }
func (s SigRef) String() string      { return name("sig", uint32(s)) }
func (g GlobalValue) String() string { return name("gv", uint32(g)) }

func (v Value) TlogAppend(b []byte) []byte { return appendEntity(b, "v", uint32(v)) }
func (i Inst) TlogAppend(b []byte) []byte  { return appendEntity(b, "inst", uint32(i)) }
func (b Block) TlogAppend(w []byte) []byte { return appendEntity(w, "block", uint32(b)) }

func name(p string, x uint32) string {
	if x == entity.Reserved {
		return p + "?"
	}

	return p + strconv.FormatUint(uint64(x), 10)
}

func appendEntity(b []byte, p string, x uint32) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, name(p, x))
}
