package ir

import "fmt"

type (
	Opcode uint8

	opFlags uint16

	opInfo struct {
		name  string
		flags opFlags
		args  int8 // fixed argument count, -1 for variadic
	}
)

const (
	OpInvalid Opcode = iota

	// control flow
	Jump
	Brif
	BrTable
	Return
	Trap
	Call
	CallIndirect

	// constants
	Iconst
	F32const
	F64const

	// integer arithmetic
	Iadd
	Isub
	Imul
	Udiv
	Sdiv
	Urem
	Srem
	Ineg
	Band
	Bor
	Bxor
	Bnot
	Ishl
	Ushr
	Sshr

	// immediate forms
	IaddImm
	ImulImm
	BandImm
	BorImm
	BxorImm
	IshlImm
	UshrImm
	SshrImm
	IcmpImm

	// carries
	IaddCout
	IaddCin
	IsubBout
	IsubBin

	Icmp
	Select

	// conversions
	Uextend
	Sextend
	Ireduce
	Iconcat
	Isplit
	Bitcast

	// floating point
	Fadd
	Fsub
	Fmul
	Fdiv

	// memory
	Load
	Uload8
	Sload8
	Uload16
	Sload16
	Uload32
	Sload32
	Store
	Istore8
	Istore16
	Istore32
	StackLoad
	StackStore
	StackAddr
	FuncAddr
	SymbolValue

	Copy

	// register allocation and frame
	Spill
	Fill
	Regmove
	Regspill
	Regfill
	Prologue
	Epilogue

	numOpcodes
)

const (
	fTerminator opFlags = 1 << iota
	fBranch
	fCall
	fSideEffects
	fCommutative
	fLoad
	fStore
)

var opInfos = [numOpcodes]opInfo{
	OpInvalid: {"invalid", 0, 0},

	Jump:         {"jump", fTerminator | fBranch, 0},
	Brif:         {"brif", fTerminator | fBranch, 1},
	BrTable:      {"br_table", fTerminator | fBranch, 1},
	Return:       {"return", fTerminator, -1},
	Trap:         {"trap", fTerminator | fSideEffects, 0},
	Call:         {"call", fCall | fSideEffects, -1},
	CallIndirect: {"call_indirect", fCall | fSideEffects, -1},

	Iconst:   {"iconst", 0, 0},
	F32const: {"f32const", 0, 0},
	F64const: {"f64const", 0, 0},

	Iadd: {"iadd", fCommutative, 2},
	Isub: {"isub", 0, 2},
	Imul: {"imul", fCommutative, 2},
	Udiv: {"udiv", 0, 2},
	Sdiv: {"sdiv", 0, 2},
	Urem: {"urem", 0, 2},
	Srem: {"srem", 0, 2},
	Ineg: {"ineg", 0, 1},
	Band: {"band", fCommutative, 2},
	Bor:  {"bor", fCommutative, 2},
	Bxor: {"bxor", fCommutative, 2},
	Bnot: {"bnot", 0, 1},
	Ishl: {"ishl", 0, 2},
	Ushr: {"ushr", 0, 2},
	Sshr: {"sshr", 0, 2},

	IaddImm: {"iadd_imm", 0, 1},
	ImulImm: {"imul_imm", 0, 1},
	BandImm: {"band_imm", 0, 1},
	BorImm:  {"bor_imm", 0, 1},
	BxorImm: {"bxor_imm", 0, 1},
	IshlImm: {"ishl_imm", 0, 1},
	UshrImm: {"ushr_imm", 0, 1},
	SshrImm: {"sshr_imm", 0, 1},
	IcmpImm: {"icmp_imm", 0, 1},

	IaddCout: {"iadd_cout", 0, 2},
	IaddCin:  {"iadd_cin", 0, 3},
	IsubBout: {"isub_bout", 0, 2},
	IsubBin:  {"isub_bin", 0, 3},

	Icmp:   {"icmp", 0, 2},
	Select: {"select", 0, 3},

	Uextend: {"uextend", 0, 1},
	Sextend: {"sextend", 0, 1},
	Ireduce: {"ireduce", 0, 1},
	Iconcat: {"iconcat", 0, 2},
	Isplit:  {"isplit", 0, 1},
	Bitcast: {"bitcast", 0, 1},

	Fadd: {"fadd", fCommutative, 2},
	Fsub: {"fsub", 0, 2},
	Fmul: {"fmul", fCommutative, 2},
	Fdiv: {"fdiv", 0, 2},

	Load:        {"load", fLoad, 1},
	Uload8:      {"uload8", fLoad, 1},
	Sload8:      {"sload8", fLoad, 1},
	Uload16:     {"uload16", fLoad, 1},
	Sload16:     {"sload16", fLoad, 1},
	Uload32:     {"uload32", fLoad, 1},
	Sload32:     {"sload32", fLoad, 1},
	Store:       {"store", fStore | fSideEffects, 2},
	Istore8:     {"istore8", fStore | fSideEffects, 2},
	Istore16:    {"istore16", fStore | fSideEffects, 2},
	Istore32:    {"istore32", fStore | fSideEffects, 2},
	StackLoad:   {"stack_load", fLoad, 0},
	StackStore:  {"stack_store", fStore | fSideEffects, 1},
	StackAddr:   {"stack_addr", 0, 0},
	FuncAddr:    {"func_addr", 0, 0},
	SymbolValue: {"symbol_value", 0, 0},

	Copy: {"copy", 0, 1},

	Spill:    {"spill", 0, 1},
	Fill:     {"fill", 0, 1},
	Regmove:  {"regmove", fSideEffects, 0},
	Regspill: {"regspill", fSideEffects, 0},
	Regfill:  {"regfill", fSideEffects, 0},
	Prologue: {"prologue", fSideEffects, 0},
	Epilogue: {"epilogue", fSideEffects, 0},
}

func (op Opcode) String() string {
	if op < numOpcodes {
		return opInfos[op].name
	}

	return fmt.Sprintf("opcode%d", int(op))
}

func OpcodeByName(n string) (Opcode, bool) {
	for op := OpInvalid + 1; op < numOpcodes; op++ {
		if opInfos[op].name == n {
			return op, true
		}
	}

	return OpInvalid, false
}

func (op Opcode) Valid() bool { return op > OpInvalid && op < numOpcodes }

func (op Opcode) IsTerminator() bool  { return opInfos[op].flags&fTerminator != 0 }
func (op Opcode) IsBranch() bool      { return opInfos[op].flags&fBranch != 0 }
func (op Opcode) IsCall() bool        { return opInfos[op].flags&fCall != 0 }
func (op Opcode) IsCommutative() bool { return opInfos[op].flags&fCommutative != 0 }
func (op Opcode) IsLoad() bool        { return opInfos[op].flags&fLoad != 0 }
func (op Opcode) IsStore() bool       { return opInfos[op].flags&fStore != 0 }

// HasSideEffects reports whether the instruction must be kept even if its results are unused.
func (op Opcode) HasSideEffects() bool {
	return opInfos[op].flags&(fTerminator|fSideEffects|fCall) != 0
}

// NumFixedArgs returns the argument count or -1 for variadic opcodes.
func (op Opcode) NumFixedArgs() int { return int(opInfos[op].args) }

// ImmForm returns the immediate form of a binary opcode.
func (op Opcode) ImmForm() (Opcode, bool) {
	switch op {
	case Iadd, Isub:
		return IaddImm, true
	case Imul:
		return ImulImm, true
	case Band:
		return BandImm, true
	case Bor:
		return BorImm, true
	case Bxor:
		return BxorImm, true
	case Ishl:
		return IshlImm, true
	case Ushr:
		return UshrImm, true
	case Sshr:
		return SshrImm, true
	case Icmp:
		return IcmpImm, true
	default:
		return OpInvalid, false
	}
}

// RegForm returns the register form of an immediate opcode.
func (op Opcode) RegForm() (Opcode, bool) {
	switch op {
	case IaddImm:
		return Iadd, true
	case ImulImm:
		return Imul, true
	case BandImm:
		return Band, true
	case BorImm:
		return Bor, true
	case BxorImm:
		return Bxor, true
	case IshlImm:
		return Ishl, true
	case UshrImm:
		return Ushr, true
	case SshrImm:
		return Sshr, true
	case IcmpImm:
		return Icmp, true
	default:
		return OpInvalid, false
	}
}

// MemBytes returns the access width of sized loads and stores, 0 for the value type.
func (op Opcode) MemBytes() int {
	switch op {
	case Uload8, Sload8, Istore8:
		return 1
	case Uload16, Sload16, Istore16:
		return 2
	case Uload32, Sload32, Istore32:
		return 4
	default:
		return 0
	}
}

// SignedLoad reports whether a sized load sign-extends.
func (op Opcode) SignedLoad() bool {
	return op == Sload8 || op == Sload16 || op == Sload32
}
