package x64

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type (
	// operand is the r/m part of an instruction: a register or [base+disp].
	operand struct {
		mem  bool
		reg  ir.RegUnit
		disp int32
	}

	// inst is a legacy encoded instruction.
	inst struct {
		pfx byte // mandatory prefix: 0x66, 0xf2, 0xf3
		w   bool
		op  []byte

		// reg is the ModRM.reg register or the opcode extension if ext is set.
		reg ir.RegUnit
		ext bool

		rm operand

		// byteRegs makes spl, bpl, sil and dil addressable.
		byteRegs bool
	}
)

func regOp(r ir.RegUnit) operand { return operand{reg: r} }

func memOp(base ir.RegUnit, disp int32) operand { return operand{mem: true, reg: base, disp: disp} }

func hw(r ir.RegUnit) byte { return byte(r) & 15 }

func fitsInt8(x int64) bool  { return x >= -128 && x <= 127 }
func fitsInt32(x int64) bool { return x >= -1<<31 && x < 1<<31 }

func (x inst) emit(s isa.CodeSink) {
	if x.pfx != 0 {
		s.Put1(x.pfx)
	}

	var rex byte

	if x.w {
		rex |= 8
	}

	if !x.ext && hw(x.reg)&8 != 0 {
		rex |= 4
	}

	if hw(x.rm.reg)&8 != 0 {
		rex |= 1
	}

	force := x.byteRegs && (!x.ext && x.reg >= rsp && x.reg <= rdi || !x.rm.mem && x.rm.reg >= rsp && x.rm.reg <= rdi)

	if rex != 0 || force {
		s.Put1(0x40 | rex)
	}

	for _, b := range x.op {
		s.Put1(b)
	}

	regf := hw(x.reg) & 7
	if x.ext {
		regf = byte(x.reg) & 7
	}

	rm := hw(x.rm.reg) & 7

	if !x.rm.mem {
		s.Put1(0xc0 | regf<<3 | rm)
		return
	}

	var mod byte

	switch {
	case x.rm.disp == 0 && rm != 5:
	case fitsInt8(int64(x.rm.disp)):
		mod = 0x40
	default:
		mod = 0x80
	}

	s.Put1(mod | regf<<3 | rm)

	if rm == 4 {
		s.Put1(0x24)
	}

	switch mod {
	case 0x40:
		s.Put1(byte(x.rm.disp))
	case 0x80:
		s.Put4(uint32(x.rm.disp))
	}
}

func op(b ...byte) []byte { return b }

// rr emits op reg, rm with both operands registers.
func rr(s isa.CodeSink, pfx byte, w bool, opc []byte, reg, rm ir.RegUnit) {
	inst{pfx: pfx, w: w, op: opc, reg: reg, rm: regOp(rm)}.emit(s)
}

// ext emits an instruction with an opcode extension in ModRM.reg.
func ext(s isa.CodeSink, w bool, opc []byte, digit byte, rm operand) {
	inst{w: w, op: opc, reg: ir.RegUnit(digit), ext: true, rm: rm}.emit(s)
}

// opReg emits an instruction with the register in the low opcode bits.
func opReg(s isa.CodeSink, w bool, opc byte, r ir.RegUnit) {
	var rex byte

	if w {
		rex |= 8
	}

	if hw(r)&8 != 0 {
		rex |= 1
	}

	if rex != 0 {
		s.Put1(0x40 | rex)
	}

	s.Put1(opc + hw(r)&7)
}

func movRR(s isa.CodeSink, dst, src ir.RegUnit) {
	if dst == src {
		return
	}

	if dst >= xmm0 {
		rr(s, 0, false, op(0x0f, 0x28), dst, src) // movaps
		return
	}

	rr(s, 0, true, op(0x89), src, dst)
}

// movRI loads a constant into a general purpose register.
func movRI(s isa.CodeSink, dst ir.RegUnit, c int64, w bool) {
	switch {
	case !w || c >= 0 && c <= 0xffffffff:
		opReg(s, false, 0xb8, dst)
		s.Put4(uint32(c))
	case fitsInt32(c):
		ext(s, true, op(0xc7), 0, regOp(dst))
		s.Put4(uint32(c))
	default:
		opReg(s, true, 0xb8, dst)
		s.Put8(uint64(c))
	}
}

// aluRI emits one of the 0x81 group with the shortest immediate.
func aluRI(s isa.CodeSink, w bool, digit byte, rm ir.RegUnit, c int64) {
	if fitsInt8(c) {
		ext(s, w, op(0x83), digit, regOp(rm))
		s.Put1(byte(c))

		return
	}

	ext(s, w, op(0x81), digit, regOp(rm))
	s.Put4(uint32(c))
}

// loadOp returns the prefix and opcode of a load into a register of type t.
// size is the memory access width in bytes.
func loadOp(t ir.Type, size int, signed bool) (pfx byte, w bool, opc []byte) {
	switch t {
	case ir.F32:
		return 0xf3, false, op(0x0f, 0x10)
	case ir.F64:
		return 0xf2, false, op(0x0f, 0x10)
	}

	switch {
	case size == 1 && signed:
		return 0, t == ir.I64, op(0x0f, 0xbe)
	case size == 1:
		return 0, false, op(0x0f, 0xb6)
	case size == 2 && signed:
		return 0, t == ir.I64, op(0x0f, 0xbf)
	case size == 2:
		return 0, false, op(0x0f, 0xb7)
	case size == 4 && signed && t == ir.I64:
		return 0, true, op(0x63)
	case size == 4:
		return 0, false, op(0x8b)
	default:
		return 0, true, op(0x8b)
	}
}

// storeOp returns the encoding of a store of size bytes from a register of type t.
func storeOp(t ir.Type, size int) (pfx byte, w bool, opc []byte, byteRegs bool) {
	switch t {
	case ir.F32:
		return 0xf3, false, op(0x0f, 0x11), false
	case ir.F64:
		return 0xf2, false, op(0x0f, 0x11), false
	}

	switch size {
	case 1:
		return 0, false, op(0x88), true
	case 2:
		return 0x66, false, op(0x89), false
	case 4:
		return 0, false, op(0x89), false
	default:
		return 0, true, op(0x89), false
	}
}

func load(s isa.CodeSink, t ir.Type, size int, signed bool, dst, base ir.RegUnit, disp int32) {
	pfx, w, opc := loadOp(t, size, signed)
	inst{pfx: pfx, w: w, op: opc, reg: dst, rm: memOp(base, disp)}.emit(s)
}

func store(s isa.CodeSink, t ir.Type, size int, src, base ir.RegUnit, disp int32) {
	pfx, w, opc, b := storeOp(t, size)
	inst{pfx: pfx, w: w, op: opc, reg: src, rm: memOp(base, disp), byteRegs: b}.emit(s)
}

// slotLoad and slotStore move whole registers to and from spill slots.
func slotLoad(s isa.CodeSink, t ir.Type, dst ir.RegUnit, disp int32) {
	if !t.IsFloat() {
		t = ir.I64
	}

	load(s, t, t.Bytes(), false, dst, rsp, disp)
}

func slotStore(s isa.CodeSink, t ir.Type, src ir.RegUnit, disp int32) {
	if !t.IsFloat() {
		t = ir.I64
	}

	store(s, t, t.Bytes(), src, rsp, disp)
}

// vex emits a three operand BMI2 instruction: dst = op(src, count).
func vex(s isa.CodeSink, pp byte, w bool, opc byte, dst, src, count ir.RegUnit) {
	b1 := byte(0x02) // 0F38 map

	if hw(dst)&8 == 0 {
		b1 |= 0x80
	}

	b1 |= 0x40 // no index

	if hw(src)&8 == 0 {
		b1 |= 0x20
	}

	b2 := (^hw(count)&15)<<3 | pp

	if w {
		b2 |= 0x80
	}

	s.Put1(0xc4)
	s.Put1(b1)
	s.Put1(b2)
	s.Put1(opc)
	s.Put1(0xc0 | (hw(dst)&7)<<3 | hw(src)&7)
}

// condCode maps an integer condition to the x86 condition nibble.
func condCode(cc ir.IntCC) byte {
	switch cc {
	case ir.Eq:
		return 0x4
	case ir.Ne:
		return 0x5
	case ir.Slt:
		return 0xc
	case ir.Sge:
		return 0xd
	case ir.Sgt:
		return 0xf
	case ir.Sle:
		return 0xe
	case ir.Ult:
		return 0x2
	case ir.Uge:
		return 0x3
	case ir.Ugt:
		return 0x7
	default: // ule
		return 0x6
	}
}
