package riscv

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type gen struct {
	rv64   bool
	ff, fd bool // f and d extensions
}

var (
	allInts = []ir.Type{ir.I8, ir.I16, ir.I32, ir.I64}
	all     = []ir.Type{ir.I8, ir.I16, ir.I32, ir.I64, ir.F32, ir.F64}
	none    = []ir.Type{ir.TypeInvalid}
)

func imm12(f *ir.Function, d *ir.InstData) bool { return fits12(d.Imm) }

func icmpImm(f *ir.Function, d *ir.InstData) bool {
	switch d.Cond {
	case ir.Eq, ir.Ne, ir.Slt, ir.Sge, ir.Ult, ir.Uge:
		return fits12(d.Imm)
	default:
		return false
	}
}

func buildTable(desc *isa.Descriptor) *isa.Table {
	t := isa.NewTable(desc)

	g := &gen{
		rv64: desc.WordBits == 64,
		ff:   desc.Has("f"),
		fd:   desc.Has("d"),
	}

	word := ir.I32
	ints := []ir.Type{ir.I32}
	if g.rv64 {
		word = ir.I64
		ints = append(ints, ir.I64)
	}

	r := func(rc isa.Recipe) uint16 { return t.AddRecipe(rc) }

	iconst := r(isa.Recipe{Name: "iconst", Emit: g.iconst})
	rrr := r(isa.Recipe{Name: "rrr", Emit: g.rrr})
	rri := r(isa.Recipe{Name: "rri", Emit: g.rri})
	div := r(isa.Recipe{Name: "div", Emit: g.div})
	icmp := r(isa.Recipe{Name: "icmp", Emit: g.icmp})
	icmpI := r(isa.Recipe{Name: "icmp_imm", Emit: g.icmpImm})
	uext := r(isa.Recipe{Name: "uextend", Emit: g.uextend})
	sext := r(isa.Recipe{Name: "sextend", Emit: g.sextend})
	ired := r(isa.Recipe{Name: "ireduce", Emit: g.ireduce})
	copyR := r(isa.Recipe{Name: "copy", Emit: g.copy})
	fmv := r(isa.Recipe{Name: "fmv", Emit: g.fmv})
	fop := r(isa.Recipe{Name: "fop", Emit: g.fop})
	ld := r(isa.Recipe{Name: "load", Emit: g.load})
	st := r(isa.Recipe{Name: "store", Emit: g.store})
	sld := r(isa.Recipe{Name: "stack_load", Emit: g.stackLoad})
	sst := r(isa.Recipe{Name: "stack_store", Emit: g.stackStore})
	saddr := r(isa.Recipe{Name: "stack_addr", Emit: g.stackAddr})
	spill := r(isa.Recipe{Name: "spill", Emit: g.spill})
	fill := r(isa.Recipe{Name: "fill", Emit: g.fill})
	regmove := r(isa.Recipe{Name: "regmove", Emit: g.regmove})
	regspill := r(isa.Recipe{Name: "regspill", Emit: g.regspill})
	regfill := r(isa.Recipe{Name: "regfill", Emit: g.regfill})
	lit := r(isa.Recipe{Name: "literal", Emit: g.literal})

	jumpLong := r(isa.Recipe{Name: "jump_long", Emit: g.jump(true)})
	jump := r(isa.Recipe{Name: "jump", Emit: g.jump(false), Branch: &isa.BranchForm{Long: jumpLong}})
	brifLong := r(isa.Recipe{Name: "brif_long", Emit: g.brif(true)})
	brif := r(isa.Recipe{Name: "brif", Emit: g.brif(false), Branch: &isa.BranchForm{Long: brifLong}})
	retR := r(isa.Recipe{Name: "return", Emit: g.ret})
	trap := r(isa.Recipe{Name: "trap", Emit: g.trap})
	call := r(isa.Recipe{Name: "call", Call: true, Emit: g.call})
	callInd := r(isa.Recipe{Name: "call_indirect", Call: true, Emit: g.callIndirect})
	prologue := r(isa.Recipe{Name: "prologue", Emit: g.prologue})
	epilogue := r(isa.Recipe{Name: "epilogue", Emit: g.epilogue})

	t.Add(ir.Iconst, allInts[:len(ints)+2], iconst, 0)

	// I32 arithmetic uses the W forms on rv64 to keep values sign-extended.
	for _, typ := range ints {
		reg, imm := uint32(opReg), uint32(opImm)
		if g.rv64 && typ == ir.I32 {
			reg, imm = opReg32, opImm32
		}

		ts := []ir.Type{typ}

		t.Add(ir.Iadd, ts, rrr, rType(reg, 0, 0))
		t.Add(ir.Isub, ts, rrr, rType(reg, 0, 0x20))
		t.Add(ir.Band, ts, rrr, rType(opReg, 7, 0))
		t.Add(ir.Bor, ts, rrr, rType(opReg, 6, 0))
		t.Add(ir.Bxor, ts, rrr, rType(opReg, 4, 0))
		t.Add(ir.Ishl, ts, rrr, rType(reg, 1, 0))
		t.Add(ir.Ushr, ts, rrr, rType(reg, 5, 0))
		t.Add(ir.Sshr, ts, rrr, rType(reg, 5, 0x20))

		t.AddEntry(isa.Entry{Opcode: ir.Imul, Type: typ, Requires: "m", Recipe: rrr, Bits: rType(reg, 0, 1)})
		t.AddEntry(isa.Entry{Opcode: ir.Sdiv, Type: typ, Requires: "m", Recipe: div, Bits: rType(reg, 4, 1)})
		t.AddEntry(isa.Entry{Opcode: ir.Udiv, Type: typ, Requires: "m", Recipe: div, Bits: rType(reg, 5, 1)})
		t.AddEntry(isa.Entry{Opcode: ir.Srem, Type: typ, Requires: "m", Recipe: div, Bits: rType(reg, 6, 1)})
		t.AddEntry(isa.Entry{Opcode: ir.Urem, Type: typ, Requires: "m", Recipe: div, Bits: rType(reg, 7, 1)})

		t.AddPred(ir.IaddImm, ts, imm12, rri, imm)
		t.AddPred(ir.BandImm, ts, imm12, rri, opImm|7<<12)
		t.AddPred(ir.BorImm, ts, imm12, rri, opImm|6<<12)
		t.AddPred(ir.BxorImm, ts, imm12, rri, opImm|4<<12)

		shamt := isa.ImmPred(0, int64(typ.Bits()-1))

		t.AddPred(ir.IshlImm, ts, shamt, rri, imm|1<<12)
		t.AddPred(ir.UshrImm, ts, shamt, rri, imm|5<<12)
		t.AddPred(ir.SshrImm, ts, shamt, rri, imm|5<<12|0x400<<20)

		t.Add(ir.Icmp, ts, icmp, 0)
		t.AddPred(ir.IcmpImm, ts, icmpImm, icmpI, 0)
	}

	for _, to := range []ir.Type{ir.I16, ir.I32, ir.I64} {
		for _, from := range allInts {
			if from.Bits() >= to.Bits() || to.Bits() > desc.WordBits {
				continue
			}

			t.AddPred(ir.Uextend, []ir.Type{to}, isa.ArgTypePred(from), uext, 0)
			t.AddPred(ir.Sextend, []ir.Type{to}, isa.ArgTypePred(from), sext, 0)
		}
	}

	t.Add(ir.Ireduce, []ir.Type{ir.I8, ir.I16, ir.I32}, ired, 0)
	t.Add(ir.Copy, all, copyR, 0)

	if g.ff {
		t.AddPred(ir.Bitcast, []ir.Type{ir.F32}, isa.ArgTypePred(ir.I32), fmv, 0x78)
		t.AddPred(ir.Bitcast, []ir.Type{ir.I32}, isa.ArgTypePred(ir.F32), fmv, 0x70)

		t.Add(ir.Fadd, []ir.Type{ir.F32}, fop, 0x00)
		t.Add(ir.Fsub, []ir.Type{ir.F32}, fop, 0x04)
		t.Add(ir.Fmul, []ir.Type{ir.F32}, fop, 0x08)
		t.Add(ir.Fdiv, []ir.Type{ir.F32}, fop, 0x0c)
	} else {
		t.AddPred(ir.Bitcast, []ir.Type{ir.F32}, isa.ArgTypePred(ir.I32), copyR, 0)
		t.AddPred(ir.Bitcast, []ir.Type{ir.I32}, isa.ArgTypePred(ir.F32), copyR, 0)
	}

	switch {
	case g.fd:
		if g.rv64 {
			t.AddPred(ir.Bitcast, []ir.Type{ir.F64}, isa.ArgTypePred(ir.I64), fmv, 0x79)
			t.AddPred(ir.Bitcast, []ir.Type{ir.I64}, isa.ArgTypePred(ir.F64), fmv, 0x71)
		}

		t.Add(ir.Fadd, []ir.Type{ir.F64}, fop, 0x01)
		t.Add(ir.Fsub, []ir.Type{ir.F64}, fop, 0x05)
		t.Add(ir.Fmul, []ir.Type{ir.F64}, fop, 0x09)
		t.Add(ir.Fdiv, []ir.Type{ir.F64}, fop, 0x0d)
	case g.rv64:
		t.AddPred(ir.Bitcast, []ir.Type{ir.F64}, isa.ArgTypePred(ir.I64), copyR, 0)
		t.AddPred(ir.Bitcast, []ir.Type{ir.I64}, isa.ArgTypePred(ir.F64), copyR, 0)
	}

	memTypes := append(append([]ir.Type{}, ints...), ir.I8, ir.I16, ir.F32)
	if g.fd || g.rv64 {
		memTypes = append(memTypes, ir.F64)
	}

	t.AddPred(ir.Load, memTypes, imm12, ld, 0)
	t.AddPred(ir.Store, memTypes, imm12, st, 0)

	for _, op := range []ir.Opcode{ir.Uload8, ir.Sload8, ir.Uload16, ir.Sload16, ir.Istore8, ir.Istore16} {
		rc := ld
		if op.IsStore() {
			rc = st
		}

		t.AddPred(op, ints, imm12, rc, 0)
	}

	if g.rv64 {
		t.AddPred(ir.Uload32, []ir.Type{ir.I64}, imm12, ld, 0)
		t.AddPred(ir.Sload32, []ir.Type{ir.I64}, imm12, ld, 0)
		t.AddPred(ir.Istore32, []ir.Type{ir.I64}, imm12, st, 0)
	}

	t.Add(ir.StackLoad, memTypes, sld, 0)
	t.Add(ir.StackStore, memTypes, sst, 0)
	t.Add(ir.StackAddr, []ir.Type{word}, saddr, 0)

	t.Add(ir.Spill, all, spill, 0)
	t.Add(ir.Fill, all, fill, 0)
	t.Add(ir.Regmove, all, regmove, 0)
	t.Add(ir.Regspill, all, regspill, 0)
	t.Add(ir.Regfill, all, regfill, 0)

	t.Add(ir.FuncAddr, []ir.Type{word}, lit, 0)
	t.Add(ir.SymbolValue, []ir.Type{word}, lit, 1)

	t.Add(ir.Jump, none, jump, 0)
	t.Add(ir.Brif, ints, brif, 0)
	t.Add(ir.Return, none, retR, 0)
	t.Add(ir.Trap, none, trap, 0)
	t.Add(ir.Call, none, call, 0)
	t.Add(ir.CallIndirect, none, callInd, 0)
	t.Add(ir.Prologue, none, prologue, 0)
	t.Add(ir.Epilogue, none, epilogue, 0)

	return t
}

func (g *gen) xlen() int64 {
	if g.rv64 {
		return 64
	}

	return 32
}

func (g *gen) iconst(e *isa.Emitter, d *ir.InstData, bits uint32) {
	c := d.Imm
	if d.Type == ir.I32 {
		c = int64(int32(c))
	}

	li(e.Sink, e.Res(d, 0), c, g.rv64)
}

func (g *gen) rrr(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, r(bits, e.Res(d, 0), e.Arg(d, 0), e.Arg(d, 1)))
}

// rri emits an I-type instruction. bits holds the opcode and funct3.
func (g *gen) rri(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, bits|uint32(d.Imm)&0xfff<<20|num(e.Arg(d, 0))<<15|num(e.Res(d, 0))<<7)
}

// div checks the divisor explicitly, the hardware does not trap on zero.
func (g *gen) div(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	y := e.Arg(d, 1)

	put(s, b(1, y, zero, 8)) // bnez y, +8
	s.Trap(ir.TrapIntegerDivisionByZero)
	put(s, unimp)
	put(s, r(bits, e.Res(d, 0), e.Arg(d, 0), y))
}

var (
	slt  = rType(opReg, 2, 0)
	sltu = rType(opReg, 3, 0)
	xor  = rType(opReg, 4, 0)
)

func (g *gen) icmp(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	rd, x, y := e.Res(d, 0), e.Arg(d, 0), e.Arg(d, 1)

	switch d.Cond {
	case ir.Eq:
		put(s, r(xor, rd, x, y), i(opImm, 3, rd, rd, 1))
	case ir.Ne:
		put(s, r(xor, rd, x, y), r(sltu, rd, zero, rd))
	case ir.Slt:
		put(s, r(slt, rd, x, y))
	case ir.Sgt:
		put(s, r(slt, rd, y, x))
	case ir.Sge:
		put(s, r(slt, rd, x, y), i(opImm, 4, rd, rd, 1))
	case ir.Sle:
		put(s, r(slt, rd, y, x), i(opImm, 4, rd, rd, 1))
	case ir.Ult:
		put(s, r(sltu, rd, x, y))
	case ir.Ugt:
		put(s, r(sltu, rd, y, x))
	case ir.Uge:
		put(s, r(sltu, rd, x, y), i(opImm, 4, rd, rd, 1))
	case ir.Ule:
		put(s, r(sltu, rd, y, x), i(opImm, 4, rd, rd, 1))
	}
}

func (g *gen) icmpImm(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	rd, x, c := e.Res(d, 0), e.Arg(d, 0), d.Imm

	switch d.Cond {
	case ir.Eq:
		put(s, i(opImm, 4, rd, x, c), i(opImm, 3, rd, rd, 1))
	case ir.Ne:
		put(s, i(opImm, 4, rd, x, c), r(sltu, rd, zero, rd))
	case ir.Slt:
		put(s, i(opImm, 2, rd, x, c))
	case ir.Sge:
		put(s, i(opImm, 2, rd, x, c), i(opImm, 4, rd, rd, 1))
	case ir.Ult:
		put(s, i(opImm, 3, rd, x, c))
	case ir.Uge:
		put(s, i(opImm, 3, rd, x, c), i(opImm, 4, rd, rd, 1))
	}
}

// shiftPair emits a left shift followed by a right shift by the same amount.
func (g *gen) shiftPair(s isa.CodeSink, rd, rs ir.RegUnit, sh int64, arith bool) {
	right := int64(0)
	if arith {
		right = 0x400
	}

	put(s, i(opImm, 1, rd, rs, sh), i(opImm, 5, rd, rd, sh|right))
}

func (g *gen) uextend(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rd, rs := e.Res(d, 0), e.Arg(d, 0)

	switch e.Func.DFG.ValueType(d.Args[0]) {
	case ir.I8:
		put(e.Sink, i(opImm, 7, rd, rs, 0xff))
	case ir.I16:
		g.shiftPair(e.Sink, rd, rs, g.xlen()-16, false)
	default:
		g.shiftPair(e.Sink, rd, rs, 32, false)
	}
}

func (g *gen) sextend(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rd, rs := e.Res(d, 0), e.Arg(d, 0)

	switch e.Func.DFG.ValueType(d.Args[0]) {
	case ir.I8:
		g.shiftPair(e.Sink, rd, rs, g.xlen()-8, true)
	case ir.I16:
		g.shiftPair(e.Sink, rd, rs, g.xlen()-16, true)
	default:
		put(e.Sink, i(opImm32, 0, rd, rs, 0)) // sext.w
	}
}

func (g *gen) ireduce(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rd, rs := e.Res(d, 0), e.Arg(d, 0)

	if g.rv64 && d.Type == ir.I32 {
		put(e.Sink, i(opImm32, 0, rd, rs, 0))
		return
	}

	mv(e.Sink, rd, rs, g.fd)
}

func (g *gen) copy(e *isa.Emitter, d *ir.InstData, bits uint32) {
	mv(e.Sink, e.Res(d, 0), e.Arg(d, 0), g.fd)
}

// fmv moves raw bits between register files. bits is funct7.
func (g *gen) fmv(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, r(rType(opFP, 0, bits), e.Res(d, 0), e.Arg(d, 0), zero))
}

func (g *gen) fop(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, r(rType(opFP, 7, bits), e.Res(d, 0), e.Arg(d, 0), e.Arg(d, 1)))
}

func memSize(d *ir.InstData) int {
	if n := d.Opcode.MemBytes(); n != 0 {
		return n
	}

	return d.Type.Bytes()
}

func (g *gen) load(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rd := e.Res(d, 0)
	op, f3 := loadOp(d.Type, memSize(d), d.Opcode.SignedLoad(), rd >= f0)

	mem(e.Sink, true, op, f3, rd, e.Arg(d, 0), d.Imm, g.rv64)
}

func (g *gen) store(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rs := e.Arg(d, 0)
	op, f3 := storeOp(memSize(d), rs >= f0)

	mem(e.Sink, false, op, f3, rs, e.Arg(d, 1), d.Imm, g.rv64)
}

func (g *gen) stackLoad(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rd := e.Res(d, 0)
	op, f3 := loadOp(d.Type, d.Type.Bytes(), true, rd >= f0)

	mem(e.Sink, true, op, f3, rd, sp, e.SlotOffset(d.Slot)+d.Imm, g.rv64)
}

func (g *gen) stackStore(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rs := e.Arg(d, 0)
	op, f3 := storeOp(d.Type.Bytes(), rs >= f0)

	mem(e.Sink, false, op, f3, rs, sp, e.SlotOffset(d.Slot)+d.Imm, g.rv64)
}

func (g *gen) stackAddr(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rd := e.Res(d, 0)
	off := e.SlotOffset(d.Slot) + d.Imm

	if fits12(off) {
		put(e.Sink, addi(rd, sp, off))
		return
	}

	li(e.Sink, rd, off, g.rv64)
	put(e.Sink, r(rType(opReg, 0, 0), rd, rd, sp))
}

// slot moves a whole register to or from the stack.
func (g *gen) slot(s isa.CodeSink, reg ir.RegUnit, off int64, store bool) {
	size := int(g.xlen() / 8)
	if reg >= f0 && !g.fd {
		size = 4
	}

	var op, f3 uint32
	if store {
		op, f3 = storeOp(size, reg >= f0)
	} else {
		op, f3 = loadOp(ir.I64, size, true, reg >= f0)
		if reg >= f0 && size == 4 {
			f3 = 2
		}
	}

	mem(s, !store, op, f3, reg, sp, off, g.rv64)
}

func (g *gen) spill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	g.slot(e.Sink, e.Arg(d, 0), e.SpillOffset(d.Results[0]), true)
}

func (g *gen) fill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	g.slot(e.Sink, e.Res(d, 0), e.SpillOffset(d.Args[0]), false)
}

func (g *gen) regmove(e *isa.Emitter, d *ir.InstData, bits uint32) {
	src, dst := d.RegmoveUnits()
	mv(e.Sink, dst, src, g.fd)
}

func (g *gen) regspill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	g.slot(e.Sink, ir.RegUnit(d.Imm), e.SlotOffset(d.Slot), true)
}

func (g *gen) regfill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	g.slot(e.Sink, ir.RegUnit(d.Imm), e.SlotOffset(d.Slot), false)
}

// literal loads an address from an inline literal: auipc; l[wd]; j over; .word/.quad sym.
func (g *gen) literal(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	rd := e.Res(d, 0)

	name, add := "", int64(0)
	if bits == 0 {
		name = e.FuncName(d.Func)
	} else {
		name, add = e.Global(d.Global)
	}

	if g.rv64 {
		put(s, u(opAuipc, rd, 0), i(opLoad, 3, rd, rd, 12), j(zero, 12))
		s.Reloc(isa.RelocAbs8, name, add)
		s.Put8(0)

		return
	}

	put(s, u(opAuipc, rd, 0), i(opLoad, 2, rd, rd, 12), j(zero, 8))
	s.Reloc(isa.RelocAbs4, name, add)
	s.Put4(0)
}

const (
	branchMin = -1 << 12
	branchMax = 1<<12 - 2
	jalMin    = -1 << 20
	jalMax    = 1<<20 - 2
	farMin    = -1 << 31
	farMax    = 1<<31 - 1 - 0x800
)

func (g *gen) jumpTo(e *isa.Emitter, target ir.Block, far bool) {
	s := e.Sink

	if !far {
		put(s, j(zero, e.Disp(target, s.Offset(), jalMin, jalMax)))
		return
	}

	disp := e.Disp(target, s.Offset(), farMin, farMax)
	hi := (disp + 0x800) >> 12

	put(s, u(opAuipc, t6, hi), i(opJalr, 0, zero, t6, disp-hi<<12))
}

func (g *gen) jump(long bool) func(e *isa.Emitter, d *ir.InstData, bits uint32) {
	return func(e *isa.Emitter, d *ir.InstData, bits uint32) {
		if target := d.Targets[0].Block; !e.Falls(target) {
			g.jumpTo(e, target, long)
		}
	}
}

// brif emits beqz/bnez to one target and a jump to the other unless it falls through.
// The long form skips over a far jump with the inverted condition.
func (g *gen) brif(long bool) func(e *isa.Emitter, d *ir.InstData, bits uint32) {
	return func(e *isa.Emitter, d *ir.InstData, bits uint32) {
		s := e.Sink
		c := e.Arg(d, 0)
		then, els := d.Targets[0].Block, d.Targets[1].Block

		const beqz, bnez = 0, 1

		if long {
			switch {
			case e.Falls(then):
				put(s, b(bnez, c, zero, 12))
				g.jumpTo(e, els, true)
			case e.Falls(els):
				put(s, b(beqz, c, zero, 12))
				g.jumpTo(e, then, true)
			default:
				put(s, b(bnez, c, zero, 12))
				g.jumpTo(e, els, true)
				g.jumpTo(e, then, true)
			}

			return
		}

		cb := func(f3 uint32, target ir.Block) {
			put(s, b(f3, c, zero, e.Disp(target, s.Offset(), branchMin, branchMax)))
		}

		switch {
		case e.Falls(then):
			cb(beqz, els)
		case e.Falls(els):
			cb(bnez, then)
		default:
			cb(bnez, then)
			g.jumpTo(e, els, false)
		}
	}
}

func (g *gen) ret(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, i(opJalr, 0, zero, ra, 0))
}

func (g *gen) trap(e *isa.Emitter, d *ir.InstData, bits uint32) {
	e.Sink.Trap(d.Trap)
	put(e.Sink, unimp)
}

func (g *gen) call(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink

	s.Reloc(isa.RelocRiscvCall, e.FuncName(d.Func), 0)
	put(s, u(opAuipc, ra, 0), i(opJalr, 0, ra, ra, 0))
	s.Safepoint()
}

func (g *gen) callIndirect(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, i(opJalr, 0, ra, e.Arg(d, 0), 0))
	e.Sink.Safepoint()
}

// spAdjust adds c to sp going through the scratch register when c does not fit an immediate.
func (g *gen) spAdjust(s isa.CodeSink, c int64) {
	if c == 0 {
		return
	}

	if fits12(c) {
		put(s, addi(sp, sp, c))
		return
	}

	li(s, t6, c, g.rv64)
	put(s, r(rType(opReg, 0, 0), sp, sp, t6))
}

func (g *gen) prologue(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	fr := &e.Func.Frame

	g.spAdjust(s, -int64(fr.Size))

	if fr.SaveLink {
		g.slot(s, ra, int64(fr.LinkOffset), true)
	}

	for k, reg := range fr.Saved {
		g.slot(s, reg, int64(fr.SavedOffsets[k]), true)
	}
}

func (g *gen) epilogue(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	fr := &e.Func.Frame

	for k, reg := range fr.Saved {
		g.slot(s, reg, int64(fr.SavedOffsets[k]), false)
	}

	if fr.SaveLink {
		g.slot(s, ra, int64(fr.LinkOffset), false)
	}

	g.spAdjust(s, int64(fr.Size))
}
