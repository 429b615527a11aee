package arm64

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

var (
	ints    = []ir.Type{ir.I32, ir.I64}
	allInts = []ir.Type{ir.I8, ir.I16, ir.I32, ir.I64}
	floats  = []ir.Type{ir.F32, ir.F64}
	all     = []ir.Type{ir.I8, ir.I16, ir.I32, ir.I64, ir.F32, ir.F64}
	none    = []ir.Type{ir.TypeInvalid}
)

func addImm(f *ir.Function, d *ir.InstData) bool { return d.Imm > -4096 && d.Imm < 4096 }

func memImm(f *ir.Function, d *ir.InstData) bool {
	size := d.Opcode.MemBytes()
	if size == 0 {
		size = d.Type.Bytes()
	}

	return memImmOK(d.Imm, size)
}

func buildTable(desc *isa.Descriptor) *isa.Table {
	t := isa.NewTable(desc)

	r := func(rc isa.Recipe) uint16 { return t.AddRecipe(rc) }

	iconst := r(isa.Recipe{Name: "iconst", Emit: emitIconst})
	rrrR := r(isa.Recipe{Name: "rrr", Emit: emitRRR})
	addI := r(isa.Recipe{Name: "add_imm", Emit: emitAddImm})
	mul := r(isa.Recipe{Name: "mul", Emit: emitMul})
	div := r(isa.Recipe{Name: "div", Emit: emitDiv})
	unary := r(isa.Recipe{Name: "unary", Emit: emitUnary})
	shiftI := r(isa.Recipe{Name: "shift_imm", Emit: emitShiftImm})
	icmp := r(isa.Recipe{Name: "icmp", Emit: emitIcmp})
	icmpI := r(isa.Recipe{Name: "icmp_imm", Emit: emitIcmpImm})
	sel := r(isa.Recipe{Name: "csel", Emit: emitCsel})
	uext := r(isa.Recipe{Name: "uextend", Emit: emitUextend})
	sext := r(isa.Recipe{Name: "sextend", Emit: emitSextend})
	copyR := r(isa.Recipe{Name: "copy", Emit: emitCopy})
	bitcast := r(isa.Recipe{Name: "bitcast", Emit: emitBitcast})
	fop := r(isa.Recipe{Name: "fop", Emit: emitFop})
	ld := r(isa.Recipe{Name: "load", Emit: emitLoad})
	st := r(isa.Recipe{Name: "store", Emit: emitStore})
	sld := r(isa.Recipe{Name: "stack_load", Emit: emitStackLoad})
	sst := r(isa.Recipe{Name: "stack_store", Emit: emitStackStore})
	saddr := r(isa.Recipe{Name: "stack_addr", Emit: emitStackAddr})
	spill := r(isa.Recipe{Name: "spill", Emit: emitSpill})
	fill := r(isa.Recipe{Name: "fill", Emit: emitFill})
	regmove := r(isa.Recipe{Name: "regmove", Emit: emitRegmove})
	regspill := r(isa.Recipe{Name: "regspill", Emit: emitRegspill})
	regfill := r(isa.Recipe{Name: "regfill", Emit: emitRegfill})
	lit := r(isa.Recipe{Name: "literal", Emit: emitLiteral})

	jump := r(isa.Recipe{Name: "jump", Emit: emitJump})
	brifLong := r(isa.Recipe{Name: "brif_long", Emit: emitBrif(true)})
	brif := r(isa.Recipe{Name: "brif", Emit: emitBrif(false), Branch: &isa.BranchForm{Long: brifLong}})
	retR := r(isa.Recipe{Name: "return", Emit: emitReturn})
	trap := r(isa.Recipe{Name: "trap", Emit: emitTrap})
	call := r(isa.Recipe{Name: "call", Call: true, Emit: emitCall})
	callInd := r(isa.Recipe{Name: "call_indirect", Call: true, Emit: emitCallIndirect})
	prologue := r(isa.Recipe{Name: "prologue", Emit: emitPrologue})
	epilogue := r(isa.Recipe{Name: "epilogue", Emit: emitEpilogue})

	t.Add(ir.Iconst, allInts, iconst, 0)

	t.Add(ir.Iadd, ints, rrrR, addRR)
	t.Add(ir.Isub, ints, rrrR, subRR)
	t.Add(ir.Band, ints, rrrR, andRR)
	t.Add(ir.Bor, ints, rrrR, orrRR)
	t.Add(ir.Bxor, ints, rrrR, eorRR)
	t.Add(ir.Ishl, ints, rrrR, lslv)
	t.Add(ir.Ushr, ints, rrrR, lsrv)
	t.Add(ir.Sshr, ints, rrrR, asrv)
	t.AddPred(ir.IaddImm, ints, addImm, addI, 0)
	t.Add(ir.Imul, ints, mul, 0)
	t.Add(ir.Udiv, ints, div, udiv)
	t.Add(ir.Sdiv, ints, div, sdiv)
	t.Add(ir.Ineg, ints, unary, subRR)
	t.Add(ir.Bnot, ints, unary, ornRR)

	for _, typ := range ints {
		shamt := isa.ImmPred(0, int64(typ.Bits()-1))

		t.AddPred(ir.IshlImm, []ir.Type{typ}, shamt, shiftI, 0)
		t.AddPred(ir.UshrImm, []ir.Type{typ}, shamt, shiftI, 1)
		t.AddPred(ir.SshrImm, []ir.Type{typ}, shamt, shiftI, 2)
	}

	t.Add(ir.Icmp, ints, icmp, 0)
	t.AddPred(ir.IcmpImm, ints, addImm, icmpI, 0)
	t.Add(ir.Select, all, sel, 0)

	for _, to := range []ir.Type{ir.I16, ir.I32, ir.I64} {
		for _, from := range allInts {
			if from.Bits() >= to.Bits() {
				continue
			}

			t.AddPred(ir.Uextend, []ir.Type{to}, isa.ArgTypePred(from), uext, 0)
			t.AddPred(ir.Sextend, []ir.Type{to}, isa.ArgTypePred(from), sext, 0)
		}
	}

	t.Add(ir.Ireduce, []ir.Type{ir.I8, ir.I16, ir.I32}, copyR, 0)
	t.Add(ir.Copy, all, copyR, 0)

	t.AddPred(ir.Bitcast, []ir.Type{ir.F32}, isa.ArgTypePred(ir.I32), bitcast, 0x1e270000)
	t.AddPred(ir.Bitcast, []ir.Type{ir.F64}, isa.ArgTypePred(ir.I64), bitcast, 0x9e670000)
	t.AddPred(ir.Bitcast, []ir.Type{ir.I32}, isa.ArgTypePred(ir.F32), bitcast, 0x1e260000)
	t.AddPred(ir.Bitcast, []ir.Type{ir.I64}, isa.ArgTypePred(ir.F64), bitcast, 0x9e660000)

	t.Add(ir.Fadd, floats, fop, 0x1e202800)
	t.Add(ir.Fsub, floats, fop, 0x1e203800)
	t.Add(ir.Fmul, floats, fop, 0x1e200800)
	t.Add(ir.Fdiv, floats, fop, 0x1e201800)

	t.AddPred(ir.Load, all, memImm, ld, 0)
	t.AddPred(ir.Store, all, memImm, st, 0)

	for _, op := range []ir.Opcode{ir.Uload8, ir.Sload8, ir.Uload16, ir.Sload16, ir.Istore8, ir.Istore16} {
		rc := ld
		if op.IsStore() {
			rc = st
		}

		t.AddPred(op, ints, memImm, rc, 0)
	}

	t.AddPred(ir.Uload32, []ir.Type{ir.I64}, memImm, ld, 0)
	t.AddPred(ir.Sload32, []ir.Type{ir.I64}, memImm, ld, 0)
	t.AddPred(ir.Istore32, []ir.Type{ir.I64}, memImm, st, 0)

	t.Add(ir.StackLoad, all, sld, 0)
	t.Add(ir.StackStore, all, sst, 0)
	t.Add(ir.StackAddr, []ir.Type{ir.I64}, saddr, 0)
	t.Add(ir.Spill, all, spill, 0)
	t.Add(ir.Fill, all, fill, 0)
	t.Add(ir.Regmove, all, regmove, 0)
	t.Add(ir.Regspill, all, regspill, 0)
	t.Add(ir.Regfill, all, regfill, 0)
	t.Add(ir.FuncAddr, []ir.Type{ir.I64}, lit, 0)
	t.Add(ir.SymbolValue, []ir.Type{ir.I64}, lit, 1)

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

func emitIconst(e *isa.Emitter, d *ir.InstData, bits uint32) {
	t := d.Type
	if t != ir.I64 {
		t = ir.I32
	}

	movImm(e.Sink, e.Res(d, 0), d.Imm, t)
}

func emitRRR(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, rrr(bits|sf(d.Type), e.Res(d, 0), e.Arg(d, 0), e.Arg(d, 1)))
}

func emitAddImm(e *isa.Emitter, d *ir.InstData, bits uint32) {
	base, c := uint32(addRI), d.Imm
	if c < 0 {
		base, c = subRI, -c
	}

	put(e.Sink, rri(base|sf(d.Type), e.Res(d, 0), e.Arg(d, 0), uint32(c)))
}

func emitMul(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, rrr(madd|sf(d.Type), e.Res(d, 0), e.Arg(d, 0), e.Arg(d, 1)))
}

// emitDiv checks the divisor explicitly, the hardware returns zero instead of trapping.
func emitDiv(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	y := e.Arg(d, 1)

	put(s, branch19(cbnz|sf(d.Type), y, 8))
	s.Trap(ir.TrapIntegerDivisionByZero)
	put(s, udf)
	put(s, rrr(bits|sf(d.Type), e.Res(d, 0), e.Arg(d, 0), y))
}

func emitUnary(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, rrr(bits|sf(d.Type), e.Res(d, 0), xzr, e.Arg(d, 0)))
}

func emitShiftImm(e *isa.Emitter, d *ir.InstData, bits uint32) {
	ubfm, sbfm, w := uint32(ubfm32), uint32(sbfm32), uint32(32)
	if d.Type == ir.I64 {
		ubfm, sbfm, w = ubfm64, sbfm64, 64
	}

	sh := uint32(d.Imm)
	rd, rn := e.Res(d, 0), e.Arg(d, 0)

	switch bits {
	case 0: // lsl
		put(e.Sink, bfm(ubfm, rd, rn, (w-sh)%w, w-1-sh))
	case 1: // lsr
		put(e.Sink, bfm(ubfm, rd, rn, sh, w-1))
	default: // asr
		put(e.Sink, bfm(sbfm, rd, rn, sh, w-1))
	}
}

func emitIcmp(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink,
		cmpRR|sf(d.Type)|num(e.Arg(d, 1))<<16|num(e.Arg(d, 0))<<5,
		cset|uint32(condOf(d.Cond).invert())<<12|num(e.Res(d, 0)),
	)
}

func emitIcmpImm(e *isa.Emitter, d *ir.InstData, bits uint32) {
	base, c := uint32(cmpRI), d.Imm
	if c < 0 {
		base, c = cmnRI, -c
	}

	put(e.Sink,
		base|sf(d.Type)|uint32(c)<<10|num(e.Arg(d, 0))<<5,
		cset|uint32(condOf(d.Cond).invert())<<12|num(e.Res(d, 0)),
	)
}

// testCond sets flags from a condition value of type t.
func testCond(s isa.CodeSink, t ir.Type, r ir.RegUnit) {
	switch t {
	case ir.I8:
		put(s, 0x72001c1f|num(r)<<5) // tst w, #0xff
	case ir.I16:
		put(s, 0x72003c1f|num(r)<<5) // tst w, #0xffff
	default:
		put(s, cmpRI|sf(t)|num(r)<<5)
	}
}

func emitCsel(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink

	testCond(s, e.Func.DFG.ValueType(d.Args[0]), e.Arg(d, 0))

	rd, rn, rm := e.Res(d, 0), e.Arg(d, 1), e.Arg(d, 2)

	switch d.Type {
	case ir.F32:
		put(s, 0x1e200c00|num(rm)<<16|uint32(ne)<<12|num(rn)<<5|num(rd))
	case ir.F64:
		put(s, 0x1e600c00|num(rm)<<16|uint32(ne)<<12|num(rn)<<5|num(rd))
	default:
		put(s, csel|sf(d.Type)|num(rm)<<16|uint32(ne)<<12|num(rn)<<5|num(rd))
	}
}

func emitUextend(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rd, rn := e.Res(d, 0), e.Arg(d, 0)

	switch e.Func.DFG.ValueType(d.Args[0]) {
	case ir.I8:
		put(e.Sink, bfm(ubfm32, rd, rn, 0, 7))
	case ir.I16:
		put(e.Sink, bfm(ubfm32, rd, rn, 0, 15))
	default:
		put(e.Sink, orrRR|num(rn)<<16|0x1f<<5|num(rd)) // mov w, w
	}
}

func emitSextend(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rd, rn := e.Res(d, 0), e.Arg(d, 0)

	base := uint32(sbfm32)
	if d.Type == ir.I64 {
		base = sbfm64
	}

	switch e.Func.DFG.ValueType(d.Args[0]) {
	case ir.I8:
		put(e.Sink, bfm(base, rd, rn, 0, 7))
	case ir.I16:
		put(e.Sink, bfm(base, rd, rn, 0, 15))
	default:
		put(e.Sink, bfm(sbfm64, rd, rn, 0, 31))
	}
}

func emitCopy(e *isa.Emitter, d *ir.InstData, bits uint32) {
	movRR(e.Sink, e.Res(d, 0), e.Arg(d, 0))
}

func emitBitcast(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, bits|num(e.Arg(d, 0))<<5|num(e.Res(d, 0)))
}

func emitFop(e *isa.Emitter, d *ir.InstData, bits uint32) {
	if d.Type == ir.F64 {
		bits |= 0x00400000
	}

	put(e.Sink, rrr(bits, e.Res(d, 0), e.Arg(d, 0), e.Arg(d, 1)))
}

func memSize(d *ir.InstData) int {
	if n := d.Opcode.MemBytes(); n != 0 {
		return n
	}

	return d.Type.Bytes()
}

func emitLoad(e *isa.Emitter, d *ir.InstData, bits uint32) {
	size := memSize(d)
	mem(e.Sink, memBase(d.Type, size, d.Opcode.SignedLoad(), false), size, e.Res(d, 0), e.Arg(d, 0), d.Imm)
}

func emitStore(e *isa.Emitter, d *ir.InstData, bits uint32) {
	size := memSize(d)
	mem(e.Sink, memBase(d.Type, size, false, true), size, e.Arg(d, 0), e.Arg(d, 1), d.Imm)
}

func emitStackLoad(e *isa.Emitter, d *ir.InstData, bits uint32) {
	size := d.Type.Bytes()
	mem(e.Sink, memBase(d.Type, size, false, false), size, e.Res(d, 0), sp, e.SlotOffset(d.Slot)+d.Imm)
}

func emitStackStore(e *isa.Emitter, d *ir.InstData, bits uint32) {
	size := d.Type.Bytes()
	mem(e.Sink, memBase(d.Type, size, false, true), size, e.Arg(d, 0), sp, e.SlotOffset(d.Slot)+d.Imm)
}

func emitStackAddr(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rd := e.Res(d, 0)
	off := e.SlotOffset(d.Slot) + d.Imm

	if off >= 0 && off < 4096 {
		put(e.Sink, rri(addRI|1<<31, rd, sp, uint32(off)))
		return
	}

	movImm(e.Sink, rd, off, ir.I64)
	put(e.Sink, 0x8b206000|num(rd)<<16|num(sp)<<5|num(rd)) // add x, sp, x, uxtx
}

func spillSlot(s isa.CodeSink, r ir.RegUnit, t ir.Type, off int64, store bool) {
	st := slotType(r, t)
	mem(s, memBase(st, st.Bytes(), false, store), st.Bytes(), r, sp, off)
}

func emitSpill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	spillSlot(e.Sink, e.Arg(d, 0), d.Type, e.SpillOffset(d.Results[0]), true)
}

func emitFill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	spillSlot(e.Sink, e.Res(d, 0), d.Type, e.SpillOffset(d.Args[0]), false)
}

func emitRegmove(e *isa.Emitter, d *ir.InstData, bits uint32) {
	src, dst := d.RegmoveUnits()
	movRR(e.Sink, dst, src)
}

func emitRegspill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	spillSlot(e.Sink, ir.RegUnit(d.Imm), d.Type, e.SlotOffset(d.Slot), true)
}

func emitRegfill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	spillSlot(e.Sink, ir.RegUnit(d.Imm), d.Type, e.SlotOffset(d.Slot), false)
}

// emitLiteral loads an address from an inline literal: ldr x, 8; b 12; .quad sym.
func emitLiteral(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink

	name, add := "", int64(0)
	if bits == 0 {
		name = e.FuncName(d.Func)
	} else {
		name, add = e.Global(d.Global)
	}

	put(s, 0x58000040|num(e.Res(d, 0)), b|3)
	s.Reloc(isa.RelocAbs8, name, add)
	s.Put8(0)
}

const (
	cond19Min = -1 << 20
	cond19Max = 1<<20 - 4
	imm26Min  = -1 << 27
	imm26Max  = 1<<27 - 4
)

func emitB(e *isa.Emitter, target ir.Block) {
	s := e.Sink
	put(s, branch26(b, e.Disp(target, s.Offset(), imm26Min, imm26Max)))
}

func emitJump(e *isa.Emitter, d *ir.InstData, bits uint32) {
	if target := d.Targets[0].Block; !e.Falls(target) {
		emitB(e, target)
	}
}

func emitBrif(long bool) func(e *isa.Emitter, d *ir.InstData, bits uint32) {
	return func(e *isa.Emitter, d *ir.InstData, bits uint32) {
		s := e.Sink
		c := e.Arg(d, 0)
		then, els := d.Targets[0].Block, d.Targets[1].Block

		cb := func(base uint32, target ir.Block) {
			put(s, branch19(base|sf(d.Type), c, e.Disp(target, s.Offset(), cond19Min, cond19Max)))
		}

		if long {
			switch {
			case e.Falls(then):
				put(s, branch19(cbnz|sf(d.Type), c, 8))
				emitB(e, els)
			case e.Falls(els):
				put(s, branch19(cbz|sf(d.Type), c, 8))
				emitB(e, then)
			default:
				put(s, branch19(cbz|sf(d.Type), c, 8))
				emitB(e, then)
				emitB(e, els)
			}

			return
		}

		switch {
		case e.Falls(then):
			cb(cbz, els)
		case e.Falls(els):
			cb(cbnz, then)
		default:
			cb(cbnz, then)
			emitB(e, els)
		}
	}
}

func emitReturn(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, ret)
}

func emitTrap(e *isa.Emitter, d *ir.InstData, bits uint32) {
	e.Sink.Trap(d.Trap)
	put(e.Sink, udf)
}

func emitCall(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink

	s.Reloc(isa.RelocArm64Call, e.FuncName(d.Func), 0)
	put(s, bl)
	s.Safepoint()
}

func emitCallIndirect(e *isa.Emitter, d *ir.InstData, bits uint32) {
	put(e.Sink, blr|num(e.Arg(d, 0))<<5)
	e.Sink.Safepoint()
}

func emitPrologue(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	fr := &e.Func.Frame

	// stp x29, x30, [sp, #-16]!; mov x29, sp
	put(s, 0xa9bf7bfd, 0x910003fd)

	spAdjust(s, fr.Size, true)

	for k, r := range fr.Saved {
		spillSlot(s, r, ir.TypeInvalid, int64(fr.SavedOffsets[k]), true)
	}
}

func emitEpilogue(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	fr := &e.Func.Frame

	for k, r := range fr.Saved {
		spillSlot(s, r, ir.TypeInvalid, int64(fr.SavedOffsets[k]), false)
	}

	spAdjust(s, fr.Size, false)

	// ldp x29, x30, [sp], #16
	put(s, 0xa8c17bfd)
}
