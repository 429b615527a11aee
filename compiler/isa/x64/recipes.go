package x64

import (
	"math"

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

const commutative = 0x100

func imm32(f *ir.Function, d *ir.InstData) bool { return fitsInt32(d.Imm) }

// flag accepts extensions of an icmp result, setcc already zero extends it to the whole register.
func flag(f *ir.Function, d *ir.InstData) bool {
	def, _ := f.DFG.ValueDef(f.DFG.Resolve(d.Args[0]))
	if def == ir.NoInst {
		return false
	}

	op := f.DFG.Inst(def).Opcode

	return op == ir.Icmp || op == ir.IcmpImm
}

func buildTable(desc *isa.Descriptor) *isa.Table {
	t := isa.NewTable(desc)

	r := func(rc isa.Recipe) uint16 { return t.AddRecipe(rc) }

	iconst := r(isa.Recipe{Name: "iconst", Emit: emitIconst})
	aluRR := r(isa.Recipe{Name: "alu_rr", Emit: emitAluRR})
	aluRI := r(isa.Recipe{Name: "alu_ri", Emit: emitAluRI})
	imulRR := r(isa.Recipe{Name: "imul_rr", Emit: emitImulRR})
	imulRI := r(isa.Recipe{Name: "imul_ri", Emit: emitImulRI})
	unary := r(isa.Recipe{Name: "unary", Emit: emitUnary})

	shiftCL := r(isa.Recipe{
		Name:     "shift_cl",
		Ins:      []isa.Constraint{{}, isa.FixedReg(rcx)},
		Clobbers: isa.RegSetOf(rcx),
		Emit:     emitShiftCL,
	})
	shiftX := r(isa.Recipe{Name: "shiftx", Emit: emitShiftX})
	shiftRI := r(isa.Recipe{Name: "shift_ri", Emit: emitShiftRI})

	div := r(isa.Recipe{
		Name:          "div",
		Ins:           []isa.Constraint{isa.FixedReg(rax)},
		Outs:          []isa.Constraint{isa.FixedReg(rax)},
		EarlyClobbers: isa.RegSetOf(rdx),
		Emit:          emitDiv,
	})
	rem := r(isa.Recipe{
		Name:          "rem",
		Ins:           []isa.Constraint{isa.FixedReg(rax)},
		Outs:          []isa.Constraint{isa.FixedReg(rdx)},
		EarlyClobbers: isa.RegSetOf(rdx),
		Clobbers:      isa.RegSetOf(rax),
		Emit:          emitDiv,
	})

	icmpRR := r(isa.Recipe{Name: "icmp_rr", Emit: emitIcmpRR})
	icmpRI := r(isa.Recipe{Name: "icmp_ri", Emit: emitIcmpRI})
	cmov := r(isa.Recipe{Name: "cmov", Emit: emitCmov})

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
	faddr := r(isa.Recipe{Name: "func_addr", Emit: emitFuncAddr})
	sym := r(isa.Recipe{Name: "symbol_value", Emit: emitSymbol})

	jumpLong := r(isa.Recipe{Name: "jump_long", Emit: emitJump(true)})
	jump := r(isa.Recipe{Name: "jump", Emit: emitJump(false), Branch: &isa.BranchForm{Long: jumpLong}})
	brifLong := r(isa.Recipe{Name: "brif_long", Emit: emitBrif(true)})
	brif := r(isa.Recipe{Name: "brif", Emit: emitBrif(false), Branch: &isa.BranchForm{Long: brifLong}})

	ret := r(isa.Recipe{Name: "return", Emit: emitReturn})
	trap := r(isa.Recipe{Name: "trap", Emit: emitTrap})
	call := r(isa.Recipe{Name: "call", Call: true, Emit: emitCall})
	callInd := r(isa.Recipe{Name: "call_indirect", Call: true, Emit: emitCallIndirect})
	prologue := r(isa.Recipe{Name: "prologue", Emit: emitPrologue})
	epilogue := r(isa.Recipe{Name: "epilogue", Emit: emitEpilogue})

	t.Add(ir.Iconst, allInts, iconst, 0)

	t.Add(ir.Iadd, ints, aluRR, 0x01|commutative)
	t.Add(ir.Isub, ints, aluRR, 0x29)
	t.Add(ir.Band, ints, aluRR, 0x21|commutative)
	t.Add(ir.Bor, ints, aluRR, 0x09|commutative)
	t.Add(ir.Bxor, ints, aluRR, 0x31|commutative)

	t.AddPred(ir.IaddImm, ints, imm32, aluRI, 0)
	t.AddPred(ir.BorImm, ints, imm32, aluRI, 1)
	t.AddPred(ir.BandImm, ints, imm32, aluRI, 4)
	t.AddPred(ir.BxorImm, ints, imm32, aluRI, 6)

	t.Add(ir.Imul, ints, imulRR, 0)
	t.AddPred(ir.ImulImm, ints, imm32, imulRI, 0)

	t.Add(ir.Ineg, ints, unary, 3)
	t.Add(ir.Bnot, ints, unary, 2)

	for _, s := range []struct {
		op, imm ir.Opcode
		digit   uint32
		pp      uint32
	}{
		{ir.Ishl, ir.IshlImm, 4, 1},
		{ir.Ushr, ir.UshrImm, 5, 3},
		{ir.Sshr, ir.SshrImm, 7, 2},
	} {
		for _, typ := range ints {
			t.AddEntry(isa.Entry{Opcode: s.op, Type: typ, Requires: "bmi2", Recipe: shiftX, Bits: s.pp})
			t.AddEntry(isa.Entry{Opcode: s.op, Type: typ, Recipe: shiftCL, Bits: s.digit})
			t.AddEntry(isa.Entry{Opcode: s.imm, Type: typ, Pred: isa.ImmPred(0, int64(typ.Bits()-1)), Recipe: shiftRI, Bits: s.digit})
		}
	}

	t.Add(ir.Udiv, ints, div, 0)
	t.Add(ir.Sdiv, ints, div, 1)
	t.Add(ir.Urem, ints, rem, 0)
	t.Add(ir.Srem, ints, rem, 1)

	t.Add(ir.Icmp, ints, icmpRR, 0)
	t.AddPred(ir.IcmpImm, ints, imm32, icmpRI, 0)
	t.Add(ir.Select, ints, cmov, 0)

	t.AddPred(ir.Uextend, []ir.Type{ir.I16, ir.I32, ir.I64}, flag, copyR, 0)

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

	t.AddPred(ir.Bitcast, []ir.Type{ir.F32}, isa.ArgTypePred(ir.I32), bitcast, 0)
	t.AddPred(ir.Bitcast, []ir.Type{ir.F64}, isa.ArgTypePred(ir.I64), bitcast, 0)
	t.AddPred(ir.Bitcast, []ir.Type{ir.I32}, isa.ArgTypePred(ir.F32), bitcast, 0)
	t.AddPred(ir.Bitcast, []ir.Type{ir.I64}, isa.ArgTypePred(ir.F64), bitcast, 0)

	t.Add(ir.Fadd, floats, fop, 0x58|commutative)
	t.Add(ir.Fsub, floats, fop, 0x5c)
	t.Add(ir.Fmul, floats, fop, 0x59|commutative)
	t.Add(ir.Fdiv, floats, fop, 0x5e)

	t.AddPred(ir.Load, all, imm32, ld, 0)
	t.AddPred(ir.Store, all, imm32, st, 0)

	for _, op := range []ir.Opcode{ir.Uload8, ir.Sload8, ir.Uload16, ir.Sload16, ir.Istore8, ir.Istore16} {
		rc := ld
		if op.IsStore() {
			rc = st
		}

		t.AddPred(op, ints, imm32, rc, 0)
	}

	t.AddPred(ir.Uload32, []ir.Type{ir.I64}, imm32, ld, 0)
	t.AddPred(ir.Sload32, []ir.Type{ir.I64}, imm32, ld, 0)
	t.AddPred(ir.Istore32, []ir.Type{ir.I64}, imm32, st, 0)

	t.Add(ir.StackLoad, all, sld, 0)
	t.Add(ir.StackStore, all, sst, 0)
	t.Add(ir.StackAddr, []ir.Type{ir.I64}, saddr, 0)

	t.Add(ir.Spill, all, spill, 0)
	t.Add(ir.Fill, all, fill, 0)
	t.Add(ir.Regmove, all, regmove, 0)
	t.Add(ir.Regspill, all, regspill, 0)
	t.Add(ir.Regfill, all, regfill, 0)

	t.Add(ir.FuncAddr, []ir.Type{ir.I64}, faddr, 0)
	t.Add(ir.SymbolValue, []ir.Type{ir.I64}, sym, 0)

	t.Add(ir.Jump, none, jump, 0)
	t.Add(ir.Brif, ints, brif, 0)
	t.Add(ir.Return, none, ret, 0)
	t.Add(ir.Trap, none, trap, 0)
	t.Add(ir.Call, none, call, 0)
	t.Add(ir.CallIndirect, none, callInd, 0)
	t.Add(ir.Prologue, none, prologue, 0)
	t.Add(ir.Epilogue, none, epilogue, 0)

	return t
}

func emitIconst(e *isa.Emitter, d *ir.InstData, bits uint32) {
	movRI(e.Sink, e.Res(d, 0), d.Imm, d.Type == ir.I64)
}

// twoAddr computes out = x op y with a destructive op out, src.
func twoAddr(e *isa.Emitter, d *ir.InstData, comm bool, do func(dst, src ir.RegUnit)) {
	out, x, y := e.Res(d, 0), e.Arg(d, 0), e.Arg(d, 1)

	switch {
	case out == y && out != x && comm:
		do(out, x)
	case out == y && out != x:
		sc := e.Scratch(e.ClassOf(d.Results[0]))

		movRR(e.Sink, sc, y)
		movRR(e.Sink, out, x)
		do(out, sc)
	default:
		movRR(e.Sink, out, x)
		do(out, y)
	}
}

func emitAluRR(e *isa.Emitter, d *ir.InstData, bits uint32) {
	w := d.Type == ir.I64

	twoAddr(e, d, bits&commutative != 0, func(dst, src ir.RegUnit) {
		rr(e.Sink, 0, w, op(byte(bits)), src, dst)
	})
}

func emitAluRI(e *isa.Emitter, d *ir.InstData, bits uint32) {
	out := e.Res(d, 0)

	movRR(e.Sink, out, e.Arg(d, 0))
	aluRI(e.Sink, d.Type == ir.I64, byte(bits), out, d.Imm)
}

func emitImulRR(e *isa.Emitter, d *ir.InstData, bits uint32) {
	w := d.Type == ir.I64

	twoAddr(e, d, true, func(dst, src ir.RegUnit) {
		rr(e.Sink, 0, w, op(0x0f, 0xaf), dst, src)
	})
}

func emitImulRI(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	w := d.Type == ir.I64

	if fitsInt8(d.Imm) {
		rr(s, 0, w, op(0x6b), e.Res(d, 0), e.Arg(d, 0))
		s.Put1(byte(d.Imm))

		return
	}

	rr(s, 0, w, op(0x69), e.Res(d, 0), e.Arg(d, 0))
	s.Put4(uint32(d.Imm))
}

func emitUnary(e *isa.Emitter, d *ir.InstData, bits uint32) {
	out := e.Res(d, 0)

	movRR(e.Sink, out, e.Arg(d, 0))
	ext(e.Sink, d.Type == ir.I64, op(0xf7), byte(bits), regOp(out))
}

func emitShiftCL(e *isa.Emitter, d *ir.InstData, bits uint32) {
	out := e.Res(d, 0)

	movRR(e.Sink, out, e.Arg(d, 0))
	ext(e.Sink, d.Type == ir.I64, op(0xd3), byte(bits), regOp(out))
}

func emitShiftX(e *isa.Emitter, d *ir.InstData, bits uint32) {
	vex(e.Sink, byte(bits), d.Type == ir.I64, 0xf7, e.Res(d, 0), e.Arg(d, 0), e.Arg(d, 1))
}

func emitShiftRI(e *isa.Emitter, d *ir.InstData, bits uint32) {
	out := e.Res(d, 0)

	movRR(e.Sink, out, e.Arg(d, 0))
	ext(e.Sink, d.Type == ir.I64, op(0xc1), byte(bits), regOp(out))
	e.Sink.Put1(byte(d.Imm))
}

// emitDiv divides rdx:rax by the second argument.
// Quotient is left in rax and remainder in rdx.
func emitDiv(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	w := d.Type == ir.I64
	signed := bits&1 != 0

	if signed {
		if w {
			s.Put1(0x48)
		}

		s.Put1(0x99) // cdq, cqo
	} else {
		rr(s, 0, false, op(0x31), rdx, rdx)
	}

	digit := byte(6)
	if signed {
		digit = 7
	}

	s.Trap(ir.TrapIntegerDivisionByZero)
	ext(s, w, op(0xf7), digit, regOp(e.Arg(d, 1)))
}

func setcc(s isa.CodeSink, cc ir.IntCC, out ir.RegUnit) {
	inst{op: op(0x0f, 0x90|condCode(cc)), ext: true, rm: regOp(out), byteRegs: true}.emit(s)
	inst{op: op(0x0f, 0xb6), reg: out, rm: regOp(out), byteRegs: true}.emit(s)
}

func emitIcmpRR(e *isa.Emitter, d *ir.InstData, bits uint32) {
	rr(e.Sink, 0, d.Type == ir.I64, op(0x39), e.Arg(d, 1), e.Arg(d, 0))
	setcc(e.Sink, d.Cond, e.Res(d, 0))
}

func emitIcmpRI(e *isa.Emitter, d *ir.InstData, bits uint32) {
	aluRI(e.Sink, d.Type == ir.I64, 7, e.Arg(d, 0), d.Imm)
	setcc(e.Sink, d.Cond, e.Res(d, 0))
}

func test(s isa.CodeSink, t ir.Type, r ir.RegUnit) {
	switch t {
	case ir.I8:
		inst{op: op(0x84), reg: r, rm: regOp(r), byteRegs: true}.emit(s)
	case ir.I16:
		rr(s, 0x66, false, op(0x85), r, r)
	default:
		rr(s, 0, t == ir.I64, op(0x85), r, r)
	}
}

func emitCmov(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	w := d.Type == ir.I64
	c, x, y, out := e.Arg(d, 0), e.Arg(d, 1), e.Arg(d, 2), e.Res(d, 0)

	test(s, e.Func.DFG.ValueType(d.Args[0]), c)

	switch {
	case out == x:
		rr(s, 0, w, op(0x0f, 0x44), out, y) // cmovz
	case out == y:
		rr(s, 0, w, op(0x0f, 0x45), out, x) // cmovnz
	default:
		movRR(s, out, y)
		rr(s, 0, w, op(0x0f, 0x45), out, x)
	}
}

func emitUextend(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	out, x := e.Res(d, 0), e.Arg(d, 0)

	switch e.Func.DFG.ValueType(d.Args[0]) {
	case ir.I8:
		inst{op: op(0x0f, 0xb6), reg: out, rm: regOp(x), byteRegs: true}.emit(s)
	case ir.I16:
		rr(s, 0, false, op(0x0f, 0xb7), out, x)
	default:
		rr(s, 0, false, op(0x8b), out, x)
	}
}

func emitSextend(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	out, x := e.Res(d, 0), e.Arg(d, 0)
	w := d.Type == ir.I64

	switch e.Func.DFG.ValueType(d.Args[0]) {
	case ir.I8:
		inst{w: w, op: op(0x0f, 0xbe), reg: out, rm: regOp(x), byteRegs: true}.emit(s)
	case ir.I16:
		rr(s, 0, w, op(0x0f, 0xbf), out, x)
	default:
		rr(s, 0, true, op(0x63), out, x)
	}
}

func emitCopy(e *isa.Emitter, d *ir.InstData, bits uint32) {
	movRR(e.Sink, e.Res(d, 0), e.Arg(d, 0))
}

func emitBitcast(e *isa.Emitter, d *ir.InstData, bits uint32) {
	out, x := e.Res(d, 0), e.Arg(d, 0)

	if d.Type.IsFloat() {
		rr(e.Sink, 0x66, d.Type == ir.F64, op(0x0f, 0x6e), out, x)
		return
	}

	rr(e.Sink, 0x66, d.Type == ir.I64, op(0x0f, 0x7e), x, out)
}

func emitFop(e *isa.Emitter, d *ir.InstData, bits uint32) {
	pfx := byte(0xf3)
	if d.Type == ir.F64 {
		pfx = 0xf2
	}

	twoAddr(e, d, bits&commutative != 0, func(dst, src ir.RegUnit) {
		rr(e.Sink, pfx, false, op(0x0f, byte(bits)), dst, src)
	})
}

func memSize(d *ir.InstData) int {
	if n := d.Opcode.MemBytes(); n != 0 {
		return n
	}

	return d.Type.Bytes()
}

func emitLoad(e *isa.Emitter, d *ir.InstData, bits uint32) {
	load(e.Sink, d.Type, memSize(d), d.Opcode.SignedLoad(), e.Res(d, 0), e.Arg(d, 0), int32(d.Imm))
}

func emitStore(e *isa.Emitter, d *ir.InstData, bits uint32) {
	store(e.Sink, d.Type, memSize(d), e.Arg(d, 0), e.Arg(d, 1), int32(d.Imm))
}

func emitStackLoad(e *isa.Emitter, d *ir.InstData, bits uint32) {
	load(e.Sink, d.Type, d.Type.Bytes(), false, e.Res(d, 0), rsp, int32(e.SlotOffset(d.Slot)+d.Imm))
}

func emitStackStore(e *isa.Emitter, d *ir.InstData, bits uint32) {
	store(e.Sink, d.Type, d.Type.Bytes(), e.Arg(d, 0), rsp, int32(e.SlotOffset(d.Slot)+d.Imm))
}

func emitStackAddr(e *isa.Emitter, d *ir.InstData, bits uint32) {
	inst{w: true, op: op(0x8d), reg: e.Res(d, 0), rm: memOp(rsp, int32(e.SlotOffset(d.Slot)+d.Imm))}.emit(e.Sink)
}

func emitSpill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	slotStore(e.Sink, d.Type, e.Arg(d, 0), int32(e.SpillOffset(d.Results[0])))
}

func emitFill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	slotLoad(e.Sink, d.Type, e.Res(d, 0), int32(e.SpillOffset(d.Args[0])))
}

func emitRegmove(e *isa.Emitter, d *ir.InstData, bits uint32) {
	src, dst := d.RegmoveUnits()
	movRR(e.Sink, dst, src)
}

func emitRegspill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	slotStore(e.Sink, d.Type, ir.RegUnit(d.Imm), int32(e.SlotOffset(d.Slot)))
}

func emitRegfill(e *isa.Emitter, d *ir.InstData, bits uint32) {
	slotLoad(e.Sink, d.Type, ir.RegUnit(d.Imm), int32(e.SlotOffset(d.Slot)))
}

func emitFuncAddr(e *isa.Emitter, d *ir.InstData, bits uint32) {
	opReg(e.Sink, true, 0xb8, e.Res(d, 0))
	e.Sink.Reloc(isa.RelocAbs8, e.FuncName(d.Func), 0)
	e.Sink.Put8(0)
}

func emitSymbol(e *isa.Emitter, d *ir.InstData, bits uint32) {
	name, add := e.Global(d.Global)

	opReg(e.Sink, true, 0xb8, e.Res(d, 0))
	e.Sink.Reloc(isa.RelocAbs8, name, add)
	e.Sink.Put8(0)
}

func jmp(e *isa.Emitter, target ir.Block, long bool) {
	s := e.Sink

	if long {
		s.Put1(0xe9)
		s.Put4(uint32(e.Disp(target, s.Offset()+4, math.MinInt32, math.MaxInt32)))

		return
	}

	s.Put1(0xeb)
	s.Put1(byte(e.Disp(target, s.Offset()+1, -128, 127)))
}

func jcc(e *isa.Emitter, cc byte, target ir.Block, long bool) {
	s := e.Sink

	if long {
		s.Put1(0x0f)
		s.Put1(0x80 | cc)
		s.Put4(uint32(e.Disp(target, s.Offset()+4, math.MinInt32, math.MaxInt32)))

		return
	}

	s.Put1(0x70 | cc)
	s.Put1(byte(e.Disp(target, s.Offset()+1, -128, 127)))
}

func emitJump(long bool) func(e *isa.Emitter, d *ir.InstData, bits uint32) {
	return func(e *isa.Emitter, d *ir.InstData, bits uint32) {
		if target := d.Targets[0].Block; !e.Falls(target) {
			jmp(e, target, long)
		}
	}
}

func emitBrif(long bool) func(e *isa.Emitter, d *ir.InstData, bits uint32) {
	return func(e *isa.Emitter, d *ir.InstData, bits uint32) {
		then, els := d.Targets[0].Block, d.Targets[1].Block

		test(e.Sink, d.Type, e.Arg(d, 0))

		switch {
		case e.Falls(then):
			jcc(e, 0x4, els, long)
		case e.Falls(els):
			jcc(e, 0x5, then, long)
		default:
			jcc(e, 0x5, then, long)
			jmp(e, els, long)
		}
	}
}

func emitReturn(e *isa.Emitter, d *ir.InstData, bits uint32) {
	e.Sink.Put1(0xc3)
}

func emitTrap(e *isa.Emitter, d *ir.InstData, bits uint32) {
	e.Sink.Trap(d.Trap)
	e.Sink.Put2(0x0b0f) // ud2
}

func emitCall(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink

	s.Put1(0xe8)
	s.Reloc(isa.RelocX86CallPCRel4, e.FuncName(d.Func), -4)
	s.Put4(0)
	s.Safepoint()
}

func emitCallIndirect(e *isa.Emitter, d *ir.InstData, bits uint32) {
	ext(e.Sink, false, op(0xff), 2, regOp(e.Arg(d, 0)))
	e.Sink.Safepoint()
}

func emitPrologue(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	fr := &e.Func.Frame

	// push rbp; mov rbp, rsp
	s.Put1(0x55)
	rr(s, 0, true, op(0x89), rsp, rbp)

	if fr.Size != 0 {
		aluRI(s, true, 5, rsp, int64(fr.Size))
	}

	for k, r := range fr.Saved {
		slotStore(s, saveType(r), r, fr.SavedOffsets[k])
	}
}

func emitEpilogue(e *isa.Emitter, d *ir.InstData, bits uint32) {
	s := e.Sink
	fr := &e.Func.Frame

	for k, r := range fr.Saved {
		slotLoad(s, saveType(r), r, fr.SavedOffsets[k])
	}

	if fr.Size != 0 {
		aluRI(s, true, 0, rsp, int64(fr.Size))
	}

	s.Put1(0x5d) // pop rbp
}

func saveType(r ir.RegUnit) ir.Type {
	if r >= xmm0 {
		return ir.F64
	}

	return ir.I64
}
