package ir

type (
	// InstBuilder constructs instructions at a Cursor.
	InstBuilder struct {
		c       *Cursor
		replace Inst
	}

	// Builder populates a function block by block.
	Builder struct {
		Func *Function

		cur Cursor
	}
)

func NewBuilder(f *Function) *Builder {
	return &Builder{
		Func: f,
		cur:  Cursor{Func: f, inst: NoInst, block: NoBlock},
	}
}

// CreateBlock makes a new block and appends it to the layout.
func (b *Builder) CreateBlock() Block {
	blk := b.Func.DFG.MakeBlock()
	b.Func.Layout.AppendBlock(blk)

	return blk
}

func (b *Builder) AppendBlockParam(blk Block, t Type) Value {
	return b.Func.DFG.AppendBlockParam(blk, t)
}

// AppendEntryParams adds block parameters matching the function signature.
func (b *Builder) AppendEntryParams(blk Block) []Value {
	r := make([]Value, len(b.Func.Sig.Params))

	for i, t := range b.Func.Sig.Params {
		r[i] = b.Func.DFG.AppendBlockParam(blk, t)
	}

	return r
}

func (b *Builder) SwitchToBlock(blk Block) {
	b.cur.AtBottom(blk)
}

func (b *Builder) CurrentBlock() Block { return b.cur.block }

func (b *Builder) Ins() InstBuilder { return b.cur.Ins() }

func (b *Builder) CreateStackSlot(size int32) StackSlot {
	return b.Func.CreateStackSlot(SlotExplicit, size)
}

func (b *Builder) ImportFunction(name string, sig Signature) FuncRef {
	return b.Func.DFG.ImportFunction(name, b.Func.DFG.ImportSignature(sig))
}

func (b *Builder) ImportSignature(sig Signature) SigRef {
	return b.Func.DFG.ImportSignature(sig)
}

func (ib InstBuilder) Build(data InstData) Inst {
	dfg := &ib.c.Func.DFG

	if ib.replace != NoInst {
		dfg.Replace(ib.replace, data)
		return ib.replace
	}

	i := dfg.MakeInst(data)
	dfg.MakeResults(i)
	ib.c.insert(i)

	return i
}

func (ib InstBuilder) value(data InstData) Value {
	return ib.c.Func.DFG.FirstResult(ib.Build(data))
}

func (ib InstBuilder) typeOf(v Value) Type {
	return ib.c.Func.DFG.ValueType(v)
}

func (ib InstBuilder) Iconst(t Type, c int64) Value {
	return ib.value(InstData{Opcode: Iconst, Type: t, Imm: c})
}

func (ib InstBuilder) F32const(bits uint32) Value {
	return ib.value(InstData{Opcode: F32const, Type: F32, Imm: int64(bits)})
}

func (ib InstBuilder) F64const(bits uint64) Value {
	return ib.value(InstData{Opcode: F64const, Type: F64, Imm: int64(bits)})
}

// Binary builds a two operand instruction typed by x.
func (ib InstBuilder) Binary(op Opcode, x, y Value) Value {
	return ib.value(InstData{Opcode: op, Type: ib.typeOf(x), Args: []Value{x, y}})
}

// BinaryImm builds an immediate form instruction typed by x.
func (ib InstBuilder) BinaryImm(op Opcode, x Value, c int64) Value {
	return ib.value(InstData{Opcode: op, Type: ib.typeOf(x), Args: []Value{x}, Imm: c})
}

// Unary builds a one operand instruction typed by x.
func (ib InstBuilder) Unary(op Opcode, x Value) Value {
	return ib.value(InstData{Opcode: op, Type: ib.typeOf(x), Args: []Value{x}})
}

func (ib InstBuilder) Iadd(x, y Value) Value { return ib.Binary(Iadd, x, y) }
func (ib InstBuilder) Isub(x, y Value) Value { return ib.Binary(Isub, x, y) }
func (ib InstBuilder) Imul(x, y Value) Value { return ib.Binary(Imul, x, y) }
func (ib InstBuilder) Udiv(x, y Value) Value { return ib.Binary(Udiv, x, y) }
func (ib InstBuilder) Sdiv(x, y Value) Value { return ib.Binary(Sdiv, x, y) }
func (ib InstBuilder) Urem(x, y Value) Value { return ib.Binary(Urem, x, y) }
func (ib InstBuilder) Srem(x, y Value) Value { return ib.Binary(Srem, x, y) }
func (ib InstBuilder) Band(x, y Value) Value { return ib.Binary(Band, x, y) }
func (ib InstBuilder) Bor(x, y Value) Value  { return ib.Binary(Bor, x, y) }
func (ib InstBuilder) Bxor(x, y Value) Value { return ib.Binary(Bxor, x, y) }
func (ib InstBuilder) Ishl(x, y Value) Value { return ib.Binary(Ishl, x, y) }
func (ib InstBuilder) Ushr(x, y Value) Value { return ib.Binary(Ushr, x, y) }
func (ib InstBuilder) Sshr(x, y Value) Value { return ib.Binary(Sshr, x, y) }
func (ib InstBuilder) Fadd(x, y Value) Value { return ib.Binary(Fadd, x, y) }
func (ib InstBuilder) Fsub(x, y Value) Value { return ib.Binary(Fsub, x, y) }
func (ib InstBuilder) Fmul(x, y Value) Value { return ib.Binary(Fmul, x, y) }
func (ib InstBuilder) Fdiv(x, y Value) Value { return ib.Binary(Fdiv, x, y) }

func (ib InstBuilder) Ineg(x Value) Value  { return ib.Unary(Ineg, x) }
func (ib InstBuilder) Bnot(x Value) Value  { return ib.Unary(Bnot, x) }
func (ib InstBuilder) Copy(x Value) Value  { return ib.Unary(Copy, x) }
func (ib InstBuilder) Spill(x Value) Value { return ib.Unary(Spill, x) }
func (ib InstBuilder) Fill(x Value) Value  { return ib.Unary(Fill, x) }

func (ib InstBuilder) IaddImm(x Value, c int64) Value { return ib.BinaryImm(IaddImm, x, c) }
func (ib InstBuilder) ImulImm(x Value, c int64) Value { return ib.BinaryImm(ImulImm, x, c) }
func (ib InstBuilder) BandImm(x Value, c int64) Value { return ib.BinaryImm(BandImm, x, c) }
func (ib InstBuilder) BorImm(x Value, c int64) Value  { return ib.BinaryImm(BorImm, x, c) }
func (ib InstBuilder) BxorImm(x Value, c int64) Value { return ib.BinaryImm(BxorImm, x, c) }
func (ib InstBuilder) IshlImm(x Value, c int64) Value { return ib.BinaryImm(IshlImm, x, c) }
func (ib InstBuilder) UshrImm(x Value, c int64) Value { return ib.BinaryImm(UshrImm, x, c) }
func (ib InstBuilder) SshrImm(x Value, c int64) Value { return ib.BinaryImm(SshrImm, x, c) }

func (ib InstBuilder) Icmp(cc IntCC, x, y Value) Value {
	return ib.value(InstData{Opcode: Icmp, Type: ib.typeOf(x), Cond: cc, Args: []Value{x, y}})
}

func (ib InstBuilder) IcmpImm(cc IntCC, x Value, c int64) Value {
	return ib.value(InstData{Opcode: IcmpImm, Type: ib.typeOf(x), Cond: cc, Args: []Value{x}, Imm: c})
}

func (ib InstBuilder) Select(c, x, y Value) Value {
	return ib.value(InstData{Opcode: Select, Type: ib.typeOf(x), Args: []Value{c, x, y}})
}

func (ib InstBuilder) IaddCout(x, y Value) (Value, Value) {
	i := ib.Build(InstData{Opcode: IaddCout, Type: ib.typeOf(x), Args: []Value{x, y}})
	rs := ib.c.Func.DFG.InstResults(i)

	return rs[0], rs[1]
}

func (ib InstBuilder) IaddCin(x, y, c Value) Value {
	return ib.value(InstData{Opcode: IaddCin, Type: ib.typeOf(x), Args: []Value{x, y, c}})
}

func (ib InstBuilder) IsubBout(x, y Value) (Value, Value) {
	i := ib.Build(InstData{Opcode: IsubBout, Type: ib.typeOf(x), Args: []Value{x, y}})
	rs := ib.c.Func.DFG.InstResults(i)

	return rs[0], rs[1]
}

func (ib InstBuilder) IsubBin(x, y, b Value) Value {
	return ib.value(InstData{Opcode: IsubBin, Type: ib.typeOf(x), Args: []Value{x, y, b}})
}

func (ib InstBuilder) Uextend(t Type, x Value) Value {
	return ib.value(InstData{Opcode: Uextend, Type: t, Args: []Value{x}})
}

func (ib InstBuilder) Sextend(t Type, x Value) Value {
	return ib.value(InstData{Opcode: Sextend, Type: t, Args: []Value{x}})
}

func (ib InstBuilder) Ireduce(t Type, x Value) Value {
	return ib.value(InstData{Opcode: Ireduce, Type: t, Args: []Value{x}})
}

func (ib InstBuilder) Bitcast(t Type, x Value) Value {
	return ib.value(InstData{Opcode: Bitcast, Type: t, Args: []Value{x}})
}

func (ib InstBuilder) Iconcat(lo, hi Value) Value {
	return ib.value(InstData{Opcode: Iconcat, Type: ib.typeOf(lo).Double(), Args: []Value{lo, hi}})
}

func (ib InstBuilder) Isplit(x Value) (lo, hi Value) {
	i := ib.Build(InstData{Opcode: Isplit, Type: ib.typeOf(x), Args: []Value{x}})
	rs := ib.c.Func.DFG.InstResults(i)

	return rs[0], rs[1]
}

func (ib InstBuilder) Load(t Type, addr Value, off int64) Value {
	return ib.value(InstData{Opcode: Load, Type: t, Args: []Value{addr}, Imm: off})
}

// LoadSized builds one of the extending loads.
func (ib InstBuilder) LoadSized(op Opcode, t Type, addr Value, off int64) Value {
	return ib.value(InstData{Opcode: op, Type: t, Args: []Value{addr}, Imm: off})
}

func (ib InstBuilder) Store(x, addr Value, off int64) Inst {
	return ib.Build(InstData{Opcode: Store, Type: ib.typeOf(x), Args: []Value{x, addr}, Imm: off})
}

// StoreSized builds one of the truncating stores.
func (ib InstBuilder) StoreSized(op Opcode, x, addr Value, off int64) Inst {
	return ib.Build(InstData{Opcode: op, Type: ib.typeOf(x), Args: []Value{x, addr}, Imm: off})
}

func (ib InstBuilder) StackLoad(t Type, ss StackSlot, off int64) Value {
	return ib.value(InstData{Opcode: StackLoad, Type: t, Slot: ss, Imm: off})
}

func (ib InstBuilder) StackStore(x Value, ss StackSlot, off int64) Inst {
	return ib.Build(InstData{Opcode: StackStore, Type: ib.typeOf(x), Args: []Value{x}, Slot: ss, Imm: off})
}

func (ib InstBuilder) StackAddr(t Type, ss StackSlot, off int64) Value {
	return ib.value(InstData{Opcode: StackAddr, Type: t, Slot: ss, Imm: off})
}

func (ib InstBuilder) FuncAddr(t Type, fn FuncRef) Value {
	return ib.value(InstData{Opcode: FuncAddr, Type: t, Func: fn})
}

func (ib InstBuilder) SymbolValue(t Type, gv GlobalValue) Value {
	return ib.value(InstData{Opcode: SymbolValue, Type: t, Global: gv})
}

func (ib InstBuilder) Jump(b Block, args ...Value) Inst {
	return ib.Build(InstData{Opcode: Jump, Targets: []BlockCall{{Block: b, Args: args}}})
}

func (ib InstBuilder) Brif(c Value, thenB Block, thenArgs []Value, elseB Block, elseArgs []Value) Inst {
	return ib.Build(InstData{
		Opcode: Brif,
		Type:   ib.typeOf(c),
		Args:   []Value{c},
		Targets: []BlockCall{
			{Block: thenB, Args: thenArgs},
			{Block: elseB, Args: elseArgs},
		},
	})
}

func (ib InstBuilder) BrTable(idx Value, jt JumpTable, def Block) Inst {
	return ib.Build(InstData{
		Opcode:  BrTable,
		Type:    ib.typeOf(idx),
		Args:    []Value{idx},
		Table:   jt,
		Targets: []BlockCall{{Block: def}},
	})
}

func (ib InstBuilder) Return(args ...Value) Inst {
	return ib.Build(InstData{Opcode: Return, Args: args})
}

func (ib InstBuilder) Trap(code TrapCode) Inst {
	return ib.Build(InstData{Opcode: Trap, Trap: code})
}

func (ib InstBuilder) Call(fn FuncRef, args ...Value) Inst {
	return ib.Build(InstData{Opcode: Call, Func: fn, Args: args})
}

func (ib InstBuilder) CallIndirect(sig SigRef, callee Value, args ...Value) Inst {
	return ib.Build(InstData{Opcode: CallIndirect, Sig: sig, Args: append([]Value{callee}, args...)})
}

func (ib InstBuilder) Regmove(t Type, src, dst RegUnit) Inst {
	return ib.Build(InstData{Opcode: Regmove, Type: t, Imm: regmoveImm(src, dst)})
}

// Regspill stores register src into stack slot dst after allocation.
func (ib InstBuilder) Regspill(t Type, src RegUnit, dst StackSlot) Inst {
	return ib.Build(InstData{Opcode: Regspill, Type: t, Imm: int64(src), Slot: dst})
}

// Regfill loads register dst from stack slot src after allocation.
func (ib InstBuilder) Regfill(t Type, src StackSlot, dst RegUnit) Inst {
	return ib.Build(InstData{Opcode: Regfill, Type: t, Imm: int64(dst), Slot: src})
}

func (ib InstBuilder) Prologue() Inst { return ib.Build(InstData{Opcode: Prologue}) }
func (ib InstBuilder) Epilogue() Inst { return ib.Build(InstData{Opcode: Epilogue}) }
