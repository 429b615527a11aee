package abi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
	"github.com/spacemeshos/cranelift/compiler/target"
	"github.com/spacemeshos/cranelift/compiler/verify"
)

func lookup(t *testing.T, d isa.Descriptor) isa.TargetISA {
	t.Helper()

	ti, err := target.Lookup(d)
	require.NoError(t, err)

	return ti
}

func reg(t *testing.T, ti isa.TargetISA, name string) ir.RegUnit {
	t.Helper()

	u, ok := ti.RegInfo().Unit(name)
	require.True(t, ok, name)

	return u
}

func ints(n int, typ ir.Type) []ir.Type {
	r := make([]ir.Type, n)
	for i := range r {
		r[i] = typ
	}

	return r
}

func TestAssignFastcall(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64", CallConv: "windows_fastcall"})

	a, err := Assign(ti, &ir.Signature{Params: ints(6, ir.I64), Returns: []ir.Type{ir.I64}})
	require.NoError(t, err)

	for k, name := range []string{"rcx", "rdx", "r8", "r9"} {
		assert.Equal(t, []Part{{Type: ir.I64, Reg: reg(t, ti, name)}}, a.Params[k], "param %d", k)
	}

	assert.Equal(t, []Part{{Type: ir.I64, Reg: ir.NoReg, Offset: 32}}, a.Params[4])
	assert.Equal(t, []Part{{Type: ir.I64, Reg: ir.NoReg, Offset: 40}}, a.Params[5])
	assert.Equal(t, int32(48), a.StackSize)

	assert.Equal(t, []Part{{Type: ir.I64, Reg: reg(t, ti, "rax")}}, a.Returns[0])
}

func TestAssignPositional(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64", CallConv: "windows_fastcall"})

	a, err := Assign(ti, &ir.Signature{Params: []ir.Type{ir.I64, ir.F64, ir.I32}})
	require.NoError(t, err)

	assert.Equal(t, reg(t, ti, "rcx"), a.Params[0][0].Reg)
	assert.Equal(t, reg(t, ti, "xmm1"), a.Params[1][0].Reg)
	assert.Equal(t, reg(t, ti, "r8"), a.Params[2][0].Reg)
}

func TestAssignSystemV(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64"})

	a, err := Assign(ti, &ir.Signature{
		Params:  []ir.Type{ir.I64, ir.F64, ir.I32, ir.F32},
		Returns: []ir.Type{ir.F64},
	})
	require.NoError(t, err)

	assert.Equal(t, reg(t, ti, "rdi"), a.Params[0][0].Reg)
	assert.Equal(t, reg(t, ti, "xmm0"), a.Params[1][0].Reg)
	assert.Equal(t, reg(t, ti, "rsi"), a.Params[2][0].Reg)
	assert.Equal(t, reg(t, ti, "xmm1"), a.Params[3][0].Reg)
	assert.Equal(t, reg(t, ti, "xmm0"), a.Returns[0][0].Reg)
	assert.Equal(t, int32(0), a.StackSize)
}

func TestAssignRV32Pairs(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv32", Extensions: []string{"m"}})

	a, err := Assign(ti, &ir.Signature{Params: []ir.Type{ir.I32, ir.I64}, Returns: []ir.Type{ir.I64}})
	require.NoError(t, err)

	assert.Equal(t, reg(t, ti, "a0"), a.Params[0][0].Reg)
	require.Len(t, a.Params[1], 2)
	assert.Equal(t, Part{Type: ir.I32, Reg: reg(t, ti, "a1")}, a.Params[1][0])
	assert.Equal(t, Part{Type: ir.I32, Reg: reg(t, ti, "a2")}, a.Params[1][1])

	require.Len(t, a.Returns[0], 2)
	assert.Equal(t, reg(t, ti, "a0"), a.Returns[0][0].Reg)
	assert.Equal(t, reg(t, ti, "a1"), a.Returns[0][1].Reg)

	_, err = Assign(ti, &ir.Signature{Params: []ir.Type{ir.F64}})
	assert.Error(t, err, "f64 without d on rv32")
}

func TestAssignStackOverflow(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "aarch64"})

	a, err := Assign(ti, &ir.Signature{Params: ints(10, ir.I32)})
	require.NoError(t, err)

	assert.Equal(t, reg(t, ti, "x7"), a.Params[7][0].Reg)
	assert.Equal(t, int32(0), a.Params[8][0].Offset)
	assert.Equal(t, int32(8), a.Params[9][0].Offset)
	assert.True(t, a.Params[9][0].OnStack())
	assert.Equal(t, int32(16), a.StackSize)

	_, err = Assign(ti, &ir.Signature{Returns: ints(3, ir.I64)})
	assert.Error(t, err)
}

// caller calls a six argument function and returns its result plus the first param.
func caller(t *testing.T) *ir.Function {
	t.Helper()

	f := ir.NewFunction("caller", ir.Signature{Params: []ir.Type{ir.I64, ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	callee := b.ImportFunction("callee", ir.Signature{Params: ints(6, ir.I64), Returns: []ir.Type{ir.I64}})

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)

	args := make([]ir.Value, 6)
	for k := range args {
		args[k] = b.Ins().IaddImm(ps[1], int64(k))
	}

	call := b.Ins().Call(callee, args...)
	r := f.DFG.FirstResult(call)
	s := b.Ins().Iadd(r, ps[0])
	b.Ins().Return(s)

	require.NoError(t, verify.Function(f, verify.Flags{}))

	return f
}

func TestLowerFastcall(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64", CallConv: "windows_fastcall"})
	f := caller(t)

	entry := f.Layout.EntryBlock()
	p0 := f.DFG.BlockParams(entry)[0]

	err := Lower(context.Background(), f, ti)
	require.NoError(t, err)
	require.NoError(t, verify.Function(f, verify.Flags{}), "%v", f)

	assert.True(t, f.ABILowered)
	assert.True(t, f.Frame.HasCalls)

	// parameters keep their values, defined by copies from pinned block params
	def, _ := f.DFG.ValueDef(p0)
	require.NotEqual(t, ir.NoInst, def)
	assert.Equal(t, ir.Copy, f.DFG.Inst(def).Opcode)

	np := f.DFG.Inst(def).Args[0]
	r, ok := f.Pinned(np)
	require.True(t, ok)
	assert.Equal(t, reg(t, ti, "rcx"), r)

	var offs []int32

	for _, ss := range f.StackSlots.Keys() {
		sd := f.StackSlots.Get(ss)
		if sd.Kind == ir.SlotOutgoingArg {
			offs = append(offs, sd.Offset)
		}
	}

	assert.Equal(t, []int32{32, 40}, offs)

	var call ir.Inst
	stores := 0

	for _, i := range f.Layout.Insts(entry) {
		switch f.DFG.Inst(i).Opcode {
		case ir.Call:
			call = i
		case ir.StackStore:
			stores++
		}
	}

	assert.Equal(t, 2, stores)

	d := f.DFG.Inst(call)
	require.Len(t, d.Args, 4)

	for k, name := range []string{"rcx", "rdx", "r8", "r9"} {
		r, ok := f.Pinned(d.Args[k])
		assert.True(t, ok)
		assert.Equal(t, reg(t, ti, name), r)
	}

	r, ok = f.Pinned(d.Results[0])
	assert.True(t, ok)
	assert.Equal(t, reg(t, ti, "rax"), r)

	require.NoError(t, Lower(context.Background(), f, ti), "second lowering is a no-op")
}

func TestLowerRV32Pairs(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv32", Extensions: []string{"m"}})

	f := ir.NewFunction("add64", ir.Signature{Params: []ir.Type{ir.I64, ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)
	b.Ins().Return(b.Ins().Iadd(ps[0], ps[1]))

	require.NoError(t, Lower(context.Background(), f, ti))
	require.NoError(t, verify.Function(f, verify.Flags{}), "%v", f)

	np := f.DFG.BlockParams(b0)
	require.Len(t, np, 4)

	for k, name := range []string{"a0", "a1", "a2", "a3"} {
		r, ok := f.Pinned(np[k])
		assert.True(t, ok)
		assert.Equal(t, reg(t, ti, name), r)
		assert.Equal(t, ir.I32, f.DFG.ValueType(np[k]))
	}

	def, _ := f.DFG.ValueDef(ps[0])
	assert.Equal(t, ir.Iconcat, f.DFG.Inst(def).Opcode)

	ret := f.Terminator(b0)
	assert.Len(t, f.DFG.Inst(ret).Args, 2)
}

func TestLayoutFrame(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64", CallConv: "windows_fastcall"})
	f := caller(t)

	require.NoError(t, Lower(context.Background(), f, ti))

	ss := f.CreateStackSlot(ir.SlotExplicit, 12)
	spill := f.CreateStackSlot(ir.SlotSpill, 8)

	f.Frame.Saved = []ir.RegUnit{reg(t, ti, "rbx"), reg(t, ti, "rsi")}

	LayoutFrame(f, ti)

	fr := f.Frame

	assert.Equal(t, int32(48), fr.OutgoingSize)
	assert.Equal(t, int32(48), f.StackSlots.Get(ss).FrameOffset)
	assert.Equal(t, int32(64), f.StackSlots.Get(spill).FrameOffset)
	assert.Equal(t, []int32{72, 80}, fr.SavedOffsets)
	assert.Equal(t, int32(96), fr.Size)
	assert.False(t, fr.SaveLink)
}

func TestLayoutFrameIncoming(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv64", Extensions: []string{"m"}})

	f := ir.NewFunction("many", ir.Signature{Params: ints(9, ir.I64), Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)
	b.Ins().Return(ps[8])

	require.NoError(t, Lower(context.Background(), f, ti))

	var in ir.StackSlot = ir.NoStackSlot

	for _, ss := range f.StackSlots.Keys() {
		if f.StackSlots.Get(ss).Kind == ir.SlotIncomingArg {
			in = ss
		}
	}

	require.NotEqual(t, ir.NoStackSlot, in)

	def, _ := f.DFG.ValueDef(ps[8])
	assert.Equal(t, ir.StackLoad, f.DFG.Inst(def).Opcode)

	f.CreateStackSlot(ir.SlotSpill, 8)

	LayoutFrame(f, ti)

	assert.Equal(t, int32(16), f.Frame.Size)
	assert.Equal(t, int32(16), f.StackSlots.Get(in).FrameOffset)
	assert.False(t, f.Frame.SaveLink, "leaf function")
}
