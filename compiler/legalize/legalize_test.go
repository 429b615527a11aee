package legalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
	"github.com/spacemeshos/cranelift/compiler/target"
)

func lookup(t *testing.T, d isa.Descriptor) isa.TargetISA {
	t.Helper()

	ti, err := target.Lookup(d)
	require.NoError(t, err)

	return ti
}

// binary builds fn(x, y) { return op x, y }.
func binary(op ir.Opcode, x, y, r ir.Type) *ir.Function {
	f := ir.NewFunction("binary", ir.Signature{Params: []ir.Type{x, y}, Returns: []ir.Type{r}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)

	v := b.Ins().Binary(op, ps[0], ps[1])
	b.Ins().Return(v)

	return f
}

func requireLegal(t *testing.T, f *ir.Function, ti isa.TargetISA) {
	t.Helper()

	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			require.Equal(t, isa.Legal, ti.Action(f, i), "%v: %v\n%v", i, f.DFG.Inst(i).Opcode, f)
		}
	}
}

func count(f *ir.Function, op ir.Opcode) (n int) {
	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			if f.DFG.Inst(i).Opcode == op {
				n++
			}
		}
	}

	return n
}

func calls(f *ir.Function) (names []string) {
	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			d := f.DFG.Inst(i)
			if d.Opcode == ir.Call {
				names = append(names, f.DFG.ExtFuncs.Get(d.Func).Name)
			}
		}
	}

	return names
}

func TestNarrowAddRV32(t *testing.T) {
	ctx := context.Background()
	ti := lookup(t, isa.Descriptor{Name: "riscv32", Extensions: []string{"m"}})

	f := binary(ir.Iadd, ir.I64, ir.I64, ir.I64)

	err := Function(ctx, f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			assert.False(t, isa.Involves(f, f.DFG.Inst(i), ir.I64), "%v", i)
		}
	}

	assert.Equal(t, 0, count(f, ir.Iconcat))
	assert.Equal(t, 0, count(f, ir.Isplit))
	assert.Equal(t, 3, count(f, ir.Iadd))

	ret := f.Terminator(f.Layout.EntryBlock())
	assert.Len(t, f.DFG.Inst(ret).Args, 2)

	before := f.String()

	err = Function(ctx, f, ti, Options{})
	require.NoError(t, err)

	assert.Equal(t, before, f.String())
}

func TestLibcallDivide(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv32"})

	f := binary(ir.Udiv, ir.I32, ir.I32, ir.I32)

	err := Function(context.Background(), f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	assert.Equal(t, []string{"__udivsi3"}, calls(f))
	assert.Equal(t, 0, count(f, ir.Udiv))
	assert.True(t, f.Frame.HasCalls)
}

func TestLibcallShiftRV32(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv32", Extensions: []string{"m"}})

	f := binary(ir.Ishl, ir.I64, ir.I64, ir.I64)

	err := Function(context.Background(), f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	require.Equal(t, []string{"__ashldi3"}, calls(f))

	fn := f.DFG.ExtFuncs.Keys()[0]
	sig := f.DFG.Signatures.Get(f.DFG.ExtFuncs.Get(fn).Sig)

	assert.Equal(t, []ir.Type{ir.I64, ir.I32}, sig.Params)
	assert.Equal(t, []ir.Type{ir.I64}, sig.Returns)
}

func TestNarrowIreduceRV32(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv32", Extensions: []string{"m"}})

	f := ir.NewFunction("reduce", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I32}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)
	b.Ins().Return(b.Ins().Ireduce(ir.I32, ps[0]))

	err := Function(context.Background(), f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	assert.Equal(t, 0, count(f, ir.Ireduce))
	assert.Equal(t, 0, count(f, ir.Iconcat))
	assert.Equal(t, 0, count(f, ir.Isplit))
}

func TestNarrowShiftAmountRV32(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv32", Extensions: []string{"m"}})

	f := binary(ir.Ushr, ir.I32, ir.I64, ir.I32)

	err := Function(context.Background(), f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	assert.Equal(t, 1, count(f, ir.Ushr))
	assert.Empty(t, calls(f))
	assert.Equal(t, 0, count(f, ir.Iconcat))
}

func TestLibcallReuse(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv64"})

	f := ir.NewFunction("twice", ir.Signature{Params: []ir.Type{ir.I64, ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)

	x := b.Ins().Imul(ps[0], ps[1])
	y := b.Ins().Imul(x, ps[1])
	b.Ins().Return(y)

	err := Function(context.Background(), f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	assert.Equal(t, []string{"__muldi3", "__muldi3"}, calls(f))
	assert.Equal(t, 1, f.DFG.ExtFuncs.Len())
}

func TestWidenI8(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64"})

	f := binary(ir.Udiv, ir.I8, ir.I8, ir.I8)

	err := Function(context.Background(), f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	var div ir.Inst

	for _, i := range f.Layout.Insts(f.Layout.EntryBlock()) {
		if f.DFG.Inst(i).Opcode == ir.Udiv {
			div = i
		}
	}

	require.NotEqual(t, ir.NoInst, div)
	assert.Equal(t, ir.I32, f.DFG.Inst(div).Type)
	assert.Equal(t, 2, count(f, ir.Uextend))
	assert.Equal(t, 1, count(f, ir.Ireduce))
}

func TestExpandWideImm(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64"})

	f := ir.NewFunction("imm", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)

	v := b.Ins().IaddImm(ps[0], 1<<40)
	b.Ins().Return(v)

	err := Function(context.Background(), f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	assert.Equal(t, 0, count(f, ir.IaddImm))
	assert.Equal(t, 1, count(f, ir.Iadd))
	assert.Equal(t, 1, count(f, ir.Iconst))
}

func TestBrTable(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64"})

	f := ir.NewFunction("switch", ir.Signature{Params: []ir.Type{ir.I32}, Returns: []ir.Type{ir.I32}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	targets := make([]ir.Block, 4)
	for k := range targets {
		targets[k] = b.CreateBlock()
	}

	b.SwitchToBlock(b0)
	b.Ins().BrTable(ps[0], f.CreateJumpTable(targets[:3]...), targets[3])

	for k, blk := range targets {
		b.SwitchToBlock(blk)
		b.Ins().Return(b.Ins().Iconst(ir.I32, int64(k)))
	}

	err := Function(context.Background(), f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	assert.Equal(t, 0, count(f, ir.BrTable))
	assert.Equal(t, 3, count(f, ir.Brif))
	assert.Equal(t, 3+5, len(f.Layout.Blocks()))
}

func TestSplitBrifArgs(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64"})

	f := ir.NewFunction("edge", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b1 := b.CreateBlock()
	x := b.AppendBlockParam(b1, ir.I64)

	b2 := b.CreateBlock()

	b.SwitchToBlock(b0)
	b.Ins().Brif(ps[0], b1, []ir.Value{ps[0]}, b2, nil)

	b.SwitchToBlock(b1)
	b.Ins().Return(x)

	b.SwitchToBlock(b2)
	b.Ins().Return(b.Ins().Iconst(ir.I64, 0))

	err := Function(context.Background(), f, ti, Options{})
	require.NoError(t, err)

	requireLegal(t, f, ti)

	for _, blk := range f.Layout.Blocks() {
		term := f.Terminator(blk)
		d := f.DFG.Inst(term)

		if d.Opcode != ir.Brif {
			continue
		}

		for _, bc := range d.Targets {
			assert.Empty(t, bc.Args)
		}
	}

	assert.Len(t, f.Layout.Blocks(), 4)
}

func TestUnsupported(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv32", Extensions: []string{"m", "f"}})

	f := ir.NewFunction("double", ir.Signature{})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()

	b.SwitchToBlock(b0)

	x := b.Ins().F64const(0x3ff0000000000000)
	b.Ins().Fadd(x, x)
	b.Ins().Return()

	err := Function(context.Background(), f, ti, Options{})

	var ue *UnsupportedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "riscv32", ue.ISA)
}

func TestInternalError(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv32", Extensions: []string{"m"}})

	f := binary(ir.Iadd, ir.I64, ir.I64, ir.I64)

	err := Function(context.Background(), f, ti, Options{MaxPasses: 1})

	var ie *InternalError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "binary", ie.Func)
	assert.Equal(t, 1, ie.Passes)
	assert.NotEqual(t, isa.Legal, ie.Action)
}

func TestLibcallNames(t *testing.T) {
	for _, tc := range []struct {
		op   ir.Opcode
		t    ir.Type
		name string
	}{
		{ir.Imul, ir.I32, "__mulsi3"},
		{ir.Srem, ir.I32, "__modsi3"},
		{ir.Sdiv, ir.I64, "__divdi3"},
		{ir.Sshr, ir.I64, "__ashrdi3"},
		{ir.Fdiv, ir.F32, "__divsf3"},
		{ir.Fsub, ir.F64, "__subdf3"},
	} {
		name, ok := LibcallName(tc.op, tc.t)
		assert.True(t, ok)
		assert.Equal(t, tc.name, name)
	}

	_, ok := LibcallName(ir.Iadd, ir.I32)
	assert.False(t, ok)
}
