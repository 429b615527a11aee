package isa_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
	"github.com/spacemeshos/cranelift/compiler/legalize"
	"github.com/spacemeshos/cranelift/compiler/target"
)

func TestDescriptor(t *testing.T) {
	d, err := isa.ParseDescriptor([]byte(`
name: riscv64
word_bits: 64
endianness: big
extensions: [m, d]
call_conv: riscv
reg_classes:
  gpr: [a0, a1]
`))
	require.NoError(t, err)

	assert.Equal(t, isa.Descriptor{
		Name:       "riscv64",
		WordBits:   64,
		Endianness: isa.BigEndian,
		Extensions: []string{"m", "d"},
		CallConv:   "riscv",
		RegClasses: map[string][]string{"gpr": {"a0", "a1"}},
	}, d)

	assert.True(t, d.Has("d"))
	assert.False(t, d.Has("f"))

	data, err := d.Marshal()
	require.NoError(t, err)

	d2, err := isa.ParseDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, d, d2)

	cc, err := d.Conv(ir.CallConvSystemV)
	require.NoError(t, err)
	assert.Equal(t, ir.CallConvRiscV, cc)
}

func TestDescriptorErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"no name", "word_bits: 64\n"},
		{"endianness", "name: x86_64\nendianness: middle\n"},
		{"syntax", "name: [\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := isa.ParseDescriptor([]byte(tc.data))
			assert.Error(t, err)
		})
	}

	d := isa.Descriptor{Name: "x86_64"}

	cc, err := d.Conv(ir.CallConvSystemV)
	require.NoError(t, err)
	assert.Equal(t, ir.CallConvSystemV, cc)

	d.CallConv = "default"
	_, err = d.Conv(ir.CallConvSystemV)
	assert.Error(t, err)

	d.CallConv = "pascal"
	_, err = d.Conv(ir.CallConvSystemV)
	assert.Error(t, err)
}

func TestRestrict(t *testing.T) {
	ti, err := target.ByName("x86_64")
	require.NoError(t, err)

	ri := ti.RegInfo().Clone()

	require.NoError(t, ri.Restrict(map[string][]string{"gpr": {"rcx", "rax"}}))

	rax, _ := ri.Unit("rax")
	rcx, _ := ri.Unit("rcx")
	assert.Equal(t, []ir.RegUnit{rcx, rax}, ri.Classes[isa.GPR].Allocatable)

	assert.NotEqual(t, ri.Classes[isa.GPR].Allocatable, ti.RegInfo().Classes[isa.GPR].Allocatable, "clone is independent")

	for name, classes := range map[string]map[string][]string{
		"unknown class":  {"vec": {"rax"}},
		"other class":    {"gpr": {"xmm0"}},
		"unknown reg":    {"gpr": {"eax"}},
		"scratch":        {"gpr": {ri.Name(ri.Classes[isa.GPR].Scratch)}},
		"no allocatable": {"gpr": {}},
	} {
		assert.Error(t, ri.Clone().Restrict(classes), name)
	}
}

func TestRegSet(t *testing.T) {
	s := isa.RegSetOf(1, 3, 5)

	assert.True(t, s.IsSet(3))
	assert.False(t, s.IsSet(2))

	var got []int

	s.Range(func(u int) bool {
		got = append(got, u)
		return true
	})

	assert.Equal(t, []int{1, 3, 5}, got)
}

func TestSelectFolding(t *testing.T) {
	ti, err := target.ByName("x86_64")
	require.NoError(t, err)

	f := ir.NewFunction("fold", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	x := b.AppendEntryParams(b0)[0]

	b.SwitchToBlock(b0)

	add := b.Ins().Iadd(b.Ins().Iconst(ir.I64, 5), x)
	sub := b.Ins().Isub(x, b.Ins().Iconst(ir.I64, 3))
	big := b.Ins().Iadd(x, b.Ins().Iconst(ir.I64, 1<<40))
	cmp := b.Ins().Icmp(ir.Slt, b.Ins().Iconst(ir.I64, 7), x)

	r := b.Ins().Bxor(b.Ins().Bxor(add, sub), b.Ins().Bxor(big, b.Ins().Uextend(ir.I64, cmp)))
	b.Ins().Return(r)

	ctx := context.Background()

	require.NoError(t, legalize.Function(ctx, f, ti, legalize.Options{}))
	require.NoError(t, isa.Select(ctx, f, ti))

	def := func(v ir.Value) *ir.InstData {
		i, _ := f.DFG.ValueDef(f.DFG.Resolve(v))
		require.NotEqual(t, ir.NoInst, i, "%v", v)

		return f.DFG.Inst(i)
	}

	d := def(add)
	assert.Equal(t, ir.IaddImm, d.Opcode)
	assert.Equal(t, int64(5), d.Imm)

	d = def(sub)
	assert.Equal(t, ir.IaddImm, d.Opcode)
	assert.Equal(t, int64(-3), d.Imm)

	d = def(big)
	assert.Equal(t, ir.Iadd, d.Opcode, "immediate does not fit")

	d = def(cmp)
	assert.Equal(t, ir.IcmpImm, d.Opcode)
	assert.Equal(t, ir.Sgt, d.Cond)
	assert.Equal(t, int64(7), d.Imm)

	consts := 0

	err = f.Insts(func(b ir.Block, i ir.Inst) error {
		assert.True(t, f.Encodings.Get(i).IsValid(), "%v", i)

		if f.DFG.Inst(i).Opcode == ir.Iconst {
			consts++
		}

		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, consts, "only the large constant is left")
}

func TestEncodingError(t *testing.T) {
	ti, err := target.ByName("riscv32")
	require.NoError(t, err)

	f := ir.NewFunction("wide", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	x := b.AppendEntryParams(b0)[0]

	b.SwitchToBlock(b0)
	b.Ins().Return(b.Ins().Iadd(x, x))

	// not legalized: i64 has no encoding on a 32 bit target
	err = isa.Select(context.Background(), f, ti)

	var e *isa.EncodingError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "riscv32", e.ISA)
	assert.Equal(t, ir.Iadd, e.Opcode)
	assert.Equal(t, ir.I64, e.Type)
}
