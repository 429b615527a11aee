package binemit

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/cranelift/compiler/abi"
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
	"github.com/spacemeshos/cranelift/compiler/legalize"
	"github.com/spacemeshos/cranelift/compiler/regalloc"
	"github.com/spacemeshos/cranelift/compiler/target"
)

func lookup(t *testing.T, name string) isa.TargetISA {
	t.Helper()

	ti, err := target.Lookup(isa.Descriptor{Name: name})
	require.NoError(t, err)

	return ti
}

// allocate runs the pipeline up to frame insertion.
func allocate(t *testing.T, f *ir.Function, ti isa.TargetISA) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, legalize.Function(ctx, f, ti, legalize.Options{}))
	require.NoError(t, isa.Select(ctx, f, ti))
	require.NoError(t, regalloc.Run(ctx, f, ti, regalloc.Options{}))
	require.NoError(t, abi.InsertPrologueEpilogue(ctx, f, ti))
}

// loop builds a loop whose body is n additions long.
// The brif at the end of the body branches back to its start.
func loop(n int) (f *ir.Function, body, exit ir.Block) {
	f = ir.NewFunction("loop", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	body = b.CreateBlock()
	exit = b.CreateBlock()

	b.SwitchToBlock(b0)
	b.Ins().Jump(body)

	b.SwitchToBlock(body)

	v := ps[0]
	for range n {
		v = b.Ins().IaddImm(v, 1000)
	}

	b.Ins().Brif(v, body, nil, exit, nil)

	b.SwitchToBlock(exit)
	b.Ins().Return(v)

	return f, body, exit
}

func brifRecipe(f *ir.Function, ti isa.TargetISA, b ir.Block) string {
	i := f.Terminator(b)

	return ti.Table().Recipe(f.Encodings.Get(i).Recipe).Name
}

func TestRelaxShortBranch(t *testing.T) {
	ti := lookup(t, "x86_64")
	f, body, exit := loop(2)

	allocate(t, f, ti)
	require.NoError(t, Relax(context.Background(), f, ti, Options{}))

	assert.Equal(t, "brif", brifRecipe(f, ti, body))

	r, err := EmitToMemory(f, ti)
	require.NoError(t, err)

	end := r.BlockOffsets[exit]

	// jne rel8 back to the body
	assert.Equal(t, byte(0x75), r.Code[end-2])
	assert.Equal(t, int64(r.BlockOffsets[body])-int64(end), int64(int8(r.Code[end-1])))
}

func TestRelaxBackwardBranch(t *testing.T) {
	ti := lookup(t, "x86_64")
	f, body, exit := loop(30)

	allocate(t, f, ti)
	require.NoError(t, Relax(context.Background(), f, ti, Options{}))

	assert.Equal(t, "brif_long", brifRecipe(f, ti, body))

	r, err := EmitToMemory(f, ti)
	require.NoError(t, err)

	end := r.BlockOffsets[exit]

	// jne rel32
	assert.Equal(t, []byte{0x0f, 0x85}, r.Code[end-6:end-4])

	disp := int32(binary.LittleEndian.Uint32(r.Code[end-4 : end]))
	assert.Equal(t, int64(r.BlockOffsets[body])-int64(end), int64(disp))
	assert.Less(t, disp, int32(-128))

	assert.Equal(t, uint32(len(r.Code)), r.Info.CodeSize)
	assert.Equal(t, uint32(16), r.Info.Alignment)
}

func TestRelaxRISCV(t *testing.T) {
	ti := lookup(t, "riscv64")
	f, body, exit := loop(1100)

	allocate(t, f, ti)
	require.NoError(t, Relax(context.Background(), f, ti, Options{}))

	assert.Equal(t, "brif_long", brifRecipe(f, ti, body))

	r, err := EmitToMemory(f, ti)
	require.NoError(t, err)

	assert.Zero(t, len(r.Code)%4)
	assert.Equal(t, uint32(4), r.Info.Alignment)

	end := r.BlockOffsets[exit]

	// beqz over auipc and jalr
	inst := binary.LittleEndian.Uint32(r.Code[end-12:])
	assert.Equal(t, uint32(0x63), inst&0x7f, "branch opcode")
	assert.Equal(t, uint32(0x17), binary.LittleEndian.Uint32(r.Code[end-8:])&0x7f, "auipc")
	assert.Equal(t, uint32(0x67), binary.LittleEndian.Uint32(r.Code[end-4:])&0x7f, "jalr")
}

func TestRelaxMaxPasses(t *testing.T) {
	ti := lookup(t, "x86_64")
	f, _, _ := loop(30)

	allocate(t, f, ti)

	err := Relax(context.Background(), f, ti, Options{MaxPasses: 1})

	var e *LayoutError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "loop", e.Func)
	assert.Equal(t, 1, e.Passes)
}

func TestEmitNotRelaxed(t *testing.T) {
	ti := lookup(t, "x86_64")
	f, body, _ := loop(30)

	allocate(t, f, ti)

	_, err := EmitToMemory(f, ti)

	var e *LayoutError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, f.Terminator(body), e.Inst)
}

func TestEmitDeterministic(t *testing.T) {
	ti := lookup(t, "x86_64")
	f, _, _ := loop(30)

	allocate(t, f, ti)
	require.NoError(t, Relax(context.Background(), f, ti, Options{}))

	r1, err := EmitToMemory(f, ti)
	require.NoError(t, err)

	r2, err := EmitToMemory(f, ti)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
}

func TestEmitAppends(t *testing.T) {
	ti := lookup(t, "x86_64")
	f, _, _ := loop(30)

	allocate(t, f, ti)
	require.NoError(t, Relax(context.Background(), f, ti, Options{}))

	r, err := EmitToMemory(f, ti)
	require.NoError(t, err)

	s := NewMemSink(isa.LittleEndian)
	s.Put4(0x90909090)

	info, err := Emit(f, ti, s)
	require.NoError(t, err)

	assert.Equal(t, r.Info, info)
	assert.Equal(t, r.Code, s.Code[4:])
}

func TestCallRelocation(t *testing.T) {
	ti := lookup(t, "x86_64")

	f := ir.NewFunction("caller", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	g := b.ImportFunction("g", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)

	call := b.Ins().Call(g, ps[0])
	b.Ins().Return(f.DFG.FirstResult(call))

	allocate(t, f, ti)
	require.NoError(t, Relax(context.Background(), f, ti, Options{}))

	r, err := EmitToMemory(f, ti)
	require.NoError(t, err)

	require.Len(t, r.Relocs, 1)

	rel := r.Relocs[0]
	assert.Equal(t, isa.RelocX86CallPCRel4, rel.Kind)
	assert.Equal(t, "g", rel.Name)
	assert.Equal(t, int64(-4), rel.Addend)
	assert.Equal(t, byte(0xe8), r.Code[rel.Offset-1])

	require.Len(t, r.Safepoints, 1)
	assert.Equal(t, rel.Offset+4, r.Safepoints[0].Offset)
}

func TestTrapSite(t *testing.T) {
	ti := lookup(t, "x86_64")

	f := ir.NewFunction("check", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	bad := b.CreateBlock()
	ok := b.CreateBlock()

	b.SwitchToBlock(b0)
	b.Ins().Brif(ps[0], ok, nil, bad, nil)

	b.SwitchToBlock(bad)
	b.Ins().Trap(ir.TrapUnreachable)

	b.SwitchToBlock(ok)
	b.Ins().Return(ps[0])

	allocate(t, f, ti)
	require.NoError(t, Relax(context.Background(), f, ti, Options{}))

	r, err := EmitToMemory(f, ti)
	require.NoError(t, err)

	require.Len(t, r.Traps, 1)

	tr := r.Traps[0]
	assert.Equal(t, ir.TrapUnreachable, tr.Code)
	assert.Equal(t, r.BlockOffsets[bad], tr.Offset)
	assert.Equal(t, []byte{0x0f, 0x0b}, r.Code[tr.Offset:tr.Offset+2])
}

func TestAllTargets(t *testing.T) {
	for _, name := range []string{"x86_64", "aarch64", "riscv64", "riscv32"} {
		t.Run(name, func(t *testing.T) {
			ti := lookup(t, name)
			f, _, _ := loop(3)

			allocate(t, f, ti)
			require.NoError(t, Relax(context.Background(), f, ti, Options{}))

			r, err := EmitToMemory(f, ti)
			require.NoError(t, err)

			assert.NotEmpty(t, r.Code)
			assert.Equal(t, uint32(len(r.Code)), r.Info.CodeSize)

			if name != "x86_64" {
				assert.Zero(t, len(r.Code)%4)
			}
		})
	}
}

func TestMemSinkByteOrder(t *testing.T) {
	le := NewMemSink(isa.LittleEndian)
	le.Put2(0x0102)
	le.Put4(0x03040506)
	le.Put8(0x0708090a0b0c0d0e)

	assert.Equal(t, []byte{2, 1, 6, 5, 4, 3, 0xe, 0xd, 0xc, 0xb, 0xa, 9, 8, 7}, le.Code)

	be := NewMemSink(isa.BigEndian)
	be.Put1(0xff)
	be.Put2(0x0102)
	be.Put4(0x03040506)

	assert.Equal(t, []byte{0xff, 1, 2, 3, 4, 5, 6}, be.Code)

	be.Reloc(isa.RelocAbs4, "sym", 8)
	be.Trap(ir.TrapUser)
	be.Safepoint()

	assert.Equal(t, []Reloc{{Offset: 7, Kind: isa.RelocAbs4, Name: "sym", Addend: 8}}, be.Relocs)
	assert.Equal(t, []TrapSite{{Offset: 7, Code: ir.TrapUser}}, be.Traps)
	assert.Equal(t, []Safepoint{{Offset: 7}}, be.Safepoints)

	be.Reset()

	assert.Empty(t, be.Code)
	assert.Empty(t, be.Relocs)
	assert.Equal(t, uint32(0), be.Offset())
}
