package regalloc

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

func prepare(t *testing.T, f *ir.Function, ti isa.TargetISA) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, legalize.Function(ctx, f, ti, legalize.Options{}))
	require.NoError(t, isa.Select(ctx, f, ti))
}

func allocate(t *testing.T, f *ir.Function, ti isa.TargetISA, opts Options) {
	t.Helper()

	prepare(t, f, ti)

	require.NoError(t, Run(context.Background(), f, ti, opts))
	require.NoError(t, Check(f, ti), "%v", f)
}

func insts(f *ir.Function, op ir.Opcode) (r []ir.Inst) {
	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			if f.DFG.Inst(i).Opcode == op {
				r = append(r, i)
			}
		}
	}

	return r
}

// pressure builds a function needing three registers at once.
// It returns the parameters and the sums in order of definition.
func pressure() (f *ir.Function, ps, sums []ir.Value) {
	f = ir.NewFunction("pressure", ir.Signature{
		Params:  []ir.Type{ir.I64, ir.I64, ir.I64},
		Returns: []ir.Type{ir.I64},
	})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps = b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)

	v3 := b.Ins().Iadd(ps[1], ps[1])
	v4 := b.Ins().Iadd(ps[2], ps[2])
	v5 := b.Ins().Iadd(v3, v4)
	v6 := b.Ins().Iadd(v5, ps[0])
	b.Ins().Return(v6)

	return f, ps, []ir.Value{v3, v4, v5, v6}
}

func twoRegs(t *testing.T) isa.TargetISA {
	return lookup(t, isa.Descriptor{
		Name:       "riscv64",
		RegClasses: map[string][]string{"gpr": {"t0", "t1"}},
	})
}

func TestSpillLongestRange(t *testing.T) {
	ti := twoRegs(t)
	f, ps, _ := pressure()

	allocate(t, f, ti, Options{})

	spills := insts(f, ir.Spill)
	require.Len(t, spills, 1, "%v", f)

	assert.Equal(t, ps[0], f.DFG.Inst(spills[0]).Args[0])
	assert.Len(t, insts(f, ir.Fill), 1)

	slots := 0

	for _, ss := range f.StackSlots.Keys() {
		if f.StackSlots.Get(ss).Kind == ir.SlotSpill {
			slots++
		}
	}

	assert.Equal(t, 1, slots)

	s := f.DFG.FirstResult(spills[0])
	assert.Equal(t, ir.LocStack, f.Locations.Get(s).Kind)
}

func TestSpillPolicy(t *testing.T) {
	ti := twoRegs(t)
	f, ps, sums := pressure()

	calls := 0

	allocate(t, f, ti, Options{
		SpillPolicy: func(cands []Candidate) int {
			calls++
			return 0
		},
	})

	var spilled []ir.Value

	for _, i := range insts(f, ir.Spill) {
		spilled = append(spilled, f.DFG.Inst(i).Args[0])
	}

	// Index 0 is the value being allocated whenever it may be spilled.
	// The first round gives up p2 and then the second sum, live together with p0 and the first sum.
	// Reloads are not spillable, so p0 goes in the second round.
	assert.ElementsMatch(t, []ir.Value{ps[0], ps[2], sums[1]}, spilled)
	assert.Equal(t, 3, calls)
}

func TestDefaultSpillPolicy(t *testing.T) {
	cands := []Candidate{
		{Value: 3, Uses: 2, Start: 0, End: 10},
		{Value: 1, Uses: 1, Start: 0, End: 4},
		{Value: 2, Uses: 1, Start: 0, End: 8},
		{Value: 0, Uses: 1, Start: 0, End: 6},
	}

	assert.Equal(t, 2, DefaultSpillPolicy(cands))
	assert.Equal(t, 0, DefaultSpillPolicy(cands[:1]))

	cands[3].End = 8
	assert.Equal(t, 3, DefaultSpillPolicy(cands), "older value")
}

func TestFixedRegisters(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64"})

	f := ir.NewFunction("div", ir.Signature{Params: []ir.Type{ir.I64, ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)
	b.Ins().Return(b.Ins().Udiv(ps[0], ps[1]))

	allocate(t, f, ti, Options{})

	divs := insts(f, ir.Udiv)
	require.Len(t, divs, 1)

	d := f.DFG.Inst(divs[0])
	rax, rdx := reg(t, ti, "rax"), reg(t, ti, "rdx")

	assert.Equal(t, ir.RegLoc(rax), f.Locations.Get(d.Args[0]))
	assert.Equal(t, ir.RegLoc(rax), f.Locations.Get(d.Results[0]))

	divisor := f.Locations.Get(d.Args[1])
	assert.NotEqual(t, rax, divisor.Reg)
	assert.NotEqual(t, rdx, divisor.Reg)
}

func TestValueAcrossCall(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64"})

	f := ir.NewFunction("across", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	g := b.ImportFunction("g", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)

	call := b.Ins().Call(g, ps[0])
	s := b.Ins().Iadd(f.DFG.FirstResult(call), ps[0])
	b.Ins().Return(s)

	allocate(t, f, ti, Options{})

	loc := f.Locations.Get(ps[0])
	require.Equal(t, ir.LocReg, loc.Kind)

	assert.True(t, ti.RegInfo().CalleeSaved.IsSet(int(loc.Reg)), "%v", ti.RegInfo().Name(loc.Reg))
	assert.Contains(t, f.Frame.Saved, loc.Reg)
}

func TestBlockArguments(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64"})

	f := ir.NewFunction("swap", ir.Signature{
		Params:  []ir.Type{ir.I64, ir.I64, ir.I64},
		Returns: []ir.Type{ir.I64},
	})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b1 := b.CreateBlock()
	x := b.AppendBlockParam(b1, ir.I64)
	y := b.AppendBlockParam(b1, ir.I64)
	n := b.AppendBlockParam(b1, ir.I64)

	b2 := b.CreateBlock()
	b3 := b.CreateBlock()

	b.SwitchToBlock(b0)
	b.Ins().Jump(b1, ps...)

	b.SwitchToBlock(b1)
	b.Ins().Brif(n, b2, nil, b3, nil)

	b.SwitchToBlock(b2)
	m := b.Ins().IaddImm(n, -1)
	b.Ins().Jump(b1, y, x, m)

	b.SwitchToBlock(b3)
	b.Ins().Return(b.Ins().Isub(x, y))

	allocate(t, f, ti, Options{})

	jumps := insts(f, ir.Jump)
	require.Len(t, jumps, 2)

	replayJumps(t, f)
}

// replayJumps runs the moves before each jump on a file of locations
// and checks every block parameter ends up with its argument.
func replayJumps(t *testing.T, f *ir.Function) {
	t.Helper()

	for _, j := range insts(f, ir.Jump) {
		d := f.DFG.Inst(j)

		file := map[ir.ValueLoc]ir.Value{}

		for _, v := range d.Targets[0].Args {
			file[f.Locations.Get(v)] = v
		}

		var moves []ir.Inst

		for i := f.Layout.PrevInst(j); i != ir.NoInst; i = f.Layout.PrevInst(i) {
			if op := f.DFG.Inst(i).Opcode; op != ir.Regmove && op != ir.Regspill && op != ir.Regfill {
				break
			}

			moves = append([]ir.Inst{i}, moves...)
		}

		for _, i := range moves {
			m := f.DFG.Inst(i)

			switch m.Opcode {
			case ir.Regmove:
				src, dst := m.RegmoveUnits()
				file[ir.RegLoc(dst)] = file[ir.RegLoc(src)]
			case ir.Regspill:
				file[ir.StackLoc(m.Slot)] = file[ir.RegLoc(ir.RegUnit(m.Imm))]
			case ir.Regfill:
				file[ir.RegLoc(ir.RegUnit(m.Imm))] = file[ir.StackLoc(m.Slot)]
			}
		}

		for k, p := range f.DFG.BlockParams(d.Targets[0].Block) {
			assert.Equal(t, d.Targets[0].Args[k], file[f.Locations.Get(p)], "%v arg %d", j, k)
		}
	}
}

// wideJump passes n constants to a block which sums them.
func wideJump(n int) *ir.Function {
	f := ir.NewFunction("wide", ir.Signature{Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	b1 := b.CreateBlock()

	b.SwitchToBlock(b0)

	args := make([]ir.Value, n)
	for k := range args {
		args[k] = b.Ins().Iconst(ir.I64, int64(k+1))
	}

	b.Ins().Jump(b1, args...)

	b.SwitchToBlock(b1)

	ps := make([]ir.Value, n)
	for k := range ps {
		ps[k] = b.AppendBlockParam(b1, ir.I64)
	}

	sum := ps[0]
	for _, p := range ps[1:] {
		sum = b.Ins().Iadd(sum, p)
	}

	b.Ins().Return(sum)

	return f
}

func TestWideJump(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "x86_64"})

	for _, n := range []int{4, 14, 16, 24} {
		f := wideJump(n)

		allocate(t, f, ti, Options{})
		replayJumps(t, f)

		stack := 0

		for _, p := range f.DFG.BlockParams(f.Layout.Blocks()[1]) {
			if f.Locations.Get(p).Kind == ir.LocStack {
				stack++
			}
		}

		if n > 14 {
			assert.NotZero(t, stack, "n=%d", n)
		}
	}
}

func TestLoopParamsOnStack(t *testing.T) {
	ti := twoRegs(t)

	f := ir.NewFunction("swap", ir.Signature{
		Params:  []ir.Type{ir.I64, ir.I64, ir.I64},
		Returns: []ir.Type{ir.I64},
	})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b1 := b.CreateBlock()
	x := b.AppendBlockParam(b1, ir.I64)
	y := b.AppendBlockParam(b1, ir.I64)
	n := b.AppendBlockParam(b1, ir.I64)

	b2 := b.CreateBlock()
	b3 := b.CreateBlock()

	b.SwitchToBlock(b0)
	b.Ins().Jump(b1, ps...)

	b.SwitchToBlock(b1)
	b.Ins().Brif(n, b2, nil, b3, nil)

	b.SwitchToBlock(b2)
	m := b.Ins().IaddImm(n, -1)
	b.Ins().Jump(b1, y, x, m)

	b.SwitchToBlock(b3)
	b.Ins().Return(b.Ins().Isub(x, y))

	allocate(t, f, ti, Options{})
	replayJumps(t, f)

	stack := 0

	for _, p := range []ir.Value{x, y, n} {
		if f.Locations.Get(p).Kind == ir.LocStack {
			stack++
		}
	}

	assert.NotZero(t, stack)
	assert.NotEmpty(t, append(insts(f, ir.Regspill), insts(f, ir.Regfill)...))
}

func TestSequentialize(t *testing.T) {
	r := ir.RegLoc
	tmp := func(_ ir.Type, mem bool) ir.ValueLoc {
		if mem {
			return ir.StackLoc(7)
		}

		return r(9)
	}

	seq := sequentialize([]move{
		{t: ir.I64, src: r(1), dst: r(2)},
		{t: ir.I64, src: r(2), dst: r(3)},
	}, tmp)

	assert.Equal(t, []move{
		{t: ir.I64, src: r(2), dst: r(3)},
		{t: ir.I64, src: r(1), dst: r(2)},
	}, seq)

	seq = sequentialize([]move{
		{t: ir.I64, src: r(1), dst: r(2)},
		{t: ir.I32, src: r(2), dst: r(1)},
	}, tmp)

	assert.Equal(t, []move{
		{t: ir.I32, src: r(2), dst: r(9)},
		{t: ir.I64, src: r(1), dst: r(2)},
		{t: ir.I32, src: r(9), dst: r(1)},
	}, seq)

	assert.Empty(t, sequentialize(nil, tmp))
}

func TestSequentializeStack(t *testing.T) {
	r, s := ir.RegLoc, ir.StackLoc
	tmp := func(_ ir.Type, mem bool) ir.ValueLoc {
		if mem {
			return s(7)
		}

		return r(9)
	}

	// register and slot swap through the scratch register
	seq := sequentialize([]move{
		{t: ir.I64, src: r(1), dst: s(2)},
		{t: ir.I64, src: s(2), dst: r(1)},
	}, tmp)

	assert.Equal(t, []move{
		{t: ir.I64, src: s(2), dst: r(9)},
		{t: ir.I64, src: r(1), dst: s(2)},
		{t: ir.I64, src: r(9), dst: r(1)},
	}, seq)

	// two slots swap through the temporary slot
	seq = sequentialize([]move{
		{t: ir.I64, src: s(1), dst: s(2)},
		{t: ir.I64, src: s(2), dst: s(1)},
	}, tmp)

	assert.Equal(t, []move{
		{t: ir.I64, src: s(2), dst: s(7)},
		{t: ir.I64, src: s(1), dst: s(2)},
		{t: ir.I64, src: s(7), dst: s(1)},
	}, seq)
}

func TestCoalesce(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "aarch64"})

	f := ir.NewFunction("ident", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)
	b.Ins().Return(ps[0])

	allocate(t, f, ti, Options{})

	for _, i := range insts(f, ir.Copy) {
		d := f.DFG.Inst(i)
		assert.NotEqual(t, f.Locations.Get(d.Args[0]), f.Locations.Get(d.Results[0]), "%v", i)
	}
}

func TestNoRegister(t *testing.T) {
	ti := lookup(t, isa.Descriptor{
		Name:       "riscv64",
		RegClasses: map[string][]string{"gpr": {"t0"}},
	})

	f := ir.NewFunction("add", ir.Signature{Params: []ir.Type{ir.I64, ir.I64}, Returns: []ir.Type{ir.I64}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	b.SwitchToBlock(b0)
	b.Ins().Return(b.Ins().Iadd(ps[0], ps[1]))

	prepare(t, f, ti)

	err := Run(context.Background(), f, ti, Options{})

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "add", e.Func)
}

func TestCheckDetectsSharing(t *testing.T) {
	ti := lookup(t, isa.Descriptor{Name: "riscv64"})
	f, _, _ := pressure()

	allocate(t, f, ti, Options{})

	adds := insts(f, ir.Iadd)
	require.NotEmpty(t, adds)

	d := f.DFG.Inst(adds[len(adds)-1])
	x, y := d.Args[0], d.Args[1]

	f.Locations.Set(y, f.Locations.Get(x))

	var e *Error
	require.ErrorAs(t, Check(f, ti), &e)
}
