package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond builds:
//
//	block0(v0) -> block1 | block2 -> block3(v) -> return
func diamond(t *testing.T) (*Function, []Block) {
	t.Helper()

	f := NewFunction("diamond", Signature{Params: []Type{I64}, Returns: []Type{I64}})
	b := NewBuilder(f)

	b0 := b.CreateBlock()
	b1 := b.CreateBlock()
	b2 := b.CreateBlock()
	b3 := b.CreateBlock()

	x := b.AppendEntryParams(b0)[0]

	b.SwitchToBlock(b0)
	c := b.Ins().IcmpImm(Slt, x, 10)
	b.Ins().Brif(c, b1, nil, b2, nil)

	b.SwitchToBlock(b1)
	y := b.Ins().IaddImm(x, 1)
	b.Ins().Jump(b3, y)

	b.SwitchToBlock(b2)
	z := b.Ins().Imul(x, x)
	b.Ins().Jump(b3, z)

	r := b.AppendBlockParam(b3, I64)

	b.SwitchToBlock(b3)
	b.Ins().Return(r)

	return f, []Block{b0, b1, b2, b3}
}

func TestBuilderLayout(t *testing.T) {
	f, bs := diamond(t)

	assert.Equal(t, bs, f.Layout.Blocks())
	assert.Equal(t, bs[0], f.Layout.EntryBlock())

	insts := f.Layout.Insts(bs[0])
	require.Len(t, insts, 2)
	assert.Equal(t, IcmpImm, f.DFG.Inst(insts[0]).Opcode)
	assert.Equal(t, I8, f.DFG.ValueType(f.DFG.FirstResult(insts[0])))
	assert.Equal(t, insts[1], f.Terminator(bs[0]))

	// insert before the terminator and remove it again
	c := NewCursor(f).At(insts[1])
	v := c.Ins().Iconst(I32, 5)
	i, _ := f.DFG.ValueDef(v)

	assert.Equal(t, []Inst{insts[0], i, insts[1]}, f.Layout.Insts(bs[0]))
	assert.Equal(t, bs[0], f.Layout.InstBlock(i))

	c.Remove(i)
	assert.Equal(t, insts, f.Layout.Insts(bs[0]))
	assert.False(t, f.Layout.IsInstInserted(i))

	// After at the last instruction appends
	c.After(insts[1])
	j := c.Ins().Trap(TrapUser)
	assert.Equal(t, j, f.Layout.LastInst(bs[0]))
}

func TestReplaceKeepsResults(t *testing.T) {
	f, bs := diamond(t)

	i := f.Layout.FirstInst(bs[1])
	r := f.DFG.FirstResult(i)

	x := f.DFG.BlockParams(bs[0])[0]
	c := NewCursor(f).At(i)
	one := c.Ins().Iconst(I64, 1)
	c.Replace(i).Iadd(x, one)

	d := f.DFG.Inst(i)
	assert.Equal(t, Iadd, d.Opcode)
	assert.Equal(t, []Value{r}, d.Results)
	assert.Equal(t, []Value{x, one}, d.Args)
}

func TestAliases(t *testing.T) {
	f, bs := diamond(t)

	i := f.Layout.FirstInst(bs[2])
	z := f.DFG.FirstResult(i)
	x := f.DFG.BlockParams(bs[0])[0]

	f.DFG.ChangeToAlias(z, x)
	assert.Equal(t, x, f.DFG.Resolve(z))
	assert.Panics(t, func() { f.DFG.ChangeToAlias(x, z) })

	u := ComputeUses(f)
	assert.Len(t, u.Of(x), 4) // icmp_imm, iadd_imm, imul and the jump through alias

	ResolveAllAliases(f)

	jump := f.Terminator(bs[2])
	assert.Equal(t, []Value{x}, f.DFG.Inst(jump).Targets[0].Args)

	assert.True(t, RemoveDeadCode(f))
	assert.False(t, f.Layout.IsInstInserted(i))
	assert.False(t, RemoveDeadCode(f))
}

func TestCFGAndDomTree(t *testing.T) {
	f, bs := diamond(t)

	cfg := ComputeCFG(f)

	assert.Equal(t, []Block{bs[1], bs[2]}, cfg.Succs(bs[0]))
	assert.Len(t, cfg.Preds(bs[3]), 2)
	assert.Empty(t, cfg.Preds(bs[0]))

	dt := ComputeDomTree(f, cfg)

	assert.Equal(t, bs[0], dt.RPO()[0])
	assert.Equal(t, bs[0], dt.Idom(bs[3]))
	assert.Equal(t, NoBlock, dt.Idom(bs[0]))

	assert.True(t, dt.Dominates(bs[0], bs[3]))
	assert.True(t, dt.Dominates(bs[1], bs[1]))
	assert.False(t, dt.Dominates(bs[1], bs[3]))
	assert.False(t, dt.Dominates(bs[3], bs[0]))

	// unreachable block
	b := NewBuilder(f)
	dead := b.CreateBlock()
	b.SwitchToBlock(dead)
	b.Ins().Jump(bs[3], f.DFG.BlockParams(bs[0])[0])

	cfg.Compute(f)
	dt.Compute(f, cfg)

	assert.False(t, dt.IsReachable(dead))
	assert.False(t, dt.Dominates(dead, bs[3]))
	assert.Equal(t, bs[0], dt.Idom(bs[3]))
}

func TestDomTreeLoop(t *testing.T) {
	f := NewFunction("loop", Signature{})
	b := NewBuilder(f)

	b0 := b.CreateBlock()
	b1 := b.CreateBlock()
	b2 := b.CreateBlock()
	b3 := b.CreateBlock()

	b.SwitchToBlock(b0)
	zero := b.Ins().Iconst(I32, 0)
	b.Ins().Jump(b1, zero)

	b.SwitchToBlock(b1)
	i := b.AppendBlockParam(b1, I32)
	c := b.Ins().IcmpImm(Ult, i, 10)
	b.Ins().Brif(c, b2, nil, b3, nil)

	b.SwitchToBlock(b2)
	n := b.Ins().IaddImm(i, 1)
	b.Ins().Jump(b1, n)

	b.SwitchToBlock(b3)
	b.Ins().Return()

	cfg := ComputeCFG(f)
	dt := ComputeDomTree(f, cfg)

	assert.Equal(t, []Block{b0, b1, b2, b3}, f.Layout.Blocks())
	assert.Equal(t, b1, dt.Idom(b2))
	assert.Equal(t, b1, dt.Idom(b3))
	assert.True(t, dt.Dominates(b1, b2))
	assert.False(t, dt.Dominates(b2, b1))
}

func TestEliminateUnreachable(t *testing.T) {
	f, bs := diamond(t)

	assert.False(t, EliminateUnreachable(f))

	b := NewBuilder(f)

	l1 := b.CreateBlock()
	l2 := b.CreateBlock()

	x := b.AppendBlockParam(l1, I64)

	b.SwitchToBlock(l1)
	j1 := b.Ins().Jump(l2)

	b.SwitchToBlock(l2)
	j2 := b.Ins().Jump(l1, b.Ins().IaddImm(x, 1))

	require.Len(t, f.Layout.Blocks(), 6)

	assert.True(t, EliminateUnreachable(f))
	assert.Equal(t, bs, f.Layout.Blocks())
	assert.False(t, f.Layout.IsInstInserted(j1))
	assert.False(t, f.Layout.IsInstInserted(j2))

	assert.False(t, EliminateUnreachable(f))
}

func TestReplaceBlockParam(t *testing.T) {
	f := NewFunction("params", Signature{Params: []Type{I32, I64, I32}})
	b := NewBuilder(f)

	b0 := b.CreateBlock()
	ps := b.AppendEntryParams(b0)

	parts := f.DFG.ReplaceBlockParam(ps[1], I32, I32)

	assert.Equal(t, []Value{ps[0], parts[0], parts[1], ps[2]}, f.DFG.BlockParams(b0))
	assert.Equal(t, 3, f.DFG.Value(ps[2]).Num)
	assert.Equal(t, ValueDetached, f.DFG.Value(ps[1]).Kind)

	i := f.DFG.MakeInst(InstData{Opcode: Iconcat, Type: I64, Args: parts})
	f.DFG.AttachResult(i, ps[1])
	f.Layout.AppendInst(i, b0)

	def, blk := f.DFG.ValueDef(ps[1])
	assert.Equal(t, i, def)
	assert.Equal(t, NoBlock, blk)
	assert.Equal(t, ValueResult, f.DFG.Value(ps[1]).Kind)
}

func TestFormat(t *testing.T) {
	f, _ := diamond(t)

	s := f.String()

	assert.Contains(t, s, "function %diamond(i64) -> i64 {")
	assert.Contains(t, s, "block0(v0: i64):")
	assert.Contains(t, s, "v1 = icmp_imm.i64 slt, v0, 10")
	assert.Contains(t, s, "brif.i8 v1, block1, block2")
	assert.Contains(t, s, "jump block3[v2]")
}

func TestCondCodes(t *testing.T) {
	for c := Eq; c <= Ule; c++ {
		assert.Equal(t, c, c.Inverse().Inverse(), "%v", c)
		assert.Equal(t, c, c.Swap().Swap(), "%v", c)
		assert.NotEqual(t, c, c.Inverse(), "%v", c)
		assert.Equal(t, c.Signed(), c.Inverse().Signed(), "%v", c)
	}

	assert.Equal(t, Sgt, Slt.Swap())
	assert.Equal(t, Uge, Ult.Inverse())
}
