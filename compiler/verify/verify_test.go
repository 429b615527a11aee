package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/cranelift/compiler/ir"
)

func valid(t *testing.T) (*ir.Function, *ir.Builder) {
	t.Helper()

	f := ir.NewFunction("sum", ir.Signature{Params: []ir.Type{ir.I32}, Returns: []ir.Type{ir.I32}})
	b := ir.NewBuilder(f)

	b0 := b.CreateBlock()
	b1 := b.CreateBlock()
	b2 := b.CreateBlock()

	n := b.AppendEntryParams(b0)[0]

	b.SwitchToBlock(b0)
	zero := b.Ins().Iconst(ir.I32, 0)
	b.Ins().Jump(b1, zero, zero)

	i := b.AppendBlockParam(b1, ir.I32)
	acc := b.AppendBlockParam(b1, ir.I32)

	b.SwitchToBlock(b1)
	c := b.Ins().Icmp(ir.Ult, i, n)
	acc2 := b.Ins().Iadd(acc, i)
	i2 := b.Ins().IaddImm(i, 1)
	b.Ins().Brif(c, b1, []ir.Value{i2, acc2}, b2, nil)

	b.SwitchToBlock(b2)
	b.Ins().Return(acc)

	return f, b
}

func requireRule(t *testing.T, err error, r Rule) {
	t.Helper()

	var errs Errors
	require.ErrorAs(t, err, &errs)
	assert.True(t, errs.Has(r), "want %v in %v", r, err)
}

func TestValid(t *testing.T) {
	f, _ := valid(t)

	require.NoError(t, Function(f, Flags{}))
}

func TestMissingTerminator(t *testing.T) {
	f, _ := valid(t)

	b2 := f.Layout.Blocks()[2]
	f.Layout.RemoveInst(f.Layout.LastInst(b2))

	requireRule(t, Function(f, Flags{}), RuleTerminator)
}

func TestTerminatorInTheMiddle(t *testing.T) {
	f, b := valid(t)

	b2 := f.Layout.Blocks()[2]
	b.SwitchToBlock(b2)
	b.Ins().Trap(ir.TrapUnreachable)

	requireRule(t, Function(f, Flags{}), RuleTerminator)
}

func TestUseNotDominated(t *testing.T) {
	f, _ := valid(t)

	blocks := f.Layout.Blocks()

	// value defined in the loop body used in the entry block
	acc2 := f.DFG.FirstResult(f.Layout.Insts(blocks[1])[1])

	c := ir.NewCursor(f).At(f.Layout.LastInst(blocks[0]))
	c.Ins().IaddImm(acc2, 1)

	requireRule(t, Function(f, Flags{}), RuleDominance)
}

func TestUseBeforeDefInBlock(t *testing.T) {
	f, _ := valid(t)

	b1 := f.Layout.Blocks()[1]
	insts := f.Layout.Insts(b1)

	// icmp uses the result of a later iadd_imm
	i2 := f.DFG.FirstResult(insts[2])
	f.DFG.Inst(insts[0]).Args[0] = i2

	requireRule(t, Function(f, Flags{}), RuleDominance)
}

func TestTypeMismatch(t *testing.T) {
	f, _ := valid(t)

	b0 := f.Layout.Blocks()[0]
	c := ir.NewCursor(f).At(f.Layout.LastInst(b0))

	x := c.Ins().Iconst(ir.I64, 1)
	y := c.Ins().Iconst(ir.I32, 2)
	c.Ins().Build(ir.InstData{Opcode: ir.Iadd, Type: ir.I64, Args: []ir.Value{x, y}})

	requireRule(t, Function(f, Flags{}), RuleType)
}

func TestBranchArgs(t *testing.T) {
	f, _ := valid(t)

	b0 := f.Layout.Blocks()[0]
	jump := f.Layout.LastInst(b0)

	d := f.DFG.Inst(jump)
	d.Targets[0].Args = d.Targets[0].Args[:1]

	requireRule(t, Function(f, Flags{}), RuleBranchArgs)
}

func TestCallSignature(t *testing.T) {
	f, b := valid(t)

	fn := b.ImportFunction("callee", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})

	b0 := f.Layout.Blocks()[0]
	c := ir.NewCursor(f).At(f.Layout.LastInst(b0))

	x := c.Ins().Iconst(ir.I32, 1)
	c.Ins().Call(fn, x)

	requireRule(t, Function(f, Flags{}), RuleCallSig)
}

func TestUndefinedValue(t *testing.T) {
	f, _ := valid(t)

	b0 := f.Layout.Blocks()[0]
	first := f.Layout.FirstInst(b0)

	// unlink the constant still used by the jump
	f.Layout.RemoveInst(first)

	requireRule(t, Function(f, Flags{}), RuleSingleDef)
}

func TestEntryParams(t *testing.T) {
	f, _ := valid(t)

	f.Sig.Params = append(f.Sig.Params, ir.I64)

	requireRule(t, Function(f, Flags{}), RuleEntry)
}

func TestLocations(t *testing.T) {
	f, _ := valid(t)

	err := Function(f, Flags{Locations: true})
	requireRule(t, err, RuleLocation)

	for _, v := range f.DFG.Values.Keys() {
		f.Locations.Set(v, ir.RegLoc(ir.RegUnit(v)))
	}

	require.NoError(t, Function(f, Flags{Locations: true}))

	n := f.DFG.BlockParams(f.Layout.EntryBlock())[0]
	f.Pin(n, 100)

	requireRule(t, Function(f, Flags{Locations: true}), RuleLocation)
}

func TestErrorsFormat(t *testing.T) {
	errs := Errors{
		{Entity: ir.Inst(3), Rule: RuleType, Message: "bad"},
		{Entity: ir.Value(1), Rule: RuleDominance, Message: "worse"},
	}

	assert.Equal(t, "2 verifier errors:\n\tinst3: type: bad\n\tv1: dominance: worse", errs.Error())
	assert.Equal(t, "inst3: type: bad", errs[:1].Error())
}
