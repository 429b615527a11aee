package legalize

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

// canonicalize expands branch tables and moves brif block arguments into split edge blocks.
// Afterwards only jumps carry block arguments.
func (l *legalizer) canonicalize() {
	f := l.f

	for _, b := range f.Layout.Blocks() {
		term := f.Terminator(b)
		if term == ir.NoInst {
			continue
		}

		switch f.DFG.Inst(term).Opcode {
		case ir.BrTable:
			l.expandBrTable(term)
		case ir.Brif:
			l.splitBrifArgs(term)
		}
	}
}

// expandBrTable replaces a branch table by a chain of comparisons.
func (l *legalizer) expandBrTable(i ir.Inst) {
	f := l.f
	d := f.DFG.Inst(i)

	idx := d.Args[0]
	def := d.Targets[0].Block
	blocks := f.JumpTables.Get(d.Table).Blocks

	cur := f.Layout.InstBlock(i)

	l.c.Remove(i)

	for k, target := range blocks {
		l.c.AtBottom(cur)

		cond := l.c.Ins().IcmpImm(ir.Eq, idx, int64(k))

		next := f.DFG.MakeBlock()
		f.Layout.InsertBlockAfter(next, cur)

		l.c.Ins().Brif(cond, target, nil, next, nil)

		cur = next
	}

	l.c.AtBottom(cur).Ins().Jump(def)
}

// splitBrifArgs gives each brif destination with arguments its own block jumping there.
func (l *legalizer) splitBrifArgs(i ir.Inst) {
	f := l.f
	d := f.DFG.Inst(i)

	b := f.Layout.InstBlock(i)

	for k := len(d.Targets) - 1; k >= 0; k-- {
		t := &d.Targets[k]
		if len(t.Args) == 0 {
			continue
		}

		edge := f.DFG.MakeBlock()
		f.Layout.InsertBlockAfter(edge, b)

		l.c.AtBottom(edge).Ins().Jump(t.Block, t.Args...)

		t.Block = edge
		t.Args = nil
	}
}

// splitBlockParams replaces 64 bit block parameters by pairs of words on 32 bit targets.
// Jump arguments are split accordingly.
func (l *legalizer) splitBlockParams() {
	f := l.f
	dfg := &f.DFG

	entry := f.Layout.EntryBlock()

	for _, b := range f.Layout.Blocks() {
		if b == entry {
			continue
		}

		for _, p := range append([]ir.Value(nil), dfg.BlockParams(b)...) {
			if dfg.ValueType(p) != ir.I64 {
				continue
			}

			halves := dfg.ReplaceBlockParam(p, ir.I32, ir.I32)

			v := l.c.AtTop(b).Ins().Iconcat(halves[0], halves[1])
			def, _ := dfg.ValueDef(v)
			dfg.RebindResult(def, 0, p)
		}
	}

	for _, b := range f.Layout.Blocks() {
		term := f.Terminator(b)
		if term == ir.NoInst || dfg.Inst(term).Opcode != ir.Jump {
			continue
		}

		d := dfg.Inst(term)
		t := &d.Targets[0]

		var args []ir.Value
		split := false

		l.c.At(term)

		for _, a := range t.Args {
			a = dfg.Resolve(a)

			if dfg.ValueType(a) != ir.I64 {
				args = append(args, a)
				continue
			}

			lo, hi := l.c.Ins().Isplit(a)
			args = append(args, lo, hi)
			split = true
		}

		if split {
			t.Args = args
		}
	}
}
