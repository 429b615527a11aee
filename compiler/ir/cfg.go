package ir

import "github.com/spacemeshos/cranelift/compiler/entity"

type (
	// BlockPredecessor is a branch instruction reaching a block.
	BlockPredecessor struct {
		Block Block
		Inst  Inst
	}

	ControlFlowGraph struct {
		preds entity.Map[Block, []BlockPredecessor]
		succs entity.Map[Block, []Block]

		valid bool
	}
)

// Successors returns branch destinations of a terminator in order, without duplicates.
func Successors(f *Function, term Inst) []Block {
	if term == NoInst {
		return nil
	}

	data := f.DFG.Inst(term)

	var r []Block

	add := func(b Block) {
		for _, x := range r {
			if x == b {
				return
			}
		}

		r = append(r, b)
	}

	for _, t := range data.Targets {
		add(t.Block)
	}

	if data.Opcode == BrTable && f.JumpTables.Valid(data.Table) {
		for _, b := range f.JumpTables.Get(data.Table).Blocks {
			add(b)
		}
	}

	return r
}

func ComputeCFG(f *Function) *ControlFlowGraph {
	c := &ControlFlowGraph{}
	c.Compute(f)

	return c
}

func (c *ControlFlowGraph) Compute(f *Function) {
	c.Clear()

	for _, b := range f.Layout.Blocks() {
		term := f.Terminator(b)
		succs := Successors(f, term)

		c.succs.Set(b, succs)

		for _, s := range succs {
			c.preds.Set(s, append(c.preds.Get(s), BlockPredecessor{Block: b, Inst: term}))
		}
	}

	c.valid = true
}

func (c *ControlFlowGraph) Clear() {
	c.preds.Reset()
	c.succs.Reset()
	c.valid = false
}

func (c *ControlFlowGraph) IsValid() bool { return c.valid }

func (c *ControlFlowGraph) Preds(b Block) []BlockPredecessor { return c.preds.Get(b) }

func (c *ControlFlowGraph) Succs(b Block) []Block { return c.succs.Get(b) }

// EliminateUnreachable removes blocks which can't be reached from the entry block.
// It reports whether anything was removed.
func EliminateUnreachable(f *Function) bool {
	dt := ComputeDomTree(f, ComputeCFG(f))

	removed := false

	for _, b := range f.Layout.Blocks() {
		if dt.IsReachable(b) {
			continue
		}

		f.Layout.RemoveBlock(b)
		removed = true
	}

	return removed
}
