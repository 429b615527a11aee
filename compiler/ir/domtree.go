package ir

import "github.com/spacemeshos/cranelift/compiler/entity"

type (
	// DomTree is the dominator tree of reachable blocks.
	DomTree struct {
		rpo    []Block
		rpoNum entity.Map[Block, int32] // 0 is unreachable
		idom   entity.Map[Block, Block]
	}
)

func ComputeDomTree(f *Function, cfg *ControlFlowGraph) *DomTree {
	d := &DomTree{}
	d.Compute(f, cfg)

	return d
}

// Compute builds the tree using the iterative algorithm by Cooper, Harvey and Kennedy.
func (d *DomTree) Compute(f *Function, cfg *ControlFlowGraph) {
	d.Clear()

	entry := f.Layout.EntryBlock()
	if entry == NoBlock {
		return
	}

	d.computeRPO(entry, cfg)

	for i, b := range d.rpo {
		d.rpoNum.Set(b, int32(i+1))
	}

	d.idom.Set(entry, entry)

	for changed := true; changed; {
		changed = false

		for _, b := range d.rpo[1:] {
			nidom := NoBlock

			for _, p := range cfg.Preds(b) {
				if d.rpoNum.Get(p.Block) == 0 || d.idom.Get(p.Block) == NoBlock {
					continue
				}

				if nidom == NoBlock {
					nidom = p.Block
					continue
				}

				nidom = d.intersect(p.Block, nidom)
			}

			if d.idom.Get(b) != nidom {
				d.idom.Set(b, nidom)
				changed = true
			}
		}
	}

	d.idom.Set(entry, NoBlock)
}

// computeRPO walks the CFG depth first with an explicit stack.
func (d *DomTree) computeRPO(entry Block, cfg *ControlFlowGraph) {
	type frame struct {
		b    Block
		next int
	}

	visited := entity.MakeMap[Block](false)
	stack := []frame{{b: entry}}
	visited.Set(entry, true)

	var post []Block

	for len(stack) != 0 {
		top := &stack[len(stack)-1]
		succs := cfg.Succs(top.b)

		if top.next < len(succs) {
			s := succs[top.next]
			top.next++

			if !visited.Get(s) {
				visited.Set(s, true)
				stack = append(stack, frame{b: s})
			}

			continue
		}

		post = append(post, top.b)
		stack = stack[:len(stack)-1]
	}

	d.rpo = make([]Block, len(post))
	for i, b := range post {
		d.rpo[len(post)-1-i] = b
	}
}

func (d *DomTree) intersect(a, b Block) Block {
	for a != b {
		for d.rpoNum.Get(a) > d.rpoNum.Get(b) {
			a = d.idom.Get(a)
		}

		for d.rpoNum.Get(b) > d.rpoNum.Get(a) {
			b = d.idom.Get(b)
		}
	}

	return a
}

func (d *DomTree) Clear() {
	d.rpo = d.rpo[:0]
	d.rpoNum = entity.MakeMap[Block](int32(0))
	d.idom = entity.MakeMap[Block](NoBlock)
}

// RPO returns reachable blocks in reverse postorder.
func (d *DomTree) RPO() []Block { return d.rpo }

func (d *DomTree) IsReachable(b Block) bool { return d.rpoNum.Get(b) != 0 }

// Idom returns the immediate dominator or NoBlock for the entry and unreachable blocks.
func (d *DomTree) Idom(b Block) Block { return d.idom.Get(b) }

// Dominates reports whether a dominates b. Every block dominates itself.
func (d *DomTree) Dominates(a, b Block) bool {
	if !d.IsReachable(a) || !d.IsReachable(b) {
		return false
	}

	na := d.rpoNum.Get(a)

	for b != NoBlock && d.rpoNum.Get(b) > na {
		b = d.idom.Get(b)
	}

	return a == b
}
