package ir

import (
	"fmt"

	"github.com/spacemeshos/cranelift/compiler/entity"
)

type (
	blockNode struct {
		prev, next  Block
		first, last Inst
		inserted    bool
	}

	instNode struct {
		block      Block
		prev, next Inst
	}

	// Layout is the order of blocks and of instructions within blocks.
	// Entities not in the layout still exist in the DataFlowGraph.
	Layout struct {
		blocks entity.Map[Block, blockNode]
		insts  entity.Map[Inst, instNode]

		first, last Block
	}
)

func MakeLayout() Layout {
	return Layout{
		blocks: entity.MakeMap[Block](blockNode{prev: NoBlock, next: NoBlock, first: NoInst, last: NoInst}),
		insts:  entity.MakeMap[Inst](instNode{block: NoBlock, prev: NoInst, next: NoInst}),
		first:  NoBlock,
		last:   NoBlock,
	}
}

func (l *Layout) Clear() {
	l.blocks.Reset()
	l.insts.Reset()
	l.first, l.last = NoBlock, NoBlock
}

func (l *Layout) EntryBlock() Block { return l.first }
func (l *Layout) LastBlock() Block  { return l.last }

func (l *Layout) IsBlockInserted(b Block) bool { return l.blocks.Get(b).inserted }

func (l *Layout) NextBlock(b Block) Block { return l.blocks.Get(b).next }
func (l *Layout) PrevBlock(b Block) Block { return l.blocks.Get(b).prev }

func (l *Layout) AppendBlock(b Block) {
	l.checkNotInserted(b)

	n := l.blocks.Ptr(b)
	n.inserted = true
	n.prev = l.last
	n.next = NoBlock

	if l.last != NoBlock {
		l.blocks.Ptr(l.last).next = b
	} else {
		l.first = b
	}

	l.last = b
}

func (l *Layout) InsertBlockAfter(b, after Block) {
	l.checkNotInserted(b)

	next := l.blocks.Get(after).next

	n := l.blocks.Ptr(b)
	n.inserted = true
	n.prev = after
	n.next = next

	l.blocks.Ptr(after).next = b

	if next != NoBlock {
		l.blocks.Ptr(next).prev = b
	} else {
		l.last = b
	}
}

// RemoveBlock unlinks the block and all of its instructions.
func (l *Layout) RemoveBlock(b Block) {
	for i := l.FirstInst(b); i != NoInst; {
		next := l.NextInst(i)
		l.RemoveInst(i)
		i = next
	}

	n := l.blocks.Get(b)

	if n.prev != NoBlock {
		l.blocks.Ptr(n.prev).next = n.next
	} else {
		l.first = n.next
	}

	if n.next != NoBlock {
		l.blocks.Ptr(n.next).prev = n.prev
	} else {
		l.last = n.prev
	}

	l.blocks.Set(b, blockNode{prev: NoBlock, next: NoBlock, first: NoInst, last: NoInst})
}

// Blocks returns blocks in layout order.
func (l *Layout) Blocks() []Block {
	var r []Block

	for b := l.first; b != NoBlock; b = l.blocks.Get(b).next {
		r = append(r, b)
	}

	return r
}

func (l *Layout) FirstInst(b Block) Inst { return l.blocks.Get(b).first }
func (l *Layout) LastInst(b Block) Inst  { return l.blocks.Get(b).last }

func (l *Layout) NextInst(i Inst) Inst { return l.insts.Get(i).next }
func (l *Layout) PrevInst(i Inst) Inst { return l.insts.Get(i).prev }

// InstBlock returns the block containing the instruction or NoBlock.
func (l *Layout) InstBlock(i Inst) Block { return l.insts.Get(i).block }

func (l *Layout) IsInstInserted(i Inst) bool { return l.insts.Get(i).block != NoBlock }

// Insts returns instructions of the block in order.
func (l *Layout) Insts(b Block) []Inst {
	var r []Inst

	for i := l.blocks.Get(b).first; i != NoInst; i = l.insts.Get(i).next {
		r = append(r, i)
	}

	return r
}

func (l *Layout) AppendInst(i Inst, b Block) {
	l.checkInstNotInserted(i)

	if !l.blocks.Get(b).inserted {
		panic(fmt.Sprintf("append %v to %v: block not in layout", i, b))
	}

	bn := l.blocks.Ptr(b)
	last := bn.last

	if last == NoInst {
		bn.first = i
	}

	bn.last = i

	if last != NoInst {
		l.insts.Ptr(last).next = i
	}

	l.insts.Set(i, instNode{block: b, prev: last, next: NoInst})
}

// InsertInstBefore inserts i right before the inserted instruction before.
func (l *Layout) InsertInstBefore(i, before Inst) {
	l.checkInstNotInserted(i)

	bn := l.insts.Get(before)
	if bn.block == NoBlock {
		panic(fmt.Sprintf("insert %v before %v: not in layout", i, before))
	}

	l.insts.Set(i, instNode{block: bn.block, prev: bn.prev, next: before})
	l.insts.Ptr(before).prev = i

	if bn.prev != NoInst {
		l.insts.Ptr(bn.prev).next = i
	} else {
		l.blocks.Ptr(bn.block).first = i
	}
}

// InsertInstAfter inserts i right after the inserted instruction after.
func (l *Layout) InsertInstAfter(i, after Inst) {
	an := l.insts.Get(after)
	if an.block == NoBlock {
		panic(fmt.Sprintf("insert %v after %v: not in layout", i, after))
	}

	if an.next == NoInst {
		l.AppendInst(i, an.block)
		return
	}

	l.InsertInstBefore(i, an.next)
}

// PrependInst inserts i at the top of b.
func (l *Layout) PrependInst(i Inst, b Block) {
	if first := l.blocks.Get(b).first; first != NoInst {
		l.InsertInstBefore(i, first)
		return
	}

	l.AppendInst(i, b)
}

func (l *Layout) RemoveInst(i Inst) {
	n := l.insts.Get(i)
	if n.block == NoBlock {
		panic(fmt.Sprintf("remove %v: not in layout", i))
	}

	if n.prev != NoInst {
		l.insts.Ptr(n.prev).next = n.next
	} else {
		l.blocks.Ptr(n.block).first = n.next
	}

	if n.next != NoInst {
		l.insts.Ptr(n.next).prev = n.prev
	} else {
		l.blocks.Ptr(n.block).last = n.prev
	}

	l.insts.Set(i, instNode{block: NoBlock, prev: NoInst, next: NoInst})
}

func (l *Layout) checkNotInserted(b Block) {
	if l.blocks.Get(b).inserted {
		panic(fmt.Sprintf("%v is already in layout", b))
	}
}

func (l *Layout) checkInstNotInserted(i Inst) {
	if l.insts.Get(i).block != NoBlock {
		panic(fmt.Sprintf("%v is already in layout", i))
	}
}
