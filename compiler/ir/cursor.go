package ir

type (
	cursorPos uint8

	// Cursor is an insertion point in a function layout.
	Cursor struct {
		Func *Function

		pos   cursorPos
		inst  Inst
		block Block
	}
)

const (
	posNowhere cursorPos = iota
	posBefore             // before inst
	posBottom             // at the end of block
)

func NewCursor(f *Function) *Cursor {
	return &Cursor{Func: f, inst: NoInst, block: NoBlock}
}

// At positions the cursor so that new instructions go right before i.
func (c *Cursor) At(i Inst) *Cursor {
	c.pos, c.inst, c.block = posBefore, i, c.Func.Layout.InstBlock(i)
	return c
}

// After positions the cursor so that new instructions go right after i, in order.
func (c *Cursor) After(i Inst) *Cursor {
	if next := c.Func.Layout.NextInst(i); next != NoInst {
		return c.At(next)
	}

	return c.AtBottom(c.Func.Layout.InstBlock(i))
}

func (c *Cursor) AtBottom(b Block) *Cursor {
	c.pos, c.inst, c.block = posBottom, NoInst, b
	return c
}

func (c *Cursor) AtTop(b Block) *Cursor {
	if first := c.Func.Layout.FirstInst(b); first != NoInst {
		return c.At(first)
	}

	return c.AtBottom(b)
}

func (c *Cursor) Block() Block { return c.block }

// Inst returns the instruction the cursor is in front of or NoInst.
func (c *Cursor) Inst() Inst { return c.inst }

func (c *Cursor) insert(i Inst) {
	switch c.pos {
	case posBefore:
		c.Func.Layout.InsertInstBefore(i, c.inst)
	case posBottom:
		c.Func.Layout.AppendInst(i, c.block)
	default:
		panic("cursor is not positioned")
	}
}

// Ins returns a builder inserting at the cursor.
func (c *Cursor) Ins() InstBuilder {
	return InstBuilder{c: c, replace: NoInst}
}

// Replace returns a builder rewriting i in place keeping its results.
func (c *Cursor) Replace(i Inst) InstBuilder {
	return InstBuilder{c: c, replace: i}
}

// Remove unlinks i from the layout.
func (c *Cursor) Remove(i Inst) {
	if c.pos == posBefore && c.inst == i {
		next := c.Func.Layout.NextInst(i)
		b := c.Func.Layout.InstBlock(i)

		c.Func.Layout.RemoveInst(i)

		if next != NoInst {
			c.At(next)
		} else {
			c.AtBottom(b)
		}

		return
	}

	c.Func.Layout.RemoveInst(i)
}
