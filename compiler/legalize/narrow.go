package legalize

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

// narrow rewrites a 64 bit operation as operations on 32 bit halves.
// 64 bit values are produced by iconcat and consumed through isplit,
// an isplit of an iconcat resolves to the iconcat arguments.
func (l *legalizer) narrow(i ir.Inst) bool {
	f := l.f
	dfg := &f.DFG
	d := dfg.Inst(i)
	c := l.c

	c.At(i)

	switch d.Opcode {
	case ir.Isplit:
		def, _ := dfg.ValueDef(d.Args[0])
		if def == ir.NoInst || dfg.Inst(def).Opcode != ir.Iconcat {
			return false
		}

		cd := dfg.Inst(def)
		l.alias(i, cd.Args[0], cd.Args[1])

		return true
	case ir.Iconcat:
		return false
	case ir.Iconst:
		lo := c.Ins().Iconst(ir.I32, int64(int32(d.Imm)))
		hi := c.Ins().Iconst(ir.I32, d.Imm>>32)
		c.Replace(i).Iconcat(lo, hi)

		return true
	case ir.Iadd, ir.Isub:
		xl, xh := l.halves(d.Args[0])
		yl, yh := l.halves(d.Args[1])

		var lo, carry, hi ir.Value

		if d.Opcode == ir.Iadd {
			lo, carry = c.Ins().IaddCout(xl, yl)
			hi = c.Ins().IaddCin(xh, yh, carry)
		} else {
			lo, carry = c.Ins().IsubBout(xl, yl)
			hi = c.Ins().IsubBin(xh, yh, carry)
		}

		c.Replace(i).Iconcat(lo, hi)

		return true
	case ir.Band, ir.Bor, ir.Bxor:
		xl, xh := l.halves(d.Args[0])
		yl, yh := l.halves(d.Args[1])

		lo := c.Ins().Binary(d.Opcode, xl, yl)
		hi := c.Ins().Binary(d.Opcode, xh, yh)
		c.Replace(i).Iconcat(lo, hi)

		return true
	case ir.Bnot, ir.Copy:
		xl, xh := l.halves(d.Args[0])

		lo := c.Ins().Unary(d.Opcode, xl)
		hi := c.Ins().Unary(d.Opcode, xh)
		c.Replace(i).Iconcat(lo, hi)

		return true
	case ir.Ineg:
		z := c.Ins().Iconst(ir.I64, 0)
		c.Replace(i).Isub(z, d.Args[0])

		return true
	case ir.IaddImm, ir.ImulImm, ir.BandImm, ir.BorImm, ir.BxorImm, ir.IshlImm, ir.UshrImm, ir.SshrImm, ir.IcmpImm:
		if d.Type != ir.I64 {
			return false
		}

		return l.expand(i)
	case ir.Ishl, ir.Ushr, ir.Sshr:
		if d.Type == ir.I64 {
			return false
		}

		// 32 bit shift by a 64 bit amount
		d.Args[1], _ = l.halves(d.Args[1])

		return true
	case ir.Icmp:
		if d.Type != ir.I64 {
			return false
		}

		l.narrowIcmp(i)

		return true
	case ir.Select:
		if d.Type != ir.I64 {
			return l.expand(i)
		}

		cond := d.Args[0]
		xl, xh := l.halves(d.Args[1])
		yl, yh := l.halves(d.Args[2])

		lo := c.Ins().Select(cond, xl, yl)
		hi := c.Ins().Select(cond, xh, yh)
		c.Replace(i).Iconcat(lo, hi)

		return true
	case ir.Brif:
		xl, xh := l.halves(d.Args[0])
		d.Args[0] = c.Ins().Bor(xl, xh)
		d.Type = ir.I32

		return true
	case ir.Uextend, ir.Sextend:
		x := d.Args[0]
		switch {
		case l.typeOf(x) == ir.I32:
		case d.Opcode == ir.Uextend:
			x = c.Ins().Uextend(ir.I32, x)
		default:
			x = c.Ins().Sextend(ir.I32, x)
		}

		var hi ir.Value
		if d.Opcode == ir.Uextend {
			hi = c.Ins().Iconst(ir.I32, 0)
		} else {
			hi = c.Ins().SshrImm(x, 31)
		}

		c.Replace(i).Iconcat(x, hi)

		return true
	case ir.Ireduce:
		lo, _ := l.halves(d.Args[0])
		if d.Type == ir.I32 {
			l.alias(i, lo)
			return true
		}

		c.Replace(i).Ireduce(d.Type, lo)

		return true
	case ir.Bitcast:
		l.narrowBitcast(i)

		return true
	case ir.Load, ir.StackLoad, ir.Uload8, ir.Sload8, ir.Uload16, ir.Sload16, ir.Uload32, ir.Sload32:
		return l.narrowLoad(i)
	case ir.Store, ir.StackStore, ir.Istore8, ir.Istore16, ir.Istore32:
		return l.narrowStore(i)
	}

	return false
}

// halves splits a 64 bit value in front of the cursor.
func (l *legalizer) halves(v ir.Value) (lo, hi ir.Value) {
	return l.c.Ins().Isplit(v)
}

// narrowIcmp compares the high halves and falls back to an unsigned compare of the low ones on equality.
func (l *legalizer) narrowIcmp(i ir.Inst) {
	d := l.f.DFG.Inst(i)
	c := l.c

	xl, xh := l.halves(d.Args[0])
	yl, yh := l.halves(d.Args[1])

	switch d.Cond {
	case ir.Eq, ir.Ne:
		lo := c.Ins().Bxor(xl, yl)
		hi := c.Ins().Bxor(xh, yh)
		or := c.Ins().Bor(lo, hi)
		c.Replace(i).IcmpImm(d.Cond, or, 0)

		return
	}

	strict, low := d.Cond, d.Cond.AsUnsigned()

	switch d.Cond {
	case ir.Sle:
		strict = ir.Slt
	case ir.Sge:
		strict = ir.Sgt
	case ir.Ule:
		strict = ir.Ult
	case ir.Uge:
		strict = ir.Ugt
	}

	hs := c.Ins().Icmp(strict, xh, yh)
	he := c.Ins().Icmp(ir.Eq, xh, yh)
	lc := c.Ins().Icmp(low, xl, yl)
	both := c.Ins().Band(he, lc)
	c.Replace(i).Bor(hs, both)
}

// narrowBitcast moves the value through a stack slot.
func (l *legalizer) narrowBitcast(i ir.Inst) {
	f := l.f
	d := f.DFG.Inst(i)
	c := l.c

	ss := f.CreateStackSlot(ir.SlotExplicit, 8)

	x := d.Args[0]

	if l.typeOf(x) == ir.I64 {
		lo, hi := l.halves(x)
		c.Ins().StackStore(lo, ss, 0)
		c.Ins().StackStore(hi, ss, 4)
		c.Replace(i).StackLoad(d.Type, ss, 0)

		return
	}

	c.Ins().StackStore(x, ss, 0)
	lo := c.Ins().StackLoad(ir.I32, ss, 0)
	hi := c.Ins().StackLoad(ir.I32, ss, 4)
	c.Replace(i).Iconcat(lo, hi)
}

func (l *legalizer) narrowLoad(i ir.Inst) bool {
	d := l.f.DFG.Inst(i)
	c := l.c

	if d.Type != ir.I64 {
		return false
	}

	load := func(op ir.Opcode, off int64) ir.Value {
		if d.Opcode == ir.StackLoad {
			return c.Ins().StackLoad(ir.I32, d.Slot, off)
		}

		return c.Ins().LoadSized(op, ir.I32, d.Args[0], off)
	}

	var lo, hi ir.Value

	switch d.Opcode {
	case ir.Load, ir.StackLoad:
		lo = load(ir.Load, d.Imm)
		hi = load(ir.Load, d.Imm+4)
	case ir.Uload32, ir.Sload32:
		lo = load(ir.Load, d.Imm)
	default:
		lo = load(d.Opcode, d.Imm)
	}

	if hi == ir.NoValue {
		if d.Opcode.SignedLoad() {
			hi = c.Ins().SshrImm(lo, 31)
		} else {
			hi = c.Ins().Iconst(ir.I32, 0)
		}
	}

	c.Replace(i).Iconcat(lo, hi)

	return true
}

func (l *legalizer) narrowStore(i ir.Inst) bool {
	d := l.f.DFG.Inst(i)
	c := l.c

	if d.Type != ir.I64 {
		return false
	}

	lo, hi := l.halves(d.Args[0])

	store := func(op ir.Opcode, x ir.Value, off int64) {
		if d.Opcode == ir.StackStore {
			c.Ins().StackStore(x, d.Slot, off)
			return
		}

		c.Ins().StoreSized(op, x, d.Args[1], off)
	}

	switch d.Opcode {
	case ir.Store, ir.StackStore:
		store(ir.Store, lo, d.Imm)
		store(ir.Store, hi, d.Imm+4)
	case ir.Istore32:
		store(ir.Store, lo, d.Imm)
	default:
		store(d.Opcode, lo, d.Imm)
	}

	c.Remove(i)

	return true
}
