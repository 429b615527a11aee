package legalize

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

// expand applies the target independent expansion of i.
func (l *legalizer) expand(i ir.Inst) bool {
	f := l.f
	d := f.DFG.Inst(i)
	c := l.c

	c.At(i)

	switch d.Opcode {
	case ir.BrTable:
		l.expandBrTable(i)
	case ir.Select:
		l.expandSelect(i)
	case ir.F32const:
		bits := c.Ins().Iconst(ir.I32, int64(int32(uint32(d.Imm))))
		c.Replace(i).Bitcast(ir.F32, bits)
	case ir.F64const:
		bits := c.Ins().Iconst(ir.I64, d.Imm)
		c.Replace(i).Bitcast(ir.F64, bits)
	case ir.IaddCout:
		x, y := d.Args[0], d.Args[1]
		s := c.Ins().Iadd(x, y)
		carry := c.Ins().Icmp(ir.Ult, s, x)

		l.alias(i, s, carry)
	case ir.IsubBout:
		x, y := d.Args[0], d.Args[1]
		s := c.Ins().Isub(x, y)
		borrow := c.Ins().Icmp(ir.Ult, x, y)

		l.alias(i, s, borrow)
	case ir.IaddCin, ir.IsubBin:
		x, y, cin := d.Args[0], d.Args[1], d.Args[2]
		op := ir.Iadd
		if d.Opcode == ir.IsubBin {
			op = ir.Isub
		}

		s := c.Ins().Binary(op, x, y)
		w := c.Ins().Uextend(d.Type, cin)
		c.Replace(i).Binary(op, s, w)
	case ir.Ineg:
		z := c.Ins().Iconst(d.Type, 0)
		c.Replace(i).Isub(z, d.Args[0])
	case ir.Bnot:
		c.Replace(i).BxorImm(d.Args[0], -1)
	case ir.Urem, ir.Srem:
		div := ir.Udiv
		if d.Opcode == ir.Srem {
			div = ir.Sdiv
		}

		x, y := d.Args[0], d.Args[1]
		q := c.Ins().Binary(div, x, y)
		m := c.Ins().Imul(q, y)
		c.Replace(i).Isub(x, m)
	case ir.IcmpImm:
		k := c.Ins().Iconst(d.Type, d.Imm)
		c.Replace(i).Icmp(d.Cond, d.Args[0], k)
	case ir.IaddImm, ir.ImulImm, ir.BandImm, ir.BorImm, ir.BxorImm, ir.IshlImm, ir.UshrImm, ir.SshrImm:
		op, _ := d.Opcode.RegForm()
		k := c.Ins().Iconst(d.Type, d.Imm)
		c.Replace(i).Binary(op, d.Args[0], k)
	default:
		if d.Opcode.IsLoad() || d.Opcode.IsStore() {
			return l.expandMemOffset(i)
		}

		return false
	}

	return true
}

// expandSelect computes y ^ ((x ^ y) & mask) where mask is all ones when the condition holds.
// Floats are selected as integers of the same size.
func (l *legalizer) expandSelect(i ir.Inst) {
	f := l.f
	d := f.DFG.Inst(i)
	c := l.c

	cond, x, y := d.Args[0], d.Args[1], d.Args[2]
	t := d.Type

	it := t.IntOfSize()
	if it != t {
		x = c.Ins().Bitcast(it, x)
		y = c.Ins().Bitcast(it, y)
	}

	b := c.Ins().IcmpImm(ir.Ne, cond, 0)
	if it != ir.I8 {
		b = c.Ins().Uextend(it, b)
	}

	mask := c.Ins().Ineg(b)
	diff := c.Ins().Bxor(x, y)
	r := c.Ins().Band(diff, mask)

	if it == t {
		c.Replace(i).Bxor(r, y)
		return
	}

	r = c.Ins().Bxor(r, y)
	c.Replace(i).Bitcast(t, r)
}

// expandMemOffset moves a memory offset the target cannot encode into the address.
func (l *legalizer) expandMemOffset(i ir.Inst) bool {
	d := l.f.DFG.Inst(i)

	if d.Opcode == ir.StackLoad || d.Opcode == ir.StackStore || d.Imm == 0 {
		return false
	}

	k := len(d.Args) - 1

	d.Args[k] = l.c.At(i).Ins().IaddImm(d.Args[k], d.Imm)
	d.Imm = 0

	return true
}
