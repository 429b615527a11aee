package legalize

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

// widen computes an 8 or 16 bit operation in 32 bits and truncates the result.
func (l *legalizer) widen(i ir.Inst) bool {
	d := l.f.DFG.Inst(i)
	c := l.c
	t := d.Type

	c.At(i)

	switch d.Opcode {
	case ir.Brif:
		d.Args[0] = c.Ins().Uextend(ir.I32, d.Args[0])
		d.Type = ir.I32

		return true
	case ir.Icmp:
		x := l.extend(d.Args[0], d.Cond.Signed())
		y := l.extend(d.Args[1], d.Cond.Signed())
		c.Replace(i).Icmp(d.Cond, x, y)

		return true
	case ir.IcmpImm:
		x := l.extend(d.Args[0], d.Cond.Signed())

		imm := isa.ZextImm(d.Imm, t)
		if d.Cond.Signed() {
			imm = isa.SextImm(d.Imm, t)
		}

		c.Replace(i).IcmpImm(d.Cond, x, imm)

		return true
	case ir.Select:
		return l.expand(i)
	}

	if !isa.Widenable(d.Opcode) {
		return false
	}

	signed := d.Opcode == ir.Sdiv || d.Opcode == ir.Srem || d.Opcode == ir.Sshr || d.Opcode == ir.SshrImm
	shift := d.Opcode == ir.Ishl || d.Opcode == ir.Ushr || d.Opcode == ir.Sshr
	mask := int64(t.Bits() - 1)

	var r ir.Value

	x := l.extend(d.Args[0], signed)

	switch {
	case len(d.Args) == 2:
		y := d.Args[1]

		if shift {
			y = c.Ins().BandImm(l.extend(y, false), mask)
		} else {
			y = l.extend(y, signed)
		}

		r = c.Ins().Binary(d.Opcode, x, y)
	case d.Opcode == ir.Ineg || d.Opcode == ir.Bnot:
		r = c.Ins().Unary(d.Opcode, x)
	default:
		imm := d.Imm

		switch d.Opcode {
		case ir.IshlImm, ir.UshrImm, ir.SshrImm:
			imm &= mask
		}

		r = c.Ins().BinaryImm(d.Opcode, x, imm)
	}

	c.Replace(i).Ireduce(t, r)

	return true
}

func (l *legalizer) extend(v ir.Value, signed bool) ir.Value {
	switch {
	case l.typeOf(v) == ir.I32:
		return v
	case signed:
		return l.c.Ins().Sextend(ir.I32, v)
	default:
		return l.c.Ins().Uextend(ir.I32, v)
	}
}
