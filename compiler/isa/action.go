package isa

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

// CommonAction decides what to do with an instruction the target cannot encode.
// Targets consult it after their own rules.
func CommonAction(t TargetISA, f *ir.Function, d *ir.InstData) Action {
	if t.Descriptor().WordBits == 32 && Involves(f, d, ir.I64) {
		return Narrow
	}

	switch d.Opcode {
	case ir.Select, ir.F32const, ir.F64const, ir.BrTable,
		ir.IaddCout, ir.IaddCin, ir.IsubBout, ir.IsubBin:
		return Expand
	}

	if (d.Type == ir.I8 || d.Type == ir.I16) && Widenable(d.Opcode) {
		return Widen
	}

	switch d.Opcode {
	case ir.IaddImm, ir.ImulImm, ir.BandImm, ir.BorImm, ir.BxorImm,
		ir.IshlImm, ir.UshrImm, ir.SshrImm, ir.IcmpImm:
		return Expand
	case ir.Load, ir.Uload8, ir.Sload8, ir.Uload16, ir.Sload16, ir.Uload32, ir.Sload32,
		ir.Store, ir.Istore8, ir.Istore16, ir.Istore32:
		return Expand
	}

	return Unsupported
}

// Widenable opcodes are computed in 32 bits when narrower types are not encodable.
func Widenable(op ir.Opcode) bool {
	switch op {
	case ir.Iadd, ir.Isub, ir.Imul, ir.Udiv, ir.Sdiv, ir.Urem, ir.Srem,
		ir.Ineg, ir.Band, ir.Bor, ir.Bxor, ir.Bnot,
		ir.Ishl, ir.Ushr, ir.Sshr,
		ir.IaddImm, ir.ImulImm, ir.BandImm, ir.BorImm, ir.BxorImm,
		ir.IshlImm, ir.UshrImm, ir.SshrImm,
		ir.Icmp, ir.IcmpImm, ir.Select, ir.Brif:
		return true
	default:
		return false
	}
}

// Involves reports whether any operand, result or the controlling type is t.
func Involves(f *ir.Function, d *ir.InstData, t ir.Type) (r bool) {
	if d.Type == t {
		return true
	}

	d.Uses(func(v ir.Value) {
		r = r || f.DFG.ValueType(v) == t
	})

	for _, v := range d.Results {
		r = r || f.DFG.ValueType(v) == t
	}

	return r
}
