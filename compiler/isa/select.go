package isa

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/spacemeshos/cranelift/compiler/ir"
)

// Encode assigns an encoding to inst.
func Encode(f *ir.Function, t TargetISA, inst ir.Inst) error {
	d := f.DFG.Inst(inst)

	enc, ok := t.Table().Lookup(f, d)
	if !ok {
		return &EncodingError{ISA: t.Name(), Inst: inst, Opcode: d.Opcode, Type: d.Type}
	}

	f.Encodings.Set(inst, enc)

	return nil
}

// Select folds constant operands into immediate forms where the target
// can encode them and assigns encodings to all instructions.
// Constants left unused are removed.
func Select(ctx context.Context, f *ir.Function, t TargetISA) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "isa: select", "func", f.Name, "isa", t.Name())
	defer tr.Finish("err", &err)

	folded := 0

	err = f.Insts(func(b ir.Block, i ir.Inst) error {
		f.DFG.ResolveArgs(i)

		if foldImm(f, t, i) {
			folded++
		}

		return Encode(f, t, i)
	})
	if err != nil {
		return err
	}

	if folded != 0 && ir.RemoveDeadCode(f) {
		tr.V("select").Printw("dead constants removed", "folded", folded)
	}

	return nil
}

func foldImm(f *ir.Function, t TargetISA, i ir.Inst) bool {
	d := f.DFG.Inst(i)

	imm, ok := d.Opcode.ImmForm()
	if !ok || len(d.Args) != 2 || !d.Type.IsInt() {
		return false
	}

	x, y := d.Args[0], d.Args[1]
	cc := d.Cond

	c, ok := f.DFG.Const(y)
	if !ok && (d.Opcode.IsCommutative() || d.Opcode == ir.Icmp) {
		c, ok = f.DFG.Const(x)
		x = y

		cc = cc.Swap()
	}

	if !ok {
		return false
	}

	c = SextImm(c, d.Type)

	switch d.Opcode {
	case ir.Isub:
		if c == SextImm(-c, d.Type) && c != 0 {
			return false
		}

		c = -c
	case ir.Ishl, ir.Ushr, ir.Sshr:
		c &= int64(d.Type.Bits() - 1)
	}

	nd := ir.InstData{
		Opcode: imm,
		Type:   d.Type,
		Cond:   cc,
		Args:   []ir.Value{x},
		Imm:    c,
	}

	if !t.Table().Has(f, &nd) {
		return false
	}

	f.DFG.Replace(i, nd)

	return true
}

// SextImm interprets the low bits of c as a signed value of type t.
func SextImm(c int64, t ir.Type) int64 {
	switch t.Bits() {
	case 8:
		return int64(int8(c))
	case 16:
		return int64(int16(c))
	case 32:
		return int64(int32(c))
	default:
		return c
	}
}

// ZextImm interprets the low bits of c as an unsigned value of type t.
func ZextImm(c int64, t ir.Type) int64 {
	switch t.Bits() {
	case 8:
		return int64(uint8(c))
	case 16:
		return int64(uint16(c))
	case 32:
		return int64(uint32(c))
	default:
		return c
	}
}
