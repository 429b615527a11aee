// Package riscv is the RISC-V backend for RV32 and RV64 with the optional m, f and d extensions.
package riscv

import (
	"tlog.app/go/errors"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type (
	ISA struct {
		desc  isa.Descriptor
		regs  *isa.RegInfo
		conv  *isa.Convention
		table *isa.Table
	}
)

const (
	Name32 = "riscv32"
	Name64 = "riscv64"
)

var Extensions = []string{"m", "f", "d"}

func New(desc isa.Descriptor) (*ISA, error) {
	switch desc.Name {
	case Name32:
		if desc.WordBits == 0 {
			desc.WordBits = 32
		}
	case Name64, "":
		if desc.WordBits == 0 {
			desc.WordBits = 64
		}
	}

	name := Name64
	if desc.WordBits == 32 {
		name = Name32
	}

	if desc.WordBits != 32 && desc.WordBits != 64 {
		return nil, errors.New("riscv: unsupported word size %d", desc.WordBits)
	}

	if desc.Name != "" && desc.Name != name {
		return nil, errors.New("riscv: %s is not a %d bit target", desc.Name, desc.WordBits)
	}

	desc.Name = name

	if desc.Endianness != isa.LittleEndian {
		return nil, errors.New("%s: unsupported endianness %v", name, desc.Endianness)
	}

	if desc.Has("d") && !desc.Has("f") {
		return nil, errors.New("%s: extension d requires f", name)
	}

	cc, err := desc.Conv(ir.CallConvRiscV)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}

	if cc != ir.CallConvRiscV {
		return nil, errors.New("%s: unsupported calling convention %v", name, cc)
	}

	t := &ISA{desc: desc}

	t.regs = regInfo(desc.Has("f"))

	err = t.regs.Restrict(desc.RegClasses)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}

	t.conv = convention(desc.WordBits, desc.Has("f"))
	t.table = buildTable(&t.desc)

	return t, nil
}

func (t *ISA) Name() string                { return t.desc.Name }
func (t *ISA) Descriptor() *isa.Descriptor { return &t.desc }
func (t *ISA) RegInfo() *isa.RegInfo       { return t.regs }
func (t *ISA) Convention() *isa.Convention { return t.conv }
func (t *ISA) Table() *isa.Table           { return t.table }

// Frame saves the return address in the frame, there is no frame pointer setup.
func (t *ISA) Frame() isa.FrameStyle { return isa.FrameStyle{SaveLink: true} }

// ClassFor places floats into integer registers when the matching extension is missing.
func (t *ISA) ClassFor(typ ir.Type) isa.RegClass {
	switch {
	case typ == ir.F32 && t.desc.Has("f"):
		return isa.FPR
	case typ == ir.F64 && t.desc.Has("d"):
		return isa.FPR
	default:
		return isa.GPR
	}
}

func (t *ISA) Action(f *ir.Function, inst ir.Inst) isa.Action {
	d := f.DFG.Inst(inst)

	rv32 := t.desc.WordBits == 32

	// Entries are keyed on the controlling type, an i64 operand is never encodable on rv32.
	wide := rv32 && isa.Involves(f, d, ir.I64)

	if !wide && t.table.Has(f, d) {
		return isa.Legal
	}

	switch d.Opcode {
	case ir.Imul, ir.Udiv, ir.Sdiv, ir.Urem, ir.Srem:
		if d.Type == ir.I64 && rv32 || (d.Type == ir.I32 || d.Type == ir.I64) && !t.desc.Has("m") {
			return isa.Libcall
		}
	case ir.Ishl, ir.Ushr, ir.Sshr:
		if d.Type == ir.I64 && rv32 {
			return isa.Libcall
		}
	case ir.Fadd, ir.Fsub, ir.Fmul, ir.Fdiv:
		if d.Type == ir.F32 && !t.desc.Has("f") || d.Type == ir.F64 && !t.desc.Has("d") && !rv32 {
			return isa.Libcall
		}
	case ir.Ineg, ir.Bnot:
		if d.Type == ir.I32 || d.Type == ir.I64 {
			return isa.Expand
		}
	}

	if rv32 && !t.desc.Has("d") && isa.Involves(f, d, ir.F64) {
		return isa.Unsupported
	}

	return isa.CommonAction(t, f, d)
}

// Expand rewrites operations the base instruction set has no direct form of.
func (t *ISA) Expand(c *ir.Cursor, inst ir.Inst) bool {
	f := c.Func
	d := f.DFG.Inst(inst)

	x := d.Args[0]

	c.At(inst)

	switch d.Opcode {
	case ir.Ineg:
		z := c.Ins().Iconst(d.Type, 0)
		c.Replace(inst).Isub(z, x)
	case ir.Bnot:
		c.Replace(inst).BinaryImm(ir.BxorImm, x, -1)
	default:
		return false
	}

	return true
}
