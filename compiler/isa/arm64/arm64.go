// Package arm64 is the AArch64 backend.
package arm64

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

const Name = "aarch64"

var Extensions = []string{"fp", "asimd"}

func New(desc isa.Descriptor) (*ISA, error) {
	if desc.WordBits == 0 {
		desc.WordBits = 64
	}

	if desc.WordBits != 64 {
		return nil, errors.New("%s: unsupported word size %d", Name, desc.WordBits)
	}

	if desc.Endianness != isa.LittleEndian {
		return nil, errors.New("%s: unsupported endianness %v", Name, desc.Endianness)
	}

	cc, err := desc.Conv(ir.CallConvAAPCS64)
	if err != nil {
		return nil, errors.Wrap(err, Name)
	}

	if cc != ir.CallConvAAPCS64 {
		return nil, errors.New("%s: unsupported calling convention %v", Name, cc)
	}

	t := &ISA{desc: desc}

	t.regs = regInfo()

	err = t.regs.Restrict(desc.RegClasses)
	if err != nil {
		return nil, errors.Wrap(err, Name)
	}

	t.conv = convention()
	t.table = buildTable(&t.desc)

	return t, nil
}

func (t *ISA) Name() string                { return Name }
func (t *ISA) Descriptor() *isa.Descriptor { return &t.desc }
func (t *ISA) RegInfo() *isa.RegInfo       { return t.regs }
func (t *ISA) Convention() *isa.Convention { return t.conv }
func (t *ISA) Table() *isa.Table           { return t.table }
func (t *ISA) Frame() isa.FrameStyle       { return isa.FrameStyle{SetupSize: 16} }

func (t *ISA) ClassFor(typ ir.Type) isa.RegClass {
	if typ.IsFloat() {
		return isa.FPR
	}

	return isa.GPR
}

func (t *ISA) Action(f *ir.Function, inst ir.Inst) isa.Action {
	d := f.DFG.Inst(inst)

	if t.table.Has(f, d) {
		return isa.Legal
	}

	if (d.Opcode == ir.Urem || d.Opcode == ir.Srem) && (d.Type == ir.I32 || d.Type == ir.I64) {
		return isa.Expand
	}

	return isa.CommonAction(t, f, d)
}

// Expand computes remainders from the quotient, there is no remainder instruction.
func (t *ISA) Expand(c *ir.Cursor, inst ir.Inst) bool {
	f := c.Func
	d := f.DFG.Inst(inst)

	div := ir.Udiv
	switch d.Opcode {
	case ir.Urem:
	case ir.Srem:
		div = ir.Sdiv
	default:
		return false
	}

	x, y := d.Args[0], d.Args[1]

	c.At(inst)

	q := c.Ins().Binary(div, x, y)
	m := c.Ins().Imul(q, y)

	c.Replace(inst).Isub(x, m)

	return true
}
