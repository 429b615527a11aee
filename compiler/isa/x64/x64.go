// Package x64 is the x86-64 backend.
package x64

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

const Name = "x86_64"

// Extensions are the recognized descriptor extensions.
var Extensions = []string{"sse4.1", "popcnt", "bmi2", "avx2"}

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

	cc, err := desc.Conv(ir.CallConvSystemV)
	if err != nil {
		return nil, errors.Wrap(err, Name)
	}

	if cc != ir.CallConvSystemV && cc != ir.CallConvWindowsFastcall {
		return nil, errors.New("%s: unsupported calling convention %v", Name, cc)
	}

	t := &ISA{desc: desc}

	t.regs = regInfo(cc)

	err = t.regs.Restrict(desc.RegClasses)
	if err != nil {
		return nil, errors.Wrap(err, Name)
	}

	t.conv = convention(cc)
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

	return isa.CommonAction(t, f, d)
}

// Expand has no target specific rewrites, generic expansions apply.
func (t *ISA) Expand(c *ir.Cursor, inst ir.Inst) bool { return false }
