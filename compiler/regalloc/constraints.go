package regalloc

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

// constrain makes fixed register operands of recipes explicit.
// An argument is copied into a value pinned to the register right before the instruction.
// A result is produced into a pinned value and copied out right after.
func (a *allocator) constrain() error {
	f := a.f
	dfg := &f.DFG
	tab := a.t.Table()

	return f.Insts(func(b ir.Block, i ir.Inst) error {
		enc := f.Encodings.Get(i)
		if !enc.IsValid() {
			return a.errorf(ir.NoValue, "%v: %v is not encoded", i, dfg.Inst(i).Opcode)
		}

		r := tab.Recipe(enc.Recipe)
		d := dfg.Inst(i)

		for k, c := range r.Ins {
			if c.Kind != isa.Fixed || k >= len(d.Args) {
				continue
			}

			if p, ok := f.Pinned(d.Args[k]); ok && p == c.Reg {
				continue
			}

			a.c.At(i)

			v := a.c.Ins().Copy(d.Args[k])
			f.Pin(v, c.Reg)

			if err := a.encodeDef(v); err != nil {
				return err
			}

			d.Args[k] = v
		}

		for k, c := range r.Outs {
			if c.Kind != isa.Fixed || k >= len(d.Results) {
				continue
			}

			if p, ok := f.Pinned(d.Results[k]); ok && p == c.Reg {
				continue
			}

			old := d.Results[k]
			v := dfg.ReplaceResult(i, k)
			f.Pin(v, c.Reg)

			cp := a.c.After(i).Ins().Copy(v)

			def, _ := dfg.ValueDef(cp)
			dfg.RebindResult(def, 0, old)

			if err := a.encode(def); err != nil {
				return err
			}
		}

		return nil
	})
}

func (a *allocator) encodeDef(v ir.Value) error {
	i, _ := a.f.DFG.ValueDef(v)

	return a.encode(i)
}
