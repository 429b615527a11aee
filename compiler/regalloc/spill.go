package regalloc

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

// spill moves each value to its own stack slot right after definition
// and reloads it right before every use.
// The value and its reloads live only across single instructions afterwards.
// Block parameters are assigned the slot directly and jump arguments are
// passed from the slot, so neither needs a register.
func (a *allocator) spill(vals []ir.Value) error {
	f := a.f
	dfg := &f.DFG
	c := a.c

	uses := ir.ComputeUses(f)

	for _, v := range vals {
		typ := dfg.ValueType(v)
		ss := f.CreateStackSlot(ir.SlotSpill, int32(typ.Bytes()))

		s := v

		def, b := dfg.ValueDef(v)
		switch {
		case def == ir.NoInst && b != f.Layout.EntryBlock():
			f.Locations.Set(v, ir.StackLoc(ss))
		default:
			if def != ir.NoInst {
				c.After(def)
			} else {
				c.AtTop(b)
			}

			s = c.Ins().Spill(v)
			f.Locations.Set(s, ir.StackLoc(ss))

			if err := a.encodeDef(s); err != nil {
				return err
			}

			a.noSpill.Set(v, true)
		}

		for _, i := range uses.Of(v) {
			d := dfg.Inst(i)

			if d.Opcode == ir.Jump {
				d.MapUses(func(x ir.Value) ir.Value {
					if dfg.Resolve(x) == v {
						return s
					}

					return x
				})

				continue
			}

			c.At(i)

			r := c.Ins().Fill(s)
			if err := a.encodeDef(r); err != nil {
				return err
			}

			a.noSpill.Set(r, true)

			d.MapUses(func(x ir.Value) ir.Value {
				if dfg.Resolve(x) == v {
					return r
				}

				return x
			})
		}
	}

	return nil
}
