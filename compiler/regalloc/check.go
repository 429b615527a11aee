package regalloc

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

// Check verifies an allocated function.
// Values live at the same time never share a register,
// pinned values are in their registers, registers clobbered by an instruction
// hold no value live across it and every operand is where its instruction expects it.
// Block parameters and jump arguments may be in registers or stack slots.
func Check(f *ir.Function, t isa.TargetISA) error {
	a := &allocator{f: f, t: t}
	l := computeLiveness(f, t)

	var regs [64][]*interval

	for _, v := range l.order {
		iv := l.ivals.Get(v)
		loc := f.Locations.Get(v)

		switch loc.Kind {
		case ir.LocStack:
			continue
		case ir.LocUnassigned:
			return a.errorf(v, "no location")
		}

		if p, ok := f.Pinned(v); ok && p != loc.Reg {
			return a.errorf(v, "in %v, pinned to %v", t.RegInfo().Name(loc.Reg), t.RegInfo().Name(p))
		}

		for _, x := range regs[loc.Reg] {
			if iv.overlaps(x) {
				return a.errorf(v, "shares %v with %v", t.RegInfo().Name(loc.Reg), x.v)
			}
		}

		regs[loc.Reg] = append(regs[loc.Reg], iv)
	}

	for _, c := range l.clobbers {
		for _, x := range regs[c.reg] {
			if x.overlapsSeg(c.seg) {
				return a.errorf(x.v, "%v is clobbered at %d", t.RegInfo().Name(c.reg), c.seg.from)
			}
		}
	}

	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			d := f.DFG.Inst(i)

			var err error

			d.Uses(func(v ir.Value) {
				want := ir.LocReg
				switch d.Opcode {
				case ir.Fill:
					want = ir.LocStack
				case ir.Jump:
					// block arguments are moved from wherever they are
					want = f.Locations.Get(v).Kind
					if want == ir.LocUnassigned {
						want = ir.LocReg
					}
				}

				if k := f.Locations.Get(v).Kind; k != want && err == nil {
					err = a.errorf(v, "used by %v: location kind %d, want %d", i, k, want)
				}
			})

			if err != nil {
				return err
			}
		}
	}

	return nil
}
