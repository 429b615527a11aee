package regalloc

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

type move struct {
	t        ir.Type
	src, dst ir.ValueLoc
}

func (m move) memToMem() bool {
	return m.src.Kind == ir.LocStack && m.dst.Kind == ir.LocStack
}

// resolveJumps passes jump arguments to block parameters.
// Either side may be a register or a stack slot.
func (a *allocator) resolveJumps() error {
	f := a.f

	for _, b := range f.Layout.Blocks() {
		term := f.Terminator(b)
		if term == ir.NoInst {
			continue
		}

		d := f.DFG.Inst(term)
		if d.Opcode != ir.Jump || len(d.Targets[0].Args) == 0 {
			continue
		}

		params := f.DFG.BlockParams(d.Targets[0].Block)

		var moves []move

		for k, v := range d.Targets[0].Args {
			src, dst := f.Locations.Get(v), f.Locations.Get(params[k])

			if src.Kind == ir.LocUnassigned || dst.Kind == ir.LocUnassigned {
				return a.errorf(v, "block argument %d of %v has no location", k, term)
			}

			if src != dst {
				moves = append(moves, move{t: f.DFG.ValueType(v), src: src, dst: dst})
			}
		}

		seq := sequentialize(moves, func(t ir.Type, mem bool) ir.ValueLoc {
			if mem {
				return ir.StackLoc(a.moveSlot())
			}

			return ir.RegLoc(a.scratch(t))
		})

		a.c.At(term)

		for _, m := range seq {
			if err := a.emitMove(m); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *allocator) emitMove(m move) error {
	ins := a.c.Ins

	var is []ir.Inst

	switch {
	case m.src.Kind == ir.LocReg && m.dst.Kind == ir.LocReg:
		is = append(is, ins().Regmove(m.t, m.src.Reg, m.dst.Reg))
	case m.src.Kind == ir.LocReg:
		is = append(is, ins().Regspill(m.t, m.src.Reg, m.dst.Slot))
	case m.dst.Kind == ir.LocReg:
		is = append(is, ins().Regfill(m.t, m.src.Slot, m.dst.Reg))
	default:
		r := a.scratch(m.t)
		is = append(is, ins().Regfill(m.t, m.src.Slot, r), ins().Regspill(m.t, r, m.dst.Slot))
	}

	for _, i := range is {
		if err := a.encode(i); err != nil {
			return err
		}
	}

	return nil
}

func (a *allocator) scratch(t ir.Type) ir.RegUnit {
	return a.t.RegInfo().Classes[a.t.ClassFor(t)].Scratch
}

// moveSlot is the temporary for move cycles which go through memory.
func (a *allocator) moveSlot() ir.StackSlot {
	if a.tmpSlot == ir.NoStackSlot {
		a.tmpSlot = a.f.CreateStackSlot(ir.SlotSpill, 8)
	}

	return a.tmpSlot
}

// sequentialize orders parallel moves so that no source is overwritten before it is read.
// Cycles are broken by saving one destination into a temporary returned by tmp.
// mem is set when a pending move goes from stack to stack,
// such a move needs the scratch register so the temporary must be a stack slot.
func sequentialize(pending []move, tmp func(t ir.Type, mem bool) ir.ValueLoc) (seq []move) {
	pending = append([]move{}, pending...)

	read := func(l ir.ValueLoc) bool {
		for _, m := range pending {
			if m.src == l {
				return true
			}
		}

		return false
	}

	for len(pending) != 0 {
		progress := false

		for k := 0; k < len(pending); k++ {
			m := pending[k]

			if read(m.dst) {
				continue
			}

			seq = append(seq, m)
			pending = append(pending[:k], pending[k+1:]...)
			k--

			progress = true
		}

		if progress {
			continue
		}

		l := pending[0].dst

		var t ir.Type
		mem := false

		for _, m := range pending {
			if m.src == l {
				t = m.t
			}

			mem = mem || m.memToMem()
		}

		s := tmp(t, mem)

		for k := range pending {
			if pending[k].src == l {
				pending[k].src = s
			}
		}

		seq = append(seq, move{t: t, src: l, dst: s})
	}

	return seq
}

// coalesce removes copies between values sharing a register.
func (a *allocator) coalesce() (removed int) {
	f := a.f
	dfg := &f.DFG

	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			d := dfg.Inst(i)
			if d.Opcode != ir.Copy {
				continue
			}

			x, r := f.Locations.Get(d.Args[0]), f.Locations.Get(d.Results[0])
			if x.Kind != ir.LocReg || x != r {
				continue
			}

			res := dfg.DetachResults(i)
			f.Layout.RemoveInst(i)
			dfg.ChangeToAlias(res[0], d.Args[0])

			removed++
		}
	}

	if removed != 0 {
		ir.ResolveAllAliases(f)
	}

	return removed
}
