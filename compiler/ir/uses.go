package ir

import "github.com/spacemeshos/cranelift/compiler/entity"

type (
	// Uses is an index based multimap from values to instructions using them.
	// It is a snapshot and must be recomputed after the function changes.
	Uses struct {
		m entity.Map[Value, []Inst]
	}
)

// ComputeUses collects uses of resolved values by instructions in the layout.
func ComputeUses(f *Function) *Uses {
	u := &Uses{}

	for b := f.Layout.EntryBlock(); b != NoBlock; b = f.Layout.NextBlock(b) {
		for i := f.Layout.FirstInst(b); i != NoInst; i = f.Layout.NextInst(i) {
			f.DFG.Inst(i).Uses(func(v Value) {
				v = f.DFG.Resolve(v)
				l := u.m.Get(v)

				if n := len(l); n != 0 && l[n-1] == i {
					return
				}

				u.m.Set(v, append(l, i))
			})
		}
	}

	return u
}

func (u *Uses) Of(v Value) []Inst { return u.m.Get(v) }

func (u *Uses) Count(v Value) int { return len(u.m.Get(v)) }

// RemoveDeadCode removes instructions without side effects whose results are unused.
// It reports whether anything was removed.
func RemoveDeadCode(f *Function) bool {
	removed := false

	for {
		u := ComputeUses(f)
		n := 0

		for b := f.Layout.EntryBlock(); b != NoBlock; b = f.Layout.NextBlock(b) {
			for i := f.Layout.FirstInst(b); i != NoInst; {
				next := f.Layout.NextInst(i)
				data := f.DFG.Inst(i)

				if !data.Opcode.HasSideEffects() && dead(u, data.Results) {
					f.Layout.RemoveInst(i)
					n++
				}

				i = next
			}
		}

		if n == 0 {
			return removed
		}

		removed = true
	}
}

func dead(u *Uses, rs []Value) bool {
	for _, r := range rs {
		if u.Count(r) != 0 {
			return false
		}
	}

	return true
}

// ResolveAllAliases rewrites arguments of all instructions to resolved values.
func ResolveAllAliases(f *Function) {
	for b := f.Layout.EntryBlock(); b != NoBlock; b = f.Layout.NextBlock(b) {
		for i := f.Layout.FirstInst(b); i != NoInst; i = f.Layout.NextInst(i) {
			f.DFG.ResolveArgs(i)
		}
	}
}
