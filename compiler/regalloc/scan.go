package regalloc

import (
	"slices"

	"nikand.dev/go/heap"

	"github.com/spacemeshos/cranelift/compiler/ir"
)

// scan assigns registers in order of interval start.
// It returns values which must be spilled before the next round.
func (a *allocator) scan() (spilled []ir.Value, err error) {
	f := a.f
	l := a.live

	for r := range a.regs {
		a.regs[r] = regState{}
	}

	for _, c := range l.clobbers {
		rs := &a.regs[c.reg]
		rs.fixed = append(rs.fixed, c.seg)
	}

	q := heap.Heap[*interval]{Less: intervalLess}

	for _, v := range l.order {
		iv := l.ivals.Get(v)

		if a.onStack(v) {
			continue
		}

		p, ok := f.Pinned(v)
		if !ok {
			f.Locations.Set(v, ir.ValueLoc{})
			q.Push(iv)

			continue
		}

		if err := a.reserve(iv, p); err != nil {
			return nil, err
		}

		f.Locations.Set(v, ir.RegLoc(p))
	}

	for q.Len() != 0 {
		iv := q.Pop()

		cls := a.t.ClassFor(f.DFG.ValueType(iv.v))
		alloc := a.t.RegInfo().Classes[cls].Allocatable

		if r, ok := a.pick(iv, alloc); ok {
			a.assign(iv, r)
			continue
		}

		victim, err := a.evict(iv, alloc)
		if err != nil {
			return nil, err
		}

		spilled = append(spilled, victim)
	}

	slices.Sort(spilled)

	return spilled, nil
}

func intervalLess(d []*interval, i, j int) bool {
	if d[i].start() != d[j].start() {
		return d[i].start() < d[j].start()
	}

	return d[i].v < d[j].v
}

// reserve places a pinned value into its register.
func (a *allocator) reserve(iv *interval, r ir.RegUnit) error {
	rs := &a.regs[r]

	for _, s := range rs.fixed {
		if iv.overlapsSeg(s) {
			return a.errorf(iv.v, "pinned to %v which is clobbered at %d", a.t.RegInfo().Name(r), s.from)
		}
	}

	for _, x := range rs.ivals {
		if iv.overlaps(x) {
			return a.errorf(iv.v, "pinned to %v together with %v", a.t.RegInfo().Name(r), x.v)
		}
	}

	rs.ivals = append(rs.ivals, iv)

	return nil
}

// pick finds a free register preferring hinted ones.
func (a *allocator) pick(iv *interval, alloc []ir.RegUnit) (ir.RegUnit, bool) {
	f := a.f

	for _, h := range a.hints.Get(iv.v) {
		loc := f.Locations.Get(h)
		if loc.Kind != ir.LocReg || !slices.Contains(alloc, loc.Reg) {
			continue
		}

		if a.free(iv, loc.Reg) {
			return loc.Reg, true
		}
	}

	for _, r := range alloc {
		if a.free(iv, r) {
			return r, true
		}
	}

	return ir.NoReg, false
}

func (a *allocator) free(iv *interval, r ir.RegUnit) bool {
	rs := &a.regs[r]

	for _, s := range rs.fixed {
		if iv.overlapsSeg(s) {
			return false
		}
	}

	for _, x := range rs.ivals {
		if iv.overlaps(x) {
			return false
		}
	}

	return true
}

func (a *allocator) assign(iv *interval, r ir.RegUnit) {
	a.regs[r].ivals = append(a.regs[r].ivals, iv)
	a.f.Locations.Set(iv.v, ir.RegLoc(r))
}

// evict chooses between iv and values blocking a register by the spill policy.
// A register is contested only if a single spillable value blocks it.
func (a *allocator) evict(iv *interval, alloc []ir.RegUnit) (ir.Value, error) {
	pos := iv.start()

	var cands []Candidate
	var regs []ir.RegUnit

	if !a.noSpill.Get(iv.v) {
		cands = append(cands, candidate(iv, pos))
		regs = append(regs, ir.NoReg)
	}

	for _, r := range alloc {
		x, ok := a.soleConflict(iv, r)
		if !ok {
			continue
		}

		cands = append(cands, candidate(x, pos))
		regs = append(regs, r)
	}

	if len(cands) == 0 {
		cls := a.t.ClassFor(a.f.DFG.ValueType(iv.v))
		return ir.NoValue, a.errorf(iv.v, "no %v register available at %d", cls, pos)
	}

	k := a.opts.SpillPolicy(cands)
	if k < 0 || k >= len(cands) {
		k = 0
	}

	if regs[k] == ir.NoReg {
		return iv.v, nil
	}

	r := regs[k]
	victim := cands[k].Value

	rs := &a.regs[r]
	rs.ivals = slices.DeleteFunc(rs.ivals, func(x *interval) bool { return x.v == victim })

	a.f.Locations.Set(victim, ir.ValueLoc{})
	a.assign(iv, r)

	return victim, nil
}

func (a *allocator) soleConflict(iv *interval, r ir.RegUnit) (*interval, bool) {
	rs := &a.regs[r]

	for _, s := range rs.fixed {
		if iv.overlapsSeg(s) {
			return nil, false
		}
	}

	var c *interval

	for _, x := range rs.ivals {
		if !iv.overlaps(x) {
			continue
		}

		if c != nil {
			return nil, false
		}

		c = x
	}

	if c == nil || a.noSpill.Get(c.v) {
		return nil, false
	}

	if _, ok := a.f.Pinned(c.v); ok {
		return nil, false
	}

	return c, true
}

func candidate(iv *interval, pos int32) Candidate {
	return Candidate{
		Value: iv.v,
		Uses:  iv.usesFrom(pos),
		Start: iv.start(),
		End:   iv.end(),
	}
}

func (a *allocator) onStack(v ir.Value) bool {
	return a.f.Locations.Get(v).Kind == ir.LocStack
}
