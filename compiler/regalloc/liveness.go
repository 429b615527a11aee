package regalloc

import (
	"slices"

	"github.com/spacemeshos/cranelift/compiler/entity"
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
	"github.com/spacemeshos/cranelift/compiler/set"
)

type (
	// segment is a half-open range of program points.
	segment struct {
		from, to int32
	}

	interval struct {
		v    ir.Value
		segs []segment
		uses []int32
	}

	// clobber is a register written by an instruction without a value.
	clobber struct {
		reg ir.RegUnit
		seg segment
	}

	// liveness numbers the function linearly.
	// Block h starts at 2h and defines its parameters at 2h+1.
	// Instruction k reads its arguments at 2k and writes results at 2k+1.
	liveness struct {
		f *ir.Function

		pos      entity.Map[ir.Inst, int32]
		blockPos entity.Map[ir.Block, int32]
		blockEnd entity.Map[ir.Block, int32]

		in, out entity.Map[ir.Block, set.Bits[ir.Value]]

		ivals entity.Map[ir.Value, *interval]
		order []ir.Value

		clobbers []clobber
	}
)

func computeLiveness(f *ir.Function, t isa.TargetISA) *liveness {
	l := &liveness{f: f}

	l.number()
	l.solve()
	l.intervals()
	l.collectClobbers(t)

	return l
}

func (l *liveness) number() {
	f := l.f
	n := int32(0)

	for _, b := range f.Layout.Blocks() {
		l.blockPos.Set(b, n)
		n++

		for _, i := range f.Layout.Insts(b) {
			l.pos.Set(i, n)
			n++
		}

		l.blockEnd.Set(b, 2*n)
	}
}

// solve computes live-in and live-out sets with a backward worklist.
func (l *liveness) solve() {
	f := l.f
	cfg := ir.ComputeCFG(f)

	blocks := f.Layout.Blocks()

	var gen, kill entity.Map[ir.Block, set.Bits[ir.Value]]

	for _, b := range blocks {
		var g, k set.Bits[ir.Value]

		for _, p := range f.DFG.BlockParams(b) {
			k.Set(p)
		}

		for _, i := range f.Layout.Insts(b) {
			d := f.DFG.Inst(i)

			d.Uses(func(v ir.Value) {
				v = f.DFG.Resolve(v)

				if !k.IsSet(v) {
					g.Set(v)
				}
			})

			for _, r := range d.Results {
				k.Set(r)
			}
		}

		gen.Set(b, g)
		kill.Set(b, k)
		l.in.Set(b, g.Copy())
	}

	work := slices.Clone(blocks)
	slices.Reverse(work)

	var queued set.Bits[ir.Block]

	for _, b := range work {
		queued.Set(b)
	}

	for len(work) != 0 {
		b := work[0]
		work = work[1:]
		queued.Clear(b)

		var out set.Bits[ir.Value]

		for _, s := range cfg.Succs(b) {
			out.Merge(l.in.Get(s))
		}

		l.out.Set(b, out)

		in := out.Copy()
		in.Substract(kill.Get(b))
		in.Merge(gen.Get(b))

		if in.Equal(l.in.Get(b)) {
			continue
		}

		l.in.Set(b, in)

		for _, p := range cfg.Preds(b) {
			if !queued.IsSet(p.Block) {
				queued.Set(p.Block)
				work = append(work, p.Block)
			}
		}
	}
}

func (l *liveness) intervals() {
	f := l.f

	for _, b := range f.Layout.Blocks() {
		open := map[ir.Value]int32{}
		end := l.blockEnd.Get(b)

		l.out.Get(b).Range(func(v ir.Value) bool {
			open[v] = end
			return true
		})

		insts := f.Layout.Insts(b)

		for n := len(insts) - 1; n >= 0; n-- {
			i := insts[n]
			k := l.pos.Get(i)
			d := f.DFG.Inst(i)

			for _, r := range d.Results {
				l.def(open, r, 2*k+1)
			}

			d.Uses(func(v ir.Value) {
				v = f.DFG.Resolve(v)
				iv := l.interval(v)

				if n := len(iv.uses); n == 0 || iv.uses[n-1] != 2*k {
					iv.uses = append(iv.uses, 2*k)
				}

				if _, ok := open[v]; !ok {
					open[v] = 2*k + 1
				}
			})
		}

		h := l.blockPos.Get(b)

		for _, p := range f.DFG.BlockParams(b) {
			l.def(open, p, 2*h+1)
		}

		for v, to := range open {
			l.add(v, segment{2 * h, to})
		}
	}

	for _, v := range l.order {
		iv := l.ivals.Get(v)

		slices.SortFunc(iv.segs, func(x, y segment) int { return int(x.from - y.from) })
		slices.Sort(iv.uses)

		merged := iv.segs[:1]

		for _, s := range iv.segs[1:] {
			last := &merged[len(merged)-1]

			if s.from <= last.to {
				last.to = max(last.to, s.to)
				continue
			}

			merged = append(merged, s)
		}

		iv.segs = merged
	}

	slices.Sort(l.order)
}

func (l *liveness) def(open map[ir.Value]int32, v ir.Value, at int32) {
	to, ok := open[v]
	if !ok {
		to = at + 1
	}

	delete(open, v)

	l.add(v, segment{at, to})
}

func (l *liveness) add(v ir.Value, s segment) {
	iv := l.interval(v)
	iv.segs = append(iv.segs, s)
}

func (l *liveness) interval(v ir.Value) *interval {
	iv := l.ivals.Get(v)
	if iv == nil {
		iv = &interval{v: v}
		l.ivals.Set(v, iv)
		l.order = append(l.order, v)
	}

	return iv
}

// collectClobbers reserves registers written by instructions besides their results.
func (l *liveness) collectClobbers(t isa.TargetISA) {
	f := l.f
	ri := t.RegInfo()
	tab := t.Table()

	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			enc := f.Encodings.Get(i)
			if !enc.IsValid() {
				continue
			}

			r := tab.Recipe(enc.Recipe)
			k := l.pos.Get(i)

			early := segment{2 * k, 2*k + 1}
			late := segment{2*k + 1, 2*k + 2}

			r.EarlyClobbers.Range(func(u int) bool {
				l.clobbers = append(l.clobbers, clobber{ir.RegUnit(u), early})
				return true
			})

			regs := r.Clobbers

			if r.Call {
				regs = regs.Or(ri.CallerSaved)

				for _, res := range f.DFG.InstResults(i) {
					if p, ok := f.Pinned(res); ok {
						regs = regs.Clear(int(p))
					}
				}
			}

			regs.Range(func(u int) bool {
				l.clobbers = append(l.clobbers, clobber{ir.RegUnit(u), late})
				return true
			})
		}
	}
}

func (iv *interval) start() int32 { return iv.segs[0].from }
func (iv *interval) end() int32   { return iv.segs[len(iv.segs)-1].to }

// usesFrom counts uses at or after pos.
func (iv *interval) usesFrom(pos int32) int {
	n, _ := slices.BinarySearch(iv.uses, pos)

	return len(iv.uses) - n
}

func (iv *interval) overlaps(x *interval) bool {
	return overlaps(iv.segs, x.segs)
}

func (iv *interval) overlapsSeg(s segment) bool {
	return overlaps(iv.segs, []segment{s})
}

func overlaps(a, b []segment) bool {
	for i, j := 0, 0; i < len(a) && j < len(b); {
		if a[i].from < b[j].to && b[j].from < a[i].to {
			return true
		}

		if a[i].to <= b[j].to {
			i++
		} else {
			j++
		}
	}

	return false
}
