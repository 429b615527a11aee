// Package regalloc assigns registers and stack slots to values of a legalized and encoded function.
//
// The allocator is a linear scan over live intervals built from block liveness.
// Fixed register operands are satisfied by short pinned copies.
// Values which do not fit are spilled everywhere and allocation is repeated.
// Block arguments are passed by parallel moves before jumps.
// Block parameters which don't fit in registers stay in stack slots.
package regalloc

import (
	"context"
	"fmt"
	"slices"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/spacemeshos/cranelift/compiler/entity"
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type (
	Options struct {
		// MaxRounds bounds spill and reallocate iterations.
		MaxRounds int

		// SpillPolicy chooses the value to spill. DefaultSpillPolicy if nil.
		SpillPolicy SpillPolicy
	}

	// Candidate is a value competing for a register.
	Candidate struct {
		Value ir.Value

		// Uses is the number of uses at or after the conflict position.
		Uses int

		// Start and End bound the live interval.
		Start, End int32
	}

	// SpillPolicy returns the index of the candidate to spill.
	SpillPolicy func(cands []Candidate) int

	// Error is an allocation failure: a constraint can't be satisfied.
	Error struct {
		Func   string
		Value  ir.Value
		Block  ir.Block
		Reason string

		from loc.PC
	}

	allocator struct {
		f *ir.Function
		t isa.TargetISA
		c *ir.Cursor

		opts Options

		live *liveness

		// noSpill values are spill and fill temporaries.
		noSpill entity.Map[ir.Value, bool]
		hints   entity.Map[ir.Value, []ir.Value]

		regs [64]regState

		tmpSlot ir.StackSlot
	}

	regState struct {
		ivals []*interval
		fixed []segment
	}
)

const DefaultMaxRounds = 8

// DefaultSpillPolicy prefers values with fewer remaining uses,
// then longer intervals, then older values.
func DefaultSpillPolicy(cands []Candidate) int {
	best := 0

	for k, c := range cands[1:] {
		b := cands[best]

		switch {
		case c.Uses != b.Uses:
			if c.Uses < b.Uses {
				best = k + 1
			}
		case c.End-c.Start != b.End-b.Start:
			if c.End-c.Start > b.End-b.Start {
				best = k + 1
			}
		case c.Value < b.Value:
			best = k + 1
		}
	}

	return best
}

// Run allocates registers for f.
// Every instruction must have an encoding.
func Run(ctx context.Context, f *ir.Function, t isa.TargetISA, opts Options) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "regalloc: function", "func", f.Name, "isa", t.Name())
	defer tr.Finish("err", &err)

	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}

	if opts.SpillPolicy == nil {
		opts.SpillPolicy = DefaultSpillPolicy
	}

	a := &allocator{
		f:    f,
		t:    t,
		c:    ir.NewCursor(f),
		opts: opts,

		tmpSlot: ir.NoStackSlot,
	}

	err = a.constrain()
	if err != nil {
		return errors.Wrap(err, "constraints")
	}

	spills := 0

	for round := 0; ; round++ {
		if round == opts.MaxRounds {
			return a.errorf(ir.NoValue, "no allocation after %d rounds", round)
		}

		a.live = computeLiveness(f, t)
		a.collectHints()

		spilled, err := a.scan()
		if err != nil {
			return err
		}

		tr.V("regalloc").Printw("round", "round", round, "intervals", len(a.live.order), "spilled", spilled)

		if len(spilled) == 0 {
			break
		}

		err = a.spill(spilled)
		if err != nil {
			return errors.Wrap(err, "spill")
		}

		spills += len(spilled)
	}

	err = a.resolveJumps()
	if err != nil {
		return errors.Wrap(err, "block arguments")
	}

	removed := a.coalesce()

	a.calleeSaved()

	tr.V("regalloc").Printw("allocated", "spills", spills, "coalesced", removed, "saved", len(f.Frame.Saved))

	if tr.If("dump_regalloc") {
		tr.Printw("allocated", "func", f.String())
	}

	return nil
}

func (a *allocator) encode(i ir.Inst) error {
	return isa.Encode(a.f, a.t, i)
}

func (a *allocator) errorf(v ir.Value, format string, args ...any) *Error {
	e := &Error{
		Func:   a.f.Name,
		Value:  v,
		Block:  ir.NoBlock,
		Reason: fmt.Sprintf(format, args...),
		from:   loc.Caller(1),
	}

	if v != ir.NoValue {
		if i, b := a.f.DFG.ValueDef(v); i != ir.NoInst {
			e.Block = a.f.Layout.InstBlock(i)
		} else {
			e.Block = b
		}
	}

	return e
}

// collectHints pairs copy operands and block arguments with parameters.
func (a *allocator) collectHints() {
	f := a.f

	a.hints.Reset()

	hint := func(x, y ir.Value) {
		if !slices.Contains(a.hints.Get(x), y) {
			a.hints.Set(x, append(a.hints.Get(x), y))
		}

		if !slices.Contains(a.hints.Get(y), x) {
			a.hints.Set(y, append(a.hints.Get(y), x))
		}
	}

	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			d := f.DFG.Inst(i)

			switch d.Opcode {
			case ir.Copy:
				hint(d.Args[0], d.Results[0])
			case ir.Jump:
				params := f.DFG.BlockParams(d.Targets[0].Block)

				for k, v := range d.Targets[0].Args {
					hint(v, params[k])
				}
			}
		}
	}
}

// calleeSaved records callee-saved registers written by the function.
func (a *allocator) calleeSaved() {
	f := a.f
	ri := a.t.RegInfo()

	var used isa.RegSet

	for _, v := range a.live.order {
		if loc := f.Locations.Get(v); loc.Kind == ir.LocReg {
			used = used.Set(int(loc.Reg))
		}
	}

	f.Frame.Saved = f.Frame.Saved[:0]

	used.And(ri.CalleeSaved).Range(func(r int) bool {
		f.Frame.Saved = append(f.Frame.Saved, ir.RegUnit(r))
		return true
	})
}

func (e *Error) Error() string {
	if e.Value == ir.NoValue {
		return fmt.Sprintf("regalloc %s: %s", e.Func, e.Reason)
	}

	return fmt.Sprintf("regalloc %s: %v in %v: %s", e.Func, e.Value, e.Block, e.Reason)
}

// From is where the error was detected.
func (e *Error) From() loc.PC { return e.from }
