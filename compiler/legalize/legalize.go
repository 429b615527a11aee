// Package legalize rewrites a function until every instruction is encodable by the target.
package legalize

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/spacemeshos/cranelift/compiler/abi"
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type (
	Options struct {
		// MaxPasses bounds the fixed point iteration.
		MaxPasses int
	}

	legalizer struct {
		f *ir.Function
		t isa.TargetISA
		c *ir.Cursor

		rv32 bool // 32 bit words
	}
)

const DefaultMaxPasses = 16

// Function legalizes f for t.
//
// Branch tables are expanded and edges carrying block arguments out of brif are split first.
// Then the signature, calls and returns are lowered to the calling convention.
// Then instructions are rewritten by their target action until nothing changes.
// Running it again on its own output changes nothing.
func Function(ctx context.Context, f *ir.Function, t isa.TargetISA, opts Options) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "legalize: function", "func", f.Name, "isa", t.Name())
	defer tr.Finish("err", &err)

	if opts.MaxPasses <= 0 {
		opts.MaxPasses = DefaultMaxPasses
	}

	l := &legalizer{
		f:    f,
		t:    t,
		c:    ir.NewCursor(f),
		rv32: t.Descriptor().WordBits == 32,
	}

	l.canonicalize()

	err = abi.Lower(ctx, f, t)
	if err != nil {
		return errors.Wrap(err, "abi")
	}

	if l.rv32 {
		l.splitBlockParams()
	}

	for pass := 0; ; pass++ {
		if pass == opts.MaxPasses {
			return l.stuck(pass)
		}

		changed, err := l.pass()
		if err != nil {
			return err
		}

		ir.RemoveDeadCode(f)

		tr.V("legalize").Printw("pass", "pass", pass, "changed", changed)

		if changed == 0 {
			if err := l.stuck(pass + 1); err != nil {
				return err
			}

			break
		}
	}

	ir.ResolveAllAliases(f)

	if tr.If("dump_legalize") {
		tr.Printw("legalized", "func", f.String())
	}

	return nil
}

// pass visits every instruction once and reports the number of rewrites.
func (l *legalizer) pass() (changed int, err error) {
	f := l.f

	err = f.Insts(func(b ir.Block, i ir.Inst) error {
		f.DFG.ResolveArgs(i)

		act := l.t.Action(f, i)

		var ok bool

		switch act {
		case isa.Legal:
			return nil
		case isa.Expand:
			ok = l.t.Expand(l.c, i) || l.expand(i)
		case isa.Narrow:
			ok = l.narrow(i)
		case isa.Widen:
			ok = l.widen(i)
		case isa.Libcall:
			ok, err = l.libcall(i)
		case isa.Unsupported:
			d := f.DFG.Inst(i)
			return &UnsupportedError{ISA: l.t.Name(), Inst: i, Opcode: d.Opcode, Type: d.Type}
		}

		if err != nil {
			return errors.Wrap(err, "%v", i)
		}

		if ok {
			changed++
		}

		return nil
	})

	return changed, err
}

// stuck returns an InternalError for the first instruction which is still illegal.
func (l *legalizer) stuck(passes int) error {
	f := l.f

	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			act := l.t.Action(f, i)
			if act == isa.Legal {
				continue
			}

			d := f.DFG.Inst(i)

			return &InternalError{
				Func:   f.Name,
				Inst:   i,
				Opcode: d.Opcode,
				Type:   d.Type,
				Action: act,
				Passes: passes,
				from:   loc.Caller(1),
			}
		}
	}

	return nil
}

// typeOf is a shortcut for the type of a resolved value.
func (l *legalizer) typeOf(v ir.Value) ir.Type {
	return l.f.DFG.ValueType(v)
}

// alias replaces all results of i by vals and removes i.
func (l *legalizer) alias(i ir.Inst, vals ...ir.Value) {
	dfg := &l.f.DFG

	rs := dfg.DetachResults(i)
	l.c.Remove(i)

	for k, r := range rs {
		dfg.ChangeToAlias(r, vals[k])
	}
}
