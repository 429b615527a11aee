// Package verify checks IR invariants.
//
// Failures are never corrected: the function is reported broken with every
// violated rule and the entity it was found at.
package verify

import (
	"fmt"
	"strings"

	"github.com/spacemeshos/cranelift/compiler/entity"
	"github.com/spacemeshos/cranelift/compiler/ir"
)

type (
	Rule string

	// Error is one violated invariant.
	Error struct {
		Entity  fmt.Stringer
		Rule    Rule
		Message string
	}

	// Errors is the verifier failure.
	Errors []Error

	Flags struct {
		// Locations checks register allocation results.
		Locations bool
	}

	verifier struct {
		f     *ir.Function
		flags Flags

		cfg *ir.ControlFlowGraph
		dt  *ir.DomTree

		seq  entity.Map[ir.Inst, int]
		defs entity.Map[ir.Value, bool]

		errs Errors
	}
)

const (
	RuleEntry      Rule = "entry"
	RuleLayout     Rule = "layout"
	RuleTerminator Rule = "terminator"
	RuleSingleDef  Rule = "single_def"
	RuleDominance  Rule = "dominance"
	RuleType       Rule = "type"
	RuleArity      Rule = "arity"
	RuleBranchArgs Rule = "branch_args"
	RuleCallSig    Rule = "call_signature"
	RuleEntityRef  Rule = "entity_ref"
	RuleLocation   Rule = "location"
)

func (e Error) Error() string {
	return fmt.Sprintf("%v: %s: %s", e.Entity, e.Rule, e.Message)
}

func (e Errors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%d verifier errors:", len(e))

	for _, x := range e {
		b.WriteString("\n\t")
		b.WriteString(x.Error())
	}

	return b.String()
}

// Has reports whether rule r was violated.
func (e Errors) Has(r Rule) bool {
	for _, x := range e {
		if x.Rule == r {
			return true
		}
	}

	return false
}

// Function verifies f and returns Errors if any invariant is broken.
func Function(f *ir.Function, flags Flags) error {
	v := &verifier{
		f:     f,
		flags: flags,
		seq:   entity.MakeMap[ir.Inst](-1),
		defs:  entity.MakeMap[ir.Value](false),
	}

	v.run()

	if len(v.errs) != 0 {
		return v.errs
	}

	return nil
}

func (v *verifier) report(e fmt.Stringer, r Rule, format string, args ...any) {
	v.errs = append(v.errs, Error{Entity: e, Rule: r, Message: fmt.Sprintf(format, args...)})
}

func (v *verifier) run() {
	f := v.f

	entry := f.Layout.EntryBlock()
	if entry == ir.NoBlock {
		v.report(ir.NoBlock, RuleEntry, "function %q has no blocks", f.Name)
		return
	}

	if !f.ABILowered {
		ps := f.DFG.BlockParams(entry)

		if len(ps) != len(f.Sig.Params) {
			v.report(entry, RuleEntry, "entry block has %d params, signature has %d", len(ps), len(f.Sig.Params))
		} else {
			for k, p := range ps {
				if t := f.DFG.ValueType(p); t != f.Sig.Params[k] {
					v.report(p, RuleEntry, "entry param %d type %v, signature %v", k, t, f.Sig.Params[k])
				}
			}
		}
	}

	if !v.layout() {
		return
	}

	v.cfg = ir.ComputeCFG(f)
	v.dt = ir.ComputeDomTree(f, v.cfg)

	for _, b := range f.Layout.Blocks() {
		for i := f.Layout.FirstInst(b); i != ir.NoInst; i = f.Layout.NextInst(i) {
			v.inst(b, i)
		}
	}
}

// layout checks block structure and records definitions.
func (v *verifier) layout() bool {
	f := v.f
	ok := true

	n := 0

	for _, b := range f.Layout.Blocks() {
		if !f.DFG.Blocks.Valid(b) {
			v.report(b, RuleEntityRef, "block in layout is not allocated")
			return false
		}

		for k, p := range f.DFG.BlockParams(b) {
			vd := f.DFG.Value(p)

			if vd.Kind != ir.ValueParam || vd.Block != b || vd.Num != k {
				v.report(p, RuleSingleDef, "param %d of %v is defined as %v", k, b, describe(vd))
			}

			v.define(p)
		}

		first := f.Layout.FirstInst(b)
		if first == ir.NoInst {
			v.report(b, RuleTerminator, "empty block")
			ok = false

			continue
		}

		for i := first; i != ir.NoInst; i = f.Layout.NextInst(i) {
			if f.Layout.InstBlock(i) != b {
				v.report(i, RuleLayout, "instruction in %v claims to be in %v", b, f.Layout.InstBlock(i))
				return false
			}

			if v.seq.Get(i) >= 0 {
				v.report(i, RuleLayout, "instruction appears twice in layout")
				return false
			}

			v.seq.Set(i, n)
			n++

			data := f.DFG.Inst(i)

			if !data.Opcode.Valid() {
				v.report(i, RuleArity, "invalid opcode %d", int(data.Opcode))
				ok = false

				continue
			}

			last := f.Layout.NextInst(i) == ir.NoInst

			switch {
			case last && !data.Opcode.IsTerminator():
				v.report(i, RuleTerminator, "%v does not end with a terminator, last is %v", b, data.Opcode)
				ok = false
			case !last && data.Opcode.IsTerminator():
				v.report(i, RuleTerminator, "terminator %v in the middle of %v", data.Opcode, b)
				ok = false
			}

			for k, r := range data.Results {
				vd := f.DFG.Value(r)

				if vd.Kind != ir.ValueResult || vd.Inst != i || vd.Num != k {
					v.report(r, RuleSingleDef, "result %d of %v is defined as %v", k, i, describe(vd))
				}

				v.define(r)
			}

			for _, t := range data.Targets {
				if !f.DFG.Blocks.Valid(t.Block) || !f.Layout.IsBlockInserted(t.Block) {
					v.report(i, RuleEntityRef, "branch to %v which is not in layout", t.Block)
					ok = false
				}
			}
		}
	}

	return ok
}

func (v *verifier) define(x ir.Value) {
	if v.defs.Get(x) {
		v.report(x, RuleSingleDef, "value defined more than once")
	}

	v.defs.Set(x, true)
}

func describe(vd *ir.ValueData) string {
	switch vd.Kind {
	case ir.ValueResult:
		return fmt.Sprintf("result %d of %v", vd.Num, vd.Inst)
	case ir.ValueParam:
		return fmt.Sprintf("param %d of %v", vd.Num, vd.Block)
	case ir.ValueAlias:
		return fmt.Sprintf("alias of %v", vd.Original)
	default:
		return "detached"
	}
}

func (v *verifier) inst(b ir.Block, i ir.Inst) {
	f := v.f
	data := f.DFG.Inst(i)

	data.Uses(func(x ir.Value) {
		v.use(b, i, x)
	})

	v.types(i, data)

	if v.flags.Locations {
		v.locations(i, data)
	}
}

// use checks that x is defined and its definition dominates i.
func (v *verifier) use(b ir.Block, i ir.Inst, x ir.Value) {
	f := v.f

	if !f.DFG.Values.Valid(x) {
		v.report(i, RuleEntityRef, "use of invalid value %v", x)
		return
	}

	r := f.DFG.Resolve(x)
	vd := f.DFG.Value(r)

	if !v.defs.Get(r) {
		v.report(i, RuleSingleDef, "use of %v which is %v and not defined in layout", x, describe(vd))
		return
	}

	if !v.dt.IsReachable(b) {
		return
	}

	switch vd.Kind {
	case ir.ValueParam:
		if !v.dt.Dominates(vd.Block, b) {
			v.report(i, RuleDominance, "use of %v not dominated by %v", x, vd.Block)
		}
	case ir.ValueResult:
		db := f.Layout.InstBlock(vd.Inst)

		if db == b {
			if v.seq.Get(vd.Inst) >= v.seq.Get(i) {
				v.report(i, RuleDominance, "use of %v before its definition %v", x, vd.Inst)
			}

			return
		}

		if !v.dt.Dominates(db, b) {
			v.report(i, RuleDominance, "use of %v not dominated by %v in %v", x, vd.Inst, db)
		}
	}
}

func (v *verifier) locations(i ir.Inst, data *ir.InstData) {
	f := v.f

	check := func(x ir.Value) {
		x = f.DFG.Resolve(x)
		l := f.Locations.Get(x)

		if l.Kind == ir.LocUnassigned {
			v.report(i, RuleLocation, "%v has no location", x)
			return
		}

		if r, ok := f.Pinned(x); ok && (l.Kind != ir.LocReg || l.Reg != r) {
			v.report(i, RuleLocation, "%v is pinned to r%d but located at %+v", x, r, l)
		}

		if l.Kind == ir.LocStack && data.Opcode != ir.Fill && data.Opcode != ir.Spill {
			v.report(i, RuleLocation, "stack value %v used by %v", x, data.Opcode)
		}
	}

	for _, a := range data.Args {
		check(a)
	}

	for _, r := range data.Results {
		check(r)
	}
}
