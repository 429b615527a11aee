package verify

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

func (v *verifier) types(i ir.Inst, d *ir.InstData) {
	f := v.f
	dfg := &f.DFG

	if n := d.Opcode.NumFixedArgs(); n >= 0 && len(d.Args) != n {
		v.report(i, RuleArity, "%v takes %d arguments, got %d", d.Opcode, n, len(d.Args))
		return
	}

	for _, a := range d.Args {
		if !dfg.Values.Valid(a) {
			return
		}
	}

	ctrl := d.Type
	arg := func(k int) ir.Type { return dfg.ValueType(d.Args[k]) }

	want := func(k int, t ir.Type) {
		if got := arg(k); got != t {
			v.report(i, RuleType, "%v argument %d is %v, want %v", d.Opcode, k, got, t)
		}
	}

	wantInt := func(k int) {
		if got := arg(k); !got.IsInt() {
			v.report(i, RuleType, "%v argument %d is %v, want integer", d.Opcode, k, got)
		}
	}

	ctrlInt := func() {
		if !ctrl.IsInt() {
			v.report(i, RuleType, "%v controlling type %v, want integer", d.Opcode, ctrl)
		}
	}

	ctrlFloat := func() {
		if !ctrl.IsFloat() {
			v.report(i, RuleType, "%v controlling type %v, want float", d.Opcode, ctrl)
		}
	}

	switch d.Opcode {
	case ir.Jump:
		v.targets(i, d, 1)
	case ir.Brif:
		v.targets(i, d, 2)
		ctrlInt()
		want(0, ctrl)
	case ir.BrTable:
		v.targets(i, d, 1)
		ctrlInt()
		want(0, ctrl)

		if !f.JumpTables.Valid(d.Table) {
			v.report(i, RuleEntityRef, "invalid jump table %v", d.Table)
			break
		}

		for _, b := range f.JumpTables.Get(d.Table).Blocks {
			if !f.Layout.IsBlockInserted(b) {
				v.report(i, RuleEntityRef, "jump table entry %v is not in layout", b)
			} else if len(dfg.BlockParams(b)) != 0 {
				v.report(i, RuleBranchArgs, "jump table entry %v takes params", b)
			}
		}
	case ir.Return:
		if d.Flags&ir.FlagABILowered != 0 {
			break
		}

		if len(d.Args) != len(f.Sig.Returns) {
			v.report(i, RuleArity, "return of %d values, signature returns %d", len(d.Args), len(f.Sig.Returns))
			break
		}

		for k, t := range f.Sig.Returns {
			want(k, t)
		}
	case ir.Call, ir.CallIndirect:
		v.call(i, d)
	case ir.Iconst:
		ctrlInt()
	case ir.F32const:
		if ctrl != ir.F32 {
			v.report(i, RuleType, "f32const of type %v", ctrl)
		}
	case ir.F64const:
		if ctrl != ir.F64 {
			v.report(i, RuleType, "f64const of type %v", ctrl)
		}
	case ir.Iadd, ir.Isub, ir.Imul, ir.Udiv, ir.Sdiv, ir.Urem, ir.Srem, ir.Band, ir.Bor, ir.Bxor, ir.Icmp:
		ctrlInt()
		want(0, ctrl)
		want(1, ctrl)
	case ir.Ishl, ir.Ushr, ir.Sshr:
		ctrlInt()
		want(0, ctrl)
		wantInt(1)
	case ir.Ineg, ir.Bnot,
		ir.IaddImm, ir.ImulImm, ir.BandImm, ir.BorImm, ir.BxorImm, ir.IshlImm, ir.UshrImm, ir.SshrImm, ir.IcmpImm:
		ctrlInt()
		want(0, ctrl)
	case ir.IaddCout, ir.IsubBout:
		ctrlInt()
		want(0, ctrl)
		want(1, ctrl)
	case ir.IaddCin, ir.IsubBin:
		ctrlInt()
		want(0, ctrl)
		want(1, ctrl)
		want(2, ir.I8)
	case ir.Select:
		wantInt(0)
		want(1, ctrl)
		want(2, ctrl)
	case ir.Uextend, ir.Sextend:
		ctrlInt()
		wantInt(0)

		if arg(0).Bits() >= ctrl.Bits() {
			v.report(i, RuleType, "%v from %v to %v does not widen", d.Opcode, arg(0), ctrl)
		}
	case ir.Ireduce:
		ctrlInt()
		wantInt(0)

		if arg(0).Bits() <= ctrl.Bits() {
			v.report(i, RuleType, "ireduce from %v to %v does not narrow", arg(0), ctrl)
		}
	case ir.Iconcat:
		ctrlInt()

		if h := ctrl.Half(); h == ir.TypeInvalid {
			v.report(i, RuleType, "iconcat to %v", ctrl)
		} else {
			want(0, h)
			want(1, h)
		}
	case ir.Isplit:
		ctrlInt()
		want(0, ctrl)

		if ctrl.Half() == ir.TypeInvalid {
			v.report(i, RuleType, "isplit of %v", ctrl)
		}
	case ir.Bitcast:
		if arg(0).Bits() != ctrl.Bits() {
			v.report(i, RuleType, "bitcast from %v to %v changes width", arg(0), ctrl)
		}
	case ir.Fadd, ir.Fsub, ir.Fmul, ir.Fdiv:
		ctrlFloat()
		want(0, ctrl)
		want(1, ctrl)
	case ir.Load:
		wantInt(0)
	case ir.Uload8, ir.Sload8, ir.Uload16, ir.Sload16, ir.Uload32, ir.Sload32:
		ctrlInt()
		wantInt(0)

		if ctrl.Bytes() <= d.Opcode.MemBytes() {
			v.report(i, RuleType, "%v into %v does not extend", d.Opcode, ctrl)
		}
	case ir.Store:
		want(0, ctrl)
		wantInt(1)
	case ir.Istore8, ir.Istore16, ir.Istore32:
		ctrlInt()
		want(0, ctrl)
		wantInt(1)

		if ctrl.Bytes() <= d.Opcode.MemBytes() {
			v.report(i, RuleType, "%v of %v does not truncate", d.Opcode, ctrl)
		}
	case ir.StackLoad, ir.StackStore, ir.StackAddr:
		if !f.StackSlots.Valid(d.Slot) {
			v.report(i, RuleEntityRef, "invalid stack slot %v", d.Slot)
		} else if ss := f.StackSlots.Get(d.Slot); d.Imm < 0 || int32(d.Imm)+int32(ctrl.Bytes()) > ss.Size && d.Opcode != ir.StackAddr {
			v.report(i, RuleEntityRef, "access at %v%+d of %d bytes out of %d byte slot", d.Slot, d.Imm, ctrl.Bytes(), ss.Size)
		}

		if d.Opcode == ir.StackStore {
			want(0, ctrl)
		}

		if d.Opcode == ir.StackAddr {
			ctrlInt()
		}
	case ir.FuncAddr:
		ctrlInt()

		if !dfg.ExtFuncs.Valid(d.Func) {
			v.report(i, RuleEntityRef, "invalid function reference %v", d.Func)
		}
	case ir.SymbolValue:
		ctrlInt()

		if !f.Globals.Valid(d.Global) {
			v.report(i, RuleEntityRef, "invalid global value %v", d.Global)
		}
	case ir.Copy, ir.Spill, ir.Fill:
		want(0, ctrl)
	case ir.Regspill, ir.Regfill:
		if !f.StackSlots.Valid(d.Slot) {
			v.report(i, RuleEntityRef, "invalid stack slot %v", d.Slot)
		}
	}

	if d.Opcode == ir.Call || d.Opcode == ir.CallIndirect {
		return
	}

	exp := dfg.ResultTypes(d)
	if len(exp) != len(d.Results) {
		v.report(i, RuleArity, "%v has %d results, want %d", d.Opcode, len(d.Results), len(exp))
		return
	}

	for k, r := range d.Results {
		if t := dfg.ValueType(r); t != exp[k] {
			v.report(r, RuleType, "result %d of %v is %v, want %v", k, d.Opcode, t, exp[k])
		}
	}
}

func (v *verifier) targets(i ir.Inst, d *ir.InstData, n int) {
	dfg := &v.f.DFG

	if len(d.Targets) != n {
		v.report(i, RuleArity, "%v has %d destinations, want %d", d.Opcode, len(d.Targets), n)
		return
	}

	for _, t := range d.Targets {
		if !dfg.Blocks.Valid(t.Block) {
			continue
		}

		ps := dfg.BlockParams(t.Block)

		if len(ps) != len(t.Args) {
			v.report(i, RuleBranchArgs, "branch to %v passes %d arguments, block takes %d", t.Block, len(t.Args), len(ps))
			continue
		}

		for k, a := range t.Args {
			if !dfg.Values.Valid(a) {
				continue
			}

			if at, pt := dfg.ValueType(a), dfg.ValueType(ps[k]); at != pt {
				v.report(i, RuleBranchArgs, "branch argument %d to %v is %v, param is %v", k, t.Block, at, pt)
			}
		}
	}
}

func (v *verifier) call(i ir.Inst, d *ir.InstData) {
	dfg := &v.f.DFG

	if d.Opcode == ir.Call && !dfg.ExtFuncs.Valid(d.Func) {
		v.report(i, RuleEntityRef, "invalid function reference %v", d.Func)
		return
	}

	sig, ok := dfg.CallSignature(i)
	if !ok {
		v.report(i, RuleEntityRef, "invalid call signature")
		return
	}

	args := d.Args

	if d.Opcode == ir.CallIndirect {
		if len(args) == 0 {
			v.report(i, RuleArity, "call_indirect without callee")
			return
		}

		if t := dfg.ValueType(args[0]); !t.IsInt() {
			v.report(i, RuleType, "callee is %v", t)
		}

		args = args[1:]
	}

	if d.Flags&ir.FlagABILowered != 0 {
		return
	}

	if len(args) != len(sig.Params) {
		v.report(i, RuleCallSig, "call passes %d arguments, signature takes %d", len(args), len(sig.Params))
	} else {
		for k, a := range args {
			if t := dfg.ValueType(a); t != sig.Params[k] {
				v.report(i, RuleCallSig, "argument %d is %v, signature wants %v", k, t, sig.Params[k])
			}
		}
	}

	if len(d.Results) != len(sig.Returns) {
		v.report(i, RuleCallSig, "call has %d results, signature returns %d", len(d.Results), len(sig.Returns))
		return
	}

	for k, r := range d.Results {
		if t := dfg.ValueType(r); t != sig.Returns[k] {
			v.report(r, RuleCallSig, "result %d is %v, signature returns %v", k, t, sig.Returns[k])
		}
	}
}
