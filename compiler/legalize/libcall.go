package legalize

import (
	"tlog.app/go/errors"

	"github.com/spacemeshos/cranelift/compiler/abi"
	"github.com/spacemeshos/cranelift/compiler/ir"
)

type libcallKey struct {
	op ir.Opcode
	t  ir.Type
}

var libcalls = map[libcallKey]string{
	{ir.Imul, ir.I32}: "__mulsi3",
	{ir.Udiv, ir.I32}: "__udivsi3",
	{ir.Sdiv, ir.I32}: "__divsi3",
	{ir.Urem, ir.I32}: "__umodsi3",
	{ir.Srem, ir.I32}: "__modsi3",

	{ir.Imul, ir.I64}: "__muldi3",
	{ir.Udiv, ir.I64}: "__udivdi3",
	{ir.Sdiv, ir.I64}: "__divdi3",
	{ir.Urem, ir.I64}: "__umoddi3",
	{ir.Srem, ir.I64}: "__moddi3",
	{ir.Ishl, ir.I64}: "__ashldi3",
	{ir.Ushr, ir.I64}: "__lshrdi3",
	{ir.Sshr, ir.I64}: "__ashrdi3",

	{ir.Fadd, ir.F32}: "__addsf3",
	{ir.Fsub, ir.F32}: "__subsf3",
	{ir.Fmul, ir.F32}: "__mulsf3",
	{ir.Fdiv, ir.F32}: "__divsf3",
	{ir.Fadd, ir.F64}: "__adddf3",
	{ir.Fsub, ir.F64}: "__subdf3",
	{ir.Fmul, ir.F64}: "__muldf3",
	{ir.Fdiv, ir.F64}: "__divdf3",
}

// LibcallName returns the runtime routine implementing op on t.
func LibcallName(op ir.Opcode, t ir.Type) (string, bool) {
	name, ok := libcalls[libcallKey{op, t}]
	return name, ok
}

// libcall replaces i by a call to the runtime routine and lowers the call.
func (l *legalizer) libcall(i ir.Inst) (bool, error) {
	f := l.f
	dfg := &f.DFG
	d := dfg.Inst(i)
	c := l.c

	name, ok := LibcallName(d.Opcode, d.Type)
	if !ok {
		return false, errors.New("no libcall for %v.%v", d.Opcode, d.Type)
	}

	c.At(i)

	args := append([]ir.Value{}, d.Args...)

	switch d.Opcode {
	case ir.Ishl, ir.Ushr, ir.Sshr:
		switch amt := args[1]; {
		case l.typeOf(amt) == ir.I32:
		case l.typeOf(amt) == ir.I64 && l.rv32:
			args[1], _ = l.halves(amt)
		case l.typeOf(amt) == ir.I64:
			args[1] = c.Ins().Ireduce(ir.I32, amt)
		default:
			args[1] = c.Ins().Uextend(ir.I32, amt)
		}
	}

	sig := ir.Signature{
		Returns:  []ir.Type{d.Type},
		CallConv: f.Sig.CallConv,
	}

	for _, a := range args {
		sig.Params = append(sig.Params, l.typeOf(a))
	}

	fn := l.importFunc(name, sig)

	call := c.Ins().Call(fn, args...)

	orig := dfg.DetachResults(i)
	c.Remove(i)

	dfg.RebindResult(call, 0, orig[0])

	err := abi.LowerCall(f, l.t, c, call)
	if err != nil {
		return false, errors.Wrap(err, "libcall %v", name)
	}

	return true, nil
}

func (l *legalizer) importFunc(name string, sig ir.Signature) ir.FuncRef {
	dfg := &l.f.DFG

	for _, fn := range dfg.ExtFuncs.Keys() {
		if dfg.ExtFuncs.Get(fn).Name == name {
			return fn
		}
	}

	return dfg.ImportFunction(name, dfg.ImportSignature(sig))
}
