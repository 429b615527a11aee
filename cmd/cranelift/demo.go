package main

import (
	"github.com/spacemeshos/cranelift/compiler/ir"
)

// demo builds
//
//	func pow(x, n int64) int64 {
//		r := 1
//		for ; n != 0; n-- {
//			r = mul(r, x)
//		}
//		return r / checked(x)
//	}
func demo() *ir.Function {
	sig := ir.Signature{Params: []ir.Type{ir.I64, ir.I64}, Returns: []ir.Type{ir.I64}}

	f := ir.NewFunction("pow", sig)
	b := ir.NewBuilder(f)

	mul := b.ImportFunction("mul", sig)
	checked := b.ImportFunction("checked", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})

	entry := b.CreateBlock()
	ps := b.AppendEntryParams(entry)

	head := b.CreateBlock()
	r := b.AppendBlockParam(head, ir.I64)
	n := b.AppendBlockParam(head, ir.I64)

	body := b.CreateBlock()
	exit := b.CreateBlock()

	b.SwitchToBlock(entry)
	one := b.Ins().Iconst(ir.I64, 1)
	b.Ins().Jump(head, one, ps[1])

	b.SwitchToBlock(head)
	b.Ins().Brif(n, body, nil, exit, nil)

	b.SwitchToBlock(body)
	call := b.Ins().Call(mul, r, ps[0])
	next := b.Ins().IaddImm(n, -1)
	b.Ins().Jump(head, f.DFG.FirstResult(call), next)

	b.SwitchToBlock(exit)
	d := b.Ins().Call(checked, ps[0])
	b.Ins().Return(b.Ins().Sdiv(r, f.DFG.FirstResult(d)))

	return f
}
