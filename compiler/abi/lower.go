package abi

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

// Lower rewrites the entry block, returns and calls of f for the target convention.
// Values crossing the boundary are copied to and from pinned registers
// so that pinned live ranges stay short. Lowering is done once per function.
func Lower(ctx context.Context, f *ir.Function, t isa.TargetISA) (err error) {
	if f.ABILowered {
		return nil
	}

	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "abi: lower", "func", f.Name, "isa", t.Name())
	defer tr.Finish("err", &err)

	a, err := Assign(t, &f.Sig)
	if err != nil {
		return errors.Wrap(err, "signature of %v", f.Name)
	}

	c := ir.NewCursor(f)

	if entry := f.Layout.EntryBlock(); entry != ir.NoBlock {
		lowerEntry(f, t, c, entry, a)
	}

	calls := 0

	err = f.Insts(func(b ir.Block, i ir.Inst) error {
		d := f.DFG.Inst(i)
		if d.Flags&ir.FlagABILowered != 0 {
			return nil
		}

		switch {
		case d.Opcode == ir.Return:
			lowerReturn(f, t, c, i, a)
		case d.Opcode.IsCall():
			calls++

			return LowerCall(f, t, c, i)
		}

		return nil
	})
	if err != nil {
		return err
	}

	f.ABILowered = true

	tr.V("abi").Printw("lowered", "params", len(a.Params), "returns", len(a.Returns), "calls", calls, "stack_args", a.StackSize)

	return nil
}

func lowerEntry(f *ir.Function, t isa.TargetISA, c *ir.Cursor, entry ir.Block, a *Assignment) {
	dfg := &f.DFG

	old := dfg.DetachBlockParams(entry)

	c.AtTop(entry)

	for k, v := range old {
		var parts []ir.Value

		for _, p := range a.Params[k] {
			if p.OnStack() {
				ss := f.CreateStackSlot(ir.SlotIncomingArg, int32(p.Type.Bytes()))
				f.StackSlots.Get(ss).Offset = p.Offset

				parts = append(parts, c.Ins().StackLoad(p.Type, ss, 0))

				continue
			}

			np := dfg.AppendBlockParam(entry, p.Type)
			f.Pin(np, p.Reg)

			parts = append(parts, c.Ins().Copy(np))
		}

		define(c, v, join(c, parts))
	}
}

func lowerReturn(f *ir.Function, t isa.TargetISA, c *ir.Cursor, i ir.Inst, a *Assignment) {
	d := f.DFG.Inst(i)

	c.At(i)

	var args []ir.Value

	for k, v := range d.Args {
		for j, part := range split(c, t, v) {
			r := c.Ins().Copy(part)
			f.Pin(r, a.Returns[k][j].Reg)

			args = append(args, r)
		}
	}

	d.Args = args
	d.Flags |= ir.FlagABILowered
}

// LowerCall rewrites call inst to pass arguments and results in convention locations.
func LowerCall(f *ir.Function, t isa.TargetISA, c *ir.Cursor, i ir.Inst) error {
	dfg := &f.DFG
	d := dfg.Inst(i)

	sig, ok := dfg.CallSignature(i)
	if !ok {
		return errors.New("%v: no call signature", i)
	}

	a, err := Assign(t, sig)
	if err != nil {
		return errors.Wrap(err, "%v", i)
	}

	c.At(i)

	var args []ir.Value

	params := d.Args
	if d.Opcode == ir.CallIndirect {
		args = append(args, params[0])
		params = params[1:]
	}

	for k, v := range params {
		for j, part := range split(c, t, v) {
			p := a.Params[k][j]

			if p.OnStack() {
				ss := outgoingSlot(f, p)
				c.Ins().StackStore(part, ss, 0)

				continue
			}

			r := c.Ins().Copy(part)
			f.Pin(r, p.Reg)

			args = append(args, r)
		}
	}

	d.Args = args
	d.Flags |= ir.FlagABILowered

	old := dfg.DetachResults(i)

	c.After(i)

	for k, v := range old {
		var parts []ir.Value

		for _, p := range a.Returns[k] {
			r := dfg.AppendResult(i, p.Type)
			f.Pin(r, p.Reg)

			parts = append(parts, c.Ins().Copy(r))
		}

		define(c, v, join(c, parts))
	}

	f.Frame.HasCalls = true

	return nil
}

// outgoingSlot returns the slot for a stack argument, one per offset.
func outgoingSlot(f *ir.Function, p Part) ir.StackSlot {
	size := int32(p.Type.Bytes())

	for _, ss := range f.StackSlots.Keys() {
		sd := f.StackSlots.Get(ss)

		if sd.Kind == ir.SlotOutgoingArg && sd.Offset == p.Offset {
			sd.Size = max(sd.Size, size)
			return ss
		}
	}

	ss := f.CreateStackSlot(ir.SlotOutgoingArg, size)
	f.StackSlots.Get(ss).Offset = p.Offset

	return ss
}

func split(c *ir.Cursor, t isa.TargetISA, v ir.Value) []ir.Value {
	if len(Split(t, c.Func.DFG.ValueType(v))) == 1 {
		return []ir.Value{v}
	}

	lo, hi := c.Ins().Isplit(v)

	return []ir.Value{lo, hi}
}

func join(c *ir.Cursor, parts []ir.Value) ir.Value {
	if len(parts) == 1 {
		return parts[0]
	}

	return c.Ins().Iconcat(parts[0], parts[1])
}

// define makes the instruction computing x define v instead.
func define(c *ir.Cursor, v, x ir.Value) {
	dfg := &c.Func.DFG

	i, _ := dfg.ValueDef(x)
	dfg.RebindResult(i, 0, v)
}
