package ir

import (
	"fmt"
	"strings"
)

// String renders the function for debug dumps.
// The text is informative only and not meant to be parsed back.
func (f *Function) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "function %%%s%s {\n", f.Name, f.Sig.String())

	for _, ss := range f.StackSlots.Keys() {
		d := f.StackSlots.Get(ss)
		fmt.Fprintf(&b, "    %v = %v %d", ss, d.Kind, d.Size)

		if d.Kind == SlotIncomingArg || d.Kind == SlotOutgoingArg {
			fmt.Fprintf(&b, ", offset %d", d.Offset)
		}

		b.WriteString("\n")
	}

	for _, s := range f.DFG.Signatures.Keys() {
		fmt.Fprintf(&b, "    %v = %v\n", s, f.DFG.Signatures.Get(s).String())
	}

	for _, fn := range f.DFG.ExtFuncs.Keys() {
		d := f.DFG.ExtFuncs.Get(fn)
		fmt.Fprintf(&b, "    %v = %%%s %v\n", fn, d.Name, d.Sig)
	}

	for _, jt := range f.JumpTables.Keys() {
		fmt.Fprintf(&b, "    %v = jump_table %v\n", jt, f.JumpTables.Get(jt).Blocks)
	}

	for blk := f.Layout.EntryBlock(); blk != NoBlock; blk = f.Layout.NextBlock(blk) {
		if blk != f.Layout.EntryBlock() {
			b.WriteString("\n")
		}

		b.WriteString(blk.String())

		if ps := f.DFG.BlockParams(blk); len(ps) != 0 {
			b.WriteString("(")

			for i, p := range ps {
				if i != 0 {
					b.WriteString(", ")
				}

				fmt.Fprintf(&b, "%v%s: %v", p, f.locSuffix(p), f.DFG.ValueType(p))
			}

			b.WriteString(")")
		}

		b.WriteString(":\n")

		for i := f.Layout.FirstInst(blk); i != NoInst; i = f.Layout.NextInst(i) {
			b.WriteString("    ")
			b.WriteString(f.InstString(i))
			b.WriteString("\n")
		}
	}

	b.WriteString("}\n")

	return b.String()
}

func (s Signature) String() string {
	var b strings.Builder

	b.WriteString("(")

	for i, t := range s.Params {
		if i != 0 {
			b.WriteString(", ")
		}

		b.WriteString(t.String())
	}

	b.WriteString(")")

	if len(s.Returns) != 0 {
		b.WriteString(" -> ")

		for i, t := range s.Returns {
			if i != 0 {
				b.WriteString(", ")
			}

			b.WriteString(t.String())
		}
	}

	if s.CallConv != CallConvDefault {
		b.WriteString(" ")
		b.WriteString(s.CallConv.String())
	}

	return b.String()
}

// InstString renders one instruction.
func (f *Function) InstString(i Inst) string {
	var b strings.Builder

	d := f.DFG.Inst(i)

	if e := f.Encodings.Get(i); e.IsValid() {
		fmt.Fprintf(&b, "[%d#%x] ", e.Recipe, e.Bits)
	}

	for k, r := range d.Results {
		if k != 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(&b, "%v%s", r, f.locSuffix(r))

		if k == len(d.Results)-1 {
			b.WriteString(" = ")
		}
	}

	b.WriteString(d.Opcode.String())

	switch d.Opcode {
	case Jump, Return, Trap, Call, CallIndirect, Regmove, Regspill, Regfill, Prologue, Epilogue, Copy, Spill, Fill,
		Store, Istore8, Istore16, Istore32, StackStore, Bitcast, Isplit:
	default:
		if d.Type != TypeInvalid {
			fmt.Fprintf(&b, ".%v", d.Type)
		}
	}

	sep := " "
	arg := func(format string, args ...any) {
		b.WriteString(sep)
		fmt.Fprintf(&b, format, args...)
		sep = ", "
	}

	switch d.Opcode {
	case Icmp, IcmpImm:
		arg("%v", d.Cond)
	case Trap:
		arg("%v", d.Trap)
	case Call:
		arg("%v", d.Func)
	case CallIndirect:
		arg("%v", d.Sig)
	case Regmove:
		src, dst := d.RegmoveUnits()
		arg("r%d -> r%d", src, dst)
	case Regspill:
		arg("r%d -> %v", d.Imm, d.Slot)
	case Regfill:
		arg("%v -> r%d", d.Slot, d.Imm)
	}

	for _, a := range d.Args {
		arg("%v", a)
	}

	switch d.Opcode {
	case Iconst, IaddImm, ImulImm, BandImm, BorImm, BxorImm, IshlImm, UshrImm, SshrImm, IcmpImm:
		arg("%d", d.Imm)
	case F32const, F64const:
		arg("%#x", uint64(d.Imm))
	case StackLoad, StackStore, StackAddr:
		arg("%v%+d", d.Slot, d.Imm)
	case FuncAddr:
		arg("%v", d.Func)
	case SymbolValue:
		arg("%v", d.Global)
	case BrTable:
		arg("%v", d.Table)
	default:
		if (d.Opcode.IsLoad() || d.Opcode.IsStore()) && d.Imm != 0 {
			arg("%+d", d.Imm)
		}
	}

	for _, t := range d.Targets {
		if len(t.Args) == 0 {
			arg("%v", t.Block)
			continue
		}

		arg("%v%v", t.Block, t.Args)
	}

	if d.Flags&FlagABILowered != 0 {
		b.WriteString(" ; abi")
	}

	return b.String()
}

func (f *Function) locSuffix(v Value) string {
	l := f.Locations.Get(v)

	switch l.Kind {
	case LocReg:
		return fmt.Sprintf("@r%d", l.Reg)
	case LocStack:
		return fmt.Sprintf("@%v", l.Slot)
	}

	if r, ok := f.Pinned(v); ok {
		return fmt.Sprintf("^r%d", r)
	}

	return ""
}
