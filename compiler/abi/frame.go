package abi

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

// LayoutFrame assigns stack pointer relative offsets to all stack slots
// and computes the frame size. Frame.Saved must already be set.
//
// From the stack pointer up the frame is:
// outgoing arguments, explicit and spill slots, callee-saved registers, link register.
// Incoming arguments are above the frame setup area of the target.
func LayoutFrame(f *ir.Function, t isa.TargetISA) {
	conv := t.Convention()
	style := t.Frame()
	fr := &f.Frame

	fr.HasCalls = fr.HasCalls || hasCalls(f)

	var out int32

	if fr.HasCalls {
		out = conv.ShadowSpace
	}

	for _, ss := range f.StackSlots.Keys() {
		sd := f.StackSlots.Get(ss)

		if sd.Kind == ir.SlotOutgoingArg {
			sd.FrameOffset = sd.Offset
			out = max(out, sd.Offset+sd.Size)
		}
	}

	fr.OutgoingSize = alignTo(out, conv.StackAlign)
	off := fr.OutgoingSize

	for _, ss := range f.StackSlots.Keys() {
		sd := f.StackSlots.Get(ss)

		if sd.Kind != ir.SlotExplicit && sd.Kind != ir.SlotSpill {
			continue
		}

		off = alignTo(off, max(sd.Align, 1))
		sd.FrameOffset = off
		off += sd.Size
	}

	fr.SavedOffsets = fr.SavedOffsets[:0]

	for _, r := range fr.Saved {
		size := conv.SlotSize
		if t.RegInfo().ClassOf(r) == isa.FPR {
			size = 8
		}

		off = alignTo(off, size)
		fr.SavedOffsets = append(fr.SavedOffsets, off)
		off += size
	}

	fr.SaveLink = style.SaveLink && fr.HasCalls
	if fr.SaveLink {
		off = alignTo(off, conv.SlotSize)
		fr.LinkOffset = off
		off += conv.SlotSize
	}

	fr.Size = alignTo(off, conv.StackAlign)

	for _, ss := range f.StackSlots.Keys() {
		sd := f.StackSlots.Get(ss)

		if sd.Kind == ir.SlotIncomingArg {
			sd.FrameOffset = fr.Size + style.SetupSize + sd.Offset
		}
	}
}

// InsertPrologueEpilogue lays out the frame and inserts an encoded prologue
// at the entry and an epilogue before each return.
func InsertPrologueEpilogue(ctx context.Context, f *ir.Function, t isa.TargetISA) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "abi: prologue epilogue", "func", f.Name)
	defer tr.Finish("err", &err)

	LayoutFrame(f, t)

	entry := f.Layout.EntryBlock()
	if entry == ir.NoBlock {
		return nil
	}

	c := ir.NewCursor(f)

	var insts []ir.Inst

	insts = append(insts, c.AtTop(entry).Ins().Prologue())

	for _, b := range f.Layout.Blocks() {
		term := f.Terminator(b)
		if term == ir.NoInst || f.DFG.Inst(term).Opcode != ir.Return {
			continue
		}

		insts = append(insts, c.At(term).Ins().Epilogue())
	}

	for _, i := range insts {
		if err = isa.Encode(f, t, i); err != nil {
			return err
		}
	}

	tr.V("frame").Printw("frame", "size", f.Frame.Size, "saved", f.Frame.Saved, "outgoing", f.Frame.OutgoingSize, "link", f.Frame.SaveLink)

	return nil
}

func hasCalls(f *ir.Function) bool {
	for _, b := range f.Layout.Blocks() {
		for _, i := range f.Layout.Insts(b) {
			if f.DFG.Inst(i).Opcode.IsCall() {
				return true
			}
		}
	}

	return false
}
