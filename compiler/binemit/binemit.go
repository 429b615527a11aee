// Package binemit lays out and emits machine code of an allocated function.
//
// Branches start in their short forms. Relax widens the ones
// whose displacements don't fit until the layout is stable.
// Emit writes code in layout order into a CodeSink.
package binemit

import (
	"context"
	"fmt"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/spacemeshos/cranelift/compiler/entity"
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
)

type (
	Options struct {
		// MaxPasses bounds relaxation passes.
		MaxPasses int
	}

	CodeInfo struct {
		CodeSize uint32
		// Alignment is the required alignment of the function start.
		Alignment uint32
	}

	// Result is a function emitted into memory.
	Result struct {
		Code       []byte
		Relocs     []Reloc
		Traps      []TrapSite
		Safepoints []Safepoint

		BlockOffsets map[ir.Block]uint32

		Info CodeInfo
	}

	// LayoutError means branch displacements could not be made to fit.
	LayoutError struct {
		Func   string
		Inst   ir.Inst
		Passes int
		Reason string

		from loc.PC
	}
)

const DefaultMaxPasses = 16

func (e *LayoutError) Error() string {
	if e.Inst == ir.NoInst {
		return fmt.Sprintf("layout %s: %s", e.Func, e.Reason)
	}

	return fmt.Sprintf("layout %s: %v: %s", e.Func, e.Inst, e.Reason)
}

func (e *LayoutError) From() loc.PC { return e.from }

// Relax promotes short branches to long forms until every displacement fits.
// Promotion is monotonic so the loop ends unless the passes bound is hit first.
func Relax(ctx context.Context, f *ir.Function, t isa.TargetISA, opts Options) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "binemit: relax", "func", f.Name, "isa", t.Name())
	defer tr.Finish("err", &err)

	if opts.MaxPasses <= 0 {
		opts.MaxPasses = DefaultMaxPasses
	}

	tab := t.Table()

	var offs entity.Map[ir.Block, uint32]

	for p := 1; p <= opts.MaxPasses; p++ {
		// instruction sizes depend on forms only, so one measure gives exact offsets
		offs, _, err = pass(f, t, &offs, &sizer{})
		if err != nil {
			return err
		}

		_, far, err := pass(f, t, &offs, &sizer{})
		if err != nil {
			return err
		}

		if len(far) == 0 {
			tr.V("binemit").Printw("relaxed", "passes", p)
			return nil
		}

		for _, i := range far {
			enc := f.Encodings.Get(i)

			r := tab.Recipe(enc.Recipe)
			if r.Branch == nil {
				return layoutErrorf(f, i, p, "%v displacement out of range", r.Name)
			}

			tr.V("binemit").Printw("promote branch", "inst", i, "from", r.Name, "to", tab.Recipe(r.Branch.Long).Name)

			enc.Recipe = r.Branch.Long
			f.Encodings.Set(i, enc)
		}
	}

	return layoutErrorf(f, ir.NoInst, opts.MaxPasses, "branches do not fit after %d passes", opts.MaxPasses)
}

// Emit writes f into sink. f must be relaxed already.
func Emit(f *ir.Function, t isa.TargetISA, sink isa.CodeSink) (info CodeInfo, err error) {
	start := sink.Offset()

	var offs entity.Map[ir.Block, uint32]

	offs, _, err = pass(f, t, &offs, &sizer{off: start})
	if err != nil {
		return info, err
	}

	_, far, err := pass(f, t, &offs, sink)
	if err != nil {
		return info, err
	}

	if len(far) != 0 {
		return info, layoutErrorf(f, far[0], 0, "branch out of range, function is not relaxed")
	}

	info = CodeInfo{
		CodeSize:  sink.Offset() - start,
		Alignment: Alignment(t),
	}

	return info, nil
}

// Measure computes code info of f without producing code.
func Measure(f *ir.Function, t isa.TargetISA) (CodeInfo, error) {
	return Emit(f, t, &sizer{})
}

// EmitToMemory emits f into a new MemSink.
func EmitToMemory(f *ir.Function, t isa.TargetISA) (*Result, error) {
	s := NewMemSink(t.Descriptor().Endianness)

	info, err := Emit(f, t, s)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Code:       s.Code,
		Relocs:     s.Relocs,
		Traps:      s.Traps,
		Safepoints: s.Safepoints,
		Info:       info,

		BlockOffsets: map[ir.Block]uint32{},
	}

	var offs entity.Map[ir.Block, uint32]

	offs, _, err = pass(f, t, &offs, &sizer{})
	if err != nil {
		return nil, err
	}

	for _, b := range f.Layout.Blocks() {
		r.BlockOffsets[b] = offs.Get(b)
	}

	return r, nil
}

// Alignment is the function start alignment of the target.
func Alignment(t isa.TargetISA) uint32 {
	if t.Name() == "x86_64" {
		return 16
	}

	return 4
}

// pass emits f using block offsets of the previous pass.
// Offsets are absolute positions in sink.
// It returns new block offsets and instructions whose branches are out of range.
func pass(f *ir.Function, t isa.TargetISA, prev *entity.Map[ir.Block, uint32], sink isa.CodeSink) (offs entity.Map[ir.Block, uint32], far []ir.Inst, err error) {
	tab := t.Table()

	e := isa.Emitter{
		ISA:     t,
		Func:    f,
		Sink:    sink,
		Offsets: prev,
	}

	for _, b := range f.Layout.Blocks() {
		offs.Set(b, sink.Offset())
		e.Next = f.Layout.NextBlock(b)

		for _, i := range f.Layout.Insts(b) {
			d := f.DFG.Inst(i)

			enc := f.Encodings.Get(i)
			if !enc.IsValid() {
				return offs, nil, &isa.EncodingError{ISA: t.Name(), Inst: i, Opcode: d.Opcode, Type: d.Type}
			}

			e.Inst = i
			e.OutOfRange = false

			tab.Recipe(enc.Recipe).Emit(&e, d, enc.Bits)

			if e.OutOfRange {
				far = append(far, i)
			}
		}
	}

	return offs, far, nil
}

func layoutErrorf(f *ir.Function, i ir.Inst, passes int, format string, args ...any) *LayoutError {
	return &LayoutError{
		Func:   f.Name,
		Inst:   i,
		Passes: passes,
		Reason: fmt.Sprintf(format, args...),
		from:   loc.Caller(1),
	}
}
