package compiler

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/spacemeshos/cranelift/compiler/abi"
	"github.com/spacemeshos/cranelift/compiler/binemit"
	"github.com/spacemeshos/cranelift/compiler/ir"
	"github.com/spacemeshos/cranelift/compiler/isa"
	"github.com/spacemeshos/cranelift/compiler/legalize"
	"github.com/spacemeshos/cranelift/compiler/regalloc"
	"github.com/spacemeshos/cranelift/compiler/verify"
)

type (
	Settings struct {
		// EnableVerifier checks the function before and after each stage.
		EnableVerifier bool

		MaxLegalizePasses int
		MaxAllocRounds    int
		MaxRelaxPasses    int

		SpillPolicy regalloc.SpillPolicy
	}

	// Context compiles one function at a time for a target.
	// It can be reused after Clear.
	Context struct {
		ISA      isa.TargetISA
		Settings Settings

		Func *ir.Function

		compiled bool
	}
)

var ErrNotCompiled = errors.New("function is not compiled")

func New(t isa.TargetISA, s Settings) *Context {
	return &Context{
		ISA:      t,
		Settings: s,
	}
}

// Compile runs the pipeline up to the final layout.
// f is rewritten in place.
func (c *Context) Compile(ctx context.Context, f *ir.Function) (info binemit.CodeInfo, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile: function", "func", f.Name, "isa", c.ISA.Name())
	defer tr.Finish("err", &err)

	c.Func = f
	c.compiled = false

	t := c.ISA
	s := &c.Settings

	if err = c.verify("input", verify.Flags{}); err != nil {
		return info, err
	}

	err = legalize.Function(ctx, f, t, legalize.Options{MaxPasses: s.MaxLegalizePasses})
	if err != nil {
		return info, errors.Wrap(err, "legalize")
	}

	if ir.EliminateUnreachable(f) {
		tr.V("compile").Printw("unreachable blocks removed")
	}

	if err = c.verify("legalize", verify.Flags{}); err != nil {
		return info, err
	}

	err = isa.Select(ctx, f, t)
	if err != nil {
		return info, errors.Wrap(err, "select")
	}

	err = regalloc.Run(ctx, f, t, regalloc.Options{
		MaxRounds:   s.MaxAllocRounds,
		SpillPolicy: s.SpillPolicy,
	})
	if err != nil {
		return info, errors.Wrap(err, "regalloc")
	}

	if s.EnableVerifier {
		if err = regalloc.Check(f, t); err != nil {
			return info, errors.Wrap(err, "verify regalloc")
		}
	}

	if err = c.verify("regalloc", verify.Flags{Locations: true}); err != nil {
		return info, err
	}

	err = abi.InsertPrologueEpilogue(ctx, f, t)
	if err != nil {
		return info, errors.Wrap(err, "frame")
	}

	err = binemit.Relax(ctx, f, t, binemit.Options{MaxPasses: s.MaxRelaxPasses})
	if err != nil {
		return info, errors.Wrap(err, "relax")
	}

	info, err = binemit.Measure(f, t)
	if err != nil {
		return info, errors.Wrap(err, "measure")
	}

	c.compiled = true

	if tr.If("dump_compiled") {
		tr.Printw("compiled", "size", info.CodeSize, "func", f.String())
	}

	return info, nil
}

// Emit writes the compiled function into sink.
func (c *Context) Emit(sink isa.CodeSink) (binemit.CodeInfo, error) {
	if !c.compiled {
		return binemit.CodeInfo{}, ErrNotCompiled
	}

	return binemit.Emit(c.Func, c.ISA, sink)
}

// CompileAndEmit compiles f and emits it into memory.
func (c *Context) CompileAndEmit(ctx context.Context, f *ir.Function) (*binemit.Result, error) {
	_, err := c.Compile(ctx, f)
	if err != nil {
		return nil, err
	}

	r, err := binemit.EmitToMemory(f, c.ISA)
	if err != nil {
		return nil, errors.Wrap(err, "emit")
	}

	return r, nil
}

// Clear forgets the function so the context can be reused.
func (c *Context) Clear() {
	c.Func = nil
	c.compiled = false
}

func (c *Context) verify(stage string, flags verify.Flags) error {
	if !c.Settings.EnableVerifier {
		return nil
	}

	err := verify.Function(c.Func, flags)
	if err != nil {
		return errors.Wrap(err, "verify %v", stage)
	}

	return nil
}
